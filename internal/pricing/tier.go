package pricing

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"datedriven/internal/common/config"
	apperrors "datedriven/internal/common/errors"
	"datedriven/internal/common/logger"
	"datedriven/internal/common/metrics"
	"datedriven/internal/keydates"
)

// Tier grades how strongly an event should move an item's price.
type Tier string

const (
	TierMinor  Tier = "MINOR"
	TierMedium Tier = "MEDIUM"
	TierMajor  Tier = "MAJOR"
	TierPeak   Tier = "PEAK"
)

// Tiers lists every tier from weakest to strongest.
var Tiers = []Tier{TierMinor, TierMedium, TierMajor, TierPeak}

// ParseTier accepts a tier name in any case.
func ParseTier(s string) (Tier, error) {
	t := Tier(strings.ToUpper(strings.TrimSpace(s)))
	if t.rank() < 0 {
		return "", fmt.Errorf("unknown tier %q", s)
	}
	return t, nil
}

func (t Tier) rank() int {
	for i, known := range Tiers {
		if t == known {
			return i
		}
	}
	return -1
}

// TierLevel is the markup of one tier and how many days before the event it
// starts.
type TierLevel struct {
	Multiplier float64 `json:"multiplier"`
	WindowDays int     `json:"window_days"`
}

// TierPolicy maps tiers to levels. Fallback applies when no source answers.
type TierPolicy struct {
	Levels        map[Tier]TierLevel
	PostEventDays int
	Fallback      Tier
}

func DefaultTierPolicy() TierPolicy {
	return TierPolicy{
		Levels: map[Tier]TierLevel{
			TierMinor:  {Multiplier: 1.05, WindowDays: 7},
			TierMedium: {Multiplier: 1.15, WindowDays: 10},
			TierMajor:  {Multiplier: 1.25, WindowDays: 14},
			TierPeak:   {Multiplier: 1.35, WindowDays: 14},
		},
		PostEventDays: 2,
		Fallback:      TierMedium,
	}
}

// TierPolicyFromConfig builds and validates a policy from its config form.
func TierPolicyFromConfig(cfg config.TierPricingConfig) (TierPolicy, error) {
	fallback, err := ParseTier(cfg.Fallback)
	if err != nil {
		return TierPolicy{}, apperrors.NewInvalidConfigError("pricing.tiers.fallback: " + err.Error())
	}
	if cfg.PostEventDays < 0 {
		return TierPolicy{}, apperrors.NewInvalidConfigError("pricing.tiers.post_event_days must not be negative")
	}
	levels := map[Tier]TierLevel{
		TierMinor:  {Multiplier: cfg.Minor.Multiplier, WindowDays: cfg.Minor.WindowDays},
		TierMedium: {Multiplier: cfg.Medium.Multiplier, WindowDays: cfg.Medium.WindowDays},
		TierMajor:  {Multiplier: cfg.Major.Multiplier, WindowDays: cfg.Major.WindowDays},
		TierPeak:   {Multiplier: cfg.Peak.Multiplier, WindowDays: cfg.Peak.WindowDays},
	}
	for _, t := range Tiers {
		l := levels[t]
		if l.Multiplier <= 0 || math.IsNaN(l.Multiplier) || math.IsInf(l.Multiplier, 0) || l.WindowDays < 0 {
			return TierPolicy{}, apperrors.NewInvalidConfigError(fmt.Sprintf("pricing.tiers.%s is invalid", strings.ToLower(string(t))))
		}
	}
	return TierPolicy{Levels: levels, PostEventDays: cfg.PostEventDays, Fallback: fallback}, nil
}

// TierQuery describes the event a voter grades.
type TierQuery struct {
	ItemID    string
	ItemName  string
	Subject   string
	Event     keydates.RankedDate
	EventDate time.Time
}

// TierVote is one source's grading. Confidence is within [0,1].
type TierVote struct {
	Source     string  `json:"source"`
	Tier       Tier    `json:"tier"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning,omitempty"`
}

// TierVoter grades events. ClassifyTier must honour ctx cancellation.
type TierVoter interface {
	ID() string
	ClassifyTier(ctx context.Context, q TierQuery) (TierVote, error)
}

// TierConsensus is the outcome of one voting pass.
type TierConsensus struct {
	Tier       Tier    `json:"tier"`
	Confidence float64 `json:"confidence"`

	// Consensus is true when at least two sources agreed on Tier.
	Consensus    bool                          `json:"consensus"`
	Votes        map[Tier]int                  `json:"votes"`
	Reasonings   []string                      `json:"reasonings,omitempty"`
	Responded    int                           `json:"responded"`
	SourceErrors map[string]keydates.ErrorKind `json:"source_errors,omitempty"`
}

// PricingWindow is the span in which a tier's markup applies: WindowDays
// before the event until PostEventDays after it, both ends inclusive.
type PricingWindow struct {
	EventDate  time.Time `json:"event_date"`
	Start      time.Time `json:"start"`
	End        time.Time `json:"end"`
	WindowDays int       `json:"window_days"`
}

// Contains reports whether today's calendar day lies inside the window.
func (w PricingWindow) Contains(today time.Time) bool {
	return DaysUntil(today, w.Start) <= 0 && DaysUntil(today, w.End) >= 0
}

// TierAdvice explains a tier-priced recommendation.
type TierAdvice struct {
	Consensus TierConsensus `json:"consensus"`
	Window    PricingWindow `json:"window"`
	InWindow  bool          `json:"in_window"`
}

// TierAdvisor asks every voter to grade an event concurrently and prices the
// item from the majority tier.
type TierAdvisor struct {
	voters           []TierVoter
	policy           TierPolicy
	perSourceTimeout time.Duration
	overallDeadline  time.Duration
	logger           logger.Logger
}

// NewTierAdvisor binds voters to a policy. A zero timeout disables that bound.
func NewTierAdvisor(voters []TierVoter, policy TierPolicy, perSourceTimeout, overallDeadline time.Duration, log logger.Logger) *TierAdvisor {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	if policy.Levels == nil {
		policy = DefaultTierPolicy()
	}
	return &TierAdvisor{
		voters:           voters,
		policy:           policy,
		perSourceTimeout: perSourceTimeout,
		overallDeadline:  overallDeadline,
		logger:           log,
	}
}

func (a *TierAdvisor) Policy() TierPolicy { return a.policy }

type tierResult struct {
	index int
	id    string
	vote  TierVote
	err   error
}

// Consensus collects votes until every voter answered or the overall deadline
// passed. Failed and late voters are recorded in SourceErrors and never fail
// the pass. With no usable vote the policy fallback applies at confidence 0.5.
func (a *TierAdvisor) Consensus(ctx context.Context, q TierQuery) TierConsensus {
	cons := TierConsensus{
		Votes:        make(map[Tier]int),
		SourceErrors: make(map[string]keydates.ErrorKind),
	}
	if len(a.voters) == 0 {
		return a.fallback(cons)
	}

	passCtx, cancel := withOptionalTimeout(ctx, a.overallDeadline)
	defer cancel()

	results := make(chan tierResult, len(a.voters))
	for i, v := range a.voters {
		go a.classify(passCtx, i, v, q, results)
	}

	var votes []TierVote
	reported := make([]bool, len(a.voters))
	received := 0
collect:
	for received < len(a.voters) {
		select {
		case r := <-results:
			received++
			if passCtx.Err() != nil {
				break collect
			}
			reported[r.index] = true
			if r.err != nil {
				kind := keydates.ClassifyError(r.err)
				cons.SourceErrors[r.id] = kind
				metrics.TierVotes.WithLabelValues(r.id, string(kind)).Inc()
				a.logger.WithError(r.err).Warn("tier vote failed", map[string]interface{}{
					"itemId": q.ItemID,
					"source": r.id,
					"kind":   string(kind),
				})
				continue
			}
			metrics.TierVotes.WithLabelValues(r.id, string(r.vote.Tier)).Inc()
			votes = append(votes, r.vote)
		case <-passCtx.Done():
			break collect
		}
	}
	for i, v := range a.voters {
		if !reported[i] {
			cons.SourceErrors[v.ID()] = keydates.ErrorTimeout
			metrics.TierVotes.WithLabelValues(v.ID(), string(keydates.ErrorTimeout)).Inc()
		}
	}

	if len(votes) == 0 {
		return a.fallback(cons)
	}
	tally(&cons, votes)

	a.logger.Debug("tier consensus", map[string]interface{}{
		"itemId":     q.ItemID,
		"event":      q.Event.Label,
		"tier":       string(cons.Tier),
		"votes":      len(votes),
		"consensus":  cons.Consensus,
		"confidence": cons.Confidence,
	})
	return cons
}

func (a *TierAdvisor) fallback(cons TierConsensus) TierConsensus {
	cons.Tier = a.policy.Fallback
	cons.Confidence = 0.5
	return cons
}

// tally picks the tier with most votes. Ties go to the higher mean confidence,
// then to the weaker tier.
func tally(cons *TierConsensus, votes []TierVote) {
	confidence := make(map[Tier][]float64)
	for _, v := range votes {
		cons.Votes[v.Tier]++
		confidence[v.Tier] = append(confidence[v.Tier], v.Confidence)
		if v.Reasoning != "" {
			cons.Reasonings = append(cons.Reasonings, v.Source+": "+v.Reasoning)
		}
	}
	cons.Responded = len(votes)

	best, bestMean := Tier(""), 0.0
	for _, t := range Tiers {
		n := cons.Votes[t]
		if n == 0 {
			continue
		}
		m := mean(confidence[t])
		if best == "" || n > cons.Votes[best] || (n == cons.Votes[best] && m > bestMean) {
			best, bestMean = t, m
		}
	}
	cons.Tier = best
	cons.Confidence = math.Round(bestMean*100) / 100
	cons.Consensus = cons.Votes[best] >= 2
}

func mean(xs []float64) float64 {
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func (a *TierAdvisor) classify(ctx context.Context, index int, v TierVoter, q TierQuery, out chan<- tierResult) {
	id := v.ID()
	res := tierResult{index: index, id: id}
	defer func() {
		if r := recover(); r != nil {
			res.err = apperrors.NewSourceTransportError(id, fmt.Errorf("panic: %v", r))
		}
		out <- res
	}()

	callCtx, cancel := withOptionalTimeout(ctx, a.perSourceTimeout)
	defer cancel()

	start := time.Now()
	res.vote, res.err = v.ClassifyTier(callCtx, q)
	if res.err == nil && a.perSourceTimeout > 0 && time.Since(start) > a.perSourceTimeout {
		res.err = apperrors.NewSourceTimeoutError(id, context.DeadlineExceeded)
	}
	if res.err == nil && res.vote.Tier.rank() < 0 {
		res.err = apperrors.NewSourceMalformedResponseError(id, fmt.Errorf("unknown tier %q", res.vote.Tier))
	}
	res.vote.Source = id
}

// Window places the markup span of tier around eventDate.
func (a *TierAdvisor) Window(eventDate time.Time, tier Tier) PricingWindow {
	level := a.policy.Levels[tier]
	return PricingWindow{
		EventDate:  eventDate,
		Start:      eventDate.AddDate(0, 0, -level.WindowDays),
		End:        eventDate.AddDate(0, 0, a.policy.PostEventDays),
		WindowDays: level.WindowDays,
	}
}

// Reprice replaces the proximity multiplier of rec with the consensus tier's
// markup while today is inside that tier's window, and with the default
// multiplier outside it. Recommendations without an event are returned as is.
func (a *TierAdvisor) Reprice(ctx context.Context, today time.Time, q TierQuery, rec Recommendation) (Recommendation, *TierAdvice) {
	if !rec.HasEvent {
		return rec, nil
	}
	q.Event = rec.Event
	q.EventDate = rec.EventDate

	cons := a.Consensus(ctx, q)
	advice := &TierAdvice{Consensus: cons, Window: a.Window(rec.EventDate, cons.Tier)}
	advice.InWindow = advice.Window.Contains(today)

	rec.Multiplier = DefaultMultiplier
	if advice.InWindow {
		rec.Multiplier = a.policy.Levels[cons.Tier].Multiplier
	}
	rec.NewPrice = ApplyMultiplier(rec.BasePrice, rec.Multiplier)
	return rec, advice
}

func withOptionalTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
