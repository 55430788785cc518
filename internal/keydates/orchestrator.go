package keydates

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	apperrors "datedriven/internal/common/errors"
	"datedriven/internal/common/logger"
	"datedriven/internal/common/metrics"
)

// Orchestrator fans a single item out to every source concurrently and gathers
// whatever arrives before the overall deadline.
type Orchestrator struct {
	logger          logger.Logger
	contextProvider ContextProvider
	contextMaxChars int
	tracer          trace.Tracer
}

type Option func(*Orchestrator)

// WithContextProvider fills Item.Context from p when the caller left it empty.
func WithContextProvider(p ContextProvider, maxChars int) Option {
	return func(o *Orchestrator) {
		o.contextProvider = p
		o.contextMaxChars = maxChars
	}
}

func NewOrchestrator(log logger.Logger, opts ...Option) *Orchestrator {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	o := &Orchestrator{
		logger: log,
		tracer: otel.Tracer("datedriven/keydates"),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

type sourceResult struct {
	index      int
	id         string
	candidates []Candidate
	err        error
}

// FindDates queries all sources in parallel. Each source gets perSourceTimeout;
// the pass as a whole ends at overallDeadline, after which sources still running
// are recorded as timed out and their late answers discarded. A zero duration
// disables the corresponding bound.
//
// Source failures never fail the call: they are reported in the returned map,
// keyed by source ID. An empty candidate list is a valid result.
func (o *Orchestrator) FindDates(ctx context.Context, item Item, sources []SourceClient, perSourceTimeout, overallDeadline time.Duration) ([]Candidate, map[string]ErrorKind) {
	sourceErrors := make(map[string]ErrorKind)
	candidates := []Candidate{}
	if len(sources) == 0 {
		return candidates, sourceErrors
	}

	start := time.Now()
	defer func() { metrics.OrchestrationDuration.Observe(time.Since(start).Seconds()) }()

	ctx, span := o.tracer.Start(ctx, "keydates.FindDates", trace.WithAttributes(
		attribute.String("item.id", item.ID),
		attribute.Int("sources", len(sources)),
	))
	defer span.End()

	passCtx, cancel := withOptionalTimeout(ctx, overallDeadline)
	defer cancel()

	item = o.enrich(passCtx, item, perSourceTimeout)

	// Buffered so stragglers can always deliver and exit after we stop reading.
	results := make(chan sourceResult, len(sources))
	for i, src := range sources {
		go o.query(passCtx, i, src, item, perSourceTimeout, results)
	}

	reported := make([]bool, len(sources))
	received := 0
collect:
	for received < len(sources) {
		select {
		case r := <-results:
			received++
			if passCtx.Err() != nil {
				// Raced with the deadline; treat as late.
				break collect
			}
			reported[r.index] = true
			if r.err != nil {
				kind := ClassifyError(r.err)
				sourceErrors[r.id] = kind
				metrics.SourceCalls.WithLabelValues(r.id, string(kind)).Inc()
				o.logger.Warn("source query failed", map[string]interface{}{
					"itemId": item.ID,
					"source": r.id,
					"kind":   string(kind),
					"error":  r.err,
				})
				continue
			}
			metrics.SourceCalls.WithLabelValues(r.id, "ok").Inc()
			for _, c := range r.candidates {
				c.Source = r.id
				if c.Category == "" {
					c.Category = CategoryOther
				}
				if !c.valid() {
					continue
				}
				candidates = append(candidates, c)
			}
		case <-passCtx.Done():
			break collect
		}
	}

	for i, src := range sources {
		if !reported[i] {
			sourceErrors[src.ID()] = ErrorTimeout
			metrics.SourceCalls.WithLabelValues(src.ID(), string(ErrorTimeout)).Inc()
			o.logger.Warn("source missed the overall deadline", map[string]interface{}{
				"itemId": item.ID,
				"source": src.ID(),
			})
		}
	}

	span.SetAttributes(
		attribute.Int("candidates", len(candidates)),
		attribute.Int("source_errors", len(sourceErrors)),
	)
	if len(sourceErrors) == len(sources) {
		span.SetStatus(codes.Error, "all sources failed")
	}

	o.logger.Info("key date fan-out complete", map[string]interface{}{
		"itemId":       item.ID,
		"sources":      len(sources),
		"candidates":   len(candidates),
		"sourceErrors": len(sourceErrors),
		"durationMs":   time.Since(start).Milliseconds(),
	})
	return candidates, sourceErrors
}

func (o *Orchestrator) query(ctx context.Context, index int, src SourceClient, item Item, timeout time.Duration, out chan<- sourceResult) {
	id := src.ID()
	res := sourceResult{index: index, id: id}
	defer func() {
		if r := recover(); r != nil {
			res.candidates = nil
			res.err = apperrors.NewSourceTransportError(id, fmt.Errorf("panic: %v", r))
		}
		out <- res
	}()

	callCtx, cancel := withOptionalTimeout(ctx, timeout)
	defer cancel()

	callCtx, span := o.tracer.Start(callCtx, "keydates.source.Query", trace.WithAttributes(
		attribute.String("source", id),
	))
	defer span.End()

	start := time.Now()
	res.candidates, res.err = src.Query(callCtx, item)
	elapsed := time.Since(start)
	metrics.SourceLatency.WithLabelValues(id).Observe(elapsed.Seconds())

	// A source that ignores cancellation and answers late is still a timeout.
	if res.err == nil && timeout > 0 && elapsed > timeout {
		res.candidates = nil
		res.err = apperrors.NewSourceTimeoutError(id, context.DeadlineExceeded)
	}
	if res.err != nil {
		span.RecordError(res.err)
		span.SetStatus(codes.Error, res.err.Error())
	}
}

// enrich fills an empty Item.Context from the context provider. Failures are
// logged and ignored.
func (o *Orchestrator) enrich(ctx context.Context, item Item, timeout time.Duration) Item {
	if o.contextProvider == nil || item.Context != "" || item.Subject == "" {
		return item
	}
	ctx, cancel := withOptionalTimeout(ctx, timeout)
	defer cancel()
	summary, err := o.contextProvider.Summary(ctx, item.Subject)
	if err != nil {
		o.logger.Debug("context lookup failed", map[string]interface{}{
			"itemId":  item.ID,
			"subject": item.Subject,
			"error":   err,
		})
		return item
	}
	if o.contextMaxChars > 0 && len([]rune(summary)) > o.contextMaxChars {
		summary = string([]rune(summary)[:o.contextMaxChars])
	}
	item.Context = summary
	return item
}

func withOptionalTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
