package pricing

import (
	"time"

	"github.com/shopspring/decimal"

	"datedriven/internal/keydates"
)

// DaysUntil is the number of calendar days from today to event, measured in
// today's location. Negative once the event has passed.
func DaysUntil(today, event time.Time) int {
	loc := today.Location()
	ty, tm, td := today.Date()
	ey, em, ed := event.In(loc).Date()
	a := time.Date(ty, tm, td, 0, 0, 0, 0, time.UTC)
	b := time.Date(ey, em, ed, 0, 0, 0, 0, time.UTC)
	return int(b.Sub(a).Hours() / 24)
}

// ComputeMultiplier matches the days until nearestEventDate against rules.
func ComputeMultiplier(today, nearestEventDate time.Time, rules *RuleTable) float64 {
	if rules == nil {
		return DefaultMultiplier
	}
	return rules.Multiplier(DaysUntil(today, nearestEventDate))
}

// NextOccurrence places a recurring month/day on the calendar relative to today.
// The occurrence stays in today's year while it is no more than lookbackDays in
// the past, otherwise it rolls to next year. Feb 29 falls back to Feb 28 in
// common years.
func NextOccurrence(today time.Time, md keydates.MonthDay, lookbackDays int) time.Time {
	occ := occurrenceIn(today.Year(), md, today.Location())
	if DaysUntil(today, occ) < -lookbackDays {
		occ = occurrenceIn(today.Year()+1, md, today.Location())
	}
	return occ
}

func occurrenceIn(year int, md keydates.MonthDay, loc *time.Location) time.Time {
	day := md.Day
	if md.Month == time.February && day == 29 && !isLeap(year) {
		day = 28
	}
	return time.Date(year, md.Month, day, 0, 0, 0, 0, loc)
}

func isLeap(y int) bool {
	return y%4 == 0 && (y%100 != 0 || y%400 == 0)
}

// NearestEvent picks the closest upcoming event, or failing that the most
// recently passed one within lookbackDays. Only one event is ever chosen;
// multipliers never compound across events.
func NearestEvent(today time.Time, events []time.Time, lookbackDays int) (time.Time, bool) {
	var (
		upcoming, passed       time.Time
		upcomingDays, passDays int
		haveUpcoming, havePass bool
	)
	for _, ev := range events {
		d := DaysUntil(today, ev)
		switch {
		case d >= 0:
			if !haveUpcoming || d < upcomingDays {
				upcoming, upcomingDays, haveUpcoming = ev, d, true
			}
		case d >= -lookbackDays:
			if !havePass || d > passDays {
				passed, passDays, havePass = ev, d, true
			}
		}
	}
	if haveUpcoming {
		return upcoming, true
	}
	return passed, havePass
}

// Engine binds a rule table to the lookback policy used to resolve events.
type Engine struct {
	rules        *RuleTable
	lookbackDays int
}

func NewEngine(rules *RuleTable, lookbackDays int) *Engine {
	if rules == nil {
		rules = DefaultRuleTable()
	}
	if lookbackDays < 0 {
		lookbackDays = 0
	}
	return &Engine{rules: rules, lookbackDays: lookbackDays}
}

func (e *Engine) Rules() *RuleTable { return e.rules }

// Recommendation is the engine's answer for one item.
type Recommendation struct {
	Event      keydates.RankedDate `json:"event"`
	EventDate  time.Time           `json:"event_date"`
	DaysUntil  int                 `json:"days_until"`
	Multiplier float64             `json:"multiplier"`
	BasePrice  decimal.Decimal     `json:"base_price"`
	NewPrice   decimal.Decimal     `json:"new_price"`
	HasEvent   bool                `json:"has_event"`
}

// Recommend resolves the nearest of dates and prices basePrice against it. With
// no usable event the default multiplier applies and HasEvent is false.
func (e *Engine) Recommend(today time.Time, basePrice decimal.Decimal, dates []keydates.RankedDate) Recommendation {
	rec := Recommendation{
		Multiplier: DefaultMultiplier,
		BasePrice:  basePrice,
		NewPrice:   ApplyMultiplier(basePrice, DefaultMultiplier),
	}

	occurrences := make([]time.Time, len(dates))
	for i, d := range dates {
		occurrences[i] = NextOccurrence(today, d.Date, e.lookbackDays)
	}
	nearest, ok := NearestEvent(today, occurrences, e.lookbackDays)
	if !ok {
		return rec
	}
	for i, occ := range occurrences {
		if occ.Equal(nearest) {
			rec.Event = dates[i]
			break
		}
	}

	rec.HasEvent = true
	rec.EventDate = nearest
	rec.DaysUntil = DaysUntil(today, nearest)
	rec.Multiplier = e.rules.Multiplier(rec.DaysUntil)
	rec.NewPrice = ApplyMultiplier(basePrice, rec.Multiplier)
	return rec
}

// ApplyMultiplier scales price and rounds to cents.
func ApplyMultiplier(price decimal.Decimal, multiplier float64) decimal.Decimal {
	return price.Mul(decimal.NewFromFloat(multiplier)).Round(2)
}
