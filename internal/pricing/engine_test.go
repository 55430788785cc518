package pricing

import (
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"datedriven/internal/keydates"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestComputeMultiplier_Scenarios(t *testing.T) {
	rules := DefaultRuleTable()
	event := day(2026, time.January, 17)

	assert.Equal(t, 1.25, ComputeMultiplier(day(2026, time.January, 10), event, rules))
	assert.Equal(t, 1.00, ComputeMultiplier(day(2026, time.January, 19), event, rules))
	assert.Equal(t, 1.20, ComputeMultiplier(day(2026, time.January, 17), event, rules))
	assert.Equal(t, DefaultMultiplier, ComputeMultiplier(day(2026, time.January, 10), event, nil))
}

func TestDaysUntil_IgnoresTimeOfDay(t *testing.T) {
	la, err := time.LoadLocation("America/Los_Angeles")
	require.NoError(t, err)

	today := time.Date(2026, time.January, 10, 23, 30, 0, 0, la)
	event := time.Date(2026, time.January, 17, 1, 0, 0, 0, la)
	assert.Equal(t, 7, DaysUntil(today, event))

	// Crossing a DST change still counts whole days.
	assert.Equal(t, 1, DaysUntil(time.Date(2026, time.March, 7, 12, 0, 0, 0, la), time.Date(2026, time.March, 8, 12, 0, 0, 0, la)))
}

func TestNextOccurrence(t *testing.T) {
	jan17 := keydates.MonthDay{Month: time.January, Day: 17}

	assert.Equal(t, day(2026, time.January, 17), NextOccurrence(day(2026, time.January, 10), jan17, 7))
	assert.Equal(t, day(2026, time.January, 17), NextOccurrence(day(2026, time.January, 19), jan17, 7), "within lookback")
	assert.Equal(t, day(2027, time.January, 17), NextOccurrence(day(2026, time.January, 30), jan17, 7), "rolled to next year")

	newYear := keydates.MonthDay{Month: time.January, Day: 1}
	assert.Equal(t, day(2027, time.January, 1), NextOccurrence(day(2026, time.December, 20), newYear, 7))

	leap := keydates.MonthDay{Month: time.February, Day: 29}
	assert.Equal(t, day(2026, time.February, 28), NextOccurrence(day(2026, time.February, 1), leap, 7))
	assert.Equal(t, day(2028, time.February, 29), NextOccurrence(day(2028, time.February, 1), leap, 7))
}

func TestNearestEvent(t *testing.T) {
	today := day(2026, time.January, 10)

	got, ok := NearestEvent(today, []time.Time{day(2026, time.March, 1), day(2026, time.January, 17), day(2026, time.January, 8)}, 7)
	require.True(t, ok)
	assert.Equal(t, day(2026, time.January, 17), got, "upcoming beats just-passed")

	got, ok = NearestEvent(today, []time.Time{day(2026, time.January, 8), day(2026, time.January, 5)}, 7)
	require.True(t, ok)
	assert.Equal(t, day(2026, time.January, 8), got)

	_, ok = NearestEvent(today, []time.Time{day(2025, time.December, 1)}, 7)
	assert.False(t, ok)

	_, ok = NearestEvent(today, nil, 7)
	assert.False(t, ok)
}

func TestEngine_Recommend(t *testing.T) {
	engine := NewEngine(DefaultRuleTable(), 7)
	base := decimal.RequireFromString("250.00")
	dates := []keydates.RankedDate{
		{Label: "Boxing Day", Date: keydates.MonthDay{Month: time.December, Day: 26}, Support: 1},
		{Label: "Ali Birthday", Date: keydates.MonthDay{Month: time.January, Day: 17}, Support: 2},
	}

	rec := engine.Recommend(day(2026, time.January, 10), base, dates)
	require.True(t, rec.HasEvent)
	assert.Equal(t, "Ali Birthday", rec.Event.Label)
	assert.Equal(t, 7, rec.DaysUntil)
	assert.Equal(t, 1.25, rec.Multiplier)
	assert.True(t, decimal.RequireFromString("312.50").Equal(rec.NewPrice), rec.NewPrice.String())

	passed := engine.Recommend(day(2026, time.January, 19), base, dates[1:])
	require.True(t, passed.HasEvent)
	assert.Equal(t, -2, passed.DaysUntil)
	assert.Equal(t, 1.00, passed.Multiplier)
	assert.True(t, base.Equal(passed.NewPrice))
}

func TestEngine_RecommendWithoutEvents(t *testing.T) {
	rec := NewEngine(nil, 7).Recommend(day(2026, time.January, 10), decimal.NewFromInt(100), nil)
	assert.False(t, rec.HasEvent)
	assert.Equal(t, DefaultMultiplier, rec.Multiplier)
	assert.True(t, decimal.NewFromInt(100).Equal(rec.NewPrice))
}

func TestApplyMultiplier_RoundsToCents(t *testing.T) {
	got := ApplyMultiplier(decimal.RequireFromString("19.99"), 1.15)
	assert.Equal(t, "22.99", got.StringFixed(2))
}
