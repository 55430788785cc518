package repricing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"datedriven/internal/common/logger"
	"datedriven/internal/keydates"
	"datedriven/internal/marketplace"
	"datedriven/internal/pipeline"
	"datedriven/internal/pricing"
)

type stubInventory []pipeline.InventoryItem

func (s stubInventory) ListItems(context.Context) ([]pipeline.InventoryItem, error) { return s, nil }

type stubStore map[string][]keydates.RankedDate

func (s stubStore) LoadKeyDates(_ context.Context, id string) ([]keydates.RankedDate, error) {
	return s[id], nil
}

type stubUpdater struct {
	got     []marketplace.PriceUpdate
	results []marketplace.UpdateResult
	err     error
}

func (s *stubUpdater) BulkUpdatePrices(_ context.Context, u []marketplace.PriceUpdate) ([]marketplace.UpdateResult, error) {
	s.got = u
	if s.results != nil || s.err != nil {
		return s.results, s.err
	}
	out := make([]marketplace.UpdateResult, len(u))
	for i, x := range u {
		out[i] = marketplace.UpdateResult{SKU: x.SKU, OfferID: x.OfferID, StatusCode: 200}
	}
	return out, nil
}

type stubNotifier struct {
	reports []*Report
	err     error
}

func (s *stubNotifier) Notify(_ context.Context, r *Report) error {
	s.reports = append(s.reports, r)
	return s.err
}

func day(m time.Month, d int) keydates.MonthDay { return keydates.MonthDay{Month: m, Day: d} }

func fixture() (stubInventory, stubStore) {
	inv := stubInventory{
		{ID: "ali", Name: "Muhammad Ali", SKU: "SKU-ALI", OfferID: "OFF-ALI", BasePrice: decimal.NewFromInt(300)},
		{ID: "hope", Name: "Hope", SKU: "SKU-HOPE", OfferID: "OFF-HOPE", BasePrice: decimal.NewFromInt(100)},
		{ID: "peace", Name: "Peace", BasePrice: decimal.NewFromInt(80)},
		{ID: "bare", Name: "Untitled", SKU: "SKU-BARE", OfferID: "OFF-BARE", BasePrice: decimal.NewFromInt(50)},
	}
	store := stubStore{
		"ali":   {{Label: "Muhammad Ali Birthday", Date: day(time.January, 17), Support: 3}},
		"hope":  {{Label: "Inauguration Day", Date: day(time.January, 20), Support: 2}},
		"peace": {{Label: "Epiphany", Date: day(time.January, 6), Support: 1}},
	}
	return inv, store
}

func newTestRepricer(t *testing.T, updater PriceUpdater, notifiers ...Notifier) *Repricer {
	inv, store := fixture()
	r := NewRepricer(inv, store, pricing.NewEngine(pricing.DefaultRuleTable(), 7), updater, notifiers, Options{}, logger.NewTestLogger(t))
	r.now = func() time.Time { return time.Date(2026, time.January, 10, 15, 0, 0, 0, time.UTC) }
	return r
}

func TestRepricer_Price(t *testing.T) {
	r := newTestRepricer(t, nil)

	report, err := r.Price(context.Background())
	require.NoError(t, err)

	require.Len(t, report.Prices, 3)
	assert.Equal(t, 1, report.Skipped)

	ali := report.Prices[0]
	assert.Equal(t, 7, ali.Recommendation.DaysUntil)
	assert.Equal(t, 1.25, ali.Recommendation.Multiplier)
	assert.Equal(t, "375.00", ali.Recommendation.NewPrice.StringFixed(2))
	assert.True(t, ali.Changed())

	peace := report.Prices[2]
	assert.Equal(t, -4, peace.Recommendation.DaysUntil)
	assert.Equal(t, pricing.DefaultMultiplier, peace.Recommendation.Multiplier)
	assert.False(t, peace.Changed())
	assert.Len(t, report.Active(), 2)
}

func TestRepricer_RunPushesListedItems(t *testing.T) {
	updater := &stubUpdater{}
	notifier := &stubNotifier{err: errors.New("smtp down")}
	r := newTestRepricer(t, updater, notifier)

	report, err := r.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, updater.got, 2)
	assert.Equal(t, "SKU-ALI", updater.got[0].SKU)
	assert.Equal(t, "USD", updater.got[0].Currency)
	assert.Equal(t, 2, report.Pushed)
	assert.Zero(t, report.Failed)
	assert.True(t, report.Prices[0].Pushed)
	assert.False(t, report.Prices[2].Pushed)
	require.Len(t, notifier.reports, 1)
	assert.Same(t, report, notifier.reports[0])
}

func TestRepricer_RunRecordsMarketplaceFailures(t *testing.T) {
	updater := &stubUpdater{
		results: []marketplace.UpdateResult{
			{SKU: "SKU-ALI", OfferID: "OFF-ALI", StatusCode: 400, Errors: []string{"25002: invalid price"}},
		},
		err: errors.New("batch failed"),
	}
	r := newTestRepricer(t, updater)

	report, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, report.Pushed)
	assert.Equal(t, 2, report.Failed)
	assert.Equal(t, "25002: invalid price", report.Prices[0].Error)
	assert.Equal(t, "no response from marketplace", report.Prices[1].Error)
}

func TestRepricer_RunSkipsDuplicateOffers(t *testing.T) {
	inv := stubInventory{
		{ID: "ali", Name: "Muhammad Ali", SKU: "SKU-ALI", OfferID: "OFF-ALI", BasePrice: decimal.NewFromInt(300)},
		{ID: "ali-copy", Name: "Muhammad Ali (reprint)", SKU: "SKU-ALI", OfferID: "OFF-ALI", BasePrice: decimal.NewFromInt(90)},
	}
	store := stubStore{
		"ali":      {{Label: "Muhammad Ali Birthday", Date: day(time.January, 17), Support: 3}},
		"ali-copy": {{Label: "Muhammad Ali Birthday", Date: day(time.January, 17), Support: 3}},
	}
	updater := &stubUpdater{}
	r := NewRepricer(inv, store, pricing.NewEngine(pricing.DefaultRuleTable(), 7), updater, nil, Options{}, logger.NewTestLogger(t))
	r.now = func() time.Time { return time.Date(2026, time.January, 10, 15, 0, 0, 0, time.UTC) }

	report, err := r.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, updater.got, 1)
	assert.Equal(t, "375.00", updater.got[0].Price.StringFixed(2))
	assert.Equal(t, 1, report.Pushed)
	assert.Equal(t, 1, report.Failed)
	assert.True(t, report.Prices[0].Pushed)
	assert.False(t, report.Prices[1].Pushed)
	assert.Contains(t, report.Prices[1].Error, "duplicate offer")
}

func TestRepricer_RunIgnoresRepeatedResults(t *testing.T) {
	updater := &stubUpdater{
		results: []marketplace.UpdateResult{
			{SKU: "SKU-ALI", OfferID: "OFF-ALI", StatusCode: 200},
			{SKU: "SKU-ALI", OfferID: "OFF-ALI", StatusCode: 500, Errors: []string{"internal"}},
			{SKU: "SKU-HOPE", OfferID: "OFF-HOPE", StatusCode: 200},
		},
	}
	r := newTestRepricer(t, updater)

	report, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, report.Pushed)
	assert.Zero(t, report.Failed)
	assert.Empty(t, report.Prices[0].Error)
}

type peakVoter struct{}

func (peakVoter) ID() string { return "claude" }

func (peakVoter) ClassifyTier(context.Context, pricing.TierQuery) (pricing.TierVote, error) {
	return pricing.TierVote{Tier: pricing.TierPeak, Confidence: 0.9}, nil
}

func TestRepricer_PriceWithTierAdvisor(t *testing.T) {
	inv, store := fixture()
	advisor := pricing.NewTierAdvisor([]pricing.TierVoter{peakVoter{}}, pricing.DefaultTierPolicy(), time.Second, time.Second, logger.NewNoOpLogger())
	r := NewRepricer(inv, store, pricing.NewEngine(pricing.DefaultRuleTable(), 7), nil, nil, Options{Tiers: advisor}, logger.NewTestLogger(t))
	r.now = func() time.Time { return time.Date(2026, time.January, 10, 15, 0, 0, 0, time.UTC) }

	report, err := r.Price(context.Background())
	require.NoError(t, err)
	require.Len(t, report.Prices, 3)

	ali := report.Prices[0]
	require.NotNil(t, ali.Tier)
	assert.Equal(t, pricing.TierPeak, ali.Tier.Consensus.Tier)
	assert.True(t, ali.Tier.InWindow)
	assert.Equal(t, 1.35, ali.Recommendation.Multiplier)
	assert.Equal(t, "405.00", ali.Recommendation.NewPrice.StringFixed(2))

	// Epiphany's window closed on Jan 8, two days after the event.
	peace := report.Prices[2]
	require.NotNil(t, peace.Tier)
	assert.False(t, peace.Tier.InWindow)
	assert.Equal(t, pricing.DefaultMultiplier, peace.Recommendation.Multiplier)
}

func TestReport_TotalUplift(t *testing.T) {
	r := newTestRepricer(t, nil)
	report, err := r.Price(context.Background())
	require.NoError(t, err)
	// ali +75.00, hope 10 days out at 1.25 +25.00, peace just passed.
	assert.Equal(t, "100.00", report.TotalUplift().StringFixed(2))
}
