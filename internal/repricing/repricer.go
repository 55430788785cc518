// Package repricing applies the pricing engine to the whole inventory and pushes
// the resulting listing prices to the marketplace.
package repricing

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"datedriven/internal/common/logger"
	"datedriven/internal/common/metrics"
	"datedriven/internal/marketplace"
	"datedriven/internal/pipeline"
	"datedriven/internal/pricing"
)

// PriceUpdater is satisfied by *marketplace.EbayClient.
type PriceUpdater interface {
	BulkUpdatePrices(ctx context.Context, updates []marketplace.PriceUpdate) ([]marketplace.UpdateResult, error)
}

// Notifier delivers the finished report.
type Notifier interface {
	Notify(ctx context.Context, report *Report) error
}

type Options struct {
	Currency string
	// Location decides which calendar day "today" is.
	Location *time.Location
	// Tiers, when set, prices items with an event from the model tier vote
	// instead of the proximity table.
	Tiers    *pricing.TierAdvisor
}

// ItemPrice pairs an inventory item with the engine's recommendation.
type ItemPrice struct {
	Item           pipeline.InventoryItem `json:"item"`
	Recommendation pricing.Recommendation `json:"recommendation"`
	Tier           *pricing.TierAdvice    `json:"tier,omitempty"`
	Pushed         bool                   `json:"pushed"`
	Error          string                 `json:"error,omitempty"`
}

// Changed reports whether the recommended price differs from the base price.
func (p ItemPrice) Changed() bool {
	return !p.Recommendation.NewPrice.Equal(p.Item.BasePrice)
}

type Report struct {
	RunID    string      `json:"run_id"`
	Date     time.Time   `json:"date"`
	DryRun   bool        `json:"dry_run"`
	Prices   []ItemPrice `json:"prices"`
	Skipped  int         `json:"skipped"`
	Pushed   int         `json:"pushed"`
	Failed   int         `json:"failed"`
	Currency string      `json:"currency"`
}

// Active returns the recommendations whose multiplier is not the default.
func (r *Report) Active() []ItemPrice {
	var out []ItemPrice
	for _, p := range r.Prices {
		if p.Recommendation.Multiplier != pricing.DefaultMultiplier {
			out = append(out, p)
		}
	}
	return out
}

type Repricer struct {
	inventory pipeline.InventorySource
	store     pipeline.KeyDateStore
	engine    *pricing.Engine
	updater   PriceUpdater
	notifiers []Notifier
	opts      Options
	logger    logger.Logger
	now       func() time.Time
}

func NewRepricer(
	inventory pipeline.InventorySource,
	store pipeline.KeyDateStore,
	engine *pricing.Engine,
	updater PriceUpdater,
	notifiers []Notifier,
	opts Options,
	log logger.Logger,
) *Repricer {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Currency == "" {
		opts.Currency = marketplace.DefaultCurrency
	}
	return &Repricer{
		inventory: inventory,
		store:     store,
		engine:    engine,
		updater:   updater,
		notifiers: notifiers,
		opts:      opts,
		logger:    log,
		now:       time.Now,
	}
}

// Price computes recommendations without touching the marketplace. Items with
// no stored key dates are skipped.
func (r *Repricer) Price(ctx context.Context) (*Report, error) {
	today := r.now().In(r.opts.Location)
	report := &Report{
		RunID:    uuid.New().String(),
		Date:     today,
		Currency: r.opts.Currency,
	}

	items, err := r.inventory.ListItems(ctx)
	if err != nil {
		return report, err
	}

	for _, it := range items {
		dates, err := r.store.LoadKeyDates(ctx, it.ID)
		if err != nil {
			return report, err
		}
		if len(dates) == 0 {
			report.Skipped++
			continue
		}
		rec := r.engine.Recommend(today, it.BasePrice, dates)
		var advice *pricing.TierAdvice
		if r.opts.Tiers != nil {
			q := pricing.TierQuery{ItemID: it.ID, ItemName: it.Name, Subject: it.Subject}
			rec, advice = r.opts.Tiers.Reprice(ctx, today, q, rec)
		}
		metrics.PriceMultipliers.Observe(rec.Multiplier)
		report.Prices = append(report.Prices, ItemPrice{Item: it, Recommendation: rec, Tier: advice})
	}
	return report, nil
}

// Run prices the inventory, pushes every listed item's price and notifies.
// Items without a SKU or offer ID are priced but not pushed. Marketplace and
// notification failures are logged and reflected in the report; only inventory
// and key-date read failures abort the run.
func (r *Repricer) Run(ctx context.Context) (*Report, error) {
	report, err := r.Price(ctx)
	if err != nil {
		r.logger.WithError(err).Error("repricing failed", nil)
		return report, err
	}
	log := r.logger.With(map[string]interface{}{"runId": report.RunID})

	var updates []marketplace.PriceUpdate
	index := make(map[string]int)
	for i, p := range report.Prices {
		if p.Item.SKU == "" || p.Item.OfferID == "" {
			continue
		}
		key := p.Item.SKU + "/" + p.Item.OfferID
		// One offer has one price; later rows for the same offer are not pushed.
		if first, dup := index[key]; dup {
			report.Prices[i].Error = "duplicate offer, already priced by item " + report.Prices[first].Item.ID
			report.Failed++
			log.Warn("duplicate marketplace offer", map[string]interface{}{
				"itemId":  p.Item.ID,
				"firstId": report.Prices[first].Item.ID,
				"sku":     p.Item.SKU,
				"offerId": p.Item.OfferID,
			})
			continue
		}
		index[key] = i
		updates = append(updates, marketplace.PriceUpdate{
			SKU:      p.Item.SKU,
			OfferID:  p.Item.OfferID,
			Price:    p.Recommendation.NewPrice,
			Currency: r.opts.Currency,
		})
	}

	if r.updater != nil && len(updates) > 0 {
		results, err := r.updater.BulkUpdatePrices(ctx, updates)
		if err != nil {
			log.WithError(err).Error("marketplace update incomplete", nil)
		}
		for _, res := range results {
			i, ok := index[res.SKU+"/"+res.OfferID]
			if !ok || report.Prices[i].Pushed || report.Prices[i].Error != "" {
				continue
			}
			report.DryRun = report.DryRun || res.DryRun
			if res.OK() {
				report.Prices[i].Pushed = true
				report.Pushed++
			} else {
				report.Prices[i].Error = joinErrors(res.Errors)
				report.Failed++
			}
		}
		// Offers eBay never answered for count as failed.
		for _, u := range updates {
			i := index[u.SKU+"/"+u.OfferID]
			if !report.Prices[i].Pushed && report.Prices[i].Error == "" {
				report.Prices[i].Error = "no response from marketplace"
				report.Failed++
			}
		}
	}

	for _, n := range r.notifiers {
		if err := n.Notify(ctx, report); err != nil {
			log.WithError(err).Warn("repricing notification failed", nil)
		}
	}

	log.Info("repricing finished", map[string]interface{}{
		"priced":  len(report.Prices),
		"active":  len(report.Active()),
		"skipped": report.Skipped,
		"pushed":  report.Pushed,
		"failed":  report.Failed,
		"dryRun":  report.DryRun,
	})
	return report, nil
}

func joinErrors(errs []string) string {
	if len(errs) == 0 {
		return "rejected by marketplace"
	}
	return strings.Join(errs, "; ")
}

// TotalUplift is the sum of new minus base prices across the report.
func (r *Report) TotalUplift() decimal.Decimal {
	total := decimal.Zero
	for _, p := range r.Prices {
		total = total.Add(p.Recommendation.NewPrice.Sub(p.Item.BasePrice))
	}
	return total
}
