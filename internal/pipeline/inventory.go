// Package pipeline drives batch key-date discovery over the inventory and hands
// the ranked results to persistence and search collaborators.
package pipeline

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"datedriven/internal/keydates"
)

// InventoryItem is one row of the seller's inventory.
type InventoryItem struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Subject   string          `json:"subject,omitempty"`
	Context   string          `json:"context,omitempty"`
	SKU       string          `json:"sku,omitempty"`
	OfferID   string          `json:"offer_id,omitempty"`
	BasePrice decimal.Decimal `json:"base_price"`
}

// InventorySource lists the items a batch should process.
type InventorySource interface {
	ListItems(ctx context.Context) ([]InventoryItem, error)
}

// KeyDateStore reads back the ranked dates persisted for an item.
type KeyDateStore interface {
	LoadKeyDates(ctx context.Context, itemID string) ([]keydates.RankedDate, error)
}

// ResultSink receives every processed item. Sink failures are logged and counted
// but never abort a batch.
type ResultSink interface {
	Save(ctx context.Context, res ItemResult) error
}

// ItemResult is the outcome of one orchestration pass for one item.
type ItemResult struct {
	BatchID      string                        `json:"batch_id"`
	Item         InventoryItem                 `json:"item"`
	Subject      string                        `json:"subject"`
	KeyDates     []keydates.RankedDate         `json:"key_dates"`
	SourceErrors map[string]keydates.ErrorKind `json:"source_errors,omitempty"`
	Candidates   int                           `json:"candidates"`
	Duration     time.Duration                 `json:"duration"`
	ProcessedAt  time.Time                     `json:"processed_at"`
}
