// internal/workers/pricing/compute-price-multiplier/models.go
package computepricemultiplier

import (
	"github.com/shopspring/decimal"

	"datedriven/internal/keydates"
)

// Input carries either the ranked dates themselves or an itemId whose stored
// dates should be loaded. Today defaults to the current date ("YYYY-MM-DD").
type Input struct {
	ItemID    string                `json:"itemId,omitempty"`
	BasePrice decimal.Decimal       `json:"basePrice"`
	KeyDates  []keydates.RankedDate `json:"keyDates,omitempty"`
	Today     string                `json:"today,omitempty"`
}

type Output struct {
	Multiplier float64         `json:"multiplier"`
	DaysUntil  int             `json:"daysUntil"`
	HasEvent   bool            `json:"hasEvent"`
	Event      string          `json:"event,omitempty"`
	EventDate  string          `json:"eventDate,omitempty"`
	BasePrice  decimal.Decimal `json:"basePrice"`
	NewPrice   decimal.Decimal `json:"newPrice"`
}
