package pipeline

import (
	"context"
	"time"

	"github.com/elastic/go-elasticsearch/v8"

	"datedriven/internal/common/database"
	apperrors "datedriven/internal/common/errors"
	"datedriven/internal/keydates"
)

// DefaultIndex is used when no index name is configured.
const DefaultIndex = "item-key-dates"

// ElasticIndex makes ranked key dates searchable by label, source and date.
type ElasticIndex struct {
	client *elasticsearch.Client
	index  string
}

func NewElasticIndex(client *elasticsearch.Client, index string) *ElasticIndex {
	if index == "" {
		index = DefaultIndex
	}
	return &ElasticIndex{client: client, index: index}
}

type keyDateDocument struct {
	ItemID      string                        `json:"item_id"`
	ItemName    string                        `json:"item_name"`
	Subject     string                        `json:"subject"`
	SKU         string                        `json:"sku,omitempty"`
	BatchID     string                        `json:"batch_id"`
	KeyDates    []indexedDate                 `json:"key_dates"`
	Labels      []string                      `json:"labels"`
	Sources     map[string]keydates.ErrorKind `json:"source_errors,omitempty"`
	ProcessedAt time.Time                     `json:"processed_at"`
}

type indexedDate struct {
	Label    string            `json:"label"`
	Date     keydates.MonthDay `json:"date"`
	Display  string            `json:"display"`
	Month    int               `json:"month"`
	Day      int               `json:"day"`
	Support  int               `json:"support"`
	Sources  []string          `json:"sources"`
	Category string            `json:"category"`
}

// Save replaces the item's document with the latest ranking.
func (x *ElasticIndex) Save(ctx context.Context, res ItemResult) error {
	doc := keyDateDocument{
		ItemID:      res.Item.ID,
		ItemName:    res.Item.Name,
		Subject:     res.Subject,
		SKU:         res.Item.SKU,
		BatchID:     res.BatchID,
		KeyDates:    make([]indexedDate, 0, len(res.KeyDates)),
		Labels:      make([]string, 0, len(res.KeyDates)),
		Sources:     res.SourceErrors,
		ProcessedAt: res.ProcessedAt,
	}
	for _, d := range res.KeyDates {
		doc.KeyDates = append(doc.KeyDates, indexedDate{
			Label:    d.Label,
			Date:     d.Date,
			Display:  d.Date.String(),
			Month:    int(d.Date.Month),
			Day:      d.Date.Day,
			Support:  d.Support,
			Sources:  d.Sources,
			Category: string(d.Category),
		})
		doc.Labels = append(doc.Labels, d.Label)
	}

	if err := database.IndexDocument(ctx, x.client, x.index, res.Item.ID, doc); err != nil {
		return apperrors.NewIndexFailedError(res.Item.ID, err)
	}
	return nil
}
