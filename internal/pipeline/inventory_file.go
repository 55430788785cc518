package pipeline

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	apperrors "datedriven/internal/common/errors"
)

// FileInventory reads items from a YAML document of the form
//
//	items:
//	  - id: SF-001
//	    name: "Shepard Fairey Muhammad Ali Signed Print 2016"
//	    base_price: 300
type FileInventory struct {
	path string
}

func NewFileInventory(path string) *FileInventory {
	return &FileInventory{path: path}
}

type inventoryFile struct {
	Items []fileItem `yaml:"items"`
}

type fileItem struct {
	ID        string    `yaml:"id"`
	Name      string    `yaml:"name"`
	Subject   string    `yaml:"subject"`
	Context   string    `yaml:"context"`
	SKU       string    `yaml:"sku"`
	OfferID   string    `yaml:"offer_id"`
	BasePrice yaml.Node `yaml:"base_price"`
}

func (f *FileInventory) ListItems(ctx context.Context) ([]InventoryItem, error) {
	raw, err := os.ReadFile(f.path)
	if err != nil {
		return nil, apperrors.NewInventoryQueryFailedError(err)
	}
	return ParseInventory(raw)
}

// ParseInventory decodes an inventory YAML document. Every item needs an id and
// a name; base_price defaults to zero.
func ParseInventory(raw []byte) ([]InventoryItem, error) {
	var doc inventoryFile
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, apperrors.NewInventoryQueryFailedError(fmt.Errorf("parse inventory: %w", err))
	}

	items := make([]InventoryItem, 0, len(doc.Items))
	seen := make(map[string]bool, len(doc.Items))
	for i, it := range doc.Items {
		if strings.TrimSpace(it.ID) == "" || strings.TrimSpace(it.Name) == "" {
			return nil, apperrors.NewInventoryQueryFailedError(fmt.Errorf("item %d: id and name are required", i))
		}
		if seen[it.ID] {
			return nil, apperrors.NewInventoryQueryFailedError(fmt.Errorf("item %d: duplicate id %q", i, it.ID))
		}
		seen[it.ID] = true

		price := decimal.Zero
		if it.BasePrice.Kind == yaml.ScalarNode && it.BasePrice.Value != "" {
			p, err := decimal.NewFromString(it.BasePrice.Value)
			if err != nil {
				return nil, apperrors.NewInventoryQueryFailedError(fmt.Errorf("item %s: base_price: %w", it.ID, err))
			}
			price = p
		}

		items = append(items, InventoryItem{
			ID:        it.ID,
			Name:      it.Name,
			Subject:   it.Subject,
			Context:   it.Context,
			SKU:       it.SKU,
			OfferID:   it.OfferID,
			BasePrice: price,
		})
	}
	return items, nil
}
