package pipeline

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"datedriven/internal/common/database"
	apperrors "datedriven/internal/common/errors"
	"datedriven/internal/common/logger"
	"datedriven/internal/keydates"
)

// Schema creates the inventory and key-date tables.
const Schema = `
CREATE TABLE IF NOT EXISTS inventory_items (
    id          TEXT PRIMARY KEY,
    name        TEXT NOT NULL,
    subject     TEXT,
    context     TEXT,
    sku         TEXT,
    offer_id    TEXT,
    base_price  NUMERIC(12,2) NOT NULL DEFAULT 0,
    active      BOOLEAN NOT NULL DEFAULT TRUE,
    updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS item_key_dates (
    item_id          TEXT NOT NULL REFERENCES inventory_items(id) ON DELETE CASCADE,
    rank             INT NOT NULL,
    label            TEXT NOT NULL,
    canonical_label  TEXT NOT NULL,
    month            INT NOT NULL,
    day              INT NOT NULL,
    year             INT,
    support          INT NOT NULL,
    sources          TEXT[] NOT NULL,
    category         TEXT NOT NULL,
    batch_id         TEXT NOT NULL,
    found_at         TIMESTAMPTZ NOT NULL,
    PRIMARY KEY (item_id, rank)
);
`

// PostgresStore persists inventory rows and their ranked key dates.
type PostgresStore struct {
	db     *sql.DB
	logger logger.Logger
}

func NewPostgresStore(db *sql.DB, log logger.Logger) *PostgresStore {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &PostgresStore{db: db, logger: log}
}

func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

const listItemsQuery = `
SELECT id, name, COALESCE(subject, ''), COALESCE(context, ''), COALESCE(sku, ''),
       COALESCE(offer_id, ''), base_price
FROM inventory_items
WHERE active = TRUE
ORDER BY id`

// ListItems returns active inventory rows ordered by id.
func (s *PostgresStore) ListItems(ctx context.Context) ([]InventoryItem, error) {
	rows, err := s.db.QueryContext(ctx, listItemsQuery)
	if err != nil {
		return nil, apperrors.NewInventoryQueryFailedError(err)
	}
	defer rows.Close()

	var items []InventoryItem
	for rows.Next() {
		var it InventoryItem
		if err := rows.Scan(&it.ID, &it.Name, &it.Subject, &it.Context, &it.SKU, &it.OfferID, &it.BasePrice); err != nil {
			return nil, apperrors.NewInventoryQueryFailedError(err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInventoryQueryFailedError(err)
	}
	return items, nil
}

const upsertItemQuery = `
INSERT INTO inventory_items (id, name, subject, context, sku, offer_id, base_price, updated_at)
VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''), NULLIF($5, ''), NULLIF($6, ''), $7, NOW())
ON CONFLICT (id) DO UPDATE SET
    name = EXCLUDED.name,
    subject = EXCLUDED.subject,
    context = EXCLUDED.context,
    sku = EXCLUDED.sku,
    offer_id = EXCLUDED.offer_id,
    base_price = EXCLUDED.base_price,
    active = TRUE,
    updated_at = NOW()`

// UpsertItems imports inventory rows, e.g. from a seed file, in one transaction.
func (s *PostgresStore) UpsertItems(ctx context.Context, items []InventoryItem) error {
	return database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		for _, it := range items {
			_, err := tx.ExecContext(ctx, upsertItemQuery,
				it.ID, it.Name, it.Subject, it.Context, it.SKU, it.OfferID, it.BasePrice.StringFixed(2))
			if err != nil {
				return apperrors.NewKeyDatePersistFailedError(it.ID, err)
			}
		}
		return nil
	})
}

// ensureItemQuery registers items that were never imported so the key-date
// foreign key holds. Existing rows are left untouched.
const ensureItemQuery = `
INSERT INTO inventory_items (id, name, subject, context)
VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''))
ON CONFLICT (id) DO NOTHING`

const insertKeyDateQuery = `
INSERT INTO item_key_dates
    (item_id, rank, label, canonical_label, month, day, year, support, sources, category, batch_id, found_at)
VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, 0), $8, $9, $10, $11, $12)`

// Save replaces the stored key dates of res.Item with res.KeyDates.
func (s *PostgresStore) Save(ctx context.Context, res ItemResult) error {
	found := res.ProcessedAt
	if found.IsZero() {
		found = time.Now().UTC()
	}

	err := database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, ensureItemQuery,
			res.Item.ID, res.Item.Name, res.Item.Subject, res.Item.Context)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM item_key_dates WHERE item_id = $1`, res.Item.ID); err != nil {
			return err
		}
		for rank, d := range res.KeyDates {
			_, err := tx.ExecContext(ctx, insertKeyDateQuery,
				res.Item.ID, rank+1, d.Label, d.CanonicalLabel,
				int(d.Date.Month), d.Date.Day, d.Date.Year,
				d.Support, pq.Array(d.Sources), string(d.Category),
				res.BatchID, found,
			)
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return apperrors.NewKeyDatePersistFailedError(res.Item.ID, err)
	}

	s.logger.Debug("key dates stored", map[string]interface{}{
		"itemId":  res.Item.ID,
		"batchId": res.BatchID,
		"count":   len(res.KeyDates),
	})
	return nil
}

const loadKeyDatesQuery = `
SELECT label, canonical_label, month, day, COALESCE(year, 0), support, sources, category
FROM item_key_dates
WHERE item_id = $1
ORDER BY rank`

// LoadKeyDates returns the stored ranked dates of an item in rank order.
func (s *PostgresStore) LoadKeyDates(ctx context.Context, itemID string) ([]keydates.RankedDate, error) {
	rows, err := s.db.QueryContext(ctx, loadKeyDatesQuery, itemID)
	if err != nil {
		return nil, apperrors.NewInventoryQueryFailedError(err)
	}
	defer rows.Close()

	var out []keydates.RankedDate
	for rows.Next() {
		var (
			d        keydates.RankedDate
			month    int
			category string
		)
		if err := rows.Scan(&d.Label, &d.CanonicalLabel, &month, &d.Date.Day, &d.Date.Year,
			&d.Support, pq.Array(&d.Sources), &category); err != nil {
			return nil, apperrors.NewInventoryQueryFailedError(err)
		}
		d.Date.Month = time.Month(month)
		d.Category = keydates.ParseCategory(category)
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInventoryQueryFailedError(err)
	}
	return out, nil
}
