// Package marketplace pushes recomputed listing prices to eBay.
package marketplace

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/oauth2"

	"datedriven/internal/common/config"
	apperrors "datedriven/internal/common/errors"
	commonhttp "datedriven/internal/common/http"
	"datedriven/internal/common/logger"
	"datedriven/internal/common/metrics"
)

const (
	DefaultBaseURL  = "https://api.ebay.com/sell/inventory/v1"
	DefaultTokenURL = "https://api.ebay.com/identity/v1/oauth2/token"
	// MaxBatchSize is the most offers bulk_update_price_quantity accepts per call.
	MaxBatchSize    = 25
	DefaultCurrency = "USD"
)

var Scopes = []string{
	"https://api.ebay.com/oauth/api_scope",
	"https://api.ebay.com/oauth/api_scope/sell.inventory",
}

// PriceUpdate is one offer's new price.
type PriceUpdate struct {
	SKU      string          `json:"sku"`
	OfferID  string          `json:"offer_id"`
	Price    decimal.Decimal `json:"price"`
	Currency string          `json:"currency"`
}

// UpdateResult is eBay's per-offer answer. StatusCode is zero for dry runs.
type UpdateResult struct {
	SKU        string   `json:"sku"`
	OfferID    string   `json:"offer_id"`
	StatusCode int      `json:"status_code"`
	Errors     []string `json:"errors,omitempty"`
	DryRun     bool     `json:"dry_run,omitempty"`
}

func (r UpdateResult) OK() bool {
	return r.DryRun || (r.StatusCode >= 200 && r.StatusCode < 300)
}

// EbayClient talks to the Sell Inventory API using a long-lived refresh token.
type EbayClient struct {
	http      *commonhttp.Client
	baseURL   string
	batchSize int
	dryRun    bool
	logger    logger.Logger
}

// NewEbayClient builds a client whose transport refreshes the access token on
// demand. Credentials are only required when DryRun is off.
func NewEbayClient(cfg config.MarketplaceConfig, log logger.Logger) (*EbayClient, error) {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	if !cfg.DryRun && (cfg.ClientID == "" || cfg.ClientSecret == "" || cfg.RefreshToken == "") {
		return nil, apperrors.NewInvalidConfigError("marketplace client_id, client_secret and refresh_token are required unless dry_run is set")
	}

	tokenURL := cfg.TokenURL
	if tokenURL == "" {
		tokenURL = DefaultTokenURL
	}
	oauthCfg := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Endpoint: oauth2.Endpoint{
			TokenURL:  tokenURL,
			AuthStyle: oauth2.AuthStyleInHeader,
		},
		Scopes: Scopes,
	}
	hc := oauthCfg.Client(context.Background(), &oauth2.Token{RefreshToken: cfg.RefreshToken})
	hc.Timeout = config.GetDuration(cfg.Timeout)

	return newEbayClient(commonhttp.NewClientFrom(hc), cfg, log), nil
}

func newEbayClient(client *commonhttp.Client, cfg config.MarketplaceConfig, log logger.Logger) *EbayClient {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	size := cfg.BatchSize
	if size <= 0 || size > MaxBatchSize {
		size = MaxBatchSize
	}
	return &EbayClient{
		http:      client,
		baseURL:   baseURL,
		batchSize: size,
		dryRun:    cfg.DryRun,
		logger:    log,
	}
}

func (c *EbayClient) DryRun() bool { return c.dryRun }

type bulkRequest struct {
	Requests []bulkItem `json:"requests"`
}

type bulkItem struct {
	SKU    string      `json:"sku"`
	Offers []bulkOffer `json:"offers"`
}

type bulkOffer struct {
	OfferID string `json:"offerId"`
	Price   amount `json:"price"`
}

type amount struct {
	Currency string `json:"currency"`
	Value    string `json:"value"`
}

type bulkResponse struct {
	Responses []struct {
		StatusCode int    `json:"statusCode"`
		SKU        string `json:"sku"`
		OfferID    string `json:"offerId"`
		Errors     []struct {
			ErrorID int    `json:"errorId"`
			Message string `json:"message"`
		} `json:"errors"`
	} `json:"responses"`
}

// BulkUpdatePrices sends updates in batches. A failed batch does not stop the
// remaining ones; the returned error joins every batch failure.
func (c *EbayClient) BulkUpdatePrices(ctx context.Context, updates []PriceUpdate) ([]UpdateResult, error) {
	if len(updates) == 0 {
		return nil, nil
	}

	if c.dryRun {
		results := make([]UpdateResult, 0, len(updates))
		for _, u := range updates {
			c.logger.Info("dry run: price not sent", map[string]interface{}{
				"sku":     u.SKU,
				"offerId": u.OfferID,
				"price":   u.Price.StringFixed(2),
			})
			results = append(results, UpdateResult{SKU: u.SKU, OfferID: u.OfferID, DryRun: true})
		}
		metrics.PriceUpdates.WithLabelValues("dry_run").Add(float64(len(updates)))
		return results, nil
	}

	var (
		results []UpdateResult
		errs    []error
	)
	for start := 0; start < len(updates); start += c.batchSize {
		end := start + c.batchSize
		if end > len(updates) {
			end = len(updates)
		}
		batch := updates[start:end]

		res, err := c.sendBatch(ctx, batch)
		if err != nil {
			metrics.PriceUpdates.WithLabelValues("failed").Add(float64(len(batch)))
			c.logger.Error("price batch failed", map[string]interface{}{
				"offset": start,
				"size":   len(batch),
				"error":  err.Error(),
			})
			errs = append(errs, err)
			if errors.Is(err, apperrors.ErrMarketplaceAuth) {
				break
			}
			continue
		}
		for _, r := range res {
			if r.OK() {
				metrics.PriceUpdates.WithLabelValues("updated").Inc()
			} else {
				metrics.PriceUpdates.WithLabelValues("rejected").Inc()
			}
		}
		results = append(results, res...)
	}
	return results, errors.Join(errs...)
}

func (c *EbayClient) sendBatch(ctx context.Context, batch []PriceUpdate) ([]UpdateResult, error) {
	req := bulkRequest{Requests: make([]bulkItem, 0, len(batch))}
	for _, u := range batch {
		currency := u.Currency
		if currency == "" {
			currency = DefaultCurrency
		}
		req.Requests = append(req.Requests, bulkItem{
			SKU: u.SKU,
			Offers: []bulkOffer{{
				OfferID: u.OfferID,
				Price:   amount{Currency: currency, Value: u.Price.StringFixed(2)},
			}},
		})
	}

	var resp bulkResponse
	err := c.http.DoJSON(ctx, http.MethodPost, c.baseURL+"/bulk_update_price_quantity", nil, req, &resp)
	if err != nil {
		var rerr *oauth2.RetrieveError
		var serr *commonhttp.StatusError
		if errors.As(err, &rerr) || (errors.As(err, &serr) && serr.StatusCode == http.StatusUnauthorized) {
			return nil, apperrors.NewMarketplaceAuthError(err)
		}
		return nil, apperrors.NewPriceUpdateFailedError(fmt.Errorf("batch of %d: %w", len(batch), err))
	}

	out := make([]UpdateResult, 0, len(resp.Responses))
	for _, r := range resp.Responses {
		res := UpdateResult{SKU: r.SKU, OfferID: r.OfferID, StatusCode: r.StatusCode}
		for _, e := range r.Errors {
			res.Errors = append(res.Errors, fmt.Sprintf("%d: %s", e.ErrorID, e.Message))
		}
		out = append(out, res)
	}
	return out, nil
}
