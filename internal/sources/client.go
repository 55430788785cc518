package sources

import (
	"context"
	"errors"
	"net"
	"time"

	"datedriven/internal/common/config"
	apperrors "datedriven/internal/common/errors"
	httpclient "datedriven/internal/common/http"
)

// base carries what every backend shares: identity, endpoint settings and the
// HTTP client.
type base struct {
	id   string
	cfg  config.SourceConfig
	http *httpclient.Client
}

func newBase(id string, cfg config.SourceConfig, client *httpclient.Client) base {
	if client == nil {
		client = httpclient.NewClient(60 * time.Second)
	}
	return base{id: id, cfg: cfg, http: client}
}

func (b base) ID() string { return b.id }

// classify wraps a request error in the source error taxonomy.
func (b base) classify(err error) error {
	var netErr net.Error
	switch {
	case errors.Is(err, httpclient.ErrDecode):
		return apperrors.NewSourceMalformedResponseError(b.id, err)
	case errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled),
		errors.As(err, &netErr) && netErr.Timeout():
		return apperrors.NewSourceTimeoutError(b.id, err)
	default:
		return apperrors.NewSourceTransportError(b.id, err)
	}
}

func (b base) requireKey() error {
	if b.cfg.APIKey == "" {
		return apperrors.NewSourceNotConfiguredError(b.id)
	}
	return nil
}
