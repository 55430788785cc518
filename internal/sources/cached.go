package sources

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/redis/go-redis/v9"

	"datedriven/internal/common/database"
	"datedriven/internal/common/logger"
	"datedriven/internal/keydates"
)

// CachedSource memoises successful answers of another source in Redis. Cache
// failures are logged and bypassed; they never fail a query.
type CachedSource struct {
	inner  keydates.SourceClient
	rdb    *redis.Client
	ttl    time.Duration
	logger logger.Logger
}

func NewCachedSource(inner keydates.SourceClient, rdb *redis.Client, ttl time.Duration, log logger.Logger) *CachedSource {
	return &CachedSource{inner: inner, rdb: rdb, ttl: ttl, logger: log}
}

func (c *CachedSource) ID() string { return c.inner.ID() }

func (c *CachedSource) Query(ctx context.Context, item keydates.Item) ([]keydates.Candidate, error) {
	key := c.cacheKey(item)

	var cached []keydates.Candidate
	found, err := database.GetJSON(ctx, c.rdb, key, &cached)
	if err != nil {
		c.logger.WithError(err).Warn("source cache read failed", map[string]interface{}{"source": c.ID()})
	}
	if found {
		c.logger.Debug("source cache hit", map[string]interface{}{"source": c.ID(), "itemId": item.ID})
		return cached, nil
	}

	cands, err := c.inner.Query(ctx, item)
	if err != nil {
		return nil, err
	}
	if cands == nil {
		cands = []keydates.Candidate{}
	}
	if err := database.SetJSON(ctx, c.rdb, key, cands, c.ttl); err != nil {
		c.logger.WithError(err).Warn("source cache write failed", map[string]interface{}{"source": c.ID()})
	}
	return cands, nil
}

// Summary implements keydates.ContextProvider when the wrapped source does, so
// context lookups share the Redis cache with queries. Other sources yield "".
func (c *CachedSource) Summary(ctx context.Context, subject string) (string, error) {
	provider, ok := c.inner.(keydates.ContextProvider)
	if !ok {
		return "", nil
	}
	key := "keydates:summary:" + c.ID() + ":" + digest(subject)

	var cached string
	found, err := database.GetJSON(ctx, c.rdb, key, &cached)
	if err != nil {
		c.logger.WithError(err).Warn("summary cache read failed", map[string]interface{}{"source": c.ID()})
	}
	if found {
		return cached, nil
	}

	summary, err := provider.Summary(ctx, subject)
	if err != nil {
		return "", err
	}
	if err := database.SetJSON(ctx, c.rdb, key, summary, c.ttl); err != nil {
		c.logger.WithError(err).Warn("summary cache write failed", map[string]interface{}{"source": c.ID()})
	}
	return summary, nil
}

func (c *CachedSource) cacheKey(item keydates.Item) string {
	return "keydates:source:" + c.ID() + ":" + digest(item.Name, item.Subject, item.Context)
}

func digest(parts ...string) string {
	h := sha256.New()
	for _, part := range parts {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))[:32]
}
