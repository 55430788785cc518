package sources

import (
	"time"

	"github.com/redis/go-redis/v9"

	"datedriven/internal/common/config"
	httpclient "datedriven/internal/common/http"
	"datedriven/internal/common/logger"
	"datedriven/internal/keydates"
	"datedriven/internal/pricing"
)

// Set is the outcome of building the configured backends.
type Set struct {
	Sources []keydates.SourceClient
	// Context is the Wikipedia summary provider, nil when Wikipedia is disabled.
	Context keydates.ContextProvider
	// Tiers grade events for tier pricing, one per registered model backend.
	// They are never cached.
	Tiers   []pricing.TierVoter
}

// IDs lists the registered source identifiers in registration order.
func (s Set) IDs() []string {
	ids := make([]string, len(s.Sources))
	for i, src := range s.Sources {
		ids[i] = src.ID()
	}
	return ids
}

// Build registers every enabled backend. Model backends without an API key are
// skipped with a warning. When rdb is non-nil and cfg.CacheTTL is positive each
// source is wrapped in a CachedSource.
func Build(cfg config.SourcesConfig, client *httpclient.Client, rdb *redis.Client, log logger.Logger) (Set, error) {
	prompt, err := NewPrompt(cfg.PromptTemplate)
	if err != nil {
		return Set{}, err
	}

	type registration struct {
		cfg   config.SourceConfig
		build func() keydates.SourceClient
	}
	models := []registration{
		{cfg.Claude, func() keydates.SourceClient { return NewClaudeSource(cfg.Claude, prompt, client) }},
		{cfg.OpenAI, func() keydates.SourceClient { return NewOpenAISource(cfg.OpenAI, prompt, client) }},
		{cfg.Gemini, func() keydates.SourceClient { return NewGeminiSource(cfg.Gemini, prompt, client) }},
		{cfg.Grok, func() keydates.SourceClient { return NewGrokSource(cfg.Grok, prompt, client) }},
	}

	var set Set
	for _, r := range models {
		if !r.cfg.Enabled {
			continue
		}
		src := r.build()
		if r.cfg.APIKey == "" {
			log.Warn("source enabled without API key, skipping", map[string]interface{}{"source": src.ID()})
			continue
		}
		set.Sources = append(set.Sources, src)
		if c, ok := src.(completer); ok {
			set.Tiers = append(set.Tiers, &TierClassifier{backend: c})
		}
	}

	if cfg.Wikipedia.Enabled {
		wiki := NewWikipediaSource(cfg.Wikipedia, client)
		set.Sources = append(set.Sources, wiki)
		set.Context = wiki
	}

	if rdb != nil && cfg.CacheTTL > 0 {
		ttl := time.Duration(cfg.CacheTTL) * time.Millisecond
		for i, src := range set.Sources {
			cached := NewCachedSource(src, rdb, ttl, log)
			set.Sources[i] = cached
			if _, ok := src.(*WikipediaSource); ok {
				set.Context = cached
			}
		}
	}

	log.Info("date sources registered", map[string]interface{}{
		"sources": set.IDs(),
		"cached":  rdb != nil && cfg.CacheTTL > 0,
	})
	return set, nil
}
