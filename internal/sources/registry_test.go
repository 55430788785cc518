package sources

import (
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"datedriven/internal/common/config"
	"datedriven/internal/common/logger"
)

func TestBuild(t *testing.T) {
	cfg := config.SourcesConfig{
		Claude:    config.SourceConfig{Enabled: true, APIKey: "k"},
		OpenAI:    config.SourceConfig{Enabled: true},
		Gemini:    config.SourceConfig{Enabled: false, APIKey: "k"},
		Grok:      config.SourceConfig{Enabled: true, APIKey: "k"},
		Wikipedia: config.SourceConfig{Enabled: true},
	}

	set, err := Build(cfg, nil, nil, logger.NewTestLogger(t))
	require.NoError(t, err)
	assert.Equal(t, []string{"claude", "grok", "wikipedia"}, set.IDs())
	assert.NotNil(t, set.Context)
	require.Len(t, set.Tiers, 2)
	assert.Equal(t, "claude", set.Tiers[0].ID())
	assert.Equal(t, "grok", set.Tiers[1].ID())
}

func TestBuild_WrapsWithCache(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	cfg := config.SourcesConfig{
		Claude:   config.SourceConfig{Enabled: true, APIKey: "k"},
		CacheTTL: 60000,
	}
	set, err := Build(cfg, nil, rdb, logger.NewNoOpLogger())
	require.NoError(t, err)
	require.Len(t, set.Sources, 1)
	_, ok := set.Sources[0].(*CachedSource)
	assert.True(t, ok)
	assert.Nil(t, set.Context)
}

func TestBuild_CachedWikipediaProvidesContext(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	cfg := config.SourcesConfig{
		Wikipedia: config.SourceConfig{Enabled: true},
		CacheTTL:  60000,
	}
	set, err := Build(cfg, nil, rdb, logger.NewNoOpLogger())
	require.NoError(t, err)
	cached, ok := set.Context.(*CachedSource)
	require.True(t, ok)
	assert.Equal(t, "wikipedia", cached.ID())
}

func TestBuild_BadPromptTemplate(t *testing.T) {
	_, err := Build(config.SourcesConfig{PromptTemplate: "{{"}, nil, nil, logger.NewNoOpLogger())
	assert.Error(t, err)
}
