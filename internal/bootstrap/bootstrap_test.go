package bootstrap

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"datedriven/internal/common/config"
	apperrors "datedriven/internal/common/errors"
	"datedriven/internal/common/logger"
	"datedriven/internal/pipeline"
)

func intPtr(v int) *int { return &v }

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Pricing.Rules = config.DefaultPriceRules()
	cfg.Pricing.LookbackDays = 7
	cfg.Pricing.Timezone = "UTC"
	cfg.Consensus.PerSourceTimeout = 1000
	cfg.Consensus.OverallDeadline = 2000
	cfg.Consensus.MaxResults = 6
	cfg.Consensus.ToleranceDays = 1
	cfg.Sources.CacheTTL = 60000
	cfg.Sources.Wikipedia = config.SourceConfig{Enabled: true, BaseURL: "http://wiki.invalid"}
	cfg.Marketplace.DryRun = true
	return cfg
}

func TestEngine(t *testing.T) {
	cfg := testConfig()
	engine, loc, err := Engine(cfg)
	require.NoError(t, err)
	assert.Equal(t, "UTC", loc.String())

	today := time.Date(2026, time.January, 10, 0, 0, 0, 0, time.UTC)
	event := time.Date(2026, time.January, 17, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, 1.25, engine.Rules().Multiplier(int(event.Sub(today).Hours()/24)))
}

func TestEngine_RejectsGappedTable(t *testing.T) {
	cfg := testConfig()
	cfg.Pricing.Rules = []config.PriceRuleConfig{
		{MinDays: intPtr(10), Multiplier: 1.1},
		{MinDays: intPtr(0), MaxDays: intPtr(5), Multiplier: 1.2},
	}
	_, _, err := Engine(cfg)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrInvalidRuleTable)
}

func TestLocation(t *testing.T) {
	loc, err := Location("")
	require.NoError(t, err)
	assert.Equal(t, time.UTC, loc)

	_, err = Location("Nowhere/Special")
	assert.Error(t, err)
}

func TestRedis_Disabled(t *testing.T) {
	cfg := testConfig()
	rdb, closeFn := Redis(context.Background(), cfg, logger.NewTestLogger(t))
	defer closeFn()
	assert.Nil(t, rdb)
}

func TestRedis_Connected(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig()
	cfg.Database.Redis.Address = mr.Addr()

	rdb, closeFn := Redis(context.Background(), cfg, logger.NewTestLogger(t))
	defer closeFn()
	require.NotNil(t, rdb)
	assert.NoError(t, rdb.Ping(context.Background()).Err())
}

func TestRedis_UnreachableFallsBack(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	cfg := testConfig()
	cfg.Database.Redis.Address = addr
	rdb, closeFn := Redis(context.Background(), cfg, logger.NewTestLogger(t))
	defer closeFn()
	assert.Nil(t, rdb)
}

func TestSourcesAndDriver(t *testing.T) {
	cfg := testConfig()
	log := logger.NewTestLogger(t)

	set, err := Sources(cfg, nil, log)
	require.NoError(t, err)
	assert.Equal(t, []string{"wikipedia"}, set.IDs())
	assert.NotNil(t, set.Context)

	inv := pipeline.NewFileInventory("testdata/missing.yaml")
	d := Driver(cfg, inv, set, nil, log, nil)
	require.NotNil(t, d)

	_, err = d.Run(context.Background())
	assert.ErrorIs(t, err, apperrors.ErrInventoryQueryFailed)
}

func TestSinks_WithoutIndex(t *testing.T) {
	cfg := testConfig()
	store := pipeline.NewPostgresStore(nil, nil)
	sinks, err := Sinks(cfg, store, logger.NewTestLogger(t))
	require.NoError(t, err)
	assert.Len(t, sinks, 1)
}

func TestNotifiers_NoneEnabled(t *testing.T) {
	n, err := Notifiers(context.Background(), testConfig(), logger.NewTestLogger(t))
	require.NoError(t, err)
	assert.Empty(t, n)
}

func TestRepricer_DryRunWithoutCredentials(t *testing.T) {
	cfg := testConfig()
	cfg.Marketplace.DryRun = false

	_, err := Repricer(context.Background(), cfg, pipeline.NewFileInventory("x"), nil, false, logger.NewTestLogger(t))
	assert.ErrorIs(t, err, apperrors.ErrInvalidConfig)

	r, err := Repricer(context.Background(), cfg, pipeline.NewFileInventory("x"), nil, true, logger.NewTestLogger(t))
	require.NoError(t, err)
	assert.NotNil(t, r)
}

func TestTierAdvisor(t *testing.T) {
	cfg := testConfig()
	log := logger.NewTestLogger(t)

	a, err := TierAdvisor(cfg, log)
	require.NoError(t, err)
	assert.Nil(t, a, "disabled")

	cfg.Pricing.Tiers = config.TierPricingConfig{
		Enabled:       true,
		PostEventDays: 2,
		Fallback:      "MEDIUM",
		Minor:         config.TierLevelConfig{Multiplier: 1.05, WindowDays: 7},
		Medium:        config.TierLevelConfig{Multiplier: 1.15, WindowDays: 10},
		Major:         config.TierLevelConfig{Multiplier: 1.25, WindowDays: 14},
		Peak:          config.TierLevelConfig{Multiplier: 1.35, WindowDays: 14},
	}
	a, err = TierAdvisor(cfg, log)
	require.NoError(t, err)
	assert.Nil(t, a, "wikipedia cannot vote")

	cfg.Sources.Claude = config.SourceConfig{Enabled: true, APIKey: "k", BaseURL: "http://claude.invalid"}
	a, err = TierAdvisor(cfg, log)
	require.NoError(t, err)
	require.NotNil(t, a)
	assert.Equal(t, 2, a.Policy().PostEventDays)

	cfg.Pricing.Tiers.Fallback = "HUGE"
	_, err = TierAdvisor(cfg, log)
	assert.ErrorIs(t, err, apperrors.ErrInvalidConfig)
}

func TestCalendar_Disabled(t *testing.T) {
	_, err := Calendar(context.Background(), testConfig(), logger.NewTestLogger(t))
	assert.ErrorIs(t, err, apperrors.ErrInvalidConfig)
}
