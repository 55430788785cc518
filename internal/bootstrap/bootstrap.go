// Package bootstrap assembles the runtime components from configuration. Both
// the worker manager and the CLI go through it so they wire identical stacks.
package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"datedriven/internal/calendar"
	awsclient "datedriven/internal/common/aws"
	"datedriven/internal/common/camunda"
	"datedriven/internal/common/config"
	"datedriven/internal/common/database"
	apperrors "datedriven/internal/common/errors"
	httpclient "datedriven/internal/common/http"
	"datedriven/internal/common/logger"
	"datedriven/internal/common/observability"
	"datedriven/internal/keydates"
	"datedriven/internal/marketplace"
	"datedriven/internal/notify"
	"datedriven/internal/pipeline"
	"datedriven/internal/pricing"
	"datedriven/internal/repricing"
	"datedriven/internal/sources"
)

var connectRetry = &camunda.RetryConfig{
	MaxRetries: 5,
	BaseDelay:  2 * time.Second,
	MaxDelay:   15 * time.Second,
}

// Logger builds the configured zap-backed logger.
func Logger(cfg *config.Config) logger.Logger {
	return logger.NewStructured(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
}

func Observability(cfg *config.Config) *observability.Observability {
	name := cfg.Observability.ServiceName
	if name == "" {
		name = cfg.App.Name
	}
	return observability.New(name, cfg.Observability.JaegerEndpoint)
}

// Redis connects the source cache. The cache is optional: when Redis is not
// configured or unreachable a nil client is returned and sources run uncached.
func Redis(ctx context.Context, cfg *config.Config, log logger.Logger) (*redis.Client, func()) {
	if cfg.Database.Redis.Address == "" || cfg.Sources.CacheTTL <= 0 {
		return nil, func() {}
	}
	rc, err := database.NewRedis(cfg.Database.Redis)
	if err == nil {
		err = rc.Ping(ctx)
	}
	if err != nil {
		log.Warn("redis unavailable, source cache disabled", map[string]interface{}{"error": err.Error()})
		if rc != nil {
			_ = rc.Close()
		}
		return nil, func() {}
	}
	return rc.Client, func() { _ = rc.Close() }
}

// Store connects Postgres with retry and makes sure the schema exists.
func Store(ctx context.Context, cfg *config.Config, log logger.Logger) (*pipeline.PostgresStore, func(), error) {
	pg, err := database.NewPostgres(cfg.Database.Postgres)
	if err != nil {
		return nil, nil, err
	}
	err = camunda.Retry(ctx, connectRetry, func(ctx context.Context) error {
		return pg.Ping(ctx)
	})
	if err != nil {
		_ = pg.Close()
		return nil, nil, fmt.Errorf("postgres connection: %w", err)
	}

	store := pipeline.NewPostgresStore(pg.DB, log)
	if err := store.EnsureSchema(ctx); err != nil {
		_ = pg.Close()
		return nil, nil, err
	}
	log.Info("postgres connected", map[string]interface{}{"host": cfg.Database.Postgres.Host})
	return store, func() { _ = pg.Close() }, nil
}

// Sinks returns the result collaborators: the Postgres store always, plus the
// Elasticsearch index when indexing is switched on.
func Sinks(cfg *config.Config, store *pipeline.PostgresStore, log logger.Logger) ([]pipeline.ResultSink, error) {
	sinks := []pipeline.ResultSink{store}
	if !cfg.Pipeline.IndexKeyDates {
		return sinks, nil
	}
	es, err := database.NewElasticsearch(cfg.Database.Elasticsearch)
	if err != nil {
		return nil, err
	}
	if err := es.Ping(); err != nil {
		return nil, err
	}
	log.Info("elasticsearch connected", map[string]interface{}{"index": cfg.Database.Elasticsearch.Index})
	return append(sinks, pipeline.NewElasticIndex(es.Client, cfg.Database.Elasticsearch.Index)), nil
}

// Sources builds the configured backends. The HTTP client timeout sits a little
// above the per-source timeout so the context deadline fires first.
func Sources(cfg *config.Config, rdb *redis.Client, log logger.Logger) (sources.Set, error) {
	timeout := config.GetDuration(cfg.Consensus.PerSourceTimeout) + 5*time.Second
	return sources.Build(cfg.Sources, httpclient.NewClient(timeout), rdb, log)
}

// Driver wires the orchestrator, merger and sinks into a batch driver.
func Driver(cfg *config.Config, inv pipeline.InventorySource, set sources.Set, sinks []pipeline.ResultSink, log logger.Logger, obs *observability.Observability) *pipeline.Driver {
	var opts []keydates.Option
	if set.Context != nil {
		opts = append(opts, keydates.WithContextProvider(set.Context, cfg.Consensus.ContextMaxChars))
	}
	strip := cfg.Sources.SubjectStripPhrases
	if len(strip) == 0 {
		strip = keydates.DefaultStripPhrases
	}
	return pipeline.NewDriver(
		inv,
		keydates.NewOrchestrator(log, opts...),
		keydates.NewMerger(cfg.Consensus.MaxResults, cfg.Consensus.ToleranceDays),
		set.Sources,
		sinks,
		pipeline.DriverOptions{
			PerSourceTimeout:    config.GetDuration(cfg.Consensus.PerSourceTimeout),
			OverallDeadline:     config.GetDuration(cfg.Consensus.OverallDeadline),
			ErrorRateThreshold:  cfg.Pipeline.ErrorRateThreshold,
			MinItemsBeforeAbort: cfg.Pipeline.MinItemsBeforeAbort,
			StripPhrases:        strip,
		},
		log,
		obs,
	)
}

// Engine validates the rule table; a bad table is a startup error.
func Engine(cfg *config.Config) (*pricing.Engine, *time.Location, error) {
	rules, err := pricing.RuleTableFromConfig(cfg.Pricing)
	if err != nil {
		return nil, nil, err
	}
	loc, err := Location(cfg.Pricing.Timezone)
	if err != nil {
		return nil, nil, err
	}
	return pricing.NewEngine(rules, cfg.Pricing.LookbackDays), loc, nil
}

func Location(name string) (*time.Location, error) {
	if name == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("load time zone %q: %w", name, err)
	}
	return loc, nil
}

// Notifiers returns the enabled report channels.
func Notifiers(ctx context.Context, cfg *config.Config, log logger.Logger) ([]repricing.Notifier, error) {
	var out []repricing.Notifier
	n := cfg.Notifications
	if n.Email.Enabled {
		sesClient, err := awsclient.NewSESClient(ctx, n.AWSRegion)
		if err != nil {
			return nil, fmt.Errorf("ses client: %w", err)
		}
		out = append(out, notify.NewEmailNotifier(sesClient, n.Email.FromEmail, n.Email.Recipients, log))
	}
	if n.SNS.Enabled {
		snsClient, err := awsclient.NewSNSClient(ctx, n.AWSRegion)
		if err != nil {
			return nil, fmt.Errorf("sns client: %w", err)
		}
		out = append(out, notify.NewTopicNotifier(snsClient, n.SNS.TopicARN, log))
	}
	return out, nil
}

// Repricer assembles the batch pricing run. dryRun forces the marketplace
// client into dry-run mode regardless of configuration.
func Repricer(ctx context.Context, cfg *config.Config, inv pipeline.InventorySource, store pipeline.KeyDateStore, dryRun bool, log logger.Logger) (*repricing.Repricer, error) {
	engine, loc, err := Engine(cfg)
	if err != nil {
		return nil, err
	}
	mcfg := cfg.Marketplace
	mcfg.DryRun = mcfg.DryRun || dryRun
	ebay, err := marketplace.NewEbayClient(mcfg, log)
	if err != nil {
		return nil, err
	}
	notifiers, err := Notifiers(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	tiers, err := TierAdvisor(cfg, log)
	if err != nil {
		return nil, err
	}
	return repricing.NewRepricer(inv, store, engine, ebay, notifiers, repricing.Options{
		Currency: cfg.Pricing.Currency,
		Location: loc,
		Tiers:    tiers,
	}, log), nil
}

// TierAdvisor returns nil while tier pricing is disabled or no model backend
// is usable, in which case the proximity table prices every item.
func TierAdvisor(cfg *config.Config, log logger.Logger) (*pricing.TierAdvisor, error) {
	if !cfg.Pricing.Tiers.Enabled {
		return nil, nil
	}
	policy, err := pricing.TierPolicyFromConfig(cfg.Pricing.Tiers)
	if err != nil {
		return nil, err
	}
	set, err := Sources(cfg, nil, log)
	if err != nil {
		return nil, err
	}
	if len(set.Tiers) == 0 {
		log.Warn("tier pricing enabled without model sources, using the rule table", nil)
		return nil, nil
	}
	return pricing.NewTierAdvisor(set.Tiers, policy,
		config.GetDuration(cfg.Consensus.PerSourceTimeout),
		config.GetDuration(cfg.Consensus.OverallDeadline),
		log,
	), nil
}

// Calendar returns the reminder syncer. It refuses to run while calendar sync
// is switched off in config.
func Calendar(ctx context.Context, cfg *config.Config, log logger.Logger) (*calendar.Syncer, error) {
	if !cfg.Calendar.Enabled {
		return nil, apperrors.NewInvalidConfigError("calendar.enabled is false")
	}
	svc, err := calendar.NewService(ctx, cfg.Calendar.CredentialsFile)
	if err != nil {
		return nil, err
	}
	return calendar.NewSyncer(svc, cfg.Calendar, log)
}
