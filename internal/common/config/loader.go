// internal/common/config/loader.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Load reads configs/config.yaml, merges config.<APP_ENVIRONMENT>.yaml on top and
// applies environment overrides.
func Load() (*Config, error) {
	loadEnvFile()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath("../../configs")
	v.AddConfigPath(".")

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	env := os.Getenv("APP_ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading base config: %w", err)
		}
	}

	v.SetConfigName(fmt.Sprintf("config.%s", env))
	_ = v.MergeInConfig()

	return finish(v)
}

// LoadFromFile loads configuration from a specific file path.
func LoadFromFile(path string) (*Config, error) {
	loadEnvFile()

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	return finish(v)
}

func finish(v *viper.Viper) (*Config, error) {
	expandEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)
	overrideEmptyConfig(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func loadEnvFile() {
	paths := []string{".env", "../.env", "../../.env"}
	if root := findProjectRoot(); root != "" {
		paths = append(paths, filepath.Join(root, ".env"))
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			if err := godotenv.Load(p); err == nil {
				return
			}
		}
	}
}

func findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// expandEnvVars resolves ${VAR} placeholders in string values.
func expandEnvVars(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		strVal, ok := v.Get(key).(string)
		if !ok {
			continue
		}
		if strings.Contains(strVal, "${") || (strings.HasPrefix(strVal, "$") && len(strVal) > 1) {
			if expanded := os.ExpandEnv(strVal); expanded != strVal && expanded != "" {
				v.Set(key, expanded)
			}
		}
	}
}

// overrideEmptyConfig fills secrets from the conventional env names used by the
// backends when the YAML leaves them blank.
func overrideEmptyConfig(cfg *Config) {
	setIfEmpty := func(dst *string, env string) {
		if *dst == "" {
			if val := os.Getenv(env); val != "" {
				*dst = val
			}
		}
	}

	setIfEmpty(&cfg.Sources.Claude.APIKey, "CLAUDE_API_KEY")
	setIfEmpty(&cfg.Sources.OpenAI.APIKey, "OPENAI_API_KEY")
	setIfEmpty(&cfg.Sources.Gemini.APIKey, "GEMINI_API_KEY")
	setIfEmpty(&cfg.Sources.Grok.APIKey, "GROK_API_KEY")

	setIfEmpty(&cfg.Marketplace.ClientID, "EBAY_CLIENT_ID")
	setIfEmpty(&cfg.Marketplace.ClientSecret, "EBAY_CLIENT_SECRET")
	setIfEmpty(&cfg.Marketplace.RefreshToken, "EBAY_REFRESH_TOKEN")

	setIfEmpty(&cfg.Database.Postgres.User, "DB_USER")
	setIfEmpty(&cfg.Database.Postgres.Password, "DB_PASSWORD")
}

func intPtr(v int) *int { return &v }

// DefaultPriceRules mirrors the proximity table used when no rules are configured.
func DefaultPriceRules() []PriceRuleConfig {
	return []PriceRuleConfig{
		{MinDays: intPtr(14), Multiplier: 1.15},
		{MinDays: intPtr(7), MaxDays: intPtr(13), Multiplier: 1.25},
		{MinDays: intPtr(3), MaxDays: intPtr(6), Multiplier: 1.35},
		{MinDays: intPtr(0), MaxDays: intPtr(2), Multiplier: 1.20},
		{MaxDays: intPtr(-1), Multiplier: 1.00},
	}
}

func applyTierDefaults(t *TierPricingConfig) {
	if t.PostEventDays == 0 {
		t.PostEventDays = 2
	}
	if t.Fallback == "" {
		t.Fallback = "MEDIUM"
	}
	levels := []struct {
		level      *TierLevelConfig
		multiplier float64
		windowDays int
	}{
		{&t.Minor, 1.05, 7},
		{&t.Medium, 1.15, 10},
		{&t.Major, 1.25, 14},
		{&t.Peak, 1.35, 14},
	}
	for _, l := range levels {
		if l.level.Multiplier == 0 {
			l.level.Multiplier = l.multiplier
		}
		if l.level.WindowDays == 0 {
			l.level.WindowDays = l.windowDays
		}
	}
}

// applyDefaults sets default values for optional configuration fields.
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "datedriven"
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stdout"
	}

	if cfg.Consensus.PerSourceTimeout == 0 {
		cfg.Consensus.PerSourceTimeout = 30000
	}
	if cfg.Consensus.OverallDeadline == 0 {
		cfg.Consensus.OverallDeadline = 45000
	}
	if cfg.Consensus.MaxResults == 0 {
		cfg.Consensus.MaxResults = 6
	}
	if cfg.Consensus.ToleranceDays == 0 {
		cfg.Consensus.ToleranceDays = 1
	}
	if cfg.Consensus.ContextMaxChars == 0 {
		cfg.Consensus.ContextMaxChars = 500
	}

	applySourceDefaults(&cfg.Sources.Claude, "https://api.anthropic.com/v1/messages", "claude-sonnet-4-20250514")
	applySourceDefaults(&cfg.Sources.OpenAI, "https://api.openai.com/v1/chat/completions", "gpt-4o")
	applySourceDefaults(&cfg.Sources.Gemini, "https://generativelanguage.googleapis.com/v1beta/models", "gemini-2.0-flash")
	applySourceDefaults(&cfg.Sources.Grok, "https://api.x.ai/v1/chat/completions", "grok-3")
	if cfg.Sources.Wikipedia.BaseURL == "" {
		cfg.Sources.Wikipedia.BaseURL = "https://en.wikipedia.org/api/rest_v1"
	}

	if len(cfg.Pricing.Rules) == 0 {
		cfg.Pricing.Rules = DefaultPriceRules()
	}
	if cfg.Pricing.LookbackDays == 0 {
		cfg.Pricing.LookbackDays = 7
	}
	if cfg.Pricing.Currency == "" {
		cfg.Pricing.Currency = "USD"
	}
	if cfg.Pricing.Timezone == "" {
		cfg.Pricing.Timezone = "America/Los_Angeles"
	}
	applyTierDefaults(&cfg.Pricing.Tiers)

	if cfg.Pipeline.ErrorRateThreshold == 0 {
		cfg.Pipeline.ErrorRateThreshold = 0.9
	}
	if cfg.Pipeline.MinItemsBeforeAbort == 0 {
		cfg.Pipeline.MinItemsBeforeAbort = 5
	}

	if cfg.Database.Postgres.Port == 0 {
		cfg.Database.Postgres.Port = 5432
	}
	if cfg.Database.Postgres.MaxConnections == 0 {
		cfg.Database.Postgres.MaxConnections = 10
	}
	if cfg.Database.Postgres.MaxIdle == 0 {
		cfg.Database.Postgres.MaxIdle = 2
	}
	if cfg.Database.Postgres.SSLMode == "" {
		cfg.Database.Postgres.SSLMode = "disable"
	}
	if cfg.Database.Elasticsearch.Index == "" {
		cfg.Database.Elasticsearch.Index = "key-dates"
	}

	if cfg.Camunda.MaxJobsActive == 0 {
		cfg.Camunda.MaxJobsActive = 10
	}
	if cfg.Camunda.Timeout == 0 {
		cfg.Camunda.Timeout = 60000
	}
	for key, w := range cfg.Workers {
		if w.MaxJobsActive == 0 {
			w.MaxJobsActive = 5
		}
		if w.Timeout == 0 {
			w.Timeout = 60000
		}
		if w.MaxRetries == 0 {
			w.MaxRetries = 3
		}
		cfg.Workers[key] = w
	}

	if cfg.Marketplace.BaseURL == "" {
		cfg.Marketplace.BaseURL = "https://api.ebay.com/sell/inventory/v1"
	}
	if cfg.Marketplace.TokenURL == "" {
		cfg.Marketplace.TokenURL = "https://api.ebay.com/identity/v1/oauth2/token"
	}
	if cfg.Marketplace.BatchSize == 0 {
		cfg.Marketplace.BatchSize = 25
	}
	if cfg.Marketplace.Timeout == 0 {
		cfg.Marketplace.Timeout = 30000
	}

	if cfg.Calendar.CalendarID == "" {
		cfg.Calendar.CalendarID = "primary"
	}
	if cfg.Calendar.TimeZone == "" {
		cfg.Calendar.TimeZone = "America/Los_Angeles"
	}
	if cfg.Calendar.DaysBefore == 0 {
		cfg.Calendar.DaysBefore = 7
	}
	if cfg.Calendar.DaysAhead == 0 {
		cfg.Calendar.DaysAhead = 30
	}

	if cfg.Observability.ServiceName == "" {
		cfg.Observability.ServiceName = cfg.App.Name
	}
	if cfg.Observability.MetricsAddress == "" {
		cfg.Observability.MetricsAddress = ":8080"
	}
}

func applySourceDefaults(s *SourceConfig, baseURL, model string) {
	if s.BaseURL == "" {
		s.BaseURL = baseURL
	}
	if s.Model == "" {
		s.Model = model
	}
	if s.MaxTokens == 0 {
		s.MaxTokens = 1024
	}
}

// validateConfig rejects settings the orchestrator and pricing engine cannot run with.
// Rule table shape is validated by the pricing package when the table is built.
func validateConfig(cfg *Config) error {
	if cfg.Consensus.PerSourceTimeout < 0 || cfg.Consensus.OverallDeadline < 0 {
		return fmt.Errorf("consensus timeouts must be positive")
	}
	if cfg.Consensus.MaxResults < 0 {
		return fmt.Errorf("consensus.max_results must be positive")
	}
	if cfg.Consensus.ToleranceDays < 0 {
		return fmt.Errorf("consensus.tolerance_days must not be negative")
	}
	if cfg.Pipeline.ErrorRateThreshold < 0 || cfg.Pipeline.ErrorRateThreshold > 1 {
		return fmt.Errorf("pipeline.error_rate_threshold must be within [0,1]")
	}
	for i, r := range cfg.Pricing.Rules {
		if r.Multiplier <= 0 {
			return fmt.Errorf("pricing.rules[%d].multiplier must be positive", i)
		}
	}
	tiers := cfg.Pricing.Tiers
	if tiers.PostEventDays < 0 {
		return fmt.Errorf("pricing.tiers.post_event_days must not be negative")
	}
	for name, l := range map[string]TierLevelConfig{
		"minor": tiers.Minor, "medium": tiers.Medium, "major": tiers.Major, "peak": tiers.Peak,
	} {
		if l.Multiplier <= 0 || l.WindowDays < 0 {
			return fmt.Errorf("pricing.tiers.%s needs a positive multiplier and non-negative window_days", name)
		}
	}
	return nil
}
