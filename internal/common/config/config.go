// internal/common/config/config.go
package config

import (
	"fmt"
	"time"
)

// Config is the main application configuration struct.
type Config struct {
	App           AppConfig               `mapstructure:"app"`
	Logging       LoggingConfig           `mapstructure:"logging"`
	Sources       SourcesConfig           `mapstructure:"sources"`
	Consensus     ConsensusConfig         `mapstructure:"consensus"`
	Pricing       PricingConfig           `mapstructure:"pricing"`
	Pipeline      PipelineConfig          `mapstructure:"pipeline"`
	Database      DatabaseConfig          `mapstructure:"database"`
	Camunda       CamundaConfig           `mapstructure:"camunda"`
	Workers       map[string]WorkerConfig `mapstructure:"workers"`
	Notifications NotificationConfig      `mapstructure:"notifications"`
	Marketplace   MarketplaceConfig       `mapstructure:"marketplace"`
	Calendar      CalendarConfig          `mapstructure:"calendar"`
	Observability ObservabilityConfig     `mapstructure:"observability"`
}

type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// SourceConfig describes one date-suggestion backend.
type SourceConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	BaseURL   string `mapstructure:"base_url"`
	APIKey    string `mapstructure:"api_key"`
	Model     string `mapstructure:"model"`
	MaxTokens int    `mapstructure:"max_tokens"`
}

// SourcesConfig lists every backend the orchestrator may fan out to.
type SourcesConfig struct {
	Claude    SourceConfig `mapstructure:"claude"`
	OpenAI    SourceConfig `mapstructure:"openai"`
	Gemini    SourceConfig `mapstructure:"gemini"`
	Grok      SourceConfig `mapstructure:"grok"`
	Wikipedia SourceConfig `mapstructure:"wikipedia"`

	// PromptTemplate overrides the built-in prompt. It is rendered with
	// text/template against the item.
	PromptTemplate string `mapstructure:"prompt_template"`
	// SubjectStripPhrases are removed from item names when extracting a subject.
	SubjectStripPhrases []string `mapstructure:"subject_strip_phrases"`
	// CacheTTL is the lifetime of cached source answers in milliseconds; 0 disables caching.
	CacheTTL int `mapstructure:"cache_ttl"`
}

// ConsensusConfig bounds one orchestration pass and shapes the merged output.
type ConsensusConfig struct {
	PerSourceTimeout int `mapstructure:"per_source_timeout"` // milliseconds
	OverallDeadline  int `mapstructure:"overall_deadline"`   // milliseconds
	MaxResults       int `mapstructure:"max_results"`
	ToleranceDays    int `mapstructure:"tolerance_days"`
	ContextMaxChars  int `mapstructure:"context_max_chars"`
}

// PriceRuleConfig is one window of the pricing table. Nil bounds are open.
type PriceRuleConfig struct {
	MinDays    *int    `mapstructure:"min_days"`
	MaxDays    *int    `mapstructure:"max_days"`
	Multiplier float64 `mapstructure:"multiplier"`
}

type PricingConfig struct {
	Rules        []PriceRuleConfig `mapstructure:"rules"`
	LookbackDays int               `mapstructure:"lookback_days"`
	Currency     string            `mapstructure:"currency"`
	Timezone     string            `mapstructure:"timezone"`
	Tiers        TierPricingConfig `mapstructure:"tiers"`
}

// TierLevelConfig is the markup of one significance tier and how many days
// before the event it starts.
type TierLevelConfig struct {
	Multiplier float64 `mapstructure:"multiplier"`
	WindowDays int     `mapstructure:"window_days"`
}

// TierPricingConfig enables model-graded tier pricing. When enabled, the
// majority tier of the model backends replaces the proximity table for items
// with an event.
type TierPricingConfig struct {
	Enabled       bool            `mapstructure:"enabled"`
	PostEventDays int             `mapstructure:"post_event_days"`
	Fallback      string          `mapstructure:"fallback"`
	Minor         TierLevelConfig `mapstructure:"minor"`
	Medium        TierLevelConfig `mapstructure:"medium"`
	Major         TierLevelConfig `mapstructure:"major"`
	Peak          TierLevelConfig `mapstructure:"peak"`
}

// PipelineConfig drives batch runs over the inventory.
type PipelineConfig struct {
	InventoryFile       string  `mapstructure:"inventory_file"`
	ErrorRateThreshold  float64 `mapstructure:"error_rate_threshold"`
	MinItemsBeforeAbort int     `mapstructure:"min_items_before_abort"`
	IndexKeyDates       bool    `mapstructure:"index_key_dates"`
}

type DatabaseConfig struct {
	Postgres      PostgresConfig      `mapstructure:"postgres"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Redis         RedisConfig         `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string.
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type ElasticsearchConfig struct {
	Addresses []string `mapstructure:"addresses"`
	Username  string   `mapstructure:"username"`
	Password  string   `mapstructure:"password"`
	Index     string   `mapstructure:"index"`
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type CamundaConfig struct {
	BrokerAddress string `mapstructure:"broker_address"`
	MaxJobsActive int    `mapstructure:"max_jobs_active"`
	Timeout       int    `mapstructure:"timeout"` // milliseconds
}

// WorkerConfig holds the core settings applicable to every job worker.
type WorkerConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	MaxJobsActive int  `mapstructure:"max_jobs_active"`
	Timeout       int  `mapstructure:"timeout"` // milliseconds
	MaxRetries    int  `mapstructure:"max_retries"`
}

// NotificationConfig holds the pricing report channels.
type NotificationConfig struct {
	AWSRegion string `mapstructure:"aws_region"`
	Email     struct {
		Enabled    bool     `mapstructure:"enabled"`
		FromEmail  string   `mapstructure:"from_email"`
		Recipients []string `mapstructure:"recipients"`
	} `mapstructure:"email"`
	SNS struct {
		Enabled  bool   `mapstructure:"enabled"`
		TopicARN string `mapstructure:"topic_arn"`
	} `mapstructure:"sns"`
}

// MarketplaceConfig configures the eBay listing-update collaborator.
type MarketplaceConfig struct {
	BaseURL      string `mapstructure:"base_url"`
	TokenURL     string `mapstructure:"token_url"`
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
	RefreshToken string `mapstructure:"refresh_token"`
	DryRun       bool   `mapstructure:"dry_run"`
	BatchSize    int    `mapstructure:"batch_size"`
	Timeout      int    `mapstructure:"timeout"` // milliseconds
}

// CalendarConfig configures reminder sync with Google Calendar.
type CalendarConfig struct {
	Enabled         bool   `mapstructure:"enabled"`
	CalendarID      string `mapstructure:"calendar_id"`
	CredentialsFile string `mapstructure:"credentials_file"`
	TimeZone        string `mapstructure:"time_zone"`
	DaysBefore      int    `mapstructure:"days_before"`
	DaysAhead       int    `mapstructure:"days_ahead"`
}

type ObservabilityConfig struct {
	ServiceName    string `mapstructure:"service_name"`
	MetricsAddress string `mapstructure:"metrics_address"`
	JaegerEndpoint string `mapstructure:"jaeger_endpoint"`
}

// GetDuration converts milliseconds from config to time.Duration.
func GetDuration(milliseconds int) time.Duration {
	return time.Duration(milliseconds) * time.Millisecond
}

// GetWorkerConfig retrieves worker-specific configuration with fallback to defaults.
func GetWorkerConfig(cfg *Config, workerName string) WorkerConfig {
	if w, ok := cfg.Workers[workerName]; ok {
		return w
	}
	return WorkerConfig{
		Enabled:       true,
		MaxJobsActive: 5,
		Timeout:       30000,
		MaxRetries:    3,
	}
}
