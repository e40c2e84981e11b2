package config

import (
	"strings"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/leadgen/internal/apperr"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
	Apollo     ProviderConfig   `yaml:"apollo" mapstructure:"apollo"`
	Hunter     ProviderConfig   `yaml:"hunter" mapstructure:"hunter"`
	LinkedIn   LinkedInConfig   `yaml:"linkedin" mapstructure:"linkedin"`
	Throttle   ThrottleConfig   `yaml:"throttle" mapstructure:"throttle"`
	Circuit    CircuitConfig    `yaml:"circuit" mapstructure:"circuit"`
	Pipeline   PipelineConfig   `yaml:"pipeline" mapstructure:"pipeline"`
	Scoring    ScoringConfig    `yaml:"scoring" mapstructure:"scoring"`
	Scheduler  SchedulerConfig  `yaml:"scheduler" mapstructure:"scheduler"`
	Monitoring MonitoringConfig `yaml:"monitoring" mapstructure:"monitoring"`
	Events     EventsConfig     `yaml:"events" mapstructure:"events"`
	Salesforce SalesforceConfig `yaml:"salesforce" mapstructure:"salesforce"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
	StartScheduler bool     `yaml:"start_scheduler" mapstructure:"start_scheduler"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// ProviderConfig holds credentials and throughput policy for one provider.
type ProviderConfig struct {
	APIKey        string `yaml:"api_key" mapstructure:"api_key"`
	BaseURL       string `yaml:"base_url" mapstructure:"base_url"`
	MinIntervalMs int    `yaml:"min_interval_ms" mapstructure:"min_interval_ms"`
	Quota         int    `yaml:"quota" mapstructure:"quota"`
	QuotaPeriod   string `yaml:"quota_period" mapstructure:"quota_period"` // daily | monthly
	TimeoutSecs   int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// LinkedInConfig extends ProviderConfig with OAuth client credentials.
type LinkedInConfig struct {
	ProviderConfig `yaml:",inline" mapstructure:",squash"`
	ClientID       string `yaml:"client_id" mapstructure:"client_id"`
	ClientSecret   string `yaml:"client_secret" mapstructure:"client_secret"`
	AccessToken    string `yaml:"access_token" mapstructure:"access_token"`
}

// ThrottleConfig is the bounded retry policy applied to provider throttling.
type ThrottleConfig struct {
	MaxAttempts       int     `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMs  int     `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMs      int     `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
	MaxRetryAfterSecs int     `yaml:"max_retry_after_secs" mapstructure:"max_retry_after_secs"`
	Multiplier        float64 `yaml:"multiplier" mapstructure:"multiplier"`
	JitterFraction    float64 `yaml:"jitter_fraction" mapstructure:"jitter_fraction"`
}

// CircuitConfig configures per-provider circuit breakers.
type CircuitConfig struct {
	FailureThreshold int `yaml:"failure_threshold" mapstructure:"failure_threshold"`
	ResetTimeoutSecs int `yaml:"reset_timeout_secs" mapstructure:"reset_timeout_secs"`
}

// PipelineConfig configures lead generation.
type PipelineConfig struct {
	MinCompanySize    int `yaml:"min_company_size" mapstructure:"min_company_size"`
	EnrichConcurrency int `yaml:"enrich_concurrency" mapstructure:"enrich_concurrency"`
	SuggestSample     int `yaml:"suggest_sample" mapstructure:"suggest_sample"`
}

// ScoringConfig points at an optional YAML rule override.
type ScoringConfig struct {
	RulesFile string `yaml:"rules_file" mapstructure:"rules_file"`
}

// SchedulerConfig configures the campaign scheduler.
type SchedulerConfig struct {
	PollIntervalSecs    int `yaml:"poll_interval_secs" mapstructure:"poll_interval_secs"`
	MaxParallel         int `yaml:"max_parallel" mapstructure:"max_parallel"`
	StaleExecutionHours int `yaml:"stale_execution_hours" mapstructure:"stale_execution_hours"`
}

// MonitoringConfig configures execution health alerts.
type MonitoringConfig struct {
	Enabled              bool    `yaml:"enabled" mapstructure:"enabled"`
	WebhookURL           string  `yaml:"webhook_url" mapstructure:"webhook_url"`
	CheckIntervalSecs    int     `yaml:"check_interval_secs" mapstructure:"check_interval_secs"`
	LookbackWindowHours  int     `yaml:"lookback_window_hours" mapstructure:"lookback_window_hours"`
	FailureRateThreshold float64 `yaml:"failure_rate_threshold" mapstructure:"failure_rate_threshold"`
	QuotaUsageThreshold  float64 `yaml:"quota_usage_threshold" mapstructure:"quota_usage_threshold"`
}

// EventsConfig configures execution outcome publishing.
type EventsConfig struct {
	AMQPURL  string `yaml:"amqp_url" mapstructure:"amqp_url"`
	Exchange string `yaml:"exchange" mapstructure:"exchange"`
}

// SalesforceConfig holds Salesforce JWT auth settings for lead export.
type SalesforceConfig struct {
	ClientID       string `yaml:"client_id" mapstructure:"client_id"`
	Username       string `yaml:"username" mapstructure:"username"`
	KeyPath        string `yaml:"key_path" mapstructure:"key_path"`
	LoginURL       string `yaml:"login_url" mapstructure:"login_url"`
	PushOnGenerate bool   `yaml:"push_on_generate" mapstructure:"push_on_generate"`
}

// Load reads configuration from .env, config.yaml and the environment.
func Load() (*Config, error) {
	// .env is optional; real environment variables win over it.
	_ = godotenv.Load()

	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("LEADGEN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("server.start_scheduler", true)

	v.SetDefault("apollo.api_key", "")
	v.SetDefault("apollo.base_url", "https://api.apollo.io/v1")
	v.SetDefault("apollo.min_interval_ms", 100)
	v.SetDefault("apollo.quota", 1000)
	v.SetDefault("apollo.quota_period", "daily")
	v.SetDefault("apollo.timeout_secs", 30)
	v.SetDefault("hunter.api_key", "")
	v.SetDefault("hunter.base_url", "https://api.hunter.io/v2")
	v.SetDefault("hunter.min_interval_ms", 200)
	v.SetDefault("hunter.quota", 5000)
	v.SetDefault("hunter.quota_period", "monthly")
	v.SetDefault("hunter.timeout_secs", 15)
	v.SetDefault("linkedin.client_id", "")
	v.SetDefault("linkedin.client_secret", "")
	v.SetDefault("linkedin.access_token", "")
	v.SetDefault("linkedin.base_url", "https://api.linkedin.com/v2")
	v.SetDefault("linkedin.min_interval_ms", 100)
	v.SetDefault("linkedin.quota", 500)
	v.SetDefault("linkedin.quota_period", "daily")
	v.SetDefault("linkedin.timeout_secs", 30)

	v.SetDefault("throttle.max_attempts", 4)
	v.SetDefault("throttle.initial_backoff_ms", 1000)
	v.SetDefault("throttle.max_backoff_ms", 60000)
	v.SetDefault("throttle.max_retry_after_secs", 120)
	v.SetDefault("throttle.multiplier", 2.0)
	v.SetDefault("throttle.jitter_fraction", 0.2)
	v.SetDefault("circuit.failure_threshold", 5)
	v.SetDefault("circuit.reset_timeout_secs", 30)

	v.SetDefault("pipeline.min_company_size", 10)
	v.SetDefault("pipeline.enrich_concurrency", 4)
	v.SetDefault("pipeline.suggest_sample", 5)
	v.SetDefault("scoring.rules_file", "")

	v.SetDefault("scheduler.poll_interval_secs", 60)
	v.SetDefault("scheduler.max_parallel", 1)
	v.SetDefault("scheduler.stale_execution_hours", 2)

	v.SetDefault("monitoring.enabled", false)
	v.SetDefault("monitoring.webhook_url", "")
	v.SetDefault("monitoring.check_interval_secs", 300)
	v.SetDefault("monitoring.lookback_window_hours", 24)
	v.SetDefault("monitoring.failure_rate_threshold", 0.25)
	v.SetDefault("monitoring.quota_usage_threshold", 0.9)

	v.SetDefault("events.amqp_url", "")
	v.SetDefault("events.exchange", "leadgen.events")

	v.SetDefault("salesforce.login_url", "https://login.salesforce.com")
	v.SetDefault("salesforce.push_on_generate", false)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks that the settings a command mode depends on are present.
// Modes: "store" (migrate, admin commands), "pipeline" (generate, suggest,
// scheduler, serve).
func (c *Config) Validate(mode string) error {
	var missing []string
	if c.Store.Driver == "postgres" && c.Store.DatabaseURL == "" {
		missing = append(missing, "LEADGEN_STORE_DATABASE_URL")
	}
	if mode == "pipeline" {
		if c.Apollo.APIKey == "" {
			missing = append(missing, "LEADGEN_APOLLO_API_KEY")
		}
		if c.Hunter.APIKey == "" {
			missing = append(missing, "LEADGEN_HUNTER_API_KEY")
		}
		if c.LinkedIn.ClientID == "" || c.LinkedIn.ClientSecret == "" {
			missing = append(missing, "LEADGEN_LINKEDIN_CLIENT_ID/LEADGEN_LINKEDIN_CLIENT_SECRET")
		}
	}
	if len(missing) > 0 {
		return eris.Wrapf(apperr.ErrConfiguration, "missing required settings: %s", strings.Join(missing, ", "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
