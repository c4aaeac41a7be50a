package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App       AppConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Log       LogConfig
	HTTP      HTTPConfig
	Sync      SyncConfig
	Breaker   BreakerConfig
	RateLimit RateLimitConfig
	Webhook   WebhookConfig
	Providers ProvidersConfig
	Telemetry TelemetryConfig
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string
	Env  string
	Port string
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int // in minutes
	ConnMaxIdleTime int // in minutes
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	MaxHeaderBytes    int
	MaxBodySize       int64
	RateLimitEnabled  bool
	RateLimitRequests int
	RateLimitWindow   time.Duration
	TrustedProxies    []string
}

// SyncConfig holds sync orchestrator tuning
type SyncConfig struct {
	Workers         int
	PollInterval    time.Duration
	ProviderTimeout time.Duration
	MaxRetries      int
	BackoffBase     time.Duration
	BackoffMax      time.Duration
	MetricsWindow   time.Duration
}

// BreakerConfig holds circuit breaker tuning, applied per provider
type BreakerConfig struct {
	FailureThreshold int
	Cooldown         time.Duration
	MaxCooldown      time.Duration
}

// RateLimitConfig holds outbound provider rate limit quotas. A provider
// capacity of zero falls back to the default quota.
type RateLimitConfig struct {
	DefaultCapacity    int
	Window             time.Duration
	XeroCapacity       int
	QuickBooksCapacity int
	MYOBCapacity       int
}

// WebhookConfig holds webhook ingestion tuning
type WebhookConfig struct {
	Consumers      int
	PollInterval   time.Duration
	BatchSize      int
	IdempotencyTTL time.Duration
}

// ProviderConfig holds per-provider client settings
type ProviderConfig struct {
	Enabled       bool
	BaseURL       string
	AccessToken   string
	WebhookSecret string
}

// ProvidersConfig holds client settings for every supported provider
type ProvidersConfig struct {
	Xero       ProviderConfig
	QuickBooks ProviderConfig
	MYOB       ProviderConfig
}

// TelemetryConfig holds OpenTelemetry configuration
type TelemetryConfig struct {
	Enabled bool
	// CollectorEndpoint is the OTEL Collector endpoint (e.g., "localhost:4317")
	CollectorEndpoint string
	// ServiceName is the service name attached to exported metrics
	ServiceName string
	// Insecure uses a non-TLS connection (development only)
	Insecure       bool
	ExportInterval time.Duration
}

// Load loads configuration from TOML file and environment variables
// Priority (highest to lowest):
// 1. Environment variables with RESTOREASSIST_ prefix
//    (e.g., RESTOREASSIST_DATABASE_PASSWORD)
// 2. config.toml
// 3. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("/app")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, we'll use defaults and env vars
	}

	v.SetEnvPrefix("RESTOREASSIST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
			Port: v.GetString("app.port"),
		},
		Database: DatabaseConfig{
			Host:            v.GetString("database.host"),
			Port:            v.GetInt("database.port"),
			User:            v.GetString("database.user"),
			Password:        v.GetString("database.password"),
			DBName:          v.GetString("database.dbname"),
			SSLMode:         v.GetString("database.sslmode"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetInt("database.conn_max_lifetime"),
			ConnMaxIdleTime: v.GetInt("database.conn_max_idle_time"),
		},
		Redis: RedisConfig{
			Host:     v.GetString("redis.host"),
			Port:     v.GetInt("redis.port"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		HTTP: HTTPConfig{
			ReadTimeout:       v.GetDuration("http.read_timeout"),
			WriteTimeout:      v.GetDuration("http.write_timeout"),
			IdleTimeout:       v.GetDuration("http.idle_timeout"),
			MaxHeaderBytes:    v.GetInt("http.max_header_bytes"),
			MaxBodySize:       v.GetInt64("http.max_body_size"),
			RateLimitEnabled:  v.GetBool("http.rate_limit_enabled"),
			RateLimitRequests: v.GetInt("http.rate_limit_requests"),
			RateLimitWindow:   v.GetDuration("http.rate_limit_window"),
			TrustedProxies:    v.GetStringSlice("http.trusted_proxies"),
		},
		Sync: SyncConfig{
			Workers:         v.GetInt("sync.workers"),
			PollInterval:    v.GetDuration("sync.poll_interval"),
			ProviderTimeout: v.GetDuration("sync.provider_timeout"),
			MaxRetries:      v.GetInt("sync.max_retries"),
			BackoffBase:     v.GetDuration("sync.backoff_base"),
			BackoffMax:      v.GetDuration("sync.backoff_max"),
			MetricsWindow:   v.GetDuration("sync.metrics_window"),
		},
		Breaker: BreakerConfig{
			FailureThreshold: v.GetInt("breaker.failure_threshold"),
			Cooldown:         v.GetDuration("breaker.cooldown"),
			MaxCooldown:      v.GetDuration("breaker.max_cooldown"),
		},
		RateLimit: RateLimitConfig{
			DefaultCapacity:    v.GetInt("ratelimit.default_capacity"),
			Window:             v.GetDuration("ratelimit.window"),
			XeroCapacity:       v.GetInt("ratelimit.xero_capacity"),
			QuickBooksCapacity: v.GetInt("ratelimit.quickbooks_capacity"),
			MYOBCapacity:       v.GetInt("ratelimit.myob_capacity"),
		},
		Webhook: WebhookConfig{
			Consumers:      v.GetInt("webhook.consumers"),
			PollInterval:   v.GetDuration("webhook.poll_interval"),
			BatchSize:      v.GetInt("webhook.batch_size"),
			IdempotencyTTL: v.GetDuration("webhook.idempotency_ttl"),
		},
		Providers: ProvidersConfig{
			Xero: ProviderConfig{
				Enabled:       v.GetBool("providers.xero.enabled"),
				BaseURL:       v.GetString("providers.xero.base_url"),
				AccessToken:   v.GetString("providers.xero.access_token"),
				WebhookSecret: v.GetString("providers.xero.webhook_secret"),
			},
			QuickBooks: ProviderConfig{
				Enabled:       v.GetBool("providers.quickbooks.enabled"),
				BaseURL:       v.GetString("providers.quickbooks.base_url"),
				AccessToken:   v.GetString("providers.quickbooks.access_token"),
				WebhookSecret: v.GetString("providers.quickbooks.webhook_secret"),
			},
			MYOB: ProviderConfig{
				Enabled:       v.GetBool("providers.myob.enabled"),
				BaseURL:       v.GetString("providers.myob.base_url"),
				AccessToken:   v.GetString("providers.myob.access_token"),
				WebhookSecret: v.GetString("providers.myob.webhook_secret"),
			},
		},
		Telemetry: TelemetryConfig{
			Enabled:           v.GetBool("telemetry.enabled"),
			CollectorEndpoint: v.GetString("telemetry.collector_endpoint"),
			ServiceName:       v.GetString("telemetry.service_name"),
			Insecure:          v.GetBool("telemetry.insecure"),
			ExportInterval:    v.GetDuration("telemetry.export_interval"),
		},
	}

	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyDefaults sets default values for any empty config fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "restoreassist-accounting"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.App.Port == "" {
		cfg.App.Port = "8080"
	}
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.User == "" {
		cfg.Database.User = "postgres"
	}
	if cfg.Database.DBName == "" {
		cfg.Database.DBName = "restoreassist"
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 25
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 60
	}
	if cfg.Database.ConnMaxIdleTime == 0 {
		cfg.Database.ConnMaxIdleTime = 30
	}
	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}
	if cfg.HTTP.ReadTimeout == 0 {
		cfg.HTTP.ReadTimeout = 15 * time.Second
	}
	if cfg.HTTP.WriteTimeout == 0 {
		cfg.HTTP.WriteTimeout = 15 * time.Second
	}
	if cfg.HTTP.IdleTimeout == 0 {
		cfg.HTTP.IdleTimeout = 60 * time.Second
	}
	if cfg.HTTP.MaxHeaderBytes == 0 {
		cfg.HTTP.MaxHeaderBytes = 1 << 20 // 1MB
	}
	if cfg.HTTP.MaxBodySize == 0 {
		cfg.HTTP.MaxBodySize = 1 << 20 // 1MB, webhook payloads are small
	}
	if cfg.HTTP.RateLimitRequests == 0 {
		cfg.HTTP.RateLimitRequests = 100
	}
	if cfg.HTTP.RateLimitWindow == 0 {
		cfg.HTTP.RateLimitWindow = time.Minute
	}
	if cfg.Sync.Workers == 0 {
		cfg.Sync.Workers = 4
	}
	if cfg.Sync.PollInterval == 0 {
		cfg.Sync.PollInterval = time.Second
	}
	if cfg.Sync.ProviderTimeout == 0 {
		cfg.Sync.ProviderTimeout = 30 * time.Second
	}
	if cfg.Sync.MaxRetries == 0 {
		cfg.Sync.MaxRetries = 5
	}
	if cfg.Sync.BackoffBase == 0 {
		cfg.Sync.BackoffBase = 2 * time.Second
	}
	if cfg.Sync.BackoffMax == 0 {
		cfg.Sync.BackoffMax = 5 * time.Minute
	}
	if cfg.Sync.MetricsWindow == 0 {
		cfg.Sync.MetricsWindow = 15 * time.Minute
	}
	if cfg.Breaker.FailureThreshold == 0 {
		cfg.Breaker.FailureThreshold = 5
	}
	if cfg.Breaker.Cooldown == 0 {
		cfg.Breaker.Cooldown = 30 * time.Second
	}
	if cfg.Breaker.MaxCooldown == 0 {
		cfg.Breaker.MaxCooldown = 10 * time.Minute
	}
	if cfg.RateLimit.DefaultCapacity == 0 {
		cfg.RateLimit.DefaultCapacity = 60
	}
	if cfg.RateLimit.Window == 0 {
		cfg.RateLimit.Window = time.Minute
	}
	if cfg.Webhook.Consumers == 0 {
		cfg.Webhook.Consumers = 2
	}
	if cfg.Webhook.PollInterval == 0 {
		cfg.Webhook.PollInterval = 2 * time.Second
	}
	if cfg.Webhook.BatchSize == 0 {
		cfg.Webhook.BatchSize = 50
	}
	if cfg.Webhook.IdempotencyTTL == 0 {
		cfg.Webhook.IdempotencyTTL = 72 * time.Hour
	}
	if cfg.Telemetry.CollectorEndpoint == "" {
		cfg.Telemetry.CollectorEndpoint = "localhost:4317"
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = "restoreassist-accounting"
	}
	if cfg.Telemetry.ExportInterval == 0 {
		cfg.Telemetry.ExportInterval = 15 * time.Second
	}
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	if c.Database.MaxOpenConns <= 0 {
		return fmt.Errorf("database.max_open_conns must be positive")
	}
	if c.Database.MaxIdleConns < 0 {
		return fmt.Errorf("database.max_idle_conns cannot be negative")
	}
	if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		return fmt.Errorf("database.max_idle_conns (%d) cannot exceed database.max_open_conns (%d)",
			c.Database.MaxIdleConns, c.Database.MaxOpenConns)
	}

	if c.Sync.Workers < 1 {
		return fmt.Errorf("sync.workers must be positive")
	}
	if c.Sync.MaxRetries < 1 {
		return fmt.Errorf("sync.max_retries must be positive")
	}
	if c.Breaker.FailureThreshold < 1 {
		return fmt.Errorf("breaker.failure_threshold must be positive")
	}
	if c.Breaker.MaxCooldown < c.Breaker.Cooldown {
		return fmt.Errorf("breaker.max_cooldown (%s) cannot be below breaker.cooldown (%s)",
			c.Breaker.MaxCooldown, c.Breaker.Cooldown)
	}
	if c.RateLimit.DefaultCapacity < 1 {
		return fmt.Errorf("ratelimit.default_capacity must be positive")
	}

	// Production-specific validations
	if c.App.Env == "production" {
		if c.Database.Password == "" {
			return fmt.Errorf("database.password is required in production")
		}
		if c.Database.SSLMode == "disable" {
			return fmt.Errorf("database.sslmode cannot be 'disable' in production")
		}
		for _, p := range []struct {
			name string
			cfg  ProviderConfig
		}{
			{"xero", c.Providers.Xero},
			{"quickbooks", c.Providers.QuickBooks},
			{"myob", c.Providers.MYOB},
		} {
			if p.cfg.Enabled && p.cfg.WebhookSecret == "" {
				return fmt.Errorf("providers.%s.webhook_secret is required in production", p.name)
			}
		}
	}

	return nil
}

// DSN returns the database connection string with properly escaped values
func (d *DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:   d.DBName,
	}
	q := u.Query()
	q.Set("sslmode", d.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}
