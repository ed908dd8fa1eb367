package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App         AppConfig
	Database    DatabaseConfig
	Redis       RedisConfig
	Log         LogConfig
	HTTP        HTTPConfig
	Swagger     SwaggerConfig
	Telemetry   TelemetryConfig
	Ledger      LedgerConfig
	Reservation ReservationConfig
	Sweeper     SweeperConfig
	Reconciler  ReconcilerConfig
	Dispatcher  DispatcherConfig
	Kafka       KafkaConfig
	Platforms   []PlatformConfig
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
	Driver          string // postgres, sqlite
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	SQLitePath      string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int // in minutes
	ConnMaxIdleTime int // in minutes
	LogLevel        string
	SlowThreshold   time.Duration
	AutoMigrate     bool // apply embedded migrations at startup (postgres)
}

// RedisConfig holds Redis connection settings. When disabled, sweep state and
// the sweeper lease are kept in process.
type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

// Addr returns host:port for the Redis client.
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	ReadTimeout      time.Duration
	WriteTimeout     time.Duration
	IdleTimeout      time.Duration
	ShutdownTimeout  time.Duration
	RequestTimeout   time.Duration // deadline applied to each request context; zero disables
	MaxHeaderBytes   int
	MaxBodySize      int64
	CORSAllowOrigins []string
	CORSAllowMethods []string
	CORSAllowHeaders []string
	TrustedProxies   []string
	// RateLimitPerSecond caps requests per client IP; zero disables the limiter
	RateLimitPerSecond float64
	RateLimitBurst     int
}

// SwaggerConfig holds Swagger documentation endpoint configuration
type SwaggerConfig struct {
	Enabled bool
	// AllowedIPs restricts the docs to these IPs or CIDRs; empty allows everyone outside production
	AllowedIPs []string
}

// TelemetryConfig holds OpenTelemetry and profiling configuration
type TelemetryConfig struct {
	Enabled           bool    // Whether to enable tracing
	CollectorEndpoint string  // OTEL Collector endpoint (e.g., "localhost:4317")
	SamplingRatio     float64 // Sampling ratio (0.0-1.0, 1.0 = 100%)
	ServiceName       string
	ServiceVersion    string
	Insecure          bool // Use insecure (non-TLS) connection (development only)
	// Metrics and logs export
	MetricsEnabled        bool
	MetricsExportInterval time.Duration
	GaugeCollectInterval  time.Duration
	LogsEnabled           bool
	// Database tracing options
	DBTraceEnabled    bool
	DBLogFullSQL      bool // dev only
	DBSlowQueryThresh time.Duration
	// Continuous profiling
	ProfilingEnabled       bool
	ProfilingServerAddress string
	ProfilingAuthUser      string
	ProfilingAuthPassword  string
	ProfilingProfileTypes  []string
}

// LedgerConfig holds stock ledger settings
type LedgerConfig struct {
	HistoryPageSize int
}

// ReservationConfig holds reservation admission settings
type ReservationConfig struct {
	DefaultTTL  time.Duration // applied when a reservation request carries no deadline
	LockTimeout time.Duration // how long a writer waits for the per-unit lock
}

// SweeperConfig holds the reservation expiry sweeper settings
type SweeperConfig struct {
	Enabled   bool
	Interval  time.Duration
	BatchSize int
	LockTTL   time.Duration // lease held by the instance running a sweep
}

// ReconcilerConfig holds marketplace merge and drift detection settings
type ReconcilerConfig struct {
	Enabled            bool
	PullInterval       time.Duration
	ReconcileInterval  time.Duration
	FuzzyThreshold     float64
	DriftTolerance     int64
	ImportInitialStock bool
	DefaultOwnerID     string
	// MergeLockTTL bounds how long a crashed merge blocks its seller account
	MergeLockTTL time.Duration
	// MergeLockWait is how long a merge waits for another merge of the same account
	MergeLockWait time.Duration
}

// DispatcherConfig holds outbound sync task dispatch settings
type DispatcherConfig struct {
	Enabled       bool
	Workers       int
	PollInterval  time.Duration
	MaxAttempts   int
	BaseBackoff   time.Duration
	MaxBackoff    time.Duration
	BatchSize     int
	RatePerSecond float64 // per platform
	Burst         int
	StaleAfter    time.Duration
}

// KafkaConfig holds alert publishing settings
type KafkaConfig struct {
	Enabled      bool
	Brokers      []string
	AlertTopic   string
	ClientID     string
	WriteTimeout time.Duration
	// DedupWindow suppresses repeats of the same alert within the window
	DedupWindow time.Duration
}

// PlatformConfig describes one marketplace connection
type PlatformConfig struct {
	Code     string        `mapstructure:"code"`
	BaseURL  string        `mapstructure:"base_url"`
	APIKey   string        `mapstructure:"api_key"`
	SellerID string        `mapstructure:"seller_id"`
	Timeout  time.Duration `mapstructure:"timeout"`
	Enabled  bool          `mapstructure:"enabled"`
}

// EnabledPlatforms returns the platform entries switched on.
func (c *Config) EnabledPlatforms() []PlatformConfig {
	out := make([]PlatformConfig, 0, len(c.Platforms))
	for _, p := range c.Platforms {
		if p.Enabled {
			out = append(out, p)
		}
	}
	return out
}

// IsProduction reports whether the app runs with production rules.
func (c *Config) IsProduction() bool {
	return c.App.Env == "production"
}

// Load loads configuration from TOML file and environment variables
// Priority (highest to lowest):
// 1. Environment variables with STOCKSYNC_ prefix (e.g., STOCKSYNC_DATABASE_PASSWORD)
// 2. .env file in the working directory (exported into the environment)
// 3. config.toml
// 4. Built-in defaults
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("error loading .env file: %w", err)
	}

	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/stocksync")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvPrefix("STOCKSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Switches that default to on
	v.SetDefault("sweeper.enabled", true)
	v.SetDefault("reconciler.enabled", true)
	v.SetDefault("dispatcher.enabled", true)
	v.SetDefault("swagger.enabled", true)

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
			Port: v.GetString("app.port"),
		},
		Database: DatabaseConfig{
			Driver:          v.GetString("database.driver"),
			Host:            v.GetString("database.host"),
			Port:            v.GetInt("database.port"),
			User:            v.GetString("database.user"),
			Password:        v.GetString("database.password"),
			DBName:          v.GetString("database.dbname"),
			SSLMode:         v.GetString("database.sslmode"),
			SQLitePath:      v.GetString("database.sqlite_path"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetInt("database.conn_max_lifetime"),
			ConnMaxIdleTime: v.GetInt("database.conn_max_idle_time"),
			LogLevel:        v.GetString("database.log_level"),
			SlowThreshold:   v.GetDuration("database.slow_threshold"),
			AutoMigrate:     v.GetBool("database.auto_migrate"),
		},
		Redis: RedisConfig{
			Enabled:  v.GetBool("redis.enabled"),
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
			ReadTimeout:      v.GetDuration("http.read_timeout"),
			WriteTimeout:     v.GetDuration("http.write_timeout"),
			IdleTimeout:      v.GetDuration("http.idle_timeout"),
			ShutdownTimeout:  v.GetDuration("http.shutdown_timeout"),
			RequestTimeout:   v.GetDuration("http.request_timeout"),
			MaxHeaderBytes:   v.GetInt("http.max_header_bytes"),
			MaxBodySize:      v.GetInt64("http.max_body_size"),
			CORSAllowOrigins: v.GetStringSlice("http.cors_allow_origins"),
			CORSAllowMethods: v.GetStringSlice("http.cors_allow_methods"),
			CORSAllowHeaders: v.GetStringSlice("http.cors_allow_headers"),
			TrustedProxies:   v.GetStringSlice("http.trusted_proxies"),

			RateLimitPerSecond: v.GetFloat64("http.rate_limit_per_second"),
			RateLimitBurst:     v.GetInt("http.rate_limit_burst"),
		},
		Swagger: SwaggerConfig{
			Enabled:    v.GetBool("swagger.enabled"),
			AllowedIPs: v.GetStringSlice("swagger.allowed_ips"),
		},
		Telemetry: TelemetryConfig{
			Enabled:                v.GetBool("telemetry.enabled"),
			CollectorEndpoint:      v.GetString("telemetry.collector_endpoint"),
			SamplingRatio:          v.GetFloat64("telemetry.sampling_ratio"),
			ServiceName:            v.GetString("telemetry.service_name"),
			ServiceVersion:         v.GetString("telemetry.service_version"),
			Insecure:               v.GetBool("telemetry.insecure"),
			MetricsEnabled:         v.GetBool("telemetry.metrics_enabled"),
			MetricsExportInterval:  v.GetDuration("telemetry.metrics_export_interval"),
			GaugeCollectInterval:   v.GetDuration("telemetry.gauge_collect_interval"),
			LogsEnabled:            v.GetBool("telemetry.logs_enabled"),
			DBTraceEnabled:         v.GetBool("telemetry.db_trace_enabled"),
			DBLogFullSQL:           v.GetBool("telemetry.db_log_full_sql"),
			DBSlowQueryThresh:      v.GetDuration("telemetry.db_slow_query_threshold"),
			ProfilingEnabled:       v.GetBool("telemetry.profiling_enabled"),
			ProfilingServerAddress: v.GetString("telemetry.profiling_server_address"),
			ProfilingAuthUser:      v.GetString("telemetry.profiling_auth_user"),
			ProfilingAuthPassword:  v.GetString("telemetry.profiling_auth_password"),
			ProfilingProfileTypes:  v.GetStringSlice("telemetry.profiling_profile_types"),
		},
		Ledger: LedgerConfig{
			HistoryPageSize: v.GetInt("ledger.history_page_size"),
		},
		Reservation: ReservationConfig{
			DefaultTTL:  v.GetDuration("reservation.default_ttl"),
			LockTimeout: v.GetDuration("reservation.lock_timeout"),
		},
		Sweeper: SweeperConfig{
			Enabled:   v.GetBool("sweeper.enabled"),
			Interval:  v.GetDuration("sweeper.interval"),
			BatchSize: v.GetInt("sweeper.batch_size"),
			LockTTL:   v.GetDuration("sweeper.lock_ttl"),
		},
		Reconciler: ReconcilerConfig{
			Enabled:            v.GetBool("reconciler.enabled"),
			PullInterval:       v.GetDuration("reconciler.pull_interval"),
			ReconcileInterval:  v.GetDuration("reconciler.reconcile_interval"),
			FuzzyThreshold:     v.GetFloat64("reconciler.fuzzy_threshold"),
			DriftTolerance:     v.GetInt64("reconciler.drift_tolerance"),
			ImportInitialStock: v.GetBool("reconciler.import_initial_stock"),
			DefaultOwnerID:     v.GetString("reconciler.default_owner_id"),
			MergeLockTTL:       v.GetDuration("reconciler.merge_lock_ttl"),
			MergeLockWait:      v.GetDuration("reconciler.merge_lock_wait"),
		},
		Dispatcher: DispatcherConfig{
			Enabled:       v.GetBool("dispatcher.enabled"),
			Workers:       v.GetInt("dispatcher.workers"),
			PollInterval:  v.GetDuration("dispatcher.poll_interval"),
			MaxAttempts:   v.GetInt("dispatcher.max_attempts"),
			BaseBackoff:   v.GetDuration("dispatcher.base_backoff"),
			MaxBackoff:    v.GetDuration("dispatcher.max_backoff"),
			BatchSize:     v.GetInt("dispatcher.batch_size"),
			RatePerSecond: v.GetFloat64("dispatcher.rate_per_second"),
			Burst:         v.GetInt("dispatcher.burst"),
			StaleAfter:    v.GetDuration("dispatcher.stale_after"),
		},
		Kafka: KafkaConfig{
			Enabled:      v.GetBool("kafka.enabled"),
			Brokers:      v.GetStringSlice("kafka.brokers"),
			AlertTopic:   v.GetString("kafka.alert_topic"),
			ClientID:     v.GetString("kafka.client_id"),
			WriteTimeout: v.GetDuration("kafka.write_timeout"),
			DedupWindow:  v.GetDuration("kafka.dedup_window"),
		},
	}

	// Platforms are a list of tables, only the file can express them
	if err := v.UnmarshalKey("platforms", &cfg.Platforms); err != nil {
		return nil, fmt.Errorf("error decoding platforms: %w", err)
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
		cfg.App.Name = "stocksync"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.App.Port == "" {
		cfg.App.Port = "8080"
	}
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "postgres"
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
		cfg.Database.DBName = "stocksync"
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.SQLitePath == "" {
		cfg.Database.SQLitePath = "stocksync.db"
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
	if cfg.Database.LogLevel == "" {
		cfg.Database.LogLevel = "warn"
	}
	if cfg.Database.SlowThreshold == 0 {
		cfg.Database.SlowThreshold = 200 * time.Millisecond
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
	if cfg.HTTP.ShutdownTimeout == 0 {
		cfg.HTTP.ShutdownTimeout = 30 * time.Second
	}
	if cfg.HTTP.MaxHeaderBytes == 0 {
		cfg.HTTP.MaxHeaderBytes = 1 << 20 // 1MB
	}
	if cfg.HTTP.MaxBodySize == 0 {
		cfg.HTTP.MaxBodySize = 10 << 20 // 10MB
	}
	if cfg.HTTP.RateLimitPerSecond > 0 && cfg.HTTP.RateLimitBurst <= 0 {
		cfg.HTTP.RateLimitBurst = int(cfg.HTTP.RateLimitPerSecond) + 1
	}
	// Empty CORS origins means no cross-origin requests are allowed.
	if len(cfg.HTTP.CORSAllowMethods) == 0 {
		cfg.HTTP.CORSAllowMethods = []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"}
	}
	if len(cfg.HTTP.CORSAllowHeaders) == 0 {
		cfg.HTTP.CORSAllowHeaders = []string{"Content-Type", "Authorization", "X-Request-ID", "X-Owner-ID", "X-Actor"}
	}

	// Telemetry defaults
	if cfg.Telemetry.CollectorEndpoint == "" {
		cfg.Telemetry.CollectorEndpoint = "localhost:4317"
	}
	if cfg.Telemetry.SamplingRatio == 0 {
		cfg.Telemetry.SamplingRatio = 1.0
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = cfg.App.Name
	}
	if cfg.Telemetry.ServiceVersion == "" {
		cfg.Telemetry.ServiceVersion = "dev"
	}
	if cfg.Telemetry.MetricsExportInterval == 0 {
		cfg.Telemetry.MetricsExportInterval = 60 * time.Second
	}
	if cfg.Telemetry.GaugeCollectInterval == 0 {
		cfg.Telemetry.GaugeCollectInterval = time.Minute
	}
	if cfg.Telemetry.DBSlowQueryThresh == 0 {
		cfg.Telemetry.DBSlowQueryThresh = 200 * time.Millisecond
	}
	if cfg.Telemetry.ProfilingServerAddress == "" {
		cfg.Telemetry.ProfilingServerAddress = "http://localhost:4040"
	}

	if cfg.Ledger.HistoryPageSize == 0 {
		cfg.Ledger.HistoryPageSize = 100
	}
	if cfg.Reservation.DefaultTTL == 0 {
		cfg.Reservation.DefaultTTL = 15 * time.Minute
	}
	if cfg.Reservation.LockTimeout == 0 {
		cfg.Reservation.LockTimeout = 5 * time.Second
	}
	if cfg.Sweeper.Interval == 0 {
		cfg.Sweeper.Interval = 30 * time.Second
	}
	if cfg.Sweeper.BatchSize == 0 {
		cfg.Sweeper.BatchSize = 500
	}
	if cfg.Sweeper.LockTTL == 0 {
		cfg.Sweeper.LockTTL = 2 * time.Minute
	}
	if cfg.Reconciler.PullInterval == 0 {
		cfg.Reconciler.PullInterval = 15 * time.Minute
	}
	if cfg.Reconciler.ReconcileInterval == 0 {
		cfg.Reconciler.ReconcileInterval = time.Hour
	}
	if cfg.Reconciler.FuzzyThreshold == 0 {
		cfg.Reconciler.FuzzyThreshold = 0.85
	}
	if cfg.Reconciler.MergeLockTTL == 0 {
		cfg.Reconciler.MergeLockTTL = 5 * time.Minute
	}
	if cfg.Reconciler.MergeLockWait == 0 {
		cfg.Reconciler.MergeLockWait = 30 * time.Second
	}
	if cfg.Dispatcher.Workers == 0 {
		cfg.Dispatcher.Workers = 4
	}
	if cfg.Dispatcher.PollInterval == 0 {
		cfg.Dispatcher.PollInterval = 5 * time.Second
	}
	if cfg.Dispatcher.MaxAttempts == 0 {
		cfg.Dispatcher.MaxAttempts = 5
	}
	if cfg.Dispatcher.BaseBackoff == 0 {
		cfg.Dispatcher.BaseBackoff = 30 * time.Second
	}
	if cfg.Dispatcher.MaxBackoff == 0 {
		cfg.Dispatcher.MaxBackoff = 30 * time.Minute
	}
	if cfg.Dispatcher.BatchSize == 0 {
		cfg.Dispatcher.BatchSize = 100
	}
	if cfg.Dispatcher.RatePerSecond == 0 {
		cfg.Dispatcher.RatePerSecond = 5
	}
	if cfg.Dispatcher.Burst == 0 {
		cfg.Dispatcher.Burst = 5
	}
	if cfg.Dispatcher.StaleAfter == 0 {
		cfg.Dispatcher.StaleAfter = 10 * time.Minute
	}
	if cfg.Kafka.AlertTopic == "" {
		cfg.Kafka.AlertTopic = "stocksync.alerts"
	}
	if cfg.Kafka.ClientID == "" {
		cfg.Kafka.ClientID = cfg.App.Name
	}
	if cfg.Kafka.WriteTimeout == 0 {
		cfg.Kafka.WriteTimeout = 10 * time.Second
	}
	if cfg.Kafka.DedupWindow == 0 {
		cfg.Kafka.DedupWindow = 6 * time.Hour
	}
	for i := range cfg.Platforms {
		cfg.Platforms[i].Code = strings.ToUpper(strings.TrimSpace(cfg.Platforms[i].Code))
		if cfg.Platforms[i].Timeout == 0 {
			cfg.Platforms[i].Timeout = 30 * time.Second
		}
	}
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("database.driver must be postgres or sqlite, got %q", c.Database.Driver)
	}
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

	if c.Telemetry.SamplingRatio < 0.0 || c.Telemetry.SamplingRatio > 1.0 {
		return fmt.Errorf("telemetry.sampling_ratio must be between 0.0 and 1.0, got %f", c.Telemetry.SamplingRatio)
	}
	if c.Reconciler.FuzzyThreshold <= 0 || c.Reconciler.FuzzyThreshold > 1 {
		return fmt.Errorf("reconciler.fuzzy_threshold must be in (0, 1], got %f", c.Reconciler.FuzzyThreshold)
	}
	if c.Reconciler.DriftTolerance < 0 {
		return fmt.Errorf("reconciler.drift_tolerance cannot be negative")
	}
	if c.Dispatcher.Workers < 0 {
		return fmt.Errorf("dispatcher.workers cannot be negative")
	}
	if c.Dispatcher.BaseBackoff > c.Dispatcher.MaxBackoff {
		return fmt.Errorf("dispatcher.base_backoff (%s) cannot exceed dispatcher.max_backoff (%s)",
			c.Dispatcher.BaseBackoff, c.Dispatcher.MaxBackoff)
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers is required when kafka is enabled")
	}

	seen := make(map[string]bool, len(c.Platforms))
	for i, p := range c.Platforms {
		if p.Code == "" {
			return fmt.Errorf("platforms[%d].code is required", i)
		}
		if seen[p.Code] {
			return fmt.Errorf("platform %s is configured more than once", p.Code)
		}
		seen[p.Code] = true
		if p.Enabled && p.BaseURL == "" {
			return fmt.Errorf("platforms[%d].base_url is required for enabled platform %s", i, p.Code)
		}
	}

	// Production-specific validations
	if c.IsProduction() {
		if c.Database.Driver == "sqlite" {
			return fmt.Errorf("database.driver cannot be 'sqlite' in production")
		}
		if c.Database.Password == "" {
			return fmt.Errorf("database.password is required in production")
		}
		if c.Database.SSLMode == "disable" {
			return fmt.Errorf("database.sslmode cannot be 'disable' in production")
		}
		for _, origin := range c.HTTP.CORSAllowOrigins {
			if origin == "*" {
				return fmt.Errorf("cors_allow_origins cannot be '*' in production (use specific origins)")
			}
		}
		if c.Telemetry.DBLogFullSQL {
			return fmt.Errorf("telemetry.db_log_full_sql must be false in production to prevent sensitive data exposure in traces")
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
