package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration for the crawler pipeline.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Logging   LoggingConfig
	Search    SearchConfig
	Resolver  ResolverConfig
	Browser   BrowserConfig
	Extractor ExtractorConfig
	Scheduler SchedulerConfig
	Recovery  RecoveryConfig
	Alerting  AlertingConfig
	Redis     RedisConfig
}

// ServerConfig holds admin-surface (healthz/metrics) configuration.
type ServerConfig struct {
	MetricsPort int
	Environment string
}

// DatabaseConfig holds PostgreSQL configuration.
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string
	Format string
}

// SearchConfig controls the Google-News search client, per spec §6's
// MAX_RESULTS_PER_SEARCH.
type SearchConfig struct {
	UserAgent      string
	MaxResults     int
	Language       string
	Country        string
	RobotsTxtCheck bool
}

// ResolverConfig controls URLResolver's per-URL and per-batch budgets, per
// spec §6's MAX_URLS_TO_PROCESS / MAX_URL_PROCESSING_TIME.
type ResolverConfig struct {
	PerURLTimeout  time.Duration
	BatchBudget    time.Duration
	BatchURLCap    int
	BrowserEnabled bool
}

// BrowserConfig controls the shared headless-browser pool used by both the
// resolver's browser fallback and the extractor's JS-render fallback, per
// spec §6's MAX_TABS_PER_BROWSER / PLAYWRIGHT_* keys.
type BrowserConfig struct {
	PoolSize          int
	Headless          bool
	NavigationTimeout time.Duration
	WaitAfterLoad     time.Duration
}

// ExtractorConfig controls ArticleExtractor timeouts and retry, per spec
// §6's EXTRACTION_* keys.
type ExtractorConfig struct {
	Timeout            time.Duration
	JSRenderEnabled    bool
	MaxRetries         int
	RetryBaseDelay     time.Duration
	RetryMultiplier    float64
	ConcurrencyLimit   int
	RelevanceThreshold float64
}

// SchedulerConfig controls the scheduler's dispatch/health/cleanup sweeps,
// per spec §6's MAX_CONCURRENT_JOBS / JOB_EXECUTION_TIMEOUT /
// JOB_CLEANUP_DAYS (CRAWLER_CONCURRENCY_LIMIT is read into
// ExtractorConfig).
type SchedulerConfig struct {
	PollIntervalMinutes int
	HealthCheckInterval time.Duration
	CleanupInterval     time.Duration
	StuckThreshold      time.Duration
	JobCleanupDays      int
	MaxConcurrentJobs   int
	JobExecutionTimeout time.Duration
}

// RecoveryConfig tunes the failure-recovery decision table thresholds.
type RecoveryConfig struct {
	MaxRetriesPerCategory int
	EscalationThreshold   int
}

// AlertingConfig controls alert dispatch rate limiting and delivery
// channels.
type AlertingConfig struct {
	MaxAlertsPerHour int
	WebhookURL       string
	EmailEnabled     bool
	EmailHost        string
	EmailPort        int
	EmailUsername    string
	EmailPassword    string
	EmailRecipients  string
}

// RedisConfig controls the shared robots.txt/URL-resolution cache. An
// unreachable Redis is not fatal: cmd/crawler logs a warning and runs
// without the cross-worker cache.
type RedisConfig struct {
	Host         string
	Port         int
	Password     string
	DB           int
	PoolSize     int
	MinIdleConns int
}

// GetRedisAddr returns the host:port Redis address.
func (c *RedisConfig) GetRedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Load reads configuration from environment variables and .env file.
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{
		Server: ServerConfig{
			MetricsPort: v.GetInt("METRICS_PORT"),
			Environment: v.GetString("ENV"),
		},
		Database: DatabaseConfig{
			Host:     v.GetString("POSTGRES_HOST"),
			Port:     v.GetInt("POSTGRES_PORT"),
			User:     v.GetString("POSTGRES_USER"),
			Password: v.GetString("POSTGRES_PASSWORD"),
			Database: v.GetString("POSTGRES_DB"),
			SSLMode:  v.GetString("POSTGRES_SSL_MODE"),
		},
		Logging: LoggingConfig{
			Level:  v.GetString("LOG_LEVEL"),
			Format: v.GetString("LOG_FORMAT"),
		},
		Search: SearchConfig{
			UserAgent:      v.GetString("SCRAPER_USER_AGENT"),
			MaxResults:     v.GetInt("MAX_RESULTS_PER_SEARCH"),
			Language:       v.GetString("SEARCH_LANGUAGE"),
			Country:        v.GetString("SEARCH_COUNTRY"),
			RobotsTxtCheck: v.GetBool("ENABLE_ROBOTS_TXT_CHECK"),
		},
		Resolver: ResolverConfig{
			PerURLTimeout:  time.Duration(v.GetInt("RESOLVER_PER_URL_TIMEOUT_SECONDS")) * time.Second,
			BatchBudget:    time.Duration(v.GetInt("MAX_URL_PROCESSING_TIME")) * time.Second,
			BatchURLCap:    v.GetInt("MAX_URLS_TO_PROCESS"),
			BrowserEnabled: v.GetBool("ENABLE_JAVASCRIPT_RENDERING"),
		},
		Browser: BrowserConfig{
			PoolSize:          v.GetInt("MAX_TABS_PER_BROWSER"),
			Headless:          v.GetBool("PLAYWRIGHT_HEADLESS"),
			NavigationTimeout: time.Duration(v.GetInt("PLAYWRIGHT_TIMEOUT_SECONDS")) * time.Second,
			WaitAfterLoad:     time.Duration(v.GetInt("PLAYWRIGHT_WAIT_TIME_SECONDS")) * time.Second,
		},
		Extractor: ExtractorConfig{
			Timeout:            time.Duration(v.GetInt("EXTRACTION_TIMEOUT")) * time.Second,
			JSRenderEnabled:    v.GetBool("ENABLE_JAVASCRIPT_RENDERING"),
			MaxRetries:         v.GetInt("EXTRACTION_MAX_RETRIES"),
			RetryBaseDelay:     time.Duration(v.GetFloat64("EXTRACTION_RETRY_BASE_DELAY") * float64(time.Second)),
			RetryMultiplier:    v.GetFloat64("EXTRACTION_RETRY_MULTIPLIER"),
			ConcurrencyLimit:   v.GetInt("CRAWLER_CONCURRENCY_LIMIT"),
			RelevanceThreshold: v.GetFloat64("CATEGORY_RELEVANCE_THRESHOLD"),
		},
		Scheduler: SchedulerConfig{
			PollIntervalMinutes: v.GetInt("SCRAPER_SCHEDULE_INTERVAL_MINUTES"),
			HealthCheckInterval: time.Duration(v.GetInt("SCHEDULER_HEALTH_CHECK_INTERVAL_MINUTES")) * time.Minute,
			CleanupInterval:     time.Duration(v.GetInt("SCHEDULER_CLEANUP_INTERVAL_MINUTES")) * time.Minute,
			StuckThreshold:      time.Duration(v.GetInt("SCHEDULER_STUCK_THRESHOLD_MINUTES")) * time.Minute,
			JobCleanupDays:      v.GetInt("JOB_CLEANUP_DAYS"),
			MaxConcurrentJobs:   v.GetInt("MAX_CONCURRENT_JOBS"),
			JobExecutionTimeout: time.Duration(v.GetInt("JOB_EXECUTION_TIMEOUT")) * time.Second,
		},
		Recovery: RecoveryConfig{
			MaxRetriesPerCategory: v.GetInt("RECOVERY_MAX_RETRIES_PER_CATEGORY"),
			EscalationThreshold:   v.GetInt("RECOVERY_ESCALATION_THRESHOLD"),
		},
		Alerting: AlertingConfig{
			MaxAlertsPerHour: v.GetInt("ALERT_MAX_PER_HOUR"),
			WebhookURL:       v.GetString("ALERT_WEBHOOK_URL"),
			EmailEnabled:     v.GetBool("ALERT_EMAIL_ENABLED"),
			EmailHost:        v.GetString("ALERT_EMAIL_HOST"),
			EmailPort:        v.GetInt("ALERT_EMAIL_PORT"),
			EmailUsername:    v.GetString("ALERT_EMAIL_USERNAME"),
			EmailPassword:    v.GetString("ALERT_EMAIL_PASSWORD"),
			EmailRecipients:  v.GetString("ALERT_EMAIL_RECIPIENTS"),
		},
		Redis: RedisConfig{
			Host:         v.GetString("REDIS_HOST"),
			Port:         v.GetInt("REDIS_PORT"),
			Password:     v.GetString("REDIS_PASSWORD"),
			DB:           v.GetInt("REDIS_DB"),
			PoolSize:     v.GetInt("REDIS_POOL_SIZE"),
			MinIdleConns: v.GetInt("REDIS_MIN_IDLE_CONNS"),
		},
	}

	return cfg, nil
}

// setDefaults sets default configuration values, one per key in spec §6's
// configuration table.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("METRICS_PORT", 9090)
	v.SetDefault("ENV", "development")

	// Database defaults
	v.SetDefault("POSTGRES_HOST", "localhost")
	v.SetDefault("POSTGRES_PORT", 5432)
	v.SetDefault("POSTGRES_USER", "crawler")
	v.SetDefault("POSTGRES_PASSWORD", "crawler_password")
	v.SetDefault("POSTGRES_DB", "news_crawler")
	v.SetDefault("POSTGRES_SSL_MODE", "disable")

	// Logging defaults
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	// Search defaults
	v.SetDefault("SCRAPER_USER_AGENT", "NewsCrawler/1.0")
	v.SetDefault("MAX_RESULTS_PER_SEARCH", 100)
	v.SetDefault("SEARCH_LANGUAGE", "en")
	v.SetDefault("SEARCH_COUNTRY", "US")
	v.SetDefault("ENABLE_ROBOTS_TXT_CHECK", true)

	// URLResolver defaults
	v.SetDefault("RESOLVER_PER_URL_TIMEOUT_SECONDS", 5)
	v.SetDefault("MAX_URL_PROCESSING_TIME", 75)
	v.SetDefault("MAX_URLS_TO_PROCESS", 15)
	v.SetDefault("ENABLE_JAVASCRIPT_RENDERING", true)

	// Browser automation defaults
	v.SetDefault("MAX_TABS_PER_BROWSER", 10)
	v.SetDefault("PLAYWRIGHT_HEADLESS", true)
	v.SetDefault("PLAYWRIGHT_TIMEOUT_SECONDS", 30)
	v.SetDefault("PLAYWRIGHT_WAIT_TIME_SECONDS", 3)

	// Extraction defaults
	v.SetDefault("EXTRACTION_TIMEOUT", 30)
	v.SetDefault("EXTRACTION_MAX_RETRIES", 3)
	v.SetDefault("EXTRACTION_RETRY_BASE_DELAY", 1.0)
	v.SetDefault("EXTRACTION_RETRY_MULTIPLIER", 2.0)
	v.SetDefault("CRAWLER_CONCURRENCY_LIMIT", 10)
	v.SetDefault("CATEGORY_RELEVANCE_THRESHOLD", 0.3)

	// Scheduler defaults
	v.SetDefault("SCRAPER_SCHEDULE_INTERVAL_MINUTES", 15)
	v.SetDefault("SCHEDULER_HEALTH_CHECK_INTERVAL_MINUTES", 1)
	v.SetDefault("SCHEDULER_CLEANUP_INTERVAL_MINUTES", 60)
	v.SetDefault("SCHEDULER_STUCK_THRESHOLD_MINUTES", 120)
	v.SetDefault("JOB_CLEANUP_DAYS", 30)
	v.SetDefault("MAX_CONCURRENT_JOBS", 10)
	v.SetDefault("JOB_EXECUTION_TIMEOUT", 1800)

	// Recovery defaults
	v.SetDefault("RECOVERY_MAX_RETRIES_PER_CATEGORY", 5)
	v.SetDefault("RECOVERY_ESCALATION_THRESHOLD", 3)

	// Alerting defaults
	v.SetDefault("ALERT_MAX_PER_HOUR", 10)
	v.SetDefault("ALERT_WEBHOOK_URL", "")
	v.SetDefault("ALERT_EMAIL_ENABLED", false)
	v.SetDefault("ALERT_EMAIL_HOST", "")
	v.SetDefault("ALERT_EMAIL_PORT", 587)
	v.SetDefault("ALERT_EMAIL_RECIPIENTS", "")

	// Redis defaults
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("REDIS_POOL_SIZE", 20)
	v.SetDefault("REDIS_MIN_IDLE_CONNS", 5)
}

// GetDSN returns the PostgreSQL connection string.
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// IsDevelopment checks if running in development mode.
func (c *ServerConfig) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction checks if running in production mode.
func (c *ServerConfig) IsProduction() bool {
	return c.Environment == "production"
}

// ScheduleInterval returns the scheduler's dispatch poll interval.
func (c *SchedulerConfig) ScheduleInterval() time.Duration {
	return time.Duration(c.PollIntervalMinutes) * time.Minute
}

// CleanupRetention returns completed-job retention as a duration.
func (c *SchedulerConfig) CleanupRetention() time.Duration {
	return time.Duration(c.JobCleanupDays) * 24 * time.Hour
}
