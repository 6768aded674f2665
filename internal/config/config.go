// Package config handles application configuration loading and validation using Viper.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config represents the application configuration.
type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Coach         CoachConfig         `mapstructure:"coach"`
	Parser        ParserConfig        `mapstructure:"parser"`
	Notifications NotificationsConfig `mapstructure:"notifications"`
	Scheduler     SchedulerConfig     `mapstructure:"scheduler"`
	Shop          ShopConfig          `mapstructure:"shop"`
	Metrics       MetricsConfig       `mapstructure:"metrics"`
	Logging       LoggingConfig       `mapstructure:"logging"`
}

// ServerConfig contains HTTP server configuration.
type ServerConfig struct {
	Port        int      `mapstructure:"port"`
	Environment string   `mapstructure:"environment"`
	CORSOrigins []string `mapstructure:"cors_origins"`
}

// DatabaseConfig selects the record store and holds connection settings for it and for Redis.
type DatabaseConfig struct {
	Driver   string         `mapstructure:"driver"` // postgres or sqlite
	SQLite   SQLiteConfig   `mapstructure:"sqlite"`
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
}

// SQLiteConfig contains the local SQLite file location.
type SQLiteConfig struct {
	Path string `mapstructure:"path"`
}

// PostgresConfig contains PostgreSQL database connection and pool settings.
type PostgresConfig struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	Database        string `mapstructure:"database"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	SSLMode         string `mapstructure:"ssl_mode"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`
}

// RedisConfig contains Redis connection settings used for per-owner locks.
// An empty host disables locking.
type RedisConfig struct {
	Host     string        `mapstructure:"host"`
	Port     int           `mapstructure:"port"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	PoolSize int           `mapstructure:"pool_size"`
	LockTTL  time.Duration `mapstructure:"lock_ttl"`
}

// CoachConfig contains the gamification engine settings.
type CoachConfig struct {
	Owner        string        `mapstructure:"owner"`
	Recipient    string        `mapstructure:"recipient"`
	Timezone     string        `mapstructure:"timezone"`
	StoreTimeout time.Duration `mapstructure:"store_timeout"`
	MaxRetries   int           `mapstructure:"max_retries"`
	RetryBackoff time.Duration `mapstructure:"retry_backoff"`
}

// ParserConfig contains the chat-completion endpoint used to parse free-text replies.
type ParserConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	APIKey  string        `mapstructure:"api_key"`
	Model   string        `mapstructure:"model"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// NotificationsConfig groups the outbound notification channels.
type NotificationsConfig struct {
	Mattermost MattermostConfig `mapstructure:"mattermost"`
	Feishu     FeishuConfig     `mapstructure:"feishu"`
}

// MattermostConfig contains Mattermost webhook notification settings.
type MattermostConfig struct {
	WebhookURL string `mapstructure:"webhook_url"`
	Channel    string `mapstructure:"channel"`
	Enabled    bool   `mapstructure:"enabled"`
}

// FeishuConfig contains Feishu custom-bot webhook settings.
type FeishuConfig struct {
	WebhookURL string `mapstructure:"webhook_url"`
	Enabled    bool   `mapstructure:"enabled"`
}

// SchedulerConfig contains the recurring job times. Times use HH:MM in Coach.Timezone.
type SchedulerConfig struct {
	Enabled           bool   `mapstructure:"enabled"`
	DailyReviewTime   string `mapstructure:"daily_review_time"`
	FollowupTime      string `mapstructure:"followup_time"`
	WeeklyDigestTime  string `mapstructure:"weekly_digest_time"`
	WeeklyDigestDay   int    `mapstructure:"weekly_digest_day"` // 0 = Sunday
	WeeklyReportTime  string `mapstructure:"weekly_report_time"`
	WeeklyReportDay   int    `mapstructure:"weekly_report_day"`
	MonthlyReportTime string `mapstructure:"monthly_report_time"`
	MonthlyReportDay  int    `mapstructure:"monthly_report_day"` // 1-28
}

// ShopConfig contains the item catalog seed file.
type ShopConfig struct {
	CatalogPath string `mapstructure:"catalog_path"`
}

// MetricsConfig contains metrics exporter settings.
type MetricsConfig struct {
	Prometheus PrometheusConfig `mapstructure:"prometheus"`
}

// PrometheusConfig contains Prometheus metrics exporter settings.
type PrometheusConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// LoggingConfig contains application logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// Load reads configuration from file and environment variables.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/task-coach/")
	}

	setDefaults(v)
	bindEnv(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configPath != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.environment", "development")

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.sqlite.path", "task-coach.db")
	v.SetDefault("database.postgres.port", 5432)
	v.SetDefault("database.postgres.ssl_mode", "disable")
	v.SetDefault("database.postgres.max_open_conns", 10)
	v.SetDefault("database.postgres.max_idle_conns", 5)
	v.SetDefault("database.postgres.conn_max_lifetime", 300)
	v.SetDefault("database.redis.port", 6379)
	v.SetDefault("database.redis.pool_size", 10)
	v.SetDefault("database.redis.lock_ttl", "2m")

	v.SetDefault("coach.owner", "default_user")
	v.SetDefault("coach.timezone", "Asia/Shanghai")
	v.SetDefault("coach.store_timeout", "30s")
	v.SetDefault("coach.max_retries", 5)
	v.SetDefault("coach.retry_backoff", "50ms")

	v.SetDefault("parser.base_url", "https://api.deepseek.com")
	v.SetDefault("parser.model", "deepseek-chat")
	v.SetDefault("parser.timeout", "30s")

	v.SetDefault("scheduler.daily_review_time", "21:00")
	v.SetDefault("scheduler.followup_time", "09:00")
	v.SetDefault("scheduler.weekly_digest_time", "10:00")
	v.SetDefault("scheduler.weekly_digest_day", 0)
	v.SetDefault("scheduler.weekly_report_time", "20:00")
	v.SetDefault("scheduler.weekly_report_day", 0)
	v.SetDefault("scheduler.monthly_report_time", "09:00")
	v.SetDefault("scheduler.monthly_report_day", 1)

	v.SetDefault("metrics.prometheus.path", "/metrics")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")
}

// bindEnv registers explicit environment bindings for every deployable setting.
func bindEnv(v *viper.Viper) {
	// Server configuration
	_ = v.BindEnv("server.port", "SERVER_PORT")
	_ = v.BindEnv("server.environment", "SERVER_ENVIRONMENT")
	_ = v.BindEnv("server.cors_origins", "SERVER_CORS_ORIGINS")

	// Store configuration
	_ = v.BindEnv("database.driver", "DATABASE_DRIVER")
	_ = v.BindEnv("database.sqlite.path", "SQLITE_PATH")
	_ = v.BindEnv("database.postgres.host", "POSTGRES_HOST")
	_ = v.BindEnv("database.postgres.port", "POSTGRES_PORT")
	_ = v.BindEnv("database.postgres.database", "POSTGRES_DB")
	_ = v.BindEnv("database.postgres.user", "POSTGRES_USER")
	_ = v.BindEnv("database.postgres.password", "POSTGRES_PASSWORD")
	_ = v.BindEnv("database.postgres.ssl_mode", "POSTGRES_SSL_MODE")
	_ = v.BindEnv("database.redis.host", "REDIS_HOST")
	_ = v.BindEnv("database.redis.port", "REDIS_PORT")
	_ = v.BindEnv("database.redis.password", "REDIS_PASSWORD")
	_ = v.BindEnv("database.redis.db", "REDIS_DB")

	// Coach configuration
	_ = v.BindEnv("coach.owner", "COACH_OWNER")
	_ = v.BindEnv("coach.recipient", "COACH_RECIPIENT", "RECIPIENT_EMAIL")
	_ = v.BindEnv("coach.timezone", "COACH_TIMEZONE", "TZ")
	_ = v.BindEnv("coach.store_timeout", "COACH_STORE_TIMEOUT")
	_ = v.BindEnv("coach.max_retries", "COACH_MAX_RETRIES")

	// Parser configuration
	_ = v.BindEnv("parser.base_url", "PARSER_BASE_URL")
	_ = v.BindEnv("parser.api_key", "PARSER_API_KEY", "DEEPSEEK_API_KEY")
	_ = v.BindEnv("parser.model", "PARSER_MODEL")

	// Notification configuration
	_ = v.BindEnv("notifications.mattermost.webhook_url", "MATTERMOST_WEBHOOK_URL")
	_ = v.BindEnv("notifications.mattermost.channel", "MATTERMOST_CHANNEL")
	_ = v.BindEnv("notifications.mattermost.enabled", "MATTERMOST_ENABLED")
	_ = v.BindEnv("notifications.feishu.webhook_url", "FEISHU_WEBHOOK_URL")
	_ = v.BindEnv("notifications.feishu.enabled", "FEISHU_ENABLED")

	// Scheduler configuration
	_ = v.BindEnv("scheduler.enabled", "SCHEDULER_ENABLED")
	_ = v.BindEnv("scheduler.daily_review_time", "SCHEDULER_DAILY_REVIEW_TIME")
	_ = v.BindEnv("scheduler.followup_time", "SCHEDULER_FOLLOWUP_TIME")
	_ = v.BindEnv("scheduler.monthly_report_time", "SCHEDULER_MONTHLY_REPORT_TIME")

	_ = v.BindEnv("shop.catalog_path", "SHOP_CATALOG_PATH")

	// Logging configuration
	_ = v.BindEnv("logging.level", "LOG_LEVEL")
	_ = v.BindEnv("logging.format", "LOG_FORMAT")
	_ = v.BindEnv("logging.output", "LOG_OUTPUT")
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite":
		if c.Database.SQLite.Path == "" {
			return fmt.Errorf("database.sqlite.path is required")
		}
	case "postgres":
		if c.Database.Postgres.Host == "" {
			return fmt.Errorf("database.postgres.host is required")
		}
		if c.Database.Postgres.Database == "" {
			return fmt.Errorf("database.postgres.database is required")
		}
		if c.Database.Postgres.User == "" {
			return fmt.Errorf("database.postgres.user is required")
		}
	default:
		return fmt.Errorf("unsupported database.driver %q", c.Database.Driver)
	}
	if c.Coach.Owner == "" {
		return fmt.Errorf("coach.owner is required")
	}
	if _, err := c.Coach.GetLocation(); err != nil {
		return fmt.Errorf("invalid coach.timezone %q: %w", c.Coach.Timezone, err)
	}
	if c.Coach.MaxRetries < 1 {
		return fmt.Errorf("coach.max_retries must be at least 1")
	}
	if c.Coach.StoreTimeout <= 0 {
		return fmt.Errorf("coach.store_timeout must be positive")
	}
	if c.Notifications.Mattermost.Enabled && c.Notifications.Mattermost.WebhookURL == "" {
		return fmt.Errorf("notifications.mattermost.webhook_url is required when enabled")
	}
	if c.Notifications.Feishu.Enabled && c.Notifications.Feishu.WebhookURL == "" {
		return fmt.Errorf("notifications.feishu.webhook_url is required when enabled")
	}

	return nil
}

// GetLocation returns the timezone location used for calendar-day arithmetic.
func (c *CoachConfig) GetLocation() (*time.Location, error) {
	return time.LoadLocation(c.Timezone)
}
