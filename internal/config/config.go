package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application
type Config struct {
	Server       ServerConfig       `yaml:"server"`
	Database     DatabaseConfig     `yaml:"database"`
	Redis        RedisConfig        `yaml:"redis"`
	LINE         LINEConfig         `yaml:"line"`
	Delivery     DeliveryConfig     `yaml:"delivery"`
	Scheduler    SchedulerConfig    `yaml:"scheduler"`
	Segmentation SegmentationConfig `yaml:"segmentation"`
	Logging      LoggingConfig      `yaml:"logging"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port           int      `yaml:"port"`
	Host           string   `yaml:"host"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// GetHost returns the server host, allowing an environment override
func (c ServerConfig) GetHost() string {
	if host := os.Getenv("SERVER_HOST"); host != "" {
		return host
	}
	return c.Host
}

// Addr returns host:port for http.Server.
func (c ServerConfig) Addr() string {
	return c.GetHost() + ":" + strconv.Itoa(c.Port)
}

// DatabaseConfig holds the Postgres connection settings
type DatabaseConfig struct {
	URL             string `yaml:"url"`
	MaxOpenConns    int    `yaml:"max_open_conns"`
	MaxIdleConns    int    `yaml:"max_idle_conns"`
	ConnMaxLifetime int    `yaml:"conn_max_lifetime_seconds"`
}

// Lifetime returns the connection max lifetime as a duration
func (c DatabaseConfig) Lifetime() time.Duration {
	return time.Duration(c.ConnMaxLifetime) * time.Second
}

// RedisConfig holds the Redis connection used by the task queue and locks
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// LINEConfig holds LINE Messaging API configuration. Either a long-lived
// channel access token or a channel id/secret pair for client credentials.
type LINEConfig struct {
	ChannelAccessToken string `yaml:"channel_access_token"`
	ChannelID          string `yaml:"channel_id"`
	ChannelSecret      string `yaml:"channel_secret"`
	BaseURL            string `yaml:"base_url"`
	TokenURL           string `yaml:"token_url"`
	TimeoutSeconds     int    `yaml:"timeout_seconds"`
}

// Timeout returns the configured timeout as a duration
func (c LINEConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// DeliveryConfig tunes the delivery engine
type DeliveryConfig struct {
	MulticastChunkSize   int `yaml:"multicast_chunk_size"`
	PersonalizeThreshold int `yaml:"personalize_threshold"`
	PacingDelayMillis    int `yaml:"pacing_delay_ms"`
}

// PacingDelay returns the delay between paced per-recipient calls
func (c DeliveryConfig) PacingDelay() time.Duration {
	return time.Duration(c.PacingDelayMillis) * time.Millisecond
}

// SchedulerConfig holds the delayed task queue settings
type SchedulerConfig struct {
	Queue                    string `yaml:"queue"`
	PollIntervalSeconds      int    `yaml:"poll_interval_seconds"`
	VisibilityTimeoutSeconds int    `yaml:"visibility_timeout_seconds"`
	RecoverySpec             string `yaml:"recovery_spec"`
	// SweepLock is "redis" (default) or "postgres".
	SweepLock                string `yaml:"sweep_lock"`
}

// Sweep lock backends.
const (
	SweepLockRedis    = "redis"
	SweepLockPostgres = "postgres"
)

// PollInterval returns how often the dispatcher looks for due tasks
func (c SchedulerConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalSeconds) * time.Second
}

// VisibilityTimeout returns how long a claimed task stays invisible
func (c SchedulerConfig) VisibilityTimeout() time.Duration {
	return time.Duration(c.VisibilityTimeoutSeconds) * time.Second
}

// SegmentationConfig holds audience filter settings
type SegmentationConfig struct {
	PurchaseStatuses []string `yaml:"purchase_statuses"`
}

// LoggingConfig holds log level and redaction settings
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Redact *bool  `yaml:"redact"`
}

// RedactEnabled defaults to true when unset.
func (c LoggingConfig) RedactEnabled() bool {
	return c.Redact == nil || *c.Redact
}

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	// Set defaults
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 20
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 300
	}
	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = "localhost:6379"
	}
	if cfg.LINE.BaseURL == "" {
		cfg.LINE.BaseURL = "https://api.line.me"
	}
	if cfg.LINE.TokenURL == "" {
		cfg.LINE.TokenURL = "https://api.line.me/v2/oauth/accessToken"
	}
	if cfg.LINE.TimeoutSeconds == 0 {
		cfg.LINE.TimeoutSeconds = 30
	}
	if cfg.Delivery.MulticastChunkSize == 0 || cfg.Delivery.MulticastChunkSize > 500 {
		cfg.Delivery.MulticastChunkSize = 500
	}
	if cfg.Delivery.PersonalizeThreshold == 0 {
		cfg.Delivery.PersonalizeThreshold = 10
	}
	if cfg.Delivery.PacingDelayMillis == 0 {
		cfg.Delivery.PacingDelayMillis = 100
	}
	if cfg.Scheduler.Queue == "" {
		cfg.Scheduler.Queue = "line-campaigns"
	}
	if cfg.Scheduler.PollIntervalSeconds == 0 {
		cfg.Scheduler.PollIntervalSeconds = 5
	}
	if cfg.Scheduler.VisibilityTimeoutSeconds == 0 {
		cfg.Scheduler.VisibilityTimeoutSeconds = 600
	}
	if cfg.Scheduler.RecoverySpec == "" {
		cfg.Scheduler.RecoverySpec = "@every 1m"
	}
	if cfg.Scheduler.SweepLock == "" {
		cfg.Scheduler.SweepLock = SweepLockRedis
	}
	if len(cfg.Segmentation.PurchaseStatuses) == 0 {
		cfg.Segmentation.PurchaseStatuses = []string{"completed", "shipped", "delivered"}
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}

	return &cfg, nil
}

// LoadFromEnv loads configuration with environment variable overrides.
// It automatically loads a .env file (if present) before reading env vars,
// so the channel token can live in .env locally.
func LoadFromEnv(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("LINE_CHANNEL_ACCESS_TOKEN"); v != "" {
		cfg.LINE.ChannelAccessToken = v
	}
	if v := os.Getenv("LINE_CHANNEL_ID"); v != "" {
		cfg.LINE.ChannelID = v
	}
	if v := os.Getenv("LINE_CHANNEL_SECRET"); v != "" {
		cfg.LINE.ChannelSecret = v
	}
	if v := os.Getenv("LINE_BASE_URL"); v != "" {
		cfg.LINE.BaseURL = v
	}
	if v := os.Getenv("SCHEDULER_SWEEP_LOCK"); v != "" {
		cfg.Scheduler.SweepLock = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("PURCHASE_STATUSES"); v != "" {
		cfg.Segmentation.PurchaseStatuses = splitList(v)
	}

	return cfg, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
