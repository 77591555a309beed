package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Store drivers accepted in STORE_DRIVER.
const (
	StorePostgres = "postgres"
	StoreSQLite   = "sqlite"
)

// Config holds application configuration loaded from environment variables.
type Config struct {
	HTTPPort     string
	AppMode      string
	ServiceName  string
	PostbackKind []string
	MaxBodyBytes int
	FiberPrefork bool

	// RequestTimeout bounds the pipeline for one postback; zero disables it.
	RequestTimeout time.Duration

	StoreDriver       string
	DatabaseURL       string
	SQLitePath        string
	DBMaxConns        int32
	DBMinConns        int32
	DBMaxConnLifetime time.Duration
	DBMaxConnIdleTime time.Duration

	ProfilesFile string

	RedisURL       string
	LockTTL        time.Duration
	LockRetryEvery time.Duration

	TelegramBotToken string
	TelegramAPIURL   string
	DeliveryTimeout  time.Duration

	ClickHouseDSN       string
	AnalyticsBufferSize int
	AnalyticsBatchSize  int
	AnalyticsFlushEvery time.Duration

	LogLevel  string
	LogFormat string
}

// Load reads configuration from environment variables with sane defaults.
func Load() (*Config, error) {
	cfg := &Config{
		HTTPPort:     getEnv("HTTP_PORT", ":8080"),
		AppMode:      strings.ToLower(getEnv("APP_MODE", "dev")),
		ServiceName:  getEnv("SERVICE_NAME", "keitaro_integration"),
		PostbackKind: parseListEnv("POSTBACK_KINDS", []string{"keitaro"}),
		MaxBodyBytes: parseIntEnv("MAX_BODY_BYTES", 1<<20),
		FiberPrefork: parseBoolEnv("FIBER_PREFORK", false),

		RequestTimeout: parseDurationEnv("REQUEST_TIMEOUT", 30*time.Second),

		StoreDriver:       strings.ToLower(getEnv("STORE_DRIVER", StorePostgres)),
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		SQLitePath:        getEnv("SQLITE_PATH", "postback.db"),
		DBMaxConns:        parseInt32Env("DB_MAX_CONNS", 20),
		DBMinConns:        parseInt32Env("DB_MIN_CONNS", 2),
		DBMaxConnLifetime: parseDurationEnv("DB_MAX_CONN_LIFETIME", 30*time.Minute),
		DBMaxConnIdleTime: parseDurationEnv("DB_MAX_CONN_IDLE_TIME", 5*time.Minute),

		ProfilesFile: os.Getenv("PROFILES_FILE"),

		RedisURL:       os.Getenv("REDIS_URL"),
		LockTTL:        parseDurationEnv("LOCK_TTL", 30*time.Second),
		LockRetryEvery: parseDurationEnv("LOCK_RETRY_EVERY", 25*time.Millisecond),

		TelegramBotToken: os.Getenv("TELEGRAM_BOT_TOKEN"),
		TelegramAPIURL:   getEnv("TELEGRAM_API_URL", "https://api.telegram.org"),
		DeliveryTimeout:  parseDurationEnv("DELIVERY_TIMEOUT", 10*time.Second),

		ClickHouseDSN:       os.Getenv("CLICKHOUSE_DSN"),
		AnalyticsBufferSize: parseIntEnv("ANALYTICS_BUFFER_SIZE", 1000),
		AnalyticsBatchSize:  parseIntEnv("ANALYTICS_BATCH_SIZE", 100),
		AnalyticsFlushEvery: parseDurationEnv("ANALYTICS_FLUSH_EVERY", 5*time.Second),

		LogLevel:  strings.ToLower(getEnv("LOG_LEVEL", "info")),
		LogFormat: strings.ToLower(getEnv("LOG_FORMAT", "json")),
	}

	switch cfg.StoreDriver {
	case StorePostgres:
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required for store driver %q", StorePostgres)
		}
	case StoreSQLite:
		if cfg.SQLitePath == "" {
			return nil, fmt.Errorf("SQLITE_PATH is required for store driver %q", StoreSQLite)
		}
	default:
		return nil, fmt.Errorf("unsupported STORE_DRIVER %q", cfg.StoreDriver)
	}

	if cfg.ClickHouseDSN != "" {
		switch {
		case cfg.AnalyticsFlushEvery <= 0:
			return nil, fmt.Errorf("ANALYTICS_FLUSH_EVERY must be positive, got %s", cfg.AnalyticsFlushEvery)
		case cfg.AnalyticsBufferSize < 1:
			return nil, fmt.Errorf("ANALYTICS_BUFFER_SIZE must be at least 1, got %d", cfg.AnalyticsBufferSize)
		case cfg.AnalyticsBatchSize < 1:
			return nil, fmt.Errorf("ANALYTICS_BATCH_SIZE must be at least 1, got %d", cfg.AnalyticsBatchSize)
		}
	}

	if cfg.RequestTimeout < 0 {
		return nil, fmt.Errorf("REQUEST_TIMEOUT must not be negative, got %s", cfg.RequestTimeout)
	}

	if len(cfg.PostbackKind) == 0 {
		return nil, fmt.Errorf("POSTBACK_KINDS must name at least one tracker")
	}

	return cfg, nil
}

// KindEnabled reports whether postbacks for the tracker kind are accepted.
func (c *Config) KindEnabled(kind string) bool {
	kind = strings.ToLower(kind)
	for _, k := range c.PostbackKind {
		if k == kind {
			return true
		}
	}
	return false
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func parseListEnv(key string, fallback []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	var out []string
	for _, item := range strings.Split(val, ",") {
		item = strings.ToLower(strings.TrimSpace(item))
		if item != "" {
			out = append(out, item)
		}
	}
	return out
}

func parseBoolEnv(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func parseInt32Env(key string, fallback int32) int32 {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return int32(parsed)
}

func parseIntEnv(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func parseDurationEnv(key string, fallback time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(val)
	if err != nil {
		return fallback
	}
	return parsed
}
