// Package config loads the service configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds settings read once at startup and treated as immutable.
type Config struct {
	// Database
	DatabaseURL    string
	DBMaxConns     int
	DBMinConns     int
	MigrateOnStart bool

	// Auth
	JWTSecret   string
	OTPTTL      time.Duration
	OTPRequired bool

	// Server
	HTTPAddr   string
	AppBaseURL string
	LogLevel   string

	// Outbox
	OutboxPollInterval time.Duration
	OutboxBatchSize    int
	OutboxMaxAttempts  int
	NotifyWebhookURL   string
	NotifyTimeout      time.Duration

	// Rate limit, requests per minute per user
	RateLimitPerMinute     int
	SignRateLimitPerMinute int

	// Document storage; disabled when S3Bucket is empty
	S3Bucket    string
	S3Region    string
	S3Endpoint  string
	S3AccessKey string
	S3SecretKey string

	// Repair pass; zero disables the ticker
	RepairInterval time.Duration
}

// DocumentStorageEnabled reports whether exports are uploaded to S3.
func (c *Config) DocumentStorageEnabled() bool {
	return c.S3Bucket != ""
}

// Load reads Config from the environment. All missing required variables are
// reported in one error.
func Load() (*Config, error) {
	cfg := &Config{}

	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	cfg.JWTSecret = os.Getenv("JWT_SECRET")
	if cfg.JWTSecret == "" {
		missing = append(missing, "JWT_SECRET")
	}

	cfg.AppBaseURL = strings.TrimRight(os.Getenv("APP_BASE_URL"), "/")
	if cfg.AppBaseURL == "" {
		missing = append(missing, "APP_BASE_URL")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("config: required environment variables are not set: %v", missing)
	}

	cfg.HTTPAddr = getEnvString("HTTP_ADDR", ":8080")
	cfg.LogLevel = getEnvString("LOG_LEVEL", "info")
	cfg.DBMaxConns = getEnvInt("DB_MAX_CONNS", 10)
	cfg.DBMinConns = getEnvInt("DB_MIN_CONNS", 1)
	cfg.MigrateOnStart = getEnvBool("MIGRATE_ON_START", true)
	cfg.OutboxPollInterval = getEnvDuration("OUTBOX_POLL_INTERVAL", 2*time.Second)
	cfg.OutboxBatchSize = getEnvInt("OUTBOX_BATCH_SIZE", 10)
	cfg.OutboxMaxAttempts = getEnvInt("OUTBOX_MAX_ATTEMPTS", 5)
	cfg.NotifyWebhookURL = getEnvString("NOTIFY_WEBHOOK_URL", "")
	cfg.NotifyTimeout = getEnvDuration("NOTIFY_TIMEOUT", 10*time.Second)
	cfg.RateLimitPerMinute = getEnvInt("RATE_LIMIT_PER_MINUTE", 120)
	cfg.SignRateLimitPerMinute = getEnvInt("SIGN_RATE_LIMIT_PER_MINUTE", 20)
	cfg.OTPTTL = getEnvDuration("OTP_TTL", 10*time.Minute)
	cfg.OTPRequired = getEnvBool("OTP_REQUIRED", false)
	cfg.S3Bucket = getEnvString("S3_BUCKET", "")
	cfg.S3Region = getEnvString("S3_REGION", "us-east-1")
	cfg.S3Endpoint = getEnvString("S3_ENDPOINT", "")
	cfg.S3AccessKey = getEnvString("S3_ACCESS_KEY", "")
	cfg.S3SecretKey = getEnvString("S3_SECRET_KEY", "")
	cfg.RepairInterval = getEnvDuration("REPAIR_INTERVAL", 5*time.Minute)

	if cfg.DBMinConns > cfg.DBMaxConns {
		cfg.DBMinConns = cfg.DBMaxConns
	}

	return cfg, nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}

// getEnvDuration accepts Go durations ("90s") and falls back on parse errors.
func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
