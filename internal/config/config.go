package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Env      string
	HTTPPort string
	LogLevel string

	DatabaseURL string

	RedisEnabled bool
	RedisAddr    string
	RedisDB      int

	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioUseSSL    bool

	VaultBaseURL string
	VaultToken   string

	OrchestratorBaseURL string

	IdentityBaseURL   string
	IdentityJWTSecret string

	DevBypassSecret string

	DefaultReadLimitPerMin  int
	DefaultWriteLimitPerMin int

	IdempotencyEnabled      bool
	IdempotencyRedisEnabled bool
	IdempotencyTTL          time.Duration

	HMACMaxClockSkew   time.Duration
	LandingBatchSize   int
	InlinePayloadLimit int64
}

func Load() (*Config, error) {
	cfg := &Config{
		Env:                     getEnv("APP_ENV", "development"),
		HTTPPort:                getEnv("HTTP_PORT", "8080"),
		LogLevel:                getEnv("LOG_LEVEL", "info"),
		DatabaseURL:             os.Getenv("DATABASE_URL"),
		RedisEnabled:            getEnvBool("REDIS_ENABLED", false),
		RedisAddr:               getEnv("REDIS_ADDR", "localhost:6379"),
		RedisDB:                 getEnvInt("REDIS_DB", 0),
		MinioEndpoint:           getEnv("MINIO_ENDPOINT", "localhost:9000"),
		MinioAccessKey:          os.Getenv("MINIO_ACCESS_KEY"),
		MinioSecretKey:          os.Getenv("MINIO_SECRET_KEY"),
		MinioBucket:             getEnv("MINIO_BUCKET", "bronze-landing"),
		MinioUseSSL:             getEnvBool("MINIO_USE_SSL", false),
		VaultBaseURL:            os.Getenv("VAULT_BASE_URL"),
		VaultToken:              os.Getenv("VAULT_TOKEN"),
		OrchestratorBaseURL:     os.Getenv("ORCHESTRATOR_BASE_URL"),
		IdentityBaseURL:         os.Getenv("IDENTITY_BASE_URL"),
		IdentityJWTSecret:       os.Getenv("IDENTITY_JWT_SECRET"),
		DevBypassSecret:         os.Getenv("DEV_BYPASS_SECRET"),
		DefaultReadLimitPerMin:  getEnvInt("READ_RATE_LIMIT_PER_MIN", 300),
		DefaultWriteLimitPerMin: getEnvInt("WRITE_RATE_LIMIT_PER_MIN", 60),
		IdempotencyEnabled:      getEnvBool("IDEMPOTENCY_ENABLED", true),
		IdempotencyRedisEnabled: getEnvBool("IDEMPOTENCY_REDIS_ENABLED", false),
		LandingBatchSize:        getEnvInt("LANDING_BATCH_SIZE", 500),
		InlinePayloadLimit:      int64(getEnvInt("INLINE_PAYLOAD_LIMIT_BYTES", 1<<20)),
	}

	idemTTL, err := time.ParseDuration(getEnv("IDEMPOTENCY_TTL", "24h"))
	if err != nil {
		return nil, fmt.Errorf("parse IDEMPOTENCY_TTL: %w", err)
	}
	cfg.IdempotencyTTL = idemTTL

	skew, err := time.ParseDuration(getEnv("HMAC_MAX_CLOCK_SKEW", "15m"))
	if err != nil {
		return nil, fmt.Errorf("parse HMAC_MAX_CLOCK_SKEW: %w", err)
	}
	cfg.HMACMaxClockSkew = skew

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) IsProduction() bool {
	return strings.EqualFold(strings.TrimSpace(c.Env), "production")
}

func (c *Config) Validate() error {
	var errs []string
	if c.DatabaseURL == "" {
		errs = append(errs, "DATABASE_URL is required")
	}
	if c.IdentityBaseURL == "" && c.IdentityJWTSecret == "" {
		errs = append(errs, "one of IDENTITY_BASE_URL or IDENTITY_JWT_SECRET is required")
	}
	if c.IdentityJWTSecret != "" && len(c.IdentityJWTSecret) < 32 {
		errs = append(errs, "IDENTITY_JWT_SECRET must be at least 32 chars")
	}
	if c.IsProduction() && c.DevBypassSecret != "" {
		errs = append(errs, "DEV_BYPASS_SECRET must not be set in production")
	}
	if c.DevBypassSecret != "" && len(c.DevBypassSecret) < 16 {
		errs = append(errs, "DEV_BYPASS_SECRET must be at least 16 chars")
	}
	if c.DefaultReadLimitPerMin <= 0 {
		errs = append(errs, "READ_RATE_LIMIT_PER_MIN must be > 0")
	}
	if c.DefaultWriteLimitPerMin <= 0 {
		errs = append(errs, "WRITE_RATE_LIMIT_PER_MIN must be > 0")
	}
	if c.IdempotencyTTL <= 0 || c.IdempotencyTTL > 7*24*time.Hour {
		errs = append(errs, "IDEMPOTENCY_TTL must be between 1s and 7d")
	}
	if c.HMACMaxClockSkew <= 0 || c.HMACMaxClockSkew > time.Hour {
		errs = append(errs, "HMAC_MAX_CLOCK_SKEW must be between 1s and 1h")
	}
	if c.LandingBatchSize <= 0 || c.LandingBatchSize > 10000 {
		errs = append(errs, "LANDING_BATCH_SIZE must be between 1 and 10000")
	}
	if c.InlinePayloadLimit <= 0 {
		errs = append(errs, "INLINE_PAYLOAD_LIMIT_BYTES must be > 0")
	}
	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

func getEnv(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func getEnvBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func getEnvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
