// Package app assembles the service graph shared by the sage binaries.
package app

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"sage/internal/domain/ingest"
	"sage/internal/infrastructure/mail"
	"sage/internal/infrastructure/storage/postgres"
	"sage/pkg/logger"
)

// Config is the process configuration read from the environment.
type Config struct {
	Env     string
	Port    string
	Version string

	Log  logger.Config
	DB   postgres.PoolConfig
	Mail mail.Config

	JWTSecret         string
	CoercionPolicy    ingest.Policy
	MatchTopN         int
	CompressThreshold int
	IdempotencyTTL    time.Duration
	SchemaCacheTTL    time.Duration
	MaxUploadBytes    int64
	WorkerTick        time.Duration
	MetricsEnabled    bool
}

// Development reports whether the process runs in development mode.
func (c Config) Development() bool { return c.Env == "development" }

// LoadConfig reads the environment, first loading a .env file when present.
// DATABASE_URL is required; JWT_SECRET is required outside development.
func LoadConfig() (Config, error) {
	_ = godotenv.Load()

	env := getEnv("APP_ENV", "development")
	cfg := Config{
		Env:     env,
		Port:    getEnv("APP_PORT", "8080"),
		Version: getEnv("APP_VERSION", "dev"),
		Log: logger.Config{
			Level:       getEnv("LOG_LEVEL", "info"),
			Development: env == "development",
		},
		Mail: mail.Config{
			Host:     getEnv("SMTP_HOST", ""),
			Port:     getEnvInt("SMTP_PORT", 587),
			Username: getEnv("SMTP_USER", ""),
			Password: getEnv("SMTP_PASSWORD", ""),
			From:     getEnv("SMTP_FROM", ""),
		},
		JWTSecret:         getEnv("JWT_SECRET", ""),
		CoercionPolicy:    ingest.ParsePolicy(getEnv("COERCION_POLICY", string(ingest.PolicyNull))),
		MatchTopN:         getEnvInt("MATCH_TOP_N", 5),
		CompressThreshold: getEnvInt("SUBMISSION_COMPRESS_THRESHOLD", postgres.DefaultCompressThreshold),
		IdempotencyTTL:    getEnvDuration("IDEMPOTENCY_TTL", 24*time.Hour),
		SchemaCacheTTL:    getEnvDuration("SCHEMA_CACHE_TTL", time.Minute),
		MaxUploadBytes:    int64(getEnvInt("UPLOAD_MAX_BYTES", 32<<20)),
		WorkerTick:        getEnvDuration("WORKER_TICK", time.Minute),
		MetricsEnabled:    getEnvBool("METRICS_ENABLED", true),
	}

	dsn, err := mustEnv("DATABASE_URL")
	if err != nil {
		return cfg, err
	}
	cfg.DB = postgres.DefaultPoolConfig(dsn)
	cfg.DB.MaxConns = int32(getEnvInt("DB_MAX_CONNS", int(cfg.DB.MaxConns)))
	cfg.DB.MinConns = int32(getEnvInt("DB_MIN_CONNS", int(cfg.DB.MinConns)))

	if cfg.JWTSecret == "" {
		if !cfg.Development() {
			return cfg, fmt.Errorf("required environment variable JWT_SECRET not set")
		}
		cfg.JWTSecret = "dev-secret-change-in-production"
	}
	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func mustEnv(key string) (string, error) {
	value := os.Getenv(key)
	if value == "" {
		return "", fmt.Errorf("required environment variable %s not set", key)
	}
	return value, nil
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
