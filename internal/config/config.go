// Package config loads all runtime configuration from environment variables.
// No config files and no third-party config framework are used.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all runtime configuration for Slumberhouse.
type Config struct {
	HTTP   HTTPConfig
	DB     DBConfig
	Log    LogConfig
	JWT    JWTConfig
	App    AppConfig
	Worker WorkerConfig
	OTel   OTelConfig
	Live   LiveConfig
	Upload UploadConfig
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port        int
	CORSOrigins []string
}

// DBConfig holds database connection configuration.
type DBConfig struct {
	Driver   string // "sqlite" (default) or "postgres"
	DSN      string // required when Driver == "postgres"
	File     string // SQLite database file path (default: "slumberhouse.db")
	MaxConns int    // Postgres only
}

// LogConfig controls structured logging output.
type LogConfig struct {
	Level  string
	Format string
}

// JWTConfig holds JSON Web Token signing and expiry settings.
type JWTConfig struct {
	Secret     string //nolint:gosec // intentional: holds JWT signing secret loaded from env
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// AppConfig holds bootstrap settings for the first organization.
type AppConfig struct {
	SeedOwnerEmail    string
	SeedOwnerPassword string
	SeedOrganization  string
}

// WorkerConfig holds background worker settings.
type WorkerConfig struct {
	Concurrency       int
	ReconcileInterval time.Duration
}

// OTelConfig holds OpenTelemetry exporter settings.
type OTelConfig struct {
	OTLPEndpoint string
}

// LiveConfig controls the live update channels.
type LiveConfig struct {
	Heartbeat    time.Duration
	MaxSilence   time.Duration
	MessageLimit int
	RedisURL     string // empty disables cross-instance fan-out
}

// UploadConfig controls where uploaded images are written.
type UploadConfig struct {
	Dir      string
	MaxBytes int64
}

// Load reads configuration from environment variables, applies defaults,
// and returns an error if any required field is absent.
func Load() (*Config, error) {
	cfg := &Config{}

	// HTTP
	cfg.HTTP.Port = envInt("HTTP_PORT", 8080)
	cfg.HTTP.CORSOrigins = envList("HTTP_CORS_ORIGINS", []string{"*"})

	// DB
	cfg.DB.Driver = envStr("DB_DRIVER", "sqlite")
	cfg.DB.File = envStr("DB_FILE", "slumberhouse.db")
	cfg.DB.DSN = os.Getenv("DB_DSN")
	if cfg.DB.Driver == "postgres" && cfg.DB.DSN == "" {
		return nil, errors.New("DB_DSN is required when DB_DRIVER=postgres")
	}
	cfg.DB.MaxConns = envInt("DB_MAX_CONNS", 25)

	// Log
	cfg.Log.Level = envStr("LOG_LEVEL", "info")
	cfg.Log.Format = envStr("LOG_FORMAT", "json")

	// JWT (required)
	cfg.JWT.Secret = os.Getenv("JWT_SECRET")
	if cfg.JWT.Secret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}
	var err error
	cfg.JWT.AccessTTL, err = envDuration("JWT_ACCESS_TTL", 24*time.Hour)
	if err != nil {
		return nil, fmt.Errorf("JWT_ACCESS_TTL: %w", err)
	}
	cfg.JWT.RefreshTTL, err = envDuration("JWT_REFRESH_TTL", 720*time.Hour)
	if err != nil {
		return nil, fmt.Errorf("JWT_REFRESH_TTL: %w", err)
	}

	// App
	cfg.App.SeedOwnerEmail = os.Getenv("SEED_OWNER_EMAIL")
	cfg.App.SeedOwnerPassword = os.Getenv("SEED_OWNER_PASSWORD")
	cfg.App.SeedOrganization = envStr("SEED_ORGANIZATION", "Slumberhouse")

	// Worker
	cfg.Worker.Concurrency = envInt("WORKER_CONCURRENCY", 10)
	cfg.Worker.ReconcileInterval, err = envDuration("WORKER_RECONCILE_INTERVAL", time.Hour)
	if err != nil {
		return nil, fmt.Errorf("WORKER_RECONCILE_INTERVAL: %w", err)
	}

	// OTel
	cfg.OTel.OTLPEndpoint = os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")

	// Live
	cfg.Live.Heartbeat, err = envDuration("LIVE_HEARTBEAT", 15*time.Second)
	if err != nil {
		return nil, fmt.Errorf("LIVE_HEARTBEAT: %w", err)
	}
	cfg.Live.MaxSilence, err = envDuration("LIVE_MAX_SILENCE", 60*time.Second)
	if err != nil {
		return nil, fmt.Errorf("LIVE_MAX_SILENCE: %w", err)
	}
	if cfg.Live.MaxSilence <= cfg.Live.Heartbeat {
		return nil, errors.New("LIVE_MAX_SILENCE must be greater than LIVE_HEARTBEAT")
	}
	cfg.Live.MessageLimit = envInt("LIVE_MESSAGE_LIMIT", 20)
	cfg.Live.RedisURL = os.Getenv("REDIS_URL")

	// Upload
	cfg.Upload.Dir = envStr("UPLOAD_DIR", "uploads")
	cfg.Upload.MaxBytes = int64(envInt("UPLOAD_MAX_BYTES", 5<<20))

	return cfg, nil
}

func envStr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
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

func envList(key string, def []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}

func envDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: %w", v, err)
	}
	return d, nil
}
