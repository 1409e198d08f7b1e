package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv             string
	Port               string
	DatabaseURL        string
	RedisURL           string
	CORSAllowedOrigins []string

	PricingRulesFile        string
	SettingsCacheTTL        time.Duration
	CacheBreakerOpenFor     time.Duration
	QuoteSaveDebounce       time.Duration
	QuoteLockTTL            time.Duration
	QuoteDefaultServiceType string
	RateLimitPreview        string
	IdempotencyTTL          time.Duration
	MigrateOnStart          bool
	MaxBodyBytes            int64
	SecurityHeaders         bool
	EnableHSTS              bool

	LogFormat            string
	LogLevel             string
	MetricsNamespace     string
	EnablePrometheus     bool
	EnableTracing        bool
	TracingExporter      string
	OTLPEndpoint         string
	TracingSamplingRatio float64
	MetricsBucketsMS     string
	ReadyDBTimeout       time.Duration
	ReadyRedisTimeout    time.Duration
	ShutdownGracePeriod  time.Duration
}

// Load reads configuration from environment variables and optional .env files.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := &Config{
		AppEnv:             valueOrDefault(k.String("APP_ENV"), "development"),
		Port:               valueOrDefault(k.String("PORT"), "8080"),
		DatabaseURL:        strings.TrimSpace(k.String("DATABASE_URL")),
		RedisURL:           strings.TrimSpace(k.String("REDIS_URL")),
		CORSAllowedOrigins: splitAndTrim(k.String("CORS_ALLOWED_ORIGINS")),

		PricingRulesFile:        valueOrDefault(k.String("PRICING_RULES_FILE"), "config/pricing.yaml"),
		SettingsCacheTTL:        parseDuration(k.String("SETTINGS_CACHE_TTL"), "5m"),
		CacheBreakerOpenFor:     parseDuration(k.String("SETTINGS_CACHE_BREAKER_OPEN_FOR"), "30s"),
		QuoteSaveDebounce:       parseDuration(k.String("QUOTE_SAVE_DEBOUNCE"), "5s"),
		QuoteLockTTL:            parseDuration(k.String("QUOTE_LOCK_TTL"), "10s"),
		QuoteDefaultServiceType: valueOrDefault(k.String("QUOTE_DEFAULT_SERVICE_TYPE"), "package"),
		RateLimitPreview:        valueOrDefault(k.String("RATE_LIMIT_PREVIEW"), "120-M"),
		IdempotencyTTL:          parseDuration(k.String("IDEMPOTENCY_TTL"), "10m"),
		MigrateOnStart:          parseBool(k.String("MIGRATE_ON_START")),
		MaxBodyBytes:            parseInt64(k.String("MAX_BODY_BYTES"), 1<<20),
		SecurityHeaders:         parseBoolDefault(k.String("SECURITY_HEADERS_ENABLE"), true),
		EnableHSTS:              parseBool(k.String("SECURITY_HSTS_ENABLE")),

		LogFormat:            valueOrDefault(k.String("OBS_LOG_FORMAT"), "json"),
		LogLevel:             valueOrDefault(k.String("OBS_LOG_LEVEL"), "info"),
		MetricsNamespace:     valueOrDefault(k.String("OBS_METRICS_NAMESPACE"), "tour_quote"),
		EnablePrometheus:     parseBoolDefault(k.String("OBS_ENABLE_PROMETHEUS"), true),
		EnableTracing:        parseBoolDefault(k.String("OBS_ENABLE_TRACING"), false),
		TracingExporter:      valueOrDefault(k.String("OBS_TRACING_EXPORTER"), "otlp"),
		OTLPEndpoint:         strings.TrimSpace(k.String("OBS_OTLP_ENDPOINT")),
		TracingSamplingRatio: parseFloat(k.String("OBS_TRACING_SAMPLING_RATIO"), 1),
		MetricsBucketsMS:     strings.TrimSpace(k.String("OBS_METRICS_BUCKETS_MS")),
		ReadyDBTimeout:       parseDuration(k.String("HEALTH_READY_DB_TIMEOUT"), "500ms"),
		ReadyRedisTimeout:    parseDuration(k.String("HEALTH_READY_REDIS_TIMEOUT"), "300ms"),
		ShutdownGracePeriod:  parseDuration(k.String("SHUTDOWN_GRACE_PERIOD"), "15s"),
	}

	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required")
	}
	if cfg.QuoteSaveDebounce <= 0 {
		return nil, errors.New("QUOTE_SAVE_DEBOUNCE must be positive")
	}

	return cfg, nil
}

// HTTPAddr returns the address the HTTP server should bind to.
func (c *Config) HTTPAddr() string {
	port := strings.TrimSpace(c.Port)
	if port == "" {
		port = "8080"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return ":" + port
}

func splitAndTrim(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func valueOrDefault(value, fallback string) string {
	if strings.TrimSpace(value) != "" {
		return value
	}
	return fallback
}

func parseDuration(value, fallback string) time.Duration {
	base := strings.TrimSpace(value)
	if base == "" {
		base = fallback
	}
	d, err := time.ParseDuration(base)
	if err != nil {
		d, _ = time.ParseDuration(fallback)
	}
	return d
}

func parseBool(value string) bool {
	return parseBoolDefault(value, false)
}

func parseBoolDefault(value string, fallback bool) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "t", "true", "yes", "on":
		return true
	case "0", "f", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func parseFloat(value string, fallback float64) float64 {
	parsed, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func parseInt64(value string, fallback int64) int64 {
	parsed, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}

// MustLoad behaves like Load but panics on error. Useful for tests and command entrypoints.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// LoadForTests allows tests to override environment variables without touching the real environment.
func LoadForTests(env map[string]string) (*Config, error) {
	original := make(map[string]string, len(env))
	for key := range env {
		original[key] = os.Getenv(key)
		if err := setEnvVar(key, env[key]); err != nil {
			return nil, err
		}
	}
	cfg, err := Load()
	restoreErr := restoreEnv(original)
	if err != nil {
		return nil, err
	}
	return cfg, restoreErr
}

func setEnvVar(key, value string) error {
	if value == "" {
		return os.Unsetenv(key)
	}
	return os.Setenv(key, value)
}

func restoreEnv(values map[string]string) error {
	var errs []string
	for key, value := range values {
		if err := setEnvVar(key, value); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", key, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("restore env: %s", strings.Join(errs, "; "))
	}
	return nil
}
