package app

import (
	"context"
	"errors"
	"fmt"

	validator "github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	limiter "github.com/ulule/limiter/v3"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/tour-quote/internal/config"
	"github.com/noah-isme/tour-quote/internal/lock"
	"github.com/noah-isme/tour-quote/internal/obs"
	"github.com/noah-isme/tour-quote/internal/quote"
	"github.com/noah-isme/tour-quote/internal/ratelimit"
	"github.com/noah-isme/tour-quote/internal/resilience"
	"github.com/noah-isme/tour-quote/internal/settings"
	"github.com/noah-isme/tour-quote/internal/store"
)

// LockPrefix namespaces proposal write locks in Redis.
const LockPrefix = "quote:lock:"

// Dependencies enumerates the services shared by the HTTP layer and the tools.
type Dependencies struct {
	Config         *config.Config
	Logger         zerolog.Logger
	DB             *pgxpool.Pool
	Redis          *redis.Client
	Validator      *validator.Validate
	Limiter        *limiter.Limiter
	LimiterStore   limiter.Store
	Settings       *settings.Provider
	Quotes         *quote.Service
	Writer         *quote.Writer
	TracerProvider trace.TracerProvider
	MeterProvider  metric.MeterProvider
}

// Connect opens the database pool and Redis client described by cfg and
// applies migrations when MigrateOnStart is set.
func Connect(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*Dependencies, error) {
	if cfg == nil {
		return nil, errors.New("app: config is required")
	}
	if cfg.MigrateOnStart {
		if err := RunMigrations(cfg.DatabaseURL); err != nil {
			return nil, err
		}
		logger.Info().Msg("migrations applied")
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("app: parse database config: %w", err)
	}
	poolConfig.ConnConfig.Tracer = obs.PGXTracer{}
	if poolConfig.ConnConfig.RuntimeParams == nil {
		poolConfig.ConnConfig.RuntimeParams = map[string]string{}
	}
	poolConfig.ConnConfig.RuntimeParams["application_name"] = obs.DefaultServiceName

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("app: connect database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("app: ping database: %w", err)
	}

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("app: parse redis url: %w", err)
	}
	rdb := redis.NewClient(redisOpts)
	if err := redisotel.InstrumentTracing(rdb); err != nil {
		logger.Error().Err(err).Msg("instrument redis tracing")
	}
	if cfg.EnablePrometheus {
		if err := redisotel.InstrumentMetrics(rdb); err != nil {
			logger.Error().Err(err).Msg("instrument redis metrics")
		}
	}
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		pool.Close()
		return nil, fmt.Errorf("app: ping redis: %w", err)
	}

	return &Dependencies{Config: cfg, Logger: logger, DB: pool, Redis: rdb}, nil
}

// Wire builds the pricing, persistence and rate limiting services on top of
// the connections already present in d. A nil DB leaves the quote store
// unset; a nil Redis client disables caching and locking and limits in memory.
func (d *Dependencies) Wire() error {
	if d.Config == nil {
		return errors.New("app: config is required")
	}
	cfg := d.Config
	if d.TracerProvider == nil {
		d.TracerProvider = otel.GetTracerProvider()
	}
	if d.MeterProvider == nil {
		d.MeterProvider = otel.GetMeterProvider()
	}
	if d.Validator == nil {
		d.Validator = quote.NewValidator()
	}

	limiterStore, err := NewLimiterStore(d.Redis)
	if err != nil {
		return err
	}
	lim, err := ratelimit.New(limiterStore, cfg.RateLimitPreview)
	if err != nil {
		return err
	}
	d.LimiterStore, d.Limiter = limiterStore, lim

	d.Settings = &settings.Provider{
		Source: settings.FileSource{Path: cfg.PricingRulesFile},
		Cache:  settings.NewCache(d.Redis, cfg.SettingsCacheTTL),
		Logger: d.Logger.With().Str("component", "settings").Logger(),
	}
	if d.Redis != nil {
		d.Settings.Breaker = resilience.NewBreaker(resilience.BreakerConfig{
			Target:  "settings_cache",
			OpenFor: cfg.CacheBreakerOpenFor,
			Logger:  d.Settings.Logger,
		})
	}

	svc := &quote.Service{
		Settings:           d.Settings,
		LockTTL:            cfg.QuoteLockTTL,
		DefaultServiceType: cfg.QuoteDefaultServiceType,
		Logger:             d.Logger.With().Str("component", "quote").Logger(),
	}
	if d.DB != nil {
		svc.Store = &store.Quotes{DB: d.DB}
	}
	if d.Redis != nil {
		svc.Locker = lock.Locker{R: d.Redis, Prefix: LockPrefix, MaxWait: cfg.QuoteLockTTL}
	}
	d.Quotes = svc

	d.Writer = &quote.Writer{
		Committer: svc,
		Delay:     cfg.QuoteSaveDebounce,
		Logger:    d.Logger.With().Str("component", "quote_writer").Logger(),
		Meter:     Meter(d.MeterProvider, "quote.writer"),
	}
	return nil
}

// Close flushes pending quote saves and releases connections.
func (d *Dependencies) Close(ctx context.Context) error {
	var errs []error
	if d.Writer != nil {
		if err := d.Writer.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("flush pending quotes: %w", err))
		}
	}
	if d.Redis != nil {
		if err := d.Redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close redis: %w", err))
		}
	}
	if d.DB != nil {
		d.DB.Close()
	}
	return errors.Join(errs...)
}

// NewLimiterStore wires a rate limiter store backed by Redis, or memory when rdb is nil.
func NewLimiterStore(rdb *redis.Client) (limiter.Store, error) {
	return ratelimit.NewStore(rdb, ratelimit.DefaultPrefix)
}

// RunMigrations applies the embedded schema migrations.
func RunMigrations(databaseURL string) error {
	return store.Migrate(databaseURL)
}

// Meter returns a meter from provider, defaulting to the global one.
func Meter(provider metric.MeterProvider, name string) metric.Meter {
	if provider == nil {
		provider = otel.GetMeterProvider()
	}
	return provider.Meter(name)
}
