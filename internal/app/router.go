package app

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/noah-isme/tour-quote/internal/common"
	"github.com/noah-isme/tour-quote/internal/health"
	"github.com/noah-isme/tour-quote/internal/obs"
	"github.com/noah-isme/tour-quote/internal/quote"
	"github.com/noah-isme/tour-quote/internal/ratelimit"
	"github.com/noah-isme/tour-quote/internal/security"
	"github.com/noah-isme/tour-quote/internal/settings"
)

// ErrNotWired is returned by Router when Wire has not run on the dependencies.
var ErrNotWired = errors.New("app: dependencies not wired")

// Router assembles the HTTP surface.
func Router(d *Dependencies) (http.Handler, error) {
	if d == nil || d.Config == nil || d.Settings == nil || d.Quotes == nil || d.Writer == nil {
		return nil, ErrNotWired
	}
	cfg := d.Config

	var httpMetrics *obs.HTTPMetrics
	if cfg.EnablePrometheus {
		obs.MustRegisterDomainMetrics(cfg.MetricsNamespace, nil)
		httpMetrics = obs.NewHTTPMetrics(cfg.MetricsNamespace, obs.ParseBucketsCSV(cfg.MetricsBucketsMS), nil)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(obs.RoutePatternMiddleware)
	if cfg.EnableTracing {
		r.Use(obs.RouteSpanMiddleware)
	}
	if httpMetrics != nil {
		r.Use(obs.HTTPObs{Metrics: httpMetrics}.Middleware)
	}
	r.Use(obs.RequestLogger{Logger: d.Logger}.Middleware)
	r.Use(security.Headers{Enable: cfg.SecurityHeaders, EnableHSTS: cfg.EnableHSTS}.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins(cfg.CORSAllowedOrigins),
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "Idempotency-Key", "X-Request-ID"},
		ExposedHeaders: []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset", "Retry-After"},
		MaxAge:         300,
	}))
	r.Use(security.BodyLimit{Max: cfg.MaxBodyBytes}.Middleware)

	if cfg.EnablePrometheus {
		r.Handle("/metrics", promhttp.Handler())
	}

	healthHandler := health.Handler{Probes: probes(d), Timeout: cfg.ReadyDBTimeout}
	r.Get("/health/live", healthHandler.Live)
	r.Get("/health/ready", healthHandler.Ready)

	quoteHandler := quote.NewHandler(quote.HandlerConfig{
		Service:      d.Quotes,
		Writer:       d.Writer,
		Validator:    d.Validator,
		Logger:       d.Logger,
		MaxBodyBytes: cfg.MaxBodyBytes,
	})
	previewLimit := ratelimit.Handler{
		Limiter: d.Limiter,
		OnError: func(err error) {
			d.Logger.Warn().Err(err).Msg("rate limiter unavailable")
		},
	}
	idem := common.Idem{R: d.Redis, TTL: cfg.IdempotencyTTL, Prefix: "quote:idem:"}
	settingsHandler := settings.Handler{Provider: d.Settings}

	r.Route("/api/v1", func(v chi.Router) {
		quoteHandler.Mount(v,
			[]func(http.Handler) http.Handler{previewLimit.Middleware},
			[]func(http.Handler) http.Handler{idem.Middleware},
		)
		v.Get("/settings", settingsHandler.Current)
		v.Post("/settings/refresh", settingsHandler.Refresh)
	})

	if !cfg.EnableTracing {
		return r, nil
	}
	return otelhttp.NewHandler(r, "http.server",
		otelhttp.WithTracerProvider(d.TracerProvider),
		otelhttp.WithSpanNameFormatter(obs.ServerSpanName),
	), nil
}

func probes(d *Dependencies) map[string]health.Probe {
	checks := map[string]health.Probe{
		"settings": func(ctx context.Context) error {
			_, err := d.Settings.Snapshot(ctx)
			return err
		},
	}
	if d.DB != nil {
		checks["database"] = func(ctx context.Context) error { return d.DB.Ping(ctx) }
	}
	if d.Redis != nil {
		timeout := d.Config.ReadyRedisTimeout
		checks["redis"] = func(ctx context.Context) error {
			if timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}
			return d.Redis.Ping(ctx).Err()
		}
	}
	return checks
}

func allowedOrigins(origins []string) []string {
	if len(origins) == 0 {
		return []string{"*"}
	}
	return origins
}
