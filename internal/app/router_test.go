package app_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/tour-quote/internal/app"
	"github.com/noah-isme/tour-quote/internal/config"
)

const rules = `
version: test-1
pricing:
  defaultMarkupPercentage: 10
  defaultCurrency: INR
taxes:
  - country: IN
    rate: 5
`

const previewBody = `{"lineItems":[{"id":"h1","category":"hotel","basePrice":"10000"}],"trip":{"country":"IN"},"pax":{"adults":2}}`

func newDeps(t *testing.T) *app.Dependencies {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	path := filepath.Join(t.TempDir(), "pricing.yaml")
	require.NoError(t, os.WriteFile(path, []byte(rules), 0o600))

	deps := &app.Dependencies{
		Config: &config.Config{
			PricingRulesFile:        path,
			SettingsCacheTTL:        time.Minute,
			QuoteSaveDebounce:       time.Hour,
			QuoteLockTTL:            time.Second,
			QuoteDefaultServiceType: "package",
			RateLimitPreview:        "2-M",
			IdempotencyTTL:          time.Minute,
			MaxBodyBytes:            1 << 16,
			SecurityHeaders:         true,
			ReadyDBTimeout:          time.Second,
			ReadyRedisTimeout:       time.Second,
		},
		Logger: zerolog.Nop(),
		Redis:  rdb,
	}
	require.NoError(t, deps.Wire())
	t.Cleanup(func() { _ = deps.Writer.Close(context.Background()) })
	return deps
}

func serve(h http.Handler, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.RemoteAddr = "203.0.113.7:4000"
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRouterRequiresWiredDependencies(t *testing.T) {
	_, err := app.Router(&app.Dependencies{Config: &config.Config{}})
	require.ErrorIs(t, err, app.ErrNotWired)
}

func TestRouterPreviewIsRateLimited(t *testing.T) {
	h, err := app.Router(newDeps(t))
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		rec := serve(h, http.MethodPost, "/api/v1/quotes/preview", previewBody, nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		require.Equal(t, "2", rec.Header().Get("X-RateLimit-Limit"))
		require.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
		require.Contains(t, rec.Body.String(), `"finalPrice":"11550"`)
	}

	rec := serve(h, http.MethodPost, "/api/v1/quotes/preview", previewBody, nil)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.Contains(t, rec.Body.String(), "RATE_LIMITED")
}

func TestRouterDraftRejectsIdempotentReplay(t *testing.T) {
	deps := newDeps(t)
	h, err := app.Router(deps)
	require.NoError(t, err)

	key := map[string]string{"Idempotency-Key": "draft-1"}
	rec := serve(h, http.MethodPost, "/api/v1/proposals/p-1/quote/draft", previewBody, key)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	require.Equal(t, 1, deps.Writer.Pending())

	rec = serve(h, http.MethodPost, "/api/v1/proposals/p-1/quote/draft", previewBody, key)
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Contains(t, rec.Body.String(), "IDEMPOTENT_REPLAY")
}

func TestRouterHealthAndSettings(t *testing.T) {
	h, err := app.Router(newDeps(t))
	require.NoError(t, err)

	rec := serve(h, http.MethodGet, "/health/live", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = serve(h, http.MethodGet, "/health/ready", "", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.JSONEq(t, `{"redis":"ok","settings":"ok"}`, rec.Body.String())

	rec = serve(h, http.MethodGet, "/api/v1/settings", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"version":"test-1"`)
}

func TestRouterRejectsOversizedBodies(t *testing.T) {
	deps := newDeps(t)
	deps.Config.MaxBodyBytes = 16
	h, err := app.Router(deps)
	require.NoError(t, err)

	rec := serve(h, http.MethodPost, "/api/v1/quotes/preview", previewBody, nil)
	require.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}
