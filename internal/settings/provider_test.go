package settings_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/tour-quote/internal/pricing"
	"github.com/noah-isme/tour-quote/internal/resilience"
	"github.com/noah-isme/tour-quote/internal/settings"
)

const rulesYAML = `
version: v7
pricing:
  defaultMarkupPercentage: 12.5
  useSlabPricing: true
  allowStaffPricingEdit: true
  defaultCurrency: THB
  markupSlabs:
    - minAmount: 0
      maxAmount: 15000
      markupType: fixed
      markupValue: 500
      isActive: true
    - minAmount: 15000
      maxAmount: 90000
      markupValue: 6
      isActive: false
taxes:
  - country: TH
    rate: 7
  - country: TH
    serviceType: hotel
    rate: 10
`

type countingSource struct {
	snap  settings.Snapshot
	err   error
	loads int
}

func (c *countingSource) Load(context.Context) (settings.Snapshot, error) {
	c.loads++
	return c.snap, c.err
}

func writeRules(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pricing.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestFileSourceLoadsRules(t *testing.T) {
	t.Parallel()

	snap, err := settings.FileSource{Path: writeRules(t, rulesYAML)}.Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, "v7", snap.Version)
	require.True(t, snap.Settings.UseSlabPricing)
	require.True(t, snap.Settings.AllowStaffPricingEdit)
	require.True(t, snap.Settings.DefaultMarkupPercentage.Equal(decimal.RequireFromString("12.5")))
	require.Len(t, snap.Settings.MarkupSlabs, 2)
	require.Equal(t, pricing.MarkupFixed, snap.Settings.MarkupSlabs[0].MarkupType)
	require.Equal(t, pricing.MarkupPercentage, snap.Settings.MarkupSlabs[1].MarkupType)
	require.False(t, snap.Settings.MarkupSlabs[1].IsActive)
	require.Len(t, snap.Taxes.Rules, 2)

	rate, source, ok := snap.Taxes.Lookup("TH", "hotel")
	require.True(t, ok)
	require.Equal(t, pricing.TaxSourceRule, source)
	require.True(t, rate.Equal(decimal.NewFromInt(10)))
}

func TestFileSourceMissingFileIsConfigurationError(t *testing.T) {
	t.Parallel()

	_, err := settings.FileSource{Path: filepath.Join(t.TempDir(), "absent.yaml")}.Load(context.Background())
	require.ErrorIs(t, err, pricing.ErrConfiguration)
}

func TestParseRejectsMissingPricingSection(t *testing.T) {
	t.Parallel()

	_, err := settings.Parse([]byte("taxes:\n  - country: TH\n    rate: 7\n"))
	require.ErrorIs(t, err, pricing.ErrConfiguration)
}

func TestParseRejectsUnknownMarkupType(t *testing.T) {
	t.Parallel()

	_, err := settings.Parse([]byte("pricing:\n  useSlabPricing: true\n  markupSlabs:\n    - minAmount: 0\n      maxAmount: 10\n      markupType: tiered\n"))
	require.ErrorIs(t, err, pricing.ErrConfiguration)
}

func TestProviderCachesSnapshot(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	source := &countingSource{snap: settings.Snapshot{Version: "v1", Settings: pricing.Settings{DefaultCurrency: "THB"}}}
	provider := &settings.Provider{Source: source, Cache: settings.NewCache(client, time.Minute)}
	ctx := context.Background()

	first, err := provider.Snapshot(ctx)
	require.NoError(t, err)
	second, err := provider.Snapshot(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, source.loads)
	require.Equal(t, first.Version, second.Version)
	require.True(t, mr.Exists(settings.DefaultCacheKey))

	require.NoError(t, provider.Invalidate(ctx))
	_, err = provider.Snapshot(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, source.loads)
}

func TestProviderFallsBackWhenRedisUnavailable(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	mr.Close()

	source := &countingSource{snap: settings.Snapshot{Version: "v2"}}
	provider := &settings.Provider{Source: source, Cache: settings.NewCache(client, time.Minute)}

	snap, err := provider.Snapshot(context.Background())
	require.NoError(t, err)
	require.Equal(t, "v2", snap.Version)
}

func TestProviderBreakerSkipsFailingCache(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	mr.SetError("LOADING redis is loading the dataset")

	breaker := resilience.NewBreaker(resilience.BreakerConfig{Target: "settings_cache", MinRequests: 1, OpenFor: time.Hour})
	source := &countingSource{snap: settings.Snapshot{Version: "v3"}}
	provider := &settings.Provider{Source: source, Cache: settings.NewCache(client, time.Minute), Breaker: breaker}
	ctx := context.Background()

	snap, err := provider.Snapshot(ctx)
	require.NoError(t, err)
	require.Equal(t, "v3", snap.Version)
	require.Equal(t, resilience.Open, breaker.State())

	mr.SetError("")
	_, err = provider.Snapshot(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, source.loads)
	require.False(t, mr.Exists(settings.DefaultCacheKey))
}

func TestProviderWithoutSourceIsConfigurationError(t *testing.T) {
	t.Parallel()

	_, err := (&settings.Provider{}).Snapshot(context.Background())
	require.ErrorIs(t, err, pricing.ErrConfiguration)
}
