package settings

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/noah-isme/tour-quote/internal/pricing"
	"github.com/noah-isme/tour-quote/internal/resilience"
)

// DefaultCacheKey is the Redis key holding the current settings snapshot.
const DefaultCacheKey = "quote:settings:current"

// Provider serves settings snapshots from the cache, falling back to the source.
// Cache failures never block quoting; they are logged and the source is used.
// When Breaker is set and open, the cache is skipped entirely.
type Provider struct {
	Source  Source
	Cache   *Cache
	Key     string
	Breaker *resilience.Breaker
	Logger  zerolog.Logger
}

// Snapshot returns the current settings snapshot.
func (p *Provider) Snapshot(ctx context.Context) (Snapshot, error) {
	if p == nil || p.Source == nil {
		return Snapshot{}, fmt.Errorf("settings: source not configured: %w", pricing.ErrConfiguration)
	}
	key := p.key()
	var (
		snap Snapshot
		ok   bool
	)
	err := p.Breaker.Do(ctx, func(ctx context.Context) error {
		var getErr error
		snap, ok, getErr = p.Cache.Get(ctx, key)
		return getErr
	})
	if err != nil {
		p.Logger.Warn().Err(err).Str("key", key).Msg("settings cache read failed")
	}
	if ok {
		return snap, nil
	}
	snap, err = p.Source.Load(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	err = p.Breaker.Do(ctx, func(ctx context.Context) error {
		return p.Cache.Set(ctx, key, snap)
	})
	if err != nil {
		p.Logger.Warn().Err(err).Str("key", key).Msg("settings cache write failed")
	}
	return snap, nil
}

// Invalidate drops the cached snapshot so the next read reloads the source.
func (p *Provider) Invalidate(ctx context.Context) error {
	if p == nil {
		return nil
	}
	return p.Cache.Delete(ctx, p.key())
}

func (p *Provider) key() string {
	if p.Key != "" {
		return p.Key
	}
	return DefaultCacheKey
}
