package ratelimit

import (
	"fmt"
	"strings"

	redis "github.com/redis/go-redis/v9"
	limiter "github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	sredis "github.com/ulule/limiter/v3/drivers/store/redis"
)

// DefaultPrefix namespaces limiter counters in Redis.
const DefaultPrefix = "quote:ratelimit"

// NewStore returns a Redis-backed limiter store, or an in-memory one when client is nil.
func NewStore(client *redis.Client, prefix string) (limiter.Store, error) {
	if strings.TrimSpace(prefix) == "" {
		prefix = DefaultPrefix
	}
	if client == nil {
		return memory.NewStoreWithOptions(limiter.StoreOptions{Prefix: prefix}), nil
	}
	store, err := sredis.NewStoreWithOptions(client, limiter.StoreOptions{Prefix: prefix})
	if err != nil {
		return nil, fmt.Errorf("ratelimit: redis store: %w", err)
	}
	return store, nil
}

// New builds a limiter from a formatted rate such as "120-M" (requests per minute).
func New(store limiter.Store, formatted string) (*limiter.Limiter, error) {
	rate, err := limiter.NewRateFromFormatted(strings.TrimSpace(formatted))
	if err != nil {
		return nil, fmt.Errorf("ratelimit: parse rate %q: %w", formatted, err)
	}
	return limiter.New(store, rate), nil
}
