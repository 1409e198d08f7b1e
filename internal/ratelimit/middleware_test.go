package ratelimit_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	limiter "github.com/ulule/limiter/v3"

	"github.com/noah-isme/tour-quote/internal/ratelimit"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestHandlerMiddlewareEnforcesLimit(t *testing.T) {
	store, err := ratelimit.NewStore(nil, "test")
	require.NoError(t, err)
	lim, err := ratelimit.New(store, "1-M")
	require.NoError(t, err)

	handler := ratelimit.Handler{
		Limiter: lim,
		Key:     func(*http.Request) string { return "static" },
	}.Middleware(okHandler())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/quotes/preview", nil)
	rr1 := httptest.NewRecorder()
	handler.ServeHTTP(rr1, req.Clone(req.Context()))
	require.Equal(t, http.StatusOK, rr1.Code)
	require.Equal(t, "1", rr1.Header().Get("X-RateLimit-Limit"))
	require.Equal(t, "0", rr1.Header().Get("X-RateLimit-Remaining"))

	rr2 := httptest.NewRecorder()
	handler.ServeHTTP(rr2, req.Clone(req.Context()))
	require.Equal(t, http.StatusTooManyRequests, rr2.Code)
	require.NotEmpty(t, rr2.Header().Get("Retry-After"))
	require.Contains(t, rr2.Body.String(), "RATE_LIMITED")
}

func TestHandlerMiddlewareKeysByClientIP(t *testing.T) {
	store, err := ratelimit.NewStore(nil, "ip")
	require.NoError(t, err)
	lim, err := ratelimit.New(store, "1-H")
	require.NoError(t, err)
	handler := ratelimit.Handler{Limiter: lim}.Middleware(okHandler())

	for _, ip := range []string{"203.0.113.1:1000", "203.0.113.2:1000"} {
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		req.RemoteAddr = ip
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		require.Equal(t, http.StatusOK, rr.Code, ip)
	}
}

type failingStore struct{}

func (failingStore) Get(context.Context, string, limiter.Rate) (limiter.Context, error) {
	return limiter.Context{}, errors.New("store down")
}

func (failingStore) Peek(context.Context, string, limiter.Rate) (limiter.Context, error) {
	return limiter.Context{}, errors.New("store down")
}

func (failingStore) Reset(context.Context, string, limiter.Rate) (limiter.Context, error) {
	return limiter.Context{}, errors.New("store down")
}

func (failingStore) Increment(context.Context, string, int64, limiter.Rate) (limiter.Context, error) {
	return limiter.Context{}, errors.New("store down")
}

func TestHandlerMiddlewareFailsOpen(t *testing.T) {
	lim, err := ratelimit.New(failingStore{}, "1-S")
	require.NoError(t, err)

	called := false
	handler := ratelimit.Handler{Limiter: lim, OnError: func(error) { called = true }}.Middleware(okHandler())

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.True(t, called)
}

func TestNewRejectsMalformedRate(t *testing.T) {
	store, err := ratelimit.NewStore(nil, "")
	require.NoError(t, err)
	_, err = ratelimit.New(store, "lots")
	require.Error(t, err)
}

func TestRedisStoreCountsRequests(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store, err := ratelimit.NewStore(client, "")
	require.NoError(t, err)
	lim, err := ratelimit.New(store, "2-M")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	first, err := lim.Get(ctx, "client")
	require.NoError(t, err)
	require.EqualValues(t, 1, first.Remaining)
	second, err := lim.Get(ctx, "client")
	require.NoError(t, err)
	require.False(t, second.Reached)
	third, err := lim.Get(ctx, "client")
	require.NoError(t, err)
	require.True(t, third.Reached)
}
