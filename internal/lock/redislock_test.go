package lock_test

import (
	"context"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/tour-quote/internal/lock"
)

func newClient(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestWithLockSerialisesHolders(t *testing.T) {
	_, client := newClient(t)

	locker := lock.Locker{R: client, Prefix: "quote:lock:", RetryBackoff: 5 * time.Millisecond}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	var order []string
	var mu sync.Mutex
	firstDone := make(chan struct{})
	releaseFirst := make(chan struct{})
	errs := make(chan error, 2)

	go func() {
		errs <- locker.WithLock(ctx, "proposal-1", 100*time.Millisecond, func(context.Context) error {
			mu.Lock()
			order = append(order, "first")
			mu.Unlock()
			close(firstDone)
			<-releaseFirst
			return nil
		})
	}()

	<-firstDone

	go func() {
		errs <- locker.WithLock(ctx, "proposal-1", 100*time.Millisecond, func(context.Context) error {
			mu.Lock()
			order = append(order, "second")
			mu.Unlock()
			return nil
		})
	}()

	close(releaseFirst)

	require.NoError(t, <-errs)
	require.NoError(t, <-errs)
	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []string{"first", "second"}, order)
}

func TestWithLockReleasesKey(t *testing.T) {
	mr, client := newClient(t)

	locker := lock.Locker{R: client, Prefix: "quote:lock:"}
	err := locker.WithLock(context.Background(), "proposal-2", time.Second, func(context.Context) error {
		require.True(t, mr.Exists("quote:lock:proposal-2"))
		return nil
	})
	require.NoError(t, err)
	require.False(t, mr.Exists("quote:lock:proposal-2"))
}

func TestWithLockGivesUpAfterMaxWait(t *testing.T) {
	mr, client := newClient(t)
	require.NoError(t, mr.Set("quote:lock:proposal-3", "someone-else"))

	locker := lock.Locker{R: client, Prefix: "quote:lock:", RetryBackoff: 5 * time.Millisecond, MaxWait: 30 * time.Millisecond}
	called := false
	err := locker.WithLock(context.Background(), "proposal-3", time.Second, func(context.Context) error {
		called = true
		return nil
	})
	require.ErrorIs(t, err, lock.ErrNotAcquired)
	require.False(t, called)
	require.True(t, mr.Exists("quote:lock:proposal-3"))
}
