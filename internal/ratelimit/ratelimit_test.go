package ratelimit

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"strconv"
	"sync"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryLimiter_FixedWindow(t *testing.T) {
	now := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	l := NewMemoryLimiter(15*time.Minute, 3)
	l.now = func() time.Time { return now }

	for i := range 3 {
		d, err := l.Allow(t.Context(), "10.0.0.1")
		require.NoError(t, err)
		assert.True(t, d.Allowed, "request %d", i+1)
		assert.Equal(t, 2-i, d.Remaining)
	}

	d, err := l.Allow(t.Context(), "10.0.0.1")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Zero(t, d.Remaining)
	assert.Equal(t, now.Add(15*time.Minute), d.ResetAt)

	// Another client has its own budget.
	d, err = l.Allow(t.Context(), "10.0.0.2")
	require.NoError(t, err)
	assert.True(t, d.Allowed)

	// The next window starts fresh.
	now = now.Add(15 * time.Minute)
	d, err = l.Allow(t.Context(), "10.0.0.1")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, 2, d.Remaining)
}

func TestMemoryLimiter_SweepsExpiredWindows(t *testing.T) {
	now := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	l := NewMemoryLimiter(time.Minute, 10)
	l.now = func() time.Time { return now }

	for i := range 5 {
		_, err := l.Allow(t.Context(), "client-"+strconv.Itoa(i))
		require.NoError(t, err)
	}
	assert.Len(t, l.counters, 5)

	now = now.Add(2 * time.Minute)
	_, err := l.Allow(t.Context(), "fresh")
	require.NoError(t, err)
	assert.Len(t, l.counters, 1)
}

func TestMemoryLimiter_Concurrent(t *testing.T) {
	l := NewMemoryLimiter(time.Hour, 50)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		allowed int
	)
	for range 100 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d, err := l.Allow(context.Background(), "shared")
			if err != nil {
				return
			}
			if d.Allowed {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, allowed)
}

type failingLimiter struct{ calls int }

func (f *failingLimiter) Allow(context.Context, string) (Decision, error) {
	f.calls++
	return Decision{}, ErrUnavailable
}

func TestFallback_UsesSecondaryOnError(t *testing.T) {
	primary := &failingLimiter{}
	secondary := NewMemoryLimiter(time.Minute, 1)
	f := NewFallback(primary, secondary, slog.New(slog.DiscardHandler))

	d, err := f.Allow(t.Context(), "k")
	require.NoError(t, err)
	assert.True(t, d.Allowed)

	d, err = f.Allow(t.Context(), "k")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, 2, primary.calls)
}

func TestRedisLimiter_UnreachableServer(t *testing.T) {
	client := goredis.NewClient(&goredis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { client.Close() }) //nolint:errcheck // test cleanup

	l := NewRedisLimiter(client, time.Minute, 10)
	_, err := l.Allow(t.Context(), "k")
	assert.True(t, errors.Is(err, ErrUnavailable), "got %v", err)
}

func TestRedisLimiter_Integration(t *testing.T) {
	url := os.Getenv("HOMELAB_TEST_REDIS_URL")
	if url == "" {
		t.Skip("HOMELAB_TEST_REDIS_URL not set")
	}
	opts, err := goredis.ParseURL(url)
	require.NoError(t, err)
	client := goredis.NewClient(opts)
	t.Cleanup(func() { client.Close() }) //nolint:errcheck // test cleanup

	l := NewRedisLimiter(client, time.Minute, 2)
	l.prefix = "homelab:test:" + strconv.FormatInt(time.Now().UnixNano(), 36) + ":"

	for i := range 2 {
		d, err := l.Allow(t.Context(), "client")
		require.NoError(t, err)
		assert.True(t, d.Allowed, "request %d", i+1)
	}
	d, err := l.Allow(t.Context(), "client")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, 2, d.Limit)
}
