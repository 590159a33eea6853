package server

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock drives a RateLimiter deterministically.
type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestLimiter(perMin, perHour, perDay int, data int64) (*RateLimiter, *fakeClock) {
	clock := &fakeClock{t: time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)}
	rl := NewRateLimiter(perMin, perHour, perDay, data)
	rl.now = clock.now
	return rl, clock
}

func TestNewRateLimiter(t *testing.T) {
	rl := NewRateLimiter(10, 100, 1000, 1024*1024)

	assert.Equal(t, 10, rl.requestsPerMinute)
	assert.Equal(t, 100, rl.requestsPerHour)
	assert.Equal(t, 1000, rl.maxRequestsPerDay)
	assert.Equal(t, int64(1024*1024), rl.maxDataPerDay)
	assert.NotNil(t, rl.clients)
}

func TestRateLimiter_NoLimits(t *testing.T) {
	rl, _ := newTestLimiter(0, 0, 0, 0)

	for range 100 {
		require.NoError(t, rl.CheckRateLimit("client", 100))
	}
	usage := rl.GetUsage("client")
	assert.Equal(t, 100, usage.RequestsToday)
	assert.Equal(t, int64(10000), usage.DataToday)
}

func TestRateLimiter_RequestsPerMinute(t *testing.T) {
	rl, clock := newTestLimiter(2, 0, 0, 0)

	require.NoError(t, rl.CheckRateLimit("c", 0))
	clock.advance(20 * time.Second)
	require.NoError(t, rl.CheckRateLimit("c", 0))

	err := rl.CheckRateLimit("c", 0)
	var rle *RateLimitError
	require.ErrorAs(t, err, &rle)
	assert.Equal(t, "minute", rle.Type)
	assert.Equal(t, 2, rle.Limit)
	assert.Equal(t, 40*time.Second, rle.RetryAfter, "window opened at the first request")

	// rejected requests are not counted
	assert.Equal(t, 2, rl.GetUsage("c").RequestsLastMinute)

	clock.advance(40 * time.Second)
	assert.NoError(t, rl.CheckRateLimit("c", 0))
}

func TestRateLimiter_RequestsPerHour(t *testing.T) {
	rl, clock := newTestLimiter(0, 3, 0, 0)

	for range 3 {
		require.NoError(t, rl.CheckRateLimit("c", 0))
		clock.advance(10 * time.Minute)
	}

	err := rl.CheckRateLimit("c", 0)
	var rle *RateLimitError
	require.ErrorAs(t, err, &rle)
	assert.Equal(t, "hour", rle.Type)
	assert.Equal(t, 30*time.Minute, rle.RetryAfter)

	clock.advance(30 * time.Minute)
	assert.NoError(t, rl.CheckRateLimit("c", 0))
}

func TestRateLimiter_MaxRequestsPerDay(t *testing.T) {
	rl, clock := newTestLimiter(0, 0, 2, 0)

	require.NoError(t, rl.CheckRateLimit("c", 0))
	require.NoError(t, rl.CheckRateLimit("c", 0))

	err := rl.CheckRateLimit("c", 0)
	var qe *QuotaExceededError
	require.ErrorAs(t, err, &qe)
	assert.Equal(t, "requests", qe.Type)
	assert.Equal(t, int64(2), qe.Limit)
	assert.Equal(t, int64(2), qe.Used)
	assert.Equal(t, time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC), qe.Resets)

	// the quota resets at midnight
	clock.advance(12 * time.Hour)
	assert.NoError(t, rl.CheckRateLimit("c", 0))
}

func TestRateLimiter_MaxDataPerDay(t *testing.T) {
	rl, _ := newTestLimiter(0, 0, 0, 1000)

	require.NoError(t, rl.CheckRateLimit("c", 500))
	require.NoError(t, rl.CheckRateLimit("c", 400))

	err := rl.CheckRateLimit("c", 200)
	var qe *QuotaExceededError
	require.ErrorAs(t, err, &qe)
	assert.Equal(t, "data", qe.Type)
	assert.Equal(t, int64(1000), qe.Limit)
	assert.Equal(t, int64(900), qe.Used)

	assert.NoError(t, rl.CheckRateLimit("c", 100), "exactly reaching the quota is allowed")
}

func TestRateLimiter_ClientsAreIndependent(t *testing.T) {
	rl, _ := newTestLimiter(1, 0, 0, 0)

	require.NoError(t, rl.CheckRateLimit("a", 0))
	require.NoError(t, rl.CheckRateLimit("b", 0))
	assert.Error(t, rl.CheckRateLimit("a", 0))
	assert.Equal(t, Usage{}, rl.GetUsage("unknown"))
}

func TestRateLimiter_Concurrent(t *testing.T) {
	rl := NewRateLimiter(0, 0, 50, 0)

	var wg sync.WaitGroup
	var mu sync.Mutex
	allowed := 0
	for i := range 100 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if rl.CheckRateLimit("shared", int64(i)) == nil {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, allowed)
}

func TestRateLimitErrors(t *testing.T) {
	rle := &RateLimitError{Type: "minute", Limit: 5, RetryAfter: 30 * time.Second}
	assert.Contains(t, rle.Error(), "rate limit exceeded for minute")

	qe := &QuotaExceededError{Type: "data", Limit: 10, Used: 9, Resets: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	assert.Contains(t, qe.Error(), "quota exceeded for data (used: 9, limit: 10")

	wrapped := fmt.Errorf("check: %w", rle)
	var target *RateLimitError
	assert.True(t, errors.As(wrapped, &target))
}
