package server

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock drives a RateLimiter deterministically.
type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newClockedLimiter(perMinute, perHour, perDay int, data int64) (*RateLimiter, *fakeClock) {
	clock := &fakeClock{t: time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)}
	rl := NewRateLimiter(perMinute, perHour, perDay, data)
	rl.now = clock.now
	return rl, clock
}

func TestRateLimiter_NoLimits(t *testing.T) {
	rl, _ := newClockedLimiter(0, 0, 0, 0)
	for i := 0; i < 100; i++ {
		require.NoError(t, rl.CheckRateLimit("c", 100))
	}
	usage := rl.GetUsage("c")
	assert.Equal(t, 100, usage.RequestsToday)
	assert.Equal(t, int64(10000), usage.DataToday)
	assert.Equal(t, ClientUsage{}, rl.GetUsage("unknown"))
}

func TestRateLimiter_PerMinute(t *testing.T) {
	rl, clock := newClockedLimiter(2, 0, 0, 0)

	require.NoError(t, rl.CheckRateLimit("c", 0))
	clock.advance(10 * time.Second)
	require.NoError(t, rl.CheckRateLimit("c", 0))
	clock.advance(10 * time.Second)

	err := rl.CheckRateLimit("c", 0)
	var rle *RateLimitError
	require.True(t, errors.As(err, &rle))
	assert.Equal(t, "minute", rle.Type)
	assert.Equal(t, 2, rle.Limit)
	assert.Equal(t, 40*time.Second, rle.RetryAfter)

	// The window is anchored at the first request, not the last one
	clock.advance(40 * time.Second)
	assert.NoError(t, rl.CheckRateLimit("c", 0))
}

func TestRateLimiter_RejectedRequestsAreNotCounted(t *testing.T) {
	rl, _ := newClockedLimiter(1, 0, 0, 0)
	require.NoError(t, rl.CheckRateLimit("c", 0))
	for i := 0; i < 5; i++ {
		require.Error(t, rl.CheckRateLimit("c", 0))
	}
	assert.Equal(t, 1, rl.GetUsage("c").RequestsToday)
}

func TestRateLimiter_PerHour(t *testing.T) {
	rl, clock := newClockedLimiter(0, 3, 0, 0)
	for i := 0; i < 3; i++ {
		require.NoError(t, rl.CheckRateLimit("c", 0))
		clock.advance(5 * time.Minute)
	}
	err := rl.CheckRateLimit("c", 0)
	var rle *RateLimitError
	require.ErrorAs(t, err, &rle)
	assert.Equal(t, "hour", rle.Type)
	assert.Equal(t, 45*time.Minute, rle.RetryAfter)

	clock.advance(45 * time.Minute)
	assert.NoError(t, rl.CheckRateLimit("c", 0))
}

func TestRateLimiter_DailyQuotas(t *testing.T) {
	rl, clock := newClockedLimiter(0, 0, 2, 0)
	require.NoError(t, rl.CheckRateLimit("c", 0))
	require.NoError(t, rl.CheckRateLimit("c", 0))

	err := rl.CheckRateLimit("c", 0)
	var qe *QuotaExceededError
	require.ErrorAs(t, err, &qe)
	assert.Equal(t, "requests", qe.Type)
	assert.Equal(t, int64(2), qe.Used)
	assert.Equal(t, time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC), qe.Resets)

	// Quotas reset at midnight
	clock.advance(12 * time.Hour)
	assert.NoError(t, rl.CheckRateLimit("c", 0))
}

func TestRateLimiter_DataQuota(t *testing.T) {
	rl, _ := newClockedLimiter(0, 0, 0, 1000)
	require.NoError(t, rl.CheckRateLimit("c", 600))

	err := rl.CheckRateLimit("c", 500)
	var qe *QuotaExceededError
	require.ErrorAs(t, err, &qe)
	assert.Equal(t, "data", qe.Type)
	assert.Equal(t, int64(600), qe.Used)

	assert.NoError(t, rl.CheckRateLimit("c", 400))
}

func TestRateLimiter_ClientsAreIndependent(t *testing.T) {
	rl, _ := newClockedLimiter(1, 0, 0, 0)
	require.NoError(t, rl.CheckRateLimit("a", 0))
	require.NoError(t, rl.CheckRateLimit("b", 0))
	assert.Error(t, rl.CheckRateLimit("a", 0))
}

func TestRateLimitErrorMessages(t *testing.T) {
	rle := &RateLimitError{Type: "minute", Limit: 5, RetryAfter: time.Second}
	assert.Contains(t, rle.Error(), "rate limit exceeded for minute")

	qe := &QuotaExceededError{Type: "data", Limit: 10, Used: 9, Resets: time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)}
	assert.Contains(t, qe.Error(), "quota exceeded for data (used: 9, limit: 10")
}
