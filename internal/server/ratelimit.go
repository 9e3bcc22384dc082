package server

import (
	"fmt"
	"sync"
	"time"
)

// RateLimiter enforces fixed-window request limits and daily quotas per client.
type RateLimiter struct {
	mu sync.Mutex

	requestsPerMinute int
	requestsPerHour   int
	maxRequestsPerDay int
	maxDataPerDay     int64 // in bytes

	clients map[string]*ClientUsage
	now     func() time.Time
}

// ClientUsage tracks usage for a single client address.
type ClientUsage struct {
	MinuteStart   time.Time
	MinuteCount   int
	HourStart     time.Time
	HourCount     int
	Day           time.Time // local midnight of the current day
	RequestsToday int
	DataToday     int64
}

// NewRateLimiter creates a new rate limiter. A zero limit is not enforced.
func NewRateLimiter(requestsPerMinute, requestsPerHour, maxRequestsPerDay int, maxDataPerDay int64) *RateLimiter {
	return &RateLimiter{
		requestsPerMinute: requestsPerMinute,
		requestsPerHour:   requestsPerHour,
		maxRequestsPerDay: maxRequestsPerDay,
		maxDataPerDay:     maxDataPerDay,
		clients:           make(map[string]*ClientUsage),
		now:               time.Now,
	}
}

// CheckRateLimit admits or rejects one request of dataSize bytes from clientID.
// Rejected requests are not counted.
func (rl *RateLimiter) CheckRateLimit(clientID string, dataSize int64) error {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	u, ok := rl.clients[clientID]
	if !ok {
		u = &ClientUsage{MinuteStart: now, HourStart: now, Day: midnight(now)}
		rl.clients[clientID] = u
	}
	rollWindows(u, now)

	if rl.requestsPerMinute > 0 && u.MinuteCount >= rl.requestsPerMinute {
		return &RateLimitError{Type: "minute", Limit: rl.requestsPerMinute, RetryAfter: u.MinuteStart.Add(time.Minute).Sub(now)}
	}
	if rl.requestsPerHour > 0 && u.HourCount >= rl.requestsPerHour {
		return &RateLimitError{Type: "hour", Limit: rl.requestsPerHour, RetryAfter: u.HourStart.Add(time.Hour).Sub(now)}
	}
	resets := u.Day.AddDate(0, 0, 1)
	if rl.maxRequestsPerDay > 0 && u.RequestsToday >= rl.maxRequestsPerDay {
		return &QuotaExceededError{Type: "requests", Limit: int64(rl.maxRequestsPerDay), Used: int64(u.RequestsToday), Resets: resets}
	}
	if rl.maxDataPerDay > 0 && u.DataToday+dataSize > rl.maxDataPerDay {
		return &QuotaExceededError{Type: "data", Limit: rl.maxDataPerDay, Used: u.DataToday, Resets: resets}
	}

	u.MinuteCount++
	u.HourCount++
	u.RequestsToday++
	u.DataToday += dataSize
	return nil
}

func rollWindows(u *ClientUsage, now time.Time) {
	if now.Sub(u.MinuteStart) >= time.Minute {
		u.MinuteStart = now
		u.MinuteCount = 0
	}
	if now.Sub(u.HourStart) >= time.Hour {
		u.HourStart = now
		u.HourCount = 0
	}
	if day := midnight(now); !day.Equal(u.Day) {
		u.Day = day
		u.RequestsToday = 0
		u.DataToday = 0
	}
}

func midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// GetUsage returns a copy of the usage for clientID.
func (rl *RateLimiter) GetUsage(clientID string) ClientUsage {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	if u, ok := rl.clients[clientID]; ok {
		return *u
	}
	return ClientUsage{}
}

// RateLimitError represents a rate limit violation.
type RateLimitError struct {
	Type       string        // "minute" or "hour"
	Limit      int           // the limit that was exceeded
	RetryAfter time.Duration // time until the window resets
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded for %s (limit: %d, retry after: %v)", e.Type, e.Limit, e.RetryAfter)
}

// QuotaExceededError represents a daily quota violation.
type QuotaExceededError struct {
	Type   string    // "requests" or "data"
	Limit  int64     // the limit that was exceeded
	Used   int64     // current usage
	Resets time.Time // when the quota resets
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("quota exceeded for %s (used: %d, limit: %d, resets: %s)",
		e.Type, e.Used, e.Limit, e.Resets.Format(time.RFC3339))
}
