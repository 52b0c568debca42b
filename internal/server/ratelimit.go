// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Switchyard Contributors

package server

import (
	"log/slog"
	"net"
	"net/http"
	"slices"
	"sync"
	"time"

	syerr "github.com/switchyard-dev/switchyard/pkg/errors"
)

// RateLimitConfig configures per-IP rate limiting.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained request rate per IP. Zero disables limiting.
	RequestsPerSecond float64
	// Burst is the maximum burst size per IP.
	Burst int
	// MaxVisitors is the maximum number of unique IPs tracked concurrently.
	// When the visitor map exceeds this size, the oldest entries are evicted
	// during cleanup. Default: 10000.
	MaxVisitors int
}

// Validate checks that the RateLimitConfig is valid and applies defaults.
func (c *RateLimitConfig) Validate() error {
	if c.RequestsPerSecond < 0 {
		return syerr.Errorf(syerr.CodeServerConfigInvalid,
			"rate limit requests per second must not be negative (got %g)",
			c.RequestsPerSecond)
	}
	if c.RequestsPerSecond > 0 && c.Burst <= 0 {
		return syerr.Errorf(syerr.CodeServerConfigInvalid,
			"rate limit burst must be positive when rate is set (got burst=%d, rate=%g)",
			c.Burst, c.RequestsPerSecond)
	}
	if c.MaxVisitors < 0 {
		return syerr.Errorf(syerr.CodeServerConfigInvalid,
			"rate limit max visitors must not be negative (got %d)",
			c.MaxVisitors)
	}
	if c.MaxVisitors == 0 {
		c.MaxVisitors = 10000
	}
	return nil
}

type visitorEntry struct {
	tokens     float64
	lastSeen   time.Time
	lastRefill time.Time
}

// rateLimiter tracks one token bucket per client IP.
type rateLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitorEntry
	cfg      RateLimitConfig
}

func newRateLimiter(cfg RateLimitConfig) *rateLimiter {
	return &rateLimiter{
		visitors: make(map[string]*visitorEntry),
		cfg:      cfg,
	}
}

// allow consumes one token for ip, refilling the bucket for elapsed time
// first. It reports whether the request may proceed.
func (l *rateLimiter) allow(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	v, exists := l.visitors[ip]
	if !exists {
		v = &visitorEntry{
			tokens:     float64(l.cfg.Burst),
			lastRefill: now,
		}
		l.visitors[ip] = v
	}
	v.lastSeen = now

	elapsed := now.Sub(v.lastRefill).Seconds()
	v.tokens += elapsed * l.cfg.RequestsPerSecond
	if v.tokens > float64(l.cfg.Burst) {
		v.tokens = float64(l.cfg.Burst)
	}
	v.lastRefill = now

	if v.tokens < 1 {
		return false
	}
	v.tokens--
	return true
}

// cleanup drops entries idle past the stale threshold and enforces the
// MaxVisitors cap by evicting the oldest remaining entries.
func (l *rateLimiter) cleanup(now time.Time) {
	const staleThreshold = 10 * time.Minute

	l.mu.Lock()
	defer l.mu.Unlock()

	type entry struct {
		ip       string
		lastSeen time.Time
	}
	entries := make([]entry, 0, len(l.visitors))
	for ip, v := range l.visitors {
		if now.Sub(v.lastSeen) > staleThreshold {
			delete(l.visitors, ip)
		} else {
			entries = append(entries, entry{ip: ip, lastSeen: v.lastSeen})
		}
	}

	if l.cfg.MaxVisitors > 0 && len(entries) > l.cfg.MaxVisitors {
		slices.SortFunc(entries, func(a, b entry) int {
			return a.lastSeen.Compare(b.lastSeen)
		})
		toEvict := len(entries) - l.cfg.MaxVisitors
		for i := range toEvict {
			delete(l.visitors, entries[i].ip)
		}
		slog.Warn("rate limiter visitor map cap enforced",
			"evicted", toEvict, "max_visitors", l.cfg.MaxVisitors, "remaining", len(l.visitors))
	}
}

// cleanupLoop periodically prunes the visitor map until done is closed.
func (l *rateLimiter) cleanupLoop(done <-chan struct{}) {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			l.cleanup(time.Now())
		case <-done:
			return
		}
	}
}

// rateLimitMiddleware returns middleware that enforces per-IP rate limits.
// Returns a pass-through middleware when cfg.RequestsPerSecond is zero.
// The done channel signals the cleanup goroutine to exit on shutdown.
func rateLimitMiddleware(cfg RateLimitConfig, done <-chan struct{}) func(http.Handler) http.Handler {
	if cfg.RequestsPerSecond <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}

	l := newRateLimiter(cfg)
	go l.cleanupLoop(done)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Strip the port from RemoteAddr to limit by IP, not by
			// connection: separate connections from ephemeral ports must
			// share one bucket.
			ip, _, err := net.SplitHostPort(r.RemoteAddr)
			if err != nil {
				// RemoteAddr might not have a port (e.g., in tests)
				ip = r.RemoteAddr
			}

			if !l.allow(ip) {
				slog.Warn("rate limit exceeded", "ip", ip, "path", r.URL.Path)
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("Retry-After", "1")
				w.WriteHeader(http.StatusTooManyRequests)
				if _, err := w.Write([]byte(`{"error":"rate limit exceeded"}`)); err != nil {
					slog.Warn("failed to write rate limit response", "error", err)
				}
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
