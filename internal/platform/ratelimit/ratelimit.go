// Package ratelimit throttles requests per credential with token buckets.
//
// Requests are keyed by the X-Api-Key header, falling back to the client IP.
// The limit applies before admission so throttled callers never hold a permit.
package ratelimit

import (
	"context"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// CredentialHeader carries the opaque client credential.
const CredentialHeader = "X-Api-Key"

// Store keeps one token bucket per key and forgets idle keys.
type Store struct {
	mu           sync.Mutex
	entries      map[string]*entry
	rps          rate.Limit
	burst        int
	idleTTL      time.Duration
	cleanupEvery time.Duration
}

type entry struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithIdleTTL sets how long an unused key is kept.
func WithIdleTTL(d time.Duration) Option {
	return func(s *Store) { s.idleTTL = d }
}

// WithCleanupEvery sets the janitor interval. Zero disables the janitor.
func WithCleanupEvery(d time.Duration) Option {
	return func(s *Store) { s.cleanupEvery = d }
}

// NewStore returns a Store allowing rps requests per second per key with the
// given burst.
func NewStore(rps float64, burst int, opts ...Option) *Store {
	s := &Store{
		entries:      make(map[string]*entry),
		rps:          rate.Limit(rps),
		burst:        burst,
		idleTTL:      15 * time.Minute,
		cleanupEvery: 2 * time.Minute,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Limiter returns the bucket for key, creating it on first use.
func (s *Store) Limiter(key string) *rate.Limiter {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.entries[key]; ok {
		e.lastSeen = now
		return e.lim
	}

	lim := rate.NewLimiter(s.rps, s.burst)
	s.entries[key] = &entry{lim: lim, lastSeen: now}
	return lim
}

// Allow reports whether a request for key may proceed now.
func (s *Store) Allow(key string) bool {
	return s.Limiter(key).Allow()
}

// Len returns the number of tracked keys.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Cleanup drops keys idle for longer than the idle TTL.
func (s *Store) Cleanup() {
	cutoff := time.Now().Add(-s.idleTTL)

	s.mu.Lock()
	defer s.mu.Unlock()

	for k, e := range s.entries {
		if e.lastSeen.Before(cutoff) {
			delete(s.entries, k)
		}
	}
}

// StartJanitor runs Cleanup periodically until ctx is done.
func (s *Store) StartJanitor(ctx context.Context) {
	if s.cleanupEvery <= 0 {
		return
	}

	t := time.NewTicker(s.cleanupEvery)
	go func() {
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				s.Cleanup()
			}
		}
	}()
}

// KeyFunc derives the rate limit key from a request.
func KeyFunc(r *http.Request) string {
	if v := strings.TrimSpace(r.Header.Get(CredentialHeader)); v != "" {
		return v
	}
	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err == nil && host != "" {
		return host
	}
	if r.RemoteAddr != "" {
		return r.RemoteAddr
	}
	return "unknown"
}

// Middleware rejects requests over the per-key rate with 429 and a
// Retry-After header. onReject, if non-nil, is called for each rejection.
// A nil store disables limiting.
func Middleware(store *Store, retryAfter time.Duration, onReject func(r *http.Request, key string)) func(next http.Handler) http.Handler {
	if retryAfter <= 0 {
		retryAfter = time.Second
	}
	return func(next http.Handler) http.Handler {
		if store == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := KeyFunc(r)
			if !store.Allow(key) {
				if onReject != nil {
					onReject(r, key)
				}
				w.Header().Set("Retry-After", retryAfterHeader(retryAfter))
				http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// retryAfterHeader renders d as whole seconds, rounded up and at least 1.
func retryAfterHeader(d time.Duration) string {
	secs := int(math.Ceil(d.Seconds()))
	if secs < 1 {
		secs = 1
	}
	return strconv.Itoa(secs)
}
