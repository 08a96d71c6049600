package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
)

type bucket struct {
	count    int
	lastSeen time.Time
}

// RateLimiter bounds how often one client context may hit the activity API.
// Visibility transitions fire on every tab switch, so the budget is keyed on
// the authenticated (user, client) pair rather than the remote address: two
// tabs of the same user spend separate budgets, and an office NAT full of
// users does not share one.
type RateLimiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	limit   int
	window  time.Duration
}

func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	rl := &RateLimiter{
		buckets: make(map[string]*bucket),
		limit:   limit,
		window:  window,
	}

	// Cleanup goroutine
	go func() {
		for {
			time.Sleep(window)
			rl.mu.Lock()
			for key, b := range rl.buckets {
				if time.Since(b.lastSeen) > window {
					delete(rl.buckets, key)
				}
			}
			rl.mu.Unlock()
		}
	}()

	return rl
}

// limitKey mirrors the tracking context the manager uses. Requests that reach
// a route without auth fall back to the remote address.
func (rl *RateLimiter) limitKey(r *http.Request) string {
	userID := GetUserID(r.Context())
	if userID == uuid.Nil {
		return r.RemoteAddr
	}
	key := userID.String()
	if clientID := r.Header.Get("X-Client-ID"); clientID != "" {
		key += ":" + clientID
	}
	return key
}

func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := rl.limitKey(r)

		rl.mu.Lock()
		b, exists := rl.buckets[key]
		if !exists {
			rl.buckets[key] = &bucket{count: 1, lastSeen: time.Now()}
			rl.mu.Unlock()
			next.ServeHTTP(w, r)
			return
		}

		if time.Since(b.lastSeen) > rl.window {
			b.count = 1
			b.lastSeen = time.Now()
			rl.mu.Unlock()
			next.ServeHTTP(w, r)
			return
		}

		b.count++
		b.lastSeen = time.Now()
		count := b.count
		rl.mu.Unlock()

		if count > rl.limit {
			writeError(w, http.StatusTooManyRequests, "RATE_LIMITED", "Too many requests. Please try again later.", r)
			return
		}

		next.ServeHTTP(w, r)
	})
}
