// Package middleware provides the HTTP middleware chain for the API.
package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/rmoraes/braseiro/pkg/response"
)

// window tracks request counts for one client within a fixed interval.
type window struct {
	mu      sync.Mutex
	count   int
	resetAt time.Time
}

func (w *window) take(max int, span time.Duration) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := time.Now()
	if now.After(w.resetAt) {
		w.count = 0
		w.resetAt = now.Add(span)
	}
	w.count++
	return w.count <= max
}

// limiter holds per-client windows and evicts expired ones in the
// background so long-running servers do not accumulate dead entries.
type limiter struct {
	mu      sync.Mutex
	clients map[string]*window
	span    time.Duration
}

func newLimiter(span time.Duration) *limiter {
	l := &limiter{clients: map[string]*window{}, span: span}
	go l.evictLoop()
	return l
}

func (l *limiter) window(key string) *window {
	l.mu.Lock()
	defer l.mu.Unlock()

	if w, ok := l.clients[key]; ok {
		return w
	}
	w := &window{resetAt: time.Now().Add(l.span)}
	l.clients[key] = w
	return w
}

func (l *limiter) evictLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for range ticker.C {
		now := time.Now()
		l.mu.Lock()
		for key, w := range l.clients {
			w.mu.Lock()
			expired := now.After(w.resetAt)
			w.mu.Unlock()
			if expired {
				delete(l.clients, key)
			}
		}
		l.mu.Unlock()
	}
}

func clientKey(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return fwd
	}
	return r.RemoteAddr
}

// RateLimit caps each client at max requests per span. Used on the
// destructive data endpoints (restore, recover, clear) so a misbehaving
// client cannot churn the emergency snapshot.
func RateLimit(max int, span time.Duration) func(http.Handler) http.Handler {
	l := newLimiter(span)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !l.window(clientKey(r)).take(max, span) {
				response.Error(w, http.StatusTooManyRequests, "Too Many Requests")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
