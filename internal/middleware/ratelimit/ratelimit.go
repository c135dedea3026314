// Package ratelimit throttles repeated requests per client. The HTTP shell
// puts it in front of the register and login endpoints to slow down
// credential guessing.
package ratelimit

import (
	"net/http"
	"sync"
	"time"
)

type Limiter struct {
	mu          sync.Mutex
	clients     map[string]*clientInfo
	stopCleanup chan struct{}
	stopOnce    sync.Once

	requestsPerMinute int
	cleanupInterval   time.Duration
}

type clientInfo struct {
	windowStart time.Time
	requests    int
}

type Config struct {
	RequestsPerMinute int
	CleanupInterval   time.Duration
}

func DefaultConfig() Config {
	return Config{
		RequestsPerMinute: 10,
		CleanupInterval:   5 * time.Minute,
	}
}

func NewLimiter(config Config) *Limiter {
	if config.RequestsPerMinute <= 0 {
		config.RequestsPerMinute = DefaultConfig().RequestsPerMinute
	}
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = DefaultConfig().CleanupInterval
	}

	l := &Limiter{
		clients:           make(map[string]*clientInfo),
		stopCleanup:       make(chan struct{}),
		requestsPerMinute: config.RequestsPerMinute,
		cleanupInterval:   config.CleanupInterval,
	}
	go l.cleanupLoop()
	return l
}

// Allow reports whether another request from this client fits in the
// current one-minute window.
func (l *Limiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	client, ok := l.clients[key]
	if !ok || now.Sub(client.windowStart) > time.Minute {
		l.clients[key] = &clientInfo{windowStart: now, requests: 1}
		return true
	}

	if client.requests >= l.requestsPerMinute {
		return false
	}
	client.requests++
	return true
}

// Middleware rejects over-limit clients with 429, keyed by remote address.
func (l *Limiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !l.Allow(clientKey(r)) {
			w.Header().Set("Retry-After", "60")
			http.Error(w, "too many requests", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (l *Limiter) cleanupLoop() {
	ticker := time.NewTicker(l.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.mu.Lock()
			cutoff := time.Now().Add(-2 * time.Minute)
			for key, client := range l.clients {
				if client.windowStart.Before(cutoff) {
					delete(l.clients, key)
				}
			}
			l.mu.Unlock()
		case <-l.stopCleanup:
			return
		}
	}
}

func (l *Limiter) Stop() {
	l.stopOnce.Do(func() { close(l.stopCleanup) })
}

func clientKey(r *http.Request) string {
	// X-Forwarded-For is set by the reverse proxy in deployment; fall back
	// to the direct peer address.
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		return xff
	}
	return r.RemoteAddr
}
