package middleware

import (
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

const (
	// maxTrackedClients caps the per-IP limiter map so a scan across many
	// source addresses cannot grow it without bound.
	maxTrackedClients = 100000
	// sweepInterval is how often idle per-IP limiters are reclaimed.
	sweepInterval = time.Minute
	// idleTokenFraction: a limiter whose bucket has refilled past this
	// fraction of its burst is considered idle and safe to drop.
	idleTokenFraction = 0.99
)

// RateLimiter enforces a per-IP token bucket plus a process-wide
// concurrent-connection ceiling in front of the WebSocket and HTTP
// surfaces. Long-lived transcription connections hold one connection slot
// for their whole lifetime, so the connection ceiling is the lever that
// actually bounds GPU demand; the token bucket only shapes connection
// churn.
type RateLimiter struct {
	enabled bool

	mu      sync.RWMutex
	clients map[string]*clientLimiter

	limit rate.Limit
	burst int

	// overflow is the shared bucket for IPs seen once clients is full.
	overflow *rate.Limiter

	maxConns  int32
	connCount int32
	sweeping  int32
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter builds a RateLimiter; a disabled one passes every request
// through untouched.
func NewRateLimiter(enabled bool, requestsPerSecond, burstSize, maxConnections int) *RateLimiter {
	return &RateLimiter{
		enabled:  enabled,
		clients:  make(map[string]*clientLimiter),
		limit:    rate.Limit(requestsPerSecond),
		burst:    burstSize,
		maxConns: int32(maxConnections),
	}
}

// Middleware wraps next with connection counting and per-IP rate checks.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	if !rl.enabled {
		return next
	}

	rl.startSweeper()

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for {
			current := atomic.LoadInt32(&rl.connCount)
			if current >= rl.maxConns {
				http.Error(w, "Too many connections", http.StatusTooManyRequests)
				return
			}
			if atomic.CompareAndSwapInt32(&rl.connCount, current, current+1) {
				break
			}
		}
		defer atomic.AddInt32(&rl.connCount, -1)

		if !rl.limiterFor(clientIP(r)).Allow() {
			http.Error(w, "Rate limit exceeded", http.StatusTooManyRequests)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// limiterFor returns the token bucket for ip, creating it on first sight.
// Once the map is at capacity, unseen IPs share a one-request-per-second
// bucket instead of evicting tracked clients.
func (rl *RateLimiter) limiterFor(ip string) *rate.Limiter {
	rl.mu.RLock()
	entry, ok := rl.clients[ip]
	rl.mu.RUnlock()
	if ok {
		entry.lastSeen = time.Now()
		return entry.limiter
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	if entry, ok := rl.clients[ip]; ok {
		entry.lastSeen = time.Now()
		return entry.limiter
	}
	if len(rl.clients) >= maxTrackedClients {
		if rl.overflow == nil {
			rl.overflow = rate.NewLimiter(rate.Limit(1), 1)
		}
		return rl.overflow
	}

	limiter := rate.NewLimiter(rl.limit, rl.burst)
	rl.clients[ip] = &clientLimiter{limiter: limiter, lastSeen: time.Now()}
	return limiter
}

// startSweeper launches the idle-limiter reclaim loop at most once.
func (rl *RateLimiter) startSweeper() {
	if !atomic.CompareAndSwapInt32(&rl.sweeping, 0, 1) {
		return
	}
	go func() {
		for range time.Tick(sweepInterval) {
			rl.sweepIdle()
		}
	}()
}

// sweepIdle drops limiters that have not been seen for a full sweep
// interval and whose buckets have refilled, so the map tracks only clients
// that are actually sending.
func (rl *RateLimiter) sweepIdle() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	refilled := float64(rl.burst) * idleTokenFraction
	for ip, entry := range rl.clients {
		if now.Sub(entry.lastSeen) > sweepInterval && entry.limiter.Tokens() >= refilled {
			delete(rl.clients, ip)
		}
	}
}

// clientIP resolves the originating client address, preferring
// reverse-proxy headers over the socket peer.
func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		if first := strings.TrimSpace(strings.Split(forwarded, ",")[0]); first != "" {
			return first
		}
	}
	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return strings.TrimSpace(realIP)
	}

	ip := r.RemoteAddr
	if colon := strings.LastIndex(ip, ":"); colon != -1 {
		if bracket := strings.LastIndex(ip, "]"); bracket != -1 && bracket < colon {
			ip = ip[:colon]
		} else if strings.Count(ip, ":") == 1 {
			ip = ip[:colon]
		}
	}
	return ip
}

// GetStats reports the limiter's live counters for the /stats surface.
func (rl *RateLimiter) GetStats() map[string]interface{} {
	rl.mu.RLock()
	tracked := len(rl.clients)
	rl.mu.RUnlock()

	return map[string]interface{}{
		"enabled":             rl.enabled,
		"active_limiters":     tracked,
		"max_limiters":        maxTrackedClients,
		"current_connections": atomic.LoadInt32(&rl.connCount),
		"max_connections":     rl.maxConns,
		"requests_per_second": float64(rl.limit),
		"burst_size":          rl.burst,
	}
}
