package gatewayhttp

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimit is one named token-bucket policy, keyed per caller.
type RateLimit struct {
	RatePerSecond float64
	Burst         int
}

type rateEntry struct {
	limiter *rate.Limiter
}

// RateLimiter enforces per-caller token-bucket limits on named routes
// (mint, verify), grounded on the teacher's gateway rate limiter
// (gateway/middleware/ratelimit.go), simplified to one token per request
// since policy evaluation cost is already bounded by gas rather than by
// request weight.
type RateLimiter struct {
	limits   map[string]RateLimit
	mu       sync.RWMutex
	visitors map[string]*rateEntry
	now      func() time.Time
}

// NewRateLimiter builds a RateLimiter over the named limits map.
func NewRateLimiter(limits map[string]RateLimit) *RateLimiter {
	return &RateLimiter{
		limits:   limits,
		visitors: make(map[string]*rateEntry),
		now:      time.Now,
	}
}

// Middleware enforces the named limit key against the caller identified by
// clientID(req), failing closed with 429 when exhausted.
func (r *RateLimiter) Middleware(key string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			limit, ok := r.limits[key]
			if !ok {
				next.ServeHTTP(w, req)
				return
			}
			bucketKey := key + "|" + clientID(req)
			limiter := r.obtainLimiter(bucketKey, limit)
			if !limiter.AllowN(r.now(), 1) {
				http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, req)
		})
	}
}

func (r *RateLimiter) obtainLimiter(id string, cfg RateLimit) *rate.Limiter {
	r.mu.Lock()
	defer r.mu.Unlock()
	if entry, ok := r.visitors[id]; ok {
		return entry.limiter
	}
	perSecond := cfg.RatePerSecond
	if perSecond <= 0 {
		perSecond = 1
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	limiter := rate.NewLimiter(rate.Limit(perSecond), burst)
	r.visitors[id] = &rateEntry{limiter: limiter}
	go r.expire(id)
	return limiter
}

func (r *RateLimiter) expire(id string) {
	timer := time.NewTimer(5 * time.Minute)
	defer timer.Stop()
	<-timer.C
	r.mu.Lock()
	delete(r.visitors, id)
	r.mu.Unlock()
}

func clientID(r *http.Request) string {
	if apiKey := strings.TrimSpace(r.Header.Get(HeaderAPIKey)); apiKey != "" {
		return "api-key:" + apiKey
	}
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		if comma := strings.IndexByte(forwarded, ','); comma > 0 {
			forwarded = forwarded[:comma]
		}
		if parsed := net.ParseIP(strings.TrimSpace(forwarded)); parsed != nil {
			return parsed.String()
		}
		return strings.TrimSpace(forwarded)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
