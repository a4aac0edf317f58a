// Package ratelimit implements the per-IP request limiter that guards every
// route. It mirrors a classic token-bucket / GCRA limiter: each client IP
// gets its own bucket that refills continuously, so bursts are tolerated up
// to the bucket size but sustained traffic above the configured rate is
// throttled smoothly rather than in hard per-window steps.
package ratelimit

import (
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/hearthforge/backend/internal/metrics"
)

// Config holds rate limiting configuration for the per-IP limiter.
type Config struct {
	Enabled bool

	// RequestsPerMinute is the sustained rate each IP bucket refills at.
	RequestsPerMinute int
	// Burst is the bucket size; it bounds how many requests an IP can send
	// back-to-back before the sustained rate starts throttling it.
	Burst int

	// CloudflareIntegration, when true, trusts the CF-Connecting-IP header
	// over the socket peer address. Only enable this behind Cloudflare,
	// where the header cannot be spoofed by the client.
	CloudflareIntegration bool

	// BypassHeaderKey, if set, lets a request skip all accounting when it
	// presents this exact value in the x-ratelimit-key header. Intended
	// for internal service-to-service calls and load tests.
	BypassHeaderKey string

	Metrics *metrics.Metrics
}

// DefaultConfig returns a generous default: 300 requests/minute sustained
// with a 30-request burst per IP.
func DefaultConfig() Config {
	return Config{
		Enabled:           true,
		RequestsPerMinute: 300,
		Burst:             30,
	}
}

// Limiter owns one token bucket per IP address. Buckets are created lazily
// and swept periodically so idle IPs don't leak memory.
type Limiter struct {
	cfg     Config
	mu      sync.Mutex
	buckets map[string]*bucket
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewLimiter builds a Limiter and starts its background sweep goroutine.
// Callers should keep the returned Limiter alive for the process lifetime;
// there is no Stop because the sweep goroutine holds no other resources.
func NewLimiter(cfg Config) *Limiter {
	l := &Limiter{cfg: cfg, buckets: make(map[string]*bucket)}
	go l.sweepLoop()
	return l
}

func (l *Limiter) sweepLoop() {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()
	for range ticker.C {
		cutoff := time.Now().Add(-30 * time.Minute)
		l.mu.Lock()
		for ip, b := range l.buckets {
			if b.lastSeen.Before(cutoff) {
				delete(l.buckets, ip)
			}
		}
		l.mu.Unlock()
	}
}

func (l *Limiter) bucketFor(ip string) *rate.Limiter {
	now := time.Now()
	l.mu.Lock()
	defer l.mu.Unlock()
	b, ok := l.buckets[ip]
	if !ok {
		perSecond := float64(l.cfg.RequestsPerMinute) / 60.0
		b = &bucket{limiter: rate.NewLimiter(rate.Limit(perSecond), l.cfg.Burst)}
		l.buckets[ip] = b
	}
	b.lastSeen = now
	return b.limiter
}

// Middleware enforces the per-IP limit on every request it wraps. It
// attaches x-ratelimit-limit/remaining/reset headers to responses that
// pass the limiter and to responses throttled for exceeding the rate.
// Requests carrying the bypass key, requests whose client IP cannot be
// resolved, and requests the limiter cannot reserve at all (a zero burst)
// get no such headers.
func (l *Limiter) Middleware(next http.Handler) http.Handler {
	if !l.cfg.Enabled {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if l.cfg.BypassHeaderKey != "" && r.Header.Get("x-ratelimit-key") == l.cfg.BypassHeaderKey {
			next.ServeHTTP(w, r)
			return
		}

		ip := l.clientIP(r)
		if ip == "" {
			if l.cfg.Metrics != nil {
				l.cfg.Metrics.ObserveRateLimit("per_ip", "unknown")
			}
			writeIPUnavailable(w)
			return
		}

		lim := l.bucketFor(ip)
		now := time.Now()
		reservation := lim.ReserveN(now, 1)
		if !reservation.OK() {
			writeThrottled(w, l.cfg.Burst, l.cfg.Burst)
			return
		}

		delay := reservation.DelayFrom(now)
		if delay > 0 {
			reservation.CancelAt(now)
			if l.cfg.Metrics != nil {
				l.cfg.Metrics.ObserveRateLimit("per_ip", ip)
			}
			w.Header().Set("x-ratelimit-limit", strconv.Itoa(l.cfg.Burst))
			w.Header().Set("x-ratelimit-remaining", "0")
			w.Header().Set("x-ratelimit-reset", strconv.Itoa(int(delay.Seconds())))
			w.Header().Set("Retry-After", strconv.Itoa(int(delay.Seconds())+1))
			writeThrottled(w, l.cfg.Burst, int(delay.Seconds()))
			return
		}

		remaining := int(lim.TokensAt(now))
		if remaining < 0 {
			remaining = 0
		}
		ratePerSec := max(1, l.cfg.RequestsPerMinute/60)
		resetSeconds := (l.cfg.Burst - remaining) / ratePerSec
		w.Header().Set("x-ratelimit-limit", strconv.Itoa(l.cfg.Burst))
		w.Header().Set("x-ratelimit-remaining", strconv.Itoa(remaining))
		w.Header().Set("x-ratelimit-reset", strconv.Itoa(resetSeconds))

		next.ServeHTTP(w, r)
	})
}

// clientIP resolves the request's IP, honoring CF-Connecting-IP only when
// CloudflareIntegration is enabled since that header is trivially spoofable
// when the request didn't actually pass through Cloudflare.
func (l *Limiter) clientIP(r *http.Request) string {
	if l.cfg.CloudflareIntegration {
		if header := r.Header.Get("CF-Connecting-IP"); header != "" {
			return header
		}
	}
	if r.RemoteAddr != "" {
		if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
			return host
		}
		return r.RemoteAddr
	}
	return ""
}

// rateLimitBody is RateLimitError(wait_ms, burst) (spec.md §7): the flat
// `{"error": "<kind>", "description": "<human>"}` envelope plus the
// wait-time and burst size a client needs to back off correctly.
type rateLimitBody struct {
	Error       string `json:"error"`
	Description string `json:"description"`
	WaitMs      int64  `json:"wait_ms"`
	Burst       int    `json:"burst"`
}

func writeThrottled(w http.ResponseWriter, limit, retryAfterSeconds int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)
	json.NewEncoder(w).Encode(rateLimitBody{
		Error:       "ratelimit_error",
		Description: "You are being rate-limited. Please slow down and try again shortly.",
		WaitMs:      int64(retryAfterSeconds) * 1000,
		Burst:       limit,
	})
}

func writeIPUnavailable(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	w.Write([]byte(`{"error":"authentication_error","description":"Unable to obtain user IP address!"}`))
}

