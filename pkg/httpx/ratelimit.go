package httpx

import (
	"bytes"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/aussiebroadwan/edoras/pkg/slogx"
	"golang.org/x/time/rate"
)

// RateLimit defines a token bucket: Requests tokens refill per Window and up
// to Burst may be spent at once. The env tags are relative so the struct can
// be embedded with an envPrefix.
type RateLimit struct {
	Requests int           `env:"REQUESTS"`
	Window   time.Duration `env:"WINDOW"`
	Burst    int           `env:"BURST"`
}

// Profiles for the two kinds of endpoint we expose.
var (
	// StrictLimit guards credential endpoints against brute force.
	StrictLimit = RateLimit{Requests: 5, Window: time.Minute, Burst: 5}

	// ModerateLimit applies to authenticated account operations.
	ModerateLimit = RateLimit{Requests: 60, Window: time.Minute, Burst: 20}
)

// perSecond converts the profile into a rate.Limit.
func (c RateLimit) perSecond() rate.Limit {
	if c.Window <= 0 || c.Requests <= 0 {
		return rate.Inf
	}
	return rate.Limit(float64(c.Requests) / c.Window.Seconds())
}

// KeyExtractor returns the bucket key for a request. An empty key skips
// limiting for that request.
type KeyExtractor func(*http.Request) string

// IPKeyExtractor extracts the client IP address from the request.
// It handles X-Forwarded-For and X-Real-IP headers for proxied requests.
func IPKeyExtractor(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}

	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		return xri
	}

	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// SubjectKeyExtractor keys on the authenticated identity id, if any.
func SubjectKeyExtractor(r *http.Request) string {
	s, _ := SubjectFromContext(r.Context())
	return s
}

// JSONFieldKeyExtractor reads a top-level string field from a JSON body and
// puts the body back for the handler. Values are lower-cased so "Alice@x"
// and "alice@x" share a bucket. Bodies over DefaultMaxBodyBytes are handed
// on whole and yield no key.
func JSONFieldKeyExtractor(field string) KeyExtractor {
	return func(r *http.Request) string {
		if r.Body == nil {
			return ""
		}

		data, err := io.ReadAll(io.LimitReader(r.Body, DefaultMaxBodyBytes+1))
		r.Body = replayBody{Reader: io.MultiReader(bytes.NewReader(data), r.Body), Closer: r.Body}
		if err != nil || len(data) > DefaultMaxBodyBytes {
			return ""
		}

		var obj map[string]any
		if json.Unmarshal(data, &obj) != nil {
			return ""
		}
		v, _ := obj[field].(string)
		return strings.ToLower(strings.TrimSpace(v))
	}
}

// replayBody serves the bytes already consumed before the rest of the
// original body, and closes the original.
type replayBody struct {
	io.Reader
	io.Closer
}

// CompositeKeyExtractor joins the non-empty keys of every extractor with sep.
func CompositeKeyExtractor(sep string, extractors ...KeyExtractor) KeyExtractor {
	return func(r *http.Request) string {
		var parts []string
		for _, extractor := range extractors {
			if key := extractor(r); key != "" {
				parts = append(parts, key)
			}
		}
		return strings.Join(parts, sep)
	}
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Limiter keeps one token bucket per key. Buckets idle for longer than
// idleAfter are swept on the next insert.
type Limiter struct {
	cfg       RateLimit
	key       KeyExtractor
	now       func() time.Time
	idleAfter time.Duration

	mu        sync.Mutex
	buckets   map[string]*bucket
	lastSweep time.Time
}

// NewLimiter returns a Limiter for cfg grouping requests by key.
func NewLimiter(cfg RateLimit, key KeyExtractor) *Limiter {
	idle := 2 * cfg.Window
	if idle < time.Minute {
		idle = time.Minute
	}
	return &Limiter{
		cfg:       cfg,
		key:       key,
		now:       time.Now,
		idleAfter: idle,
		buckets:   make(map[string]*bucket),
		lastSweep: time.Now(),
	}
}

// allow spends a token for key and reports the wait until the next token
// when none is available.
func (l *Limiter) allow(key string) (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	b, ok := l.buckets[key]
	if !ok {
		l.sweep(now)
		b = &bucket{limiter: rate.NewLimiter(l.cfg.perSecond(), max(l.cfg.Burst, 1))}
		l.buckets[key] = b
	}
	b.lastSeen = now

	r := b.limiter.ReserveN(now, 1)
	if delay := r.DelayFrom(now); delay > 0 {
		r.CancelAt(now)
		return false, delay
	}
	return true, 0
}

func (l *Limiter) sweep(now time.Time) {
	if now.Sub(l.lastSweep) < l.idleAfter {
		return
	}
	l.lastSweep = now

	for k, b := range l.buckets {
		if now.Sub(b.lastSeen) > l.idleAfter {
			delete(l.buckets, k)
		}
	}
}

// Len reports the number of tracked buckets.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

// Middleware rejects requests over the limit with 429 and Retry-After.
func (l *Limiter) Middleware() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := l.key(r)
			if key == "" {
				next.ServeHTTP(w, r)
				return
			}

			ok, delay := l.allow(key)
			if !ok {
				retryAfter := max(int(delay.Round(time.Second).Seconds()), 1)

				w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
				w.Header().Set("X-RateLimit-Limit", strconv.Itoa(l.cfg.Requests))
				w.Header().Set("X-RateLimit-Window", l.cfg.Window.String())

				slogx.FromContext(r.Context()).Warn("rate limit exceeded",
					"endpoint", r.URL.Path,
					"retry_after", retryAfter,
					"tracked_keys", l.Len(),
				)

				WriteError(w, http.StatusTooManyRequests, "rate_limited", "too many requests, try again later", nil)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RateLimitMiddleware is shorthand for NewLimiter(cfg, key).Middleware().
func RateLimitMiddleware(cfg RateLimit, key KeyExtractor) Middleware {
	return NewLimiter(cfg, key).Middleware()
}
