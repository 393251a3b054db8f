package httpmiddleware

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// RateLimitConfig limits how many requests a single client may make per
// window. Product submissions upload several megabytes each, so the limit
// is usually applied to POST only.
type RateLimitConfig struct {
	Max    int
	Window time.Duration
	// Methods restricts limiting to these HTTP methods. Empty means all.
	Methods []string
	// KeyFunc identifies the client. Defaults to the client IP.
	KeyFunc func(*http.Request) string
}

// window counts requests of one client in the current fixed window.
type window struct {
	start time.Time
	count int
}

type limiter struct {
	max     int
	period  time.Duration
	methods map[string]bool
	keyFunc func(*http.Request) string

	mu      sync.Mutex
	clients map[string]*window
}

func newLimiter(cfg RateLimitConfig) *limiter {
	l := &limiter{
		max:     cfg.Max,
		period:  cfg.Window,
		keyFunc: cfg.KeyFunc,
		clients: make(map[string]*window),
	}
	if l.keyFunc == nil {
		l.keyFunc = clientIP
	}
	if len(cfg.Methods) > 0 {
		l.methods = make(map[string]bool, len(cfg.Methods))
		for _, m := range cfg.Methods {
			l.methods[strings.ToUpper(m)] = true
		}
	}
	return l
}

// take records a request for key at now. It reports whether the request is
// allowed, how many remain and when the window resets.
func (l *limiter) take(key string, now time.Time) (ok bool, remaining int, reset time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()

	w := l.clients[key]
	if w == nil || now.Sub(w.start) >= l.period {
		w = &window{start: now}
		l.clients[key] = w
	}
	reset = w.start.Add(l.period)
	if w.count >= l.max {
		return false, 0, reset
	}
	w.count++
	return true, l.max - w.count, reset
}

// evict drops windows that ended before now.
func (l *limiter) evict(now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for key, w := range l.clients {
		if now.Sub(w.start) >= l.period {
			delete(l.clients, key)
		}
	}
}

// RateLimit rejects requests over the limit with 429 and reports the limit
// state in X-RateLimit-* headers. Expired windows are evicted in the
// background until ctx is done. A non-positive Max or Window disables it.
func RateLimit(ctx context.Context, cfg RateLimitConfig) Middleware {
	if cfg.Max <= 0 || cfg.Window <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	l := newLimiter(cfg)
	go func() {
		t := time.NewTicker(cfg.Window)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-t.C:
				l.evict(now)
			}
		}
	}()

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if l.methods != nil && !l.methods[r.Method] {
				next.ServeHTTP(w, r)
				return
			}

			ok, remaining, reset := l.take(l.keyFunc(r), time.Now())
			h := w.Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(l.max))
			h.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
			h.Set("X-RateLimit-Reset", strconv.FormatInt(reset.Unix(), 10))
			if !ok {
				retry := int(time.Until(reset).Seconds()) + 1
				h.Set("Retry-After", strconv.Itoa(retry))
				h.Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				_, _ = w.Write([]byte(`{"code":429,"message":"rate limit exceeded"}`))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// clientIP prefers the first X-Forwarded-For hop, then X-Real-IP, then the
// connection address.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
