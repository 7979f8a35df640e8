package rest

import (
	"context"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

type contextKey string

const requestIDKey contextKey = "request_id"

// requestIDHeader is honoured when the client supplies its own id.
const requestIDHeader = "X-Request-ID"

// withRequestID tags every request with an id and echoes it back.
func withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		ctx := context.WithValue(r.Context(), requestIDKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequestID returns the request id stored by the middleware, if any.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// statusRecorder captures the response status for access logging.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// logRequests emits one structured access log line per request.
func logRequests(logger *zap.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r)

		logger.Info("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", RequestID(r.Context())))
	})
}

// isProbePath reports whether the request targets a health probe. Probes
// bypass the API key gate and the rate limiter so orchestrators can always
// reach them.
func isProbePath(path string) bool {
	return path == "/health" || path == "/ready"
}

// requireAPIKey rejects requests without the configured key.
func requireAPIKey(key string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if isProbePath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}
		if r.Header.Get("X-API-Key") != key {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"invalid or missing API key"}`))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// limiterIdleTTL is how long an idle client keeps its token bucket before
// the entry is swept, keeping the per-IP map bounded.
const limiterIdleTTL = 3 * time.Minute

type clientEntry struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// clientLimiters hands out one token bucket per client IP. Entries idle for
// longer than idleTTL are swept opportunistically on lookup.
type clientLimiters struct {
	mu        sync.Mutex
	clients   map[string]*clientEntry
	rps       rate.Limit
	burst     int
	idleTTL   time.Duration
	lastSweep time.Time
}

func newClientLimiters(rps rate.Limit, burst int, idleTTL time.Duration) *clientLimiters {
	return &clientLimiters{
		clients:   make(map[string]*clientEntry),
		rps:       rps,
		burst:     burst,
		idleTTL:   idleTTL,
		lastSweep: time.Now(),
	}
}

func (c *clientLimiters) get(ip string) *rate.Limiter {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	if now.Sub(c.lastSweep) >= c.idleTTL {
		for k, e := range c.clients {
			if now.Sub(e.lastSeen) >= c.idleTTL {
				delete(c.clients, k)
			}
		}
		c.lastSweep = now
	}

	e, ok := c.clients[ip]
	if !ok {
		e = &clientEntry{lim: rate.NewLimiter(c.rps, c.burst)}
		c.clients[ip] = e
	}
	e.lastSeen = now
	return e.lim
}

func (c *clientLimiters) size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.clients)
}

// rateLimit rejects clients that exceed their per-IP token bucket. Health
// probes are never limited.
func rateLimit(rps float64, burst int, next http.Handler) http.Handler {
	limiters := newClientLimiters(rate.Limit(rps), burst, limiterIdleTTL)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if isProbePath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}
		ip, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			ip = r.RemoteAddr
		}
		if !limiters.get(ip).Allow() {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error":"rate limit exceeded"}`))
			return
		}
		next.ServeHTTP(w, r)
	})
}
