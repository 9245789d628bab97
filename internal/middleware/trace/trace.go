package trace

import (
	"context"
	"net/http"
	"regexp"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// ContextKey type for context keys
type ContextKey string

const (
	// RequestIDKey is the context key for request ID
	RequestIDKey ContextKey = "request_id"

	// HeaderRequestID carries the request id in both directions.
	HeaderRequestID = "X-Request-ID"
)

// Incoming ids are reused only when they look harmless.
var validRequestID = regexp.MustCompile(`^[A-Za-z0-9._-]{1,64}$`)

// Middleware assigns every request an id and keeps request counters.
type Middleware struct {
	metrics *Metrics
}

// Metrics tracks request metrics
type Metrics struct {
	TotalRequests       int64
	InFlight            int64
	AverageResponseTime int64 // in microseconds
}

func NewMiddleware() *Middleware {
	return &Middleware{metrics: &Metrics{}}
}

// Middleware returns HTTP middleware for request tracing
func (m *Middleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		requestID := r.Header.Get(HeaderRequestID)
		if !validRequestID.MatchString(requestID) {
			requestID = GenerateRequestID()
		}
		w.Header().Set(HeaderRequestID, requestID)

		ctx := context.WithValue(r.Context(), RequestIDKey, requestID)

		total := atomic.AddInt64(&m.metrics.TotalRequests, 1)
		atomic.AddInt64(&m.metrics.InFlight, 1)
		defer func() {
			atomic.AddInt64(&m.metrics.InFlight, -1)
			// running mean, good enough for a health page
			elapsed := time.Since(start).Microseconds()
			prev := atomic.LoadInt64(&m.metrics.AverageResponseTime)
			atomic.StoreInt64(&m.metrics.AverageResponseTime, prev+(elapsed-prev)/total)
		}()

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GenerateRequestID creates a unique request ID for tracing
func GenerateRequestID() string {
	return "req_" + uuid.NewString()
}

// GetRequestID extracts the request ID from context
func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(RequestIDKey).(string); ok {
		return id
	}
	return ""
}

// FromRequest is GetRequestID for callers holding the request.
func FromRequest(r *http.Request) string {
	return GetRequestID(r.Context())
}

// GetMetrics returns current metrics
func (m *Middleware) GetMetrics() Metrics {
	return Metrics{
		TotalRequests:       atomic.LoadInt64(&m.metrics.TotalRequests),
		InFlight:            atomic.LoadInt64(&m.metrics.InFlight),
		AverageResponseTime: atomic.LoadInt64(&m.metrics.AverageResponseTime),
	}
}
