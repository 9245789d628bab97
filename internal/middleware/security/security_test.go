package security

import (
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractClientIP(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		xff        string
		xri        string
		want       string
	}{
		{"direct public peer", "203.0.113.9:4000", "", "", "203.0.113.9"},
		{"public peer cannot spoof", "203.0.113.9:4000", "1.2.3.4", "", "203.0.113.9"},
		{"trusted proxy xff", "10.0.0.5:4000", "198.51.100.7, 10.0.0.1", "", "198.51.100.7"},
		{"trusted proxy real ip", "127.0.0.1:4000", "", "198.51.100.8", "198.51.100.8"},
		{"trusted proxy garbage xff", "192.168.1.1:80", "not-an-ip", "", "192.168.1.1"},
		{"unparseable remote", "weird", "", "", "weird"},
	}
	d := NewDetector(nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tt.remoteAddr
			if tt.xff != "" {
				r.Header.Set("X-Forwarded-For", tt.xff)
			}
			if tt.xri != "" {
				r.Header.Set("X-Real-IP", tt.xri)
			}
			assert.Equal(t, tt.want, d.ExtractClientIP(r))
		})
	}
}

func TestDetectSuspiciousRequest(t *testing.T) {
	tests := []struct {
		name       string
		method     string
		target     string
		agent      string
		suspicious bool
	}{
		{"normal api call", http.MethodGet, "/api/summary", "Mozilla/5.0", false},
		{"curl is fine", http.MethodGet, "/api/balance", "curl/8.0", false},
		{"dotenv probe", http.MethodGet, "/.env", "", true},
		{"traversal in query", http.MethodGet, "/api/transactions?x=../../etc", "", true},
		{"scanner agent", http.MethodGet, "/", "sqlmap/1.7", true},
		{"trace method", "TRACE", "/", "", true},
		{"long url", http.MethodGet, "/api?q=" + strings.Repeat("a", 2100), "", true},
	}
	d := NewDetector(nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(tt.method, tt.target, nil)
			r.Header.Set("User-Agent", tt.agent)
			assert.Equal(t, tt.suspicious, d.DetectSuspiciousRequest(r) != "")
		})
	}
}

func TestDetectorMiddleware(t *testing.T) {
	d := NewDetector(nil)
	h := d.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest("TRACE", "/", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/wp-admin", nil))
	assert.Equal(t, http.StatusOK, rr.Code, "probes are logged, not blocked")

	m := d.GetMetrics()
	assert.Equal(t, int64(2), m.SuspiciousRequests)
	assert.Equal(t, int64(1), m.BlockedRequests)
}

func TestAddTrustedProxy(t *testing.T) {
	d := NewDetector(nil)
	assert.Error(t, d.AddTrustedProxy("nope"))
	assert.NoError(t, d.AddTrustedProxy("203.0.113.0/24"))

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "203.0.113.1:1"
	r.Header.Set("X-Forwarded-For", "198.51.100.1")
	assert.Equal(t, "198.51.100.1", d.ExtractClientIP(r))
}

func TestHeadersMiddleware(t *testing.T) {
	h := NewHeadersMiddleware(DefaultHeadersConfig()).Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rr.Header().Get("X-Frame-Options"))
	assert.Equal(t, "no-store", rr.Header().Get("Cache-Control"))
	assert.Empty(t, rr.Header().Get("Strict-Transport-Security"))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.TLS = &tls.ConnectionState{}
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Equal(t, "max-age=31536000; includeSubDomains", rr.Header().Get("Strict-Transport-Security"))
}
