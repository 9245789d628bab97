package security

import (
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync/atomic"

	applog "cashstash/internal/log"
)

// DetectionMetrics tracks security detection events
type DetectionMetrics struct {
	SuspiciousRequests int64
	BlockedRequests    int64
}

// Detector flags probing traffic and resolves client addresses behind
// trusted proxies.
type Detector struct {
	metrics        *DetectionMetrics
	trustedProxies []*net.IPNet
	logger         *applog.Logger
}

var (
	suspiciousPatterns = []string{
		"../", "..\\", ".env", "wp-admin", "phpmyadmin",
		"admin.php", "config.php", ".git", ".ssh",
		"eval(", "javascript:", "<script", "union select",
		"etc/passwd", "cmd.exe",
	}
	suspiciousAgents = []string{
		"sqlmap", "nmap", "nikto", "gobuster", "dirb",
		"masscan", "zgrab", "scanner",
	}
	blockedMethods = []string{"TRACE", "TRACK", "DEBUG", "CONNECT"}
)

func NewDetector(logger *applog.Logger) *Detector {
	if logger == nil {
		logger = applog.Discard()
	}
	return &Detector{
		metrics: &DetectionMetrics{},
		trustedProxies: []*net.IPNet{
			parseCIDR("127.0.0.0/8"),    // localhost
			parseCIDR("10.0.0.0/8"),     // private networks
			parseCIDR("172.16.0.0/12"),  // private networks
			parseCIDR("192.168.0.0/16"), // private networks
		},
		logger: logger.WithComponent(applog.ComponentSecurity),
	}
}

// parseCIDR is a helper to parse CIDR during initialization
func parseCIDR(cidr string) *net.IPNet {
	_, network, err := net.ParseCIDR(cidr)
	if err != nil {
		panic(fmt.Sprintf("failed to parse trusted proxy CIDR %s: %v", cidr, err))
	}
	return network
}

// DetectSuspiciousRequest returns a short reason when r looks like probing,
// or "" when it looks normal.
func (d *Detector) DetectSuspiciousRequest(r *http.Request) string {
	reason := ""

	path := strings.ToLower(r.URL.Path)
	query := strings.ToLower(r.URL.RawQuery)
	for _, pattern := range suspiciousPatterns {
		if strings.Contains(path, pattern) || strings.Contains(query, pattern) {
			reason = "pattern:" + pattern
			break
		}
	}

	if reason == "" {
		userAgent := strings.ToLower(r.Header.Get("User-Agent"))
		for _, agent := range suspiciousAgents {
			if strings.Contains(userAgent, agent) {
				reason = "agent:" + agent
				break
			}
		}
	}

	if reason == "" && isBlockedMethod(r.Method) {
		reason = "method:" + r.Method
	}

	// Excessively long URLs
	if reason == "" && len(r.URL.String()) > 2048 {
		reason = "long-url"
	}

	// More than 5 proxy hops suggests a forged chain
	if reason == "" && strings.Count(r.Header.Get("X-Forwarded-For"), ",") > 5 {
		reason = "forwarded-chain"
	}

	if reason != "" {
		atomic.AddInt64(&d.metrics.SuspiciousRequests, 1)
	}
	return reason
}

func isBlockedMethod(m string) bool {
	for _, b := range blockedMethods {
		if m == b {
			return true
		}
	}
	return false
}

// Middleware logs suspicious requests and refuses the blocked methods.
func (d *Detector) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if reason := d.DetectSuspiciousRequest(r); reason != "" {
			d.logger.WarnContext(r.Context(), "Suspicious request",
				applog.NewFields().
					WithClientIP(d.ExtractClientIP(r)).
					WithHTTPRequest(r.Method, r.URL.Path, r.URL.RawQuery, r.UserAgent()).
					ToSlice()...,
			)
			if isBlockedMethod(r.Method) {
				atomic.AddInt64(&d.metrics.BlockedRequests, 1)
				http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

// ExtractClientIP extracts the real client IP, validating forwarded headers
func (d *Detector) ExtractClientIP(r *http.Request) string {
	directIP, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		directIP = r.RemoteAddr
	}

	parsedDirectIP := net.ParseIP(directIP)
	if parsedDirectIP == nil {
		return directIP
	}

	// Forwarded headers only count when the peer is a trusted proxy
	if d.isTrustedProxy(parsedDirectIP) {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			first, _, _ := strings.Cut(xff, ",")
			clientIP := strings.TrimSpace(first)
			if net.ParseIP(clientIP) != nil {
				return clientIP
			}
		}

		if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
			if net.ParseIP(xri) != nil {
				return xri
			}
		}
	}

	return directIP
}

func (d *Detector) isTrustedProxy(ip net.IP) bool {
	for _, network := range d.trustedProxies {
		if network.Contains(ip) {
			return true
		}
	}
	return false
}

// GetMetrics returns current security metrics
func (d *Detector) GetMetrics() DetectionMetrics {
	return DetectionMetrics{
		SuspiciousRequests: atomic.LoadInt64(&d.metrics.SuspiciousRequests),
		BlockedRequests:    atomic.LoadInt64(&d.metrics.BlockedRequests),
	}
}

// AddTrustedProxy adds a trusted proxy network
func (d *Detector) AddTrustedProxy(cidr string) error {
	_, network, err := net.ParseCIDR(cidr)
	if err != nil {
		return fmt.Errorf("invalid CIDR %s: %w", cidr, err)
	}

	d.trustedProxies = append(d.trustedProxies, network)
	return nil
}
