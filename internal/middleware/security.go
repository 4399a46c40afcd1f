package middleware

import (
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/AnshRaj112/chatooz-backend/pkg/clientip"
)

const (
	headerXContentTypeOptions     = "X-Content-Type-Options"
	headerXFrameOptions           = "X-Frame-Options"
	headerContentSecurityPolicy   = "Content-Security-Policy"
	headerStrictTransportSecurity = "Strict-Transport-Security"
	headerReferrerPolicy          = "Referrer-Policy"
)

// SecurityHeaders sets security-related response headers.
func SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(headerXContentTypeOptions, "nosniff")
		w.Header().Set(headerXFrameOptions, "DENY")
		w.Header().Set(headerContentSecurityPolicy, "default-src 'none'; frame-ancestors 'none'")
		w.Header().Set(headerStrictTransportSecurity, "max-age=31536000; includeSubDomains")
		w.Header().Set(headerReferrerPolicy, "no-referrer")
		next.ServeHTTP(w, r)
	})
}

// HostCheck returns 403 when r.Host does not match allowedHost.
// allowedHost should be the bare hostname without scheme or port.
func HostCheck(allowedHost string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if allowedHost == "" {
				next.ServeHTTP(w, r)
				return
			}
			reqHost := r.Host
			if host, _, err := net.SplitHostPort(reqHost); err == nil {
				reqHost = host
			}
			if !strings.EqualFold(strings.TrimSpace(reqHost), strings.TrimSpace(allowedHost)) {
				w.WriteHeader(http.StatusForbidden)
				w.Write([]byte("Forbidden"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func tooManyRequests(w http.ResponseWriter, limit int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limit))
	w.Header().Set("X-RateLimit-Remaining", "0")
	w.WriteHeader(http.StatusTooManyRequests)
	w.Write([]byte(`{"success":false,"message":"` + message + `"}`))
}

// GlobalRateLimit limits each IP to 1 req/s, burst 10. Returns 429 when exceeded.
func GlobalRateLimit(l *Limits) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := clientip.FromRequest(r, l.TrustProxy)
			if !l.Global.Allow(ip) {
				tooManyRequests(w, l.Global.Burst(), "Too many requests. Please slow down.")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

var authPaths = map[string]bool{
	"/api/auth/signin": true,
	"/api/auth/signup": true,
}

// AuthRateLimit applies a stricter limit to sign-in and sign-up.
func AuthRateLimit(l *Limits) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost || !authPaths[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}
			ip := clientip.FromRequest(r, l.TrustProxy)
			if !l.Auth.Allow(ip) {
				tooManyRequests(w, l.Auth.Burst(), "Too many login attempts. Please try again later.")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ChatHistoryRateLimit applies only to GET /api/chat/history, with a larger
// bucket for requests carrying a bearer token.
func ChatHistoryRateLimit(l *Limits) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet || !strings.HasPrefix(r.URL.Path, "/api/chat/history") {
				next.ServeHTTP(w, r)
				return
			}

			ip := clientip.FromRequest(r, l.TrustProxy)
			limiter := l.Anon
			if hasBearer(r) {
				limiter = l.History
			}
			if !limiter.Allow(ip) {
				tooManyRequests(w, limiter.Burst(), "Too many chat history requests. Please slow down.")
				return
			}
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limiter.Burst()))
			next.ServeHTTP(w, r)
		})
	}
}

func hasBearer(r *http.Request) bool {
	auth := r.Header.Get("Authorization")
	return strings.HasPrefix(auth, "Bearer ") && len(strings.TrimPrefix(auth, "Bearer ")) > 0
}

// ProductionSecurity returns middlewares for production: SecurityHeaders → HostCheck → GlobalRateLimit → AuthRateLimit.
func ProductionSecurity(allowedHost string, l *Limits) []func(http.Handler) http.Handler {
	return []func(http.Handler) http.Handler{
		SecurityHeaders,
		HostCheck(allowedHost),
		GlobalRateLimit(l),
		AuthRateLimit(l),
	}
}
