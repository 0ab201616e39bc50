// Package middleware provides HTTP middleware for the yachtvault server
package middleware

import (
	"net/http"
	"net/url"
	"strings"
)

const (
	corsAllowMethods = "GET, POST, PUT, DELETE, OPTIONS"
	corsAllowHeaders = "Content-Type, Authorization"
	corsMaxAge       = "86400" // 24 hours
)

// CORSMiddleware handles Cross-Origin Resource Sharing for API paths.
type CORSMiddleware struct {
	exact    map[string]bool
	suffixes []string
	prefix   string
}

// NewCORSMiddleware creates a CORS middleware applying to paths under
// pathPrefix. Entries are exact origins ("https://app.example.com") or
// wildcard hosts ("*.example.com") matching any https subdomain.
func NewCORSMiddleware(allowedOrigins []string, pathPrefix string) *CORSMiddleware {
	m := &CORSMiddleware{exact: make(map[string]bool), prefix: pathPrefix}
	for _, origin := range allowedOrigins {
		origin = strings.TrimRight(strings.TrimSpace(origin), "/")
		switch {
		case origin == "":
		case strings.HasPrefix(origin, "*."):
			m.suffixes = append(m.suffixes, strings.ToLower(origin[1:]))
		default:
			m.exact[strings.ToLower(origin)] = true
		}
	}
	return m
}

// Handler returns the CORS middleware handler
func (m *CORSMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, m.prefix) {
			next.ServeHTTP(w, r)
			return
		}

		origin := r.Header.Get("Origin")
		h := w.Header()
		h.Add("Vary", "Origin")
		if origin != "" && m.Allowed(origin) {
			h.Set("Access-Control-Allow-Origin", origin)
		}

		if r.Method == http.MethodOptions {
			h.Set("Access-Control-Allow-Methods", corsAllowMethods)
			h.Set("Access-Control-Allow-Headers", corsAllowHeaders)
			h.Set("Access-Control-Max-Age", corsMaxAge)
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// Allowed reports whether origin is on the allow-list.
func (m *CORSMiddleware) Allowed(origin string) bool {
	origin = strings.ToLower(strings.TrimRight(origin, "/"))
	if m.exact[origin] {
		return true
	}
	if len(m.suffixes) == 0 {
		return false
	}
	u, err := url.Parse(origin)
	if err != nil || u.Scheme != "https" || u.Host == "" {
		return false
	}
	for _, suffix := range m.suffixes {
		if strings.HasSuffix(u.Host, suffix) && len(u.Host) > len(suffix) {
			return true
		}
	}
	return false
}
