package http

import (
	"net/http"
	"slices"
	"strings"
)

// ExtractClientIP extracts the client IP address from the request.
// Checks X-Forwarded-For header first (for proxied requests), then X-Real-IP, finally RemoteAddr.
func ExtractClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if before, _, ok := strings.Cut(xff, ","); ok {
			return strings.TrimSpace(before)
		}
		return strings.TrimSpace(xff)
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}

	if idx := strings.LastIndex(r.RemoteAddr, ":"); idx != -1 {
		return r.RemoteAddr[:idx]
	}
	return r.RemoteAddr
}

// StaticHeaders sets the given headers on every response before the wrapped
// handler runs, so handlers may still override them.
func StaticHeaders(headers map[string]string) func(http.Handler) http.Handler {
	canonical := make(http.Header, len(headers))
	for k, v := range headers {
		canonical.Set(k, v)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			for k, v := range canonical {
				h[k] = slices.Clone(v)
			}
			next.ServeHTTP(w, r)
		})
	}
}
