// Package metadata captures client IP and a normalized user-agent label for
// audit annotation. Applied early in the chain.
package metadata

import (
	"net/http"
	"strings"

	"github.com/mssola/useragent"

	"attesta/pkg/requestcontext"
)

// ClientMetadata extracts the client IP and User-Agent from the request and
// adds them to the context for the audit publisher.
func ClientMetadata(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r)
		agent := normalizeAgent(r.Header.Get("User-Agent"))
		ctx := requestcontext.WithClientMetadata(r.Context(), ip, agent)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// normalizeAgent reduces a raw User-Agent to "browser/version (os)" so audit
// rows stay readable and bounded. Non-browser agents keep their raw value,
// truncated.
func normalizeAgent(raw string) string {
	if raw == "" {
		return ""
	}
	ua := useragent.New(raw)
	name, version := ua.Browser()
	if name != "" {
		label := name + "/" + version
		if os := ua.OS(); os != "" {
			label += " (" + os + ")"
		}
		return label
	}
	if len(raw) > 128 {
		return raw[:128]
	}
	return raw
}

func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		// First entry is the original client.
		if idx := strings.Index(xff, ","); idx != -1 {
			return strings.TrimSpace(xff[:idx])
		}
		return strings.TrimSpace(xff)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	host := r.RemoteAddr
	if idx := strings.LastIndex(host, ":"); idx != -1 {
		host = host[:idx]
	}
	return host
}
