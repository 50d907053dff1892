// Package auth resolves the caller identity from a bearer token and stores it
// in the request context. Authorization (capability checks) happens in the
// services; this middleware only authenticates.
package auth

import (
	"net/http"
	"strings"

	id "attesta/pkg/domain"
	"attesta/pkg/requestcontext"
)

// TokenValidator validates a bearer token and returns the identity it names.
type TokenValidator interface {
	Validate(raw string) (id.Identity, error)
}

// Authenticate extracts an optional bearer token. Requests without a token
// proceed unauthenticated: public reads need no identity, and mutating
// services reject callers with a zero identity themselves.
func Authenticate(validator TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			const prefix = "Bearer "
			if !strings.HasPrefix(header, prefix) {
				next.ServeHTTP(w, r)
				return
			}
			identity, err := validator.Validate(strings.TrimPrefix(header, prefix))
			if err != nil {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"error":"unauthorized"}`))
				return
			}
			ctx := requestcontext.WithCaller(r.Context(), identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
