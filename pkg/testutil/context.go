package testutil

import (
	"net/http"

	id "attesta/pkg/domain"
	"attesta/pkg/requestcontext"
)

// WithCaller attaches an authenticated identity to the request context,
// simulating what the auth middleware does for a valid bearer token. Invalid
// identities are silently ignored so the request proceeds unauthenticated.
func WithCaller(req *http.Request, identity string) *http.Request {
	parsed, err := id.ParseIdentity(identity)
	if err != nil {
		return req
	}
	return req.WithContext(requestcontext.WithCaller(req.Context(), parsed))
}
