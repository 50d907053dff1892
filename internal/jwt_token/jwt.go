// Package jwttoken mints and validates the HMAC bearer tokens that carry a
// caller's identity to the HTTP layer. The token proves nothing beyond "this
// caller presented a secret-signed identity claim"; capabilities are always
// re-checked against the role store per request.
package jwttoken

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	id "attesta/pkg/domain"
	dErrors "attesta/pkg/domain-errors"
)

// Manager signs and validates principal tokens with a shared HMAC key.
type Manager struct {
	signingKey []byte
	ttl        time.Duration
}

func NewManager(signingKey string, ttl time.Duration) *Manager {
	return &Manager{signingKey: []byte(signingKey), ttl: ttl}
}

type claims struct {
	jwt.RegisteredClaims
}

// Mint returns a signed token whose subject is the identity.
func (m *Manager) Mint(identity id.Identity) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identity.String(),
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
			Issuer:    "attesta",
		},
	})
	signed, err := token.SignedString(m.signingKey)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Validate parses the token and returns the identity it names.
func (m *Manager) Validate(raw string) (id.Identity, error) {
	parsed, err := jwt.ParseWithClaims(raw, &claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return m.signingKey, nil
	})
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeUnauthorized, "invalid token")
	}
	tokenClaims, ok := parsed.Claims.(*claims)
	if !ok || !parsed.Valid {
		return "", dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}
	identity, err := id.ParseIdentity(tokenClaims.Subject)
	if err != nil {
		return "", dErrors.New(dErrors.CodeUnauthorized, "token subject is not a valid identity")
	}
	return identity, nil
}
