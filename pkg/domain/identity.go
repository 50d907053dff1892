// Package domain holds the typed identifiers shared across the registry.
//
// Identifiers are parsed, never cast, at trust boundaries so invalid values
// cannot travel into services or stores.
package domain

import (
	"strconv"
	"strings"
	"unicode"

	dErrors "attesta/pkg/domain-errors"
)

// Identity names a principal or credential subject. It is opaque to the
// registry: a DID, an account address, or any stable external identifier.
//
// Invariants:
//   - non-empty after trimming
//   - at most 256 characters
//   - no whitespace or control characters
type Identity string

const maxIdentityLen = 256

// ParseIdentity validates raw input into an Identity.
func ParseIdentity(raw string) (Identity, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "identity must not be empty")
	}
	if len(trimmed) > maxIdentityLen {
		return "", dErrors.New(dErrors.CodeInvalidInput, "identity exceeds 256 characters")
	}
	for _, r := range trimmed {
		if unicode.IsSpace(r) || unicode.IsControl(r) {
			return "", dErrors.New(dErrors.CodeInvalidInput, "identity contains whitespace or control characters")
		}
	}
	return Identity(trimmed), nil
}

func (i Identity) String() string {
	return string(i)
}

func (i Identity) IsZero() bool {
	return i == ""
}

// CredentialID is the monotonically assigned primary key of a credential.
// Zero is never a valid id; ids are assigned by the store and never reused.
type CredentialID uint64

// ParseCredentialID validates a decimal string (typically a URL parameter)
// into a CredentialID.
func ParseCredentialID(raw string) (CredentialID, error) {
	n, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInvalidInput, "credential id must be a positive integer")
	}
	if n == 0 {
		return 0, dErrors.New(dErrors.CodeInvalidInput, "credential id must be a positive integer")
	}
	return CredentialID(n), nil
}

func (id CredentialID) IsZero() bool {
	return id == 0
}

func (id CredentialID) String() string {
	return strconv.FormatUint(uint64(id), 10)
}
