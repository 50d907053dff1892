package issuer

import (
	"time"

	id "attesta/pkg/domain"
	dErrors "attesta/pkg/domain-errors"
)

const (
	maxNameLen        = 128
	maxDescriptionLen = 1024
	maxLinkLen        = 512
)

// Profile is the per-issuer metadata record.
//
// Invariants:
//   - Name is non-empty and at most 128 characters once the profile has been
//     set up explicitly (counter-only records created by the issuance path
//     may carry an empty name until setup)
//   - CredentialsIssued is monotonic: incremented exactly once per successful
//     issuance by this issuer, never decremented, preserved across profile
//     re-setup
//   - Deactivation does not retroactively invalidate issued credentials at
//     the store level; the verifier facade decides how issuer activity
//     affects verification
type Profile struct {
	Identity          id.Identity `json:"identity"`
	Name              string      `json:"name"`
	Description       string      `json:"description,omitempty"`
	Website           string      `json:"website,omitempty"`
	Contact           string      `json:"contact,omitempty"`
	IsActive          bool        `json:"is_active"`
	CredentialsIssued uint64      `json:"credentials_issued"`
	CreatedAt         time.Time   `json:"created_at"`
	UpdatedAt         time.Time   `json:"updated_at"`
}

// NewProfile validates descriptive fields for an explicit profile setup.
func NewProfile(identity id.Identity, name, description, website, contact string, now time.Time) (*Profile, error) {
	if identity.IsZero() {
		return nil, dErrors.New(dErrors.CodeValidation, "issuer identity must not be empty")
	}
	if name == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "issuer name must not be empty")
	}
	if len(name) > maxNameLen {
		return nil, dErrors.New(dErrors.CodeValidation, "issuer name must be 128 characters or less")
	}
	if len(description) > maxDescriptionLen {
		return nil, dErrors.New(dErrors.CodeValidation, "issuer description must be 1024 characters or less")
	}
	if len(website) > maxLinkLen || len(contact) > maxLinkLen {
		return nil, dErrors.New(dErrors.CodeValidation, "issuer links must be 512 characters or less")
	}
	return &Profile{
		Identity:    identity,
		Name:        name,
		Description: description,
		Website:     website,
		Contact:     contact,
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}
