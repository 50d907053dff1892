package credential

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"time"

	id "attesta/pkg/domain"
	dErrors "attesta/pkg/domain-errors"
)

// Status is the stored lifecycle state of a credential.
//
// Expiry is not a stored transition: a credential past its ExpiresAt is
// treated as invalid by every validity check regardless of Status. The
// StatusExpired constant exists for reporting and for stores that receive
// historical data; the registry never writes it during normal operation.
type Status string

const (
	StatusActive    Status = "active"
	StatusRevoked   Status = "revoked"
	StatusSuspended Status = "suspended"
	StatusExpired   Status = "expired"
)

// ParseStatus validates raw input into a Status.
func ParseStatus(raw string) (Status, error) {
	switch Status(raw) {
	case StatusActive, StatusRevoked, StatusSuspended, StatusExpired:
		return Status(raw), nil
	}
	return "", dErrors.Newf(dErrors.CodeInvalidInput, "unknown credential status: %q", raw)
}

const (
	maxTypeLen    = 128
	maxPayloadLen = 64 * 1024
	maxReasonLen  = 512
)

// Credential is the central ledger record.
//
// Invariants:
//   - ID is assigned by the store, positive, never reused
//   - Issuer, Recipient, Type, Payload, IssuedAt, ContentHash are immutable
//     after creation; only Status, RevocationReason, and UpdatedAt mutate
//   - ContentHash is unique across all ever-issued credentials
//   - StatusRevoked is terminal: no transition leaves it
type Credential struct {
	ID               id.CredentialID `json:"id"`
	Issuer           id.Identity     `json:"issuer"`
	Recipient        id.Identity     `json:"recipient"`
	Type             string          `json:"type"`
	Payload          string          `json:"payload"`
	MetadataURI      string          `json:"metadata_uri,omitempty"`
	IssuedAt         time.Time       `json:"issued_at"`
	ExpiresAt        time.Time       `json:"expires_at,omitzero"`
	Status           Status          `json:"status"`
	ContentHash      string          `json:"content_hash"`
	RevocationReason string          `json:"revocation_reason,omitempty"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// New validates the immutable core fields and returns an unsaved credential
// in StatusActive. The store assigns ID on create.
func New(issuer, recipient id.Identity, credentialType, payload, metadataURI string, issuedAt, expiresAt time.Time) (*Credential, error) {
	if issuer.IsZero() {
		return nil, dErrors.New(dErrors.CodeValidation, "issuer must not be empty")
	}
	if recipient.IsZero() {
		return nil, dErrors.New(dErrors.CodeValidation, "recipient must not be empty")
	}
	if credentialType == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "credential type must not be empty")
	}
	if len(credentialType) > maxTypeLen {
		return nil, dErrors.New(dErrors.CodeValidation, "credential type must be 128 characters or less")
	}
	if payload == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "payload must not be empty")
	}
	if len(payload) > maxPayloadLen {
		return nil, dErrors.New(dErrors.CodeValidation, "payload exceeds 64KiB")
	}
	if !expiresAt.IsZero() && !expiresAt.After(issuedAt) {
		return nil, dErrors.New(dErrors.CodeValidation, "expiration must be in the future")
	}
	return &Credential{
		Issuer:      issuer,
		Recipient:   recipient,
		Type:        credentialType,
		Payload:     payload,
		MetadataURI: metadataURI,
		IssuedAt:    issuedAt,
		ExpiresAt:   expiresAt,
		Status:      StatusActive,
		ContentHash: ContentHash(recipient, credentialType, payload),
		UpdatedAt:   issuedAt,
	}, nil
}

// ContentHash derives the duplicate-detection digest from the fields that
// define a credential's content. Fields are length-prefixed before hashing so
// no concatenation of two inputs can collide with a different split of the
// same bytes. This is duplicate detection, not an authorship proof.
func ContentHash(recipient id.Identity, credentialType, payload string) string {
	h := sha256.New()
	for _, field := range []string{recipient.String(), credentialType, payload} {
		var n [8]byte
		binary.BigEndian.PutUint64(n[:], uint64(len(field)))
		h.Write(n[:])
		h.Write([]byte(field))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// IsExpiredAt reports whether the credential is past its expiry at the given
// instant. Credentials without an expiry never expire.
func (c *Credential) IsExpiredAt(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && !now.Before(c.ExpiresAt)
}

// IsValidAt reports whether the credential passes a validity check at the
// given instant: stored status Active and not past expiry.
func (c *Credential) IsValidAt(now time.Time) bool {
	return c.Status == StatusActive && !c.IsExpiredAt(now)
}

// CanRevoke checks whether revocation is permitted. Revocation is terminal,
// so a second revoke fails rather than silently overwriting the reason.
func (c *Credential) CanRevoke(reason string) error {
	if c.Status == StatusRevoked {
		return dErrors.New(dErrors.CodeConflict, "credential is already revoked")
	}
	if reason == "" {
		return dErrors.New(dErrors.CodeValidation, "revocation reason must not be empty")
	}
	if len(reason) > maxReasonLen {
		return dErrors.New(dErrors.CodeValidation, "revocation reason must be 512 characters or less")
	}
	return nil
}

// ApplyRevoke transitions the credential to StatusRevoked. Call CanRevoke
// first; stores use the pair inside their update critical section.
func (c *Credential) ApplyRevoke(reason string, now time.Time) {
	c.Status = StatusRevoked
	c.RevocationReason = reason
	c.UpdatedAt = now
}

// CanSetStatus checks an explicit status update. Only Active and Suspended
// are reachable this way: Revoked requires the revoke operation so a reason
// is always captured, and Expired is derived from ExpiresAt, never set.
func (c *Credential) CanSetStatus(next Status) error {
	switch next {
	case StatusActive, StatusSuspended:
	case StatusRevoked:
		return dErrors.New(dErrors.CodeValidation, "use revoke to revoke a credential")
	case StatusExpired:
		return dErrors.New(dErrors.CodeValidation, "expired status is derived from the expiration date")
	default:
		return dErrors.Newf(dErrors.CodeInvalidInput, "unknown credential status: %q", next)
	}
	if c.Status == StatusRevoked {
		return dErrors.New(dErrors.CodeInvariantViolation, "revoked credentials cannot change status")
	}
	return nil
}

// ApplyStatus transitions the credential to next. Call CanSetStatus first.
func (c *Credential) ApplyStatus(next Status, now time.Time) {
	c.Status = next
	c.UpdatedAt = now
}
