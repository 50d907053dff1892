package domain

import dErrors "attesta/pkg/domain-errors"

// Capability is a named permission held by an identity. One identity may hold
// any number of capabilities; there is no hierarchy between them. Admin does
// not implicitly include the others except where a service states so.
type Capability string

const (
	// CapabilityIssuer allows creating credentials.
	CapabilityIssuer Capability = "issuer"

	// CapabilityVerifier allows authenticated verification endpoints.
	CapabilityVerifier Capability = "verifier"

	// CapabilityRevoker allows terminal revocation of credentials.
	CapabilityRevoker Capability = "revoker"

	// CapabilityAdmin allows role management, issuer deactivation, and
	// pausing the registry.
	CapabilityAdmin Capability = "admin"
)

// AllCapabilities lists every known capability, used when bootstrapping the
// deploying identity.
func AllCapabilities() []Capability {
	return []Capability{CapabilityIssuer, CapabilityVerifier, CapabilityRevoker, CapabilityAdmin}
}

// ParseCapability validates raw input into a Capability.
func ParseCapability(raw string) (Capability, error) {
	switch Capability(raw) {
	case CapabilityIssuer, CapabilityVerifier, CapabilityRevoker, CapabilityAdmin:
		return Capability(raw), nil
	}
	return "", dErrors.Newf(dErrors.CodeInvalidInput, "unknown capability: %q", raw)
}

func (c Capability) String() string {
	return string(c)
}
