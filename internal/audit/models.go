package audit

import (
	"time"

	"github.com/google/uuid"

	id "attesta/pkg/domain"
)

// Action names an auditable registry mutation.
type Action string

const (
	ActionCredentialIssued      Action = "credential.issued"
	ActionCredentialRevoked     Action = "credential.revoked"
	ActionCredentialStatusSet   Action = "credential.status_set"
	ActionRoleGranted           Action = "role.granted"
	ActionRoleRevoked           Action = "role.revoked"
	ActionIssuerProfileUpdated  Action = "issuer.profile_updated"
	ActionIssuerActivityChanged Action = "issuer.activity_changed"
	ActionRegistryPaused        Action = "registry.paused"
	ActionRegistryResumed       Action = "registry.resumed"
)

// Event is one audit record. Subject is the affected identity for role and
// issuer events; CredentialID is set for credential events. ClientIP and
// ClientAgent come from request metadata when the mutation arrived over HTTP.
type Event struct {
	ID           uuid.UUID       `json:"id"`
	Action       Action          `json:"action"`
	Actor        id.Identity     `json:"actor"`
	Subject      id.Identity     `json:"subject,omitempty"`
	CredentialID id.CredentialID `json:"credential_id,omitempty"`
	Detail       string          `json:"detail,omitempty"`
	ClientIP     string          `json:"client_ip,omitempty"`
	ClientAgent  string          `json:"client_agent,omitempty"`
	Timestamp    time.Time       `json:"timestamp"`
}
