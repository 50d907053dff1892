package roles

import (
	"time"

	id "attesta/pkg/domain"
)

// Grant is the (identity, capability) relation. Many-to-many: an identity may
// hold several capabilities and a capability is held by many identities.
type Grant struct {
	Identity   id.Identity   `json:"identity"`
	Capability id.Capability `json:"capability"`
	GrantedBy  id.Identity   `json:"granted_by"`
	GrantedAt  time.Time     `json:"granted_at"`
}
