package roles

import (
	"context"
	"sync"

	id "attesta/pkg/domain"
)

type grantKey struct {
	identity   id.Identity
	capability id.Capability
}

// InMemoryStore keeps the grant relation in a map guarded by an RWMutex.
type InMemoryStore struct {
	mu     sync.RWMutex
	grants map[grantKey]Grant
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{grants: make(map[grantKey]Grant)}
}

func (s *InMemoryStore) Add(_ context.Context, grant Grant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := grantKey{identity: grant.Identity, capability: grant.Capability}
	if _, ok := s.grants[key]; ok {
		return nil
	}
	s.grants[key] = grant
	return nil
}

func (s *InMemoryStore) Remove(_ context.Context, identity id.Identity, capability id.Capability) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.grants, grantKey{identity: identity, capability: capability})
	return nil
}

func (s *InMemoryStore) Has(_ context.Context, identity id.Identity, capability id.Capability) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.grants[grantKey{identity: identity, capability: capability}]
	return ok, nil
}

func (s *InMemoryStore) ListByIdentity(_ context.Context, identity id.Identity) ([]Grant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var grants []Grant
	for key, grant := range s.grants {
		if key.identity == identity {
			grants = append(grants, grant)
		}
	}
	return grants, nil
}
