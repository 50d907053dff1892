package issuer

import (
	"context"
	"sync"
	"time"

	id "attesta/pkg/domain"
	"attesta/pkg/platform/sentinel"
)

// InMemoryStore keeps profiles in a map guarded by an RWMutex.
type InMemoryStore struct {
	mu       sync.RWMutex
	profiles map[id.Identity]*Profile
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{profiles: make(map[id.Identity]*Profile)}
}

func (s *InMemoryStore) Upsert(_ context.Context, profile *Profile) (*Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := *profile
	if existing, ok := s.profiles[profile.Identity]; ok {
		// Re-setup overwrites descriptive fields only. Activity is
		// admin-controlled and survives the overwrite.
		stored.CredentialsIssued = existing.CredentialsIssued
		stored.IsActive = existing.IsActive
		stored.CreatedAt = existing.CreatedAt
	}
	s.profiles[stored.Identity] = &stored
	copied := stored
	return &copied, nil
}

func (s *InMemoryStore) Get(_ context.Context, identity id.Identity) (*Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	profile, ok := s.profiles[identity]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	copied := *profile
	return &copied, nil
}

func (s *InMemoryStore) IncrementIssued(_ context.Context, identity id.Identity, count uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	profile, ok := s.profiles[identity]
	if !ok {
		now := time.Now()
		profile = &Profile{Identity: identity, IsActive: true, CreatedAt: now, UpdatedAt: now}
		s.profiles[identity] = profile
	}
	profile.CredentialsIssued += count
	return nil
}

func (s *InMemoryStore) SetActive(_ context.Context, identity id.Identity, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	profile, ok := s.profiles[identity]
	if !ok {
		return sentinel.ErrNotFound
	}
	profile.IsActive = active
	profile.UpdatedAt = time.Now()
	return nil
}
