package credential

import (
	"context"
	"sync"

	id "attesta/pkg/domain"
	"attesta/pkg/platform/sentinel"
)

// InMemoryStore keeps the ledger in maps guarded by a single RWMutex. The
// write lock makes every mutation atomic with respect to its index updates
// and linearizes updates on the same id. Reads work on copies so callers can
// never mutate stored state.
type InMemoryStore struct {
	mu          sync.RWMutex
	nextID      id.CredentialID
	byID        map[id.CredentialID]*Credential
	byHash      map[string]id.CredentialID
	byRecipient map[id.Identity][]id.CredentialID
	byIssuer    map[id.Identity][]id.CredentialID
	byType      map[string][]id.CredentialID
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		byID:        make(map[id.CredentialID]*Credential),
		byHash:      make(map[string]id.CredentialID),
		byRecipient: make(map[id.Identity][]id.CredentialID),
		byIssuer:    make(map[id.Identity][]id.CredentialID),
		byType:      make(map[string][]id.CredentialID),
	}
}

func (s *InMemoryStore) Create(_ context.Context, cred *Credential) (id.CredentialID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createLocked(cred)
}

func (s *InMemoryStore) CreateBatch(_ context.Context, creds []*Credential) ([]id.CredentialID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Reject the whole batch before writing anything: duplicates against the
	// ledger and duplicates within the batch itself.
	seen := make(map[string]struct{}, len(creds))
	for _, cred := range creds {
		if _, ok := s.byHash[cred.ContentHash]; ok {
			return nil, sentinel.ErrConflict
		}
		if _, ok := seen[cred.ContentHash]; ok {
			return nil, sentinel.ErrConflict
		}
		seen[cred.ContentHash] = struct{}{}
	}

	ids := make([]id.CredentialID, 0, len(creds))
	for _, cred := range creds {
		credID, err := s.createLocked(cred)
		if err != nil {
			return nil, err
		}
		ids = append(ids, credID)
	}
	return ids, nil
}

func (s *InMemoryStore) createLocked(cred *Credential) (id.CredentialID, error) {
	if _, ok := s.byHash[cred.ContentHash]; ok {
		return 0, sentinel.ErrConflict
	}
	s.nextID++
	stored := *cred
	stored.ID = s.nextID

	s.byID[stored.ID] = &stored
	s.byHash[stored.ContentHash] = stored.ID
	s.byRecipient[stored.Recipient] = append(s.byRecipient[stored.Recipient], stored.ID)
	s.byIssuer[stored.Issuer] = append(s.byIssuer[stored.Issuer], stored.ID)
	s.byType[stored.Type] = append(s.byType[stored.Type], stored.ID)
	return stored.ID, nil
}

func (s *InMemoryStore) Get(_ context.Context, credID id.CredentialID) (*Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cred, ok := s.byID[credID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	copied := *cred
	return &copied, nil
}

func (s *InMemoryStore) Update(_ context.Context, credID id.CredentialID, validate func(*Credential) error, apply func(*Credential)) (*Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cred, ok := s.byID[credID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	if err := validate(cred); err != nil {
		copied := *cred
		return &copied, err
	}
	apply(cred)
	copied := *cred
	return &copied, nil
}

func (s *InMemoryStore) FindIDByContentHash(_ context.Context, contentHash string) (id.CredentialID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	credID, ok := s.byHash[contentHash]
	if !ok {
		return 0, sentinel.ErrNotFound
	}
	return credID, nil
}

func (s *InMemoryStore) ListByRecipient(_ context.Context, recipient id.Identity) ([]id.CredentialID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]id.CredentialID{}, s.byRecipient[recipient]...), nil
}

func (s *InMemoryStore) ListByIssuer(_ context.Context, issuer id.Identity) ([]id.CredentialID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]id.CredentialID{}, s.byIssuer[issuer]...), nil
}

func (s *InMemoryStore) ListByType(_ context.Context, credentialType string) ([]id.CredentialID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]id.CredentialID{}, s.byType[credentialType]...), nil
}
