//go:build integration

package credential_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"attesta/internal/credential"
	id "attesta/pkg/domain"
	"attesta/pkg/platform/sentinel"
	"attesta/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *credential.PostgresStore
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.postgres = containers.NewPostgresContainer(s.T())
	s.store = credential.NewPostgresStore(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	s.Require().NoError(s.postgres.Truncate(context.Background()))
}

func (s *PostgresStoreSuite) newCredential(recipient id.Identity, credType, payload string) *credential.Credential {
	cred, err := credential.New("did:web:university.example", recipient, credType, payload, "",
		time.Now().UTC().Truncate(time.Microsecond), time.Time{})
	s.Require().NoError(err)
	return cred
}

func (s *PostgresStoreSuite) TestCreateAndGet() {
	ctx := context.Background()

	cred := s.newCredential("did:key:alice", "degree", "payload")
	credID, err := s.store.Create(ctx, cred)
	s.Require().NoError(err)
	s.NotZero(credID)

	found, err := s.store.Get(ctx, credID)
	s.Require().NoError(err)
	s.Equal(credID, found.ID)
	s.Equal(cred.ContentHash, found.ContentHash)
	s.Equal(credential.StatusActive, found.Status)

	_, err = s.store.Get(ctx, id.CredentialID(999999))
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestUniqueContentConstraint() {
	ctx := context.Background()

	_, err := s.store.Create(ctx, s.newCredential("did:key:alice", "degree", "same"))
	s.Require().NoError(err)

	_, err = s.store.Create(ctx, s.newCredential("did:key:alice", "degree", "same"))
	s.Require().ErrorIs(err, sentinel.ErrConflict)
}

func (s *PostgresStoreSuite) TestConcurrentDuplicateCreation() {
	ctx := context.Background()
	const goroutines = 20

	var wg sync.WaitGroup
	var successCount, conflictCount atomic.Int32

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.store.Create(ctx, s.newCredential("did:key:race", "degree", "contested"))
			switch {
			case err == nil:
				successCount.Add(1)
			case errors.Is(err, sentinel.ErrConflict):
				conflictCount.Add(1)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(1), successCount.Load(), "exactly one writer wins")
	s.Equal(int32(goroutines-1), conflictCount.Load())
}

func (s *PostgresStoreSuite) TestCreateBatchAtomicity() {
	ctx := context.Background()

	_, err := s.store.Create(ctx, s.newCredential("did:key:alice", "existing", "payload"))
	s.Require().NoError(err)

	_, err = s.store.CreateBatch(ctx, []*credential.Credential{
		s.newCredential("did:key:alice", "fresh", "payload"),
		s.newCredential("did:key:alice", "existing", "payload"),
	})
	s.Require().ErrorIs(err, sentinel.ErrConflict)

	fresh, err := s.store.ListByType(ctx, "fresh")
	s.Require().NoError(err)
	s.Empty(fresh, "the transaction must have rolled back")
}

func (s *PostgresStoreSuite) TestUpdateLinearizesRevocation() {
	ctx := context.Background()

	credID, err := s.store.Create(ctx, s.newCredential("did:key:alice", "degree", "race-me"))
	s.Require().NoError(err)

	const goroutines = 10
	var wg sync.WaitGroup
	var successCount atomic.Int32

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			reason := fmt.Sprintf("attempt %d", n)
			_, err := s.store.Update(ctx, credID,
				func(c *credential.Credential) error { return c.CanRevoke(reason) },
				func(c *credential.Credential) { c.ApplyRevoke(reason, time.Now().UTC()) },
			)
			if err == nil {
				successCount.Add(1)
			}
		}(i)
	}
	wg.Wait()

	s.Equal(int32(1), successCount.Load(), "revocation is first-writer-wins")

	found, err := s.store.Get(ctx, credID)
	s.Require().NoError(err)
	s.Equal(credential.StatusRevoked, found.Status)
	s.NotEmpty(found.RevocationReason)
}

func (s *PostgresStoreSuite) TestIndexQueries() {
	ctx := context.Background()

	id1, err := s.store.Create(ctx, s.newCredential("did:key:alice", "degree", "a1"))
	s.Require().NoError(err)
	id2, err := s.store.Create(ctx, s.newCredential("did:key:bob", "degree", "b1"))
	s.Require().NoError(err)
	id3, err := s.store.Create(ctx, s.newCredential("did:key:alice", "license", "a2"))
	s.Require().NoError(err)

	byAlice, err := s.store.ListByRecipient(ctx, "did:key:alice")
	s.Require().NoError(err)
	s.Equal([]id.CredentialID{id1, id3}, byAlice)

	byType, err := s.store.ListByType(ctx, "degree")
	s.Require().NoError(err)
	s.Equal([]id.CredentialID{id1, id2}, byType)

	empty, err := s.store.ListByRecipient(ctx, "did:key:nobody")
	s.Require().NoError(err)
	s.Empty(empty)
}
