package audit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "attesta/pkg/domain"
	"attesta/pkg/requestcontext"
)

// channelSink records published events; failing toggles publish errors.
type channelSink struct {
	mu        sync.Mutex
	published []Event
	failing   bool
}

func (c *channelSink) Publish(_ context.Context, event Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failing {
		return errors.New("broker unreachable")
	}
	c.published = append(c.published, event)
	return nil
}

func (c *channelSink) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.published)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestWorkerPersistsAndForwards(t *testing.T) {
	store := NewInMemoryStore()
	sink := &channelSink{}
	inbox := make(chan Event, 16)
	worker := NewWorker(store, inbox, WithSink(sink))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = worker.Run(ctx)
	}()

	publisher := NewPublisher(inbox)
	publisher.Emit(ctx, Event{Action: ActionCredentialIssued, Actor: "did:web:issuer", CredentialID: 1})
	publisher.Emit(ctx, Event{Action: ActionCredentialRevoked, Actor: "did:web:revoker", CredentialID: 1})

	waitFor(t, func() bool { return len(store.All()) == 2 && sink.count() == 2 })

	events := store.All()
	assert.Equal(t, ActionCredentialIssued, events[0].Action)
	assert.Equal(t, ActionCredentialRevoked, events[1].Action)
	assert.NotZero(t, events[0].ID, "publisher assigns event ids")
	assert.False(t, events[0].Timestamp.IsZero(), "publisher stamps events")

	cancel()
	<-done
}

func TestWorkerDrainsOnShutdown(t *testing.T) {
	store := NewInMemoryStore()
	inbox := make(chan Event, 16)
	worker := NewWorker(store, inbox)

	// Queue events before the worker ever runs, then cancel immediately:
	// everything queued must still be persisted.
	publisher := NewPublisher(inbox)
	for i := 0; i < 5; i++ {
		publisher.Emit(context.Background(), Event{Action: ActionCredentialIssued, Actor: "did:web:issuer"})
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := worker.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)

	assert.Len(t, store.All(), 5)
}

func TestWorkerToleratesSinkFailure(t *testing.T) {
	store := NewInMemoryStore()
	sink := &channelSink{failing: true}
	inbox := make(chan Event, 16)
	worker := NewWorker(store, inbox, WithSink(sink))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = worker.Run(ctx)
	}()

	NewPublisher(inbox).Emit(ctx, Event{Action: ActionRegistryPaused, Actor: "did:web:admin"})

	// The store of record still gets the event.
	waitFor(t, func() bool { return len(store.All()) == 1 })

	cancel()
	<-done
}

func TestPublisherDropsWhenFull(t *testing.T) {
	inbox := make(chan Event, 1)
	publisher := NewPublisher(inbox)

	publisher.Emit(context.Background(), Event{Action: ActionCredentialIssued})
	// Inbox is full; this must not block.
	publisher.Emit(context.Background(), Event{Action: ActionCredentialIssued})

	assert.Len(t, inbox, 1)
}

func TestPublisherEnrichesFromContext(t *testing.T) {
	inbox := make(chan Event, 1)
	publisher := NewPublisher(inbox)

	ctx := requestcontext.WithClientMetadata(context.Background(), "203.0.113.7", "cli/1.0")
	publisher.Emit(ctx, Event{Action: ActionRoleGranted, Actor: id.Identity("did:web:admin")})

	event := <-inbox
	assert.Equal(t, "203.0.113.7", event.ClientIP)
	assert.Equal(t, "cli/1.0", event.ClientAgent)
	assert.NotZero(t, event.ID)
}
