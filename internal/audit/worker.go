package audit

import (
	"context"
	"log/slog"
)

// Sink receives events after they are persisted to the store of record.
// The Kafka producer implements this; tests use channel-backed fakes.
type Sink interface {
	Publish(ctx context.Context, event Event) error
}

// Worker consumes audit events from the inbox and persists them, forwarding
// to the optional sink afterwards. Persistence failures are logged, not
// propagated: by the time an event reaches the worker the mutation that
// produced it has already committed.
type Worker struct {
	store  Store
	inbox  <-chan Event
	sink   Sink
	logger *slog.Logger
}

type WorkerOption func(*Worker)

func WithSink(sink Sink) WorkerOption {
	return func(w *Worker) {
		w.sink = sink
	}
}

func WithWorkerLogger(logger *slog.Logger) WorkerOption {
	return func(w *Worker) {
		w.logger = logger
	}
}

func NewWorker(store Store, inbox <-chan Event, opts ...WorkerOption) *Worker {
	w := &Worker{store: store, inbox: inbox}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run processes the inbox until ctx is cancelled. Events still queued at
// cancellation are drained before returning so shutdown loses nothing.
func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			w.drain()
			return ctx.Err()
		case event := <-w.inbox:
			w.handle(ctx, event)
		}
	}
}

func (w *Worker) drain() {
	// Detached context: the run context is already cancelled.
	ctx := context.Background()
	for {
		select {
		case event := <-w.inbox:
			w.handle(ctx, event)
		default:
			return
		}
	}
}

func (w *Worker) handle(ctx context.Context, event Event) {
	if err := w.store.Append(ctx, event); err != nil {
		if w.logger != nil {
			w.logger.ErrorContext(ctx, "audit append failed", "action", event.Action, "error", err)
		}
		return
	}
	if w.sink == nil {
		return
	}
	if err := w.sink.Publish(ctx, event); err != nil {
		if w.logger != nil {
			w.logger.ErrorContext(ctx, "audit sink publish failed", "action", event.Action, "error", err)
		}
	}
}
