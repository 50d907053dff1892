package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"attesta/pkg/requestcontext"
)

// Publisher enriches audit events and hands them to the worker's inbox. The
// send is non-blocking: audit is observability here, not a compliance gate,
// so a full inbox drops the event with a warning instead of stalling the
// mutation that produced it.
type Publisher struct {
	inbox  chan<- Event
	logger *slog.Logger
}

type PublisherOption func(*Publisher)

func WithPublisherLogger(logger *slog.Logger) PublisherOption {
	return func(p *Publisher) {
		p.logger = logger
	}
}

func NewPublisher(inbox chan<- Event, opts ...PublisherOption) *Publisher {
	p := &Publisher{inbox: inbox}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Emit fills in id, timestamp, and client metadata from context, then queues
// the event.
func (p *Publisher) Emit(ctx context.Context, event Event) {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if event.ClientIP == "" {
		event.ClientIP = requestcontext.ClientIP(ctx)
	}
	if event.ClientAgent == "" {
		event.ClientAgent = requestcontext.ClientAgent(ctx)
	}

	select {
	case p.inbox <- event:
	default:
		if p.logger != nil {
			p.logger.WarnContext(ctx, "audit inbox full, dropping event",
				"action", event.Action, "actor", event.Actor)
		}
	}
}
