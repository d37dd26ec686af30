package publisher

import (
	"context"
	"log/slog"
	"sync"
	"time"

	dErrors "github.com/dr-roshyara/public-digit-sub008/pkg/domain-errors"
	"github.com/dr-roshyara/public-digit-sub008/pkg/platform/events"
)

// Publisher delivers lifecycle events to a Store. It defaults to synchronous
// delivery so tests and single-process deployments see events immediately;
// async buffering is opt-in for high-volume batch runs.
type Publisher struct {
	store  events.Store
	buffer chan events.Event
	wg     sync.WaitGroup
	logger *slog.Logger
	async  bool
}

// Option configures the Publisher.
type Option func(*Publisher)

// WithAsyncBuffer enables async processing with the specified buffer size.
// Events are queued and persisted in a background goroutine.
func WithAsyncBuffer(size int) Option {
	return func(p *Publisher) {
		if size > 0 {
			p.buffer = make(chan events.Event, size)
			p.async = true
		}
	}
}

// WithLogger sets a logger for async error reporting.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

func New(store events.Store, opts ...Option) *Publisher {
	p := &Publisher{store: store}
	for _, opt := range opts {
		opt(p)
	}
	if p.async {
		p.wg.Add(1)
		go p.processEvents()
	}
	return p
}

// processEvents runs in a goroutine and persists events from the channel.
func (p *Publisher) processEvents() {
	defer p.wg.Done()
	for event := range p.buffer {
		if err := p.store.Append(context.Background(), event); err != nil {
			if p.logger != nil {
				p.logger.Error("failed to persist lifecycle event",
					"error", err,
					"kind", event.Kind,
					"credential_id", event.CredentialID,
				)
			}
		}
	}
}

// Close shuts down the async publisher and waits for pending events to drain.
func (p *Publisher) Close() {
	if p.async && p.buffer != nil {
		close(p.buffer)
		p.wg.Wait()
	}
}

// Emit publishes a single event. In async mode the send never blocks: a full
// buffer drops the event with an error so a slow sink cannot stall a batch run.
func (p *Publisher) Emit(ctx context.Context, event events.Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if p.async {
		select {
		case p.buffer <- event:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		default:
			if p.logger != nil {
				p.logger.Warn("event buffer full, event dropped",
					"kind", event.Kind,
					"credential_id", event.CredentialID,
				)
			}
			return dErrors.New(dErrors.CodeInternal, "event buffer full")
		}
	}
	return p.store.Append(ctx, event)
}
