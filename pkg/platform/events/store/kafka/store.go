// Package kafka publishes lifecycle events to a Kafka topic so notification,
// audit, and real-time-sync consumers can subscribe independently.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dr-roshyara/public-digit-sub008/internal/platform/kafka/producer"
	"github.com/dr-roshyara/public-digit-sub008/pkg/platform/events"
)

// DefaultTopic is where lifecycle events are published.
const DefaultTopic = "card.lifecycle.events"

// Producer is the subset of the Kafka producer the store needs.
type Producer interface {
	Produce(ctx context.Context, msg *producer.Message) error
}

// Store implements events.Store by publishing JSON-encoded events.
// Delivery is at-least-once: the producer retries internally and a consumer
// may observe duplicates, so consumers key idempotency on (credential ID, kind).
type Store struct {
	producer Producer
	topic    string
}

// Option configures the Store.
type Option func(*Store)

// WithTopic overrides the destination topic.
func WithTopic(topic string) Option {
	return func(s *Store) {
		s.topic = topic
	}
}

func New(p Producer, opts ...Option) *Store {
	s := &Store{producer: p, topic: DefaultTopic}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Append publishes the event. Events are keyed by credential ID (falling back
// to batch ID for batch-level events) so per-credential ordering is preserved
// within a partition.
func (s *Store) Append(ctx context.Context, event events.Event) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode lifecycle event: %w", err)
	}

	key := event.CredentialID.String()
	if event.CredentialID.IsNil() {
		key = event.BatchID.String()
	}

	return s.producer.Produce(ctx, &producer.Message{
		Topic: s.topic,
		Key:   []byte(key),
		Value: value,
		Headers: map[string]string{
			"kind":      string(event.Kind),
			"tenant_id": event.TenantID.String(),
		},
	})
}
