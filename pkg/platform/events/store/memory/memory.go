// Package memory provides an in-memory event store for tests and the demo
// environment.
package memory

import (
	"context"
	"sync"

	"github.com/dr-roshyara/public-digit-sub008/pkg/platform/events"
)

// Store buffers appended events in order.
type Store struct {
	mu     sync.Mutex
	events []events.Event
}

func New() *Store {
	return &Store{}
}

// Append records the event.
func (s *Store) Append(_ context.Context, event events.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

// Events returns a copy of all recorded events in append order.
func (s *Store) Events() []events.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]events.Event, len(s.events))
	copy(out, s.events)
	return out
}

// ByKind returns recorded events matching the given kind.
func (s *Store) ByKind(kind events.Kind) []events.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []events.Event
	for _, e := range s.events {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}
