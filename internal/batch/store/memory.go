// Package store persists batch operation records. The memory implementation
// backs tests and single-node deployments; Postgres is the durable pair.
package store

import (
	"context"
	"sync"

	"github.com/dr-roshyara/public-digit-sub008/internal/batch/models"
	"github.com/dr-roshyara/public-digit-sub008/internal/sentinel"
	id "github.com/dr-roshyara/public-digit-sub008/pkg/domain"
)

// InMemory is a thread-safe in-memory batch store.
type InMemory struct {
	mu      sync.RWMutex
	batches map[id.BatchID]*models.BatchOperation
}

// NewInMemory creates an empty in-memory batch store.
func NewInMemory() *InMemory {
	return &InMemory{batches: make(map[id.BatchID]*models.BatchOperation)}
}

// Create stores a new batch record.
func (s *InMemory) Create(_ context.Context, b *models.BatchOperation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.batches[b.ID]; exists {
		return sentinel.ErrConflict
	}
	s.batches[b.ID] = copyBatch(b)
	return nil
}

// FindByID returns a copy of the batch record.
func (s *InMemory) FindByID(_ context.Context, batchID id.BatchID) (*models.BatchOperation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.batches[batchID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return copyBatch(b), nil
}

// Transition moves the batch status from an expected source state to a new
// one. A stale source state yields ErrInvalidState, so concurrent Run and
// Cancel calls settle on exactly one winner.
func (s *InMemory) Transition(_ context.Context, batchID id.BatchID, from, to models.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.batches[batchID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if b.Status != from {
		return sentinel.ErrInvalidState
	}
	b.Status = to
	return nil
}

// Save replaces the stored record with the given snapshot. Used by the
// orchestrator to persist final counts and failure detail.
func (s *InMemory) Save(_ context.Context, b *models.BatchOperation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.batches[b.ID]; !ok {
		return sentinel.ErrNotFound
	}
	s.batches[b.ID] = copyBatch(b)
	return nil
}

func copyBatch(b *models.BatchOperation) *models.BatchOperation {
	out := *b
	out.Targets = append([]id.MemberID(nil), b.Targets...)
	out.Failures = append([]models.FailureEntry(nil), b.Failures...)
	if b.CompletedAt != nil {
		t := *b.CompletedAt
		out.CompletedAt = &t
	}
	return &out
}
