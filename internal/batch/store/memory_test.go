package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/dr-roshyara/public-digit-sub008/internal/batch/models"
	"github.com/dr-roshyara/public-digit-sub008/internal/sentinel"
	id "github.com/dr-roshyara/public-digit-sub008/pkg/domain"
)

func newBatch(t *testing.T) *models.BatchOperation {
	t.Helper()
	b, err := models.NewBatch(
		id.TenantID(uuid.New()),
		models.KindIssue,
		[]id.MemberID{id.MemberID(uuid.New()), id.MemberID(uuid.New())},
		models.PolicyContinueOnError,
		"", false,
		id.AdminID(uuid.New()),
		time.Now(),
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return b
}

func TestCreateAndFind(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()
	b := newBatch(t)

	if err := s.Create(ctx, b); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, err := s.FindByID(ctx, b.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Status != models.StatusPending || len(got.Targets) != 2 {
		t.Fatalf("unexpected record: %+v", got)
	}

	if _, err := s.FindByID(ctx, id.BatchID(uuid.New())); !errors.Is(err, sentinel.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestTransitionCAS(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()
	b := newBatch(t)
	if err := s.Create(ctx, b); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := s.Transition(ctx, b.ID, models.StatusPending, models.StatusRunning); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Second claimant loses the compare-and-set.
	err := s.Transition(ctx, b.ID, models.StatusPending, models.StatusRunning)
	if !errors.Is(err, sentinel.ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState, got %v", err)
	}
}

func TestSavePersistsCounts(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()
	b := newBatch(t)
	if err := s.Create(ctx, b); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	b.Counts.Succeeded = 2
	b.Finalize(false, time.Now())
	if err := s.Save(ctx, b); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := s.FindByID(ctx, b.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Status != models.StatusCompleted || got.Counts.Succeeded != 2 || got.CompletedAt == nil {
		t.Fatalf("saved snapshot not persisted: %+v", got)
	}
}

func TestCopySemantics(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()
	b := newBatch(t)
	if err := s.Create(ctx, b); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, _ := s.FindByID(ctx, b.ID)
	got.Status = models.StatusFailed
	got.Targets[0] = id.MemberID(uuid.New())

	fresh, _ := s.FindByID(ctx, b.ID)
	if fresh.Status != models.StatusPending || fresh.Targets[0] != b.Targets[0] {
		t.Fatal("store must not expose internal state to mutation")
	}
}
