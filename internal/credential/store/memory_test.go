package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/dr-roshyara/public-digit-sub008/internal/credential/models"
	"github.com/dr-roshyara/public-digit-sub008/internal/sentinel"
	id "github.com/dr-roshyara/public-digit-sub008/pkg/domain"
)

func issued(t *testing.T, tenantID id.TenantID, memberID id.MemberID) *models.Credential {
	t.Helper()
	c, err := models.NewCredential(
		id.CredentialID(uuid.New()), tenantID, memberID,
		id.AdminID(uuid.New()), nil, time.Now(),
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return c
}

func TestTryActivateWinnerAndConflict(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()
	tenantID := id.TenantID(uuid.New())
	memberID := id.MemberID(uuid.New())

	c1 := issued(t, tenantID, memberID)
	c2 := issued(t, tenantID, memberID)
	for _, c := range []*models.Credential{c1, c2} {
		if err := s.Create(ctx, c); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	admin := id.AdminID(uuid.New())
	activated, err := s.TryActivate(ctx, tenantID, c1.ID, admin, time.Now())
	if err != nil {
		t.Fatalf("first activation should win: %v", err)
	}
	if activated.Status != models.StatusActive || activated.ActivatedAt == nil {
		t.Fatalf("activation fields not set: %+v", activated)
	}

	// A second Issued credential for the same member must lose the slot.
	if _, err := s.TryActivate(ctx, tenantID, c2.ID, admin, time.Now()); !errors.Is(err, sentinel.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}

	// Re-activating the winner is an invalid source state, not a conflict.
	if _, err := s.TryActivate(ctx, tenantID, c1.ID, admin, time.Now()); !errors.Is(err, sentinel.ErrInvalidState) {
		t.Fatalf("expected invalid state, got %v", err)
	}
}

func TestTryActivateNotFound(t *testing.T) {
	s := NewInMemory()
	_, err := s.TryActivate(context.Background(), id.TenantID(uuid.New()), id.CredentialID(uuid.New()), id.AdminID{}, time.Now())
	if !errors.Is(err, sentinel.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestTransitionCompareAndSet(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()
	tenantID := id.TenantID(uuid.New())
	memberID := id.MemberID(uuid.New())

	c := issued(t, tenantID, memberID)
	if err := s.Create(ctx, c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Revoke from issued.
	cp := *c
	if _, err := cp.Revoke(id.AdminID(uuid.New()), "reason", time.Now()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.Transition(ctx, &cp, models.StatusIssued); err != nil {
		t.Fatalf("expected CAS transition to apply: %v", err)
	}

	// A stale writer expecting the old state must be rejected.
	stale := *c
	if err := s.Transition(ctx, &stale, models.StatusIssued); !errors.Is(err, sentinel.ErrInvalidState) {
		t.Fatalf("expected invalid state for stale CAS, got %v", err)
	}
}

func TestTransitionReleasesActiveSlot(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()
	tenantID := id.TenantID(uuid.New())
	memberID := id.MemberID(uuid.New())

	c1 := issued(t, tenantID, memberID)
	c2 := issued(t, tenantID, memberID)
	for _, c := range []*models.Credential{c1, c2} {
		if err := s.Create(ctx, c); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	active, err := s.TryActivate(ctx, tenantID, c1.ID, id.AdminID{}, time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Revoking the active credential frees the slot for the next activation.
	if _, err := active.Revoke(id.AdminID(uuid.New()), "card lost", time.Now()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.Transition(ctx, active, models.StatusActive); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := s.TryActivate(ctx, tenantID, c2.ID, id.AdminID{}, time.Now()); err != nil {
		t.Fatalf("slot should be free after revocation: %v", err)
	}
}

func TestListExpirable(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()
	tenantID := id.TenantID(uuid.New())
	now := time.Now()

	past := now.Add(time.Minute)
	c := issued(t, tenantID, id.MemberID(uuid.New()))
	c.ExpiresAt = &past
	if err := s.Create(ctx, c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := s.TryActivate(ctx, tenantID, c.ID, id.AdminID{}, now); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	due, err := s.ListExpirable(ctx, now.Add(2*time.Minute), 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(due) != 1 || due[0].ID != c.ID {
		t.Fatalf("expected the past-due active credential, got %d entries", len(due))
	}

	none, err := s.ListExpirable(ctx, now, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(none) != 0 {
		t.Fatalf("expected nothing due before expiry, got %d", len(none))
	}
}

func TestFindByMemberReturnsCopies(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()
	tenantID := id.TenantID(uuid.New())
	memberID := id.MemberID(uuid.New())

	c := issued(t, tenantID, memberID)
	if err := s.Create(ctx, c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	list, err := s.FindByMember(ctx, tenantID, memberID)
	if err != nil || len(list) != 1 {
		t.Fatalf("expected one credential, got %d (%v)", len(list), err)
	}

	// Mutating a returned record must not leak into the store.
	list[0].Status = models.StatusRevoked
	fresh, err := s.FindByID(ctx, tenantID, c.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fresh.Status != models.StatusIssued {
		t.Fatalf("store state mutated through returned pointer")
	}
}
