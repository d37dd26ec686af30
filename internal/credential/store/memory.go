package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dr-roshyara/public-digit-sub008/internal/credential/models"
	"github.com/dr-roshyara/public-digit-sub008/internal/sentinel"
	id "github.com/dr-roshyara/public-digit-sub008/pkg/domain"
)

// InMemory stores credentials in memory for tests and the demo environment.
// All transitions happen under one mutex, which makes it the storage-level
// arbiter of the single-Active-per-member invariant the same way the partial
// unique index is in Postgres.
type InMemory struct {
	mu          sync.Mutex
	credentials map[string]*models.Credential // keyed by tenant/credential
	memberIdx   map[string][]string           // tenant/member -> credential keys
	activeIdx   map[string]string             // tenant/member -> active credential key
}

// NewInMemory creates an in-memory credential store.
func NewInMemory() *InMemory {
	return &InMemory{
		credentials: make(map[string]*models.Credential),
		memberIdx:   make(map[string][]string),
		activeIdx:   make(map[string]string),
	}
}

func credKey(tenantID id.TenantID, credentialID id.CredentialID) string {
	return tenantID.String() + "/" + credentialID.String()
}

func memberKey(tenantID id.TenantID, memberID id.MemberID) string {
	return tenantID.String() + "/" + memberID.String()
}

// Create inserts a new credential record.
func (s *InMemory) Create(_ context.Context, c *models.Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := credKey(c.TenantID, c.ID)
	if _, exists := s.credentials[key]; exists {
		return fmt.Errorf("credential already exists: %w", sentinel.ErrAlreadyUsed)
	}
	if c.Status == models.StatusActive {
		if err := s.claimActiveSlot(c, key); err != nil {
			return err
		}
	}

	stored := *c
	s.credentials[key] = &stored
	mk := memberKey(c.TenantID, c.MemberID)
	s.memberIdx[mk] = append(s.memberIdx[mk], key)
	return nil
}

// FindByID retrieves a credential; callers get a copy.
func (s *InMemory) FindByID(_ context.Context, tenantID id.TenantID, credentialID id.CredentialID) (*models.Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.credentials[credKey(tenantID, credentialID)]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	out := *c
	return &out, nil
}

// FindByMember retrieves all credentials a member holds, newest first.
func (s *InMemory) FindByMember(_ context.Context, tenantID id.TenantID, memberID id.MemberID) ([]*models.Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys := s.memberIdx[memberKey(tenantID, memberID)]
	out := make([]*models.Credential, 0, len(keys))
	for i := len(keys) - 1; i >= 0; i-- {
		c := *s.credentials[keys[i]]
		out = append(out, &c)
	}
	return out, nil
}

// HasActiveForMember reports whether the member currently holds an Active
// credential.
func (s *InMemory) HasActiveForMember(_ context.Context, tenantID id.TenantID, memberID id.MemberID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.activeIdx[memberKey(tenantID, memberID)]
	return ok, nil
}

// TryActivate performs the atomic conditional Issued->Active transition. The
// source-state check and the single-Active-slot check happen under the same
// lock as the write, so concurrent activations for one member yield exactly
// one winner.
func (s *InMemory) TryActivate(_ context.Context, tenantID id.TenantID, credentialID id.CredentialID, activatedBy id.AdminID, now time.Time) (*models.Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := credKey(tenantID, credentialID)
	c, ok := s.credentials[key]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	if c.Status != models.StatusIssued {
		return nil, fmt.Errorf("credential is %s: %w", c.Status, sentinel.ErrInvalidState)
	}
	mk := memberKey(tenantID, c.MemberID)
	if _, taken := s.activeIdx[mk]; taken {
		return nil, fmt.Errorf("member already holds an active credential: %w", sentinel.ErrConflict)
	}

	c.Status = models.StatusActive
	activatedAt := now
	c.ActivatedAt = &activatedAt
	c.ActivatedBy = activatedBy
	s.activeIdx[mk] = key

	out := *c
	return &out, nil
}

// Transition applies a compare-and-set update: the stored credential must
// still be in the expected source state or the write is rejected.
func (s *InMemory) Transition(_ context.Context, c *models.Credential, from models.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := credKey(c.TenantID, c.ID)
	stored, ok := s.credentials[key]
	if !ok {
		return sentinel.ErrNotFound
	}
	if stored.Status != from {
		return fmt.Errorf("credential is %s, expected %s: %w", stored.Status, from, sentinel.ErrInvalidState)
	}

	mk := memberKey(c.TenantID, c.MemberID)
	if c.Status == models.StatusActive && stored.Status != models.StatusActive {
		if err := s.claimActiveSlot(c, key); err != nil {
			return err
		}
	}
	if stored.Status == models.StatusActive && c.Status != models.StatusActive {
		delete(s.activeIdx, mk)
	}

	updated := *c
	s.credentials[key] = &updated
	return nil
}

// ListExpirable returns up to limit Active credentials whose expiry has
// elapsed, for the background sweep.
func (s *InMemory) ListExpirable(_ context.Context, now time.Time, limit int) ([]*models.Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*models.Credential
	for _, key := range s.activeIdx {
		c := s.credentials[key]
		if c.ExpiresAt != nil && !c.ExpiresAt.After(now) {
			cp := *c
			out = append(out, &cp)
			if limit > 0 && len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

// claimActiveSlot enforces the single-Active-per-member constraint.
// Callers must hold s.mu.
func (s *InMemory) claimActiveSlot(c *models.Credential, key string) error {
	mk := memberKey(c.TenantID, c.MemberID)
	if existing, taken := s.activeIdx[mk]; taken && existing != key {
		return fmt.Errorf("member already holds an active credential: %w", sentinel.ErrConflict)
	}
	s.activeIdx[mk] = key
	return nil
}
