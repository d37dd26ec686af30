package store

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/dr-roshyara/public-digit-sub008/internal/modules/models"
	"github.com/dr-roshyara/public-digit-sub008/internal/sentinel"
	id "github.com/dr-roshyara/public-digit-sub008/pkg/domain"
)

// InMemory stores modules and bindings in memory for tests and the demo
// environment.
type InMemory struct {
	mu       sync.RWMutex
	modules  map[string]*models.Module // keyed by module ID
	nameIdx  map[string]string         // lowercased name -> module ID
	bindings map[string]*models.Binding
}

// NewInMemory creates an in-memory module store.
func NewInMemory() *InMemory {
	return &InMemory{
		modules:  make(map[string]*models.Module),
		nameIdx:  make(map[string]string),
		bindings: make(map[string]*models.Binding),
	}
}

func bindingKey(tenantID id.TenantID, moduleID id.ModuleID) string {
	return tenantID.String() + "/" + moduleID.String()
}

// CreateIfNameAvailable atomically registers the module if the name is not
// already taken (case-insensitive).
func (s *InMemory) CreateIfNameAvailable(_ context.Context, m *models.Module) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	lower := strings.ToLower(m.Name)
	if _, exists := s.nameIdx[lower]; exists {
		return fmt.Errorf("module name must be unique: %w", sentinel.ErrAlreadyUsed)
	}
	key := m.ID.String()
	s.modules[key] = m
	s.nameIdx[lower] = key
	return nil
}

// FindByName retrieves a module by name (case-insensitive).
func (s *InMemory) FindByName(_ context.Context, name string) (*models.Module, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if key, ok := s.nameIdx[strings.ToLower(name)]; ok {
		return s.modules[key], nil
	}
	return nil, sentinel.ErrNotFound
}

// FindByID retrieves a module by its identifier.
func (s *InMemory) FindByID(_ context.Context, moduleID id.ModuleID) (*models.Module, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if m, ok := s.modules[moduleID.String()]; ok {
		return m, nil
	}
	return nil, sentinel.ErrNotFound
}

// UpsertBinding creates or replaces a tenant's binding for a module.
func (s *InMemory) UpsertBinding(_ context.Context, b *models.Binding) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.modules[b.ModuleID.String()]; !ok {
		return sentinel.ErrNotFound
	}
	s.bindings[bindingKey(b.TenantID, b.ModuleID)] = b
	return nil
}

// FindBinding retrieves a tenant's binding for a module.
func (s *InMemory) FindBinding(_ context.Context, tenantID id.TenantID, moduleID id.ModuleID) (*models.Binding, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if b, ok := s.bindings[bindingKey(tenantID, moduleID)]; ok {
		return b, nil
	}
	return nil, sentinel.ErrNotFound
}
