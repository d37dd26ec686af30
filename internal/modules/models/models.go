package models

import (
	"time"

	id "github.com/dr-roshyara/public-digit-sub008/pkg/domain"
	dErrors "github.com/dr-roshyara/public-digit-sub008/pkg/domain-errors"
)

// Module is an optional feature set tenants can install. The identifier is
// stable; the name is a human-readable label that may be changed later.
// Bindings always reference the identifier so a rename never reroutes or
// breaks existing installations.
type Module struct {
	ID        id.ModuleID `json:"id"`
	Name      string      `json:"name"`
	CreatedAt time.Time   `json:"created_at"`
}

func NewModule(moduleID id.ModuleID, name string, now time.Time) (*Module, error) {
	if name == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "module name cannot be empty")
	}
	if len(name) > 64 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "module name must be 64 characters or less")
	}
	return &Module{
		ID:        moduleID,
		Name:      name,
		CreatedAt: now,
	}, nil
}

// Binding records whether a tenant has a module installed.
// Identity is (tenant ID, module ID); read-only from the lifecycle engine's
// perspective.
type Binding struct {
	TenantID    id.TenantID `json:"tenant_id"`
	ModuleID    id.ModuleID `json:"module_id"`
	Installed   bool        `json:"installed"`
	InstalledAt time.Time   `json:"installed_at"`
}
