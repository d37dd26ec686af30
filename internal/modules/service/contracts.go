package service

import (
	"context"
	"errors"

	"github.com/dr-roshyara/public-digit-sub008/internal/modules/models"
	"github.com/dr-roshyara/public-digit-sub008/internal/sentinel"
	id "github.com/dr-roshyara/public-digit-sub008/pkg/domain"
	dErrors "github.com/dr-roshyara/public-digit-sub008/pkg/domain-errors"
)

// ModuleStore defines the persistence contract for modules and bindings.
type ModuleStore interface {
	CreateIfNameAvailable(ctx context.Context, m *models.Module) error
	FindByName(ctx context.Context, name string) (*models.Module, error)
	FindByID(ctx context.Context, moduleID id.ModuleID) (*models.Module, error)
	UpsertBinding(ctx context.Context, b *models.Binding) error
	FindBinding(ctx context.Context, tenantID id.TenantID, moduleID id.ModuleID) (*models.Binding, error)
}

// Error wrapping helpers translate sentinel errors to domain errors.

func wrapModuleErr(err error, action string) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeModuleNotRegistered, "module is not registered")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, action)
}

func requireTenantID(tenantID id.TenantID) error {
	if tenantID.IsNil() {
		return dErrors.New(dErrors.CodeBadRequest, "tenant ID required")
	}
	return nil
}
