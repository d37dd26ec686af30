package service

import (
	"context"
	"errors"

	"github.com/dr-roshyara/public-digit-sub008/internal/batch/models"
	credmodels "github.com/dr-roshyara/public-digit-sub008/internal/credential/models"
	credservice "github.com/dr-roshyara/public-digit-sub008/internal/credential/service"
	"github.com/dr-roshyara/public-digit-sub008/internal/sentinel"
	id "github.com/dr-roshyara/public-digit-sub008/pkg/domain"
	dErrors "github.com/dr-roshyara/public-digit-sub008/pkg/domain-errors"
)

// Lifecycle is the slice of the credential lifecycle engine the orchestrator
// drives. The engine is stateless and safe to call from many workers at once;
// the orchestrator never bypasses it to touch the credential store directly.
type Lifecycle interface {
	Issue(ctx context.Context, cmd credservice.IssueCommand) (*credmodels.Credential, error)
	Activate(ctx context.Context, cmd credservice.ActivateCommand) (*credmodels.Credential, error)
	Revoke(ctx context.Context, cmd credservice.RevokeCommand) (*credmodels.Credential, error)
	ListByMember(ctx context.Context, tenantID id.TenantID, memberID id.MemberID) ([]*credmodels.Credential, error)
}

// BatchStore persists batch operation records.
type BatchStore interface {
	Create(ctx context.Context, b *models.BatchOperation) error
	FindByID(ctx context.Context, batchID id.BatchID) (*models.BatchOperation, error)
	Transition(ctx context.Context, batchID id.BatchID, from, to models.Status) error
	Save(ctx context.Context, b *models.BatchOperation) error
}

// ModuleGate is the tenant-wide feature gate evaluated once before dispatch.
type ModuleGate interface {
	EnsureInstalled(ctx context.Context, tenantID id.TenantID, moduleName string) error
}

func wrapBatchErr(err error, action string) error {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "batch not found")
	case errors.Is(err, sentinel.ErrInvalidState):
		return dErrors.Wrap(err, dErrors.CodeInvalidTransition, err.Error())
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.Wrap(err, dErrors.CodeConflict, err.Error())
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, action)
}
