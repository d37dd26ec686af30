package service

import (
	"context"
	"errors"
	"time"

	"github.com/dr-roshyara/public-digit-sub008/internal/credential/models"
	"github.com/dr-roshyara/public-digit-sub008/internal/sentinel"
	id "github.com/dr-roshyara/public-digit-sub008/pkg/domain"
	dErrors "github.com/dr-roshyara/public-digit-sub008/pkg/domain-errors"
)

// CredentialStore defines the persistence contract for credentials. The two
// conditional operations (TryActivate, Transition) are the storage-level
// arbiters for every state change; the service never does a separate
// check-then-write against plain CRUD.
type CredentialStore interface {
	Create(ctx context.Context, c *models.Credential) error
	FindByID(ctx context.Context, tenantID id.TenantID, credentialID id.CredentialID) (*models.Credential, error)
	FindByMember(ctx context.Context, tenantID id.TenantID, memberID id.MemberID) ([]*models.Credential, error)
	HasActiveForMember(ctx context.Context, tenantID id.TenantID, memberID id.MemberID) (bool, error)
	TryActivate(ctx context.Context, tenantID id.TenantID, credentialID id.CredentialID, activatedBy id.AdminID, now time.Time) (*models.Credential, error)
	Transition(ctx context.Context, c *models.Credential, from models.Status) error
	ListExpirable(ctx context.Context, now time.Time, limit int) ([]*models.Credential, error)
}

// ModuleGate is the feature gate consulted before any lifecycle mutation.
type ModuleGate interface {
	EnsureInstalled(ctx context.Context, tenantID id.TenantID, moduleName string) error
}

// ID validation helpers reduce repetition in service methods.

func requireTenantID(tenantID id.TenantID) error {
	if tenantID.IsNil() {
		return dErrors.New(dErrors.CodeBadRequest, "tenant ID required")
	}
	return nil
}

func requireCredentialID(credentialID id.CredentialID) error {
	if credentialID.IsNil() {
		return dErrors.New(dErrors.CodeBadRequest, "credential ID required")
	}
	return nil
}

// Error wrapping helpers translate sentinel errors to domain errors.

func wrapCredentialErr(err error, action string) error {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "credential not found")
	case errors.Is(err, sentinel.ErrInvalidState):
		return dErrors.Wrap(err, dErrors.CodeInvalidTransition, err.Error())
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.Wrap(err, dErrors.CodeDuplicateActiveCredential, "member already holds an active credential")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, action)
}
