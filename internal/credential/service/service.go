// Package service implements the credential lifecycle engine. The engine is
// stateless and safe to call from many workers at once: every state change
// goes through the store's conditional writes, never an in-process lock,
// because batches and interactive requests in other processes must be
// mutually exclusive too.
package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	credentialmetrics "github.com/dr-roshyara/public-digit-sub008/internal/credential/metrics"
	"github.com/dr-roshyara/public-digit-sub008/internal/credential/models"
	id "github.com/dr-roshyara/public-digit-sub008/pkg/domain"
	dErrors "github.com/dr-roshyara/public-digit-sub008/pkg/domain-errors"
	"github.com/dr-roshyara/public-digit-sub008/pkg/platform/events"
	"github.com/dr-roshyara/public-digit-sub008/pkg/platform/middleware/request"
	"github.com/dr-roshyara/public-digit-sub008/pkg/platform/middleware/requesttime"
)

// DefaultModuleName gates credential operations on the digital card module.
const DefaultModuleName = "digital_card"

// Service drives credential lifecycle transitions.
type Service struct {
	credentials CredentialStore
	gate        ModuleGate
	logger      *slog.Logger
	emitter     events.Emitter
	metrics     *credentialmetrics.Metrics
	moduleName  string
}

func New(credentials CredentialStore, gate ModuleGate, opts ...Option) *Service {
	cfg := &serviceConfig{moduleName: DefaultModuleName}
	for _, opt := range opts {
		opt(cfg)
	}
	return &Service{
		credentials: credentials,
		gate:        gate,
		logger:      cfg.logger,
		emitter:     cfg.emitter,
		metrics:     cfg.metrics,
		moduleName:  cfg.moduleName,
	}
}

// IssueCommand carries the inputs for issuing a credential.
type IssueCommand struct {
	TenantID  id.TenantID
	MemberID  id.MemberID
	IssuedBy  id.AdminID
	ExpiresAt *time.Time
}

// Issue creates a credential in the Issued state after the module gate
// passes. No uniqueness constraint applies at issuance.
func (s *Service) Issue(ctx context.Context, cmd IssueCommand) (*models.Credential, error) {
	if err := requireTenantID(cmd.TenantID); err != nil {
		return nil, err
	}
	if cmd.MemberID.IsNil() {
		return nil, dErrors.New(dErrors.CodeBadRequest, "member ID required")
	}
	if err := s.gate.EnsureInstalled(ctx, cmd.TenantID, s.moduleName); err != nil {
		return nil, err
	}

	c, err := models.NewCredential(
		id.CredentialID(uuid.New()),
		cmd.TenantID,
		cmd.MemberID,
		cmd.IssuedBy,
		cmd.ExpiresAt,
		requesttime.Now(ctx),
	)
	if err != nil {
		return nil, err
	}

	if err := s.credentials.Create(ctx, c); err != nil {
		return nil, wrapCredentialErr(err, "failed to issue credential")
	}

	s.emit(ctx, events.Event{
		Kind:         events.KindCredentialIssued,
		TenantID:     c.TenantID,
		CredentialID: c.ID,
		MemberID:     c.MemberID,
		ActorID:      cmd.IssuedBy,
	})
	if s.metrics != nil {
		s.metrics.IncrementIssued()
	}
	return c, nil
}

// ActivateCommand carries the inputs for activating a credential.
type ActivateCommand struct {
	TenantID     id.TenantID
	CredentialID id.CredentialID
	ActivatedBy  id.AdminID
}

// Activate transitions Issued->Active. The check that no other credential for
// the same member is Active and the write are a single conditional operation
// in the store; under concurrent activations exactly one caller wins and the
// rest fail with duplicate_active_credential.
func (s *Service) Activate(ctx context.Context, cmd ActivateCommand) (*models.Credential, error) {
	if err := requireTenantID(cmd.TenantID); err != nil {
		return nil, err
	}
	if err := requireCredentialID(cmd.CredentialID); err != nil {
		return nil, err
	}
	if err := s.gate.EnsureInstalled(ctx, cmd.TenantID, s.moduleName); err != nil {
		return nil, err
	}

	// Fast-fail pre-check. Purely an optimization to spare the conditional
	// write; the store decides authoritatively below.
	existing, err := s.credentials.FindByID(ctx, cmd.TenantID, cmd.CredentialID)
	if err != nil {
		return nil, wrapCredentialErr(err, "failed to load credential")
	}
	if existing.Status != models.StatusIssued {
		return nil, dErrors.New(dErrors.CodeInvalidTransition, "credential is "+string(existing.Status))
	}
	if taken, err := s.credentials.HasActiveForMember(ctx, cmd.TenantID, existing.MemberID); err == nil && taken {
		if s.metrics != nil {
			s.metrics.IncrementActivateConflict()
		}
		return nil, dErrors.New(dErrors.CodeDuplicateActiveCredential, "member already holds an active credential")
	}

	c, err := s.credentials.TryActivate(ctx, cmd.TenantID, cmd.CredentialID, cmd.ActivatedBy, requesttime.Now(ctx))
	if err != nil {
		wrapped := wrapCredentialErr(err, "failed to activate credential")
		if dErrors.HasCode(wrapped, dErrors.CodeDuplicateActiveCredential) && s.metrics != nil {
			s.metrics.IncrementActivateConflict()
		}
		return nil, wrapped
	}

	s.emit(ctx, events.Event{
		Kind:         events.KindCredentialActivated,
		TenantID:     c.TenantID,
		CredentialID: c.ID,
		MemberID:     c.MemberID,
		ActorID:      cmd.ActivatedBy,
	})
	if s.metrics != nil {
		s.metrics.IncrementActivated()
	}
	return c, nil
}

// RevokeCommand carries the inputs for revoking a credential.
type RevokeCommand struct {
	TenantID     id.TenantID
	CredentialID id.CredentialID
	RevokedBy    id.AdminID
	Reason       string
}

// Revoke transitions Issued or Active to Revoked. The emitted event records
// the prior state explicitly because downstream notification policy differs
// between revoking an issued card and an active one.
func (s *Service) Revoke(ctx context.Context, cmd RevokeCommand) (*models.Credential, error) {
	if err := requireTenantID(cmd.TenantID); err != nil {
		return nil, err
	}
	if err := requireCredentialID(cmd.CredentialID); err != nil {
		return nil, err
	}
	if cmd.Reason == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "revocation reason is required")
	}
	if err := s.gate.EnsureInstalled(ctx, cmd.TenantID, s.moduleName); err != nil {
		return nil, err
	}

	c, err := s.credentials.FindByID(ctx, cmd.TenantID, cmd.CredentialID)
	if err != nil {
		return nil, wrapCredentialErr(err, "failed to load credential")
	}

	from, err := c.Revoke(cmd.RevokedBy, cmd.Reason, requesttime.Now(ctx))
	if err != nil {
		return nil, err
	}
	if err := s.credentials.Transition(ctx, c, from); err != nil {
		return nil, wrapCredentialErr(err, "failed to revoke credential")
	}

	s.emit(ctx, events.Event{
		Kind:         events.KindCredentialRevoked,
		TenantID:     c.TenantID,
		CredentialID: c.ID,
		MemberID:     c.MemberID,
		ActorID:      cmd.RevokedBy,
		FromState:    string(from),
		Reason:       cmd.Reason,
	})
	if s.metrics != nil {
		s.metrics.IncrementRevoked(string(from))
	}
	return c, nil
}

// EvaluateExpiry transitions Active->Expired when the credential's expiry
// date has elapsed, and is an idempotent no-op otherwise. Losing the CAS to a
// concurrent evaluation or revocation is treated as a no-op as well.
func (s *Service) EvaluateExpiry(ctx context.Context, tenantID id.TenantID, credentialID id.CredentialID) (*models.Credential, error) {
	if err := requireTenantID(tenantID); err != nil {
		return nil, err
	}
	if err := requireCredentialID(credentialID); err != nil {
		return nil, err
	}

	c, err := s.credentials.FindByID(ctx, tenantID, credentialID)
	if err != nil {
		return nil, wrapCredentialErr(err, "failed to load credential")
	}
	return s.expireIfDue(ctx, c)
}

// GetCredential loads a credential, evaluating expiry at read time so no
// caller ever observes a past-due credential as Active.
func (s *Service) GetCredential(ctx context.Context, tenantID id.TenantID, credentialID id.CredentialID) (*models.Credential, error) {
	return s.EvaluateExpiry(ctx, tenantID, credentialID)
}

// ListByMember returns a member's credentials with expiry evaluated on each.
func (s *Service) ListByMember(ctx context.Context, tenantID id.TenantID, memberID id.MemberID) ([]*models.Credential, error) {
	if err := requireTenantID(tenantID); err != nil {
		return nil, err
	}
	if memberID.IsNil() {
		return nil, dErrors.New(dErrors.CodeBadRequest, "member ID required")
	}

	list, err := s.credentials.FindByMember(ctx, tenantID, memberID)
	if err != nil {
		return nil, wrapCredentialErr(err, "failed to list credentials")
	}
	for i, c := range list {
		evaluated, err := s.expireIfDue(ctx, c)
		if err != nil {
			return nil, err
		}
		list[i] = evaluated
	}
	return list, nil
}

func (s *Service) expireIfDue(ctx context.Context, c *models.Credential) (*models.Credential, error) {
	if !c.ExpireIfDue(requesttime.Now(ctx)) {
		return c, nil
	}
	if err := s.credentials.Transition(ctx, c, models.StatusActive); err != nil {
		// A concurrent sweep or revocation moved it first; reload and
		// return whatever state won.
		fresh, findErr := s.credentials.FindByID(ctx, c.TenantID, c.ID)
		if findErr != nil {
			return nil, wrapCredentialErr(findErr, "failed to reload credential")
		}
		return fresh, nil
	}

	s.emit(ctx, events.Event{
		Kind:         events.KindCredentialExpired,
		TenantID:     c.TenantID,
		CredentialID: c.ID,
		MemberID:     c.MemberID,
	})
	if s.metrics != nil {
		s.metrics.IncrementExpired()
	}
	return c, nil
}

// SweepExpired expires every past-due Active credential, up to limit, and
// returns how many transitioned. The background sweeper calls this on an
// interval; read-time evaluation covers the gap between runs.
func (s *Service) SweepExpired(ctx context.Context, limit int) (int, error) {
	now := requesttime.Now(ctx)
	due, err := s.credentials.ListExpirable(ctx, now, limit)
	if err != nil {
		return 0, wrapCredentialErr(err, "failed to list expirable credentials")
	}

	expired := 0
	for _, c := range due {
		if !c.ExpireIfDue(now) {
			continue
		}
		if err := s.credentials.Transition(ctx, c, models.StatusActive); err != nil {
			// Lost the race to a revocation or a read-time evaluation.
			continue
		}
		expired++
		s.emit(ctx, events.Event{
			Kind:         events.KindCredentialExpired,
			TenantID:     c.TenantID,
			CredentialID: c.ID,
			MemberID:     c.MemberID,
		})
		if s.metrics != nil {
			s.metrics.IncrementExpired()
		}
	}
	return expired, nil
}

func (s *Service) emit(ctx context.Context, event events.Event) {
	if requestID := request.GetRequestID(ctx); requestID != "" {
		event.RequestID = requestID
	}
	if s.logger != nil {
		s.logger.InfoContext(ctx, string(event.Kind),
			"tenant_id", event.TenantID,
			"credential_id", event.CredentialID,
			"member_id", event.MemberID,
			"from_state", event.FromState,
			"request_id", event.RequestID,
			"log_type", "audit",
		)
	}
	if s.emitter == nil {
		return
	}
	if err := s.emitter.Emit(ctx, event); err != nil && s.logger != nil {
		s.logger.ErrorContext(ctx, "failed to emit lifecycle event",
			"kind", event.Kind,
			"credential_id", event.CredentialID,
			"error", err,
		)
	}
}
