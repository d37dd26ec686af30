// Package handler exposes the credential lifecycle verbs over HTTP. Handlers
// stay thin: parse, call the service, translate the domain result.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dr-roshyara/public-digit-sub008/internal/credential/models"
	"github.com/dr-roshyara/public-digit-sub008/internal/credential/service"
	id "github.com/dr-roshyara/public-digit-sub008/pkg/domain"
	dErrors "github.com/dr-roshyara/public-digit-sub008/pkg/domain-errors"
	"github.com/dr-roshyara/public-digit-sub008/pkg/platform/httputil"
	"github.com/dr-roshyara/public-digit-sub008/pkg/platform/middleware/admin"
	request "github.com/dr-roshyara/public-digit-sub008/pkg/platform/middleware/request"
)

// Service defines the lifecycle operations the handler exposes.
// Returns domain objects, not HTTP response DTOs.
type Service interface {
	Issue(ctx context.Context, cmd service.IssueCommand) (*models.Credential, error)
	Activate(ctx context.Context, cmd service.ActivateCommand) (*models.Credential, error)
	Revoke(ctx context.Context, cmd service.RevokeCommand) (*models.Credential, error)
	GetCredential(ctx context.Context, tenantID id.TenantID, credentialID id.CredentialID) (*models.Credential, error)
	ListByMember(ctx context.Context, tenantID id.TenantID, memberID id.MemberID) ([]*models.Credential, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Post("/admin/tenants/{tenantID}/credentials", h.HandleIssue)
	r.Get("/admin/tenants/{tenantID}/credentials/{id}", h.HandleGetCredential)
	r.Post("/admin/tenants/{tenantID}/credentials/{id}/activate", h.HandleActivate)
	r.Post("/admin/tenants/{tenantID}/credentials/{id}/revoke", h.HandleRevoke)
	r.Get("/admin/tenants/{tenantID}/members/{memberID}/credentials", h.HandleListByMember)
}

// HandleIssue creates a credential in the Issued state.
func (h *Handler) HandleIssue(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := request.GetRequestID(ctx)
	tenantID, ok := parseTenantID(w, r)
	if !ok {
		return
	}

	req, ok := httputil.DecodeAndPrepare[IssueCredentialRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	memberID, err := id.ParseMemberID(req.MemberID)
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid member id"))
		return
	}

	c, err := h.service.Issue(ctx, service.IssueCommand{
		TenantID:  tenantID,
		MemberID:  memberID,
		IssuedBy:  actorID(ctx),
		ExpiresAt: req.ExpiresAt,
	})
	if err != nil {
		h.logger.ErrorContext(ctx, "issue credential failed", "error", err, "request_id", requestID, "tenant_id", tenantID)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, c)
}

// HandleActivate transitions an issued credential to Active.
func (h *Handler) HandleActivate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := request.GetRequestID(ctx)
	tenantID, ok := parseTenantID(w, r)
	if !ok {
		return
	}
	credentialID, ok := parseCredentialID(w, r)
	if !ok {
		return
	}

	c, err := h.service.Activate(ctx, service.ActivateCommand{
		TenantID:     tenantID,
		CredentialID: credentialID,
		ActivatedBy:  actorID(ctx),
	})
	if err != nil {
		h.logger.ErrorContext(ctx, "activate credential failed", "error", err, "request_id", requestID, "credential_id", credentialID)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, c)
}

// HandleRevoke revokes an issued or active credential.
func (h *Handler) HandleRevoke(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := request.GetRequestID(ctx)
	tenantID, ok := parseTenantID(w, r)
	if !ok {
		return
	}
	credentialID, ok := parseCredentialID(w, r)
	if !ok {
		return
	}

	req, ok := httputil.DecodeAndPrepare[RevokeCredentialRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	c, err := h.service.Revoke(ctx, service.RevokeCommand{
		TenantID:     tenantID,
		CredentialID: credentialID,
		RevokedBy:    actorID(ctx),
		Reason:       req.Reason,
	})
	if err != nil {
		h.logger.ErrorContext(ctx, "revoke credential failed", "error", err, "request_id", requestID, "credential_id", credentialID)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, c)
}

// HandleGetCredential returns a credential with expiry evaluated at read
// time.
func (h *Handler) HandleGetCredential(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := request.GetRequestID(ctx)
	tenantID, ok := parseTenantID(w, r)
	if !ok {
		return
	}
	credentialID, ok := parseCredentialID(w, r)
	if !ok {
		return
	}

	c, err := h.service.GetCredential(ctx, tenantID, credentialID)
	if err != nil {
		h.logger.ErrorContext(ctx, "get credential failed", "error", err, "request_id", requestID, "credential_id", credentialID)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, c)
}

// HandleListByMember returns all of a member's credentials, newest first.
func (h *Handler) HandleListByMember(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := request.GetRequestID(ctx)
	tenantID, ok := parseTenantID(w, r)
	if !ok {
		return
	}
	memberID, err := id.ParseMemberID(chi.URLParam(r, "memberID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid member id"))
		return
	}

	list, err := h.service.ListByMember(ctx, tenantID, memberID)
	if err != nil {
		h.logger.ErrorContext(ctx, "list credentials failed", "error", err, "request_id", requestID, "member_id", memberID)
		httputil.WriteError(w, err)
		return
	}
	if list == nil {
		list = []*models.Credential{}
	}

	httputil.WriteJSON(w, http.StatusOK, list)
}

func parseTenantID(w http.ResponseWriter, r *http.Request) (id.TenantID, bool) {
	tenantID, err := id.ParseTenantID(chi.URLParam(r, "tenantID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid tenant id"))
		return id.TenantID{}, false
	}
	return tenantID, true
}

func parseCredentialID(w http.ResponseWriter, r *http.Request) (id.CredentialID, bool) {
	credentialID, err := id.ParseCredentialID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid credential id"))
		return id.CredentialID{}, false
	}
	return credentialID, true
}

// actorID resolves the acting administrator from the admin middleware.
// Requests authenticated without an actor header attribute to the nil admin.
func actorID(ctx context.Context) id.AdminID {
	raw := admin.GetAdminActorID(ctx)
	if raw == "" {
		return id.AdminID{}
	}
	adminID, err := id.ParseAdminID(raw)
	if err != nil {
		return id.AdminID{}
	}
	return adminID
}
