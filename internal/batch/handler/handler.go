// Package handler exposes the batch verbs over HTTP.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dr-roshyara/public-digit-sub008/internal/batch/models"
	"github.com/dr-roshyara/public-digit-sub008/internal/batch/service"
	id "github.com/dr-roshyara/public-digit-sub008/pkg/domain"
	dErrors "github.com/dr-roshyara/public-digit-sub008/pkg/domain-errors"
	"github.com/dr-roshyara/public-digit-sub008/pkg/platform/httputil"
	"github.com/dr-roshyara/public-digit-sub008/pkg/platform/middleware/admin"
	request "github.com/dr-roshyara/public-digit-sub008/pkg/platform/middleware/request"
)

// Orchestrator defines the batch operations the handler exposes.
type Orchestrator interface {
	Submit(ctx context.Context, cmd service.SubmitCommand) (*models.BatchOperation, error)
	Run(ctx context.Context, batchID id.BatchID) (*models.BatchOperation, error)
	Cancel(ctx context.Context, batchID id.BatchID) (*models.BatchOperation, error)
	GetBatch(ctx context.Context, tenantID id.TenantID, batchID id.BatchID) (*models.BatchOperation, error)
}

type Handler struct {
	orchestrator Orchestrator
	logger       *slog.Logger
}

func New(orchestrator Orchestrator, logger *slog.Logger) *Handler {
	return &Handler{orchestrator: orchestrator, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Post("/admin/tenants/{tenantID}/batches", h.HandleSubmit)
	r.Get("/admin/tenants/{tenantID}/batches/{id}", h.HandleGetBatch)
	r.Post("/admin/tenants/{tenantID}/batches/{id}/run", h.HandleRun)
	r.Post("/admin/tenants/{tenantID}/batches/{id}/cancel", h.HandleCancel)
}

// HandleSubmit accepts a bulk request. Unless auto_run is disabled or the
// request is a dry run, the batch is driven to completion before responding,
// so the response carries the terminal counts.
func (h *Handler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := request.GetRequestID(ctx)
	tenantID, ok := parseTenantID(w, r)
	if !ok {
		return
	}

	req, ok := httputil.DecodeAndPrepare[SubmitBatchRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	targets, err := req.ParsedTargets()
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	b, err := h.orchestrator.Submit(ctx, service.SubmitCommand{
		TenantID:    tenantID,
		Kind:        req.kind(),
		Targets:     targets,
		Policy:      req.policy(),
		Reason:      req.Reason,
		DryRun:      req.DryRun,
		SubmittedBy: actorID(ctx),
	})
	if err != nil {
		h.logger.ErrorContext(ctx, "submit batch failed", "error", err, "request_id", requestID, "tenant_id", tenantID)
		httputil.WriteError(w, err)
		return
	}

	if !b.DryRun && req.autoRun() {
		batchID := b.ID
		b, err = h.orchestrator.Run(ctx, batchID)
		if err != nil {
			h.logger.ErrorContext(ctx, "run batch failed", "error", err, "request_id", requestID, "batch_id", batchID)
			httputil.WriteError(w, err)
			return
		}
	}

	httputil.WriteJSON(w, http.StatusCreated, toBatchResponse(b))
}

// HandleRun drives a previously submitted Pending batch.
func (h *Handler) HandleRun(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := request.GetRequestID(ctx)
	b, ok := h.loadScoped(w, r)
	if !ok {
		return
	}

	final, err := h.orchestrator.Run(ctx, b.ID)
	if err != nil {
		h.logger.ErrorContext(ctx, "run batch failed", "error", err, "request_id", requestID, "batch_id", b.ID)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, toBatchResponse(final))
}

// HandleCancel stops further dispatch of a batch.
func (h *Handler) HandleCancel(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := request.GetRequestID(ctx)
	b, ok := h.loadScoped(w, r)
	if !ok {
		return
	}

	cancelled, err := h.orchestrator.Cancel(ctx, b.ID)
	if err != nil {
		h.logger.ErrorContext(ctx, "cancel batch failed", "error", err, "request_id", requestID, "batch_id", b.ID)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, toBatchResponse(cancelled))
}

// HandleGetBatch returns the batch status and aggregated results.
func (h *Handler) HandleGetBatch(w http.ResponseWriter, r *http.Request) {
	b, ok := h.loadScoped(w, r)
	if !ok {
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toBatchResponse(b))
}

// loadScoped resolves the batch under the tenant in the path; a batch owned
// by another tenant reads as not found.
func (h *Handler) loadScoped(w http.ResponseWriter, r *http.Request) (*models.BatchOperation, bool) {
	ctx := r.Context()
	tenantID, ok := parseTenantID(w, r)
	if !ok {
		return nil, false
	}
	batchID, err := id.ParseBatchID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid batch id"))
		return nil, false
	}

	b, err := h.orchestrator.GetBatch(ctx, tenantID, batchID)
	if err != nil {
		h.logger.ErrorContext(ctx, "get batch failed", "error", err,
			"request_id", request.GetRequestID(ctx), "batch_id", batchID)
		httputil.WriteError(w, err)
		return nil, false
	}
	return b, true
}

func parseTenantID(w http.ResponseWriter, r *http.Request) (id.TenantID, bool) {
	tenantID, err := id.ParseTenantID(chi.URLParam(r, "tenantID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid tenant id"))
		return id.TenantID{}, false
	}
	return tenantID, true
}

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
