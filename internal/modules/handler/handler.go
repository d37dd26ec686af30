// Package handler exposes module registry administration over HTTP.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dr-roshyara/public-digit-sub008/internal/modules/models"
	id "github.com/dr-roshyara/public-digit-sub008/pkg/domain"
	dErrors "github.com/dr-roshyara/public-digit-sub008/pkg/domain-errors"
	"github.com/dr-roshyara/public-digit-sub008/pkg/platform/httputil"
	request "github.com/dr-roshyara/public-digit-sub008/pkg/platform/middleware/request"
)

// Service defines the module registry operations the handler exposes.
type Service interface {
	RegisterModule(ctx context.Context, name string) (*models.Module, error)
	InstallModule(ctx context.Context, tenantID id.TenantID, moduleName string) (*models.Binding, error)
	UninstallModule(ctx context.Context, tenantID id.TenantID, moduleName string) error
	ResolveModuleID(ctx context.Context, name string) (id.ModuleID, error)
	IsInstalled(ctx context.Context, tenantID id.TenantID, moduleID id.ModuleID) (bool, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Post("/admin/modules", h.HandleRegisterModule)
	r.Post("/admin/tenants/{tenantID}/modules/{name}/install", h.HandleInstall)
	r.Post("/admin/tenants/{tenantID}/modules/{name}/uninstall", h.HandleUninstall)
	r.Get("/admin/tenants/{tenantID}/modules/{name}", h.HandleGetInstallation)
}

type RegisterModuleRequest struct {
	Name string `json:"name"`
}

func (r *RegisterModuleRequest) Normalize() {
	if r == nil {
		return
	}
	r.Name = strings.TrimSpace(r.Name)
}

func (r *RegisterModuleRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request is required")
	}
	if r.Name == "" {
		return dErrors.New(dErrors.CodeValidation, "name is required")
	}
	return nil
}

type ModuleResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type InstallationResponse struct {
	TenantID    string     `json:"tenant_id"`
	ModuleID    string     `json:"module_id"`
	Name        string     `json:"name"`
	Installed   bool       `json:"installed"`
	InstalledAt *time.Time `json:"installed_at,omitempty"`
}

// HandleRegisterModule registers a module name platform-wide.
func (h *Handler) HandleRegisterModule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := request.GetRequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[RegisterModuleRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	m, err := h.service.RegisterModule(ctx, req.Name)
	if err != nil {
		h.logger.ErrorContext(ctx, "register module failed", "error", err, "request_id", requestID)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, &ModuleResponse{ID: m.ID.String(), Name: m.Name})
}

// HandleInstall enables a module for a tenant.
func (h *Handler) HandleInstall(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := request.GetRequestID(ctx)
	tenantID, name, ok := parseBindingParams(w, r)
	if !ok {
		return
	}

	binding, err := h.service.InstallModule(ctx, tenantID, name)
	if err != nil {
		h.logger.ErrorContext(ctx, "install module failed", "error", err, "request_id", requestID, "tenant_id", tenantID, "module", name)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, toInstallationResponse(binding, name))
}

// HandleUninstall disables a module for a tenant. Takes effect immediately:
// resolver caches are invalidated before the call returns.
func (h *Handler) HandleUninstall(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := request.GetRequestID(ctx)
	tenantID, name, ok := parseBindingParams(w, r)
	if !ok {
		return
	}

	if err := h.service.UninstallModule(ctx, tenantID, name); err != nil {
		h.logger.ErrorContext(ctx, "uninstall module failed", "error", err, "request_id", requestID, "tenant_id", tenantID, "module", name)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, &InstallationResponse{
		TenantID:  tenantID.String(),
		Name:      name,
		Installed: false,
	})
}

// HandleGetInstallation reports whether a module is installed for a tenant.
func (h *Handler) HandleGetInstallation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := request.GetRequestID(ctx)
	tenantID, name, ok := parseBindingParams(w, r)
	if !ok {
		return
	}

	moduleID, err := h.service.ResolveModuleID(ctx, name)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	installed, err := h.service.IsInstalled(ctx, tenantID, moduleID)
	if err != nil {
		h.logger.ErrorContext(ctx, "check installation failed", "error", err, "request_id", requestID, "tenant_id", tenantID, "module", name)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, &InstallationResponse{
		TenantID:  tenantID.String(),
		ModuleID:  moduleID.String(),
		Name:      name,
		Installed: installed,
	})
}

func toInstallationResponse(b *models.Binding, name string) *InstallationResponse {
	res := &InstallationResponse{
		TenantID:  b.TenantID.String(),
		ModuleID:  b.ModuleID.String(),
		Name:      name,
		Installed: b.Installed,
	}
	if !b.InstalledAt.IsZero() {
		t := b.InstalledAt
		res.InstalledAt = &t
	}
	return res
}

func parseBindingParams(w http.ResponseWriter, r *http.Request) (id.TenantID, string, bool) {
	tenantID, err := id.ParseTenantID(chi.URLParam(r, "tenantID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid tenant id"))
		return id.TenantID{}, "", false
	}
	name := strings.TrimSpace(chi.URLParam(r, "name"))
	if name == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "module name is required"))
		return id.TenantID{}, "", false
	}
	return tenantID, name, true
}
