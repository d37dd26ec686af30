// Package service implements module registration, tenant installation, and
// the resolver used to gate credential operations.
package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dr-roshyara/public-digit-sub008/internal/modules/cache"
	"github.com/dr-roshyara/public-digit-sub008/internal/modules/models"
	"github.com/dr-roshyara/public-digit-sub008/internal/sentinel"
	id "github.com/dr-roshyara/public-digit-sub008/pkg/domain"
	dErrors "github.com/dr-roshyara/public-digit-sub008/pkg/domain-errors"
	"github.com/dr-roshyara/public-digit-sub008/pkg/platform/events"
	"github.com/dr-roshyara/public-digit-sub008/pkg/platform/middleware/requesttime"
)

const defaultCacheTTL = 30 * time.Second

// Service resolves module names to stable identifiers and answers tenant
// install checks. The two-step lookup (name to ID, then ID-based tenant
// check) is deliberate: bindings reference the immutable identifier so a
// display-name change never reroutes existing installations.
type Service struct {
	store    ModuleStore
	cache    cache.Cache
	cacheTTL time.Duration
	logger   *slog.Logger
	emitter  events.Emitter
}

func New(store ModuleStore, opts ...Option) *Service {
	cfg := &serviceConfig{cacheTTL: defaultCacheTTL}
	for _, opt := range opts {
		opt(cfg)
	}
	return &Service{
		store:    store,
		cache:    cfg.cache,
		cacheTTL: cfg.cacheTTL,
		logger:   cfg.logger,
		emitter:  cfg.emitter,
	}
}

// RegisterModule adds a module to the platform registry.
func (s *Service) RegisterModule(ctx context.Context, name string) (*models.Module, error) {
	name = strings.TrimSpace(name)

	m, err := models.NewModule(id.ModuleID(uuid.New()), name, requesttime.Now(ctx))
	if err != nil {
		return nil, err
	}

	if err := s.store.CreateIfNameAvailable(ctx, m); err != nil {
		if errors.Is(err, sentinel.ErrAlreadyUsed) {
			return nil, dErrors.New(dErrors.CodeConflict, "module name must be unique")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to register module")
	}

	s.invalidateName(ctx, name)
	s.emit(ctx, events.Event{Kind: events.KindModuleRegistered})
	return m, nil
}

// ResolveModuleID looks up a module's stable identifier by name.
// The result may be served from cache; staleness is bounded by the cache TTL.
func (s *Service) ResolveModuleID(ctx context.Context, name string) (id.ModuleID, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return id.ModuleID{}, dErrors.New(dErrors.CodeBadRequest, "module name is required")
	}

	if cached, ok := s.cacheGet(ctx, nameKey(name)); ok {
		moduleID, err := id.ParseModuleID(cached)
		if err == nil {
			return moduleID, nil
		}
		// Corrupt entry: drop it and fall through to the store.
		s.invalidateName(ctx, name)
	}

	m, err := s.store.FindByName(ctx, name)
	if err != nil {
		return id.ModuleID{}, wrapModuleErr(err, "failed to resolve module")
	}

	s.cacheSet(ctx, nameKey(name), m.ID.String())
	return m.ID, nil
}

// IsInstalled reports whether the tenant has an installed binding for the
// module. "Not installed" is a valid false result, never an error; only
// infrastructure failures surface as errors.
func (s *Service) IsInstalled(ctx context.Context, tenantID id.TenantID, moduleID id.ModuleID) (bool, error) {
	if err := requireTenantID(tenantID); err != nil {
		return false, err
	}
	if moduleID.IsNil() {
		return false, dErrors.New(dErrors.CodeBadRequest, "module ID required")
	}

	key := bindingKey(tenantID, moduleID)
	if cached, ok := s.cacheGet(ctx, key); ok {
		return cached == "1", nil
	}

	installed := false
	b, err := s.store.FindBinding(ctx, tenantID, moduleID)
	switch {
	case err == nil:
		installed = b.Installed
	case errors.Is(err, sentinel.ErrNotFound):
		// No binding row means not installed.
	default:
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check module binding")
	}

	if installed {
		s.cacheSet(ctx, key, "1")
	} else {
		s.cacheSet(ctx, key, "0")
	}
	return installed, nil
}

// EnsureInstalled gates lifecycle mutations: it resolves the module by name
// and verifies the tenant has it installed.
func (s *Service) EnsureInstalled(ctx context.Context, tenantID id.TenantID, moduleName string) error {
	moduleID, err := s.ResolveModuleID(ctx, moduleName)
	if err != nil {
		return err
	}
	installed, err := s.IsInstalled(ctx, tenantID, moduleID)
	if err != nil {
		return err
	}
	if !installed {
		return dErrors.New(dErrors.CodeModuleNotInstalled, "module "+moduleName+" is not installed for tenant")
	}
	return nil
}

// InstallModule enables a module for a tenant.
func (s *Service) InstallModule(ctx context.Context, tenantID id.TenantID, moduleName string) (*models.Binding, error) {
	if err := requireTenantID(tenantID); err != nil {
		return nil, err
	}
	moduleID, err := s.ResolveModuleID(ctx, moduleName)
	if err != nil {
		return nil, err
	}

	b := &models.Binding{
		TenantID:    tenantID,
		ModuleID:    moduleID,
		Installed:   true,
		InstalledAt: requesttime.Now(ctx),
	}
	if err := s.store.UpsertBinding(ctx, b); err != nil {
		return nil, wrapModuleErr(err, "failed to install module")
	}

	s.cacheDelete(ctx, bindingKey(tenantID, moduleID))
	s.emit(ctx, events.Event{Kind: events.KindModuleInstalled, TenantID: tenantID})
	return b, nil
}

// UninstallModule disables a module for a tenant. The binding row is retained
// with installed=false for audit.
func (s *Service) UninstallModule(ctx context.Context, tenantID id.TenantID, moduleName string) error {
	if err := requireTenantID(tenantID); err != nil {
		return err
	}
	moduleID, err := s.ResolveModuleID(ctx, moduleName)
	if err != nil {
		return err
	}

	b, err := s.store.FindBinding(ctx, tenantID, moduleID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeModuleNotInstalled, "module "+moduleName+" is not installed for tenant")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load module binding")
	}

	b.Installed = false
	if err := s.store.UpsertBinding(ctx, b); err != nil {
		return wrapModuleErr(err, "failed to uninstall module")
	}

	s.cacheDelete(ctx, bindingKey(tenantID, moduleID))
	s.emit(ctx, events.Event{Kind: events.KindModuleUninstalled, TenantID: tenantID})
	return nil
}

// Cache helpers. The cache is best-effort: every path works without it.

func nameKey(name string) string {
	return "name:" + strings.ToLower(name)
}

func bindingKey(tenantID id.TenantID, moduleID id.ModuleID) string {
	return "binding:" + tenantID.String() + ":" + moduleID.String()
}

func (s *Service) cacheGet(ctx context.Context, key string) (string, bool) {
	if s.cache == nil {
		return "", false
	}
	return s.cache.Get(ctx, key)
}

func (s *Service) cacheSet(ctx context.Context, key, value string) {
	if s.cache == nil {
		return
	}
	s.cache.Set(ctx, key, value, s.cacheTTL)
}

func (s *Service) cacheDelete(ctx context.Context, key string) {
	if s.cache == nil {
		return
	}
	s.cache.Delete(ctx, key)
}

func (s *Service) invalidateName(ctx context.Context, name string) {
	s.cacheDelete(ctx, nameKey(name))
}

func (s *Service) emit(ctx context.Context, event events.Event) {
	if s.emitter == nil {
		return
	}
	if err := s.emitter.Emit(ctx, event); err != nil && s.logger != nil {
		s.logger.ErrorContext(ctx, "failed to emit module event",
			"kind", event.Kind,
			"error", err,
		)
	}
}
