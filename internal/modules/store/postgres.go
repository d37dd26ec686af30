package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/dr-roshyara/public-digit-sub008/internal/modules/models"
	"github.com/dr-roshyara/public-digit-sub008/internal/sentinel"
	id "github.com/dr-roshyara/public-digit-sub008/pkg/domain"
)

// Postgres persists modules and tenant bindings in PostgreSQL.
type Postgres struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed module store.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

// CreateIfNameAvailable atomically registers the module if the name is not
// already taken (case-insensitive, enforced by a unique index on lower(name)).
func (s *Postgres) CreateIfNameAvailable(ctx context.Context, m *models.Module) error {
	query := `
		INSERT INTO modules (id, name, created_at)
		VALUES ($1, $2, $3)
	`
	_, err := s.db.ExecContext(ctx, query, uuid.UUID(m.ID), m.Name, m.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("module name must be unique: %w", sentinel.ErrAlreadyUsed)
		}
		return fmt.Errorf("create module: %w", err)
	}
	return nil
}

// FindByName retrieves a module by name (case-insensitive).
func (s *Postgres) FindByName(ctx context.Context, name string) (*models.Module, error) {
	query := `
		SELECT id, name, created_at
		FROM modules
		WHERE lower(name) = lower($1)
	`
	return scanModule(s.db.QueryRowContext(ctx, query, name), "find module by name")
}

// FindByID retrieves a module by its identifier.
func (s *Postgres) FindByID(ctx context.Context, moduleID id.ModuleID) (*models.Module, error) {
	query := `
		SELECT id, name, created_at
		FROM modules
		WHERE id = $1
	`
	return scanModule(s.db.QueryRowContext(ctx, query, uuid.UUID(moduleID)), "find module by id")
}

// UpsertBinding creates or replaces a tenant's binding for a module.
func (s *Postgres) UpsertBinding(ctx context.Context, b *models.Binding) error {
	query := `
		INSERT INTO module_bindings (tenant_id, module_id, installed, installed_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (tenant_id, module_id)
		DO UPDATE SET installed = EXCLUDED.installed, installed_at = EXCLUDED.installed_at
	`
	_, err := s.db.ExecContext(ctx, query,
		uuid.UUID(b.TenantID),
		uuid.UUID(b.ModuleID),
		b.Installed,
		b.InstalledAt,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return sentinel.ErrNotFound
		}
		return fmt.Errorf("upsert module binding: %w", err)
	}
	return nil
}

// FindBinding retrieves a tenant's binding for a module.
func (s *Postgres) FindBinding(ctx context.Context, tenantID id.TenantID, moduleID id.ModuleID) (*models.Binding, error) {
	query := `
		SELECT tenant_id, module_id, installed, installed_at
		FROM module_bindings
		WHERE tenant_id = $1 AND module_id = $2
	`
	var b models.Binding
	var tenant, module uuid.UUID
	err := s.db.QueryRowContext(ctx, query, uuid.UUID(tenantID), uuid.UUID(moduleID)).
		Scan(&tenant, &module, &b.Installed, &b.InstalledAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find module binding: %w", err)
	}
	b.TenantID = id.TenantID(tenant)
	b.ModuleID = id.ModuleID(module)
	return &b, nil
}

func scanModule(row *sql.Row, action string) (*models.Module, error) {
	var m models.Module
	var moduleID uuid.UUID
	if err := row.Scan(&moduleID, &m.Name, &m.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("%s: %w", action, err)
	}
	m.ID = id.ModuleID(moduleID)
	return &m, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23503"
}
