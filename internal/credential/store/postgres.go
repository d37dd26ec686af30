package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/dr-roshyara/public-digit-sub008/internal/credential/models"
	"github.com/dr-roshyara/public-digit-sub008/internal/sentinel"
	id "github.com/dr-roshyara/public-digit-sub008/pkg/domain"
)

// Postgres persists credentials in PostgreSQL. The single-Active-per-member
// invariant is enforced twice: the conditional UPDATE in TryActivate, and a
// partial unique index on (tenant_id, member_id) WHERE status = 'active' as
// the backstop against races across processes.
type Postgres struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed credential store.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

const credentialColumns = `
	id, tenant_id, member_id, status,
	issued_at, issued_by, activated_at, activated_by,
	revoked_at, revoked_by, revocation_reason, expires_at
`

// Create inserts a new credential record.
func (s *Postgres) Create(ctx context.Context, c *models.Credential) error {
	query := `
		INSERT INTO credentials (` + credentialColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err := s.db.ExecContext(ctx, query,
		uuid.UUID(c.ID),
		uuid.UUID(c.TenantID),
		uuid.UUID(c.MemberID),
		string(c.Status),
		c.IssuedAt,
		nullableUUID(uuid.UUID(c.IssuedBy)),
		c.ActivatedAt,
		nullableUUID(uuid.UUID(c.ActivatedBy)),
		c.RevokedAt,
		nullableUUID(uuid.UUID(c.RevokedBy)),
		c.RevocationReason,
		c.ExpiresAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("credential conflicts with existing record: %w", sentinel.ErrConflict)
		}
		return fmt.Errorf("create credential: %w", err)
	}
	return nil
}

// FindByID retrieves a credential by its tenant-scoped identity.
func (s *Postgres) FindByID(ctx context.Context, tenantID id.TenantID, credentialID id.CredentialID) (*models.Credential, error) {
	query := `
		SELECT ` + credentialColumns + `
		FROM credentials
		WHERE tenant_id = $1 AND id = $2
	`
	c, err := scanCredential(s.db.QueryRowContext(ctx, query, uuid.UUID(tenantID), uuid.UUID(credentialID)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find credential by id: %w", err)
	}
	return c, nil
}

// FindByMember retrieves all credentials a member holds, newest first.
func (s *Postgres) FindByMember(ctx context.Context, tenantID id.TenantID, memberID id.MemberID) ([]*models.Credential, error) {
	query := `
		SELECT ` + credentialColumns + `
		FROM credentials
		WHERE tenant_id = $1 AND member_id = $2
		ORDER BY issued_at DESC
	`
	rows, err := s.db.QueryContext(ctx, query, uuid.UUID(tenantID), uuid.UUID(memberID))
	if err != nil {
		return nil, fmt.Errorf("find credentials by member: %w", err)
	}
	defer rows.Close()

	var out []*models.Credential
	for rows.Next() {
		c, err := scanCredential(rows)
		if err != nil {
			return nil, fmt.Errorf("scan credential: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate credentials: %w", err)
	}
	return out, nil
}

// HasActiveForMember reports whether the member currently holds an Active
// credential.
func (s *Postgres) HasActiveForMember(ctx context.Context, tenantID id.TenantID, memberID id.MemberID) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM credentials
			WHERE tenant_id = $1 AND member_id = $2 AND status = 'active'
		)
	`
	var exists bool
	if err := s.db.QueryRowContext(ctx, query, uuid.UUID(tenantID), uuid.UUID(memberID)).Scan(&exists); err != nil {
		return false, fmt.Errorf("check active credential: %w", err)
	}
	return exists, nil
}

// TryActivate performs the atomic conditional Issued->Active transition as a
// single UPDATE. The NOT EXISTS guard and the write are one statement, so a
// check in one step and a write in a later step cannot interleave; the
// partial unique index catches anything that still races.
func (s *Postgres) TryActivate(ctx context.Context, tenantID id.TenantID, credentialID id.CredentialID, activatedBy id.AdminID, now time.Time) (*models.Credential, error) {
	query := `
		UPDATE credentials c
		SET status = 'active', activated_at = $3, activated_by = $4
		WHERE c.tenant_id = $1 AND c.id = $2 AND c.status = 'issued'
		AND NOT EXISTS (
			SELECT 1 FROM credentials o
			WHERE o.tenant_id = c.tenant_id
			AND o.member_id = c.member_id
			AND o.status = 'active'
		)
		RETURNING ` + credentialColumns + `
	`
	c, err := scanCredential(s.db.QueryRowContext(ctx, query,
		uuid.UUID(tenantID),
		uuid.UUID(credentialID),
		now,
		nullableUUID(uuid.UUID(activatedBy)),
	))
	if err == nil {
		return c, nil
	}
	if isUniqueViolation(err) {
		return nil, fmt.Errorf("member already holds an active credential: %w", sentinel.ErrConflict)
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("activate credential: %w", err)
	}

	// The conditional write matched nothing; disambiguate for the caller.
	existing, findErr := s.FindByID(ctx, tenantID, credentialID)
	if findErr != nil {
		return nil, findErr
	}
	if existing.Status != models.StatusIssued {
		return nil, fmt.Errorf("credential is %s: %w", existing.Status, sentinel.ErrInvalidState)
	}
	return nil, fmt.Errorf("member already holds an active credential: %w", sentinel.ErrConflict)
}

// Transition applies a compare-and-set update gated on the expected source
// state.
func (s *Postgres) Transition(ctx context.Context, c *models.Credential, from models.Status) error {
	query := `
		UPDATE credentials
		SET status = $4, activated_at = $5, activated_by = $6,
		    revoked_at = $7, revoked_by = $8, revocation_reason = $9
		WHERE tenant_id = $1 AND id = $2 AND status = $3
	`
	res, err := s.db.ExecContext(ctx, query,
		uuid.UUID(c.TenantID),
		uuid.UUID(c.ID),
		string(from),
		string(c.Status),
		c.ActivatedAt,
		nullableUUID(uuid.UUID(c.ActivatedBy)),
		c.RevokedAt,
		nullableUUID(uuid.UUID(c.RevokedBy)),
		c.RevocationReason,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("member already holds an active credential: %w", sentinel.ErrConflict)
		}
		return fmt.Errorf("transition credential: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("transition credential rows: %w", err)
	}
	if rows == 0 {
		// Either the credential is gone or its state moved under us.
		if _, findErr := s.FindByID(ctx, c.TenantID, c.ID); findErr != nil {
			return findErr
		}
		return fmt.Errorf("credential left state %s: %w", from, sentinel.ErrInvalidState)
	}
	return nil
}

// ListExpirable returns up to limit Active credentials whose expiry has
// elapsed, for the background sweep.
func (s *Postgres) ListExpirable(ctx context.Context, now time.Time, limit int) ([]*models.Credential, error) {
	query := `
		SELECT ` + credentialColumns + `
		FROM credentials
		WHERE status = 'active' AND expires_at IS NOT NULL AND expires_at <= $1
		ORDER BY expires_at
		LIMIT $2
	`
	rows, err := s.db.QueryContext(ctx, query, now, limit)
	if err != nil {
		return nil, fmt.Errorf("list expirable credentials: %w", err)
	}
	defer rows.Close()

	var out []*models.Credential
	for rows.Next() {
		c, err := scanCredential(rows)
		if err != nil {
			return nil, fmt.Errorf("scan credential: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate expirable credentials: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCredential(row rowScanner) (*models.Credential, error) {
	var c models.Credential
	var credentialID, tenantID, memberID uuid.UUID
	var status string
	var issuedBy, activatedBy, revokedBy sql.Null[uuid.UUID]
	var revocationReason sql.NullString

	err := row.Scan(
		&credentialID, &tenantID, &memberID, &status,
		&c.IssuedAt, &issuedBy, &c.ActivatedAt, &activatedBy,
		&c.RevokedAt, &revokedBy, &revocationReason, &c.ExpiresAt,
	)
	if err != nil {
		return nil, err
	}

	c.ID = id.CredentialID(credentialID)
	c.TenantID = id.TenantID(tenantID)
	c.MemberID = id.MemberID(memberID)
	c.Status = models.Status(status)
	if issuedBy.Valid {
		c.IssuedBy = id.AdminID(issuedBy.V)
	}
	if activatedBy.Valid {
		c.ActivatedBy = id.AdminID(activatedBy.V)
	}
	if revokedBy.Valid {
		c.RevokedBy = id.AdminID(revokedBy.V)
	}
	if revocationReason.Valid {
		c.RevocationReason = revocationReason.String
	}
	return &c, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// nullableUUID maps the zero UUID to NULL so optional actor columns stay clean.
func nullableUUID(u uuid.UUID) any {
	if u == uuid.Nil {
		return nil
	}
	return u
}
