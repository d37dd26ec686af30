package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/dr-roshyara/public-digit-sub008/internal/batch/models"
	"github.com/dr-roshyara/public-digit-sub008/internal/sentinel"
	id "github.com/dr-roshyara/public-digit-sub008/pkg/domain"
)

// Postgres persists batch operations. Targets and failure summaries are
// stored as JSONB; both are bounded (target cap at submit, failure cap in
// the model), so the row size stays bounded regardless of batch size.
type Postgres struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed batch store.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

const batchColumns = `
	id, tenant_id, kind, policy, targets, reason, dry_run,
	status, total, succeeded, failed, skipped,
	failures, overflow_failures, submitted_by, created_at, completed_at
`

// Create inserts a new batch record.
func (s *Postgres) Create(ctx context.Context, b *models.BatchOperation) error {
	targets, failures, err := marshalBatchJSON(b)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO batch_operations (` + batchColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`
	_, err = s.db.ExecContext(ctx, query,
		uuid.UUID(b.ID),
		uuid.UUID(b.TenantID),
		string(b.Kind),
		string(b.Policy),
		targets,
		b.Reason,
		b.DryRun,
		string(b.Status),
		b.Counts.Total,
		b.Counts.Succeeded,
		b.Counts.Failed,
		b.Counts.Skipped,
		failures,
		b.OverflowFailures,
		nullableUUID(uuid.UUID(b.SubmittedBy)),
		b.CreatedAt,
		b.CompletedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("batch already exists: %w", sentinel.ErrConflict)
		}
		return fmt.Errorf("create batch: %w", err)
	}
	return nil
}

// FindByID retrieves a batch record.
func (s *Postgres) FindByID(ctx context.Context, batchID id.BatchID) (*models.BatchOperation, error) {
	query := `
		SELECT ` + batchColumns + `
		FROM batch_operations
		WHERE id = $1
	`
	b, err := scanBatch(s.db.QueryRowContext(ctx, query, uuid.UUID(batchID)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find batch by id: %w", err)
	}
	return b, nil
}

// Transition applies a compare-and-set status update. A stale source status
// yields ErrInvalidState, so Run and Cancel racing across processes settle
// on exactly one winner.
func (s *Postgres) Transition(ctx context.Context, batchID id.BatchID, from, to models.Status) error {
	query := `
		UPDATE batch_operations
		SET status = $3
		WHERE id = $1 AND status = $2
	`
	res, err := s.db.ExecContext(ctx, query, uuid.UUID(batchID), string(from), string(to))
	if err != nil {
		return fmt.Errorf("transition batch: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("transition batch rows: %w", err)
	}
	if rows == 0 {
		if _, findErr := s.FindByID(ctx, batchID); findErr != nil {
			return findErr
		}
		return fmt.Errorf("batch left state %s: %w", from, sentinel.ErrInvalidState)
	}
	return nil
}

// Save persists the batch snapshot, including final counts and failures.
func (s *Postgres) Save(ctx context.Context, b *models.BatchOperation) error {
	targets, failures, err := marshalBatchJSON(b)
	if err != nil {
		return err
	}

	query := `
		UPDATE batch_operations
		SET status = $2, total = $3, succeeded = $4, failed = $5, skipped = $6,
		    targets = $7, failures = $8, overflow_failures = $9, completed_at = $10
		WHERE id = $1
	`
	res, err := s.db.ExecContext(ctx, query,
		uuid.UUID(b.ID),
		string(b.Status),
		b.Counts.Total,
		b.Counts.Succeeded,
		b.Counts.Failed,
		b.Counts.Skipped,
		targets,
		failures,
		b.OverflowFailures,
		b.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("save batch: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("save batch rows: %w", err)
	}
	if rows == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func marshalBatchJSON(b *models.BatchOperation) (targets, failures []byte, err error) {
	targets, err = json.Marshal(b.Targets)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal batch targets: %w", err)
	}
	if b.Failures == nil {
		failures = []byte("[]")
	} else if failures, err = json.Marshal(b.Failures); err != nil {
		return nil, nil, fmt.Errorf("marshal batch failures: %w", err)
	}
	return targets, failures, nil
}

func scanBatch(row rowScanner) (*models.BatchOperation, error) {
	var b models.BatchOperation
	var batchID, tenantID uuid.UUID
	var kind, policy, status string
	var submittedBy sql.Null[uuid.UUID]
	var reason sql.NullString
	var targets, failures []byte

	err := row.Scan(
		&batchID, &tenantID, &kind, &policy, &targets, &reason, &b.DryRun,
		&status, &b.Counts.Total, &b.Counts.Succeeded, &b.Counts.Failed, &b.Counts.Skipped,
		&failures, &b.OverflowFailures, &submittedBy, &b.CreatedAt, &b.CompletedAt,
	)
	if err != nil {
		return nil, err
	}

	b.ID = id.BatchID(batchID)
	b.TenantID = id.TenantID(tenantID)
	b.Kind = models.OperationKind(kind)
	b.Policy = models.Policy(policy)
	b.Status = models.Status(status)
	if reason.Valid {
		b.Reason = reason.String
	}
	if submittedBy.Valid {
		b.SubmittedBy = id.AdminID(submittedBy.V)
	}
	if err := json.Unmarshal(targets, &b.Targets); err != nil {
		return nil, fmt.Errorf("unmarshal batch targets: %w", err)
	}
	if err := json.Unmarshal(failures, &b.Failures); err != nil {
		return nil, fmt.Errorf("unmarshal batch failures: %w", err)
	}
	return &b, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func nullableUUID(u uuid.UUID) any {
	if u == uuid.Nil {
		return nil
	}
	return u
}
