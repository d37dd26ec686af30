// Package postgres persists lifecycle events for audit retention. The batch
// operation record keeps only bounded failure summaries; this append-only log
// is the source for full per-item forensic detail.
package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	id "github.com/dr-roshyara/public-digit-sub008/pkg/domain"
	"github.com/dr-roshyara/public-digit-sub008/pkg/platform/events"
)

// Store implements events.Store using PostgreSQL.
type Store struct {
	db *sql.DB
}

// New creates a new PostgreSQL event store.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Append inserts a lifecycle event into the lifecycle_events table.
func (s *Store) Append(ctx context.Context, event events.Event) error {
	query := `
		INSERT INTO lifecycle_events (
			id, timestamp, kind, tenant_id, credential_id, member_id,
			batch_id, actor_id, from_state, reason, request_id
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := s.db.ExecContext(ctx, query,
		uuid.New(),
		event.Timestamp,
		string(event.Kind),
		uuid.UUID(event.TenantID),
		nullableUUID(uuid.UUID(event.CredentialID)),
		nullableUUID(uuid.UUID(event.MemberID)),
		nullableUUID(uuid.UUID(event.BatchID)),
		nullableUUID(uuid.UUID(event.ActorID)),
		event.FromState,
		event.Reason,
		event.RequestID,
	)
	if err != nil {
		return fmt.Errorf("insert lifecycle event: %w", err)
	}
	return nil
}

// ListByCredential returns events for a credential in timestamp order.
func (s *Store) ListByCredential(ctx context.Context, tenantID id.TenantID, credentialID id.CredentialID) ([]events.Event, error) {
	query := `
		SELECT timestamp, kind, tenant_id, credential_id, member_id,
		       batch_id, actor_id, from_state, reason, request_id
		FROM lifecycle_events
		WHERE tenant_id = $1 AND credential_id = $2
		ORDER BY timestamp
	`
	rows, err := s.db.QueryContext(ctx, query, uuid.UUID(tenantID), uuid.UUID(credentialID))
	if err != nil {
		return nil, fmt.Errorf("list lifecycle events: %w", err)
	}
	defer rows.Close()

	var out []events.Event
	for rows.Next() {
		var e events.Event
		var kind string
		var tenant uuid.UUID
		var credential, member, batch, actor sql.Null[uuid.UUID]
		if err := rows.Scan(&e.Timestamp, &kind, &tenant, &credential, &member,
			&batch, &actor, &e.FromState, &e.Reason, &e.RequestID); err != nil {
			return nil, fmt.Errorf("scan lifecycle event: %w", err)
		}
		e.Kind = events.Kind(kind)
		e.TenantID = id.TenantID(tenant)
		if credential.Valid {
			e.CredentialID = id.CredentialID(credential.V)
		}
		if member.Valid {
			e.MemberID = id.MemberID(member.V)
		}
		if batch.Valid {
			e.BatchID = id.BatchID(batch.V)
		}
		if actor.Valid {
			e.ActorID = id.AdminID(actor.V)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate lifecycle events: %w", err)
	}
	return out, nil
}

// nullableUUID maps the zero UUID to NULL so optional references stay clean.
func nullableUUID(u uuid.UUID) any {
	if u == uuid.Nil {
		return nil
	}
	return u
}
