// Package events defines the lifecycle event model and the sink contract.
// Events are emitted from domain logic and fanned out to notification, audit,
// and real-time-sync consumers. Delivery is at-least-once; consumers must be
// idempotent on (credential ID, kind).
package events

import (
	"context"
	"time"

	id "github.com/dr-roshyara/public-digit-sub008/pkg/domain"
)

// Kind identifies a lifecycle event type.
type Kind string

const (
	KindCredentialIssued    Kind = "credential_issued"
	KindCredentialActivated Kind = "credential_activated"
	KindCredentialRevoked   Kind = "credential_revoked"
	KindCredentialExpired   Kind = "credential_expired"
	KindBatchCompleted      Kind = "batch_completed"
	KindModuleRegistered    Kind = "module_registered"
	KindModuleInstalled     Kind = "module_installed"
	KindModuleUninstalled   Kind = "module_uninstalled"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	Timestamp    time.Time       `json:"timestamp"`
	Kind         Kind            `json:"kind"`
	TenantID     id.TenantID     `json:"tenant_id"`
	CredentialID id.CredentialID `json:"credential_id,omitempty"`
	MemberID     id.MemberID     `json:"member_id,omitempty"`
	BatchID      id.BatchID      `json:"batch_id,omitempty"`
	ActorID      id.AdminID      `json:"actor_id,omitempty"`
	// FromState carries the prior lifecycle state for revocations, because
	// downstream notification policy differs between revoking an issued card
	// and revoking an active one.
	FromState string `json:"from_state,omitempty"`
	Reason    string `json:"reason,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// Store is an append-only sink for lifecycle events. Implementations persist
// to Postgres, publish to Kafka, or buffer in memory for tests.
type Store interface {
	Append(ctx context.Context, event Event) error
}

// Emitter is the interface domain services use to publish events.
type Emitter interface {
	Emit(ctx context.Context, event Event) error
}
