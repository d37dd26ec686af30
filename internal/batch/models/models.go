// Package models defines the batch operation record: one administrative
// request applying a single lifecycle transition to many members, with
// bounded partial-failure tracking.
package models

import (
	"time"

	"github.com/google/uuid"

	id "github.com/dr-roshyara/public-digit-sub008/pkg/domain"
	dErrors "github.com/dr-roshyara/public-digit-sub008/pkg/domain-errors"
)

// OperationKind is the lifecycle transition a batch applies to every target.
type OperationKind string

const (
	KindIssue    OperationKind = "issue"
	KindActivate OperationKind = "activate"
	KindRevoke   OperationKind = "revoke"
)

// Valid reports whether the kind is one of the known operations.
func (k OperationKind) Valid() bool {
	switch k {
	case KindIssue, KindActivate, KindRevoke:
		return true
	}
	return false
}

// Policy controls whether a unit failure halts further dispatch.
type Policy string

const (
	PolicyFailFast        Policy = "fail_fast"
	PolicyContinueOnError Policy = "continue_on_error"
)

// Valid reports whether the policy is known.
func (p Policy) Valid() bool {
	return p == PolicyFailFast || p == PolicyContinueOnError
}

// Status is the batch lifecycle state.
type Status string

const (
	StatusPending         Status = "pending"
	StatusRunning         Status = "running"
	StatusCompleted       Status = "completed"
	StatusPartiallyFailed Status = "partially_failed"
	StatusFailed          Status = "failed"
	StatusCancelling      Status = "cancelling"
	StatusCancelled       Status = "cancelled"
)

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusPartiallyFailed, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// Counts aggregates per-unit outcomes. Succeeded+Failed+Skipped always
// equals Total once the batch reaches a terminal state.
type Counts struct {
	Total     int `json:"total"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`
}

// FailureEntry is one recorded unit failure.
type FailureEntry struct {
	MemberID id.MemberID  `json:"member_id"`
	Code     dErrors.Code `json:"code"`
	Message  string       `json:"message"`
}

// MaxFailureEntries caps stored failure detail per batch. Failures beyond
// the cap are collapsed into OverflowFailures so the record stays bounded
// regardless of batch size; the event sink retains full per-item detail.
const MaxFailureEntries = 100

// MaxTargets bounds a single batch request.
const MaxTargets = 10000

// BatchOperation is the persisted record of one bulk lifecycle request.
// It is owned exclusively by the orchestrator; the lifecycle engine has no
// knowledge of batches.
type BatchOperation struct {
	ID               id.BatchID
	TenantID         id.TenantID
	Kind             OperationKind
	Policy           Policy
	Targets          []id.MemberID
	Reason           string
	DryRun           bool
	Status           Status
	Counts           Counts
	Failures         []FailureEntry
	OverflowFailures int
	SubmittedBy      id.AdminID
	CreatedAt        time.Time
	CompletedAt      *time.Time
}

// NewBatch validates the request and returns a Pending batch. Duplicate
// targets are rejected outright: a member processed twice in one batch would
// race the activation slot against itself.
func NewBatch(tenantID id.TenantID, kind OperationKind, targets []id.MemberID, policy Policy, reason string, dryRun bool, submittedBy id.AdminID, now time.Time) (*BatchOperation, error) {
	if tenantID.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "tenant id is required")
	}
	if !kind.Valid() {
		return nil, dErrors.New(dErrors.CodeValidation, "unknown operation kind")
	}
	if !policy.Valid() {
		return nil, dErrors.New(dErrors.CodeValidation, "unknown batch policy")
	}
	if len(targets) == 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "batch requires at least one target")
	}
	if len(targets) > MaxTargets {
		return nil, dErrors.New(dErrors.CodeValidation, "batch exceeds maximum target count")
	}
	seen := make(map[id.MemberID]struct{}, len(targets))
	for _, m := range targets {
		if m.IsNil() {
			return nil, dErrors.New(dErrors.CodeValidation, "target member id is required")
		}
		if _, dup := seen[m]; dup {
			return nil, dErrors.New(dErrors.CodeValidation, "duplicate target member in batch")
		}
		seen[m] = struct{}{}
	}
	if kind == KindRevoke && reason == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "revocation reason is required")
	}

	return &BatchOperation{
		ID:          id.BatchID(uuid.New()),
		TenantID:    tenantID,
		Kind:        kind,
		Policy:      policy,
		Targets:     append([]id.MemberID(nil), targets...),
		Reason:      reason,
		DryRun:      dryRun,
		Status:      StatusPending,
		Counts:      Counts{Total: len(targets)},
		SubmittedBy: submittedBy,
		CreatedAt:   now,
	}, nil
}

// RecordFailure appends a failure entry, collapsing into the overflow count
// once the cap is reached. Counts.Failed is tracked separately by the caller.
func (b *BatchOperation) RecordFailure(memberID id.MemberID, code dErrors.Code, message string) {
	if len(b.Failures) >= MaxFailureEntries {
		b.OverflowFailures++
		return
	}
	b.Failures = append(b.Failures, FailureEntry{MemberID: memberID, Code: code, Message: message})
}

// Finalize derives the terminal status from the aggregated counts and stamps
// the completion time. Cancelled batches keep their partial counts.
func (b *BatchOperation) Finalize(cancelled bool, now time.Time) {
	switch {
	case cancelled:
		b.Status = StatusCancelled
	case b.Counts.Failed == 0 && b.Counts.Skipped == 0:
		b.Status = StatusCompleted
	case b.Counts.Succeeded == 0:
		b.Status = StatusFailed
	default:
		b.Status = StatusPartiallyFailed
	}
	b.CompletedAt = &now
}
