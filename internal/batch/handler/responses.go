package handler

import (
	"time"

	"github.com/dr-roshyara/public-digit-sub008/internal/batch/models"
)

// BatchResponse is the HTTP view of a batch record. The target list is not
// echoed back; callers already have it and it can be large.
type BatchResponse struct {
	ID               string                `json:"id"`
	TenantID         string                `json:"tenant_id"`
	Kind             string                `json:"kind"`
	Policy           string                `json:"policy"`
	DryRun           bool                  `json:"dry_run,omitempty"`
	Status           string                `json:"status"`
	Counts           models.Counts         `json:"counts"`
	Failures         []models.FailureEntry `json:"failures,omitempty"`
	OverflowFailures int                   `json:"overflow_failures,omitempty"`
	CreatedAt        time.Time             `json:"created_at"`
	CompletedAt      *time.Time            `json:"completed_at,omitempty"`
}

func toBatchResponse(b *models.BatchOperation) *BatchResponse {
	return &BatchResponse{
		ID:               b.ID.String(),
		TenantID:         b.TenantID.String(),
		Kind:             string(b.Kind),
		Policy:           string(b.Policy),
		DryRun:           b.DryRun,
		Status:           string(b.Status),
		Counts:           b.Counts,
		Failures:         b.Failures,
		OverflowFailures: b.OverflowFailures,
		CreatedAt:        b.CreatedAt,
		CompletedAt:      b.CompletedAt,
	}
}
