package handler

import (
	"strings"

	"github.com/dr-roshyara/public-digit-sub008/internal/batch/models"
	id "github.com/dr-roshyara/public-digit-sub008/pkg/domain"
	dErrors "github.com/dr-roshyara/public-digit-sub008/pkg/domain-errors"
)

// SubmitBatchRequest carries a bulk lifecycle request. AutoRun defaults to
// true: the batch is driven to completion within the request, matching
// non-interactive deployments. Set auto_run=false to submit now and run via
// the run endpoint later.
type SubmitBatchRequest struct {
	Kind    string   `json:"kind"`
	Targets []string `json:"targets"`
	Policy  string   `json:"policy,omitempty"`
	Reason  string   `json:"reason,omitempty"`
	DryRun  bool     `json:"dry_run,omitempty"`
	AutoRun *bool    `json:"auto_run,omitempty"`
}

func (r *SubmitBatchRequest) Normalize() {
	if r == nil {
		return
	}
	r.Kind = strings.ToLower(strings.TrimSpace(r.Kind))
	r.Policy = strings.ToLower(strings.TrimSpace(r.Policy))
	r.Reason = strings.TrimSpace(r.Reason)
	for i, t := range r.Targets {
		r.Targets[i] = strings.TrimSpace(t)
	}
}

func (r *SubmitBatchRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request is required")
	}
	if r.Kind == "" {
		return dErrors.New(dErrors.CodeValidation, "kind is required")
	}
	if len(r.Targets) == 0 {
		return dErrors.New(dErrors.CodeValidation, "targets are required")
	}
	return nil
}

// ParsedTargets converts the raw target list to member IDs.
func (r *SubmitBatchRequest) ParsedTargets() ([]id.MemberID, error) {
	out := make([]id.MemberID, len(r.Targets))
	for i, t := range r.Targets {
		memberID, err := id.ParseMemberID(t)
		if err != nil {
			return nil, dErrors.New(dErrors.CodeBadRequest, "invalid member id in targets")
		}
		out[i] = memberID
	}
	return out, nil
}

func (r *SubmitBatchRequest) autoRun() bool {
	return r.AutoRun == nil || *r.AutoRun
}

func (r *SubmitBatchRequest) kind() models.OperationKind {
	return models.OperationKind(r.Kind)
}

func (r *SubmitBatchRequest) policy() models.Policy {
	return models.Policy(r.Policy)
}
