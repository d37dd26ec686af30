package handler

import (
	"strings"
	"time"

	dErrors "github.com/dr-roshyara/public-digit-sub008/pkg/domain-errors"
)

// HTTP request DTOs. Converted to service commands before processing.

type IssueCredentialRequest struct {
	MemberID  string     `json:"member_id"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

func (r *IssueCredentialRequest) Normalize() {
	if r == nil {
		return
	}
	r.MemberID = strings.TrimSpace(r.MemberID)
}

func (r *IssueCredentialRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request is required")
	}
	if r.MemberID == "" {
		return dErrors.New(dErrors.CodeValidation, "member_id is required")
	}
	return nil
}

type RevokeCredentialRequest struct {
	Reason string `json:"reason"`
}

func (r *RevokeCredentialRequest) Normalize() {
	if r == nil {
		return
	}
	r.Reason = strings.TrimSpace(r.Reason)
}

func (r *RevokeCredentialRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request is required")
	}
	if r.Reason == "" {
		return dErrors.New(dErrors.CodeValidation, "reason is required")
	}
	return nil
}
