package models

import (
	"time"

	id "github.com/dr-roshyara/public-digit-sub008/pkg/domain"
	dErrors "github.com/dr-roshyara/public-digit-sub008/pkg/domain-errors"
)

// Status is the lifecycle state of a credential.
type Status string

const (
	StatusIssued  Status = "issued"
	StatusActive  Status = "active"
	StatusRevoked Status = "revoked"
	StatusExpired Status = "expired"
)

// Credential is a member-scoped digital card. Identity is (tenant ID,
// credential ID). A credential is never physically deleted; Revoked and
// Expired are terminal but retained for audit.
//
// Invariant: at most one credential per (tenant ID, member ID) may be Active.
// The authoritative enforcement lives in the store's conditional activate;
// anything the service checks beforehand is a fast-fail optimization.
type Credential struct {
	ID       id.CredentialID `json:"id"`
	TenantID id.TenantID     `json:"tenant_id"`
	MemberID id.MemberID     `json:"member_id"`
	Status   Status          `json:"status"`

	IssuedAt time.Time  `json:"issued_at"`
	IssuedBy id.AdminID `json:"issued_by"`

	ActivatedAt *time.Time `json:"activated_at,omitempty"`
	ActivatedBy id.AdminID `json:"activated_by,omitempty"`

	RevokedAt        *time.Time `json:"revoked_at,omitempty"`
	RevokedBy        id.AdminID `json:"revoked_by,omitempty"`
	RevocationReason string     `json:"revocation_reason,omitempty"`

	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// NewCredential creates a credential in the Issued state. No uniqueness
// constraint applies at issuance: a member may hold several non-active
// credentials, e.g. while a reissue is in progress.
func NewCredential(credentialID id.CredentialID, tenantID id.TenantID, memberID id.MemberID, issuedBy id.AdminID, expiresAt *time.Time, now time.Time) (*Credential, error) {
	if tenantID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "tenant ID cannot be empty")
	}
	if memberID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "member ID cannot be empty")
	}
	if expiresAt != nil && !expiresAt.After(now) {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "expiry date must be in the future")
	}
	return &Credential{
		ID:        credentialID,
		TenantID:  tenantID,
		MemberID:  memberID,
		Status:    StatusIssued,
		IssuedAt:  now,
		IssuedBy:  issuedBy,
		ExpiresAt: expiresAt,
	}, nil
}

// IsTerminal reports whether the credential is in a terminal state.
func (c *Credential) IsTerminal() bool {
	return c.Status == StatusRevoked || c.Status == StatusExpired
}

// Revoke transitions the credential from Issued or Active to Revoked and
// returns the prior state, which the caller records on the emitted event
// because downstream notification policy differs by prior state.
func (c *Credential) Revoke(revokedBy id.AdminID, reason string, now time.Time) (Status, error) {
	if reason == "" {
		return "", dErrors.New(dErrors.CodeValidation, "revocation reason is required")
	}
	if c.IsTerminal() {
		return "", dErrors.New(dErrors.CodeInvalidTransition, "credential is already "+string(c.Status))
	}
	from := c.Status
	c.Status = StatusRevoked
	c.RevokedAt = &now
	c.RevokedBy = revokedBy
	c.RevocationReason = reason
	return from, nil
}

// ExpireIfDue transitions Active to Expired when the expiry date has elapsed
// relative to now. It is an idempotent no-op otherwise and reports whether a
// transition happened.
func (c *Credential) ExpireIfDue(now time.Time) bool {
	if c.Status != StatusActive || c.ExpiresAt == nil {
		return false
	}
	if c.ExpiresAt.After(now) {
		return false
	}
	c.Status = StatusExpired
	return true
}
