// Package domain provides type-safe identifiers to prevent mixing up IDs at compile time.
package domain

import (
	"github.com/google/uuid"

	dErrors "github.com/dr-roshyara/public-digit-sub008/pkg/domain-errors"
)

// Distinct ID types - compiler prevents passing MemberID where TenantID is expected.
type (
	TenantID     uuid.UUID
	MemberID     uuid.UUID
	CredentialID uuid.UUID
	ModuleID     uuid.UUID
	AdminID      uuid.UUID
	BatchID      uuid.UUID
)

// Parse functions - use at trust boundaries (handlers, API inputs).

func ParseTenantID(s string) (TenantID, error) {
	id, err := parseUUID(s, "tenant ID")
	return TenantID(id), err
}

func ParseMemberID(s string) (MemberID, error) {
	id, err := parseUUID(s, "member ID")
	return MemberID(id), err
}

func ParseCredentialID(s string) (CredentialID, error) {
	id, err := parseUUID(s, "credential ID")
	return CredentialID(id), err
}

func ParseModuleID(s string) (ModuleID, error) {
	id, err := parseUUID(s, "module ID")
	return ModuleID(id), err
}

func ParseAdminID(s string) (AdminID, error) {
	id, err := parseUUID(s, "admin ID")
	return AdminID(id), err
}

func ParseBatchID(s string) (BatchID, error) {
	id, err := parseUUID(s, "batch ID")
	return BatchID(id), err
}

// String methods - for logging and debugging.

func (id TenantID) String() string     { return uuid.UUID(id).String() }
func (id MemberID) String() string     { return uuid.UUID(id).String() }
func (id CredentialID) String() string { return uuid.UUID(id).String() }
func (id ModuleID) String() string     { return uuid.UUID(id).String() }
func (id AdminID) String() string      { return uuid.UUID(id).String() }
func (id BatchID) String() string      { return uuid.UUID(id).String() }

// IsNil checks - used for service-layer validation.

func (id TenantID) IsNil() bool     { return uuid.UUID(id) == uuid.Nil }
func (id MemberID) IsNil() bool     { return uuid.UUID(id) == uuid.Nil }
func (id CredentialID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id ModuleID) IsNil() bool     { return uuid.UUID(id) == uuid.Nil }
func (id AdminID) IsNil() bool      { return uuid.UUID(id) == uuid.Nil }
func (id BatchID) IsNil() bool      { return uuid.UUID(id) == uuid.Nil }

// Text marshaling - IDs render as canonical UUID strings in JSON payloads
// instead of raw byte arrays.

func (id TenantID) MarshalText() ([]byte, error)     { return []byte(id.String()), nil }
func (id MemberID) MarshalText() ([]byte, error)     { return []byte(id.String()), nil }
func (id CredentialID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }
func (id ModuleID) MarshalText() ([]byte, error)     { return []byte(id.String()), nil }
func (id AdminID) MarshalText() ([]byte, error)      { return []byte(id.String()), nil }
func (id BatchID) MarshalText() ([]byte, error)      { return []byte(id.String()), nil }

func (id *TenantID) UnmarshalText(b []byte) error {
	parsed, err := ParseTenantID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id *MemberID) UnmarshalText(b []byte) error {
	parsed, err := ParseMemberID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id *CredentialID) UnmarshalText(b []byte) error {
	parsed, err := ParseCredentialID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id *ModuleID) UnmarshalText(b []byte) error {
	parsed, err := ParseModuleID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id *AdminID) UnmarshalText(b []byte) error {
	parsed, err := ParseAdminID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id *BatchID) UnmarshalText(b []byte) error {
	parsed, err := ParseBatchID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// parseUUID is the shared validation logic.
// Note: Nil UUIDs are allowed here. Use IsNil() at the service layer for
// business validation, which allows store lookups to return proper
// "not found" errors for consistency.
func parseUUID(s, label string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, label+" cannot be empty")
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+label+" format")
	}
	return id, nil
}
