package domain

import (
	"testing"

	"github.com/google/uuid"

	dErrors "github.com/dr-roshyara/public-digit-sub008/pkg/domain-errors"
)

func TestParseTenantID(t *testing.T) {
	raw := uuid.New()
	id, err := ParseTenantID(raw.String())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id.String() != raw.String() {
		t.Fatalf("expected %s, got %s", raw, id)
	}
}

func TestParseRejectsEmptyAndMalformed(t *testing.T) {
	if _, err := ParseCredentialID(""); !dErrors.HasCode(err, dErrors.CodeInvalidInput) {
		t.Fatalf("expected invalid input for empty string, got %v", err)
	}
	if _, err := ParseMemberID("not-a-uuid"); !dErrors.HasCode(err, dErrors.CodeInvalidInput) {
		t.Fatalf("expected invalid input for malformed string, got %v", err)
	}
}

func TestNilChecks(t *testing.T) {
	if !(TenantID{}).IsNil() {
		t.Fatalf("zero tenant ID should be nil")
	}
	if (BatchID(uuid.New())).IsNil() {
		t.Fatalf("fresh batch ID should not be nil")
	}
}
