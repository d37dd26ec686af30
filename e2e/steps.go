package e2e

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/cucumber/godog"
	"github.com/google/uuid"
)

// RegisterSteps registers all step definitions.
func RegisterSteps(ctx *godog.ScenarioContext, tc *TestContext) {
	// Background steps
	ctx.Step(`^the "([^"]*)" module is installed for the tenant$`, tc.moduleIsInstalled)

	// Credential steps
	ctx.Step(`^I issue a credential for a new member$`, tc.issueCredentialForNewMember)
	ctx.Step(`^I issue another credential for the same member$`, tc.issueCredentialForSameMember)
	ctx.Step(`^I activate the credential$`, tc.activateCredential)
	ctx.Step(`^I revoke the credential with reason "([^"]*)"$`, tc.revokeCredential)
	ctx.Step(`^I fetch the credential$`, tc.fetchCredential)

	// Batch steps
	ctx.Step(`^I submit an? (issue|activate|revoke) batch for (\d+) new members$`, tc.submitBatch)
	ctx.Step(`^I submit a dry-run (issue|activate|revoke) batch for (\d+) new members$`, tc.submitDryRunBatch)
	ctx.Step(`^I fetch the batch$`, tc.fetchBatch)

	// Assertion steps
	ctx.Step(`^the response status should be (\d+)$`, tc.responseStatusShouldBe)
	ctx.Step(`^the credential status should be "([^"]*)"$`, tc.credentialStatusShouldBe)
	ctx.Step(`^the batch status should be "([^"]*)"$`, tc.batchStatusShouldBe)
	ctx.Step(`^the batch counts should be (\d+) succeeded, (\d+) failed and (\d+) skipped$`, tc.batchCountsShouldBe)
	ctx.Step(`^the error code should be "([^"]*)"$`, tc.errorCodeShouldBe)
	ctx.Step(`^the revocation reason should be "([^"]*)"$`, tc.revocationReasonShouldBe)
}

func (tc *TestContext) moduleIsInstalled(ctx context.Context, name string) error {
	// Registration is platform-wide; an earlier run may have claimed the name.
	if err := tc.POST("/admin/modules", map[string]interface{}{"name": name}); err != nil {
		return err
	}
	status := tc.LastResponse.StatusCode
	if status != http.StatusCreated && status != http.StatusConflict {
		return fmt.Errorf("register module returned %d: %s", status, tc.LastResponseBody)
	}

	if err := tc.POST(fmt.Sprintf("/admin/tenants/%s/modules/%s/install", tc.TenantID, name), nil); err != nil {
		return err
	}
	if tc.LastResponse.StatusCode != http.StatusOK {
		return fmt.Errorf("install module returned %d: %s", tc.LastResponse.StatusCode, tc.LastResponseBody)
	}
	return nil
}

func (tc *TestContext) issueCredentialForNewMember(ctx context.Context) error {
	tc.MemberID = uuid.NewString()
	return tc.issueCredentialForSameMember(ctx)
}

func (tc *TestContext) issueCredentialForSameMember(ctx context.Context) error {
	err := tc.POST(fmt.Sprintf("/admin/tenants/%s/credentials", tc.TenantID), map[string]interface{}{
		"member_id": tc.MemberID,
	})
	if err != nil {
		return err
	}
	if tc.LastResponse.StatusCode == http.StatusCreated {
		id, err := tc.GetResponseStringField("id")
		if err != nil {
			return err
		}
		tc.CredentialID = id
	}
	return nil
}

func (tc *TestContext) activateCredential(ctx context.Context) error {
	return tc.POST(fmt.Sprintf("/admin/tenants/%s/credentials/%s/activate", tc.TenantID, tc.CredentialID), nil)
}

func (tc *TestContext) revokeCredential(ctx context.Context, reason string) error {
	return tc.POST(fmt.Sprintf("/admin/tenants/%s/credentials/%s/revoke", tc.TenantID, tc.CredentialID), map[string]interface{}{
		"reason": reason,
	})
}

func (tc *TestContext) fetchCredential(ctx context.Context) error {
	return tc.GET(fmt.Sprintf("/admin/tenants/%s/credentials/%s", tc.TenantID, tc.CredentialID))
}

func (tc *TestContext) submitBatch(ctx context.Context, kind string, count int) error {
	return tc.submit(kind, count, false)
}

func (tc *TestContext) submitDryRunBatch(ctx context.Context, kind string, count int) error {
	return tc.submit(kind, count, true)
}

func (tc *TestContext) submit(kind string, count int, dryRun bool) error {
	targets := make([]string, count)
	for i := range targets {
		targets[i] = uuid.NewString()
	}

	body := map[string]interface{}{
		"kind":    kind,
		"targets": targets,
		"dry_run": dryRun,
	}
	if kind == "revoke" {
		body["reason"] = "bulk revocation"
	}

	err := tc.POST(fmt.Sprintf("/admin/tenants/%s/batches", tc.TenantID), body)
	if err != nil {
		return err
	}
	if tc.LastResponse.StatusCode == http.StatusCreated {
		id, err := tc.GetResponseStringField("id")
		if err != nil {
			return err
		}
		tc.BatchID = id
	}
	return nil
}

func (tc *TestContext) fetchBatch(ctx context.Context) error {
	return tc.GET(fmt.Sprintf("/admin/tenants/%s/batches/%s", tc.TenantID, tc.BatchID))
}

func (tc *TestContext) responseStatusShouldBe(ctx context.Context, expected int) error {
	if tc.LastResponse == nil {
		return fmt.Errorf("no response recorded")
	}
	if tc.LastResponse.StatusCode != expected {
		return fmt.Errorf("expected status %d, got %d: %s", expected, tc.LastResponse.StatusCode, tc.LastResponseBody)
	}
	return nil
}

func (tc *TestContext) credentialStatusShouldBe(ctx context.Context, expected string) error {
	return tc.fieldShouldEqual("status", expected)
}

func (tc *TestContext) batchStatusShouldBe(ctx context.Context, expected string) error {
	return tc.fieldShouldEqual("status", expected)
}

func (tc *TestContext) batchCountsShouldBe(ctx context.Context, succeeded, failed, skipped int) error {
	counts, err := tc.GetResponseField("counts")
	if err != nil {
		return err
	}
	m, ok := counts.(map[string]interface{})
	if !ok {
		return fmt.Errorf("counts is not an object: %v", counts)
	}

	got := fmt.Sprintf("%v/%v/%v", m["succeeded"], m["failed"], m["skipped"])
	want := fmt.Sprintf("%d/%d/%d", succeeded, failed, skipped)
	if got != want {
		return fmt.Errorf("expected counts %s, got %s: %s", want, got, tc.LastResponseBody)
	}
	return nil
}

func (tc *TestContext) errorCodeShouldBe(ctx context.Context, expected string) error {
	return tc.fieldShouldEqual("error", expected)
}

func (tc *TestContext) revocationReasonShouldBe(ctx context.Context, expected string) error {
	return tc.fieldShouldEqual("revocation_reason", expected)
}

func (tc *TestContext) fieldShouldEqual(field, expected string) error {
	value, err := tc.GetResponseStringField(field)
	if err != nil {
		return err
	}
	if !strings.EqualFold(value, expected) {
		return fmt.Errorf("expected %s %q, got %q: %s", field, expected, value, tc.LastResponseBody)
	}
	return nil
}
