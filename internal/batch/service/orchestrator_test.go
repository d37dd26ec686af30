package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/dr-roshyara/public-digit-sub008/internal/batch/models"
	"github.com/dr-roshyara/public-digit-sub008/internal/batch/store"
	credservice "github.com/dr-roshyara/public-digit-sub008/internal/credential/service"
	credstore "github.com/dr-roshyara/public-digit-sub008/internal/credential/store"
	modulesservice "github.com/dr-roshyara/public-digit-sub008/internal/modules/service"
	modulesstore "github.com/dr-roshyara/public-digit-sub008/internal/modules/store"
	id "github.com/dr-roshyara/public-digit-sub008/pkg/domain"
	dErrors "github.com/dr-roshyara/public-digit-sub008/pkg/domain-errors"
	"github.com/dr-roshyara/public-digit-sub008/pkg/platform/events"
	"github.com/dr-roshyara/public-digit-sub008/pkg/platform/events/publisher"
	memstore "github.com/dr-roshyara/public-digit-sub008/pkg/platform/events/store/memory"
)

func members(n int) []id.MemberID {
	out := make([]id.MemberID, n)
	for i := range out {
		out[i] = id.MemberID(uuid.New())
	}
	return out
}

type fixture struct {
	orch        *Orchestrator
	credentials *credservice.Service
	credStore   *credstore.InMemory
	events      *memstore.Store
	tenantID    id.TenantID
	adminID     id.AdminID
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()

	tenantID := id.TenantID(uuid.New())
	modules := modulesservice.New(modulesstore.NewInMemory())
	ctx := context.Background()
	if _, err := modules.RegisterModule(ctx, credservice.DefaultModuleName); err != nil {
		t.Fatalf("unexpected error registering module: %v", err)
	}
	if _, err := modules.InstallModule(ctx, tenantID, credservice.DefaultModuleName); err != nil {
		t.Fatalf("unexpected error installing module: %v", err)
	}

	eventStore := memstore.New()
	emitter := publisher.New(eventStore)
	credStore := credstore.NewInMemory()
	credentials := credservice.New(credStore, modules, credservice.WithEmitter(emitter))

	opts = append([]Option{WithEmitter(emitter), WithRetryBackoff(time.Millisecond)}, opts...)
	orch := New(store.NewInMemory(), credentials, modules, opts...)

	return &fixture{
		orch:        orch,
		credentials: credentials,
		credStore:   credStore,
		events:      eventStore,
		tenantID:    tenantID,
		adminID:     id.AdminID(uuid.New()),
	}
}

// issueFor issues one credential per member, optionally activating it.
func (f *fixture) issueFor(t *testing.T, member id.MemberID, activate bool) {
	t.Helper()
	ctx := context.Background()
	c, err := f.credentials.Issue(ctx, credservice.IssueCommand{
		TenantID: f.tenantID, MemberID: member, IssuedBy: f.adminID,
	})
	if err != nil {
		t.Fatalf("unexpected error issuing: %v", err)
	}
	if activate {
		if _, err := f.credentials.Activate(ctx, credservice.ActivateCommand{
			TenantID: f.tenantID, CredentialID: c.ID, ActivatedBy: f.adminID,
		}); err != nil {
			t.Fatalf("unexpected error activating: %v", err)
		}
	}
}

func checkCounts(t *testing.T, b *models.BatchOperation) {
	t.Helper()
	if got := b.Counts.Succeeded + b.Counts.Failed + b.Counts.Skipped; got != b.Counts.Total {
		t.Fatalf("counts invariant broken: %+v", b.Counts)
	}
}

func TestSubmitAndRunIssueBatch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	targets := members(50)

	b, err := f.orch.Submit(ctx, SubmitCommand{
		TenantID: f.tenantID, Kind: models.KindIssue, Targets: targets,
		Policy: models.PolicyContinueOnError, SubmittedBy: f.adminID,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b.Status != models.StatusPending {
		t.Fatalf("expected pending after submit, got %s", b.Status)
	}

	final, err := f.orch.Run(ctx, b.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if final.Status != models.StatusCompleted {
		t.Fatalf("expected completed, got %s (%+v)", final.Status, final.Counts)
	}
	if final.Counts.Succeeded != 50 {
		t.Fatalf("expected 50 succeeded, got %+v", final.Counts)
	}
	checkCounts(t, final)

	if got := len(f.events.ByKind(events.KindCredentialIssued)); got != 50 {
		t.Fatalf("expected 50 issued events, got %d", got)
	}
	if got := len(f.events.ByKind(events.KindBatchCompleted)); got != 1 {
		t.Fatalf("expected one batch_completed event, got %d", got)
	}
}

func TestContinueOnErrorPartialFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// 10 members with issued credentials; members 3 and 7 already hold an
	// active one.
	targets := members(10)
	for i, m := range targets {
		f.issueFor(t, m, i == 3 || i == 7)
		if i == 3 || i == 7 {
			f.issueFor(t, m, false) // a second issued credential to activate
		}
	}

	b, err := f.orch.Submit(ctx, SubmitCommand{
		TenantID: f.tenantID, Kind: models.KindActivate, Targets: targets,
		Policy: models.PolicyContinueOnError, SubmittedBy: f.adminID,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	final, err := f.orch.Run(ctx, b.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if final.Status != models.StatusPartiallyFailed {
		t.Fatalf("expected partially_failed, got %s", final.Status)
	}
	if final.Counts.Succeeded != 8 || final.Counts.Failed != 2 {
		t.Fatalf("expected 8/2 split, got %+v", final.Counts)
	}
	checkCounts(t, final)

	for _, entry := range final.Failures {
		if entry.Code != dErrors.CodeDuplicateActiveCredential {
			t.Fatalf("expected duplicate_active_credential failures, got %s", entry.Code)
		}
	}
}

func TestFailFastSkipsRemainingTargets(t *testing.T) {
	// Concurrency 1 keeps dispatch order deterministic: the first unit
	// fails (no credential to activate) and every later target is skipped.
	f := newFixture(t, WithConcurrency(1))
	ctx := context.Background()
	targets := members(10)
	for _, m := range targets[1:] {
		f.issueFor(t, m, false)
	}

	b, err := f.orch.Submit(ctx, SubmitCommand{
		TenantID: f.tenantID, Kind: models.KindActivate, Targets: targets,
		Policy: models.PolicyFailFast, SubmittedBy: f.adminID,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	final, err := f.orch.Run(ctx, b.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if final.Counts.Failed != 1 {
		t.Fatalf("expected one failure, got %+v", final.Counts)
	}
	if final.Counts.Skipped == 0 {
		t.Fatalf("expected skipped targets under fail-fast, got %+v", final.Counts)
	}
	checkCounts(t, final)
}

func TestModuleNotInstalledRejectsWholeBatch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	foreign := id.TenantID(uuid.New()) // module not installed

	b, err := f.orch.Submit(ctx, SubmitCommand{
		TenantID: foreign, Kind: models.KindIssue, Targets: members(1000),
		Policy: models.PolicyContinueOnError, SubmittedBy: f.adminID,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	final, err := f.orch.Run(ctx, b.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if final.Status != models.StatusFailed {
		t.Fatalf("expected failed, got %s", final.Status)
	}
	if final.Counts.Succeeded != 0 {
		t.Fatalf("expected zero successes, got %+v", final.Counts)
	}
	checkCounts(t, final)

	// Zero credential store writes.
	if got := len(f.events.ByKind(events.KindCredentialIssued)); got != 0 {
		t.Fatalf("expected no issued credentials, got %d", got)
	}
}

func TestDryRunMatchesRealRunWithoutWrites(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	targets := members(10)
	for i, m := range targets {
		f.issueFor(t, m, i == 3 || i == 7)
		if i == 3 || i == 7 {
			f.issueFor(t, m, false)
		}
	}

	dry, err := f.orch.Submit(ctx, SubmitCommand{
		TenantID: f.tenantID, Kind: models.KindActivate, Targets: targets,
		Policy: models.PolicyContinueOnError, DryRun: true, SubmittedBy: f.adminID,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !dry.Status.Terminal() {
		t.Fatalf("dry run must return a terminal record, got %s", dry.Status)
	}
	if got := len(f.events.ByKind(events.KindCredentialActivated)); got != 2 {
		t.Fatalf("dry run must not activate anything; fixture had 2 pre-activated, got %d", got)
	}

	real, err := f.orch.Submit(ctx, SubmitCommand{
		TenantID: f.tenantID, Kind: models.KindActivate, Targets: targets,
		Policy: models.PolicyContinueOnError, SubmittedBy: f.adminID,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	finalReal, err := f.orch.Run(ctx, real.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if dry.Counts != finalReal.Counts {
		t.Fatalf("dry run classification diverged: dry=%+v real=%+v", dry.Counts, finalReal.Counts)
	}
	if dry.Status != finalReal.Status {
		t.Fatalf("dry run status diverged: %s vs %s", dry.Status, finalReal.Status)
	}
	checkCounts(t, dry)

	// Dry-run batches never run.
	if _, err := f.orch.Run(ctx, dry.ID); !dErrors.HasCode(err, dErrors.CodeInvalidTransition) {
		t.Fatalf("expected invalid_transition running a dry-run batch, got %v", err)
	}
}

func TestRunIsSingleWinner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	b, err := f.orch.Submit(ctx, SubmitCommand{
		TenantID: f.tenantID, Kind: models.KindIssue, Targets: members(5),
		Policy: models.PolicyContinueOnError, SubmittedBy: f.adminID,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := f.orch.Run(ctx, b.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := f.orch.Run(ctx, b.ID); !dErrors.HasCode(err, dErrors.CodeInvalidTransition) {
		t.Fatalf("expected invalid_transition on second run, got %v", err)
	}
}

func TestCancelPendingBatch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	b, err := f.orch.Submit(ctx, SubmitCommand{
		TenantID: f.tenantID, Kind: models.KindIssue, Targets: members(5),
		Policy: models.PolicyContinueOnError, SubmittedBy: f.adminID,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cancelled, err := f.orch.Cancel(ctx, b.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cancelled.Status != models.StatusCancelled {
		t.Fatalf("expected cancelled, got %s", cancelled.Status)
	}
	if cancelled.Counts.Skipped != 5 {
		t.Fatalf("expected all targets skipped, got %+v", cancelled.Counts)
	}
	checkCounts(t, cancelled)

	// Terminal batches cannot be cancelled again.
	if _, err := f.orch.Cancel(ctx, b.ID); !dErrors.HasCode(err, dErrors.CodeInvalidTransition) {
		t.Fatalf("expected invalid_transition, got %v", err)
	}
}

func TestGetBatchTenantScoped(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	b, err := f.orch.Submit(ctx, SubmitCommand{
		TenantID: f.tenantID, Kind: models.KindIssue, Targets: members(2),
		Policy: models.PolicyContinueOnError, SubmittedBy: f.adminID,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := f.orch.GetBatch(ctx, f.tenantID, b.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := f.orch.GetBatch(ctx, id.TenantID(uuid.New()), b.ID); !dErrors.HasCode(err, dErrors.CodeNotFound) {
		t.Fatalf("another tenant must not see the batch, got %v", err)
	}
}

func TestSubmitValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	dup := id.MemberID(uuid.New())

	_, err := f.orch.Submit(ctx, SubmitCommand{
		TenantID: f.tenantID, Kind: models.KindActivate,
		Targets: []id.MemberID{dup, dup},
		Policy:  models.PolicyContinueOnError, SubmittedBy: f.adminID,
	})
	if !dErrors.HasCode(err, dErrors.CodeValidation) {
		t.Fatalf("expected validation error for duplicate targets, got %v", err)
	}
}

func TestRevokeBatchUsesReason(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	targets := members(3)
	for i, m := range targets {
		f.issueFor(t, m, i%2 == 0)
	}

	b, err := f.orch.Submit(ctx, SubmitCommand{
		TenantID: f.tenantID, Kind: models.KindRevoke, Targets: targets,
		Policy: models.PolicyContinueOnError, Reason: "program shutdown",
		SubmittedBy: f.adminID,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	final, err := f.orch.Run(ctx, b.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if final.Status != models.StatusCompleted {
		t.Fatalf("expected completed, got %s (%+v)", final.Status, final.Counts)
	}

	revoked := f.events.ByKind(events.KindCredentialRevoked)
	if len(revoked) != 3 {
		t.Fatalf("expected 3 revocations, got %d", len(revoked))
	}
	for _, e := range revoked {
		if e.Reason != "program shutdown" {
			t.Fatalf("expected batch reason on event, got %q", e.Reason)
		}
	}
}
