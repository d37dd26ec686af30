package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/dr-roshyara/public-digit-sub008/internal/batch/models"
	"github.com/dr-roshyara/public-digit-sub008/internal/batch/store"
	credmodels "github.com/dr-roshyara/public-digit-sub008/internal/credential/models"
	credservice "github.com/dr-roshyara/public-digit-sub008/internal/credential/service"
	id "github.com/dr-roshyara/public-digit-sub008/pkg/domain"
	dErrors "github.com/dr-roshyara/public-digit-sub008/pkg/domain-errors"
)

type allowAllGate struct{}

func (allowAllGate) EnsureInstalled(context.Context, id.TenantID, string) error { return nil }

// scriptedLifecycle fails Issue a configured number of times per member
// before succeeding, to exercise the unit retry loop.
type scriptedLifecycle struct {
	mu       sync.Mutex
	calls    int
	failures int
	err      error

	// block, when set, stalls the first Issue until released.
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func (f *scriptedLifecycle) Issue(ctx context.Context, cmd credservice.IssueCommand) (*credmodels.Credential, error) {
	if f.started != nil {
		f.once.Do(func() { close(f.started) })
		<-f.release
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.failures > 0 {
		f.failures--
		return nil, f.err
	}
	return &credmodels.Credential{
		ID:       id.CredentialID(uuid.New()),
		TenantID: cmd.TenantID,
		MemberID: cmd.MemberID,
		Status:   credmodels.StatusIssued,
	}, nil
}

func (f *scriptedLifecycle) Activate(context.Context, credservice.ActivateCommand) (*credmodels.Credential, error) {
	return nil, dErrors.New(dErrors.CodeInternal, "not scripted")
}

func (f *scriptedLifecycle) Revoke(context.Context, credservice.RevokeCommand) (*credmodels.Credential, error) {
	return nil, dErrors.New(dErrors.CodeInternal, "not scripted")
}

func (f *scriptedLifecycle) attempts() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *scriptedLifecycle) ListByMember(context.Context, id.TenantID, id.MemberID) ([]*credmodels.Credential, error) {
	return nil, nil
}

func runSingleIssue(t *testing.T, lifecycle *scriptedLifecycle) (*models.BatchOperation, *Orchestrator) {
	t.Helper()
	orch := New(store.NewInMemory(), lifecycle, allowAllGate{}, WithRetryBackoff(time.Millisecond))
	ctx := context.Background()
	b, err := orch.Submit(ctx, SubmitCommand{
		TenantID: id.TenantID(uuid.New()), Kind: models.KindIssue,
		Targets: members(1), Policy: models.PolicyContinueOnError,
		SubmittedBy: id.AdminID(uuid.New()),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	final, err := orch.Run(ctx, b.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return final, orch
}

func TestInfrastructureFailuresAreRetried(t *testing.T) {
	lifecycle := &scriptedLifecycle{
		failures: 2,
		err:      dErrors.New(dErrors.CodeUnavailable, "store unreachable"),
	}
	final, _ := runSingleIssue(t, lifecycle)

	if final.Counts.Succeeded != 1 {
		t.Fatalf("expected retries to rescue the unit, got %+v", final.Counts)
	}
	if lifecycle.attempts() != 3 {
		t.Fatalf("expected 3 attempts, got %d", lifecycle.attempts())
	}
}

func TestRetriesExhaustToInfrastructureFailure(t *testing.T) {
	lifecycle := &scriptedLifecycle{
		failures: 10,
		err:      dErrors.New(dErrors.CodeUnavailable, "store unreachable"),
	}
	final, _ := runSingleIssue(t, lifecycle)

	if final.Counts.Failed != 1 {
		t.Fatalf("expected the unit recorded failed, got %+v", final.Counts)
	}
	if lifecycle.attempts() != maxUnitAttempts {
		t.Fatalf("expected %d attempts, got %d", maxUnitAttempts, lifecycle.attempts())
	}
	if len(final.Failures) != 1 || final.Failures[0].Code != dErrors.CodeUnavailable {
		t.Fatalf("expected an infrastructure failure entry, got %+v", final.Failures)
	}
}

func TestBusinessFailuresAreNotRetried(t *testing.T) {
	lifecycle := &scriptedLifecycle{
		failures: 10,
		err:      dErrors.New(dErrors.CodeDuplicateActiveCredential, "member already holds an active credential"),
	}
	final, _ := runSingleIssue(t, lifecycle)

	if final.Counts.Failed != 1 {
		t.Fatalf("expected one failure, got %+v", final.Counts)
	}
	if lifecycle.attempts() != 1 {
		t.Fatalf("business errors must not be retried, got %d attempts", lifecycle.attempts())
	}
}

func TestCancelRunningBatch(t *testing.T) {
	lifecycle := &scriptedLifecycle{
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
	orch := New(store.NewInMemory(), lifecycle, allowAllGate{},
		WithConcurrency(1), WithRetryBackoff(time.Millisecond))
	ctx := context.Background()

	b, err := orch.Submit(ctx, SubmitCommand{
		TenantID: id.TenantID(uuid.New()), Kind: models.KindIssue,
		Targets: members(20), Policy: models.PolicyContinueOnError,
		SubmittedBy: id.AdminID(uuid.New()),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	type result struct {
		batch *models.BatchOperation
		err   error
	}
	done := make(chan result, 1)
	go func() {
		final, err := orch.Run(ctx, b.ID)
		done <- result{final, err}
	}()

	// Wait for the first unit to be in flight, then cancel and release.
	<-lifecycle.started
	var cancelledView *models.BatchOperation
	for {
		cancelledView, err = orch.Cancel(ctx, b.ID)
		if err == nil {
			break
		}
		// Run may not have won the Pending->Running transition yet.
		if !dErrors.HasCode(err, dErrors.CodeInvalidTransition) {
			t.Fatalf("unexpected error cancelling: %v", err)
		}
		time.Sleep(time.Millisecond)
	}
	if cancelledView.Status != models.StatusCancelling && cancelledView.Status != models.StatusCancelled {
		t.Fatalf("expected cancelling, got %s", cancelledView.Status)
	}
	close(lifecycle.release)

	res := <-done
	if res.err != nil {
		t.Fatalf("unexpected error: %v", res.err)
	}
	final := res.batch
	if final.Status != models.StatusCancelled {
		t.Fatalf("expected cancelled, got %s", final.Status)
	}
	if final.Counts.Skipped == 0 {
		t.Fatalf("expected skipped targets after cancel, got %+v", final.Counts)
	}
	// In-flight work completed and its partial results were preserved.
	if final.Counts.Succeeded == 0 {
		t.Fatalf("expected in-flight units to complete, got %+v", final.Counts)
	}
	if got := final.Counts.Succeeded + final.Counts.Failed + final.Counts.Skipped; got != final.Counts.Total {
		t.Fatalf("counts invariant broken: %+v", final.Counts)
	}
}
