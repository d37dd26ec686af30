// Package service implements the batch orchestrator. It partitions a bulk
// request into independently retryable units, drives each through the
// credential lifecycle engine on a bounded worker pool, and aggregates a
// bounded result summary. The orchestrator owns the batch record; the
// lifecycle engine has no knowledge of batches.
package service

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	batchmetrics "github.com/dr-roshyara/public-digit-sub008/internal/batch/metrics"
	"github.com/dr-roshyara/public-digit-sub008/internal/batch/models"
	credmodels "github.com/dr-roshyara/public-digit-sub008/internal/credential/models"
	credservice "github.com/dr-roshyara/public-digit-sub008/internal/credential/service"
	id "github.com/dr-roshyara/public-digit-sub008/pkg/domain"
	dErrors "github.com/dr-roshyara/public-digit-sub008/pkg/domain-errors"
	"github.com/dr-roshyara/public-digit-sub008/pkg/platform/events"
	"github.com/dr-roshyara/public-digit-sub008/pkg/platform/middleware/request"
	"github.com/dr-roshyara/public-digit-sub008/pkg/platform/middleware/requesttime"
)

const (
	// DefaultConcurrency bounds the worker pool per batch.
	DefaultConcurrency = 16

	// maxUnitAttempts bounds retries for infrastructure failures within a
	// unit. Business-rule failures are never retried.
	maxUnitAttempts = 3

	// cancelCheckStride controls how often the dispatch loop re-reads the
	// batch status from the store, so a Cancel issued from another process
	// is observed without polling on every unit.
	cancelCheckStride = 64
)

// Orchestrator drives batch operations to completion.
type Orchestrator struct {
	batches      BatchStore
	lifecycle    Lifecycle
	gate         ModuleGate
	logger       *slog.Logger
	emitter      events.Emitter
	metrics      *batchmetrics.Metrics
	moduleName   string
	concurrency  int
	retryBackoff time.Duration

	// running tracks in-process cancel flags for batches this instance is
	// currently dispatching.
	running sync.Map // id.BatchID -> *atomic.Bool
}

// New creates a batch orchestrator.
func New(batches BatchStore, lifecycle Lifecycle, gate ModuleGate, opts ...Option) *Orchestrator {
	cfg := &orchestratorConfig{
		moduleName:   credservice.DefaultModuleName,
		concurrency:  DefaultConcurrency,
		retryBackoff: 50 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return &Orchestrator{
		batches:      batches,
		lifecycle:    lifecycle,
		gate:         gate,
		logger:       cfg.logger,
		emitter:      cfg.emitter,
		metrics:      cfg.metrics,
		moduleName:   cfg.moduleName,
		concurrency:  cfg.concurrency,
		retryBackoff: cfg.retryBackoff,
	}
}

// SubmitCommand carries the inputs for submitting a batch.
type SubmitCommand struct {
	TenantID    id.TenantID
	Kind        models.OperationKind
	Targets     []id.MemberID
	Policy      models.Policy
	Reason      string
	DryRun      bool
	SubmittedBy id.AdminID
}

// Submit validates the request and persists a Pending batch. With DryRun set
// it instead evaluates every precondition, classifies each target exactly as
// a real run would, and persists the terminal record without a single
// credential store write.
func (o *Orchestrator) Submit(ctx context.Context, cmd SubmitCommand) (*models.BatchOperation, error) {
	policy := cmd.Policy
	if policy == "" {
		policy = models.PolicyContinueOnError
	}

	b, err := models.NewBatch(cmd.TenantID, cmd.Kind, cmd.Targets, policy, cmd.Reason, cmd.DryRun, cmd.SubmittedBy, requesttime.Now(ctx))
	if err != nil {
		return nil, err
	}

	if b.DryRun {
		o.classifyDryRun(ctx, b)
	}

	if err := o.batches.Create(ctx, b); err != nil {
		return nil, wrapBatchErr(err, "failed to create batch")
	}
	if o.metrics != nil {
		o.metrics.IncrementSubmitted(string(b.Kind))
	}
	if b.DryRun {
		o.emitCompleted(ctx, b)
	}
	return b, nil
}

// Run drives a Pending batch to a terminal state and returns the final
// record. Exactly one caller wins the Pending->Running transition; the rest
// fail with invalid_transition.
func (o *Orchestrator) Run(ctx context.Context, batchID id.BatchID) (*models.BatchOperation, error) {
	if batchID.IsNil() {
		return nil, dErrors.New(dErrors.CodeBadRequest, "batch ID required")
	}
	b, err := o.batches.FindByID(ctx, batchID)
	if err != nil {
		return nil, wrapBatchErr(err, "failed to load batch")
	}
	if b.DryRun {
		return nil, dErrors.New(dErrors.CodeInvalidTransition, "dry-run batches do not run")
	}
	if err := o.batches.Transition(ctx, b.ID, models.StatusPending, models.StatusRunning); err != nil {
		return nil, wrapBatchErr(err, "failed to start batch")
	}
	b.Status = models.StatusRunning

	cancelled := &atomic.Bool{}
	o.running.Store(b.ID, cancelled)
	defer o.running.Delete(b.ID)

	start := time.Now()

	// Tenant-wide precondition, evaluated once before any unit dispatches.
	// A business failure here rejects the whole batch with zero credential
	// store writes; an infrastructure failure hands the batch back to
	// Pending so Run can be retried.
	if err := o.gate.EnsureInstalled(ctx, b.TenantID, o.moduleName); err != nil {
		if !dErrors.IsBusiness(err) {
			if trErr := o.batches.Transition(ctx, b.ID, models.StatusRunning, models.StatusPending); trErr != nil && o.logger != nil {
				o.logger.ErrorContext(ctx, "failed to return batch to pending", "batch_id", b.ID, "error", trErr)
			}
			return nil, err
		}
		b.Counts.Skipped = b.Counts.Total
		b.RecordFailure(id.MemberID{}, dErrors.CodeOf(err), err.Error())
		return o.finalize(ctx, b, false, start)
	}

	outcomes := o.dispatch(ctx, b, cancelled)
	for _, u := range outcomes {
		switch {
		case u.skipped:
			b.Counts.Skipped++
		case u.err == nil:
			b.Counts.Succeeded++
		default:
			b.Counts.Failed++
			b.RecordFailure(u.member, dErrors.CodeOf(u.err), u.err.Error())
		}
	}

	return o.finalize(ctx, b, cancelled.Load(), start)
}

// Cancel stops further dispatch of a batch. Pending batches cancel outright;
// Running batches move to Cancelling, in-flight units complete, and the run
// finishes as Cancelled with partial results preserved.
func (o *Orchestrator) Cancel(ctx context.Context, batchID id.BatchID) (*models.BatchOperation, error) {
	if batchID.IsNil() {
		return nil, dErrors.New(dErrors.CodeBadRequest, "batch ID required")
	}
	b, err := o.batches.FindByID(ctx, batchID)
	if err != nil {
		return nil, wrapBatchErr(err, "failed to load batch")
	}

	if b.Status == models.StatusPending {
		if err := o.batches.Transition(ctx, b.ID, models.StatusPending, models.StatusCancelled); err == nil {
			b.Counts.Skipped = b.Counts.Total
			b.Finalize(true, requesttime.Now(ctx))
			if err := o.batches.Save(ctx, b); err != nil {
				return nil, wrapBatchErr(err, "failed to save cancelled batch")
			}
			o.emitCompleted(ctx, b)
			if o.metrics != nil {
				o.metrics.IncrementCompleted(string(b.Status))
			}
			return b, nil
		}
		// Lost the race to Run; fall through with a fresh read.
		if b, err = o.batches.FindByID(ctx, batchID); err != nil {
			return nil, wrapBatchErr(err, "failed to load batch")
		}
	}

	switch b.Status {
	case models.StatusRunning:
		if err := o.batches.Transition(ctx, b.ID, models.StatusRunning, models.StatusCancelling); err != nil {
			return nil, wrapBatchErr(err, "failed to cancel batch")
		}
		b.Status = models.StatusCancelling
		if flag, ok := o.running.Load(b.ID); ok {
			flag.(*atomic.Bool).Store(true)
		}
		return b, nil
	case models.StatusCancelling:
		// Idempotent; the running dispatcher already observed the signal.
		return b, nil
	default:
		return nil, dErrors.New(dErrors.CodeInvalidTransition, "batch is "+string(b.Status))
	}
}

// GetBatch returns the tenant's batch record.
func (o *Orchestrator) GetBatch(ctx context.Context, tenantID id.TenantID, batchID id.BatchID) (*models.BatchOperation, error) {
	if tenantID.IsNil() {
		return nil, dErrors.New(dErrors.CodeBadRequest, "tenant ID required")
	}
	if batchID.IsNil() {
		return nil, dErrors.New(dErrors.CodeBadRequest, "batch ID required")
	}
	b, err := o.batches.FindByID(ctx, batchID)
	if err != nil {
		return nil, wrapBatchErr(err, "failed to load batch")
	}
	if b.TenantID != tenantID {
		return nil, dErrors.New(dErrors.CodeNotFound, "batch not found")
	}
	return b, nil
}

// unitOutcome is one target's result. Outcomes are index-addressed per
// target, so workers never share a slot.
type unitOutcome struct {
	member  id.MemberID
	err     error
	skipped bool
}

// dispatch fans targets out to the worker pool. Each target is one unit; a
// member never runs on two workers within the same batch because targets are
// deduplicated at submit. Under fail-fast the first failure stops new
// dispatch while in-flight units complete.
func (o *Orchestrator) dispatch(ctx context.Context, b *models.BatchOperation, cancelled *atomic.Bool) []unitOutcome {
	outcomes := make([]unitOutcome, len(b.Targets))
	var stop atomic.Bool

	var g errgroup.Group
	g.SetLimit(o.concurrency)

	for i, member := range b.Targets {
		if i > 0 && i%cancelCheckStride == 0 {
			o.observeRemoteCancel(ctx, b.ID, cancelled)
		}
		if stop.Load() || cancelled.Load() {
			outcomes[i] = unitOutcome{member: member, skipped: true}
			continue
		}

		i, member := i, member
		g.Go(func() error {
			err := o.runUnit(ctx, b, member)
			outcomes[i] = unitOutcome{member: member, err: err}
			if err != nil && b.Policy == models.PolicyFailFast {
				stop.Store(true)
			}
			return nil
		})
	}
	g.Wait()

	return outcomes
}

// runUnit applies the batch operation to one member, retrying infrastructure
// failures with bounded backoff. Business-rule failures surface immediately.
func (o *Orchestrator) runUnit(ctx context.Context, b *models.BatchOperation, member id.MemberID) error {
	var err error
	for attempt := 0; attempt < maxUnitAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return dErrors.Wrap(ctx.Err(), dErrors.CodeTimeout, "batch unit cancelled")
			case <-time.After(o.retryBackoff << (attempt - 1)):
			}
		}
		if err = o.applyUnit(ctx, b, member); err == nil || dErrors.IsBusiness(err) {
			return err
		}
		if o.logger != nil {
			o.logger.WarnContext(ctx, "batch unit retry",
				"batch_id", b.ID, "member_id", member, "attempt", attempt+1, "error", err)
		}
	}
	return err
}

func (o *Orchestrator) applyUnit(ctx context.Context, b *models.BatchOperation, member id.MemberID) error {
	switch b.Kind {
	case models.KindIssue:
		_, err := o.lifecycle.Issue(ctx, credservice.IssueCommand{
			TenantID: b.TenantID,
			MemberID: member,
			IssuedBy: b.SubmittedBy,
		})
		return err
	case models.KindActivate:
		c, err := o.resolveTarget(ctx, b.TenantID, member, credmodels.StatusIssued)
		if err != nil {
			return err
		}
		_, err = o.lifecycle.Activate(ctx, credservice.ActivateCommand{
			TenantID:     b.TenantID,
			CredentialID: c.ID,
			ActivatedBy:  b.SubmittedBy,
		})
		return err
	case models.KindRevoke:
		c, err := o.resolveTarget(ctx, b.TenantID, member, credmodels.StatusActive, credmodels.StatusIssued)
		if err != nil {
			return err
		}
		_, err = o.lifecycle.Revoke(ctx, credservice.RevokeCommand{
			TenantID:     b.TenantID,
			CredentialID: c.ID,
			RevokedBy:    b.SubmittedBy,
			Reason:       b.Reason,
		})
		return err
	}
	return dErrors.New(dErrors.CodeInternal, "unknown operation kind")
}

// resolveTarget finds the member's credential to operate on: the newest one
// in the first matching status, statuses in preference order.
func (o *Orchestrator) resolveTarget(ctx context.Context, tenantID id.TenantID, member id.MemberID, statuses ...credmodels.Status) (*credmodels.Credential, error) {
	list, err := o.lifecycle.ListByMember(ctx, tenantID, member)
	if err != nil {
		return nil, err
	}
	for _, status := range statuses {
		for _, c := range list {
			if c.Status == status {
				return c, nil
			}
		}
	}
	return nil, dErrors.New(dErrors.CodeNotFound, "member has no eligible credential")
}

// classifyDryRun evaluates every precondition a real run would hit, without
// any mutating call, and records the identical per-target classification.
func (o *Orchestrator) classifyDryRun(ctx context.Context, b *models.BatchOperation) {
	if err := o.gate.EnsureInstalled(ctx, b.TenantID, o.moduleName); err != nil {
		b.Counts.Skipped = b.Counts.Total
		b.RecordFailure(id.MemberID{}, dErrors.CodeOf(err), err.Error())
		b.Finalize(false, requesttime.Now(ctx))
		return
	}

	stopped := false
	for _, member := range b.Targets {
		if stopped {
			b.Counts.Skipped++
			continue
		}
		if err := o.classifyUnit(ctx, b, member); err != nil {
			b.Counts.Failed++
			b.RecordFailure(member, dErrors.CodeOf(err), err.Error())
			if b.Policy == models.PolicyFailFast {
				stopped = true
			}
			continue
		}
		b.Counts.Succeeded++
	}
	b.Finalize(false, requesttime.Now(ctx))
}

// classifyUnit predicts a unit's outcome from current state.
func (o *Orchestrator) classifyUnit(ctx context.Context, b *models.BatchOperation, member id.MemberID) error {
	switch b.Kind {
	case models.KindIssue:
		// Issuance has no per-member precondition beyond the module gate.
		return nil
	case models.KindActivate:
		list, err := o.lifecycle.ListByMember(ctx, b.TenantID, member)
		if err != nil {
			return err
		}
		for _, c := range list {
			if c.Status == credmodels.StatusActive {
				return dErrors.New(dErrors.CodeDuplicateActiveCredential, "member already holds an active credential")
			}
		}
		for _, c := range list {
			if c.Status == credmodels.StatusIssued {
				return nil
			}
		}
		return dErrors.New(dErrors.CodeNotFound, "member has no eligible credential")
	case models.KindRevoke:
		_, err := o.resolveTarget(ctx, b.TenantID, member, credmodels.StatusActive, credmodels.StatusIssued)
		return err
	}
	return dErrors.New(dErrors.CodeInternal, "unknown operation kind")
}

// observeRemoteCancel picks up a Cancelling status written by another
// process.
func (o *Orchestrator) observeRemoteCancel(ctx context.Context, batchID id.BatchID, cancelled *atomic.Bool) {
	if cancelled.Load() {
		return
	}
	fresh, err := o.batches.FindByID(ctx, batchID)
	if err != nil {
		return
	}
	if fresh.Status == models.StatusCancelling {
		cancelled.Store(true)
	}
}

// finalize derives the terminal status, persists the snapshot, and emits the
// completion event.
func (o *Orchestrator) finalize(ctx context.Context, b *models.BatchOperation, wasCancelled bool, start time.Time) (*models.BatchOperation, error) {
	b.Finalize(wasCancelled, requesttime.Now(ctx))
	if err := o.batches.Save(ctx, b); err != nil {
		return nil, wrapBatchErr(err, "failed to save batch result")
	}

	o.emitCompleted(ctx, b)
	if o.metrics != nil {
		o.metrics.IncrementCompleted(string(b.Status))
		o.metrics.AddUnitOutcomes("succeeded", b.Counts.Succeeded)
		o.metrics.AddUnitOutcomes("failed", b.Counts.Failed)
		o.metrics.AddUnitOutcomes("skipped", b.Counts.Skipped)
		o.metrics.ObserveBatchDuration(time.Since(start).Seconds())
	}
	return b, nil
}

func (o *Orchestrator) emitCompleted(ctx context.Context, b *models.BatchOperation) {
	event := events.Event{
		Kind:     events.KindBatchCompleted,
		TenantID: b.TenantID,
		BatchID:  b.ID,
		ActorID:  b.SubmittedBy,
	}
	if requestID := request.GetRequestID(ctx); requestID != "" {
		event.RequestID = requestID
	}
	if o.logger != nil {
		o.logger.InfoContext(ctx, string(event.Kind),
			"batch_id", b.ID,
			"tenant_id", b.TenantID,
			"status", b.Status,
			"succeeded", b.Counts.Succeeded,
			"failed", b.Counts.Failed,
			"skipped", b.Counts.Skipped,
			"log_type", "audit",
		)
	}
	if o.emitter == nil {
		return
	}
	if err := o.emitter.Emit(ctx, event); err != nil && o.logger != nil {
		o.logger.ErrorContext(ctx, "failed to emit batch event", "batch_id", b.ID, "error", err)
	}
}
