package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	sdkmath "cosmossdk.io/math"

	"github.com/pranit-garg/Dispatch/internal/config"
	"github.com/pranit-garg/Dispatch/internal/domain"
	"github.com/pranit-garg/Dispatch/internal/domain/model"
	"github.com/pranit-garg/Dispatch/internal/domain/ports/adapter"
	"github.com/pranit-garg/Dispatch/internal/domain/ports/repository"
	"github.com/pranit-garg/Dispatch/internal/infra/logging"
	"github.com/pranit-garg/Dispatch/internal/infra/metrics"
	"github.com/pranit-garg/Dispatch/internal/registry"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// AssignmentSender delivers an assignment frame to a worker over the
// transport channel.
type AssignmentSender interface {
	Send(ctx context.Context, workerPubkey string, a adapter.Assignment) error
}

// SubmitRequest is an admission request whose payment has already been
// verified upstream; PaidAmount is trusted.
type SubmitRequest struct {
	Type         model.JobType
	Policy       model.Policy
	PrivacyClass model.PrivacyClass
	RequesterID  string
	Payload      model.JobPayload
	PaidAmount   sdkmath.Int
}

// JobUseCase owns job records end-to-end and drives the state machine
// PENDING → ASSIGNED → RUNNING → {COMPLETED, FAILED}.
type JobUseCase interface {
	// Submit validates, creates and persists a job, then starts
	// matching in the background. Validation errors are returned
	// synchronously and the job is never created.
	Submit(ctx context.Context, req SubmitRequest) (*model.Job, error)
	// StartAck records the worker's explicit start acknowledgment.
	StartAck(ctx context.Context, jobID, workerPubkey string) error
	// HandleReceipt verifies a completion receipt. An accepted receipt
	// completes the job and enqueues exactly one settlement; a
	// rejected receipt fails the job terminally.
	HandleReceipt(ctx context.Context, rc *model.Receipt, result json.RawMessage) error
	// ReportFailure is a worker-reported execution failure.
	ReportFailure(ctx context.Context, jobID, workerPubkey, reason string) error
	// Cancel aborts a job while it is still PENDING or ASSIGNED.
	Cancel(ctx context.Context, jobID string) error
	Get(ctx context.Context, jobID string) (*model.Job, error)
}

var _ JobUseCase = (*jobUC)(nil)

// jobEntry is the in-memory ledger slot for one live job. Its mutex is
// the job's critical section; operations on distinct jobs never share
// a lock.
type jobEntry struct {
	mu        sync.Mutex
	job       *model.Job
	paidUSDC  sdkmath.Int
	ackTimer  *time.Timer
	runTimer  *time.Timer
	rematches int
	settled   bool // completion event already enqueued settlement
}

type jobUC struct {
	repo     repository.JobRepository
	reg      *registry.Registry
	matcher  MatchUseCase
	settle   SettlementUseCase
	verifier ReceiptVerifier
	sender   AssignmentSender
	cfg      config.MatchingConfig
	log      *zerolog.Logger

	entries sync.Map // job id → *jobEntry
}

func NewJobUseCase(
	repo repository.JobRepository,
	reg *registry.Registry,
	matcher MatchUseCase,
	settle SettlementUseCase,
	sender AssignmentSender,
	cfg config.MatchingConfig,
	logger *zerolog.Logger,
) JobUseCase {
	return &jobUC{
		repo:     repo,
		reg:      reg,
		matcher:  matcher,
		settle:   settle,
		verifier: NewReceiptVerifier(),
		sender:   sender,
		cfg:      cfg,
		log:      logger,
	}
}

func (u *jobUC) Submit(ctx context.Context, req SubmitRequest) (*model.Job, error) {
	if req.Payload.JobType != req.Type {
		return nil, fmt.Errorf("%w: payload discriminator %q does not match job type %q",
			domain.ErrValidation, req.Payload.JobType, req.Type)
	}
	if err := req.Payload.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}
	if req.RequesterID == "" {
		return nil, fmt.Errorf("%w: missing requester id", domain.ErrValidation)
	}
	if req.PrivacyClass == "" {
		req.PrivacyClass = model.PrivacyPublic
	}

	job := &model.Job{
		ID:           uuid.NewString(),
		Type:         req.Type,
		Policy:       model.ResolvePolicy(req.Policy, req.Type),
		PrivacyClass: req.PrivacyClass,
		RequesterID:  req.RequesterID,
		Status:       model.JobStatusPending,
		Payload:      req.Payload,
		CreatedAt:    time.Now(),
	}
	if err := u.repo.Save(ctx, repository.NoTX, job); err != nil {
		return nil, err
	}

	paid := req.PaidAmount
	if paid.IsNil() {
		paid = sdkmath.ZeroInt()
	}
	e := &jobEntry{job: job, paidUSDC: paid}
	u.entries.Store(job.ID, e)
	metrics.JobAdmitted()
	u.log.Info().Str("job_id", job.ID).Str("type", string(job.Type)).
		Str("policy", string(job.Policy)).Str("privacy", string(job.PrivacyClass)).
		Msg("job admitted")

	go u.matchLoop(e)
	cp := *job
	return &cp, nil
}

// matchLoop drives a job from PENDING to ASSIGNED, retrying with
// backoff until the matching budget expires.
func (u *jobUC) matchLoop(e *jobEntry) {
	ctx := context.Background()

	e.mu.Lock()
	if e.job.Status != model.JobStatusPending {
		e.mu.Unlock()
		return
	}
	snapshot := *e.job
	e.mu.Unlock()

	// Matching runs outside the job lock; the claim on the worker is
	// the atomic step, and the transition below re-checks state.
	worker, err := u.matcher.AssignWithRetry(ctx, &snapshot)
	if err != nil {
		metrics.IncMatch("no_worker")
		u.failJob(e, domain.ErrNoWorkerAvailable.Error())
		return
	}

	e.mu.Lock()
	if e.job.Status != model.JobStatusPending {
		// canceled (or failed) while we were matching
		e.mu.Unlock()
		u.reg.Release(worker.Pubkey, e.job.ID)
		return
	}
	e.job.Status = model.JobStatusAssigned
	e.job.WorkerPubkey = worker.Pubkey
	e.job.AssignedAt = time.Now()
	jobID := e.job.ID
	assignment := adapter.Assignment{
		JobID:        e.job.ID,
		JobType:      e.job.Type,
		Payload:      e.job.Payload,
		Policy:       e.job.Policy,
		PrivacyClass: e.job.PrivacyClass,
	}
	e.ackTimer = time.AfterFunc(u.cfg.AckWindow, func() { u.revoke(jobID) })
	u.persistLocked(e)
	e.mu.Unlock()

	metrics.ObserveMatchLatency(time.Since(snapshot.CreatedAt).Seconds())
	u.log.Info().Str("job_id", jobID).
		Str("worker", logging.Redact(worker.Pubkey, false)).Msg("job assigned")

	if err := u.sender.Send(ctx, worker.Pubkey, assignment); err != nil {
		u.log.Warn().Err(err).Str("job_id", jobID).Msg("assignment delivery failed")
		u.revoke(jobID)
	}
}

// revoke returns a silent ASSIGNED job to PENDING for rematching. The
// worker is released and the revocation counted against it; the job
// fails terminally once its rematch budget is spent.
func (u *jobUC) revoke(jobID string) {
	v, ok := u.entries.Load(jobID)
	if !ok {
		return
	}
	e := v.(*jobEntry)

	e.mu.Lock()
	if e.job.Status != model.JobStatusAssigned {
		e.mu.Unlock()
		return
	}
	worker := e.job.WorkerPubkey
	stopTimersLocked(e)
	e.job.Status = model.JobStatusPending
	e.job.WorkerPubkey = ""
	e.job.AssignedAt = time.Time{}
	e.rematches++
	rematches := e.rematches
	exhausted := rematches > u.cfg.MaxRematches
	u.persistLocked(e)
	e.mu.Unlock()

	u.reg.Release(worker, jobID)
	u.reg.RecordRevocation(worker)
	metrics.IncRevocation()
	u.log.Warn().Str("job_id", jobID).Str("worker", logging.Redact(worker, false)).
		Int("rematches", rematches).Msg("assignment revoked")

	if exhausted {
		u.failJob(e, domain.ErrAssignmentTimeout.Error())
		return
	}
	go u.matchLoop(e)
}

func (u *jobUC) StartAck(ctx context.Context, jobID, workerPubkey string) error {
	e, terminal := u.entry(jobID)
	if e == nil {
		if terminal {
			return nil // duplicate delivery after the job ended
		}
		return domain.ErrNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.job.Status.Terminal() {
		return nil
	}
	if e.job.Status != model.JobStatusAssigned || e.job.WorkerPubkey != workerPubkey {
		return domain.ErrInvalidTransition
	}
	stopTimersLocked(e)
	e.job.Status = model.JobStatusRunning
	e.job.StartedAt = time.Now()
	e.runTimer = time.AfterFunc(u.cfg.RunningTimeout, func() {
		u.timeoutRunning(jobID)
	})
	u.persistLocked(e)
	u.log.Debug().Str("job_id", jobID).Msg("job running")
	return nil
}

func (u *jobUC) HandleReceipt(ctx context.Context, rc *model.Receipt, result json.RawMessage) error {
	e, terminal := u.entry(rc.JobID)
	if e == nil {
		if terminal {
			return nil // terminal states absorb duplicates
		}
		return domain.ErrReceiptStale
	}

	e.mu.Lock()
	if e.job.Status.Terminal() {
		e.mu.Unlock()
		return nil
	}
	if err := u.verifier.Verify(e.job, rc); err != nil {
		u.log.Warn().Err(err).Str("job_id", rc.JobID).
			Str("claimed_worker", logging.Redact(rc.WorkerPubkey, false)).
			Msg("receipt rejected")
		e.mu.Unlock()
		if errors.Is(err, domain.ErrReceiptStale) {
			// The job is not RUNNING; it is still matching or waiting
			// for an ack, and an out-of-phase receipt must not end it.
			return err
		}
		// An identity or signature rejection of a RUNNING job is
		// terminal.
		u.failJob(e, fmt.Sprintf("receipt rejected: %v", err))
		return err
	}

	stopTimersLocked(e)
	e.job.Status = model.JobStatusCompleted
	e.job.Result = result
	e.job.CompletedAt = time.Now()
	worker := e.job.WorkerPubkey
	jobSnapshot := *e.job
	paid := e.paidUSDC
	enqueue := !e.settled
	e.settled = true
	u.persistLocked(e)
	e.mu.Unlock()

	u.reg.Release(worker, rc.JobID)
	u.finish(&jobSnapshot)

	if enqueue {
		// Settlement runs outside any per-job lock; its latency and
		// failures never touch the COMPLETED status.
		go func() {
			addr := worker
			if w, err := u.reg.Get(worker); err == nil && w.SettlementAddress != "" {
				addr = w.SettlementAddress
			}
			if _, err := u.settle.Settle(context.Background(), &jobSnapshot, addr, paid); err != nil {
				u.log.Error().Err(err).Str("job_id", jobSnapshot.ID).Msg("settlement pipeline error")
			}
		}()
	}
	u.log.Info().Str("job_id", rc.JobID).Str("output_hash", rc.OutputHash).Msg("job completed")
	return nil
}

func (u *jobUC) ReportFailure(ctx context.Context, jobID, workerPubkey, reason string) error {
	e, terminal := u.entry(jobID)
	if e == nil {
		if terminal {
			return nil
		}
		return domain.ErrNotFound
	}
	u.failJobIf(e, "worker failure: "+reason, func(j *model.Job) bool {
		return j.WorkerPubkey == workerPubkey
	})
	return nil
}

func (u *jobUC) Cancel(ctx context.Context, jobID string) error {
	e, terminal := u.entry(jobID)
	if e == nil {
		if terminal {
			return domain.ErrJobNotCancelable
		}
		return domain.ErrNotFound
	}
	// Once the worker acknowledged, the job must reach a terminal
	// state through completion or timeout; the check and the
	// transition share one critical section so a concurrent ack
	// cannot slip between them.
	ok := u.failJobIf(e, "canceled by requester", func(j *model.Job) bool {
		return j.Status == model.JobStatusPending || j.Status == model.JobStatusAssigned
	})
	if !ok {
		return domain.ErrJobNotCancelable
	}
	return nil
}

func (u *jobUC) Get(ctx context.Context, jobID string) (*model.Job, error) {
	if v, ok := u.entries.Load(jobID); ok {
		e := v.(*jobEntry)
		e.mu.Lock()
		cp := *e.job
		e.mu.Unlock()
		return &cp, nil
	}
	return u.repo.FindByID(ctx, repository.NoTX, jobID)
}

func (u *jobUC) timeoutRunning(jobID string) {
	v, ok := u.entries.Load(jobID)
	if !ok {
		return
	}
	e := v.(*jobEntry)
	u.failJobIf(e, "running timeout", func(j *model.Job) bool {
		return j.Status == model.JobStatusRunning
	})
}

// failJob drives any non-terminal job to FAILED, releasing whatever
// worker held it and posting negative feedback when one did.
func (u *jobUC) failJob(e *jobEntry, reason string) {
	u.failJobIf(e, reason, func(*model.Job) bool { return true })
}

// failJobIf fails the job only while allow(job) holds under the entry
// lock. Callers must not pre-check status outside the lock; the
// predicate is the check.
func (u *jobUC) failJobIf(e *jobEntry, reason string, allow func(*model.Job) bool) bool {
	e.mu.Lock()
	if e.job.Status.Terminal() || !allow(e.job) {
		e.mu.Unlock()
		return false
	}
	stopTimersLocked(e)
	worker := e.job.WorkerPubkey
	e.job.Status = model.JobStatusFailed
	e.job.FailReason = reason
	e.job.CompletedAt = time.Now()
	jobSnapshot := *e.job
	u.persistLocked(e)
	e.mu.Unlock()

	if worker != "" {
		u.reg.Release(worker, jobSnapshot.ID)
		u.settle.NotifyOutcome(worker, jobSnapshot.ID, false)
	}
	u.finish(&jobSnapshot)
	u.log.Info().Str("job_id", jobSnapshot.ID).Str("reason", reason).Msg("job failed")
	return true
}

// finish retires a terminal job from the live ledger; later lookups go
// to the repository, where the terminal row absorbs duplicates.
func (u *jobUC) finish(job *model.Job) {
	u.entries.Delete(job.ID)
	metrics.JobFinished()
	metrics.IncJobTerminal(string(job.Status), string(job.Type))
}

// entry returns the live ledger slot, or (nil, true) when the job is
// known but already terminal in the repository.
func (u *jobUC) entry(jobID string) (*jobEntry, bool) {
	if v, ok := u.entries.Load(jobID); ok {
		return v.(*jobEntry), false
	}
	job, err := u.repo.FindByID(context.Background(), repository.NoTX, jobID)
	if err == nil && job.Status.Terminal() {
		return nil, true
	}
	return nil, false
}

func (u *jobUC) persistLocked(e *jobEntry) {
	if err := u.repo.Save(context.Background(), repository.NoTX, e.job); err != nil {
		u.log.Error().Err(err).Str("job_id", e.job.ID).Msg("job persist failed")
	}
}

func stopTimersLocked(e *jobEntry) {
	if e.ackTimer != nil {
		e.ackTimer.Stop()
		e.ackTimer = nil
	}
	if e.runTimer != nil {
		e.runTimer.Stop()
		e.runTimer = nil
	}
}
