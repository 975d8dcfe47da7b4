package usecase

import (
	"context"
	"errors"
	"time"

	sdkmath "cosmossdk.io/math"

	"github.com/pranit-garg/Dispatch/internal/domain"
	"github.com/pranit-garg/Dispatch/internal/domain/model"
	"github.com/pranit-garg/Dispatch/internal/domain/ports/adapter"
	"github.com/pranit-garg/Dispatch/internal/domain/ports/repository"
	"github.com/pranit-garg/Dispatch/internal/infra/logging"
	"github.com/pranit-garg/Dispatch/internal/infra/metrics"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"
)

// settleLockTTL bounds how long one pipeline run may hold the per-job
// settlement lock; external calls inside are individually shorter.
const settleLockTTL = 30 * time.Second

// Locker serializes settlement runs for one job id across instances.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (token string, err error)
	Unlock(ctx context.Context, key, token string) error
}

// TaskRunner accepts fire-and-forget work (the reputation posts).
type TaskRunner interface {
	Submit(task func(ctx context.Context) error) error
}

// SettlementUseCase converts a completed job's verified payment into a
// worker payout: swap the stablecoin for the reward token, take the
// protocol fee, distribute, and post outcome feedback. Every stage is
// idempotent; the job's COMPLETED status never depends on any of it.
type SettlementUseCase interface {
	// Settle runs the pipeline for one job. It creates the record on
	// first call; later calls (sweep retries, duplicate completion
	// events) resume from whatever stage the record reached and return
	// the existing transaction references unchanged once distributed.
	Settle(ctx context.Context, job *model.Job, workerAddress string, usdcAmount sdkmath.Int) (*model.SettlementRecord, error)
	// Resume re-runs the pipeline for a persisted record, used by the
	// periodic sweep.
	Resume(ctx context.Context, rec *model.SettlementRecord) error
	// NotifyOutcome posts job-outcome feedback to the reputation
	// ledger, fire-and-forget: at most once, never retried, failures
	// logged and swallowed.
	NotifyOutcome(workerPubkey, jobID string, success bool)
}

var _ SettlementUseCase = (*settlementUC)(nil)

type settlementUC struct {
	records repository.SettlementRepository
	venue   adapter.SwapVenue
	dist    adapter.Distributor
	ledger  adapter.ReputationLedger
	locker  Locker
	runner  TaskRunner
	feeBps  int64
	log     *zerolog.Logger
}

func NewSettlementUseCase(
	records repository.SettlementRepository,
	venue adapter.SwapVenue,
	dist adapter.Distributor,
	ledger adapter.ReputationLedger,
	locker Locker,
	runner TaskRunner,
	logger *zerolog.Logger,
) SettlementUseCase {
	return &settlementUC{
		records: records,
		venue:   venue,
		dist:    dist,
		ledger:  ledger,
		locker:  locker,
		runner:  runner,
		feeBps:  model.ProtocolFeeBps,
		log:     logger,
	}
}

func (s *settlementUC) Settle(ctx context.Context, job *model.Job, workerAddress string, usdcAmount sdkmath.Int) (*model.SettlementRecord, error) {
	key := "settle:" + job.ID
	token, err := s.locker.TryLock(ctx, key, settleLockTTL)
	if err != nil {
		// A concurrent run holds the lock; whatever record exists is
		// the answer. Exactly one payout happens either way.
		if rec, ferr := s.records.FindByJobID(ctx, repository.NoTX, job.ID); ferr == nil {
			return rec, nil
		}
		return nil, domain.ErrSettlementLocked
	}
	defer func() { _ = s.locker.Unlock(ctx, key, token) }()

	rec, err := s.records.FindByJobID(ctx, repository.NoTX, job.ID)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		rec = &model.SettlementRecord{
			ID:            ulid.Make().String(),
			JobID:         job.ID,
			WorkerPubkey:  job.WorkerPubkey,
			USDCAmount:    usdcAmount,
			SwappedAmount: sdkmath.ZeroInt(),
			Fee:           sdkmath.ZeroInt(),
			Payout:        sdkmath.ZeroInt(),
			Status:        model.SettlementPending,
			CreatedAt:     time.Now(),
		}
		if cerr := s.records.Create(ctx, repository.NoTX, rec); cerr != nil {
			if errors.Is(cerr, domain.ErrAlreadyExists) {
				// lost a race with another instance before locking
				return s.records.FindByJobID(ctx, repository.NoTX, job.ID)
			}
			return nil, cerr
		}
	case err != nil:
		return nil, err
	}

	if err := s.run(ctx, rec, workerAddress); err != nil {
		return rec, err
	}
	return rec, nil
}

func (s *settlementUC) Resume(ctx context.Context, rec *model.SettlementRecord) error {
	key := "settle:" + rec.JobID
	token, err := s.locker.TryLock(ctx, key, settleLockTTL)
	if err != nil {
		return domain.ErrSettlementLocked
	}
	defer func() { _ = s.locker.Unlock(ctx, key, token) }()

	// Re-read under the lock; the record may have advanced since the
	// sweep listed it.
	fresh, err := s.records.FindByJobID(ctx, repository.NoTX, rec.JobID)
	if err != nil {
		return err
	}
	return s.run(ctx, fresh, "")
}

// run drives the record through swap → fee → distribute → feedback.
// workerAddress may be empty on sweep resumes; the distributor then
// derives the associated token account from the worker pubkey.
func (s *settlementUC) run(ctx context.Context, rec *model.SettlementRecord, workerAddress string) error {
	if rec.Distributed() || rec.Status == model.SettlementConfirmedZero {
		return nil
	}
	log := s.log.With().Str("job_id", rec.JobID).Str("settlement_id", rec.ID).Logger()

	// Stage 1: swap quote + execution.
	if rec.Status == model.SettlementPending || rec.Status == model.SettlementPendingRetry {
		quote, err := s.venue.Swap(ctx, rec.USDCAmount)
		if err != nil {
			// Venue unavailability is never fatal: park the record for
			// the sweep instead of conflating it with a zero quote.
			rec.Status = model.SettlementPendingRetry
			rec.Attempts++
			rec.UpdatedAt = time.Now()
			if uerr := s.records.Update(ctx, repository.NoTX, rec); uerr != nil {
				return uerr
			}
			metrics.IncSettlement(string(rec.Status))
			log.Warn().Err(err).Int("attempts", rec.Attempts).Msg("swap venue unavailable, settlement parked")
			return nil
		}
		rec.SwappedAmount = quote.OutAmount
		rec.SwapTxRef = quote.TxRef
		if quote.OutAmount.IsZero() {
			rec.Status = model.SettlementConfirmedZero
			rec.UpdatedAt = time.Now()
			if uerr := s.records.Update(ctx, repository.NoTX, rec); uerr != nil {
				return uerr
			}
			metrics.IncSettlement(string(rec.Status))
			s.NotifyOutcome(rec.WorkerPubkey, rec.JobID, true)
			return nil
		}
		// Stage 2: integer fee split, exact by construction.
		rec.Fee, rec.Payout = model.SplitFee(rec.SwappedAmount, s.feeBps)
		rec.Status = model.SettlementSwapped
		rec.UpdatedAt = time.Now()
		if uerr := s.records.Update(ctx, repository.NoTX, rec); uerr != nil {
			return uerr
		}
	}

	// Stage 3: distribute. Confirmed refs make repeats no-ops.
	if rec.PayoutTxRef == "" {
		addr := workerAddress
		if addr == "" {
			addr = rec.WorkerPubkey
		}
		txRef, err := s.dist.TransferPayout(ctx, addr, rec.Payout)
		if err != nil {
			rec.Attempts++
			rec.UpdatedAt = time.Now()
			_ = s.records.Update(ctx, repository.NoTX, rec)
			log.Warn().Err(err).Msg("payout transfer failed, will be swept")
			return nil
		}
		rec.PayoutTxRef = txRef
		rec.UpdatedAt = time.Now()
		if uerr := s.records.Update(ctx, repository.NoTX, rec); uerr != nil {
			return uerr
		}
	}
	if rec.BurnTxRef == "" {
		txRef, err := s.dist.BurnFee(ctx, rec.Fee)
		if err != nil {
			rec.Attempts++
			rec.UpdatedAt = time.Now()
			_ = s.records.Update(ctx, repository.NoTX, rec)
			log.Warn().Err(err).Msg("fee burn failed, will be swept")
			return nil
		}
		rec.BurnTxRef = txRef
		rec.UpdatedAt = time.Now()
		if uerr := s.records.Update(ctx, repository.NoTX, rec); uerr != nil {
			return uerr
		}
	}

	rec.Status = model.SettlementDistributed
	rec.UpdatedAt = time.Now()
	if err := s.records.Update(ctx, repository.NoTX, rec); err != nil {
		return err
	}
	metrics.IncSettlement(string(rec.Status))
	log.Info().Str("payout_tx", rec.PayoutTxRef).Str("burn_tx", rec.BurnTxRef).
		Str("payout", rec.Payout.String()).Str("fee", rec.Fee.String()).
		Msg("settlement distributed")

	// Stage 4: feedback, fire-and-forget.
	s.NotifyOutcome(rec.WorkerPubkey, rec.JobID, true)
	return nil
}

func (s *settlementUC) NotifyOutcome(workerPubkey, jobID string, success bool) {
	score := 80
	if !success {
		score = 20
	}
	fb := adapter.Feedback{
		WorkerPubkey: workerPubkey,
		JobID:        jobID,
		Score:        score,
		JobType:      "COMPUTE",
	}
	err := s.runner.Submit(func(ctx context.Context) error {
		if _, err := s.ledger.PostFeedback(ctx, fb); err != nil {
			metrics.IncReputationPost("error")
			s.log.Warn().Err(err).Str("job_id", jobID).
				Str("worker", logging.Redact(workerPubkey, false)).
				Msg("reputation post failed")
			return nil // swallowed: at-most-once, never retried
		}
		metrics.IncReputationPost("ok")
		return nil
	})
	if err != nil {
		metrics.IncReputationPost("error")
		s.log.Warn().Err(err).Str("job_id", jobID).Msg("reputation post dropped")
	}
}
