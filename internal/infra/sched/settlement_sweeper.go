package sched

import (
	"context"
	"time"

	"github.com/pranit-garg/Dispatch/internal/domain/ports/repository"
	"github.com/pranit-garg/Dispatch/internal/infra/metrics"
	"github.com/pranit-garg/Dispatch/internal/usecase"

	"github.com/rs/zerolog"
)

// SettlementSweeper periodically rescans parked settlement records and
// resumes their pipelines. This covers swap-venue outages and process
// crashes mid-distribution; the pipeline stages are idempotent, so
// picking the same record up twice is harmless.
type SettlementSweeper struct {
	uc         usecase.SettlementUseCase
	records    repository.SettlementRepository
	interval   time.Duration
	staleAfter time.Duration
	log        *zerolog.Logger
}

func NewSettlementSweeper(
	uc usecase.SettlementUseCase,
	records repository.SettlementRepository,
	interval, staleAfter time.Duration,
	logger *zerolog.Logger,
) *SettlementSweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	if staleAfter <= 0 {
		staleAfter = 10 * time.Minute
	}
	return &SettlementSweeper{uc: uc, records: records, interval: interval, staleAfter: staleAfter, log: logger}
}

func (w *SettlementSweeper) Start(ctx context.Context) {
	t := time.NewTicker(w.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			w.tick(ctx)
		}
	}
}

func (w *SettlementSweeper) tick(ctx context.Context) {
	cutoff := time.Now().Add(-w.staleAfter)
	parked, err := w.records.ListRetryable(ctx, repository.NoTX, cutoff, 200)
	if err != nil {
		w.log.Error().Err(err).Msg("settlement-sweeper: list retryable failed")
		return
	}
	for _, rec := range parked {
		metrics.IncSweepPicked()
		if err := w.uc.Resume(ctx, rec); err != nil {
			w.log.Warn().Err(err).Str("job_id", rec.JobID).Msg("settlement-sweeper: resume failed")
			continue
		}
		w.log.Info().Str("job_id", rec.JobID).Str("status", string(rec.Status)).Msg("settlement-sweeper: resumed")
	}
}
