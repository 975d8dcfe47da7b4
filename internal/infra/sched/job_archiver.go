package sched

import (
	"context"
	"errors"
	"time"

	"github.com/pranit-garg/Dispatch/internal/domain"
	"github.com/pranit-garg/Dispatch/internal/domain/model"
	"github.com/pranit-garg/Dispatch/internal/domain/ports/repository"

	"github.com/rs/zerolog"
)

// JobArchiver flags terminal jobs past the retention window so the
// read paths and the matcher stop considering them. A completed job
// whose settlement is still in flight is left alone until the pipeline
// reaches a terminal settlement status.
type JobArchiver struct {
	jobs      repository.JobRepository
	records   repository.SettlementRepository
	interval  time.Duration
	retention time.Duration
	log       *zerolog.Logger
}

func NewJobArchiver(
	jobs repository.JobRepository,
	records repository.SettlementRepository,
	interval, retention time.Duration,
	logger *zerolog.Logger,
) *JobArchiver {
	if interval <= 0 {
		interval = time.Hour
	}
	if retention <= 0 {
		retention = 30 * 24 * time.Hour
	}
	return &JobArchiver{jobs: jobs, records: records, interval: interval, retention: retention, log: logger}
}

func (w *JobArchiver) Start(ctx context.Context) {
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

func (w *JobArchiver) tick(ctx context.Context) {
	cutoff := time.Now().Add(-w.retention)
	stale, err := w.jobs.ListTerminalOlderThan(ctx, repository.NoTX, cutoff, 500)
	if err != nil {
		w.log.Error().Err(err).Msg("job-archiver: list terminal failed")
		return
	}
	for _, job := range stale {
		if !w.settled(ctx, job) {
			continue
		}
		if err := w.jobs.MarkArchived(ctx, repository.NoTX, job.ID); err != nil {
			w.log.Warn().Err(err).Str("job_id", job.ID).Msg("job-archiver: mark archived failed")
			continue
		}
		w.log.Info().Str("job_id", job.ID).Msg("job-archiver: archived")
	}
}

// settled reports whether the job's money side is finished. Failed
// jobs never settle, so they archive unconditionally.
func (w *JobArchiver) settled(ctx context.Context, job *model.Job) bool {
	if job.Status != model.JobStatusCompleted {
		return true
	}
	rec, err := w.records.FindByJobID(ctx, repository.NoTX, job.ID)
	if errors.Is(err, domain.ErrNotFound) {
		return true
	}
	if err != nil {
		w.log.Warn().Err(err).Str("job_id", job.ID).Msg("job-archiver: settlement lookup failed")
		return false
	}
	return rec.Status.Terminal()
}
