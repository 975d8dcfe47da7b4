package usecase

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/pranit-garg/Dispatch/internal/config"
	"github.com/pranit-garg/Dispatch/internal/domain"
	"github.com/pranit-garg/Dispatch/internal/domain/model"
	"github.com/pranit-garg/Dispatch/internal/domain/ports/repository"
	"github.com/pranit-garg/Dispatch/internal/infra/logging"
	"github.com/pranit-garg/Dispatch/internal/infra/metrics"
	"github.com/pranit-garg/Dispatch/internal/registry"

	"github.com/rs/zerolog"
)

// refreshLimit bounds how many finalists get a reputation refresh per
// attempt; the rest rank on their cached score.
const refreshLimit = 8

// MatchUseCase selects a worker for a pending job.
type MatchUseCase interface {
	// Assign makes a single matching attempt and claims the chosen
	// worker. Returns domain.ErrNoWorkerAvailable when no eligible
	// worker exists right now.
	Assign(ctx context.Context, job *model.Job) (*model.Worker, error)
	// AssignWithRetry repeats Assign on bounded exponential backoff
	// until the configured overall timeout.
	AssignWithRetry(ctx context.Context, job *model.Job) (*model.Worker, error)
}

var _ MatchUseCase = (*matchUC)(nil)

type matchUC struct {
	reg      *registry.Registry
	pairings repository.PairingRepository
	cfg      config.MatchingConfig
	log      *zerolog.Logger
}

func NewMatchUseCase(reg *registry.Registry, pairings repository.PairingRepository, cfg config.MatchingConfig, logger *zerolog.Logger) MatchUseCase {
	return &matchUC{reg: reg, pairings: pairings, cfg: cfg, log: logger}
}

// preferredClass implements the routing preference: CHEAP jobs lean on
// mobile devices, FAST jobs on desktops. The preference is soft; when
// the preferred class has any eligible candidate it is used
// exclusively, otherwise the other class serves the job.
func preferredClass(policy model.Policy) model.DeviceClass {
	if policy == model.PolicyCheap {
		return model.DeviceMobile
	}
	return model.DeviceDesktop
}

func (m *matchUC) Assign(ctx context.Context, job *model.Job) (*model.Worker, error) {
	eligible, err := m.reg.ListEligible(ctx, job.PrivacyClass, job.RequesterID)
	if err != nil {
		return nil, err
	}
	if len(eligible) == 0 {
		return nil, domain.ErrNoWorkerAvailable
	}

	pref := preferredClass(job.Policy)
	var preferred, fallback []*model.Worker
	for _, w := range eligible {
		if w.DeviceClass == pref {
			preferred = append(preferred, w)
		} else {
			fallback = append(fallback, w)
		}
	}
	// Device-class mismatch is never a hard rejection.
	candidates := preferred
	if len(candidates) == 0 {
		candidates = fallback
	}

	m.refreshReputation(ctx, candidates)

	// Walk candidates best-first; a CAS loss just means another job
	// claimed the worker between snapshot and claim.
	for _, w := range candidates {
		err := m.reg.ClaimBusy(w.Pubkey, job.ID)
		switch {
		case err == nil:
			if job.PrivacyClass == model.PrivacyPrivate {
				m.claimPairing(ctx, job, w.Pubkey)
			}
			metrics.IncMatch("assigned")
			return w, nil
		case errors.Is(err, domain.ErrWorkerBusy), errors.Is(err, domain.ErrNotFound):
			continue
		default:
			return nil, err
		}
	}
	return nil, domain.ErrNoWorkerAvailable
}

// claimPairing consumes the single-claim trust pairing a PRIVATE job
// was routed through. Best-effort: the job proceeds either way, but an
// unclaimed pairing would let a second PRIVATE job reuse it.
func (m *matchUC) claimPairing(ctx context.Context, job *model.Job, workerPubkey string) {
	pairings, err := m.pairings.ListOpenByRequester(ctx, repository.NoTX, job.RequesterID)
	if err != nil {
		m.log.Warn().Err(err).Str("job_id", job.ID).Msg("pairing lookup failed on claim")
		return
	}
	for _, p := range pairings {
		if p.WorkerPubkey != workerPubkey {
			continue
		}
		if err := m.pairings.MarkClaimed(ctx, repository.NoTX, p.ID); err != nil {
			m.log.Warn().Err(err).Str("pairing_id", p.ID).Msg("pairing claim failed")
		}
		return
	}
}

// refreshReputation re-reads stale scores for the top finalists and
// re-sorts. Refresh errors keep the cached ordering.
func (m *matchUC) refreshReputation(ctx context.Context, candidates []*model.Worker) {
	n := len(candidates)
	if n > refreshLimit {
		n = refreshLimit
	}
	changed := false
	for _, w := range candidates[:n] {
		score, err := m.reg.Reputation(ctx, w.Pubkey)
		if err != nil {
			m.log.Debug().Err(err).Str("worker", logging.Redact(w.Pubkey, false)).
				Msg("reputation refresh failed, using cached score")
			continue
		}
		if !sameScore(w.Reputation, score) {
			w.Reputation = score
			changed = true
		}
	}
	if changed {
		sort.SliceStable(candidates, func(i, j int) bool {
			pi, pj := candidates[i].Priority(), candidates[j].Priority()
			if pi != pj {
				return pi > pj
			}
			return candidates[i].LastSeen.After(candidates[j].LastSeen)
		})
	}
}

func sameScore(a, b *float64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func (m *matchUC) AssignWithRetry(ctx context.Context, job *model.Job) (*model.Worker, error) {
	ctx, cancel := context.WithTimeout(ctx, m.cfg.AssignTimeout)
	defer cancel()

	delay := m.cfg.AssignBaseDelay
	const maxDelay = 5 * time.Second
	for {
		w, err := m.Assign(ctx, job)
		if err == nil {
			return w, nil
		}
		if !errors.Is(err, domain.ErrNoWorkerAvailable) {
			return nil, err
		}
		select {
		case <-ctx.Done():
			metrics.IncMatch("timeout")
			return nil, domain.ErrNoWorkerAvailable
		case <-time.After(delay):
		}
		delay *= 2
		if delay > maxDelay {
			delay = maxDelay
		}
	}
}
