package registry

import (
	"context"
	"hash/fnv"
	"sort"
	"sync"
	"time"

	"github.com/pranit-garg/Dispatch/internal/domain"
	"github.com/pranit-garg/Dispatch/internal/domain/model"
	"github.com/pranit-garg/Dispatch/internal/domain/ports/repository"
	"github.com/pranit-garg/Dispatch/internal/infra/logging"

	"github.com/rs/zerolog"
)

const shardCount = 32

type shard struct {
	mu      sync.Mutex
	workers map[string]*model.Worker
}

// Registry tracks connected workers. State is sharded by worker pubkey
// so claims on distinct workers never contend; no lock spans the whole
// registry.
type Registry struct {
	shards   [shardCount]shard
	pairings repository.PairingRepository
	rep      *reputationCache

	livenessTimeout time.Duration
	maxRevocations  int
	log             *zerolog.Logger
}

type Options struct {
	LivenessTimeout time.Duration
	MaxRevocations  int
	ReputationTTL   time.Duration
}

func New(pairings repository.PairingRepository, ledger ReputationReader, opts Options, logger *zerolog.Logger) *Registry {
	r := &Registry{
		pairings:        pairings,
		rep:             newReputationCache(ledger, opts.ReputationTTL),
		livenessTimeout: opts.LivenessTimeout,
		maxRevocations:  opts.MaxRevocations,
		log:             logger,
	}
	for i := range r.shards {
		r.shards[i].workers = make(map[string]*model.Worker)
	}
	return r
}

func (r *Registry) shardFor(pubkey string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(pubkey))
	return &r.shards[h.Sum32()%shardCount]
}

// Register upserts a worker. The pubkey identity is immutable; a
// re-register refreshes mutable attributes and liveness but never
// resets an in-flight busy claim.
func (r *Registry) Register(pubkey string, class model.DeviceClass, stakedAmount int64, settlementAddr string) *model.Worker {
	s := r.shardFor(pubkey)
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	w, ok := s.workers[pubkey]
	if !ok {
		w = &model.Worker{Pubkey: pubkey, CreatedAt: now}
		s.workers[pubkey] = w
	}
	w.DeviceClass = class
	w.Tier = model.TierForStake(stakedAmount)
	w.SettlementAddress = settlementAddr
	w.LastSeen = now
	w.Unhealthy = false
	cp := *w
	return &cp
}

// Heartbeat refreshes liveness. Unknown workers are ignored; they must
// register first.
func (r *Registry) Heartbeat(pubkey string) {
	s := r.shardFor(pubkey)
	s.mu.Lock()
	defer s.mu.Unlock()
	if w, ok := s.workers[pubkey]; ok {
		w.LastSeen = time.Now()
	}
}

// Get returns a copy of the worker, or domain.ErrNotFound.
func (r *Registry) Get(pubkey string) (*model.Worker, error) {
	s := r.shardFor(pubkey)
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.workers[pubkey]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *w
	return &cp, nil
}

// Reputation returns the cached score for a worker, refreshing it from
// the ledger once stale. Concurrent refreshes for the same worker
// collapse into one in-flight fetch.
func (r *Registry) Reputation(ctx context.Context, pubkey string) (*float64, error) {
	score, err := r.rep.get(ctx, pubkey)
	if err != nil {
		return nil, err
	}
	s := r.shardFor(pubkey)
	s.mu.Lock()
	if w, ok := s.workers[pubkey]; ok {
		w.Reputation = score
	}
	s.mu.Unlock()
	return score, nil
}

// ListEligible snapshots workers eligible for a job: live, healthy,
// not busy, and for PRIVATE jobs covered by an open trust pairing
// between the requester and the worker. Stale workers are skipped but
// never deregistered; a later heartbeat brings them back. The snapshot
// is sorted by priority so callers can walk it lazily.
func (r *Registry) ListEligible(ctx context.Context, privacy model.PrivacyClass, requesterID string) ([]*model.Worker, error) {
	var allowed map[string]bool
	if privacy == model.PrivacyPrivate {
		pairings, err := r.pairings.ListOpenByRequester(ctx, repository.NoTX, requesterID)
		if err != nil {
			return nil, err
		}
		allowed = make(map[string]bool, len(pairings))
		for _, p := range pairings {
			allowed[p.WorkerPubkey] = true
		}
		if len(allowed) == 0 {
			return nil, nil
		}
	}

	now := time.Now()
	var out []*model.Worker
	for i := range r.shards {
		s := &r.shards[i]
		s.mu.Lock()
		for _, w := range s.workers {
			if w.Unhealthy || w.BusyJobID != "" || !w.Live(now, r.livenessTimeout) {
				continue
			}
			if allowed != nil && !allowed[w.Pubkey] {
				continue
			}
			// best-effort: use whatever reputation is already cached;
			// the matcher refreshes stale scores for finalists.
			if cached := r.rep.peek(w.Pubkey); cached != nil {
				w.Reputation = cached
			}
			cp := *w
			out = append(out, &cp)
		}
		s.mu.Unlock()
	}

	sort.Slice(out, func(i, j int) bool {
		pi, pj := out[i].Priority(), out[j].Priority()
		if pi != pj {
			return pi > pj
		}
		// tie-break toward the most recently seen worker
		return out[i].LastSeen.After(out[j].LastSeen)
	})
	return out, nil
}

// ClaimBusy atomically marks a worker busy with jobID. The claim is a
// compare-and-swap on the busy field under the worker's shard lock
// only; a concurrent claim for the same worker loses with
// domain.ErrWorkerBusy.
func (r *Registry) ClaimBusy(pubkey, jobID string) error {
	s := r.shardFor(pubkey)
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.workers[pubkey]
	if !ok {
		return domain.ErrNotFound
	}
	if w.BusyJobID != "" {
		return domain.ErrWorkerBusy
	}
	w.BusyJobID = jobID
	return nil
}

// Release clears the busy claim. Releasing a worker that holds a
// different job (or none) is a no-op, so duplicate completion events
// cannot free a worker out from under its next assignment.
func (r *Registry) Release(pubkey, jobID string) {
	s := r.shardFor(pubkey)
	s.mu.Lock()
	defer s.mu.Unlock()
	if w, ok := s.workers[pubkey]; ok && w.BusyJobID == jobID {
		w.BusyJobID = ""
	}
}

// RecordRevocation counts a revoked assignment against the worker and
// marks it unhealthy once the threshold is crossed.
func (r *Registry) RecordRevocation(pubkey string) {
	s := r.shardFor(pubkey)
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.workers[pubkey]
	if !ok {
		return
	}
	w.Revocations++
	if w.Revocations >= r.maxRevocations && !w.Unhealthy {
		w.Unhealthy = true
		r.log.Warn().Str("worker", logging.Redact(pubkey, false)).
			Int("revocations", w.Revocations).Msg("worker marked unhealthy")
	}
}
