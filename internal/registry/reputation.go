package registry

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/pranit-garg/Dispatch/internal/domain/ports/adapter"

	"golang.org/x/sync/singleflight"
)

// ReputationReader is the read half of the reputation ledger port.
type ReputationReader interface {
	GetSummary(ctx context.Context, workerPubkey string) (adapter.ReputationSummary, error)
}

type cachedScore struct {
	score     *float64 // nil when the ledger has no history
	fetchedAt time.Time
}

// reputationCache keeps per-worker scores with bounded staleness.
// Refreshes happen on read; concurrent refreshes for one worker
// collapse into a single ledger call via singleflight.
type reputationCache struct {
	ledger ReputationReader
	ttl    time.Duration

	mu     sync.RWMutex
	scores map[string]cachedScore
	group  singleflight.Group
}

func newReputationCache(ledger ReputationReader, ttl time.Duration) *reputationCache {
	return &reputationCache{
		ledger: ledger,
		ttl:    ttl,
		scores: make(map[string]cachedScore),
	}
}

// peek returns whatever is cached without triggering a refresh.
func (c *reputationCache) peek(pubkey string) *float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if e, ok := c.scores[pubkey]; ok {
		return e.score
	}
	return nil
}

func (c *reputationCache) get(ctx context.Context, pubkey string) (*float64, error) {
	c.mu.RLock()
	e, ok := c.scores[pubkey]
	c.mu.RUnlock()
	if ok && time.Since(e.fetchedAt) < c.ttl {
		return e.score, nil
	}

	v, err, _ := c.group.Do(pubkey, func() (interface{}, error) {
		summary, err := c.ledger.GetSummary(ctx, pubkey)
		if err != nil {
			return nil, err
		}
		var score *float64
		if summary.Count > 0 {
			raw := float64(summary.RawValue) / math.Pow10(summary.Decimals)
			s := math.Min(100, math.Max(0, raw))
			score = &s
		}
		c.mu.Lock()
		c.scores[pubkey] = cachedScore{score: score, fetchedAt: time.Now()}
		c.mu.Unlock()
		return score, nil
	})
	if err != nil {
		// serve the stale entry rather than failing eligibility
		if ok {
			return e.score, nil
		}
		return nil, err
	}
	return v.(*float64), nil
}
