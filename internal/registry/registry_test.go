//go:build !integration

package registry_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pranit-garg/Dispatch/internal/domain"
	"github.com/pranit-garg/Dispatch/internal/domain/model"
	"github.com/pranit-garg/Dispatch/internal/domain/ports/adapter"
	"github.com/pranit-garg/Dispatch/internal/domain/ports/repository"
	"github.com/pranit-garg/Dispatch/internal/registry"

	"github.com/rs/zerolog"
)

func newTestLogger() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

// stubPairings serves a fixed pairing set.
type stubPairings struct {
	open []*model.TrustPairing
	err  error
}

var _ repository.PairingRepository = (*stubPairings)(nil)

func (s *stubPairings) Create(context.Context, repository.Tx, *model.TrustPairing) error { return nil }
func (s *stubPairings) FindByCode(context.Context, repository.Tx, string) (*model.TrustPairing, error) {
	return nil, domain.ErrNotFound
}
func (s *stubPairings) ListOpenByRequester(context.Context, repository.Tx, string) ([]*model.TrustPairing, error) {
	return s.open, s.err
}
func (s *stubPairings) MarkClaimed(context.Context, repository.Tx, string) error { return nil }

// stubLedger answers reputation reads, counting calls.
type stubLedger struct {
	calls   int64
	summary func(pubkey string) (adapter.ReputationSummary, error)
}

func (s *stubLedger) GetSummary(_ context.Context, pubkey string) (adapter.ReputationSummary, error) {
	atomic.AddInt64(&s.calls, 1)
	if s.summary != nil {
		return s.summary(pubkey)
	}
	return adapter.ReputationSummary{}, nil
}

func newTestRegistry(pairings *stubPairings, ledger *stubLedger, repTTL time.Duration) *registry.Registry {
	if pairings == nil {
		pairings = &stubPairings{}
	}
	if ledger == nil {
		ledger = &stubLedger{}
	}
	return registry.New(pairings, ledger, registry.Options{
		LivenessTimeout: 45 * time.Second,
		MaxRevocations:  3,
		ReputationTTL:   repTTL,
	}, newTestLogger())
}

func TestRegistry_RegisterIsIdempotentUpsert(t *testing.T) {
	r := newTestRegistry(nil, nil, time.Minute)

	w1 := r.Register("w1", model.DeviceMobile, 50, "addr-a")
	if w1.Tier != model.TierOpen {
		t.Fatalf("tier = %s, want OPEN for stake 50", w1.Tier)
	}

	// Re-register with more stake: attributes refresh, identity stays.
	w2 := r.Register("w1", model.DeviceDesktop, 1500, "addr-b")
	if w2.Tier != model.TierSentinel || w2.DeviceClass != model.DeviceDesktop || w2.SettlementAddress != "addr-b" {
		t.Fatalf("re-register did not refresh attributes: %+v", w2)
	}
	if !w2.CreatedAt.Equal(w1.CreatedAt) {
		t.Fatal("re-register must not reset CreatedAt")
	}
}

func TestRegistry_ReRegisterKeepsBusyClaim(t *testing.T) {
	r := newTestRegistry(nil, nil, time.Minute)
	r.Register("w1", model.DeviceDesktop, 0, "a")
	if err := r.ClaimBusy("w1", "job-1"); err != nil {
		t.Fatalf("ClaimBusy: %v", err)
	}

	// A reconnect must not clear an in-flight claim.
	r.Register("w1", model.DeviceDesktop, 0, "a")
	w, _ := r.Get("w1")
	if w.BusyJobID != "job-1" {
		t.Fatalf("busy = %q, want job-1 preserved across re-register", w.BusyJobID)
	}
}

func TestRegistry_ClaimBusyIsExclusive(t *testing.T) {
	r := newTestRegistry(nil, nil, time.Minute)
	r.Register("w1", model.DeviceDesktop, 0, "a")

	const claimers = 16
	var wins int64
	var wg sync.WaitGroup
	for i := 0; i < claimers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := r.ClaimBusy("w1", "job-1"); err == nil {
				atomic.AddInt64(&wins, 1)
			}
		}()
	}
	wg.Wait()
	if wins != 1 {
		t.Fatalf("wins = %d, want exactly one successful claim", wins)
	}

	if err := r.ClaimBusy("missing", "job-1"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("claim on unknown worker = %v, want ErrNotFound", err)
	}
}

func TestRegistry_ReleaseOnlyMatchingJob(t *testing.T) {
	r := newTestRegistry(nil, nil, time.Minute)
	r.Register("w1", model.DeviceDesktop, 0, "a")
	_ = r.ClaimBusy("w1", "job-1")

	// A stale release for a different job must not free the worker.
	r.Release("w1", "job-0")
	w, _ := r.Get("w1")
	if w.BusyJobID != "job-1" {
		t.Fatal("mismatched release freed the worker")
	}

	r.Release("w1", "job-1")
	w, _ = r.Get("w1")
	if w.BusyJobID != "" {
		t.Fatal("matching release did not free the worker")
	}
}

func TestRegistry_ListEligibleFilters(t *testing.T) {
	r := newTestRegistry(nil, nil, time.Minute)
	ctx := context.Background()

	r.Register("live", model.DeviceDesktop, 0, "a")
	r.Register("busy", model.DeviceDesktop, 0, "a")
	_ = r.ClaimBusy("busy", "job-x")
	r.Register("sick", model.DeviceDesktop, 0, "a")
	for i := 0; i < 3; i++ {
		r.RecordRevocation("sick")
	}

	out, err := r.ListEligible(ctx, model.PrivacyPublic, "req-1")
	if err != nil {
		t.Fatalf("ListEligible: %v", err)
	}
	if len(out) != 1 || out[0].Pubkey != "live" {
		t.Fatalf("eligible = %v, want only the live idle healthy worker", pubkeys(out))
	}
}

func TestRegistry_ListEligiblePriorityOrder(t *testing.T) {
	led := &stubLedger{summary: func(pubkey string) (adapter.ReputationSummary, error) {
		if pubkey == "mid" {
			return adapter.ReputationSummary{Count: 1, RawValue: 90, Decimals: 0}, nil
		}
		return adapter.ReputationSummary{}, nil
	}}
	r := newTestRegistry(nil, led, time.Minute)
	ctx := context.Background()

	r.Register("low", model.DeviceDesktop, 0, "a")
	r.Register("mid", model.DeviceDesktop, 0, "a")
	r.Register("high", model.DeviceDesktop, 5000, "a") // sentinel bonus only, no history

	// Warm the cache so ListEligible sees the score.
	if _, err := r.Reputation(ctx, "mid"); err != nil {
		t.Fatalf("Reputation: %v", err)
	}

	out, err := r.ListEligible(ctx, model.PrivacyPublic, "req-1")
	if err != nil {
		t.Fatalf("ListEligible: %v", err)
	}
	want := []string{"mid", "high", "low"}
	got := pubkeys(out)
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order = %v, want %v", got, want)
		}
	}
}

func TestRegistry_PrivateEligibilityNeedsPairing(t *testing.T) {
	pairings := &stubPairings{open: []*model.TrustPairing{
		{ID: "p1", RequesterID: "req-1", WorkerPubkey: "paired", ExpiresAt: time.Now().Add(time.Hour)},
	}}
	r := newTestRegistry(pairings, nil, time.Minute)
	ctx := context.Background()

	r.Register("paired", model.DeviceDesktop, 0, "a")
	r.Register("stranger", model.DeviceDesktop, 5000, "a")

	out, err := r.ListEligible(ctx, model.PrivacyPrivate, "req-1")
	if err != nil {
		t.Fatalf("ListEligible: %v", err)
	}
	if len(out) != 1 || out[0].Pubkey != "paired" {
		t.Fatalf("eligible = %v, want only the paired worker", pubkeys(out))
	}

	pairings.open = nil
	out, err = r.ListEligible(ctx, model.PrivacyPrivate, "req-1")
	if err != nil || len(out) != 0 {
		t.Fatalf("eligible = %v err=%v, want empty without pairings", pubkeys(out), err)
	}
}

func TestRegistry_ReputationCaching(t *testing.T) {
	led := &stubLedger{summary: func(string) (adapter.ReputationSummary, error) {
		return adapter.ReputationSummary{Count: 2, RawValue: 755, Decimals: 1}, nil
	}}
	r := newTestRegistry(nil, led, time.Minute)
	ctx := context.Background()
	r.Register("w1", model.DeviceDesktop, 0, "a")

	score, err := r.Reputation(ctx, "w1")
	if err != nil {
		t.Fatalf("Reputation: %v", err)
	}
	if score == nil || *score != 75.5 {
		t.Fatalf("score = %v, want 75.5", score)
	}

	// Repeat reads within the TTL hit the cache.
	for i := 0; i < 5; i++ {
		if _, err := r.Reputation(ctx, "w1"); err != nil {
			t.Fatalf("Reputation: %v", err)
		}
	}
	if n := atomic.LoadInt64(&led.calls); n != 1 {
		t.Fatalf("ledger calls = %d, want 1 (cached)", n)
	}
}

func TestRegistry_ReputationClamped(t *testing.T) {
	led := &stubLedger{summary: func(string) (adapter.ReputationSummary, error) {
		return adapter.ReputationSummary{Count: 1, RawValue: 12345, Decimals: 0}, nil
	}}
	r := newTestRegistry(nil, led, time.Minute)
	r.Register("w1", model.DeviceDesktop, 0, "a")

	score, err := r.Reputation(context.Background(), "w1")
	if err != nil {
		t.Fatalf("Reputation: %v", err)
	}
	if score == nil || *score != 100 {
		t.Fatalf("score = %v, want clamped to 100", score)
	}
}

func TestRegistry_ReputationServesStaleOnError(t *testing.T) {
	var fail atomic.Bool
	led := &stubLedger{summary: func(string) (adapter.ReputationSummary, error) {
		if fail.Load() {
			return adapter.ReputationSummary{}, errors.New("ledger down")
		}
		return adapter.ReputationSummary{Count: 1, RawValue: 60, Decimals: 0}, nil
	}}
	// zero TTL: every read refreshes
	r := newTestRegistry(nil, led, 1)
	r.Register("w1", model.DeviceDesktop, 0, "a")
	ctx := context.Background()

	if _, err := r.Reputation(ctx, "w1"); err != nil {
		t.Fatalf("warm read: %v", err)
	}
	fail.Store(true)
	score, err := r.Reputation(ctx, "w1")
	if err != nil {
		t.Fatalf("stale read must not error: %v", err)
	}
	if score == nil || *score != 60 {
		t.Fatalf("score = %v, want the stale 60", score)
	}
}

func TestRegistry_RevocationThresholdMarksUnhealthy(t *testing.T) {
	r := newTestRegistry(nil, nil, time.Minute)
	r.Register("w1", model.DeviceDesktop, 0, "a")

	r.RecordRevocation("w1")
	r.RecordRevocation("w1")
	w, _ := r.Get("w1")
	if w.Unhealthy {
		t.Fatal("unhealthy before the threshold")
	}
	r.RecordRevocation("w1")
	w, _ = r.Get("w1")
	if !w.Unhealthy {
		t.Fatal("threshold crossed but worker still healthy")
	}
}

func pubkeys(ws []*model.Worker) []string {
	out := make([]string, len(ws))
	for i, w := range ws {
		out[i] = w.Pubkey
	}
	return out
}
