//go:build !integration

package usecase_test

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"sync"
	"time"

	"github.com/pranit-garg/Dispatch/internal/domain"
	"github.com/pranit-garg/Dispatch/internal/domain/model"
	"github.com/pranit-garg/Dispatch/internal/domain/ports/adapter"
	"github.com/pranit-garg/Dispatch/internal/domain/ports/repository"

	sdkmath "cosmossdk.io/math"
	"github.com/rs/zerolog"
)

func newTestLogger() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

// testKeypair generates a worker identity: base64 pubkey plus a signer
// producing valid receipts.
type testKeypair struct {
	PubkeyB64 string
	priv      ed25519.PrivateKey
}

func newTestKeypair() testKeypair {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		panic(err)
	}
	return testKeypair{PubkeyB64: base64.StdEncoding.EncodeToString(pub), priv: priv}
}

func (k testKeypair) SignReceipt(jobID, outputHash string) *model.Receipt {
	rc := &model.Receipt{
		JobID:        jobID,
		WorkerPubkey: k.PubkeyB64,
		OutputHash:   outputHash,
		CompletedAt:  time.Now(),
	}
	rc.Signature = ed25519.Sign(k.priv, model.SigningBytes(jobID, outputHash))
	return rc
}

// ---- Mock JobRepository ----

type MockJobRepo struct {
	mu    sync.Mutex
	store map[string]*model.Job

	SaveFunc func(ctx context.Context, tx repository.Tx, job *model.Job) error
}

var _ repository.JobRepository = (*MockJobRepo)(nil)

func NewMockJobRepo() *MockJobRepo {
	return &MockJobRepo{store: make(map[string]*model.Job)}
}

func (m *MockJobRepo) Save(ctx context.Context, tx repository.Tx, job *model.Job) error {
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, tx, job)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *job
	m.store[job.ID] = &cp
	return nil
}

func (m *MockJobRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.store[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *j
	return &cp, nil
}

func (m *MockJobRepo) ListTerminalOlderThan(ctx context.Context, tx repository.Tx, cutoff time.Time, limit int) ([]*model.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Job
	for _, j := range m.store {
		if j.Status.Terminal() && !j.Archived && j.CompletedAt.Before(cutoff) {
			cp := *j
			out = append(out, &cp)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (m *MockJobRepo) MarkArchived(ctx context.Context, tx repository.Tx, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.store[id]
	if !ok {
		return domain.ErrNotFound
	}
	j.Archived = true
	return nil
}

// Stored returns the persisted copy for assertions.
func (m *MockJobRepo) Stored(id string) *model.Job {
	m.mu.Lock()
	defer m.mu.Unlock()
	if j, ok := m.store[id]; ok {
		cp := *j
		return &cp
	}
	return nil
}

// ---- Mock SettlementRepository ----

type MockSettlementRepo struct {
	mu    sync.Mutex
	store map[string]*model.SettlementRecord // keyed by job id

	CreateFunc func(ctx context.Context, tx repository.Tx, rec *model.SettlementRecord) error
	UpdateFunc func(ctx context.Context, tx repository.Tx, rec *model.SettlementRecord) error
}

var _ repository.SettlementRepository = (*MockSettlementRepo)(nil)

func NewMockSettlementRepo() *MockSettlementRepo {
	return &MockSettlementRepo{store: make(map[string]*model.SettlementRecord)}
}

func (m *MockSettlementRepo) Create(ctx context.Context, tx repository.Tx, rec *model.SettlementRecord) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, tx, rec)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.store[rec.JobID]; ok {
		return domain.ErrAlreadyExists
	}
	cp := *rec
	m.store[rec.JobID] = &cp
	return nil
}

func (m *MockSettlementRepo) Update(ctx context.Context, tx repository.Tx, rec *model.SettlementRecord) error {
	if m.UpdateFunc != nil {
		return m.UpdateFunc(ctx, tx, rec)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.store[rec.JobID]; !ok {
		return domain.ErrNotFound
	}
	cp := *rec
	m.store[rec.JobID] = &cp
	return nil
}

func (m *MockSettlementRepo) FindByJobID(ctx context.Context, tx repository.Tx, jobID string) (*model.SettlementRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.store[jobID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

func (m *MockSettlementRepo) ListRetryable(ctx context.Context, tx repository.Tx, cutoff time.Time, limit int) ([]*model.SettlementRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.SettlementRecord
	for _, rec := range m.store {
		if rec.Status.Terminal() {
			continue
		}
		if rec.UpdatedAt.Before(cutoff) {
			cp := *rec
			out = append(out, &cp)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (m *MockSettlementRepo) Stored(jobID string) *model.SettlementRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rec, ok := m.store[jobID]; ok {
		cp := *rec
		return &cp
	}
	return nil
}

// ---- Mock PairingRepository ----

type MockPairingRepo struct {
	mu    sync.Mutex
	store map[string]*model.TrustPairing // keyed by id

	ListOpenFunc func(ctx context.Context, tx repository.Tx, requesterID string) ([]*model.TrustPairing, error)
}

var _ repository.PairingRepository = (*MockPairingRepo)(nil)

func NewMockPairingRepo() *MockPairingRepo {
	return &MockPairingRepo{store: make(map[string]*model.TrustPairing)}
}

func (m *MockPairingRepo) Create(ctx context.Context, tx repository.Tx, p *model.TrustPairing) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	m.store[p.ID] = &cp
	return nil
}

func (m *MockPairingRepo) FindByCode(ctx context.Context, tx repository.Tx, code string) (*model.TrustPairing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.store {
		if p.PairingCode == code {
			cp := *p
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *MockPairingRepo) ListOpenByRequester(ctx context.Context, tx repository.Tx, requesterID string) ([]*model.TrustPairing, error) {
	if m.ListOpenFunc != nil {
		return m.ListOpenFunc(ctx, tx, requesterID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	var out []*model.TrustPairing
	for _, p := range m.store {
		if p.RequesterID == requesterID && p.Open(now) {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *MockPairingRepo) MarkClaimed(ctx context.Context, tx repository.Tx, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.store[id]
	if !ok || !p.Open(time.Now()) {
		return domain.ErrPairingNotOpen
	}
	p.Claimed = true
	return nil
}

func (m *MockPairingRepo) Stored(id string) *model.TrustPairing {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.store[id]; ok {
		cp := *p
		return &cp
	}
	return nil
}

// ---- Mock SwapVenue ----

type MockVenue struct {
	mu       sync.Mutex
	SwapFunc func(ctx context.Context, amount sdkmath.Int) (adapter.SwapQuote, error)
	Calls    int
}

var _ adapter.SwapVenue = (*MockVenue)(nil)

func (m *MockVenue) Name() string { return "mock-venue" }

func (m *MockVenue) Swap(ctx context.Context, amount sdkmath.Int) (adapter.SwapQuote, error) {
	m.mu.Lock()
	m.Calls++
	m.mu.Unlock()
	if m.SwapFunc != nil {
		return m.SwapFunc(ctx, amount)
	}
	// default 1:1 quote
	return adapter.SwapQuote{InAmount: amount, OutAmount: amount, TxRef: "swap-tx"}, nil
}

// ---- Mock Distributor ----

type MockDistributor struct {
	mu         sync.Mutex
	PayoutFunc func(ctx context.Context, workerAddress string, amount sdkmath.Int) (string, error)
	BurnFunc   func(ctx context.Context, amount sdkmath.Int) (string, error)

	Payouts []sdkmath.Int
	Burns   []sdkmath.Int
}

var _ adapter.Distributor = (*MockDistributor)(nil)

func (m *MockDistributor) TransferPayout(ctx context.Context, workerAddress string, amount sdkmath.Int) (string, error) {
	if m.PayoutFunc != nil {
		return m.PayoutFunc(ctx, workerAddress, amount)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Payouts = append(m.Payouts, amount)
	return "payout-tx", nil
}

func (m *MockDistributor) BurnFee(ctx context.Context, amount sdkmath.Int) (string, error) {
	if m.BurnFunc != nil {
		return m.BurnFunc(ctx, amount)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Burns = append(m.Burns, amount)
	return "burn-tx", nil
}

// ---- Mock ReputationLedger ----

type MockLedger struct {
	mu          sync.Mutex
	SummaryFunc func(ctx context.Context, workerPubkey string) (adapter.ReputationSummary, error)
	PostFunc    func(ctx context.Context, fb adapter.Feedback) (string, error)

	Posted []adapter.Feedback
}

var _ adapter.ReputationLedger = (*MockLedger)(nil)

func (m *MockLedger) GetSummary(ctx context.Context, workerPubkey string) (adapter.ReputationSummary, error) {
	if m.SummaryFunc != nil {
		return m.SummaryFunc(ctx, workerPubkey)
	}
	return adapter.ReputationSummary{}, nil
}

func (m *MockLedger) PostFeedback(ctx context.Context, fb adapter.Feedback) (string, error) {
	if m.PostFunc != nil {
		return m.PostFunc(ctx, fb)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Posted = append(m.Posted, fb)
	return "fb-tx", nil
}

func (m *MockLedger) PostedFeedback() []adapter.Feedback {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]adapter.Feedback, len(m.Posted))
	copy(out, m.Posted)
	return out
}

// ---- Mock Locker ----

// MockLocker mirrors the redis SetNX lock: one holder per key.
type MockLocker struct {
	mu   sync.Mutex
	held map[string]string
}

func NewMockLocker() *MockLocker {
	return &MockLocker{held: make(map[string]string)}
}

func (m *MockLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.held[key]; ok {
		return "", domain.ErrSettlementLocked
	}
	token := key + "-token"
	m.held[key] = token
	return token, nil
}

func (m *MockLocker) Unlock(ctx context.Context, key, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.held[key] == token {
		delete(m.held, key)
	}
	return nil
}

// ---- inline TaskRunner ----

// syncRunner executes submitted tasks immediately so tests observe
// reputation posts without goroutine races.
type syncRunner struct{}

func (syncRunner) Submit(task func(ctx context.Context) error) error {
	return task(context.Background())
}

// ---- Mock AssignmentSender ----

type MockSender struct {
	mu       sync.Mutex
	SendFunc func(ctx context.Context, workerPubkey string, a adapter.Assignment) error

	Sent     []adapter.Assignment
	notifyCh chan adapter.Assignment
}

func NewMockSender() *MockSender {
	return &MockSender{notifyCh: make(chan adapter.Assignment, 16)}
}

func (m *MockSender) Send(ctx context.Context, workerPubkey string, a adapter.Assignment) error {
	if m.SendFunc != nil {
		return m.SendFunc(ctx, workerPubkey, a)
	}
	m.mu.Lock()
	m.Sent = append(m.Sent, a)
	m.mu.Unlock()
	select {
	case m.notifyCh <- a:
	default:
	}
	return nil
}

// WaitForAssignment blocks until an assignment arrives or the timeout
// elapses.
func (m *MockSender) WaitForAssignment(timeout time.Duration) (adapter.Assignment, bool) {
	select {
	case a := <-m.notifyCh:
		return a, true
	case <-time.After(timeout):
		return adapter.Assignment{}, false
	}
}
