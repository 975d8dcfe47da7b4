package model

import (
	"time"

	sdkmath "cosmossdk.io/math"
)

// ProtocolFeeBps is the fixed protocol fee taken from every swapped
// amount, in basis points (500 = 5%).
const ProtocolFeeBps = 500

type SettlementStatus string

const (
	// SettlementPending: record created, swap not yet quoted.
	SettlementPending SettlementStatus = "pending"
	// SettlementPendingRetry: the swap venue was unavailable; a later
	// sweep retries the quote. Distinct from a confirmed zero quote.
	SettlementPendingRetry SettlementStatus = "pending_retry"
	// SettlementConfirmedZero: the venue answered and the quote was
	// genuinely zero; nothing to distribute.
	SettlementConfirmedZero SettlementStatus = "confirmed_zero"
	// SettlementSwapped: swap quoted and executed, distribution pending.
	SettlementSwapped SettlementStatus = "swapped"
	// SettlementDistributed: payout and fee transfers confirmed.
	SettlementDistributed SettlementStatus = "distributed"
	SettlementFailed      SettlementStatus = "failed"
)

// Terminal reports whether the pipeline is finished with s: nothing a
// sweep could usefully retry.
func (s SettlementStatus) Terminal() bool {
	return s == SettlementDistributed || s == SettlementConfirmedZero || s == SettlementFailed
}

// SettlementRecord tracks the payment pipeline for one completed job.
// Exactly one record exists per job; updates are idempotent so a sweep
// or a concurrent retry never produces a second payout.
type SettlementRecord struct {
	ID           string // ULID
	JobID        string
	WorkerPubkey string

	USDCAmount    sdkmath.Int // stablecoin received for the job
	SwappedAmount sdkmath.Int // reward tokens out of the swap
	Fee           sdkmath.Int
	Payout        sdkmath.Int

	SwapTxRef   string
	PayoutTxRef string
	BurnTxRef   string

	Status    SettlementStatus
	Attempts  int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Distributed reports whether both on-ledger transfers are confirmed.
func (r *SettlementRecord) Distributed() bool {
	return r.Status == SettlementDistributed && r.PayoutTxRef != "" && r.BurnTxRef != ""
}

// SplitFee divides a swapped amount into protocol fee and worker
// payout using integer arithmetic: fee = amount*bps/10000 rounded
// down, payout the remainder, so fee+payout == amount exactly.
func SplitFee(amount sdkmath.Int, feeBps int64) (fee, payout sdkmath.Int) {
	if amount.IsNil() || !amount.IsPositive() {
		return sdkmath.ZeroInt(), sdkmath.ZeroInt()
	}
	fee = amount.MulRaw(feeBps).QuoRaw(10000)
	payout = amount.Sub(fee)
	return fee, payout
}
