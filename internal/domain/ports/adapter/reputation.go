package adapter

import "context"

// ReputationSummary is the raw read-path answer from the external
// reputation ledger: Count entries aggregated into RawValue scaled by
// 10^Decimals.
type ReputationSummary struct {
	Count    int64
	RawValue int64
	Decimals int
}

// Feedback is one job-outcome entry for the write path.
type Feedback struct {
	WorkerPubkey string
	JobID        string
	Score        int    // 0-100
	JobType      string // feedback tag, e.g. "COMPUTE"
}

// ReputationLedger is the hex port for the external reputation system.
// Writes are best-effort; reads feed the registry's cached score.
type ReputationLedger interface {
	// GetSummary reads the aggregate for the agent derived from the
	// worker pubkey. A zero Count means no history.
	GetSummary(ctx context.Context, workerPubkey string) (ReputationSummary, error)
	// PostFeedback appends an outcome entry and returns the ledger
	// transaction reference.
	PostFeedback(ctx context.Context, fb Feedback) (txRef string, err error)
}
