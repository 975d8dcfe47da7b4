package adapter

import (
	"context"

	sdkmath "cosmossdk.io/math"
)

// SwapQuote is a venue's answer for a stablecoin→reward-token swap.
type SwapQuote struct {
	InAmount  sdkmath.Int
	OutAmount sdkmath.Int
	TxRef     string // populated once the swap executed on-ledger
}

// SwapVenue is the hex port for the external DEX aggregator. The
// venue is optionally unavailable; callers must treat errors as
// retryable, never as job failures.
type SwapVenue interface {
	Name() string

	// Swap quotes and executes inputMint→outputMint for amount. A nil
	// error with a zero OutAmount is a confirmed zero quote, distinct
	// from venue unavailability.
	Swap(ctx context.Context, amount sdkmath.Int) (SwapQuote, error)
}
