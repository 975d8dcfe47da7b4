package swap

import (
	"context"

	sdkmath "cosmossdk.io/math"

	"github.com/pranit-garg/Dispatch/internal/domain/ports/adapter"
)

var _ adapter.SwapVenue = (*NoopVenue)(nil)

// NoopVenue quotes 1:1 for dev mode so the pipeline can run without a
// live venue.
type NoopVenue struct{}

func NewNoopVenue() *NoopVenue { return &NoopVenue{} }

func (*NoopVenue) Name() string { return "noop" }

func (*NoopVenue) Swap(_ context.Context, amount sdkmath.Int) (adapter.SwapQuote, error) {
	return adapter.SwapQuote{InAmount: amount, OutAmount: amount, TxRef: "noop-swap"}, nil
}
