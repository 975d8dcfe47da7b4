package adapter

import (
	"context"

	sdkmath "cosmossdk.io/math"
)

// Distributor executes the two on-ledger transfers of a settlement:
// the worker payout and the protocol fee burn. Both return transaction
// references the settlement record stores for idempotency.
type Distributor interface {
	// TransferPayout moves amount of reward token to the worker's
	// settlement address.
	TransferPayout(ctx context.Context, workerAddress string, amount sdkmath.Int) (txRef string, err error)
	// BurnFee moves amount to the burn/treasury address.
	BurnFee(ctx context.Context, amount sdkmath.Int) (txRef string, err error)
}
