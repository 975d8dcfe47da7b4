package ledger

import (
	"context"

	sdkmath "cosmossdk.io/math"

	"github.com/pranit-garg/Dispatch/internal/domain/ports/adapter"

	"github.com/oklog/ulid/v2"
)

var _ adapter.Distributor = (*NoopDistributor)(nil)

// NoopDistributor fabricates transaction references for dev mode.
type NoopDistributor struct{}

func NewNoopDistributor() *NoopDistributor { return &NoopDistributor{} }

func (*NoopDistributor) TransferPayout(_ context.Context, _ string, _ sdkmath.Int) (string, error) {
	return "dev-payout-" + ulid.Make().String(), nil
}

func (*NoopDistributor) BurnFee(_ context.Context, _ sdkmath.Int) (string, error) {
	return "dev-burn-" + ulid.Make().String(), nil
}
