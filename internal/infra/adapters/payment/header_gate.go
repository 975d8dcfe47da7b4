package payment

import (
	"context"
	"fmt"

	"github.com/pranit-garg/Dispatch/internal/domain"
	"github.com/pranit-garg/Dispatch/internal/domain/ports/adapter"

	sdkmath "cosmossdk.io/math"
)

var _ adapter.PaymentGate = (*HeaderGate)(nil)

// HeaderGate trusts the amount the fronting payment middleware already
// settled and stamped on the request. The paymentRef it receives is
// that stamped value: the base-unit stablecoin amount as decimal text.
type HeaderGate struct{}

func NewHeaderGate() *HeaderGate { return &HeaderGate{} }

func (*HeaderGate) PaidAmount(_ context.Context, paymentRef string) (sdkmath.Int, error) {
	if paymentRef == "" {
		return sdkmath.ZeroInt(), fmt.Errorf("payment header missing: %w", domain.ErrInvalidArgument)
	}
	amount, ok := sdkmath.NewIntFromString(paymentRef)
	if !ok || amount.IsNegative() {
		return sdkmath.ZeroInt(), fmt.Errorf("payment header %q not a valid amount: %w", paymentRef, domain.ErrInvalidArgument)
	}
	return amount, nil
}
