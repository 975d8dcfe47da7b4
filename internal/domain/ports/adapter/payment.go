package adapter

import (
	"context"

	sdkmath "cosmossdk.io/math"
)

// PaymentGate is the upstream payment-verification collaborator. By
// the time a submission reaches the coordinator the payment header has
// already been verified; the gate only reports the paid amount, and
// the coordinator trusts it without re-verification.
type PaymentGate interface {
	// PaidAmount returns the verified stablecoin amount attached to a
	// submission, or an error when the request was never paid.
	PaidAmount(ctx context.Context, paymentRef string) (sdkmath.Int, error)
}
