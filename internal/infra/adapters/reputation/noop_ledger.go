package reputation

import (
	"context"

	"github.com/pranit-garg/Dispatch/internal/domain/ports/adapter"

	"github.com/oklog/ulid/v2"
)

var _ adapter.ReputationLedger = (*NoopLedger)(nil)

// NoopLedger serves dev environments without a reputation registry.
// Every worker reads as unscored and writes are acknowledged locally.
type NoopLedger struct{}

func NewNoopLedger() *NoopLedger { return &NoopLedger{} }

func (*NoopLedger) GetSummary(context.Context, string) (adapter.ReputationSummary, error) {
	return adapter.ReputationSummary{}, nil
}

func (*NoopLedger) PostFeedback(context.Context, adapter.Feedback) (string, error) {
	return "dev-feedback-" + ulid.Make().String(), nil
}
