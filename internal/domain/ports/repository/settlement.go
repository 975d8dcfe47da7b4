package repository

import (
	"context"
	"time"

	"github.com/pranit-garg/Dispatch/internal/domain/model"
)

type SettlementRepository interface {
	// Create inserts the record; a second insert for the same job id
	// returns domain.ErrAlreadyExists (unique on job_id).
	Create(ctx context.Context, tx Tx, rec *model.SettlementRecord) error
	Update(ctx context.Context, tx Tx, rec *model.SettlementRecord) error
	FindByJobID(ctx context.Context, tx Tx, jobID string) (*model.SettlementRecord, error)
	// ListRetryable returns records the sweep should pick up again:
	// pending_retry, plus swapped records whose distribution never
	// confirmed, older than cutoff.
	ListRetryable(ctx context.Context, tx Tx, cutoff time.Time, limit int) ([]*model.SettlementRecord, error)
}
