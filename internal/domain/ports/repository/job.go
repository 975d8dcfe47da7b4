package repository

import (
	"context"
	"time"

	"github.com/pranit-garg/Dispatch/internal/domain/model"
)

type JobRepository interface {
	// Save upserts the job row keyed by id.
	Save(ctx context.Context, tx Tx, job *model.Job) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.Job, error)
	// ListTerminalOlderThan returns unarchived terminal jobs whose
	// completion precedes cutoff, for the retention sweep.
	ListTerminalOlderThan(ctx context.Context, tx Tx, cutoff time.Time, limit int) ([]*model.Job, error)
	MarkArchived(ctx context.Context, tx Tx, id string) error
}
