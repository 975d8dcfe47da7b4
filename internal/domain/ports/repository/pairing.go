package repository

import (
	"context"

	"github.com/pranit-garg/Dispatch/internal/domain/model"
)

type PairingRepository interface {
	Create(ctx context.Context, tx Tx, p *model.TrustPairing) error
	FindByCode(ctx context.Context, tx Tx, code string) (*model.TrustPairing, error)
	// ListOpenByRequester returns unclaimed, unexpired pairings for a
	// requester; the registry consults it for PRIVATE eligibility.
	ListOpenByRequester(ctx context.Context, tx Tx, requesterID string) ([]*model.TrustPairing, error)
	// MarkClaimed consumes the pairing; claiming an already-claimed
	// pairing returns domain.ErrPairingNotOpen.
	MarkClaimed(ctx context.Context, tx Tx, id string) error
}
