package usecase

import (
	"context"
	"crypto/rand"
	"fmt"
	"time"

	"github.com/pranit-garg/Dispatch/internal/domain"
	"github.com/pranit-garg/Dispatch/internal/domain/model"
	"github.com/pranit-garg/Dispatch/internal/domain/ports/repository"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"
)

// defaultPairingTTL bounds how long an unclaimed pairing code lives.
const defaultPairingTTL = 15 * time.Minute

// PairingUseCase manages trust pairings that authorize PRIVATE job
// routing between a requester and one specific worker.
type PairingUseCase interface {
	// Create mints a time-limited, single-claim pairing code.
	Create(ctx context.Context, requesterID, workerPubkey string, ttl time.Duration) (*model.TrustPairing, error)
	// GetByCode looks a pairing up for status display.
	GetByCode(ctx context.Context, code string) (*model.TrustPairing, error)
	// Claim consumes the pairing code from the worker side. The code
	// is single-use; a second claim returns domain.ErrPairingNotOpen.
	Claim(ctx context.Context, code, workerPubkey string) (*model.TrustPairing, error)
}

var _ PairingUseCase = (*pairingUC)(nil)

type pairingUC struct {
	pairings repository.PairingRepository
	log      *zerolog.Logger
}

func NewPairingUseCase(pairings repository.PairingRepository, logger *zerolog.Logger) PairingUseCase {
	return &pairingUC{pairings: pairings, log: logger}
}

func (p *pairingUC) Create(ctx context.Context, requesterID, workerPubkey string, ttl time.Duration) (*model.TrustPairing, error) {
	if requesterID == "" || workerPubkey == "" {
		return nil, domain.ErrInvalidArgument
	}
	if ttl <= 0 {
		ttl = defaultPairingTTL
	}
	now := time.Now()
	pairing := &model.TrustPairing{
		ID:           uuid.NewString(),
		RequesterID:  requesterID,
		WorkerPubkey: workerPubkey,
		PairingCode:  ulid.MustNew(ulid.Timestamp(now), rand.Reader).String(),
		ExpiresAt:    now.Add(ttl),
		CreatedAt:    now,
	}
	if err := p.pairings.Create(ctx, repository.NoTX, pairing); err != nil {
		return nil, err
	}
	p.log.Info().Str("pairing_id", pairing.ID).Str("requester_id", requesterID).
		Time("expires_at", pairing.ExpiresAt).Msg("trust pairing created")
	return pairing, nil
}

func (p *pairingUC) GetByCode(ctx context.Context, code string) (*model.TrustPairing, error) {
	if code == "" {
		return nil, domain.ErrInvalidArgument
	}
	return p.pairings.FindByCode(ctx, repository.NoTX, code)
}

func (p *pairingUC) Claim(ctx context.Context, code, workerPubkey string) (*model.TrustPairing, error) {
	if code == "" || workerPubkey == "" {
		return nil, domain.ErrInvalidArgument
	}
	pairing, err := p.pairings.FindByCode(ctx, repository.NoTX, code)
	if err != nil {
		return nil, err
	}
	if pairing.WorkerPubkey != workerPubkey {
		return nil, fmt.Errorf("pairing %s is not addressed to this worker: %w", pairing.ID, domain.ErrInvalidArgument)
	}
	if !pairing.Open(time.Now()) {
		return nil, domain.ErrPairingNotOpen
	}
	if err := p.pairings.MarkClaimed(ctx, repository.NoTX, pairing.ID); err != nil {
		return nil, err
	}
	pairing.Claimed = true
	p.log.Info().Str("pairing_id", pairing.ID).Msg("trust pairing claimed")
	return pairing, nil
}
