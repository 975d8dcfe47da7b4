package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"github.com/pranit-garg/Dispatch/internal/domain"
	"github.com/pranit-garg/Dispatch/internal/domain/model"
	"github.com/pranit-garg/Dispatch/internal/domain/ports/repository"
)

var _ repository.PairingRepository = (*pairingRepo)(nil)

type pairingRepo struct {
	pool *pgxpool.Pool
}

func NewPairingRepo(pool *pgxpool.Pool) *pairingRepo {
	return &pairingRepo{pool: pool}
}

func (r *pairingRepo) Create(ctx context.Context, tx repository.Tx, p *model.TrustPairing) error {
	const q = `
INSERT INTO trust_pairings (id, requester_id, worker_pubkey, pairing_code, claimed, expires_at, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7);`

	_, err := execSQL(ctx, r.pool, tx, q,
		p.ID, p.RequesterID, p.WorkerPubkey, p.PairingCode, p.Claimed, p.ExpiresAt, p.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrAlreadyExists
		}
		return err
	}
	return nil
}

func (r *pairingRepo) FindByCode(ctx context.Context, tx repository.Tx, code string) (*model.TrustPairing, error) {
	const q = selectPairing + ` WHERE pairing_code = $1;`
	row, err := pickRow(ctx, r.pool, tx, q, code)
	if err != nil {
		return nil, err
	}
	return scanPairing(row)
}

func (r *pairingRepo) ListOpenByRequester(ctx context.Context, tx repository.Tx, requesterID string) ([]*model.TrustPairing, error) {
	const q = selectPairing + `
 WHERE requester_id = $1 AND claimed = FALSE AND expires_at > $2
 ORDER BY created_at;`

	rows, err := pickRows(ctx, r.pool, tx, q, requesterID, time.Now())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.TrustPairing
	for rows.Next() {
		p, err := scanPairing(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// MarkClaimed consumes the pairing exactly once; the WHERE clause
// makes the second claimer lose.
func (r *pairingRepo) MarkClaimed(ctx context.Context, tx repository.Tx, id string) error {
	const q = `
UPDATE trust_pairings SET claimed = TRUE
WHERE id = $1 AND claimed = FALSE AND expires_at > $2;`

	tag, err := execSQL(ctx, r.pool, tx, q, id, time.Now())
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrPairingNotOpen
	}
	return nil
}

const selectPairing = `
SELECT id, requester_id, worker_pubkey, pairing_code, claimed, expires_at, created_at
FROM trust_pairings`

func scanPairing(row pgx.Row) (*model.TrustPairing, error) {
	var p model.TrustPairing
	err := row.Scan(&p.ID, &p.RequesterID, &p.WorkerPubkey, &p.PairingCode,
		&p.Claimed, &p.ExpiresAt, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return &p, nil
}
