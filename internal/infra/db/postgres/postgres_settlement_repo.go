package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"github.com/pranit-garg/Dispatch/internal/domain"
	"github.com/pranit-garg/Dispatch/internal/domain/model"
	"github.com/pranit-garg/Dispatch/internal/domain/ports/repository"
)

var _ repository.SettlementRepository = (*settlementRepo)(nil)

// Amounts are stored as NUMERIC text; sdkmath.Int round-trips through
// its decimal string form.
type settlementRepo struct {
	pool *pgxpool.Pool
}

func NewSettlementRepo(pool *pgxpool.Pool) *settlementRepo {
	return &settlementRepo{pool: pool}
}

func (r *settlementRepo) Create(ctx context.Context, tx repository.Tx, rec *model.SettlementRecord) error {
	const q = `
INSERT INTO settlements (id, job_id, worker_pubkey, usdc_amount, swapped_amount, fee, payout,
                         swap_tx_ref, payout_tx_ref, burn_tx_ref, status, attempts, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14);`

	rec.UpdatedAt = time.Now()
	_, err := execSQL(ctx, r.pool, tx, q,
		rec.ID, rec.JobID, rec.WorkerPubkey,
		rec.USDCAmount.String(), rec.SwappedAmount.String(), rec.Fee.String(), rec.Payout.String(),
		nullStr(rec.SwapTxRef), nullStr(rec.PayoutTxRef), nullStr(rec.BurnTxRef),
		rec.Status, rec.Attempts, rec.CreatedAt, rec.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrAlreadyExists
		}
		return err
	}
	return nil
}

func (r *settlementRepo) Update(ctx context.Context, tx repository.Tx, rec *model.SettlementRecord) error {
	const q = `
UPDATE settlements SET
  swapped_amount = $2, fee = $3, payout = $4,
  swap_tx_ref = $5, payout_tx_ref = $6, burn_tx_ref = $7,
  status = $8, attempts = $9, updated_at = $10
WHERE id = $1;`

	rec.UpdatedAt = time.Now()
	_, err := execSQL(ctx, r.pool, tx, q,
		rec.ID, rec.SwappedAmount.String(), rec.Fee.String(), rec.Payout.String(),
		nullStr(rec.SwapTxRef), nullStr(rec.PayoutTxRef), nullStr(rec.BurnTxRef),
		rec.Status, rec.Attempts, rec.UpdatedAt)
	return err
}

func (r *settlementRepo) FindByJobID(ctx context.Context, tx repository.Tx, jobID string) (*model.SettlementRecord, error) {
	const q = selectSettlement + ` WHERE job_id = $1;`
	row, err := pickRow(ctx, r.pool, tx, q, jobID)
	if err != nil {
		return nil, err
	}
	return scanSettlement(row)
}

func (r *settlementRepo) ListRetryable(ctx context.Context, tx repository.Tx, cutoff time.Time, limit int) ([]*model.SettlementRecord, error) {
	const q = selectSettlement + `
 WHERE updated_at < $1
   AND (status = 'pending_retry' OR status = 'swapped' OR status = 'pending')
 ORDER BY updated_at
 LIMIT $2;`

	rows, err := pickRows(ctx, r.pool, tx, q, cutoff, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.SettlementRecord
	for rows.Next() {
		rec, err := scanSettlement(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

const selectSettlement = `
SELECT id, job_id, worker_pubkey, usdc_amount, swapped_amount, fee, payout,
       COALESCE(swap_tx_ref, ''), COALESCE(payout_tx_ref, ''), COALESCE(burn_tx_ref, ''),
       status, attempts, created_at, updated_at
FROM settlements`

func scanSettlement(row pgx.Row) (*model.SettlementRecord, error) {
	var (
		rec                    model.SettlementRecord
		usdc, swapped, fee, po string
	)
	err := row.Scan(&rec.ID, &rec.JobID, &rec.WorkerPubkey, &usdc, &swapped, &fee, &po,
		&rec.SwapTxRef, &rec.PayoutTxRef, &rec.BurnTxRef,
		&rec.Status, &rec.Attempts, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	if rec.USDCAmount, err = parseAmount(usdc); err != nil {
		return nil, err
	}
	if rec.SwappedAmount, err = parseAmount(swapped); err != nil {
		return nil, err
	}
	if rec.Fee, err = parseAmount(fee); err != nil {
		return nil, err
	}
	if rec.Payout, err = parseAmount(po); err != nil {
		return nil, err
	}
	return &rec, nil
}

func parseAmount(s string) (sdkmath.Int, error) {
	if s == "" {
		return sdkmath.ZeroInt(), nil
	}
	v, ok := sdkmath.NewIntFromString(s)
	if !ok {
		return sdkmath.Int{}, fmt.Errorf("%w: bad amount %q", domain.ErrReadDatabaseRow, s)
	}
	return v, nil
}
