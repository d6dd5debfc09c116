// Package repository handles database persistence for rounds.  The round
// snapshot is the orchestrator's save/restore boundary: a restart re-adopts
// the last unsettled round instead of losing its identity.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/candlerush/arcade/internal/domain"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

// RoundRepository handles all database operations for rounds.
type RoundRepository struct {
	db *sqlx.DB
}

// NewRoundRepository creates a RoundRepository.
func NewRoundRepository(db *sqlx.DB) *RoundRepository {
	return &RoundRepository{db: db}
}

// roundRow is the flat database image of a Round.
type roundRow struct {
	ID                string           `db:"id"`
	Seed              int64            `db:"seed"`
	Status            string           `db:"status"`
	StakeAmount       decimal.Decimal  `db:"stake_amount"`
	StakeTxID         string           `db:"stake_tx_id"`
	SettleTxID        string           `db:"settle_tx_id"`
	BalanceBefore     decimal.Decimal  `db:"balance_before"`
	AccumulatedPnl    decimal.Decimal  `db:"accumulated_pnl"`
	PayoutAmount      *decimal.Decimal `db:"payout_amount"`
	ReconciledBalance *decimal.Decimal `db:"reconciled_balance"`
	Reconciled        bool             `db:"reconciled"`
	PayoutDeferred    bool             `db:"payout_deferred"`
	Trades            []byte           `db:"trades"`
	StartedAt         time.Time        `db:"started_at"`
	EndedAt           *time.Time       `db:"ended_at"`
	SettledAt         *time.Time       `db:"settled_at"`
	UpdatedAt         time.Time        `db:"updated_at"`
}

// ──────────────────────────────────────────────────────────────────────────────
// Snapshot (round.Store)
// ──────────────────────────────────────────────────────────────────────────────

// SaveSnapshot upserts the round's current state, keyed by seed.
func (r *RoundRepository) SaveSnapshot(ctx context.Context, rd *domain.Round) error {
	trades, err := json.Marshal(rd.Trades)
	if err != nil {
		return fmt.Errorf("round_repo.SaveSnapshot: marshal trades: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO rounds
			(id, seed, status, stake_amount, stake_tx_id, balance_before,
			 accumulated_pnl, trades, started_at, ended_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, now())
		ON CONFLICT (seed) DO UPDATE SET
			status          = EXCLUDED.status,
			stake_tx_id     = EXCLUDED.stake_tx_id,
			accumulated_pnl = EXCLUDED.accumulated_pnl,
			trades          = EXCLUDED.trades,
			ended_at        = EXCLUDED.ended_at,
			updated_at      = now()`,
		rd.ID, rd.Seed, rd.Status, rd.StakeAmount, rd.StakeTxID,
		rd.BalanceBefore, rd.AccumulatedPnl, trades, rd.StartedAt, rd.EndedAt)
	if err != nil {
		return fmt.Errorf("round_repo.SaveSnapshot: %w", err)
	}
	return nil
}

// RecordSettlement finalises the round row after settlement (paid or
// payout-deferred).
func (r *RoundRepository) RecordSettlement(ctx context.Context, rd *domain.Round, res domain.SettlementResult) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE rounds SET
			status             = 'settled',
			settle_tx_id       = $2,
			payout_amount      = $3,
			reconciled_balance = $4,
			reconciled         = $5,
			payout_deferred    = $6,
			accumulated_pnl    = $7,
			settled_at         = $8,
			updated_at         = now()
		WHERE seed = $1`,
		rd.Seed, res.TxID, res.PayoutAmount, res.ReconciledBalance,
		res.Reconciled, res.PayoutDeferred, rd.AccumulatedPnl, res.SettledAt)
	if err != nil {
		return fmt.Errorf("round_repo.RecordSettlement: %w", err)
	}
	return nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Transaction ids (gateway.RoundStore)
// ──────────────────────────────────────────────────────────────────────────────

// RecordStakeTx persists the stake transaction id.  The guard clause keeps
// the id write-once: a second stake for the same seed can never overwrite it.
func (r *RoundRepository) RecordStakeTx(ctx context.Context, seed int64, txID string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE rounds SET stake_tx_id = $2, updated_at = now()
		WHERE seed = $1 AND stake_tx_id = ''`,
		seed, txID)
	if err != nil {
		return fmt.Errorf("round_repo.RecordStakeTx: %w", err)
	}
	return nil
}

// RecordSettleTx persists the settlement transaction id and payout as soon as
// the signer confirms, before reconciliation runs.
func (r *RoundRepository) RecordSettleTx(ctx context.Context, seed int64, txID string, payout decimal.Decimal) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE rounds SET settle_tx_id = $2, payout_amount = $3, updated_at = now()
		WHERE seed = $1 AND settle_tx_id = ''`,
		seed, txID, payout)
	if err != nil {
		return fmt.Errorf("round_repo.RecordSettleTx: %w", err)
	}
	return nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Reads
// ──────────────────────────────────────────────────────────────────────────────

// LoadUnsettled returns the most recent round that has a stake recorded but
// no settlement, or nil when everything is settled.
func (r *RoundRepository) LoadUnsettled(ctx context.Context) (*domain.Round, error) {
	var row roundRow
	err := r.db.GetContext(ctx, &row, `
		SELECT * FROM rounds
		WHERE settled_at IS NULL AND stake_tx_id <> ''
		ORDER BY started_at DESC
		LIMIT 1`)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("round_repo.LoadUnsettled: %w", err)
	}
	return row.toDomain()
}

// ListSettled returns the latest settled rounds, newest first.
func (r *RoundRepository) ListSettled(ctx context.Context, limit int) ([]*domain.Round, error) {
	var rows []roundRow
	err := r.db.SelectContext(ctx, &rows, `
		SELECT * FROM rounds
		WHERE settled_at IS NOT NULL
		ORDER BY settled_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("round_repo.ListSettled: %w", err)
	}

	out := make([]*domain.Round, 0, len(rows))
	for _, row := range rows {
		rd, convErr := row.toDomain()
		if convErr != nil {
			return nil, convErr
		}
		out = append(out, rd)
	}
	return out, nil
}

func (row *roundRow) toDomain() (*domain.Round, error) {
	rd := &domain.Round{
		Seed:           row.Seed,
		Status:         domain.RoundStatus(row.Status),
		StakeAmount:    row.StakeAmount,
		StakeTxID:      row.StakeTxID,
		BalanceBefore:  row.BalanceBefore,
		AccumulatedPnl: row.AccumulatedPnl,
		StartedAt:      row.StartedAt,
		EndedAt:        row.EndedAt,
		SettledAt:      row.SettledAt,
	}
	if id, err := uuid.Parse(row.ID); err == nil {
		rd.ID = id
	}
	if len(row.Trades) > 0 {
		if err := json.Unmarshal(row.Trades, &rd.Trades); err != nil {
			return nil, fmt.Errorf("round_repo: unmarshal trades for seed %d: %w", row.Seed, err)
		}
	}
	return rd, nil
}
