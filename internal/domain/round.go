// Package domain defines the core business entities and types for the
// candlerush on-chain trading arcade.
package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ──────────────────────────────────────────────────────────────────────────────
// Types & constants
// ──────────────────────────────────────────────────────────────────────────────

// RoundStatus represents the lifecycle state of a round.
type RoundStatus string

const (
	RoundIdle     RoundStatus = "idle"     // no round in progress
	RoundStaking  RoundStatus = "staking"  // stake transaction submitted, awaiting signature
	RoundActive   RoundStatus = "active"   // stake confirmed, trading allowed
	RoundSettling RoundStatus = "settling" // settlement transaction in flight
)

// ──────────────────────────────────────────────────────────────────────────────
// Round
// ──────────────────────────────────────────────────────────────────────────────

// Round is the unit of settlement: one timed play session funded by a single
// stake transaction and resolved by a single settlement transaction.
//
// Invariants:
//   - at most one Round is staking|active|settling at any time;
//   - Seed is immutable once the round has started;
//   - StakeTxID is set at most once per Round;
//   - (Seed, StakeTxID) uniquely identify a settlement attempt.
type Round struct {
	ID             uuid.UUID       `json:"id"              db:"id"`
	Seed           int64           `json:"seed"            db:"seed"`
	Status         RoundStatus     `json:"status"          db:"status"`
	StakeAmount    decimal.Decimal `json:"stake_amount"    db:"stake_amount"`
	StakeTxID      string          `json:"stake_tx_id"     db:"stake_tx_id"`
	BalanceBefore  decimal.Decimal `json:"balance_before"  db:"balance_before"`
	Trades         []Trade         `json:"trades"          db:"-"`
	AccumulatedPnl decimal.Decimal `json:"accumulated_pnl" db:"accumulated_pnl"`
	StartedAt      time.Time       `json:"started_at"      db:"started_at"`
	EndedAt        *time.Time      `json:"ended_at"        db:"ended_at"`
	SettledAt      *time.Time      `json:"settled_at"      db:"settled_at"`
}

// HasStake reports whether the stake transaction has confirmed.
func (r *Round) HasStake() bool {
	return r.StakeTxID != ""
}

// ExpectedPayout is the amount the settlement transaction should return to
// the player: the original stake plus (or minus) the accumulated PnL, floored
// at zero — a round can never pay out less than nothing.
func (r *Round) ExpectedPayout() decimal.Decimal {
	payout := r.StakeAmount.Add(r.AccumulatedPnl)
	if payout.IsNegative() {
		return decimal.Zero
	}
	return payout
}

// ──────────────────────────────────────────────────────────────────────────────
// SettlementRequest / SettlementResult
// ──────────────────────────────────────────────────────────────────────────────

// SettlementRequest carries the immutable inputs of a settlement attempt.
// It is constructed exactly once at round end and never rebuilt for the same
// round, so a retried submission can never carry stale stake data.
type SettlementRequest struct {
	Seed        int64           `json:"seed"`
	StakeTxID   string          `json:"stake_tx_id"`
	StakeAmount decimal.Decimal `json:"stake_amount"`
	Pnl         decimal.Decimal `json:"pnl"`
}

// SettlementResult is the outcome of a completed settlement, exposed to the
// display layer.
type SettlementResult struct {
	TxID              string          `json:"tx_id"`
	Seed              int64           `json:"seed"`
	PayoutAmount      decimal.Decimal `json:"payout_amount"`
	ReconciledBalance decimal.Decimal `json:"reconciled_balance"`
	Reconciled        bool            `json:"reconciled"`
	PayoutDeferred    bool            `json:"payout_deferred"`
	SettledAt         time.Time       `json:"settled_at"`
}

// ──────────────────────────────────────────────────────────────────────────────
// WalletSession — external connectivity state, read-only to the core
// ──────────────────────────────────────────────────────────────────────────────

// WalletSession mirrors the external wallet collaborator's state.  The core
// never mutates it; it only reacts to changes.
type WalletSession struct {
	Connected           bool            `json:"connected"`
	Address             string          `json:"address"`
	Balance             decimal.Decimal `json:"balance"`
	HasPendingSignature bool            `json:"has_pending_signature"`
}

// ──────────────────────────────────────────────────────────────────────────────
// RetryPolicy
// ──────────────────────────────────────────────────────────────────────────────

// RetryPolicy makes backoff data rather than inline timers: one attempt per
// interval, sleeping the interval before the attempt.
type RetryPolicy struct {
	Intervals []time.Duration
	Tolerance decimal.Decimal
}

// MaxAttempts returns the number of attempts the policy allows.
func (p RetryPolicy) MaxAttempts() int {
	return len(p.Intervals)
}

// ──────────────────────────────────────────────────────────────────────────────
// RoundView — read model for UI display and WS broadcasts
// ──────────────────────────────────────────────────────────────────────────────

// RoundView is the derived, read-only projection of the orchestrator state.
// ViewStatus extends RoundStatus with the two controller-level states.
type RoundView struct {
	Status               string            `json:"status"` // disconnected|ready|staking|active|settling
	Seed                 int64             `json:"seed,omitempty"`
	StakeAmount          decimal.Decimal   `json:"stake_amount"`
	StakeTxID            string            `json:"stake_tx_id,omitempty"`
	Trades               []Trade           `json:"trades"`
	AccumulatedPnl       decimal.Decimal   `json:"accumulated_pnl"`
	AwaitingConfirmation bool              `json:"awaiting_confirmation"`
	Wallet               WalletSession     `json:"wallet"`
	LastSettlement       *SettlementResult `json:"last_settlement,omitempty"`
}
