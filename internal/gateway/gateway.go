// Package gateway wraps submission of the two money-moving operations (stake,
// settle) through the injected external signer and classifies every failure
// into the domain taxonomy.
package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/candlerush/arcade/internal/chain"
	"github.com/candlerush/arcade/internal/domain"
	"github.com/candlerush/arcade/internal/retry"
	"github.com/shopspring/decimal"
)

// RoundStore persists returned transaction identifiers as part of the round
// so they survive a restart of the orchestrator's own state.
type RoundStore interface {
	RecordStakeTx(ctx context.Context, seed int64, txID string) error
	RecordSettleTx(ctx context.Context, seed int64, txID string, payout decimal.Decimal) error
}

// TransactionGateway delegates signing and submission to the external Signer.
// Network-level failures are retried on the configured backoff schedule; all
// other failures surface immediately, already classified by the chain layer.
type TransactionGateway struct {
	signer       chain.Signer
	store        RoundStore // nil disables tx-id persistence
	networkRetry []time.Duration
	logger       *slog.Logger

	mu     sync.RWMutex
	player string // base58 address of the connected wallet
}

// New builds a TransactionGateway.  store may be nil.
func New(signer chain.Signer, store RoundStore, networkRetry []time.Duration, logger *slog.Logger) *TransactionGateway {
	return &TransactionGateway{
		signer:       signer,
		store:        store,
		networkRetry: networkRetry,
		logger:       logger,
	}
}

// SetPlayer records the wallet address submissions are made for.  Called by
// the wallet-session layer on connect.
func (g *TransactionGateway) SetPlayer(address string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.player = address
}

func (g *TransactionGateway) playerAddress() string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.player
}

// ──────────────────────────────────────────────────────────────────────────────
// Stake
// ──────────────────────────────────────────────────────────────────────────────

// Stake submits the stake transaction for seed and returns its transaction
// identifier.
func (g *TransactionGateway) Stake(ctx context.Context, seed int64, amount decimal.Decimal) (string, error) {
	player := g.playerAddress()
	if player == "" {
		return "", domain.ErrWalletDisconnected
	}

	payload := chain.Payload{
		Kind:   chain.PayloadStake,
		Player: player,
		Seed:   seed,
		Amount: amount,
	}

	var res chain.SubmitResult
	err := retry.Do(ctx, g.networkRetry, domain.IsRetriable, func(ctx context.Context) error {
		r, submitErr := g.signer.SignAndSubmit(ctx, payload)
		if submitErr != nil {
			return submitErr
		}
		res = r
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("gateway.Stake seed %d: %w", seed, err)
	}

	if g.store != nil {
		if storeErr := g.store.RecordStakeTx(ctx, seed, res.TxID); storeErr != nil {
			// The submission succeeded; a persistence failure must not fail
			// the round.  The id is also held in the controller's Round.
			g.logger.Error("record stake tx failed", "seed", seed, "tx", res.TxID, "err", storeErr)
		}
	}
	return res.TxID, nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Settle
// ──────────────────────────────────────────────────────────────────────────────

// Settle submits the settlement transaction described by req and returns the
// confirmed payout.  req references exactly one prior stake transaction.
func (g *TransactionGateway) Settle(ctx context.Context, req domain.SettlementRequest) (domain.SettlementResult, error) {
	if req.StakeTxID == "" {
		return domain.SettlementResult{}, domain.ErrMissingStakeRef
	}
	player := g.playerAddress()
	if player == "" {
		return domain.SettlementResult{}, domain.ErrWalletDisconnected
	}

	payload := chain.Payload{
		Kind:      chain.PayloadSettle,
		Player:    player,
		Seed:      req.Seed,
		StakeTxID: req.StakeTxID,
		Amount:    req.StakeAmount,
		Pnl:       req.Pnl,
	}

	var res chain.SubmitResult
	err := retry.Do(ctx, g.networkRetry, domain.IsRetriable, func(ctx context.Context) error {
		r, submitErr := g.signer.SignAndSubmit(ctx, payload)
		if submitErr != nil {
			return submitErr
		}
		res = r
		return nil
	})
	if err != nil {
		return domain.SettlementResult{}, fmt.Errorf("gateway.Settle seed %d: %w", req.Seed, err)
	}

	if g.store != nil {
		if storeErr := g.store.RecordSettleTx(ctx, req.Seed, res.TxID, res.PayoutAmount); storeErr != nil {
			g.logger.Error("record settle tx failed", "seed", req.Seed, "tx", res.TxID, "err", storeErr)
		}
	}

	return domain.SettlementResult{
		TxID:         res.TxID,
		Seed:         req.Seed,
		PayoutAmount: res.PayoutAmount,
	}, nil
}
