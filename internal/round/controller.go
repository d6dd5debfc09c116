package round

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/candlerush/arcade/internal/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ──────────────────────────────────────────────────────────────────────────────
// Collaborator interfaces — implemented by gateway, reconcile, repository, ws
// ──────────────────────────────────────────────────────────────────────────────

// Gateway submits the two money-moving operations through the external signer
// and classifies every failure into the domain taxonomy.
type Gateway interface {
	Stake(ctx context.Context, seed int64, amount decimal.Decimal) (string, error)
	Settle(ctx context.Context, req domain.SettlementRequest) (domain.SettlementResult, error)
}

// Reconciler polls the remote balance with bounded retries until it matches
// an expected value within tolerance.  It never returns an error: on
// exhaustion it reports matched=false with the last observed value.
type Reconciler interface {
	Reconcile(ctx context.Context, address string, expected decimal.Decimal, policy domain.RetryPolicy) (matched bool, observed decimal.Decimal)
}

// Store persists Round snapshots so a restart cannot lose a round's identity.
// A nil Store disables persistence.
type Store interface {
	SaveSnapshot(ctx context.Context, r *domain.Round) error
	RecordSettlement(ctx context.Context, r *domain.Round, res domain.SettlementResult) error
}

// Notifier receives display-level lifecycle events.  A nil Notifier is fine.
type Notifier interface {
	RoundStarted(v domain.RoundView)
	SettlementArmed(v domain.RoundView)
	RoundSettled(res domain.SettlementResult, v domain.RoundView)
}

// ──────────────────────────────────────────────────────────────────────────────
// Config
// ──────────────────────────────────────────────────────────────────────────────

// Config carries the tunables of the orchestrator.
type Config struct {
	StakeAmount     decimal.Decimal // committed at every round start
	MinBalance      decimal.Decimal // wallet balance required to start a round
	FeeRate         decimal.Decimal // trading fee on position size
	PositionRatio   decimal.Decimal // share of balance committed per trade
	StakeTimeout    time.Duration   // ceiling on waiting for a stake signature
	RejectCooldown  time.Duration   // suppress auto-restake after a rejection
	ReconcilePolicy domain.RetryPolicy
}

// ──────────────────────────────────────────────────────────────────────────────
// Controller
// ──────────────────────────────────────────────────────────────────────────────

// Controller is the single source of truth for round progress and the only
// component permitted to start or settle a round.  It owns one mutable Round;
// gateway and reconciler calls run on goroutines and re-check the round's
// identity under the lock before applying their outcome, so a seed that
// arrives mid-suspension can never corrupt an in-flight round.
type Controller struct {
	mu sync.Mutex

	cfg        Config
	gateway    Gateway
	reconciler Reconciler
	store      Store
	notifier   Notifier
	logger     *slog.Logger
	runCtx     context.Context // lifetime context for money-moving goroutines

	connected bool
	wallet    domain.WalletSession

	queue  *SeedQueue
	ledger *TradeLedger

	round      *domain.Round
	roundEnded bool
	settleReq  *domain.SettlementRequest // built exactly once per round
	settling   bool                      // single-flight guard

	lastResult    *domain.SettlementResult
	cooldownUntil time.Time
	orphanStakes  map[int64]struct{} // seeds whose stake wait was abandoned
}

// NewController builds a Controller.  store and notifier may be nil.
func NewController(
	cfg Config,
	gateway Gateway,
	reconciler Reconciler,
	store Store,
	notifier Notifier,
	logger *slog.Logger,
) *Controller {
	return &Controller{
		cfg:          cfg,
		gateway:      gateway,
		reconciler:   reconciler,
		store:        store,
		notifier:     notifier,
		logger:       logger,
		runCtx:       context.Background(),
		queue:        NewSeedQueue(),
		ledger:       NewTradeLedger(cfg.FeeRate),
		orphanStakes: make(map[int64]struct{}),
	}
}

// SetNotifier wires the display broadcaster after construction (the hub is
// built later in main, same pattern as the bet service broadcaster).
func (c *Controller) SetNotifier(n Notifier) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.notifier = n
}

// Start installs the process-lifetime context.  Stake and settle submissions
// run on it, never on the caller's context: a signature prompt outlives the
// HTTP request that triggered it, and cancelling an in-flight settlement with
// the request would lose the round's money.
func (c *Controller) Start(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.runCtx = ctx
}

// Restore re-adopts a persisted round after a restart.  Only a round that was
// active (stake recorded, settlement not submitted) is worth re-adopting; the
// trade history restarts empty and the round is immediately armed so the
// player can settle the recovered stake.
func (c *Controller) Restore(r *domain.Round) {
	if r == nil || !r.HasStake() {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	r.Status = domain.RoundActive
	c.round = r
	c.roundEnded = true
	c.armSettlementLocked()
	c.logger.Info("restored unsettled round",
		"seed", r.Seed, "stake_tx", r.StakeTxID, "pnl", r.AccumulatedPnl)
}

// ──────────────────────────────────────────────────────────────────────────────
// Clock events
// ──────────────────────────────────────────────────────────────────────────────

// OnSeed handles a seed arriving from the external clock.  If the controller
// is ready it stakes immediately; otherwise the seed is buffered (last wins).
// The clock keeps generating seeds regardless of settlement progress, so this
// path must never block.
func (c *Controller) OnSeed(ctx context.Context, seed int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.readyForSeedLocked() {
		c.queue.Enqueue(seed)
		return
	}
	c.startStakeLocked(ctx, seed)
}

// OnRoundEnd handles the round-end signal.  finalPrice closes any dangling
// open position so the settlement amount reflects the full round.  The round
// is then armed for settlement; the actual settling transition waits for the
// explicit user confirmation hook (ConfirmSettlement).
//
// A round that ends while still staking (slow signature) is armed later, by
// the stake completion handler, using the in-flight stake reference once it
// resolves.
func (c *Controller) OnRoundEnd(finalPrice decimal.Decimal) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.round == nil || c.roundEnded {
		return
	}
	c.roundEnded = true
	now := time.Now().UTC()
	c.round.EndedAt = &now

	if c.ledger.HasOpen() {
		if net, err := c.ledger.CloseTrade(finalPrice, now); err == nil {
			c.logger.Info("open position force-closed at round end",
				"seed", c.round.Seed, "net_pnl", net)
		}
	}
	c.syncRoundFromLedgerLocked()

	if c.round.Status == domain.RoundActive && c.round.HasStake() {
		c.armSettlementLocked()
	}
}

// OnWalletChanged consumes a WalletSession state change.
//
// Guard invariant: a transition to disconnected is suppressed whenever a
// round is in flight — wallet-session flicker must never abandon money.  Only
// a sustained disconnect with nothing outstanding clears state.
func (c *Controller) OnWalletChanged(ctx context.Context, ws domain.WalletSession) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.wallet = ws

	if !ws.Connected {
		if c.round != nil || c.settling {
			c.logger.Warn("wallet disconnect suppressed: round in flight",
				"status", c.statusLocked())
			return
		}
		if c.connected {
			c.logger.Info("wallet disconnected")
		}
		c.connected = false
		c.queue.Clear()
		c.ledger.Reset()
		return
	}

	if !c.connected {
		c.logger.Info("wallet connected", "address", ws.Address, "balance", ws.Balance)
	}
	c.connected = true

	// Balance may have risen past the minimum: a seed queued on
	// InsufficientFunds waits for exactly this.
	c.drainQueueLocked(ctx)
}

// ──────────────────────────────────────────────────────────────────────────────
// Settlement confirmation hook (UI collaborator)
// ──────────────────────────────────────────────────────────────────────────────

// ConfirmSettlement executes the settling transition.  Round end alone never
// settles; the display collaborator requests it explicitly through this hook.
//
// A re-entrant call while already settling is a no-op (single-flight guard).
// A call without a recorded seed or stake reference is fatal-local: the round
// resets to ready and nothing is ever submitted.
//
// ctx covers only the synchronous guard checks.  The settlement itself runs
// on the controller's lifetime context so it survives the caller returning.
func (c *Controller) ConfirmSettlement(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.settling {
		c.logger.Debug("duplicate settlement attempt ignored")
		return nil
	}
	if c.round == nil {
		return domain.ErrRoundNotActive
	}
	if !c.roundEnded {
		return domain.ErrRoundNotEnded
	}
	if c.settleReq == nil || !c.round.HasStake() {
		c.logger.Error("settlement requested without stake reference, resetting",
			"seed", c.round.Seed)
		c.clearRoundLocked()
		return domain.ErrMissingStakeRef
	}

	c.settling = true
	c.round.Status = domain.RoundSettling
	req := *c.settleReq
	go c.runSettle(c.runCtx, req)
	return nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Trading (delegated to TradeLedger while active)
// ──────────────────────────────────────────────────────────────────────────────

// OpenTrade opens a position at price.  The position size is the configured
// share of the wallet balance, denominated in units of the traded asset.
func (c *Controller) OpenTrade(price decimal.Decimal) (domain.Trade, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.round == nil || c.round.Status != domain.RoundActive || c.roundEnded {
		return domain.Trade{}, domain.ErrRoundNotActive
	}
	if !price.IsPositive() {
		return domain.Trade{}, domain.ErrInvalidPrice
	}
	size := c.wallet.Balance.Mul(c.cfg.PositionRatio).Div(price).RoundDown(9)
	t, err := c.ledger.OpenTrade(price, size, time.Now().UTC())
	if err != nil {
		return domain.Trade{}, err
	}
	c.syncRoundFromLedgerLocked()
	return t, nil
}

// CloseTrade closes the open position at price and returns its net PnL.
func (c *Controller) CloseTrade(ctx context.Context, price decimal.Decimal) (decimal.Decimal, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.round == nil || c.round.Status != domain.RoundActive {
		return decimal.Zero, domain.ErrRoundNotActive
	}
	net, err := c.ledger.CloseTrade(price, time.Now().UTC())
	if err != nil {
		return decimal.Zero, err
	}
	c.syncRoundFromLedgerLocked()
	c.persistLocked(ctx)
	return net, nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Projections
// ──────────────────────────────────────────────────────────────────────────────

// View returns the current display projection.
func (c *Controller) View() domain.RoundView {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewLocked()
}

// Wallet returns the last observed wallet session, overlaid with any
// signature prompt the controller itself has outstanding.
func (c *Controller) Wallet() domain.WalletSession {
	c.mu.Lock()
	defer c.mu.Unlock()
	w := c.wallet
	w.HasPendingSignature = w.HasPendingSignature || c.signaturePendingLocked()
	return w
}

// signaturePendingLocked reports whether one of the controller's own
// money-moving prompts is open at the bridge.
func (c *Controller) signaturePendingLocked() bool {
	return c.settling || (c.round != nil && c.round.Status == domain.RoundStaking)
}

// ──────────────────────────────────────────────────────────────────────────────
// Stake path
// ──────────────────────────────────────────────────────────────────────────────

// readyForSeedLocked is the ready→staking guard of the state machine.
func (c *Controller) readyForSeedLocked() bool {
	if !c.connected || c.round != nil || c.settling {
		return false
	}
	// The bridge already has a prompt open; never stack a second one.
	if c.wallet.HasPendingSignature {
		return false
	}
	if time.Now().Before(c.cooldownUntil) {
		return false
	}
	return c.wallet.Balance.GreaterThanOrEqual(c.cfg.MinBalance)
}

func (c *Controller) startStakeLocked(ctx context.Context, seed int64) {
	now := time.Now().UTC()
	c.round = &domain.Round{
		ID:             uuid.New(),
		Seed:           seed,
		Status:         domain.RoundStaking,
		StakeAmount:    c.cfg.StakeAmount,
		BalanceBefore:  c.wallet.Balance,
		AccumulatedPnl: decimal.Zero,
		StartedAt:      now,
	}
	c.roundEnded = false
	c.settleReq = nil
	c.persistLocked(ctx)
	c.logger.Info("staking round", "seed", seed, "amount", c.cfg.StakeAmount)

	go c.runStake(c.runCtx, seed, c.cfg.StakeAmount)

	if c.cfg.StakeTimeout > 0 {
		time.AfterFunc(c.cfg.StakeTimeout, func() { c.onStakeTimeout(seed) })
	}
}

// runStake performs the suspension point around Gateway.Stake and re-checks
// the round's identity before applying the outcome.
func (c *Controller) runStake(ctx context.Context, seed int64, amount decimal.Decimal) {
	txID, err := c.gateway.Stake(ctx, seed, amount)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.round == nil || c.round.Seed != seed || c.round.Status != domain.RoundStaking {
		// Local wait was abandoned.  A late success is an orphaned stake:
		// logged only — reconciliation absorbs the balance effect.
		if _, watched := c.orphanStakes[seed]; watched {
			delete(c.orphanStakes, seed)
			if err == nil {
				c.logger.Warn("orphaned stake confirmed after abandoned wait",
					"seed", seed, "stake_tx", txID)
			}
		}
		return
	}

	if err != nil {
		c.failStakeLocked(seed, err)
		c.drainQueueLocked(ctx)
		return
	}

	c.round.StakeTxID = txID
	c.round.Status = domain.RoundActive
	c.ledger.Reset()
	c.queue.Clear()
	c.persistLocked(ctx)
	c.logger.Info("stake confirmed", "seed", seed, "stake_tx", txID)

	if c.notifier != nil {
		c.notifier.RoundStarted(c.viewLocked())
	}

	// Race with a slow signature: the round already ended while staking.
	// Settle anyway, now that the stake reference has resolved.
	if c.roundEnded {
		c.armSettlementLocked()
	}
}

// failStakeLocked applies the recovery table for a failed stake.
func (c *Controller) failStakeLocked(seed int64, err error) {
	switch {
	case errors.Is(err, domain.ErrInsufficientFunds):
		// Keep the seed; it becomes eligible again when the balance rises.
		// The same stake attempt is never retried.
		c.queue.Enqueue(seed)
		c.logger.Warn("stake failed: insufficient funds, seed queued", "seed", seed)

	case errors.Is(err, domain.ErrSignatureRejected):
		// Seed dropped, not requeued: the player waits for the next one.
		// Brief cooldown avoids an immediate re-prompt loop.
		c.cooldownUntil = time.Now().Add(c.cfg.RejectCooldown)
		c.logger.Warn("stake rejected by user, seed dropped", "seed", seed)

	case domain.IsRetriable(err):
		// The gateway has already exhausted its backoff: rejected-equivalent.
		c.logger.Warn("stake failed after network retries, seed dropped",
			"seed", seed, "err", err)

	default:
		c.logger.Error("unclassified stake failure, seed dropped",
			"seed", seed, "err", err)
	}
	c.clearRoundLocked()
}

// onStakeTimeout fires when staking persists beyond the ceiling with neither
// a success nor a classified failure.  It abandons the wait, not the remote
// operation: a late confirmation is detected by seed match in runStake.
func (c *Controller) onStakeTimeout(seed int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.round == nil || c.round.Seed != seed || c.round.Status != domain.RoundStaking {
		return
	}
	c.logger.Error("stake stuck beyond ceiling, abandoning wait", "seed", seed)
	c.orphanStakes[seed] = struct{}{}
	c.clearRoundLocked()
}

// ──────────────────────────────────────────────────────────────────────────────
// Settlement path
// ──────────────────────────────────────────────────────────────────────────────

// armSettlementLocked builds the SettlementRequest exactly once per round.
func (c *Controller) armSettlementLocked() {
	if c.settleReq != nil || c.round == nil || !c.round.HasStake() {
		return
	}
	c.syncRoundFromLedgerLocked()
	req := domain.SettlementRequest{
		Seed:        c.round.Seed,
		StakeTxID:   c.round.StakeTxID,
		StakeAmount: c.round.StakeAmount,
		Pnl:         c.round.AccumulatedPnl,
	}
	c.settleReq = &req
	c.logger.Info("settlement armed, awaiting confirmation",
		"seed", req.Seed, "pnl", req.Pnl)
	if c.notifier != nil {
		c.notifier.SettlementArmed(c.viewLocked())
	}
}

// runSettle performs the settlement suspension point and the subsequent
// balance reconciliation.  The lock is never held across a remote call.
func (c *Controller) runSettle(ctx context.Context, req domain.SettlementRequest) {
	res, err := c.gateway.Settle(ctx, req)
	now := time.Now().UTC()

	if err != nil {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.settling = false

		switch {
		case errors.Is(err, domain.ErrTreasuryInsufficient):
			// The logical round is over even though the payout did not
			// occur.  Clear the round, flag the payout as deferred so the
			// display can surface it, and log for operational follow-up.
			c.logger.Error("treasury cannot cover payout, round cleared with payout deferred",
				"seed", req.Seed, "stake_tx", req.StakeTxID, "pnl", req.Pnl)
			deferred := domain.SettlementResult{
				Seed:              req.Seed,
				PayoutAmount:      decimal.Zero,
				ReconciledBalance: c.wallet.Balance,
				Reconciled:        false,
				PayoutDeferred:    true,
				SettledAt:         now,
			}
			c.completeRoundLocked(ctx, deferred)

		case errors.Is(err, domain.ErrSignatureRejected):
			c.cooldownUntil = now.Add(c.cfg.RejectCooldown)
			c.logger.Warn("settlement rejected by user, round cleared", "seed", req.Seed)
			c.clearRoundLocked()

		case domain.IsRejectionEquivalent(err):
			c.logger.Warn("settlement failed, round cleared", "seed", req.Seed, "err", err)
			c.clearRoundLocked()

		default:
			c.logger.Error("unclassified settlement failure, round cleared",
				"seed", req.Seed, "err", err)
			c.clearRoundLocked()
		}
		c.drainQueueLocked(ctx)
		return
	}

	// Success: reconcile against the eventually-consistent remote ledger
	// before touching controller state.
	c.mu.Lock()
	address := c.wallet.Address
	expected := c.wallet.Balance
	if c.round != nil && c.round.Seed == req.Seed {
		expected = c.round.BalanceBefore.Sub(req.StakeAmount).Add(res.PayoutAmount)
	}
	c.mu.Unlock()

	matched, observed := c.reconciler.Reconcile(ctx, address, expected, c.cfg.ReconcilePolicy)

	res.Seed = req.Seed
	res.SettledAt = now
	res.Reconciled = matched
	if matched {
		res.ReconciledBalance = observed
	} else {
		// Optimistic: internal accounting proceeds on the expected value;
		// the display flags the discrepancy as pending reconciliation.
		res.ReconciledBalance = expected
		c.logger.Warn("balance reconciliation exhausted, proceeding optimistically",
			"seed", req.Seed, "expected", expected, "observed", observed)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.settling = false
	c.completeRoundLocked(ctx, res)
	c.drainQueueLocked(ctx)
}

// completeRoundLocked records a finished settlement (paid or deferred),
// publishes the result, and returns the controller to ready.
func (c *Controller) completeRoundLocked(ctx context.Context, res domain.SettlementResult) {
	if c.round != nil {
		c.round.SettledAt = &res.SettledAt
		if c.store != nil {
			if err := c.store.RecordSettlement(ctx, c.round, res); err != nil {
				c.logger.Error("persist settlement failed", "seed", res.Seed, "err", err)
			}
		}
	}
	c.lastResult = &res
	c.wallet.Balance = res.ReconciledBalance

	c.logger.Info("round settled",
		"seed", res.Seed, "settle_tx", res.TxID, "payout", res.PayoutAmount,
		"reconciled", res.Reconciled, "payout_deferred", res.PayoutDeferred)

	view := c.viewLocked()
	c.clearRoundLocked()
	if c.notifier != nil {
		c.notifier.RoundSettled(res, view)
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// Internal helpers (lock held)
// ──────────────────────────────────────────────────────────────────────────────

func (c *Controller) clearRoundLocked() {
	c.round = nil
	c.roundEnded = false
	c.settleReq = nil
	c.settling = false
	c.ledger.Reset()
}

// drainQueueLocked starts a buffered seed when the ready→staking guard allows.
// Rounds settle strictly before the next stake is submitted: this is only
// reachable once no round is in flight.
func (c *Controller) drainQueueLocked(ctx context.Context) {
	if !c.readyForSeedLocked() {
		return
	}
	if seed, ok := c.queue.Drain(); ok {
		c.startStakeLocked(ctx, seed)
	}
}

func (c *Controller) syncRoundFromLedgerLocked() {
	if c.round == nil {
		return
	}
	c.round.Trades = c.ledger.Trades()
	c.round.AccumulatedPnl = c.ledger.AccumulatedPnl()
}

func (c *Controller) persistLocked(ctx context.Context) {
	if c.store == nil || c.round == nil {
		return
	}
	if err := c.store.SaveSnapshot(ctx, c.round); err != nil {
		c.logger.Error("persist round snapshot failed", "seed", c.round.Seed, "err", err)
	}
}

// statusLocked derives the display status string.
func (c *Controller) statusLocked() string {
	if !c.connected {
		return "disconnected"
	}
	if c.round == nil {
		return "ready"
	}
	return string(c.round.Status)
}

func (c *Controller) viewLocked() domain.RoundView {
	v := domain.RoundView{
		Status:         c.statusLocked(),
		StakeAmount:    decimal.Zero,
		AccumulatedPnl: decimal.Zero,
		Wallet:         c.wallet,
		LastSettlement: c.lastResult,
	}
	v.Wallet.HasPendingSignature = v.Wallet.HasPendingSignature || c.signaturePendingLocked()
	if c.round != nil {
		v.Seed = c.round.Seed
		v.StakeAmount = c.round.StakeAmount
		v.StakeTxID = c.round.StakeTxID
		v.Trades = c.ledger.Trades()
		v.AccumulatedPnl = c.ledger.AccumulatedPnl()
		v.AwaitingConfirmation = c.roundEnded && c.settleReq != nil && !c.settling
	}
	return v
}
