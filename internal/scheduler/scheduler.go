// Package scheduler manages the background goroutines that run the game
// lifecycle:
//  1. seedLoop    – generates a fresh chart seed whenever no round is on screen.
//  2. candleLoop  – advances the candle feed at the configured tick rate and
//     broadcasts each bar; the final bar triggers round end.
//  3. balanceLoop – polls the remote ledger for the wallet balance and feeds
//     session changes into the round controller.
package scheduler

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"log/slog"
	"time"

	"github.com/candlerush/arcade/internal/chain"
	"github.com/candlerush/arcade/internal/config"
	"github.com/candlerush/arcade/internal/domain"
	"github.com/candlerush/arcade/internal/engine"
	"github.com/candlerush/arcade/internal/round"
	"github.com/candlerush/arcade/internal/ws"
)

// ──────────────────────────────────────────────────────────────────────────────
// WsHub interface — minimally required from the Hub
// ──────────────────────────────────────────────────────────────────────────────

// WsHub defines the broadcast operations the Scheduler needs from the
// WebSocket hub.  Declared here so the scheduler package does not depend on
// the ws/hub.go implementation.
type WsHub interface {
	BroadcastCandle(msg ws.CandleMessage)
}

// ──────────────────────────────────────────────────────────────────────────────
// Scheduler
// ──────────────────────────────────────────────────────────────────────────────

// Scheduler drives the Controller and Feed from wall-clock time.  Call
// Start(ctx) once from main(); cancel the context to shut it down gracefully.
type Scheduler struct {
	ctrl   *round.Controller
	feed   *engine.Feed
	reader chain.Reader
	hub    WsHub
	cfg    *config.Config
	logger *slog.Logger

	// liquidation state, touched only by candleLoop
	risk     *engine.LiquidationModel
	riskSeed int64
	openIdx  int // candle index the current position was first seen at, -1 if none
}

// New creates a Scheduler.
func New(
	ctrl *round.Controller,
	feed *engine.Feed,
	reader chain.Reader,
	hub WsHub,
	cfg *config.Config,
	logger *slog.Logger,
) *Scheduler {
	return &Scheduler{
		ctrl:    ctrl,
		feed:    feed,
		reader:  reader,
		hub:     hub,
		cfg:     cfg,
		logger:  logger,
		openIdx: -1,
	}
}

// Start launches the background goroutines.  It returns immediately; all
// loops run until ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	go s.seedLoop(ctx)
	go s.candleLoop(ctx)
	go s.balanceLoop(ctx)
	s.logger.Info("scheduler started",
		"candle_interval", s.cfg.Game.CandleInterval,
		"round_gap", s.cfg.Game.RoundGap)
}

// ──────────────────────────────────────────────────────────────────────────────
// seedLoop
// ──────────────────────────────────────────────────────────────────────────────

// seedLoop emits a new seed after every round gap while no chart is playing.
// Seeds are pushed to the controller unconditionally; the controller buffers
// or stakes depending on its own state.
func (s *Scheduler) seedLoop(ctx context.Context) {
	defer s.recoverAndLog("seedLoop")

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("seedLoop: shutting down")
			return
		case <-time.After(s.cfg.Game.RoundGap):
		}

		if _, total := s.feed.Progress(); total > 0 {
			continue // a chart is still on screen
		}

		seed := newSeed()
		candles := engine.Generate(seed)
		s.feed.Begin(seed, candles)
		s.ctrl.OnSeed(ctx, seed)
		s.logger.Info("seed issued", "seed", seed, "candles", len(candles))
	}
}

// newSeed draws a random non-negative int64 from the OS entropy source.
func newSeed() int64 {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return time.Now().UnixNano()
	}
	return int64(binary.BigEndian.Uint64(b[:]) >> 1)
}

// ──────────────────────────────────────────────────────────────────────────────
// candleLoop
// ──────────────────────────────────────────────────────────────────────────────

// candleLoop advances the feed one bar per tick and broadcasts it.  When the
// feed is exhausted the controller receives the round-end signal with the
// final close price.
func (s *Scheduler) candleLoop(ctx context.Context) {
	defer s.recoverAndLog("candleLoop")

	ticker := time.NewTicker(s.cfg.Game.CandleInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("candleLoop: shutting down")
			return
		case <-ticker.C:
			s.advanceCandle(ctx)
		}
	}
}

// advanceCandle is the inner body of candleLoop, extracted so that the
// defer/recover in the loop catches panics correctly.
func (s *Scheduler) advanceCandle(ctx context.Context) {
	c, ok := s.feed.Advance()
	if !ok {
		return // nothing playing, or already exhausted and ended
	}

	_, total := s.feed.Progress()
	if s.hub != nil {
		s.hub.BroadcastCandle(ws.NewCandleMessage(s.feed.Seed(), c, total))
	}

	s.checkLiquidation(ctx, c)

	if c.Index == total-1 {
		s.logger.Info("chart exhausted, ending round",
			"seed", s.feed.Seed(), "final_price", c.Close)
		s.ctrl.OnRoundEnd(c.Close)
		s.feed.Begin(0, nil) // park the feed until the next seed
	}
}

// checkLiquidation rolls the liquidation model against the open position, if
// any, and force-closes it at the candle's low when the roll hits.
func (s *Scheduler) checkLiquidation(ctx context.Context, c domain.Candle) {
	if seed := s.feed.Seed(); s.risk == nil || s.riskSeed != seed {
		s.risk = engine.NewLiquidationModel(seed)
		s.riskSeed = seed
		s.openIdx = -1
	}

	open, ok := openTrade(s.ctrl.View().Trades)
	if !ok {
		s.openIdx = -1
		return
	}
	if s.openIdx < 0 {
		s.openIdx = c.Index
	}

	hold := c.Index - s.openIdx
	sizeRatio, _ := s.cfg.Game.PositionRatio.Float64()
	var pnlPct float64
	if open.EntryPrice.IsPositive() {
		pnlPct, _ = c.Close.Sub(open.EntryPrice).Div(open.EntryPrice).Float64()
	}

	if !s.risk.Check(c.Index, hold, sizeRatio, pnlPct) {
		return
	}

	net, err := s.ctrl.CloseTrade(ctx, c.Low)
	if err != nil {
		return // position already gone; nothing to liquidate
	}
	s.openIdx = -1
	s.logger.Warn("position liquidated",
		"seed", s.riskSeed, "candle", c.Index, "entry", open.EntryPrice,
		"liquidation_price", c.Low, "net_pnl", net)
}

// openTrade returns the open position from a trade history, if present.
func openTrade(trades []domain.Trade) (domain.Trade, bool) {
	for i := len(trades) - 1; i >= 0; i-- {
		if trades[i].Status == domain.TradeOpen {
			return trades[i], true
		}
	}
	return domain.Trade{}, false
}

// ──────────────────────────────────────────────────────────────────────────────
// balanceLoop
// ──────────────────────────────────────────────────────────────────────────────

// balanceLoop refreshes the connected wallet's balance from the remote ledger
// so the ready→staking guard sees current funds.  A read failure keeps the
// previous session state; a sustained failure is surfaced through logs only.
func (s *Scheduler) balanceLoop(ctx context.Context) {
	defer s.recoverAndLog("balanceLoop")

	ticker := time.NewTicker(s.cfg.Chain.BalancePollRate)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("balanceLoop: shutting down")
			return
		case <-ticker.C:
			s.refreshBalance(ctx)
		}
	}
}

func (s *Scheduler) refreshBalance(ctx context.Context) {
	session := s.ctrl.Wallet()
	if !session.Connected || session.Address == "" {
		return
	}

	balance, err := s.reader.ViewBalance(ctx, session.Address)
	if err != nil {
		s.logger.Warn("balanceLoop: balance read failed",
			"address", session.Address, "err", err)
		return
	}
	if balance.Equal(session.Balance) {
		return
	}

	s.ctrl.OnWalletChanged(ctx, domain.WalletSession{
		Connected: true,
		Address:   session.Address,
		Balance:   balance,
	})
}

// ──────────────────────────────────────────────────────────────────────────────
// Panic recovery
// ──────────────────────────────────────────────────────────────────────────────

// recoverAndLog is deferred inside each goroutine to catch unexpected panics,
// log them, and allow the scheduler to continue running.
func (s *Scheduler) recoverAndLog(loop string) {
	if r := recover(); r != nil {
		s.logger.Error("PANIC recovered in scheduler loop",
			"loop", loop, "panic", r)
	}
}
