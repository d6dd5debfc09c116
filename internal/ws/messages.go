// Package ws holds WebSocket message types and the Hub implementation.
// messages.go defines all message structs broadcast to connected clients.
package ws

import (
	"time"

	"github.com/candlerush/arcade/internal/domain"
	"github.com/shopspring/decimal"
)

// MsgType identifies the kind of WS message so clients can switch on it.
type MsgType string

const (
	MsgTypeCandle          MsgType = "candle"
	MsgTypeRoundStarted    MsgType = "round_started"
	MsgTypeSettlementArmed MsgType = "settlement_armed"
	MsgTypeRoundSettled    MsgType = "round_settled"
	MsgTypeTradeOpened     MsgType = "trade_opened"
	MsgTypeTradeClosed     MsgType = "trade_closed"
	MsgTypeError           MsgType = "error"
)

// ──────────────────────────────────────────────────────────────────────────────
// CandleMessage — pushed on every chart tick.
// ──────────────────────────────────────────────────────────────────────────────

// CandleMessage carries one OHLC bar plus round progress.
type CandleMessage struct {
	Type      MsgType         `json:"type"`
	Seed      int64           `json:"seed"`
	Index     int             `json:"index"`
	Total     int             `json:"total"`
	Open      decimal.Decimal `json:"open"`
	High      decimal.Decimal `json:"high"`
	Low       decimal.Decimal `json:"low"`
	Close     decimal.Decimal `json:"close"`
	Timestamp time.Time       `json:"timestamp"`
}

// ──────────────────────────────────────────────────────────────────────────────
// RoundStartedMessage — broadcast once the stake transaction confirms.
// ──────────────────────────────────────────────────────────────────────────────

// RoundStartedMessage announces a freshly funded round.
type RoundStartedMessage struct {
	Type        MsgType         `json:"type"`
	Seed        int64           `json:"seed"`
	StakeTxID   string          `json:"stake_tx_id"`
	StakeAmount decimal.Decimal `json:"stake_amount"`
	Timestamp   time.Time       `json:"timestamp"`
}

// ──────────────────────────────────────────────────────────────────────────────
// SettlementArmedMessage — the round has ended and awaits player confirmation.
// ──────────────────────────────────────────────────────────────────────────────

// SettlementArmedMessage tells clients to prompt the player for the
// settlement signature.
type SettlementArmedMessage struct {
	Type      MsgType         `json:"type"`
	Seed      int64           `json:"seed"`
	Pnl       decimal.Decimal `json:"pnl"`
	Timestamp time.Time       `json:"timestamp"`
}

// ──────────────────────────────────────────────────────────────────────────────
// RoundSettledMessage — broadcast after the payout transaction lands.
// ──────────────────────────────────────────────────────────────────────────────

// RoundSettledMessage carries the settlement outcome.
type RoundSettledMessage struct {
	Type           MsgType         `json:"type"`
	Seed           int64           `json:"seed"`
	SettleTxID     string          `json:"settle_tx_id"`
	PayoutAmount   decimal.Decimal `json:"payout_amount"`
	Balance        decimal.Decimal `json:"balance"`
	Reconciled     bool            `json:"reconciled"`
	PayoutDeferred bool            `json:"payout_deferred"`
	Timestamp      time.Time       `json:"timestamp"`
}

// ──────────────────────────────────────────────────────────────────────────────
// Trade messages — broadcast so spectators see the position change.
// ──────────────────────────────────────────────────────────────────────────────

// TradeOpenedMessage announces a new open position.
type TradeOpenedMessage struct {
	Type       MsgType         `json:"type"`
	Seed       int64           `json:"seed"`
	EntryPrice decimal.Decimal `json:"entry_price"`
	Size       decimal.Decimal `json:"size"`
	Timestamp  time.Time       `json:"timestamp"`
}

// TradeClosedMessage announces a closed position and its realised result.
type TradeClosedMessage struct {
	Type           MsgType         `json:"type"`
	Seed           int64           `json:"seed"`
	ExitPrice      decimal.Decimal `json:"exit_price"`
	NetPnl         decimal.Decimal `json:"net_pnl"`
	AccumulatedPnl decimal.Decimal `json:"accumulated_pnl"`
	Timestamp      time.Time       `json:"timestamp"`
}

// ──────────────────────────────────────────────────────────────────────────────
// ErrorMessage — sent to a single client on a non-fatal error.
// ──────────────────────────────────────────────────────────────────────────────

// ErrorMessage is sent directly to one client (not broadcast).
type ErrorMessage struct {
	Type    MsgType `json:"type"`
	Code    string  `json:"code"`
	Message string  `json:"message"`
}

// ──────────────────────────────────────────────────────────────────────────────
// Conversion helpers
// ──────────────────────────────────────────────────────────────────────────────

// NewCandleMessage builds a CandleMessage from a domain candle and progress.
func NewCandleMessage(seed int64, c domain.Candle, total int) CandleMessage {
	return CandleMessage{
		Type:      MsgTypeCandle,
		Seed:      seed,
		Index:     c.Index,
		Total:     total,
		Open:      c.Open,
		High:      c.High,
		Low:       c.Low,
		Close:     c.Close,
		Timestamp: time.Now().UTC(),
	}
}
