package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ──────────────────────────────────────────────────────────────────────────────
// Types & constants
// ──────────────────────────────────────────────────────────────────────────────

// TradeStatus represents the state of a position within a round.
type TradeStatus string

const (
	TradeOpen   TradeStatus = "open"
	TradeClosed TradeStatus = "closed"
)

// TradingFeeRate is the fee charged on the position size at close (0.2 %).
var TradingFeeRate = decimal.NewFromFloat(0.002)

// PositionSizeRatio is the share of the wallet balance committed per trade (20 %).
var PositionSizeRatio = decimal.NewFromFloat(0.2)

// ──────────────────────────────────────────────────────────────────────────────
// Trade
// ──────────────────────────────────────────────────────────────────────────────

// Trade is one open/close pair inside a Round.  Only one Trade may be open at
// a time; once closed it becomes part of the round's immutable history.
type Trade struct {
	ID         uuid.UUID        `json:"id"`
	EntryPrice decimal.Decimal  `json:"entry_price"`
	EntryTime  time.Time        `json:"entry_time"`
	ExitPrice  *decimal.Decimal `json:"exit_price,omitempty"`
	ExitTime   *time.Time       `json:"exit_time,omitempty"`
	Size       decimal.Decimal  `json:"size"`
	Fee        decimal.Decimal  `json:"fee"`
	NetPnl     *decimal.Decimal `json:"net_pnl,omitempty"`
	Status     TradeStatus      `json:"status"`
}

// IsOpen returns true while the position has not been closed.
func (t *Trade) IsOpen() bool {
	return t.Status == TradeOpen
}

// Close resolves the trade at exitPrice and computes its net PnL:
//
//	gross  = (exitPrice − entryPrice) × size
//	fee    = entryPrice × size × feeRate
//	netPnl = gross − fee
//
// The result is floored to 9 decimal places (one lamport of a 9-decimal
// token).  Close is a no-op returning the stored PnL when already closed.
func (t *Trade) Close(exitPrice decimal.Decimal, feeRate decimal.Decimal, at time.Time) decimal.Decimal {
	if t.Status == TradeClosed && t.NetPnl != nil {
		return *t.NetPnl
	}
	gross := exitPrice.Sub(t.EntryPrice).Mul(t.Size)
	fee := t.EntryPrice.Mul(t.Size).Mul(feeRate)
	net := gross.Sub(fee).RoundDown(9)

	t.ExitPrice = &exitPrice
	t.ExitTime = &at
	t.Fee = fee.RoundDown(9)
	t.NetPnl = &net
	t.Status = TradeClosed
	return net
}
