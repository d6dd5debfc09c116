package round

import (
	"time"

	"github.com/candlerush/arcade/internal/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TradeLedger records the trades opened and closed within one round and keeps
// the running sum of closed trades' net PnL.
//
// The ledger is NOT safe for concurrent use on its own: it has exactly one
// writer, the Controller, which serialises access under its own lock.
type TradeLedger struct {
	feeRate     decimal.Decimal
	open        *domain.Trade
	closed      []domain.Trade
	accumulated decimal.Decimal
}

// NewTradeLedger creates a ledger charging feeRate of the position size per
// closed trade.
func NewTradeLedger(feeRate decimal.Decimal) *TradeLedger {
	return &TradeLedger{
		feeRate:     feeRate,
		accumulated: decimal.Zero,
	}
}

// OpenTrade opens a position of size units at entryPrice.  Only one position
// may be open at a time.
func (l *TradeLedger) OpenTrade(entryPrice, size decimal.Decimal, at time.Time) (domain.Trade, error) {
	if l.open != nil {
		return domain.Trade{}, domain.ErrTradeAlreadyOpen
	}
	t := domain.Trade{
		ID:         uuid.New(),
		EntryPrice: entryPrice,
		EntryTime:  at,
		Size:       size,
		Status:     domain.TradeOpen,
	}
	l.open = &t
	return t, nil
}

// CloseTrade closes the open position at exitPrice, appends it to the round's
// immutable trade history, and returns its net PnL.
func (l *TradeLedger) CloseTrade(exitPrice decimal.Decimal, at time.Time) (decimal.Decimal, error) {
	if l.open == nil {
		return decimal.Zero, domain.ErrNoOpenTrade
	}
	net := l.open.Close(exitPrice, l.feeRate, at)
	l.closed = append(l.closed, *l.open)
	l.open = nil
	l.accumulated = l.accumulated.Add(net)
	return net, nil
}

// HasOpen reports whether a position is currently open.
func (l *TradeLedger) HasOpen() bool {
	return l.open != nil
}

// AccumulatedPnl returns the running sum of closed trades' net PnL.
func (l *TradeLedger) AccumulatedPnl() decimal.Decimal {
	return l.accumulated
}

// Trades returns a copy of the trade history, with the open position (if any)
// appended last.
func (l *TradeLedger) Trades() []domain.Trade {
	out := make([]domain.Trade, len(l.closed), len(l.closed)+1)
	copy(out, l.closed)
	if l.open != nil {
		out = append(out, *l.open)
	}
	return out
}

// Reset clears all trades and the accumulated PnL.  Called only when a new
// round enters active.
func (l *TradeLedger) Reset() {
	l.open = nil
	l.closed = nil
	l.accumulated = decimal.Zero
}
