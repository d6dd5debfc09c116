package round

import (
	"testing"
	"time"

	"github.com/candlerush/arcade/internal/domain"
	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

// TestTradeLedgerPnl validates the net PnL formula on a round trip:
//
//	entry 100, exit 110, size 1, fee rate 0.002
//	gross = (110 - 100) × 1        = 10
//	fee   = 100 × 1 × 0.002        = 0.2
//	net   = 10 - 0.2               = 9.8
func TestTradeLedgerPnl(t *testing.T) {
	l := NewTradeLedger(dec("0.002"))
	now := time.Now()

	if _, err := l.OpenTrade(dec("100"), dec("1"), now); err != nil {
		t.Fatalf("OpenTrade: %v", err)
	}

	net, err := l.CloseTrade(dec("110"), now)
	if err != nil {
		t.Fatalf("CloseTrade: %v", err)
	}
	if !net.Equal(dec("9.8")) {
		t.Errorf("net = %s, want 9.8", net)
	}
	if !l.AccumulatedPnl().Equal(dec("9.8")) {
		t.Errorf("AccumulatedPnl = %s, want 9.8", l.AccumulatedPnl())
	}
}

func TestTradeLedgerLosingTradeStillPaysFee(t *testing.T) {
	l := NewTradeLedger(dec("0.002"))
	now := time.Now()

	if _, err := l.OpenTrade(dec("50"), dec("2"), now); err != nil {
		t.Fatalf("OpenTrade: %v", err)
	}

	// gross = (45-50)×2 = -10, fee = 50×2×0.002 = 0.2, net = -10.2
	net, err := l.CloseTrade(dec("45"), now)
	if err != nil {
		t.Fatalf("CloseTrade: %v", err)
	}
	if !net.Equal(dec("-10.2")) {
		t.Errorf("net = %s, want -10.2", net)
	}
}

func TestTradeLedgerSingleOpenPosition(t *testing.T) {
	l := NewTradeLedger(decimal.Zero)
	now := time.Now()

	if _, err := l.OpenTrade(dec("100"), dec("1"), now); err != nil {
		t.Fatalf("first OpenTrade: %v", err)
	}
	if _, err := l.OpenTrade(dec("101"), dec("1"), now); err != domain.ErrTradeAlreadyOpen {
		t.Errorf("second OpenTrade err = %v, want ErrTradeAlreadyOpen", err)
	}

	if _, err := l.CloseTrade(dec("102"), now); err != nil {
		t.Fatalf("CloseTrade: %v", err)
	}
	if _, err := l.CloseTrade(dec("103"), now); err != domain.ErrNoOpenTrade {
		t.Errorf("CloseTrade with nothing open err = %v, want ErrNoOpenTrade", err)
	}
}

func TestTradeLedgerAccumulatesAcrossTrades(t *testing.T) {
	l := NewTradeLedger(decimal.Zero)
	now := time.Now()

	l.OpenTrade(dec("100"), dec("1"), now)
	l.CloseTrade(dec("104"), now) // +4

	l.OpenTrade(dec("104"), dec("1"), now)
	l.CloseTrade(dec("103"), now) // -1

	if !l.AccumulatedPnl().Equal(dec("3")) {
		t.Errorf("AccumulatedPnl = %s, want 3", l.AccumulatedPnl())
	}
	if got := len(l.Trades()); got != 2 {
		t.Errorf("len(Trades()) = %d, want 2", got)
	}
}

func TestTradeLedgerReset(t *testing.T) {
	l := NewTradeLedger(decimal.Zero)
	now := time.Now()

	l.OpenTrade(dec("100"), dec("1"), now)
	l.Reset()

	if l.HasOpen() {
		t.Error("HasOpen() after Reset() = true, want false")
	}
	if !l.AccumulatedPnl().IsZero() {
		t.Errorf("AccumulatedPnl after Reset() = %s, want 0", l.AccumulatedPnl())
	}
	if got := len(l.Trades()); got != 0 {
		t.Errorf("len(Trades()) after Reset() = %d, want 0", got)
	}
}
