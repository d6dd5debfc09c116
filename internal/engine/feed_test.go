package engine

import (
	"testing"

	"github.com/candlerush/arcade/internal/domain"
	"github.com/shopspring/decimal"
)

func testCandles(n int) []domain.Candle {
	out := make([]domain.Candle, n)
	for i := range out {
		p := decimal.NewFromInt(int64(100 + i))
		out[i] = domain.Candle{Index: i, Open: p, High: p, Low: p, Close: p}
	}
	return out
}

func TestFeedAdvanceToExhaustion(t *testing.T) {
	f := NewFeed()
	f.Begin(9, testCandles(3))

	for i := 0; i < 3; i++ {
		c, ok := f.Advance()
		if !ok {
			t.Fatalf("Advance %d reported exhausted", i)
		}
		if c.Index != i {
			t.Errorf("Advance %d returned index %d", i, c.Index)
		}
	}
	if _, ok := f.Advance(); ok {
		t.Error("Advance past the end should report exhausted")
	}
}

func TestFeedCurrentPrice(t *testing.T) {
	f := NewFeed()

	if !f.CurrentPrice().IsZero() {
		t.Error("inactive feed should report zero price")
	}

	f.Begin(9, testCandles(3))
	f.Advance()
	f.Advance()

	if !f.CurrentPrice().Equal(decimal.NewFromInt(101)) {
		t.Errorf("CurrentPrice = %s, want 101", f.CurrentPrice())
	}
	if !f.FinalPrice().Equal(decimal.NewFromInt(102)) {
		t.Errorf("FinalPrice = %s, want 102", f.FinalPrice())
	}
}

func TestFeedBeginResets(t *testing.T) {
	f := NewFeed()
	f.Begin(1, testCandles(2))
	f.Advance()

	f.Begin(2, testCandles(5))
	if idx, total := f.Progress(); idx != 0 || total != 5 {
		t.Errorf("Progress after Begin = (%d, %d), want (0, 5)", idx, total)
	}
	if f.Seed() != 2 {
		t.Errorf("Seed = %d, want 2", f.Seed())
	}

	// Parking the feed with an empty sequence deactivates it.
	f.Begin(0, nil)
	if _, ok := f.Advance(); ok {
		t.Error("parked feed should not advance")
	}
	if _, total := f.Progress(); total != 0 {
		t.Errorf("parked feed total = %d, want 0", total)
	}
}
