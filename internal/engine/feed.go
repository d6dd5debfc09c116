package engine

import (
	"sync"

	"github.com/candlerush/arcade/internal/domain"
	"github.com/shopspring/decimal"
)

// Feed holds the candle sequence of the round currently being played and the
// cursor the clock advances through it.  Trade handlers read the current
// price from here; the clock is the only writer.
type Feed struct {
	mu      sync.RWMutex
	seed    int64
	candles []domain.Candle
	idx     int
	active  bool
}

// NewFeed returns an inactive feed.
func NewFeed() *Feed {
	return &Feed{}
}

// Begin installs a freshly generated sequence and resets the cursor.
func (f *Feed) Begin(seed int64, candles []domain.Candle) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seed = seed
	f.candles = candles
	f.idx = 0
	f.active = len(candles) > 0
}

// Advance moves the cursor one candle forward and returns it.  The second
// return value is false once the sequence is exhausted or the feed inactive.
func (f *Feed) Advance() (domain.Candle, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.active || f.idx >= len(f.candles) {
		f.active = false
		return domain.Candle{}, false
	}
	c := f.candles[f.idx]
	f.idx++
	if f.idx >= len(f.candles) {
		f.active = false
	}
	return c, true
}

// Current returns the candle under the cursor (the one most recently
// advanced to).  False when no round is playing.
func (f *Feed) Current() (domain.Candle, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.idx == 0 || len(f.candles) == 0 {
		return domain.Candle{}, false
	}
	return f.candles[f.idx-1], true
}

// CurrentPrice returns the close of the current candle, or zero when no
// round is playing.
func (f *Feed) CurrentPrice() decimal.Decimal {
	if c, ok := f.Current(); ok {
		return c.Close
	}
	return decimal.Zero
}

// FinalPrice returns the close of the last candle of the installed sequence.
func (f *Feed) FinalPrice() decimal.Decimal {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if len(f.candles) == 0 {
		return decimal.Zero
	}
	return f.candles[len(f.candles)-1].Close
}

// Progress reports the cursor position and the sequence length.
func (f *Feed) Progress() (idx, total int) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.idx, len(f.candles)
}

// Seed returns the seed of the installed sequence.
func (f *Feed) Seed() int64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.seed
}
