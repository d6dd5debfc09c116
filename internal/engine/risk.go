package engine

import (
	"math"
	"math/rand"
)

// Liquidation model tunables.
const (
	baseLiquidationChance = 0.0003
	maxLiquidationChance  = 0.01 // hard cap at 1% per candle
)

// LiquidationModel computes the per-candle probability that a held position
// is forcibly liquidated.  The grace period is risk-free, risk then ramps in,
// and holding longer, sizing bigger, or sitting on a large unrealised profit
// all raise it.
type LiquidationModel struct {
	rng *rand.Rand
}

// NewLiquidationModel seeds the model's random multiplier stream.
func NewLiquidationModel(seed int64) *LiquidationModel {
	return &LiquidationModel{rng: rand.New(rand.NewSource(seed))}
}

// Probability returns the liquidation chance for candle number candleNum.
// holdDuration is the number of candles the current position has been open
// (-1 when no position is held); sizeRatio is the position's share of the
// balance; pnlPct the unrealised PnL as a fraction of the balance.
func (m *LiquidationModel) Probability(candleNum, holdDuration int, sizeRatio, pnlPct float64) float64 {
	if candleNum < GracePeriodCandles {
		return 0
	}

	sinceGrace := candleNum - GracePeriodCandles
	base := baseLiquidationChance
	if sinceGrace < RampUpCandles {
		base *= float64(sinceGrace) / float64(RampUpCandles)
	}
	total := base

	if holdDuration >= 0 {
		// Time risk kicks in after 60 candles of holding.
		if holdDuration > 60 {
			timeRisk := math.Min(0.004, math.Pow(float64(holdDuration-60)/200, 1.8)*0.006)
			total += timeRisk
		}
		if sizeRatio > 0.7 {
			total += math.Min(0.0005, (sizeRatio-0.7)*0.0005)
		}
		if pnlPct > 0.3 {
			total += math.Min(0.0008, (pnlPct-0.3)*0.001)
		}
	}

	// Random 0.7x–1.5x multiplier keeps the threat unpredictable.
	total *= 0.7 + m.rng.Float64()*0.8

	return math.Min(maxLiquidationChance, total)
}

// Check rolls against Probability and reports whether liquidation occurs.
func (m *LiquidationModel) Check(candleNum, holdDuration int, sizeRatio, pnlPct float64) bool {
	return m.rng.Float64() < m.Probability(candleNum, holdDuration, sizeRatio, pnlPct)
}
