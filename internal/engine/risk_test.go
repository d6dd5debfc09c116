package engine

import "testing"

// TestLiquidationGracePeriod: no liquidation risk exists before the grace
// period ends, whatever the position looks like.
func TestLiquidationGracePeriod(t *testing.T) {
	m := NewLiquidationModel(1)

	for candle := 0; candle < GracePeriodCandles; candle++ {
		if p := m.Probability(candle, 400, 1.0, 2.0); p != 0 {
			t.Fatalf("candle %d: probability = %g, want 0 inside grace period", candle, p)
		}
	}
}

// TestLiquidationProbabilityCapped: the per-candle chance never exceeds 1%
// even for an extreme position.
func TestLiquidationProbabilityCapped(t *testing.T) {
	m := NewLiquidationModel(2)

	for candle := GracePeriodCandles; candle < RoundCandles; candle++ {
		p := m.Probability(candle, candle, 1.0, 5.0)
		if p < 0 || p > maxLiquidationChance {
			t.Fatalf("candle %d: probability = %g, want within [0, %g]",
				candle, p, maxLiquidationChance)
		}
	}
}

// TestLiquidationRampIn: risk right after the grace period starts near zero
// and grows through the ramp window.
func TestLiquidationRampIn(t *testing.T) {
	// Average over many seeds to smooth the random multiplier.
	const seeds = 200
	avg := func(candle int) float64 {
		var sum float64
		for s := int64(0); s < seeds; s++ {
			sum += NewLiquidationModel(s).Probability(candle, -1, 0, 0)
		}
		return sum / seeds
	}

	early := avg(GracePeriodCandles + 1)
	late := avg(GracePeriodCandles + RampUpCandles)
	if early >= late {
		t.Errorf("ramp not increasing: early %g >= late %g", early, late)
	}
}

// TestLiquidationHoldingRaisesRisk: a long-held position carries more risk
// than a fresh one at the same candle.
func TestLiquidationHoldingRaisesRisk(t *testing.T) {
	const seeds = 200
	avg := func(hold int) float64 {
		var sum float64
		for s := int64(0); s < seeds; s++ {
			sum += NewLiquidationModel(s).Probability(400, hold, 0.2, 0)
		}
		return sum / seeds
	}

	if fresh, held := avg(10), avg(300); fresh >= held {
		t.Errorf("hold-time risk missing: fresh %g >= held %g", fresh, held)
	}
}
