// Package engine produces each round's deterministic price sequence and the
// liquidation risk model applied while a position is held.  The same seed
// always yields the same candles, so a round can be replayed and audited.
package engine

import (
	"math"
	"math/rand"

	"github.com/candlerush/arcade/internal/domain"
	"github.com/shopspring/decimal"
)

// Round shape constants.
const (
	RoundCandles       = 470 // ~30 seconds of play
	GracePeriodCandles = 150 // no liquidations
	RampUpCandles      = 75  // liquidation risk ramps in after grace
)

// Generate builds the full OHLC sequence for seed.  Prices move on three
// layered sine waves (long, medium, short period) plus per-candle noise, with
// wicks extending beyond the candle body.  The close never drops below 0.01.
func Generate(seed int64) []domain.Candle {
	rng := rand.New(rand.NewSource(seed))

	price := 10 + rng.Float64()*5 // opens between $10 and $15

	basePeriod := 100 + rng.Float64()*100
	mediumPeriod := 30 + rng.Float64()*20
	shortPeriod := 8 + rng.Float64()*8

	basePhase := rng.Float64() * math.Pi * 2
	mediumPhase := rng.Float64() * math.Pi * 2
	shortPhase := rng.Float64() * math.Pi * 2

	candles := make([]domain.Candle, 0, RoundCandles)
	for i := 0; i < RoundCandles; i++ {
		baseTrend := math.Sin(float64(i)*2*math.Pi/basePeriod+basePhase) * 0.15
		mediumTrend := math.Sin(float64(i)*2*math.Pi/mediumPeriod+mediumPhase) * 0.08
		shortTrend := math.Sin(float64(i)*2*math.Pi/shortPeriod+shortPhase) * 0.04
		trendWave := baseTrend + mediumTrend + shortTrend

		volatility := 0.02 + rng.Float64()*0.06 // 2–8% moves
		direction := float64(1)
		if rng.Intn(2) == 0 {
			direction = -1
		}
		randomFactor := (rng.Float64() - 0.5) * 2

		finalDirection := direction + trendWave + randomFactor*0.3
		move := price * volatility * math.Copysign(1, finalDirection)

		open := price
		closeP := math.Max(0.01, open+move*(0.5+rng.Float64()*0.5))

		wickMult := 0.3 + rng.Float64()*0.4
		high := math.Max(open, closeP) + math.Abs(move)*wickMult*rng.Float64()
		low := math.Min(open, closeP) - math.Abs(move)*wickMult*rng.Float64()
		low = math.Max(0.01, low)

		candles = append(candles, domain.Candle{
			Index: i,
			Open:  decimal.NewFromFloat(open).RoundDown(9),
			High:  decimal.NewFromFloat(high).RoundDown(9),
			Low:   decimal.NewFromFloat(low).RoundDown(9),
			Close: decimal.NewFromFloat(closeP).RoundDown(9),
		})
		price = closeP
	}
	return candles
}
