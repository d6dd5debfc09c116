package domain

import "github.com/shopspring/decimal"

// Candle is one OHLC bar of a round's deterministic price sequence.
type Candle struct {
	Index int             `json:"index"`
	Open  decimal.Decimal `json:"open"`
	High  decimal.Decimal `json:"high"`
	Low   decimal.Decimal `json:"low"`
	Close decimal.Decimal `json:"close"`
}
