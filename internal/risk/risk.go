// Package risk sizes new signal positions and caps how many may be open at once.
package risk

import "github.com/shopspring/decimal"

// Sizer turns a signal confidence into a notional amount of capital.
type Sizer struct {
	Capital      decimal.Decimal
	PositionPct  decimal.Decimal
	MaxPositions int
}

// NewSizer builds a Sizer from float configuration values.
func NewSizer(capital, positionPct float64, maxPositions int) Sizer {
	return Sizer{
		Capital:      decimal.NewFromFloat(capital),
		PositionPct:  decimal.NewFromFloat(positionPct),
		MaxPositions: maxPositions,
	}
}

// Notional returns capital × position pct × confidence, rounded to cents. Confidence is clamped to [0, 1].
func (s Sizer) Notional(confidence float64) decimal.Decimal {
	c := decimal.NewFromFloat(confidence)
	if c.IsNegative() {
		c = decimal.Zero
	}
	if c.GreaterThan(decimal.NewFromInt(1)) {
		c = decimal.NewFromInt(1)
	}
	return s.Capital.Mul(s.PositionPct).Mul(c).Round(2)
}

// Allow reports whether another position may be opened given the current open count.
func (s Sizer) Allow(open int) bool {
	return open < s.MaxPositions
}
