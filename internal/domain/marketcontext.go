package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TrendDirection classifies the recent price direction.
type TrendDirection int

const (
	TrendSideways TrendDirection = iota
	TrendUp
	TrendDown
)

// String returns the string representation of the trend.
func (t TrendDirection) String() string {
	switch t {
	case TrendUp:
		return "up"
	case TrendDown:
		return "down"
	default:
		return "sideways"
	}
}

// MarketContext is one immutable snapshot of market conditions for a token.
// Analyzers read it, never mutate it.
type MarketContext struct {
	Token           string
	PriceUsd        decimal.Decimal
	Volume24hUsd    decimal.Decimal
	LiquidityUsd    decimal.Decimal
	VolatilityIndex float64 // 0-100, above 60 is extreme
	Trend           TrendDirection
	Timestamp       time.Time
}

// ImpactRatio returns tradeSizeUsd relative to pool liquidity. A ratio of 0.01
// means the trade is 1% of the pool.
func (m MarketContext) ImpactRatio(tradeSizeUsd decimal.Decimal) float64 {
	if m.LiquidityUsd.LessThanOrEqual(decimal.Zero) {
		return 1
	}
	ratio, _ := tradeSizeUsd.Div(m.LiquidityUsd).Float64()
	return ratio
}

// VolumeLiquidityRatio returns 24h volume relative to pool liquidity. High
// values mean heavy churn over a thin pool.
func (m MarketContext) VolumeLiquidityRatio() float64 {
	if m.LiquidityUsd.LessThanOrEqual(decimal.Zero) {
		return 0
	}
	ratio, _ := m.Volume24hUsd.Div(m.LiquidityUsd).Float64()
	return ratio
}
