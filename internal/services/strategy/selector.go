// Package strategy chooses an execution plan for an approved trade. The
// selector is a pure function of confidence, volatility, liquidity and trend,
// so live ticks and backtests behave identically.
package strategy

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/papertrader/internal/domain"
)

// Thresholds tune strategy selection.
type Thresholds struct {
	DCAConfidence    float64         // min confidence for trend-following DCA
	GridVolatility   float64         // min volatility index for grid trading
	TWAPLiquidityUsd decimal.Decimal // below this, slice over time
	VWAPLiquidityUsd decimal.Decimal // above this, volume-weight the slices
}

// DefaultThresholds returns the tuned defaults.
func DefaultThresholds() Thresholds {
	return Thresholds{
		DCAConfidence:    75,
		GridVolatility:   60,
		TWAPLiquidityUsd: decimal.NewFromInt(50_000),
		VWAPLiquidityUsd: decimal.NewFromInt(1_000_000),
	}
}

// vwapCurve approximates an intraday volume profile for slice weighting.
var vwapCurve = []float64{0.10, 0.15, 0.20, 0.25, 0.30}

// Selector picks execution plans.
type Selector struct {
	thresholds Thresholds
}

// NewSelector creates a strategy selector.
func NewSelector(thresholds Thresholds) *Selector {
	return &Selector{thresholds: thresholds}
}

// Select picks the execution plan for a trade of totalUsd. SPOT is the default;
// the alternatives trigger on the documented conditions only.
func (s *Selector) Select(confidence, volatilityIndex float64, liquidityUsd, totalUsd decimal.Decimal, trend domain.TrendDirection) domain.StrategyPlan {
	switch {
	case liquidityUsd.GreaterThan(decimal.Zero) && liquidityUsd.LessThan(s.thresholds.TWAPLiquidityUsd):
		return twapPlan(totalUsd)
	case trend != domain.TrendSideways && confidence >= s.thresholds.DCAConfidence:
		return dcaPlan(totalUsd)
	case volatilityIndex >= s.thresholds.GridVolatility && trend == domain.TrendSideways:
		return gridPlan(totalUsd)
	case liquidityUsd.GreaterThanOrEqual(s.thresholds.VWAPLiquidityUsd):
		return vwapPlan(totalUsd)
	default:
		return domain.StrategyPlan{
			Type:     domain.StrategySpot,
			TotalUsd: totalUsd,
			Chunks:   []domain.Chunk{{SizeUsd: totalUsd}},
		}
	}
}

// dcaPlan averages into a strongly directional move in four equal legs.
func dcaPlan(totalUsd decimal.Decimal) domain.StrategyPlan {
	const legs = 4
	return equalChunks(domain.StrategyDCA, totalUsd, legs, 6*time.Hour)
}

// gridPlan ladders five equal orders across the range.
func gridPlan(totalUsd decimal.Decimal) domain.StrategyPlan {
	const levels = 5
	return equalChunks(domain.StrategyGrid, totalUsd, levels, 0)
}

// twapPlan slices a thin market into six equal time buckets.
func twapPlan(totalUsd decimal.Decimal) domain.StrategyPlan {
	const slices = 6
	return equalChunks(domain.StrategyTWAP, totalUsd, slices, 10*time.Minute)
}

// vwapPlan weights slices by the typical volume curve.
func vwapPlan(totalUsd decimal.Decimal) domain.StrategyPlan {
	chunks := make([]domain.Chunk, len(vwapCurve))
	allocated := decimal.Zero
	for i, weight := range vwapCurve {
		size := totalUsd.Mul(decimal.NewFromFloat(weight))
		if i == len(vwapCurve)-1 {
			size = totalUsd.Sub(allocated) // absorb rounding into the last slice
		}
		allocated = allocated.Add(size)
		chunks[i] = domain.Chunk{
			SizeUsd: size,
			Offset:  time.Duration(i) * 15 * time.Minute,
		}
	}
	return domain.StrategyPlan{Type: domain.StrategyVWAP, TotalUsd: totalUsd, Chunks: chunks}
}

func equalChunks(strategyType domain.StrategyType, totalUsd decimal.Decimal, n int, spacing time.Duration) domain.StrategyPlan {
	per := totalUsd.Div(decimal.NewFromInt(int64(n)))
	chunks := make([]domain.Chunk, n)
	allocated := decimal.Zero
	for i := range chunks {
		size := per
		if i == n-1 {
			size = totalUsd.Sub(allocated)
		}
		allocated = allocated.Add(size)
		chunks[i] = domain.Chunk{SizeUsd: size, Offset: time.Duration(i) * spacing}
	}
	return domain.StrategyPlan{Type: strategyType, TotalUsd: totalUsd, Chunks: chunks}
}
