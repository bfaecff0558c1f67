package analyzer

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/papertrader/internal/domain"
)

// LiquidityAnalyzer scores pool depth. It is part of the mandatory subset:
// a degraded liquidity read makes the whole tick a SKIP.
type LiquidityAnalyzer struct{}

func (a *LiquidityAnalyzer) Category() domain.Category { return domain.CategoryLiquidity }

func (a *LiquidityAnalyzer) Analyze(_ context.Context, mctx domain.MarketContext, _ *domain.History) domain.AnalyzerResult {
	if mctx.LiquidityUsd.LessThanOrEqual(decimal.Zero) {
		return domain.AnalyzerResult{
			Category:       domain.CategoryLiquidity,
			Score:          100,
			Quality:        domain.QualityNoData,
			Recommendation: "liquidity unknown, do not trade",
		}
	}

	liq, _ := mctx.LiquidityUsd.Float64()

	var score float64
	var recommendation string
	switch {
	case liq < 10_000:
		score, recommendation = 90, "pool too shallow for any size"
	case liq < 50_000:
		score, recommendation = 70, "thin pool, tiny positions only"
	case liq < 250_000:
		score, recommendation = 45, "moderate depth, watch impact"
	case liq < 1_000_000:
		score, recommendation = 25, "healthy depth"
	default:
		score, recommendation = 10, "deep pool"
	}

	return domain.AnalyzerResult{
		Category:       domain.CategoryLiquidity,
		Score:          score,
		Quality:        domain.QualityExcellent,
		Recommendation: recommendation,
	}
}
