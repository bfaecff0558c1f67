package analyzer

import (
	"context"

	"github.com/vadiminshakov/papertrader/internal/domain"
)

// MarketStateAnalyzer maps trend and volatility into a sentiment score.
// Volatility above the configured ceiling forces "uncertain" regardless of
// what the trend looks like.
type MarketStateAnalyzer struct {
	cfg Config
}

func (a *MarketStateAnalyzer) Category() domain.Category { return domain.CategoryMarketState }

func (a *MarketStateAnalyzer) Analyze(_ context.Context, mctx domain.MarketContext, _ *domain.History) domain.AnalyzerResult {
	if mctx.VolatilityIndex > a.cfg.UncertainVolatility {
		return domain.AnalyzerResult{
			Category:       domain.CategoryMarketState,
			Score:          60,
			Quality:        domain.QualityGood,
			Recommendation: "uncertain",
		}
	}

	var score float64
	var sentiment string
	switch mctx.Trend {
	case domain.TrendUp:
		score, sentiment = 25, "bullish"
	case domain.TrendDown:
		score, sentiment = 70, "bearish"
	default:
		score, sentiment = 45, "neutral"
	}

	return domain.AnalyzerResult{
		Category:       domain.CategoryMarketState,
		Score:          score,
		Quality:        domain.QualityGood,
		Recommendation: sentiment,
	}
}
