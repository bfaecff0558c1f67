package analyzer

import (
	"context"

	"github.com/vadiminshakov/papertrader/internal/domain"
)

// VolatilityAnalyzer scores price instability from the tick snapshot and the
// recent volatility samples. Part of the mandatory subset.
type VolatilityAnalyzer struct{}

func (a *VolatilityAnalyzer) Category() domain.Category { return domain.CategoryVolatility }

func (a *VolatilityAnalyzer) Analyze(_ context.Context, mctx domain.MarketContext, history *domain.History) domain.AnalyzerResult {
	if mctx.VolatilityIndex < 0 {
		return domain.AnalyzerResult{
			Category:       domain.CategoryVolatility,
			Score:          100,
			Quality:        domain.QualityNoData,
			Recommendation: "volatility unknown",
		}
	}

	score := clampScore(mctx.VolatilityIndex)
	quality := domain.QualityFair

	// with enough samples a rolling mean smooths out single-tick spikes
	if history != nil {
		if samples := history.VolatilitySamples(mctx.Token); len(samples) >= 3 {
			var sum float64
			for _, s := range samples {
				sum += s
			}
			score = clampScore((score + sum/float64(len(samples))) / 2)
			quality = domain.QualityGood
		}
	}

	recommendation := "volatility within normal range"
	if score > 60 {
		recommendation = "elevated volatility, reduce sizing"
	}

	return domain.AnalyzerResult{
		Category:       domain.CategoryVolatility,
		Score:          score,
		Quality:        quality,
		Recommendation: recommendation,
	}
}
