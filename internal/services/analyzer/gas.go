package analyzer

import (
	"context"

	"github.com/vadiminshakov/papertrader/internal/domain"
)

// GasAnalyzer scores execution cost pressure. Without a live chain estimator it
// works off the configured gas price, so quality never exceeds FAIR.
type GasAnalyzer struct {
	cfg Config
}

func (a *GasAnalyzer) Category() domain.Category { return domain.CategoryGas }

func (a *GasAnalyzer) Analyze(_ context.Context, mctx domain.MarketContext, _ *domain.History) domain.AnalyzerResult {
	gwei := a.cfg.GasPriceGwei
	if gwei <= 0 {
		return domain.AnalyzerResult{
			Category:       domain.CategoryGas,
			Score:          50,
			Quality:        domain.QualityNoData,
			Recommendation: "no gas estimate available",
		}
	}

	// 30 gwei is routine, 150+ means the trade cost eats the edge.
	score := clampScore(gwei / 1.5)
	recommendation := "gas cost acceptable"
	if gwei >= 150 {
		recommendation = "defer execution until gas cools down"
	}

	return domain.AnalyzerResult{
		Category:       domain.CategoryGas,
		Score:          score,
		Quality:        domain.QualityFair,
		Recommendation: recommendation,
	}
}
