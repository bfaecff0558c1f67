package analyzer

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/papertrader/internal/domain"
)

// MEVAnalyzer estimates how attractive the planned trade is to sandwich and
// front-run bots. Threat at or above flashbotsThreshold flips the routing
// recommendation to a private relay.
type MEVAnalyzer struct {
	cfg Config
}

const flashbotsThreshold = 60.0

func (a *MEVAnalyzer) Category() domain.Category { return domain.CategoryMEV }

func (a *MEVAnalyzer) Analyze(_ context.Context, mctx domain.MarketContext, _ *domain.History) domain.AnalyzerResult {
	if mctx.LiquidityUsd.LessThanOrEqual(decimal.Zero) {
		return domain.AnalyzerResult{
			Category:       domain.CategoryMEV,
			Score:          80,
			Quality:        domain.QualityNoData,
			Recommendation: "cannot estimate MEV exposure without liquidity",
		}
	}

	impact := mctx.ImpactRatio(a.cfg.TradeSizeUsd)
	sandwich := a.sandwichRisk(impact)
	frontRun := a.frontRunRisk(mctx.VolumeLiquidityRatio())

	// sandwich exposure dominates: it scales with our own trade, front-run
	// pressure is ambient
	threat := clampScore(0.6*sandwich + 0.4*frontRun)

	recommendation := "public mempool acceptable"
	if threat >= flashbotsThreshold {
		recommendation = "flashbots"
	}

	return domain.AnalyzerResult{
		Category: domain.CategoryMEV,
		Score:    threat,
		Quality:  domain.QualityGood,
		Recommendation: fmt.Sprintf("%s (sandwich=%.0f frontrun=%.0f)",
			recommendation, sandwich, frontRun),
	}
}

// sandwichRisk ramps with the trade/liquidity impact ratio.
func (a *MEVAnalyzer) sandwichRisk(impact float64) float64 {
	switch {
	case impact < a.cfg.SandwichImpactLow:
		return 10
	case impact <= a.cfg.SandwichImpactHigh:
		return 30 + impact*1000
	default:
		return clampScore(80 + impact*400)
	}
}

// frontRunRisk is a step function of the volume/liquidity ratio.
func (a *MEVAnalyzer) frontRunRisk(volumeRatio float64) float64 {
	breaks := a.cfg.FrontRunVolumeBreaks
	switch {
	case volumeRatio < breaks[0]:
		return 20
	case volumeRatio < breaks[1]:
		return 40
	case volumeRatio < breaks[2]:
		return 60
	default:
		return 80
	}
}
