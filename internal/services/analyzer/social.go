package analyzer

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/papertrader/internal/domain"
)

// SocialAnalyzer proxies crowd attention through traded volume. No social feed
// is wired, so the quality grade stays low and the composite down-weights it.
type SocialAnalyzer struct{}

func (a *SocialAnalyzer) Category() domain.Category { return domain.CategorySocial }

func (a *SocialAnalyzer) Analyze(_ context.Context, mctx domain.MarketContext, _ *domain.History) domain.AnalyzerResult {
	if mctx.Volume24hUsd.LessThanOrEqual(decimal.Zero) {
		return domain.AnalyzerResult{
			Category:       domain.CategorySocial,
			Score:          70,
			Quality:        domain.QualityNoData,
			Recommendation: "no attention signal",
		}
	}

	volume, _ := mctx.Volume24hUsd.Float64()

	var score float64
	var quality domain.DataQuality
	var recommendation string
	switch {
	case volume < 10_000:
		score, quality, recommendation = 70, domain.QualityPoor, "dead token, nobody is trading it"
	case volume < 100_000:
		score, quality, recommendation = 55, domain.QualityFair, "low attention"
	default:
		score, quality, recommendation = 35, domain.QualityFair, "actively traded"
	}

	return domain.AnalyzerResult{
		Category:       domain.CategorySocial,
		Score:          score,
		Quality:        quality,
		Recommendation: recommendation,
	}
}
