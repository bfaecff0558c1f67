package analyzer

import (
	"context"
	"fmt"

	"github.com/cinar/indicator/v2/helper"
	"github.com/cinar/indicator/v2/momentum"
	"github.com/cinar/indicator/v2/trend"
	"github.com/vadiminshakov/papertrader/internal/domain"
)

const (
	rsiPeriod = 14
	emaPeriod = 20
)

// TechnicalAnalyzer computes RSI and EMA over the recorded context history.
// With a cold history buffer it reports NO_DATA and lets aggregation ignore it.
type TechnicalAnalyzer struct{}

func (a *TechnicalAnalyzer) Category() domain.Category { return domain.CategoryTechnical }

func (a *TechnicalAnalyzer) Analyze(_ context.Context, mctx domain.MarketContext, history *domain.History) domain.AnalyzerResult {
	noData := domain.AnalyzerResult{
		Category:       domain.CategoryTechnical,
		Score:          50,
		Quality:        domain.QualityNoData,
		Recommendation: "insufficient price history",
	}

	if history == nil {
		return noData
	}

	contexts := history.Contexts(mctx.Token)
	if len(contexts) < rsiPeriod+1 {
		return noData
	}

	closes := make([]float64, len(contexts))
	for i, c := range contexts {
		closes[i], _ = c.PriceUsd.Float64()
	}

	rsiValues := helper.ChanToSlice(
		momentum.NewRsiWithPeriod[float64](rsiPeriod).Compute(helper.SliceToChan(closes)))
	if len(rsiValues) == 0 {
		return noData
	}
	rsi := rsiValues[len(rsiValues)-1]

	quality := domain.QualityGood
	aboveEma := false
	if len(closes) >= emaPeriod {
		emaValues := helper.ChanToSlice(
			trend.NewEmaWithPeriod[float64](emaPeriod).Compute(helper.SliceToChan(closes)))
		if len(emaValues) > 0 {
			aboveEma = closes[len(closes)-1] > emaValues[len(emaValues)-1]
		}
	} else {
		quality = domain.QualityFair
	}

	// overbought conditions are the risk for fresh buys; oversold is where the
	// edge usually sits
	var score float64
	var signal string
	switch {
	case rsi >= 70:
		score, signal = 75, "overbought"
	case rsi <= 30:
		score, signal = 25, "oversold"
	default:
		score, signal = 45, "neutral momentum"
	}
	if aboveEma && score > 10 {
		score -= 10
	}

	return domain.AnalyzerResult{
		Category:       domain.CategoryTechnical,
		Score:          clampScore(score),
		Quality:        quality,
		Recommendation: fmt.Sprintf("%s (rsi14=%.1f)", signal, rsi),
	}
}
