package domain

// Category identifies one market analysis dimension.
type Category int

const (
	CategoryGas Category = iota
	CategoryLiquidity
	CategoryVolatility
	CategoryMEV
	CategoryMarketState
	CategorySocial
	CategoryTechnical
	CategoryContract
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryGas:
		return "gas"
	case CategoryLiquidity:
		return "liquidity"
	case CategoryVolatility:
		return "volatility"
	case CategoryMEV:
		return "mev"
	case CategoryMarketState:
		return "market_state"
	case CategorySocial:
		return "social"
	case CategoryTechnical:
		return "technical"
	case CategoryContract:
		return "contract"
	default:
		return "unknown"
	}
}

// DataQuality grades how trustworthy an analyzer's inputs were. Order matters:
// lower values are better.
type DataQuality int

const (
	QualityExcellent DataQuality = iota
	QualityGood
	QualityFair
	QualityPoor
	QualityNoData
	QualityError
)

// String returns the quality name.
func (q DataQuality) String() string {
	switch q {
	case QualityExcellent:
		return "EXCELLENT"
	case QualityGood:
		return "GOOD"
	case QualityFair:
		return "FAIR"
	case QualityPoor:
		return "POOR"
	case QualityNoData:
		return "NO_DATA"
	case QualityError:
		return "ERROR"
	default:
		return "unknown"
	}
}

// AtLeast reports whether the quality meets the minimum grade.
func (q DataQuality) AtLeast(min DataQuality) bool {
	return q <= min
}

// Weight is the aggregation multiplier for results of this quality. NO_DATA
// and ERROR contribute nothing.
func (q DataQuality) Weight() float64 {
	switch q {
	case QualityExcellent:
		return 1.0
	case QualityGood:
		return 0.9
	case QualityFair:
		return 0.6
	case QualityPoor:
		return 0.3
	default:
		return 0
	}
}

// AnalyzerResult is one analyzer's verdict for one tick. Score runs 0-100;
// for risk-type categories higher means more dangerous.
type AnalyzerResult struct {
	Category       Category
	Score          float64
	Quality        DataQuality
	Recommendation string
}

// CompositeScores is the aggregated output of all analyzers for one tick.
type CompositeScores struct {
	Risk        float64 // 0-100, higher is riskier
	Opportunity float64 // 0-100, higher is more attractive
	Results     []AnalyzerResult
}

// ResultFor returns the result for the category, if any analyzer reported it.
func (s CompositeScores) ResultFor(category Category) (AnalyzerResult, bool) {
	for _, r := range s.Results {
		if r.Category == category {
			return r, true
		}
	}
	return AnalyzerResult{}, false
}
