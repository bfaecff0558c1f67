// Package analyzer runs independent market sub-analyzers and aggregates their
// scores into one risk and one opportunity number per tick.
package analyzer

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/papertrader/internal/domain"
)

// Analyzer scores one aspect of the market for a token. Implementations must be
// deterministic for identical inputs: backtests replay the same pipeline.
type Analyzer interface {
	Category() domain.Category
	Analyze(ctx context.Context, mctx domain.MarketContext, history *domain.History) domain.AnalyzerResult
}

// Config carries the tunable analyzer thresholds. The sandwich/front-run
// breakpoints have no derivation beyond observed mainnet behavior, so they stay
// configuration rather than constants in code.
type Config struct {
	// TradeSizeUsd is the planned per-trade size used for impact estimates.
	TradeSizeUsd decimal.Decimal

	// GasPriceGwei is the assumed gas price when no live estimate is wired.
	GasPriceGwei float64

	// SandwichImpactLow and SandwichImpactHigh split the impact ramp.
	SandwichImpactLow  float64
	SandwichImpactHigh float64

	// FrontRunVolumeBreaks are the volume/liquidity ratio steps.
	FrontRunVolumeBreaks [3]float64

	// UncertainVolatility forces market sentiment to "uncertain" above it.
	UncertainVolatility float64

	// KnownTokens are symbols exempt from contract-safety suspicion.
	KnownTokens []string
}

// DefaultConfig returns the tuned defaults.
func DefaultConfig() Config {
	return Config{
		TradeSizeUsd:         decimal.NewFromInt(1000),
		GasPriceGwei:         30,
		SandwichImpactLow:    0.01,
		SandwichImpactHigh:   0.05,
		FrontRunVolumeBreaks: [3]float64{0.5, 2.0, 5.0},
		UncertainVolatility:  60,
		KnownTokens:          []string{"BTC", "ETH", "SOL", "USDT", "USDC"},
	}
}

// Registry returns the full fixed set of sub-analyzers. The table is static:
// no reflection, no import probing.
func Registry(cfg Config) []Analyzer {
	return []Analyzer{
		&GasAnalyzer{cfg: cfg},
		&LiquidityAnalyzer{},
		&VolatilityAnalyzer{},
		&MEVAnalyzer{cfg: cfg},
		&MarketStateAnalyzer{cfg: cfg},
		&SocialAnalyzer{},
		&TechnicalAnalyzer{},
		&ContractAnalyzer{cfg: cfg},
	}
}

func clampScore(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
