// Package marketdata supplies market context snapshots and cross-venue prices.
// Exchange-backed providers feed live paper ticks; the in-memory provider feeds
// backtests and tests with fully deterministic data.
package marketdata

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/papertrader/internal/domain"
)

// Provider produces one market context snapshot per token per tick.
type Provider interface {
	Context(ctx context.Context, token string) (domain.MarketContext, error)
}

// VenuePricer reports one venue's current price for a token. Used by the
// arbitrage detector to build its venue price map.
type VenuePricer interface {
	Name() string
	Price(ctx context.Context, token string) (decimal.Decimal, error)
}

// HistoryProvider serves historical bars for backtesting.
type HistoryProvider interface {
	Bars(ctx context.Context, token, interval string, from, to time.Time) ([]domain.Bar, error)
}
