// Package execution simulates order fills for paper trading. Fills apply a
// configurable slippage+fee haircut to the market price; no real funds move.
package execution

import (
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/papertrader/internal/domain"
	"go.uber.org/zap"
)

const bpsDenominator = 10_000

// Executor converts approved decisions into simulated fills. The same executor
// drives live paper ticks and backtests so behavior cannot diverge.
type Executor struct {
	slippageBps int64
	feeBps      int64
	logger      *zap.Logger

	// newID is injectable for deterministic backtest trade IDs
	newID func() string
}

// NewExecutor creates a paper-trade executor.
func NewExecutor(slippageBps, feeBps int64, newID func() string, logger *zap.Logger) (*Executor, error) {
	if slippageBps < 0 || feeBps < 0 {
		return nil, errors.New("slippage and fee bps must not be negative")
	}
	if newID == nil {
		return nil, errors.New("trade ID generator is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Executor{slippageBps: slippageBps, feeBps: feeBps, newID: newID, logger: logger}, nil
}

// FillBuy simulates buying sizeUsd worth of token at marketPrice. The haircut
// worsens the effective price; the returned quantity is what the spend bought.
func (x *Executor) FillBuy(token string, sizeUsd, marketPrice decimal.Decimal, at time.Time) (domain.ExecutedTrade, error) {
	if sizeUsd.LessThanOrEqual(decimal.Zero) || marketPrice.LessThanOrEqual(decimal.Zero) {
		return domain.ExecutedTrade{}, fmt.Errorf("buy requires positive size and price, got size=%s price=%s",
			sizeUsd.String(), marketPrice.String())
	}

	execPrice := marketPrice.Mul(x.haircut(true))
	quantity := sizeUsd.Div(execPrice)

	trade := domain.ExecutedTrade{
		ID:         x.newID(),
		Token:      token,
		Action:     domain.ActionBuy,
		Quantity:   quantity,
		PriceUsd:   execPrice,
		ValueUsd:   sizeUsd,
		FeeUsd:     sizeUsd.Mul(decimal.NewFromInt(x.feeBps)).Div(decimal.NewFromInt(bpsDenominator)),
		ExecutedAt: at,
	}

	x.logger.Info("simulated buy executed",
		zap.String("token", token),
		zap.String("quantity", quantity.String()),
		zap.String("exec_price", execPrice.String()))
	return trade, nil
}

// FillSell simulates selling quantity of token at marketPrice.
func (x *Executor) FillSell(token string, quantity, marketPrice decimal.Decimal, reason domain.ExitReason, at time.Time) (domain.ExecutedTrade, error) {
	if quantity.LessThanOrEqual(decimal.Zero) || marketPrice.LessThanOrEqual(decimal.Zero) {
		return domain.ExecutedTrade{}, fmt.Errorf("sell requires positive quantity and price, got qty=%s price=%s",
			quantity.String(), marketPrice.String())
	}

	execPrice := marketPrice.Mul(x.haircut(false))
	value := quantity.Mul(execPrice)

	trade := domain.ExecutedTrade{
		ID:         x.newID(),
		Token:      token,
		Action:     domain.ActionSell,
		Quantity:   quantity,
		PriceUsd:   execPrice,
		ValueUsd:   value,
		FeeUsd:     value.Mul(decimal.NewFromInt(x.feeBps)).Div(decimal.NewFromInt(bpsDenominator)),
		ExitReason: reason,
		ExecutedAt: at,
	}

	x.logger.Info("simulated sell executed",
		zap.String("token", token),
		zap.String("quantity", quantity.String()),
		zap.String("exec_price", execPrice.String()),
		zap.String("reason", string(reason)))
	return trade, nil
}

// haircut folds slippage and fee into the execution price: buys pay up,
// sells receive less.
func (x *Executor) haircut(buy bool) decimal.Decimal {
	total := decimal.NewFromInt(x.slippageBps + x.feeBps).Div(decimal.NewFromInt(bpsDenominator))
	if buy {
		return decimal.NewFromInt(1).Add(total)
	}
	return decimal.NewFromInt(1).Sub(total)
}
