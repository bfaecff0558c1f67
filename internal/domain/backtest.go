package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// BacktestParams configures one backtest run.
type BacktestParams struct {
	Token             string
	IntelLevel        int
	StartingCashUsd   decimal.Decimal
	LiquidityUsd      decimal.Decimal // assumed pool depth for the replayed token
	StopLossPercent   decimal.Decimal
	TakeProfitPercent decimal.Decimal
	MaxHold           time.Duration
	Interval          string
	From              time.Time
	To                time.Time
}

// ExecutedTrade is one simulated fill recorded during a tick or backtest run.
type ExecutedTrade struct {
	ID         string          `json:"id"`
	Token      string          `json:"token"`
	Action     Action          `json:"action"`
	Quantity   decimal.Decimal `json:"quantity"`
	PriceUsd   decimal.Decimal `json:"price_usd"`
	ValueUsd   decimal.Decimal `json:"value_usd"`
	FeeUsd     decimal.Decimal `json:"fee_usd"`
	ExitReason ExitReason      `json:"exit_reason,omitempty"`
	ExecutedAt time.Time       `json:"executed_at"`
}

// BacktestResult is immutable once a run completes.
type BacktestResult struct {
	Params             BacktestParams
	Bars               int
	Trades             []ExecutedTrade
	FinalBalanceUsd    decimal.Decimal
	TotalReturnPercent decimal.Decimal
	WinRate            float64 // fraction of closed positions with positive realized PnL
	MaxDrawdownPercent decimal.Decimal
	SharpeRatio        float64
	AverageTradePnlUsd decimal.Decimal
}
