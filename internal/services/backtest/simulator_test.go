package backtest

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vadiminshakov/papertrader/internal/domain"
	"github.com/vadiminshakov/papertrader/internal/services/marketdata"
)

var runStart = time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)

// rampBars builds a deterministic price path: a steady climb followed by a
// drop, enough to trigger both take-profit and stop-loss exits.
func rampBars() []domain.Bar {
	bars := make([]domain.Bar, 0, 40)
	price := decimal.NewFromInt(2000)

	for i := 0; i < 40; i++ {
		step := decimal.NewFromInt(6)
		if i >= 30 {
			step = decimal.NewFromInt(-30)
		}
		open := price
		price = price.Add(step)

		openTime := runStart.Add(time.Duration(i) * time.Hour)
		bars = append(bars, domain.Bar{
			OpenTime:  openTime,
			Open:      open,
			High:      decimal.Max(open, price).Add(decimal.NewFromInt(2)),
			Low:       decimal.Min(open, price).Sub(decimal.NewFromInt(2)),
			Close:     price,
			Volume:    decimal.NewFromInt(300),
			CloseTime: openTime.Add(time.Hour),
		})
	}
	return bars
}

func rampParams() domain.BacktestParams {
	return domain.BacktestParams{
		Token:             "ETH",
		IntelLevel:        8,
		StartingCashUsd:   decimal.NewFromInt(10_000),
		LiquidityUsd:      decimal.NewFromInt(2_000_000),
		StopLossPercent:   decimal.NewFromInt(5),
		TakeProfitPercent: decimal.NewFromInt(3),
		MaxHold:           72 * time.Hour,
		Interval:          "1h",
		From:              runStart,
		To:                runStart.Add(41 * time.Hour),
	}
}

func newSimulator(t *testing.T) *Simulator {
	t.Helper()
	provider := marketdata.NewMemoryProvider()
	provider.LoadBars("ETH", rampBars())
	sim, err := NewSimulator(provider, nil)
	require.NoError(t, err)
	return sim
}

func TestSimulator_Run(t *testing.T) {
	result, err := newSimulator(t).Run(context.Background(), rampParams())
	require.NoError(t, err)

	assert.Equal(t, 40, result.Bars)
	require.NotEmpty(t, result.Trades)
	assert.Equal(t, domain.ActionBuy, result.Trades[0].Action)

	// the climb is long enough for at least one take-profit round trip
	var sawTakeProfit bool
	for _, trade := range result.Trades {
		if trade.Action == domain.ActionSell && trade.ExitReason == domain.ExitTakeProfit {
			sawTakeProfit = true
		}
	}
	assert.True(t, sawTakeProfit)

	// everything is liquidated at the end, so the balance is pure cash
	lastTrade := result.Trades[len(result.Trades)-1]
	assert.Equal(t, domain.ActionSell, lastTrade.Action)
	assert.True(t, result.FinalBalanceUsd.GreaterThan(decimal.Zero))
	assert.True(t, result.MaxDrawdownPercent.GreaterThanOrEqual(decimal.Zero))
	assert.GreaterOrEqual(t, result.WinRate, 0.0)
	assert.LessOrEqual(t, result.WinRate, 1.0)
}

func TestSimulator_Deterministic(t *testing.T) {
	first, err := newSimulator(t).Run(context.Background(), rampParams())
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		again, err := newSimulator(t).Run(context.Background(), rampParams())
		require.NoError(t, err)

		require.Equal(t, first.Trades, again.Trades)
		assert.True(t, first.FinalBalanceUsd.Equal(again.FinalBalanceUsd))
		assert.True(t, first.TotalReturnPercent.Equal(again.TotalReturnPercent))
		assert.Equal(t, first.WinRate, again.WinRate)
		assert.Equal(t, first.SharpeRatio, again.SharpeRatio)
	}
}

func TestSimulator_Run_Validation(t *testing.T) {
	sim := newSimulator(t)

	cases := []struct {
		name   string
		mutate func(*domain.BacktestParams)
	}{
		{"empty token", func(p *domain.BacktestParams) { p.Token = "" }},
		{"intel too low", func(p *domain.BacktestParams) { p.IntelLevel = 0 }},
		{"intel too high", func(p *domain.BacktestParams) { p.IntelLevel = 11 }},
		{"zero cash", func(p *domain.BacktestParams) { p.StartingCashUsd = decimal.Zero }},
		{"inverted window", func(p *domain.BacktestParams) { p.To = p.From.Add(-time.Hour) }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			params := rampParams()
			tc.mutate(&params)
			_, err := sim.Run(context.Background(), params)
			assert.Error(t, err)
		})
	}

	t.Run("no bars in window", func(t *testing.T) {
		params := rampParams()
		params.From = runStart.Add(1000 * time.Hour)
		params.To = runStart.Add(1001 * time.Hour)
		_, err := sim.Run(context.Background(), params)
		assert.Error(t, err)
	})
}

func TestSyntheticContext(t *testing.T) {
	bars := rampBars()
	params := rampParams()

	t.Run("cold start is sideways", func(t *testing.T) {
		mctx := syntheticContext(params, bars, 0)
		assert.Equal(t, domain.TrendSideways, mctx.Trend)
		assert.True(t, mctx.PriceUsd.Equal(bars[0].Close))
	})

	t.Run("climb classifies as uptrend", func(t *testing.T) {
		mctx := syntheticContext(params, bars, 10)
		assert.Equal(t, domain.TrendUp, mctx.Trend)
	})

	t.Run("drop classifies as downtrend", func(t *testing.T) {
		mctx := syntheticContext(params, bars, 36)
		assert.Equal(t, domain.TrendDown, mctx.Trend)
	})
}

func TestMaxDrawdown(t *testing.T) {
	equity := []decimal.Decimal{
		decimal.NewFromInt(100),
		decimal.NewFromInt(120),
		decimal.NewFromInt(90), // 25% below the 120 peak
		decimal.NewFromInt(110),
	}
	assert.True(t, maxDrawdown(equity).Equal(decimal.NewFromInt(25)))
	assert.True(t, maxDrawdown(nil).IsZero())
}

func TestSharpe(t *testing.T) {
	t.Run("flat curve scores zero", func(t *testing.T) {
		flat := []decimal.Decimal{
			decimal.NewFromInt(100), decimal.NewFromInt(100), decimal.NewFromInt(100),
		}
		assert.Zero(t, sharpe(flat))
	})

	t.Run("rising curve scores positive", func(t *testing.T) {
		rising := []decimal.Decimal{
			decimal.NewFromInt(100), decimal.NewFromInt(105),
			decimal.NewFromInt(111), decimal.NewFromInt(116),
		}
		assert.Greater(t, sharpe(rising), 0.0)
	})
}
