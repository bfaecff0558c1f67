package engine

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vadiminshakov/papertrader/internal/domain"
	"github.com/vadiminshakov/papertrader/internal/notify"
	"github.com/vadiminshakov/papertrader/internal/services/analyzer"
	"github.com/vadiminshakov/papertrader/internal/services/breaker"
	"github.com/vadiminshakov/papertrader/internal/services/decision"
	"github.com/vadiminshakov/papertrader/internal/services/execution"
	"github.com/vadiminshakov/papertrader/internal/services/exits"
	"github.com/vadiminshakov/papertrader/internal/services/marketdata"
	"github.com/vadiminshakov/papertrader/internal/services/portfolio"
	"github.com/vadiminshakov/papertrader/internal/services/strategy"
)

var tickTime = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func sequentialIDs(prefix string) func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("%s-%04d", prefix, n)
	}
}

func newTestEngine(t *testing.T, market marketdata.Provider, notifier *notify.Broadcaster) *Engine {
	t.Helper()

	executor, err := execution.NewExecutor(10, 10, sequentialIDs("trade"), nil)
	require.NoError(t, err)

	eng, err := New(Config{
		Composite: analyzer.NewComposite(analyzer.DefaultConfig(), 4, time.Second, nil),
		Selector:  strategy.NewSelector(strategy.DefaultThresholds()),
		Executor:  executor,
		Market:    market,
		Notifier:  notifier,
		Interval:  time.Minute,
	})
	require.NoError(t, err)
	eng.SetClock(func() time.Time { return tickTime })
	return eng
}

func newTestAccount(t *testing.T, id string, watchlist ...string) *Account {
	t.Helper()

	manager, err := portfolio.NewManager(id, decimal.NewFromInt(10_000), decimal.NewFromInt(25), nil, nil, nil)
	require.NoError(t, err)

	evaluator, err := exits.NewEvaluator(exits.Rules{
		StopLossPercent:   decimal.NewFromInt(5),
		TakeProfitPercent: decimal.NewFromInt(10),
		MaxHold:           72 * time.Hour,
	})
	require.NoError(t, err)

	decider, err := decision.NewEngine(10, decimal.NewFromInt(25), evaluator, nil, nil)
	require.NoError(t, err)
	decider.SetIDGenerator(sequentialIDs("decision"))

	return &Account{
		ID:        id,
		Watchlist: watchlist,
		Portfolio: manager,
		Decision:  decider,
		Breaker:   breaker.New(id, 2, time.Minute, nil),
		History:   domain.NewHistory(),
	}
}

// calmContext is a buy-friendly snapshot: deep pool, mild volatility, uptrend.
func calmContext(token string, price int64) domain.MarketContext {
	return domain.MarketContext{
		Token:           token,
		PriceUsd:        decimal.NewFromInt(price),
		Volume24hUsd:    decimal.NewFromInt(500_000),
		LiquidityUsd:    decimal.NewFromInt(2_000_000),
		VolatilityIndex: 10,
		Trend:           domain.TrendUp,
		Timestamp:       tickTime,
	}
}

func TestEngine_Tick_BuyThenStopLoss(t *testing.T) {
	market := marketdata.NewMemoryProvider()
	market.LoadContexts("ETH", []domain.MarketContext{
		calmContext("ETH", 2000),
		calmContext("ETH", 2000),
		calmContext("ETH", 2000),
		calmContext("ETH", 1880), // -6% through the entry haircut
	})

	eng := newTestEngine(t, market, nil)
	acct := newTestAccount(t, "acct-1", "ETH")
	require.NoError(t, eng.AddAccount(acct))

	// volatility history needs three samples before its quality clears the
	// mandatory gate, so the first two ticks cannot buy
	for i := 0; i < 2; i++ {
		result, err := eng.Tick(context.Background(), "acct-1")
		require.NoError(t, err)
		require.Len(t, result.Decisions, 1)
		assert.Equal(t, domain.ActionSkip, result.Decisions[0].Action, "tick %d", i+1)
		assert.Empty(t, result.Trades)
	}

	result, err := eng.Tick(context.Background(), "acct-1")
	require.NoError(t, err)
	require.Len(t, result.Decisions, 1)
	require.Equal(t, domain.ActionBuy, result.Decisions[0].Action)
	require.NotEmpty(t, result.Trades)

	pos, found := acct.Portfolio.Position("ETH")
	require.True(t, found)
	assert.True(t, pos.Open)
	assert.True(t, acct.Portfolio.CashUsd().LessThan(decimal.NewFromInt(10_000)))

	// crash tick trips the stop-loss on the open position
	result, err = eng.Tick(context.Background(), "acct-1")
	require.NoError(t, err)
	require.Len(t, result.Decisions, 1)
	assert.Equal(t, domain.ActionSell, result.Decisions[0].Action)
	assert.Equal(t, domain.ExitStopLoss, result.Decisions[0].ExitReason)
	require.Len(t, result.ClosedPositions, 1)
	assert.Equal(t, domain.ExitStopLoss, result.ClosedPositions[0].CloseReason)

	_, found = acct.Portfolio.Position("ETH")
	assert.False(t, found)
	// the round trip lost money but the account survived
	assert.True(t, acct.Portfolio.CashUsd().LessThan(decimal.NewFromInt(10_000)))
	assert.True(t, acct.Portfolio.CashUsd().GreaterThan(decimal.NewFromInt(9000)))
}

func TestEngine_Tick_BreakerTripsOnMarketDataFailures(t *testing.T) {
	market := marketdata.NewMemoryProvider() // nothing loaded: every fetch fails
	bus := notify.NewBroadcaster(16)
	events := bus.Subscribe()
	defer bus.Unsubscribe(events)

	eng := newTestEngine(t, market, bus)
	acct := newTestAccount(t, "acct-1", "ETH")
	require.NoError(t, eng.AddAccount(acct))

	for i := 0; i < 2; i++ {
		result, err := eng.Tick(context.Background(), "acct-1")
		require.NoError(t, err)
		require.Len(t, result.Errors, 1)
	}
	assert.True(t, acct.Breaker.Open())

	// with the circuit open the fetch is short-circuited and announced
	result, err := eng.Tick(context.Background(), "acct-1")
	require.NoError(t, err)
	require.Len(t, result.Errors, 1)
	assert.ErrorIs(t, result.Errors[0], breaker.ErrCircuitOpen)

	var sawCircuitOpen bool
	for len(events) > 0 {
		if e := <-events; e.Type == notify.EventCircuitOpen {
			sawCircuitOpen = true
		}
	}
	assert.True(t, sawCircuitOpen)

	require.NoError(t, eng.ResetCircuitBreaker("acct-1"))
	assert.False(t, acct.Breaker.Open())
}

func TestEngine_Tick_ExitSweepCoversOffWatchlistPositions(t *testing.T) {
	market := marketdata.NewMemoryProvider()
	market.LoadContexts("ETH", []domain.MarketContext{calmContext("ETH", 2000)})
	market.LoadContexts("BTC", []domain.MarketContext{calmContext("BTC", 56_000)})

	eng := newTestEngine(t, market, nil)
	acct := newTestAccount(t, "acct-1", "ETH")
	require.NoError(t, eng.AddAccount(acct))

	// BTC was bought earlier and then dropped from the watchlist
	_, err := acct.Portfolio.OpenPosition("BTC",
		decimal.RequireFromString("0.1"), decimal.NewFromInt(60_000), tickTime.Add(-24*time.Hour))
	require.NoError(t, err)

	result, err := eng.Tick(context.Background(), "acct-1")
	require.NoError(t, err)

	// -6.7% on BTC triggers the stop-loss even though the tick never analyzed it
	require.Len(t, result.ClosedPositions, 1)
	assert.Equal(t, "BTC", result.ClosedPositions[0].Token)
	assert.Equal(t, domain.ExitStopLoss, result.ClosedPositions[0].CloseReason)
}

func TestEngine_Tick_ExitSweepFailuresCountAgainstBreaker(t *testing.T) {
	market := marketdata.NewMemoryProvider() // no BTC data: every sweep fetch fails
	eng := newTestEngine(t, market, nil)
	acct := newTestAccount(t, "acct-1") // empty watchlist, the sweep is the whole tick
	require.NoError(t, eng.AddAccount(acct))

	_, err := acct.Portfolio.OpenPosition("BTC",
		decimal.RequireFromString("0.1"), decimal.NewFromInt(60_000), tickTime.Add(-time.Hour))
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		result, err := eng.Tick(context.Background(), "acct-1")
		require.NoError(t, err)
		require.Len(t, result.Errors, 1, "tick %d", i+1)
	}
	assert.True(t, acct.Breaker.Open(), "sweep fetch failures must trip the breaker like watchlist ones")

	result, err := eng.Tick(context.Background(), "acct-1")
	require.NoError(t, err)
	require.Len(t, result.Errors, 1)
	assert.ErrorIs(t, result.Errors[0], breaker.ErrCircuitOpen)
}

func TestEngine_BuyBlockedByConcentrationLimit(t *testing.T) {
	eng := newTestEngine(t, marketdata.NewMemoryProvider(), nil)
	acct := newTestAccount(t, "acct-1", "ETH")

	// ETH already holds 20% of the book; a full-size re-buy would push it to 45%
	_, err := acct.Portfolio.OpenPosition("ETH",
		decimal.NewFromInt(1), decimal.NewFromInt(2000), tickTime.Add(-time.Hour))
	require.NoError(t, err)

	prices := map[string]decimal.Decimal{"ETH": decimal.NewFromInt(2000)}
	dec := domain.TradingDecision{
		Token:         "ETH",
		Action:        domain.ActionBuy,
		SizingPercent: decimal.NewFromInt(25),
		Confidence:    60,
	}

	var result domain.TickResult
	eng.executeBuy(context.Background(), acct, &result, dec, calmContext("ETH", 2000), prices, tickTime)

	require.Len(t, result.Errors, 1)
	assert.ErrorIs(t, result.Errors[0], portfolio.ErrConcentrationLimit)
	assert.Empty(t, result.Trades)
	assert.True(t, acct.Portfolio.CashUsd().Equal(decimal.NewFromInt(8000)), "blocked buy must leave cash untouched")
}

func TestEngine_AddAccount(t *testing.T) {
	eng := newTestEngine(t, marketdata.NewMemoryProvider(), nil)

	t.Run("rejects incomplete accounts", func(t *testing.T) {
		assert.Error(t, eng.AddAccount(nil))
		assert.Error(t, eng.AddAccount(&Account{ID: "acct-1"}))
	})

	t.Run("rejects duplicates", func(t *testing.T) {
		acct := newTestAccount(t, "acct-1", "ETH")
		require.NoError(t, eng.AddAccount(acct))
		assert.Error(t, eng.AddAccount(newTestAccount(t, "acct-1", "ETH")))
	})

	t.Run("unknown account", func(t *testing.T) {
		_, err := eng.Tick(context.Background(), "nope")
		assert.Error(t, err)
		assert.Error(t, eng.ResetCircuitBreaker("nope"))
	})
}
