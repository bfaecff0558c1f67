// Package backtest replays historical bars through the same analyzer, decision
// and execution pipeline that drives live paper ticks. Runs are deterministic:
// identical params and bars always produce the identical trade sequence.
package backtest

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/papertrader/internal/domain"
	"github.com/vadiminshakov/papertrader/internal/services/analyzer"
	"github.com/vadiminshakov/papertrader/internal/services/decision"
	"github.com/vadiminshakov/papertrader/internal/services/execution"
	"github.com/vadiminshakov/papertrader/internal/services/exits"
	"github.com/vadiminshakov/papertrader/internal/services/guard"
	"github.com/vadiminshakov/papertrader/internal/services/marketdata"
	"github.com/vadiminshakov/papertrader/internal/services/portfolio"
	"github.com/vadiminshakov/papertrader/internal/services/strategy"
	"go.uber.org/zap"
)

const (
	// trailing windows for synthetic context fields derived from bars
	volatilityWindow = 14
	trendLookback    = 5

	backtestSlippageBps = 10
	backtestFeeBps      = 10

	// fraction of starting cash assumed per trade for impact modeling
	tradeSizeFraction = 0.1

	analyzeWorkers = 4
	analyzeTimeout = 2 * time.Second
)

// Simulator replays bars for one token through the decision pipeline.
type Simulator struct {
	history marketdata.HistoryProvider
	logger  *zap.Logger
}

// NewSimulator creates a backtest simulator on top of a bar source.
func NewSimulator(history marketdata.HistoryProvider, logger *zap.Logger) (*Simulator, error) {
	if history == nil {
		return nil, errors.New("history provider is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Simulator{history: history, logger: logger}, nil
}

// Run executes one backtest. The pipeline is assembled fresh per run with
// sequential ID generators and bar-driven clocks, so nothing leaks between runs.
func (s *Simulator) Run(ctx context.Context, params domain.BacktestParams) (*domain.BacktestResult, error) {
	if err := validateParams(params); err != nil {
		return nil, err
	}

	bars, err := s.history.Bars(ctx, params.Token, params.Interval, params.From, params.To)
	if err != nil {
		return nil, errors.Wrap(err, "load bars")
	}
	if len(bars) == 0 {
		return nil, errors.Errorf("no bars for %s in [%s, %s]",
			params.Token, params.From.Format(time.RFC3339), params.To.Format(time.RFC3339))
	}

	run, err := s.assemble(params)
	if err != nil {
		return nil, errors.Wrap(err, "assemble backtest pipeline")
	}

	equity := make([]decimal.Decimal, 0, len(bars))
	var trades []domain.ExecutedTrade

	for i, bar := range bars {
		mctx := syntheticContext(params, bars, i)
		run.hist.Push(mctx)

		now := bar.CloseTime
		if pos, ok := run.manager.Position(params.Token); ok {
			pos.MarkPrice(mctx.PriceUsd)
		}

		scores := run.composite.Analyze(ctx, mctx, run.hist, params.IntelLevel)
		prices := map[string]decimal.Decimal{params.Token: mctx.PriceUsd}

		dec := run.engine.Decide(decision.Input{
			Context:   mctx,
			Scores:    scores,
			Portfolio: run.manager.State(prices),
			Now:       now,
		})

		switch dec.Action {
		case domain.ActionBuy:
			newTrades, err := s.fillBuy(run, dec, mctx, prices, now)
			if err != nil {
				return nil, err
			}
			trades = append(trades, newTrades...)
		case domain.ActionSell:
			trade, err := s.fillSell(run, dec, mctx.PriceUsd, now)
			if err != nil {
				return nil, err
			}
			trades = append(trades, trade)
		}

		equity = append(equity, run.manager.State(prices).TotalValue)
	}

	// liquidate any still-open position at the final close so the balance is cash
	lastBar := bars[len(bars)-1]
	if pos, ok := run.manager.Position(params.Token); ok && pos.Open {
		trade, err := s.fillSell(run, domain.TradingDecision{
			Token:      params.Token,
			Action:     domain.ActionSell,
			ExitReason: domain.ExitManualSell,
		}, lastBar.Close, lastBar.CloseTime)
		if err != nil {
			return nil, err
		}
		trades = append(trades, trade)
		equity[len(equity)-1] = run.manager.CashUsd()
	}

	return s.report(params, len(bars), trades, equity, run), nil
}

// runState is one backtest's freshly assembled pipeline.
type runState struct {
	composite *analyzer.Composite
	engine    *decision.Engine
	manager   *portfolio.Manager
	executor  *execution.Executor
	selector  *strategy.Selector
	hist      *domain.History
}

func (s *Simulator) assemble(params domain.BacktestParams) (*runState, error) {
	cfg := analyzer.DefaultConfig()
	cfg.TradeSizeUsd = params.StartingCashUsd.Mul(decimal.NewFromFloat(tradeSizeFraction))

	evaluator, err := exits.NewEvaluator(exits.Rules{
		StopLossPercent:   params.StopLossPercent,
		TakeProfitPercent: params.TakeProfitPercent,
		MaxHold:           params.MaxHold,
	})
	if err != nil {
		return nil, err
	}

	// single-token replay: the whole portfolio may sit in one position
	maxTokenPercent := decimal.NewFromInt(100)

	engine, err := decision.NewEngine(params.IntelLevel, maxTokenPercent, evaluator, nil, s.logger)
	if err != nil {
		return nil, err
	}
	engine.SetIDGenerator(sequentialIDs("decision"))

	g := guard.New(s.logger)
	manager, err := portfolio.NewManager("backtest", params.StartingCashUsd, maxTokenPercent, g, nil, s.logger)
	if err != nil {
		return nil, err
	}

	executor, err := execution.NewExecutor(backtestSlippageBps, backtestFeeBps, sequentialIDs("trade"), s.logger)
	if err != nil {
		return nil, err
	}

	return &runState{
		composite: analyzer.NewComposite(cfg, analyzeWorkers, analyzeTimeout, s.logger),
		engine:    engine,
		manager:   manager,
		executor:  executor,
		selector:  strategy.NewSelector(strategy.DefaultThresholds()),
		hist:      domain.NewHistory(),
	}, nil
}

func (s *Simulator) fillBuy(run *runState, dec domain.TradingDecision, mctx domain.MarketContext, prices map[string]decimal.Decimal, now time.Time) ([]domain.ExecutedTrade, error) {
	state := run.manager.State(prices)
	sizeUsd := state.TotalValue.Mul(dec.SizingPercent).Div(decimal.NewFromInt(100))
	if sizeUsd.GreaterThan(run.manager.CashUsd()) {
		sizeUsd = run.manager.CashUsd()
	}
	if sizeUsd.LessThanOrEqual(decimal.Zero) {
		return nil, nil
	}

	plan := run.selector.Select(dec.Confidence, mctx.VolatilityIndex, mctx.LiquidityUsd, sizeUsd, mctx.Trend)

	trades := make([]domain.ExecutedTrade, 0, len(plan.Chunks))
	for _, chunk := range plan.Chunks {
		trade, err := run.executor.FillBuy(dec.Token, chunk.SizeUsd, mctx.PriceUsd, now)
		if err != nil {
			return nil, errors.Wrap(err, "backtest buy fill")
		}
		if _, err := run.manager.OpenPosition(dec.Token, trade.Quantity, trade.PriceUsd, now); err != nil {
			return nil, errors.Wrap(err, "backtest open position")
		}
		trades = append(trades, trade)
	}
	return trades, nil
}

func (s *Simulator) fillSell(run *runState, dec domain.TradingDecision, priceUsd decimal.Decimal, now time.Time) (domain.ExecutedTrade, error) {
	pos, ok := run.manager.Position(dec.Token)
	if !ok {
		return domain.ExecutedTrade{}, errors.Errorf("sell without open position for %s", dec.Token)
	}

	trade, err := run.executor.FillSell(dec.Token, pos.Quantity, priceUsd, dec.ExitReason, now)
	if err != nil {
		return domain.ExecutedTrade{}, errors.Wrap(err, "backtest sell fill")
	}
	if _, err := run.manager.ClosePosition(dec.Token, trade.PriceUsd, dec.ExitReason, now); err != nil {
		return domain.ExecutedTrade{}, errors.Wrap(err, "backtest close position")
	}
	return trade, nil
}

func (s *Simulator) report(params domain.BacktestParams, barCount int, trades []domain.ExecutedTrade, equity []decimal.Decimal, run *runState) *domain.BacktestResult {
	final := run.manager.CashUsd()

	totalReturn := decimal.Zero
	if params.StartingCashUsd.GreaterThan(decimal.Zero) {
		totalReturn = final.Sub(params.StartingCashUsd).
			Div(params.StartingCashUsd).
			Mul(decimal.NewFromInt(100))
	}

	closed := run.manager.ClosedPositions()
	wins := 0
	pnlSum := decimal.Zero
	for _, pos := range closed {
		if pos.RealizedPnl.GreaterThan(decimal.Zero) {
			wins++
		}
		pnlSum = pnlSum.Add(pos.RealizedPnl)
	}

	winRate := 0.0
	avgPnl := decimal.Zero
	if len(closed) > 0 {
		winRate = float64(wins) / float64(len(closed))
		avgPnl = pnlSum.Div(decimal.NewFromInt(int64(len(closed))))
	}

	result := &domain.BacktestResult{
		Params:             params,
		Bars:               barCount,
		Trades:             trades,
		FinalBalanceUsd:    final,
		TotalReturnPercent: totalReturn,
		WinRate:            winRate,
		MaxDrawdownPercent: maxDrawdown(equity),
		SharpeRatio:        sharpe(equity),
		AverageTradePnlUsd: avgPnl,
	}

	s.logger.Info("backtest complete",
		zap.String("token", params.Token),
		zap.Int("bars", barCount),
		zap.Int("trades", len(trades)),
		zap.String("final_balance", final.StringFixed(2)),
		zap.String("total_return_pct", totalReturn.StringFixed(2)))
	return result
}

// syntheticContext derives a market context snapshot from the bar at index i
// and its trailing window.
func syntheticContext(params domain.BacktestParams, bars []domain.Bar, i int) domain.MarketContext {
	bar := bars[i]

	// trailing average intrabar swing, scaled onto the 0-100 index
	start := i - volatilityWindow + 1
	if start < 0 {
		start = 0
	}
	rangeSum := decimal.Zero
	for _, b := range bars[start : i+1] {
		rangeSum = rangeSum.Add(b.Range())
	}
	avgRange, _ := rangeSum.Div(decimal.NewFromInt(int64(i + 1 - start))).Float64()
	volatility := avgRange * 10
	if volatility > 100 {
		volatility = 100
	}

	trend := domain.TrendSideways
	if i >= trendLookback {
		ref := bars[i-trendLookback].Close
		if ref.GreaterThan(decimal.Zero) {
			change := bar.Close.Sub(ref).Div(ref).Mul(decimal.NewFromInt(100))
			switch {
			case change.GreaterThanOrEqual(decimal.NewFromInt(1)):
				trend = domain.TrendUp
			case change.LessThanOrEqual(decimal.NewFromInt(-1)):
				trend = domain.TrendDown
			}
		}
	}

	return domain.MarketContext{
		Token:           params.Token,
		PriceUsd:        bar.Close,
		Volume24hUsd:    bar.Volume.Mul(bar.Close),
		LiquidityUsd:    params.LiquidityUsd,
		VolatilityIndex: volatility,
		Trend:           trend,
		Timestamp:       bar.CloseTime,
	}
}

func maxDrawdown(equity []decimal.Decimal) decimal.Decimal {
	peak := decimal.Zero
	maxDD := decimal.Zero
	for _, value := range equity {
		if value.GreaterThan(peak) {
			peak = value
		}
		if peak.GreaterThan(decimal.Zero) {
			dd := peak.Sub(value).Div(peak).Mul(decimal.NewFromInt(100))
			if dd.GreaterThan(maxDD) {
				maxDD = dd
			}
		}
	}
	return maxDD
}

// sharpe computes the per-bar Sharpe ratio from the equity curve, scaled by
// the square root of the sample count. Zero-variance curves score zero.
func sharpe(equity []decimal.Decimal) float64 {
	if len(equity) < 2 {
		return 0
	}

	returns := make([]float64, 0, len(equity)-1)
	for i := 1; i < len(equity); i++ {
		prev, _ := equity[i-1].Float64()
		cur, _ := equity[i].Float64()
		if prev == 0 {
			continue
		}
		returns = append(returns, (cur-prev)/prev)
	}
	if len(returns) < 2 {
		return 0
	}

	var mean float64
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))

	var variance float64
	for _, r := range returns {
		variance += (r - mean) * (r - mean)
	}
	variance /= float64(len(returns) - 1)
	if variance == 0 {
		return 0
	}

	return mean / math.Sqrt(variance) * math.Sqrt(float64(len(returns)))
}

// sequentialIDs returns a deterministic ID generator for one run.
func sequentialIDs(prefix string) func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("%s-%06d", prefix, n)
	}
}

func validateParams(params domain.BacktestParams) error {
	if params.Token == "" {
		return errors.New("backtest token is required")
	}
	if params.IntelLevel < 1 || params.IntelLevel > 10 {
		return errors.Errorf("intelligence level must be 1-10, got %d", params.IntelLevel)
	}
	if params.StartingCashUsd.LessThanOrEqual(decimal.Zero) {
		return errors.New("starting cash must be greater than zero")
	}
	if !params.To.After(params.From) {
		return errors.New("backtest window must have To after From")
	}
	return nil
}
