// Package engine runs the per-account tick loop: analyze the watchlist, decide,
// execute simulated fills, and sweep exit rules over open positions.
package engine

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/papertrader/internal/domain"
	"github.com/vadiminshakov/papertrader/internal/notify"
	"github.com/vadiminshakov/papertrader/internal/services/analyzer"
	"github.com/vadiminshakov/papertrader/internal/services/arbitrage"
	"github.com/vadiminshakov/papertrader/internal/services/breaker"
	"github.com/vadiminshakov/papertrader/internal/services/decision"
	"github.com/vadiminshakov/papertrader/internal/services/execution"
	"github.com/vadiminshakov/papertrader/internal/services/marketdata"
	"github.com/vadiminshakov/papertrader/internal/services/portfolio"
	"github.com/vadiminshakov/papertrader/internal/services/strategy"
	"go.uber.org/zap"
)

// Account bundles everything one trading account owns. All mutations happen
// under the account lock so a manual command and the tick loop never interleave.
type Account struct {
	ID        string
	Watchlist []string

	Portfolio *portfolio.Manager
	Decision  *decision.Engine
	Breaker   *breaker.Breaker
	History   *domain.History

	mu sync.Mutex
}

// Engine drives ticks across all registered accounts.
type Engine struct {
	composite *analyzer.Composite
	selector  *strategy.Selector
	detector  *arbitrage.Detector
	executor  *execution.Executor
	market    marketdata.Provider
	venues    []marketdata.VenuePricer
	notifier  *notify.Broadcaster
	logger    *zap.Logger

	interval time.Duration
	now      func() time.Time

	mu       sync.RWMutex
	accounts map[string]*Account
}

// Config wires the engine's collaborators. Detector, venues and notifier are
// optional; everything else is required.
type Config struct {
	Composite *analyzer.Composite
	Selector  *strategy.Selector
	Detector  *arbitrage.Detector
	Executor  *execution.Executor
	Market    marketdata.Provider
	Venues    []marketdata.VenuePricer
	Notifier  *notify.Broadcaster
	Interval  time.Duration
	Logger    *zap.Logger
}

// New creates the tick engine.
func New(cfg Config) (*Engine, error) {
	if cfg.Composite == nil || cfg.Selector == nil || cfg.Executor == nil || cfg.Market == nil {
		return nil, errors.New("composite, selector, executor and market provider are required")
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return &Engine{
		composite: cfg.Composite,
		selector:  cfg.Selector,
		detector:  cfg.Detector,
		executor:  cfg.Executor,
		market:    cfg.Market,
		venues:    cfg.Venues,
		notifier:  cfg.Notifier,
		interval:  cfg.Interval,
		now:       time.Now,
		logger:    cfg.Logger,
		accounts:  make(map[string]*Account),
	}, nil
}

// SetClock overrides the engine clock. Backtests and tests inject a fixed or
// advancing clock for reproducible timestamps.
func (e *Engine) SetClock(now func() time.Time) {
	if now != nil {
		e.now = now
	}
}

// AddAccount registers an account with the engine.
func (e *Engine) AddAccount(acct *Account) error {
	if acct == nil || acct.ID == "" {
		return errors.New("account with non-empty ID is required")
	}
	if acct.Portfolio == nil || acct.Decision == nil || acct.Breaker == nil || acct.History == nil {
		return errors.New("account needs portfolio, decision engine, breaker and history")
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if _, exists := e.accounts[acct.ID]; exists {
		return errors.Errorf("account %s already registered", acct.ID)
	}
	e.accounts[acct.ID] = acct
	return nil
}

// Account returns a registered account.
func (e *Engine) Account(accountID string) (*Account, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	acct, ok := e.accounts[accountID]
	return acct, ok
}

// ResetCircuitBreaker force-closes the account's breaker. Operator command;
// takes the account lock so the reset lands between ticks, never inside one.
func (e *Engine) ResetCircuitBreaker(accountID string) error {
	acct, ok := e.Account(accountID)
	if !ok {
		return errors.Errorf("unknown account %s", accountID)
	}
	acct.mu.Lock()
	defer acct.mu.Unlock()
	acct.Breaker.Reset()
	return nil
}

// Run ticks all accounts on the configured interval until ctx is cancelled.
func (e *Engine) Run(ctx context.Context) error {
	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			for _, accountID := range e.accountIDs() {
				result, err := e.Tick(ctx, accountID)
				if err != nil {
					e.logger.Error("tick failed",
						zap.String("account", accountID),
						zap.Error(err))
					continue
				}
				for _, tickErr := range result.Errors {
					e.logger.Warn("tick completed with error",
						zap.String("account", accountID),
						zap.Error(tickErr))
				}
			}
		}
	}
}

// Tick processes one full cycle for the account: per-token analysis and
// decisions over the watchlist, then an exit sweep over any open positions the
// watchlist no longer covers. Per-token failures are collected, not fatal.
func (e *Engine) Tick(ctx context.Context, accountID string) (domain.TickResult, error) {
	acct, ok := e.Account(accountID)
	if !ok {
		return domain.TickResult{}, errors.Errorf("unknown account %s", accountID)
	}

	acct.mu.Lock()
	defer acct.mu.Unlock()

	now := e.now().UTC()
	result := domain.TickResult{AccountID: accountID}
	prices := make(map[string]decimal.Decimal)

	watchlist := append([]string(nil), acct.Watchlist...)
	sort.Strings(watchlist)
	covered := make(map[string]bool, len(watchlist))

	for _, token := range watchlist {
		covered[token] = true

		var mctx domain.MarketContext
		err := acct.Breaker.Execute(func() error {
			var fetchErr error
			mctx, fetchErr = e.market.Context(ctx, token)
			return fetchErr
		})
		if err != nil {
			result.Errors = append(result.Errors, errors.Wrapf(err, "market context for %s", token))
			if errors.Is(err, breaker.ErrCircuitOpen) {
				e.publish(notify.Event{
					Type:      notify.EventCircuitOpen,
					AccountID: accountID,
					Token:     token,
					Detail:    "market data path short-circuited",
					Timestamp: now,
				})
			}
			continue
		}

		acct.History.Push(mctx)
		prices[token] = mctx.PriceUsd
		if pos, ok := acct.Portfolio.Position(token); ok {
			pos.MarkPrice(mctx.PriceUsd)
		}

		scores := e.composite.Analyze(ctx, mctx, acct.History, acct.Decision.IntelLevel())

		dec := acct.Decision.Decide(decision.Input{
			Context:     mctx,
			Scores:      scores,
			Portfolio:   acct.Portfolio.State(prices),
			BreakerOpen: acct.Breaker.Open(),
			Now:         now,
		})
		result.Decisions = append(result.Decisions, dec)
		e.publish(notify.Event{
			Type:      notify.EventDecision,
			AccountID: accountID,
			Token:     token,
			Decision:  &dec,
			Timestamp: now,
		})

		switch dec.Action {
		case domain.ActionBuy:
			e.executeBuy(ctx, acct, &result, dec, mctx, prices, now)
		case domain.ActionSell:
			e.executeSell(acct, &result, mctx.PriceUsd, dec, now)
		}
	}

	e.sweepExits(ctx, acct, &result, covered, now)

	return result, nil
}

// executeBuy sizes the trade, picks an execution plan, scans venues for an
// arbitrage spread, and fills each chunk through the circuit breaker.
func (e *Engine) executeBuy(ctx context.Context, acct *Account, result *domain.TickResult, dec domain.TradingDecision, mctx domain.MarketContext, prices map[string]decimal.Decimal, now time.Time) {
	state := acct.Portfolio.State(prices)
	sizeUsd := state.TotalValue.Mul(dec.SizingPercent).Div(decimal.NewFromInt(100))
	if sizeUsd.GreaterThan(acct.Portfolio.CashUsd()) {
		sizeUsd = acct.Portfolio.CashUsd()
	}
	if sizeUsd.LessThanOrEqual(decimal.Zero) {
		result.Errors = append(result.Errors, errors.Errorf("no cash available to buy %s", dec.Token))
		return
	}

	// re-check against live position state: chunked fills may have stacked the
	// token past the cap since the decision was made
	if allowed, reason := acct.Portfolio.CheckConcentrationLimit(dec.Token, sizeUsd, state.TotalValue); !allowed {
		e.logger.Info("buy blocked by concentration limit",
			zap.String("account", acct.ID),
			zap.String("token", dec.Token),
			zap.String("reason", reason))
		result.Errors = append(result.Errors, errors.Wrapf(portfolio.ErrConcentrationLimit, "buy %s: %s", dec.Token, reason))
		return
	}

	plan := e.selector.Select(dec.Confidence, mctx.VolatilityIndex, mctx.LiquidityUsd, sizeUsd, mctx.Trend)

	if e.detector != nil && len(e.venues) >= 2 {
		venuePrices := marketdata.VenuePrices(ctx, dec.Token, e.venues)
		if opp, found := e.detector.Find(dec.Token, venuePrices, sizeUsd, dec.Confidence/100); found {
			e.publish(notify.Event{
				Type:      notify.EventTrade,
				AccountID: acct.ID,
				Token:     dec.Token,
				Detail: "arbitrage spread " + opp.GrossSpreadPercent.StringFixed(2) +
					"% buy " + opp.BuyVenue + " sell " + opp.SellVenue,
				Timestamp: now,
			})
		}
	}

	for _, chunk := range plan.Chunks {
		var trade domain.ExecutedTrade
		err := acct.Breaker.Execute(func() error {
			var fillErr error
			trade, fillErr = e.executor.FillBuy(dec.Token, chunk.SizeUsd, mctx.PriceUsd, now.Add(chunk.Offset))
			if fillErr != nil {
				return fillErr
			}
			_, fillErr = acct.Portfolio.OpenPosition(dec.Token, trade.Quantity, trade.PriceUsd, now.Add(chunk.Offset))
			return fillErr
		})
		if err != nil {
			result.Errors = append(result.Errors, errors.Wrapf(err, "buy chunk for %s", dec.Token))
			return
		}

		result.Trades = append(result.Trades, trade)
		e.publish(notify.Event{
			Type:      notify.EventTrade,
			AccountID: acct.ID,
			Token:     dec.Token,
			Trade:     &trade,
			Timestamp: now,
		})
	}
}

// executeSell liquidates the full position at the current price.
func (e *Engine) executeSell(acct *Account, result *domain.TickResult, priceUsd decimal.Decimal, dec domain.TradingDecision, now time.Time) {
	pos, ok := acct.Portfolio.Position(dec.Token)
	if !ok {
		result.Errors = append(result.Errors, errors.Errorf("sell decision for %s without open position", dec.Token))
		return
	}

	trade, err := e.executor.FillSell(dec.Token, pos.Quantity, priceUsd, dec.ExitReason, now)
	if err != nil {
		result.Errors = append(result.Errors, errors.Wrapf(err, "sell fill for %s", dec.Token))
		return
	}

	closed, err := acct.Portfolio.ClosePosition(dec.Token, trade.PriceUsd, dec.ExitReason, now)
	if err != nil {
		result.Errors = append(result.Errors, errors.Wrapf(err, "close position for %s", dec.Token))
		return
	}

	result.Trades = append(result.Trades, trade)
	result.ClosedPositions = append(result.ClosedPositions, closed)
	e.publish(notify.Event{
		Type:      notify.EventPositionClosed,
		AccountID: acct.ID,
		Token:     dec.Token,
		Trade:     &trade,
		Detail:    string(dec.ExitReason),
		Timestamp: now,
	})
}

// sweepExits evaluates exit rules for open positions the watchlist pass did not
// cover, sequentially in token order.
func (e *Engine) sweepExits(ctx context.Context, acct *Account, result *domain.TickResult, covered map[string]bool, now time.Time) {
	open := acct.Portfolio.OpenPositions()
	sort.Slice(open, func(i, j int) bool { return open[i].Token < open[j].Token })

	for _, pos := range open {
		if covered[pos.Token] {
			continue
		}

		var mctx domain.MarketContext
		err := acct.Breaker.Execute(func() error {
			var fetchErr error
			mctx, fetchErr = e.market.Context(ctx, pos.Token)
			return fetchErr
		})
		if err != nil {
			result.Errors = append(result.Errors, errors.Wrapf(err, "exit sweep price for %s", pos.Token))
			if errors.Is(err, breaker.ErrCircuitOpen) {
				e.publish(notify.Event{
					Type:      notify.EventCircuitOpen,
					AccountID: acct.ID,
					Token:     pos.Token,
					Detail:    "market data path short-circuited",
					Timestamp: now,
				})
			}
			continue
		}
		pos.MarkPrice(mctx.PriceUsd)

		sig, triggered := acct.Decision.EvaluateExit(pos, mctx.PriceUsd, now)
		if !triggered {
			continue
		}

		dec := domain.TradingDecision{
			Token:      pos.Token,
			Action:     domain.ActionSell,
			ExitReason: sig.Reason,
		}
		e.executeSell(acct, result, mctx.PriceUsd, dec, now)
	}
}

func (e *Engine) publish(event notify.Event) {
	if e.notifier != nil {
		e.notifier.Publish(event)
	}
}

func (e *Engine) accountIDs() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	ids := make([]string, 0, len(e.accounts))
	for id := range e.accounts {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
