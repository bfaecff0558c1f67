// Package portfolio owns the position lifecycle for one account: opens,
// reductions, closes, P&L and the per-token concentration limit.
package portfolio

import (
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/papertrader/internal/domain"
	"github.com/vadiminshakov/papertrader/internal/services/guard"
	"go.uber.org/zap"
)

// ErrConcentrationLimit blocks a single BUY that would push one token past the
// configured share of the portfolio. Never fatal to the tick.
var ErrConcentrationLimit = errors.New("per-token concentration limit exceeded")

var hundred = decimal.NewFromInt(100)

// Snapshotter persists portfolio snapshots. Delivery is at-least-once; a failed
// save is logged and retried on the next mutation.
type Snapshotter interface {
	Save(accountID string, cash decimal.Decimal, positions []*domain.Position) error
}

// Manager is the exclusive owner of one account's positions. All mutations go
// through its methods under the account lock held by the engine.
type Manager struct {
	accountID        string
	cashUsd          decimal.Decimal
	positions        map[string]*domain.Position // open and closed, keyed by token
	closed           []*domain.Position
	maxTokenPercent  decimal.Decimal
	guard            *guard.Guard
	snapshots        Snapshotter
	logger           *zap.Logger
	strictInvariants bool // crash loudly in development, degrade in production
}

// NewManager creates a portfolio manager with the given starting cash.
func NewManager(accountID string, startingCashUsd, maxTokenPercent decimal.Decimal, g *guard.Guard, snapshots Snapshotter, logger *zap.Logger) (*Manager, error) {
	if startingCashUsd.LessThan(decimal.Zero) {
		return nil, errors.New("starting cash must not be negative")
	}
	if maxTokenPercent.LessThanOrEqual(decimal.Zero) || maxTokenPercent.GreaterThan(hundred) {
		return nil, fmt.Errorf("maxTokenPercent must be in (0,100], got %s", maxTokenPercent.String())
	}
	if g == nil {
		g = guard.New(logger)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Manager{
		accountID:       accountID,
		cashUsd:         startingCashUsd,
		positions:       make(map[string]*domain.Position),
		maxTokenPercent: maxTokenPercent,
		guard:           g,
		snapshots:       snapshots,
		logger:          logger.With(zap.String("account", accountID)),
	}, nil
}

// SetStrictInvariants makes invariant violations return errors that the caller
// is expected to treat as fatal. Production keeps it off and degrades instead.
func (m *Manager) SetStrictInvariants(strict bool) { m.strictInvariants = strict }

// CashUsd returns the free cash balance.
func (m *Manager) CashUsd() decimal.Decimal { return m.cashUsd }

// State recomputes the portfolio view for the current tick. Open positions are
// marked to the provided prices when present.
func (m *Manager) State(prices map[string]decimal.Decimal) domain.PortfolioState {
	state := domain.PortfolioState{
		AccountID:  m.accountID,
		CashUsd:    m.cashUsd,
		TotalValue: m.cashUsd,
	}

	for _, pos := range m.positions {
		if !pos.Open {
			continue
		}
		if price, ok := prices[pos.Token]; ok {
			pos.MarkPrice(price)
		}
		state.Positions = append(state.Positions, pos)
		state.TotalValue = state.TotalValue.Add(pos.Quantity.Mul(pos.CurrentPriceUsd))
	}
	for _, pos := range m.closed {
		state.RealizedPnl = state.RealizedPnl.Add(pos.RealizedPnl)
	}
	for _, pos := range m.positions {
		if pos.Open {
			state.RealizedPnl = state.RealizedPnl.Add(pos.RealizedPnl)
		}
	}

	return state
}

// OpenPositions returns the current open positions.
func (m *Manager) OpenPositions() []*domain.Position {
	out := make([]*domain.Position, 0, len(m.positions))
	for _, pos := range m.positions {
		if pos.Open {
			out = append(out, pos)
		}
	}
	return out
}

// Position returns the open position for a token, if any.
func (m *Manager) Position(token string) (*domain.Position, bool) {
	pos, ok := m.positions[token]
	if !ok || !pos.Open {
		return nil, false
	}
	return pos, true
}

// CheckConcentrationLimit reports whether a BUY of candidateUsd would keep the
// token's share of portfolioValue at or under the configured maximum. On an
// internal calculation error it fails open: the trade is allowed and the
// anomaly logged, so a bookkeeping bug cannot freeze the bot.
func (m *Manager) CheckConcentrationLimit(token string, candidateUsd, portfolioValue decimal.Decimal) (bool, string) {
	if portfolioValue.LessThanOrEqual(decimal.Zero) {
		m.logger.Error("concentration check anomaly, failing open",
			zap.String("token", token),
			zap.String("portfolio_value", portfolioValue.String()))
		return true, "portfolio value unavailable, concentration check skipped"
	}

	invested := decimal.Zero
	if pos, ok := m.Position(token); ok {
		invested = pos.InvestedUsd
	}

	projected := invested.Add(candidateUsd).Div(portfolioValue).Mul(hundred)
	if projected.GreaterThan(m.maxTokenPercent) {
		return false, fmt.Sprintf("concentration %s%% would exceed max %s%% for %s",
			projected.StringFixed(2), m.maxTokenPercent.String(), token)
	}

	return true, ""
}

// OpenPosition buys quantity of token at priceUsd, debiting cash. Re-buying an
// open token folds the fill into the existing position via volume-weighted
// average entry, never a second row.
func (m *Manager) OpenPosition(token string, quantity, priceUsd decimal.Decimal, at time.Time) (*domain.Position, error) {
	quantity, err := m.guard.QuantityValue("open.quantity", quantity)
	if err != nil {
		return nil, m.invariant(err)
	}
	priceUsd, err = m.guard.MonetaryValue("open.price", priceUsd)
	if err != nil {
		return nil, m.invariant(err)
	}
	if quantity.IsZero() || priceUsd.IsZero() {
		return nil, errors.New("open requires positive quantity and price")
	}

	cost := quantity.Mul(priceUsd)
	if cost.GreaterThan(m.cashUsd) {
		return nil, fmt.Errorf("insufficient cash: have %s need %s", m.cashUsd.String(), cost.String())
	}

	existing, ok := m.positions[token]
	if ok && existing.Open {
		if err := existing.AddFill(quantity, priceUsd); err != nil {
			return nil, errors.Wrap(err, "merge fill into open position")
		}
		m.cashUsd = m.cashUsd.Sub(cost)
		m.persist()
		m.logger.Info("position increased",
			zap.String("token", token),
			zap.String("quantity", quantity.String()),
			zap.String("price", priceUsd.String()),
			zap.String("avg_entry", existing.AvgEntryPriceUsd.String()))
		return existing, nil
	}

	pos, err := domain.NewPosition(token, quantity, priceUsd, at)
	if err != nil {
		return nil, errors.Wrap(err, "create position")
	}

	m.cashUsd = m.cashUsd.Sub(cost)
	m.positions[token] = pos
	m.persist()
	m.logger.Info("position opened",
		zap.String("token", token),
		zap.String("quantity", quantity.String()),
		zap.String("price", priceUsd.String()))
	return pos, nil
}

// ReducePosition sells part of an open position, crediting the proceeds.
func (m *Manager) ReducePosition(token string, quantity, priceUsd decimal.Decimal, at time.Time) (decimal.Decimal, error) {
	pos, ok := m.Position(token)
	if !ok {
		return decimal.Zero, fmt.Errorf("no open position for %s", token)
	}

	quantity, err := m.guard.QuantityValue("reduce.quantity", quantity)
	if err != nil {
		return decimal.Zero, m.invariant(err)
	}
	priceUsd, err = m.guard.MonetaryValue("reduce.price", priceUsd)
	if err != nil {
		return decimal.Zero, m.invariant(err)
	}

	proceeds, err := pos.Reduce(quantity, priceUsd)
	if err != nil {
		return decimal.Zero, err
	}

	m.cashUsd = m.cashUsd.Add(proceeds)
	if pos.Quantity.IsZero() {
		pos.MarkClosed(domain.ExitManualSell, at)
		m.retire(pos)
	}
	m.persist()
	return proceeds, nil
}

// ClosePosition liquidates the full position at priceUsd for the given reason.
func (m *Manager) ClosePosition(token string, priceUsd decimal.Decimal, reason domain.ExitReason, at time.Time) (*domain.Position, error) {
	pos, ok := m.Position(token)
	if !ok {
		return nil, fmt.Errorf("no open position for %s", token)
	}

	priceUsd, err := m.guard.MonetaryValue("close.price", priceUsd)
	if err != nil {
		return nil, m.invariant(err)
	}

	proceeds, err := pos.Reduce(pos.Quantity, priceUsd)
	if err != nil {
		return nil, err
	}

	m.cashUsd = m.cashUsd.Add(proceeds)
	pos.MarkClosed(reason, at)
	m.retire(pos)
	m.persist()

	m.logger.Info("position closed",
		zap.String("token", token),
		zap.String("price", priceUsd.String()),
		zap.String("realized_pnl", pos.RealizedPnl.String()),
		zap.String("reason", string(reason)))
	return pos, nil
}

// ClosedPositions returns retained closed positions, oldest first.
func (m *Manager) ClosedPositions() []*domain.Position { return m.closed }

// Restore replaces manager state from a persisted snapshot.
func (m *Manager) Restore(cash decimal.Decimal, positions []*domain.Position) error {
	cash, err := m.guard.MonetaryValue("restore.cash", cash)
	if err != nil {
		return err
	}
	m.cashUsd = cash
	m.positions = make(map[string]*domain.Position, len(positions))
	m.closed = nil
	for _, pos := range positions {
		if pos.Open {
			m.positions[pos.Token] = pos
		} else {
			m.closed = append(m.closed, pos)
		}
	}
	return nil
}

func (m *Manager) retire(pos *domain.Position) {
	delete(m.positions, pos.Token)
	m.closed = append(m.closed, pos)
}

func (m *Manager) persist() {
	if m.snapshots == nil {
		return
	}
	all := make([]*domain.Position, 0, len(m.positions)+len(m.closed))
	for _, pos := range m.positions {
		all = append(all, pos)
	}
	all = append(all, m.closed...)
	if err := m.snapshots.Save(m.accountID, m.cashUsd, all); err != nil {
		m.logger.Warn("failed to persist portfolio snapshot", zap.Error(err))
	}
}

func (m *Manager) invariant(err error) error {
	if m.strictInvariants {
		panic(err)
	}
	m.logger.Error("invariant violation degraded to rejection", zap.Error(err))
	return err
}
