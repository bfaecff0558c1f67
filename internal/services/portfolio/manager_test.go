package portfolio

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vadiminshakov/papertrader/internal/domain"
)

type memorySnapshotter struct {
	saves     int
	lastCash  decimal.Decimal
	positions []*domain.Position
}

func (s *memorySnapshotter) Save(_ string, cash decimal.Decimal, positions []*domain.Position) error {
	s.saves++
	s.lastCash = cash
	s.positions = positions
	return nil
}

func newTestManager(t *testing.T, cash int64, snapshots Snapshotter) *Manager {
	t.Helper()
	m, err := NewManager("acct-1", decimal.NewFromInt(cash), decimal.NewFromInt(25), nil, snapshots, nil)
	require.NoError(t, err)
	return m
}

func TestManager_OpenAndClose_ConservesCash(t *testing.T) {
	m := newTestManager(t, 10_000, nil)
	at := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	pos, err := m.OpenPosition("ETH", decimal.NewFromInt(2), decimal.NewFromInt(2000), at)
	require.NoError(t, err)
	assert.True(t, m.CashUsd().Equal(decimal.NewFromInt(6000)))
	assert.True(t, pos.Open)

	closed, err := m.ClosePosition("ETH", decimal.NewFromInt(2500), domain.ExitTakeProfit, at.Add(time.Hour))
	require.NoError(t, err)
	assert.True(t, m.CashUsd().Equal(decimal.NewFromInt(11_000)))
	assert.True(t, closed.RealizedPnl.Equal(decimal.NewFromInt(1000)))
	assert.False(t, closed.Open)
	assert.Equal(t, domain.ExitTakeProfit, closed.CloseReason)

	_, found := m.Position("ETH")
	assert.False(t, found)
	require.Len(t, m.ClosedPositions(), 1)
}

func TestManager_OpenPosition_MergesRebuy(t *testing.T) {
	m := newTestManager(t, 10_000, nil)
	at := time.Now()

	_, err := m.OpenPosition("ETH", decimal.NewFromInt(1), decimal.NewFromInt(2000), at)
	require.NoError(t, err)
	pos, err := m.OpenPosition("ETH", decimal.NewFromInt(1), decimal.NewFromInt(3000), at.Add(time.Minute))
	require.NoError(t, err)

	// one row per token, volume-weighted entry
	assert.True(t, pos.AvgEntryPriceUsd.Equal(decimal.NewFromInt(2500)))
	assert.True(t, pos.Quantity.Equal(decimal.NewFromInt(2)))
	assert.Len(t, m.OpenPositions(), 1)
	assert.True(t, m.CashUsd().Equal(decimal.NewFromInt(5000)))
}

func TestManager_OpenPosition_Rejections(t *testing.T) {
	m := newTestManager(t, 1000, nil)
	at := time.Now()

	t.Run("insufficient cash", func(t *testing.T) {
		_, err := m.OpenPosition("ETH", decimal.NewFromInt(1), decimal.NewFromInt(2000), at)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "insufficient cash")
	})

	t.Run("invalid quantity", func(t *testing.T) {
		_, err := m.OpenPosition("ETH", decimal.NewFromInt(-1), decimal.NewFromInt(100), at)
		assert.Error(t, err)
	})

	t.Run("cash untouched after rejections", func(t *testing.T) {
		assert.True(t, m.CashUsd().Equal(decimal.NewFromInt(1000)))
	})
}

func TestManager_ReducePosition(t *testing.T) {
	m := newTestManager(t, 10_000, nil)
	at := time.Now()

	_, err := m.OpenPosition("ETH", decimal.NewFromInt(2), decimal.NewFromInt(2000), at)
	require.NoError(t, err)

	proceeds, err := m.ReducePosition("ETH", decimal.NewFromInt(1), decimal.NewFromInt(2500), at.Add(time.Hour))
	require.NoError(t, err)
	assert.True(t, proceeds.Equal(decimal.NewFromInt(2500)))

	pos, found := m.Position("ETH")
	require.True(t, found)
	assert.True(t, pos.Quantity.Equal(decimal.NewFromInt(1)))

	// reducing to zero retires the position as a manual sell
	_, err = m.ReducePosition("ETH", decimal.NewFromInt(1), decimal.NewFromInt(2500), at.Add(2*time.Hour))
	require.NoError(t, err)
	_, found = m.Position("ETH")
	assert.False(t, found)
	require.Len(t, m.ClosedPositions(), 1)
	assert.Equal(t, domain.ExitManualSell, m.ClosedPositions()[0].CloseReason)
}

func TestManager_State(t *testing.T) {
	m := newTestManager(t, 10_000, nil)
	at := time.Now()

	_, err := m.OpenPosition("ETH", decimal.NewFromInt(2), decimal.NewFromInt(2000), at)
	require.NoError(t, err)

	state := m.State(map[string]decimal.Decimal{"ETH": decimal.NewFromInt(2100)})

	assert.True(t, state.CashUsd.Equal(decimal.NewFromInt(6000)))
	// 6000 cash + 2 * 2100 marked
	assert.True(t, state.TotalValue.Equal(decimal.NewFromInt(10_200)))
	require.Len(t, state.Positions, 1)
	assert.True(t, state.Positions[0].CurrentPriceUsd.Equal(decimal.NewFromInt(2100)))
}

func TestManager_CheckConcentrationLimit(t *testing.T) {
	m := newTestManager(t, 10_000, nil)
	at := time.Now()

	_, err := m.OpenPosition("ETH", decimal.NewFromInt(1), decimal.NewFromInt(2400), at)
	require.NoError(t, err)
	portfolioValue := decimal.NewFromInt(10_000)

	t.Run("within limit", func(t *testing.T) {
		ok, _ := m.CheckConcentrationLimit("ETH", decimal.NewFromInt(50), portfolioValue)
		assert.True(t, ok)
	})

	t.Run("projected share over the cap", func(t *testing.T) {
		ok, reason := m.CheckConcentrationLimit("ETH", decimal.NewFromInt(200), portfolioValue)
		assert.False(t, ok)
		assert.Contains(t, reason, "26.00%")
	})

	t.Run("fails open on unusable portfolio value", func(t *testing.T) {
		ok, reason := m.CheckConcentrationLimit("ETH", decimal.NewFromInt(200), decimal.Zero)
		assert.True(t, ok)
		assert.Contains(t, reason, "skipped")
	})
}

func TestManager_PersistsSnapshots(t *testing.T) {
	snaps := &memorySnapshotter{}
	m := newTestManager(t, 10_000, snaps)
	at := time.Now()

	_, err := m.OpenPosition("ETH", decimal.NewFromInt(1), decimal.NewFromInt(2000), at)
	require.NoError(t, err)
	_, err = m.ClosePosition("ETH", decimal.NewFromInt(2100), domain.ExitTakeProfit, at.Add(time.Hour))
	require.NoError(t, err)

	assert.Equal(t, 2, snaps.saves)
	assert.True(t, snaps.lastCash.Equal(decimal.NewFromInt(10_100)))
	require.Len(t, snaps.positions, 1)
	assert.False(t, snaps.positions[0].Open)
}

func TestManager_Restore(t *testing.T) {
	m := newTestManager(t, 10_000, nil)
	at := time.Now()

	open, err := domain.NewPosition("ETH", decimal.NewFromInt(1), decimal.NewFromInt(2000), at)
	require.NoError(t, err)
	closed, err := domain.NewPosition("BTC", decimal.NewFromInt(1), decimal.NewFromInt(60_000), at)
	require.NoError(t, err)
	_, err = closed.Reduce(closed.Quantity, decimal.NewFromInt(61_000))
	require.NoError(t, err)
	closed.MarkClosed(domain.ExitTakeProfit, at.Add(time.Hour))

	require.NoError(t, m.Restore(decimal.NewFromInt(4321), []*domain.Position{open, closed}))

	assert.True(t, m.CashUsd().Equal(decimal.NewFromInt(4321)))
	pos, found := m.Position("ETH")
	require.True(t, found)
	assert.True(t, pos.Open)
	require.Len(t, m.ClosedPositions(), 1)
	assert.Equal(t, "BTC", m.ClosedPositions()[0].Token)
}

func TestNewManager_Validation(t *testing.T) {
	_, err := NewManager("a", decimal.NewFromInt(-1), decimal.NewFromInt(25), nil, nil, nil)
	assert.Error(t, err)
	_, err = NewManager("a", decimal.NewFromInt(100), decimal.Zero, nil, nil, nil)
	assert.Error(t, err)
	_, err = NewManager("a", decimal.NewFromInt(100), decimal.NewFromInt(101), nil, nil, nil)
	assert.Error(t, err)
}
