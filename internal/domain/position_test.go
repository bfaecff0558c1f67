package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPosition_AddFill_AveragesEntry(t *testing.T) {
	openedAt := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	pos, err := NewPosition("ETH", decimal.NewFromInt(1), decimal.NewFromInt(2000), openedAt)
	require.NoError(t, err)

	// re-buy at a higher price: volume-weighted average, single position
	require.NoError(t, pos.AddFill(decimal.NewFromInt(1), decimal.NewFromInt(3000)))

	assert.True(t, pos.Quantity.Equal(decimal.NewFromInt(2)))
	assert.True(t, pos.AvgEntryPriceUsd.Equal(decimal.NewFromInt(2500)))
	assert.True(t, pos.InvestedUsd.Equal(decimal.NewFromInt(5000)))
}

func TestPosition_AddFill_RejectsClosedAndInvalid(t *testing.T) {
	pos, err := NewPosition("ETH", decimal.NewFromInt(1), decimal.NewFromInt(2000), time.Now())
	require.NoError(t, err)

	assert.Error(t, pos.AddFill(decimal.Zero, decimal.NewFromInt(100)))

	pos.MarkClosed(ExitManualSell, time.Now())
	assert.Error(t, pos.AddFill(decimal.NewFromInt(1), decimal.NewFromInt(100)))
}

func TestPosition_Reduce_RealizesPnl(t *testing.T) {
	pos, err := NewPosition("ETH", decimal.NewFromInt(2), decimal.NewFromInt(2000), time.Now())
	require.NoError(t, err)

	proceeds, err := pos.Reduce(decimal.NewFromInt(1), decimal.NewFromInt(2500))
	require.NoError(t, err)

	assert.True(t, proceeds.Equal(decimal.NewFromInt(2500)))
	assert.True(t, pos.RealizedPnl.Equal(decimal.NewFromInt(500)))
	assert.True(t, pos.Quantity.Equal(decimal.NewFromInt(1)))
	assert.True(t, pos.InvestedUsd.Equal(decimal.NewFromInt(2000)))
}

func TestPosition_Reduce_CapsAtQuantity(t *testing.T) {
	pos, err := NewPosition("ETH", decimal.NewFromInt(1), decimal.NewFromInt(2000), time.Now())
	require.NoError(t, err)

	proceeds, err := pos.Reduce(decimal.NewFromInt(5), decimal.NewFromInt(2000))
	require.NoError(t, err)

	assert.True(t, proceeds.Equal(decimal.NewFromInt(2000)))
	assert.True(t, pos.Quantity.IsZero())
}

func TestPosition_PnlPercent(t *testing.T) {
	pos, err := NewPosition("ETH", decimal.NewFromInt(1), decimal.NewFromInt(100), time.Now())
	require.NoError(t, err)

	assert.True(t, pos.PnlPercent(decimal.NewFromInt(94)).Equal(decimal.NewFromInt(-6)))
	assert.True(t, pos.PnlPercent(decimal.NewFromInt(112)).Equal(decimal.NewFromInt(12)))
}

func TestNewPosition_Validation(t *testing.T) {
	_, err := NewPosition("ETH", decimal.Zero, decimal.NewFromInt(100), time.Now())
	assert.Error(t, err)
	_, err = NewPosition("ETH", decimal.NewFromInt(1), decimal.Zero, time.Now())
	assert.Error(t, err)
}

func TestHistory_RingBuffers(t *testing.T) {
	h := NewHistory()

	for i := 0; i < ContextHistoryCap+10; i++ {
		h.Push(MarketContext{
			Token:           "ETH",
			PriceUsd:        decimal.NewFromInt(int64(i)),
			VolatilityIndex: float64(i),
		})
	}

	contexts := h.Contexts("ETH")
	require.Len(t, contexts, ContextHistoryCap)
	// oldest entries evicted: the window starts at i=10
	assert.True(t, contexts[0].PriceUsd.Equal(decimal.NewFromInt(10)))

	vols := h.VolatilitySamples("ETH")
	require.Len(t, vols, VolatilityHistoryCap)
	assert.Equal(t, float64(ContextHistoryCap+10-VolatilityHistoryCap), vols[0])
}
