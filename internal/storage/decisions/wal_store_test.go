package decisions

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vadiminshakov/papertrader/internal/domain"
)

func sampleDecision(id, token string, action domain.Action) domain.TradingDecision {
	return domain.TradingDecision{
		ID:               id,
		Token:            token,
		Action:           action,
		Confidence:       72.5,
		RiskScore:        30,
		OpportunityScore: 65,
		Reasoning:        "test decision",
		Strategy:         domain.StrategySpot,
		SizingPercent:    decimal.NewFromInt(5),
		CreatedAt:        time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestWALStore_SaveAndReadBack(t *testing.T) {
	store, err := NewWALStore(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.Save(sampleDecision("d-1", "ETH", domain.ActionBuy)))
	require.NoError(t, store.Save(sampleDecision("d-2", "BTC", domain.ActionSkip)))
	require.NoError(t, store.Save(sampleDecision("d-3", "ETH", domain.ActionSell)))

	records, err := store.DecisionsAfter(0)
	require.NoError(t, err)
	require.Len(t, records, 3)

	assert.Equal(t, "d-1", records[0].Decision.ID)
	assert.Equal(t, domain.ActionBuy, records[0].Decision.Action)
	assert.Equal(t, "BTC", records[1].Decision.Token)
	assert.Equal(t, 72.5, records[2].Decision.Confidence)
	assert.True(t, records[2].Decision.SizingPercent.Equal(decimal.NewFromInt(5)))

	// indexes are strictly increasing
	assert.Less(t, records[0].Index, records[1].Index)
	assert.Less(t, records[1].Index, records[2].Index)
}

func TestWALStore_CursorReads(t *testing.T) {
	store, err := NewWALStore(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.Save(sampleDecision("d-1", "ETH", domain.ActionBuy)))
	require.NoError(t, store.Save(sampleDecision("d-2", "ETH", domain.ActionHold)))

	cursor := store.CurrentIndex()
	require.NoError(t, store.Save(sampleDecision("d-3", "ETH", domain.ActionSell)))

	records, err := store.DecisionsAfter(cursor)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "d-3", records[0].Decision.ID)

	// caught up: nothing newer than the current index
	records, err = store.DecisionsAfter(store.CurrentIndex())
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestWALStore_RejectsInvalidDecision(t *testing.T) {
	store, err := NewWALStore(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	assert.Error(t, store.Save(domain.TradingDecision{}))
}

func TestWALStore_SurvivesReopen(t *testing.T) {
	dir := t.TempDir()

	store, err := NewWALStore(dir)
	require.NoError(t, err)
	require.NoError(t, store.Save(sampleDecision("d-1", "ETH", domain.ActionBuy)))
	require.NoError(t, store.Close())

	reopened, err := NewWALStore(dir)
	require.NoError(t, err)
	defer reopened.Close()

	records, err := reopened.DecisionsAfter(0)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "d-1", records[0].Decision.ID)
}
