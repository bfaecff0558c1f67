package exits

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vadiminshakov/papertrader/internal/domain"
)

func newEvaluator(t *testing.T) *Evaluator {
	t.Helper()
	e, err := NewEvaluator(Rules{
		StopLossPercent:   decimal.NewFromInt(5),
		TakeProfitPercent: decimal.NewFromInt(10),
		MaxHold:           72 * time.Hour,
	})
	require.NoError(t, err)
	return e
}

func openPosition(t *testing.T, entryPrice string, openedAt time.Time) *domain.Position {
	t.Helper()
	pos, err := domain.NewPosition("ETH", decimal.NewFromInt(1), decimal.RequireFromString(entryPrice), openedAt)
	require.NoError(t, err)
	return pos
}

func TestEvaluator_Evaluate(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	t.Run("stop loss at minus six percent", func(t *testing.T) {
		pos := openPosition(t, "100", now.Add(-time.Hour))
		sig, triggered := newEvaluator(t).Evaluate(pos, decimal.NewFromInt(94), now)
		require.True(t, triggered)
		assert.Equal(t, domain.ExitStopLoss, sig.Reason)
		assert.True(t, sig.PnlPercent.Equal(decimal.NewFromInt(-6)))
	})

	t.Run("take profit", func(t *testing.T) {
		pos := openPosition(t, "100", now.Add(-time.Hour))
		sig, triggered := newEvaluator(t).Evaluate(pos, decimal.NewFromInt(112), now)
		require.True(t, triggered)
		assert.Equal(t, domain.ExitTakeProfit, sig.Reason)
	})

	t.Run("max hold exceeded", func(t *testing.T) {
		pos := openPosition(t, "100", now.Add(-80*time.Hour))
		sig, triggered := newEvaluator(t).Evaluate(pos, decimal.NewFromInt(101), now)
		require.True(t, triggered)
		assert.Equal(t, domain.ExitMaxHoldExceeded, sig.Reason)
	})

	t.Run("stop loss wins when several thresholds cross", func(t *testing.T) {
		// held too long AND below stop loss: fixed priority picks stop loss
		pos := openPosition(t, "100", now.Add(-80*time.Hour))
		sig, triggered := newEvaluator(t).Evaluate(pos, decimal.NewFromInt(90), now)
		require.True(t, triggered)
		assert.Equal(t, domain.ExitStopLoss, sig.Reason)
	})

	t.Run("no trigger inside all thresholds", func(t *testing.T) {
		pos := openPosition(t, "100", now.Add(-time.Hour))
		_, triggered := newEvaluator(t).Evaluate(pos, decimal.NewFromInt(102), now)
		assert.False(t, triggered)
	})

	t.Run("closed position never triggers", func(t *testing.T) {
		pos := openPosition(t, "100", now.Add(-time.Hour))
		pos.MarkClosed(domain.ExitManualSell, now)
		_, triggered := newEvaluator(t).Evaluate(pos, decimal.NewFromInt(50), now)
		assert.False(t, triggered)
	})
}

func TestRules_Validate(t *testing.T) {
	cases := []struct {
		name  string
		rules Rules
		ok    bool
	}{
		{"valid", Rules{decimal.NewFromInt(5), decimal.NewFromInt(10), time.Hour}, true},
		{"zero stop loss", Rules{decimal.Zero, decimal.NewFromInt(10), time.Hour}, false},
		{"zero take profit", Rules{decimal.NewFromInt(5), decimal.Zero, time.Hour}, false},
		{"zero max hold", Rules{decimal.NewFromInt(5), decimal.NewFromInt(10), 0}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.rules.Validate()
			if tc.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}
