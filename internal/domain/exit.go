package domain

import "github.com/shopspring/decimal"

// ExitReason records why a position left the OPEN state. Trigger priority is
// fixed (stop-loss first) so exactly one reason is recorded even when several
// thresholds are crossed in the same tick.
type ExitReason string

const (
	ExitNone            ExitReason = ""
	ExitStopLoss        ExitReason = "STOP_LOSS_TRIGGERED"
	ExitTakeProfit      ExitReason = "TAKE_PROFIT_TRIGGERED"
	ExitMaxHoldExceeded ExitReason = "MAX_HOLD_EXCEEDED"
	ExitManualSell      ExitReason = "MANUAL_SELL"
)

// ExitSignal is the outcome of evaluating one open position against exit rules.
type ExitSignal struct {
	Token      string
	Reason     ExitReason
	PnlPercent decimal.Decimal
}
