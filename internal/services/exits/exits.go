// Package exits evaluates open positions against stop-loss, take-profit and
// max-hold rules each tick.
package exits

import (
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/papertrader/internal/domain"
)

// Rules are the exit thresholds for one account.
type Rules struct {
	StopLossPercent   decimal.Decimal // positive number, e.g. 5 means -5%
	TakeProfitPercent decimal.Decimal
	MaxHold           time.Duration
}

// Validate checks the rule thresholds.
func (r Rules) Validate() error {
	if r.StopLossPercent.LessThanOrEqual(decimal.Zero) {
		return errors.New("stop-loss percent must be greater than zero")
	}
	if r.TakeProfitPercent.LessThanOrEqual(decimal.Zero) {
		return errors.New("take-profit percent must be greater than zero")
	}
	if r.MaxHold <= 0 {
		return errors.New("max hold duration must be greater than zero")
	}
	return nil
}

// Evaluator is the exit state machine: OPEN -> one triggered state -> CLOSED.
type Evaluator struct {
	rules Rules
}

// NewEvaluator creates an exit evaluator with validated rules.
func NewEvaluator(rules Rules) (*Evaluator, error) {
	if err := rules.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid exit rules")
	}
	return &Evaluator{rules: rules}, nil
}

// Evaluate checks one open position against the exit rules. Trigger priority
// is fixed (stop-loss, then take-profit, then max-hold) so a tick where
// several thresholds cross records exactly one reason.
func (e *Evaluator) Evaluate(pos *domain.Position, currentPrice decimal.Decimal, now time.Time) (domain.ExitSignal, bool) {
	if pos == nil || !pos.Open {
		return domain.ExitSignal{}, false
	}

	pnlPercent := pos.PnlPercent(currentPrice)

	if pnlPercent.LessThanOrEqual(e.rules.StopLossPercent.Neg()) {
		return domain.ExitSignal{Token: pos.Token, Reason: domain.ExitStopLoss, PnlPercent: pnlPercent}, true
	}
	if pnlPercent.GreaterThanOrEqual(e.rules.TakeProfitPercent) {
		return domain.ExitSignal{Token: pos.Token, Reason: domain.ExitTakeProfit, PnlPercent: pnlPercent}, true
	}
	if pos.HoldDuration(now) >= e.rules.MaxHold {
		return domain.ExitSignal{Token: pos.Token, Reason: domain.ExitMaxHoldExceeded, PnlPercent: pnlPercent}, true
	}

	return domain.ExitSignal{}, false
}

// Describe renders the signal for decision reasoning and audit logs.
func Describe(sig domain.ExitSignal) string {
	return fmt.Sprintf("%s at pnl %s%%", sig.Reason, sig.PnlPercent.StringFixed(2))
}
