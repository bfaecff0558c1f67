package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Action represents the type of trading action decided for a token.
type Action int

const (
	ActionBuy Action = iota
	ActionSell
	ActionHold
	ActionSkip
)

// action string constants to avoid magic strings
const (
	actionStringBuy  = "buy"
	actionStringSell = "sell"
	actionStringHold = "hold"
	actionStringSkip = "skip"
)

// String returns the string representation of the action.
func (a Action) String() string {
	switch a {
	case ActionBuy:
		return actionStringBuy
	case ActionSell:
		return actionStringSell
	case ActionHold:
		return actionStringHold
	case ActionSkip:
		return actionStringSkip
	default:
		return "unknown"
	}
}

// TradingDecision is an immutable audit record of one decision, emitted whether
// or not the trade was executed.
type TradingDecision struct {
	ID               string          `json:"id"`
	Token            string          `json:"token"`
	Action           Action          `json:"action"`
	Confidence       float64         `json:"confidence_percent"`
	RiskScore        float64         `json:"risk_score"`
	OpportunityScore float64         `json:"opportunity_score"`
	Reasoning        string          `json:"reasoning"`
	Strategy         StrategyType    `json:"strategy"`
	SizingPercent    decimal.Decimal `json:"sizing_percent"`
	ExitReason       ExitReason      `json:"exit_reason,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
}

// IsActionable reports whether the decision results in a trade attempt.
func (d TradingDecision) IsActionable() bool {
	return d.Action == ActionBuy || d.Action == ActionSell
}
