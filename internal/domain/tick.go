package domain

// TickResult summarizes one engine tick for an account.
type TickResult struct {
	AccountID       string
	Decisions       []TradingDecision
	Trades          []ExecutedTrade
	ClosedPositions []*Position
	Errors          []error
}
