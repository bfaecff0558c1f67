package domain

import "github.com/shopspring/decimal"

// PortfolioState is a per-tick view of one account's holdings. It is recomputed
// from the authoritative position set; callers must not mutate it.
type PortfolioState struct {
	AccountID   string
	CashUsd     decimal.Decimal
	Positions   []*Position // open positions only
	TotalValue  decimal.Decimal
	RealizedPnl decimal.Decimal
}

// OpenPosition returns the open position for the token, if any.
func (s PortfolioState) OpenPosition(token string) (*Position, bool) {
	for _, p := range s.Positions {
		if p.Token == token && p.Open {
			return p, true
		}
	}
	return nil, false
}

// Concentration returns investedInToken/totalValue as a percentage.
func (s PortfolioState) Concentration(token string) decimal.Decimal {
	if s.TotalValue.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero
	}
	pos, ok := s.OpenPosition(token)
	if !ok {
		return decimal.Zero
	}
	return pos.InvestedUsd.Div(s.TotalValue).Mul(decimal.NewFromInt(100))
}
