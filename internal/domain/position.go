package domain

import (
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// Position tracks holdings of one token for one account. It is owned exclusively
// by the portfolio manager and mutated only through its methods. Closed positions
// are retained with Open=false, never deleted.
type Position struct {
	Token            string          `json:"token"`
	Quantity         decimal.Decimal `json:"quantity"`
	AvgEntryPriceUsd decimal.Decimal `json:"avg_entry_price_usd"`
	CurrentPriceUsd  decimal.Decimal `json:"current_price_usd"`
	InvestedUsd      decimal.Decimal `json:"invested_usd"`
	RealizedPnl      decimal.Decimal `json:"realized_pnl"`
	UnrealizedPnl    decimal.Decimal `json:"unrealized_pnl"`
	OpenedAt         time.Time       `json:"opened_at"`
	ClosedAt         time.Time       `json:"closed_at,omitzero"`
	Open             bool            `json:"open"`
	CloseReason      ExitReason      `json:"close_reason,omitempty"`
}

// NewPosition opens a position with the given fill.
func NewPosition(token string, quantity, priceUsd decimal.Decimal, openedAt time.Time) (*Position, error) {
	if quantity.LessThanOrEqual(decimal.Zero) {
		return nil, errors.New("position quantity must be greater than zero")
	}
	if priceUsd.LessThanOrEqual(decimal.Zero) {
		return nil, errors.New("entry price must be greater than zero")
	}

	return &Position{
		Token:            token,
		Quantity:         quantity,
		AvgEntryPriceUsd: priceUsd,
		CurrentPriceUsd:  priceUsd,
		InvestedUsd:      quantity.Mul(priceUsd),
		OpenedAt:         openedAt,
		Open:             true,
	}, nil
}

// AddFill merges another buy into the position, updating the volume-weighted
// average entry price. Re-buying an open token never creates a second position.
func (p *Position) AddFill(quantity, priceUsd decimal.Decimal) error {
	if !p.Open {
		return errors.New("cannot add fill to a closed position")
	}
	if quantity.LessThanOrEqual(decimal.Zero) || priceUsd.LessThanOrEqual(decimal.Zero) {
		return errors.New("fill quantity and price must be greater than zero")
	}

	totalQty := p.Quantity.Add(quantity)
	existingNotional := p.AvgEntryPriceUsd.Mul(p.Quantity)
	addedNotional := quantity.Mul(priceUsd)

	p.AvgEntryPriceUsd = existingNotional.Add(addedNotional).Div(totalQty)
	p.Quantity = totalQty
	p.InvestedUsd = p.InvestedUsd.Add(addedNotional)
	p.CurrentPriceUsd = priceUsd

	return nil
}

// Reduce sells part of the position, realizing PnL on the sold quantity.
// Returns the quote proceeds of the sale.
func (p *Position) Reduce(quantity, priceUsd decimal.Decimal) (decimal.Decimal, error) {
	if !p.Open {
		return decimal.Zero, errors.New("cannot reduce a closed position")
	}
	if quantity.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero, errors.New("reduce quantity must be greater than zero")
	}
	if quantity.GreaterThan(p.Quantity) {
		quantity = p.Quantity
	}

	proceeds := quantity.Mul(priceUsd)
	realized := priceUsd.Sub(p.AvgEntryPriceUsd).Mul(quantity)

	released := p.AvgEntryPriceUsd.Mul(quantity)
	p.InvestedUsd = p.InvestedUsd.Sub(released)
	if p.InvestedUsd.LessThan(decimal.Zero) {
		p.InvestedUsd = decimal.Zero
	}

	p.Quantity = p.Quantity.Sub(quantity)
	p.RealizedPnl = p.RealizedPnl.Add(realized)
	p.CurrentPriceUsd = priceUsd

	return proceeds, nil
}

// MarkClosed flips the open flag once quantity reaches zero.
func (p *Position) MarkClosed(reason ExitReason, closedAt time.Time) {
	p.Open = false
	p.CloseReason = reason
	p.ClosedAt = closedAt
	p.UnrealizedPnl = decimal.Zero
}

// MarkPrice updates the tracked market price and unrealized PnL.
func (p *Position) MarkPrice(priceUsd decimal.Decimal) {
	if !p.Open || priceUsd.LessThanOrEqual(decimal.Zero) {
		return
	}
	p.CurrentPriceUsd = priceUsd
	p.UnrealizedPnl = priceUsd.Sub(p.AvgEntryPriceUsd).Mul(p.Quantity)
}

// PnlPercent returns (current-entry)/entry*100 for the given market price.
func (p *Position) PnlPercent(priceUsd decimal.Decimal) decimal.Decimal {
	if p == nil || p.AvgEntryPriceUsd.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero
	}
	return priceUsd.Sub(p.AvgEntryPriceUsd).
		Div(p.AvgEntryPriceUsd).
		Mul(decimal.NewFromInt(100))
}

// HoldDuration returns how long the position has been open.
func (p *Position) HoldDuration(now time.Time) time.Duration {
	if p == nil {
		return 0
	}
	return now.Sub(p.OpenedAt)
}
