package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Bar is a single OHLCV candlestick.
type Bar struct {
	OpenTime  time.Time
	Open      decimal.Decimal
	High      decimal.Decimal
	Low       decimal.Decimal
	Close     decimal.Decimal
	Volume    decimal.Decimal
	CloseTime time.Time
}

// Range returns (high-low)/low*100, the intrabar swing in percent.
func (b Bar) Range() decimal.Decimal {
	if b.Low.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero
	}
	return b.High.Sub(b.Low).Div(b.Low).Mul(decimal.NewFromInt(100))
}
