package domain

import "github.com/shopspring/decimal"

// ArbitrageOpportunity is an ephemeral cross-venue spread, recomputed on every
// check and never persisted.
type ArbitrageOpportunity struct {
	Token               string
	BuyVenue            string
	SellVenue           string
	BuyPriceUsd         decimal.Decimal
	SellPriceUsd        decimal.Decimal
	GrossSpreadPercent  decimal.Decimal
	EstimatedGasCostUsd decimal.Decimal
	NetProfitUsd        decimal.Decimal
	Confidence          float64
}
