package marketdata

import (
	"context"
	"fmt"
	"strings"

	"github.com/adshao/go-binance/v2"
	"github.com/hirokisan/bybit/v2"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	hyperliquid "github.com/sonirico/go-hyperliquid"
)

// BinanceVenue reports Binance spot last prices for the arbitrage scan.
type BinanceVenue struct {
	client *binance.Client
}

// NewBinanceVenue creates a Binance venue pricer.
func NewBinanceVenue(client *binance.Client) *BinanceVenue {
	return &BinanceVenue{client: client}
}

func (v *BinanceVenue) Name() string { return "binance" }

func (v *BinanceVenue) Price(ctx context.Context, token string) (decimal.Decimal, error) {
	symbol := pairSymbol(token)
	prices, err := v.client.NewListPricesService().Symbol(symbol).Do(ctx)
	if err != nil {
		return decimal.Zero, errors.Wrapf(err, "binance price for %s", symbol)
	}
	if len(prices) == 0 {
		return decimal.Zero, fmt.Errorf("binance returned no price for %s", symbol)
	}
	return decimal.NewFromString(prices[0].Price)
}

// BybitVenue reports Bybit spot last prices.
type BybitVenue struct {
	client *bybit.Client
}

// NewBybitVenue creates a Bybit venue pricer.
func NewBybitVenue(client *bybit.Client) *BybitVenue {
	return &BybitVenue{client: client}
}

func (v *BybitVenue) Name() string { return "bybit" }

func (v *BybitVenue) Price(ctx context.Context, token string) (decimal.Decimal, error) {
	symbol := bybit.SymbolV5(pairSymbol(token))

	result, err := v.client.V5().Market().GetTickers(bybit.V5GetTickersParam{
		Category: bybit.CategoryV5Spot,
		Symbol:   &symbol,
	})
	if err != nil {
		return decimal.Zero, errors.Wrapf(err, "bybit price for %s", symbol)
	}
	if len(result.Result.Spot.List) == 0 {
		return decimal.Zero, fmt.Errorf("bybit returned no price for %s", symbol)
	}
	return decimal.NewFromString(result.Result.Spot.List[0].LastPrice)
}

// HyperliquidVenue reports Hyperliquid mid prices from the public Info API.
type HyperliquidVenue struct {
	info *hyperliquid.Info
}

// NewHyperliquidVenue creates a Hyperliquid venue pricer.
func NewHyperliquidVenue(info *hyperliquid.Info) *HyperliquidVenue {
	return &HyperliquidVenue{info: info}
}

func (v *HyperliquidVenue) Name() string { return "hyperliquid" }

func (v *HyperliquidVenue) Price(ctx context.Context, token string) (decimal.Decimal, error) {
	if v.info == nil {
		return decimal.Zero, errors.New("hyperliquid info client is nil")
	}

	mids, err := v.info.AllMids(ctx)
	if err != nil {
		return decimal.Zero, errors.Wrap(err, "hyperliquid mids")
	}

	// mids are keyed by base coin, e.g. "ETH"
	mid, ok := mids[strings.ToUpper(token)]
	if !ok || mid == "" {
		return decimal.Zero, fmt.Errorf("hyperliquid returned no mid for %s", token)
	}
	return decimal.NewFromString(mid)
}

// VenuePrices collects prices from all pricers. A failing venue is skipped,
// not fatal: the arbitrage scan needs at least two healthy venues anyway.
func VenuePrices(ctx context.Context, token string, pricers []VenuePricer) map[string]decimal.Decimal {
	prices := make(map[string]decimal.Decimal, len(pricers))
	for _, pricer := range pricers {
		price, err := pricer.Price(ctx, token)
		if err != nil || price.LessThanOrEqual(decimal.Zero) {
			continue
		}
		prices[pricer.Name()] = price
	}
	return prices
}
