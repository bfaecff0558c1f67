// Package arbitrage compares one token's price across venues and flags spreads
// that survive gas and slippage. It runs only after a BUY decision, never as a
// primary trigger.
package arbitrage

import (
	"sort"

	"github.com/ethereum/go-ethereum/params"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/papertrader/internal/domain"
	"go.uber.org/zap"
)

const (
	// gas units for one swap on a typical AMM router
	swapGasUnits = 180_000

	defaultConfidenceFloor = 0.6
	defaultSlippageBps     = 30
)

// Config tunes the detector.
type Config struct {
	MinProfitUsd    decimal.Decimal
	GasPriceGwei    decimal.Decimal
	EthPriceUsd     decimal.Decimal
	SlippageBps     int64
	ConfidenceFloor float64
}

// Detector scans venue price maps for bounded-risk spreads.
type Detector struct {
	cfg    Config
	logger *zap.Logger
}

// NewDetector creates an arbitrage detector.
func NewDetector(cfg Config, logger *zap.Logger) *Detector {
	if cfg.SlippageBps <= 0 {
		cfg.SlippageBps = defaultSlippageBps
	}
	if cfg.ConfidenceFloor <= 0 {
		cfg.ConfidenceFloor = defaultConfidenceFloor
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Detector{cfg: cfg, logger: logger}
}

// Find looks for the widest viable spread for the token over the venue prices.
// It returns false when fewer than two venues report, the data confidence is
// under the floor, or no pair clears the minimum net profit.
func (d *Detector) Find(token string, prices map[string]decimal.Decimal, tradeSizeUsd decimal.Decimal, confidence float64) (*domain.ArbitrageOpportunity, bool) {
	if len(prices) < 2 || tradeSizeUsd.LessThanOrEqual(decimal.Zero) {
		return nil, false
	}
	if confidence < d.cfg.ConfidenceFloor {
		d.logger.Debug("cross-venue confidence under floor, skipping arbitrage",
			zap.String("token", token),
			zap.Float64("confidence", confidence))
		return nil, false
	}

	// venue iteration order must not affect which pair wins
	venues := make([]string, 0, len(prices))
	for venue, price := range prices {
		if price.GreaterThan(decimal.Zero) {
			venues = append(venues, venue)
		}
	}
	if len(venues) < 2 {
		return nil, false
	}
	sort.Strings(venues)

	gasCost := d.gasCostUsd().Mul(decimal.NewFromInt(2)) // buy leg + sell leg
	slippage := tradeSizeUsd.Mul(decimal.NewFromInt(d.cfg.SlippageBps)).Div(decimal.NewFromInt(10_000))

	var best *domain.ArbitrageOpportunity
	for _, buyVenue := range venues {
		for _, sellVenue := range venues {
			if buyVenue == sellVenue {
				continue
			}
			buyPrice := prices[buyVenue]
			sellPrice := prices[sellVenue]
			if sellPrice.LessThanOrEqual(buyPrice) {
				continue
			}

			spread := sellPrice.Sub(buyPrice).Div(buyPrice).Mul(decimal.NewFromInt(100))
			gross := tradeSizeUsd.Mul(spread).Div(decimal.NewFromInt(100))
			net := gross.Sub(gasCost).Sub(slippage)

			if best == nil || net.GreaterThan(best.NetProfitUsd) {
				best = &domain.ArbitrageOpportunity{
					Token:               token,
					BuyVenue:            buyVenue,
					SellVenue:           sellVenue,
					BuyPriceUsd:         buyPrice,
					SellPriceUsd:        sellPrice,
					GrossSpreadPercent:  spread,
					EstimatedGasCostUsd: gasCost,
					NetProfitUsd:        net,
					Confidence:          confidence,
				}
			}
		}
	}

	if best == nil || best.NetProfitUsd.LessThanOrEqual(d.cfg.MinProfitUsd) {
		return nil, false
	}

	d.logger.Info("arbitrage opportunity",
		zap.String("token", token),
		zap.String("buy_venue", best.BuyVenue),
		zap.String("sell_venue", best.SellVenue),
		zap.String("net_profit_usd", best.NetProfitUsd.String()))
	return best, true
}

// gasCostUsd converts the configured gwei gas price into USD for one swap.
func (d *Detector) gasCostUsd() decimal.Decimal {
	if d.cfg.GasPriceGwei.LessThanOrEqual(decimal.Zero) || d.cfg.EthPriceUsd.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero
	}
	gasWei := d.cfg.GasPriceGwei.
		Mul(decimal.NewFromInt(params.GWei)).
		Mul(decimal.NewFromInt(swapGasUnits))
	return gasWei.Mul(d.cfg.EthPriceUsd).Div(decimal.NewFromInt(params.Ether))
}
