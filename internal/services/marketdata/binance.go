package marketdata

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/adshao/go-binance/v2"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/papertrader/internal/domain"
	"github.com/vadiminshakov/papertrader/pkg/retrier"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	binanceQuoteAsset = "USDT"
	depthLevels       = 100

	// trend classification threshold on the 24h change percent
	trendChangePercent = 1.0
)

// BinanceProvider builds market context snapshots from Binance spot data:
// 24h ticker stats for price/volume/trend and order book depth for liquidity.
type BinanceProvider struct {
	client  *binance.Client
	limiter *rate.Limiter
	retry   *retrier.Retrier
	logger  *zap.Logger
}

// NewBinanceProvider creates a Binance-backed market data provider.
func NewBinanceProvider(client *binance.Client, rps float64, logger *zap.Logger) *BinanceProvider {
	if rps <= 0 {
		rps = 5
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BinanceProvider{
		client:  client,
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
		retry:   retrier.New(retrier.WithMaxRetries(3), retrier.WithInitialInterval(500*time.Millisecond)),
		logger:  logger,
	}
}

// Context fetches a fresh market context snapshot for the token.
func (p *BinanceProvider) Context(ctx context.Context, token string) (domain.MarketContext, error) {
	symbol := pairSymbol(token)

	stats, err := retrier.DoWithData(p.retry, ctx, func(ctx context.Context) (*binance.PriceChangeStats, error) {
		if err := p.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		list, err := p.client.NewListPriceChangeStatsService().Symbol(symbol).Do(ctx)
		if err != nil {
			return nil, err
		}
		if len(list) == 0 {
			return nil, fmt.Errorf("binance returned no 24h stats for %s", symbol)
		}
		return list[0], nil
	})
	if err != nil {
		return domain.MarketContext{}, errors.Wrapf(err, "fetch 24h stats for %s", symbol)
	}

	price, err := decimal.NewFromString(stats.LastPrice)
	if err != nil {
		return domain.MarketContext{}, errors.Wrap(err, "parse last price")
	}
	volume, err := decimal.NewFromString(stats.QuoteVolume)
	if err != nil {
		return domain.MarketContext{}, errors.Wrap(err, "parse quote volume")
	}

	liquidity, err := p.bookLiquidity(ctx, symbol)
	if err != nil {
		// degraded liquidity is reported as zero and scored accordingly downstream
		p.logger.Warn("order book depth unavailable",
			zap.String("symbol", symbol),
			zap.Error(err))
		liquidity = decimal.Zero
	}

	return domain.MarketContext{
		Token:           token,
		PriceUsd:        price,
		Volume24hUsd:    volume,
		LiquidityUsd:    liquidity,
		VolatilityIndex: volatilityIndex(stats.HighPrice, stats.LowPrice),
		Trend:           classifyTrend(stats.PriceChangePercent),
		Timestamp:       time.Now().UTC(),
	}, nil
}

// Bars fetches historical klines for backtesting.
func (p *BinanceProvider) Bars(ctx context.Context, token, interval string, from, to time.Time) ([]domain.Bar, error) {
	symbol := pairSymbol(token)

	klines, err := retrier.DoWithData(p.retry, ctx, func(ctx context.Context) ([]*binance.Kline, error) {
		if err := p.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		return p.client.NewKlinesService().
			Symbol(symbol).
			Interval(interval).
			StartTime(from.UnixMilli()).
			EndTime(to.UnixMilli()).
			Limit(1000).
			Do(ctx)
	})
	if err != nil {
		return nil, errors.Wrapf(err, "fetch klines for %s", symbol)
	}

	bars := make([]domain.Bar, 0, len(klines))
	for _, k := range klines {
		bar, err := barFromKline(k)
		if err != nil {
			return nil, errors.Wrap(err, "decode kline")
		}
		bars = append(bars, bar)
	}
	return bars, nil
}

// bookLiquidity sums bid and ask notional over the top depth levels.
func (p *BinanceProvider) bookLiquidity(ctx context.Context, symbol string) (decimal.Decimal, error) {
	depth, err := retrier.DoWithData(p.retry, ctx, func(ctx context.Context) (*binance.DepthResponse, error) {
		if err := p.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		return p.client.NewDepthService().Symbol(symbol).Limit(depthLevels).Do(ctx)
	})
	if err != nil {
		return decimal.Zero, err
	}

	total := decimal.Zero
	for _, bid := range depth.Bids {
		notional, err := levelNotional(bid.Price, bid.Quantity)
		if err != nil {
			return decimal.Zero, err
		}
		total = total.Add(notional)
	}
	for _, ask := range depth.Asks {
		notional, err := levelNotional(ask.Price, ask.Quantity)
		if err != nil {
			return decimal.Zero, err
		}
		total = total.Add(notional)
	}
	return total, nil
}

func levelNotional(priceStr, qtyStr string) (decimal.Decimal, error) {
	price, err := decimal.NewFromString(priceStr)
	if err != nil {
		return decimal.Zero, errors.Wrap(err, "parse depth price")
	}
	qty, err := decimal.NewFromString(qtyStr)
	if err != nil {
		return decimal.Zero, errors.Wrap(err, "parse depth quantity")
	}
	return price.Mul(qty), nil
}

func barFromKline(k *binance.Kline) (domain.Bar, error) {
	open, err := decimal.NewFromString(k.Open)
	if err != nil {
		return domain.Bar{}, err
	}
	high, err := decimal.NewFromString(k.High)
	if err != nil {
		return domain.Bar{}, err
	}
	low, err := decimal.NewFromString(k.Low)
	if err != nil {
		return domain.Bar{}, err
	}
	closePrice, err := decimal.NewFromString(k.Close)
	if err != nil {
		return domain.Bar{}, err
	}
	volume, err := decimal.NewFromString(k.Volume)
	if err != nil {
		return domain.Bar{}, err
	}
	return domain.Bar{
		OpenTime:  time.UnixMilli(k.OpenTime).UTC(),
		CloseTime: time.UnixMilli(k.CloseTime).UTC(),
		Open:      open,
		High:      high,
		Low:       low,
		Close:     closePrice,
		Volume:    volume,
	}, nil
}

// volatilityIndex maps the 24h high/low range onto a 0-100 scale.
func volatilityIndex(highStr, lowStr string) float64 {
	high, err1 := decimal.NewFromString(highStr)
	low, err2 := decimal.NewFromString(lowStr)
	if err1 != nil || err2 != nil || low.LessThanOrEqual(decimal.Zero) {
		return 0
	}
	rangePct, _ := high.Sub(low).Div(low).Mul(decimal.NewFromInt(100)).Float64()
	if rangePct < 0 {
		return 0
	}
	if rangePct > 100 {
		return 100
	}
	return rangePct
}

func classifyTrend(changePercentStr string) domain.TrendDirection {
	change, err := decimal.NewFromString(changePercentStr)
	if err != nil {
		return domain.TrendSideways
	}
	switch {
	case change.GreaterThanOrEqual(decimal.NewFromFloat(trendChangePercent)):
		return domain.TrendUp
	case change.LessThanOrEqual(decimal.NewFromFloat(-trendChangePercent)):
		return domain.TrendDown
	default:
		return domain.TrendSideways
	}
}

func pairSymbol(token string) string {
	return strings.ToUpper(token) + binanceQuoteAsset
}
