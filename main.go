package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/adshao/go-binance/v2"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
	"github.com/hirokisan/bybit/v2"
	"github.com/joho/godotenv"
	"github.com/olekukonko/tablewriter"
	"github.com/shopspring/decimal"
	hyperliquid "github.com/sonirico/go-hyperliquid"
	"github.com/vadiminshakov/papertrader/config"
	"github.com/vadiminshakov/papertrader/internal/domain"
	"github.com/vadiminshakov/papertrader/internal/notify"
	"github.com/vadiminshakov/papertrader/internal/services/analyzer"
	"github.com/vadiminshakov/papertrader/internal/services/arbitrage"
	"github.com/vadiminshakov/papertrader/internal/services/backtest"
	"github.com/vadiminshakov/papertrader/internal/services/breaker"
	"github.com/vadiminshakov/papertrader/internal/services/decision"
	"github.com/vadiminshakov/papertrader/internal/services/engine"
	"github.com/vadiminshakov/papertrader/internal/services/execution"
	"github.com/vadiminshakov/papertrader/internal/services/exits"
	"github.com/vadiminshakov/papertrader/internal/services/guard"
	"github.com/vadiminshakov/papertrader/internal/services/marketdata"
	"github.com/vadiminshakov/papertrader/internal/services/portfolio"
	"github.com/vadiminshakov/papertrader/internal/services/strategy"
	"github.com/vadiminshakov/papertrader/internal/setup"
	storagedecisions "github.com/vadiminshakov/papertrader/internal/storage/decisions"
	storageportfolio "github.com/vadiminshakov/papertrader/internal/storage/portfolio"
	"go.uber.org/zap"
)

const (
	binanceRPS      = 5
	analyzeWorkers  = 8
	analyzeTimeout  = 3 * time.Second
	notifyBufferLen = 128
)

func main() {
	_ = godotenv.Load()

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "setup":
			if err := setup.RunTUI(); err != nil {
				logger.Fatal("setup wizard failed", zap.Error(err))
			}
			os.Args = append(os.Args[:1], "--config", "config.gen.yaml")
		case "backtest":
			if err := runBacktest(os.Args[2:], logger); err != nil {
				logger.Fatal("backtest failed", zap.Error(err))
			}
			return
		}
	}

	configs, err := config.Get()
	if err != nil {
		logger.Fatal("failed to get configuration", zap.Error(err))
	}

	if err := run(configs, logger); err != nil {
		logger.Fatal("engine stopped", zap.Error(err))
	}
}

func run(configs []config.Config, logger *zap.Logger) error {
	binanceClient := binance.NewClient(os.Getenv("BINANCE_APIKEY"), os.Getenv("BINANCE_SECRETKEY"))
	market := marketdata.NewBinanceProvider(binanceClient, binanceRPS, logger)

	venues := []marketdata.VenuePricer{
		marketdata.NewBinanceVenue(binanceClient),
		marketdata.NewBybitVenue(bybit.NewClient().WithAuth(os.Getenv("BYBIT_APIKEY"), os.Getenv("BYBIT_SECRETKEY"))),
	}
	if hlVenue := hyperliquidVenue(logger); hlVenue != nil {
		venues = append(venues, hlVenue)
	}

	// shared pipeline parameters come from the first account
	base := configs[0]

	analyzerCfg := analyzer.DefaultConfig()
	analyzerCfg.TradeSizeUsd = base.StartingCashUsd.Mul(decimal.NewFromFloat(0.1))
	analyzerCfg.GasPriceGwei = base.GasPriceGwei.InexactFloat64()

	detector := arbitrage.NewDetector(arbitrage.Config{
		MinProfitUsd: base.ArbMinProfitUsd,
		GasPriceGwei: base.GasPriceGwei,
		EthPriceUsd:  base.EthPriceUsd,
	}, logger)

	executor, err := execution.NewExecutor(base.SlippageBps, base.FeeBps, uuid.NewString, logger)
	if err != nil {
		return err
	}

	notifier := notify.NewBroadcaster(notifyBufferLen)

	eng, err := engine.New(engine.Config{
		Composite: analyzer.NewComposite(analyzerCfg, analyzeWorkers, analyzeTimeout, logger),
		Selector:  strategy.NewSelector(strategy.DefaultThresholds()),
		Detector:  detector,
		Executor:  executor,
		Market:    market,
		Venues:    venues,
		Notifier:  notifier,
		Interval:  base.TickInterval,
		Logger:    logger,
	})
	if err != nil {
		return err
	}

	for _, cfg := range configs {
		acct, err := buildAccount(cfg, logger)
		if err != nil {
			return fmt.Errorf("build account %s: %w", cfg.AccountID, err)
		}
		if err := eng.AddAccount(acct); err != nil {
			return err
		}
		logger.Info("account registered",
			zap.String("account", cfg.AccountID),
			zap.Strings("watchlist", cfg.Watchlist),
			zap.Int("intel_level", cfg.IntelLevel))
	}

	go logEvents(notifier, logger)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	logger.Info("paper trading engine started", zap.Duration("tick", base.TickInterval))
	err = eng.Run(ctx)
	if err == context.Canceled {
		logger.Info("shutdown requested")
		return nil
	}
	return err
}

func buildAccount(cfg config.Config, logger *zap.Logger) (*engine.Account, error) {
	g := guard.New(logger)

	audit, err := storagedecisions.NewWALStore(cfg.DecisionWALDir)
	if err != nil {
		return nil, err
	}

	snapshots, err := storageportfolio.NewStore(cfg.PortfolioStateDir)
	if err != nil {
		return nil, err
	}

	manager, err := portfolio.NewManager(cfg.AccountID, cfg.StartingCashUsd, cfg.MaxTokenPercent, g, snapshots, logger)
	if err != nil {
		return nil, err
	}

	if snap, err := snapshots.Load(cfg.AccountID); err != nil {
		logger.Warn("portfolio snapshot unreadable, starting fresh",
			zap.String("account", cfg.AccountID),
			zap.Error(err))
	} else if snap != nil {
		if err := manager.Restore(snap.CashUsd, snap.Positions); err != nil {
			return nil, fmt.Errorf("restore portfolio: %w", err)
		}
		logger.Info("portfolio restored from snapshot",
			zap.String("account", cfg.AccountID),
			zap.String("cash_usd", snap.CashUsd.StringFixed(2)))
	}

	evaluator, err := exits.NewEvaluator(exits.Rules{
		StopLossPercent:   cfg.StopLossPercent,
		TakeProfitPercent: cfg.TakeProfitPercent,
		MaxHold:           cfg.MaxHold,
	})
	if err != nil {
		return nil, err
	}

	decisionEngine, err := decision.NewEngine(cfg.IntelLevel, cfg.MaxTokenPercent, evaluator, audit, logger)
	if err != nil {
		return nil, err
	}

	return &engine.Account{
		ID:        cfg.AccountID,
		Watchlist: cfg.Watchlist,
		Portfolio: manager,
		Decision:  decisionEngine,
		Breaker:   breaker.New(cfg.AccountID, cfg.BreakerFailureThreshold, cfg.BreakerResetWindow, logger),
		History:   domain.NewHistory(),
	}, nil
}

// hyperliquidVenue builds the Hyperliquid pricer when a key is configured.
// The SDK needs a signing key even for the public Info API.
func hyperliquidVenue(logger *zap.Logger) marketdata.VenuePricer {
	keyHex := os.Getenv("HYPERLIQUID_PRIVATE_KEY")
	if keyHex == "" {
		return nil
	}
	if len(keyHex) >= 2 && (keyHex[:2] == "0x" || keyHex[:2] == "0X") {
		keyHex = keyHex[2:]
	}

	privateKey, err := crypto.HexToECDSA(keyHex)
	if err != nil {
		logger.Warn("invalid hyperliquid key, venue disabled", zap.Error(err))
		return nil
	}

	addr := crypto.PubkeyToAddress(privateKey.PublicKey).Hex()
	ex := hyperliquid.NewExchange(context.Background(), privateKey, "https://api.hyperliquid.xyz", nil, "", addr, nil)
	return marketdata.NewHyperliquidVenue(ex.Info())
}

func logEvents(notifier *notify.Broadcaster, logger *zap.Logger) {
	events := notifier.Subscribe()
	for event := range events {
		switch event.Type {
		case notify.EventTrade, notify.EventPositionClosed, notify.EventCircuitOpen:
			logger.Info("event",
				zap.String("type", string(event.Type)),
				zap.String("account", event.AccountID),
				zap.String("token", event.Token),
				zap.String("detail", event.Detail))
		}
	}
}

func runBacktest(args []string, logger *zap.Logger) error {
	fs := flag.NewFlagSet("backtest", flag.ExitOnError)
	token := fs.String("token", "ETH", "token to replay")
	intel := fs.Int("intel", 5, "intelligence level 1-10")
	cash := fs.String("cash", "10000", "starting cash in USD")
	liquidity := fs.String("liquidity", "5000000", "assumed pool liquidity in USD")
	stopLoss := fs.String("stoploss", "5", "stop-loss percent")
	takeProfit := fs.String("takeprofit", "10", "take-profit percent")
	maxHold := fs.Duration("maxhold", 72*time.Hour, "max hold duration")
	interval := fs.String("interval", "1h", "bar interval")
	days := fs.Int("days", 30, "days of history to replay")
	if err := fs.Parse(args); err != nil {
		return err
	}

	startingCash, err := decimal.NewFromString(*cash)
	if err != nil {
		return fmt.Errorf("invalid -cash: %w", err)
	}
	liquidityUsd, err := decimal.NewFromString(*liquidity)
	if err != nil {
		return fmt.Errorf("invalid -liquidity: %w", err)
	}
	stopLossPct, err := decimal.NewFromString(*stopLoss)
	if err != nil {
		return fmt.Errorf("invalid -stoploss: %w", err)
	}
	takeProfitPct, err := decimal.NewFromString(*takeProfit)
	if err != nil {
		return fmt.Errorf("invalid -takeprofit: %w", err)
	}

	binanceClient := binance.NewClient(os.Getenv("BINANCE_APIKEY"), os.Getenv("BINANCE_SECRETKEY"))
	provider := marketdata.NewBinanceProvider(binanceClient, binanceRPS, logger)

	simulator, err := backtest.NewSimulator(provider, logger)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	result, err := simulator.Run(context.Background(), domain.BacktestParams{
		Token:             *token,
		IntelLevel:        *intel,
		StartingCashUsd:   startingCash,
		LiquidityUsd:      liquidityUsd,
		StopLossPercent:   stopLossPct,
		TakeProfitPercent: takeProfitPct,
		MaxHold:           *maxHold,
		Interval:          *interval,
		From:              now.AddDate(0, 0, -*days),
		To:                now,
	})
	if err != nil {
		return err
	}

	printBacktestResult(result)
	return nil
}

func printBacktestResult(result *domain.BacktestResult) {
	fmt.Printf("\nBacktest %s, intel level %d, %d bars\n\n",
		result.Params.Token, result.Params.IntelLevel, result.Bars)

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Metric", "Value")
	table.Append("Final balance", "$"+result.FinalBalanceUsd.StringFixed(2))
	table.Append("Total return", result.TotalReturnPercent.StringFixed(2)+"%")
	table.Append("Trades", fmt.Sprintf("%d", len(result.Trades)))
	table.Append("Win rate", fmt.Sprintf("%.1f%%", result.WinRate*100))
	table.Append("Max drawdown", result.MaxDrawdownPercent.StringFixed(2)+"%")
	table.Append("Sharpe ratio", fmt.Sprintf("%.2f", result.SharpeRatio))
	table.Append("Avg trade PnL", "$"+result.AverageTradePnlUsd.StringFixed(2))
	table.Render()

	if len(result.Trades) == 0 {
		return
	}

	fmt.Println()
	trades := tablewriter.NewWriter(os.Stdout)
	trades.Header("Time", "Action", "Qty", "Price", "Value", "Exit reason")
	for _, trade := range result.Trades {
		trades.Append(
			trade.ExecutedAt.Format("2006-01-02 15:04"),
			trade.Action.String(),
			trade.Quantity.StringFixed(6),
			"$"+trade.PriceUsd.StringFixed(2),
			"$"+trade.ValueUsd.StringFixed(2),
			string(trade.ExitReason),
		)
	}
	trades.Render()
}
