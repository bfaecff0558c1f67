// Package config loads per-account trading configuration from a YAML file or,
// for a single account, from command-line flags.
package config

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Config is one account's runtime configuration.
type Config struct {
	AccountID         string
	Watchlist         []string
	IntelLevel        int
	StartingCashUsd   decimal.Decimal
	MaxTokenPercent   decimal.Decimal
	StopLossPercent   decimal.Decimal
	TakeProfitPercent decimal.Decimal
	MaxHold           time.Duration
	TickInterval      time.Duration
	SlippageBps       int64
	FeeBps            int64

	BreakerFailureThreshold int
	BreakerResetWindow      time.Duration

	ArbMinProfitUsd decimal.Decimal
	GasPriceGwei    decimal.Decimal
	EthPriceUsd     decimal.Decimal

	DecisionWALDir    string
	PortfolioStateDir string
}

type ConfigTmp struct {
	AccountID         string        `yaml:"account_id"`
	Watchlist         []string      `yaml:"watchlist"`
	IntelLevel        int           `yaml:"intel_level"`
	StartingCashUsd   string        `yaml:"starting_cash_usd"`
	MaxTokenPercent   string        `yaml:"max_token_percent,omitempty"`
	StopLossPercent   string        `yaml:"stop_loss_percent,omitempty"`
	TakeProfitPercent string        `yaml:"take_profit_percent,omitempty"`
	MaxHold           time.Duration `yaml:"max_hold,omitempty"`
	TickInterval      time.Duration `yaml:"tick_interval,omitempty"`
	SlippageBps       int64         `yaml:"slippage_bps,omitempty"`
	FeeBps            int64         `yaml:"fee_bps,omitempty"`

	BreakerFailureThreshold int           `yaml:"breaker_failure_threshold,omitempty"`
	BreakerResetWindow      time.Duration `yaml:"breaker_reset_window,omitempty"`

	ArbMinProfitUsd string `yaml:"arb_min_profit_usd,omitempty"`
	GasPriceGwei    string `yaml:"gas_price_gwei,omitempty"`
	EthPriceUsd     string `yaml:"eth_price_usd,omitempty"`

	DecisionWALDir    string `yaml:"decision_wal_dir,omitempty"`
	PortfolioStateDir string `yaml:"portfolio_state_dir,omitempty"`
}

// Get loads configuration: --config points at a YAML accounts file, otherwise
// the remaining flags describe a single account.
func Get() ([]Config, error) {
	configPath := flag.String("config", "", "path to yaml config")
	accountID := flag.String("account", "paper-1", "account identifier")
	watchlist := flag.String("watchlist", "ETH,BTC", "comma-separated tokens to trade")
	intelLevel := flag.Int("intel", 5, "intelligence level 1-10, higher tolerates more risk")
	startingCash := flag.String("cash", "10000", "starting cash in USD")
	tickInterval := flag.Duration("tick", time.Minute, "tick interval")
	flag.Parse()

	if *configPath != "" {
		return getYaml(*configPath)
	}

	cash, err := decimal.NewFromString(*startingCash)
	if err != nil {
		return nil, fmt.Errorf("invalid --cash=%s: %w", *startingCash, err)
	}

	cfg := Config{
		AccountID:       *accountID,
		Watchlist:       splitTokens(*watchlist),
		IntelLevel:      *intelLevel,
		StartingCashUsd: cash,
		TickInterval:    *tickInterval,
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return []Config{cfg}, nil
}

func getYaml(path string) ([]Config, error) {
	payload, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var tmps []ConfigTmp
	if err := yaml.Unmarshal(payload, &tmps); err != nil {
		return nil, err
	}

	configs := make([]Config, 0, len(tmps))
	for _, tmp := range tmps {
		cfg, err := tmp.toConfig()
		if err != nil {
			return nil, fmt.Errorf("account %q: %w", tmp.AccountID, err)
		}
		configs = append(configs, cfg)
	}
	return configs, nil
}

func (t ConfigTmp) toConfig() (Config, error) {
	cfg := Config{
		AccountID:               t.AccountID,
		Watchlist:               t.Watchlist,
		IntelLevel:              t.IntelLevel,
		MaxHold:                 t.MaxHold,
		TickInterval:            t.TickInterval,
		SlippageBps:             t.SlippageBps,
		FeeBps:                  t.FeeBps,
		BreakerFailureThreshold: t.BreakerFailureThreshold,
		BreakerResetWindow:      t.BreakerResetWindow,
		DecisionWALDir:          t.DecisionWALDir,
		PortfolioStateDir:       t.PortfolioStateDir,
	}

	var err error
	if cfg.StartingCashUsd, err = parseDecimal(t.StartingCashUsd, "starting_cash_usd"); err != nil {
		return Config{}, err
	}
	if cfg.MaxTokenPercent, err = parseOptionalDecimal(t.MaxTokenPercent, "max_token_percent"); err != nil {
		return Config{}, err
	}
	if cfg.StopLossPercent, err = parseOptionalDecimal(t.StopLossPercent, "stop_loss_percent"); err != nil {
		return Config{}, err
	}
	if cfg.TakeProfitPercent, err = parseOptionalDecimal(t.TakeProfitPercent, "take_profit_percent"); err != nil {
		return Config{}, err
	}
	if cfg.ArbMinProfitUsd, err = parseOptionalDecimal(t.ArbMinProfitUsd, "arb_min_profit_usd"); err != nil {
		return Config{}, err
	}
	if cfg.GasPriceGwei, err = parseOptionalDecimal(t.GasPriceGwei, "gas_price_gwei"); err != nil {
		return Config{}, err
	}
	if cfg.EthPriceUsd, err = parseOptionalDecimal(t.EthPriceUsd, "eth_price_usd"); err != nil {
		return Config{}, err
	}

	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.MaxTokenPercent.IsZero() {
		c.MaxTokenPercent = decimal.NewFromInt(25)
	}
	if c.StopLossPercent.IsZero() {
		c.StopLossPercent = decimal.NewFromInt(5)
	}
	if c.TakeProfitPercent.IsZero() {
		c.TakeProfitPercent = decimal.NewFromInt(10)
	}
	if c.MaxHold <= 0 {
		c.MaxHold = 72 * time.Hour
	}
	if c.TickInterval <= 0 {
		c.TickInterval = time.Minute
	}
	if c.SlippageBps <= 0 {
		c.SlippageBps = 10
	}
	if c.FeeBps <= 0 {
		c.FeeBps = 10
	}
	if c.BreakerFailureThreshold <= 0 {
		c.BreakerFailureThreshold = 5
	}
	if c.BreakerResetWindow <= 0 {
		c.BreakerResetWindow = 5 * time.Minute
	}
	if c.ArbMinProfitUsd.IsZero() {
		c.ArbMinProfitUsd = decimal.NewFromInt(5)
	}
	if c.GasPriceGwei.IsZero() {
		c.GasPriceGwei = decimal.NewFromInt(20)
	}
	if c.EthPriceUsd.IsZero() {
		c.EthPriceUsd = decimal.NewFromInt(3000)
	}
	if c.DecisionWALDir == "" {
		c.DecisionWALDir = "./wal/decisions/" + c.AccountID
	}
	if c.PortfolioStateDir == "" {
		c.PortfolioStateDir = "./wal/portfolio"
	}
}

func (c Config) validate() error {
	if c.AccountID == "" {
		return fmt.Errorf("account_id is required")
	}
	if len(c.Watchlist) == 0 {
		return fmt.Errorf("watchlist must name at least one token")
	}
	if c.IntelLevel < 1 || c.IntelLevel > 10 {
		return fmt.Errorf("intel_level must be 1-10, got %d", c.IntelLevel)
	}
	if c.StartingCashUsd.LessThanOrEqual(decimal.Zero) {
		return fmt.Errorf("starting_cash_usd must be greater than zero")
	}
	if c.MaxTokenPercent.LessThanOrEqual(decimal.Zero) || c.MaxTokenPercent.GreaterThan(decimal.NewFromInt(100)) {
		return fmt.Errorf("max_token_percent must be in (0,100], got %s", c.MaxTokenPercent.String())
	}
	return nil
}

func parseDecimal(value, field string) (decimal.Decimal, error) {
	if value == "" {
		return decimal.Zero, fmt.Errorf("%s is required", field)
	}
	d, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid %s=%q: %w", field, value, err)
	}
	return d, nil
}

func parseOptionalDecimal(value, field string) (decimal.Decimal, error) {
	if value == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid %s=%q: %w", field, value, err)
	}
	return d, nil
}

func splitTokens(list string) []string {
	parts := strings.Split(list, ",")
	tokens := make([]string, 0, len(parts))
	for _, part := range parts {
		token := strings.ToUpper(strings.TrimSpace(part))
		if token != "" {
			tokens = append(tokens, token)
		}
	}
	return tokens
}
