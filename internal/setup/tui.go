// Package setup provides the terminal configuration wizard.
package setup

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/papertrader/config"
	"gopkg.in/yaml.v3"
)

var (
	subtle    = lipgloss.AdaptiveColor{Light: "#D9DCCF", Dark: "#383838"}
	highlight = lipgloss.AdaptiveColor{Light: "#874BFD", Dark: "#7D56F4"}
	special   = lipgloss.AdaptiveColor{Light: "#43BF6D", Dark: "#73F59F"}

	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Background(highlight).
			Padding(1, 2).
			Bold(true).
			MarginBottom(1)

	stepStyle = lipgloss.NewStyle().
			Foreground(special).
			Bold(true).
			MarginTop(1).
			MarginBottom(0)
)

// RunTUI launches the terminal configuration wizard and writes config.gen.yaml.
func RunTUI() error {
	var (
		accountID       string
		watchlist       string
		intelLevel      string
		startingCash    string
		stopLoss        string
		takeProfit      string
		maxHoldStr      string
		tickIntervalStr string
		confirm         bool
	)

	// defaults
	accountID = "paper-1"
	watchlist = "ETH,BTC"
	intelLevel = "5"
	startingCash = "10000"
	stopLoss = "5"
	takeProfit = "10"
	maxHoldStr = "72h"
	tickIntervalStr = "1m"

	// step 1: welcome
	fmt.Print("\033[H\033[2J") // Clear screen
	fmt.Println(headerStyle.Render("PAPERTRADER CONFIG WIZARD"))
	fmt.Println(lipgloss.NewStyle().Foreground(subtle).Render("Simulated trading, real decisions.\n"))

	fmt.Println(stepStyle.Render("STEP 1: ACCOUNT"))
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Account ID").
				Value(&accountID).
				Validate(func(s string) error {
					if s == "" {
						return fmt.Errorf("account ID cannot be empty")
					}
					return nil
				}),
			huh.NewInput().
				Title("Watchlist").
				Description("Comma-separated tokens (e.g. ETH,BTC,SOL)").
				Value(&watchlist).
				Validate(func(s string) error {
					if s == "" {
						return fmt.Errorf("watchlist cannot be empty")
					}
					return nil
				}),
		),
	).Run()
	if err != nil {
		return err
	}

	// intelligence level
	fmt.Print("\033[H\033[2J")
	fmt.Println(headerStyle.Render("PAPERTRADER CONFIG WIZARD"))
	fmt.Println(stepStyle.Render("STEP 2: INTELLIGENCE LEVEL"))
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Risk tolerance slider").
				Description("1 barely trades, 10 tolerates almost anything").
				Options(
					huh.NewOption("1 - Ultra cautious", "1"),
					huh.NewOption("2 - Very cautious", "2"),
					huh.NewOption("3 - Cautious", "3"),
					huh.NewOption("4 - Conservative", "4"),
					huh.NewOption("5 - Balanced", "5"),
					huh.NewOption("6 - Assertive", "6"),
					huh.NewOption("7 - Aggressive", "7"),
					huh.NewOption("8 - Very aggressive", "8"),
					huh.NewOption("9 - Reckless", "9"),
					huh.NewOption("10 - Maximum risk", "10"),
				).
				Value(&intelLevel),
		),
	).Run()
	if err != nil {
		return err
	}

	// money
	fmt.Print("\033[H\033[2J")
	fmt.Println(headerStyle.Render("PAPERTRADER CONFIG WIZARD"))
	fmt.Println(stepStyle.Render("STEP 3: FUNDING"))
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Starting Cash (USD)").
				Description("Simulated balance, e.g. 10000").
				Value(&startingCash).
				Validate(validatePositiveDecimal),
		),
	).Run()
	if err != nil {
		return err
	}

	// exit rules
	fmt.Print("\033[H\033[2J")
	fmt.Println(headerStyle.Render("PAPERTRADER CONFIG WIZARD"))
	fmt.Println(stepStyle.Render("STEP 4: EXIT RULES"))
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Stop Loss %").
				Description("Close when pnl drops below -X% (e.g. 5)").
				Value(&stopLoss).
				Validate(validatePositiveDecimal),
			huh.NewInput().
				Title("Take Profit %").
				Description("Close when pnl rises above +X% (e.g. 10)").
				Value(&takeProfit).
				Validate(validatePositiveDecimal),
			huh.NewInput().
				Title("Max Hold").
				Description("Duration string (e.g. 72h)").
				Value(&maxHoldStr).
				Validate(validateDuration),
		),
	).Run()
	if err != nil {
		return err
	}

	// timing
	fmt.Print("\033[H\033[2J")
	fmt.Println(headerStyle.Render("PAPERTRADER CONFIG WIZARD"))
	fmt.Println(stepStyle.Render("STEP 5: TIMING"))
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Tick Interval").
				Description("Duration string (e.g. 30s, 1m, 5m)").
				Value(&tickIntervalStr).
				Validate(validateDuration),
		),
	).Run()
	if err != nil {
		return err
	}

	// confirmation
	fmt.Print("\033[H\033[2J")
	fmt.Println(headerStyle.Render("PAPERTRADER CONFIG WIZARD"))
	fmt.Println(stepStyle.Render("FINAL CONFIRMATION"))

	summary := fmt.Sprintf(
		"Account: %s\nWatchlist: %s\nIntel Level: %s\nStarting Cash: $%s\nStop Loss: -%s%%\nTake Profit: +%s%%\nMax Hold: %s\nTick: %s\n",
		accountID, watchlist, intelLevel, startingCash, stopLoss, takeProfit, maxHoldStr, tickIntervalStr,
	)
	fmt.Println(lipgloss.NewStyle().Border(lipgloss.NormalBorder()).Padding(1).Render(summary))

	err = huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Save Configuration?").
				Affirmative("Yes, save and start").
				Negative("No, exit").
				Value(&confirm),
		),
	).Run()
	if err != nil {
		return err
	}

	if !confirm {
		return fmt.Errorf("setup cancelled by user")
	}

	maxHold, _ := time.ParseDuration(maxHoldStr)
	tickInterval, _ := time.ParseDuration(tickIntervalStr)
	level := 5
	fmt.Sscanf(intelLevel, "%d", &level)

	cfgTmp := config.ConfigTmp{
		AccountID:         accountID,
		Watchlist:         splitList(watchlist),
		IntelLevel:        level,
		StartingCashUsd:   startingCash,
		StopLossPercent:   stopLoss,
		TakeProfitPercent: takeProfit,
		MaxHold:           maxHold,
		TickInterval:      tickInterval,
	}

	data, err := yaml.Marshal([]config.ConfigTmp{cfgTmp})
	if err != nil {
		return fmt.Errorf("failed to generate yaml: %w", err)
	}

	filename := "config.gen.yaml"
	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to save config file: %w", err)
	}

	fmt.Println(lipgloss.NewStyle().Foreground(special).Render(fmt.Sprintf("\n✓ Configuration saved to %s\nStarting engine...", filename)))
	time.Sleep(1500 * time.Millisecond) // small pause to read success message
	return nil
}

func validatePositiveDecimal(s string) error {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return fmt.Errorf("must be a valid number")
	}
	if d.LessThanOrEqual(decimal.Zero) {
		return fmt.Errorf("must be greater than zero")
	}
	return nil
}

func validateDuration(s string) error {
	_, err := time.ParseDuration(s)
	return err
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		token := strings.ToUpper(strings.TrimSpace(part))
		if token != "" {
			out = append(out, token)
		}
	}
	return out
}
