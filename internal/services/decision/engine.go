// Package decision turns composite market scores into BUY/SELL/HOLD/SKIP
// decisions gated by the intelligence level (1-10 risk tolerance slider).
package decision

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/papertrader/internal/domain"
	"github.com/vadiminshakov/papertrader/internal/services/analyzer"
	"github.com/vadiminshakov/papertrader/internal/services/exits"
	"go.uber.org/zap"
)

// riskThresholds maps intelligence level to the maximum acceptable composite
// risk score. Level 1 barely trades; level 10 tolerates almost anything.
var riskThresholds = map[int]float64{
	1: 10, 2: 20, 3: 30, 4: 45, 5: 60,
	6: 70, 7: 80, 8: 90, 9: 95, 10: 99,
}

// AuditSink records every decision, executed or not. Append-only.
type AuditSink interface {
	Save(decision domain.TradingDecision) error
}

// Engine is the intel-slider decision engine. Decisions are deterministic for
// identical inputs: no randomness, no wall-clock reads outside the supplied
// timestamp. That property is what makes backtests trustworthy.
type Engine struct {
	intelLevel      int
	maxTokenPercent decimal.Decimal
	exitEvaluator   *exits.Evaluator
	audit           AuditSink
	logger          *zap.Logger

	// newID is injectable so backtests can produce stable identifiers
	newID func() string
}

// NewEngine creates a decision engine for one account.
func NewEngine(intelLevel int, maxTokenPercent decimal.Decimal, exitEvaluator *exits.Evaluator, audit AuditSink, logger *zap.Logger) (*Engine, error) {
	if intelLevel < 1 || intelLevel > 10 {
		return nil, fmt.Errorf("intelligence level must be 1-10, got %d", intelLevel)
	}
	if exitEvaluator == nil {
		return nil, fmt.Errorf("exit evaluator is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Engine{
		intelLevel:      intelLevel,
		maxTokenPercent: maxTokenPercent,
		exitEvaluator:   exitEvaluator,
		audit:           audit,
		logger:          logger,
		newID:           uuid.NewString,
	}, nil
}

// SetIDGenerator overrides decision ID generation. Backtests use a sequential
// generator so two identical runs produce identical audit records.
func (e *Engine) SetIDGenerator(fn func() string) {
	if fn != nil {
		e.newID = fn
	}
}

// RiskThreshold returns the max acceptable risk for the engine's intel level.
func (e *Engine) RiskThreshold() float64 {
	return riskThresholds[e.intelLevel]
}

// IntelLevel returns the configured intelligence level.
func (e *Engine) IntelLevel() int {
	return e.intelLevel
}

// EvaluateExit checks the exit rules for an open position without producing a
// decision record. The engine's exit sweep uses it for positions that dropped
// off the watchlist.
func (e *Engine) EvaluateExit(pos *domain.Position, currentPrice decimal.Decimal, now time.Time) (domain.ExitSignal, bool) {
	return e.exitEvaluator.Evaluate(pos, currentPrice, now)
}

// opportunityFloor is the minimum opportunity score a BUY needs. Cautious
// levels demand a larger edge.
func (e *Engine) opportunityFloor() float64 {
	floor := 70 - 3*float64(e.intelLevel)
	if floor < 35 {
		floor = 35
	}
	return floor
}

// Input carries everything one decision depends on.
type Input struct {
	Context     domain.MarketContext
	Scores      domain.CompositeScores
	Portfolio   domain.PortfolioState
	BreakerOpen bool
	Now         time.Time
}

// Decide evaluates one token for one tick. Every path emits an immutable audit
// record with all sub-scores and reasoning before returning.
func (e *Engine) Decide(in Input) domain.TradingDecision {
	decision := e.evaluate(in)

	if e.audit != nil {
		if err := e.audit.Save(decision); err != nil {
			e.logger.Error("failed to persist decision audit record",
				zap.String("token", decision.Token),
				zap.Error(err))
		}
	}

	return decision
}

func (e *Engine) evaluate(in Input) domain.TradingDecision {
	base := domain.TradingDecision{
		ID:               e.newID(),
		Token:            in.Context.Token,
		RiskScore:        in.Scores.Risk,
		OpportunityScore: in.Scores.Opportunity,
		Strategy:         domain.StrategySpot,
		SizingPercent:    decimal.Zero,
		CreatedAt:        in.Now,
	}

	// an open position is managed by exit rules before any new-entry logic
	if pos, ok := in.Portfolio.OpenPosition(in.Context.Token); ok {
		if sig, triggered := e.exitEvaluator.Evaluate(pos, in.Context.PriceUsd, in.Now); triggered {
			base.Action = domain.ActionSell
			base.ExitReason = sig.Reason
			base.Confidence = 100
			base.Reasoning = exits.Describe(sig)
			return base
		}
		base.Action = domain.ActionHold
		base.Confidence = 50
		base.Reasoning = fmt.Sprintf("holding open position, pnl %s%%",
			pos.PnlPercent(in.Context.PriceUsd).StringFixed(2))
		return base
	}

	if category, degraded := analyzer.MandatoryDegraded(in.Scores); degraded {
		base.Action = domain.ActionSkip
		base.Reasoning = fmt.Sprintf("mandatory analyzer %s below GOOD quality", category)
		return base
	}

	threshold := e.RiskThreshold()
	if in.Scores.Risk > threshold {
		base.Action = domain.ActionSkip
		base.Reasoning = fmt.Sprintf("risk %.0f > threshold %.0f for intel level %d",
			in.Scores.Risk, threshold, e.intelLevel)
		return base
	}

	floor := e.opportunityFloor()
	if in.Scores.Opportunity < floor {
		base.Action = domain.ActionHold
		base.Reasoning = fmt.Sprintf("opportunity %.0f below floor %.0f", in.Scores.Opportunity, floor)
		return base
	}

	if in.BreakerOpen {
		base.Action = domain.ActionSkip
		base.Reasoning = "circuit breaker open, new buys blocked"
		return base
	}

	sizing := e.sizingPercent(in.Scores)
	candidateUsd := in.Portfolio.TotalValue.Mul(sizing).Div(decimal.NewFromInt(100))
	if allowed, reason := e.concentrationOK(in, candidateUsd); !allowed {
		base.Action = domain.ActionSkip
		base.Reasoning = reason
		return base
	}

	base.Action = domain.ActionBuy
	base.Confidence = e.confidence(in.Scores)
	base.SizingPercent = sizing
	base.Reasoning = fmt.Sprintf("risk %.0f within threshold %.0f, opportunity %.0f clears floor %.0f",
		in.Scores.Risk, threshold, in.Scores.Opportunity, floor)
	return base
}

// confidence blends opportunity with the quality of the data behind it.
func (e *Engine) confidence(scores domain.CompositeScores) float64 {
	if len(scores.Results) == 0 {
		return 0
	}
	var qualitySum float64
	for _, r := range scores.Results {
		qualitySum += r.Quality.Weight()
	}
	avgQuality := qualitySum / float64(len(scores.Results))

	confidence := scores.Opportunity * avgQuality
	if confidence > 100 {
		confidence = 100
	}
	return confidence
}

// sizingPercent scales position size with confidence, capped by the per-token
// concentration maximum.
func (e *Engine) sizingPercent(scores domain.CompositeScores) decimal.Decimal {
	sizing := decimal.NewFromFloat(e.confidence(scores) / 10)
	if sizing.GreaterThan(e.maxTokenPercent) {
		sizing = e.maxTokenPercent
	}
	if sizing.LessThan(decimal.NewFromInt(1)) {
		sizing = decimal.NewFromInt(1)
	}
	return sizing
}

func (e *Engine) concentrationOK(in Input, candidateUsd decimal.Decimal) (bool, string) {
	if in.Portfolio.TotalValue.LessThanOrEqual(decimal.Zero) {
		// fail open: a bookkeeping anomaly must not freeze the bot
		e.logger.Error("portfolio value unavailable during concentration check, failing open",
			zap.String("token", in.Context.Token))
		return true, ""
	}

	current := in.Portfolio.Concentration(in.Context.Token)
	projected := current.Add(candidateUsd.Div(in.Portfolio.TotalValue).Mul(decimal.NewFromInt(100)))
	if projected.GreaterThan(e.maxTokenPercent) {
		return false, fmt.Sprintf("concentration %s%% would exceed max %s%%",
			projected.StringFixed(2), e.maxTokenPercent.String())
	}
	return true, ""
}
