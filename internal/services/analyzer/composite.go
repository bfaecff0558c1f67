package analyzer

import (
	"context"
	"sort"
	"time"

	"github.com/bytedance/gopkg/util/gopool"
	"github.com/vadiminshakov/papertrader/internal/domain"
	"go.uber.org/zap"
)

const (
	defaultWorkers  = 4
	defaultTimeout  = 2 * time.Second
	fallbackRisk    = 50.0
	maxIntelLevel   = 10
	midIntelLevel   = 5
	riskBiasPerStep = 0.06
)

// category weights for the risk aggregate
var riskWeights = map[domain.Category]float64{
	domain.CategoryGas:         0.5,
	domain.CategoryLiquidity:   1.5,
	domain.CategoryVolatility:  1.5,
	domain.CategoryMEV:         1.5,
	domain.CategoryMarketState: 1.0,
	domain.CategorySocial:      0.5,
	domain.CategoryTechnical:   1.0,
	domain.CategoryContract:    1.5,
}

// category weights for the opportunity aggregate (inverted scores)
var opportunityWeights = map[domain.Category]float64{
	domain.CategoryGas:         0.25,
	domain.CategoryLiquidity:   1.0,
	domain.CategoryVolatility:  0.5,
	domain.CategoryMEV:         0.25,
	domain.CategoryMarketState: 1.0,
	domain.CategorySocial:      1.0,
	domain.CategoryTechnical:   1.5,
	domain.CategoryContract:    0.5,
}

// Composite fans the sub-analyzers out over a bounded worker pool and merges
// their results into weighted risk/opportunity scores.
type Composite struct {
	analyzers []Analyzer
	pool      gopool.Pool
	timeout   time.Duration
	logger    *zap.Logger
}

// NewComposite builds a composite over the static registry.
func NewComposite(cfg Config, workers int, timeout time.Duration, logger *zap.Logger) *Composite {
	if workers <= 0 {
		workers = defaultWorkers
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Composite{
		analyzers: Registry(cfg),
		pool:      gopool.NewPool("analyzers", int32(workers), gopool.NewConfig()),
		timeout:   timeout,
		logger:    logger,
	}
}

// Analyze runs every registered analyzer concurrently with a per-analyzer
// timeout. A slow or failed analyzer degrades to an ERROR-quality result and
// never blocks the tick. Aggregation weights shift with the intel level: lower
// levels weight risk more heavily.
func (c *Composite) Analyze(ctx context.Context, mctx domain.MarketContext, history *domain.History, intelLevel int) domain.CompositeScores {
	type slot struct {
		index  int
		result domain.AnalyzerResult
	}

	results := make(chan slot, len(c.analyzers))

	for i, a := range c.analyzers {
		i, a := i, a
		c.pool.Go(func() {
			runCtx, cancel := context.WithTimeout(ctx, c.timeout)
			defer cancel()

			done := make(chan domain.AnalyzerResult, 1)
			go func() {
				done <- a.Analyze(runCtx, mctx, history)
			}()

			select {
			case r := <-done:
				results <- slot{index: i, result: r}
			case <-runCtx.Done():
				c.logger.Warn("analyzer timed out, degrading quality",
					zap.String("category", a.Category().String()),
					zap.String("token", mctx.Token))
				results <- slot{index: i, result: domain.AnalyzerResult{
					Category:       a.Category(),
					Score:          fallbackRisk,
					Quality:        domain.QualityError,
					Recommendation: "analyzer timed out",
				}}
			}
		})
	}

	collected := make([]slot, 0, len(c.analyzers))
	for range c.analyzers {
		collected = append(collected, <-results)
	}
	// registry order keeps aggregation deterministic regardless of completion order
	sort.Slice(collected, func(i, j int) bool { return collected[i].index < collected[j].index })

	ordered := make([]domain.AnalyzerResult, len(collected))
	for i, s := range collected {
		ordered[i] = s.result
	}

	return aggregate(ordered, intelLevel)
}

// MandatoryDegraded reports whether any mandatory analyzer (liquidity,
// volatility) failed to reach at least GOOD quality.
func MandatoryDegraded(scores domain.CompositeScores) (domain.Category, bool) {
	for _, category := range []domain.Category{domain.CategoryLiquidity, domain.CategoryVolatility} {
		result, ok := scores.ResultFor(category)
		if !ok || !result.Quality.AtLeast(domain.QualityGood) {
			return category, true
		}
	}
	return 0, false
}

func aggregate(results []domain.AnalyzerResult, intelLevel int) domain.CompositeScores {
	var (
		riskSum, riskWeight float64
		oppSum, oppWeight   float64
	)

	for _, r := range results {
		q := r.Quality.Weight()
		if q == 0 {
			continue
		}
		if w := riskWeights[r.Category] * q; w > 0 {
			riskSum += r.Score * w
			riskWeight += w
		}
		if w := opportunityWeights[r.Category] * q; w > 0 {
			oppSum += (100 - r.Score) * w
			oppWeight += w
		}
	}

	risk := fallbackRisk
	if riskWeight > 0 {
		risk = riskSum / riskWeight
	}
	opportunity := 0.0
	if oppWeight > 0 {
		opportunity = oppSum / oppWeight
	}

	// cautious levels inflate perceived risk, aggressive levels discount it
	bias := 1 + float64(midIntelLevel-clampLevel(intelLevel))*riskBiasPerStep
	risk = clampScore(risk * bias)

	return domain.CompositeScores{
		Risk:        risk,
		Opportunity: clampScore(opportunity),
		Results:     results,
	}
}

func clampLevel(level int) int {
	if level < 1 {
		return 1
	}
	if level > maxIntelLevel {
		return maxIntelLevel
	}
	return level
}
