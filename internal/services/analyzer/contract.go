package analyzer

import (
	"context"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/vadiminshakov/papertrader/internal/domain"
)

// ContractAnalyzer scores token contract trustworthiness. Established symbols
// from the allowlist are safe; an arbitrary hex address is an unknown contract
// until proven otherwise.
type ContractAnalyzer struct {
	cfg Config
}

func (a *ContractAnalyzer) Category() domain.Category { return domain.CategoryContract }

func (a *ContractAnalyzer) Analyze(_ context.Context, mctx domain.MarketContext, _ *domain.History) domain.AnalyzerResult {
	token := strings.TrimSpace(mctx.Token)
	if token == "" {
		return domain.AnalyzerResult{
			Category:       domain.CategoryContract,
			Score:          100,
			Quality:        domain.QualityError,
			Recommendation: "empty token identifier",
		}
	}

	for _, known := range a.cfg.KnownTokens {
		if strings.EqualFold(token, known) {
			return domain.AnalyzerResult{
				Category:       domain.CategoryContract,
				Score:          10,
				Quality:        domain.QualityExcellent,
				Recommendation: "established token",
			}
		}
	}

	if common.IsHexAddress(token) {
		return domain.AnalyzerResult{
			Category:       domain.CategoryContract,
			Score:          55,
			Quality:        domain.QualityFair,
			Recommendation: "unverified contract, limit exposure",
		}
	}

	return domain.AnalyzerResult{
		Category:       domain.CategoryContract,
		Score:          45,
		Quality:        domain.QualityPoor,
		Recommendation: "unknown symbol",
	}
}
