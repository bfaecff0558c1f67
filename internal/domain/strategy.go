package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// StrategyType is the execution plan family chosen for a trade.
type StrategyType int

const (
	StrategySpot StrategyType = iota
	StrategyDCA
	StrategyGrid
	StrategyTWAP
	StrategyVWAP
)

// String returns the string representation of the strategy type.
func (s StrategyType) String() string {
	switch s {
	case StrategySpot:
		return "spot"
	case StrategyDCA:
		return "dca"
	case StrategyGrid:
		return "grid"
	case StrategyTWAP:
		return "twap"
	case StrategyVWAP:
		return "vwap"
	default:
		return "unknown"
	}
}

// Chunk is one slice of a chunked execution plan.
type Chunk struct {
	SizeUsd decimal.Decimal
	Offset  time.Duration // delay from plan start
}

// StrategyPlan describes how a trade of TotalUsd should be sliced and timed.
// A SPOT plan has a single immediate chunk.
type StrategyPlan struct {
	Type     StrategyType
	TotalUsd decimal.Decimal
	Chunks   []Chunk
}

// ChunkTotal sums the chunk sizes; it must equal TotalUsd up to rounding.
func (p StrategyPlan) ChunkTotal() decimal.Decimal {
	total := decimal.Zero
	for _, c := range p.Chunks {
		total = total.Add(c.SizeUsd)
	}
	return total
}
