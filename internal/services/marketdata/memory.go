package marketdata

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/papertrader/internal/domain"
)

// MemoryProvider serves preloaded contexts and bars. Backtests and tests use it
// so two identical runs see identical data.
type MemoryProvider struct {
	mu       sync.RWMutex
	contexts map[string][]domain.MarketContext
	cursor   map[string]int
	bars     map[string][]domain.Bar
}

// NewMemoryProvider creates an empty in-memory provider.
func NewMemoryProvider() *MemoryProvider {
	return &MemoryProvider{
		contexts: make(map[string][]domain.MarketContext),
		cursor:   make(map[string]int),
		bars:     make(map[string][]domain.Bar),
	}
}

// LoadContexts queues context snapshots for the token; successive Context calls
// replay them in order, repeating the last one when exhausted.
func (p *MemoryProvider) LoadContexts(token string, contexts []domain.MarketContext) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.contexts[token] = contexts
	p.cursor[token] = 0
}

// LoadBars stores historical bars for the token.
func (p *MemoryProvider) LoadBars(token string, bars []domain.Bar) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.bars[token] = bars
}

// Context replays the next queued snapshot for the token.
func (p *MemoryProvider) Context(_ context.Context, token string) (domain.MarketContext, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	queue := p.contexts[token]
	if len(queue) == 0 {
		return domain.MarketContext{}, fmt.Errorf("no contexts loaded for %s", token)
	}

	idx := p.cursor[token]
	if idx >= len(queue) {
		idx = len(queue) - 1
	} else {
		p.cursor[token]++
	}
	return queue[idx], nil
}

// Bars returns the loaded bars inside [from, to].
func (p *MemoryProvider) Bars(_ context.Context, token, _ string, from, to time.Time) ([]domain.Bar, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	all, ok := p.bars[token]
	if !ok {
		return nil, fmt.Errorf("no bars loaded for %s", token)
	}

	out := make([]domain.Bar, 0, len(all))
	for _, bar := range all {
		if bar.OpenTime.Before(from) || bar.OpenTime.After(to) {
			continue
		}
		out = append(out, bar)
	}
	return out, nil
}

// StaticVenue is a fixed-price venue pricer for tests.
type StaticVenue struct {
	VenueName string
	PriceUsd  decimal.Decimal
}

func (v StaticVenue) Name() string { return v.VenueName }

func (v StaticVenue) Price(context.Context, string) (decimal.Decimal, error) {
	return v.PriceUsd, nil
}
