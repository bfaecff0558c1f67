package domain

// Caps for the per-account history buffers. Kept small on purpose: analyzers
// only ever look at the recent window.
const (
	ContextHistoryCap    = 50
	VolatilityHistoryCap = 20
)

// History holds bounded per-token ring buffers of recent market data for one
// account. It is passed by reference to analyzers and is never global.
type History struct {
	contexts   map[string][]MarketContext
	volatility map[string][]float64
}

// NewHistory creates empty history buffers.
func NewHistory() *History {
	return &History{
		contexts:   make(map[string][]MarketContext),
		volatility: make(map[string][]float64),
	}
}

// Push records a context snapshot and its volatility sample, evicting the
// oldest entries beyond the caps.
func (h *History) Push(ctx MarketContext) {
	buf := append(h.contexts[ctx.Token], ctx)
	if len(buf) > ContextHistoryCap {
		buf = buf[len(buf)-ContextHistoryCap:]
	}
	h.contexts[ctx.Token] = buf

	vols := append(h.volatility[ctx.Token], ctx.VolatilityIndex)
	if len(vols) > VolatilityHistoryCap {
		vols = vols[len(vols)-VolatilityHistoryCap:]
	}
	h.volatility[ctx.Token] = vols
}

// Contexts returns the recorded snapshots for a token, oldest first.
func (h *History) Contexts(token string) []MarketContext {
	return h.contexts[token]
}

// VolatilitySamples returns the recorded volatility samples for a token.
func (h *History) VolatilitySamples(token string) []float64 {
	return h.volatility[token]
}
