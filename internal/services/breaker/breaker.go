// Package breaker halts trade submission for an account after repeated
// execution failures and recovers automatically after a cool-down window.
package breaker

import (
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// ErrCircuitOpen is returned while the breaker is open. Trade attempts hitting
// it are short-circuited, not retried.
var ErrCircuitOpen = errors.New("circuit breaker is open, trade submission halted")

const (
	DefaultFailureThreshold = 5
	DefaultResetWindow      = 5 * time.Minute
)

// Breaker wraps one account's trade path in a circuit breaker. Safe for
// concurrent use: Reset may be issued from an operator goroutine while the
// tick loop is executing through it.
type Breaker struct {
	mu        sync.RWMutex
	cb        *gobreaker.CircuitBreaker
	name      string
	threshold uint32
	window    time.Duration
	logger    *zap.Logger
}

// New creates a breaker that trips after failureThreshold consecutive failures
// and transitions back towards closed after resetWindow of inactivity.
func New(accountID string, failureThreshold int, resetWindow time.Duration, logger *zap.Logger) *Breaker {
	if failureThreshold <= 0 {
		failureThreshold = DefaultFailureThreshold
	}
	if resetWindow <= 0 {
		resetWindow = DefaultResetWindow
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	b := &Breaker{
		name:      accountID,
		threshold: uint32(failureThreshold),
		window:    resetWindow,
		logger:    logger.With(zap.String("account", accountID)),
	}
	b.cb = b.newCircuit()

	return b
}

func (b *Breaker) newCircuit() *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        b.name,
		MaxRequests: 1,
		Timeout:     b.window,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= b.threshold
		},
		OnStateChange: func(_ string, from, to gobreaker.State) {
			b.logger.Warn("circuit breaker state change",
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})
}

func (b *Breaker) circuit() *gobreaker.CircuitBreaker {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.cb
}

// Execute runs fn through the breaker. While open it returns ErrCircuitOpen
// without invoking fn. The first success after re-close clears the failure
// counter.
func (b *Breaker) Execute(fn func() error) error {
	_, err := b.circuit().Execute(func() (interface{}, error) {
		return nil, fn()
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return ErrCircuitOpen
	}
	return err
}

// Open reports whether new trades would currently be short-circuited.
func (b *Breaker) Open() bool {
	return b.circuit().State() == gobreaker.StateOpen
}

// Reset forces the breaker back to closed, clearing all counters. Exposed for
// the operator-facing reset operation.
func (b *Breaker) Reset() {
	// gobreaker has no public reset; swap in a fresh breaker with the same settings
	b.mu.Lock()
	b.cb = b.newCircuit()
	b.mu.Unlock()
	b.logger.Info("circuit breaker manually reset")
}
