// Package guard rejects or repairs corrupt numeric input at every monetary
// boundary. Upstream price feeds intermittently emit wei-scaled integers,
// divide-by-zero artifacts and NaN strings; nothing of that sort may ever
// reach a Position, Trade or Account write.
package guard

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ErrValidation marks a rejected numeric or address value. Callers receive the
// documented safe default alongside the error; the corruption is logged, never
// silently persisted.
var ErrValidation = errors.New("validation rejected value")

// Realistic bounds. A single monetary amount above a trillion USD or a token
// quantity above 1e15 is a feed artifact, not a market.
var (
	maxMonetaryUsd = decimal.RequireFromString("1000000000000")
	maxQuantity    = decimal.RequireFromString("1000000000000000")
)

// Guard validates values at persistence boundaries.
type Guard struct {
	logger *zap.Logger
}

// New creates a validation guard.
func New(logger *zap.Logger) *Guard {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Guard{logger: logger}
}

// Monetary parses and validates a monetary amount in USD. On rejection it
// returns decimal.Zero (the safe default) together with ErrValidation.
func (g *Guard) Monetary(field, raw string) (decimal.Decimal, error) {
	value, err := g.parse(field, raw)
	if err != nil {
		return decimal.Zero, err
	}
	return g.MonetaryValue(field, value)
}

// MonetaryValue validates an already-parsed monetary amount.
func (g *Guard) MonetaryValue(field string, value decimal.Decimal) (decimal.Decimal, error) {
	if value.LessThan(decimal.Zero) {
		return decimal.Zero, g.reject(field, value.String(), "negative monetary value")
	}
	if value.GreaterThan(maxMonetaryUsd) {
		return decimal.Zero, g.reject(field, value.String(), "monetary value out of realistic range")
	}
	return value, nil
}

// Quantity parses and validates a token quantity. The safe default is zero.
func (g *Guard) Quantity(field, raw string) (decimal.Decimal, error) {
	value, err := g.parse(field, raw)
	if err != nil {
		return decimal.Zero, err
	}
	return g.QuantityValue(field, value)
}

// QuantityValue validates an already-parsed token quantity.
func (g *Guard) QuantityValue(field string, value decimal.Decimal) (decimal.Decimal, error) {
	if value.LessThan(decimal.Zero) {
		return decimal.Zero, g.reject(field, value.String(), "negative quantity")
	}
	if value.GreaterThan(maxQuantity) {
		return decimal.Zero, g.reject(field, value.String(), "quantity out of realistic range")
	}
	return value, nil
}

// TokenAddress validates a token identifier: either a hex contract address or
// a short uppercase ticker symbol.
func (g *Guard) TokenAddress(raw string) error {
	token := strings.TrimSpace(raw)
	if token == "" {
		return g.reject("token", raw, "empty token address")
	}

	if strings.HasPrefix(token, "0x") || strings.HasPrefix(token, "0X") {
		if !common.IsHexAddress(token) {
			return g.reject("token", raw, "malformed hex address")
		}
		return nil
	}

	if len(token) > 12 {
		return g.reject("token", raw, "symbol too long")
	}
	for _, r := range token {
		isAlnum := (r >= 'A' && r <= 'Z') || (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9')
		if !isAlnum {
			return g.reject("token", raw, "symbol contains invalid characters")
		}
	}
	return nil
}

func (g *Guard) parse(field, raw string) (decimal.Decimal, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return decimal.Zero, g.reject(field, raw, "empty value")
	}

	switch strings.ToLower(trimmed) {
	case "nan", "+nan", "-nan":
		return decimal.Zero, g.reject(field, raw, "NaN value")
	case "inf", "+inf", "-inf", "infinity", "+infinity", "-infinity":
		return decimal.Zero, g.reject(field, raw, "infinite value")
	}

	// Scientific notation in a feed payload is a serialization artifact; real
	// quote feeds emit plain decimal strings.
	if strings.ContainsAny(trimmed, "eE") {
		return decimal.Zero, g.reject(field, raw, "scientific notation artifact")
	}

	value, err := decimal.NewFromString(trimmed)
	if err != nil {
		return decimal.Zero, g.reject(field, raw, "unparseable decimal")
	}
	return value, nil
}

func (g *Guard) reject(field, raw, reason string) error {
	g.logger.Error("data integrity violation, substituting safe default",
		zap.String("field", field),
		zap.String("raw", raw),
		zap.String("reason", reason))
	return errors.Wrapf(ErrValidation, "%s: %s", field, reason)
}
