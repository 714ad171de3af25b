// Package currency provides the closed set of currencies the ledger operates
// in and the locked-rate MoneyAmount value object every financial record
// carries. Statuses and currencies are closed enums so invalid values are
// rejected at the type boundary, never persisted.
package currency

import (
	"timberlot/internal/core/apperror"
	"timberlot/internal/core/types"

	"github.com/shopspring/decimal"
)

// Currency is a closed enum of supported currencies.
// RUB is the reporting currency; all aggregates are kept in RUB-equivalent.
type Currency string

const (
	RUB Currency = "RUB"
	USD Currency = "USD"
)

// Parse validates a currency code. Anything outside the closed set is rejected.
func Parse(code string) (Currency, error) {
	switch Currency(code) {
	case RUB, USD:
		return Currency(code), nil
	}
	return "", apperror.NewValidation("unsupported currency").
		WithDetail("field", "currency").
		WithDetail("value", code)
}

// IsReporting reports whether this is the reporting currency (RUB).
func (c Currency) IsReporting() bool { return c == RUB }

func (c Currency) String() string { return string(c) }

// Direction is a conversion pair, e.g. USD->RUB.
type Direction string

const (
	USDToRUB Direction = "USD_RUB"
)

// DirectionFor returns the RUB conversion direction for a non-reporting
// currency. RUB itself has no direction.
func DirectionFor(c Currency) (Direction, bool) {
	switch c {
	case USD:
		return USDToRUB, true
	}
	return "", false
}

// ParseDirection validates a direction code.
func ParseDirection(s string) (Direction, error) {
	switch Direction(s) {
	case USDToRUB:
		return Direction(s), nil
	}
	return "", apperror.NewValidation("unsupported rate direction").
		WithDetail("field", "direction").
		WithDetail("value", s)
}

func (d Direction) String() string { return string(d) }

// Amount pairs a monetary value with its currency and the conversion rate
// locked at the moment the owning record was created. The RUB-equivalent is
// always Amount x Rate with the locked rate - it is never re-derived from a
// later "current" rate.
type Amount struct {
	Value    types.Money `db:"amount" json:"amount"`
	Currency Currency    `db:"currency" json:"currency"`

	// Rate is the locked conversion rate to RUB (1 for RUB itself).
	Rate types.Money `db:"exchange_rate" json:"exchangeRate"`
}

// NewAmount builds a locked amount. For RUB the rate is forced to 1; for any
// other currency the caller must supply the rate obtained from the rate store
// at creation time.
func NewAmount(value types.Money, cur Currency, rate types.Money) (Amount, error) {
	if value.IsNegative() {
		return Amount{}, apperror.NewValidation("amount must not be negative").
			WithDetail("field", "amount").
			WithDetail("value", value.String())
	}
	if cur.IsReporting() {
		rate = decimal.NewFromInt(1)
	} else if !rate.IsPositive() {
		return Amount{}, apperror.NewValidation("locked exchange rate must be positive").
			WithDetail("field", "exchangeRate").
			WithDetail("value", rate.String())
	}
	return Amount{Value: value, Currency: cur, Rate: rate}, nil
}

// RUBEquivalent returns the amount expressed in the reporting currency using
// the locked rate.
func (a Amount) RUBEquivalent() types.Money {
	return a.Value.Mul(a.Rate)
}

// IsZero reports whether the amount is zero.
func (a Amount) IsZero() bool { return a.Value.IsZero() }
