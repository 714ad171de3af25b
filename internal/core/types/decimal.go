// Package types provides common type aliases and utilities.
package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Money represents a monetary value with full precision.
// Uses decimal.Decimal to avoid floating-point errors.
type Money = decimal.Decimal

// NewMoney creates a Money value from a float.
// WARNING: Use NewMoneyFromString for precise values.
func NewMoney(f float64) Money {
	return decimal.NewFromFloat(f)
}

// NewMoneyFromString creates a Money value from a string.
// This is the preferred method for monetary values.
func NewMoneyFromString(s string) (Money, error) {
	return decimal.NewFromString(s)
}

// MustMoney creates a Money value from a string, panics on error.
// Use only for constants.
func MustMoney(s string) Money {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

// Zero returns zero Money value.
func Zero() Money {
	return decimal.Zero
}

// MoneyEpsilon is the rounding tolerance for aggregate consistency checks:
// one kopeck. A recomputed aggregate that differs from its stored value by
// more than this is a data-integrity signal, not rounding noise.
var MoneyEpsilon = MustMoney("0.01")

// WithinEpsilon reports whether two amounts agree up to MoneyEpsilon.
func WithinEpsilon(a, b Money) bool {
	return a.Sub(b).Abs().LessThanOrEqual(MoneyEpsilon)
}

// Volume is a fixed-point cubic-metre quantity with 4 decimal places (scale = 1e4).
//
// Rationale:
// - Matches Postgres NUMERIC(15,4) semantics without floating point errors
// - Easy to store as BIGINT in DB (scaled integer)
// - JSON remains a number with up to 4 decimals
type Volume int64

const VolumeScale int64 = 10_000

func NewVolumeFromFloat64(v float64) Volume {
	return Volume(math.Round(v * float64(VolumeScale)))
}

func NewVolumeFromInt64Scaled(v int64) Volume { return Volume(v) }

func (q Volume) Int64Scaled() int64 { return int64(q) }

func (q Volume) Float64() float64 { return float64(q) / float64(VolumeScale) }

func (q Volume) IsZero() bool { return q == 0 }

func (q Volume) IsPositive() bool { return q > 0 }

func (q Volume) IsNegative() bool { return q < 0 }

func (q Volume) Neg() Volume { return -q }

func (q Volume) Abs() Volume {
	if q < 0 {
		return -q
	}
	return q
}

// Sub returns q minus other.
func (q Volume) Sub(other Volume) Volume { return q - other }

// Add returns q plus other.
func (q Volume) Add(other Volume) Volume { return q + other }

// Decimal converts the volume to a decimal for money arithmetic
// (price per m3 x volume).
func (q Volume) Decimal() decimal.Decimal {
	return decimal.New(int64(q), -4)
}

// String returns a decimal string with 4 fractional digits.
func (q Volume) String() string {
	neg := q < 0
	v := q
	if neg {
		v = -v
	}
	intPart := int64(v) / VolumeScale
	frac := int64(v) % VolumeScale
	if neg {
		return fmt.Sprintf("-%d.%04d", intPart, frac)
	}
	return fmt.Sprintf("%d.%04d", intPart, frac)
}

// MarshalJSON encodes Volume as JSON number (not string), preserving 4 digits.
func (q Volume) MarshalJSON() ([]byte, error) {
	return []byte(q.String()), nil
}

// UnmarshalJSON accepts either a JSON number or string and parses to fixed-point (4 digits).
func (q *Volume) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*q = 0
		return nil
	}

	// If string, unquote first.
	if len(data) >= 2 && data[0] == '"' && data[len(data)-1] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		parsed, err := parseVolumeString(s)
		if err != nil {
			return err
		}
		*q = parsed
		return nil
	}

	// Otherwise treat as number token.
	parsed, err := parseVolumeString(string(data))
	if err != nil {
		return err
	}
	*q = parsed
	return nil
}

func parseVolumeString(s string) (Volume, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty volume")
	}

	// Exponent form falls back to float parsing: JSON encoders are free to
	// emit numbers like 1.5e2.
	if strings.ContainsAny(s, "eE") {
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, fmt.Errorf("parse volume: %w", err)
		}
		return NewVolumeFromFloat64(f), nil
	}

	sign := int64(1)
	if strings.HasPrefix(s, "-") {
		sign = -1
		s = strings.TrimPrefix(s, "-")
	} else if strings.HasPrefix(s, "+") {
		s = strings.TrimPrefix(s, "+")
	}

	parts := strings.SplitN(s, ".", 2)
	intPartStr := parts[0]
	fracStr := ""
	if len(parts) == 2 {
		fracStr = parts[1]
	}

	if intPartStr == "" {
		intPartStr = "0"
	}
	intPart, err := strconv.ParseInt(intPartStr, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse volume integer part: %w", err)
	}

	// Normalize fractional part to 4 digits (pad right, truncate extra digits).
	if len(fracStr) > 4 {
		fracStr = fracStr[:4]
	}
	for len(fracStr) < 4 {
		fracStr += "0"
	}
	frac := int64(0)
	if fracStr != "" {
		frac, err = strconv.ParseInt(fracStr, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("parse volume fractional part: %w", err)
		}
	}

	return Volume(sign * (intPart*VolumeScale + frac)), nil
}
