// Package rates provides the exchange-rate store. One rate per direction is
// current at any time; financial records lock the numeric value at creation
// and never consult the store again for that record.
package rates

import (
	"context"
	"time"

	"timberlot/internal/core/apperror"
	"timberlot/internal/core/currency"
	"timberlot/internal/core/entity"
	"timberlot/internal/core/types"
)

// Source identifies where a rate came from.
type Source string

const (
	SourceManual   Source = "manual"
	SourceAPI      Source = "api"
	SourceFallback Source = "fallback"
)

func isValidSource(s Source) bool {
	switch s {
	case SourceManual, SourceAPI, SourceFallback:
		return true
	}
	return false
}

// Rate is one exchange-rate record. At most one rate per direction is active.
type Rate struct {
	entity.BaseEntity

	Direction currency.Direction `db:"direction" json:"direction"`
	Rate      types.Money        `db:"rate" json:"rate"`
	Source    Source             `db:"source" json:"source"`

	// SetBy is the actor who set the rate (attribution)
	SetBy       string    `db:"set_by" json:"setBy"`
	EffectiveAt time.Time `db:"effective_at" json:"effectiveAt"`
	IsActive    bool      `db:"is_active" json:"isActive"`
}

// NewRate creates an active rate record effective now.
func NewRate(direction currency.Direction, rate types.Money, source Source, setBy string) *Rate {
	return &Rate{
		BaseEntity:  entity.NewBaseEntity(),
		Direction:   direction,
		Rate:        rate,
		Source:      source,
		SetBy:       setBy,
		EffectiveAt: time.Now().UTC(),
		IsActive:    true,
	}
}

// Validate implements entity.Validatable.
func (r *Rate) Validate(ctx context.Context) error {
	if _, err := currency.ParseDirection(string(r.Direction)); err != nil {
		return err
	}

	if !r.Rate.IsPositive() {
		return apperror.NewValidation("rate must be positive").
			WithDetail("field", "rate").
			WithDetail("value", r.Rate.String())
	}

	if !isValidSource(r.Source) {
		return apperror.NewValidation("invalid rate source").
			WithDetail("field", "source").
			WithDetail("value", string(r.Source))
	}

	return nil
}
