package dto

import (
	"time"

	"timberlot/internal/core/types"
	"timberlot/internal/domain/rates"
)

// --- Request DTOs ---

// SetRateRequest sets a new current exchange rate for a direction.
type SetRateRequest struct {
	Direction string      `json:"direction" binding:"required"`
	Rate      types.Money `json:"rate" binding:"required"`
	Source    string      `json:"source,omitempty"`
}

// --- Response DTOs ---

// RateResponse is the API representation of an exchange rate record.
type RateResponse struct {
	ID          string      `json:"id"`
	Direction   string      `json:"direction"`
	Rate        types.Money `json:"rate"`
	Source      string      `json:"source"`
	SetBy       string      `json:"setBy,omitempty"`
	EffectiveAt time.Time   `json:"effectiveAt"`
	IsActive    bool        `json:"isActive"`
}

// FromRate converts domain entity to response DTO.
func FromRate(r *rates.Rate) *RateResponse {
	return &RateResponse{
		ID:          r.ID.String(),
		Direction:   r.Direction.String(),
		Rate:        r.Rate,
		Source:      string(r.Source),
		SetBy:       r.SetBy,
		EffectiveAt: r.EffectiveAt,
		IsActive:    r.IsActive,
	}
}
