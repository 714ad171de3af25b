package rates

import (
	"context"
	"time"

	"timberlot/internal/core/currency"
	"timberlot/internal/domain"
)

// Repository defines persistence operations for exchange rates.
type Repository interface {
	// Create inserts a new rate record
	Create(ctx context.Context, rate *Rate) error

	// GetCurrent returns the active rate for a direction.
	// Returns apperror.NewNotFound when no rate has ever been set -
	// dependent operations fail closed, never default to 1:1.
	GetCurrent(ctx context.Context, direction currency.Direction) (*Rate, error)

	// DeactivateCurrent clears the is_active flag on the current rate.
	// No-op when the direction has no active rate.
	DeactivateCurrent(ctx context.Context, direction currency.Direction) error

	// History returns past rates for a direction, newest first.
	History(ctx context.Context, direction currency.Direction, filter HistoryFilter) (domain.ListResult[*Rate], error)
}

// HistoryFilter narrows rate history queries.
type HistoryFilter struct {
	From   *time.Time
	To     *time.Time
	Limit  int
	Offset int
}
