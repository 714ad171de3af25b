package rates

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"timberlot/internal/core/apperror"
	"timberlot/internal/core/currency"
	"timberlot/internal/core/tx"
	"timberlot/internal/core/types"
	"timberlot/internal/domain"
	"timberlot/internal/domain/audit"
	"timberlot/pkg/logger"
)

// Locker is the narrow contract record-creating services depend on: obtain
// the rate to lock onto a new financial record. Satisfied by Service.
type Locker interface {
	// LockFor returns the conversion rate to lock for the given currency.
	// RUB locks at 1. Any other currency requires a current rate;
	// a missing rate is a NotFound, never a silent 1:1.
	LockFor(ctx context.Context, cur currency.Currency) (types.Money, error)
}

// Service provides business operations for the exchange-rate store.
type Service struct {
	repo      Repository
	txManager tx.Manager
	auditor   audit.Recorder
}

// NewService creates a new rate service.
func NewService(repo Repository, txManager tx.Manager, auditor audit.Recorder) *Service {
	if auditor == nil {
		auditor = audit.Nop{}
	}
	return &Service{
		repo:      repo,
		txManager: txManager,
		auditor:   auditor,
	}
}

var _ Locker = (*Service)(nil)

// SetRate installs a new current rate for a direction: the prior active rate
// is deactivated and the new one inserted in the same transaction, so there
// is never more or less than one current rate per direction.
func (s *Service) SetRate(ctx context.Context, direction currency.Direction, rate types.Money, source Source, actor string) (*Rate, error) {
	record := NewRate(direction, rate, source, actor)
	if err := record.Validate(ctx); err != nil {
		return nil, err
	}

	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.repo.DeactivateCurrent(ctx, direction); err != nil {
			return fmt.Errorf("deactivate current rate: %w", err)
		}
		if err := s.repo.Create(ctx, record); err != nil {
			return fmt.Errorf("create rate: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := s.auditor.Record(ctx, audit.Entry{
		EntityType: "ExchangeRate",
		EntityID:   record.ID,
		Action:     audit.ActionCreate,
		Changes:    record,
	}); err != nil {
		logger.Warn(ctx, "audit record failed", "error", err)
	}

	logger.Info(ctx, "exchange rate set",
		"direction", direction,
		"rate", rate.String(),
		"source", source,
		"set_by", actor)

	return record, nil
}

// GetCurrentRate returns the active rate record for a direction.
func (s *Service) GetCurrentRate(ctx context.Context, direction currency.Direction) (*Rate, error) {
	return s.repo.GetCurrent(ctx, direction)
}

// LockFor implements Locker.
func (s *Service) LockFor(ctx context.Context, cur currency.Currency) (types.Money, error) {
	if cur.IsReporting() {
		return decimal.NewFromInt(1), nil
	}

	direction, ok := currency.DirectionFor(cur)
	if !ok {
		return types.Money{}, apperror.NewValidation("no conversion direction for currency").
			WithDetail("currency", cur.String())
	}

	record, err := s.repo.GetCurrent(ctx, direction)
	if err != nil {
		return types.Money{}, err
	}

	return record.Rate, nil
}

// History returns past rates for a direction, newest first.
func (s *Service) History(ctx context.Context, direction currency.Direction, filter HistoryFilter) (domain.ListResult[*Rate], error) {
	if _, err := currency.ParseDirection(string(direction)); err != nil {
		return domain.ListResult[*Rate]{}, err
	}
	return s.repo.History(ctx, direction, filter)
}
