package reports

import (
	"context"
	"fmt"

	"timberlot/internal/core/apperror"
	"timberlot/internal/core/tx"
	"timberlot/internal/domain/debts"
	"timberlot/internal/domain/kassa"
)

// BalanceReader is the slice of the kassa service the period report uses.
type BalanceReader interface {
	Balance(ctx context.Context, filter kassa.Filter) (*kassa.Balance, error)
}

// DebtReader is the slice of the debt service the summary report uses.
type DebtReader interface {
	DebtSummary(ctx context.Context) ([]*debts.Projection, error)
}

// Service provides report generation operations. Reports are side-effect
// free and run in read-only transactions.
type Service struct {
	repo     Repository
	balances BalanceReader
	debts    DebtReader
	txRO     tx.ReadOnlyManager
}

// NewService creates a new reports service.
func NewService(repo Repository, balances BalanceReader, debtReader DebtReader, txRO tx.ReadOnlyManager) *Service {
	return &Service{
		repo:     repo,
		balances: balances,
		debts:    debtReader,
		txRO:     txRO,
	}
}

// GetLotProfitability lists per-lot aggregates with grand totals.
func (s *Service) GetLotProfitability(ctx context.Context, filter LotProfitabilityFilter) (*LotProfitabilityReport, error) {
	if filter.Limit <= 0 {
		filter.Limit = 100
	}
	if filter.Limit > 1000 {
		filter.Limit = 1000
	}

	var report *LotProfitabilityReport
	err := s.txRO.ReadOnly(ctx, func(ctx context.Context) error {
		var err error
		report, err = s.repo.GetLotProfitability(ctx, filter)
		if err != nil {
			return fmt.Errorf("get lot profitability: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return report, nil
}

// GetVagonSummary lists per-vagon volume and profit aggregates.
func (s *Service) GetVagonSummary(ctx context.Context, filter VagonSummaryFilter) (*VagonSummaryReport, error) {
	if filter.Limit <= 0 {
		filter.Limit = 100
	}
	if filter.Limit > 1000 {
		filter.Limit = 1000
	}

	var report *VagonSummaryReport
	err := s.txRO.ReadOnly(ctx, func(ctx context.Context) error {
		var err error
		report, err = s.repo.GetVagonSummary(ctx, filter)
		if err != nil {
			return fmt.Errorf("get vagon summary: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return report, nil
}

// GetKassaPeriod derives how the cash balance moved over a period: the
// opening balance is the balance of everything before the period, the
// closing balance is opening plus the period's flows.
func (s *Service) GetKassaPeriod(ctx context.Context, filter KassaPeriodFilter) (*KassaPeriodReport, error) {
	if filter.From.IsZero() || filter.To.IsZero() {
		return nil, apperror.NewValidation("period bounds are required").
			WithDetail("field", "from/to")
	}
	if filter.From.After(filter.To) {
		return nil, apperror.NewValidation("period start must not be after period end")
	}

	var report *KassaPeriodReport
	err := s.txRO.ReadOnly(ctx, func(ctx context.Context) error {
		opening, err := s.balances.Balance(ctx, kassa.Filter{
			To:       &filter.From,
			Currency: filter.Currency,
		})
		if err != nil {
			return fmt.Errorf("derive opening balance: %w", err)
		}

		period, err := s.balances.Balance(ctx, kassa.Filter{
			From:     &filter.From,
			To:       &filter.To,
			Currency: filter.Currency,
		})
		if err != nil {
			return fmt.Errorf("derive period flows: %w", err)
		}

		report = &KassaPeriodReport{
			OpeningBalance: opening.Balance,
			Income:         period.Income,
			Expense:        period.Expense,
			ClosingBalance: opening.Balance.Add(period.Income).Sub(period.Expense),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return report, nil
}

// GetClientDebts replays every client/currency debt bucket.
func (s *Service) GetClientDebts(ctx context.Context) ([]*debts.Projection, error) {
	var summary []*debts.Projection
	err := s.txRO.ReadOnly(ctx, func(ctx context.Context) error {
		var err error
		summary, err = s.debts.DebtSummary(ctx)
		if err != nil {
			return fmt.Errorf("replay client debts: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return summary, nil
}
