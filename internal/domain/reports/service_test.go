package reports

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"timberlot/internal/core/apperror"
	"timberlot/internal/core/types"
	"timberlot/internal/domain/debts"
	"timberlot/internal/domain/kassa"
)

type passthroughTx struct{}

func (passthroughTx) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func (passthroughTx) ReadOnly(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type stubRepo struct {
	lotReport   *LotProfitabilityReport
	vagonReport *VagonSummaryReport
	lastFilter  LotProfitabilityFilter
}

func (s *stubRepo) GetLotProfitability(_ context.Context, filter LotProfitabilityFilter) (*LotProfitabilityReport, error) {
	s.lastFilter = filter
	return s.lotReport, nil
}

func (s *stubRepo) GetVagonSummary(_ context.Context, _ VagonSummaryFilter) (*VagonSummaryReport, error) {
	return s.vagonReport, nil
}

// stubBalances replays a fixed ledger: entries before the pivot belong to
// the opening balance, the rest to the period.
type stubBalances struct {
	opening *kassa.Balance
	period  *kassa.Balance
}

func (s *stubBalances) Balance(_ context.Context, filter kassa.Filter) (*kassa.Balance, error) {
	if filter.From == nil {
		return s.opening, nil
	}
	return s.period, nil
}

type stubDebts struct {
	projections []*debts.Projection
}

func (s *stubDebts) DebtSummary(_ context.Context) ([]*debts.Projection, error) {
	return s.projections, nil
}

func TestGetKassaPeriod_ClosingIsOpeningPlusFlows(t *testing.T) {
	balances := &stubBalances{
		opening: &kassa.Balance{Balance: types.MustMoney("10000")},
		period: &kassa.Balance{
			Income:  types.MustMoney("5000"),
			Expense: types.MustMoney("2000"),
		},
	}
	svc := NewService(&stubRepo{}, balances, &stubDebts{}, passthroughTx{})

	from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	report, err := svc.GetKassaPeriod(context.Background(), KassaPeriodFilter{From: from, To: to})
	require.NoError(t, err)

	assert.Equal(t, "10000", report.OpeningBalance.String())
	assert.Equal(t, "5000", report.Income.String())
	assert.Equal(t, "2000", report.Expense.String())
	assert.Equal(t, "13000", report.ClosingBalance.String())
}

func TestGetKassaPeriod_RequiresBounds(t *testing.T) {
	svc := NewService(&stubRepo{}, &stubBalances{}, &stubDebts{}, passthroughTx{})

	_, err := svc.GetKassaPeriod(context.Background(), KassaPeriodFilter{})
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodeValidation))

	from := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	_, err = svc.GetKassaPeriod(context.Background(), KassaPeriodFilter{From: from, To: to})
	require.Error(t, err)
}

func TestGetLotProfitability_ClampsPagination(t *testing.T) {
	repo := &stubRepo{lotReport: &LotProfitabilityReport{}}
	svc := NewService(repo, &stubBalances{}, &stubDebts{}, passthroughTx{})

	_, err := svc.GetLotProfitability(context.Background(), LotProfitabilityFilter{Limit: 9999})
	require.NoError(t, err)
	assert.Equal(t, 1000, repo.lastFilter.Limit)

	_, err = svc.GetLotProfitability(context.Background(), LotProfitabilityFilter{})
	require.NoError(t, err)
	assert.Equal(t, 100, repo.lastFilter.Limit)
}
