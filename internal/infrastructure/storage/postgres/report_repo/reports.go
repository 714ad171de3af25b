// Package report_repo provides PostgreSQL implementations for report
// repositories. Reports are read-only: every figure is summed from source
// rows at query time.
package report_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"timberlot/internal/domain/reports"
	"timberlot/internal/infrastructure/storage/postgres"
)

// volumeExpr derives the lot volume in scaled m3 from board dimensions. A
// zero in any dimension means the lot is not fully measured: volume is 0.
const volumeExpr = `
	CASE WHEN thickness_mm > 0 AND width_mm > 0 AND length_m > 0 AND piece_count > 0
		THEN ROUND(thickness_mm * width_mm * length_m * piece_count / 100.0)::bigint
		ELSE 0
	END
`

// ReportRepo implements reports.Repository.
type ReportRepo struct {
	txManager *postgres.TxManager
	builder   squirrel.StatementBuilderType
}

// NewReportRepo creates a new report repository.
func NewReportRepo(txManager *postgres.TxManager) *ReportRepo {
	return &ReportRepo{
		txManager: txManager,
		builder:   squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

func (r *ReportRepo) querier(ctx context.Context) postgres.Querier {
	return r.txManager.GetQuerier(ctx)
}

// GetLotProfitability generates the per-lot profitability report. Aggregates
// are read from the lot rows, which the lot service keeps in sync with the
// underlying records.
func (r *ReportRepo) GetLotProfitability(ctx context.Context, filter reports.LotProfitabilityFilter) (*reports.LotProfitabilityReport, error) {
	base := r.builder.
		Select(
			"id AS lot_id",
			"number",
			"status",
			volumeExpr+" AS volume_m3",
			"purchase_cost",
			"expense_total",
			"revenue",
			"net_profit",
			"profit_percent",
		).
		From("lots")

	base = r.applyLotFilter(base, filter)

	// Grand totals over the full filtered set, not just the page.
	totalsQ := r.applyLotFilter(
		r.builder.Select(
			"COUNT(*) AS total_count",
			"COALESCE(SUM(purchase_cost), 0) AS purchase_cost",
			"COALESCE(SUM(expense_total), 0) AS expense_total",
			"COALESCE(SUM(revenue), 0) AS revenue",
			"COALESCE(SUM(net_profit), 0) AS net_profit",
		).From("lots"),
		filter,
	)

	totalsSQL, totalsArgs, err := totalsQ.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build totals: %w", err)
	}

	report := &reports.LotProfitabilityReport{}
	querier := r.querier(ctx)
	err = querier.QueryRow(ctx, totalsSQL, totalsArgs...).Scan(
		&report.TotalCount,
		&report.Totals.PurchaseCost,
		&report.Totals.ExpenseTotal,
		&report.Totals.Revenue,
		&report.Totals.NetProfit,
	)
	if err != nil {
		return nil, fmt.Errorf("lot profitability totals: %w", err)
	}

	base = base.OrderBy("date DESC")

	if filter.Limit > 0 {
		base = base.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		base = base.Offset(uint64(filter.Offset))
	}

	sql, args, err := base.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	if err := pgxscan.Select(ctx, querier, &report.Items, sql, args...); err != nil {
		return nil, fmt.Errorf("lot profitability: %w", err)
	}

	return report, nil
}

func (r *ReportRepo) applyLotFilter(q squirrel.SelectBuilder, filter reports.LotProfitabilityFilter) squirrel.SelectBuilder {
	if !filter.IncludeDeleted {
		q = q.Where(squirrel.Eq{"deletion_mark": false})
	}

	if len(filter.Statuses) > 0 {
		q = q.Where(squirrel.Eq{"status": filter.Statuses})
	}

	if filter.From != nil {
		q = q.Where(squirrel.GtOrEq{"date": *filter.From})
	}

	if filter.To != nil {
		q = q.Where(squirrel.Lt{"date": *filter.To})
	}

	return q
}

// GetVagonSummary generates the vagon summary report with the volume
// conservation chain: arrived - loss = available; available - accepted =
// remaining.
func (r *ReportRepo) GetVagonSummary(ctx context.Context, filter reports.VagonSummaryFilter) (*reports.VagonSummaryReport, error) {
	base := r.builder.
		Select(
			"id AS vagon_id",
			"number",
			"arrived_volume",
			"arrived_volume - arrival_loss_volume AS available_volume",
			"sent_volume",
			"accepted_volume",
			"arrived_volume - arrival_loss_volume - accepted_volume AS remaining_volume",
			"cost",
			"revenue",
			"net_profit",
		).
		From("vagons")

	base = r.applyVagonFilter(base, filter)

	totalsQ := r.applyVagonFilter(
		r.builder.Select(
			"COUNT(*) AS total_count",
			"COALESCE(SUM(revenue), 0) AS total_revenue",
			"COALESCE(SUM(net_profit), 0) AS total_profit",
		).From("vagons"),
		filter,
	)

	totalsSQL, totalsArgs, err := totalsQ.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build totals: %w", err)
	}

	report := &reports.VagonSummaryReport{}
	querier := r.querier(ctx)
	err = querier.QueryRow(ctx, totalsSQL, totalsArgs...).Scan(
		&report.TotalCount,
		&report.TotalRevenue,
		&report.TotalProfit,
	)
	if err != nil {
		return nil, fmt.Errorf("vagon summary totals: %w", err)
	}

	base = base.OrderBy("date DESC")

	if filter.Limit > 0 {
		base = base.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		base = base.Offset(uint64(filter.Offset))
	}

	sql, args, err := base.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	if err := pgxscan.Select(ctx, querier, &report.Items, sql, args...); err != nil {
		return nil, fmt.Errorf("vagon summary: %w", err)
	}

	return report, nil
}

func (r *ReportRepo) applyVagonFilter(q squirrel.SelectBuilder, filter reports.VagonSummaryFilter) squirrel.SelectBuilder {
	q = q.Where(squirrel.Eq{"deletion_mark": false})

	if filter.From != nil {
		q = q.Where(squirrel.GtOrEq{"date": *filter.From})
	}

	if filter.To != nil {
		q = q.Where(squirrel.Lt{"date": *filter.To})
	}

	return q
}

var _ reports.Repository = (*ReportRepo)(nil)
