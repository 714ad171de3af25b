package register_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"timberlot/internal/core/apperror"
	"timberlot/internal/core/currency"
	"timberlot/internal/domain"
	"timberlot/internal/domain/rates"
	"timberlot/internal/infrastructure/storage/postgres"
)

const ratesTable = "exchange_rates"

// RateRepo implements rates.Repository.
type RateRepo struct {
	txManager  *postgres.TxManager
	builder    squirrel.StatementBuilderType
	selectCols []string
}

// NewRateRepo creates a new exchange rate repository.
func NewRateRepo(txManager *postgres.TxManager) *RateRepo {
	return &RateRepo{
		txManager:  txManager,
		builder:    squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
		selectCols: postgres.ExtractDBColumns[rates.Rate](),
	}
}

func (r *RateRepo) querier(ctx context.Context) postgres.Querier {
	return r.txManager.GetQuerier(ctx)
}

// Create inserts a new rate record.
func (r *RateRepo) Create(ctx context.Context, rate *rates.Rate) error {
	data := postgres.StructToMap(rate)

	filteredData := make(map[string]any, len(r.selectCols))
	for _, col := range r.selectCols {
		if val, ok := data[col]; ok {
			filteredData[col] = val
		}
	}

	q := r.builder.Insert(ratesTable).SetMap(filteredData)

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := r.querier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert rate: %w", err)
	}

	return nil
}

// GetCurrent returns the active rate for a direction. A direction that was
// never set yields NotFound: callers fail closed, never default to 1:1.
func (r *RateRepo) GetCurrent(ctx context.Context, direction currency.Direction) (*rates.Rate, error) {
	q := r.builder.
		Select(r.selectCols...).
		From(ratesTable).
		Where(squirrel.Eq{"direction": direction}).
		Where(squirrel.Eq{"is_active": true}).
		Where(squirrel.Eq{"deletion_mark": false}).
		OrderBy("effective_at DESC").
		Limit(1)

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	rate := &rates.Rate{}
	if err := pgxscan.Get(ctx, r.querier(ctx), rate, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("exchange rate", string(direction))
		}
		return nil, fmt.Errorf("get current rate: %w", err)
	}

	return rate, nil
}

// DeactivateCurrent clears the is_active flag on the direction's current
// rate. No-op when the direction has no active rate.
func (r *RateRepo) DeactivateCurrent(ctx context.Context, direction currency.Direction) error {
	q := r.builder.
		Update(ratesTable).
		Set("is_active", false).
		Set("version", squirrel.Expr("version + 1")).
		Where(squirrel.Eq{"direction": direction}).
		Where(squirrel.Eq{"is_active": true})

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build deactivate: %w", err)
	}

	if _, err := r.querier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("deactivate rate: %w", err)
	}

	return nil
}

// History returns past rates for a direction, newest first.
func (r *RateRepo) History(ctx context.Context, direction currency.Direction, filter rates.HistoryFilter) (domain.ListResult[*rates.Rate], error) {
	result := domain.ListResult[*rates.Rate]{
		Limit:  filter.Limit,
		Offset: filter.Offset,
	}

	q := r.builder.
		Select(r.selectCols...).
		From(ratesTable).
		Where(squirrel.Eq{"direction": direction}).
		Where(squirrel.Eq{"deletion_mark": false})

	if filter.From != nil {
		q = q.Where(squirrel.GtOrEq{"effective_at": *filter.From})
	}

	if filter.To != nil {
		q = q.Where(squirrel.Lt{"effective_at": *filter.To})
	}

	countQ := r.builder.Select("COUNT(*)").FromSelect(q, "sub")
	countSQL, countArgs, err := countQ.ToSql()
	if err != nil {
		return result, fmt.Errorf("build count: %w", err)
	}

	querier := r.querier(ctx)
	if err := querier.QueryRow(ctx, countSQL, countArgs...).Scan(&result.TotalCount); err != nil {
		return result, fmt.Errorf("count: %w", err)
	}

	q = q.OrderBy("effective_at DESC")

	if filter.Limit > 0 {
		q = q.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		q = q.Offset(uint64(filter.Offset))
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return result, fmt.Errorf("build query: %w", err)
	}

	if err := pgxscan.Select(ctx, querier, &result.Items, sql, args...); err != nil {
		return result, fmt.Errorf("rate history: %w", err)
	}

	return result, nil
}

var _ rates.Repository = (*RateRepo)(nil)
