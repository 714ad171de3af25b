// Package register_repo provides PostgreSQL implementations for the ledger's
// register repositories: the cash journal, exchange rates and the debt
// projection sources.
package register_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"timberlot/internal/core/apperror"
	"timberlot/internal/core/id"
	"timberlot/internal/domain"
	"timberlot/internal/domain/kassa"
	"timberlot/internal/infrastructure/storage/postgres"
)

const kassaTable = "kassa_entries"

// KassaRepo implements kassa.Repository. The journal is append-only: there
// is deliberately no Update.
type KassaRepo struct {
	txManager  *postgres.TxManager
	builder    squirrel.StatementBuilderType
	selectCols []string
}

// NewKassaRepo creates a new cash ledger repository.
func NewKassaRepo(txManager *postgres.TxManager) *KassaRepo {
	return &KassaRepo{
		txManager:  txManager,
		builder:    squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
		selectCols: postgres.ExtractDBColumns[kassa.Entry](),
	}
}

func (r *KassaRepo) querier(ctx context.Context) postgres.Querier {
	return r.txManager.GetQuerier(ctx)
}

// Append inserts a new entry.
func (r *KassaRepo) Append(ctx context.Context, entry *kassa.Entry) error {
	data := postgres.StructToMap(entry)

	filteredData := make(map[string]any, len(r.selectCols))
	for _, col := range r.selectCols {
		if val, ok := data[col]; ok {
			filteredData[col] = val
		}
	}

	q := r.builder.Insert(kassaTable).SetMap(filteredData)

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := r.querier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert kassa entry: %w", err)
	}

	return nil
}

// GetByID retrieves an entry by ID.
func (r *KassaRepo) GetByID(ctx context.Context, entryID id.ID) (*kassa.Entry, error) {
	q := r.builder.
		Select(r.selectCols...).
		From(kassaTable).
		Where(squirrel.Eq{"id": entryID})

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	entry := &kassa.Entry{}
	if err := pgxscan.Get(ctx, r.querier(ctx), entry, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("kassa entry", entryID.String())
		}
		return nil, fmt.Errorf("get kassa entry: %w", err)
	}

	return entry, nil
}

// applyFilter translates a kassa.Filter into WHERE clauses. From is
// inclusive, To exclusive.
func (r *KassaRepo) applyFilter(q squirrel.SelectBuilder, filter kassa.Filter) squirrel.SelectBuilder {
	if !filter.IncludeDeleted {
		q = q.Where(squirrel.Eq{"deletion_mark": false})
	}

	if filter.From != nil {
		q = q.Where(squirrel.GtOrEq{"date": *filter.From})
	}

	if filter.To != nil {
		q = q.Where(squirrel.Lt{"date": *filter.To})
	}

	if len(filter.Types) > 0 {
		q = q.Where(squirrel.Eq{"type": filter.Types})
	}

	if filter.Currency != nil {
		q = q.Where(squirrel.Eq{"currency": *filter.Currency})
	}

	return q
}

// List retrieves entries matching the filter, newest first.
func (r *KassaRepo) List(ctx context.Context, filter kassa.Filter) (domain.ListResult[*kassa.Entry], error) {
	result := domain.ListResult[*kassa.Entry]{
		Limit:  filter.Limit,
		Offset: filter.Offset,
	}

	q := r.applyFilter(r.builder.Select(r.selectCols...).From(kassaTable), filter)

	countQ := r.builder.Select("COUNT(*)").FromSelect(q, "sub")
	countSQL, countArgs, err := countQ.ToSql()
	if err != nil {
		return result, fmt.Errorf("build count: %w", err)
	}

	querier := r.querier(ctx)
	if err := querier.QueryRow(ctx, countSQL, countArgs...).Scan(&result.TotalCount); err != nil {
		return result, fmt.Errorf("count: %w", err)
	}

	q = q.OrderBy("date DESC", "created_at DESC")

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
		return result, fmt.Errorf("list kassa entries: %w", err)
	}

	return result, nil
}

// SetDeletionMark soft-deletes or restores an entry.
func (r *KassaRepo) SetDeletionMark(ctx context.Context, entryID id.ID, marked bool) error {
	q := r.builder.
		Update(kassaTable).
		Set("deletion_mark", marked).
		Set("updated_at", squirrel.Expr("NOW()")).
		Set("version", squirrel.Expr("version + 1")).
		Where(squirrel.Eq{"id": entryID})

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build set deletion mark: %w", err)
	}

	result, err := r.querier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("set deletion mark: %w", err)
	}

	if result.RowsAffected() == 0 {
		return apperror.NewNotFound("kassa entry", entryID.String())
	}

	return nil
}

// Totals aggregates live entries per (type, currency). Deleted entries never
// contribute regardless of filter.
func (r *KassaRepo) Totals(ctx context.Context, filter kassa.Filter) ([]kassa.TotalRow, error) {
	filter.IncludeDeleted = false

	q := r.applyFilter(
		r.builder.Select(
			"type",
			"currency",
			"COALESCE(SUM(amount), 0) AS native",
			"COALESCE(SUM(rub_equivalent), 0) AS rub",
		).From(kassaTable),
		filter,
	).GroupBy("type", "currency").
		OrderBy("type", "currency")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build totals: %w", err)
	}

	var rows []kassa.TotalRow
	if err := pgxscan.Select(ctx, r.querier(ctx), &rows, sql, args...); err != nil {
		return nil, fmt.Errorf("kassa totals: %w", err)
	}

	return rows, nil
}

var _ kassa.Repository = (*KassaRepo)(nil)
