package document_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"timberlot/internal/core/apperror"
	"timberlot/internal/core/id"
	"timberlot/internal/core/types"
	"timberlot/internal/domain"
	"timberlot/internal/domain/lots"
	"timberlot/internal/infrastructure/storage/postgres"
)

const (
	lotsTable        = "lots"
	lotPurchaseTable = "lot_purchases"
	lotExpenseTable  = "lot_expenses"
	lotSaleTable     = "lot_sales"
)

// LotRepo implements lots.Repository.
type LotRepo struct {
	*BaseDocumentRepo[*lots.Lot]
}

// NewLotRepo creates a new lot repository.
func NewLotRepo(txManager *postgres.TxManager) *LotRepo {
	return &LotRepo{
		BaseDocumentRepo: NewBaseDocumentRepo[*lots.Lot](
			txManager,
			lotsTable,
			postgres.ExtractDBColumns[lots.Lot](),
			func() *lots.Lot { return &lots.Lot{} },
		),
	}
}

// List retrieves lots with lot-specific filtering.
func (r *LotRepo) List(ctx context.Context, filter lots.ListFilter) (domain.ListResult[*lots.Lot], error) {
	result := domain.ListResult[*lots.Lot]{
		Limit:  filter.Limit,
		Offset: filter.Offset,
	}

	q := r.baseSelect(ctx)

	if !filter.IncludeDeleted {
		q = q.Where(squirrel.Eq{"deletion_mark": false})
	}

	if len(filter.Statuses) > 0 {
		q = q.Where(squirrel.Eq{"status": filter.Statuses})
	}

	if filter.ClientID != nil {
		// Lots carry no client reference themselves; the sale record does.
		q = q.Where(squirrel.Expr(
			"id IN (SELECT lot_id FROM "+lotSaleTable+" WHERE client_id = ? AND deletion_mark = false)",
			*filter.ClientID,
		))
	}

	if filter.From != nil {
		q = q.Where(squirrel.GtOrEq{"date": *filter.From})
	}

	if filter.To != nil {
		q = q.Where(squirrel.Lt{"date": *filter.To})
	}

	if filter.Search != "" {
		pattern := "%" + filter.Search + "%"
		q = q.Where(squirrel.Or{
			squirrel.ILike{"number": pattern},
			squirrel.ILike{"wood_type": pattern},
		})
	}

	countQ := r.Builder().Select("COUNT(*)").FromSelect(q, "sub")
	countSQL, countArgs, err := countQ.ToSql()
	if err != nil {
		return result, fmt.Errorf("build count: %w", err)
	}

	querier := r.Querier(ctx)
	if err := querier.QueryRow(ctx, countSQL, countArgs...).Scan(&result.TotalCount); err != nil {
		return result, fmt.Errorf("count: %w", err)
	}

	q = q.OrderBy("date DESC")

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
		return result, fmt.Errorf("list lots: %w", err)
	}

	return result, nil
}

var _ lots.Repository = (*LotRepo)(nil)

// LotRecordRepo implements lots.RecordRepository over the purchase, expense
// and sale record tables.
type LotRecordRepo struct {
	txManager    *postgres.TxManager
	builder      squirrel.StatementBuilderType
	purchaseCols []string
	expenseCols  []string
	saleCols     []string
}

// NewLotRecordRepo creates a new lot record repository.
func NewLotRecordRepo(txManager *postgres.TxManager) *LotRecordRepo {
	return &LotRecordRepo{
		txManager:    txManager,
		builder:      squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
		purchaseCols: postgres.ExtractDBColumns[lots.PurchaseRecord](),
		expenseCols:  postgres.ExtractDBColumns[lots.ExpenseRecord](),
		saleCols:     postgres.ExtractDBColumns[lots.SaleRecord](),
	}
}

func (r *LotRecordRepo) querier(ctx context.Context) postgres.Querier {
	return r.txManager.GetQuerier(ctx)
}

func (r *LotRecordRepo) insert(ctx context.Context, table string, cols []string, record any) error {
	data := postgres.StructToMap(record)

	filteredData := make(map[string]any, len(cols))
	for _, col := range cols {
		if val, ok := data[col]; ok {
			filteredData[col] = val
		}
	}

	q := r.builder.Insert(table).SetMap(filteredData)

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := r.querier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert %s: %w", table, err)
	}

	return nil
}

// CreatePurchase inserts the lot's acquisition record.
func (r *LotRecordRepo) CreatePurchase(ctx context.Context, record *lots.PurchaseRecord) error {
	return r.insert(ctx, lotPurchaseTable, r.purchaseCols, record)
}

// GetPurchase returns the live purchase record of a lot.
func (r *LotRecordRepo) GetPurchase(ctx context.Context, lotID id.ID) (*lots.PurchaseRecord, error) {
	q := r.builder.
		Select(r.purchaseCols...).
		From(lotPurchaseTable).
		Where(squirrel.Eq{"lot_id": lotID}).
		Where(squirrel.Eq{"deletion_mark": false}).
		Limit(1)

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	record := &lots.PurchaseRecord{}
	if err := pgxscan.Get(ctx, r.querier(ctx), record, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("lot purchase", lotID.String())
		}
		return nil, fmt.Errorf("get purchase: %w", err)
	}

	return record, nil
}

// CreateExpense inserts an expense record.
func (r *LotRecordRepo) CreateExpense(ctx context.Context, record *lots.ExpenseRecord) error {
	return r.insert(ctx, lotExpenseTable, r.expenseCols, record)
}

// ListExpenses returns the lot's live expenses, oldest first.
func (r *LotRecordRepo) ListExpenses(ctx context.Context, lotID id.ID) ([]*lots.ExpenseRecord, error) {
	q := r.builder.
		Select(r.expenseCols...).
		From(lotExpenseTable).
		Where(squirrel.Eq{"lot_id": lotID}).
		Where(squirrel.Eq{"deletion_mark": false}).
		OrderBy("date ASC", "created_at ASC")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var records []*lots.ExpenseRecord
	if err := pgxscan.Select(ctx, r.querier(ctx), &records, sql, args...); err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}

	return records, nil
}

// SumExpenses sums the locked RUB equivalents of the lot's live expenses.
func (r *LotRecordRepo) SumExpenses(ctx context.Context, lotID id.ID) (types.Money, error) {
	sql := `
		SELECT COALESCE(SUM(amount * exchange_rate), 0)
		FROM lot_expenses
		WHERE lot_id = $1 AND deletion_mark = false
	`

	var total types.Money
	if err := r.querier(ctx).QueryRow(ctx, sql, lotID).Scan(&total); err != nil {
		return types.Zero(), fmt.Errorf("sum expenses: %w", err)
	}

	return total, nil
}

// CreateSale inserts the lot's disposal record.
func (r *LotRecordRepo) CreateSale(ctx context.Context, record *lots.SaleRecord) error {
	return r.insert(ctx, lotSaleTable, r.saleCols, record)
}

// GetSale returns the live sale record of a lot.
func (r *LotRecordRepo) GetSale(ctx context.Context, lotID id.ID) (*lots.SaleRecord, error) {
	q := r.builder.
		Select(r.saleCols...).
		From(lotSaleTable).
		Where(squirrel.Eq{"lot_id": lotID}).
		Where(squirrel.Eq{"deletion_mark": false}).
		Limit(1)

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	record := &lots.SaleRecord{}
	if err := pgxscan.Get(ctx, r.querier(ctx), record, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("lot sale", lotID.String())
		}
		return nil, fmt.Errorf("get sale: %w", err)
	}

	return record, nil
}

// UpdateSale persists the sale record under an optimistic version check.
func (r *LotRecordRepo) UpdateSale(ctx context.Context, record *lots.SaleRecord) error {
	data := postgres.StructToMap(record)

	version, ok := data["version"].(int)
	if !ok {
		return fmt.Errorf("sale record has no 'version' field or it is not an int")
	}

	filteredData := make(map[string]any, len(r.saleCols))
	for _, col := range r.saleCols {
		if col == "id" || col == "created_at" || col == "created_by" {
			continue
		}
		if col == "version" || col == "updated_at" {
			continue
		}
		if val, ok := data[col]; ok {
			filteredData[col] = val
		}
	}

	q := r.builder.
		Update(lotSaleTable).
		SetMap(filteredData).
		Set("version", squirrel.Expr("version + 1")).
		Set("updated_at", squirrel.Expr("NOW()")).
		Where(squirrel.Eq{"id": record.ID}).
		Where(squirrel.Eq{"version": version})

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	result, err := r.querier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update sale: %w", err)
	}

	if result.RowsAffected() == 0 {
		return apperror.NewConcurrentModification(lotSaleTable, record.ID)
	}

	return nil
}

// SetDeletionMarkByLot cascades the mark to every record of a lot.
func (r *LotRecordRepo) SetDeletionMarkByLot(ctx context.Context, lotID id.ID, marked bool) error {
	querier := r.querier(ctx)

	for _, table := range []string{lotPurchaseTable, lotExpenseTable, lotSaleTable} {
		q := r.builder.
			Update(table).
			Set("deletion_mark", marked).
			Set("updated_at", squirrel.Expr("NOW()")).
			Set("version", squirrel.Expr("version + 1")).
			Where(squirrel.Eq{"lot_id": lotID})

		sql, args, err := q.ToSql()
		if err != nil {
			return fmt.Errorf("build cascade mark: %w", err)
		}

		if _, err := querier.Exec(ctx, sql, args...); err != nil {
			return fmt.Errorf("cascade mark %s: %w", table, err)
		}
	}

	return nil
}

var _ lots.RecordRepository = (*LotRecordRepo)(nil)
