package document_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"timberlot/internal/core/id"
	"timberlot/internal/core/types"
	"timberlot/internal/domain"
	"timberlot/internal/domain/vagons"
	"timberlot/internal/infrastructure/storage/postgres"
)

const (
	vagonsTable       = "vagons"
	vagonSaleTable    = "vagon_sales"
	vagonPaymentTable = "vagon_payments"
)

// VagonRepo implements vagons.Repository.
type VagonRepo struct {
	*BaseDocumentRepo[*vagons.Vagon]
}

// NewVagonRepo creates a new vagon repository.
func NewVagonRepo(txManager *postgres.TxManager) *VagonRepo {
	return &VagonRepo{
		BaseDocumentRepo: NewBaseDocumentRepo[*vagons.Vagon](
			txManager,
			vagonsTable,
			postgres.ExtractDBColumns[vagons.Vagon](),
			func() *vagons.Vagon { return &vagons.Vagon{} },
		),
	}
}

// List retrieves vagons with vagon-specific filtering.
func (r *VagonRepo) List(ctx context.Context, filter vagons.ListFilter) (domain.ListResult[*vagons.Vagon], error) {
	result := domain.ListResult[*vagons.Vagon]{
		Limit:  filter.Limit,
		Offset: filter.Offset,
	}

	q := r.baseSelect(ctx)

	if !filter.IncludeDeleted {
		q = q.Where(squirrel.Eq{"deletion_mark": false})
	}

	if filter.From != nil {
		q = q.Where(squirrel.GtOrEq{"date": *filter.From})
	}

	if filter.To != nil {
		q = q.Where(squirrel.Lt{"date": *filter.To})
	}

	if filter.Search != "" {
		q = q.Where(squirrel.ILike{"number": "%" + filter.Search + "%"})
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
		return result, fmt.Errorf("list vagons: %w", err)
	}

	return result, nil
}

var _ vagons.Repository = (*VagonRepo)(nil)

// VagonSaleRepo implements vagons.SaleRepository over the sale and payment
// tables.
type VagonSaleRepo struct {
	*BaseDocumentRepo[*vagons.VagonSale]
	paymentCols []string
}

// NewVagonSaleRepo creates a new vagon sale repository.
func NewVagonSaleRepo(txManager *postgres.TxManager) *VagonSaleRepo {
	return &VagonSaleRepo{
		BaseDocumentRepo: NewBaseDocumentRepo[*vagons.VagonSale](
			txManager,
			vagonSaleTable,
			postgres.ExtractDBColumns[vagons.VagonSale](),
			func() *vagons.VagonSale { return &vagons.VagonSale{} },
		),
		paymentCols: postgres.ExtractDBColumns[vagons.Payment](),
	}
}

// ListByVagon returns the vagon's live sales, oldest first.
func (r *VagonSaleRepo) ListByVagon(ctx context.Context, vagonID id.ID) ([]*vagons.VagonSale, error) {
	q := r.baseSelect(ctx).
		Where(squirrel.Eq{"vagon_id": vagonID}).
		Where(squirrel.Eq{"deletion_mark": false}).
		OrderBy("date ASC", "created_at ASC")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var sales []*vagons.VagonSale
	if err := pgxscan.Select(ctx, r.Querier(ctx), &sales, sql, args...); err != nil {
		return nil, fmt.Errorf("list sales: %w", err)
	}

	return sales, nil
}

// SumByVagon aggregates the vagon's live sales in the database. Revenue is
// the sum of locked RUB equivalents (amount x rate fixed per record).
func (r *VagonSaleRepo) SumByVagon(ctx context.Context, vagonID id.ID) (vagons.SaleTotals, error) {
	sql := `
		SELECT
			COALESCE(SUM(sent_volume), 0) AS sent,
			COALESCE(SUM(accepted_volume), 0) AS accepted,
			COALESCE(SUM(amount * exchange_rate), 0) AS revenue
		FROM vagon_sales
		WHERE vagon_id = $1 AND deletion_mark = false
	`

	var sentScaled, acceptedScaled int64
	var revenue types.Money
	err := r.Querier(ctx).QueryRow(ctx, sql, vagonID).Scan(&sentScaled, &acceptedScaled, &revenue)
	if err != nil {
		return vagons.SaleTotals{}, fmt.Errorf("sum sales: %w", err)
	}

	return vagons.SaleTotals{
		Sent:     types.NewVolumeFromInt64Scaled(sentScaled),
		Accepted: types.NewVolumeFromInt64Scaled(acceptedScaled),
		Revenue:  revenue,
	}, nil
}

// CreatePayment inserts a payment record.
func (r *VagonSaleRepo) CreatePayment(ctx context.Context, payment *vagons.Payment) error {
	data := postgres.StructToMap(payment)

	filteredData := make(map[string]any, len(r.paymentCols))
	for _, col := range r.paymentCols {
		if val, ok := data[col]; ok {
			filteredData[col] = val
		}
	}

	q := r.Builder().Insert(vagonPaymentTable).SetMap(filteredData)

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := r.Querier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert payment: %w", err)
	}

	return nil
}

// ListPayments returns the live payments of a sale, oldest first.
func (r *VagonSaleRepo) ListPayments(ctx context.Context, saleID id.ID) ([]*vagons.Payment, error) {
	q := r.Builder().
		Select(r.paymentCols...).
		From(vagonPaymentTable).
		Where(squirrel.Eq{"vagon_sale_id": saleID}).
		Where(squirrel.Eq{"deletion_mark": false}).
		OrderBy("date ASC", "created_at ASC")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var payments []*vagons.Payment
	if err := pgxscan.Select(ctx, r.Querier(ctx), &payments, sql, args...); err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}

	return payments, nil
}

// SumPayments returns the live payment total of a sale in the sale's
// currency.
func (r *VagonSaleRepo) SumPayments(ctx context.Context, saleID id.ID) (types.Money, error) {
	sql := `
		SELECT COALESCE(SUM(amount), 0)
		FROM vagon_payments
		WHERE vagon_sale_id = $1 AND deletion_mark = false
	`

	var total types.Money
	if err := r.Querier(ctx).QueryRow(ctx, sql, saleID).Scan(&total); err != nil {
		return types.Zero(), fmt.Errorf("sum payments: %w", err)
	}

	return total, nil
}

var _ vagons.SaleRepository = (*VagonSaleRepo)(nil)
