package register_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"timberlot/internal/core/apperror"
	"timberlot/internal/core/currency"
	"timberlot/internal/core/id"
	"timberlot/internal/domain/debts"
	"timberlot/internal/domain/lots"
	"timberlot/internal/domain/vagons"
	"timberlot/internal/infrastructure/storage/postgres"
)

const deliveryTable = "delivery_records"

// DebtSourceRepo implements debts.SourceReader and debts.DeliveryRepository.
// The debt projection replays raw history, so every reader here returns live
// records only.
type DebtSourceRepo struct {
	txManager    *postgres.TxManager
	builder      squirrel.StatementBuilderType
	saleCols     []string
	lotSaleCols  []string
	paymentCols  []string
	deliveryCols []string
}

// NewDebtSourceRepo creates a new debt source repository.
func NewDebtSourceRepo(txManager *postgres.TxManager) *DebtSourceRepo {
	return &DebtSourceRepo{
		txManager:    txManager,
		builder:      squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
		saleCols:     postgres.ExtractDBColumns[vagons.VagonSale](),
		lotSaleCols:  postgres.ExtractDBColumns[lots.SaleRecord](),
		paymentCols:  postgres.ExtractDBColumns[vagons.Payment](),
		deliveryCols: postgres.ExtractDBColumns[debts.DeliveryRecord](),
	}
}

func (r *DebtSourceRepo) querier(ctx context.Context) postgres.Querier {
	return r.txManager.GetQuerier(ctx)
}

// VagonSalesByClient returns the client's live vagon sales in one currency.
func (r *DebtSourceRepo) VagonSalesByClient(ctx context.Context, clientID id.ID, cur currency.Currency) ([]*vagons.VagonSale, error) {
	q := r.builder.
		Select(r.saleCols...).
		From("vagon_sales").
		Where(squirrel.Eq{"client_id": clientID}).
		Where(squirrel.Eq{"currency": cur}).
		Where(squirrel.Eq{"deletion_mark": false}).
		OrderBy("date ASC", "created_at ASC")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var sales []*vagons.VagonSale
	if err := pgxscan.Select(ctx, r.querier(ctx), &sales, sql, args...); err != nil {
		return nil, fmt.Errorf("vagon sales by client: %w", err)
	}

	return sales, nil
}

// LotSalesByClient returns the client's live lot sales in one currency.
func (r *DebtSourceRepo) LotSalesByClient(ctx context.Context, clientID id.ID, cur currency.Currency) ([]*lots.SaleRecord, error) {
	q := r.builder.
		Select(r.lotSaleCols...).
		From("lot_sales").
		Where(squirrel.Eq{"client_id": clientID}).
		Where(squirrel.Eq{"currency": cur}).
		Where(squirrel.Eq{"deletion_mark": false}).
		OrderBy("date ASC", "created_at ASC")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var sales []*lots.SaleRecord
	if err := pgxscan.Select(ctx, r.querier(ctx), &sales, sql, args...); err != nil {
		return nil, fmt.Errorf("lot sales by client: %w", err)
	}

	return sales, nil
}

// PaymentsByClient returns the client's live payments in one currency.
func (r *DebtSourceRepo) PaymentsByClient(ctx context.Context, clientID id.ID, cur currency.Currency) ([]*vagons.Payment, error) {
	q := r.builder.
		Select(r.paymentCols...).
		From("vagon_payments").
		Where(squirrel.Eq{"client_id": clientID}).
		Where(squirrel.Eq{"currency": cur}).
		Where(squirrel.Eq{"deletion_mark": false}).
		OrderBy("date ASC", "created_at ASC")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var payments []*vagons.Payment
	if err := pgxscan.Select(ctx, r.querier(ctx), &payments, sql, args...); err != nil {
		return nil, fmt.Errorf("payments by client: %w", err)
	}

	return payments, nil
}

// DeliveryRecordsByClient returns the client's live delivery records in one
// currency.
func (r *DebtSourceRepo) DeliveryRecordsByClient(ctx context.Context, clientID id.ID, cur currency.Currency) ([]*debts.DeliveryRecord, error) {
	q := r.builder.
		Select(r.deliveryCols...).
		From(deliveryTable).
		Where(squirrel.Eq{"client_id": clientID}).
		Where(squirrel.Eq{"currency": cur}).
		Where(squirrel.Eq{"deletion_mark": false}).
		OrderBy("date ASC", "created_at ASC")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var records []*debts.DeliveryRecord
	if err := pgxscan.Select(ctx, r.querier(ctx), &records, sql, args...); err != nil {
		return nil, fmt.Errorf("delivery records by client: %w", err)
	}

	return records, nil
}

// ClientCurrencyPairs returns every (client, currency) combination with at
// least one live sale, payment or delivery record.
func (r *DebtSourceRepo) ClientCurrencyPairs(ctx context.Context) ([]debts.ClientCurrency, error) {
	sql := `
		SELECT client_id, currency FROM vagon_sales
		WHERE deletion_mark = false
		UNION
		SELECT client_id, currency FROM lot_sales
		WHERE deletion_mark = false AND client_id IS NOT NULL
		UNION
		SELECT client_id, currency FROM vagon_payments
		WHERE deletion_mark = false
		UNION
		SELECT client_id, currency FROM delivery_records
		WHERE deletion_mark = false
		ORDER BY client_id, currency
	`

	var pairs []debts.ClientCurrency
	if err := pgxscan.Select(ctx, r.querier(ctx), &pairs, sql); err != nil {
		return nil, fmt.Errorf("client currency pairs: %w", err)
	}

	return pairs, nil
}

// Create inserts a delivery record.
func (r *DebtSourceRepo) Create(ctx context.Context, record *debts.DeliveryRecord) error {
	data := postgres.StructToMap(record)

	filteredData := make(map[string]any, len(r.deliveryCols))
	for _, col := range r.deliveryCols {
		if val, ok := data[col]; ok {
			filteredData[col] = val
		}
	}

	q := r.builder.Insert(deliveryTable).SetMap(filteredData)

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := r.querier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert delivery record: %w", err)
	}

	return nil
}

// SetDeletionMark soft-deletes or restores a delivery record.
func (r *DebtSourceRepo) SetDeletionMark(ctx context.Context, recordID id.ID, marked bool) error {
	q := r.builder.
		Update(deliveryTable).
		Set("deletion_mark", marked).
		Set("updated_at", squirrel.Expr("NOW()")).
		Set("version", squirrel.Expr("version + 1")).
		Where(squirrel.Eq{"id": recordID})

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build set deletion mark: %w", err)
	}

	result, err := r.querier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("set deletion mark: %w", err)
	}

	if result.RowsAffected() == 0 {
		return apperror.NewNotFound("delivery record", recordID.String())
	}

	return nil
}

var (
	_ debts.SourceReader       = (*DebtSourceRepo)(nil)
	_ debts.DeliveryRepository = (*DebtSourceRepo)(nil)
)
