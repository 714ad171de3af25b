package debts

import (
	"context"

	"timberlot/internal/core/currency"
	"timberlot/internal/core/id"
	"timberlot/internal/domain/lots"
	"timberlot/internal/domain/vagons"
)

// ClientCurrency is one occupied (client, currency) bucket.
type ClientCurrency struct {
	ClientID id.ID             `db:"client_id"`
	Currency currency.Currency `db:"currency"`
}

// SourceReader loads the raw history the projection replays. Every method
// returns live (non-deleted) records only.
type SourceReader interface {
	VagonSalesByClient(ctx context.Context, clientID id.ID, cur currency.Currency) ([]*vagons.VagonSale, error)

	LotSalesByClient(ctx context.Context, clientID id.ID, cur currency.Currency) ([]*lots.SaleRecord, error)

	PaymentsByClient(ctx context.Context, clientID id.ID, cur currency.Currency) ([]*vagons.Payment, error)

	DeliveryRecordsByClient(ctx context.Context, clientID id.ID, cur currency.Currency) ([]*DeliveryRecord, error)

	// ClientCurrencyPairs returns every (client, currency) combination
	// that has at least one live sale, payment or delivery record.
	ClientCurrencyPairs(ctx context.Context) ([]ClientCurrency, error)
}

// DeliveryRepository persists delivery-service debt records.
type DeliveryRepository interface {
	Create(ctx context.Context, record *DeliveryRecord) error

	SetDeletionMark(ctx context.Context, recordID id.ID, marked bool) error
}
