// Package debts provides the client debt ledger: per-client, per-currency
// totals derived by replaying the full sale and payment history from
// scratch. Nothing here is incrementally accumulated, so the projection
// stays correct after edits and soft-deletes of the underlying records.
package debts

import (
	"context"

	"timberlot/internal/core/apperror"
	"timberlot/internal/core/currency"
	"timberlot/internal/core/entity"
	"timberlot/internal/core/id"
	"timberlot/internal/core/types"
)

// DeliveryKind classifies a delivery-service debt record.
type DeliveryKind string

const (
	DeliveryCharge  DeliveryKind = "charge"
	DeliveryPayment DeliveryKind = "payment"
)

// DeliveryRecord tracks the delivery-service debt of a client, which runs
// separately from the goods debt.
type DeliveryRecord struct {
	entity.Document

	ClientID id.ID `db:"client_id" json:"clientId"`

	Kind DeliveryKind `db:"kind" json:"kind"`

	currency.Amount
}

// NewDeliveryRecord creates a delivery charge or payment.
func NewDeliveryRecord(clientID id.ID, kind DeliveryKind, amount currency.Amount) *DeliveryRecord {
	return &DeliveryRecord{
		Document: entity.NewDocument(),
		ClientID: clientID,
		Kind:     kind,
		Amount:   amount,
	}
}

// Validate implements entity.Validatable.
func (r *DeliveryRecord) Validate(ctx context.Context) error {
	if err := r.Document.Validate(ctx); err != nil {
		return err
	}
	if id.IsNil(r.ClientID) {
		return apperror.NewValidation("delivery record must reference a client").
			WithDetail("field", "clientId")
	}
	if r.Kind != DeliveryCharge && r.Kind != DeliveryPayment {
		return apperror.NewValidation("invalid delivery record kind").
			WithDetail("field", "kind").
			WithDetail("value", string(r.Kind))
	}
	if !r.Value.IsPositive() {
		return apperror.NewValidation("amount must be positive").
			WithDetail("field", "amount")
	}
	return nil
}

// Projection is the replayed debt state of one client in one currency.
// Currencies are never netted against each other.
type Projection struct {
	ClientID id.ID             `json:"clientId"`
	Currency currency.Currency `json:"currency"`

	// ReceivedVolume is the accepted m3 total over the client's live
	// vagon sales.
	ReceivedVolume types.Volume `json:"receivedVolume"`

	TotalDebt types.Money `json:"totalDebt"`
	TotalPaid types.Money `json:"totalPaid"`

	// CurrentDebt = max(0, TotalDebt - TotalPaid).
	CurrentDebt types.Money `json:"currentDebt"`

	// Overpaid is reported separately, never folded into the debt.
	Overpaid types.Money `json:"overpaid"`

	// DeliveryDebt is the separate delivery-service track.
	DeliveryDebt types.Money `json:"deliveryDebt"`
}
