package lots

import (
	"context"

	"timberlot/internal/core/apperror"
	"timberlot/internal/core/currency"
	"timberlot/internal/core/entity"
	"timberlot/internal/core/id"
	"timberlot/internal/core/types"
)

// ExpenseType classifies an expense record.
type ExpenseType string

const (
	ExpenseTransportIn  ExpenseType = "transport_in"
	ExpenseTransportOut ExpenseType = "transport_out"
	ExpenseCustomsIn    ExpenseType = "customs_in"
	ExpenseCustomsOut   ExpenseType = "customs_out"
	ExpenseLoading      ExpenseType = "loading"
	ExpenseStorage      ExpenseType = "storage"
	ExpenseLabor        ExpenseType = "labor"
	ExpenseProcessing   ExpenseType = "processing"
	ExpenseOther        ExpenseType = "other"
)

func isValidExpenseType(t ExpenseType) bool {
	switch t {
	case ExpenseTransportIn, ExpenseTransportOut, ExpenseCustomsIn, ExpenseCustomsOut,
		ExpenseLoading, ExpenseStorage, ExpenseLabor, ExpenseProcessing, ExpenseOther:
		return true
	}
	return false
}

// PaymentStatus tracks whether a purchase or sale has been settled.
type PaymentStatus string

const (
	PaymentUnpaid PaymentStatus = "unpaid"
	PaymentPaid   PaymentStatus = "paid"
)

func isValidPaymentStatus(s PaymentStatus) bool {
	return s == PaymentUnpaid || s == PaymentPaid
}

// PurchaseRecord is the 1:1 acquisition record of a lot. Its rate is locked
// at creation; the lot's purchase cost is this record's RUB equivalent.
type PurchaseRecord struct {
	entity.Document

	LotID id.ID `db:"lot_id" json:"lotId"`

	currency.Amount

	// UnitPrice is the per-m3 price when the purchase was priced by volume;
	// the total Value is UnitPrice x lot volume. Zero for flat-total deals.
	UnitPrice types.Money `db:"unit_price" json:"unitPrice"`

	Supplier string `db:"supplier" json:"supplier,omitempty"`
	Location string `db:"location" json:"location,omitempty"`

	PaymentStatus PaymentStatus `db:"payment_status" json:"paymentStatus"`
}

// NewPurchaseRecord links an acquisition to its lot. The purchase cash leaves
// the kassa at creation, so the record starts out paid.
func NewPurchaseRecord(lotID id.ID, amount currency.Amount) *PurchaseRecord {
	return &PurchaseRecord{
		Document:      entity.NewDocument(),
		LotID:         lotID,
		Amount:        amount,
		UnitPrice:     types.Zero(),
		PaymentStatus: PaymentPaid,
	}
}

// Validate implements entity.Validatable.
func (r *PurchaseRecord) Validate(ctx context.Context) error {
	if err := r.Document.Validate(ctx); err != nil {
		return err
	}
	if id.IsNil(r.LotID) {
		return apperror.NewValidation("purchase must reference a lot").
			WithDetail("field", "lotId")
	}
	if !r.Value.IsPositive() {
		return apperror.NewValidation("purchase amount must be positive").
			WithDetail("field", "amount")
	}
	if r.UnitPrice.IsNegative() {
		return apperror.NewValidation("unit price must not be negative").
			WithDetail("field", "unitPrice")
	}
	if !isValidPaymentStatus(r.PaymentStatus) {
		return apperror.NewValidation("invalid payment status").
			WithDetail("field", "paymentStatus").
			WithDetail("value", string(r.PaymentStatus))
	}
	return nil
}

// ExpenseRecord is a cost attached to a lot, to a vagon, or to neither
// (a general business expense). Lot and vagon references are mutually
// exclusive.
type ExpenseRecord struct {
	entity.Document

	LotID   *id.ID `db:"lot_id" json:"lotId,omitempty"`
	VagonID *id.ID `db:"vagon_id" json:"vagonId,omitempty"`

	Type ExpenseType `db:"expense_type" json:"type"`

	currency.Amount
}

// NewExpenseRecord creates an unassigned expense; callers set LotID or
// VagonID before saving when the expense has a target.
func NewExpenseRecord(expenseType ExpenseType, amount currency.Amount) *ExpenseRecord {
	return &ExpenseRecord{
		Document: entity.NewDocument(),
		Type:     expenseType,
		Amount:   amount,
	}
}

// Validate implements entity.Validatable.
func (r *ExpenseRecord) Validate(ctx context.Context) error {
	if err := r.Document.Validate(ctx); err != nil {
		return err
	}
	if !isValidExpenseType(r.Type) {
		return apperror.NewValidation("invalid expense type").
			WithDetail("field", "type").
			WithDetail("value", string(r.Type))
	}
	if r.LotID != nil && r.VagonID != nil {
		return apperror.NewValidation("expense may target a lot or a vagon, not both")
	}
	if !r.Value.IsPositive() {
		return apperror.NewValidation("expense amount must be positive").
			WithDetail("field", "amount")
	}
	return nil
}

// SaleRecord is the 0..1 disposal record of a lot. Recording it freezes the
// lot: no further purchases, expenses or sales.
type SaleRecord struct {
	entity.Document

	LotID id.ID `db:"lot_id" json:"lotId"`

	// ClientID links the sale into the client debt projection when set.
	ClientID *id.ID `db:"client_id" json:"clientId,omitempty"`

	currency.Amount

	// UnitPrice is the per-m3 price when the sale was priced by volume;
	// the total Value is UnitPrice x lot volume. Zero for flat-total deals.
	UnitPrice types.Money `db:"unit_price" json:"unitPrice"`

	Location    string `db:"location" json:"location,omitempty"`
	ContractRef string `db:"contract_ref" json:"contractRef,omitempty"`

	// PaymentStatus starts unpaid for client sales on credit; settling it
	// clears the sale from the client's debt projection.
	PaymentStatus PaymentStatus `db:"payment_status" json:"paymentStatus"`
}

// NewSaleRecord links a disposal to its lot. A sale without a client is a
// cash deal and starts out paid; a client sale is on credit until settled.
func NewSaleRecord(lotID id.ID, amount currency.Amount) *SaleRecord {
	return &SaleRecord{
		Document:      entity.NewDocument(),
		LotID:         lotID,
		Amount:        amount,
		UnitPrice:     types.Zero(),
		PaymentStatus: PaymentPaid,
	}
}

// Validate implements entity.Validatable.
func (r *SaleRecord) Validate(ctx context.Context) error {
	if err := r.Document.Validate(ctx); err != nil {
		return err
	}
	if id.IsNil(r.LotID) {
		return apperror.NewValidation("sale must reference a lot").
			WithDetail("field", "lotId")
	}
	if !r.Value.IsPositive() {
		return apperror.NewValidation("sale amount must be positive").
			WithDetail("field", "amount")
	}
	if r.UnitPrice.IsNegative() {
		return apperror.NewValidation("unit price must not be negative").
			WithDetail("field", "unitPrice")
	}
	if !isValidPaymentStatus(r.PaymentStatus) {
		return apperror.NewValidation("invalid payment status").
			WithDetail("field", "paymentStatus").
			WithDetail("value", string(r.PaymentStatus))
	}
	return nil
}
