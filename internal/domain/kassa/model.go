// Package kassa provides the cash ledger: an append-only journal of money
// movements. Entries are never edited after the fact; a mistake is fixed by
// soft-deleting the entry, and every balance is derived by summing the live
// entries at read time.
package kassa

import (
	"context"
	"time"

	"timberlot/internal/core/apperror"
	"timberlot/internal/core/currency"
	"timberlot/internal/core/entity"
	"timberlot/internal/core/id"
	"timberlot/internal/core/types"
)

// EntryType classifies a cash movement.
type EntryType string

const (
	TypeIncome  EntryType = "income"
	TypeExpense EntryType = "expense"

	// TypeShipmentOut records goods leaving on credit. No cash moves: the
	// money arrives later as client_income entries, so shipment_out stays
	// out of the cash balance and is reported alongside it.
	TypeShipmentOut EntryType = "shipment_out"

	TypeClientIncome EntryType = "client_income"
)

// IsIncome reports whether the type increases the balance.
func (t EntryType) IsIncome() bool {
	return t == TypeIncome || t == TypeClientIncome
}

func isValidEntryType(t EntryType) bool {
	switch t {
	case TypeIncome, TypeExpense, TypeShipmentOut, TypeClientIncome:
		return true
	}
	return false
}

// Entry is one cash ledger record.
type Entry struct {
	entity.Document

	Type EntryType `db:"type" json:"type"`

	// Subtype refines an expense entry (transport, customs, loading, ...).
	// Empty for non-expense types.
	Subtype string `db:"subtype" json:"subtype,omitempty"`

	// Amount in the entry's own currency.
	Amount types.Money `db:"amount" json:"amount"`

	Currency currency.Currency `db:"currency" json:"currency"`

	// Rate is the conversion rate locked when the entry was appended.
	Rate types.Money `db:"rate" json:"rate"`

	// RUBEquivalent = Amount x Rate, computed once at append time. Later
	// rate changes never touch it.
	RUBEquivalent types.Money `db:"rub_equivalent" json:"rubEquivalent"`

	Description string `db:"description" json:"description"`

	// Back-references to the originating record. At most one is set;
	// manual entries carry none.
	PurchaseID  *id.ID `db:"purchase_id" json:"purchaseId,omitempty"`
	SaleID      *id.ID `db:"sale_id" json:"saleId,omitempty"`
	ExpenseID   *id.ID `db:"expense_id" json:"expenseId,omitempty"`
	VagonSaleID *id.ID `db:"vagon_sale_id" json:"vagonSaleId,omitempty"`
	PaymentID   *id.ID `db:"payment_id" json:"paymentId,omitempty"`

	// TransferID pairs the two legs of an inter-currency transfer.
	TransferID *id.ID `db:"transfer_id" json:"transferId,omitempty"`
}

// NewEntry creates a ledger entry from a currency amount. The RUB equivalent
// is fixed here and never recomputed.
func NewEntry(entryType EntryType, amount currency.Amount, date time.Time, description string) *Entry {
	e := &Entry{
		Document:      entity.NewDocument(),
		Type:          entryType,
		Amount:        amount.Value,
		Currency:      amount.Currency,
		Rate:          amount.Rate,
		RUBEquivalent: amount.RUBEquivalent(),
		Description:   description,
	}
	if !date.IsZero() {
		e.Date = date
	}
	return e
}

// Validate implements entity.Validatable.
func (e *Entry) Validate(ctx context.Context) error {
	if err := e.Document.Validate(ctx); err != nil {
		return err
	}

	if !isValidEntryType(e.Type) {
		return apperror.NewValidation("invalid entry type").
			WithDetail("field", "type").
			WithDetail("value", string(e.Type))
	}

	if e.Subtype != "" && e.Type != TypeExpense {
		return apperror.NewValidation("subtype is only valid for expense entries").
			WithDetail("field", "subtype")
	}

	if !e.Amount.IsPositive() {
		return apperror.NewValidation("amount must be positive").
			WithDetail("field", "amount").
			WithDetail("value", e.Amount.String())
	}

	if _, err := currency.Parse(string(e.Currency)); err != nil {
		return err
	}

	if !e.Rate.IsPositive() {
		return apperror.NewValidation("locked rate must be positive").
			WithDetail("field", "rate")
	}

	if !types.WithinEpsilon(e.RUBEquivalent, e.Amount.Mul(e.Rate)) {
		return apperror.NewConsistency("kassa entry", e.ID.String(), "rub_equivalent")
	}

	if n := e.refCount(); n > 1 {
		return apperror.NewValidation("entry may reference at most one source record").
			WithDetail("references", n)
	}

	return nil
}

func (e *Entry) refCount() int {
	n := 0
	for _, ref := range []*id.ID{e.PurchaseID, e.SaleID, e.ExpenseID, e.VagonSaleID, e.PaymentID} {
		if ref != nil {
			n++
		}
	}
	return n
}
