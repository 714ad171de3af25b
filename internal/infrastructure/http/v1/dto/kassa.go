package dto

import (
	"time"

	"timberlot/internal/core/currency"
	"timberlot/internal/core/types"
	"timberlot/internal/domain/kassa"
)

// --- Request DTOs ---

// CreateKassaEntryRequest appends a manual cash ledger entry.
type CreateKassaEntryRequest struct {
	Type        string      `json:"type" binding:"required"`
	Subtype     string      `json:"subtype,omitempty"`
	Amount      types.Money `json:"amount" binding:"required"`
	Currency    string      `json:"currency" binding:"required"`
	Date        time.Time   `json:"date,omitempty"`
	Description string      `json:"description,omitempty"`
}

// ToInput converts the request to a record input.
func (r *CreateKassaEntryRequest) ToInput() (kassa.RecordInput, error) {
	cur, err := currency.Parse(r.Currency)
	if err != nil {
		return kassa.RecordInput{}, err
	}
	return kassa.RecordInput{
		Type:        kassa.EntryType(r.Type),
		Subtype:     r.Subtype,
		Amount:      r.Amount,
		Currency:    cur,
		Date:        r.Date,
		Description: r.Description,
	}, nil
}

// TransferRequest moves money between currencies at the current rates.
type TransferRequest struct {
	From        string      `json:"from" binding:"required"`
	To          string      `json:"to" binding:"required"`
	Amount      types.Money `json:"amount" binding:"required"`
	Date        time.Time   `json:"date,omitempty"`
	Description string      `json:"description,omitempty"`
}

// ToInput converts the request to a transfer input.
func (r *TransferRequest) ToInput() (kassa.TransferInput, error) {
	from, err := currency.Parse(r.From)
	if err != nil {
		return kassa.TransferInput{}, err
	}
	to, err := currency.Parse(r.To)
	if err != nil {
		return kassa.TransferInput{}, err
	}
	return kassa.TransferInput{
		From:        from,
		To:          to,
		Amount:      r.Amount,
		Date:        r.Date,
		Description: r.Description,
	}, nil
}
