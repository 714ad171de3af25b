package dto

import (
	"time"

	"timberlot/internal/core/currency"
	"timberlot/internal/core/id"
	"timberlot/internal/core/types"
	"timberlot/internal/domain/vagons"
)

// --- Request DTOs ---

// CreateVagonRequest registers an arrived wagon.
type CreateVagonRequest struct {
	ArrivedVolume     types.Volume `json:"arrivedVolume" binding:"required"`
	ArrivalLossVolume types.Volume `json:"arrivalLossVolume"`
	Cost              types.Money  `json:"cost" binding:"required"`
	Date              time.Time    `json:"date,omitempty"`
	Comment           string       `json:"comment,omitempty"`
}

// ToInput converts the request to a create input.
func (r *CreateVagonRequest) ToInput() vagons.CreateInput {
	return vagons.CreateInput{
		ArrivedVolume:     r.ArrivedVolume,
		ArrivalLossVolume: r.ArrivalLossVolume,
		Cost:              r.Cost,
		Date:              r.Date,
		Comment:           r.Comment,
	}
}

// VagonSaleRequest records a partial disposal of a vagon to a client.
type VagonSaleRequest struct {
	ClientID         string       `json:"clientId" binding:"required"`
	SentVolume       types.Volume `json:"sentVolume" binding:"required"`
	ClientLossVolume types.Volume `json:"clientLossVolume"`
	PricePerUnit     types.Money  `json:"pricePerUnit" binding:"required"`
	Currency         string       `json:"currency" binding:"required"`
	Date             time.Time    `json:"date,omitempty"`
	Comment          string       `json:"comment,omitempty"`
}

// ToInput converts the request to a sale input.
func (r *VagonSaleRequest) ToInput() (vagons.SaleInput, error) {
	clientID, err := id.Parse(r.ClientID)
	if err != nil {
		return vagons.SaleInput{}, err
	}
	cur, err := currency.Parse(r.Currency)
	if err != nil {
		return vagons.SaleInput{}, err
	}
	return vagons.SaleInput{
		ClientID:         clientID,
		SentVolume:       r.SentVolume,
		ClientLossVolume: r.ClientLossVolume,
		PricePerUnit:     r.PricePerUnit,
		Currency:         cur,
		Date:             r.Date,
		Comment:          r.Comment,
	}, nil
}

// UpdateVagonSaleRequest corrects the editable fields of a sale. The sale
// keeps its originally locked rate.
type UpdateVagonSaleRequest struct {
	SentVolume       types.Volume `json:"sentVolume" binding:"required"`
	ClientLossVolume types.Volume `json:"clientLossVolume"`
	PricePerUnit     types.Money  `json:"pricePerUnit" binding:"required"`
}

// ToInput converts the request to an update input.
func (r *UpdateVagonSaleRequest) ToInput() vagons.UpdateSaleInput {
	return vagons.UpdateSaleInput{
		SentVolume:       r.SentVolume,
		ClientLossVolume: r.ClientLossVolume,
		PricePerUnit:     r.PricePerUnit,
	}
}

// PaymentRequest records a client payment against a sale.
type PaymentRequest struct {
	Amount   types.Money `json:"amount" binding:"required"`
	Currency string      `json:"currency" binding:"required"`
	Date     time.Time   `json:"date,omitempty"`
}

// --- Response DTOs ---

// VagonResponse is the API representation of a vagon with its derived
// volume chain: arrived - loss = available; available - accepted = remaining.
type VagonResponse struct {
	ID     string `json:"id"`
	Number string `json:"number"`

	ArrivedVolume     types.Volume `json:"arrivedVolume"`
	ArrivalLossVolume types.Volume `json:"arrivalLossVolume"`
	AvailableVolume   types.Volume `json:"availableVolume"`
	SentVolume        types.Volume `json:"sentVolume"`
	AcceptedVolume    types.Volume `json:"acceptedVolume"`
	RemainingVolume   types.Volume `json:"remainingVolume"`

	Cost      types.Money `json:"cost"`
	Revenue   types.Money `json:"revenue"`
	NetProfit types.Money `json:"netProfit"`

	Comment      string    `json:"comment,omitempty"`
	DeletionMark bool      `json:"deletionMark"`
	Version      int       `json:"version"`
	Date         time.Time `json:"date"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// FromVagon converts domain entity to response DTO.
func FromVagon(v *vagons.Vagon) *VagonResponse {
	return &VagonResponse{
		ID:                v.ID.String(),
		Number:            v.Number,
		ArrivedVolume:     v.ArrivedVolume,
		ArrivalLossVolume: v.ArrivalLossVolume,
		AvailableVolume:   v.AvailableVolume(),
		SentVolume:        v.SentVolume,
		AcceptedVolume:    v.AcceptedVolume,
		RemainingVolume:   v.RemainingVolume(),
		Cost:              v.Cost,
		Revenue:           v.Revenue,
		NetProfit:         v.NetProfit,
		Comment:           v.Comment,
		DeletionMark:      v.DeletionMark,
		Version:           v.Version,
		Date:              v.Date,
		CreatedAt:         v.CreatedAt,
		UpdatedAt:         v.UpdatedAt,
	}
}

// VagonSaleResponse is the API representation of a vagon sale with its
// derived debt.
type VagonSaleResponse struct {
	ID       string `json:"id"`
	Number   string `json:"number"`
	VagonID  string `json:"vagonId"`
	ClientID string `json:"clientId"`

	SentVolume       types.Volume `json:"sentVolume"`
	ClientLossVolume types.Volume `json:"clientLossVolume"`
	AcceptedVolume   types.Volume `json:"acceptedVolume"`

	PricePerUnit types.Money `json:"pricePerUnit"`
	TotalPrice   types.Money `json:"totalPrice"`
	Currency     string      `json:"currency"`
	ExchangeRate types.Money `json:"exchangeRate"`

	PaidAmount types.Money `json:"paidAmount"`

	// Debt = max(0, total - paid), derived on read.
	Debt types.Money `json:"debt"`

	Comment      string    `json:"comment,omitempty"`
	DeletionMark bool      `json:"deletionMark"`
	Version      int       `json:"version"`
	Date         time.Time `json:"date"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// FromVagonSale converts domain entity to response DTO.
func FromVagonSale(s *vagons.VagonSale) *VagonSaleResponse {
	return &VagonSaleResponse{
		ID:               s.ID.String(),
		Number:           s.Number,
		VagonID:          s.VagonID.String(),
		ClientID:         s.ClientID.String(),
		SentVolume:       s.SentVolume,
		ClientLossVolume: s.ClientLossVolume,
		AcceptedVolume:   s.AcceptedVolume,
		PricePerUnit:     s.PricePerUnit,
		TotalPrice:       s.Value,
		Currency:         s.Amount.Currency.String(),
		ExchangeRate:     s.Rate,
		PaidAmount:       s.PaidAmount,
		Debt:             s.Debt(),
		Comment:          s.Comment,
		DeletionMark:     s.DeletionMark,
		Version:          s.Version,
		Date:             s.Date,
		CreatedAt:        s.CreatedAt,
		UpdatedAt:        s.UpdatedAt,
	}
}
