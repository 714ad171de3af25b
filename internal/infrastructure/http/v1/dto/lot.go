package dto

import (
	"time"

	"timberlot/internal/core/currency"
	"timberlot/internal/core/id"
	"timberlot/internal/core/types"
	"timberlot/internal/domain/lots"
)

// --- Request DTOs ---

// CreateLotRequest creates a lot from its purchase.
type CreateLotRequest struct {
	ThicknessMM float64 `json:"thicknessMm" binding:"gte=0"`
	WidthMM     float64 `json:"widthMm" binding:"gte=0"`
	LengthM     float64 `json:"lengthM" binding:"gte=0"`
	Count       int     `json:"count" binding:"gte=0"`
	Density     float64 `json:"density" binding:"gte=0"`

	WoodType string `json:"woodType,omitempty"`
	Supplier string `json:"supplier,omitempty"`
	Location string `json:"location,omitempty"`

	// Amount is the flat deal total; UnitPrice is the per-m3 alternative
	// and wins when both are given.
	Amount    types.Money `json:"amount"`
	UnitPrice types.Money `json:"unitPrice"`
	Currency  string      `json:"currency" binding:"required"`
	Date      time.Time   `json:"date,omitempty"`
	Comment   string      `json:"comment,omitempty"`
}

// ToInput converts the request to a purchase input.
func (r *CreateLotRequest) ToInput() (lots.PurchaseInput, error) {
	cur, err := currency.Parse(r.Currency)
	if err != nil {
		return lots.PurchaseInput{}, err
	}
	return lots.PurchaseInput{
		Dimensions: lots.Dimensions{
			ThicknessMM: r.ThicknessMM,
			WidthMM:     r.WidthMM,
			LengthM:     r.LengthM,
			Count:       r.Count,
			Density:     r.Density,
		},
		WoodType:  r.WoodType,
		Supplier:  r.Supplier,
		Location:  r.Location,
		Amount:    r.Amount,
		UnitPrice: r.UnitPrice,
		Currency:  cur,
		Date:      r.Date,
		Comment:   r.Comment,
	}, nil
}

// ExpenseRequest attaches a cost record to a lot, or records a standalone
// expense when posted without a lot.
type ExpenseRequest struct {
	Type     string      `json:"type" binding:"required"`
	Amount   types.Money `json:"amount" binding:"required"`
	Currency string      `json:"currency" binding:"required"`
	Date     time.Time   `json:"date,omitempty"`
	Comment  string      `json:"comment,omitempty"`
	VagonID  *string     `json:"vagonId,omitempty"`
}

// ToInput converts the request to an expense input.
func (r *ExpenseRequest) ToInput() (lots.ExpenseInput, error) {
	cur, err := currency.Parse(r.Currency)
	if err != nil {
		return lots.ExpenseInput{}, err
	}
	input := lots.ExpenseInput{
		Type:     lots.ExpenseType(r.Type),
		Amount:   r.Amount,
		Currency: cur,
		Date:     r.Date,
		Comment:  r.Comment,
	}
	if r.VagonID != nil && *r.VagonID != "" {
		vagonID, err := id.Parse(*r.VagonID)
		if err != nil {
			return lots.ExpenseInput{}, err
		}
		input.VagonID = &vagonID
	}
	return input, nil
}

// LotSaleRequest records the disposal of a lot.
type LotSaleRequest struct {
	ClientID    *string     `json:"clientId,omitempty"`
	Amount      types.Money `json:"amount"`
	UnitPrice   types.Money `json:"unitPrice"`
	Location    string      `json:"location,omitempty"`
	ContractRef string      `json:"contractRef,omitempty"`
	Currency    string      `json:"currency" binding:"required"`
	Date        time.Time   `json:"date,omitempty"`
	Comment     string      `json:"comment,omitempty"`
}

// ToInput converts the request to a sale input.
func (r *LotSaleRequest) ToInput() (lots.SaleInput, error) {
	cur, err := currency.Parse(r.Currency)
	if err != nil {
		return lots.SaleInput{}, err
	}
	input := lots.SaleInput{
		Amount:      r.Amount,
		UnitPrice:   r.UnitPrice,
		Location:    r.Location,
		ContractRef: r.ContractRef,
		Currency:    cur,
		Date:        r.Date,
		Comment:     r.Comment,
	}
	if r.ClientID != nil && *r.ClientID != "" {
		clientID, err := id.Parse(*r.ClientID)
		if err != nil {
			return lots.SaleInput{}, err
		}
		input.ClientID = &clientID
	}
	return input, nil
}

// UpdateLotStatusRequest moves the lot along its lifecycle.
type UpdateLotStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// --- Response DTOs ---

// LotResponse is the API representation of a lot with derived physicals.
type LotResponse struct {
	ID     string `json:"id"`
	Number string `json:"number"`
	Status string `json:"status"`

	ThicknessMM float64 `json:"thicknessMm"`
	WidthMM     float64 `json:"widthMm"`
	LengthM     float64 `json:"lengthM"`
	Count       int     `json:"count"`
	Density     float64 `json:"density"`

	// VolumeM3 and WeightT are derived from dimensions, never stored.
	VolumeM3 string  `json:"volumeM3"`
	WeightT  float64 `json:"weightT"`

	WoodType string `json:"woodType,omitempty"`

	PurchaseCost  types.Money `json:"purchaseCost"`
	ExpenseTotal  types.Money `json:"expenseTotal"`
	Revenue       types.Money `json:"revenue"`
	NetProfit     types.Money `json:"netProfit"`
	ProfitPercent types.Money `json:"profitPercent"`

	Comment      string    `json:"comment,omitempty"`
	DeletionMark bool      `json:"deletionMark"`
	Version      int       `json:"version"`
	Date         time.Time `json:"date"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// FromLot converts domain entity to response DTO.
func FromLot(l *lots.Lot) *LotResponse {
	return &LotResponse{
		ID:            l.ID.String(),
		Number:        l.Number,
		Status:        string(l.Status),
		ThicknessMM:   l.ThicknessMM,
		WidthMM:       l.WidthMM,
		LengthM:       l.LengthM,
		Count:         l.Count,
		Density:       l.Density,
		VolumeM3:      l.Volume().String(),
		WeightT:       l.Weight(),
		WoodType:      l.WoodType,
		PurchaseCost:  l.PurchaseCost,
		ExpenseTotal:  l.ExpenseTotal,
		Revenue:       l.Revenue,
		NetProfit:     l.NetProfit,
		ProfitPercent: l.ProfitPercent,
		Comment:       l.Comment,
		DeletionMark:  l.DeletionMark,
		Version:       l.Version,
		Date:          l.Date,
		CreatedAt:     l.CreatedAt,
		UpdatedAt:     l.UpdatedAt,
	}
}
