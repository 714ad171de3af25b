// Package vagons provides the wagon shipment ledger: a wagon of timber
// arrives with a known volume and cost, is sold off to clients in parts, and
// carries derived volume and profit aggregates that are always recomputed by
// summing its live sales.
//
// Accounting point: remaining volume is measured against accepted volume
// (what clients actually signed for), not sent volume, and that choice is
// applied everywhere.
package vagons

import (
	"context"

	"timberlot/internal/core/apperror"
	"timberlot/internal/core/currency"
	"timberlot/internal/core/entity"
	"timberlot/internal/core/id"
	"timberlot/internal/core/types"
)

// Vagon is the shipment aggregate root. Cost and revenue are RUB.
type Vagon struct {
	entity.Document

	ArrivedVolume     types.Volume `db:"arrived_volume" json:"arrivedVolume"`
	ArrivalLossVolume types.Volume `db:"arrival_loss_volume" json:"arrivalLossVolume"`

	Cost types.Money `db:"cost" json:"cost"`

	// Aggregates, derived by summing live sales.
	SentVolume     types.Volume `db:"sent_volume" json:"sentVolume"`
	AcceptedVolume types.Volume `db:"accepted_volume" json:"acceptedVolume"`
	Revenue        types.Money  `db:"revenue" json:"revenue"`
	NetProfit      types.Money  `db:"net_profit" json:"netProfit"`
}

// NewVagon creates a vagon with zeroed aggregates.
func NewVagon(arrived, arrivalLoss types.Volume, cost types.Money) *Vagon {
	return &Vagon{
		Document:          entity.NewDocument(),
		ArrivedVolume:     arrived,
		ArrivalLossVolume: arrivalLoss,
		Cost:              cost,
		Revenue:           types.Zero(),
		NetProfit:         types.Zero(),
	}
}

// Validate implements entity.Validatable.
func (v *Vagon) Validate(ctx context.Context) error {
	if err := v.Document.Validate(ctx); err != nil {
		return err
	}
	if v.ArrivedVolume.IsNegative() {
		return apperror.NewValidation("arrived volume must not be negative").
			WithDetail("field", "arrivedVolume")
	}
	if v.ArrivalLossVolume.IsNegative() {
		return apperror.NewValidation("arrival loss must not be negative").
			WithDetail("field", "arrivalLossVolume")
	}
	if v.ArrivalLossVolume > v.ArrivedVolume {
		return apperror.NewValidation("arrival loss cannot exceed arrived volume").
			WithDetail("arrived", v.ArrivedVolume.String()).
			WithDetail("loss", v.ArrivalLossVolume.String())
	}
	if v.Cost.IsNegative() {
		return apperror.NewValidation("cost must not be negative").
			WithDetail("field", "cost")
	}
	return nil
}

// AvailableVolume is what can actually be sold: arrived minus arrival loss.
// Derived on read, never stored.
func (v *Vagon) AvailableVolume() types.Volume {
	return v.ArrivedVolume.Sub(v.ArrivalLossVolume)
}

// RemainingVolume is available minus the accepted total of live sales.
func (v *Vagon) RemainingVolume() types.Volume {
	return v.AvailableVolume().Sub(v.AcceptedVolume)
}

// ApplyAggregates replaces the stored totals with freshly summed values.
func (v *Vagon) ApplyAggregates(sent, accepted types.Volume, revenue types.Money) {
	v.SentVolume = sent
	v.AcceptedVolume = accepted
	v.Revenue = revenue
	v.NetProfit = revenue.Sub(v.Cost)
}

// VagonSale is one partial disposal of a vagon to a client. The sale's rate
// is locked at creation; its debt is always derived from total and paid.
type VagonSale struct {
	entity.Document

	VagonID  id.ID `db:"vagon_id" json:"vagonId"`
	ClientID id.ID `db:"client_id" json:"clientId"`

	SentVolume       types.Volume `db:"sent_volume" json:"sentVolume"`
	ClientLossVolume types.Volume `db:"client_loss_volume" json:"clientLossVolume"`

	// AcceptedVolume = sent - client loss, fixed at creation.
	AcceptedVolume types.Volume `db:"accepted_volume" json:"acceptedVolume"`

	PricePerUnit types.Money `db:"price_per_unit" json:"pricePerUnit"`

	// Amount.Value is the total price in the sale's currency with the
	// locked rate.
	currency.Amount

	// PaidAmount grows only through payment records, in the sale currency.
	PaidAmount types.Money `db:"paid_amount" json:"paidAmount"`
}

// Validate implements entity.Validatable.
func (s *VagonSale) Validate(ctx context.Context) error {
	if err := s.Document.Validate(ctx); err != nil {
		return err
	}
	if id.IsNil(s.VagonID) {
		return apperror.NewValidation("sale must reference a vagon").
			WithDetail("field", "vagonId")
	}
	if id.IsNil(s.ClientID) {
		return apperror.NewValidation("sale must reference a client").
			WithDetail("field", "clientId")
	}
	if !s.SentVolume.IsPositive() {
		return apperror.NewValidation("sent volume must be positive").
			WithDetail("field", "sentVolume")
	}
	if s.ClientLossVolume.IsNegative() {
		return apperror.NewValidation("client loss must not be negative").
			WithDetail("field", "clientLossVolume")
	}
	if s.AcceptedVolume.IsNegative() {
		return apperror.NewValidation("client loss cannot exceed sent volume").
			WithDetail("sent", s.SentVolume.String()).
			WithDetail("loss", s.ClientLossVolume.String())
	}
	if s.AcceptedVolume != s.SentVolume.Sub(s.ClientLossVolume) {
		return apperror.NewConsistency("vagon sale", s.ID.String(), "accepted_volume")
	}
	if !s.PricePerUnit.IsPositive() {
		return apperror.NewValidation("price per unit must be positive").
			WithDetail("field", "pricePerUnit")
	}
	expectedTotal := s.PricePerUnit.Mul(s.AcceptedVolume.Decimal())
	if !types.WithinEpsilon(s.Value, expectedTotal) {
		return apperror.NewConsistency("vagon sale", s.ID.String(), "total_price")
	}
	if s.PaidAmount.IsNegative() {
		return apperror.NewValidation("paid amount must not be negative").
			WithDetail("field", "paidAmount")
	}
	return nil
}

// Debt is what the client still owes on this sale, floored at zero.
func (s *VagonSale) Debt() types.Money {
	debt := s.Value.Sub(s.PaidAmount)
	if debt.IsNegative() {
		return types.Zero()
	}
	return debt
}

// Overpaid is the amount paid beyond the total price, if any.
func (s *VagonSale) Overpaid() types.Money {
	over := s.PaidAmount.Sub(s.Value)
	if over.IsNegative() {
		return types.Zero()
	}
	return over
}

// Payment is one client payment against a vagon sale. Payments are
// append-only; editing the paid total happens by adding or soft-deleting
// payments, never by mutating the sale directly.
type Payment struct {
	entity.Document

	VagonSaleID id.ID `db:"vagon_sale_id" json:"vagonSaleId"`

	// ClientID duplicates the sale's client so the debt projection can
	// replay payments without joining sales.
	ClientID id.ID `db:"client_id" json:"clientId"`

	currency.Amount
}

// NewPayment creates a payment against a sale.
func NewPayment(saleID, clientID id.ID, amount currency.Amount) *Payment {
	return &Payment{
		Document:    entity.NewDocument(),
		VagonSaleID: saleID,
		ClientID:    clientID,
		Amount:      amount,
	}
}

// Validate implements entity.Validatable.
func (p *Payment) Validate(ctx context.Context) error {
	if err := p.Document.Validate(ctx); err != nil {
		return err
	}
	if id.IsNil(p.VagonSaleID) {
		return apperror.NewValidation("payment must reference a vagon sale").
			WithDetail("field", "vagonSaleId")
	}
	if id.IsNil(p.ClientID) {
		return apperror.NewValidation("payment must reference a client").
			WithDetail("field", "clientId")
	}
	if !p.Value.IsPositive() {
		return apperror.NewValidation("payment amount must be positive").
			WithDetail("field", "amount")
	}
	return nil
}
