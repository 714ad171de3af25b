// Package lots provides the Lot lifecycle: a batch of timber bought as a
// whole, carried through arrival/warehouse/processing, and sold as a whole.
// Financial aggregates live on the lot in RUB and are always recomputed by
// summing the underlying records, never incremented in place.
package lots

import (
	"context"

	"github.com/shopspring/decimal"

	"timberlot/internal/core/apperror"
	"timberlot/internal/core/entity"
	"timberlot/internal/core/types"
)

// Status is the lot lifecycle state.
type Status string

const (
	StatusPurchased   Status = "purchased"
	StatusArriving    Status = "arriving"
	StatusInWarehouse Status = "in_warehouse"
	StatusProcessing  Status = "processing"
	StatusDeparting   Status = "departing"
	StatusSold        Status = "sold"
	StatusCancelled   Status = "cancelled"
)

// transitions is the allowed forward chain. Cancellation is reachable from
// any non-terminal state; sold and cancelled are terminal.
var transitions = map[Status][]Status{
	StatusPurchased:   {StatusArriving, StatusCancelled},
	StatusArriving:    {StatusInWarehouse, StatusCancelled},
	StatusInWarehouse: {StatusProcessing, StatusCancelled},
	StatusProcessing:  {StatusDeparting, StatusCancelled},
	StatusDeparting:   {StatusSold, StatusCancelled},
	StatusSold:        {},
	StatusCancelled:   {},
}

func isValidStatus(s Status) bool {
	_, ok := transitions[s]
	return ok
}

// CanTransitionTo reports whether the move is allowed by the lifecycle chain.
func (s Status) CanTransitionTo(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transition is possible.
func (s Status) IsTerminal() bool {
	return s == StatusSold || s == StatusCancelled
}

// Dimensions describes the physical batch: board cross-section, length and
// piece count. Density is in t/m3.
type Dimensions struct {
	ThicknessMM float64 `db:"thickness_mm" json:"thicknessMm"`
	WidthMM     float64 `db:"width_mm" json:"widthMm"`
	LengthM     float64 `db:"length_m" json:"lengthM"`
	Count       int     `db:"piece_count" json:"count"`
	Density     float64 `db:"density" json:"density"`
}

// Volume returns the batch volume in m3. A zero in any dimension means the
// lot is not fully measured yet: the volume is 0, never NaN.
func (d Dimensions) Volume() types.Volume {
	if d.ThicknessMM <= 0 || d.WidthMM <= 0 || d.LengthM <= 0 || d.Count <= 0 {
		return 0
	}
	m3 := d.ThicknessMM * d.WidthMM * d.LengthM * float64(d.Count) / 1_000_000
	return types.NewVolumeFromFloat64(m3)
}

// Weight returns the batch weight in tonnes.
func (d Dimensions) Weight() float64 {
	return d.Volume().Float64() * d.Density
}

func (d Dimensions) validate() error {
	if d.ThicknessMM < 0 || d.WidthMM < 0 || d.LengthM < 0 || d.Density < 0 {
		return apperror.NewValidation("dimensions must not be negative")
	}
	if d.Count < 0 {
		return apperror.NewValidation("piece count must not be negative").
			WithDetail("field", "count")
	}
	return nil
}

// Lot is the aggregate root. All money fields are RUB equivalents locked at
// record creation time.
type Lot struct {
	entity.Document

	Dimensions

	WoodType string `db:"wood_type" json:"woodType,omitempty"`

	Status Status `db:"status" json:"status"`

	// Aggregates, derived by summing live purchase/expense/sale records.
	PurchaseCost  types.Money `db:"purchase_cost" json:"purchaseCost"`
	ExpenseTotal  types.Money `db:"expense_total" json:"expenseTotal"`
	Revenue       types.Money `db:"revenue" json:"revenue"`
	NetProfit     types.Money `db:"net_profit" json:"netProfit"`
	ProfitPercent types.Money `db:"profit_percent" json:"profitPercent"`
}

// NewLot creates a lot in the initial purchased state.
func NewLot(dims Dimensions) *Lot {
	return &Lot{
		Document:      entity.NewDocument(),
		Dimensions:    dims,
		Status:        StatusPurchased,
		PurchaseCost:  types.Zero(),
		ExpenseTotal:  types.Zero(),
		Revenue:       types.Zero(),
		NetProfit:     types.Zero(),
		ProfitPercent: types.Zero(),
	}
}

// Validate implements entity.Validatable.
func (l *Lot) Validate(ctx context.Context) error {
	if err := l.Document.Validate(ctx); err != nil {
		return err
	}
	if !isValidStatus(l.Status) {
		return apperror.NewValidation("invalid lot status").
			WithDetail("field", "status").
			WithDetail("value", string(l.Status))
	}
	return l.Dimensions.validate()
}

// IsFrozen reports whether financial records may no longer be attached.
func (l *Lot) IsFrozen() bool {
	return l.Status.IsTerminal()
}

// ApplyAggregates replaces the stored totals with freshly summed values and
// re-derives profit. A zero-cost lot has 0% profit rather than a division
// blowup.
func (l *Lot) ApplyAggregates(cost, expense, revenue types.Money) {
	l.PurchaseCost = cost
	l.ExpenseTotal = expense
	l.Revenue = revenue
	l.NetProfit = revenue.Sub(cost).Sub(expense)

	if cost.IsZero() {
		l.ProfitPercent = types.Zero()
		return
	}
	l.ProfitPercent = l.NetProfit.Div(cost).Mul(decimal.NewFromInt(100))
}
