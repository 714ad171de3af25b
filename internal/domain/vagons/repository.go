package vagons

import (
	"context"
	"time"

	"timberlot/internal/core/id"
	"timberlot/internal/core/types"
	"timberlot/internal/domain"
)

// ListFilter narrows vagon queries.
type ListFilter struct {
	From   *time.Time
	To     *time.Time
	Search string

	IncludeDeleted bool

	Limit  int
	Offset int
}

// Repository defines persistence for vagon aggregates.
type Repository interface {
	Create(ctx context.Context, vagon *Vagon) error

	GetByID(ctx context.Context, vagonID id.ID) (*Vagon, error)

	// Update persists the vagon under an optimistic version check and
	// returns apperror.NewConcurrentModification on a stale version.
	Update(ctx context.Context, vagon *Vagon) error

	SetDeletionMark(ctx context.Context, vagonID id.ID, marked bool) error

	List(ctx context.Context, filter ListFilter) (domain.ListResult[*Vagon], error)
}

// SaleTotals is the summed state of a vagon's live sales.
type SaleTotals struct {
	Sent     types.Volume `db:"sent"`
	Accepted types.Volume `db:"accepted"`

	// Revenue is the sum of locked RUB equivalents of the totals.
	Revenue types.Money `db:"revenue"`
}

// SaleRepository defines persistence for vagon sales and their payments.
type SaleRepository interface {
	Create(ctx context.Context, sale *VagonSale) error

	GetByID(ctx context.Context, saleID id.ID) (*VagonSale, error)

	// Update persists the sale under an optimistic version check.
	Update(ctx context.Context, sale *VagonSale) error

	SetDeletionMark(ctx context.Context, saleID id.ID, marked bool) error

	// ListByVagon returns the vagon's live sales.
	ListByVagon(ctx context.Context, vagonID id.ID) ([]*VagonSale, error)

	// SumByVagon aggregates the vagon's live sales with SUM in the
	// database.
	SumByVagon(ctx context.Context, vagonID id.ID) (SaleTotals, error)

	CreatePayment(ctx context.Context, payment *Payment) error

	// ListPayments returns the live payments of a sale.
	ListPayments(ctx context.Context, saleID id.ID) ([]*Payment, error)

	// SumPayments returns the live payment total of a sale in the sale's
	// currency.
	SumPayments(ctx context.Context, saleID id.ID) (types.Money, error)
}
