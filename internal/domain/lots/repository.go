package lots

import (
	"context"
	"time"

	"timberlot/internal/core/id"
	"timberlot/internal/core/types"
	"timberlot/internal/domain"
)

// ListFilter narrows lot queries.
type ListFilter struct {
	Statuses []Status
	ClientID *id.ID
	From     *time.Time
	To       *time.Time
	Search   string

	IncludeDeleted bool

	Limit  int
	Offset int
}

// Repository defines persistence for lot aggregates.
type Repository interface {
	Create(ctx context.Context, lot *Lot) error

	GetByID(ctx context.Context, lotID id.ID) (*Lot, error)

	// Update persists the lot under an optimistic version check and returns
	// apperror.NewConcurrentModification on a stale version.
	Update(ctx context.Context, lot *Lot) error

	SetDeletionMark(ctx context.Context, lotID id.ID, marked bool) error

	List(ctx context.Context, filter ListFilter) (domain.ListResult[*Lot], error)
}

// RecordRepository defines persistence for the lot's financial records.
type RecordRepository interface {
	CreatePurchase(ctx context.Context, record *PurchaseRecord) error

	// GetPurchase returns the live purchase record of a lot,
	// apperror.NewNotFound when it has none.
	GetPurchase(ctx context.Context, lotID id.ID) (*PurchaseRecord, error)

	CreateExpense(ctx context.Context, record *ExpenseRecord) error

	ListExpenses(ctx context.Context, lotID id.ID) ([]*ExpenseRecord, error)

	// SumExpenses returns the RUB-equivalent total of the lot's live
	// expenses, computed with SUM in the database.
	SumExpenses(ctx context.Context, lotID id.ID) (types.Money, error)

	CreateSale(ctx context.Context, record *SaleRecord) error

	// GetSale returns the live sale record of a lot, apperror.NewNotFound
	// when the lot is unsold.
	GetSale(ctx context.Context, lotID id.ID) (*SaleRecord, error)

	// UpdateSale persists the sale record under an optimistic version check.
	UpdateSale(ctx context.Context, record *SaleRecord) error

	// SetDeletionMarkByLot cascades the mark to all records of a lot.
	SetDeletionMarkByLot(ctx context.Context, lotID id.ID, marked bool) error
}
