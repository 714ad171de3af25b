package kassa

import (
	"context"
	"time"

	"timberlot/internal/core/currency"
	"timberlot/internal/core/id"
	"timberlot/internal/core/types"
	"timberlot/internal/domain"
)

// Filter narrows ledger queries. From is inclusive, To is exclusive, so a
// period report's opening balance (everything before From) and period flows
// (From..To) never double-count an entry.
type Filter struct {
	From     *time.Time
	To       *time.Time
	Types    []EntryType
	Currency *currency.Currency

	IncludeDeleted bool

	Limit  int
	Offset int
}

// TotalRow is one aggregation bucket: sums for a (type, currency) pair over
// live entries.
type TotalRow struct {
	Type     EntryType         `db:"type"`
	Currency currency.Currency `db:"currency"`

	// Native is the sum in the entries' own currency.
	Native types.Money `db:"native"`

	// RUB is the sum of locked RUB equivalents.
	RUB types.Money `db:"rub"`
}

// Repository defines persistence for the cash ledger.
type Repository interface {
	// Append inserts a new entry. There is no Update: the journal is
	// append-only.
	Append(ctx context.Context, entry *Entry) error

	GetByID(ctx context.Context, entryID id.ID) (*Entry, error)

	List(ctx context.Context, filter Filter) (domain.ListResult[*Entry], error)

	// SetDeletionMark soft-deletes or restores an entry.
	SetDeletionMark(ctx context.Context, entryID id.ID, marked bool) error

	// Totals aggregates live entries with SUM in the database. Deleted
	// entries never contribute regardless of filter.
	Totals(ctx context.Context, filter Filter) ([]TotalRow, error)
}
