package entity

import (
	"context"
	"time"

	"timberlot/internal/core/apperror"
)

// Document is the base type for financial records (purchases, expenses,
// sales, payments, kassa entries).
type Document struct {
	BaseDocument

	// Number is the record number (auto-generated, unique within type+period)
	Number string `db:"number" json:"number"`

	// Date is the business date of the record
	Date time.Time `db:"date" json:"date"`

	// Comment is an optional user comment
	Comment string `db:"comment" json:"comment,omitempty"`
}

// NewDocument creates a new Document with generated ID.
func NewDocument() Document {
	return Document{
		BaseDocument: NewBaseDocument(),
		Date:         time.Now().UTC(),
	}
}

// Validate implements Validatable interface.
func (d *Document) Validate(ctx context.Context) error {
	if d.Date.IsZero() {
		return apperror.NewValidation("date is required").
			WithDetail("field", "date")
	}

	return nil
}

// IsBackdated checks if record date is in the past.
func (d *Document) IsBackdated() bool {
	return d.Date.Before(time.Now().UTC().Truncate(24 * time.Hour))
}
