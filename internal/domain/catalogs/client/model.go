// Package client provides the Client catalog: buyers who receive wagon
// shipments and whose debts the ledger tracks per currency.
package client

import (
	"context"
	"regexp"

	"timberlot/internal/core/apperror"
	"timberlot/internal/core/entity"
)

var phoneRE = regexp.MustCompile(`^\+?[\d\s\-()]{5,20}$`)

// Client represents a buyer.
type Client struct {
	entity.Catalog

	// Phone is the primary contact phone
	Phone *string `db:"phone" json:"phone,omitempty"`

	// ContactPerson is the primary contact name
	ContactPerson *string `db:"contact_person" json:"contactPerson,omitempty"`

	// Comment is a free-form note
	Comment *string `db:"comment" json:"comment,omitempty"`
}

// NewClient creates a new Client with required fields.
func NewClient(code, name string) *Client {
	return &Client{
		Catalog: entity.NewCatalog(code, name),
	}
}

// Validate implements entity.Validatable interface.
func (c *Client) Validate(ctx context.Context) error {
	if err := c.Catalog.Validate(ctx); err != nil {
		return err
	}

	if c.Phone != nil && *c.Phone != "" && !phoneRE.MatchString(*c.Phone) {
		return apperror.NewValidation("invalid phone format").
			WithDetail("field", "phone")
	}

	return nil
}
