package dto

import (
	"timberlot/internal/domain/catalogs/client"
)

// --- Request DTOs ---

// CreateClientRequest is the payload for creating a client.
type CreateClientRequest struct {
	Code          string  `json:"code,omitempty"`
	Name          string  `json:"name" binding:"required"`
	Phone         *string `json:"phone,omitempty"`
	ContactPerson *string `json:"contactPerson,omitempty"`
	Comment       *string `json:"comment,omitempty"`
}

// ToEntity converts request to domain entity.
func (r *CreateClientRequest) ToEntity() *client.Client {
	c := client.NewClient(r.Code, r.Name)
	c.Phone = r.Phone
	c.ContactPerson = r.ContactPerson
	c.Comment = r.Comment
	return c
}

// UpdateClientRequest is the payload for updating a client.
// Only provided fields are changed.
type UpdateClientRequest struct {
	Name          *string `json:"name,omitempty"`
	Phone         *string `json:"phone,omitempty"`
	ContactPerson *string `json:"contactPerson,omitempty"`
	Comment       *string `json:"comment,omitempty"`
}

// ApplyTo applies non-nil fields to an existing entity.
func (r *UpdateClientRequest) ApplyTo(c *client.Client) {
	if r.Name != nil {
		c.Name = *r.Name
	}
	if r.Phone != nil {
		c.Phone = r.Phone
	}
	if r.ContactPerson != nil {
		c.ContactPerson = r.ContactPerson
	}
	if r.Comment != nil {
		c.Comment = r.Comment
	}
}

// --- Response DTOs ---

// ClientResponse is the API representation of a client.
type ClientResponse struct {
	ID            string  `json:"id"`
	Code          string  `json:"code"`
	Name          string  `json:"name"`
	Phone         *string `json:"phone,omitempty"`
	ContactPerson *string `json:"contactPerson,omitempty"`
	Comment       *string `json:"comment,omitempty"`
	DeletionMark  bool    `json:"deletionMark"`
	Version       int     `json:"version"`
}

// FromClient converts domain entity to response DTO.
func FromClient(c *client.Client) *ClientResponse {
	return &ClientResponse{
		ID:            c.ID.String(),
		Code:          c.Code,
		Name:          c.Name,
		Phone:         c.Phone,
		ContactPerson: c.ContactPerson,
		Comment:       c.Comment,
		DeletionMark:  c.DeletionMark,
		Version:       c.Version,
	}
}
