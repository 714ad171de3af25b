package client

import (
	"timberlot/internal/domain"
)

// Repository defines the interface for Client persistence.
type Repository interface {
	domain.CatalogRepository[*Client]
}
