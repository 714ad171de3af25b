package handlers

import (
	"timberlot/internal/domain/catalogs/client"
	"timberlot/internal/infrastructure/http/v1/dto"
)

// ClientHTTPHandler keeps the generic handler signature out of the router.
type ClientHTTPHandler = CatalogHandler[
	*client.Client,
	dto.CreateClientRequest,
	dto.UpdateClientRequest,
]

// NewClientHandler wires the generic catalog handler for clients.
func NewClientHandler(
	base *BaseHandler,
	service *client.Service,
) *ClientHTTPHandler {
	config := CatalogHandlerConfig[
		*client.Client,
		dto.CreateClientRequest,
		dto.UpdateClientRequest,
	]{
		Service:    service.CatalogService,
		EntityName: "client",

		MapCreateDTO: func(req dto.CreateClientRequest) *client.Client {
			return req.ToEntity()
		},

		MapUpdateDTO: func(req dto.UpdateClientRequest, existing *client.Client) *client.Client {
			req.ApplyTo(existing)
			return existing
		},

		MapToDTO: func(entity *client.Client) any {
			return dto.FromClient(entity)
		},
	}

	return NewCatalogHandler(base, config)
}
