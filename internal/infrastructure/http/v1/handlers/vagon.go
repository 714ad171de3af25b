package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"timberlot/internal/core/apperror"
	"timberlot/internal/core/currency"
	"timberlot/internal/core/id"
	"timberlot/internal/domain/vagons"
	"timberlot/internal/infrastructure/http/v1/dto"
)

// VagonHandler handles HTTP requests for vagons, their sales and payments.
type VagonHandler struct {
	*BaseHandler
	service *vagons.Service
}

// NewVagonHandler creates a new vagon handler.
func NewVagonHandler(base *BaseHandler, service *vagons.Service) *VagonHandler {
	return &VagonHandler{
		BaseHandler: base,
		service:     service,
	}
}

// Create handles POST /vagons
func (h *VagonHandler) Create(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.CreateVagonRequest
	if !h.BindJSON(c, &req) {
		return
	}

	vagon, err := h.service.Create(ctx, req.ToInput())
	if err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.FromVagon(vagon))
}

// Get handles GET /vagons/:id
func (h *VagonHandler) Get(c *gin.Context) {
	ctx := c.Request.Context()

	vagonID, err := id.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid id format"))
		return
	}

	vagon, err := h.service.GetByID(ctx, vagonID)
	if err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.FromVagon(vagon))
}

// List handles GET /vagons
func (h *VagonHandler) List(c *gin.Context) {
	ctx := c.Request.Context()

	filter := vagons.ListFilter{
		Search:         c.Query("search"),
		Limit:          h.ParseIntQuery(c, "limit", 50),
		Offset:         h.ParseIntQuery(c, "offset", 0),
		IncludeDeleted: c.Query("includeDeleted") == "true",
	}

	if fromStr := c.Query("from"); fromStr != "" {
		from, err := time.Parse(time.RFC3339, fromStr)
		if err != nil {
			h.Error(c, apperror.NewValidation("invalid from date, expected RFC3339"))
			return
		}
		filter.From = &from
	}
	if toStr := c.Query("to"); toStr != "" {
		to, err := time.Parse(time.RFC3339, toStr)
		if err != nil {
			h.Error(c, apperror.NewValidation("invalid to date, expected RFC3339"))
			return
		}
		filter.To = &to
	}

	result, err := h.service.List(ctx, filter)
	if err != nil {
		h.Error(c, err)
		return
	}

	items := make([]*dto.VagonResponse, len(result.Items))
	for i, vagon := range result.Items {
		items[i] = dto.FromVagon(vagon)
	}

	c.JSON(http.StatusOK, dto.ListResponse{
		Items:      items,
		TotalCount: result.TotalCount,
		Limit:      result.Limit,
		Offset:     result.Offset,
	})
}

// RecordSale handles POST /vagons/:id/sales
func (h *VagonHandler) RecordSale(c *gin.Context) {
	ctx := c.Request.Context()

	vagonID, err := id.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid id format"))
		return
	}

	var req dto.VagonSaleRequest
	if !h.BindJSON(c, &req) {
		return
	}

	input, err := req.ToInput()
	if err != nil {
		h.Error(c, err)
		return
	}

	sale, err := h.service.RecordSale(ctx, vagonID, input)
	if err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.FromVagonSale(sale))
}

// ListSales handles GET /vagons/:id/sales
func (h *VagonHandler) ListSales(c *gin.Context) {
	ctx := c.Request.Context()

	vagonID, err := id.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid id format"))
		return
	}

	sales, err := h.service.ListSales(ctx, vagonID)
	if err != nil {
		h.Error(c, err)
		return
	}

	items := make([]*dto.VagonSaleResponse, len(sales))
	for i, sale := range sales {
		items[i] = dto.FromVagonSale(sale)
	}

	c.JSON(http.StatusOK, gin.H{"items": items})
}

// GetSale handles GET /vagon-sales/:id
func (h *VagonHandler) GetSale(c *gin.Context) {
	ctx := c.Request.Context()

	saleID, err := id.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid id format"))
		return
	}

	sale, err := h.service.GetSale(ctx, saleID)
	if err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.FromVagonSale(sale))
}

// UpdateSale handles PUT /vagon-sales/:id
func (h *VagonHandler) UpdateSale(c *gin.Context) {
	ctx := c.Request.Context()

	saleID, err := id.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid id format"))
		return
	}

	var req dto.UpdateVagonSaleRequest
	if !h.BindJSON(c, &req) {
		return
	}

	sale, err := h.service.UpdateSale(ctx, saleID, req.ToInput())
	if err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.FromVagonSale(sale))
}

// DeleteSale handles DELETE /vagon-sales/:id - soft delete; the vagon's
// aggregates are resummed without it.
func (h *VagonHandler) DeleteSale(c *gin.Context) {
	ctx := c.Request.Context()

	saleID, err := id.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid id format"))
		return
	}

	if err := h.service.DeleteSale(ctx, saleID); err != nil {
		h.Error(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// RecordPayment handles POST /vagon-sales/:id/payments
func (h *VagonHandler) RecordPayment(c *gin.Context) {
	ctx := c.Request.Context()

	saleID, err := id.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid id format"))
		return
	}

	var req dto.PaymentRequest
	if !h.BindJSON(c, &req) {
		return
	}

	cur, err := currency.Parse(req.Currency)
	if err != nil {
		h.Error(c, err)
		return
	}

	payment, err := h.service.RecordPayment(ctx, saleID, req.Amount, cur, req.Date)
	if err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusCreated, payment)
}

// Recompute handles POST /vagons/:id/recompute
func (h *VagonHandler) Recompute(c *gin.Context) {
	ctx := c.Request.Context()

	vagonID, err := id.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid id format"))
		return
	}

	vagon, changed, err := h.service.Recompute(ctx, vagonID)
	if err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"vagon":   dto.FromVagon(vagon),
		"changed": changed,
	})
}
