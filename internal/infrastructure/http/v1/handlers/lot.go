package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"timberlot/internal/core/apperror"
	"timberlot/internal/core/id"
	"timberlot/internal/domain/lots"
	"timberlot/internal/infrastructure/http/v1/dto"
)

// LotHandler handles HTTP requests for lots and their financial records.
type LotHandler struct {
	*BaseHandler
	service *lots.Service
}

// NewLotHandler creates a new lot handler.
func NewLotHandler(base *BaseHandler, service *lots.Service) *LotHandler {
	return &LotHandler{
		BaseHandler: base,
		service:     service,
	}
}

// Create handles POST /lots - create a lot from its purchase.
func (h *LotHandler) Create(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.CreateLotRequest
	if !h.BindJSON(c, &req) {
		return
	}

	input, err := req.ToInput()
	if err != nil {
		h.Error(c, err)
		return
	}

	lot, err := h.service.CreateFromPurchase(ctx, input)
	if err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.FromLot(lot))
}

// Get handles GET /lots/:id
func (h *LotHandler) Get(c *gin.Context) {
	ctx := c.Request.Context()

	lotID, err := id.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid id format"))
		return
	}

	lot, err := h.service.GetByID(ctx, lotID)
	if err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.FromLot(lot))
}

// List handles GET /lots
func (h *LotHandler) List(c *gin.Context) {
	ctx := c.Request.Context()

	filter := lots.ListFilter{
		Search:         c.Query("search"),
		Limit:          h.ParseIntQuery(c, "limit", 50),
		Offset:         h.ParseIntQuery(c, "offset", 0),
		IncludeDeleted: c.Query("includeDeleted") == "true",
	}

	for _, s := range c.QueryArray("status") {
		filter.Statuses = append(filter.Statuses, lots.Status(s))
	}

	if clientStr := c.Query("clientId"); clientStr != "" {
		clientID, err := id.Parse(clientStr)
		if err != nil {
			h.Error(c, apperror.NewValidation("invalid clientId format"))
			return
		}
		filter.ClientID = &clientID
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

	items := make([]*dto.LotResponse, len(result.Items))
	for i, lot := range result.Items {
		items[i] = dto.FromLot(lot)
	}

	c.JSON(http.StatusOK, dto.ListResponse{
		Items:      items,
		TotalCount: result.TotalCount,
		Limit:      result.Limit,
		Offset:     result.Offset,
	})
}

// AttachExpense handles POST /lots/:id/expenses
func (h *LotHandler) AttachExpense(c *gin.Context) {
	ctx := c.Request.Context()

	lotID, err := id.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid id format"))
		return
	}

	var req dto.ExpenseRequest
	if !h.BindJSON(c, &req) {
		return
	}

	input, err := req.ToInput()
	if err != nil {
		h.Error(c, err)
		return
	}

	record, err := h.service.AttachExpense(ctx, lotID, input)
	if err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusCreated, record)
}

// ListExpenses handles GET /lots/:id/expenses
func (h *LotHandler) ListExpenses(c *gin.Context) {
	ctx := c.Request.Context()

	lotID, err := id.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid id format"))
		return
	}

	records, err := h.service.ListExpenses(ctx, lotID)
	if err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"items": records})
}

// RecordStandaloneExpense handles POST /expenses - an expense attached to no
// lot (or targeted at a vagon).
func (h *LotHandler) RecordStandaloneExpense(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.ExpenseRequest
	if !h.BindJSON(c, &req) {
		return
	}

	input, err := req.ToInput()
	if err != nil {
		h.Error(c, err)
		return
	}

	record, err := h.service.RecordStandaloneExpense(ctx, input)
	if err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusCreated, record)
}

// RecordSale handles POST /lots/:id/sale
func (h *LotHandler) RecordSale(c *gin.Context) {
	ctx := c.Request.Context()

	lotID, err := id.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid id format"))
		return
	}

	var req dto.LotSaleRequest
	if !h.BindJSON(c, &req) {
		return
	}

	input, err := req.ToInput()
	if err != nil {
		h.Error(c, err)
		return
	}

	record, err := h.service.RecordSale(ctx, lotID, input)
	if err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusCreated, record)
}

// SettleSale handles POST /lots/:id/sale/settle - mark a credit sale paid.
func (h *LotHandler) SettleSale(c *gin.Context) {
	ctx := c.Request.Context()

	lotID, err := id.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid id format"))
		return
	}

	record, err := h.service.SettleSale(ctx, lotID)
	if err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, record)
}

// UpdateStatus handles POST /lots/:id/status
func (h *LotHandler) UpdateStatus(c *gin.Context) {
	ctx := c.Request.Context()

	lotID, err := id.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid id format"))
		return
	}

	var req dto.UpdateLotStatusRequest
	if !h.BindJSON(c, &req) {
		return
	}

	lot, err := h.service.UpdateStatus(ctx, lotID, lots.Status(req.Status))
	if err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.FromLot(lot))
}

// Recompute handles POST /lots/:id/recompute - re-derive aggregates from
// records and report whether anything drifted.
func (h *LotHandler) Recompute(c *gin.Context) {
	ctx := c.Request.Context()

	lotID, err := id.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid id format"))
		return
	}

	lot, changed, err := h.service.Recompute(ctx, lotID)
	if err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"lot":     dto.FromLot(lot),
		"changed": changed,
	})
}

// Delete handles DELETE /lots/:id - soft delete of the lot and its records.
func (h *LotHandler) Delete(c *gin.Context) {
	ctx := c.Request.Context()

	lotID, err := id.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid id format"))
		return
	}

	if err := h.service.Delete(ctx, lotID); err != nil {
		h.Error(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}
