package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"timberlot/internal/core/apperror"
	"timberlot/internal/core/currency"
	"timberlot/internal/core/id"
	"timberlot/internal/domain/kassa"
	"timberlot/internal/infrastructure/http/v1/dto"
)

// KassaHandler handles HTTP requests for the cash ledger.
type KassaHandler struct {
	*BaseHandler
	service *kassa.Service
}

// NewKassaHandler creates a new kassa handler.
func NewKassaHandler(base *BaseHandler, service *kassa.Service) *KassaHandler {
	return &KassaHandler{
		BaseHandler: base,
		service:     service,
	}
}

// Append handles POST /kassa/entries - append a manual ledger entry.
func (h *KassaHandler) Append(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.CreateKassaEntryRequest
	if !h.BindJSON(c, &req) {
		return
	}

	input, err := req.ToInput()
	if err != nil {
		h.Error(c, err)
		return
	}

	entry, err := h.service.Record(ctx, input)
	if err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusCreated, entry)
}

// Get handles GET /kassa/entries/:id
func (h *KassaHandler) Get(c *gin.Context) {
	ctx := c.Request.Context()

	entryID, err := id.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid id format"))
		return
	}

	entry, err := h.service.GetByID(ctx, entryID)
	if err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, entry)
}

// List handles GET /kassa/entries
func (h *KassaHandler) List(c *gin.Context) {
	ctx := c.Request.Context()

	filter, ok := h.parseFilter(c)
	if !ok {
		return
	}
	filter.Limit = h.ParseIntQuery(c, "limit", 50)
	filter.Offset = h.ParseIntQuery(c, "offset", 0)
	filter.IncludeDeleted = c.Query("includeDeleted") == "true"

	result, err := h.service.List(ctx, filter)
	if err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ListResponse{
		Items:      result.Items,
		TotalCount: result.TotalCount,
		Limit:      result.Limit,
		Offset:     result.Offset,
	})
}

// Delete handles DELETE /kassa/entries/:id - soft delete; the journal itself
// is append-only.
func (h *KassaHandler) Delete(c *gin.Context) {
	ctx := c.Request.Context()

	entryID, err := id.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid id format"))
		return
	}

	if err := h.service.SoftDelete(ctx, entryID); err != nil {
		h.Error(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// Balance handles GET /kassa/balance - derived totals over live entries.
func (h *KassaHandler) Balance(c *gin.Context) {
	ctx := c.Request.Context()

	filter, ok := h.parseFilter(c)
	if !ok {
		return
	}

	balance, err := h.service.Balance(ctx, filter)
	if err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, balance)
}

// Transfer handles POST /kassa/transfer - inter-currency move as a balanced
// pair of entries.
func (h *KassaHandler) Transfer(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.TransferRequest
	if !h.BindJSON(c, &req) {
		return
	}

	input, err := req.ToInput()
	if err != nil {
		h.Error(c, err)
		return
	}

	result, err := h.service.Transfer(ctx, input)
	if err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusCreated, result)
}

func (h *KassaHandler) parseFilter(c *gin.Context) (kassa.Filter, bool) {
	var filter kassa.Filter

	if fromStr := c.Query("from"); fromStr != "" {
		from, err := time.Parse(time.RFC3339, fromStr)
		if err != nil {
			h.Error(c, apperror.NewValidation("invalid from date, expected RFC3339"))
			return filter, false
		}
		filter.From = &from
	}
	if toStr := c.Query("to"); toStr != "" {
		to, err := time.Parse(time.RFC3339, toStr)
		if err != nil {
			h.Error(c, apperror.NewValidation("invalid to date, expected RFC3339"))
			return filter, false
		}
		filter.To = &to
	}

	for _, t := range c.QueryArray("type") {
		filter.Types = append(filter.Types, kassa.EntryType(t))
	}

	if curStr := c.Query("currency"); curStr != "" {
		cur, err := currency.Parse(curStr)
		if err != nil {
			h.Error(c, err)
			return filter, false
		}
		filter.Currency = &cur
	}

	return filter, true
}
