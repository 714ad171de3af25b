package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"timberlot/internal/core/apperror"
	"timberlot/internal/core/currency"
	"timberlot/internal/core/id"
	"timberlot/internal/domain/debts"
	"timberlot/internal/infrastructure/http/v1/dto"
)

// DebtHandler handles HTTP requests for client debt projections and the
// delivery debt track.
type DebtHandler struct {
	*BaseHandler
	service *debts.Service
}

// NewDebtHandler creates a new debt handler.
func NewDebtHandler(base *BaseHandler, service *debts.Service) *DebtHandler {
	return &DebtHandler{
		BaseHandler: base,
		service:     service,
	}
}

// Summary handles GET /debts - projections for every client/currency pair
// that has any live records, replayed from scratch.
func (h *DebtHandler) Summary(c *gin.Context) {
	ctx := c.Request.Context()

	projections, err := h.service.DebtSummary(ctx)
	if err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"items": projections})
}

// GetForClient handles GET /debts/:clientId?currency=USD
func (h *DebtHandler) GetForClient(c *gin.Context) {
	ctx := c.Request.Context()

	clientID, err := id.Parse(c.Param("clientId"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid clientId format"))
		return
	}

	cur, err := currency.Parse(c.Query("currency"))
	if err != nil {
		h.Error(c, err)
		return
	}

	projection, err := h.service.RecomputeForClient(ctx, clientID, cur)
	if err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, projection)
}

// RecordDeliveryCharge handles POST /debts/delivery/charges
func (h *DebtHandler) RecordDeliveryCharge(c *gin.Context) {
	h.recordDelivery(c, debts.DeliveryCharge)
}

// RecordDeliveryPayment handles POST /debts/delivery/payments
func (h *DebtHandler) RecordDeliveryPayment(c *gin.Context) {
	h.recordDelivery(c, debts.DeliveryPayment)
}

func (h *DebtHandler) recordDelivery(c *gin.Context, kind debts.DeliveryKind) {
	ctx := c.Request.Context()

	var req dto.DeliveryRecordRequest
	if !h.BindJSON(c, &req) {
		return
	}

	clientID, err := id.Parse(req.ClientID)
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid clientId format"))
		return
	}

	cur, err := currency.Parse(req.Currency)
	if err != nil {
		h.Error(c, err)
		return
	}

	var record *debts.DeliveryRecord
	if kind == debts.DeliveryCharge {
		record, err = h.service.RecordDeliveryCharge(ctx, clientID, req.Amount, cur, req.Date)
	} else {
		record, err = h.service.RecordDeliveryPayment(ctx, clientID, req.Amount, cur, req.Date)
	}
	if err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusCreated, record)
}

// DeleteDeliveryRecord handles DELETE /debts/delivery/:id - soft delete; the
// next replay excludes the record.
func (h *DebtHandler) DeleteDeliveryRecord(c *gin.Context) {
	ctx := c.Request.Context()

	recordID, err := id.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid id format"))
		return
	}

	if err := h.service.DeleteDeliveryRecord(ctx, recordID); err != nil {
		h.Error(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}
