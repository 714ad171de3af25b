package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"timberlot/internal/core/apperror"
	"timberlot/internal/core/currency"
	"timberlot/internal/domain/rates"
	"timberlot/internal/infrastructure/http/v1/dto"
)

// RateHandler handles HTTP requests for the exchange-rate store.
type RateHandler struct {
	*BaseHandler
	service *rates.Service
}

// NewRateHandler creates a new rate handler.
func NewRateHandler(base *BaseHandler, service *rates.Service) *RateHandler {
	return &RateHandler{
		BaseHandler: base,
		service:     service,
	}
}

// Set handles POST /rates - set the current rate for a direction. The
// previous rate goes to history; records that locked it are not touched.
func (h *RateHandler) Set(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.SetRateRequest
	if !h.BindJSON(c, &req) {
		return
	}

	direction, err := currency.ParseDirection(req.Direction)
	if err != nil {
		h.Error(c, err)
		return
	}

	source := rates.Source(req.Source)
	if req.Source == "" {
		source = rates.SourceManual
	}

	rate, err := h.service.SetRate(ctx, direction, req.Rate, source, h.GetActorName(c))
	if err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.FromRate(rate))
}

// GetCurrent handles GET /rates/current?direction=USD_RUB
func (h *RateHandler) GetCurrent(c *gin.Context) {
	ctx := c.Request.Context()

	direction, err := currency.ParseDirection(c.Query("direction"))
	if err != nil {
		h.Error(c, err)
		return
	}

	rate, err := h.service.GetCurrentRate(ctx, direction)
	if err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.FromRate(rate))
}

// History handles GET /rates/history?direction=USD_RUB
func (h *RateHandler) History(c *gin.Context) {
	ctx := c.Request.Context()

	direction, err := currency.ParseDirection(c.Query("direction"))
	if err != nil {
		h.Error(c, err)
		return
	}

	filter := rates.HistoryFilter{
		Limit:  h.ParseIntQuery(c, "limit", 50),
		Offset: h.ParseIntQuery(c, "offset", 0),
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

	result, err := h.service.History(ctx, direction, filter)
	if err != nil {
		h.Error(c, err)
		return
	}

	items := make([]*dto.RateResponse, len(result.Items))
	for i, rate := range result.Items {
		items[i] = dto.FromRate(rate)
	}

	c.JSON(http.StatusOK, dto.ListResponse{
		Items:      items,
		TotalCount: result.TotalCount,
		Limit:      result.Limit,
		Offset:     result.Offset,
	})
}
