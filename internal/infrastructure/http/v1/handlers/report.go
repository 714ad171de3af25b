package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"timberlot/internal/core/apperror"
	"timberlot/internal/core/currency"
	"timberlot/internal/domain/lots"
	"timberlot/internal/domain/reports"
)

// ReportHandler handles HTTP requests for reports.
type ReportHandler struct {
	*BaseHandler
	service *reports.Service
}

// NewReportHandler creates a new report handler.
func NewReportHandler(base *BaseHandler, service *reports.Service) *ReportHandler {
	return &ReportHandler{
		BaseHandler: base,
		service:     service,
	}
}

// GetLotProfitability handles GET /reports/lot-profitability
func (h *ReportHandler) GetLotProfitability(c *gin.Context) {
	ctx := c.Request.Context()

	filter := reports.LotProfitabilityFilter{
		IncludeDeleted: c.Query("includeDeleted") == "true",
		Limit:          h.ParseIntQuery(c, "limit", 50),
		Offset:         h.ParseIntQuery(c, "offset", 0),
	}

	for _, s := range c.QueryArray("status") {
		filter.Statuses = append(filter.Statuses, lots.Status(s))
	}

	from, to, ok := h.parsePeriod(c)
	if !ok {
		return
	}
	filter.From = from
	filter.To = to

	report, err := h.service.GetLotProfitability(ctx, filter)
	if err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, report)
}

// GetVagonSummary handles GET /reports/vagon-summary
func (h *ReportHandler) GetVagonSummary(c *gin.Context) {
	ctx := c.Request.Context()

	filter := reports.VagonSummaryFilter{
		Limit:  h.ParseIntQuery(c, "limit", 50),
		Offset: h.ParseIntQuery(c, "offset", 0),
	}

	from, to, ok := h.parsePeriod(c)
	if !ok {
		return
	}
	filter.From = from
	filter.To = to

	report, err := h.service.GetVagonSummary(ctx, filter)
	if err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, report)
}

// GetKassaPeriod handles GET /reports/kassa-period
func (h *ReportHandler) GetKassaPeriod(c *gin.Context) {
	ctx := c.Request.Context()

	from, err := time.Parse(time.RFC3339, c.Query("from"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid from date, expected RFC3339"))
		return
	}
	to, err := time.Parse(time.RFC3339, c.Query("to"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid to date, expected RFC3339"))
		return
	}

	filter := reports.KassaPeriodFilter{From: from, To: to}

	if curStr := c.Query("currency"); curStr != "" {
		cur, err := currency.Parse(curStr)
		if err != nil {
			h.Error(c, err)
			return
		}
		filter.Currency = &cur
	}

	report, err := h.service.GetKassaPeriod(ctx, filter)
	if err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, report)
}

// GetClientDebts handles GET /reports/client-debts
func (h *ReportHandler) GetClientDebts(c *gin.Context) {
	ctx := c.Request.Context()

	projections, err := h.service.GetClientDebts(ctx)
	if err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"items": projections})
}

func (h *ReportHandler) parsePeriod(c *gin.Context) (*time.Time, *time.Time, bool) {
	var from, to *time.Time

	if fromStr := c.Query("from"); fromStr != "" {
		t, err := time.Parse(time.RFC3339, fromStr)
		if err != nil {
			h.Error(c, apperror.NewValidation("invalid from date, expected RFC3339"))
			return nil, nil, false
		}
		from = &t
	}
	if toStr := c.Query("to"); toStr != "" {
		t, err := time.Parse(time.RFC3339, toStr)
		if err != nil {
			h.Error(c, apperror.NewValidation("invalid to date, expected RFC3339"))
			return nil, nil, false
		}
		to = &t
	}

	return from, to, true
}
