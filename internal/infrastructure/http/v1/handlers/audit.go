package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"timberlot/internal/core/apperror"
	"timberlot/internal/core/id"
	"timberlot/internal/infrastructure/storage/postgres"
)

// AuditHandler exposes the change history of audited entities.
type AuditHandler struct {
	*BaseHandler
	service *postgres.AuditService
}

// NewAuditHandler creates a new audit handler.
func NewAuditHandler(base *BaseHandler, service *postgres.AuditService) *AuditHandler {
	return &AuditHandler{
		BaseHandler: base,
		service:     service,
	}
}

// GetHistory handles GET /audit/:entityType/:id - newest changes first.
func (h *AuditHandler) GetHistory(c *gin.Context) {
	ctx := c.Request.Context()

	entityID, err := id.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid id format"))
		return
	}

	limit := h.ParseIntQuery(c, "limit", 100)

	rows, err := h.service.GetEntityHistory(ctx, c.Param("entityType"), entityID, limit)
	if err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"items": rows})
}
