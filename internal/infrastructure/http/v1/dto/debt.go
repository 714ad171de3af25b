package dto

import (
	"time"

	"timberlot/internal/core/types"
)

// DeliveryRecordRequest records a delivery-service charge or payment for a
// client. The delivery debt track runs separately from the goods debt.
type DeliveryRecordRequest struct {
	ClientID string      `json:"clientId" binding:"required"`
	Amount   types.Money `json:"amount" binding:"required"`
	Currency string      `json:"currency" binding:"required"`
	Date     time.Time   `json:"date,omitempty"`
}
