package handler

import (
	"coin-bank/internal/adapter/http/dto"
	"coin-bank/internal/core/ports"
	"coin-bank/pkg/apperror"
	"coin-bank/pkg/response"

	"github.com/gin-gonic/gin"
)

// NotificationHandler receives transfer notifications from the
// asset-transfer service.
type NotificationHandler struct {
	bankSvc ports.BankService
}

// NewNotificationHandler creates a new NotificationHandler.
func NewNotificationHandler(bankSvc ports.BankService) *NotificationHandler {
	return &NotificationHandler{bankSvc: bankSvc}
}

// Deposit handles POST /api/v1/notifications/deposit.
func (h *NotificationHandler) Deposit(c *gin.Context) {
	var req dto.DepositNotificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	receipt, err := h.bankSvc.Deposit(c.Request.Context(), req.ToDomain())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, receipt)
}
