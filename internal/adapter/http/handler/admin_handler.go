package handler

import (
	"coin-bank/internal/adapter/http/dto"
	"coin-bank/internal/adapter/http/middleware"
	"coin-bank/internal/core/ports"
	"coin-bank/pkg/apperror"
	"coin-bank/pkg/response"

	"github.com/gin-gonic/gin"
)

// AdminHandler exposes reserve-only operations. The bank itself checks that
// the caller is the reserve.
type AdminHandler struct {
	bankSvc     ports.BankService
	targetFloat int64
}

// NewAdminHandler creates a new AdminHandler. targetFloat is used when a
// rebalance request does not name one.
func NewAdminHandler(bankSvc ports.BankService, targetFloat int64) *AdminHandler {
	return &AdminHandler{bankSvc: bankSvc, targetFloat: targetFloat}
}

// GetInterestRate handles GET /api/v1/admin/interest-rate.
func (h *AdminHandler) GetInterestRate(c *gin.Context) {
	response.OK(c, dto.NewInterestRateResponse(h.bankSvc.InterestRate()))
}

// SetInterestRate handles PUT /api/v1/admin/interest-rate.
func (h *AdminHandler) SetInterestRate(c *gin.Context) {
	caller, ok := middleware.Principal(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	var req dto.SetInterestRateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	res, err := h.bankSvc.SetInterestRate(c.Request.Context(), caller, *req.RateBps)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.InterestBatchResponse{
		Accounts:  res.Accounts,
		TotalPaid: res.TotalPaid,
		RateBps:   *req.RateBps,
	})
}

// RunInterestBatch handles POST /api/v1/admin/interest-batch.
func (h *AdminHandler) RunInterestBatch(c *gin.Context) {
	caller, ok := middleware.Principal(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	res, err := h.bankSvc.RunInterestBatch(c.Request.Context(), caller)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.InterestBatchResponse{
		Accounts:  res.Accounts,
		TotalPaid: res.TotalPaid,
		RateBps:   h.bankSvc.InterestRate(),
	})
}

// Rebalance handles POST /api/v1/admin/rebalance.
func (h *AdminHandler) Rebalance(c *gin.Context) {
	caller, ok := middleware.Principal(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	var req dto.RebalanceRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, apperror.Validation(err.Error()))
			return
		}
	}
	target := h.targetFloat
	if req.TargetFloat != nil {
		target = *req.TargetFloat
	}

	reqs, err := h.bankSvc.Rebalance(c.Request.Context(), caller, target)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Accepted(c, dto.NewTransfersResponse(reqs))
}
