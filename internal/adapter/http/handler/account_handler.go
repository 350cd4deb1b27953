package handler

import (
	"coin-bank/internal/adapter/http/dto"
	"coin-bank/internal/adapter/http/middleware"
	"coin-bank/internal/core/domain"
	"coin-bank/internal/core/ports"
	"coin-bank/pkg/apperror"
	"coin-bank/pkg/response"

	"github.com/gin-gonic/gin"
)

// AccountHandler serves the authenticated principal's own account.
type AccountHandler struct {
	bankSvc ports.BankService
}

// NewAccountHandler creates a new AccountHandler.
func NewAccountHandler(bankSvc ports.BankService) *AccountHandler {
	return &AccountHandler{bankSvc: bankSvc}
}

// Open handles POST /api/v1/accounts. It answers 201 when an account was
// created and 200 when it already existed.
func (h *AccountHandler) Open(c *gin.Context) {
	principal, ok := middleware.Principal(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	view, err := h.bankSvc.OpenAccount(c.Request.Context(), principal, principal)
	if err != nil {
		response.Error(c, err)
		return
	}

	if view.Created {
		response.Created(c, dto.NewAccountResponse(view))
		return
	}
	response.OK(c, dto.NewAccountResponse(view))
}

// Get handles GET /api/v1/accounts/me.
func (h *AccountHandler) Get(c *gin.Context) {
	principal, ok := middleware.Principal(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	view, err := h.bankSvc.Account(c.Request.Context(), principal, principal)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.NewAccountResponse(view))
}

// Withdraw handles POST /api/v1/accounts/me/withdraw.
func (h *AccountHandler) Withdraw(c *gin.Context) {
	principal, ok := middleware.Principal(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	var req dto.WithdrawRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	value, err := withdrawValue(req)
	if err != nil {
		response.Error(c, err)
		return
	}

	reqs, err := h.bankSvc.Withdraw(c.Request.Context(), principal, principal, value)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Accepted(c, dto.NewTransfersResponse(reqs))
}

// Close handles DELETE /api/v1/accounts/me.
func (h *AccountHandler) Close(c *gin.Context) {
	principal, ok := middleware.Principal(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	reqs, err := h.bankSvc.CloseAccount(c.Request.Context(), principal, principal)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Accepted(c, dto.NewTransfersResponse(reqs))
}

func withdrawValue(req dto.WithdrawRequest) (int64, error) {
	switch {
	case req.Value != nil && req.Coins != "":
		return 0, apperror.Validation("set either value or coins, not both")
	case req.Value != nil:
		return *req.Value, nil
	case req.Coins != "":
		coins, err := domain.ParseCoins(req.Coins)
		if err != nil {
			return 0, apperror.ErrUnknownDenomination(err)
		}
		return coins.Value(), nil
	default:
		return 0, apperror.Validation("value or coins is required")
	}
}
