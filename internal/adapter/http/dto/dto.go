package dto

import (
	"time"

	"coin-bank/internal/core/domain"
	"coin-bank/internal/core/ports"
	"coin-bank/internal/interest"
)

// DepositNotificationRequest is the body the asset-transfer service posts
// whenever coins move to or from the bank's identity.
type DepositNotificationRequest struct {
	ID       string `json:"id" binding:"required,max=128,safe_id"`
	From     string `json:"from" binding:"required,principal"`
	To       string `json:"to" binding:"required,principal"`
	Symbol   string `json:"symbol" binding:"required,max=8"`
	Quantity int64  `json:"quantity" binding:"lte=7944334226403768"`
	Memo     string `json:"memo" binding:"max=256"`
}

// ToDomain converts the request into a notification.
func (r DepositNotificationRequest) ToDomain() domain.DepositNotification {
	return domain.DepositNotification{
		ID:       r.ID,
		From:     r.From,
		To:       r.To,
		Symbol:   r.Symbol,
		Quantity: r.Quantity,
		Memo:     r.Memo,
	}
}

// WithdrawRequest asks for either a value in copper or a coin list such as
// "3gp 5sp". Exactly one must be set. Counts above domain.MaxCount are
// refused before they reach the ledger.
type WithdrawRequest struct {
	Value *int64 `json:"value,omitempty" binding:"omitempty,lte=7944334226403768"`
	Coins string `json:"coins,omitempty" binding:"omitempty,max=128,coins"`
}

// SetInterestRateRequest is the body for PUT /admin/interest-rate.
type SetInterestRateRequest struct {
	RateBps *int64 `json:"rate_bps" binding:"required"`
}

// RebalanceRequest is the body for POST /admin/rebalance. The configured
// target float applies when it is omitted.
type RebalanceRequest struct {
	TargetFloat *int64 `json:"target_float,omitempty"`
}

// AccountResponse is an account as shown to its owner.
type AccountResponse struct {
	Principal       string           `json:"principal"`
	Coins           map[string]int64 `json:"coins"`
	Display         string           `json:"display"`
	Value           int64            `json:"value"`
	PendingInterest int64            `json:"pending_interest"`
	InterestBearing bool             `json:"interest_bearing"`
	LastInterestAt  string           `json:"last_interest_at"`
}

// NewAccountResponse builds the response from a service view.
func NewAccountResponse(v *ports.AccountView) AccountResponse {
	coins := make(map[string]int64, len(domain.Denominations()))
	for _, d := range domain.Denominations() {
		coins[d.Symbol()] = v.Account.Balance[d]
	}
	return AccountResponse{
		Principal:       v.Account.Principal,
		Coins:           coins,
		Display:         v.Coins,
		Value:           v.Value,
		PendingInterest: v.PendingInterest,
		InterestBearing: v.Account.InterestBearing,
		LastInterestAt:  v.Account.LastInterestAt.UTC().Format(time.RFC3339),
	}
}

// TransferResponse is one queued outbound transfer.
type TransferResponse struct {
	ID     string `json:"id"`
	From   string `json:"from"`
	To     string `json:"to"`
	Symbol string `json:"symbol"`
	Amount int64  `json:"amount"`
	Memo   string `json:"memo"`
}

// TransfersResponse wraps the transfers an operation queued.
type TransfersResponse struct {
	Transfers []TransferResponse `json:"transfers"`
	Value     int64              `json:"value"`
}

// NewTransfersResponse converts requests and totals their value.
func NewTransfersResponse(reqs []domain.TransferRequest) TransfersResponse {
	out := TransfersResponse{Transfers: make([]TransferResponse, 0, len(reqs))}
	for _, r := range reqs {
		out.Transfers = append(out.Transfers, TransferResponse(r))
		if d, err := domain.LookupSymbol(r.Symbol); err == nil {
			out.Value += r.Amount * d.BaseValue()
		}
	}
	return out
}

// InterestRateResponse reports the current rate.
type InterestRateResponse struct {
	RateBps int64  `json:"rate_bps"`
	Percent string `json:"percent"`
}

// NewInterestRateResponse formats bps as a percentage string.
func NewInterestRateResponse(bps int64) InterestRateResponse {
	e, err := interest.NewEngine(bps)
	if err != nil {
		return InterestRateResponse{RateBps: bps}
	}
	return InterestRateResponse{
		RateBps: bps,
		Percent: e.Rate().Shift(2).String(),
	}
}

// InterestBatchResponse reports a settlement run.
type InterestBatchResponse struct {
	Accounts  int   `json:"accounts"`
	TotalPaid int64 `json:"total_paid"`
	RateBps   int64 `json:"rate_bps"`
}
