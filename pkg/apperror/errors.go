package apperror

import (
	"fmt"
	"net/http"
)

// AppError is a structured error that maps to HTTP responses.
type AppError struct {
	Code       string `json:"error_code"`
	Message    string `json:"message"`
	HTTPStatus int    `json:"-"`
	Err        error  `json:"-"` // internal cause, never sent to clients
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Is matches AppErrors by code so callers can compare against constructors.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// New creates a new AppError.
func New(code string, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

// Wrap wraps an internal error with an AppError.
func Wrap(code string, message string, httpStatus int, err error) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Err:        err,
	}
}

// ---- Notifier signature checks (SEC) ----

func ErrInvalidSignature() *AppError {
	return New("SEC_002", "Invalid signature", http.StatusUnauthorized)
}

func ErrTimestampExpired() *AppError {
	return New("SEC_003", "Request timestamp expired", http.StatusForbidden)
}

func ErrNonceUsed() *AppError {
	return New("SEC_004", "Nonce has already been used", http.StatusForbidden)
}

// ---- Bank ledger (BANK) ----

func ErrNoSuchAccount() *AppError {
	return New("BANK_001", "No such account", http.StatusNotFound)
}

func ErrInvalidAmount() *AppError {
	return New("BANK_002", "Invalid amount", http.StatusBadRequest)
}

func ErrUnknownDenomination(err error) *AppError {
	return Wrap("BANK_003", "Unknown denomination", http.StatusBadRequest, err)
}

func ErrInsufficientUserFunds() *AppError {
	return New("BANK_004", "Insufficient funds in account", http.StatusPaymentRequired)
}

func ErrInsufficientVaultFunds() *AppError {
	return New("BANK_005", "Insufficient coins in bank vault", http.StatusConflict)
}

// ErrOverdraft signals a tier debit beyond its count. Value pre-checks make
// this unreachable in practice, so it is treated as an internal failure.
func ErrOverdraft(err error) *AppError {
	return Wrap("BANK_006", "Ledger overdraft", http.StatusInternalServerError, err)
}

// ErrBalanceLimit is returned when a credit would push a coin tier past the
// per-tier count limit.
func ErrBalanceLimit() *AppError {
	return New("BANK_007", "Coin count limit exceeded", http.StatusUnprocessableEntity)
}

// ---- Authentication (AUTH) ----

func ErrUnauthorized() *AppError {
	return New("AUTH_001", "Caller is not authorized for this account", http.StatusForbidden)
}

func ErrInvalidToken() *AppError {
	return New("AUTH_003", "Invalid or expired token", http.StatusUnauthorized)
}

// ---- Rate Limiting (RATE) ----

func ErrRateLimitExceeded() *AppError {
	return New("RATE_001", "Rate limit exceeded", http.StatusTooManyRequests)
}

// ---- System & Infrastructure (SYS) ----

func ErrDatabaseError(err error) *AppError {
	return Wrap("SYS_001", "Internal database error", http.StatusInternalServerError, err)
}

// InternalError wraps an internal error as a SYS_001 error.
func InternalError(err error) *AppError {
	return Wrap("SYS_001", "Internal server error", http.StatusInternalServerError, err)
}

// Validation returns a request validation error.
func Validation(message string) *AppError {
	return New("BANK_002", message, http.StatusBadRequest)
}
