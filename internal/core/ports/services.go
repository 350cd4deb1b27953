package ports

import (
	"context"
	"time"

	"coin-bank/internal/core/domain"
	"coin-bank/internal/interest"
)

// SignatureService handles HMAC-SHA256 signing and verification.
type SignatureService interface {
	Sign(secretKey string, payload string) string
	Verify(secretKey string, payload string, signature string) bool
	BuildCanonicalString(method, path string, timestamp int64, nonce string, body string) string
}

// TokenService issues and validates bearer tokens naming a principal.
type TokenService interface {
	Generate(principal string) (string, time.Time, error)
	Validate(tokenString string) (*TokenClaims, error)
}

// TokenClaims holds the parsed JWT claims.
type TokenClaims struct {
	Principal string
}

// IdempotencyCache remembers responses to inbound notifications.
type IdempotencyCache interface {
	Get(ctx context.Context, key string) ([]byte, error) // nil when absent
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// NonceStore manages nonce uniqueness for replay attack prevention.
type NonceStore interface {
	// CheckAndSet atomically records nonce under scope. It returns true if
	// the nonce was new, false if it had already been used.
	CheckAndSet(ctx context.Context, scope string, nonce string, ttl time.Duration) (bool, error)
}

// TransferQueue carries outbound transfer requests from the bank to the
// delivery worker.
type TransferQueue interface {
	Push(ctx context.Context, reqs []domain.TransferRequest) error
	// Pop blocks up to timeout and returns nil when nothing arrived.
	Pop(ctx context.Context, timeout time.Duration) (*domain.TransferRequest, error)
}

// TransferSender delivers one request to the asset-transfer service.
type TransferSender interface {
	Send(ctx context.Context, req domain.TransferRequest) error
}

// AuditService records audit entries without blocking the caller.
type AuditService interface {
	Log(ctx context.Context, entry *domain.AuditLog)
}

// --- Service Ports (Business Logic) ---

// BankService serialises bank operations and persists their effects.
type BankService interface {
	Deposit(ctx context.Context, n domain.DepositNotification) (*DepositReceipt, error)
	OpenAccount(ctx context.Context, caller, user string) (*AccountView, error)
	Account(ctx context.Context, caller, user string) (*AccountView, error)
	Withdraw(ctx context.Context, caller, user string, value int64) ([]domain.TransferRequest, error)
	CloseAccount(ctx context.Context, caller, user string) ([]domain.TransferRequest, error)
	SetInterestRate(ctx context.Context, caller string, rateBps int64) (*interest.BatchResult, error)
	RunInterestBatch(ctx context.Context, caller string) (*interest.BatchResult, error)
	Rebalance(ctx context.Context, caller string, targetFloat int64) ([]domain.TransferRequest, error)
	InterestRate() int64
}

// DepositReceipt reports how a deposit notification was applied.
type DepositReceipt struct {
	NotificationID string `json:"notification_id"`
	Ignored        bool   `json:"ignored"`
	ReserveTopup   bool   `json:"reserve_topup"`
	InterestPaid   int64  `json:"interest_paid"`
}

// AccountView is an account as shown to its owner.
type AccountView struct {
	Account         domain.Account `json:"account"`
	Value           int64          `json:"value"`
	Coins           string         `json:"coins"`
	PendingInterest int64          `json:"pending_interest"`
	Created         bool           `json:"created,omitempty"`
}
