package domain

import (
	"time"

	"github.com/google/uuid"
)

// AuditAction represents the type of audited action.
type AuditAction string

const (
	AuditActionOpenAccount   AuditAction = "OPEN_ACCOUNT"
	AuditActionCloseAccount  AuditAction = "CLOSE_ACCOUNT"
	AuditActionWithdraw      AuditAction = "WITHDRAW"
	AuditActionDeposit       AuditAction = "DEPOSIT"
	AuditActionSetInterest   AuditAction = "SET_INTEREST_RATE"
	AuditActionInterestBatch AuditAction = "INTEREST_BATCH"
	AuditActionRebalance     AuditAction = "REBALANCE"
)

// AuditLog records a single audited action in the system.
type AuditLog struct {
	ID           uuid.UUID   `json:"id"`
	Principal    string      `json:"principal,omitempty"`
	Action       AuditAction `json:"action"`
	ResourceType string      `json:"resource_type"`
	Details      string      `json:"details,omitempty"` // JSON string
	IPAddress    string      `json:"ip_address"`
	CreatedAt    time.Time   `json:"created_at"`
}
