package middleware

import (
	"encoding/json"
	"net/http"
	"time"

	"coin-bank/internal/core/domain"
	"coin-bank/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// AuditLog records successful write operations once the handler is done.
func AuditLog(auditSvc ports.AuditService) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		status := c.Writer.Status()
		if status < 200 || status >= 300 {
			return
		}
		switch c.Request.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			return
		}

		action, resourceType := mapPathToAction(c.FullPath(), c.Request.Method)
		if action == "" {
			return
		}

		principal, _ := Principal(c)
		details, _ := json.Marshal(map[string]any{
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"status":     status,
			"request_id": c.GetString(CtxRequestID),
		})

		auditSvc.Log(c.Request.Context(), &domain.AuditLog{
			ID:           uuid.New(),
			Principal:    principal,
			Action:       action,
			ResourceType: resourceType,
			IPAddress:    c.ClientIP(),
			Details:      string(details),
			CreatedAt:    time.Now().UTC(),
		})
	}
}

func mapPathToAction(path, method string) (domain.AuditAction, string) {
	switch {
	case path == "/api/v1/notifications/deposit" && method == http.MethodPost:
		return domain.AuditActionDeposit, "notification"
	case path == "/api/v1/accounts" && method == http.MethodPost:
		return domain.AuditActionOpenAccount, "account"
	case path == "/api/v1/accounts/me" && method == http.MethodDelete:
		return domain.AuditActionCloseAccount, "account"
	case path == "/api/v1/accounts/me/withdraw" && method == http.MethodPost:
		return domain.AuditActionWithdraw, "account"
	case path == "/api/v1/admin/interest-rate" && method == http.MethodPut:
		return domain.AuditActionSetInterest, "settings"
	case path == "/api/v1/admin/interest-batch" && method == http.MethodPost:
		return domain.AuditActionInterestBatch, "ledger"
	case path == "/api/v1/admin/rebalance" && method == http.MethodPost:
		return domain.AuditActionRebalance, "vault"
	}
	return "", ""
}
