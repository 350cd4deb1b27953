package handler

import (
	"coin-bank/internal/adapter/http/middleware"
	redisStore "coin-bank/internal/adapter/storage/redis"
	"coin-bank/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	BankSvc        ports.BankService
	SigSvc         ports.SignatureService
	NonceStore     ports.NonceStore
	TokenSvc       ports.TokenService
	NotifierSecret string
	TargetFloat    int64
	RateLimitStore *redisStore.RateLimitStore          // nil = rate limiting disabled
	RateLimitRules map[string]middleware.RateLimitRule // nil = defaults
	HealthCheckers []ports.HealthChecker
	AuditSvc       ports.AuditService // nil = audit logging disabled
	Logger         zerolog.Logger
}

// SetupRouter initialises the Gin engine with all routes and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestID())
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(middleware.MaxBodySize(64 << 10))

	// Audit logging (after response)
	if deps.AuditSvc != nil {
		r.Use(middleware.AuditLog(deps.AuditSvc))
	}

	r.GET("/health", HealthCheck(deps.HealthCheckers...))

	swagger := r.Group("/swagger")
	{
		swagger.GET("", SwaggerUI)
		swagger.GET("/spec", SwaggerSpec)
	}

	rules := deps.RateLimitRules
	if rules == nil {
		rules = middleware.DefaultRateLimitRules()
	}

	// Helper: return rate limiter middleware if store is available, else noop.
	rl := func(group string) gin.HandlerFunc {
		rule, ok := rules[group]
		if deps.RateLimitStore == nil || !ok {
			return func(c *gin.Context) { c.Next() }
		}
		return middleware.RateLimiter(deps.RateLimitStore, group, rule, deps.Logger)
	}

	v1 := r.Group("/api/v1")

	// --- HMAC-authenticated routes (asset-transfer service) ---
	hmacAuth := middleware.HMACAuth(deps.NotifierSecret, deps.SigSvc, deps.NonceStore, deps.Logger)
	notificationHandler := NewNotificationHandler(deps.BankSvc)
	notifications := v1.Group("/notifications", rl("notifications"), hmacAuth)
	{
		notifications.POST("/deposit", notificationHandler.Deposit)
	}

	// --- JWT-authenticated routes ---
	jwtAuth := middleware.JWTAuth(deps.TokenSvc, deps.Logger)

	accountHandler := NewAccountHandler(deps.BankSvc)
	accounts := v1.Group("/accounts", jwtAuth, rl("accounts"))
	{
		accounts.POST("", accountHandler.Open)
		accounts.GET("/me", accountHandler.Get)
		accounts.DELETE("/me", accountHandler.Close)
		accounts.POST("/me/withdraw", rl("withdraw"), accountHandler.Withdraw)
	}

	adminHandler := NewAdminHandler(deps.BankSvc, deps.TargetFloat)
	admin := v1.Group("/admin", jwtAuth, rl("admin"))
	{
		admin.GET("/interest-rate", adminHandler.GetInterestRate)
		admin.PUT("/interest-rate", adminHandler.SetInterestRate)
		admin.POST("/interest-batch", adminHandler.RunInterestBatch)
		admin.POST("/rebalance", adminHandler.Rebalance)
	}

	return r
}
