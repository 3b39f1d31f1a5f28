package handler

import (
	"points-commerce-engine/internal/adapter/http/middleware"
	"points-commerce-engine/internal/adapter/qr"
	redisStore "points-commerce-engine/internal/adapter/storage/redis"
	"points-commerce-engine/internal/core/domain"
	"points-commerce-engine/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	AllocationSvc  ports.AllocationService
	SalesSvc       ports.SalesService
	PaymentSvc     ports.PaymentService
	CardSvc        ports.CardService
	ReconSvc       ports.ReconciliationService
	LedgerSvc      ports.LedgerService
	DirectorySvc   ports.DirectoryService
	TokenSvc       ports.TokenService
	QRCodec        *qr.Codec                  // nil = QR spend disabled
	RateLimitStore *redisStore.RateLimitStore // nil = rate limiting disabled
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
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(middleware.MaxBodySize(1 << 20)) // 1 MB request body limit

	// Audit logging (after response)
	if deps.AuditSvc != nil {
		r.Use(middleware.AuditLog(deps.AuditSvc))
	}

	// Health check (deep: verifies PostgreSQL + Redis)
	r.GET("/health", HealthCheck(deps.HealthCheckers...))

	// Rate limit rules
	rules := middleware.DefaultRateLimitRules()

	// Helper: return rate limiter middleware if store is available, else noop.
	rl := func(group string) gin.HandlerFunc {
		if deps.RateLimitStore == nil {
			return func(c *gin.Context) { c.Next() }
		}
		rule, ok := rules[group]
		if !ok {
			return func(c *gin.Context) { c.Next() }
		}
		return middleware.RateLimiter(deps.RateLimitStore, group, rule, deps.Logger)
	}

	// Every API route requires an identity-provider token.
	auth := middleware.IdentityAuth(deps.TokenSvc, deps.Logger)
	v1 := r.Group("/api/v1", auth)

	// --- Allocations (organizer / seller manager) ---
	allocationHandler := NewAllocationHandler(deps.AllocationSvc)
	allocations := v1.Group("/allocations")
	{
		allocations.POST("", rl("allocations"), allocationHandler.Allocate)
		allocations.POST("/recall", rl("allocations"), allocationHandler.Recall)
		allocations.POST("/cohort-grant",
			rl("allocations"),
			middleware.RequireRole(domain.RoleOrganizer),
			allocationHandler.GrantByCohort)
	}

	// --- Point-of-sale (sellers) ---
	salesHandler := NewSalesHandler(deps.SalesSvc)
	v1.POST("/sales", rl("sales"), middleware.RequireRole(domain.RoleSeller), salesHandler.Sell)

	// --- Merchant payments ---
	paymentHandler := NewPaymentHandler(deps.PaymentSvc)
	payments := v1.Group("/payments")
	{
		payments.POST("", rl("payments"), paymentHandler.Initiate)
		payments.GET("/:id", rl("queries"), paymentHandler.GetTransaction)
		payments.POST("/:id/confirm", rl("payments"), paymentHandler.Confirm)
		payments.POST("/:id/cancel", rl("payments"), paymentHandler.Cancel)
		payments.POST("/:id/refund", rl("payments_refund"), paymentHandler.Refund)
	}

	// --- Bearer cards ---
	cardHandler := NewCardHandler(deps.CardSvc, deps.QRCodec)
	cards := v1.Group("/cards")
	{
		cards.POST("", rl("cards"), middleware.RequireRole(domain.RoleSeller), cardHandler.Issue)
		cards.GET("/:id", rl("queries"), cardHandler.QueryBalance)
		cards.POST("/:id/topup", rl("cards"), middleware.RequireRole(domain.RoleSeller), cardHandler.TopUp)
		cards.POST("/:id/deactivate",
			rl("cards"),
			middleware.RequireAnyRole(domain.RoleSeller, domain.RoleOrganizer),
			cardHandler.Deactivate)
		cards.POST("/spend", rl("cards_spend"), cardHandler.Spend)
		cards.POST("/spend-qr", rl("cards_spend"), cardHandler.SpendQR)
	}

	// --- Cash reconciliation ---
	reconHandler := NewReconciliationHandler(deps.ReconSvc)
	cash := v1.Group("/cash/submissions")
	{
		cash.POST("", rl("cash"), reconHandler.Submit)
		cash.GET("/pending", rl("queries"), middleware.RequireRole(domain.RoleClerk), reconHandler.ListPending)
		cash.POST("/:id/claim", rl("cash"), middleware.RequireRole(domain.RoleClerk), reconHandler.Claim)
		cash.POST("/:id/confirm", rl("cash"), middleware.RequireRole(domain.RoleClerk), reconHandler.Confirm)
		cash.POST("/:id/dispute", rl("cash"), middleware.RequireRole(domain.RoleClerk), reconHandler.Dispute)
	}

	// --- Balances and ledger (own records only) ---
	ledgerHandler := NewLedgerHandler(deps.LedgerSvc)
	v1.GET("/balances/:role", rl("queries"), ledgerHandler.GetBalance)
	v1.POST("/balances/:role/rebuild", rl("queries"), ledgerHandler.RebuildBalance)
	v1.GET("/ledger/:role", rl("queries"), ledgerHandler.ListEntries)

	// --- Actor directory ---
	directoryHandler := NewDirectoryHandler(deps.DirectorySvc)
	actors := v1.Group("/actors")
	{
		actors.PUT("", rl("directory"), middleware.RequireRole(domain.RoleOrganizer), directoryHandler.UpsertActor)
		actors.PUT("/me/pin", rl("directory"), middleware.RequireRole(domain.RoleClerk), directoryHandler.SetPIN)
		actors.GET("/:id", rl("queries"), middleware.RequireRole(domain.RoleOrganizer), directoryHandler.GetActor)
	}

	return r
}
