package middleware

import (
	"encoding/json"
	"time"

	"points-commerce-engine/internal/core/domain"
	"points-commerce-engine/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// AuditLog creates an audit middleware that records successful write
// operations. It maps route templates to audit actions.
func AuditLog(auditSvc ports.AuditService) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		// Only audit successful write operations (status 2xx)
		if c.Writer.Status() < 200 || c.Writer.Status() >= 300 {
			return
		}
		if c.Request.Method == "GET" || c.Request.Method == "HEAD" || c.Request.Method == "OPTIONS" {
			return
		}

		action, resourceType := mapRouteToAction(c.FullPath(), c.Request.Method)
		if action == "" {
			return
		}

		var actorID *uuid.UUID
		if aid, exists := c.Get(CtxActorID); exists {
			if id, ok := aid.(uuid.UUID); ok {
				actorID = &id
			}
		}

		details, _ := json.Marshal(map[string]interface{}{
			"method": c.Request.Method,
			"path":   c.Request.URL.Path,
			"status": c.Writer.Status(),
		})

		auditSvc.Log(c.Request.Context(), &domain.AuditRecord{
			ID:           uuid.New(),
			ActorID:      actorID,
			Action:       action,
			ResourceType: resourceType,
			ResourceID:   c.Param("id"),
			Details:      string(details),
			IPAddress:    c.ClientIP(),
			CreatedAt:    time.Now(),
		})
	}
}

func mapRouteToAction(route, method string) (domain.AuditAction, string) {
	switch {
	case route == "/api/v1/allocations" && method == "POST":
		return domain.AuditActionAllocate, "allocation"
	case route == "/api/v1/allocations/recall" && method == "POST":
		return domain.AuditActionRecall, "allocation"
	case route == "/api/v1/allocations/cohort-grant" && method == "POST":
		return domain.AuditActionCohortGrant, "allocation"
	case route == "/api/v1/sales" && method == "POST":
		return domain.AuditActionSell, "sale"
	case route == "/api/v1/payments" && method == "POST":
		return domain.AuditActionPaymentInit, "transaction"
	case route == "/api/v1/payments/:id/confirm" && method == "POST":
		return domain.AuditActionPaymentConfirm, "transaction"
	case route == "/api/v1/payments/:id/cancel" && method == "POST":
		return domain.AuditActionPaymentCancel, "transaction"
	case route == "/api/v1/payments/:id/refund" && method == "POST":
		return domain.AuditActionPaymentRefund, "transaction"
	case route == "/api/v1/cards" && method == "POST":
		return domain.AuditActionCardIssue, "card"
	case route == "/api/v1/cards/:id/topup" && method == "POST":
		return domain.AuditActionCardTopUp, "card"
	case (route == "/api/v1/cards/spend" || route == "/api/v1/cards/spend-qr") && method == "POST":
		return domain.AuditActionCardSpend, "card"
	case route == "/api/v1/cash/submissions" && method == "POST":
		return domain.AuditActionCashSubmit, "submission"
	case route == "/api/v1/cash/submissions/:id/claim" && method == "POST":
		return domain.AuditActionCashClaim, "submission"
	case route == "/api/v1/cash/submissions/:id/confirm" && method == "POST":
		return domain.AuditActionCashConfirm, "submission"
	case route == "/api/v1/cash/submissions/:id/dispute" && method == "POST":
		return domain.AuditActionCashDispute, "submission"
	case route == "/api/v1/actors" && method == "PUT":
		return domain.AuditActionActorUpsert, "actor"
	}
	return "", ""
}
