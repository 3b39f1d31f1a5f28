package domain

import (
	"time"

	"github.com/google/uuid"
)

// AuditAction represents the type of audited engine command.
type AuditAction string

const (
	AuditActionAllocate       AuditAction = "ALLOCATE"
	AuditActionRecall         AuditAction = "RECALL"
	AuditActionCohortGrant    AuditAction = "COHORT_GRANT"
	AuditActionSell           AuditAction = "SELL"
	AuditActionPaymentInit    AuditAction = "PAYMENT_INITIATE"
	AuditActionPaymentConfirm AuditAction = "PAYMENT_CONFIRM"
	AuditActionPaymentCancel  AuditAction = "PAYMENT_CANCEL"
	AuditActionPaymentRefund  AuditAction = "PAYMENT_REFUND"
	AuditActionCardIssue      AuditAction = "CARD_ISSUE"
	AuditActionCardTopUp      AuditAction = "CARD_TOPUP"
	AuditActionCardSpend      AuditAction = "CARD_SPEND"
	AuditActionCashSubmit     AuditAction = "CASH_SUBMIT"
	AuditActionCashClaim      AuditAction = "CASH_CLAIM"
	AuditActionCashConfirm    AuditAction = "CASH_CONFIRM"
	AuditActionCashDispute    AuditAction = "CASH_DISPUTE"
	AuditActionActorUpsert    AuditAction = "ACTOR_UPSERT"
)

// AuditRecord records a single audited command in the system.
type AuditRecord struct {
	ID           uuid.UUID   `json:"id"`
	ActorID      *uuid.UUID  `json:"actor_id,omitempty"`
	Action       AuditAction `json:"action"`
	ResourceType string      `json:"resource_type"`
	ResourceID   string      `json:"resource_id,omitempty"`
	Details      string      `json:"details,omitempty"` // JSON string
	IPAddress    string      `json:"ip_address"`
	CreatedAt    time.Time   `json:"created_at"`
}
