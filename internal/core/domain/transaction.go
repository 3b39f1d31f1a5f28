package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// PaymentStatus represents the lifecycle state of a merchant payment.
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "PENDING"
	PaymentStatusCompleted PaymentStatus = "COMPLETED"
	PaymentStatusCancelled PaymentStatus = "CANCELLED"
	PaymentStatusRefunded  PaymentStatus = "REFUNDED"
)

// MerchantTransaction is a customer- or card-to-merchant point payment.
// Lifecycle: pending -> completed | cancelled, completed -> refunded.
// The amount is immutable after creation; the payer is debited at
// confirm time, not initiate time.
type MerchantTransaction struct {
	ID            uuid.UUID     `json:"id"`
	MerchantID    uuid.UUID     `json:"merchant_id"`
	CustomerID    *uuid.UUID    `json:"customer_id,omitempty"`
	CardID        *uuid.UUID    `json:"card_id,omitempty"`
	Amount        int64         `json:"amount"`
	Status        PaymentStatus `json:"status"`
	CollectedBy   *uuid.UUID    `json:"collected_by,omitempty"` // operator who confirmed
	ReasonNote    *string       `json:"reason_note,omitempty"`  // required on cancel/refund
	CorrelationID *string       `json:"correlation_id,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
	CompletedAt   *time.Time    `json:"completed_at,omitempty"`
	ClosedAt      *time.Time    `json:"closed_at,omitempty"` // cancel or refund time
}

// Validate checks structural invariants at creation time.
func (t *MerchantTransaction) Validate() error {
	if t.Amount <= 0 {
		return fmt.Errorf("amount must be positive, got %d", t.Amount)
	}
	if (t.CustomerID == nil) == (t.CardID == nil) {
		return fmt.Errorf("exactly one of customer or card must be set")
	}
	if t.MerchantID == uuid.Nil {
		return fmt.Errorf("merchant unresolved")
	}
	return nil
}

// IsCardPayment reports whether the payer is a bearer card.
func (t *MerchantTransaction) IsCardPayment() bool {
	return t.CardID != nil
}

// PayerRef returns the ledger actor for the paying side.
func (t *MerchantTransaction) PayerRef() ActorRef {
	if t.CardID != nil {
		return ActorRef{ActorID: *t.CardID, Role: RoleCard}
	}
	return ActorRef{ActorID: *t.CustomerID, Role: RoleCustomer}
}

// MerchantRef returns the ledger actor for the merchant's shared balance.
func (t *MerchantTransaction) MerchantRef() ActorRef {
	return ActorRef{ActorID: t.MerchantID, Role: RoleMerchant}
}

// CanConfirm reports whether confirm is a legal transition.
func (t *MerchantTransaction) CanConfirm() bool {
	return t.Status == PaymentStatusPending
}

// CanCancel reports whether cancel is a legal transition.
func (t *MerchantTransaction) CanCancel() bool {
	return t.Status == PaymentStatusPending
}

// CanRefund reports whether refund is a legal transition.
func (t *MerchantTransaction) CanRefund() bool {
	return t.Status == PaymentStatusCompleted
}

// IsTerminal reports whether no further transition is possible.
func (t *MerchantTransaction) IsTerminal() bool {
	return t.Status == PaymentStatusCancelled || t.Status == PaymentStatusRefunded
}
