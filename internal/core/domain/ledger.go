package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EntryType classifies a balance-affecting event.
type EntryType string

const (
	EntryTypeAllocation      EntryType = "ALLOCATION"
	EntryTypeRecall          EntryType = "RECALL"
	EntryTypeSale            EntryType = "SALE"
	EntryTypeMerchantPayment EntryType = "MERCHANT_PAYMENT"
	EntryTypeRefund          EntryType = "REFUND"
	EntryTypeCardTopUp       EntryType = "CARD_TOPUP"
	EntryTypeCardSpend       EntryType = "CARD_SPEND"
	EntryTypeCashSubmission  EntryType = "CASH_SUBMISSION"
	EntryTypeCashClaim       EntryType = "CASH_CLAIM"
)

// IsValid reports whether t is a known entry type.
func (t EntryType) IsValid() bool {
	switch t {
	case EntryTypeAllocation, EntryTypeRecall, EntryTypeSale,
		EntryTypeMerchantPayment, EntryTypeRefund,
		EntryTypeCardTopUp, EntryTypeCardSpend,
		EntryTypeCashSubmission, EntryTypeCashClaim:
		return true
	}
	return false
}

// LedgerEntry is the immutable record of one balance-affecting event.
// Entries are never edited or deleted; corrections are new entries.
type LedgerEntry struct {
	ID            uuid.UUID `json:"id"`
	Type          EntryType `json:"type"`
	Amount        int64     `json:"amount"` // whole points, always > 0
	SourceActor   ActorRef  `json:"source_actor"`
	TargetActor   ActorRef  `json:"target_actor"`
	OccurredAt    time.Time `json:"occurred_at"`
	CorrelationID *string   `json:"correlation_id,omitempty"`
	Note          *string   `json:"note,omitempty"`
}

// Validate checks the entry is well-formed before it is appended.
func (e *LedgerEntry) Validate() error {
	if !e.Type.IsValid() {
		return fmt.Errorf("unknown entry type %q", e.Type)
	}
	if e.Amount <= 0 {
		return fmt.Errorf("amount must be positive, got %d", e.Amount)
	}
	if e.SourceActor.IsZero() || !e.SourceActor.Role.IsValid() {
		return fmt.Errorf("source actor unresolved")
	}
	if e.TargetActor.IsZero() || !e.TargetActor.Role.IsValid() {
		return fmt.Errorf("target actor unresolved")
	}
	return nil
}
