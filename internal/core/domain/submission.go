package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SubmissionStatus represents the state of a cash submission.
type SubmissionStatus string

const (
	SubmissionStatusPending   SubmissionStatus = "PENDING"
	SubmissionStatusConfirmed SubmissionStatus = "CONFIRMED"
	SubmissionStatusDisputed  SubmissionStatus = "DISPUTED"
	SubmissionStatusRejected  SubmissionStatus = "REJECTED"
)

// CashSubmission is one parcel of physically-collected cash offered for
// hand-off. ReceivedBy moves from nil to a single clerk id exactly once;
// once confirmed the record is immutable except for audit metadata.
type CashSubmission struct {
	ID               uuid.UUID        `json:"id"`
	SubmittedBy      uuid.UUID        `json:"submitted_by"`
	SubmitterRole    Role             `json:"submitter_role"`
	Amount           int64            `json:"amount"`
	Status           SubmissionStatus `json:"status"`
	ReceivedBy       *uuid.UUID       `json:"received_by,omitempty"`
	Note             *string          `json:"note,omitempty"`
	IncludedContext  *string          `json:"included_context,omitempty"` // e.g. event/shift reference
	ConfirmationNote *string          `json:"confirmation_note,omitempty"`
	SubmittedAt      time.Time        `json:"submitted_at"`
	ClaimedAt        *time.Time       `json:"claimed_at,omitempty"`
	ResolvedAt       *time.Time       `json:"resolved_at,omitempty"`
}

// Validate checks the submission is well-formed at creation time.
func (s *CashSubmission) Validate() error {
	if s.Amount <= 0 {
		return fmt.Errorf("amount must be positive, got %d", s.Amount)
	}
	if s.SubmittedBy == uuid.Nil {
		return fmt.Errorf("submitter unresolved")
	}
	if !s.SubmitterRole.HandlesCash() {
		return fmt.Errorf("role %s does not handle cash", s.SubmitterRole)
	}
	return nil
}

// IsClaimed reports whether a clerk holds the claim.
func (s *CashSubmission) IsClaimed() bool {
	return s.ReceivedBy != nil
}

// ClaimedBy reports whether the given clerk holds the claim.
func (s *CashSubmission) ClaimedBy(clerkID uuid.UUID) bool {
	return s.ReceivedBy != nil && *s.ReceivedBy == clerkID
}

// IsResolved reports whether the submission reached a terminal status.
func (s *CashSubmission) IsResolved() bool {
	return s.Status != SubmissionStatusPending
}
