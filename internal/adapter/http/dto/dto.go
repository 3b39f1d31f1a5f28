package dto

import (
	"time"

	"points-commerce-engine/internal/core/domain"
	"points-commerce-engine/internal/core/ports"

	"github.com/google/uuid"
)

// AllocateRequest is the request body for a downstream allocation.
type AllocateRequest struct {
	ToActorID     string  `json:"to_actor_id" binding:"required,uuid"`
	ToRole        string  `json:"to_role" binding:"required,actor_role"`
	Amount        int64   `json:"amount" binding:"required,gt=0"`
	Note          string  `json:"note" binding:"max=500"`
	CorrelationID *string `json:"correlation_id,omitempty" binding:"omitempty,max=100,safe_id"`
}

// RecallRequest is the request body for recalling unsold inventory.
type RecallRequest struct {
	FromActorID   string  `json:"from_actor_id" binding:"required,uuid"`
	FromRole      string  `json:"from_role" binding:"required,actor_role"`
	Amount        int64   `json:"amount" binding:"required,gt=0"`
	Note          string  `json:"note" binding:"max=500"`
	CorrelationID *string `json:"correlation_id,omitempty" binding:"omitempty,max=100,safe_id"`
}

// CohortGrantRequest is the request body for a batch grant by identity tag.
type CohortGrantRequest struct {
	IdentityTags       []string `json:"identity_tags" binding:"required,min=1,max=50,dive,min=1,max=100"`
	AmountPerRecipient int64    `json:"amount_per_recipient" binding:"required,gt=0"`
	Note               string   `json:"note" binding:"max=500"`
}

// SellRequest is the request body for a point-of-sale transfer.
type SellRequest struct {
	CustomerID    string  `json:"customer_id" binding:"required,uuid"`
	Amount        int64   `json:"amount" binding:"required,gt=0"`
	CashReceived  int64   `json:"cash_received" binding:"required,gt=0"`
	Note          string  `json:"note" binding:"max=500"`
	CorrelationID *string `json:"correlation_id,omitempty" binding:"omitempty,max=100,safe_id"`
}

// InitiatePaymentRequest creates a pending merchant payment. Exactly one
// of customer_id and card_id must be set; the handler enforces this.
type InitiatePaymentRequest struct {
	CustomerID    *string `json:"customer_id,omitempty" binding:"omitempty,uuid"`
	CardID        *string `json:"card_id,omitempty" binding:"omitempty,uuid"`
	Amount        int64   `json:"amount" binding:"required,gt=0"`
	CorrelationID *string `json:"correlation_id,omitempty" binding:"omitempty,max=100,safe_id"`
}

// CancelPaymentRequest voids a pending payment.
type CancelPaymentRequest struct {
	Reason string `json:"reason" binding:"required,min=1,max=500"`
}

// RefundPaymentRequest reverses a completed payment.
type RefundPaymentRequest struct {
	Reason string `json:"reason" binding:"required,min=1,max=500"`
}

// IssueCardRequest is the request body for issuing a bearer card.
type IssueCardRequest struct {
	InitialBalance int64   `json:"initial_balance" binding:"required,gt=0"`
	ExpiresAt      *string `json:"expires_at,omitempty"` // RFC 3339
}

// CardTopUpRequest loads additional points onto a card.
type CardTopUpRequest struct {
	Amount        int64   `json:"amount" binding:"required,gt=0"`
	CorrelationID *string `json:"correlation_id,omitempty" binding:"omitempty,max=100,safe_id"`
}

// CardSpendRequest charges a card with manually entered details.
type CardSpendRequest struct {
	CardID        string  `json:"card_id" binding:"required,uuid"`
	Secret        string  `json:"secret" binding:"required,min=8,max=64"`
	Amount        int64   `json:"amount" binding:"required,gt=0"`
	CorrelationID *string `json:"correlation_id,omitempty" binding:"omitempty,max=100,safe_id"`
}

// CardSpendQRRequest charges a card from a scanned payment envelope.
// The envelope binds card id, amount and a single-use nonce; the secret
// printed on the card is still required as the bearer credential.
type CardSpendQRRequest struct {
	Envelope string `json:"envelope" binding:"required,max=1024"`
	Secret   string `json:"secret" binding:"required,min=8,max=64"`
}

// SubmitCashRequest offers collected cash for reconciliation. Role
// selects which of the submitter's cash-handling roles declares the
// cash; it defaults to the first one the identity holds.
type SubmitCashRequest struct {
	Amount          int64  `json:"amount" binding:"required,gt=0"`
	Role            string `json:"role,omitempty" binding:"omitempty,actor_role"`
	Note            string `json:"note" binding:"max=500"`
	IncludedContext string `json:"included_context" binding:"max=200"`
}

// ConfirmCashRequest settles a claimed submission.
type ConfirmCashRequest struct {
	PIN              string `json:"pin" binding:"required,min=4,max=12"`
	ConfirmationNote string `json:"confirmation_note" binding:"max=500"`
}

// DisputeCashRequest flags a claimed submission as mismatched.
type DisputeCashRequest struct {
	Reason string `json:"reason" binding:"required,min=1,max=500"`
}

// UpsertActorRequest mirrors a directory record from the identity
// provider into the engine's actor cache.
type UpsertActorRequest struct {
	ID          string   `json:"id" binding:"required,uuid"`
	DisplayName string   `json:"display_name" binding:"required,min=1,max=100"`
	IdentityTag string   `json:"identity_tag" binding:"max=100"`
	OrgID       string   `json:"org_id" binding:"required,uuid"`
	Roles       []string `json:"roles" binding:"required,min=1,dive,actor_role"`
	MerchantID  *string  `json:"merchant_id,omitempty" binding:"omitempty,uuid"`
	Status      string   `json:"status,omitempty"`
}

// SetPINRequest sets a clerk's transaction PIN.
type SetPINRequest struct {
	PIN string `json:"pin" binding:"required,min=4,max=12,numeric"`
}

// LedgerEntryResponse is the wire form of a ledger entry.
type LedgerEntryResponse struct {
	ID            string  `json:"id"`
	Type          string  `json:"type"`
	Amount        int64   `json:"amount"`
	SourceActorID string  `json:"source_actor_id"`
	SourceRole    string  `json:"source_role"`
	TargetActorID string  `json:"target_actor_id"`
	TargetRole    string  `json:"target_role"`
	OccurredAt    string  `json:"occurred_at"`
	CorrelationID *string `json:"correlation_id,omitempty"`
	Note          *string `json:"note,omitempty"`
}

// LedgerListResponse wraps a cursor-paginated ledger listing.
type LedgerListResponse struct {
	Items      []LedgerEntryResponse `json:"items"`
	NextCursor string                `json:"next_cursor,omitempty"`
}

// BalanceResponse is the wire form of a role-scoped balance.
type BalanceResponse struct {
	ActorID            string `json:"actor_id"`
	Role               string `json:"role"`
	Available          int64  `json:"available"`
	TotalReceived      int64  `json:"total_received"`
	TotalSold          int64  `json:"total_sold"`
	TotalSpent         int64  `json:"total_spent"`
	TotalRevenue       int64  `json:"total_revenue"`
	PendingCollection  int64  `json:"pending_collection"`
	TotalCashCollected int64  `json:"total_cash_collected"`
	UpdatedAt          string `json:"updated_at"`
}

// TransactionResponse is the wire form of a merchant transaction.
type TransactionResponse struct {
	ID          string  `json:"id"`
	MerchantID  string  `json:"merchant_id"`
	CustomerID  *string `json:"customer_id,omitempty"`
	CardID      *string `json:"card_id,omitempty"`
	Amount      int64   `json:"amount"`
	Status      string  `json:"status"`
	CollectedBy *string `json:"collected_by,omitempty"`
	ReasonNote  *string `json:"reason_note,omitempty"`
	CreatedAt   string  `json:"created_at"`
	CompletedAt *string `json:"completed_at,omitempty"`
	ClosedAt    *string `json:"closed_at,omitempty"`
}

// CardResponse is the wire form of a point card. The printed secret is
// never included; see IssuedCardResponse.
type CardResponse struct {
	ID             string  `json:"id"`
	InitialBalance int64   `json:"initial_balance"`
	CurrentBalance int64   `json:"current_balance"`
	IsActive       bool    `json:"is_active"`
	ExpiresAt      *string `json:"expires_at,omitempty"`
	IssuedBy       string  `json:"issued_by"`
	CreatedAt      string  `json:"created_at"`
}

// IssuedCardResponse carries the one-time plaintext secret alongside the
// new card. It is returned exactly once, at issuance.
type IssuedCardResponse struct {
	Card   CardResponse `json:"card"`
	Secret string       `json:"secret"`
}

// SubmissionResponse is the wire form of a cash submission.
type SubmissionResponse struct {
	ID               string  `json:"id"`
	SubmittedBy      string  `json:"submitted_by"`
	SubmitterRole    string  `json:"submitter_role"`
	Amount           int64   `json:"amount"`
	Status           string  `json:"status"`
	ReceivedBy       *string `json:"received_by,omitempty"`
	Note             *string `json:"note,omitempty"`
	IncludedContext  *string `json:"included_context,omitempty"`
	ConfirmationNote *string `json:"confirmation_note,omitempty"`
	SubmittedAt      string  `json:"submitted_at"`
	ClaimedAt        *string `json:"claimed_at,omitempty"`
	ResolvedAt       *string `json:"resolved_at,omitempty"`
}

// ActorResponse is the wire form of a directory record.
type ActorResponse struct {
	ID          string   `json:"id"`
	DisplayName string   `json:"display_name"`
	IdentityTag string   `json:"identity_tag"`
	OrgID       string   `json:"org_id"`
	Roles       []string `json:"roles"`
	MerchantID  *string  `json:"merchant_id,omitempty"`
	Status      string   `json:"status"`
	HasPIN      bool     `json:"has_pin"`
}

// FromLedgerEntry converts a domain entry to its wire form.
func FromLedgerEntry(e *domain.LedgerEntry) LedgerEntryResponse {
	return LedgerEntryResponse{
		ID:            e.ID.String(),
		Type:          string(e.Type),
		Amount:        e.Amount,
		SourceActorID: e.SourceActor.ActorID.String(),
		SourceRole:    string(e.SourceActor.Role),
		TargetActorID: e.TargetActor.ActorID.String(),
		TargetRole:    string(e.TargetActor.Role),
		OccurredAt:    e.OccurredAt.Format(time.RFC3339),
		CorrelationID: e.CorrelationID,
		Note:          e.Note,
	}
}

// FromBalance converts a domain balance to its wire form.
func FromBalance(b *domain.Balance) BalanceResponse {
	return BalanceResponse{
		ActorID:            b.ActorID.String(),
		Role:               string(b.Role),
		Available:          b.AvailablePoints,
		TotalReceived:      b.TotalReceived,
		TotalSold:          b.TotalSold,
		TotalSpent:         b.TotalSpent,
		TotalRevenue:       b.TotalRevenue,
		PendingCollection:  b.PendingCollection,
		TotalCashCollected: b.TotalCashCollected,
		UpdatedAt:          b.UpdatedAt.Format(time.RFC3339),
	}
}

// FromTransaction converts a domain transaction to its wire form.
func FromTransaction(tx *domain.MerchantTransaction) TransactionResponse {
	return TransactionResponse{
		ID:          tx.ID.String(),
		MerchantID:  tx.MerchantID.String(),
		CustomerID:  uuidString(tx.CustomerID),
		CardID:      uuidString(tx.CardID),
		Amount:      tx.Amount,
		Status:      string(tx.Status),
		CollectedBy: uuidString(tx.CollectedBy),
		ReasonNote:  tx.ReasonNote,
		CreatedAt:   tx.CreatedAt.Format(time.RFC3339),
		CompletedAt: timeString(tx.CompletedAt),
		ClosedAt:    timeString(tx.ClosedAt),
	}
}

// FromCard converts a domain card to its wire form.
func FromCard(card *domain.PointCard) CardResponse {
	return CardResponse{
		ID:             card.ID.String(),
		InitialBalance: card.InitialBalance,
		CurrentBalance: card.CurrentBalance,
		IsActive:       card.IsActive,
		ExpiresAt:      timeString(card.ExpiresAt),
		IssuedBy:       card.IssuedBy.String(),
		CreatedAt:      card.CreatedAt.Format(time.RFC3339),
	}
}

// FromIssuedCard converts an issuance result to its wire form.
func FromIssuedCard(issued *ports.IssuedCard) IssuedCardResponse {
	return IssuedCardResponse{
		Card:   FromCard(issued.Card),
		Secret: issued.Secret,
	}
}

// FromSubmission converts a domain submission to its wire form.
func FromSubmission(s *domain.CashSubmission) SubmissionResponse {
	return SubmissionResponse{
		ID:               s.ID.String(),
		SubmittedBy:      s.SubmittedBy.String(),
		SubmitterRole:    string(s.SubmitterRole),
		Amount:           s.Amount,
		Status:           string(s.Status),
		ReceivedBy:       uuidString(s.ReceivedBy),
		Note:             s.Note,
		IncludedContext:  s.IncludedContext,
		ConfirmationNote: s.ConfirmationNote,
		SubmittedAt:      s.SubmittedAt.Format(time.RFC3339),
		ClaimedAt:        timeString(s.ClaimedAt),
		ResolvedAt:       timeString(s.ResolvedAt),
	}
}

// FromActor converts a directory record to its wire form.
func FromActor(a *domain.Actor) ActorResponse {
	roles := make([]string, 0, len(a.Roles))
	for _, r := range a.Roles {
		roles = append(roles, string(r))
	}
	var merchantID *string
	if a.MerchantID != nil {
		s := a.MerchantID.String()
		merchantID = &s
	}
	return ActorResponse{
		ID:          a.ID.String(),
		DisplayName: a.DisplayName,
		IdentityTag: a.IdentityTag,
		OrgID:       a.OrgID.String(),
		Roles:       roles,
		MerchantID:  merchantID,
		Status:      string(a.Status),
		HasPIN:      a.PINHash != nil,
	}
}

func uuidString(id *uuid.UUID) *string {
	if id == nil {
		return nil
	}
	s := id.String()
	return &s
}

func timeString(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(time.RFC3339)
	return &s
}
