package ports

import (
	"context"
	"time"

	"points-commerce-engine/internal/core/domain"

	"github.com/google/uuid"
)

// EncryptionService handles AES-256-GCM encryption/decryption (card
// secrets at rest).
type EncryptionService interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}

// SignatureService handles HMAC-SHA256 signing and verification of QR
// payment envelopes.
type SignatureService interface {
	Sign(secretKey string, payload string) string
	Verify(secretKey string, payload string, signature string) bool
}

// PINService hashes and verifies transaction PINs (Argon2id).
type PINService interface {
	Hash(pin string) (string, error)
	Verify(pin string, hash string) (bool, error)
}

// IdentityClaims holds the facts parsed from an identity-provider token.
type IdentityClaims struct {
	Identity  domain.Identity
	ExpiresAt time.Time
}

// TokenService validates tokens issued by the external identity/role
// provider.
type TokenService interface {
	Validate(tokenString string) (*IdentityClaims, error)
	// Issue mints a provider-compatible token. The engine only uses this
	// in tests and local tooling; production tokens come from the
	// provider itself.
	Issue(identity domain.Identity, ttl time.Duration) (string, error)
}

// IdempotencyCache is the Redis-layer idempotency check (fast path).
type IdempotencyCache interface {
	Get(ctx context.Context, key string) ([]byte, error) // Returns cached response JSON or nil
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// NonceStore manages nonce uniqueness for QR envelope replay prevention.
type NonceStore interface {
	// CheckAndSet atomically checks if a nonce exists, sets it if not.
	// Returns true if the nonce is new (valid), false if already used.
	CheckAndSet(ctx context.Context, scope string, nonce string, ttl time.Duration) (bool, error)
}

// AuditService records audited commands (fire-and-forget).
type AuditService interface {
	Log(ctx context.Context, record *domain.AuditRecord)
}

// --- Service Ports (Business Logic) ---

// AllocateRequest holds validated input for a hierarchical allocation
// or recall.
type AllocateRequest struct {
	From          domain.ActorRef
	To            domain.ActorRef
	Amount        int64
	Note          string
	CorrelationID *string
}

// CohortGrantRequest grants points to every active actor matching one
// of the identity tags.
type CohortGrantRequest struct {
	Initiator          domain.ActorRef // must be the organizer
	OrgID              uuid.UUID
	IdentityTags       []string
	AmountPerRecipient int64
	Note               string
}

// CohortGrantFailure reports one recipient that could not be granted.
type CohortGrantFailure struct {
	ActorID uuid.UUID `json:"actor_id"`
	Reason  string    `json:"reason"`
}

// CohortGrantResult aggregates a best-effort batch grant.
type CohortGrantResult struct {
	Succeeded []uuid.UUID          `json:"succeeded"`
	Failed    []CohortGrantFailure `json:"failed"`
}

// AllocationService moves point inventory down the hierarchy and back up,
// and grants to customer cohorts.
type AllocationService interface {
	Allocate(ctx context.Context, req AllocateRequest) (*domain.LedgerEntry, error)
	Recall(ctx context.Context, req AllocateRequest) (*domain.LedgerEntry, error)
	GrantByCohort(ctx context.Context, req CohortGrantRequest) (*CohortGrantResult, error)
}

// SellRequest holds validated input for a point-of-sale transfer.
type SellRequest struct {
	SellerID      uuid.UUID
	CustomerID    uuid.UUID
	Amount        int64
	CashReceived  int64
	Note          string
	CorrelationID *string
}

// SalesService converts seller inventory into customer wallet balance
// against a cash payment.
type SalesService interface {
	Sell(ctx context.Context, req SellRequest) (*domain.LedgerEntry, error)
}

// InitiatePaymentRequest creates a pending merchant payment. Exactly one
// of CustomerID and CardID must be set.
type InitiatePaymentRequest struct {
	MerchantID    uuid.UUID
	CustomerID    *uuid.UUID
	CardID        *uuid.UUID
	Amount        int64
	CorrelationID *string
}

// ConfirmPaymentRequest completes a pending payment. MerchantID is the
// caller's merchant binding; the transaction must belong to it.
type ConfirmPaymentRequest struct {
	TransactionID uuid.UUID
	MerchantID    uuid.UUID
	ConfirmedBy   uuid.UUID
	OperatorRole  domain.Role
}

// CancelPaymentRequest voids a pending payment.
type CancelPaymentRequest struct {
	TransactionID uuid.UUID
	MerchantID    uuid.UUID
	Reason        string
}

// RefundPaymentRequest reverses a completed payment.
type RefundPaymentRequest struct {
	TransactionID uuid.UUID
	MerchantID    uuid.UUID
	Reason        string
	AuthorizedBy  uuid.UUID
	OperatorRole  domain.Role
}

// PaymentService drives the merchant payment state machine.
type PaymentService interface {
	Initiate(ctx context.Context, req InitiatePaymentRequest) (*domain.MerchantTransaction, error)
	Confirm(ctx context.Context, req ConfirmPaymentRequest) (*domain.MerchantTransaction, error)
	Cancel(ctx context.Context, req CancelPaymentRequest) (*domain.MerchantTransaction, error)
	Refund(ctx context.Context, req RefundPaymentRequest) (*domain.MerchantTransaction, error)
	GetTransaction(ctx context.Context, id uuid.UUID) (*domain.MerchantTransaction, error)
}

// IssueCardRequest creates a new bearer card funded from a seller's
// inventory. The printed secret is returned exactly once.
type IssueCardRequest struct {
	IssuedBy       uuid.UUID // funding seller
	InitialBalance int64
	ExpiresAt      *time.Time
}

// IssuedCard pairs the created card with its one-time plaintext secret.
type IssuedCard struct {
	Card   *domain.PointCard
	Secret string
}

// CardTopUpRequest loads points onto an existing card.
type CardTopUpRequest struct {
	CardID        uuid.UUID
	Amount        int64
	FundedBy      uuid.UUID // funding seller
	CorrelationID *string
}

// CardSpendRequest charges a card at a merchant. Possession of the card
// id plus its printed secret is the only credential.
type CardSpendRequest struct {
	CardID        uuid.UUID
	Secret        string
	MerchantID    uuid.UUID
	Amount        int64
	CorrelationID *string
}

// DeactivateCardRequest permanently disables a card. Only the issuing
// seller or an organizer may do it.
type DeactivateCardRequest struct {
	CardID      uuid.UUID
	RequestedBy uuid.UUID
	Organizer   bool
}

// CardService owns the bearer instrument subsystem.
type CardService interface {
	Issue(ctx context.Context, req IssueCardRequest) (*IssuedCard, error)
	TopUp(ctx context.Context, req CardTopUpRequest) (*domain.PointCard, error)
	Spend(ctx context.Context, req CardSpendRequest) (*domain.LedgerEntry, error)
	QueryBalance(ctx context.Context, cardID uuid.UUID) (*domain.PointCard, error)
	Deactivate(ctx context.Context, req DeactivateCardRequest) error
}

// SubmitCashRequest offers physically-collected cash for hand-off.
type SubmitCashRequest struct {
	SubmitterID     uuid.UUID
	SubmitterRole   domain.Role
	Amount          int64
	Note            string
	IncludedContext string
}

// ConfirmCashRequest settles a claimed submission. The PIN is the
// clerk's own second-factor credential, not the submitter's.
type ConfirmCashRequest struct {
	SubmissionID     uuid.UUID
	ClerkID          uuid.UUID
	PIN              string
	ConfirmationNote string
}

// ReconciliationService owns the cash reconciliation pool.
type ReconciliationService interface {
	Submit(ctx context.Context, req SubmitCashRequest) (*domain.CashSubmission, error)
	Claim(ctx context.Context, submissionID uuid.UUID, clerkID uuid.UUID) (*domain.CashSubmission, error)
	Confirm(ctx context.Context, req ConfirmCashRequest) (*domain.CashSubmission, error)
	Dispute(ctx context.Context, submissionID uuid.UUID, clerkID uuid.UUID, reason string) (*domain.CashSubmission, error)
	ListPending(ctx context.Context) ([]domain.CashSubmission, error)
}

// LedgerService is the read-only query surface over ledger and balances.
type LedgerService interface {
	CurrentBalance(ctx context.Context, actor domain.ActorRef) (*domain.Balance, error)
	ListByActor(ctx context.Context, actor domain.ActorRef, filter LedgerFilter) ([]domain.LedgerEntry, string, error)
	// RebuildBalance recomputes a balance by folding the ledger. The
	// materialized row is a running total, not the source of truth; this
	// is the consistency check.
	RebuildBalance(ctx context.Context, actor domain.ActorRef) (*domain.Balance, error)
}

// DirectoryService maintains the actor directory cache fed by the
// identity/role provider.
type DirectoryService interface {
	UpsertActor(ctx context.Context, actor *domain.Actor) error
	SetTransactionPIN(ctx context.Context, actorID uuid.UUID, pin string) error
	GetActor(ctx context.Context, id uuid.UUID) (*domain.Actor, error)
}
