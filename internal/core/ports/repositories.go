package ports

import (
	"context"
	"time"

	"points-commerce-engine/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// ActorRepository defines persistence for the actor directory cache.
type ActorRepository interface {
	Upsert(ctx context.Context, actor *domain.Actor) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Actor, error)
	// ListByIdentityTag returns active actors in an org whose identity
	// tag matches. Used for cohort grants.
	ListByIdentityTag(ctx context.Context, orgID uuid.UUID, tag string) ([]domain.Actor, error)
	SetPINHash(ctx context.Context, actorID uuid.UUID, pinHash string) error
}

// LedgerFilter narrows and pages a ledger listing. Cursor is the opaque
// continuation token returned by the previous page.
type LedgerFilter struct {
	Types  []domain.EntryType
	From   *time.Time
	To     *time.Time
	Cursor string
	Limit  int
}

// LedgerRepository defines persistence for ledger entries. Append is the
// only mutation path; no update or delete operations exist.
type LedgerRepository interface {
	// Append writes an entry within the given database transaction.
	Append(ctx context.Context, tx pgx.Tx, entry *domain.LedgerEntry) error
	// ListByActor returns entries where the actor is source or target,
	// ordered by occurred_at descending, with a continuation cursor
	// ("" when exhausted).
	ListByActor(ctx context.Context, actor domain.ActorRef, filter LedgerFilter) ([]domain.LedgerEntry, string, error)
}

// BalanceRepository defines persistence for materialized balances.
// Methods accepting pgx.Tx are used inside transaction blocks for
// pessimistic locking; every decrement path must go through
// GetForUpdate so the precondition is re-checked under the row lock.
type BalanceRepository interface {
	Get(ctx context.Context, actor domain.ActorRef) (*domain.Balance, error)
	GetForUpdate(ctx context.Context, tx pgx.Tx, actor domain.ActorRef) (*domain.Balance, error)
	// Save upserts the balance row and bumps its version. Must be called
	// within the same transaction as the ledger append it reflects.
	Save(ctx context.Context, tx pgx.Tx, balance *domain.Balance) error
}

// TransactionRepository defines persistence for merchant transactions.
// Status transitions are conditional updates keyed on the source state;
// they report false when the row was not in that state, which is how
// racing confirms resolve to exactly one winner.
type TransactionRepository interface {
	Create(ctx context.Context, txn *domain.MerchantTransaction) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.MerchantTransaction, error)
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.MerchantTransaction, error)
	// MarkCompleted flips pending -> completed, stamping the confirming
	// operator. Returns false if the transaction was not pending.
	MarkCompleted(ctx context.Context, tx pgx.Tx, id uuid.UUID, collectedBy uuid.UUID, at time.Time) (bool, error)
	// MarkCancelled flips pending -> cancelled with a reason.
	MarkCancelled(ctx context.Context, id uuid.UUID, reason string, at time.Time) (bool, error)
	// MarkRefunded flips completed -> refunded with a reason.
	MarkRefunded(ctx context.Context, tx pgx.Tx, id uuid.UUID, reason string, at time.Time) (bool, error)
}

// CardRepository defines persistence for bearer point cards.
type CardRepository interface {
	Create(ctx context.Context, tx pgx.Tx, card *domain.PointCard) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.PointCard, error)
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.PointCard, error)
	UpdateBalance(ctx context.Context, tx pgx.Tx, cardID uuid.UUID, newBalance int64) error
	SetActive(ctx context.Context, cardID uuid.UUID, active bool) error
}

// SubmissionRepository defines persistence for cash submissions.
type SubmissionRepository interface {
	Create(ctx context.Context, tx pgx.Tx, submission *domain.CashSubmission) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.CashSubmission, error)
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.CashSubmission, error)
	// Claim is an atomic compare-and-set on received_by (null -> clerk).
	// Returns false when another clerk already holds the claim.
	Claim(ctx context.Context, id uuid.UUID, clerkID uuid.UUID, at time.Time) (bool, error)
	// MarkConfirmed flips pending -> confirmed. Returns false if the
	// submission was not pending.
	MarkConfirmed(ctx context.Context, tx pgx.Tx, id uuid.UUID, note string, at time.Time) (bool, error)
	// MarkDisputed flips pending -> disputed with a reason.
	MarkDisputed(ctx context.Context, id uuid.UUID, reason string, at time.Time) (bool, error)
	ListPending(ctx context.Context) ([]domain.CashSubmission, error)
}

// IdempotencyRepository defines persistence for idempotency logs (the
// authoritative layer behind the Redis fast path).
type IdempotencyRepository interface {
	Create(ctx context.Context, tx pgx.Tx, log *domain.IdempotencyLog) error
	Get(ctx context.Context, key string) (*domain.IdempotencyLog, error)
}

// AuditRepository persists audit records.
type AuditRepository interface {
	Create(ctx context.Context, record *domain.AuditRecord) error
}

// DBTransactor provides database transaction management.
type DBTransactor interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}
