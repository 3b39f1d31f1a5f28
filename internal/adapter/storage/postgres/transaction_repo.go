package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"points-commerce-engine/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// TransactionRepo implements ports.TransactionRepository. Status
// transitions are conditional UPDATEs keyed on the source state, so a
// lost race is visible as RowsAffected() == 0 rather than a silent
// double-apply.
type TransactionRepo struct {
	pool Pool
}

// NewTransactionRepo creates a new TransactionRepo.
func NewTransactionRepo(pool Pool) *TransactionRepo {
	return &TransactionRepo{pool: pool}
}

const transactionColumns = `id, merchant_id, customer_id, card_id, amount, status,
		collected_by, reason_note, correlation_id, created_at, completed_at, closed_at`

// Create inserts a new pending transaction.
func (r *TransactionRepo) Create(ctx context.Context, t *domain.MerchantTransaction) error {
	query := `INSERT INTO merchant_transactions (` + transactionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	_, err := r.pool.Exec(ctx, query,
		t.ID, t.MerchantID, t.CustomerID, t.CardID, t.Amount, t.Status,
		t.CollectedBy, t.ReasonNote, t.CorrelationID,
		t.CreatedAt, t.CompletedAt, t.ClosedAt,
	)
	if err != nil {
		return fmt.Errorf("insert merchant transaction: %w", err)
	}
	return nil
}

// GetByID fetches a transaction without locking.
func (r *TransactionRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.MerchantTransaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM merchant_transactions WHERE id = $1`

	return scanTransaction(r.pool.QueryRow(ctx, query, id))
}

// GetByIDForUpdate fetches a transaction with a pessimistic row lock.
// This MUST be called within a transaction.
func (r *TransactionRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.MerchantTransaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM merchant_transactions WHERE id = $1 FOR UPDATE`

	return scanTransaction(tx.QueryRow(ctx, query, id))
}

// MarkCompleted flips pending -> completed, stamping the confirming
// operator. Returns false if the row was not pending.
func (r *TransactionRepo) MarkCompleted(ctx context.Context, tx pgx.Tx, id uuid.UUID, collectedBy uuid.UUID, at time.Time) (bool, error) {
	query := `UPDATE merchant_transactions
		SET status = $1, collected_by = $2, completed_at = $3
		WHERE id = $4 AND status = $5`

	tag, err := tx.Exec(ctx, query,
		domain.PaymentStatusCompleted, collectedBy, at, id, domain.PaymentStatusPending)
	if err != nil {
		return false, fmt.Errorf("mark transaction completed: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// MarkCancelled flips pending -> cancelled with a reason.
func (r *TransactionRepo) MarkCancelled(ctx context.Context, id uuid.UUID, reason string, at time.Time) (bool, error) {
	query := `UPDATE merchant_transactions
		SET status = $1, reason_note = $2, closed_at = $3
		WHERE id = $4 AND status = $5`

	tag, err := r.pool.Exec(ctx, query,
		domain.PaymentStatusCancelled, reason, at, id, domain.PaymentStatusPending)
	if err != nil {
		return false, fmt.Errorf("mark transaction cancelled: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// MarkRefunded flips completed -> refunded with a reason.
func (r *TransactionRepo) MarkRefunded(ctx context.Context, tx pgx.Tx, id uuid.UUID, reason string, at time.Time) (bool, error) {
	query := `UPDATE merchant_transactions
		SET status = $1, reason_note = $2, closed_at = $3
		WHERE id = $4 AND status = $5`

	tag, err := tx.Exec(ctx, query,
		domain.PaymentStatusRefunded, reason, at, id, domain.PaymentStatusCompleted)
	if err != nil {
		return false, fmt.Errorf("mark transaction refunded: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func scanTransaction(row pgx.Row) (*domain.MerchantTransaction, error) {
	t := &domain.MerchantTransaction{}
	err := row.Scan(
		&t.ID, &t.MerchantID, &t.CustomerID, &t.CardID, &t.Amount, &t.Status,
		&t.CollectedBy, &t.ReasonNote, &t.CorrelationID,
		&t.CreatedAt, &t.CompletedAt, &t.ClosedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan merchant transaction: %w", err)
	}
	return t, nil
}
