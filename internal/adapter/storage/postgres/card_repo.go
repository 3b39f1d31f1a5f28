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

// CardRepo implements ports.CardRepository.
type CardRepo struct {
	pool Pool
}

// NewCardRepo creates a new CardRepo.
func NewCardRepo(pool Pool) *CardRepo {
	return &CardRepo{pool: pool}
}

const cardColumns = `id, secret_enc, initial_balance, current_balance, is_active,
		expires_at, issued_by, created_at, updated_at`

// Create inserts a new card within a database transaction, so the seller
// debit that funds it commits or rolls back together with the card.
func (r *CardRepo) Create(ctx context.Context, tx pgx.Tx, c *domain.PointCard) error {
	query := `INSERT INTO point_cards (` + cardColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := tx.Exec(ctx, query,
		c.ID, c.SecretEnc, c.InitialBalance, c.CurrentBalance, c.IsActive,
		c.ExpiresAt, c.IssuedBy, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert point card: %w", err)
	}
	return nil
}

// GetByID fetches a card without locking.
func (r *CardRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.PointCard, error) {
	query := `SELECT ` + cardColumns + ` FROM point_cards WHERE id = $1`

	return scanCard(r.pool.QueryRow(ctx, query, id))
}

// GetByIDForUpdate fetches a card with a pessimistic row lock.
// This MUST be called within a transaction.
func (r *CardRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.PointCard, error) {
	query := `SELECT ` + cardColumns + ` FROM point_cards WHERE id = $1 FOR UPDATE`

	return scanCard(tx.QueryRow(ctx, query, id))
}

// UpdateBalance sets the card's current balance within a transaction.
func (r *CardRepo) UpdateBalance(ctx context.Context, tx pgx.Tx, cardID uuid.UUID, newBalance int64) error {
	query := `UPDATE point_cards SET current_balance = $1, updated_at = $2 WHERE id = $3`

	tag, err := tx.Exec(ctx, query, newBalance, time.Now().UTC(), cardID)
	if err != nil {
		return fmt.Errorf("update card balance: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("card not found: %s", cardID)
	}
	return nil
}

// SetActive flips the card's active flag.
func (r *CardRepo) SetActive(ctx context.Context, cardID uuid.UUID, active bool) error {
	query := `UPDATE point_cards SET is_active = $1, updated_at = $2 WHERE id = $3`

	tag, err := r.pool.Exec(ctx, query, active, time.Now().UTC(), cardID)
	if err != nil {
		return fmt.Errorf("set card active: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("card not found: %s", cardID)
	}
	return nil
}

func scanCard(row pgx.Row) (*domain.PointCard, error) {
	c := &domain.PointCard{}
	err := row.Scan(
		&c.ID, &c.SecretEnc, &c.InitialBalance, &c.CurrentBalance, &c.IsActive,
		&c.ExpiresAt, &c.IssuedBy, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan point card: %w", err)
	}
	return c, nil
}
