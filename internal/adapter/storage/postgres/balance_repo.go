package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"points-commerce-engine/internal/core/domain"

	"github.com/jackc/pgx/v5"
)

// BalanceRepo implements ports.BalanceRepository. Balances are keyed by
// (actor_id, role): the same person selling and buying holds two rows.
type BalanceRepo struct {
	pool Pool
}

// NewBalanceRepo creates a new BalanceRepo.
func NewBalanceRepo(pool Pool) *BalanceRepo {
	return &BalanceRepo{pool: pool}
}

const balanceColumns = `actor_id, role, available_points, total_received, total_spent,
		total_sold, total_revenue, pending_collection, total_cash_collected, version, updated_at`

// Get fetches a balance without locking. Returns nil when no row exists.
func (r *BalanceRepo) Get(ctx context.Context, actor domain.ActorRef) (*domain.Balance, error) {
	query := `SELECT ` + balanceColumns + ` FROM balances WHERE actor_id = $1 AND role = $2`

	return scanBalance(r.pool.QueryRow(ctx, query, actor.ActorID, actor.Role))
}

// GetForUpdate fetches a balance with a pessimistic row lock.
// This MUST be called within a transaction.
func (r *BalanceRepo) GetForUpdate(ctx context.Context, tx pgx.Tx, actor domain.ActorRef) (*domain.Balance, error) {
	query := `SELECT ` + balanceColumns + ` FROM balances WHERE actor_id = $1 AND role = $2 FOR UPDATE`

	return scanBalance(tx.QueryRow(ctx, query, actor.ActorID, actor.Role))
}

// Save upserts the balance row, bumping its version. Must run in the
// same transaction as the ledger append it reflects.
func (r *BalanceRepo) Save(ctx context.Context, tx pgx.Tx, b *domain.Balance) error {
	query := `INSERT INTO balances (` + balanceColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 1, $10)
		ON CONFLICT (actor_id, role) DO UPDATE SET
			available_points = EXCLUDED.available_points,
			total_received = EXCLUDED.total_received,
			total_spent = EXCLUDED.total_spent,
			total_sold = EXCLUDED.total_sold,
			total_revenue = EXCLUDED.total_revenue,
			pending_collection = EXCLUDED.pending_collection,
			total_cash_collected = EXCLUDED.total_cash_collected,
			version = balances.version + 1,
			updated_at = EXCLUDED.updated_at`

	_, err := tx.Exec(ctx, query,
		b.ActorID, b.Role, b.AvailablePoints, b.TotalReceived, b.TotalSpent,
		b.TotalSold, b.TotalRevenue, b.PendingCollection, b.TotalCashCollected,
		time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("upsert balance: %w", err)
	}
	return nil
}

func scanBalance(row pgx.Row) (*domain.Balance, error) {
	b := &domain.Balance{}
	err := row.Scan(
		&b.ActorID, &b.Role, &b.AvailablePoints, &b.TotalReceived, &b.TotalSpent,
		&b.TotalSold, &b.TotalRevenue, &b.PendingCollection, &b.TotalCashCollected,
		&b.Version, &b.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan balance: %w", err)
	}
	return b, nil
}
