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

// SubmissionRepo implements ports.SubmissionRepository. Claim is a bare
// compare-and-set rather than a lock: the WHERE received_by IS NULL
// clause is what guarantees a single winner among racing clerks.
type SubmissionRepo struct {
	pool Pool
}

// NewSubmissionRepo creates a new SubmissionRepo.
func NewSubmissionRepo(pool Pool) *SubmissionRepo {
	return &SubmissionRepo{pool: pool}
}

const submissionColumns = `id, submitted_by, submitter_role, amount, status, received_by,
		note, included_context, confirmation_note, submitted_at, claimed_at, resolved_at`

// Create inserts a new submission within a database transaction.
func (r *SubmissionRepo) Create(ctx context.Context, tx pgx.Tx, s *domain.CashSubmission) error {
	query := `INSERT INTO cash_submissions (` + submissionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	_, err := tx.Exec(ctx, query,
		s.ID, s.SubmittedBy, s.SubmitterRole, s.Amount, s.Status, s.ReceivedBy,
		s.Note, s.IncludedContext, s.ConfirmationNote,
		s.SubmittedAt, s.ClaimedAt, s.ResolvedAt,
	)
	if err != nil {
		return fmt.Errorf("insert cash submission: %w", err)
	}
	return nil
}

// GetByID fetches a submission without locking.
func (r *SubmissionRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.CashSubmission, error) {
	query := `SELECT ` + submissionColumns + ` FROM cash_submissions WHERE id = $1`

	return scanSubmission(r.pool.QueryRow(ctx, query, id))
}

// GetByIDForUpdate fetches a submission with a pessimistic row lock.
// This MUST be called within a transaction.
func (r *SubmissionRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.CashSubmission, error) {
	query := `SELECT ` + submissionColumns + ` FROM cash_submissions WHERE id = $1 FOR UPDATE`

	return scanSubmission(tx.QueryRow(ctx, query, id))
}

// Claim atomically sets received_by if no clerk holds the claim yet.
// Returns false when another clerk won the race.
func (r *SubmissionRepo) Claim(ctx context.Context, id uuid.UUID, clerkID uuid.UUID, at time.Time) (bool, error) {
	query := `UPDATE cash_submissions
		SET received_by = $1, claimed_at = $2
		WHERE id = $3 AND received_by IS NULL AND status = $4`

	tag, err := r.pool.Exec(ctx, query, clerkID, at, id, domain.SubmissionStatusPending)
	if err != nil {
		return false, fmt.Errorf("claim cash submission: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// MarkConfirmed flips pending -> confirmed. Returns false if the row was
// not pending.
func (r *SubmissionRepo) MarkConfirmed(ctx context.Context, tx pgx.Tx, id uuid.UUID, note string, at time.Time) (bool, error) {
	query := `UPDATE cash_submissions
		SET status = $1, confirmation_note = NULLIF($2, ''), resolved_at = $3
		WHERE id = $4 AND status = $5`

	tag, err := tx.Exec(ctx, query,
		domain.SubmissionStatusConfirmed, note, at, id, domain.SubmissionStatusPending)
	if err != nil {
		return false, fmt.Errorf("mark submission confirmed: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// MarkDisputed flips pending -> disputed with a reason.
func (r *SubmissionRepo) MarkDisputed(ctx context.Context, id uuid.UUID, reason string, at time.Time) (bool, error) {
	query := `UPDATE cash_submissions
		SET status = $1, confirmation_note = $2, resolved_at = $3
		WHERE id = $4 AND status = $5`

	tag, err := r.pool.Exec(ctx, query,
		domain.SubmissionStatusDisputed, reason, at, id, domain.SubmissionStatusPending)
	if err != nil {
		return false, fmt.Errorf("mark submission disputed: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// ListPending returns unresolved submissions, oldest first.
func (r *SubmissionRepo) ListPending(ctx context.Context) ([]domain.CashSubmission, error) {
	query := `SELECT ` + submissionColumns + ` FROM cash_submissions
		WHERE status = $1 ORDER BY submitted_at ASC`

	rows, err := r.pool.Query(ctx, query, domain.SubmissionStatusPending)
	if err != nil {
		return nil, fmt.Errorf("list pending submissions: %w", err)
	}
	defer rows.Close()

	var subs []domain.CashSubmission
	for rows.Next() {
		var s domain.CashSubmission
		err := rows.Scan(
			&s.ID, &s.SubmittedBy, &s.SubmitterRole, &s.Amount, &s.Status, &s.ReceivedBy,
			&s.Note, &s.IncludedContext, &s.ConfirmationNote,
			&s.SubmittedAt, &s.ClaimedAt, &s.ResolvedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan cash submission: %w", err)
		}
		subs = append(subs, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cash submissions: %w", err)
	}
	return subs, nil
}

func scanSubmission(row pgx.Row) (*domain.CashSubmission, error) {
	s := &domain.CashSubmission{}
	err := row.Scan(
		&s.ID, &s.SubmittedBy, &s.SubmitterRole, &s.Amount, &s.Status, &s.ReceivedBy,
		&s.Note, &s.IncludedContext, &s.ConfirmationNote,
		&s.SubmittedAt, &s.ClaimedAt, &s.ResolvedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan cash submission: %w", err)
	}
	return s, nil
}
