package postgres

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"points-commerce-engine/internal/core/domain"
	"points-commerce-engine/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// LedgerRepo implements ports.LedgerRepository. The ledger_entries table
// is append-only; no update or delete statement exists in this file on
// purpose.
type LedgerRepo struct {
	pool Pool
}

// NewLedgerRepo creates a new LedgerRepo.
func NewLedgerRepo(pool Pool) *LedgerRepo {
	return &LedgerRepo{pool: pool}
}

// Append writes an entry within a database transaction.
func (r *LedgerRepo) Append(ctx context.Context, tx pgx.Tx, e *domain.LedgerEntry) error {
	query := `INSERT INTO ledger_entries (id, entry_type, amount,
		source_actor_id, source_role, target_actor_id, target_role,
		occurred_at, correlation_id, note)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := tx.Exec(ctx, query,
		e.ID, e.Type, e.Amount,
		e.SourceActor.ActorID, e.SourceActor.Role,
		e.TargetActor.ActorID, e.TargetActor.Role,
		e.OccurredAt, e.CorrelationID, e.Note,
	)
	if err != nil {
		return fmt.Errorf("insert ledger entry: %w", err)
	}
	return nil
}

// ListByActor returns entries where the actor is source or target,
// newest first, using keyset pagination on (occurred_at, id).
func (r *LedgerRepo) ListByActor(ctx context.Context, actor domain.ActorRef, filter ports.LedgerFilter) ([]domain.LedgerEntry, string, error) {
	var sb strings.Builder
	sb.WriteString(`SELECT id, entry_type, amount,
		source_actor_id, source_role, target_actor_id, target_role,
		occurred_at, correlation_id, note
		FROM ledger_entries
		WHERE ((source_actor_id = $1 AND source_role = $2) OR (target_actor_id = $1 AND target_role = $2))`)

	args := []any{actor.ActorID, actor.Role}

	if len(filter.Types) > 0 {
		args = append(args, filter.Types)
		sb.WriteString(fmt.Sprintf(" AND entry_type = ANY($%d)", len(args)))
	}
	if filter.From != nil {
		args = append(args, *filter.From)
		sb.WriteString(fmt.Sprintf(" AND occurred_at >= $%d", len(args)))
	}
	if filter.To != nil {
		args = append(args, *filter.To)
		sb.WriteString(fmt.Sprintf(" AND occurred_at < $%d", len(args)))
	}
	if filter.Cursor != "" {
		occurredAt, id, err := decodeLedgerCursor(filter.Cursor)
		if err != nil {
			return nil, "", fmt.Errorf("invalid cursor: %w", err)
		}
		args = append(args, occurredAt, id)
		sb.WriteString(fmt.Sprintf(" AND (occurred_at, id) < ($%d, $%d)", len(args)-1, len(args)))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	args = append(args, limit+1)
	sb.WriteString(fmt.Sprintf(" ORDER BY occurred_at DESC, id DESC LIMIT $%d", len(args)))

	rows, err := r.pool.Query(ctx, sb.String(), args...)
	if err != nil {
		return nil, "", fmt.Errorf("list ledger entries: %w", err)
	}
	defer rows.Close()

	var entries []domain.LedgerEntry
	for rows.Next() {
		var e domain.LedgerEntry
		err := rows.Scan(
			&e.ID, &e.Type, &e.Amount,
			&e.SourceActor.ActorID, &e.SourceActor.Role,
			&e.TargetActor.ActorID, &e.TargetActor.Role,
			&e.OccurredAt, &e.CorrelationID, &e.Note,
		)
		if err != nil {
			return nil, "", fmt.Errorf("scan ledger entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, "", fmt.Errorf("iterate ledger entries: %w", err)
	}

	// One extra row was fetched to detect whether another page exists.
	cursor := ""
	if len(entries) > limit {
		entries = entries[:limit]
		last := entries[len(entries)-1]
		cursor = encodeLedgerCursor(last.OccurredAt, last.ID)
	}
	return entries, cursor, nil
}

func encodeLedgerCursor(occurredAt time.Time, id uuid.UUID) string {
	raw := occurredAt.UTC().Format(time.RFC3339Nano) + "|" + id.String()
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

func decodeLedgerCursor(cursor string) (time.Time, uuid.UUID, error) {
	raw, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return time.Time{}, uuid.Nil, err
	}
	parts := strings.SplitN(string(raw), "|", 2)
	if len(parts) != 2 {
		return time.Time{}, uuid.Nil, fmt.Errorf("malformed cursor")
	}
	occurredAt, err := time.Parse(time.RFC3339Nano, parts[0])
	if err != nil {
		return time.Time{}, uuid.Nil, err
	}
	id, err := uuid.Parse(parts[1])
	if err != nil {
		return time.Time{}, uuid.Nil, err
	}
	return occurredAt, id, nil
}
