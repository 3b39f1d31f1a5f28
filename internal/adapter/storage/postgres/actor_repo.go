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

// ActorRepo implements ports.ActorRepository: the directory cache fed by
// the identity/role provider.
type ActorRepo struct {
	pool Pool
}

// NewActorRepo creates a new ActorRepo.
func NewActorRepo(pool Pool) *ActorRepo {
	return &ActorRepo{pool: pool}
}

const actorColumns = `id, display_name, identity_tag, org_id, roles, merchant_id,
		status, pin_hash, created_at, updated_at`

// Upsert creates or refreshes a directory record. The PIN hash is left
// untouched on update; SetPINHash owns that column.
func (r *ActorRepo) Upsert(ctx context.Context, a *domain.Actor) error {
	query := `INSERT INTO actors (` + actorColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			display_name = EXCLUDED.display_name,
			identity_tag = EXCLUDED.identity_tag,
			org_id = EXCLUDED.org_id,
			roles = EXCLUDED.roles,
			merchant_id = EXCLUDED.merchant_id,
			status = EXCLUDED.status,
			updated_at = EXCLUDED.updated_at`

	roles := make([]string, len(a.Roles))
	for i, role := range a.Roles {
		roles[i] = string(role)
	}

	_, err := r.pool.Exec(ctx, query,
		a.ID, a.DisplayName, a.IdentityTag, a.OrgID, roles, a.MerchantID,
		a.Status, a.PINHash, a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert actor: %w", err)
	}
	return nil
}

// GetByID fetches a directory record.
func (r *ActorRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Actor, error) {
	query := `SELECT ` + actorColumns + ` FROM actors WHERE id = $1`

	return scanActor(r.pool.QueryRow(ctx, query, id))
}

// ListByIdentityTag returns active actors in an org whose identity tag
// matches. Used for cohort grants.
func (r *ActorRepo) ListByIdentityTag(ctx context.Context, orgID uuid.UUID, tag string) ([]domain.Actor, error) {
	query := `SELECT ` + actorColumns + ` FROM actors
		WHERE org_id = $1 AND identity_tag = $2 AND status = $3`

	rows, err := r.pool.Query(ctx, query, orgID, tag, domain.ActorStatusActive)
	if err != nil {
		return nil, fmt.Errorf("list actors by identity tag: %w", err)
	}
	defer rows.Close()

	var actors []domain.Actor
	for rows.Next() {
		var a domain.Actor
		var roles []string
		err := rows.Scan(
			&a.ID, &a.DisplayName, &a.IdentityTag, &a.OrgID, &roles, &a.MerchantID,
			&a.Status, &a.PINHash, &a.CreatedAt, &a.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan actor: %w", err)
		}
		a.Roles = toRoles(roles)
		actors = append(actors, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate actors: %w", err)
	}
	return actors, nil
}

// SetPINHash stores a clerk's transaction PIN hash.
func (r *ActorRepo) SetPINHash(ctx context.Context, actorID uuid.UUID, pinHash string) error {
	query := `UPDATE actors SET pin_hash = $1, updated_at = $2 WHERE id = $3`

	tag, err := r.pool.Exec(ctx, query, pinHash, time.Now().UTC(), actorID)
	if err != nil {
		return fmt.Errorf("set pin hash: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("actor not found: %s", actorID)
	}
	return nil
}

func scanActor(row pgx.Row) (*domain.Actor, error) {
	a := &domain.Actor{}
	var roles []string
	err := row.Scan(
		&a.ID, &a.DisplayName, &a.IdentityTag, &a.OrgID, &roles, &a.MerchantID,
		&a.Status, &a.PINHash, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan actor: %w", err)
	}
	a.Roles = toRoles(roles)
	return a, nil
}

func toRoles(raw []string) []domain.Role {
	roles := make([]domain.Role, len(raw))
	for i, r := range raw {
		roles[i] = domain.Role(r)
	}
	return roles
}
