package service

import (
	"context"
	"fmt"
	"time"

	"points-commerce-engine/internal/core/domain"
	"points-commerce-engine/internal/core/ports"
	"points-commerce-engine/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// DirectoryServiceImpl implements ports.DirectoryService: the local
// cache of identity-provider facts the engine needs to operate.
type DirectoryServiceImpl struct {
	actorRepo  ports.ActorRepository
	pinService ports.PINService
	log        zerolog.Logger
}

// NewDirectoryService creates a new DirectoryServiceImpl.
func NewDirectoryService(actorRepo ports.ActorRepository, pinService ports.PINService, log zerolog.Logger) *DirectoryServiceImpl {
	return &DirectoryServiceImpl{actorRepo: actorRepo, pinService: pinService, log: log}
}

// UpsertActor creates or refreshes a directory record from provider
// facts. The PIN hash is never touched here; SetTransactionPIN owns it.
func (s *DirectoryServiceImpl) UpsertActor(ctx context.Context, actor *domain.Actor) error {
	if actor.ID == uuid.Nil {
		return apperror.Validation("actor id is required")
	}
	if actor.OrgID == uuid.Nil {
		return apperror.Validation("org id is required")
	}
	if len(actor.Roles) == 0 {
		return apperror.Validation("at least one role is required")
	}
	for _, r := range actor.Roles {
		if !r.IsValid() {
			return apperror.Validation(fmt.Sprintf("unknown role %q", r))
		}
	}
	if actor.Status == "" {
		actor.Status = domain.ActorStatusActive
	}
	actor.UpdatedAt = time.Now().UTC()
	if actor.CreatedAt.IsZero() {
		actor.CreatedAt = actor.UpdatedAt
	}

	if err := s.actorRepo.Upsert(ctx, actor); err != nil {
		return apperror.InternalError(fmt.Errorf("upsert actor: %w", err))
	}

	s.log.Info().
		Str("actor_id", actor.ID.String()).
		Str("identity_tag", actor.IdentityTag).
		Str("status", string(actor.Status)).
		Msg("actor directory record upserted")

	return nil
}

// SetTransactionPIN hashes and stores a clerk's second-factor PIN.
func (s *DirectoryServiceImpl) SetTransactionPIN(ctx context.Context, actorID uuid.UUID, pin string) error {
	if len(pin) < 4 {
		return apperror.Validation("pin must be at least 4 digits")
	}

	actor, err := s.actorRepo.GetByID(ctx, actorID)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("resolve actor: %w", err))
	}
	if actor == nil {
		return apperror.ErrNotFound("actor")
	}
	if !actor.HasRole(domain.RoleClerk) {
		return apperror.ErrForbidden("transaction pins are held by clerks only")
	}

	hash, err := s.pinService.Hash(pin)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("hash pin: %w", err))
	}
	if err := s.actorRepo.SetPINHash(ctx, actorID, hash); err != nil {
		return apperror.InternalError(fmt.Errorf("store pin hash: %w", err))
	}

	s.log.Info().Str("actor_id", actorID.String()).Msg("transaction pin updated")
	return nil
}

// GetActor returns a directory record by id.
func (s *DirectoryServiceImpl) GetActor(ctx context.Context, id uuid.UUID) (*domain.Actor, error) {
	actor, err := s.actorRepo.GetByID(ctx, id)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get actor: %w", err))
	}
	if actor == nil {
		return nil, apperror.ErrNotFound("actor")
	}
	return actor, nil
}
