package service

import (
	"context"
	"fmt"
	"time"

	"points-commerce-engine/internal/core/domain"
	"points-commerce-engine/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

const idempotencyTTL = 24 * time.Hour

// lookupCachedResult runs the two-layer idempotency check: Redis fast
// path first (best-effort), then the authoritative postgres log.
// Returns the cached response JSON or nil.
func lookupCachedResult(ctx context.Context, cache ports.IdempotencyCache, repo ports.IdempotencyRepository, log zerolog.Logger, key string) ([]byte, error) {
	cached, err := cache.Get(ctx, key)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("redis idempotency check failed, falling through to DB")
	}
	if cached != nil {
		return cached, nil
	}

	idempLog, err := repo.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("db idempotency check: %w", err)
	}
	if idempLog != nil {
		return idempLog.ResponseJSON, nil
	}
	return nil, nil
}

// storeIdempotency writes the authoritative idempotency log within the
// command's database transaction.
func storeIdempotency(ctx context.Context, tx pgx.Tx, repo ports.IdempotencyRepository, key string, entryID uuid.UUID, respJSON []byte, now time.Time) error {
	return repo.Create(ctx, tx, &domain.IdempotencyLog{
		Key:          key,
		EntryID:      entryID,
		ResponseJSON: respJSON,
		CreatedAt:    now,
	})
}

// cacheIdempotency mirrors the log into Redis after commit (best-effort).
func cacheIdempotency(ctx context.Context, cache ports.IdempotencyCache, log zerolog.Logger, key string, respJSON []byte) {
	if err := cache.Set(ctx, key, respJSON, idempotencyTTL); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("failed to cache idempotency in redis")
	}
}
