package service

import (
	"context"
	"fmt"
	"strings"

	"points-commerce-engine/internal/core/domain"
	"points-commerce-engine/internal/core/ports"

	"github.com/jackc/pgx/v5"
)

// loadBalanceForUpdate fetches a balance row under a pessimistic lock,
// returning an explicit zero record when the actor has no history yet.
// The caller saves the row in the same transaction, which inserts it.
func loadBalanceForUpdate(ctx context.Context, tx pgx.Tx, repo ports.BalanceRepository, actor domain.ActorRef) (*domain.Balance, error) {
	b, err := repo.GetForUpdate(ctx, tx, actor)
	if err != nil {
		return nil, fmt.Errorf("lock balance %s: %w", actor, err)
	}
	if b == nil {
		b = domain.NewBalance(actor.ActorID, actor.Role)
	}
	return b, nil
}

// lockOrder returns the two refs in a deterministic order so concurrent
// operations touching the same pair always lock rows the same way.
func lockOrder(a, b domain.ActorRef) (domain.ActorRef, domain.ActorRef) {
	if strings.Compare(a.String(), b.String()) <= 0 {
		return a, b
	}
	return b, a
}

// loadBalancePairForUpdate locks two balance rows in deterministic order
// and returns them keyed by the original arguments.
func loadBalancePairForUpdate(ctx context.Context, tx pgx.Tx, repo ports.BalanceRepository, first, second domain.ActorRef) (*domain.Balance, *domain.Balance, error) {
	lo, hi := lockOrder(first, second)

	loBal, err := loadBalanceForUpdate(ctx, tx, repo, lo)
	if err != nil {
		return nil, nil, err
	}
	hiBal, err := loadBalanceForUpdate(ctx, tx, repo, hi)
	if err != nil {
		return nil, nil, err
	}

	if lo == first {
		return loBal, hiBal, nil
	}
	return hiBal, loBal, nil
}
