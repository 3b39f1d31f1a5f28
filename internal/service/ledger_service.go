package service

import (
	"context"
	"fmt"

	"points-commerce-engine/internal/core/domain"
	"points-commerce-engine/internal/core/ports"
	"points-commerce-engine/pkg/apperror"

	"github.com/rs/zerolog"
)

// rebuildPageSize bounds memory during a full ledger fold.
const rebuildPageSize = 500

// LedgerServiceImpl implements ports.LedgerService: the read-only query
// surface plus the rebuild consistency check.
type LedgerServiceImpl struct {
	ledgerRepo  ports.LedgerRepository
	balanceRepo ports.BalanceRepository
	log         zerolog.Logger
}

// NewLedgerService creates a new LedgerServiceImpl.
func NewLedgerService(ledgerRepo ports.LedgerRepository, balanceRepo ports.BalanceRepository, log zerolog.Logger) *LedgerServiceImpl {
	return &LedgerServiceImpl{ledgerRepo: ledgerRepo, balanceRepo: balanceRepo, log: log}
}

// CurrentBalance returns the materialized balance for an actor-role.
func (s *LedgerServiceImpl) CurrentBalance(ctx context.Context, actor domain.ActorRef) (*domain.Balance, error) {
	bal, err := s.balanceRepo.Get(ctx, actor)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get balance: %w", err))
	}
	if bal == nil {
		return nil, apperror.ErrNotFound("balance")
	}
	return bal, nil
}

// ListByActor returns a page of ledger entries touching the actor, plus
// a continuation cursor ("" when exhausted).
func (s *LedgerServiceImpl) ListByActor(ctx context.Context, actor domain.ActorRef, filter ports.LedgerFilter) ([]domain.LedgerEntry, string, error) {
	if filter.Limit <= 0 {
		filter.Limit = 50
	}
	entries, cursor, err := s.ledgerRepo.ListByActor(ctx, actor, filter)
	if err != nil {
		return nil, "", apperror.InternalError(fmt.Errorf("list ledger: %w", err))
	}
	return entries, cursor, nil
}

// RebuildBalance folds the actor's full ledger history into a fresh
// balance. The result must equal the materialized row; a divergence
// means a bug, and the fold is the audit tool that finds it.
func (s *LedgerServiceImpl) RebuildBalance(ctx context.Context, actor domain.ActorRef) (*domain.Balance, error) {
	rebuilt := domain.NewBalance(actor.ActorID, actor.Role)

	filter := ports.LedgerFilter{Limit: rebuildPageSize}
	for {
		entries, cursor, err := s.ledgerRepo.ListByActor(ctx, actor, filter)
		if err != nil {
			return nil, apperror.InternalError(fmt.Errorf("list ledger for rebuild: %w", err))
		}
		for i := range entries {
			applyEntry(rebuilt, &entries[i], actor)
		}
		if cursor == "" {
			break
		}
		filter.Cursor = cursor
	}

	s.log.Debug().
		Str("actor", actor.String()).
		Int64("available", rebuilt.AvailablePoints).
		Msg("balance rebuilt from ledger")

	return rebuilt, nil
}

// applyEntry applies one ledger entry's effect on the given actor's
// balance. The deltas here mirror exactly what the command services
// apply at write time; the two must never drift apart.
func applyEntry(b *domain.Balance, e *domain.LedgerEntry, actor domain.ActorRef) {
	isSource := e.SourceActor == actor
	isTarget := e.TargetActor == actor

	switch e.Type {
	case domain.EntryTypeAllocation, domain.EntryTypeRecall:
		if isSource {
			b.AvailablePoints -= e.Amount
		}
		if isTarget {
			b.AvailablePoints += e.Amount
			b.TotalReceived += e.Amount
		}

	case domain.EntryTypeSale, domain.EntryTypeCardTopUp:
		if isSource {
			b.AvailablePoints -= e.Amount
			b.TotalSold += e.Amount
			b.TotalRevenue += e.Amount
			b.PendingCollection += e.Amount
		}
		if isTarget {
			b.AvailablePoints += e.Amount
			b.TotalReceived += e.Amount
		}

	case domain.EntryTypeMerchantPayment:
		if isSource {
			b.AvailablePoints -= e.Amount
			b.TotalSpent += e.Amount
		}
		if isTarget {
			b.AvailablePoints += e.Amount
			b.TotalRevenue += e.Amount
		}

	case domain.EntryTypeRefund:
		if isSource {
			b.AvailablePoints -= e.Amount
			b.TotalRevenue -= e.Amount
		}
		if isTarget {
			b.AvailablePoints += e.Amount
			b.TotalSpent -= e.Amount
		}

	case domain.EntryTypeCardSpend:
		if isSource {
			b.AvailablePoints -= e.Amount
		}
		if isTarget {
			b.AvailablePoints += e.Amount
			b.TotalRevenue += e.Amount
		}

	case domain.EntryTypeCashSubmission:
		// Declaration only, no balance effect.

	case domain.EntryTypeCashClaim:
		if isSource {
			b.PendingCollection -= e.Amount
		}
		if isTarget {
			b.TotalCashCollected += e.Amount
		}
	}
}
