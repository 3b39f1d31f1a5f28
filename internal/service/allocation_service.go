package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"points-commerce-engine/internal/core/domain"
	"points-commerce-engine/internal/core/ports"
	"points-commerce-engine/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// AllocationServiceImpl implements ports.AllocationService.
type AllocationServiceImpl struct {
	ledgerRepo  ports.LedgerRepository
	balanceRepo ports.BalanceRepository
	actorRepo   ports.ActorRepository
	idempRepo   ports.IdempotencyRepository
	idempCache  ports.IdempotencyCache
	transactor  ports.DBTransactor
	log         zerolog.Logger
}

// NewAllocationService creates a new AllocationServiceImpl.
func NewAllocationService(
	ledgerRepo ports.LedgerRepository,
	balanceRepo ports.BalanceRepository,
	actorRepo ports.ActorRepository,
	idempRepo ports.IdempotencyRepository,
	idempCache ports.IdempotencyCache,
	transactor ports.DBTransactor,
	log zerolog.Logger,
) *AllocationServiceImpl {
	return &AllocationServiceImpl{
		ledgerRepo:  ledgerRepo,
		balanceRepo: balanceRepo,
		actorRepo:   actorRepo,
		idempRepo:   idempRepo,
		idempCache:  idempCache,
		transactor:  transactor,
		log:         log,
	}
}

// Allocate moves point inventory one level down the fixed hierarchy
// organizer -> seller_manager -> seller.
func (s *AllocationServiceImpl) Allocate(ctx context.Context, req ports.AllocateRequest) (*domain.LedgerEntry, error) {
	if req.Amount <= 0 {
		return nil, apperror.ErrInvalidAmount()
	}
	if !req.From.Role.AllocatesTo(req.To.Role) {
		return nil, apperror.ErrHierarchyViolation(string(req.From.Role), string(req.To.Role))
	}

	return s.transfer(ctx, transferSpec{
		entryType:     domain.EntryTypeAllocation,
		debit:         req.From,
		credit:        req.To,
		amount:        req.Amount,
		note:          req.Note,
		correlationID: req.CorrelationID,
		idempOp:       "allocate",
		idempActor:    req.From.ActorID,
	})
}

// Recall withdraws previously allocated inventory back up the hierarchy.
// req.From is the superior initiating the recall; req.To is the
// subordinate whose balance is reduced.
func (s *AllocationServiceImpl) Recall(ctx context.Context, req ports.AllocateRequest) (*domain.LedgerEntry, error) {
	if req.Amount <= 0 {
		return nil, apperror.ErrInvalidAmount()
	}
	if !req.From.Role.AllocatesTo(req.To.Role) {
		return nil, apperror.ErrHierarchyViolation(string(req.From.Role), string(req.To.Role))
	}

	return s.transfer(ctx, transferSpec{
		entryType:     domain.EntryTypeRecall,
		debit:         req.To,
		credit:        req.From,
		amount:        req.Amount,
		note:          req.Note,
		correlationID: req.CorrelationID,
		idempOp:       "recall",
		idempActor:    req.From.ActorID,
	})
}

// GrantByCohort grants points to every active customer matching one of
// the identity tags. The batch is deliberately best-effort: one failed
// recipient never blocks the others, and every failure is reported.
func (s *AllocationServiceImpl) GrantByCohort(ctx context.Context, req ports.CohortGrantRequest) (*ports.CohortGrantResult, error) {
	if req.AmountPerRecipient <= 0 {
		return nil, apperror.ErrInvalidAmount()
	}
	if req.Initiator.Role != domain.RoleOrganizer {
		return nil, apperror.ErrForbidden("cohort grants require the organizer role")
	}
	if len(req.IdentityTags) == 0 {
		return nil, apperror.Validation("at least one identity tag is required")
	}

	// Resolve recipients, de-duplicated across tags.
	seen := make(map[uuid.UUID]bool)
	var recipients []domain.Actor
	for _, tag := range req.IdentityTags {
		actors, err := s.actorRepo.ListByIdentityTag(ctx, req.OrgID, tag)
		if err != nil {
			return nil, apperror.InternalError(fmt.Errorf("resolve cohort tag %q: %w", tag, err))
		}
		for _, a := range actors {
			if seen[a.ID] {
				continue
			}
			seen[a.ID] = true
			recipients = append(recipients, a)
		}
	}
	if len(recipients) == 0 {
		return nil, apperror.ErrNotFound("cohort recipients")
	}

	result := &ports.CohortGrantResult{}
	for _, recipient := range recipients {
		if !recipient.IsActive() {
			result.Failed = append(result.Failed, ports.CohortGrantFailure{
				ActorID: recipient.ID,
				Reason:  "actor is suspended",
			})
			continue
		}
		if !recipient.HasRole(domain.RoleCustomer) {
			result.Failed = append(result.Failed, ports.CohortGrantFailure{
				ActorID: recipient.ID,
				Reason:  "actor holds no customer role",
			})
			continue
		}

		_, err := s.transfer(ctx, transferSpec{
			entryType: domain.EntryTypeAllocation,
			debit:     req.Initiator,
			credit:    domain.NewActorRef(recipient.ID, domain.RoleCustomer),
			amount:    req.AmountPerRecipient,
			note:      req.Note,
		})
		if err != nil {
			result.Failed = append(result.Failed, ports.CohortGrantFailure{
				ActorID: recipient.ID,
				Reason:  err.Error(),
			})
			continue
		}
		result.Succeeded = append(result.Succeeded, recipient.ID)
	}

	s.log.Info().
		Str("initiator", req.Initiator.String()).
		Int("succeeded", len(result.Succeeded)).
		Int("failed", len(result.Failed)).
		Int64("amount_per_recipient", req.AmountPerRecipient).
		Msg("cohort grant processed")

	return result, nil
}

// transferSpec describes one two-sided inventory move.
type transferSpec struct {
	entryType     domain.EntryType
	debit         domain.ActorRef
	credit        domain.ActorRef
	amount        int64
	note          string
	correlationID *string
	idempOp       string
	idempActor    uuid.UUID
}

// transfer executes a debit/credit pair and its ledger entry as one
// atomic unit, re-checking the debit precondition under the row lock.
func (s *AllocationServiceImpl) transfer(ctx context.Context, spec transferSpec) (*domain.LedgerEntry, error) {
	var idempKey string
	if spec.correlationID != nil && spec.idempOp != "" {
		idempKey = domain.BuildIdempotencyKey(spec.idempActor, spec.idempOp, *spec.correlationID)
		cached, err := lookupCachedResult(ctx, s.idempCache, s.idempRepo, s.log, idempKey)
		if err != nil {
			return nil, apperror.InternalError(err)
		}
		if cached != nil {
			return unmarshalCachedEntry(cached)
		}
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.TransientError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	debitBal, creditBal, err := loadBalancePairForUpdate(ctx, dbTx, s.balanceRepo, spec.debit, spec.credit)
	if err != nil {
		return nil, apperror.InternalError(err)
	}

	if !debitBal.CanDebit(spec.amount) {
		if spec.entryType == domain.EntryTypeRecall {
			return nil, apperror.ErrInsufficientBalance(debitBal.AvailablePoints)
		}
		return nil, apperror.ErrInsufficientInventory(debitBal.AvailablePoints)
	}

	debitBal.AvailablePoints -= spec.amount
	creditBal.AvailablePoints += spec.amount
	creditBal.TotalReceived += spec.amount

	now := time.Now().UTC()
	entry := &domain.LedgerEntry{
		ID:            uuid.New(),
		Type:          spec.entryType,
		Amount:        spec.amount,
		SourceActor:   spec.debit,
		TargetActor:   spec.credit,
		OccurredAt:    now,
		CorrelationID: spec.correlationID,
	}
	if spec.note != "" {
		entry.Note = &spec.note
	}
	if err := entry.Validate(); err != nil {
		return nil, apperror.Validation(err.Error())
	}

	if err := s.balanceRepo.Save(ctx, dbTx, debitBal); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("save debit balance: %w", err))
	}
	if err := s.balanceRepo.Save(ctx, dbTx, creditBal); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("save credit balance: %w", err))
	}
	if err := s.ledgerRepo.Append(ctx, dbTx, entry); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("append ledger entry: %w", err))
	}

	var respJSON []byte
	if idempKey != "" {
		respJSON, err = json.Marshal(entry)
		if err != nil {
			return nil, apperror.InternalError(fmt.Errorf("marshal response: %w", err))
		}
		if err := storeIdempotency(ctx, dbTx, s.idempRepo, idempKey, entry.ID, respJSON, now); err != nil {
			return nil, apperror.InternalError(fmt.Errorf("save idempotency log: %w", err))
		}
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.TransientError(fmt.Errorf("commit tx: %w", err))
	}

	if idempKey != "" {
		cacheIdempotency(ctx, s.idempCache, s.log, idempKey, respJSON)
	}

	s.log.Info().
		Str("entry_id", entry.ID.String()).
		Str("type", string(spec.entryType)).
		Str("from", spec.debit.String()).
		Str("to", spec.credit.String()).
		Int64("amount", spec.amount).
		Msg("inventory transfer applied")

	return entry, nil
}

// unmarshalCachedEntry deserializes a cached ledger entry.
func unmarshalCachedEntry(data []byte) (*domain.LedgerEntry, error) {
	entry := &domain.LedgerEntry{}
	if err := json.Unmarshal(data, entry); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("unmarshal cached entry: %w", err))
	}
	return entry, nil
}
