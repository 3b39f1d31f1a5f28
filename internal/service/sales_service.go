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

// SalesServiceImpl implements ports.SalesService.
type SalesServiceImpl struct {
	ledgerRepo  ports.LedgerRepository
	balanceRepo ports.BalanceRepository
	idempRepo   ports.IdempotencyRepository
	idempCache  ports.IdempotencyCache
	transactor  ports.DBTransactor
	log         zerolog.Logger
}

// NewSalesService creates a new SalesServiceImpl.
func NewSalesService(
	ledgerRepo ports.LedgerRepository,
	balanceRepo ports.BalanceRepository,
	idempRepo ports.IdempotencyRepository,
	idempCache ports.IdempotencyCache,
	transactor ports.DBTransactor,
	log zerolog.Logger,
) *SalesServiceImpl {
	return &SalesServiceImpl{
		ledgerRepo:  ledgerRepo,
		balanceRepo: balanceRepo,
		idempRepo:   idempRepo,
		idempCache:  idempCache,
		transactor:  transactor,
		log:         log,
	}
}

// Sell converts seller inventory into customer wallet balance against a
// cash payment at a strict 1:1 rate. Either every effect applies or none
// does; no partial transfer is ever visible.
func (s *SalesServiceImpl) Sell(ctx context.Context, req ports.SellRequest) (*domain.LedgerEntry, error) {
	if req.Amount <= 0 {
		return nil, apperror.ErrInvalidAmount()
	}
	if req.CashReceived != req.Amount {
		return nil, apperror.Validation(
			fmt.Sprintf("cash received (%d) must equal points sold (%d)", req.CashReceived, req.Amount))
	}
	if req.SellerID == uuid.Nil || req.CustomerID == uuid.Nil {
		return nil, apperror.Validation("seller and customer are required")
	}

	var idempKey string
	if req.CorrelationID != nil {
		idempKey = domain.BuildIdempotencyKey(req.SellerID, "sell", *req.CorrelationID)
		cached, err := lookupCachedResult(ctx, s.idempCache, s.idempRepo, s.log, idempKey)
		if err != nil {
			return nil, apperror.InternalError(err)
		}
		if cached != nil {
			return unmarshalCachedEntry(cached)
		}
	}

	sellerRef := domain.NewActorRef(req.SellerID, domain.RoleSeller)
	customerRef := domain.NewActorRef(req.CustomerID, domain.RoleCustomer)

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.TransientError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	sellerBal, customerBal, err := loadBalancePairForUpdate(ctx, dbTx, s.balanceRepo, sellerRef, customerRef)
	if err != nil {
		return nil, apperror.InternalError(err)
	}

	// Sufficiency is re-checked under the row lock: a concurrent sale or
	// recall cannot both observe the pre-decrement balance.
	if !sellerBal.CanDebit(req.Amount) {
		return nil, apperror.ErrInsufficientInventory(sellerBal.AvailablePoints)
	}

	sellerBal.AvailablePoints -= req.Amount
	sellerBal.TotalSold += req.Amount
	sellerBal.TotalRevenue += req.Amount
	sellerBal.PendingCollection += req.Amount

	customerBal.AvailablePoints += req.Amount
	customerBal.TotalReceived += req.Amount

	now := time.Now().UTC()
	entry := &domain.LedgerEntry{
		ID:            uuid.New(),
		Type:          domain.EntryTypeSale,
		Amount:        req.Amount,
		SourceActor:   sellerRef,
		TargetActor:   customerRef,
		OccurredAt:    now,
		CorrelationID: req.CorrelationID,
	}
	if req.Note != "" {
		entry.Note = &req.Note
	}

	if err := s.balanceRepo.Save(ctx, dbTx, sellerBal); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("save seller balance: %w", err))
	}
	if err := s.balanceRepo.Save(ctx, dbTx, customerBal); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("save customer balance: %w", err))
	}
	if err := s.ledgerRepo.Append(ctx, dbTx, entry); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("append sale entry: %w", err))
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
		Str("seller_id", req.SellerID.String()).
		Str("customer_id", req.CustomerID.String()).
		Int64("amount", req.Amount).
		Msg("point-of-sale transfer applied")

	return entry, nil
}
