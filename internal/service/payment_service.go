package service

import (
	"context"
	"fmt"
	"time"

	"points-commerce-engine/internal/core/domain"
	"points-commerce-engine/internal/core/ports"
	"points-commerce-engine/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

// PaymentServiceImpl implements ports.PaymentService: the authoritative
// merchant payment state machine. All status transitions funnel through
// here; handlers never touch statuses directly.
type PaymentServiceImpl struct {
	txRepo      ports.TransactionRepository
	balanceRepo ports.BalanceRepository
	cardRepo    ports.CardRepository
	ledgerRepo  ports.LedgerRepository
	actorRepo   ports.ActorRepository
	transactor  ports.DBTransactor
	log         zerolog.Logger
}

// NewPaymentService creates a new PaymentServiceImpl.
func NewPaymentService(
	txRepo ports.TransactionRepository,
	balanceRepo ports.BalanceRepository,
	cardRepo ports.CardRepository,
	ledgerRepo ports.LedgerRepository,
	actorRepo ports.ActorRepository,
	transactor ports.DBTransactor,
	log zerolog.Logger,
) *PaymentServiceImpl {
	return &PaymentServiceImpl{
		txRepo:      txRepo,
		balanceRepo: balanceRepo,
		cardRepo:    cardRepo,
		ledgerRepo:  ledgerRepo,
		actorRepo:   actorRepo,
		transactor:  transactor,
		log:         log,
	}
}

// Initiate creates a pending payment request. The payer is not debited
// here; sufficiency is checked at confirm time.
func (s *PaymentServiceImpl) Initiate(ctx context.Context, req ports.InitiatePaymentRequest) (*domain.MerchantTransaction, error) {
	txn := &domain.MerchantTransaction{
		ID:            uuid.New(),
		MerchantID:    req.MerchantID,
		CustomerID:    req.CustomerID,
		CardID:        req.CardID,
		Amount:        req.Amount,
		Status:        domain.PaymentStatusPending,
		CorrelationID: req.CorrelationID,
		CreatedAt:     time.Now().UTC(),
	}
	if err := txn.Validate(); err != nil {
		return nil, apperror.Validation(err.Error())
	}

	// Resolve the payer so an unknown customer or card fails before a
	// pending row exists.
	if req.CustomerID != nil {
		actor, err := s.actorRepo.GetByID(ctx, *req.CustomerID)
		if err != nil {
			return nil, apperror.InternalError(fmt.Errorf("resolve customer: %w", err))
		}
		if actor == nil {
			return nil, apperror.ErrNotFound("customer")
		}
		if !actor.IsActive() {
			return nil, apperror.ErrActorSuspended()
		}
	} else {
		card, err := s.cardRepo.GetByID(ctx, *req.CardID)
		if err != nil {
			return nil, apperror.InternalError(fmt.Errorf("resolve card: %w", err))
		}
		if card == nil {
			return nil, apperror.ErrNotFound("point card")
		}
		if !card.IsActive {
			return nil, apperror.ErrInvalidState("CARD_INACTIVE")
		}
	}

	if err := s.txRepo.Create(ctx, txn); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("create transaction: %w", err))
	}

	s.log.Info().
		Str("tx_id", txn.ID.String()).
		Str("merchant_id", req.MerchantID.String()).
		Int64("amount", req.Amount).
		Bool("card_payment", txn.IsCardPayment()).
		Msg("merchant payment initiated")

	return txn, nil
}

// Confirm completes a pending payment: debits the payer, credits the
// merchant, stamps the confirming operator. Two confirms racing on the
// same transaction resolve to exactly one success; the loser observes
// the completed row under the lock and gets InvalidState. An
// insufficient payer balance leaves the transaction pending for retry.
func (s *PaymentServiceImpl) Confirm(ctx context.Context, req ports.ConfirmPaymentRequest) (*domain.MerchantTransaction, error) {
	if !req.OperatorRole.IsMerchantOperator() {
		return nil, apperror.ErrForbidden("confirming payments requires a merchant operator role")
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.TransientError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	txn, err := s.txRepo.GetByIDForUpdate(ctx, dbTx, req.TransactionID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("lock transaction: %w", err))
	}
	if txn == nil {
		return nil, apperror.ErrNotFound("transaction")
	}
	if txn.MerchantID != req.MerchantID {
		return nil, apperror.ErrForbidden("transaction belongs to another merchant")
	}
	if !txn.CanConfirm() {
		return nil, apperror.ErrInvalidState(string(txn.Status))
	}

	now := time.Now().UTC()

	if txn.IsCardPayment() {
		if err := s.debitCard(ctx, dbTx, *txn.CardID, txn.Amount, now); err != nil {
			return nil, err
		}
		if err := s.creditMerchant(ctx, dbTx, txn.MerchantRef(), txn.Amount); err != nil {
			return nil, err
		}
	} else {
		payerRef := txn.PayerRef()
		payerBal, merchantBal, err := loadBalancePairForUpdate(ctx, dbTx, s.balanceRepo, payerRef, txn.MerchantRef())
		if err != nil {
			return nil, apperror.InternalError(err)
		}
		if !payerBal.CanDebit(txn.Amount) {
			// Transaction stays pending; the customer can retry after
			// topping up.
			return nil, apperror.ErrInsufficientBalance(payerBal.AvailablePoints)
		}
		payerBal.AvailablePoints -= txn.Amount
		payerBal.TotalSpent += txn.Amount
		merchantBal.AvailablePoints += txn.Amount
		merchantBal.TotalRevenue += txn.Amount

		if err := s.balanceRepo.Save(ctx, dbTx, payerBal); err != nil {
			return nil, apperror.InternalError(fmt.Errorf("save payer balance: %w", err))
		}
		if err := s.balanceRepo.Save(ctx, dbTx, merchantBal); err != nil {
			return nil, apperror.InternalError(fmt.Errorf("save merchant balance: %w", err))
		}
	}

	ok, err := s.txRepo.MarkCompleted(ctx, dbTx, txn.ID, req.ConfirmedBy, now)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("mark completed: %w", err))
	}
	if !ok {
		return nil, apperror.ErrInvalidState(string(txn.Status))
	}

	entryType := domain.EntryTypeMerchantPayment
	if txn.IsCardPayment() {
		entryType = domain.EntryTypeCardSpend
	}
	entry := &domain.LedgerEntry{
		ID:            uuid.New(),
		Type:          entryType,
		Amount:        txn.Amount,
		SourceActor:   txn.PayerRef(),
		TargetActor:   txn.MerchantRef(),
		OccurredAt:    now,
		CorrelationID: txn.CorrelationID,
	}
	if err := s.ledgerRepo.Append(ctx, dbTx, entry); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("append payment entry: %w", err))
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.TransientError(fmt.Errorf("commit tx: %w", err))
	}

	txn.Status = domain.PaymentStatusCompleted
	txn.CollectedBy = &req.ConfirmedBy
	txn.CompletedAt = &now

	s.log.Info().
		Str("tx_id", txn.ID.String()).
		Str("confirmed_by", req.ConfirmedBy.String()).
		Int64("amount", txn.Amount).
		Msg("merchant payment confirmed")

	return txn, nil
}

// Cancel voids a pending payment. Nothing was ever debited, so there is
// no balance effect and no ledger entry.
func (s *PaymentServiceImpl) Cancel(ctx context.Context, req ports.CancelPaymentRequest) (*domain.MerchantTransaction, error) {
	if req.Reason == "" {
		return nil, apperror.Validation("a cancellation reason is required")
	}

	txn, err := s.txRepo.GetByID(ctx, req.TransactionID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get transaction: %w", err))
	}
	if txn == nil {
		return nil, apperror.ErrNotFound("transaction")
	}
	if txn.MerchantID != req.MerchantID {
		return nil, apperror.ErrForbidden("transaction belongs to another merchant")
	}
	if !txn.CanCancel() {
		return nil, apperror.ErrInvalidState(string(txn.Status))
	}

	now := time.Now().UTC()
	ok, err := s.txRepo.MarkCancelled(ctx, txn.ID, req.Reason, now)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("mark cancelled: %w", err))
	}
	if !ok {
		// Lost a race against confirm or another cancel.
		fresh, ferr := s.txRepo.GetByID(ctx, req.TransactionID)
		if ferr == nil && fresh != nil {
			return nil, apperror.ErrInvalidState(string(fresh.Status))
		}
		return nil, apperror.ErrInvalidState(string(txn.Status))
	}

	txn.Status = domain.PaymentStatusCancelled
	txn.ReasonNote = &req.Reason
	txn.ClosedAt = &now

	s.log.Info().
		Str("tx_id", txn.ID.String()).
		Str("reason", req.Reason).
		Msg("merchant payment cancelled")

	return txn, nil
}

// Refund reverses a completed payment. Only the merchant's primary
// operator may authorize it; refunded is terminal.
func (s *PaymentServiceImpl) Refund(ctx context.Context, req ports.RefundPaymentRequest) (*domain.MerchantTransaction, error) {
	if req.Reason == "" {
		return nil, apperror.Validation("a refund reason is required")
	}
	if !req.OperatorRole.CanAuthorizeRefund() {
		return nil, apperror.ErrForbidden("refunds require the primary merchant operator")
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.TransientError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	txn, err := s.txRepo.GetByIDForUpdate(ctx, dbTx, req.TransactionID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("lock transaction: %w", err))
	}
	if txn == nil {
		return nil, apperror.ErrNotFound("transaction")
	}
	if txn.MerchantID != req.MerchantID {
		return nil, apperror.ErrForbidden("transaction belongs to another merchant")
	}
	if !txn.CanRefund() {
		return nil, apperror.ErrInvalidState(string(txn.Status))
	}

	now := time.Now().UTC()

	if txn.IsCardPayment() {
		// Lock order matches Confirm: card row first, then the merchant
		// balance, so racing confirm/refund pairs cannot deadlock.
		card, err := s.cardRepo.GetByIDForUpdate(ctx, dbTx, *txn.CardID)
		if err != nil {
			return nil, apperror.InternalError(fmt.Errorf("lock card: %w", err))
		}
		if card == nil {
			return nil, apperror.ErrNotFound("point card")
		}
		merchantBal, err := loadBalanceForUpdate(ctx, dbTx, s.balanceRepo, txn.MerchantRef())
		if err != nil {
			return nil, apperror.InternalError(err)
		}
		if !merchantBal.CanDebit(txn.Amount) {
			return nil, apperror.ErrInsufficientBalance(merchantBal.AvailablePoints)
		}
		merchantBal.AvailablePoints -= txn.Amount
		merchantBal.TotalRevenue -= txn.Amount
		if err := s.balanceRepo.Save(ctx, dbTx, merchantBal); err != nil {
			return nil, apperror.InternalError(fmt.Errorf("save merchant balance: %w", err))
		}
		if err := s.cardRepo.UpdateBalance(ctx, dbTx, card.ID, card.CurrentBalance+txn.Amount); err != nil {
			return nil, apperror.InternalError(fmt.Errorf("update card balance: %w", err))
		}
	} else {
		payerRef := txn.PayerRef()
		payerBal, merchantBal, err := loadBalancePairForUpdate(ctx, dbTx, s.balanceRepo, payerRef, txn.MerchantRef())
		if err != nil {
			return nil, apperror.InternalError(err)
		}
		if !merchantBal.CanDebit(txn.Amount) {
			return nil, apperror.ErrInsufficientBalance(merchantBal.AvailablePoints)
		}
		merchantBal.AvailablePoints -= txn.Amount
		merchantBal.TotalRevenue -= txn.Amount
		payerBal.AvailablePoints += txn.Amount
		payerBal.TotalSpent -= txn.Amount

		if err := s.balanceRepo.Save(ctx, dbTx, merchantBal); err != nil {
			return nil, apperror.InternalError(fmt.Errorf("save merchant balance: %w", err))
		}
		if err := s.balanceRepo.Save(ctx, dbTx, payerBal); err != nil {
			return nil, apperror.InternalError(fmt.Errorf("save payer balance: %w", err))
		}
	}

	ok, err := s.txRepo.MarkRefunded(ctx, dbTx, txn.ID, req.Reason, now)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("mark refunded: %w", err))
	}
	if !ok {
		return nil, apperror.ErrInvalidState(string(txn.Status))
	}

	entry := &domain.LedgerEntry{
		ID:          uuid.New(),
		Type:        domain.EntryTypeRefund,
		Amount:      txn.Amount,
		SourceActor: txn.MerchantRef(),
		TargetActor: txn.PayerRef(),
		OccurredAt:  now,
		Note:        &req.Reason,
	}
	if err := s.ledgerRepo.Append(ctx, dbTx, entry); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("append refund entry: %w", err))
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.TransientError(fmt.Errorf("commit tx: %w", err))
	}

	txn.Status = domain.PaymentStatusRefunded
	txn.ReasonNote = &req.Reason
	txn.ClosedAt = &now

	s.log.Info().
		Str("tx_id", txn.ID.String()).
		Str("authorized_by", req.AuthorizedBy.String()).
		Int64("amount", txn.Amount).
		Msg("merchant payment refunded")

	return txn, nil
}

// GetTransaction returns a transaction by id.
func (s *PaymentServiceImpl) GetTransaction(ctx context.Context, id uuid.UUID) (*domain.MerchantTransaction, error) {
	txn, err := s.txRepo.GetByID(ctx, id)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get transaction: %w", err))
	}
	if txn == nil {
		return nil, apperror.ErrNotFound("transaction")
	}
	return txn, nil
}

// debitCard charges a bearer card under its row lock, re-checking card
// state and sufficiency.
func (s *PaymentServiceImpl) debitCard(ctx context.Context, dbTx pgx.Tx, cardID uuid.UUID, amount int64, now time.Time) error {
	card, err := s.cardRepo.GetByIDForUpdate(ctx, dbTx, cardID)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("lock card: %w", err))
	}
	if card == nil {
		return apperror.ErrNotFound("point card")
	}
	if !card.IsActive {
		return apperror.ErrInvalidState("CARD_INACTIVE")
	}
	if card.IsExpired(now) {
		return apperror.ErrInvalidState("CARD_EXPIRED")
	}
	if card.CurrentBalance < amount {
		return apperror.ErrInsufficientBalance(card.CurrentBalance)
	}
	if err := s.cardRepo.UpdateBalance(ctx, dbTx, cardID, card.CurrentBalance-amount); err != nil {
		return apperror.InternalError(fmt.Errorf("update card balance: %w", err))
	}
	return nil
}

// creditMerchant adds revenue to the merchant's shared balance.
func (s *PaymentServiceImpl) creditMerchant(ctx context.Context, dbTx pgx.Tx, merchant domain.ActorRef, amount int64) error {
	merchantBal, err := loadBalanceForUpdate(ctx, dbTx, s.balanceRepo, merchant)
	if err != nil {
		return apperror.InternalError(err)
	}
	merchantBal.AvailablePoints += amount
	merchantBal.TotalRevenue += amount
	if err := s.balanceRepo.Save(ctx, dbTx, merchantBal); err != nil {
		return apperror.InternalError(fmt.Errorf("save merchant balance: %w", err))
	}
	return nil
}
