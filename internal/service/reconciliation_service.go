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

// ReconciliationServiceImpl implements ports.ReconciliationService: the
// cash hand-off pool. Submissions are claimed by exactly one clerk and
// settled against the clerk's transaction PIN.
type ReconciliationServiceImpl struct {
	subRepo     ports.SubmissionRepository
	balanceRepo ports.BalanceRepository
	ledgerRepo  ports.LedgerRepository
	actorRepo   ports.ActorRepository
	pinService  ports.PINService
	transactor  ports.DBTransactor
	log         zerolog.Logger
}

// NewReconciliationService creates a new ReconciliationServiceImpl.
func NewReconciliationService(
	subRepo ports.SubmissionRepository,
	balanceRepo ports.BalanceRepository,
	ledgerRepo ports.LedgerRepository,
	actorRepo ports.ActorRepository,
	pinService ports.PINService,
	transactor ports.DBTransactor,
	log zerolog.Logger,
) *ReconciliationServiceImpl {
	return &ReconciliationServiceImpl{
		subRepo:     subRepo,
		balanceRepo: balanceRepo,
		ledgerRepo:  ledgerRepo,
		actorRepo:   actorRepo,
		pinService:  pinService,
		transactor:  transactor,
		log:         log,
	}
}

// Submit places a parcel of collected cash into the reconciliation pool
// and records a declaration entry in the ledger. Balances do not move
// until a clerk confirms receipt.
func (s *ReconciliationServiceImpl) Submit(ctx context.Context, req ports.SubmitCashRequest) (*domain.CashSubmission, error) {
	now := time.Now().UTC()
	sub := &domain.CashSubmission{
		ID:            uuid.New(),
		SubmittedBy:   req.SubmitterID,
		SubmitterRole: req.SubmitterRole,
		Amount:        req.Amount,
		Status:        domain.SubmissionStatusPending,
		SubmittedAt:   now,
	}
	if req.Note != "" {
		sub.Note = &req.Note
	}
	if req.IncludedContext != "" {
		sub.IncludedContext = &req.IncludedContext
	}
	if err := sub.Validate(); err != nil {
		return nil, apperror.Validation(err.Error())
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.TransientError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	if err := s.subRepo.Create(ctx, dbTx, sub); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("create submission: %w", err))
	}

	// Declaration only: source and target are both the submitter, and no
	// balance field moves until confirmation.
	submitterRef := domain.NewActorRef(req.SubmitterID, req.SubmitterRole)
	entry := &domain.LedgerEntry{
		ID:          uuid.New(),
		Type:        domain.EntryTypeCashSubmission,
		Amount:      req.Amount,
		SourceActor: submitterRef,
		TargetActor: submitterRef,
		OccurredAt:  now,
		Note:        sub.Note,
	}
	if err := s.ledgerRepo.Append(ctx, dbTx, entry); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("append submission entry: %w", err))
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.TransientError(fmt.Errorf("commit tx: %w", err))
	}

	s.log.Info().
		Str("submission_id", sub.ID.String()).
		Str("submitted_by", req.SubmitterID.String()).
		Int64("amount", req.Amount).
		Msg("cash submission created")

	return sub, nil
}

// Claim takes exclusive custody of a pending submission. The update is a
// compare-and-set on received_by, so N racing clerks resolve to exactly
// one winner without locking.
func (s *ReconciliationServiceImpl) Claim(ctx context.Context, submissionID uuid.UUID, clerkID uuid.UUID) (*domain.CashSubmission, error) {
	sub, err := s.subRepo.GetByID(ctx, submissionID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get submission: %w", err))
	}
	if sub == nil {
		return nil, apperror.ErrNotFound("cash submission")
	}
	if sub.IsResolved() {
		return nil, apperror.ErrInvalidState(string(sub.Status))
	}
	if sub.IsClaimed() {
		return nil, apperror.ErrAlreadyClaimed()
	}

	now := time.Now().UTC()
	ok, err := s.subRepo.Claim(ctx, submissionID, clerkID, now)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("claim submission: %w", err))
	}
	if !ok {
		return nil, apperror.ErrAlreadyClaimed()
	}

	sub.ReceivedBy = &clerkID
	sub.ClaimedAt = &now

	s.log.Info().
		Str("submission_id", submissionID.String()).
		Str("clerk_id", clerkID.String()).
		Msg("cash submission claimed")

	return sub, nil
}

// Confirm settles a claimed submission: the clerk proves presence with
// their transaction PIN, the submitter's pending collection drops, and
// the clerk's collected total rises.
func (s *ReconciliationServiceImpl) Confirm(ctx context.Context, req ports.ConfirmCashRequest) (*domain.CashSubmission, error) {
	if err := s.verifyClerkPIN(ctx, req.ClerkID, req.PIN); err != nil {
		return nil, err
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.TransientError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	sub, err := s.subRepo.GetByIDForUpdate(ctx, dbTx, req.SubmissionID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("lock submission: %w", err))
	}
	if sub == nil {
		return nil, apperror.ErrNotFound("cash submission")
	}
	if sub.Status == domain.SubmissionStatusConfirmed {
		return nil, apperror.ErrAlreadyConfirmed()
	}
	if sub.IsResolved() {
		return nil, apperror.ErrInvalidState(string(sub.Status))
	}
	if !sub.ClaimedBy(req.ClerkID) {
		return nil, apperror.ErrNotClaimedByYou()
	}

	submitterRef := domain.NewActorRef(sub.SubmittedBy, sub.SubmitterRole)
	clerkRef := domain.NewActorRef(req.ClerkID, domain.RoleClerk)
	submitterBal, clerkBal, err := loadBalancePairForUpdate(ctx, dbTx, s.balanceRepo, submitterRef, clerkRef)
	if err != nil {
		return nil, apperror.InternalError(err)
	}
	// A declaration exceeding what the submitter actually owes would
	// settle pending collection negative; the count mismatch has to go
	// through the dispute path instead.
	if sub.Amount > submitterBal.PendingCollection {
		return nil, apperror.Validation(fmt.Sprintf(
			"declared amount (%d) exceeds submitter's pending collection (%d)",
			sub.Amount, submitterBal.PendingCollection,
		))
	}
	submitterBal.PendingCollection -= sub.Amount
	clerkBal.TotalCashCollected += sub.Amount

	if err := s.balanceRepo.Save(ctx, dbTx, submitterBal); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("save submitter balance: %w", err))
	}
	if err := s.balanceRepo.Save(ctx, dbTx, clerkBal); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("save clerk balance: %w", err))
	}

	now := time.Now().UTC()
	ok, err := s.subRepo.MarkConfirmed(ctx, dbTx, sub.ID, req.ConfirmationNote, now)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("mark confirmed: %w", err))
	}
	if !ok {
		return nil, apperror.ErrInvalidState(string(sub.Status))
	}

	entry := &domain.LedgerEntry{
		ID:          uuid.New(),
		Type:        domain.EntryTypeCashClaim,
		Amount:      sub.Amount,
		SourceActor: submitterRef,
		TargetActor: clerkRef,
		OccurredAt:  now,
	}
	if req.ConfirmationNote != "" {
		entry.Note = &req.ConfirmationNote
	}
	if err := s.ledgerRepo.Append(ctx, dbTx, entry); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("append claim entry: %w", err))
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.TransientError(fmt.Errorf("commit tx: %w", err))
	}

	sub.Status = domain.SubmissionStatusConfirmed
	sub.ResolvedAt = &now
	if req.ConfirmationNote != "" {
		sub.ConfirmationNote = &req.ConfirmationNote
	}

	s.log.Info().
		Str("submission_id", sub.ID.String()).
		Str("clerk_id", req.ClerkID.String()).
		Int64("amount", sub.Amount).
		Msg("cash submission confirmed")

	return sub, nil
}

// Dispute flags a claimed submission whose counted cash does not match
// the declared amount. No balance moves; resolution happens offline.
func (s *ReconciliationServiceImpl) Dispute(ctx context.Context, submissionID uuid.UUID, clerkID uuid.UUID, reason string) (*domain.CashSubmission, error) {
	if reason == "" {
		return nil, apperror.Validation("a dispute reason is required")
	}

	sub, err := s.subRepo.GetByID(ctx, submissionID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get submission: %w", err))
	}
	if sub == nil {
		return nil, apperror.ErrNotFound("cash submission")
	}
	if sub.IsResolved() {
		return nil, apperror.ErrInvalidState(string(sub.Status))
	}
	if !sub.ClaimedBy(clerkID) {
		return nil, apperror.ErrNotClaimedByYou()
	}

	now := time.Now().UTC()
	ok, err := s.subRepo.MarkDisputed(ctx, submissionID, reason, now)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("mark disputed: %w", err))
	}
	if !ok {
		return nil, apperror.ErrInvalidState(string(sub.Status))
	}

	sub.Status = domain.SubmissionStatusDisputed
	sub.ConfirmationNote = &reason
	sub.ResolvedAt = &now

	s.log.Warn().
		Str("submission_id", submissionID.String()).
		Str("clerk_id", clerkID.String()).
		Str("reason", reason).
		Msg("cash submission disputed")

	return sub, nil
}

// ListPending returns all unresolved submissions in the pool.
func (s *ReconciliationServiceImpl) ListPending(ctx context.Context) ([]domain.CashSubmission, error) {
	subs, err := s.subRepo.ListPending(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("list pending submissions: %w", err))
	}
	return subs, nil
}

// verifyClerkPIN checks the clerk's second-factor credential before any
// settlement work begins.
func (s *ReconciliationServiceImpl) verifyClerkPIN(ctx context.Context, clerkID uuid.UUID, pin string) error {
	clerk, err := s.actorRepo.GetByID(ctx, clerkID)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("resolve clerk: %w", err))
	}
	if clerk == nil {
		return apperror.ErrNotFound("clerk")
	}
	if clerk.PINHash == nil {
		return apperror.ErrInvalidSecondFactor()
	}
	match, err := s.pinService.Verify(pin, *clerk.PINHash)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("verify pin: %w", err))
	}
	if !match {
		return apperror.ErrInvalidSecondFactor()
	}
	return nil
}
