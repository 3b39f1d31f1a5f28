package service

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base32"
	"encoding/json"
	"fmt"
	"time"

	"points-commerce-engine/internal/core/domain"
	"points-commerce-engine/internal/core/ports"
	"points-commerce-engine/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

// cardSecretBytes sized so the printed secret is 16 base32 characters.
const cardSecretBytes = 10

// CardServiceImpl implements ports.CardService: issuance, loading,
// spending and lifecycle of anonymous bearer cards.
type CardServiceImpl struct {
	cardRepo    ports.CardRepository
	balanceRepo ports.BalanceRepository
	ledgerRepo  ports.LedgerRepository
	idempRepo   ports.IdempotencyRepository
	idempCache  ports.IdempotencyCache
	transactor  ports.DBTransactor
	encryption  ports.EncryptionService
	log         zerolog.Logger
}

// NewCardService creates a new CardServiceImpl.
func NewCardService(
	cardRepo ports.CardRepository,
	balanceRepo ports.BalanceRepository,
	ledgerRepo ports.LedgerRepository,
	idempRepo ports.IdempotencyRepository,
	idempCache ports.IdempotencyCache,
	transactor ports.DBTransactor,
	encryption ports.EncryptionService,
	log zerolog.Logger,
) *CardServiceImpl {
	return &CardServiceImpl{
		cardRepo:    cardRepo,
		balanceRepo: balanceRepo,
		ledgerRepo:  ledgerRepo,
		idempRepo:   idempRepo,
		idempCache:  idempCache,
		transactor:  transactor,
		encryption:  encryption,
		log:         log,
	}
}

// Issue creates a card funded from the issuing seller's inventory. The
// plaintext secret is returned exactly once; only its encrypted form is
// stored.
func (s *CardServiceImpl) Issue(ctx context.Context, req ports.IssueCardRequest) (*ports.IssuedCard, error) {
	if req.InitialBalance <= 0 {
		return nil, apperror.ErrInvalidAmount()
	}
	if req.IssuedBy == uuid.Nil {
		return nil, apperror.Validation("issuing seller is required")
	}
	if req.ExpiresAt != nil && req.ExpiresAt.Before(time.Now().UTC()) {
		return nil, apperror.Validation("expiry must be in the future")
	}

	secret, err := generateCardSecret()
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("generate card secret: %w", err))
	}
	secretEnc, err := s.encryption.Encrypt(secret)
	if err != nil {
		return nil, apperror.ErrEncryptionFailure(err)
	}

	now := time.Now().UTC()
	card := &domain.PointCard{
		ID:             uuid.New(),
		SecretEnc:      secretEnc,
		InitialBalance: req.InitialBalance,
		CurrentBalance: req.InitialBalance,
		IsActive:       true,
		ExpiresAt:      req.ExpiresAt,
		IssuedBy:       req.IssuedBy,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.TransientError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	if err := s.debitFundingSeller(ctx, dbTx, req.IssuedBy, req.InitialBalance); err != nil {
		return nil, err
	}
	if err := s.cardRepo.Create(ctx, dbTx, card); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("create card: %w", err))
	}

	entry := &domain.LedgerEntry{
		ID:          uuid.New(),
		Type:        domain.EntryTypeCardTopUp,
		Amount:      req.InitialBalance,
		SourceActor: domain.NewActorRef(req.IssuedBy, domain.RoleSeller),
		TargetActor: card.Ref(),
		OccurredAt:  now,
	}
	if err := s.ledgerRepo.Append(ctx, dbTx, entry); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("append issue entry: %w", err))
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.TransientError(fmt.Errorf("commit tx: %w", err))
	}

	s.log.Info().
		Str("card_id", card.ID.String()).
		Str("issued_by", req.IssuedBy.String()).
		Int64("initial_balance", req.InitialBalance).
		Msg("point card issued")

	return &ports.IssuedCard{Card: card, Secret: secret}, nil
}

// TopUp loads points onto a card, funded from a seller's inventory the
// same way a customer sale is.
func (s *CardServiceImpl) TopUp(ctx context.Context, req ports.CardTopUpRequest) (*domain.PointCard, error) {
	if req.Amount <= 0 {
		return nil, apperror.ErrInvalidAmount()
	}

	var idempKey string
	if req.CorrelationID != nil {
		idempKey = domain.BuildIdempotencyKey(req.FundedBy, "card_topup", *req.CorrelationID)
		cached, err := lookupCachedResult(ctx, s.idempCache, s.idempRepo, s.log, idempKey)
		if err != nil {
			return nil, apperror.InternalError(err)
		}
		if cached != nil {
			return unmarshalCachedCard(cached)
		}
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.TransientError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	card, err := s.cardRepo.GetByIDForUpdate(ctx, dbTx, req.CardID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("lock card: %w", err))
	}
	if card == nil {
		return nil, apperror.ErrNotFound("point card")
	}
	now := time.Now().UTC()
	if !card.IsActive {
		return nil, apperror.ErrInvalidState("CARD_INACTIVE")
	}
	if card.IsExpired(now) {
		return nil, apperror.ErrInvalidState("CARD_EXPIRED")
	}

	if err := s.debitFundingSeller(ctx, dbTx, req.FundedBy, req.Amount); err != nil {
		return nil, err
	}

	card.CurrentBalance += req.Amount
	card.UpdatedAt = now
	if err := s.cardRepo.UpdateBalance(ctx, dbTx, card.ID, card.CurrentBalance); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("update card balance: %w", err))
	}

	entry := &domain.LedgerEntry{
		ID:            uuid.New(),
		Type:          domain.EntryTypeCardTopUp,
		Amount:        req.Amount,
		SourceActor:   domain.NewActorRef(req.FundedBy, domain.RoleSeller),
		TargetActor:   card.Ref(),
		OccurredAt:    now,
		CorrelationID: req.CorrelationID,
	}
	if err := s.ledgerRepo.Append(ctx, dbTx, entry); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("append top-up entry: %w", err))
	}

	var respJSON []byte
	if idempKey != "" {
		respJSON, err = json.Marshal(card)
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
		Str("card_id", card.ID.String()).
		Str("funded_by", req.FundedBy.String()).
		Int64("amount", req.Amount).
		Msg("point card topped up")

	return card, nil
}

// Spend charges a card at a merchant. The printed secret is the only
// credential; a wrong secret is indistinguishable from missing
// authorization.
func (s *CardServiceImpl) Spend(ctx context.Context, req ports.CardSpendRequest) (*domain.LedgerEntry, error) {
	if req.Amount <= 0 {
		return nil, apperror.ErrInvalidAmount()
	}
	if req.MerchantID == uuid.Nil {
		return nil, apperror.Validation("merchant is required")
	}

	var idempKey string
	if req.CorrelationID != nil {
		idempKey = domain.BuildIdempotencyKey(req.CardID, "card_spend", *req.CorrelationID)
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

	card, err := s.cardRepo.GetByIDForUpdate(ctx, dbTx, req.CardID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("lock card: %w", err))
	}
	if card == nil {
		return nil, apperror.ErrNotFound("point card")
	}

	if err := s.verifySecret(card, req.Secret); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	if !card.IsActive {
		return nil, apperror.ErrInvalidState("CARD_INACTIVE")
	}
	if card.IsExpired(now) {
		return nil, apperror.ErrInvalidState("CARD_EXPIRED")
	}
	if card.CurrentBalance < req.Amount {
		return nil, apperror.ErrInsufficientBalance(card.CurrentBalance)
	}

	if err := s.cardRepo.UpdateBalance(ctx, dbTx, card.ID, card.CurrentBalance-req.Amount); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("update card balance: %w", err))
	}

	merchantRef := domain.NewActorRef(req.MerchantID, domain.RoleMerchant)
	merchantBal, err := loadBalanceForUpdate(ctx, dbTx, s.balanceRepo, merchantRef)
	if err != nil {
		return nil, apperror.InternalError(err)
	}
	merchantBal.AvailablePoints += req.Amount
	merchantBal.TotalRevenue += req.Amount
	if err := s.balanceRepo.Save(ctx, dbTx, merchantBal); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("save merchant balance: %w", err))
	}

	entry := &domain.LedgerEntry{
		ID:            uuid.New(),
		Type:          domain.EntryTypeCardSpend,
		Amount:        req.Amount,
		SourceActor:   card.Ref(),
		TargetActor:   merchantRef,
		OccurredAt:    now,
		CorrelationID: req.CorrelationID,
	}
	if err := s.ledgerRepo.Append(ctx, dbTx, entry); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("append spend entry: %w", err))
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
		Str("card_id", card.ID.String()).
		Str("merchant_id", req.MerchantID.String()).
		Int64("amount", req.Amount).
		Msg("card spend applied")

	return entry, nil
}

// QueryBalance returns the card's current state.
func (s *CardServiceImpl) QueryBalance(ctx context.Context, cardID uuid.UUID) (*domain.PointCard, error) {
	card, err := s.cardRepo.GetByID(ctx, cardID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get card: %w", err))
	}
	if card == nil {
		return nil, apperror.ErrNotFound("point card")
	}
	return card, nil
}

// Deactivate permanently disables a card. Only the issuing seller or an
// organizer may do it. Remaining balance is frozen; there is no
// reactivation path.
func (s *CardServiceImpl) Deactivate(ctx context.Context, req ports.DeactivateCardRequest) error {
	card, err := s.cardRepo.GetByID(ctx, req.CardID)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("get card: %w", err))
	}
	if card == nil {
		return apperror.ErrNotFound("point card")
	}
	if !req.Organizer && card.IssuedBy != req.RequestedBy {
		return apperror.ErrForbidden("only the issuing seller or an organizer can deactivate a card")
	}
	if !card.IsActive {
		return apperror.ErrInvalidState("CARD_INACTIVE")
	}
	if err := s.cardRepo.SetActive(ctx, req.CardID, false); err != nil {
		return apperror.InternalError(fmt.Errorf("deactivate card: %w", err))
	}

	s.log.Info().
		Str("card_id", req.CardID.String()).
		Str("requested_by", req.RequestedBy.String()).
		Msg("point card deactivated")
	return nil
}

// verifySecret compares the presented secret against the decrypted
// stored one in constant time.
func (s *CardServiceImpl) verifySecret(card *domain.PointCard, presented string) error {
	stored, err := s.encryption.Decrypt(card.SecretEnc)
	if err != nil {
		return apperror.ErrEncryptionFailure(err)
	}
	if subtle.ConstantTimeCompare([]byte(stored), []byte(presented)) != 1 {
		return apperror.ErrForbidden("card secret mismatch")
	}
	return nil
}

// debitFundingSeller moves inventory out of the seller the same way a
// customer sale does: the card load is a sale whose buyer is the card.
func (s *CardServiceImpl) debitFundingSeller(ctx context.Context, dbTx pgx.Tx, sellerID uuid.UUID, amount int64) error {
	sellerRef := domain.NewActorRef(sellerID, domain.RoleSeller)
	sellerBal, err := loadBalanceForUpdate(ctx, dbTx, s.balanceRepo, sellerRef)
	if err != nil {
		return apperror.InternalError(err)
	}
	if !sellerBal.CanDebit(amount) {
		return apperror.ErrInsufficientInventory(sellerBal.AvailablePoints)
	}
	sellerBal.AvailablePoints -= amount
	sellerBal.TotalSold += amount
	sellerBal.TotalRevenue += amount
	sellerBal.PendingCollection += amount
	if err := s.balanceRepo.Save(ctx, dbTx, sellerBal); err != nil {
		return apperror.InternalError(fmt.Errorf("save seller balance: %w", err))
	}
	return nil
}

// generateCardSecret produces the printed card secret from a CSPRNG.
func generateCardSecret() (string, error) {
	buf := make([]byte, cardSecretBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(buf), nil
}

// unmarshalCachedCard deserializes a cached card snapshot.
func unmarshalCachedCard(data []byte) (*domain.PointCard, error) {
	card := &domain.PointCard{}
	if err := json.Unmarshal(data, card); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("unmarshal cached card: %w", err))
	}
	return card, nil
}
