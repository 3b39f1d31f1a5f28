package handler

import (
	"time"

	"points-commerce-engine/internal/adapter/http/dto"
	"points-commerce-engine/internal/adapter/http/middleware"
	"points-commerce-engine/internal/adapter/qr"
	"points-commerce-engine/internal/core/domain"
	"points-commerce-engine/internal/core/ports"
	"points-commerce-engine/pkg/apperror"
	"points-commerce-engine/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// CardHandler handles bearer point card endpoints.
type CardHandler struct {
	cardSvc ports.CardService
	codec   *qr.Codec // nil = QR spend disabled
}

// NewCardHandler creates a new CardHandler.
func NewCardHandler(cardSvc ports.CardService, codec *qr.Codec) *CardHandler {
	return &CardHandler{cardSvc: cardSvc, codec: codec}
}

// Issue handles POST /api/v1/cards. The funding seller is the caller;
// the plaintext secret appears in this response and never again.
func (h *CardHandler) Issue(c *gin.Context) {
	identity, ok := middleware.IdentityFrom(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	var req dto.IssueCardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	var expiresAt *time.Time
	if req.ExpiresAt != nil {
		t, err := time.Parse(time.RFC3339, *req.ExpiresAt)
		if err != nil {
			response.Error(c, apperror.Validation("expires_at must be RFC 3339"))
			return
		}
		expiresAt = &t
	}

	issued, err := h.cardSvc.Issue(c.Request.Context(), ports.IssueCardRequest{
		IssuedBy:       identity.ActorID,
		InitialBalance: req.InitialBalance,
		ExpiresAt:      expiresAt,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, dto.FromIssuedCard(issued))
}

// TopUp handles POST /api/v1/cards/:id/topup.
func (h *CardHandler) TopUp(c *gin.Context) {
	identity, ok := middleware.IdentityFrom(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	cardID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperror.Validation("invalid card id"))
		return
	}

	var req dto.CardTopUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	card, err := h.cardSvc.TopUp(c.Request.Context(), ports.CardTopUpRequest{
		CardID:        cardID,
		Amount:        req.Amount,
		FundedBy:      identity.ActorID,
		CorrelationID: req.CorrelationID,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.FromCard(card))
}

// Spend handles POST /api/v1/cards/spend with manually entered card
// details.
func (h *CardHandler) Spend(c *gin.Context) {
	identity, ok := merchantOperator(c)
	if !ok {
		return
	}

	var req dto.CardSpendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	cardID, err := uuid.Parse(req.CardID)
	if err != nil {
		response.Error(c, apperror.Validation("invalid card_id"))
		return
	}

	entry, err := h.cardSvc.Spend(c.Request.Context(), ports.CardSpendRequest{
		CardID:        cardID,
		Secret:        req.Secret,
		MerchantID:    *identity.MerchantID,
		Amount:        req.Amount,
		CorrelationID: req.CorrelationID,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, dto.FromLedgerEntry(entry))
}

// SpendQR handles POST /api/v1/cards/spend-qr. The scanned envelope
// binds card id and amount and carries a single-use nonce; its nonce
// doubles as the idempotency correlation id, so a re-scan can never
// charge twice.
func (h *CardHandler) SpendQR(c *gin.Context) {
	identity, ok := merchantOperator(c)
	if !ok {
		return
	}
	if h.codec == nil {
		response.Error(c, apperror.ErrInvalidEnvelope())
		return
	}

	var req dto.CardSpendQRRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	env, err := h.codec.Decode(c.Request.Context(), req.Envelope)
	if err != nil {
		response.Error(c, err)
		return
	}

	entry, err := h.cardSvc.Spend(c.Request.Context(), ports.CardSpendRequest{
		CardID:        env.CardID,
		Secret:        req.Secret,
		MerchantID:    *identity.MerchantID,
		Amount:        env.Amount,
		CorrelationID: &env.Nonce,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, dto.FromLedgerEntry(entry))
}

// QueryBalance handles GET /api/v1/cards/:id.
func (h *CardHandler) QueryBalance(c *gin.Context) {
	cardID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperror.Validation("invalid card id"))
		return
	}

	card, err := h.cardSvc.QueryBalance(c.Request.Context(), cardID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.FromCard(card))
}

// Deactivate handles POST /api/v1/cards/:id/deactivate.
func (h *CardHandler) Deactivate(c *gin.Context) {
	identity, ok := middleware.IdentityFrom(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	cardID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperror.Validation("invalid card id"))
		return
	}

	err = h.cardSvc.Deactivate(c.Request.Context(), ports.DeactivateCardRequest{
		CardID:      cardID,
		RequestedBy: identity.ActorID,
		Organizer:   identity.HasRole(domain.RoleOrganizer),
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, gin.H{"deactivated": true})
}
