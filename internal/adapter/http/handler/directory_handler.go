package handler

import (
	"time"

	"points-commerce-engine/internal/adapter/http/dto"
	"points-commerce-engine/internal/adapter/http/middleware"
	"points-commerce-engine/internal/core/domain"
	"points-commerce-engine/internal/core/ports"
	"points-commerce-engine/pkg/apperror"
	"points-commerce-engine/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// DirectoryHandler handles actor directory endpoints. Writes mirror the
// external identity provider; only the organizer may push them.
type DirectoryHandler struct {
	directorySvc ports.DirectoryService
}

// NewDirectoryHandler creates a new DirectoryHandler.
func NewDirectoryHandler(directorySvc ports.DirectoryService) *DirectoryHandler {
	return &DirectoryHandler{directorySvc: directorySvc}
}

// UpsertActor handles PUT /api/v1/actors.
func (h *DirectoryHandler) UpsertActor(c *gin.Context) {
	var req dto.UpsertActorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	id, err := uuid.Parse(req.ID)
	if err != nil {
		response.Error(c, apperror.Validation("invalid id"))
		return
	}
	orgID, err := uuid.Parse(req.OrgID)
	if err != nil {
		response.Error(c, apperror.Validation("invalid org_id"))
		return
	}

	var merchantID *uuid.UUID
	if req.MerchantID != nil {
		mid, err := uuid.Parse(*req.MerchantID)
		if err != nil {
			response.Error(c, apperror.Validation("invalid merchant_id"))
			return
		}
		merchantID = &mid
	}

	roles := make([]domain.Role, 0, len(req.Roles))
	for _, r := range req.Roles {
		roles = append(roles, domain.Role(r))
	}

	actor := &domain.Actor{
		ID:          id,
		DisplayName: req.DisplayName,
		IdentityTag: req.IdentityTag,
		OrgID:       orgID,
		Roles:       roles,
		MerchantID:  merchantID,
		Status:      domain.ActorStatus(req.Status),
		UpdatedAt:   time.Now().UTC(),
	}

	if err := h.directorySvc.UpsertActor(c.Request.Context(), actor); err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.FromActor(actor))
}

// SetPIN handles PUT /api/v1/actors/me/pin. Clerks set their own
// transaction PIN.
func (h *DirectoryHandler) SetPIN(c *gin.Context) {
	identity, ok := middleware.IdentityFrom(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	var req dto.SetPINRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	if err := h.directorySvc.SetTransactionPIN(c.Request.Context(), identity.ActorID, req.PIN); err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, gin.H{"pin_set": true})
}

// GetActor handles GET /api/v1/actors/:id.
func (h *DirectoryHandler) GetActor(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperror.Validation("invalid actor id"))
		return
	}

	actor, err := h.directorySvc.GetActor(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.FromActor(actor))
}
