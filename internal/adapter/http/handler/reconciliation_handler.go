package handler

import (
	"points-commerce-engine/internal/adapter/http/dto"
	"points-commerce-engine/internal/adapter/http/middleware"
	"points-commerce-engine/internal/core/domain"
	"points-commerce-engine/internal/core/ports"
	"points-commerce-engine/pkg/apperror"
	"points-commerce-engine/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ReconciliationHandler handles cash reconciliation endpoints.
type ReconciliationHandler struct {
	reconSvc ports.ReconciliationService
}

// NewReconciliationHandler creates a new ReconciliationHandler.
func NewReconciliationHandler(reconSvc ports.ReconciliationService) *ReconciliationHandler {
	return &ReconciliationHandler{reconSvc: reconSvc}
}

// Submit handles POST /api/v1/cash/submissions.
func (h *ReconciliationHandler) Submit(c *gin.Context) {
	identity, ok := middleware.IdentityFrom(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	var req dto.SubmitCashRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	role, ok := submitterRole(identity, domain.Role(req.Role))
	if !ok {
		response.Error(c, apperror.ErrForbidden("requires a cash-handling role"))
		return
	}

	sub, err := h.reconSvc.Submit(c.Request.Context(), ports.SubmitCashRequest{
		SubmitterID:     identity.ActorID,
		SubmitterRole:   role,
		Amount:          req.Amount,
		Note:            req.Note,
		IncludedContext: req.IncludedContext,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, dto.FromSubmission(sub))
}

// Claim handles POST /api/v1/cash/submissions/:id/claim.
func (h *ReconciliationHandler) Claim(c *gin.Context) {
	identity, ok := middleware.IdentityFrom(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	subID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperror.Validation("invalid submission id"))
		return
	}

	sub, err := h.reconSvc.Claim(c.Request.Context(), subID, identity.ActorID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.FromSubmission(sub))
}

// Confirm handles POST /api/v1/cash/submissions/:id/confirm. The PIN is
// the clerk's own second factor.
func (h *ReconciliationHandler) Confirm(c *gin.Context) {
	identity, ok := middleware.IdentityFrom(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	subID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperror.Validation("invalid submission id"))
		return
	}

	var req dto.ConfirmCashRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	sub, err := h.reconSvc.Confirm(c.Request.Context(), ports.ConfirmCashRequest{
		SubmissionID:     subID,
		ClerkID:          identity.ActorID,
		PIN:              req.PIN,
		ConfirmationNote: req.ConfirmationNote,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.FromSubmission(sub))
}

// Dispute handles POST /api/v1/cash/submissions/:id/dispute.
func (h *ReconciliationHandler) Dispute(c *gin.Context) {
	identity, ok := middleware.IdentityFrom(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	subID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperror.Validation("invalid submission id"))
		return
	}

	var req dto.DisputeCashRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	sub, err := h.reconSvc.Dispute(c.Request.Context(), subID, identity.ActorID, req.Reason)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.FromSubmission(sub))
}

// ListPending handles GET /api/v1/cash/submissions/pending.
func (h *ReconciliationHandler) ListPending(c *gin.Context) {
	subs, err := h.reconSvc.ListPending(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}

	items := make([]dto.SubmissionResponse, 0, len(subs))
	for i := range subs {
		items = append(items, dto.FromSubmission(&subs[i]))
	}
	response.OK(c, items)
}

// submitterRole resolves the role a cash submission is declared under.
// An explicit request role must be held by the caller; otherwise the
// first cash-handling role the identity carries is used.
func submitterRole(identity domain.Identity, requested domain.Role) (domain.Role, bool) {
	if requested != "" {
		if identity.HasRole(requested) && requested.HandlesCash() {
			return requested, true
		}
		return "", false
	}
	for _, r := range identity.Roles {
		if r.HandlesCash() {
			return r, true
		}
	}
	return "", false
}
