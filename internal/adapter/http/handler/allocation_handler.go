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

// AllocationHandler handles hierarchical inventory movement endpoints.
type AllocationHandler struct {
	allocSvc ports.AllocationService
}

// NewAllocationHandler creates a new AllocationHandler.
func NewAllocationHandler(allocSvc ports.AllocationService) *AllocationHandler {
	return &AllocationHandler{allocSvc: allocSvc}
}

// Allocate handles POST /api/v1/allocations. The source role is the
// caller's role one level above the target in the hierarchy.
func (h *AllocationHandler) Allocate(c *gin.Context) {
	identity, ok := middleware.IdentityFrom(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	var req dto.AllocateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	toRole := domain.Role(req.ToRole)
	fromRole, ok := allocatingRole(identity, toRole)
	if !ok {
		response.Error(c, apperror.ErrHierarchyViolation("caller", req.ToRole))
		return
	}

	toID, err := uuid.Parse(req.ToActorID)
	if err != nil {
		response.Error(c, apperror.Validation("invalid to_actor_id"))
		return
	}

	entry, err := h.allocSvc.Allocate(c.Request.Context(), ports.AllocateRequest{
		From:          identity.Ref(fromRole),
		To:            domain.NewActorRef(toID, toRole),
		Amount:        req.Amount,
		Note:          req.Note,
		CorrelationID: req.CorrelationID,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, dto.FromLedgerEntry(entry))
}

// Recall handles POST /api/v1/allocations/recall. Direction is inverted:
// the caller pulls unsold inventory back from a direct subordinate.
func (h *AllocationHandler) Recall(c *gin.Context) {
	identity, ok := middleware.IdentityFrom(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	var req dto.RecallRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	subordinateRole := domain.Role(req.FromRole)
	callerRole, ok := allocatingRole(identity, subordinateRole)
	if !ok {
		response.Error(c, apperror.ErrHierarchyViolation("caller", req.FromRole))
		return
	}

	subordinateID, err := uuid.Parse(req.FromActorID)
	if err != nil {
		response.Error(c, apperror.Validation("invalid from_actor_id"))
		return
	}

	// The service request reads in allocation direction: From is the
	// superior reclaiming inventory, To is the subordinate being debited.
	entry, err := h.allocSvc.Recall(c.Request.Context(), ports.AllocateRequest{
		From:          identity.Ref(callerRole),
		To:            domain.NewActorRef(subordinateID, subordinateRole),
		Amount:        req.Amount,
		Note:          req.Note,
		CorrelationID: req.CorrelationID,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, dto.FromLedgerEntry(entry))
}

// GrantByCohort handles POST /api/v1/allocations/cohort-grant.
// Organizer-only; grants directly to every active customer matching one
// of the identity tags.
func (h *AllocationHandler) GrantByCohort(c *gin.Context) {
	identity, ok := middleware.IdentityFrom(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	var req dto.CohortGrantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	result, err := h.allocSvc.GrantByCohort(c.Request.Context(), ports.CohortGrantRequest{
		Initiator:          identity.Ref(domain.RoleOrganizer),
		OrgID:              identity.OrgID,
		IdentityTags:       req.IdentityTags,
		AmountPerRecipient: req.AmountPerRecipient,
		Note:               req.Note,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, result)
}

// allocatingRole picks which of the caller's roles sits one level above
// target in the hierarchy.
func allocatingRole(identity domain.Identity, target domain.Role) (domain.Role, bool) {
	for _, r := range identity.Roles {
		if r.AllocatesTo(target) {
			return r, true
		}
	}
	return "", false
}
