package handler

import (
	"strconv"
	"strings"
	"time"

	"points-commerce-engine/internal/adapter/http/dto"
	"points-commerce-engine/internal/adapter/http/middleware"
	"points-commerce-engine/internal/core/domain"
	"points-commerce-engine/internal/core/ports"
	"points-commerce-engine/pkg/apperror"
	"points-commerce-engine/pkg/response"

	"github.com/gin-gonic/gin"
)

// LedgerHandler handles the read-only balance and ledger query surface.
type LedgerHandler struct {
	ledgerSvc ports.LedgerService
}

// NewLedgerHandler creates a new LedgerHandler.
func NewLedgerHandler(ledgerSvc ports.LedgerService) *LedgerHandler {
	return &LedgerHandler{ledgerSvc: ledgerSvc}
}

// GetBalance handles GET /api/v1/balances/:role. Callers only read
// their own balances; the merchant balance is addressed through the
// identity's merchant binding.
func (h *LedgerHandler) GetBalance(c *gin.Context) {
	ref, ok := ownRef(c)
	if !ok {
		return
	}

	balance, err := h.ledgerSvc.CurrentBalance(c.Request.Context(), ref)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.FromBalance(balance))
}

// RebuildBalance handles POST /api/v1/balances/:role/rebuild. It folds
// the full ledger and returns the recomputed figures without touching
// the materialized row; callers compare the two.
func (h *LedgerHandler) RebuildBalance(c *gin.Context) {
	ref, ok := ownRef(c)
	if !ok {
		return
	}

	balance, err := h.ledgerSvc.RebuildBalance(c.Request.Context(), ref)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.FromBalance(balance))
}

// ListEntries handles GET /api/v1/ledger/:role.
func (h *LedgerHandler) ListEntries(c *gin.Context) {
	ref, ok := ownRef(c)
	if !ok {
		return
	}

	filter, err := parseLedgerFilter(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	entries, nextCursor, err := h.ledgerSvc.ListByActor(c.Request.Context(), ref, filter)
	if err != nil {
		response.Error(c, err)
		return
	}

	items := make([]dto.LedgerEntryResponse, 0, len(entries))
	for i := range entries {
		items = append(items, dto.FromLedgerEntry(&entries[i]))
	}
	response.OK(c, dto.LedgerListResponse{Items: items, NextCursor: nextCursor})
}

// ownRef resolves the :role path param against the caller's identity,
// writing the error response itself on failure.
func ownRef(c *gin.Context) (domain.ActorRef, bool) {
	identity, ok := middleware.IdentityFrom(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return domain.ActorRef{}, false
	}

	role := domain.Role(strings.ToUpper(c.Param("role")))
	if !role.IsValid() {
		response.Error(c, apperror.Validation("unknown role"))
		return domain.ActorRef{}, false
	}

	if role == domain.RoleMerchant {
		if operatorRole(identity) == "" || identity.MerchantID == nil {
			response.Error(c, apperror.ErrForbidden("identity has no merchant binding"))
			return domain.ActorRef{}, false
		}
		return domain.NewActorRef(*identity.MerchantID, domain.RoleMerchant), true
	}

	if !identity.HasRole(role) {
		response.Error(c, apperror.ErrForbidden("requires role "+string(role)))
		return domain.ActorRef{}, false
	}
	return identity.Ref(role), true
}

func parseLedgerFilter(c *gin.Context) (ports.LedgerFilter, error) {
	filter := ports.LedgerFilter{Cursor: c.Query("cursor")}

	if raw := c.Query("types"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			et := domain.EntryType(strings.ToUpper(strings.TrimSpace(part)))
			if !et.IsValid() {
				return filter, apperror.Validation("unknown entry type " + string(et))
			}
			filter.Types = append(filter.Types, et)
		}
	}

	if raw := c.Query("from"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return filter, apperror.Validation("from must be RFC 3339")
		}
		filter.From = &t
	}
	if raw := c.Query("to"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return filter, apperror.Validation("to must be RFC 3339")
		}
		filter.To = &t
	}

	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 200 {
			return filter, apperror.Validation("limit must be between 1 and 200")
		}
		filter.Limit = n
	}

	return filter, nil
}
