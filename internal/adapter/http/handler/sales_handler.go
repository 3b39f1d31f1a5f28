package handler

import (
	"points-commerce-engine/internal/adapter/http/dto"
	"points-commerce-engine/internal/adapter/http/middleware"
	"points-commerce-engine/internal/core/ports"
	"points-commerce-engine/pkg/apperror"
	"points-commerce-engine/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// SalesHandler handles point-of-sale endpoints.
type SalesHandler struct {
	salesSvc ports.SalesService
}

// NewSalesHandler creates a new SalesHandler.
func NewSalesHandler(salesSvc ports.SalesService) *SalesHandler {
	return &SalesHandler{salesSvc: salesSvc}
}

// Sell handles POST /api/v1/sales.
func (h *SalesHandler) Sell(c *gin.Context) {
	identity, ok := middleware.IdentityFrom(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	var req dto.SellRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	customerID, err := uuid.Parse(req.CustomerID)
	if err != nil {
		response.Error(c, apperror.Validation("invalid customer_id"))
		return
	}

	entry, err := h.salesSvc.Sell(c.Request.Context(), ports.SellRequest{
		SellerID:      identity.ActorID,
		CustomerID:    customerID,
		Amount:        req.Amount,
		CashReceived:  req.CashReceived,
		Note:          req.Note,
		CorrelationID: req.CorrelationID,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, dto.FromLedgerEntry(entry))
}
