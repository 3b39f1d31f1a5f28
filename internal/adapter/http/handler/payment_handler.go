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

// PaymentHandler handles merchant payment endpoints.
type PaymentHandler struct {
	paymentSvc ports.PaymentService
}

// NewPaymentHandler creates a new PaymentHandler.
func NewPaymentHandler(paymentSvc ports.PaymentService) *PaymentHandler {
	return &PaymentHandler{paymentSvc: paymentSvc}
}

// Initiate handles POST /api/v1/payments.
func (h *PaymentHandler) Initiate(c *gin.Context) {
	identity, ok := merchantOperator(c)
	if !ok {
		return
	}

	var req dto.InitiatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	if (req.CustomerID == nil) == (req.CardID == nil) {
		response.Error(c, apperror.Validation("exactly one of customer_id and card_id must be set"))
		return
	}

	svcReq := ports.InitiatePaymentRequest{
		MerchantID:    *identity.MerchantID,
		Amount:        req.Amount,
		CorrelationID: req.CorrelationID,
	}
	if req.CustomerID != nil {
		id, err := uuid.Parse(*req.CustomerID)
		if err != nil {
			response.Error(c, apperror.Validation("invalid customer_id"))
			return
		}
		svcReq.CustomerID = &id
	}
	if req.CardID != nil {
		id, err := uuid.Parse(*req.CardID)
		if err != nil {
			response.Error(c, apperror.Validation("invalid card_id"))
			return
		}
		svcReq.CardID = &id
	}

	txn, err := h.paymentSvc.Initiate(c.Request.Context(), svcReq)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, dto.FromTransaction(txn))
}

// Confirm handles POST /api/v1/payments/:id/confirm.
func (h *PaymentHandler) Confirm(c *gin.Context) {
	identity, ok := merchantOperator(c)
	if !ok {
		return
	}

	txID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperror.Validation("invalid transaction id"))
		return
	}

	txn, err := h.paymentSvc.Confirm(c.Request.Context(), ports.ConfirmPaymentRequest{
		TransactionID: txID,
		MerchantID:    *identity.MerchantID,
		ConfirmedBy:   identity.ActorID,
		OperatorRole:  operatorRole(identity),
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.FromTransaction(txn))
}

// Cancel handles POST /api/v1/payments/:id/cancel.
func (h *PaymentHandler) Cancel(c *gin.Context) {
	identity, ok := merchantOperator(c)
	if !ok {
		return
	}

	txID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperror.Validation("invalid transaction id"))
		return
	}

	var req dto.CancelPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	txn, err := h.paymentSvc.Cancel(c.Request.Context(), ports.CancelPaymentRequest{
		TransactionID: txID,
		MerchantID:    *identity.MerchantID,
		Reason:        req.Reason,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.FromTransaction(txn))
}

// Refund handles POST /api/v1/payments/:id/refund.
func (h *PaymentHandler) Refund(c *gin.Context) {
	identity, ok := merchantOperator(c)
	if !ok {
		return
	}

	txID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperror.Validation("invalid transaction id"))
		return
	}

	var req dto.RefundPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	txn, err := h.paymentSvc.Refund(c.Request.Context(), ports.RefundPaymentRequest{
		TransactionID: txID,
		MerchantID:    *identity.MerchantID,
		Reason:        req.Reason,
		AuthorizedBy:  identity.ActorID,
		OperatorRole:  operatorRole(identity),
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.FromTransaction(txn))
}

// GetTransaction handles GET /api/v1/payments/:id.
func (h *PaymentHandler) GetTransaction(c *gin.Context) {
	txID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperror.Validation("invalid transaction id"))
		return
	}

	txn, err := h.paymentSvc.GetTransaction(c.Request.Context(), txID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.FromTransaction(txn))
}

// merchantOperator resolves the caller as a merchant operator with a
// bound merchant id, writing the error response itself on failure.
func merchantOperator(c *gin.Context) (domain.Identity, bool) {
	identity, ok := middleware.IdentityFrom(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return domain.Identity{}, false
	}
	if operatorRole(identity) == "" {
		response.Error(c, apperror.ErrForbidden("requires a merchant operator role"))
		return domain.Identity{}, false
	}
	if identity.MerchantID == nil {
		response.Error(c, apperror.ErrForbidden("identity has no merchant binding"))
		return domain.Identity{}, false
	}
	return identity, true
}

// operatorRole returns the caller's strongest merchant role, preferring
// owner over assistant.
func operatorRole(identity domain.Identity) domain.Role {
	switch {
	case identity.HasRole(domain.RoleMerchantOwner):
		return domain.RoleMerchantOwner
	case identity.HasRole(domain.RoleMerchantAssistant):
		return domain.RoleMerchantAssistant
	}
	return ""
}
