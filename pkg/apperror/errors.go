package apperror

import (
	"fmt"
	"net/http"
)

// AppError is a structured error that maps to HTTP responses. Every
// failure in the error taxonomy is an expected outcome surfaced to the
// caller with enough detail to decide whether to retry, prompt the user,
// or abandon.
type AppError struct {
	Code       string `json:"error_code"`
	Message    string `json:"message"`
	HTTPStatus int    `json:"-"`
	Err        error  `json:"-"` // Wrapped internal error (not exposed to client)
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError.
func New(code string, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

// Wrap wraps an internal error with an AppError.
func Wrap(code string, message string, httpStatus int, err error) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Err:        err,
	}
}

// ---- Validation (VAL) ----

// Validation returns a VAL_001 error with a caller-supplied message.
func Validation(message string) *AppError {
	return New("VAL_001", message, http.StatusBadRequest)
}

func ErrInvalidAmount() *AppError {
	return New("VAL_001", "Amount must be a positive integer", http.StatusBadRequest)
}

// ---- Balance preconditions (BAL) ----

func ErrInsufficientBalance(available int64) *AppError {
	return New("BAL_001",
		fmt.Sprintf("Insufficient balance: you have %d points", available),
		http.StatusPaymentRequired)
}

func ErrInsufficientInventory(available int64) *AppError {
	return New("BAL_002",
		fmt.Sprintf("Insufficient inventory: you have %d points", available),
		http.StatusPaymentRequired)
}

// ---- Allocation hierarchy (HIER) ----

func ErrHierarchyViolation(from, to string) *AppError {
	return New("HIER_001",
		fmt.Sprintf("Role %s cannot allocate to role %s", from, to),
		http.StatusUnprocessableEntity)
}

// ---- State machine (STATE) ----

func ErrInvalidState(current string) *AppError {
	return New("STATE_001",
		fmt.Sprintf("Operation not permitted from state %s", current),
		http.StatusConflict)
}

// ---- Reconciliation pool (RECON) ----

func ErrAlreadyClaimed() *AppError {
	return New("RECON_001", "Submission has already been claimed by another clerk", http.StatusConflict)
}

func ErrNotClaimedByYou() *AppError {
	return New("RECON_002", "Submission is not claimed by you", http.StatusForbidden)
}

func ErrAlreadyConfirmed() *AppError {
	return New("RECON_003", "Submission has already been confirmed", http.StatusConflict)
}

// ---- Second factor (SEC) ----

func ErrInvalidSecondFactor() *AppError {
	return New("SEC_001", "Invalid transaction PIN", http.StatusForbidden)
}

// ---- Authentication & authority (AUTH) ----

func ErrInvalidToken() *AppError {
	return New("AUTH_001", "Invalid or expired token", http.StatusUnauthorized)
}

func ErrForbidden(message string) *AppError {
	return New("AUTH_002", message, http.StatusForbidden)
}

func ErrActorSuspended() *AppError {
	return New("AUTH_003", "Actor account is suspended", http.StatusForbidden)
}

func ErrInvalidEnvelope() *AppError {
	return New("AUTH_004", "Invalid or expired QR envelope", http.StatusUnauthorized)
}

func ErrEnvelopeReplayed() *AppError {
	return New("AUTH_005", "QR envelope has already been used", http.StatusForbidden)
}

// ---- Not found (NF) ----

func ErrNotFound(entity string) *AppError {
	return New("NF_001", fmt.Sprintf("%s not found", entity), http.StatusNotFound)
}

// ---- Rate limiting (RATE) ----

func ErrRateLimitExceeded() *AppError {
	return New("RATE_001", "Rate limit exceeded", http.StatusTooManyRequests)
}

// ---- System & infrastructure (SYS) ----

// InternalError wraps an unexpected failure as SYS_001.
func InternalError(err error) *AppError {
	return Wrap("SYS_001", "Internal server error", http.StatusInternalServerError, err)
}

// TransientError wraps a retryable failure (storage unavailable,
// serialization conflict) as SYS_002. Safe to retry with backoff.
func TransientError(err error) *AppError {
	return Wrap("SYS_002", "Temporary failure, please retry", http.StatusServiceUnavailable, err)
}

func ErrEncryptionFailure(err error) *AppError {
	return Wrap("SYS_003", "Encryption service failure", http.StatusInternalServerError, err)
}
