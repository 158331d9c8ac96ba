package httpapi

import (
	"errors"
	"net/http"

	"voicebill/internal/calls"
	"voicebill/internal/ledger"
	"voicebill/internal/users"
	"voicebill/internal/wallet"
	"voicebill/pkg/logger"

	"github.com/gin-gonic/gin"
)

// Every response uses one envelope:
//
//	{"success": true,  "data": ...}
//	{"success": false, "error": {"code": ..., "message": ..., "details": ...}}
//
// Error codes are part of the API contract; clients switch on them.

func respondOK(c *gin.Context, status int, data any) {
	c.JSON(status, gin.H{"success": true, "data": data})
}

func respondError(c *gin.Context, status int, code, message string, details any) {
	body := gin.H{"code": code, "message": message}
	if details != nil {
		body["details"] = details
	}
	c.JSON(status, gin.H{"success": false, "error": body})
}

// respondDomainError translates service errors into the envelope. Unknown
// errors are logged and masked as INTERNAL_ERROR.
func respondDomainError(c *gin.Context, err error) {
	var insufficient *calls.InsufficientBalanceError
	switch {
	case errors.As(err, &insufficient):
		respondError(c, http.StatusPaymentRequired, "INSUFFICIENT_BALANCE", "Insufficient balance to start a call", gin.H{
			"required":  insufficient.Required,
			"available": insufficient.Available,
		})
	case errors.Is(err, calls.ErrSelfCall):
		respondError(c, http.StatusBadRequest, "SELF_CALL_NOT_ALLOWED", "You cannot call yourself", nil)
	case errors.Is(err, calls.ErrReceiverNotFound):
		respondError(c, http.StatusNotFound, "NOT_FOUND", "Receiver not found", nil)
	case errors.Is(err, calls.ErrAlreadyAnswered):
		respondError(c, http.StatusConflict, "CALL_ALREADY_ANSWERED_OR_ENDED", "Call has already been answered or ended", nil)
	case errors.Is(err, calls.ErrAlreadyEnded):
		respondError(c, http.StatusConflict, "CALL_ALREADY_ENDED", "Call has already ended", nil)
	case errors.Is(err, calls.ErrForbidden):
		respondError(c, http.StatusForbidden, "FORBIDDEN", "You are not a participant of this call", nil)
	case errors.Is(err, calls.ErrNotFound):
		respondError(c, http.StatusNotFound, "NOT_FOUND", "Call not found", nil)
	case errors.Is(err, ledger.ErrNotFound), errors.Is(err, users.ErrNotFound):
		respondError(c, http.StatusNotFound, "NOT_FOUND", "Resource not found", nil)
	case errors.Is(err, wallet.ErrInvalidAmount):
		respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Amount must be a positive decimal with at most 2 decimal places", nil)
	case errors.Is(err, users.ErrEmailTaken):
		respondError(c, http.StatusConflict, "VALIDATION_ERROR", "Email is already registered", nil)
	case errors.Is(err, users.ErrInvalidCredentials):
		respondError(c, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid email or password", nil)
	default:
		logger.FromGin(c).Error("unhandled domain error", "err", err)
		respondError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Something went wrong", nil)
	}
}
