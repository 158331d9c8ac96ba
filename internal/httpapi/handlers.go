package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"voicebill/internal/auth"
	"voicebill/internal/calls"
	"voicebill/internal/users"
	"voicebill/internal/wallet"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// Handlers binds the domain services to HTTP. Each handler does three
// things only: decode, call the service, encode. Business rules live in
// the services.
type Handlers struct {
	Auth   *auth.Manager
	Users  *users.Service
	Wallet *wallet.Service
	Calls  *calls.Service
}

/* ===================== auth ===================== */

type registerRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
	FullName string `json:"full_name" binding:"required"`
}

func (h *Handlers) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "email, password (min 8 chars) and full_name are required", nil)
		return
	}

	u, err := h.Users.Register(c.Request.Context(), req.Email, req.Password, req.FullName)
	if err != nil {
		respondDomainError(c, err)
		return
	}

	pair, err := h.Auth.IssuePair(time.Now(), u.ID, u.Email)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	respondOK(c, http.StatusCreated, gin.H{
		"user":          u,
		"access_token":  pair.AccessToken,
		"refresh_token": pair.RefreshToken,
	})
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

func (h *Handlers) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "email and password are required", nil)
		return
	}

	u, err := h.Users.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		respondDomainError(c, err)
		return
	}

	pair, err := h.Auth.IssuePair(time.Now(), u.ID, u.Email)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	respondOK(c, http.StatusOK, gin.H{
		"user":          u,
		"access_token":  pair.AccessToken,
		"refresh_token": pair.RefreshToken,
	})
}

/* ===================== wallet ===================== */

func (h *Handlers) GetWallet(c *gin.Context) {
	w, err := h.Wallet.GetWallet(c.Request.Context(), c.GetString("user_id"))
	if err != nil {
		respondDomainError(c, err)
		return
	}
	respondOK(c, http.StatusOK, gin.H{"wallet": w})
}

type fundRequest struct {
	Amount decimal.Decimal `json:"amount" binding:"required"`
}

func (h *Handlers) FundWallet(c *gin.Context) {
	var req fundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "amount is required", nil)
		return
	}

	intent, err := h.Wallet.Fund(c.Request.Context(), c.GetString("user_id"), req.Amount)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	respondOK(c, http.StatusCreated, intent)
}

type webhookRequest struct {
	Reference string `json:"reference" binding:"required"`
	Status    string `json:"status" binding:"required"`
}

// FundingWebhook is the payment provider's confirmation channel. It is
// unauthenticated and delivered at-least-once, so the response is 200 for
// duplicates and unknown references alike; distinguishing them would let
// an outsider probe which references exist.
func (h *Handlers) FundingWebhook(c *gin.Context) {
	var req webhookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "reference and status are required", nil)
		return
	}

	outcome, err := h.Wallet.ConfirmFunding(c.Request.Context(), req.Reference, req.Status)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	respondOK(c, http.StatusOK, gin.H{"status": string(outcome)})
}

func (h *Handlers) GetTransactions(c *gin.Context) {
	page := queryInt(c, "page", 1)
	limit := queryInt(c, "limit", 20)
	typeFilter := c.Query("type")

	items, total, err := h.Wallet.Transactions(c.Request.Context(), c.GetString("user_id"), page, limit, typeFilter)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	respondOK(c, http.StatusOK, gin.H{
		"transactions": items,
		"pagination":   paginationMeta(page, limit, total),
	})
}

/* ===================== calls ===================== */

type initiateCallRequest struct {
	ReceiverID string `json:"receiver_id" binding:"required"`
}

func (h *Handlers) InitiateCall(c *gin.Context) {
	var req initiateCallRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "receiver_id is required", nil)
		return
	}

	call, balance, err := h.Calls.Initiate(c.Request.Context(), c.GetString("user_id"), req.ReceiverID)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	respondOK(c, http.StatusCreated, gin.H{"call": call, "balance": balance})
}

func (h *Handlers) AnswerCall(c *gin.Context) {
	call, err := h.Calls.Answer(c.Request.Context(), c.GetString("user_id"), c.Param("call_id"))
	if err != nil {
		respondDomainError(c, err)
		return
	}
	respondOK(c, http.StatusOK, gin.H{"call": call})
}

type endCallRequest struct {
	Reason string `json:"reason" binding:"required"`
}

func (h *Handlers) EndCall(c *gin.Context) {
	var req endCallRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "reason is required", nil)
		return
	}

	call, err := h.Calls.End(c.Request.Context(), c.GetString("user_id"), c.Param("call_id"), req.Reason)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	respondOK(c, http.StatusOK, gin.H{"call": call})
}

func (h *Handlers) GetCallHistory(c *gin.Context) {
	page := queryInt(c, "page", 1)
	limit := queryInt(c, "limit", 20)
	role := calls.Role(c.DefaultQuery("role", string(calls.RoleAll)))

	items, total, err := h.Calls.History(c.Request.Context(), c.GetString("user_id"), role, page, limit)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	respondOK(c, http.StatusOK, gin.H{
		"calls":      items,
		"pagination": paginationMeta(page, limit, total),
	})
}

func (h *Handlers) GetCallDetails(c *gin.Context) {
	call, err := h.Calls.Details(c.Request.Context(), c.GetString("user_id"), c.Param("call_id"))
	if err != nil {
		respondDomainError(c, err)
		return
	}
	respondOK(c, http.StatusOK, gin.H{"call": call})
}

/* ===================== helpers ===================== */

func queryInt(c *gin.Context, key string, def int) int {
	v := c.Query(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func paginationMeta(page, limit, total int) gin.H {
	page, limit = wallet.NormalizePage(page, limit)
	return gin.H{"page": page, "limit": limit, "total": total}
}
