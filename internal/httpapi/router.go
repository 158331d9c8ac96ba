package httpapi

import (
	"net/http"
	"time"

	"voicebill/internal/auth"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// RegisterRoutes wires all endpoints onto the engine. rdb may be nil; the
// rate limiter then falls back to per-process buckets.
func (h *Handlers) RegisterRoutes(r *gin.Engine, rdb *redis.Client) {
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api")

	// Public endpoints carry their own throttles.
	api.POST("/auth/register", RateLimit(rdb, "register", 10, time.Minute), h.Register)
	api.POST("/auth/login", RateLimit(rdb, "login", 20, time.Minute), h.Login)
	api.POST("/wallet/webhook", RateLimit(rdb, "webhook", 120, time.Minute), h.FundingWebhook)

	authed := api.Group("")
	authed.Use(auth.RequireAccessToken(h.Auth))

	authed.GET("/wallet", h.GetWallet)
	authed.POST("/wallet/fund", h.FundWallet)
	authed.GET("/wallet/transactions", h.GetTransactions)

	authed.POST("/calls/initiate", h.InitiateCall)
	authed.PATCH("/calls/:call_id/answer", h.AnswerCall)
	authed.PATCH("/calls/:call_id/end", h.EndCall)
	authed.GET("/calls/history", h.GetCallHistory)
	authed.GET("/calls/:call_id", h.GetCallDetails)
}
