package main

import (
	"database/sql"
	"net/http"
	"time"

	"phoneb/internal/httpapi"
	"phoneb/pkg/utils"

	"github.com/gin-gonic/gin"
)

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers should delegate to internal modules.
func registerRoutes(r *gin.Engine, h httpapi.Handlers, authMW gin.HandlerFunc, db *sql.DB) {
	// public
	r.GET("/healthz", func(c *gin.Context) {
		if err := utils.HealthCheck(c.Request.Context(), db, 2*time.Second); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Provider-facing endpoints (public).
	// NOTE: These should be protected by Twilio signature validation in production.
	r.POST("/webhooks/twilio", h.HandleWebhook)
	r.GET("/twiml/voice", h.ServeVoiceInstruction)
	r.POST("/twiml/voice", h.ServeVoiceInstruction)

	// session bootstrap
	authGroup := r.Group("/v1/auth")
	{
		authGroup.POST("/login", h.Login)
		authGroup.POST("/refresh", h.RefreshSession)
	}

	// protected API group
	v1 := r.Group("/v1")
	v1.Use(authMW)
	{
		v1.POST("/token", h.IssueSignalingToken)
		v1.POST("/calls", h.PlaceCall)
		v1.POST("/messages", h.SendMessage)

		accountsGroup := v1.Group("/accounts")
		{
			accountsGroup.GET("", h.ListAccounts)
			accountsGroup.POST("", h.CreateAccount)
			accountsGroup.PATCH("/:account_id", h.UpdateAccount)
			accountsGroup.DELETE("/:account_id", h.DeleteAccount)
			accountsGroup.POST("/:account_id/default", h.SetDefaultAccount)
		}

		historyGroup := v1.Group("/history")
		{
			historyGroup.GET("/calls", h.ListCallHistory)
			historyGroup.GET("/messages", h.ListMessageHistory)
		}

		v1.GET("/contacts", h.ListContacts)
	}
}
