package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"phoneb/internal/accounts"
	"phoneb/internal/auth"
	"phoneb/internal/calls"
	"phoneb/internal/contacts"
	"phoneb/internal/credentials"
	"phoneb/internal/history"
	"phoneb/internal/messages"
	"phoneb/internal/telephony"
	"phoneb/internal/token"
	"phoneb/internal/webhooks"
	"phoneb/pkg/logger"

	"github.com/gin-gonic/gin"
)

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: parse/validate input, call internal services, return JSON.

type Handlers struct {
	Auth     *auth.Manager
	Accounts *accounts.Service
	Contacts contacts.Repository
	Tokens   *token.Service
	Calls    *calls.Service
	Messages *messages.Service
	History  *history.Service
	Ingestor *webhooks.Ingestor
}

// --- Auth ---

type loginRequest struct {
	UserID string `json:"user_id"`
}

// Login issues a JWT token pair.
//
// NOTE: This is a skeleton-only endpoint. Real systems must validate credentials.
func (h Handlers) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if req.UserID == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "user_id required"})
		return
	}
	pair, err := h.Auth.IssuePair(time.Now(), req.UserID)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "token issuance failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"access_token": pair.AccessToken, "refresh_token": pair.RefreshToken})
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

func (h Handlers) RefreshSession(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.RefreshToken == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "refresh_token required"})
		return
	}
	pair, err := h.Auth.Refresh(req.RefreshToken, time.Now())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid refresh token"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"access_token": pair.AccessToken, "refresh_token": pair.RefreshToken})
}

// --- Signaling token ---

type signalingTokenRequest struct {
	AccountID string `json:"account_id"`
}

func (h Handlers) IssueSignalingToken(c *gin.Context) {
	userID, err := auth.UserID(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}
	var req signalingTokenRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
			return
		}
	}

	grant, err := h.Tokens.Issue(c.Request.Context(), userID, req.AccountID)
	if err != nil {
		h.writeTelephonyError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"token":       grant.Token,
		"identity":    grant.Identity,
		"ttl_seconds": grant.TTLSeconds,
	})
}

// --- Calls and messages ---

type placeCallRequest struct {
	To        string `json:"to"`
	AccountID string `json:"account_id"`
}

func (h Handlers) PlaceCall(c *gin.Context) {
	userID, err := auth.UserID(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}
	var req placeCallRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.To == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"success": false, "error": "to required"})
		return
	}

	callSID, err := h.Calls.PlaceCall(c.Request.Context(), userID, req.To, req.AccountID)
	if err != nil {
		h.writeTelephonyError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "provider_call_id": callSID})
}

type sendMessageRequest struct {
	To        string `json:"to"`
	Message   string `json:"message"`
	AccountID string `json:"account_id"`
}

func (h Handlers) SendMessage(c *gin.Context) {
	userID, err := auth.UserID(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}
	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.To == "" || req.Message == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"success": false, "error": "to and message required"})
		return
	}

	messageSID, err := h.Messages.Send(c.Request.Context(), userID, req.To, req.Message, req.AccountID)
	if err != nil {
		h.writeTelephonyError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "provider_message_id": messageSID})
}

// writeTelephonyError maps resolution and provider failures onto the wire
// contract. Setup problems carry needs_setup so the client routes the user
// to account configuration instead of retrying.
func (h Handlers) writeTelephonyError(c *gin.Context, err error) {
	if se, ok := credentials.AsSetupError(err); ok {
		status := http.StatusBadRequest
		if se.Kind == credentials.KindAccountNotFound {
			status = http.StatusNotFound
		}
		c.AbortWithStatusJSON(status, gin.H{
			"success":     false,
			"error":       string(se.Kind),
			"details":     se.Error(),
			"needs_setup": se.NeedsSetup(),
		})
		return
	}
	switch {
	case errors.Is(err, calls.ErrNoFromNumber) || errors.Is(err, messages.ErrNoFromNumber):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
			"success":     false,
			"error":       "no_from_number",
			"details":     "no originating number configured on the resolved account",
			"needs_setup": true,
		})
	case errors.Is(err, calls.ErrTooManyConcurrentCalls):
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"success": false, "error": "too_many_concurrent_calls"})
	case errors.Is(err, telephony.ErrInvalidCredentials):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
			"success":     false,
			"error":       "invalid_credentials",
			"details":     "the provider rejected the stored credentials",
			"needs_setup": true,
		})
	default:
		logger.From(c.Request.Context()).Error("telephony request failed", "err", err)
		c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{"success": false, "error": "provider request failed"})
	}
}

// --- Accounts ---

func (h Handlers) ListAccounts(c *gin.Context) {
	userID, err := auth.UserID(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}
	list, err := h.Accounts.List(c.Request.Context(), userID)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "account listing failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"accounts": list})
}

func (h Handlers) CreateAccount(c *gin.Context) {
	userID, err := auth.UserID(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}
	var req accounts.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	a, err := h.Accounts.Create(c.Request.Context(), userID, req)
	if err != nil {
		h.writeAccountError(c, err)
		return
	}
	c.JSON(http.StatusCreated, a)
}

func (h Handlers) UpdateAccount(c *gin.Context) {
	userID, err := auth.UserID(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}
	var req accounts.UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	a, err := h.Accounts.Update(c.Request.Context(), userID, c.Param("account_id"), req)
	if err != nil {
		h.writeAccountError(c, err)
		return
	}
	c.JSON(http.StatusOK, a)
}

func (h Handlers) DeleteAccount(c *gin.Context) {
	userID, err := auth.UserID(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}
	if err := h.Accounts.Delete(c.Request.Context(), userID, c.Param("account_id")); err != nil {
		h.writeAccountError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h Handlers) SetDefaultAccount(c *gin.Context) {
	userID, err := auth.UserID(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}
	if err := h.Accounts.SetDefault(c.Request.Context(), userID, c.Param("account_id")); err != nil {
		h.writeAccountError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h Handlers) writeAccountError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, accounts.ErrNotFound):
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "account not found"})
	case errors.Is(err, accounts.ErrInvalidArgument):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid account fields"})
	default:
		logger.From(c.Request.Context()).Error("account operation failed", "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "account operation failed"})
	}
}

// --- History and contacts ---

func (h Handlers) ListCallHistory(c *gin.Context) {
	userID, err := auth.UserID(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}
	entries, err := h.History.ListCalls(c.Request.Context(), userID, queryLimit(c))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "history lookup failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"calls": entries})
}

func (h Handlers) ListMessageHistory(c *gin.Context) {
	userID, err := auth.UserID(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}
	entries, err := h.History.ListMessages(c.Request.Context(), userID, queryLimit(c))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "history lookup failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": entries})
}

func (h Handlers) ListContacts(c *gin.Context) {
	userID, err := auth.UserID(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}
	list, err := h.Contacts.ListByUser(c.Request.Context(), userID)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "contact lookup failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"contacts": list})
}

func queryLimit(c *gin.Context) int {
	n, err := strconv.Atoi(c.Query("limit"))
	if err != nil {
		return 0
	}
	return n
}

// --- Provider-facing endpoints ---

// HandleWebhook ingests a provider event. It always answers 200 with TwiML;
// a failure status would make the provider retry and duplicate history.
func (h Handlers) HandleWebhook(c *gin.Context) {
	event, err := telephony.ParseInboundEvent(c.Request)
	if err != nil {
		logger.From(c.Request.Context()).Warn("unparseable webhook payload", "err", err)
	}
	doc := h.Ingestor.Ingest(c.Request.Context(), event)
	c.Data(http.StatusOK, "application/xml", []byte(doc))
}

// ServeVoiceInstruction is fetched by the provider when a bridged call needs
// next-step instructions.
func (h Handlers) ServeVoiceInstruction(c *gin.Context) {
	doc, err := telephony.VoiceInstruction()
	if err != nil {
		c.AbortWithStatus(http.StatusInternalServerError)
		return
	}
	c.Data(http.StatusOK, "application/xml", []byte(doc))
}
