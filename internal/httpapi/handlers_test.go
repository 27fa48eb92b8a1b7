package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"phoneb/internal/accounts"
	"phoneb/internal/auth"
	"phoneb/internal/calls"
	"phoneb/internal/config"
	"phoneb/internal/contacts"
	"phoneb/internal/credentials"
	"phoneb/internal/history"
	"phoneb/internal/messages"
	"phoneb/internal/telephony"
	"phoneb/internal/token"
	"phoneb/internal/webhooks"

	"github.com/gin-gonic/gin"
)

type stubProvider struct {
	callSID string
	appSID  string
}

func (s *stubProvider) CreateCall(ctx context.Context, creds telephony.Credentials, from, to, url string) (telephony.CallResult, error) {
	return telephony.CallResult{SID: s.callSID, Status: "queued"}, nil
}

func (s *stubProvider) SendMessage(ctx context.Context, creds telephony.Credentials, from, to, body string) (telephony.MessageResult, error) {
	return telephony.MessageResult{SID: "SM-1", Status: "queued"}, nil
}

func (s *stubProvider) CreateApplication(ctx context.Context, creds telephony.Credentials, name, voiceURL string) (string, error) {
	if s.appSID == "" {
		return "", errors.New("provisioning disabled")
	}
	return s.appSID, nil
}

type testAPI struct {
	router   *gin.Engine
	manager  *auth.Manager
	accounts *accounts.MemoryRepo
	history  *history.MemoryRepo
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	gin.SetMode(gin.TestMode)

	manager, err := auth.NewManager(config.AuthConfig{
		JWTSecret:       "test-secret",
		AccessTokenTTL:  time.Hour,
		RefreshTokenTTL: 24 * time.Hour,
	})
	if err != nil {
		t.Fatalf("auth manager: %v", err)
	}

	accountRepo := accounts.NewMemoryRepo()
	profileRepo := accounts.NewMemoryProfileRepo()
	contactRepo := contacts.NewMemoryRepo()
	historyRepo := history.NewMemoryRepo()
	historySvc := history.NewService(historyRepo)
	provider := &stubProvider{callSID: "CA-1", appSID: "AP-auto"}
	resolver := credentials.NewResolver(accountRepo, profileRepo, config.TwilioConfig{}, provider,
		"https://phone.example.com/webhooks/twilio", nil)

	h := Handlers{
		Auth:     manager,
		Accounts: accounts.NewService(accountRepo),
		Contacts: contactRepo,
		Tokens:   token.NewService(resolver, nil),
		Calls: calls.NewService(resolver, provider, contactRepo, historySvc, nil,
			"https://phone.example.com/twiml/voice", nil),
		Messages: messages.NewService(resolver, provider, contactRepo, historySvc, nil),
		History:  historySvc,
		Ingestor: webhooks.NewIngestor(resolver, contactRepo, historySvc, nil),
	}

	r := gin.New()
	r.POST("/v1/auth/login", h.Login)
	r.POST("/v1/auth/refresh", h.RefreshSession)

	v1 := r.Group("/v1")
	v1.Use(auth.RequireAccessToken(manager))
	v1.POST("/token", h.IssueSignalingToken)
	v1.POST("/calls", h.PlaceCall)
	v1.POST("/messages", h.SendMessage)
	v1.GET("/accounts", h.ListAccounts)
	v1.POST("/accounts", h.CreateAccount)
	v1.GET("/history/calls", h.ListCallHistory)

	r.POST("/webhooks/twilio", h.HandleWebhook)
	r.GET("/twiml/voice", h.ServeVoiceInstruction)

	return &testAPI{router: r, manager: manager, accounts: accountRepo, history: historyRepo}
}

func (a *testAPI) bearer(t *testing.T, userID string) string {
	t.Helper()
	pair, err := a.manager.IssuePair(time.Now(), userID)
	if err != nil {
		t.Fatalf("issue pair: %v", err)
	}
	return "Bearer " + pair.AccessToken
}

func (a *testAPI) do(t *testing.T, method, path, authz, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	if authz != "" {
		req.Header.Set("Authorization", authz)
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func TestProtectedRoutesRequireBearer(t *testing.T) {
	api := newTestAPI(t)
	w := api.do(t, http.MethodPost, "/v1/token", "", `{}`)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", w.Code)
	}
}

func TestSignalingTokenWithoutCredentialsNeedsSetup(t *testing.T) {
	api := newTestAPI(t)
	w := api.do(t, http.MethodPost, "/v1/token", api.bearer(t, "u1"), `{}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", w.Code, w.Body.String())
	}
	var resp struct {
		Error      string `json:"error"`
		NeedsSetup bool   `json:"needs_setup"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Error != string(credentials.KindNoCredentials) || !resp.NeedsSetup {
		t.Fatalf("expected needs_setup no_credentials, got %+v", resp)
	}
}

func TestSignalingTokenAfterAccountSetup(t *testing.T) {
	api := newTestAPI(t)
	authz := api.bearer(t, "u1")

	w := api.do(t, http.MethodPost, "/v1/accounts", authz,
		`{"account_name":"main","account_sid":"ACA","auth_token":"t","phone_number":"+15550100001"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("create account: %d: %s", w.Code, w.Body.String())
	}

	w = api.do(t, http.MethodPost, "/v1/token", authz, `{}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp struct {
		Token      string `json:"token"`
		Identity   string `json:"identity"`
		TTLSeconds int    `json:"ttl_seconds"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Token == "" || resp.Identity != "u1" || resp.TTLSeconds != 3600 {
		t.Fatalf("unexpected grant: %+v", resp)
	}
}

func TestPlaceCallEndpoint(t *testing.T) {
	api := newTestAPI(t)
	authz := api.bearer(t, "u1")

	w := api.do(t, http.MethodPost, "/v1/accounts", authz,
		`{"account_name":"main","account_sid":"ACA","auth_token":"t","app_sid":"AP1","phone_number":"+15550100001"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("create account: %d", w.Code)
	}

	w = api.do(t, http.MethodPost, "/v1/calls", authz, `{"to":"+15550100199"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("place call: %d: %s", w.Code, w.Body.String())
	}
	var resp struct {
		Success        bool   `json:"success"`
		ProviderCallID string `json:"provider_call_id"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Success || resp.ProviderCallID != "CA-1" {
		t.Fatalf("unexpected response: %+v", resp)
	}

	w = api.do(t, http.MethodGet, "/v1/history/calls", authz, "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "CA-1") {
		t.Fatalf("history should list the call: %d %s", w.Code, w.Body.String())
	}
}

func TestWebhookAlwaysAcksWithXML(t *testing.T) {
	api := newTestAPI(t)

	form := "CallSid=CA-in&AccountSid=ACX&From=%2B15550107777&CallStatus=completed"
	req := httptest.NewRequest(http.MethodPost, "/webhooks/twilio", strings.NewReader(form))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	api.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("webhook must 200, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); !strings.Contains(ct, "xml") {
		t.Fatalf("expected xml ack, got %s", ct)
	}
	if !strings.Contains(w.Body.String(), "<Response") {
		t.Fatalf("expected twiml body, got %q", w.Body.String())
	}
}

func TestVoiceInstructionDocument(t *testing.T) {
	api := newTestAPI(t)
	w := api.do(t, http.MethodGet, "/twiml/voice", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "Hello! This is a call from your PhoneB application.") {
		t.Fatalf("unexpected instruction document: %q", w.Body.String())
	}
}

func TestRefreshSessionIssuesNewPair(t *testing.T) {
	api := newTestAPI(t)
	pair, err := api.manager.IssuePair(time.Now(), "u1")
	if err != nil {
		t.Fatalf("issue pair: %v", err)
	}

	w := api.do(t, http.MethodPost, "/v1/auth/refresh", "", `{"refresh_token":"`+pair.RefreshToken+`"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("refresh: %d: %s", w.Code, w.Body.String())
	}

	w = api.do(t, http.MethodPost, "/v1/auth/refresh", "", `{"refresh_token":"`+pair.AccessToken+`"}`)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("access token must not refresh, got %d", w.Code)
	}
}
