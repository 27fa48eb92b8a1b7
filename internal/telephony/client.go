package telephony

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Credentials authenticate a single request against the provider REST API.
// They come out of credential resolution per request; the client itself is
// account-agnostic and safe to share.
type Credentials struct {
	AccountSID string
	AuthToken  string
}

// API is the provider surface the rest of the system depends on.
// No provider SDK calls outside this package.
type API interface {
	CreateCall(ctx context.Context, creds Credentials, from, to, instructionURL string) (CallResult, error)
	SendMessage(ctx context.Context, creds Credentials, from, to, body string) (MessageResult, error)
	CreateApplication(ctx context.Context, creds Credentials, friendlyName, voiceURL string) (string, error)
}

type CallResult struct {
	SID    string `json:"sid"`
	Status string `json:"status"`
}

// NumberCapabilities reports which channels a phone number supports.
type NumberCapabilities struct {
	Voice bool `json:"voice"`
	SMS   bool `json:"SMS"`
	MMS   bool `json:"MMS"`
}

// AvailableNumber is a provider listing entry for a purchasable number.
type AvailableNumber struct {
	PhoneNumber  string             `json:"phone_number"`
	FriendlyName string             `json:"friendly_name"`
	Locality     string             `json:"locality"`
	Region       string             `json:"region"`
	ISOCountry   string             `json:"iso_country"`
	Capabilities NumberCapabilities `json:"capabilities"`
}

// OwnedNumber is a number already provisioned on the account.
type OwnedNumber struct {
	SID          string             `json:"sid"`
	PhoneNumber  string             `json:"phone_number"`
	FriendlyName string             `json:"friendly_name"`
	DateCreated  string             `json:"date_created"`
	Capabilities NumberCapabilities `json:"capabilities"`
}

// PurchasedNumber confirms a completed number purchase.
type PurchasedNumber struct {
	SID         string `json:"sid"`
	PhoneNumber string `json:"phone_number"`
}

type MessageResult struct {
	SID    string `json:"sid"`
	Status string `json:"status"`
}

// ErrInvalidCredentials means the provider rejected the account SID / auth
// token pair. Distinct from setup errors: the account exists and is complete,
// its contents are just wrong.
var ErrInvalidCredentials = errors.New("telephony: provider rejected credentials")

// APIError carries the provider's error detail for non-auth failures.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("telephony: provider error (%d): %s", e.StatusCode, e.Message)
}

// Client talks to the Twilio REST API (form-encoded, basic auth).
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient() *Client {
	return &Client{
		baseURL:    "https://api.twilio.com/2010-04-01",
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// NewClientWithBaseURL is for tests pointing at a local httptest server.
func NewClientWithBaseURL(baseURL string) *Client {
	c := NewClient()
	c.baseURL = strings.TrimRight(baseURL, "/")
	return c
}

// CreateCall originates an outbound call. The provider fetches next-step
// instructions from instructionURL once the call connects.
func (c *Client) CreateCall(ctx context.Context, creds Credentials, from, to, instructionURL string) (CallResult, error) {
	form := url.Values{}
	form.Set("From", from)
	form.Set("To", to)
	form.Set("Url", instructionURL)
	form.Set("Method", "POST")

	var out CallResult
	endpoint := fmt.Sprintf("%s/Accounts/%s/Calls.json", c.baseURL, creds.AccountSID)
	if err := c.post(ctx, creds, endpoint, form, &out); err != nil {
		return CallResult{}, err
	}
	return out, nil
}

func (c *Client) SendMessage(ctx context.Context, creds Credentials, from, to, body string) (MessageResult, error) {
	form := url.Values{}
	form.Set("From", from)
	form.Set("To", to)
	form.Set("Body", body)

	var out MessageResult
	endpoint := fmt.Sprintf("%s/Accounts/%s/Messages.json", c.baseURL, creds.AccountSID)
	if err := c.post(ctx, creds, endpoint, form, &out); err != nil {
		return MessageResult{}, err
	}
	return out, nil
}

// CreateApplication registers a TwiML application whose voice callback points
// at this deployment. Used by resolution-time auto-provisioning.
func (c *Client) CreateApplication(ctx context.Context, creds Credentials, friendlyName, voiceURL string) (string, error) {
	form := url.Values{}
	form.Set("FriendlyName", friendlyName)
	form.Set("VoiceUrl", voiceURL)
	form.Set("VoiceMethod", "POST")

	var out struct {
		SID string `json:"sid"`
	}
	endpoint := fmt.Sprintf("%s/Accounts/%s/Applications.json", c.baseURL, creds.AccountSID)
	if err := c.post(ctx, creds, endpoint, form, &out); err != nil {
		return "", err
	}
	return out.SID, nil
}

// SearchAvailableNumbers lists local numbers purchasable in countryCode.
// Number management has no service of its own; account-setup flows call the
// client directly.
func (c *Client) SearchAvailableNumbers(ctx context.Context, creds Credentials, countryCode string) ([]AvailableNumber, error) {
	if countryCode == "" {
		countryCode = "US"
	}
	var out struct {
		AvailablePhoneNumbers []AvailableNumber `json:"available_phone_numbers"`
	}
	endpoint := fmt.Sprintf("%s/Accounts/%s/AvailablePhoneNumbers/%s/Local.json?PageSize=20",
		c.baseURL, creds.AccountSID, url.PathEscape(countryCode))
	if err := c.get(ctx, creds, endpoint, &out); err != nil {
		return nil, err
	}
	return out.AvailablePhoneNumbers, nil
}

// ListOwnedNumbers lists the numbers already purchased on the account.
func (c *Client) ListOwnedNumbers(ctx context.Context, creds Credentials) ([]OwnedNumber, error) {
	var out struct {
		IncomingPhoneNumbers []OwnedNumber `json:"incoming_phone_numbers"`
	}
	endpoint := fmt.Sprintf("%s/Accounts/%s/IncomingPhoneNumbers.json?PageSize=50", c.baseURL, creds.AccountSID)
	if err := c.get(ctx, creds, endpoint, &out); err != nil {
		return nil, err
	}
	return out.IncomingPhoneNumbers, nil
}

// PurchaseNumber buys phoneNumber on the account. With an application SID the
// number routes voice and SMS through the application; without one both
// callbacks point straight at webhookURL.
func (c *Client) PurchaseNumber(ctx context.Context, creds Credentials, phoneNumber, appSID, webhookURL string) (PurchasedNumber, error) {
	form := url.Values{}
	form.Set("PhoneNumber", phoneNumber)
	if appSID != "" {
		form.Set("VoiceApplicationSid", appSID)
		form.Set("SmsApplicationSid", appSID)
	} else {
		form.Set("VoiceUrl", webhookURL)
		form.Set("SmsUrl", webhookURL)
	}

	var out PurchasedNumber
	endpoint := fmt.Sprintf("%s/Accounts/%s/IncomingPhoneNumbers.json", c.baseURL, creds.AccountSID)
	if err := c.post(ctx, creds, endpoint, form, &out); err != nil {
		return PurchasedNumber{}, err
	}
	return out, nil
}

func (c *Client) post(ctx context.Context, creds Credentials, endpoint string, form url.Values, out any) error {
	if creds.AccountSID == "" || creds.AuthToken == "" {
		return ErrInvalidCredentials
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(creds.AccountSID, creds.AuthToken)
	return c.do(req, out)
}

func (c *Client) get(ctx context.Context, creds Credentials, endpoint string, out any) error {
	if creds.AccountSID == "" || creds.AuthToken == "" {
		return ErrInvalidCredentials
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.SetBasicAuth(creds.AccountSID, creds.AuthToken)
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return ErrInvalidCredentials
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		msg := parseAPIErrorMessage(body)
		return &APIError{StatusCode: resp.StatusCode, Message: msg}
	}

	return json.NewDecoder(resp.Body).Decode(out)
}

func parseAPIErrorMessage(body []byte) string {
	var e struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &e); err == nil && e.Message != "" {
		return e.Message
	}
	return strings.TrimSpace(string(body))
}
