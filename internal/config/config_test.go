package config

import (
	"strings"
	"testing"
	"time"
)

func validConfig() Config {
	return Config{
		App:   AppConfig{Env: "local", Port: 8080},
		DB:    DBConfig{Host: "localhost", Port: 5432, User: "u", Name: "phoneb", SSLMode: "disable"},
		Redis: RedisConfig{Host: "localhost", Port: 6379},
		Auth: AuthConfig{
			JWTSecret:       "secret",
			AccessTokenTTL:  15 * time.Minute,
			RefreshTokenTTL: 24 * time.Hour,
		},
		Public: PublicConfig{BaseURL: "https://phone.example.com"},
	}
}

func TestValidateOK(t *testing.T) {
	c := validConfig()
	if err := c.Validate(); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}
}

func TestValidateRequiresBaseURL(t *testing.T) {
	c := validConfig()
	c.Public.BaseURL = ""
	err := c.Validate()
	if err == nil || !strings.Contains(err.Error(), "PUBLIC_BASE_URL") {
		t.Fatalf("expected PUBLIC_BASE_URL error, got %v", err)
	}
}

func TestValidateOverrideAccountAllOrNothing(t *testing.T) {
	c := validConfig()
	c.Twilio.AccountSID = "AC123"
	err := c.Validate()
	if err == nil || !strings.Contains(err.Error(), "TWILIO_ACCOUNT_SID") {
		t.Fatalf("expected paired credential error, got %v", err)
	}

	c.Twilio.AuthToken = "token"
	if err := c.Validate(); err != nil {
		t.Fatalf("expected valid config with paired creds, got %v", err)
	}
}

func TestWebhookAndInstructionURLs(t *testing.T) {
	c := validConfig()
	if got := c.WebhookURL(); got != "https://phone.example.com/webhooks/twilio" {
		t.Fatalf("unexpected webhook url: %s", got)
	}
	if got := c.VoiceInstructionURL(); got != "https://phone.example.com/twiml/voice" {
		t.Fatalf("unexpected instruction url: %s", got)
	}
}
