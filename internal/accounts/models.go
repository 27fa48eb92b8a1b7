package accounts

import (
	"errors"
	"time"
)

// Account is a stored provider credential set a user can call and message
// through.
//
// Invariants (enforced by the Service write path, not by storage):
// - At most one account per user has IsDefault = true.
// - If a user has at least one account, exactly one is default.
type Account struct {
	ID     string `json:"id" db:"id"`
	UserID string `json:"user_id" db:"user_id"`

	Name       string `json:"account_name" db:"account_name"`
	AccountSID string `json:"account_sid" db:"account_sid"`
	AuthToken  string `json:"-" db:"auth_token"`

	// AppSID routes provider signaling events back to this deployment.
	// Empty until set by the user or auto-provisioned during resolution.
	AppSID      string `json:"app_sid,omitempty" db:"app_sid"`
	PhoneNumber string `json:"phone_number,omitempty" db:"phone_number"`

	IsDefault bool `json:"is_default" db:"is_default"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Complete reports whether the account carries enough credential material to
// authenticate against the provider. AppSID and PhoneNumber are optional at
// this level; callers that need them check separately.
func (a Account) Complete() bool {
	return a.AccountSID != "" && a.AuthToken != ""
}

// Profile is the legacy single-account credential set kept on the user row.
// Predates multi-account support; consulted only as the last resolution
// fallback and by webhook owner matching.
type Profile struct {
	UserID      string `json:"id" db:"id"`
	AccountSID  string `json:"twilio_account_sid" db:"twilio_account_sid"`
	AuthToken   string `json:"-" db:"twilio_auth_token"`
	AppSID      string `json:"twilio_app_sid,omitempty" db:"twilio_app_sid"`
	PhoneNumber string `json:"twilio_phone_number,omitempty" db:"twilio_phone_number"`
}

func (p Profile) Complete() bool {
	return p.AccountSID != "" && p.AuthToken != ""
}

var (
	ErrNotFound        = errors.New("accounts: not found")
	ErrInvalidArgument = errors.New("accounts: invalid argument")
)
