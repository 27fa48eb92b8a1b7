package credentials

import (
	"errors"
	"fmt"
)

// SetupErrorKind enumerates the ways credential resolution can fail before
// the provider is ever involved. Each kind maps to a distinct remediation in
// the client.
type SetupErrorKind string

const (
	// KindNoCredentials: the user has no usable account anywhere in the
	// cascade.
	KindNoCredentials SetupErrorKind = "no_credentials"
	// KindIncompleteAccount: an account was selected but lacks its SID or
	// auth token.
	KindIncompleteAccount SetupErrorKind = "incomplete_account"
	// KindAccountNotFound: an explicitly referenced account does not exist
	// for this user.
	KindAccountNotFound SetupErrorKind = "account_not_found"
	// KindAppProvisioningFailed: a credential tuple was selected but the
	// provider rejected application auto-provisioning. Non-fatal: Partial
	// carries what was resolved so callers can explain exactly what is
	// missing.
	KindAppProvisioningFailed SetupErrorKind = "app_provisioning_failed"
)

type SetupError struct {
	Kind   SetupErrorKind
	Detail string

	// Partial is set for KindAppProvisioningFailed only.
	Partial *Resolved

	err error
}

func (e *SetupError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("credentials: %s: %s", e.Kind, e.Detail)
	}
	return fmt.Sprintf("credentials: %s", e.Kind)
}

func (e *SetupError) Unwrap() error { return e.err }

// NeedsSetup reports whether the failure is fixable by the user configuring
// an account, as opposed to a transient or provider-side failure.
func (e *SetupError) NeedsSetup() bool {
	switch e.Kind {
	case KindNoCredentials, KindIncompleteAccount, KindAccountNotFound:
		return true
	default:
		return false
	}
}

// AsSetupError unwraps err into a *SetupError if it is one.
func AsSetupError(err error) (*SetupError, bool) {
	var se *SetupError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}
