package softphone

import (
	"errors"
	"fmt"

	"phoneb/internal/credentials"
	"phoneb/internal/telephony"
)

// ErrSessionExpired marks a stale identity token. The holder of the session
// refreshes it once and retries the failed operation once; a second failure
// propagates.
var ErrSessionExpired = errors.New("softphone: session expired")

// FailureKind routes a failure to the right user-facing remedy.
type FailureKind string

const (
	FailureApplicationMissing FailureKind = "application_missing"
	FailureCredentialsInvalid FailureKind = "credentials_invalid"
	FailureSessionExpired     FailureKind = "session_expired"
	FailureTransport          FailureKind = "transport_error"
	FailurePermissionDenied   FailureKind = "permission_denied"
	FailureValidation         FailureKind = "validation_error"
	FailureUnknown            FailureKind = "unknown"
)

// Failure is a classified softphone error.
type Failure struct {
	Kind    FailureKind
	Message string
	err     error
}

func (f *Failure) Error() string {
	if f.Message != "" {
		return fmt.Sprintf("softphone: %s: %s", f.Kind, f.Message)
	}
	return fmt.Sprintf("softphone: %s", f.Kind)
}

func (f *Failure) Unwrap() error { return f.err }

// AsFailure unwraps err into a *Failure if it is one.
func AsFailure(err error) (*Failure, bool) {
	var f *Failure
	if errors.As(err, &f) {
		return f, true
	}
	return nil, false
}

// classifyTokenError maps a token-issuance failure onto the remediation the
// UI should offer: account setup, re-login, or retry.
func classifyTokenError(err error) *Failure {
	switch {
	case errors.Is(err, ErrSessionExpired):
		return &Failure{Kind: FailureSessionExpired, Message: "please sign in again", err: err}
	case errors.Is(err, telephony.ErrInvalidCredentials):
		return &Failure{Kind: FailureCredentialsInvalid, Message: "the provider rejected the stored credentials", err: err}
	default:
		if se, ok := credentials.AsSetupError(err); ok {
			return &Failure{Kind: FailureApplicationMissing, Message: se.Error(), err: err}
		}
		return &Failure{Kind: FailureUnknown, Message: err.Error(), err: err}
	}
}

// classifyCallError distinguishes origination failures the way the dial pad
// presents them: missing/invalid credentials, expired session, or unknown.
func classifyCallError(err error) *Failure {
	switch {
	case errors.Is(err, ErrSessionExpired):
		return &Failure{Kind: FailureSessionExpired, Message: "please sign in again", err: err}
	case errors.Is(err, telephony.ErrInvalidCredentials):
		return &Failure{Kind: FailureCredentialsInvalid, Message: "the provider rejected the stored credentials", err: err}
	default:
		if se, ok := credentials.AsSetupError(err); ok {
			return &Failure{Kind: FailureCredentialsInvalid, Message: se.Error(), err: err}
		}
		return &Failure{Kind: FailureUnknown, Message: err.Error(), err: err}
	}
}
