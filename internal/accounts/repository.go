package accounts

import "context"

// Repository is the persistence contract for provider accounts.
//
// Ordering contract: ListByUser returns newest-first (created_at DESC). The
// resolver's "any complete account" fallback depends on it for deterministic
// tie-breaking.
type Repository interface {
	// Create inserts the account. When a.IsDefault is set the previous
	// default for the user is cleared in the same write, keeping the
	// one-default-per-user constraint satisfied at every point.
	Create(ctx context.Context, a Account) error
	Get(ctx context.Context, userID, accountID string) (Account, error)
	ListByUser(ctx context.Context, userID string) ([]Account, error)
	Update(ctx context.Context, a Account) error
	Delete(ctx context.Context, userID, accountID string) error

	// SetDefault atomically clears the default flag on the user's other
	// accounts and sets it on accountID.
	SetDefault(ctx context.Context, userID, accountID string) error

	// SetAppSID persists an auto-provisioned application id back onto the
	// account that produced a credential tuple.
	SetAppSID(ctx context.Context, userID, accountID, appSID string) error

	// FindUserIDsByAccountSID returns every user owning an account with the
	// given provider account SID. Webhook ingestion fans out to all of them.
	FindUserIDsByAccountSID(ctx context.Context, accountSID string) ([]string, error)
}

// ProfileRepository is the legacy single-account storage twin.
type ProfileRepository interface {
	Get(ctx context.Context, userID string) (Profile, bool, error)
	SetAppSID(ctx context.Context, userID, appSID string) error
	FindUserIDsByAccountSID(ctx context.Context, accountSID string) ([]string, error)
}
