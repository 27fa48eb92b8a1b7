package credentials

import (
	"context"
	"errors"
	"log/slog"

	"phoneb/internal/accounts"
	"phoneb/internal/config"
	"phoneb/internal/telephony"
)

// Resolved is the transient output of one resolution pass. Never persisted,
// never cached; account state can change between requests so the cascade
// re-runs every time.
//
// On success AccountSID, AuthToken and AppSID are non-empty. FromNumber may
// be empty: token issuance does not need one, and callers that do (outbound
// calls, messages) enforce it with their own distinct error.
type Resolved struct {
	AccountSID string
	AuthToken  string
	AppSID     string
	FromNumber string

	// SourceAccountID identifies the stored account that produced the
	// tuple; empty when it came from the env override or legacy profile.
	SourceAccountID string

	// Source names the cascade step that won, for logging and tests.
	Source string
}

func (r Resolved) Credentials() telephony.Credentials {
	return telephony.Credentials{AccountSID: r.AccountSID, AuthToken: r.AuthToken}
}

// candidate is a strategy's tuple before application provisioning.
type candidate struct {
	resolved Resolved

	// persistAppSID writes an auto-provisioned application id back onto the
	// source that produced the tuple. Nil when the source is not writable
	// (env override).
	persistAppSID func(ctx context.Context, appSID string) error
}

// strategy is one step of the precedence cascade. Steps are tried in order;
// the first one that yields a candidate wins.
type strategy struct {
	name    string
	resolve func(ctx context.Context, userID string) (candidate, bool, error)
}

// appFriendlyName is the display name of auto-provisioned applications.
const appFriendlyName = "PhoneB Voice"

type Resolver struct {
	accounts accounts.Repository
	profiles accounts.ProfileRepository
	override config.TwilioConfig
	provider telephony.API

	// voiceCallbackURL becomes the voice webhook of auto-provisioned
	// applications.
	voiceCallbackURL string

	log *slog.Logger
}

func NewResolver(
	accountRepo accounts.Repository,
	profileRepo accounts.ProfileRepository,
	override config.TwilioConfig,
	provider telephony.API,
	voiceCallbackURL string,
	log *slog.Logger,
) *Resolver {
	if log == nil {
		log = slog.Default()
	}
	return &Resolver{
		accounts:         accountRepo,
		profiles:         profileRepo,
		override:         override,
		provider:         provider,
		voiceCallbackURL: voiceCallbackURL,
		log:              log,
	}
}

// Resolve picks the credential tuple for one request.
//
// Precedence, first success wins:
//  1. the explicitly referenced account (errors instead of falling through)
//  2. the operator env override, if complete
//  3. the user's default account, if complete
//  4. any complete account, newest first
//  5. the legacy profile credential set
func (r *Resolver) Resolve(ctx context.Context, userID, accountRef string) (Resolved, error) {
	if userID == "" {
		return Resolved{}, errors.New("credentials: user id is required")
	}

	var cand candidate
	if accountRef != "" {
		c, err := r.resolveExplicit(ctx, userID, accountRef)
		if err != nil {
			return Resolved{}, err
		}
		cand = c
	} else {
		found := false
		for _, s := range r.cascade() {
			c, ok, err := s.resolve(ctx, userID)
			if err != nil {
				return Resolved{}, err
			}
			if ok {
				c.resolved.Source = s.name
				cand = c
				found = true
				break
			}
		}
		if !found {
			return Resolved{}, r.exhaustedError(ctx, userID)
		}
	}

	if cand.resolved.AppSID == "" {
		return r.provisionApplication(ctx, cand)
	}
	return cand.resolved, nil
}

// exhaustedError distinguishes "nothing configured at all" from "accounts
// exist but none is usable", so the UI can route to the right setup step.
func (r *Resolver) exhaustedError(ctx context.Context, userID string) error {
	list, err := r.accounts.ListByUser(ctx, userID)
	if err == nil && len(list) > 0 {
		return &SetupError{Kind: KindIncompleteAccount, Detail: "no account has both a SID and an auth token"}
	}
	return &SetupError{Kind: KindNoCredentials, Detail: "no provider account configured"}
}

func (r *Resolver) resolveExplicit(ctx context.Context, userID, accountRef string) (candidate, error) {
	a, err := r.accounts.Get(ctx, userID, accountRef)
	if err != nil {
		if errors.Is(err, accounts.ErrNotFound) {
			return candidate{}, &SetupError{Kind: KindAccountNotFound, Detail: "account " + accountRef + " not found", err: err}
		}
		return candidate{}, err
	}
	if !a.Complete() {
		return candidate{}, &SetupError{Kind: KindIncompleteAccount, Detail: "account " + accountRef + " is missing its SID or auth token"}
	}
	c := r.candidateFromAccount(a)
	c.resolved.Source = "explicit"
	return c, nil
}

func (r *Resolver) cascade() []strategy {
	return []strategy{
		{name: "env_override", resolve: r.resolveOverride},
		{name: "default_account", resolve: r.resolveDefault},
		{name: "any_account", resolve: r.resolveAny},
		{name: "legacy_profile", resolve: r.resolveProfile},
	}
}

func (r *Resolver) resolveOverride(ctx context.Context, userID string) (candidate, bool, error) {
	o := r.override
	if o.AccountSID == "" || o.AuthToken == "" {
		return candidate{}, false, nil
	}
	return candidate{
		resolved: Resolved{
			AccountSID: o.AccountSID,
			AuthToken:  o.AuthToken,
			AppSID:     o.AppSID,
			FromNumber: o.PhoneNumber,
		},
		// Process-wide config is not writable; a provisioned app id is used
		// for this request but cannot be persisted.
		persistAppSID: nil,
	}, true, nil
}

func (r *Resolver) resolveDefault(ctx context.Context, userID string) (candidate, bool, error) {
	list, err := r.accounts.ListByUser(ctx, userID)
	if err != nil {
		return candidate{}, false, err
	}
	for _, a := range list {
		if a.IsDefault && a.Complete() {
			return r.candidateFromAccount(a), true, nil
		}
	}
	return candidate{}, false, nil
}

func (r *Resolver) resolveAny(ctx context.Context, userID string) (candidate, bool, error) {
	list, err := r.accounts.ListByUser(ctx, userID)
	if err != nil {
		return candidate{}, false, err
	}
	// ListByUser is newest-first, which makes this branch deterministic.
	for _, a := range list {
		if a.Complete() {
			return r.candidateFromAccount(a), true, nil
		}
	}
	return candidate{}, false, nil
}

func (r *Resolver) resolveProfile(ctx context.Context, userID string) (candidate, bool, error) {
	p, ok, err := r.profiles.Get(ctx, userID)
	if err != nil || !ok {
		return candidate{}, false, err
	}
	if !p.Complete() {
		return candidate{}, false, nil
	}
	return candidate{
		resolved: Resolved{
			AccountSID: p.AccountSID,
			AuthToken:  p.AuthToken,
			AppSID:     p.AppSID,
			FromNumber: p.PhoneNumber,
		},
		persistAppSID: func(ctx context.Context, appSID string) error {
			return r.profiles.SetAppSID(ctx, userID, appSID)
		},
	}, true, nil
}

func (r *Resolver) candidateFromAccount(a accounts.Account) candidate {
	return candidate{
		resolved: Resolved{
			AccountSID:      a.AccountSID,
			AuthToken:       a.AuthToken,
			AppSID:          a.AppSID,
			FromNumber:      a.PhoneNumber,
			SourceAccountID: a.ID,
		},
		persistAppSID: func(ctx context.Context, appSID string) error {
			return r.accounts.SetAppSID(ctx, a.UserID, a.ID, appSID)
		},
	}
}

// provisionApplication registers a TwiML application pointed at this
// deployment and writes its id back onto the tuple's source. Persist
// failures are logged, not fatal: the id is valid for this request and the
// next pass will find it or provision again.
func (r *Resolver) provisionApplication(ctx context.Context, cand candidate) (Resolved, error) {
	res := cand.resolved
	appSID, err := r.provider.CreateApplication(ctx, res.Credentials(), appFriendlyName, r.voiceCallbackURL)
	if err != nil {
		return Resolved{}, &SetupError{
			Kind:    KindAppProvisioningFailed,
			Detail:  err.Error(),
			Partial: &res,
			err:     err,
		}
	}
	res.AppSID = appSID

	if cand.persistAppSID != nil {
		if err := cand.persistAppSID(ctx, appSID); err != nil {
			r.log.Warn("failed to persist provisioned app sid",
				"source", res.Source, "account_id", res.SourceAccountID, "err", err)
		}
	} else {
		r.log.Info("provisioned app sid for non-writable source", "source", res.Source)
	}
	return res, nil
}

// MatchOwners is the account-lookup twin of Resolve used by webhook
// ingestion: it returns every user that owns the given provider account SID,
// across stored accounts and legacy profiles, deduplicated.
func (r *Resolver) MatchOwners(ctx context.Context, accountSID string) ([]string, error) {
	if accountSID == "" {
		return nil, nil
	}
	fromAccounts, err := r.accounts.FindUserIDsByAccountSID(ctx, accountSID)
	if err != nil {
		return nil, err
	}
	fromProfiles, err := r.profiles.FindUserIDsByAccountSID(ctx, accountSID)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(fromAccounts)+len(fromProfiles))
	var out []string
	for _, id := range append(fromAccounts, fromProfiles...) {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out, nil
}
