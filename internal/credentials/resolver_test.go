package credentials

import (
	"context"
	"errors"
	"testing"
	"time"

	"phoneb/internal/accounts"
	"phoneb/internal/config"
	"phoneb/internal/telephony"

	"github.com/google/uuid"
)

type fakeProvider struct {
	appSID       string
	appErr       error
	appCalls     int
	lastVoiceURL string
}

func (f *fakeProvider) CreateCall(ctx context.Context, creds telephony.Credentials, from, to, url string) (telephony.CallResult, error) {
	return telephony.CallResult{}, errors.New("not used")
}

func (f *fakeProvider) SendMessage(ctx context.Context, creds telephony.Credentials, from, to, body string) (telephony.MessageResult, error) {
	return telephony.MessageResult{}, errors.New("not used")
}

func (f *fakeProvider) CreateApplication(ctx context.Context, creds telephony.Credentials, name, voiceURL string) (string, error) {
	f.appCalls++
	f.lastVoiceURL = voiceURL
	if f.appErr != nil {
		return "", f.appErr
	}
	if f.appSID == "" {
		return "AP-provisioned", nil
	}
	return f.appSID, nil
}

type fixture struct {
	repo     *accounts.MemoryRepo
	profiles *accounts.MemoryProfileRepo
	provider *fakeProvider
	resolver *Resolver
}

func newFixture(override config.TwilioConfig) *fixture {
	f := &fixture{
		repo:     accounts.NewMemoryRepo(),
		profiles: accounts.NewMemoryProfileRepo(),
		provider: &fakeProvider{},
	}
	f.resolver = NewResolver(f.repo, f.profiles, override, f.provider, "https://phone.example.com/webhooks/twilio", nil)
	return f
}

func (f *fixture) addAccount(t *testing.T, a accounts.Account) accounts.Account {
	t.Helper()
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if err := f.repo.Create(context.Background(), a); err != nil {
		t.Fatalf("create account: %v", err)
	}
	return a
}

func at(sec int64) time.Time { return time.Unix(1700000000+sec, 0).UTC() }

func TestResolvePicksCompleteDefault(t *testing.T) {
	f := newFixture(config.TwilioConfig{})
	// Insertion order must not matter: incomplete B first, default A second.
	f.addAccount(t, accounts.Account{UserID: "u1", AccountSID: "ACB", CreatedAt: at(10)})
	f.addAccount(t, accounts.Account{UserID: "u1", AccountSID: "ACA", AuthToken: "ta", AppSID: "APA", PhoneNumber: "+1555", IsDefault: true, CreatedAt: at(5)})

	res, err := f.resolver.Resolve(context.Background(), "u1", "")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if res.AccountSID != "ACA" || res.Source != "default_account" {
		t.Fatalf("expected default account ACA, got %+v", res)
	}
	if res.FromNumber != "+1555" {
		t.Fatalf("expected from number carried through, got %q", res.FromNumber)
	}
}

func TestResolveExplicitAccountNotFound(t *testing.T) {
	f := newFixture(config.TwilioConfig{})
	_, err := f.resolver.Resolve(context.Background(), "u1", "nope")
	se, ok := AsSetupError(err)
	if !ok || se.Kind != KindAccountNotFound {
		t.Fatalf("expected AccountNotFound, got %v", err)
	}
	if !se.NeedsSetup() {
		t.Fatalf("AccountNotFound should need setup")
	}
}

func TestResolveExplicitIncompleteAccount(t *testing.T) {
	f := newFixture(config.TwilioConfig{})
	b := f.addAccount(t, accounts.Account{UserID: "u1", AccountSID: "ACB", CreatedAt: at(0)})

	_, err := f.resolver.Resolve(context.Background(), "u1", b.ID)
	se, ok := AsSetupError(err)
	if !ok || se.Kind != KindIncompleteAccount {
		t.Fatalf("expected IncompleteAccount, got %v", err)
	}
}

func TestResolveNoCredentials(t *testing.T) {
	f := newFixture(config.TwilioConfig{})

	_, err := f.resolver.Resolve(context.Background(), "u1", "")
	se, ok := AsSetupError(err)
	if !ok || se.Kind != KindNoCredentials {
		t.Fatalf("expected NoCredentials, got %v", err)
	}
}

func TestResolveOnlyIncompleteAccounts(t *testing.T) {
	f := newFixture(config.TwilioConfig{})
	// Only an incomplete account exists: the user started setup but never
	// finished, which is a different remediation than having nothing.
	f.addAccount(t, accounts.Account{UserID: "u1", AccountSID: "ACB", CreatedAt: at(0)})

	_, err := f.resolver.Resolve(context.Background(), "u1", "")
	se, ok := AsSetupError(err)
	if !ok || se.Kind != KindIncompleteAccount {
		t.Fatalf("expected IncompleteAccount, got %v", err)
	}
}

func TestResolveEnvOverrideBeatsDefaultAccount(t *testing.T) {
	f := newFixture(config.TwilioConfig{AccountSID: "ACENV", AuthToken: "tenv", AppSID: "APENV", PhoneNumber: "+1999"})
	f.addAccount(t, accounts.Account{UserID: "u1", AccountSID: "ACA", AuthToken: "ta", AppSID: "APA", IsDefault: true, CreatedAt: at(0)})

	res, err := f.resolver.Resolve(context.Background(), "u1", "")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if res.AccountSID != "ACENV" || res.Source != "env_override" {
		t.Fatalf("expected env override to win, got %+v", res)
	}
}

func TestResolveExplicitRefBypassesEnvOverride(t *testing.T) {
	f := newFixture(config.TwilioConfig{AccountSID: "ACENV", AuthToken: "tenv", AppSID: "APENV"})
	a := f.addAccount(t, accounts.Account{UserID: "u1", AccountSID: "ACA", AuthToken: "ta", AppSID: "APA", CreatedAt: at(0)})

	res, err := f.resolver.Resolve(context.Background(), "u1", a.ID)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if res.AccountSID != "ACA" || res.Source != "explicit" {
		t.Fatalf("expected explicit account, got %+v", res)
	}
}

func TestResolveAnyAccountPrefersNewest(t *testing.T) {
	f := newFixture(config.TwilioConfig{})
	f.addAccount(t, accounts.Account{UserID: "u1", AccountSID: "ACOLD", AuthToken: "t", AppSID: "AP1", CreatedAt: at(0)})
	f.addAccount(t, accounts.Account{UserID: "u1", AccountSID: "ACNEW", AuthToken: "t", AppSID: "AP2", CreatedAt: at(100)})

	res, err := f.resolver.Resolve(context.Background(), "u1", "")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if res.AccountSID != "ACNEW" || res.Source != "any_account" {
		t.Fatalf("expected newest complete account, got %+v", res)
	}
}

func TestResolveLegacyProfileFallback(t *testing.T) {
	f := newFixture(config.TwilioConfig{})
	f.profiles.Put(accounts.Profile{UserID: "u1", AccountSID: "ACP", AuthToken: "tp", AppSID: "APP", PhoneNumber: "+1777"})

	res, err := f.resolver.Resolve(context.Background(), "u1", "")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if res.AccountSID != "ACP" || res.Source != "legacy_profile" {
		t.Fatalf("expected legacy profile, got %+v", res)
	}
}

func TestResolveAutoProvisionsAndPersistsAppSID(t *testing.T) {
	f := newFixture(config.TwilioConfig{})
	a := f.addAccount(t, accounts.Account{UserID: "u1", AccountSID: "ACA", AuthToken: "ta", IsDefault: true, CreatedAt: at(0)})

	res, err := f.resolver.Resolve(context.Background(), "u1", "")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if res.AppSID != "AP-provisioned" {
		t.Fatalf("expected provisioned app sid, got %+v", res)
	}
	if f.provider.lastVoiceURL != "https://phone.example.com/webhooks/twilio" {
		t.Fatalf("expected webhook URL as voice callback, got %s", f.provider.lastVoiceURL)
	}

	// Second pass picks up the persisted id without re-provisioning.
	res2, err := f.resolver.Resolve(context.Background(), "u1", "")
	if err != nil {
		t.Fatalf("second resolve: %v", err)
	}
	if res2.AppSID != "AP-provisioned" {
		t.Fatalf("expected persisted app sid, got %+v", res2)
	}
	if f.provider.appCalls != 1 {
		t.Fatalf("expected exactly one provisioning call, got %d", f.provider.appCalls)
	}

	stored, err := f.repo.Get(context.Background(), "u1", a.ID)
	if err != nil || stored.AppSID != "AP-provisioned" {
		t.Fatalf("expected app sid persisted on account, got %+v err=%v", stored, err)
	}
}

func TestResolveProvisionFailureCarriesPartial(t *testing.T) {
	f := newFixture(config.TwilioConfig{})
	f.provider.appErr = errors.New("upstream 20003: authenticate")
	f.addAccount(t, accounts.Account{UserID: "u1", AccountSID: "ACA", AuthToken: "ta", IsDefault: true, CreatedAt: at(0)})

	_, err := f.resolver.Resolve(context.Background(), "u1", "")
	se, ok := AsSetupError(err)
	if !ok || se.Kind != KindAppProvisioningFailed {
		t.Fatalf("expected AppProvisioningFailed, got %v", err)
	}
	if se.Partial == nil || se.Partial.AccountSID != "ACA" {
		t.Fatalf("expected partial tuple, got %+v", se.Partial)
	}
	if se.NeedsSetup() {
		t.Fatalf("provisioning failure is retryable, not a setup error")
	}
}

func TestResolveProfileAppSIDPersistedBack(t *testing.T) {
	f := newFixture(config.TwilioConfig{})
	f.profiles.Put(accounts.Profile{UserID: "u1", AccountSID: "ACP", AuthToken: "tp"})

	res, err := f.resolver.Resolve(context.Background(), "u1", "")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if res.AppSID != "AP-provisioned" {
		t.Fatalf("expected provisioned app sid, got %+v", res)
	}
	p, ok, _ := f.profiles.Get(context.Background(), "u1")
	if !ok || p.AppSID != "AP-provisioned" {
		t.Fatalf("expected app sid persisted on profile, got %+v", p)
	}
}

func TestMatchOwnersDeduplicatesAcrossStores(t *testing.T) {
	f := newFixture(config.TwilioConfig{})
	f.addAccount(t, accounts.Account{UserID: "u1", AccountSID: "ACX", AuthToken: "t", CreatedAt: at(0)})
	f.addAccount(t, accounts.Account{UserID: "u2", AccountSID: "ACX", AuthToken: "t", CreatedAt: at(1)})
	f.profiles.Put(accounts.Profile{UserID: "u1", AccountSID: "ACX", AuthToken: "t"})
	f.profiles.Put(accounts.Profile{UserID: "u3", AccountSID: "ACX", AuthToken: "t"})

	owners, err := f.resolver.MatchOwners(context.Background(), "ACX")
	if err != nil {
		t.Fatalf("match: %v", err)
	}
	if len(owners) != 3 {
		t.Fatalf("expected 3 distinct owners, got %v", owners)
	}
}
