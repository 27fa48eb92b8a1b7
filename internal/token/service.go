// Package token issues short-lived provider signaling tokens for the
// browser softphone.
package token

import (
	"context"
	"fmt"
	"time"

	"phoneb/internal/credentials"
	"phoneb/internal/telephony"
)

// Credential resolution, narrowed to what issuance needs.
type Resolver interface {
	Resolve(ctx context.Context, userID, accountRef string) (credentials.Resolved, error)
}

// Grant is an issued signaling token plus the metadata the softphone needs
// to schedule its own refresh.
type Grant struct {
	Token      string `json:"token"`
	Identity   string `json:"identity"`
	TTLSeconds int    `json:"ttl_seconds"`
}

type Service struct {
	resolver Resolver
	clock    func() time.Time
}

func NewService(resolver Resolver, clock func() time.Time) *Service {
	if clock == nil {
		clock = time.Now
	}
	return &Service{resolver: resolver, clock: clock}
}

// Issue resolves the user's provider credentials and mints a signaling token
// bound to them. The token identity is the user id, so inbound calls routed
// by identity land on the right softphone. Resolution failures pass through
// unchanged so callers can distinguish setup problems from transient ones.
func (s *Service) Issue(ctx context.Context, userID, accountRef string) (Grant, error) {
	res, err := s.resolver.Resolve(ctx, userID, accountRef)
	if err != nil {
		return Grant{}, err
	}

	grant := telephony.VoiceGrant{
		ApplicationSID: res.AppSID,
		IncomingAllow:  true,
	}
	tok, err := telephony.MintAccessToken(res.Credentials(), userID, grant, s.clock())
	if err != nil {
		return Grant{}, fmt.Errorf("mint signaling token: %w", err)
	}
	return Grant{
		Token:      tok,
		Identity:   userID,
		TTLSeconds: int(telephony.AccessTokenTTL / time.Second),
	}, nil
}
