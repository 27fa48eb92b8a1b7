package telephony

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AccessTokenTTL is fixed: signaling tokens are short-lived and the client
// re-requests one on every device initialization.
const AccessTokenTTL = time.Hour

// VoiceGrant scopes an access token to a single application for outgoing
// calls and allows incoming calls addressed to the token identity.
type VoiceGrant struct {
	ApplicationSID string
	IncomingAllow  bool
}

// MintAccessToken builds the capability JWT the browser voice SDK presents
// when opening its realtime signaling connection. Wire format is the
// provider's "twilio-fpa;v=1" shape, signed HS256 with the account's auth
// token.
func MintAccessToken(creds Credentials, identity string, grant VoiceGrant, now time.Time) (string, error) {
	if creds.AccountSID == "" || creds.AuthToken == "" {
		return "", ErrInvalidCredentials
	}
	if identity == "" {
		return "", errors.New("telephony: token identity is required")
	}
	if grant.ApplicationSID == "" {
		return "", errors.New("telephony: voice grant requires an application sid")
	}

	claims := jwt.MapClaims{
		"jti": fmt.Sprintf("%s-%d", creds.AccountSID, now.Unix()),
		"iss": creds.AccountSID,
		"sub": creds.AccountSID,
		"iat": now.Unix(),
		"exp": now.Add(AccessTokenTTL).Unix(),
		"grants": map[string]any{
			"identity": identity,
			"voice": map[string]any{
				"outgoing": map[string]any{
					"application_sid": grant.ApplicationSID,
				},
				"incoming": map[string]any{
					"allow": grant.IncomingAllow,
				},
			},
		},
	}

	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tok.Header["cty"] = "twilio-fpa;v=1"
	return tok.SignedString([]byte(creds.AuthToken))
}

// DecodeAccessToken verifies and unpacks a minted token. Used by tests and
// diagnostics; the provider performs the authoritative verification.
func DecodeAccessToken(tokenString, authToken string, now time.Time) (jwt.MapClaims, error) {
	claims := jwt.MapClaims{}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(func() time.Time { return now }),
		jwt.WithExpirationRequired(),
	)
	_, err := parser.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		return []byte(authToken), nil
	})
	if err != nil {
		return nil, err
	}
	return claims, nil
}
