package bskykit

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenClaims are the fields of an atproto access JWT this package cares about.
type TokenClaims struct {
	Subject   string
	Scope     string
	Audience  []string
	ExpiresAt time.Time
}

type accessTokenClaims struct {
	jwt.RegisteredClaims
	Scope string `json:"scope,omitempty"`
}

// ParseTokenClaims reads the claims of an access token. The signature is not
// verified.
func ParseTokenClaims(token string) (*TokenClaims, error) {
	var claims accessTokenClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return nil, newError(KindInvalidInput, "credential is not a jwt", err)
	}
	tc := &TokenClaims{
		Subject:  claims.Subject,
		Scope:    claims.Scope,
		Audience: claims.Audience,
	}
	if claims.ExpiresAt != nil {
		tc.ExpiresAt = claims.ExpiresAt.Time
	}
	return tc, nil
}

// Expired reports whether the token has an expiry at or before now.
func (c *TokenClaims) Expired(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && !now.Before(c.ExpiresAt)
}

// Claims parses the stored credential. It fails with ErrUnauthorized when
// there is none.
func (s *AuthSession) Claims() (*TokenClaims, error) {
	token, ok := s.Credential()
	if !ok {
		return nil, newError(KindUnauthorized, "bearer token is missing", nil)
	}
	return ParseTokenClaims(token)
}
