package session

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims is what the client reads out of an access token. The token is not
// verified here; the platform is the only party that checks signatures.
type Claims struct {
	Subject   string
	Role      string
	ExpiresAt time.Time
}

type accessClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// ParseClaims decodes an access token without verifying its signature.
func ParseClaims(accessToken string) (Claims, error) {
	var ac accessClaims
	if _, _, err := jwt.NewParser().ParseUnverified(accessToken, &ac); err != nil {
		return Claims{}, fmt.Errorf("decoding access token: %w", err)
	}

	c := Claims{Subject: ac.Subject, Role: ac.Role}
	if ac.ExpiresAt != nil {
		c.ExpiresAt = ac.ExpiresAt.Time
	}
	return c, nil
}

// Expired reports whether the token's expiry is known and not after now.
func (c Claims) Expired(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && !c.ExpiresAt.After(now)
}
