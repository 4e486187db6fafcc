package session

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Expiry reads the exp claim of a JWT bearer token without verifying its
// signature; the backend remains the authority on validity. It reports false
// for opaque tokens and tokens without exp.
func Expiry(token string) (time.Time, bool) {
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}
