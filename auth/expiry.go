package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// expirySkew is how early a JWT access token is considered expired.
const expirySkew = 10 * time.Second

// accessTokenExpired reports whether token is a JWT whose exp claim has passed.
// Tokens that are not JWTs, or carry no exp claim, are never considered expired;
// the server is the authority for those.
func accessTokenExpired(token string, now time.Time) bool {
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return false
	}
	if claims.ExpiresAt == nil {
		return false
	}
	return !now.Add(expirySkew).Before(claims.ExpiresAt.Time)
}
