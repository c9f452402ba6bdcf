package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims is what the service reads from a bearer token. Role and display
// name are not trusted from the token; they come from the user directory.
type Claims struct {
	jwt.RegisteredClaims
}

// SignToken creates an HS256 token for userID. Issuance belongs to the
// account service; this exists for local tooling and tests.
func SignToken(secret []byte, issuer, userID string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}
