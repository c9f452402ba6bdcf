package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"quiz-sync-service/internal/domain"
)

// UserDirectory resolves a token subject to the user's role and display name.
type UserDirectory interface {
	FindUser(ctx context.Context, userID string) (domain.Identity, error)
}

// Authenticator is the identity gate in front of every connection.
type Authenticator struct {
	secret []byte
	issuer string
	users  UserDirectory
}

func NewAuthenticator(secret []byte, issuer string, users UserDirectory) *Authenticator {
	return &Authenticator{secret: secret, issuer: issuer, users: users}
}

// Authenticate verifies the credential and returns the caller's identity.
// Every rejection wraps domain.ErrUnauthenticated.
func (a *Authenticator) Authenticate(ctx context.Context, credential string) (domain.Identity, error) {
	if credential == "" {
		return domain.Identity{}, fmt.Errorf("missing credential: %w", domain.ErrUnauthenticated)
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if a.issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.issuer))
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(credential, claims, func(*jwt.Token) (interface{}, error) {
		return a.secret, nil
	}, opts...)
	if err != nil {
		return domain.Identity{}, fmt.Errorf("%v: %w", err, domain.ErrUnauthenticated)
	}
	if !token.Valid || claims.Subject == "" {
		return domain.Identity{}, fmt.Errorf("token has no subject: %w", domain.ErrUnauthenticated)
	}

	identity, err := a.users.FindUser(ctx, claims.Subject)
	if errors.Is(err, domain.ErrUserNotFound) {
		return domain.Identity{}, fmt.Errorf("user %s: %w", claims.Subject, domain.ErrUnauthenticated)
	}
	if err != nil {
		return domain.Identity{}, fmt.Errorf("resolve user %s: %w", claims.Subject, err)
	}
	return identity, nil
}

// CredentialFromRequest reads the bearer token from the Authorization header,
// falling back to the token query parameter browsers use for WebSockets.
func CredentialFromRequest(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		if token, ok := strings.CutPrefix(header, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
		return ""
	}
	return r.URL.Query().Get("token")
}
