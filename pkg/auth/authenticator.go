package auth

import (
	"context"
	"strings"
)

// Authenticator resolves a bearer token to a user.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*UserContext, error)
}

// JWTAuthenticator verifies tokens locally with a shared secret or public key.
type JWTAuthenticator struct {
	validator *JWTValidator
}

// NewJWTAuthenticator creates a JWTAuthenticator
func NewJWTAuthenticator(validator *JWTValidator) *JWTAuthenticator {
	return &JWTAuthenticator{validator: validator}
}

// Authenticate implements Authenticator
func (a *JWTAuthenticator) Authenticate(_ context.Context, token string) (*UserContext, error) {
	claims, err := a.validator.ValidateToken(token)
	if err != nil {
		return nil, err
	}

	roles := claims.Roles
	if len(roles) == 0 && claims.Role != "" {
		roles = []string{claims.Role}
	}
	return &UserContext{
		UserID: claims.UserID,
		Email:  claims.Email,
		Roles:  roles,
	}, nil
}

// AnonymousUserID is the caller identity when authentication is disabled.
const AnonymousUserID = "anonymous"

// NoopAuthenticator accepts every request. The token, when present, is used
// verbatim as the user ID so that local clients can still keep their
// sessions apart.
type NoopAuthenticator struct{}

// Authenticate implements Authenticator
func (NoopAuthenticator) Authenticate(_ context.Context, token string) (*UserContext, error) {
	userID := strings.TrimSpace(token)
	if userID == "" {
		userID = AnonymousUserID
	}
	return &UserContext{UserID: userID, Roles: []string{"anonymous"}}, nil
}
