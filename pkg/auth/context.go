package auth

import (
	"context"
	"errors"
)

// ErrNoUser is returned when a request reached a handler unauthenticated
var ErrNoUser = errors.New("user not found in context")

// UserContext is the caller resolved by an Authenticator. UserID owns the
// sessions the caller opens.
type UserContext struct {
	UserID string
	Email  string
	Roles  []string
}

type userKey struct{}

// GetUserFromContext returns the user stored by SetUserInContext
func GetUserFromContext(ctx context.Context) (*UserContext, error) {
	user, ok := ctx.Value(userKey{}).(*UserContext)
	if !ok || user == nil {
		return nil, ErrNoUser
	}
	return user, nil
}

// SetUserInContext returns a copy of ctx carrying user
func SetUserInContext(ctx context.Context, user *UserContext) context.Context {
	return context.WithValue(ctx, userKey{}, user)
}
