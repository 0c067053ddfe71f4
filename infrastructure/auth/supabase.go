package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	pkgauth "canvashistory/pkg/auth"
	pkgerrors "canvashistory/pkg/errors"

	"github.com/sony/gobreaker"
	"github.com/supabase-community/supabase-go"
	"go.uber.org/zap"
)

// TokenVerifier resolves an access token against a remote identity service
type TokenVerifier interface {
	VerifyToken(token string) (*pkgauth.UserContext, error)
}

// BreakerSettings configures the circuit breaker around the verifier
type BreakerSettings struct {
	MaxRequests      uint32
	Interval         time.Duration
	Timeout          time.Duration
	MinRequests      uint32
	FailureThreshold float64
}

// SupabaseVerifier checks tokens with the Supabase auth API
type SupabaseVerifier struct {
	client *supabase.Client
}

// NewSupabaseVerifier creates a verifier using the service role key
func NewSupabaseVerifier(url, serviceRoleKey string) (*SupabaseVerifier, error) {
	client, err := supabase.NewClient(url, serviceRoleKey, nil)
	if err != nil {
		return nil, fmt.Errorf("unable to create Supabase client: %w", err)
	}
	return &SupabaseVerifier{client: client}, nil
}

// VerifyToken implements TokenVerifier
func (v *SupabaseVerifier) VerifyToken(token string) (*pkgauth.UserContext, error) {
	// GetUser does not take a context; the breaker bounds failures instead.
	user, err := v.client.Auth.WithToken(token).GetUser()
	if err != nil {
		if isRejection(err) {
			return nil, fmt.Errorf("%w: %v", pkgauth.ErrInvalidToken, err)
		}
		return nil, err
	}

	roles := []string{"authenticated"}
	if user.Role != "" {
		roles = []string{user.Role}
	}
	return &pkgauth.UserContext{
		UserID: user.ID.String(),
		Email:  user.Email,
		Roles:  roles,
	}, nil
}

// isRejection reports whether the auth API answered that the token is bad,
// as opposed to being unreachable.
func isRejection(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "status code 401") ||
		strings.Contains(msg, "status code 403") ||
		strings.Contains(msg, "status code 400")
}

// BreakerAuthenticator guards a TokenVerifier with a circuit breaker so an
// identity service outage fails fast instead of stalling every request.
type BreakerAuthenticator struct {
	verifier TokenVerifier
	cb       *gobreaker.CircuitBreaker
	logger   *zap.Logger
}

// NewBreakerAuthenticator wraps verifier
func NewBreakerAuthenticator(name string, verifier TokenVerifier, settings BreakerSettings, logger *zap.Logger) *BreakerAuthenticator {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: settings.MaxRequests,
		Interval:    settings.Interval,
		Timeout:     settings.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < settings.MinRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= settings.FailureThreshold
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("Circuit breaker state changed",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
		// A rejected token is a healthy answer from the service.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, pkgauth.ErrInvalidToken)
		},
	})

	return &BreakerAuthenticator{verifier: verifier, cb: cb, logger: logger}
}

// Authenticate implements pkgauth.Authenticator
func (a *BreakerAuthenticator) Authenticate(ctx context.Context, token string) (*pkgauth.UserContext, error) {
	if token == "" {
		return nil, pkgauth.ErrMissingToken
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result, err := a.cb.Execute(func() (interface{}, error) {
		return a.verifier.VerifyToken(token)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, pkgerrors.NewUnavailableError("auth").WithCause(err)
		}
		if errors.Is(err, pkgauth.ErrInvalidToken) {
			return nil, err
		}
		a.logger.Error("Token verification failed", zap.Error(err))
		return nil, pkgerrors.NewExternalError("supabase", err)
	}

	return result.(*pkgauth.UserContext), nil
}

// State exposes the breaker state for readiness checks
func (a *BreakerAuthenticator) State() gobreaker.State {
	return a.cb.State()
}
