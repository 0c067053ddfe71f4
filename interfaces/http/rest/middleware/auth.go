package middleware

import (
	"errors"
	"net/http"
	"strings"

	"canvashistory/pkg/auth"
	"canvashistory/pkg/common"
	pkgerrors "canvashistory/pkg/errors"

	"go.uber.org/zap"
)

// Authenticate resolves the caller with authenticator and stores it in the
// request context
func Authenticate(authenticator auth.Authenticator, logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := extractToken(r)

			user, err := authenticator.Authenticate(r.Context(), token)
			if err != nil {
				if appErr := pkgerrors.GetAppError(err); appErr != nil {
					common.RespondAppError(w, r, appErr)
					return
				}

				logger.Warn("Invalid token",
					zap.Error(err),
					zap.String("path", r.URL.Path),
				)
				switch {
				case errors.Is(err, auth.ErrMissingToken):
					respondUnauthorized(w, r, "Missing authentication token")
				case errors.Is(err, auth.ErrExpiredToken):
					respondUnauthorized(w, r, "Token has expired")
				case errors.Is(err, auth.ErrInvalidSignature):
					respondUnauthorized(w, r, "Invalid token signature")
				default:
					respondUnauthorized(w, r, "Invalid token")
				}
				return
			}

			logger.Debug("Request authenticated",
				zap.String("user_id", user.UserID),
				zap.String("path", r.URL.Path),
				zap.String("method", r.Method),
			)

			next.ServeHTTP(w, r.WithContext(auth.SetUserInContext(r.Context(), user)))
		})
	}
}

// extractToken reads the bearer token from the Authorization header, then
// the auth_token cookie, then the token query parameter. EventSource
// clients cannot set headers, so the last two matter for event streams.
func extractToken(r *http.Request) string {
	if authHeader := r.Header.Get("Authorization"); authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			return strings.TrimSpace(parts[1])
		}
		return authHeader
	}

	if cookie, err := r.Cookie("auth_token"); err == nil {
		return cookie.Value
	}

	return r.URL.Query().Get("token")
}

func respondUnauthorized(w http.ResponseWriter, r *http.Request, message string) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="canvas-history"`)
	common.RespondError(w, r, http.StatusUnauthorized, common.StandardErrorCodes.Unauthorized, message)
}
