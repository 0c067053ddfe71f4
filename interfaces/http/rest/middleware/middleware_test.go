package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"canvashistory/pkg/auth"
	pkgerrors "canvashistory/pkg/errors"
	"canvashistory/pkg/observability"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

type authenticatorFunc func(ctx context.Context, token string) (*auth.UserContext, error)

func (f authenticatorFunc) Authenticate(ctx context.Context, token string) (*auth.UserContext, error) {
	return f(ctx, token)
}

func TestExtractToken(t *testing.T) {
	tests := []struct {
		name  string
		setup func(r *http.Request)
		want  string
	}{
		{
			name:  "bearer header",
			setup: func(r *http.Request) { r.Header.Set("Authorization", "Bearer abc") },
			want:  "abc",
		},
		{
			name:  "lowercase scheme",
			setup: func(r *http.Request) { r.Header.Set("Authorization", "bearer abc") },
			want:  "abc",
		},
		{
			name:  "cookie",
			setup: func(r *http.Request) { r.AddCookie(&http.Cookie{Name: "auth_token", Value: "from-cookie"}) },
			want:  "from-cookie",
		},
		{
			name:  "query parameter",
			setup: func(r *http.Request) { r.URL.RawQuery = "token=from-query" },
			want:  "from-query",
		},
		{
			name:  "none",
			setup: func(*http.Request) {},
			want:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			tt.setup(req)
			assert.Equal(t, tt.want, extractToken(req))
		})
	}
}

func TestAuthenticate(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, err := auth.GetUserFromContext(r.Context())
		if err != nil {
			w.WriteHeader(http.StatusTeapot)
			return
		}
		_, _ = w.Write([]byte(user.UserID))
	})

	tests := []struct {
		name       string
		authFn     authenticatorFunc
		wantStatus int
		wantBody   string
	}{
		{
			name: "authenticated",
			authFn: func(_ context.Context, token string) (*auth.UserContext, error) {
				return &auth.UserContext{UserID: "user-" + token}, nil
			},
			wantStatus: http.StatusOK,
			wantBody:   "user-t1",
		},
		{
			name: "expired",
			authFn: func(context.Context, string) (*auth.UserContext, error) {
				return nil, auth.ErrExpiredToken
			},
			wantStatus: http.StatusUnauthorized,
			wantBody:   "Token has expired",
		},
		{
			name: "provider unavailable",
			authFn: func(context.Context, string) (*auth.UserContext, error) {
				return nil, pkgerrors.NewUnavailableError("auth")
			},
			wantStatus: http.StatusServiceUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := Authenticate(tt.authFn, zap.NewNop())(ok)

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set("Authorization", "Bearer t1")
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantBody != "" {
				assert.Contains(t, rec.Body.String(), tt.wantBody)
			}
			if tt.wantStatus == http.StatusUnauthorized {
				assert.NotEmpty(t, rec.Header().Get("WWW-Authenticate"))
			}
		})
	}
}

func TestMetrics_UsesRoutePattern(t *testing.T) {
	collector := observability.NewCollector("test")

	r := chi.NewRouter()
	r.Use(Metrics(collector))
	r.Get("/sessions/{sessionID}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	for _, id := range []string{"a", "b"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/sessions/"+id, nil))
		assert.Equal(t, http.StatusNoContent, rec.Code)
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(
		collector.HTTPRequests.WithLabelValues(http.MethodGet, "/sessions/{sessionID}", "204")))
}
