package di

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"canvashistory/infrastructure/auth"
	"canvashistory/infrastructure/config"
	pkgauth "canvashistory/pkg/auth"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Environment = "test"
	cfg.LogLevel = "error"
	cfg.Events.Region = "us-east-1"
	return cfg
}

func TestProvideAuthenticator(t *testing.T) {
	t.Run("none", func(t *testing.T) {
		a, err := ProvideAuthenticator(testConfig(), zap.NewNop())
		require.NoError(t, err)
		assert.IsType(t, pkgauth.NoopAuthenticator{}, a)
	})

	t.Run("jwt", func(t *testing.T) {
		cfg := testConfig()
		cfg.Auth.Mode = config.AuthModeJWT
		cfg.Auth.JWTSecret = "secret"
		cfg.Auth.JWTAudience = nil

		a, err := ProvideAuthenticator(cfg, zap.NewNop())
		require.NoError(t, err)
		require.IsType(t, &pkgauth.JWTAuthenticator{}, a)

		gen, err := pkgauth.NewJWTGenerator(pkgauth.JWTGeneratorConfig{SecretKey: "secret"})
		require.NoError(t, err)
		token, err := gen.GenerateToken("u1", "", nil)
		require.NoError(t, err)

		user, err := a.Authenticate(context.Background(), token)
		require.NoError(t, err)
		assert.Equal(t, "u1", user.UserID)
	})

	t.Run("supabase", func(t *testing.T) {
		cfg := testConfig()
		cfg.Auth.Mode = config.AuthModeSupabase
		cfg.Auth.SupabaseURL = "https://example.supabase.co"
		cfg.Auth.SupabaseKey = "service-role"

		a, err := ProvideAuthenticator(cfg, zap.NewNop())
		require.NoError(t, err)
		assert.IsType(t, &auth.BreakerAuthenticator{}, a)

		checks := ProvideReadinessChecks(a)
		require.Contains(t, checks, "auth")
		assert.NoError(t, checks["auth"](context.Background()))
	})
}

func TestProvideReadinessChecks_NoBreaker(t *testing.T) {
	assert.Empty(t, ProvideReadinessChecks(pkgauth.NoopAuthenticator{}))
}

func TestProvideLogger_RejectsBadLevel(t *testing.T) {
	cfg := testConfig()
	cfg.LogLevel = "loud"
	_, err := ProvideLogger(cfg)
	assert.Error(t, err)
}

func TestInitializeContainer(t *testing.T) {
	ctx := context.Background()
	container, err := InitializeContainer(ctx, testConfig())
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	container.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	session, err := container.Registry.Open(ctx, "board", "alice")
	require.NoError(t, err)
	assert.NotNil(t, session.History)

	closeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	require.NoError(t, container.Close(closeCtx))
	assert.Equal(t, 0, container.Registry.Len())
}
