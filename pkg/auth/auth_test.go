package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-with-enough-entropy"

func newPair(t *testing.T, expiry time.Duration) (*JWTGenerator, *JWTValidator) {
	t.Helper()
	gen, err := NewJWTGenerator(JWTGeneratorConfig{
		SecretKey:  testSecret,
		Issuer:     "canvas-history",
		Audience:   []string{"authenticated"},
		ExpiryTime: expiry,
	})
	require.NoError(t, err)
	val, err := NewJWTValidator(JWTConfig{
		SigningMethod: "HS256",
		SecretKey:     testSecret,
		Issuer:        "canvas-history",
		Audience:      []string{"authenticated"},
	})
	require.NoError(t, err)
	return gen, val
}

func TestJWTValidator_RoundTrip(t *testing.T) {
	gen, val := newPair(t, time.Hour)

	token, err := gen.GenerateToken("user-1", "a@example.com", nil)
	require.NoError(t, err)

	claims, err := val.ValidateToken("Bearer " + token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, "a@example.com", claims.Email)
}

func TestJWTValidator_Failures(t *testing.T) {
	gen, val := newPair(t, time.Hour)

	t.Run("missing", func(t *testing.T) {
		_, err := val.ValidateToken("  ")
		assert.ErrorIs(t, err, ErrMissingToken)
	})

	t.Run("bad signature", func(t *testing.T) {
		other, err := NewJWTGenerator(JWTGeneratorConfig{SecretKey: "another-secret", Issuer: "canvas-history", Audience: []string{"authenticated"}})
		require.NoError(t, err)
		token, err := other.GenerateToken("user-1", "", nil)
		require.NoError(t, err)
		_, err = val.ValidateToken(token)
		assert.ErrorIs(t, err, ErrInvalidSignature)
	})

	t.Run("expired", func(t *testing.T) {
		claims := &Claims{
			UserID: "user-1",
			RegisteredClaims: jwt.RegisteredClaims{
				Issuer:    "canvas-history",
				Audience:  []string{"authenticated"},
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
			},
		}
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
		require.NoError(t, err)
		_, err = val.ValidateToken(token)
		assert.ErrorIs(t, err, ErrExpiredToken)
	})

	t.Run("wrong audience", func(t *testing.T) {
		other, err := NewJWTGenerator(JWTGeneratorConfig{SecretKey: testSecret, Issuer: "canvas-history", Audience: []string{"service_role"}})
		require.NoError(t, err)
		token, err := other.GenerateToken("user-1", "", nil)
		require.NoError(t, err)
		_, err = val.ValidateToken(token)
		assert.ErrorIs(t, err, ErrInvalidClaims)
	})

	t.Run("wrong issuer", func(t *testing.T) {
		other, err := NewJWTGenerator(JWTGeneratorConfig{SecretKey: testSecret, Issuer: "someone-else", Audience: []string{"authenticated"}})
		require.NoError(t, err)
		token, err := other.GenerateToken("user-1", "", nil)
		require.NoError(t, err)
		_, err = val.ValidateToken(token)
		assert.ErrorIs(t, err, ErrInvalidClaims)
	})

	t.Run("unexpected algorithm", func(t *testing.T) {
		claims := &Claims{
			UserID: "user-1",
			RegisteredClaims: jwt.RegisteredClaims{
				Issuer:    "canvas-history",
				Audience:  []string{"authenticated"},
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			},
		}
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte(testSecret))
		require.NoError(t, err)
		_, err = val.ValidateToken(token)
		assert.ErrorIs(t, err, ErrInvalidSignature)
	})

	t.Run("within leeway", func(t *testing.T) {
		claims := &Claims{
			UserID: "user-1",
			RegisteredClaims: jwt.RegisteredClaims{
				Issuer:    "canvas-history",
				Audience:  []string{"authenticated"},
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(-5 * time.Second)),
			},
		}
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
		require.NoError(t, err)
		_, err = val.ValidateToken(token)
		assert.NoError(t, err)
	})

	t.Run("missing subject", func(t *testing.T) {
		token, err := gen.GenerateToken("", "", nil)
		require.NoError(t, err)
		_, err = val.ValidateToken(token)
		assert.ErrorIs(t, err, ErrInvalidClaims)
	})
}

func TestNewJWTValidator_Config(t *testing.T) {
	_, err := NewJWTValidator(JWTConfig{SigningMethod: "HS256"})
	assert.Error(t, err)
	_, err = NewJWTValidator(JWTConfig{SigningMethod: "RS256"})
	assert.Error(t, err)
	_, err = NewJWTValidator(JWTConfig{SigningMethod: "ES512", SecretKey: "x"})
	assert.Error(t, err)
}

func TestJWTAuthenticator_UsesRoleClaim(t *testing.T) {
	gen, val := newPair(t, time.Hour)
	token, err := gen.GenerateToken("user-2", "", nil)
	require.NoError(t, err)

	user, err := NewJWTAuthenticator(val).Authenticate(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "user-2", user.UserID)
	assert.Equal(t, []string{"authenticated"}, user.Roles)
}

func TestNoopAuthenticator(t *testing.T) {
	user, err := NoopAuthenticator{}.Authenticate(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, AnonymousUserID, user.UserID)

	user, err = NoopAuthenticator{}.Authenticate(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, "alice", user.UserID)
}

func TestUserContext(t *testing.T) {
	_, err := GetUserFromContext(context.Background())
	assert.ErrorIs(t, err, ErrNoUser)

	ctx := SetUserInContext(context.Background(), &UserContext{UserID: "u"})
	user, err := GetUserFromContext(ctx)
	require.NoError(t, err)
	assert.Equal(t, "u", user.UserID)
}
