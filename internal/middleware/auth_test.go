package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/basharatali122/hamza-website-backend/configs"
	"github.com/basharatali122/hamza-website-backend/internal/logger"
	"github.com/basharatali122/hamza-website-backend/internal/models"
)

const testSecret = "test-secret"

func signToken(t *testing.T, claims jwt.MapClaims, secret string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func setupAuthTest(t *testing.T) {
	t.Helper()
	logger.Log = zap.NewNop()
	configs.AppConfig.JWT.SECRET = testSecret
}

func doAuthenticated(t *testing.T, authHeader string, next http.HandlerFunc) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	rec := httptest.NewRecorder()
	Authenticated(next).ServeHTTP(rec, req)
	return rec
}

func TestAuthenticatedPopulatesContext(t *testing.T) {
	setupAuthTest(t)
	token := signToken(t, jwt.MapClaims{
		"sub":  "user-123",
		"role": "admin",
		"exp":  time.Now().Add(time.Hour).Unix(),
	}, testSecret)

	rec := doAuthenticated(t, "Bearer "+token, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "user-123", UserID(r.Context()))
		assert.Equal(t, models.RoleAdmin, Role(r.Context()))
	})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAuthenticatedRejections(t *testing.T) {
	setupAuthTest(t)
	never := func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	}

	t.Run("missing header", func(t *testing.T) {
		rec := doAuthenticated(t, "", never)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("not bearer", func(t *testing.T) {
		rec := doAuthenticated(t, "Basic abc", never)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("wrong secret", func(t *testing.T) {
		token := signToken(t, jwt.MapClaims{
			"sub": "user-123",
			"exp": time.Now().Add(time.Hour).Unix(),
		}, "other-secret")
		rec := doAuthenticated(t, "Bearer "+token, never)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("expired", func(t *testing.T) {
		token := signToken(t, jwt.MapClaims{
			"sub": "user-123",
			"exp": time.Now().Add(-time.Hour).Unix(),
		}, testSecret)
		rec := doAuthenticated(t, "Bearer "+token, never)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("missing subject", func(t *testing.T) {
		token := signToken(t, jwt.MapClaims{
			"exp": time.Now().Add(time.Hour).Unix(),
		}, testSecret)
		rec := doAuthenticated(t, "Bearer "+token, never)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestRequireRole(t *testing.T) {
	setupAuthTest(t)

	adminOnly := RequireRole(models.RoleAdmin)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	run := func(role string) *httptest.ResponseRecorder {
		token := signToken(t, jwt.MapClaims{
			"sub":  "user-123",
			"role": role,
			"exp":  time.Now().Add(time.Hour).Unix(),
		}, testSecret)
		req := httptest.NewRequest(http.MethodGet, "/admin", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		Authenticated(adminOnly).ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusNoContent, run("admin").Code)
	assert.Equal(t, http.StatusForbidden, run("customer").Code)
}
