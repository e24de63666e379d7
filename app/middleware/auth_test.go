package appMiddleware

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/go-crowd-planner/config"
	"github.com/FACorreiaa/go-crowd-planner/internal/types"
)

func signToken(t *testing.T, secret, issuer string, exp time.Time) string {
	t.Helper()
	claims := types.Claims{
		UserID: "user-123",
		Email:  "traveller@example.com",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return s
}

func TestAuthenticate(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	cfg := config.JWTConfig{SecretKey: "test-secret", Issuer: "test-issuer"}

	var gotUserID string
	protected := Authenticate(logger, cfg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUserID, _ = GetUserIDFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	call := func(header string) *httptest.ResponseRecorder {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		if header != "" {
			r.Header.Set("Authorization", header)
		}
		w := httptest.NewRecorder()
		protected.ServeHTTP(w, r)
		return w
	}

	t.Run("valid token", func(t *testing.T) {
		gotUserID = ""
		w := call("Bearer " + signToken(t, "test-secret", "test-issuer", time.Now().Add(time.Hour)))
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "user-123", gotUserID)
	})

	t.Run("missing header", func(t *testing.T) {
		w := call("")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, w.Body.String(), "Authorization header required")
	})

	t.Run("wrong scheme", func(t *testing.T) {
		w := call("Basic abc")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("expired token", func(t *testing.T) {
		w := call("Bearer " + signToken(t, "test-secret", "test-issuer", time.Now().Add(-time.Hour)))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, w.Body.String(), "Token has expired")
	})

	t.Run("wrong secret", func(t *testing.T) {
		w := call("Bearer " + signToken(t, "other-secret", "test-issuer", time.Now().Add(time.Hour)))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("wrong issuer", func(t *testing.T) {
		w := call("Bearer " + signToken(t, "test-secret", "someone-else", time.Now().Add(time.Hour)))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}
