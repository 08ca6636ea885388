package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"graphgate/internal/common"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
)

const testSecret = "test-secret"

func signToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(testSecret))
	assert.NoError(t, err)
	return signed
}

func runJWT(t *testing.T, authHeader string) (*httptest.ResponseRecorder, uuid.UUID, bool) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/v1/domains", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	var gotUserID uuid.UUID
	var gotOK bool
	handler := JWTMiddleware(testSecret, "")(func(c echo.Context) error {
		gotUserID, gotOK = common.GetUserIDFromContext(c.Request().Context())
		return c.NoContent(http.StatusOK)
	})

	if err := handler(c); err != nil {
		e.HTTPErrorHandler(err, c)
	}
	return rec, gotUserID, gotOK
}

func TestJWTMiddleware_ValidToken(t *testing.T) {
	userID := uuid.New()
	token := signToken(t, jwt.MapClaims{
		"sub":   userID.String(),
		"email": "alice@example.com",
		"exp":   time.Now().Add(time.Hour).Unix(),
	})

	rec, gotUserID, ok := runJWT(t, "Bearer "+token)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, ok)
	assert.Equal(t, userID, gotUserID)
}

func TestJWTMiddleware_MissingHeader(t *testing.T) {
	rec, _, ok := runJWT(t, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.False(t, ok)
}

func TestJWTMiddleware_NotBearer(t *testing.T) {
	rec, _, _ := runJWT(t, "Basic abc")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestJWTMiddleware_BadSignature(t *testing.T) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": uuid.New().String()})
	signed, err := token.SignedString([]byte("wrong-secret"))
	assert.NoError(t, err)

	rec, _, _ := runJWT(t, "Bearer "+signed)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestJWTMiddleware_SubNotUUID(t *testing.T) {
	tokenStr := signToken(t, jwt.MapClaims{
		"sub": "user-42",
		"exp": time.Now().Add(time.Hour).Unix(),
	})

	rec, _, _ := runJWT(t, "Bearer "+tokenStr)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func runInternal(t *testing.T, configuredToken, sentToken string) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/internal/provision", nil)
	if sentToken != "" {
		req.Header.Set("X-Internal-Token", sentToken)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	handler := InternalTokenMiddleware(configuredToken)(func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})
	if err := handler(c); err != nil {
		e.HTTPErrorHandler(err, c)
	}
	return rec
}

func TestInternalTokenMiddleware_Match(t *testing.T) {
	rec := runInternal(t, "svc-token", "svc-token")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestInternalTokenMiddleware_Mismatch(t *testing.T) {
	rec := runInternal(t, "svc-token", "other")
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestInternalTokenMiddleware_DisabledWhenUnconfigured(t *testing.T) {
	// No configured token means the internal surface is off entirely, even
	// for an empty header match.
	rec := runInternal(t, "", "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
