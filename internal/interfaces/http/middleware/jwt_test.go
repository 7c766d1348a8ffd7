package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/grievancenet/backend/internal/infrastructure/auth"
	"github.com/grievancenet/backend/internal/infrastructure/config"
	"github.com/grievancenet/backend/internal/infrastructure/logger"
	"github.com/grievancenet/backend/internal/interfaces/http/dto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestJWTService() *auth.JWTService {
	return auth.NewJWTService(config.JWTConfig{
		Secret:                 "test-secret-key-at-least-32-chars",
		RefreshSecret:          "test-refresh-secret-key-32-chars",
		AccessTokenExpiration:  15 * time.Minute,
		RefreshTokenExpiration: 7 * 24 * time.Hour,
		Issuer:                 "test-issuer",
	})
}

func newTestTokenPair(t *testing.T, jwtService *auth.JWTService, role string) (*auth.TokenPair, uuid.UUID) {
	t.Helper()
	userID := uuid.New()
	pair, err := jwtService.GenerateTokenPair(auth.GenerateTokenInput{
		UserID: userID,
		Email:  "citizen@example.com",
		Name:   "Asha",
		Role:   role,
	})
	require.NoError(t, err)
	return pair, userID
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) *dto.ErrorInfo {
	t.Helper()
	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotNil(t, resp.Error)
	return resp.Error
}

type failingBlacklist struct{}

func (failingBlacklist) AddToBlacklist(context.Context, string, time.Duration) error { return nil }
func (failingBlacklist) IsBlacklisted(context.Context, string) (bool, error) {
	return false, errors.New("redis down")
}

func TestJWTAuthMiddleware_ValidToken(t *testing.T) {
	jwtService := newTestJWTService()
	pair, userID := newTestTokenPair(t, jwtService, auth.RoleCitizen)

	router := gin.New()
	router.Use(JWTAuthMiddleware(jwtService))
	router.GET("/test", func(c *gin.Context) {
		claims := GetJWTClaims(c)
		require.NotNil(t, claims)
		assert.Equal(t, userID.String(), claims.UserID)
		assert.Equal(t, userID.String(), GetJWTUserID(c))
		assert.False(t, IsJWTAdmin(c))
		assert.Equal(t, userID.String(), logger.GetUserID(c.Request.Context()))
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set(AuthHeaderKey, BearerPrefix+pair.AccessToken)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestJWTAuthMiddleware_Rejections(t *testing.T) {
	jwtService := newTestJWTService()
	pair, _ := newTestTokenPair(t, jwtService, auth.RoleCitizen)

	expired := auth.NewJWTService(config.JWTConfig{
		Secret:                 "test-secret-key-at-least-32-chars",
		AccessTokenExpiration:  -time.Minute,
		RefreshTokenExpiration: time.Hour,
		Issuer:                 "test-issuer",
	})
	expiredPair, _ := newTestTokenPair(t, expired, auth.RoleCitizen)

	tests := []struct {
		name   string
		header string
		code   string
	}{
		{"missing header", "", "UNAUTHORIZED"},
		{"not bearer", "Basic abc", dto.ErrCodeTokenInvalid},
		{"garbage token", BearerPrefix + "not.a.jwt", dto.ErrCodeTokenInvalid},
		{"refresh token", BearerPrefix + pair.RefreshToken, dto.ErrCodeTokenInvalid},
		{"expired token", BearerPrefix + expiredPair.AccessToken, dto.ErrCodeTokenExpired},
	}

	router := gin.New()
	router.Use(JWTAuthMiddleware(jwtService))
	router.GET("/test", func(c *gin.Context) { c.Status(http.StatusOK) })

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/test", nil)
			if tt.header != "" {
				req.Header.Set(AuthHeaderKey, tt.header)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.Equal(t, tt.code, decodeError(t, w).Code)
		})
	}
}

func TestJWTAuthMiddleware_SkipPaths(t *testing.T) {
	router := gin.New()
	router.Use(JWTAuthMiddlewareWithConfig(JWTMiddlewareConfig{
		JWTService: newTestJWTService(),
		SkipPaths:  []string{"/api/v1/health"},
	}))
	router.GET("/api/v1/health", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestJWTAuthMiddleware_QueryToken(t *testing.T) {
	jwtService := newTestJWTService()
	pair, _ := newTestTokenPair(t, jwtService, auth.RoleCitizen)

	build := func(allow bool) *gin.Engine {
		r := gin.New()
		r.Use(JWTAuthMiddlewareWithConfig(JWTMiddlewareConfig{JWTService: jwtService, AllowQueryToken: allow}))
		r.GET("/stream", func(c *gin.Context) { c.Status(http.StatusOK) })
		return r
	}
	target := "/stream?" + QueryTokenKey + "=" + pair.AccessToken

	t.Run("accepted when allowed", func(t *testing.T) {
		w := httptest.NewRecorder()
		build(true).ServeHTTP(w, httptest.NewRequest(http.MethodGet, target, nil))
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("ignored by default", func(t *testing.T) {
		w := httptest.NewRecorder()
		build(false).ServeHTTP(w, httptest.NewRequest(http.MethodGet, target, nil))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestJWTAuthMiddleware_Blacklist(t *testing.T) {
	jwtService := newTestJWTService()
	pair, _ := newTestTokenPair(t, jwtService, auth.RoleCitizen)
	claims, err := jwtService.ValidateAccessToken(pair.AccessToken)
	require.NoError(t, err)

	t.Run("revoked token is rejected", func(t *testing.T) {
		blacklist := auth.NewInMemoryTokenBlacklist()
		require.NoError(t, blacklist.AddToBlacklist(context.Background(), claims.ID, time.Minute))

		router := gin.New()
		router.Use(JWTAuthMiddlewareWithConfig(JWTMiddlewareConfig{JWTService: jwtService, TokenBlacklist: blacklist}))
		router.GET("/test", func(c *gin.Context) { c.Status(http.StatusOK) })

		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.Header.Set(AuthHeaderKey, BearerPrefix+pair.AccessToken)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, dto.ErrCodeTokenRevoked, decodeError(t, w).Code)
	})

	t.Run("blacklist outage fails open", func(t *testing.T) {
		router := gin.New()
		router.Use(JWTAuthMiddlewareWithConfig(JWTMiddlewareConfig{JWTService: jwtService, TokenBlacklist: failingBlacklist{}}))
		router.GET("/test", func(c *gin.Context) { c.Status(http.StatusOK) })

		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.Header.Set(AuthHeaderKey, BearerPrefix+pair.AccessToken)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
	})
}

func TestRequireAdmin(t *testing.T) {
	jwtService := newTestJWTService()
	adminPair, _ := newTestTokenPair(t, jwtService, auth.RoleAdmin)
	citizenPair, _ := newTestTokenPair(t, jwtService, auth.RoleCitizen)

	router := gin.New()
	router.GET("/admin", JWTAuthMiddleware(jwtService), RequireAdmin(), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	tests := []struct {
		name     string
		token    string
		expected int
	}{
		{"admin allowed", adminPair.AccessToken, http.StatusOK},
		{"citizen forbidden", citizenPair.AccessToken, http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/admin", nil)
			req.Header.Set(AuthHeaderKey, BearerPrefix+tt.token)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)
			assert.Equal(t, tt.expected, w.Code)
		})
	}
}

func TestGetJWTClaims_Unauthenticated(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	assert.Nil(t, GetJWTClaims(c))
	assert.Empty(t, GetJWTUserID(c))
	assert.False(t, IsJWTAdmin(c))
}
