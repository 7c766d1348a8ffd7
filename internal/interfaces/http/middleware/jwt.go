package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/grievancenet/backend/internal/domain/shared"
	"github.com/grievancenet/backend/internal/infrastructure/auth"
	"github.com/grievancenet/backend/internal/infrastructure/logger"
	"github.com/grievancenet/backend/internal/interfaces/http/dto"
	"go.uber.org/zap"
)

// JWT context keys
const (
	JWTClaimsKey  = "jwt_claims"
	JWTUserIDKey  = "jwt_user_id"
	JWTAdminKey   = "jwt_admin"
	AuthHeaderKey = "Authorization"
	BearerPrefix  = "Bearer "

	// QueryTokenKey carries the access token for clients that cannot set
	// headers (EventSource, browser WebSocket).
	QueryTokenKey = "access_token"
)

// JWTMiddlewareConfig holds configuration for JWT middleware
type JWTMiddlewareConfig struct {
	// JWTService is required for token validation
	JWTService *auth.JWTService
	// TokenBlacklist is optional for checking revoked tokens
	TokenBlacklist auth.TokenBlacklist
	// SkipPaths are paths that don't require authentication
	SkipPaths []string
	// AllowQueryToken accepts ?access_token= when no Authorization header is sent
	AllowQueryToken bool
	Logger          *zap.Logger
}

// JWTAuthMiddleware creates JWT authentication middleware
func JWTAuthMiddleware(jwtService *auth.JWTService) gin.HandlerFunc {
	return JWTAuthMiddlewareWithConfig(JWTMiddlewareConfig{JWTService: jwtService})
}

// JWTAuthMiddlewareWithConfig creates JWT authentication middleware with custom config
func JWTAuthMiddlewareWithConfig(cfg JWTMiddlewareConfig) gin.HandlerFunc {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	skip := make(map[string]struct{}, len(cfg.SkipPaths))
	for _, p := range cfg.SkipPaths {
		skip[p] = struct{}{}
	}

	return func(c *gin.Context) {
		if _, ok := skip[c.Request.URL.Path]; ok {
			c.Next()
			return
		}

		tokenString, err := extractToken(c, cfg.AllowQueryToken)
		if err != nil {
			abortUnauthorized(c, log, err)
			return
		}

		claims, err := cfg.JWTService.ValidateAccessToken(tokenString)
		if err != nil {
			abortUnauthorized(c, log, err)
			return
		}

		if cfg.TokenBlacklist != nil && claims.ID != "" {
			// Fail open: a blacklist outage must not lock every citizen out.
			blacklisted, err := cfg.TokenBlacklist.IsBlacklisted(c.Request.Context(), claims.ID)
			if err != nil {
				log.Error("Failed to check token blacklist",
					zap.String("jti", claims.ID),
					zap.Error(err))
			} else if blacklisted {
				abortUnauthorized(c, log, auth.ErrTokenBlacklisted)
				return
			}
		}

		c.Set(JWTClaimsKey, claims)
		c.Set(JWTUserIDKey, claims.UserID)
		c.Set(JWTAdminKey, claims.IsAdmin())
		c.Request = c.Request.WithContext(logger.WithUserID(c.Request.Context(), claims.UserID))

		log.Debug("JWT authentication successful",
			zap.String("user_id", claims.UserID),
			zap.String("role", claims.Role),
		)
		c.Next()
	}
}

func extractToken(c *gin.Context, allowQuery bool) (string, error) {
	header := c.GetHeader(AuthHeaderKey)
	if header == "" {
		if allowQuery {
			if token := c.Query(QueryTokenKey); token != "" {
				return token, nil
			}
		}
		return "", errMissingToken
	}
	if !strings.HasPrefix(header, BearerPrefix) {
		return "", errMalformedHeader
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, BearerPrefix))
	if token == "" {
		return "", errMissingToken
	}
	return token, nil
}

var (
	errMissingToken    = errors.New("missing authorization token")
	errMalformedHeader = errors.New("invalid authorization header format")
)

func abortUnauthorized(c *gin.Context, log *zap.Logger, err error) {
	log.Warn("JWT authentication failed",
		zap.Error(err),
		zap.String("path", c.Request.URL.Path),
	)

	code, message := shared.CodeUnauthorized, "Authentication required"
	switch {
	case errors.Is(err, auth.ErrExpiredToken):
		code, message = dto.ErrCodeTokenExpired, "Token has expired"
	case errors.Is(err, auth.ErrTokenBlacklisted):
		code, message = dto.ErrCodeTokenRevoked, "Token has been revoked"
	case errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrInvalidTokenType),
		errors.Is(err, auth.ErrTokenNotYetValid),
		errors.Is(err, auth.ErrInvalidClaims),
		errors.Is(err, errMalformedHeader):
		code, message = dto.ErrCodeTokenInvalid, "Invalid token"
	}

	c.AbortWithStatusJSON(http.StatusUnauthorized,
		dto.NewErrorResponseWithRequestID(code, message, c.GetString(RequestIDKey)))
}

// RequireAdmin rejects callers whose token does not carry the admin role.
// It must run after the JWT middleware.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !IsJWTAdmin(c) {
			c.AbortWithStatusJSON(http.StatusForbidden,
				dto.NewErrorResponseWithRequestID(shared.CodeForbidden, "Administrator role required", c.GetString(RequestIDKey)))
			return
		}
		c.Next()
	}
}

// GetJWTClaims retrieves JWT claims from gin.Context
func GetJWTClaims(c *gin.Context) *auth.Claims {
	if claims, exists := c.Get(JWTClaimsKey); exists {
		if jwtClaims, ok := claims.(*auth.Claims); ok {
			return jwtClaims
		}
	}
	return nil
}

// GetJWTUserID retrieves the user ID from JWT claims in context
func GetJWTUserID(c *gin.Context) string {
	return c.GetString(JWTUserIDKey)
}

// IsJWTAdmin reports whether the authenticated caller is an administrator
func IsJWTAdmin(c *gin.Context) bool {
	return c.GetBool(JWTAdminKey)
}
