package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/toolforge/backend/internal/infrastructure/auth"
	"github.com/toolforge/backend/internal/infrastructure/logger"
	"github.com/toolforge/backend/internal/interfaces/http/dto"
)

// JWT context keys
const (
	JWTClaimsKey  = "jwt_claims"
	JWTUserIDKey  = "jwt_user_id"
	AuthHeaderKey = "Authorization"
	BearerPrefix  = "Bearer "
)

// OptionalJWTAuth extracts and validates a Bearer token when one is
// present. A missing or invalid token does not fail the request: the gate
// treats such callers as anonymous and meters them by address instead.
func OptionalJWTAuth(jwtService *auth.JWTService) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := bearerToken(c)
		if tokenString == "" {
			c.Next()
			return
		}

		claims, err := jwtService.ValidateAccessToken(tokenString)
		if err != nil {
			c.Next()
			return
		}

		setClaims(c, claims)
		c.Next()
	}
}

// RequireJWTAuth rejects requests without a valid Bearer token
func RequireJWTAuth(jwtService *auth.JWTService, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := bearerToken(c)
		if tokenString == "" {
			abortUnauthorized(c, dto.ErrCodeUnauthorized, "Authentication required")
			return
		}

		claims, err := jwtService.ValidateAccessToken(tokenString)
		if err != nil {
			if log != nil {
				log.Warn("JWT validation failed",
					zap.Error(err),
					zap.String("path", c.Request.URL.Path),
				)
			}
			code := dto.ErrCodeTokenInvalid
			if err == auth.ErrExpiredToken {
				code = dto.ErrCodeTokenExpired
			}
			abortUnauthorized(c, code, "Invalid or expired token")
			return
		}

		setClaims(c, claims)

		ctx := c.Request.Context()
		ctx, _ = logger.WithUserID(ctx, logger.FromContext(ctx), claims.UserID)
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}

// RequireAdmin rejects requests whose validated claims lack the admin role.
// Must run after RequireJWTAuth.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := GetJWTClaims(c)
		if claims == nil {
			abortUnauthorized(c, dto.ErrCodeUnauthorized, "Authentication required")
			return
		}
		if !claims.IsAdmin() {
			c.AbortWithStatusJSON(http.StatusForbidden,
				dto.NewErrorResponse(dto.ErrCodeForbidden, "Admin role required"))
			return
		}
		c.Next()
	}
}

// bearerToken extracts the token from the Authorization header
func bearerToken(c *gin.Context) string {
	authHeader := c.GetHeader(AuthHeaderKey)
	if authHeader == "" || !strings.HasPrefix(authHeader, BearerPrefix) {
		return ""
	}
	return strings.TrimPrefix(authHeader, BearerPrefix)
}

// setClaims stores validated claims in the gin context
func setClaims(c *gin.Context, claims *auth.Claims) {
	c.Set(JWTClaimsKey, claims)
	c.Set(JWTUserIDKey, claims.UserID)
}

// abortUnauthorized aborts the request with a 401 envelope
func abortUnauthorized(c *gin.Context, code, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, dto.NewErrorResponse(code, message))
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
	if userID, exists := c.Get(JWTUserIDKey); exists {
		if id, ok := userID.(string); ok {
			return id
		}
	}
	return ""
}

// GetAccountID returns the authenticated account id, or nil for anonymous
// callers. A token whose subject is not a uuid counts as anonymous.
func GetAccountID(c *gin.Context) *uuid.UUID {
	claims := GetJWTClaims(c)
	if claims == nil {
		return nil
	}
	id, err := claims.GetUserUUID()
	if err != nil {
		return nil
	}
	return &id
}
