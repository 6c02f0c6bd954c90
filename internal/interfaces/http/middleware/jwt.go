package middleware

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/subsync/backend/internal/infrastructure/auth"
	"github.com/subsync/backend/internal/interfaces/http/dto"
)

// Context keys set by the JWT middleware.
const (
	ClaimsKey     = "jwt_claims"
	CustomerIDKey = "jwt_customer_id"
	RoleKey       = "jwt_role"
	AuthHeaderKey = "Authorization"
	BearerPrefix  = "Bearer "
)

// JWTAuth validates the bearer token and stores the principal on the gin
// context.
func JWTAuth(jwtService *auth.JWTService) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader(AuthHeaderKey)
		if !strings.HasPrefix(header, BearerPrefix) {
			abortWithCode(c, dto.ErrCodeUnauthorized, "missing bearer token")
			return
		}

		claims, err := jwtService.ValidateToken(strings.TrimPrefix(header, BearerPrefix))
		if err != nil {
			code := dto.ErrCodeTokenInvalid
			if errors.Is(err, auth.ErrExpiredToken) {
				code = dto.ErrCodeTokenExpired
			}
			abortWithCode(c, code, err.Error())
			return
		}

		customerID, err := claims.CustomerUUID()
		if err != nil {
			abortWithCode(c, dto.ErrCodeTokenInvalid, "malformed customer id claim")
			return
		}

		c.Set(ClaimsKey, claims)
		c.Set(CustomerIDKey, customerID)
		c.Set(RoleKey, claims.Role)
		c.Next()
	}
}

// RequireRole gates a route group to one role.
func RequireRole(role auth.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		if got, ok := c.Get(RoleKey); !ok || got.(auth.Role) != role {
			abortWithCode(c, dto.ErrCodeForbidden, "insufficient role")
			return
		}
		c.Next()
	}
}

// CustomerID returns the authenticated customer id from the gin context.
func CustomerID(c *gin.Context) (uuid.UUID, bool) {
	v, ok := c.Get(CustomerIDKey)
	if !ok {
		return uuid.Nil, false
	}
	id, ok := v.(uuid.UUID)
	return id, ok
}

// RoleOf returns the authenticated principal's role.
func RoleOf(c *gin.Context) auth.Role {
	v, ok := c.Get(RoleKey)
	if !ok {
		return ""
	}
	role, _ := v.(auth.Role)
	return role
}

func abortWithCode(c *gin.Context, code, message string) {
	c.AbortWithStatusJSON(dto.GetHTTPStatus(code), dto.NewErrorResponse(code, message))
}
