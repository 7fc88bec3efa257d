package middleware

import (
	"context"
	"slices"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"sage/internal/core/apperror"
	appctx "sage/internal/core/context"
	"sage/internal/domain/catalog"
	"sage/pkg/logger"
)

// HeaderAPIKey carries a catalog API key for machine submissions.
const HeaderAPIKey = "X-API-Key"

// RoleMachine is granted to callers authenticated by a catalog API key.
const RoleMachine = "machine"

// JWTValidator interface for token validation.
type JWTValidator interface {
	ValidateToken(tokenString string) (*appctx.UserContext, error)
}

// APIKeyVerifier resolves a catalog API key.
type APIKeyVerifier interface {
	VerifyAPIKey(ctx context.Context, key string) (*catalog.Catalog, error)
}

// Auth middleware accepts a bearer token or, when keys is non-nil, a catalog
// API key, and populates the user context.
func Auth(validator JWTValidator, keys APIKeyVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		if key := c.GetHeader(HeaderAPIKey); key != "" && keys != nil {
			cat, err := keys.VerifyAPIKey(c.Request.Context(), key)
			if err != nil {
				if appErr, ok := apperror.AsAppError(err); ok {
					_ = c.Error(appErr)
				} else {
					_ = c.Error(apperror.NewInternal(err))
				}
				c.Abort()
				return
			}
			setUser(c, &appctx.UserContext{
				UserID:    "catalog:" + strconv.FormatInt(cat.ID, 10),
				Username:  cat.Name,
				Roles:     []string{RoleMachine},
				CatalogID: cat.ID,
			})
			c.Next()
			return
		}

		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			abortUnauthorized(c, "missing authorization header")
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
			abortUnauthorized(c, "invalid authorization header format")
			return
		}

		user, err := validator.ValidateToken(parts[1])
		if err != nil {
			logger.Debug(c.Request.Context(), "token rejected", "error", err)
			abortUnauthorized(c, "invalid token")
			return
		}

		setUser(c, user)
		c.Next()
	}
}

func setUser(c *gin.Context, user *appctx.UserContext) {
	ctx := appctx.WithUser(c.Request.Context(), user)
	c.Request = c.Request.WithContext(ctx)
	c.Set("user_id", user.UserID)
}

// RequireRole middleware checks if user has any of roles. Admins pass.
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := appctx.GetUser(c.Request.Context())
		if user == nil {
			abortUnauthorized(c, "authentication required")
			return
		}
		if user.IsAdmin {
			c.Next()
			return
		}
		for _, required := range roles {
			if slices.Contains(user.Roles, required) {
				c.Next()
				return
			}
		}
		_ = c.Error(
			apperror.NewForbidden("insufficient permissions").
				WithDetail("required_roles", roles),
		)
		c.Abort()
	}
}

// RequireUser rejects machine callers; the route acts on behalf of a person.
func RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		user := appctx.GetUser(c.Request.Context())
		if user == nil {
			abortUnauthorized(c, "authentication required")
			return
		}
		if user.CatalogID != 0 {
			_ = c.Error(apperror.NewForbidden("API keys may only submit data"))
			c.Abort()
			return
		}
		c.Next()
	}
}

func abortUnauthorized(c *gin.Context, message string) {
	_ = c.Error(apperror.NewUnauthorized(message))
	c.Abort()
}
