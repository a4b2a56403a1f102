package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/geet-h17/canvas-lms/internal/models"
	appErrors "github.com/geet-h17/canvas-lms/pkg/errors"
	"github.com/geet-h17/canvas-lms/pkg/response"
)

// RequireRoles restricts a route to callers holding one of the given roles.
// It must run after JWT, which stores the parsed claims on the context.
func RequireRoles(roles ...models.UserRole) gin.HandlerFunc {
	allowed := make(map[models.UserRole]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}

	return func(c *gin.Context) {
		claimsValue, exists := c.Get(ContextUserKey)
		if !exists {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		claims := claimsValue.(*models.JWTClaims)

		if _, ok := allowed[claims.Role]; !ok {
			response.Error(c, appErrors.ErrForbidden)
			c.Abort()
			return
		}

		c.Next()
	}
}
