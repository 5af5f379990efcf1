package middlewares

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/markmehq/markme/internal/domain/user"
)

// RequireRole guards a route group behind one of the closed set of roles.
// The switch is exhaustive over user.Role; an unknown value is treated as
// forbidden, never as a pass.
func (m *AuthMiddleware) RequireRole(required user.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		role, ok := RoleFromContext(c)

		if !ok || role == "" {
			abortUnauthorized(c, "Missing identity context")
			return
		}

		allowed := false

		switch role {
		case user.RoleAdmin:
			// admins pass every role gate
			allowed = true
		case user.RoleStudent:
			allowed = required == user.RoleStudent
		}

		if !allowed {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": gin.H{
					"code":    "forbidden",
					"message": "Insufficient role",
				},
			})
			return
		}

		c.Next()
	}
}
