package middlewares

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/gradtrust/portal/internal/domain/account"
)

// RequireRole guards JSON routes that sit behind RequireAPISession.
func RequireRole(required account.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		role, ok := RoleFromContext(c)

		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": gin.H{
					"code":    "unauthorized",
					"message": "Missing identity context",
				},
			})
			return
		}
		if role != required {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": gin.H{
					"code":    "forbidden",
					"message": required.Name() + " role required",
				},
			})
			return
		}
		c.Next()
	}
}
