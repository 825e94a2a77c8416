package middleware

import (
	"net/http"
	"strings"

	"floorops/utils"

	"github.com/gin-gonic/gin"
)

// Context keys set by AuthMiddleware.
const (
	StaffIDKey   = "staffID"
	RoleKey      = "role"
	StaffNameKey = "staffName"
)

// AuthMiddleware admits requests carrying a valid staff token whose role is one of
// roles.
func AuthMiddleware(tokens *utils.TokenIssuer, roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := c.Cookie("token")
		if err != nil {
			authHeader := c.GetHeader("Authorization")
			if authHeader == "" {
				c.JSON(http.StatusUnauthorized, gin.H{"error": "Authorization token not provided"})
				c.Abort()
				return
			}
			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || parts[0] != "Bearer" {
				c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid Authorization header format"})
				c.Abort()
				return
			}
			token = parts[1]
		}

		claims, err := tokens.ValidateToken(token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid authorization token"})
			c.Abort()
			return
		}
		if !hasRole(roles, claims.Role) {
			c.JSON(http.StatusForbidden, gin.H{"error": "Role not allowed"})
			c.Abort()
			return
		}

		c.Set(StaffIDKey, claims.ID)
		c.Set(RoleKey, claims.Role)
		c.Set(StaffNameKey, claims.Name)
		c.Next()
	}
}

func hasRole(roles []string, role string) bool {
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}
