package middleware

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"reward-giveaway-backend/internal/features/permission"
)

// AdminOnly rejects requests from users outside the admin allowlist. Must run
// after TelegramInitData so the user id is on the context.
func AdminOnly(gate permission.Gate, action string) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := UserID(c)
		if userID == 0 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}

		actor := strconv.FormatInt(userID, 10)
		if !gate.HasPermission(actor, action) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Admin access required"})
			return
		}

		c.Set("actor", actor)
		c.Next()
	}
}

// Actor returns the admin actor id set by AdminOnly.
func Actor(c *gin.Context) string {
	if actor, exists := c.Get("actor"); exists {
		if s, ok := actor.(string); ok {
			return s
		}
	}
	return ""
}
