package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	// OwnerIDHeader carries the authenticated owner identity. An upstream
	// identity proxy validates credentials and injects this header.
	OwnerIDHeader = "X-Owner-ID"

	// OwnerIDKey is the key used to store the owner ID in the context
	OwnerIDKey = "owner_id"
)

// OwnerAuth middleware requires a valid owner identity on every wallet route.
// Requests without a parseable owner ID are rejected before reaching handlers.
func OwnerAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.GetHeader(OwnerIDHeader)
		if raw == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": gin.H{
					"code":    "UNAUTHORIZED",
					"message": "Missing owner identity",
				},
			})
			return
		}

		ownerID, err := uuid.Parse(raw)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": gin.H{
					"code":    "UNAUTHORIZED",
					"message": "Invalid owner identity",
				},
			})
			return
		}

		c.Set(OwnerIDKey, ownerID)
		c.Next()
	}
}

// GetOwnerID retrieves the authenticated owner ID from the gin context
func GetOwnerID(c *gin.Context) (uuid.UUID, bool) {
	if id, exists := c.Get(OwnerIDKey); exists {
		if ownerID, ok := id.(uuid.UUID); ok {
			return ownerID, true
		}
	}
	return uuid.Nil, false
}
