package auth

import (
	"errors"
	"net/http"

	"quadrant/backend/internal/models"
	"quadrant/backend/internal/store"

	"github.com/gin-gonic/gin"
)

const userKey = "user"

// AccountMiddleware loads the authenticated account. It must be used AFTER AuthMiddleware.
// Tokens that outlive their account are rejected.
func AccountMiddleware(s store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := UserID(c)
		if !ok {
			// This should not happen if AuthMiddleware is used before it
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
			return
		}

		user, err := s.GetUser(c.Request.Context(), userID)
		if errors.Is(err, store.ErrNotFound) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authenticated user not found"})
			return
		}
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to load user"})
			return
		}

		c.Set(userKey, user)
		c.Next()
	}
}

// Account returns the user loaded by AccountMiddleware.
func Account(c *gin.Context) *models.User {
	return c.MustGet(userKey).(*models.User)
}
