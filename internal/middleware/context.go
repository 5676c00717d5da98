package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/windoze95/voicepack-api/internal/models"
	"github.com/windoze95/voicepack-api/internal/util"
)

// UserGetter loads a user by ID.
type UserGetter interface {
	GetUserByID(userID uint) (*models.User, error)
}

// AttachUserToContext resolves the token's user ID to a full user record.
// The stored user is nil for anonymous callers and for deleted accounts, so
// handlers behind OptionalTokenMiddleware can treat both the same way.
func AttachUserToContext(users UserGetter) gin.HandlerFunc {
	return func(c *gin.Context) {
		var user *models.User
		if userID, err := util.GetUserIDFromContext(c); err == nil {
			if u, err := users.GetUserByID(userID); err == nil {
				user = u
			}
		}
		c.Set(util.UserKey, user)
		c.Next()
	}
}
