package util

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/windoze95/voicepack-api/internal/models"
)

// Keys under which the auth middleware stores the caller.
const (
	UserIDKey = "user_id"
	UserKey   = "user"
)

var (
	// ErrNoCaller is returned when the request carries no authenticated caller.
	ErrNoCaller = errors.New("request has no authenticated user")
	// ErrCallerType is returned when a context value has an unexpected type.
	ErrCallerType = errors.New("user information is of the wrong type")
)

func fromContext[T any](c *gin.Context, key string) (T, error) {
	var zero T
	val, ok := c.Get(key)
	if !ok || val == nil {
		return zero, ErrNoCaller
	}
	typed, ok := val.(T)
	if !ok {
		return zero, ErrCallerType
	}
	return typed, nil
}

// GetUserFromContext returns the user loaded by AttachUserToContext.
func GetUserFromContext(c *gin.Context) (*models.User, error) {
	user, err := fromContext[*models.User](c, UserKey)
	if err == nil && user == nil {
		return nil, ErrNoCaller
	}
	return user, err
}

// GetUserIDFromContext returns the ID taken from a verified access token.
func GetUserIDFromContext(c *gin.Context) (uint, error) {
	return fromContext[uint](c, UserIDKey)
}

// GetOptionalUserID returns the caller's ID, or nil for anonymous requests.
func GetOptionalUserID(c *gin.Context) *uint {
	userID, err := GetUserIDFromContext(c)
	if err != nil {
		return nil
	}
	return &userID
}
