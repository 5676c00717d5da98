package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/windoze95/voicepack-api/internal/logger"
	"github.com/windoze95/voicepack-api/internal/middleware"
	"github.com/windoze95/voicepack-api/internal/models"
	"github.com/windoze95/voicepack-api/internal/repository"
	"github.com/windoze95/voicepack-api/internal/service"
	"github.com/windoze95/voicepack-api/internal/util"
	"go.uber.org/zap"
)

// UserHandler serves account, session and voice-settings routes.
type UserHandler struct {
	Service *service.UserService
}

// NewUserHandler returns a UserHandler backed by userService.
func NewUserHandler(userService *service.UserService) *UserHandler {
	return &UserHandler{Service: userService}
}

type signupRequest struct {
	Username  string `json:"username" binding:"required"`
	FirstName string `json:"first_name"`
	Email     string `json:"email" binding:"required"`
	Password  string `json:"password" binding:"required"`
}

// validate runs the service's field checks in the order a client would fix
// them.
func (r signupRequest) validate(s *service.UserService) error {
	if err := s.ValidateUsername(r.Username); err != nil {
		return err
	}
	if err := s.ValidateEmail(r.Email); err != nil {
		return err
	}
	return s.ValidatePassword(r.Password)
}

// Signup registers an account and opens a session for it.
func (h *UserHandler) Signup(c *gin.Context) {
	var req signupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "username, email and password are required"})
		return
	}
	if err := req.validate(h.Service); err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, repository.ErrUsernameTaken) {
			status = http.StatusConflict
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}

	user, err := h.Service.CreateUser(req.Username, req.FirstName, req.Email, req.Password)
	switch {
	case errors.Is(err, repository.ErrUsernameTaken), errors.Is(err, repository.ErrEmailTaken):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	case err != nil:
		logger.FromGin(c).Error("signup failed", zap.String("username", req.Username), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create account"})
		return
	}

	h.startSession(c, user, "account created")
}

// Login exchanges a username and password for a session.
func (h *UserHandler) Login(c *gin.Context) {
	var req struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "username and password are required"})
		return
	}

	user, err := h.Service.LoginUser(req.Username, req.Password)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}

	h.startSession(c, user, "logged in")
}

// startSession issues a token pair for user and writes the session response.
func (h *UserHandler) startSession(c *gin.Context, user *models.User, message string) {
	tokens, err := middleware.IssueTokens(h.Service.Cfg.EnvVars.JwtSecretKey, user.ID)
	if err != nil {
		logger.FromGin(c).Error("failed to issue tokens", zap.Uint("user_id", user.ID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to start session"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"access_token":  tokens.AccessToken,
		"refresh_token": tokens.RefreshToken,
		"message":       message,
		"user":          service.ToUserResponse(user),
	})
}

// Refresh trades a refresh token for a new token pair.
func (h *UserHandler) Refresh(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refresh_token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "refresh_token is required"})
		return
	}

	secret := h.Service.Cfg.EnvVars.JwtSecretKey
	userID, err := middleware.ParseRefreshToken(secret, req.RefreshToken)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}

	tokens, err := middleware.IssueTokens(secret, userID)
	if err != nil {
		logger.FromGin(c).Error("failed to reissue tokens", zap.Uint("user_id", userID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to refresh session"})
		return
	}
	c.JSON(http.StatusOK, tokens)
}

// Verify reports whether the caller's access token still maps to an account.
func (h *UserHandler) Verify(c *gin.Context) {
	user, err := util.GetUserFromContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"isAuthenticated": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{"isAuthenticated": true, "user": service.ToUserResponse(user)})
}

// currentUser writes a 401 and returns false when no user was attached.
func currentUser(c *gin.Context) (*models.User, bool) {
	user, err := util.GetUserFromContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return nil, false
	}
	return user, true
}

// GetMe returns the caller's profile.
func (h *UserHandler) GetMe(c *gin.Context) {
	if user, ok := currentUser(c); ok {
		c.JSON(http.StatusOK, gin.H{"user": service.ToUserResponse(user)})
	}
}

// UpdateMe changes the caller's first name or email.
func (h *UserHandler) UpdateMe(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	var req struct {
		FirstName string `json:"first_name"`
		Email     string `json:"email"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	switch err := h.Service.UpdateUser(user, req.FirstName, req.Email); {
	case errors.Is(err, service.ErrInvalidEmail):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	case errors.Is(err, repository.ErrEmailTaken):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	case err != nil:
		logger.FromGin(c).Error("profile update failed", zap.Uint("user_id", user.ID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update profile"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": service.ToUserResponse(user)})
}

// GetSettings returns the caller's language and voice.
func (h *UserHandler) GetSettings(c *gin.Context) {
	if user, ok := currentUser(c); ok {
		c.JSON(http.StatusOK, gin.H{"settings": service.ToUserResponse(user).Settings})
	}
}

// UpdateSettings changes the caller's reply language and TTS voice.
func (h *UserHandler) UpdateSettings(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	var req struct {
		Language string `json:"language" binding:"required"`
		Voice    string `json:"voice"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "language is required"})
		return
	}

	err := h.Service.UpdateSettings(user, req.Language, req.Voice)
	var notFound repository.NotFoundError
	switch {
	case errors.Is(err, service.ErrInvalidLanguage):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	case errors.As(err, &notFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	case err != nil:
		logger.FromGin(c).Error("settings update failed", zap.Uint("user_id", user.ID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update settings"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"settings": service.ToUserResponse(user).Settings})
}
