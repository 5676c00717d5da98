package repository

import "github.com/windoze95/voicepack-api/internal/models"

// UserRepo is the interface for user repository operations.
type UserRepo interface {
	CreateUser(user *models.User) (*models.User, error)
	GetUserByID(userID uint) (*models.User, error)
	GetUserAuthByUsername(username string) (*models.User, error)
	UpdateProfile(userID uint, firstName, email string) error
	UpdateUserSettings(userID uint, settings *models.UserSettings) error
	UsernameExists(username string) (bool, error)
}

// InteractionRepo is the interface for voice interaction history.
type InteractionRepo interface {
	CreateInteraction(interaction *models.Interaction) error
	GetUserInteractions(userID uint, page, pageSize int) ([]models.Interaction, int64, error)
}

// ChatRepo is the interface for LLM chat history.
type ChatRepo interface {
	CreateChatMessage(msg *models.ChatMessage) error
	GetRecentChatMessages(userID uint, limit int) ([]models.ChatMessage, error)
}
