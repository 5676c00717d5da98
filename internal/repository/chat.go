package repository

import (
	"github.com/windoze95/voicepack-api/internal/models"
	"gorm.io/gorm"
)

// ChatRepository stores LLM chat exchanges.
type ChatRepository struct {
	DB *gorm.DB
}

// NewChatRepository creates a new ChatRepository.
func NewChatRepository(db *gorm.DB) *ChatRepository {
	return &ChatRepository{DB: db}
}

// CreateChatMessage inserts a chat exchange.
func (r *ChatRepository) CreateChatMessage(msg *models.ChatMessage) error {
	return r.DB.Create(msg).Error
}

// GetRecentChatMessages returns the user's latest exchanges in chronological
// order.
func (r *ChatRepository) GetRecentChatMessages(userID uint, limit int) ([]models.ChatMessage, error) {
	var msgs []models.ChatMessage
	if err := r.DB.Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&msgs).Error; err != nil {
		return nil, err
	}

	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}
