package repository

import (
	"github.com/windoze95/voicepack-api/internal/logger"
	"github.com/windoze95/voicepack-api/internal/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// InteractionRepository stores processed voice requests.
type InteractionRepository struct {
	DB *gorm.DB
}

// NewInteractionRepository creates a new InteractionRepository.
func NewInteractionRepository(db *gorm.DB) *InteractionRepository {
	return &InteractionRepository{DB: db}
}

// CreateInteraction inserts an interaction.
func (r *InteractionRepository) CreateInteraction(interaction *models.Interaction) error {
	if err := r.DB.Create(interaction).Error; err != nil {
		logger.Get().Error("failed to create interaction", zap.String("intent", interaction.Intent), zap.Error(err))
		return err
	}
	return nil
}

// GetUserInteractions returns a page of the user's interactions, newest first,
// and the total count.
func (r *InteractionRepository) GetUserInteractions(userID uint, page, pageSize int) ([]models.Interaction, int64, error) {
	var interactions []models.Interaction
	var total int64

	query := r.DB.Model(&models.Interaction{}).Where("user_id = ?", userID)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	if err := query.Order("created_at DESC").
		Offset(offset).
		Limit(pageSize).
		Find(&interactions).Error; err != nil {
		return nil, 0, err
	}

	return interactions, total, nil
}
