package models

import "gorm.io/gorm"

// ChatMessage is one prompt/response exchange with an LLM provider.
type ChatMessage struct {
	gorm.Model
	UserID   *uint  `gorm:"index"`
	Prompt   string `gorm:"type:text"`
	Response string `gorm:"type:text"`
	Provider string `gorm:"type:text"`
}
