package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// InteractionSource records how a voice request reached the server.
type InteractionSource string

// InteractionSource enum values.
const (
	SourceUpload InteractionSource = "upload"
	SourceText   InteractionSource = "text"
	SourceWS     InteractionSource = "ws"
)

// IsValid checks if the source is a known value.
func (s InteractionSource) IsValid() bool {
	switch s {
	case SourceUpload, SourceText, SourceWS:
		return true
	default:
		return false
	}
}

// EntityMap holds the entities extracted from an utterance.
// This is a workaround for GORM to store a map in a JSONB field.
type EntityMap map[string]string

// Scan is a GORM hook that scans jsonb into an EntityMap.
func (j *EntityMap) Scan(value interface{}) error {
	bytes, ok := value.([]byte)
	if !ok {
		return errors.New(fmt.Sprint("Failed to unmarshal JSONB value:", value))
	}

	result := EntityMap{}
	err := json.Unmarshal(bytes, &result)
	*j = result

	return err
}

// Value is a GORM hook that returns json value of an EntityMap.
func (j EntityMap) Value() (driver.Value, error) {
	if j == nil {
		return json.Marshal(map[string]string{})
	}
	return json.Marshal(map[string]string(j))
}

// Interaction is one processed voice request.
type Interaction struct {
	gorm.Model
	UserID     *uint             `gorm:"index"`
	Source     InteractionSource `gorm:"type:text"`
	Transcript string
	Intent     string    `gorm:"type:text;index"`
	Entities   EntityMap `gorm:"type:jsonb"`
	Reply      string
	AudioName  string `gorm:"default:null"`
	AudioURL   string `gorm:"default:null"`
	LatencyMs  int64
}

// BeforeCreate is a GORM hook that runs before creating a new Interaction.
func (i *Interaction) BeforeCreate(tx *gorm.DB) (err error) {
	if !i.Source.IsValid() {
		return errors.New("invalid interaction Source provided")
	}

	return nil
}
