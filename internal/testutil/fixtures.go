package testutil

import (
	"bytes"
	"encoding/binary"
	"time"

	"github.com/windoze95/voicepack-api/internal/models"
	"gorm.io/gorm"
)

// TestUser creates a test user with all associated records populated.
func TestUser() *models.User {
	return &models.User{
		Model:     gorm.Model{ID: 1},
		Username:  "testuser",
		FirstName: "Test",
		Email:     "test@example.com",
		Auth: &models.UserAuth{
			Model:          gorm.Model{ID: 1},
			UserID:         1,
			HashedPassword: "$2a$10$abcdefghijklmnopqrstuuABCDEFGHIJKLMNOPQRSTUVWXYZ012",
			AuthType:       models.Standard,
		},
		Settings: &models.UserSettings{
			Model:    gorm.Model{ID: 1},
			UserID:   1,
			Language: "en",
			Voice:    "alloy",
		},
	}
}

// TestInteraction creates a stored weather interaction for userID.
func TestInteraction(userID uint) models.Interaction {
	return models.Interaction{
		Model:      gorm.Model{ID: 1, CreatedAt: time.Date(2025, 3, 14, 9, 5, 0, 0, time.UTC)},
		UserID:     &userID,
		Source:     models.SourceText,
		Transcript: "What's the weather in Paris",
		Intent:     "get_weather",
		Entities:   models.EntityMap{"city": "Paris"},
		Reply:      "The current temperature in Paris is 18°C.",
		AudioName:  "0123456789abcdef0123456789abcdef01234567.mp3",
		LatencyMs:  42,
	}
}

// TestWav returns a silent 16-bit PCM WAV of the given format and length.
func TestWav(sampleRate, channels int, samples int) []byte {
	dataSize := samples * channels * 2
	var buf bytes.Buffer
	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, uint32(36+dataSize))
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	binary.Write(&buf, binary.LittleEndian, uint32(16))
	binary.Write(&buf, binary.LittleEndian, uint16(1))
	binary.Write(&buf, binary.LittleEndian, uint16(channels))
	binary.Write(&buf, binary.LittleEndian, uint32(sampleRate))
	binary.Write(&buf, binary.LittleEndian, uint32(sampleRate*channels*2))
	binary.Write(&buf, binary.LittleEndian, uint16(channels*2))
	binary.Write(&buf, binary.LittleEndian, uint16(16))
	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, uint32(dataSize))
	buf.Write(make([]byte, dataSize))
	return buf.Bytes()
}
