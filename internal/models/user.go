package models

import (
	"errors"
	"regexp"

	"gorm.io/gorm"
)

// DefaultLanguage is the speech language used when a user has not chosen one.
const DefaultLanguage = "en"

var (
	// ErrInvalidAuthType is returned by the UserAuth hooks.
	ErrInvalidAuthType = errors.New("invalid auth type")
	// ErrInvalidLanguage is returned when saving settings with a bad language.
	ErrInvalidLanguage = errors.New("invalid language code")
)

var languagePattern = regexp.MustCompile(`^[a-z]{2}$`)

// User is an account. Settings holds the voice preferences applied to the
// user's replies.
type User struct {
	gorm.Model
	Username  string        `gorm:"unique;index"`
	FirstName string        `gorm:"default:null"`
	Email     string        `gorm:"unique;default:null"`
	Auth      *UserAuth     `gorm:"foreignKey:UserID"`
	Settings  *UserSettings `gorm:"foreignKey:UserID"`
}

// UserAuthType says how an account signs in.
type UserAuthType string

// Supported auth types.
const (
	Standard UserAuthType = "standard"
)

// UserAuth holds the credentials for a User.
type UserAuth struct {
	gorm.Model
	UserID         uint `gorm:"unique;index"`
	HashedPassword string
	AuthType       UserAuthType `gorm:"type:text"`
}

// IsValidAuthType reports whether AuthType is supported.
func (ua *UserAuth) IsValidAuthType() bool {
	return ua.AuthType == Standard
}

func (ua *UserAuth) validate() error {
	if !ua.IsValidAuthType() {
		return ErrInvalidAuthType
	}
	return nil
}

// BeforeCreate aborts the insert for unsupported auth types.
func (ua *UserAuth) BeforeCreate(*gorm.DB) error { return ua.validate() }

// BeforeUpdate aborts the update for unsupported auth types.
func (ua *UserAuth) BeforeUpdate(*gorm.DB) error { return ua.validate() }

// UserSettings are a user's reply language and TTS voice. An empty Voice
// means the server default.
type UserSettings struct {
	gorm.Model
	UserID   uint   `gorm:"unique;index"`
	Language string `gorm:"type:text;default:'en'"`
	Voice    string `gorm:"type:text;default:null"`
}

// IsValidLanguage checks that Language is a two-letter lowercase code.
func (s *UserSettings) IsValidLanguage() bool {
	return languagePattern.MatchString(s.Language)
}

// BeforeCreate falls back to DefaultLanguage so new accounts always speak.
func (s *UserSettings) BeforeCreate(*gorm.DB) error {
	if !s.IsValidLanguage() {
		s.Language = DefaultLanguage
	}
	return nil
}

// BeforeUpdate rejects an invalid language.
func (s *UserSettings) BeforeUpdate(*gorm.DB) error {
	if !s.IsValidLanguage() {
		return ErrInvalidLanguage
	}
	return nil
}
