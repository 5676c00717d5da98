package service

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	goaway "github.com/TwiN/go-away"
	"github.com/asaskevich/govalidator"
	"github.com/windoze95/voicepack-api/internal/config"
	"github.com/windoze95/voicepack-api/internal/models"
	"github.com/windoze95/voicepack-api/internal/repository"
	"golang.org/x/crypto/bcrypt"
)

const (
	bcryptCost        = 10
	minUsernameLength = 3
	minPasswordLength = 8
)

var (
	// ErrInvalidLanguage is returned for language codes that are not two lowercase letters.
	ErrInvalidLanguage = errors.New("language must be a two-letter code")
	// ErrInvalidCredentials covers both unknown usernames and wrong passwords.
	ErrInvalidCredentials = errors.New("invalid username or password")
	// ErrInvalidEmail is returned for malformed addresses.
	ErrInvalidEmail = errors.New("invalid email format")
)

// reservedUsernames would read as the service itself, or as a role, when
// spoken back by the assistant.
var reservedUsernames = map[string]struct{}{
	"admin": {}, "administrator": {}, "root": {}, "sys": {}, "sysadmin": {},
	"system": {}, "support": {}, "help": {}, "faq": {},
	"test": {}, "testuser": {}, "login": {}, "logout": {}, "register": {},
	"password": {}, "user": {}, "newuser": {},
	"assistant": {}, "voice": {}, "voicepack": {}, "voicepackadmin": {},
	"alexa": {}, "siri": {}, "jarvis": {},
}

// passwordRules are checked in order; the first miss is reported.
var passwordRules = []struct {
	pattern *regexp.Regexp
	message string
}{
	{regexp.MustCompile(`[A-Z]`), "password must contain at least one uppercase letter"},
	{regexp.MustCompile(`[a-z]`), "password must contain at least one lowercase letter"},
	{regexp.MustCompile(`\d`), "password must contain at least one digit"},
	{regexp.MustCompile(`[!@#$%^&*]`), "password must contain at least one special character"},
}

var profanity = goaway.NewProfanityDetector().
	WithSanitizeLeetSpeak(true).
	WithSanitizeSpecialCharacters(true).
	WithSanitizeAccents(false)

// UserService manages accounts and the per-user voice settings that shape
// replies.
type UserService struct {
	Cfg  *config.Config
	Repo repository.UserRepo
}

// UserResponse is the public view of an account.
type UserResponse struct {
	ID        string           `json:"id"`
	Username  string           `json:"username"`
	FirstName string           `json:"first_name"`
	Email     string           `json:"email"`
	Settings  SettingsResponse `json:"settings"`
	CreatedAt time.Time        `json:"createdAt"`
	UpdatedAt time.Time        `json:"updatedAt"`
}

// SettingsResponse is the public view of a user's voice settings.
type SettingsResponse struct {
	Language string `json:"language"`
	Voice    string `json:"voice,omitempty"`
}

// NewUserService returns a UserService on repo.
func NewUserService(cfg *config.Config, repo repository.UserRepo) *UserService {
	return &UserService{Cfg: cfg, Repo: repo}
}

// CreateUser hashes password and stores a new account whose replies default
// to the configured speech language.
func (s *UserService) CreateUser(username, firstName, email, password string) (*models.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	return s.Repo.CreateUser(&models.User{
		Username:  username,
		FirstName: firstName,
		Email:     email,
		Auth: &models.UserAuth{
			HashedPassword: string(hash),
			AuthType:       models.Standard,
		},
		Settings: &models.UserSettings{Language: s.defaultLanguage()},
	})
}

// LoginUser returns the account matching username and password.
func (s *UserService) LoginUser(username, password string) (*models.User, error) {
	user, err := s.Repo.GetUserAuthByUsername(username)
	if err != nil {
		var notFound repository.NotFoundError
		if errors.As(err, &notFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if user.Auth == nil {
		return nil, ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Auth.HashedPassword), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

// ToUserResponse converts a User to its public view.
func ToUserResponse(user *models.User) *UserResponse {
	settings := SettingsResponse{Language: models.DefaultLanguage}
	if user.Settings != nil {
		settings = SettingsResponse{Language: user.Settings.Language, Voice: user.Settings.Voice}
	}
	return &UserResponse{
		ID:        strconv.FormatUint(uint64(user.ID), 10),
		Username:  user.Username,
		FirstName: user.FirstName,
		Email:     user.Email,
		Settings:  settings,
		CreatedAt: user.CreatedAt,
		UpdatedAt: user.UpdatedAt,
	}
}

// GetUserByID loads a user and their settings.
func (s *UserService) GetUserByID(userID uint) (*models.User, error) {
	return s.Repo.GetUserByID(userID)
}

// UpdateUser changes the non-empty profile fields and mirrors them onto user.
func (s *UserService) UpdateUser(user *models.User, firstName, email string) error {
	if email == user.Email {
		email = ""
	}
	if email != "" {
		if err := s.ValidateEmail(email); err != nil {
			return err
		}
	}
	if err := s.Repo.UpdateProfile(user.ID, firstName, email); err != nil {
		return err
	}

	if firstName != "" {
		user.FirstName = firstName
	}
	if email != "" {
		user.Email = email
	}
	return nil
}

// UpdateSettings stores a normalized language and a voice for user.
func (s *UserService) UpdateSettings(user *models.User, language, voice string) error {
	settings := &models.UserSettings{
		UserID:   user.ID,
		Language: strings.ToLower(strings.TrimSpace(language)),
		Voice:    strings.TrimSpace(voice),
	}
	if !settings.IsValidLanguage() {
		return ErrInvalidLanguage
	}
	if err := s.Repo.UpdateUserSettings(user.ID, settings); err != nil {
		return err
	}

	if user.Settings == nil {
		user.Settings = settings
	} else {
		user.Settings.Language = settings.Language
		user.Settings.Voice = settings.Voice
	}
	return nil
}

func (s *UserService) defaultLanguage() string {
	if s.Cfg != nil && s.Cfg.EnvVars.TTSLang != "" {
		return s.Cfg.EnvVars.TTSLang
	}
	return models.DefaultLanguage
}

// ValidateUsername checks length, charset, reserved names and profanity,
// then availability. The repository also rejects duplicates on insert.
func (s *UserService) ValidateUsername(username string) error {
	if len(username) < minUsernameLength {
		return fmt.Errorf("username must be at least %d characters", minUsernameLength)
	}
	if !govalidator.IsAlphanumeric(username) {
		return errors.New("username can only contain letters and digits")
	}
	if _, reserved := reservedUsernames[strings.ToLower(username)]; reserved {
		return fmt.Errorf("username %q is not allowed", username)
	}
	if profanity.IsProfane(username) {
		return errors.New("username contains inappropriate language")
	}

	taken, err := s.Repo.UsernameExists(username)
	if err != nil {
		return fmt.Errorf("check username: %w", err)
	}
	if taken {
		return repository.ErrUsernameTaken
	}
	return nil
}

// ValidateEmail checks the address format.
func (s *UserService) ValidateEmail(email string) error {
	if !govalidator.IsEmail(email) {
		return ErrInvalidEmail
	}
	return nil
}

// ValidatePassword enforces a minimum length and the passwordRules classes.
func (s *UserService) ValidatePassword(password string) error {
	if len(password) < minPasswordLength {
		return fmt.Errorf("password must be at least %d characters long", minPasswordLength)
	}
	for _, rule := range passwordRules {
		if !rule.pattern.MatchString(password) {
			return errors.New(rule.message)
		}
	}
	return nil
}
