package repository

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/windoze95/voicepack-api/internal/logger"
	"github.com/windoze95/voicepack-api/internal/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// pqUniqueViolation is the SQLSTATE Postgres reports for duplicate keys.
const pqUniqueViolation = "23505"

// UserRepository stores accounts and their voice settings in Postgres.
type UserRepository struct {
	DB *gorm.DB
}

// NewUserRepository returns a UserRepository on db.
func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{DB: db}
}

// uniqueViolation maps a duplicate-key error onto ErrUsernameTaken or
// ErrEmailTaken. Both the pgx errors gorm's driver returns and lib/pq errors
// are recognized. Other errors pass through unchanged.
func uniqueViolation(err error) error {
	var detail string
	var pgxErr *pgconn.PgError
	var pqErr *pq.Error
	switch {
	case errors.As(err, &pgxErr) && pgxErr.Code == pqUniqueViolation:
		detail = pgxErr.ConstraintName + " " + pgxErr.Message
	case errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation:
		detail = pqErr.Constraint + " " + pqErr.Message
	default:
		return err
	}

	switch {
	case strings.Contains(detail, "username"):
		return ErrUsernameTaken
	case strings.Contains(detail, "email"):
		return ErrEmailTaken
	}
	return err
}

// CreateUser inserts user together with its auth and settings rows.
func (r *UserRepository) CreateUser(user *models.User) (*models.User, error) {
	err := r.DB.Transaction(func(tx *gorm.DB) error {
		return tx.Create(user).Error
	})
	if err != nil {
		return nil, uniqueViolation(err)
	}
	return user, nil
}

func (r *UserRepository) findUser(query *gorm.DB) (*models.User, error) {
	var user models.User
	err := query.First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, NewNotFoundError("user not found")
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetUserByID loads a user and their settings.
func (r *UserRepository) GetUserByID(userID uint) (*models.User, error) {
	return r.findUser(r.DB.Preload("Settings").Where("id = ?", userID))
}

// GetUserAuthByUsername loads a user with the password hash needed for login.
func (r *UserRepository) GetUserAuthByUsername(username string) (*models.User, error) {
	return r.findUser(r.DB.Preload("Auth").Preload("Settings").Where("username = ?", username))
}

// UpdateProfile sets the non-empty fields among firstName and email.
func (r *UserRepository) UpdateProfile(userID uint, firstName, email string) error {
	changes := map[string]interface{}{}
	if firstName != "" {
		changes["first_name"] = firstName
	}
	if email != "" {
		changes["email"] = email
	}
	if len(changes) == 0 {
		return nil
	}

	err := r.DB.Model(&models.User{}).Where("id = ?", userID).Updates(changes).Error
	if err != nil {
		logger.Get().Error("failed to update profile", zap.Uint("user_id", userID), zap.Error(err))
		return uniqueViolation(err)
	}
	return nil
}

// UpdateUserSettings writes the language and voice, creating the settings row
// for accounts that predate it.
func (r *UserRepository) UpdateUserSettings(userID uint, settings *models.UserSettings) error {
	var row models.UserSettings
	err := r.DB.Where(models.UserSettings{UserID: userID}).
		Assign(map[string]interface{}{"language": settings.Language, "voice": settings.Voice}).
		FirstOrCreate(&row).Error
	if err != nil {
		logger.Get().Error("failed to save settings", zap.Uint("user_id", userID), zap.Error(err))
	}
	return err
}

// UsernameExists reports whether username is taken, ignoring case.
func (r *UserRepository) UsernameExists(username string) (bool, error) {
	var count int64
	err := r.DB.Model(&models.User{}).
		Where("LOWER(username) = ?", strings.ToLower(username)).
		Count(&count).Error
	return count > 0, err
}
