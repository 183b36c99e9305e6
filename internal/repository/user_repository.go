package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"habit-tracker/internal/model"
)

// UserRepository stores Telegram users and their viewing time zone.
type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

// UpsertFromTelegram returns the user for telegramID, creating it on first
// contact and refreshing the profile fields when they changed.
func (r *UserRepository) UpsertFromTelegram(ctx context.Context, telegramID int64, firstName, lastName, username string) (*model.User, error) {
	profile := model.User{
		TelegramID: telegramID,
		FirstName:  firstName,
		LastName:   lastName,
		Username:   username,
	}
	db := r.db.WithContext(ctx)

	var user model.User
	err := db.Where("telegram_id = ?", telegramID).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		if err := db.Create(&profile).Error; err != nil {
			return nil, fmt.Errorf("create user: %w", err)
		}
		return &profile, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}

	if user.FirstName == firstName && user.LastName == lastName && user.Username == username {
		return &user, nil
	}
	// Select forces empty strings through so a removed username is cleared.
	if err := db.Model(&user).Select("first_name", "last_name", "username").Updates(profile).Error; err != nil {
		return nil, fmt.Errorf("update user: %w", err)
	}
	user.FirstName, user.LastName, user.Username = firstName, lastName, username
	return &user, nil
}

// FindByTelegramID returns gorm.ErrRecordNotFound unwrapped so callers can
// tell an unknown user apart from a storage failure.
func (r *UserRepository) FindByTelegramID(ctx context.Context, telegramID int64) (*model.User, error) {
	return r.first(ctx, "telegram_id = ?", telegramID)
}

func (r *UserRepository) FindByID(ctx context.Context, id uint) (*model.User, error) {
	return r.first(ctx, "id = ?", id)
}

// ListAll returns every user in creation order; the scheduler reports to each.
func (r *UserRepository) ListAll(ctx context.Context) ([]model.User, error) {
	var users []model.User
	if err := r.db.WithContext(ctx).Order("id ASC").Find(&users).Error; err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

// SetTimezone stores the IANA zone used to bucket the user's completions.
func (r *UserRepository) SetTimezone(ctx context.Context, user *model.User, tz string) error {
	if err := r.db.WithContext(ctx).Model(user).Update("timezone", tz).Error; err != nil {
		return fmt.Errorf("set timezone: %w", err)
	}
	user.Timezone = tz
	return nil
}

func (r *UserRepository) first(ctx context.Context, query string, arg any) (*model.User, error) {
	var user model.User
	if err := r.db.WithContext(ctx).Where(query, arg).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}
