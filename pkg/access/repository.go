package access

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

var ErrUserNotFound = errors.New("user not found")

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) AutoMigrate() error {
	return r.db.AutoMigrate(&User{})
}

func (r *Repository) Create(ctx context.Context, user *User) error {
	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now
	return r.db.WithContext(ctx).Create(user).Error
}

func (r *Repository) GetByExternalID(ctx context.Context, externalID int64) (*User, error) {
	var user User
	result := r.db.WithContext(ctx).First(&user, "external_id = ?", externalID)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	return &user, result.Error
}

func (r *Repository) UpdateStatus(ctx context.Context, externalID int64, status string) error {
	result := r.db.WithContext(ctx).Model(&User{}).
		Where("external_id = ?", externalID).
		Updates(map[string]interface{}{
			"status":     status,
			"updated_at": time.Now().UTC(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (r *Repository) UpdateProfile(ctx context.Context, externalID int64, fullName, organization string) error {
	result := r.db.WithContext(ctx).Model(&User{}).
		Where("external_id = ?", externalID).
		Updates(map[string]interface{}{
			"full_name":    fullName,
			"organization": organization,
			"updated_at":   time.Now().UTC(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (r *Repository) List(ctx context.Context) ([]User, error) {
	var users []User
	result := r.db.WithContext(ctx).Order("created_at asc").Find(&users)
	return users, result.Error
}

func (r *Repository) ListByStatus(ctx context.Context, status string) ([]User, error) {
	var users []User
	result := r.db.WithContext(ctx).Where("status = ?", status).Order("created_at asc").Find(&users)
	return users, result.Error
}
