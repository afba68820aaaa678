package repository

import (
	"context"
	"fmt"

	"github.com/bamboo-bazaar/storefront-api/models"
	"gorm.io/gorm"
)

// GormUserRepository implements UserRepository
type GormUserRepository struct {
	db *gorm.DB
}

// Create inserts a user
func (r *GormUserRepository) Create(ctx context.Context, user *models.User) error {
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// FindByID loads a user by primary key
func (r *GormUserRepository) FindByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, translateError(err)
	}
	return &user, nil
}

// FindBySubject loads the user provisioned for a token subject
func (r *GormUserRepository) FindBySubject(ctx context.Context, subject string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("auth_subject = ?", subject).First(&user).Error; err != nil {
		return nil, translateError(err)
	}
	return &user, nil
}
