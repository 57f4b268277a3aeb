package repository

import (
	"context"
	"docstack-api/internal/errors"
	"docstack-api/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ProfileRepository is the subscription store.
type ProfileRepository interface {
	GetByUserID(ctx context.Context, userID uuid.UUID) (*models.Profile, error)
}

type profileRepository struct {
	db *gorm.DB
}

func NewProfileRepository(db *gorm.DB) ProfileRepository {
	return &profileRepository{db: db}
}

func (r *profileRepository) GetByUserID(ctx context.Context, userID uuid.UUID) (*models.Profile, error) {
	var profile models.Profile
	result := r.db.WithContext(ctx).First(&profile, "id = ?", userID)

	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			return nil, errors.ErrNotFound
		}
		return nil, errors.Wrap(result.Error, "failed to get profile by user id")
	}

	return &profile, nil
}
