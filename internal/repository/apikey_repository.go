package repository

import (
	"context"
	"docstack-api/internal/errors"
	"docstack-api/internal/models"

	"gorm.io/gorm"
)

// APIKeyRepository is the identity store: it resolves an opaque API key to
// the owning user and team.
type APIKeyRepository interface {
	GetByKey(ctx context.Context, key string) (*models.APIKey, error)
}

type apiKeyRepository struct {
	db *gorm.DB
}

func NewAPIKeyRepository(db *gorm.DB) APIKeyRepository {
	return &apiKeyRepository{db: db}
}

func (r *apiKeyRepository) GetByKey(ctx context.Context, key string) (*models.APIKey, error) {
	var apiKey models.APIKey
	result := r.db.WithContext(ctx).First(&apiKey, "key = ?", key)

	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			return nil, errors.ErrNotFound
		}
		return nil, errors.Wrap(result.Error, "failed to get API key by key")
	}

	return &apiKey, nil
}
