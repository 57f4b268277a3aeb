package repository

import (
	"context"
	"docstack-api/internal/errors"
	"docstack-api/internal/models"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// APIUsageRepository is the usage ledger: append one row per call, count
// rows since a window start. The boundary is inclusive: a row created
// exactly at `since` counts.
type APIUsageRepository interface {
	CountSince(ctx context.Context, userID uuid.UUID, since time.Time) (int64, error)
	Append(ctx context.Context, entry *models.APIUsageLog) error
}

type apiUsageRepository struct {
	db *gorm.DB
}

func NewAPIUsageRepository(db *gorm.DB) APIUsageRepository {
	return &apiUsageRepository{db: db}
}

func (r *apiUsageRepository) CountSince(ctx context.Context, userID uuid.UUID, since time.Time) (int64, error) {
	var count int64
	result := r.db.WithContext(ctx).
		Model(&models.APIUsageLog{}).
		Where("user_id = ? AND created_at >= ?", userID, since).
		Count(&count)

	if result.Error != nil {
		return 0, errors.Wrap(result.Error, "failed to count API usage")
	}

	return count, nil
}

func (r *apiUsageRepository) Append(ctx context.Context, entry *models.APIUsageLog) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	if err := r.db.WithContext(ctx).Create(entry).Error; err != nil {
		return errors.Wrap(err, "failed to append API usage log")
	}

	return nil
}
