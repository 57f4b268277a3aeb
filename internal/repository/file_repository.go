package repository

import (
	"context"
	"docstack-api/internal/errors"
	"docstack-api/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type FileRepository interface {
	ListByTeam(ctx context.Context, teamID uuid.UUID, limit, offset int) ([]models.File, error)
}

type ChunkRepository interface {
	Search(ctx context.Context, teamID uuid.UUID, query string, k int) ([]models.Chunk, error)
}

type fileRepository struct {
	db *gorm.DB
}

func NewFileRepository(db *gorm.DB) FileRepository {
	return &fileRepository{db: db}
}

func (r *fileRepository) ListByTeam(ctx context.Context, teamID uuid.UUID, limit, offset int) ([]models.File, error) {
	var files []models.File

	err := r.db.WithContext(ctx).
		Where("team_id = ?", teamID).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&files).Error

	if err != nil {
		return nil, errors.Wrap(err, "failed to list files by team")
	}

	return files, nil
}

type chunkRepository struct {
	db *gorm.DB
}

func NewChunkRepository(db *gorm.DB) ChunkRepository {
	return &chunkRepository{db: db}
}

func (r *chunkRepository) Search(ctx context.Context, teamID uuid.UUID, query string, k int) ([]models.Chunk, error) {
	var chunks []models.Chunk

	err := r.db.WithContext(ctx).
		Where("team_id = ? AND content ILIKE ?", teamID, "%"+query+"%").
		Order("position ASC").
		Limit(k).
		Find(&chunks).Error

	if err != nil {
		return nil, errors.Wrap(err, "failed to search chunks")
	}

	return chunks, nil
}
