package repository

import (
	"context"
	"docstack-api/internal/errors"
	"docstack-api/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// TeamMembershipRepository is the override store: it exposes the per-member
// API call override, if any.
type TeamMembershipRepository interface {
	GetMembership(ctx context.Context, teamID, profileID uuid.UUID) (*models.TeamMembership, error)
	GetByProfileID(ctx context.Context, profileID uuid.UUID) (*models.TeamMembership, error)
}

type teamMembershipRepository struct {
	db *gorm.DB
}

func NewTeamMembershipRepository(db *gorm.DB) TeamMembershipRepository {
	return &teamMembershipRepository{db: db}
}

func (r *teamMembershipRepository) GetMembership(ctx context.Context, teamID, profileID uuid.UUID) (*models.TeamMembership, error) {
	var membership models.TeamMembership
	result := r.db.WithContext(ctx).
		Where("team_id = ? AND profile_id = ?", teamID, profileID).
		First(&membership)

	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			return nil, errors.ErrNotFound
		}
		return nil, errors.Wrap(result.Error, "failed to get team membership")
	}

	return &membership, nil
}

func (r *teamMembershipRepository) GetByProfileID(ctx context.Context, profileID uuid.UUID) (*models.TeamMembership, error) {
	var membership models.TeamMembership
	result := r.db.WithContext(ctx).
		Where("profile_id = ?", profileID).
		Order("created_at ASC").
		First(&membership)

	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			return nil, errors.ErrNotFound
		}
		return nil, errors.Wrap(result.Error, "failed to get team membership by profile")
	}

	return &membership, nil
}
