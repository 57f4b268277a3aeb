package models

import (
	"time"

	"github.com/google/uuid"
)

// TeamMembership ties a profile to a team. APICallsOverride is the
// administrative escape hatch: when non-nil and non-zero it replaces the
// tier-derived call limit for that member.
type TeamMembership struct {
	ID               uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	TeamID           uuid.UUID `gorm:"type:uuid;not null;index:idx_team_profile" json:"team_id"`
	ProfileID        uuid.UUID `gorm:"type:uuid;not null;index:idx_team_profile" json:"profile_id"`
	APICallsOverride *int64    `gorm:"column:api_calls_override" json:"api_calls_override,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

func (TeamMembership) TableName() string {
	return "team_memberships"
}
