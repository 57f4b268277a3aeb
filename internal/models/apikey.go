package models

import (
	"time"

	"github.com/google/uuid"
)

// APIKey maps an opaque key to its owning user and, optionally, a team.
// Keys are immutable once issued; the quota resolver only ever reads them.
type APIKey struct {
	ID        uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	Key       string     `gorm:"type:varchar(255);uniqueIndex;not null" json:"key"`
	UserID    uuid.UUID  `gorm:"type:uuid;not null;index" json:"user_id"`
	TeamID    *uuid.UUID `gorm:"type:uuid;index" json:"team_id,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

func (APIKey) TableName() string {
	return "api_keys"
}
