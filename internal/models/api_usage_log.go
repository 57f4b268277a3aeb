package models

import (
	"time"

	"github.com/google/uuid"
)

// APIUsageLog is one row per attempted or completed API call. The table is
// append-only: rows are never updated or deleted, only counted.
type APIUsageLog struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	UserID    uuid.UUID `gorm:"type:uuid;not null;index" json:"user_id"`
	Endpoint  string    `gorm:"type:varchar(255);not null" json:"endpoint"`
	Success   bool      `gorm:"not null;default:true" json:"success"`
	Error     *string   `gorm:"type:text" json:"error,omitempty"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
}

func (APIUsageLog) TableName() string {
	return "api_usage_logs"
}
