package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// File is the metadata row for an uploaded document. The upload and chunking
// pipeline that produces files and chunks lives outside this service; the API
// only lists files and searches chunks.
type File struct {
	ID          uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	TeamID      uuid.UUID      `gorm:"type:uuid;not null;index" json:"team_id"`
	UserID      uuid.UUID      `gorm:"type:uuid;not null;index" json:"user_id"`
	Name        string         `gorm:"type:varchar(255);not null" json:"name"`
	Type        string         `gorm:"type:varchar(32);not null" json:"type"`
	StoragePath string         `gorm:"type:varchar(512);not null" json:"storage_path"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}

func (File) TableName() string {
	return "files"
}

// Chunk is one retrievable slice of a file's content.
type Chunk struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	FileID    uuid.UUID `gorm:"type:uuid;not null;index" json:"file_id"`
	TeamID    uuid.UUID `gorm:"type:uuid;not null;index" json:"team_id"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	Position  int       `gorm:"not null" json:"position"`
	CreatedAt time.Time `json:"created_at"`
}

func (Chunk) TableName() string {
	return "chunks"
}
