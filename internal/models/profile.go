package models

import (
	"time"

	"github.com/google/uuid"
)

// Profile holds the billing-facing subscription state for a user. It is
// written by the payment webhook flow and read-only to this service.
// LastUsageResetAt anchors the start of the current usage window; when nil
// the window defaults to the first instant of the current calendar month.
type Profile struct {
	ID                  uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	Email               string     `gorm:"type:varchar(255);uniqueIndex;not null" json:"email"`
	IsSubscribed        bool       `gorm:"column:stripe_is_subscribed;not null;default:false" json:"stripe_is_subscribed"`
	SubscribedProductID *string    `gorm:"column:stripe_subscribed_product_id;type:varchar(255)" json:"stripe_subscribed_product_id,omitempty"`
	LastUsageResetAt    *time.Time `gorm:"column:last_usage_reset_at" json:"last_usage_reset_at,omitempty"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

func (Profile) TableName() string {
	return "profiles"
}
