package models

import "time"

// Notification represents a push notification targeted to a specific user.
type Notification struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	TenantID   uint      `gorm:"index" json:"tenant_id"`
	UserID     string    `gorm:"size:64;index" json:"user_id"`
	Type       string    `gorm:"size:64" json:"type"`
	Message    string    `gorm:"type:text" json:"message"`
	EntityType string    `gorm:"size:64" json:"entity_type"`
	EntityID   *uint     `json:"entity_id"`
	Read       bool      `gorm:"not null;default:false" json:"read"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}
