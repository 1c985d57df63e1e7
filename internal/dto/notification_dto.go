package dto

import (
	"time"

	"github.com/noah-isme/gema-program-api/internal/models"
)

// NotificationCreateRequest describes the payload to create a notification.
type NotificationCreateRequest struct {
	TenantID   uint   `json:"tenant_id"`
	UserID     string `json:"user_id" validate:"required,max=64"`
	Type       string `json:"type" validate:"required,max=64"`
	Message    string `json:"message" validate:"required,min=1,max=2000"`
	EntityType string `json:"entity_type" validate:"omitempty,max=64"`
	EntityID   *uint  `json:"entity_id"`
}

// NotificationResponse represents notification data returned to clients.
type NotificationResponse struct {
	ID         uint      `json:"id"`
	TenantID   uint      `json:"tenant_id"`
	UserID     string    `json:"user_id"`
	Type       string    `json:"type"`
	Message    string    `json:"message"`
	EntityType string    `json:"entity_type,omitempty"`
	EntityID   *uint     `json:"entity_id,omitempty"`
	Read       bool      `json:"read"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// NewNotificationResponse converts a notification model to DTO.
func NewNotificationResponse(model models.Notification) NotificationResponse {
	return NotificationResponse{
		ID:         model.ID,
		TenantID:   model.TenantID,
		UserID:     model.UserID,
		Type:       model.Type,
		Message:    model.Message,
		EntityType: model.EntityType,
		EntityID:   model.EntityID,
		Read:       model.Read,
		CreatedAt:  model.CreatedAt,
		UpdatedAt:  model.UpdatedAt,
	}
}

// NewNotificationResponseSlice converts a slice to DTOs.
func NewNotificationResponseSlice(items []models.Notification) []NotificationResponse {
	out := make([]NotificationResponse, 0, len(items))
	for _, item := range items {
		out = append(out, NewNotificationResponse(item))
	}
	return out
}
