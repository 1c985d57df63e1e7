package models

import (
	"time"

	"gorm.io/datatypes"
)

// ActivityLog captures auditable events triggered by organisers and reviewers.
type ActivityLog struct {
	ID         uint              `gorm:"primaryKey" json:"id"`
	TenantID   uint              `gorm:"index" json:"tenant_id"`
	ActorID    uint              `gorm:"not null" json:"actor_id"`
	ActorRole  string            `gorm:"size:32;not null" json:"actor_role"`
	Action     string            `gorm:"size:64;not null" json:"action"`
	EntityType string            `gorm:"size:64;not null" json:"entity_type"`
	EntityID   *uint             `json:"entity_id"`
	Metadata   datatypes.JSONMap `gorm:"type:json" json:"metadata"`
	CreatedAt  time.Time         `json:"created_at"`
}

// All returns every model managed by the schema migration, in dependency order.
func All() []interface{} {
	return []interface{}{
		&Tenant{},
		&Event{},
		&Phase{},
		&Task{},
		&Team{},
		&TeamMember{},
		&Project{},
		&EventRegistration{},
		&Rubric{},
		&RubricCriterion{},
		&Submission{},
		&SubmissionFile{},
		&Evaluation{},
		&Notification{},
		&ActivityLog{},
	}
}
