package models

import (
	"time"

	"gorm.io/datatypes"
)

// Tenant is an organisation running one or more events.
type Tenant struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"size:255;not null" json:"name"`
	Slug      string    `gorm:"size:128;uniqueIndex;not null" json:"slug"`
	Active    bool      `gorm:"not null;default:true" json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Event is a program run by a tenant, composed of ordered phases.
type Event struct {
	ID        uint       `gorm:"primaryKey" json:"id"`
	TenantID  uint       `gorm:"index;not null" json:"tenant_id"`
	Name      string     `gorm:"size:255;not null" json:"name"`
	Slug      string     `gorm:"size:128;index" json:"slug"`
	StartsAt  *time.Time `json:"starts_at"`
	EndsAt    *time.Time `json:"ends_at"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// Phase groups tasks inside an event.
type Phase struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	TenantID   uint      `gorm:"index;not null" json:"tenant_id"`
	EventID    uint      `gorm:"index;not null" json:"event_id"`
	Title      string    `gorm:"size:255;not null" json:"title"`
	OrderIndex int       `gorm:"not null;default:0" json:"order_index"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Task is a deliverable teams submit against within a phase.
type Task struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	TenantID      uint      `gorm:"index;not null" json:"tenant_id"`
	EventID       uint      `gorm:"index;not null" json:"event_id"`
	PhaseID       uint      `gorm:"index;not null" json:"phase_id"`
	Title         string    `gorm:"size:255;not null" json:"title"`
	Description   string    `gorm:"type:text" json:"description"`
	IsRequired    bool      `gorm:"not null;default:false" json:"is_required"`
	PhaseRubricID *uint     `gorm:"index" json:"phase_rubric_id"`
	OrderIndex    int       `gorm:"not null;default:0" json:"order_index"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Team membership roles.
const (
	TeamRoleCaptain = "captain"
	TeamRoleMember  = "member"
)

// Team is a group of participants competing in an event.
type Team struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	TenantID      uint      `gorm:"index;not null" json:"tenant_id"`
	EventID       uint      `gorm:"index;not null" json:"event_id"`
	Name          string    `gorm:"size:255;not null" json:"name"`
	CaptainUserID uint      `gorm:"index" json:"captain_user_id"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// TeamMember links a user to a team.
type TeamMember struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	TeamID    uint      `gorm:"uniqueIndex:idx_team_member;not null" json:"team_id"`
	UserID    uint      `gorm:"uniqueIndex:idx_team_member;not null" json:"user_id"`
	Role      string    `gorm:"size:16;not null;default:member" json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// IsCaptain reports whether the member leads the team.
func (m TeamMember) IsCaptain() bool {
	return m.Role == TeamRoleCaptain
}

// Project is the final deliverable of a team across the whole event.
type Project struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	TenantID  uint      `gorm:"index;not null" json:"tenant_id"`
	EventID   uint      `gorm:"index;not null" json:"event_id"`
	TeamID    uint      `gorm:"index;not null" json:"team_id"`
	Name      string    `gorm:"size:255;not null" json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// EventRegistration records a participant signing up for an event.
type EventRegistration struct {
	ID           uint              `gorm:"primaryKey" json:"id"`
	TenantID     uint              `gorm:"index;not null" json:"tenant_id"`
	EventID      uint              `gorm:"index;not null" json:"event_id"`
	UserID       uint              `gorm:"index;not null" json:"user_id"`
	FullName     string            `gorm:"size:255" json:"full_name"`
	Email        string            `gorm:"size:255" json:"email"`
	Role         string            `gorm:"size:32" json:"role"`
	Grade        string            `gorm:"size:64" json:"grade"`
	CustomFields datatypes.JSONMap `gorm:"type:json" json:"custom_fields"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
}
