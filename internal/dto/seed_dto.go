package dto

import "time"

// SeedProgramRequest describes a full program structure to upsert.
type SeedProgramRequest struct {
	Tenant        SeedTenant         `json:"tenant" validate:"required"`
	Event         SeedEvent          `json:"event" validate:"required"`
	Phases        []SeedPhase        `json:"phases" validate:"dive"`
	Teams         []SeedTeam         `json:"teams" validate:"dive"`
	Registrations []SeedRegistration `json:"registrations" validate:"dive"`
}

// SeedTenant identifies the tenant by slug.
type SeedTenant struct {
	Name string `json:"name" validate:"required,max=255"`
	Slug string `json:"slug" validate:"required,max=128"`
}

// SeedEvent identifies the event by slug within the tenant.
type SeedEvent struct {
	Name     string     `json:"name" validate:"required,max=255"`
	Slug     string     `json:"slug" validate:"omitempty,max=128"`
	StartsAt *time.Time `json:"starts_at"`
	EndsAt   *time.Time `json:"ends_at"`
}

// SeedPhase is a phase with its tasks.
type SeedPhase struct {
	Title      string     `json:"title" validate:"required,max=255"`
	OrderIndex int        `json:"order_index"`
	Tasks      []SeedTask `json:"tasks" validate:"dive"`
}

// SeedTask is a task inside a seeded phase.
type SeedTask struct {
	Title       string `json:"title" validate:"required,max=255"`
	Description string `json:"description"`
	IsRequired  bool   `json:"is_required"`
	OrderIndex  int    `json:"order_index"`
}

// SeedTeam is a team with members and an optional project.
type SeedTeam struct {
	Name          string           `json:"name" validate:"required,max=255"`
	CaptainUserID uint             `json:"captain_user_id" validate:"required"`
	Members       []SeedTeamMember `json:"members" validate:"dive"`
	Project       *SeedProject     `json:"project"`
}

// SeedTeamMember is a non-captain member.
type SeedTeamMember struct {
	UserID uint `json:"user_id" validate:"required"`
}

// SeedProject names the team's project.
type SeedProject struct {
	Name string `json:"name" validate:"required,max=255"`
}

// SeedRegistration registers a participant to the event.
type SeedRegistration struct {
	UserID       uint                   `json:"user_id" validate:"required"`
	FullName     string                 `json:"full_name" validate:"omitempty,max=255"`
	Email        string                 `json:"email" validate:"omitempty,email"`
	Role         string                 `json:"role" validate:"omitempty,max=32"`
	Grade        string                 `json:"grade" validate:"omitempty,max=64"`
	CustomFields map[string]interface{} `json:"custom_fields"`
}

// SeedProgramResponse reports the identifiers and counts of the seeded program.
type SeedProgramResponse struct {
	TenantID      uint `json:"tenant_id"`
	EventID       uint `json:"event_id"`
	Phases        int  `json:"phases"`
	Tasks         int  `json:"tasks"`
	Teams         int  `json:"teams"`
	Members       int  `json:"members"`
	Projects      int  `json:"projects"`
	Registrations int  `json:"registrations"`
}
