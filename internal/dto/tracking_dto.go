package dto

import "time"

// Evaluation states reported by the deliverables view.
const (
	DeliverableEvaluationFinal   = "final"
	DeliverableEvaluationPending = "pending"
	DeliverableEvaluationNone    = "none"
)

// DeliverableRow is the state of one team against one task.
type DeliverableRow struct {
	TeamID           uint       `json:"team_id"`
	TeamName         string     `json:"team_name"`
	PhaseID          uint       `json:"phase_id"`
	TaskID           uint       `json:"task_id"`
	TaskTitle        string     `json:"task_title"`
	IsRequired       bool       `json:"is_required"`
	Delivered        bool       `json:"delivered"`
	SubmissionID     *uint      `json:"submission_id"`
	SubmissionStatus string     `json:"submission_status"`
	SubmittedAt      *time.Time `json:"submitted_at"`
	EvaluationStatus string     `json:"evaluation_status"`
	EvaluationID     *uint      `json:"evaluation_id"`
	Score            *float64   `json:"score"`
}

// DeliverablesSummary aggregates the deliverable rows.
type DeliverablesSummary struct {
	Pairs     int `json:"pairs"`
	Delivered int `json:"delivered"`
	Evaluated int `json:"evaluated"`
	Pending   int `json:"pending"`
}

// DeliverablesResponse is the team x task delivery matrix of an event.
type DeliverablesResponse struct {
	EventID     uint                `json:"event_id"`
	Rows        []DeliverableRow    `json:"rows"`
	Summary     DeliverablesSummary `json:"summary"`
	GeneratedAt time.Time           `json:"generated_at"`
}

// ParticipantRow is one registration joined with its team membership.
type ParticipantRow struct {
	RegistrationID  uint                   `json:"registration_id"`
	UserID          uint                   `json:"user_id"`
	FullName        string                 `json:"full_name"`
	Email           string                 `json:"email"`
	Role            string                 `json:"role"`
	Grade           string                 `json:"grade"`
	CustomFields    map[string]interface{} `json:"custom_fields"`
	HasTeam         bool                   `json:"has_team"`
	TeamID          *uint                  `json:"team_id"`
	TeamName        string                 `json:"team_name"`
	TeamRole        string                 `json:"team_role"`
	TeamSubmissions int                    `json:"team_submissions"`
}

// TrackingOverviewResponse lists who registered and who has a team.
type TrackingOverviewResponse struct {
	EventID      uint             `json:"event_id"`
	Participants []ParticipantRow `json:"participants"`
}

// GroupCount splits a group's participants by team membership.
type GroupCount struct {
	Key         string `json:"key"`
	Total       int    `json:"total"`
	WithTeam    int    `json:"with_team"`
	WithoutTeam int    `json:"without_team"`
}

// TrackingTotals are the headline participation numbers.
type TrackingTotals struct {
	Registered  int `json:"registered"`
	WithTeam    int `json:"with_team"`
	WithoutTeam int `json:"without_team"`
	Teams       int `json:"teams"`
}

// SubmissionTotals counts submissions by status.
type SubmissionTotals struct {
	Draft int `json:"draft"`
	Final int `json:"final"`
}

// TrackingStatisticsResponse aggregates participation for an event.
type TrackingStatisticsResponse struct {
	EventID       uint                    `json:"event_id"`
	Totals        TrackingTotals          `json:"totals"`
	ByGrade       []GroupCount            `json:"by_grade"`
	ByCustomField map[string][]GroupCount `json:"by_custom_field"`
	Submissions   SubmissionTotals        `json:"submissions"`
}
