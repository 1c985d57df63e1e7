package models

import "time"

// Submission statuses.
const (
	SubmissionStatusDraft = "draft"
	SubmissionStatusFinal = "final"
)

// Submission is a team deliverable recorded against a task.
type Submission struct {
	ID          uint             `gorm:"primaryKey" json:"id"`
	TenantID    uint             `gorm:"index;not null" json:"tenant_id"`
	EventID     uint             `gorm:"index;not null" json:"event_id"`
	TaskID      uint             `gorm:"index;not null" json:"task_id"`
	TeamID      uint             `gorm:"index;not null" json:"team_id"`
	SubmittedBy uint             `json:"submitted_by"`
	Type        string           `gorm:"size:64" json:"type"`
	Content     string           `gorm:"type:text" json:"content"`
	Status      string           `gorm:"size:16;not null;default:draft" json:"status"`
	SubmittedAt *time.Time       `gorm:"index" json:"submitted_at"`
	Files       []SubmissionFile `gorm:"foreignKey:SubmissionID;constraint:OnDelete:CASCADE" json:"files"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

// IsFinal reports whether the submission has been finalised by the team.
func (s Submission) IsFinal() bool {
	return s.Status == SubmissionStatusFinal
}

// RecencyTimestamp returns submitted_at, falling back to created_at.
func (s Submission) RecencyTimestamp() (time.Time, bool) {
	if s.SubmittedAt != nil && !s.SubmittedAt.IsZero() {
		return *s.SubmittedAt, true
	}
	if !s.CreatedAt.IsZero() {
		return s.CreatedAt, true
	}
	return time.Time{}, false
}

// SubmissionFile is a reference to an attachment stored elsewhere.
type SubmissionFile struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	SubmissionID uint      `gorm:"index;not null" json:"submission_id"`
	FileName     string    `gorm:"size:255;not null" json:"file_name"`
	URL          string    `gorm:"size:1024;not null" json:"url"`
	MimeType     string    `gorm:"size:128" json:"mime_type"`
	SizeBytes    int64     `json:"size_bytes"`
	CreatedAt    time.Time `json:"created_at"`
}
