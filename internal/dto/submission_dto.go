package dto

import (
	"time"

	"github.com/noah-isme/gema-program-api/internal/models"
)

// SubmissionFileInput references an attachment already stored elsewhere.
type SubmissionFileInput struct {
	FileName  string `json:"file_name" validate:"required,max=255"`
	URL       string `json:"url" validate:"required,url,max=1024"`
	MimeType  string `json:"mime_type" validate:"omitempty,max=128"`
	SizeBytes int64  `json:"size_bytes" validate:"gte=0"`
}

// SubmissionCreateRequest is the payload used to create a submission.
type SubmissionCreateRequest struct {
	TeamID  *uint                 `json:"team_id"`
	Type    string                `json:"type" validate:"omitempty,max=64"`
	Content string                `json:"content" validate:"omitempty,max=20000"`
	Status  string                `json:"status" validate:"omitempty,oneof=draft final"`
	Files   []SubmissionFileInput `json:"files" validate:"omitempty,dive"`
}

// SubmissionUpdateRequest is a partial submission update.
type SubmissionUpdateRequest struct {
	Type    *string                `json:"type" validate:"omitempty,max=64"`
	Content *string                `json:"content" validate:"omitempty,max=20000"`
	Status  *string                `json:"status" validate:"omitempty,oneof=draft final"`
	Files   *[]SubmissionFileInput `json:"files" validate:"omitempty,dive"`
}

// SubmissionFileResponse is an attachment reference returned to clients.
type SubmissionFileResponse struct {
	ID        uint   `json:"id"`
	FileName  string `json:"file_name"`
	URL       string `json:"url"`
	MimeType  string `json:"mime_type"`
	SizeBytes int64  `json:"size_bytes"`
}

// SubmissionResponse is a submission returned to clients.
type SubmissionResponse struct {
	ID          uint                     `json:"id"`
	TenantID    uint                     `json:"tenant_id"`
	EventID     uint                     `json:"event_id"`
	TaskID      uint                     `json:"task_id"`
	TeamID      uint                     `json:"team_id"`
	SubmittedBy uint                     `json:"submitted_by"`
	Type        string                   `json:"type"`
	Content     string                   `json:"content"`
	Status      string                   `json:"status"`
	SubmittedAt *time.Time               `json:"submitted_at"`
	Files       []SubmissionFileResponse `json:"files"`
	CreatedAt   time.Time                `json:"created_at"`
	UpdatedAt   time.Time                `json:"updated_at"`
}

// NewSubmissionResponse converts a submission model into a DTO.
func NewSubmissionResponse(submission models.Submission) SubmissionResponse {
	files := make([]SubmissionFileResponse, 0, len(submission.Files))
	for _, file := range submission.Files {
		files = append(files, SubmissionFileResponse{
			ID:        file.ID,
			FileName:  file.FileName,
			URL:       file.URL,
			MimeType:  file.MimeType,
			SizeBytes: file.SizeBytes,
		})
	}

	return SubmissionResponse{
		ID:          submission.ID,
		TenantID:    submission.TenantID,
		EventID:     submission.EventID,
		TaskID:      submission.TaskID,
		TeamID:      submission.TeamID,
		SubmittedBy: submission.SubmittedBy,
		Type:        submission.Type,
		Content:     submission.Content,
		Status:      submission.Status,
		SubmittedAt: submission.SubmittedAt,
		Files:       files,
		CreatedAt:   submission.CreatedAt,
		UpdatedAt:   submission.UpdatedAt,
	}
}

// NewSubmissionResponseSlice converts a slice to DTOs.
func NewSubmissionResponseSlice(items []models.Submission) []SubmissionResponse {
	out := make([]SubmissionResponse, 0, len(items))
	for _, item := range items {
		out = append(out, NewSubmissionResponse(item))
	}
	return out
}
