package dto

import (
	"encoding/json"
	"time"

	"github.com/noah-isme/gema-program-api/internal/models"
)

// EvaluationInput holds the fields shared by every manual evaluation payload.
type EvaluationInput struct {
	Score          ScoreInput             `json:"score"`
	Comment        string                 `json:"comment"`
	Status         string                 `json:"status" validate:"omitempty,oneof=draft final"`
	Source         string                 `json:"source" validate:"omitempty,oneof=manual ai_assisted"`
	RubricSnapshot map[string]interface{} `json:"rubric_snapshot"`
	Metadata       map[string]interface{} `json:"metadata"`
}

// PhaseEvaluationRequest is a manual evaluation of a team's phase work.
type PhaseEvaluationRequest struct {
	EvaluationInput
	SubmissionIDs []uint `json:"submission_ids"`
}

// ProjectEvaluationRequest is a manual evaluation of a team's project.
type ProjectEvaluationRequest struct {
	EvaluationInput
	TeamID        *uint  `json:"team_id"`
	SubmissionIDs []uint `json:"submission_ids"`
}

// AIEvaluationRequest asks the AI collaborator to score a target.
type AIEvaluationRequest struct {
	Locale        string `json:"locale" validate:"omitempty,max=16"`
	SubmissionIDs []uint `json:"submission_ids"`
}

// EvaluationUpdateRequest is a partial update. ExpectedStatus, when given,
// must match the stored status for the update to apply.
type EvaluationUpdateRequest struct {
	Score          ScoreInput             `json:"score"`
	Comment        *string                `json:"comment"`
	Status         *string                `json:"status" validate:"omitempty,oneof=draft final"`
	RubricSnapshot map[string]interface{} `json:"rubric_snapshot"`
	Metadata       map[string]interface{} `json:"metadata"`
	ExpectedStatus *string                `json:"expected_status" validate:"omitempty,oneof=draft final"`
}

// EvaluationResponse is an evaluation returned to clients.
type EvaluationResponse struct {
	ID                     uint                   `json:"id"`
	TenantID               uint                   `json:"tenant_id"`
	Scope                  string                 `json:"scope"`
	SubmissionID           *uint                  `json:"submission_id"`
	PhaseID                *uint                  `json:"phase_id"`
	ProjectID              *uint                  `json:"project_id"`
	TeamID                 *uint                  `json:"team_id"`
	EvaluatedSubmissionIDs []uint                 `json:"evaluated_submission_ids"`
	Score                  *float64               `json:"score"`
	Comment                string                 `json:"comment"`
	Status                 string                 `json:"status"`
	Source                 string                 `json:"source"`
	RubricSnapshot         json.RawMessage        `json:"rubric_snapshot"`
	Metadata               map[string]interface{} `json:"metadata"`
	EvaluatorID            uint                   `json:"evaluator_id"`
	CreatedAt              time.Time              `json:"created_at"`
	UpdatedAt              time.Time              `json:"updated_at"`
}

// NewEvaluationResponse converts an evaluation model into a DTO.
func NewEvaluationResponse(evaluation models.Evaluation) EvaluationResponse {
	var snapshot json.RawMessage
	if len(evaluation.RubricSnapshot) > 0 {
		snapshot = json.RawMessage(evaluation.RubricSnapshot)
	}

	metadata := map[string]interface{}{}
	for key, value := range evaluation.Metadata {
		metadata[key] = value
	}

	return EvaluationResponse{
		ID:                     evaluation.ID,
		TenantID:               evaluation.TenantID,
		Scope:                  evaluation.Scope(),
		SubmissionID:           evaluation.SubmissionID,
		PhaseID:                evaluation.PhaseID,
		ProjectID:              evaluation.ProjectID,
		TeamID:                 evaluation.TeamID,
		EvaluatedSubmissionIDs: evaluation.EvaluatedSubmissionIDList(),
		Score:                  evaluation.Score,
		Comment:                evaluation.Comment,
		Status:                 evaluation.Status,
		Source:                 evaluation.Source,
		RubricSnapshot:         snapshot,
		Metadata:               metadata,
		EvaluatorID:            evaluation.EvaluatorID,
		CreatedAt:              evaluation.CreatedAt,
		UpdatedAt:              evaluation.UpdatedAt,
	}
}

// NewEvaluationResponseSlice converts a slice to DTOs.
func NewEvaluationResponseSlice(items []models.Evaluation) []EvaluationResponse {
	out := make([]EvaluationResponse, 0, len(items))
	for _, item := range items {
		out = append(out, NewEvaluationResponse(item))
	}
	return out
}
