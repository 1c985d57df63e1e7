package models

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

// Evaluation statuses.
const (
	EvaluationStatusDraft = "draft"
	EvaluationStatusFinal = "final"
)

// Evaluation sources.
const (
	EvaluationSourceManual     = "manual"
	EvaluationSourceAIAssisted = "ai_assisted"
)

// Evaluation scopes, derived from the populated foreign keys.
const (
	EvaluationScopeSubmission = "submission"
	EvaluationScopePhase      = "phase"
	EvaluationScopeProject    = "project"
)

// Evaluation is scored feedback attached to exactly one of a submission,
// a phase of a team, or a project of a team.
type Evaluation struct {
	ID                     uint              `gorm:"primaryKey" json:"id"`
	TenantID               uint              `gorm:"index;not null" json:"tenant_id"`
	SubmissionID           *uint             `gorm:"index" json:"submission_id"`
	PhaseID                *uint             `gorm:"index" json:"phase_id"`
	ProjectID              *uint             `gorm:"index" json:"project_id"`
	TeamID                 *uint             `gorm:"index" json:"team_id"`
	EvaluatedSubmissionIDs datatypes.JSON    `gorm:"type:json" json:"evaluated_submission_ids"`
	Score                  *float64          `json:"score"`
	Comment                string            `gorm:"type:text;not null" json:"comment"`
	Status                 string            `gorm:"size:16;not null;default:draft" json:"status"`
	Source                 string            `gorm:"size:16;not null;default:manual" json:"source"`
	RubricSnapshot         datatypes.JSON    `gorm:"type:json" json:"rubric_snapshot"`
	Metadata               datatypes.JSONMap `gorm:"type:json" json:"metadata"`
	EvaluatorID            uint              `gorm:"index" json:"evaluator_id"`
	CreatedAt              time.Time         `json:"created_at"`
	UpdatedAt              time.Time         `json:"updated_at"`
}

// Scope reports which target the evaluation is attached to.
func (e Evaluation) Scope() string {
	switch {
	case e.SubmissionID != nil:
		return EvaluationScopeSubmission
	case e.PhaseID != nil:
		return EvaluationScopePhase
	case e.ProjectID != nil:
		return EvaluationScopeProject
	default:
		return ""
	}
}

// IsFinal reports whether the evaluation has been finalised.
func (e Evaluation) IsFinal() bool {
	return e.Status == EvaluationStatusFinal
}

// SetEvaluatedSubmissionIDs serialises the considered submissions into the JSON column.
func (e *Evaluation) SetEvaluatedSubmissionIDs(ids []uint) {
	if ids == nil {
		e.EvaluatedSubmissionIDs = nil
		return
	}
	data, err := json.Marshal(ids)
	if err != nil {
		e.EvaluatedSubmissionIDs = datatypes.JSON([]byte("[]"))
		return
	}
	e.EvaluatedSubmissionIDs = datatypes.JSON(data)
}

// EvaluatedSubmissionIDList deserialises the considered submissions.
func (e Evaluation) EvaluatedSubmissionIDList() []uint {
	if len(e.EvaluatedSubmissionIDs) == 0 {
		return nil
	}

	var ids []uint
	if err := json.Unmarshal(e.EvaluatedSubmissionIDs, &ids); err != nil {
		return nil
	}

	return ids
}
