package ai

import (
	"context"
	"errors"
)

// ErrMissingCredential is returned when the evaluator has no usable API credential.
var ErrMissingCredential = errors.New("ai evaluator credential missing")

// Criterion is a weighted rubric line the model scores against.
type Criterion struct {
	ID          uint    `json:"id"`
	Title       string  `json:"title"`
	Description string  `json:"description,omitempty"`
	Weight      float64 `json:"weight"`
	MaxScore    float64 `json:"max_score"`
}

// Rubric is the scoring scale and criteria sent to the model.
type Rubric struct {
	ID          uint        `json:"id"`
	Name        string      `json:"name"`
	Description string      `json:"description,omitempty"`
	ScaleMin    float64     `json:"scale_min"`
	ScaleMax    float64     `json:"scale_max"`
	Model       string      `json:"model,omitempty"`
	Criteria    []Criterion `json:"criteria"`
}

// File is an attachment reference of a submission.
type File struct {
	Name     string `json:"name"`
	URL      string `json:"url"`
	MimeType string `json:"mime_type,omitempty"`
}

// Submission is the team deliverable under evaluation.
type Submission struct {
	ID      uint   `json:"id"`
	TaskID  uint   `json:"task_id"`
	Type    string `json:"type,omitempty"`
	Content string `json:"content"`
	Files   []File `json:"files,omitempty"`
}

// Task describes what the submission answers.
type Task struct {
	ID          uint   `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

// EvaluationRequest asks for a single-submission evaluation.
type EvaluationRequest struct {
	Rubric     Rubric
	Submission Submission
	Task       Task
	Locale     string
}

// MultiSubmissionRequest asks for one evaluation across several submissions.
type MultiSubmissionRequest struct {
	Rubric      Rubric
	Submissions []Submission
	Tasks       []Task
	Locale      string
}

// CriterionScore is the model's score for one rubric criterion.
type CriterionScore struct {
	CriterionID uint    `json:"criterion_id"`
	Title       string  `json:"title"`
	Score       float64 `json:"score"`
	Feedback    string  `json:"feedback"`
}

// Usage reports token consumption.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// EvaluationResult is the structured feedback returned by the evaluator.
// OverallScore is expressed on the rubric scale.
type EvaluationResult struct {
	OverallScore    float64                `json:"overall_score"`
	OverallFeedback string                 `json:"overall_feedback"`
	RubricSnapshot  map[string]interface{} `json:"rubric_snapshot"`
	Criteria        []CriterionScore       `json:"criteria"`
	Usage           Usage                  `json:"usage"`
	Model           string                 `json:"model"`
	Raw             map[string]interface{} `json:"raw,omitempty"`
}

// Evaluator describes an AI model capable of scoring submissions against a rubric.
type Evaluator interface {
	GenerateEvaluation(ctx context.Context, req EvaluationRequest) (EvaluationResult, error)
	GenerateMultiSubmissionEvaluation(ctx context.Context, req MultiSubmissionRequest) (EvaluationResult, error)
}
