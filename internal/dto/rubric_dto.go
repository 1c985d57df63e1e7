package dto

import (
	"time"

	"github.com/noah-isme/gema-program-api/internal/models"
)

// RubricCriterionInput describes a criterion in create and update payloads.
type RubricCriterionInput struct {
	Title       string   `json:"title" validate:"required,max=255"`
	Description string   `json:"description" validate:"omitempty,max=4000"`
	Weight      *float64 `json:"weight" validate:"omitempty,gte=0"`
	MaxScore    *float64 `json:"max_score" validate:"omitempty,gt=0"`
	OrderIndex  *int     `json:"order_index"`
}

// RubricCreateRequest is the payload used to create a rubric.
type RubricCreateRequest struct {
	Name            string                 `json:"name" validate:"required,max=255"`
	Description     string                 `json:"description" validate:"omitempty,max=4000"`
	Scope           string                 `json:"rubric_scope" validate:"omitempty,oneof=phase project"`
	ScaleMin        *float64               `json:"scale_min"`
	ScaleMax        *float64               `json:"scale_max"`
	ModelPreference string                 `json:"model_preference" validate:"omitempty,max=64"`
	Criteria        []RubricCriterionInput `json:"criteria" validate:"dive"`
}

// RubricUpdateRequest is a partial rubric update. A supplied criteria list
// replaces every existing criterion.
type RubricUpdateRequest struct {
	Name            *string                 `json:"name" validate:"omitempty,min=1,max=255"`
	Description     *string                 `json:"description" validate:"omitempty,max=4000"`
	Scope           *string                 `json:"rubric_scope" validate:"omitempty,oneof=phase project"`
	PhaseID         NullableUint            `json:"phase_id"`
	ScaleMin        *float64                `json:"scale_min"`
	ScaleMax        *float64                `json:"scale_max"`
	ModelPreference *string                 `json:"model_preference" validate:"omitempty,max=64"`
	Criteria        *[]RubricCriterionInput `json:"criteria" validate:"omitempty,dive"`
}

// RubricCriterionResponse is a criterion returned to clients.
type RubricCriterionResponse struct {
	ID                uint     `json:"id"`
	Title             string   `json:"title"`
	Description       string   `json:"description"`
	Weight            float64  `json:"weight"`
	MaxScore          *float64 `json:"max_score"`
	EffectiveMaxScore float64  `json:"effective_max_score"`
	OrderIndex        int      `json:"order_index"`
}

// RubricResponse is a rubric with its ordered criteria.
type RubricResponse struct {
	ID              uint                      `json:"id"`
	TenantID        uint                      `json:"tenant_id"`
	EventID         uint                      `json:"event_id"`
	PhaseID         *uint                     `json:"phase_id"`
	Scope           string                    `json:"rubric_scope"`
	Name            string                    `json:"name"`
	Description     string                    `json:"description"`
	ScaleMin        float64                   `json:"scale_min"`
	ScaleMax        float64                   `json:"scale_max"`
	ModelPreference string                    `json:"model_preference"`
	CreatedBy       uint                      `json:"created_by"`
	Criteria        []RubricCriterionResponse `json:"criteria"`
	CreatedAt       time.Time                 `json:"created_at"`
	UpdatedAt       time.Time                 `json:"updated_at"`
}

// NewRubricResponse converts a rubric model, sorting its criteria.
func NewRubricResponse(rubric models.Rubric) RubricResponse {
	rubric.Criteria = append([]models.RubricCriterion(nil), rubric.Criteria...)
	rubric.SortCriteria()

	criteria := make([]RubricCriterionResponse, 0, len(rubric.Criteria))
	for _, criterion := range rubric.Criteria {
		criteria = append(criteria, RubricCriterionResponse{
			ID:                criterion.ID,
			Title:             criterion.Title,
			Description:       criterion.Description,
			Weight:            criterion.Weight,
			MaxScore:          criterion.MaxScore,
			EffectiveMaxScore: criterion.Ceiling(rubric.ScaleMax),
			OrderIndex:        criterion.OrderIndex,
		})
	}

	return RubricResponse{
		ID:              rubric.ID,
		TenantID:        rubric.TenantID,
		EventID:         rubric.EventID,
		PhaseID:         rubric.PhaseID,
		Scope:           rubric.Scope,
		Name:            rubric.Name,
		Description:     rubric.Description,
		ScaleMin:        rubric.ScaleMin,
		ScaleMax:        rubric.ScaleMax,
		ModelPreference: rubric.ModelPreference,
		CreatedBy:       rubric.CreatedBy,
		Criteria:        criteria,
		CreatedAt:       rubric.CreatedAt,
		UpdatedAt:       rubric.UpdatedAt,
	}
}

// NewRubricResponseSlice converts a slice to DTOs.
func NewRubricResponseSlice(items []models.Rubric) []RubricResponse {
	out := make([]RubricResponse, 0, len(items))
	for _, item := range items {
		out = append(out, NewRubricResponse(item))
	}
	return out
}
