package models

import (
	"sort"
	"time"
)

// Rubric scopes.
const (
	RubricScopePhase   = "phase"
	RubricScopeProject = "project"
)

// Default rubric scale bounds applied when none are supplied.
const (
	DefaultRubricScaleMin = 0
	DefaultRubricScaleMax = 10
)

// Rubric is a weighted set of criteria used to score phase or project work.
type Rubric struct {
	ID              uint              `gorm:"primaryKey" json:"id"`
	TenantID        uint              `gorm:"index;not null" json:"tenant_id"`
	EventID         uint              `gorm:"index;not null" json:"event_id"`
	PhaseID         *uint             `gorm:"index" json:"phase_id"`
	Scope           string            `gorm:"column:rubric_scope;size:16;not null" json:"rubric_scope"`
	Name            string            `gorm:"size:255;not null" json:"name"`
	Description     string            `gorm:"type:text" json:"description"`
	ScaleMin        float64           `gorm:"not null" json:"scale_min"`
	ScaleMax        float64           `gorm:"not null" json:"scale_max"`
	ModelPreference string            `gorm:"size:64" json:"model_preference"`
	CreatedBy       uint              `json:"created_by"`
	Criteria        []RubricCriterion `gorm:"foreignKey:RubricID;constraint:OnDelete:CASCADE" json:"criteria"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
}

// TableName keeps the historical table name.
func (Rubric) TableName() string {
	return "phase_rubrics"
}

// SortCriteria orders criteria by order_index, then id.
func (r *Rubric) SortCriteria() {
	sort.SliceStable(r.Criteria, func(i, j int) bool {
		if r.Criteria[i].OrderIndex != r.Criteria[j].OrderIndex {
			return r.Criteria[i].OrderIndex < r.Criteria[j].OrderIndex
		}
		return r.Criteria[i].ID < r.Criteria[j].ID
	})
}

// Usable reports whether the rubric can drive scoring.
func (r Rubric) Usable() bool {
	return len(r.Criteria) > 0
}

// RubricCriterion is a single weighted line of a rubric.
type RubricCriterion struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	TenantID    uint      `gorm:"index;not null" json:"tenant_id"`
	RubricID    uint      `gorm:"index;not null" json:"rubric_id"`
	Title       string    `gorm:"size:255;not null" json:"title"`
	Description string    `gorm:"type:text" json:"description"`
	Weight      float64   `gorm:"not null" json:"weight"`
	MaxScore    *float64  `json:"max_score"`
	OrderIndex  int       `gorm:"not null;default:0" json:"order_index"`
	CreatedAt   time.Time `json:"created_at"`
}

// TableName keeps the historical table name.
func (RubricCriterion) TableName() string {
	return "phase_rubric_criteria"
}

// Ceiling returns the criterion max score, defaulting to the rubric scale.
func (c RubricCriterion) Ceiling(scaleMax float64) float64 {
	if c.MaxScore != nil {
		return *c.MaxScore
	}
	return scaleMax
}
