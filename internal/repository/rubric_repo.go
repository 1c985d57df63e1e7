package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/gema-program-api/internal/models"
)

// RubricRepository persists rubrics and their criteria.
type RubricRepository interface {
	Create(ctx context.Context, rubric *models.Rubric) error
	Update(ctx context.Context, rubric *models.Rubric) error
	ReplaceCriteria(ctx context.Context, rubricID uint, criteria []models.RubricCriterion) error
	GetByID(ctx context.Context, id uint) (models.Rubric, error)
	ListByPhase(ctx context.Context, eventID, phaseID uint) ([]models.Rubric, error)
	ListByScope(ctx context.Context, eventID uint, scope string) ([]models.Rubric, error)
	LatestForPhase(ctx context.Context, phaseID uint) (*models.Rubric, error)
	LatestForProject(ctx context.Context, eventID uint) (*models.Rubric, error)
	Delete(ctx context.Context, id uint) error
}

type rubricRepository struct {
	db *gorm.DB
}

// NewRubricRepository constructs a repository backed by GORM.
func NewRubricRepository(db *gorm.DB) RubricRepository {
	return &rubricRepository{db: db}
}

func orderedCriteria(db *gorm.DB) *gorm.DB {
	return db.Order("order_index ASC").Order("id ASC")
}

func (r *rubricRepository) Create(ctx context.Context, rubric *models.Rubric) error {
	return r.db.WithContext(ctx).Create(rubric).Error
}

func (r *rubricRepository) Update(ctx context.Context, rubric *models.Rubric) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Save(rubric).Error
}

func (r *rubricRepository) ReplaceCriteria(ctx context.Context, rubricID uint, criteria []models.RubricCriterion) error {
	db := r.db.WithContext(ctx)
	if err := db.Where("rubric_id = ?", rubricID).Delete(&models.RubricCriterion{}).Error; err != nil {
		return err
	}
	if len(criteria) == 0 {
		return nil
	}
	for i := range criteria {
		criteria[i].ID = 0
		criteria[i].RubricID = rubricID
	}
	return db.Create(&criteria).Error
}

func (r *rubricRepository) GetByID(ctx context.Context, id uint) (models.Rubric, error) {
	var rubric models.Rubric
	err := r.db.WithContext(ctx).
		Preload("Criteria", orderedCriteria).
		First(&rubric, id).Error
	return rubric, err
}

func (r *rubricRepository) ListByPhase(ctx context.Context, eventID, phaseID uint) ([]models.Rubric, error) {
	var rubrics []models.Rubric
	err := r.db.WithContext(ctx).
		Preload("Criteria", orderedCriteria).
		Where("event_id = ? AND phase_id = ? AND rubric_scope = ?", eventID, phaseID, models.RubricScopePhase).
		Order("created_at DESC").
		Order("id DESC").
		Find(&rubrics).Error
	return rubrics, err
}

func (r *rubricRepository) ListByScope(ctx context.Context, eventID uint, scope string) ([]models.Rubric, error) {
	var rubrics []models.Rubric
	err := r.db.WithContext(ctx).
		Preload("Criteria", orderedCriteria).
		Where("event_id = ? AND rubric_scope = ?", eventID, scope).
		Order("created_at DESC").
		Order("id DESC").
		Find(&rubrics).Error
	return rubrics, err
}

func (r *rubricRepository) LatestForPhase(ctx context.Context, phaseID uint) (*models.Rubric, error) {
	var rubric models.Rubric
	err := r.db.WithContext(ctx).
		Preload("Criteria", orderedCriteria).
		Where("phase_id = ? AND rubric_scope = ?", phaseID, models.RubricScopePhase).
		Order("created_at DESC").
		Order("id DESC").
		First(&rubric).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &rubric, nil
}

func (r *rubricRepository) LatestForProject(ctx context.Context, eventID uint) (*models.Rubric, error) {
	var rubric models.Rubric
	err := r.db.WithContext(ctx).
		Preload("Criteria", orderedCriteria).
		Where("event_id = ? AND rubric_scope = ?", eventID, models.RubricScopeProject).
		Order("created_at DESC").
		Order("id DESC").
		First(&rubric).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &rubric, nil
}

func (r *rubricRepository) Delete(ctx context.Context, id uint) error {
	db := r.db.WithContext(ctx)
	if err := db.Where("rubric_id = ?", id).Delete(&models.RubricCriterion{}).Error; err != nil {
		return err
	}
	result := db.Delete(&models.Rubric{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
