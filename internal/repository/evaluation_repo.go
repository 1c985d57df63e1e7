package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/noah-isme/gema-program-api/internal/models"
)

// EvaluationRepository persists evaluations of every scope.
type EvaluationRepository interface {
	Create(ctx context.Context, evaluation *models.Evaluation) error
	UpdateIfStatus(ctx context.Context, evaluation *models.Evaluation, currentStatus string) (bool, error)
	GetByID(ctx context.Context, id uint) (models.Evaluation, error)
	ListBySubmission(ctx context.Context, submissionID uint) ([]models.Evaluation, error)
	ListBySubmissionIDs(ctx context.Context, submissionIDs []uint) ([]models.Evaluation, error)
	LatestFinalForSubmission(ctx context.Context, submissionID uint) (*models.Evaluation, error)
	ListByPhaseTeam(ctx context.Context, phaseID, teamID uint) ([]models.Evaluation, error)
	HasFinalPhaseEvaluation(ctx context.Context, phaseID, teamID uint) (bool, error)
	ListByProject(ctx context.Context, projectID uint) ([]models.Evaluation, error)
}

type evaluationRepository struct {
	db *gorm.DB
}

// NewEvaluationRepository constructs a repository backed by GORM.
func NewEvaluationRepository(db *gorm.DB) EvaluationRepository {
	return &evaluationRepository{db: db}
}

func (r *evaluationRepository) Create(ctx context.Context, evaluation *models.Evaluation) error {
	return r.db.WithContext(ctx).Create(evaluation).Error
}

// UpdateIfStatus writes the mutable columns only while the stored status still equals
// currentStatus. It reports false when another writer changed the status first.
func (r *evaluationRepository) UpdateIfStatus(ctx context.Context, evaluation *models.Evaluation, currentStatus string) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Evaluation{}).
		Where("id = ? AND status = ?", evaluation.ID, currentStatus).
		Select("score", "comment", "status", "rubric_snapshot", "metadata", "updated_at").
		Updates(map[string]interface{}{
			"score":           evaluation.Score,
			"comment":         evaluation.Comment,
			"status":          evaluation.Status,
			"rubric_snapshot": evaluation.RubricSnapshot,
			"metadata":        evaluation.Metadata,
			"updated_at":      evaluation.UpdatedAt,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *evaluationRepository) GetByID(ctx context.Context, id uint) (models.Evaluation, error) {
	var evaluation models.Evaluation
	err := r.db.WithContext(ctx).First(&evaluation, id).Error
	return evaluation, err
}

func (r *evaluationRepository) ListBySubmission(ctx context.Context, submissionID uint) ([]models.Evaluation, error) {
	var evaluations []models.Evaluation
	err := r.db.WithContext(ctx).
		Where("submission_id = ?", submissionID).
		Order("created_at DESC").
		Order("id DESC").
		Find(&evaluations).Error
	return evaluations, err
}

func (r *evaluationRepository) ListBySubmissionIDs(ctx context.Context, submissionIDs []uint) ([]models.Evaluation, error) {
	if len(submissionIDs) == 0 {
		return []models.Evaluation{}, nil
	}
	var evaluations []models.Evaluation
	err := r.db.WithContext(ctx).
		Where("submission_id IN ?", submissionIDs).
		Order("created_at DESC").
		Order("id DESC").
		Find(&evaluations).Error
	return evaluations, err
}

func (r *evaluationRepository) LatestFinalForSubmission(ctx context.Context, submissionID uint) (*models.Evaluation, error) {
	var evaluation models.Evaluation
	err := r.db.WithContext(ctx).
		Where("submission_id = ? AND status = ?", submissionID, models.EvaluationStatusFinal).
		Order("updated_at DESC").
		Order("id DESC").
		First(&evaluation).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &evaluation, nil
}

func (r *evaluationRepository) ListByPhaseTeam(ctx context.Context, phaseID, teamID uint) ([]models.Evaluation, error) {
	var evaluations []models.Evaluation
	err := r.db.WithContext(ctx).
		Where("phase_id = ? AND team_id = ?", phaseID, teamID).
		Order("created_at DESC").
		Order("id DESC").
		Find(&evaluations).Error
	return evaluations, err
}

func (r *evaluationRepository) HasFinalPhaseEvaluation(ctx context.Context, phaseID, teamID uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Evaluation{}).
		Where("phase_id = ? AND team_id = ? AND status = ?", phaseID, teamID, models.EvaluationStatusFinal).
		Count(&count).Error
	return count > 0, err
}

func (r *evaluationRepository) ListByProject(ctx context.Context, projectID uint) ([]models.Evaluation, error) {
	var evaluations []models.Evaluation
	err := r.db.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("created_at DESC").
		Order("id DESC").
		Find(&evaluations).Error
	return evaluations, err
}
