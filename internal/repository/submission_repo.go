package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/gema-program-api/internal/models"
)

// SubmissionFilter narrows submission queries.
type SubmissionFilter struct {
	EventID *uint
	TaskID  *uint
	TaskIDs []uint
	TeamID  *uint
	IDs     []uint
	Status  string
}

// SubmissionRepository persists team submissions.
type SubmissionRepository interface {
	Create(ctx context.Context, submission *models.Submission) error
	Update(ctx context.Context, submission *models.Submission) error
	ReplaceFiles(ctx context.Context, submissionID uint, files []models.SubmissionFile) error
	GetByID(ctx context.Context, id uint) (models.Submission, error)
	List(ctx context.Context, filter SubmissionFilter) ([]models.Submission, error)
	CurrentFinal(ctx context.Context, teamID, taskID uint) (*models.Submission, error)
	CountByStatus(ctx context.Context, eventID uint) (map[string]int, error)
}

type submissionRepository struct {
	db *gorm.DB
}

// NewSubmissionRepository creates a new submission repository instance.
func NewSubmissionRepository(db *gorm.DB) SubmissionRepository {
	return &submissionRepository{db: db}
}

func (r *submissionRepository) Create(ctx context.Context, submission *models.Submission) error {
	return r.db.WithContext(ctx).Create(submission).Error
}

func (r *submissionRepository) Update(ctx context.Context, submission *models.Submission) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Save(submission).Error
}

func (r *submissionRepository) ReplaceFiles(ctx context.Context, submissionID uint, files []models.SubmissionFile) error {
	db := r.db.WithContext(ctx)
	if err := db.Where("submission_id = ?", submissionID).Delete(&models.SubmissionFile{}).Error; err != nil {
		return err
	}
	if len(files) == 0 {
		return nil
	}
	for i := range files {
		files[i].ID = 0
		files[i].SubmissionID = submissionID
	}
	return db.Create(&files).Error
}

func (r *submissionRepository) GetByID(ctx context.Context, id uint) (models.Submission, error) {
	var submission models.Submission
	err := r.db.WithContext(ctx).Preload("Files").First(&submission, id).Error
	return submission, err
}

func (r *submissionRepository) List(ctx context.Context, filter SubmissionFilter) ([]models.Submission, error) {
	query := r.db.WithContext(ctx).Model(&models.Submission{}).Preload("Files")

	if filter.EventID != nil {
		query = query.Where("event_id = ?", *filter.EventID)
	}
	if filter.TaskID != nil {
		query = query.Where("task_id = ?", *filter.TaskID)
	}
	if filter.TaskIDs != nil {
		query = query.Where("task_id IN ?", nonEmptyIDs(filter.TaskIDs))
	}
	if filter.TeamID != nil {
		query = query.Where("team_id = ?", *filter.TeamID)
	}
	if filter.IDs != nil {
		query = query.Where("id IN ?", nonEmptyIDs(filter.IDs))
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}

	var submissions []models.Submission
	if err := query.Order("created_at DESC").Order("id DESC").Find(&submissions).Error; err != nil {
		return nil, err
	}
	return submissions, nil
}

func (r *submissionRepository) CurrentFinal(ctx context.Context, teamID, taskID uint) (*models.Submission, error) {
	var submission models.Submission
	err := r.db.WithContext(ctx).
		Preload("Files").
		Where("team_id = ? AND task_id = ? AND status = ?", teamID, taskID, models.SubmissionStatusFinal).
		Order("submitted_at IS NULL").
		Order("submitted_at DESC").
		Order("id DESC").
		First(&submission).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &submission, nil
}

func (r *submissionRepository) CountByStatus(ctx context.Context, eventID uint) (map[string]int, error) {
	type row struct {
		Status string
		Total  int
	}

	var rows []row
	if err := r.db.WithContext(ctx).
		Model(&models.Submission{}).
		Select("status, COUNT(*) AS total").
		Where("event_id = ?", eventID).
		Group("status").
		Scan(&rows).Error; err != nil {
		return nil, err
	}

	counts := make(map[string]int, len(rows))
	for _, item := range rows {
		counts[item.Status] = item.Total
	}
	return counts, nil
}

// nonEmptyIDs keeps IN clauses valid when the caller passes an empty, non-nil slice.
func nonEmptyIDs(ids []uint) []uint {
	if len(ids) == 0 {
		return []uint{0}
	}
	return ids
}
