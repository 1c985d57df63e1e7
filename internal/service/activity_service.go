package service

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/rs/zerolog"
	"gorm.io/datatypes"

	"github.com/noah-isme/gema-program-api/internal/dto"
	"github.com/noah-isme/gema-program-api/internal/models"
	"github.com/noah-isme/gema-program-api/internal/repository"
)

// Audit actions recorded by the evaluation workflows.
const (
	ActionEvaluationCreated   = "evaluation.created"
	ActionEvaluationUpdated   = "evaluation.updated"
	ActionEvaluationFinalized = "evaluation.finalized"
	ActionRubricCreated       = "rubric.created"
	ActionRubricUpdated       = "rubric.updated"
	ActionRubricDeleted       = "rubric.deleted"
	ActionSubmissionCreated   = "submission.created"
	ActionSubmissionUpdated   = "submission.updated"
)

// ActivityEntry captures the details required to persist an audit entry.
type ActivityEntry struct {
	ActorID    uint
	ActorRole  string
	Action     string
	EntityType string
	EntityID   *uint
	Metadata   map[string]interface{}
}

// ActivityService exposes methods to query and persist activity logs.
type ActivityService interface {
	Record(ctx context.Context, tenantID uint, entry ActivityEntry) (dto.ActivityResponse, error)
	List(ctx context.Context, caller Caller, req dto.ActivityListRequest) (dto.ActivityListResponse, error)
}

type activityService struct {
	repo   repository.ActivityLogRepository
	logger zerolog.Logger
}

// NewActivityService constructs the activity log service.
func NewActivityService(repo repository.ActivityLogRepository, logger zerolog.Logger) ActivityService {
	return &activityService{
		repo:   repo,
		logger: logger.With().Str("component", "activity_service").Logger(),
	}
}

func (s *activityService) Record(ctx context.Context, tenantID uint, entry ActivityEntry) (dto.ActivityResponse, error) {
	model, err := buildActivityLog(tenantID, entry)
	if err != nil {
		return dto.ActivityResponse{}, err
	}

	if err := s.repo.Create(ctx, &model); err != nil {
		s.logger.Error().Err(err).Str("action", model.Action).Msg("failed to persist activity log")
		return dto.ActivityResponse{}, err
	}

	return dto.NewActivityResponse(model), nil
}

func (s *activityService) List(ctx context.Context, caller Caller, req dto.ActivityListRequest) (dto.ActivityListResponse, error) {
	if !caller.IsManager() {
		return dto.ActivityListResponse{}, ErrManagerRequired
	}

	filter := repository.ActivityLogFilter{
		TenantID:   req.TenantID,
		Page:       req.Page,
		PageSize:   req.PageSize,
		Action:     strings.TrimSpace(req.Action),
		EntityType: strings.TrimSpace(req.EntityType),
	}
	if !caller.IsSuperAdmin {
		filter.TenantID = caller.TenantID
	}
	if req.ActorID > 0 {
		filter.ActorID = &req.ActorID
	}

	entries, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return dto.ActivityListResponse{}, err
	}

	responses := make([]dto.ActivityResponse, 0, len(entries))
	for _, entry := range entries {
		responses = append(responses, dto.NewActivityResponse(entry))
	}

	pagination := dto.PaginationMeta{
		Page:       maxInt(req.Page, 1),
		PageSize:   req.PageSize,
		TotalItems: total,
	}
	if req.PageSize > 0 {
		pagination.TotalPages = int(math.Ceil(float64(total) / float64(req.PageSize)))
	} else {
		pagination.TotalPages = 1
	}

	return dto.ActivityListResponse{Items: responses, Pagination: pagination}, nil
}

// buildActivityLog normalises an entry so it can be written through any repository,
// including one bound to a transaction.
func buildActivityLog(tenantID uint, entry ActivityEntry) (models.ActivityLog, error) {
	if strings.TrimSpace(entry.Action) == "" {
		return models.ActivityLog{}, fmt.Errorf("action is required")
	}
	if strings.TrimSpace(entry.EntityType) == "" {
		return models.ActivityLog{}, fmt.Errorf("entity type is required")
	}

	return models.ActivityLog{
		TenantID:   tenantID,
		ActorID:    entry.ActorID,
		ActorRole:  normalizeRole(entry.ActorRole),
		Action:     strings.ToLower(strings.TrimSpace(entry.Action)),
		EntityType: strings.ToLower(strings.TrimSpace(entry.EntityType)),
		EntityID:   entry.EntityID,
		Metadata:   sanitizeMetadata(entry.Metadata),
	}, nil
}

func recordActivity(ctx context.Context, repo repository.ActivityLogRepository, tenantID uint, caller Caller, action, entityType string, entityID uint, metadata map[string]interface{}) error {
	id := entityID
	model, err := buildActivityLog(tenantID, ActivityEntry{
		ActorID:    caller.UserID,
		ActorRole:  caller.Role,
		Action:     action,
		EntityType: entityType,
		EntityID:   &id,
		Metadata:   metadata,
	})
	if err != nil {
		return err
	}
	return repo.Create(ctx, &model)
}

func sanitizeMetadata(metadata map[string]interface{}) datatypes.JSONMap {
	if metadata == nil {
		return datatypes.JSONMap{}
	}

	sanitized := datatypes.JSONMap{}
	for key, value := range metadata {
		lower := strings.ToLower(key)
		if strings.Contains(lower, "email") || strings.Contains(lower, "token") {
			sanitized[key] = "***"
			continue
		}
		sanitized[key] = value
	}
	return sanitized
}

func normalizeRole(role string) string {
	r := strings.ToLower(strings.TrimSpace(role))
	if r == "" {
		return "system"
	}
	return r
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
