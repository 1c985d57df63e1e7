package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-program-api/internal/dto"
	"github.com/noah-isme/gema-program-api/internal/models"
	"github.com/noah-isme/gema-program-api/internal/repository"
)

// RubricService manages the rubrics used to score phases and projects.
type RubricService interface {
	Create(ctx context.Context, caller Caller, eventID uint, phaseID *uint, req dto.RubricCreateRequest) (dto.RubricResponse, error)
	Update(ctx context.Context, caller Caller, path RubricPath, rubricID uint, req dto.RubricUpdateRequest) (dto.RubricResponse, error)
	Get(ctx context.Context, caller Caller, path RubricPath, rubricID uint) (dto.RubricResponse, error)
	ListForPhase(ctx context.Context, caller Caller, eventID, phaseID uint) ([]dto.RubricResponse, error)
	ListForProject(ctx context.Context, caller Caller, eventID uint) ([]dto.RubricResponse, error)
	Delete(ctx context.Context, caller Caller, path RubricPath, rubricID uint) error

	ResolveForTask(ctx context.Context, task models.Task) (*models.Rubric, error)
	ResolveForPhase(ctx context.Context, phaseID uint) (*models.Rubric, error)
	ResolveForProject(ctx context.Context, eventID uint) (*models.Rubric, error)
}

// RubricPath is the route a rubric was addressed through. A nil PhaseID
// addresses the event's project rubrics.
type RubricPath struct {
	EventID uint
	PhaseID *uint
}

// PhaseRubricPath addresses the rubrics of one phase.
func PhaseRubricPath(eventID, phaseID uint) RubricPath {
	return RubricPath{EventID: eventID, PhaseID: &phaseID}
}

// ProjectRubricPath addresses the project rubrics of an event.
func ProjectRubricPath(eventID uint) RubricPath {
	return RubricPath{EventID: eventID}
}

// matches reports whether the rubric lives under the path.
func (p RubricPath) matches(rubric models.Rubric) bool {
	if rubric.EventID != p.EventID {
		return false
	}
	if p.PhaseID == nil {
		return rubric.PhaseID == nil
	}
	return rubric.PhaseID != nil && *rubric.PhaseID == *p.PhaseID
}

type rubricService struct {
	rubrics   repository.RubricRepository
	program   repository.ProgramRepository
	tx        repository.TransactionScope
	access    *AccessPolicy
	validator *validator.Validate
	logger    zerolog.Logger
	now       func() time.Time
}

// NewRubricService constructs the rubric service.
func NewRubricService(rubrics repository.RubricRepository, program repository.ProgramRepository, tx repository.TransactionScope, access *AccessPolicy, validate *validator.Validate, logger zerolog.Logger) RubricService {
	return &rubricService{
		rubrics:   rubrics,
		program:   program,
		tx:        tx,
		access:    access,
		validator: validate,
		logger:    logger.With().Str("component", "rubric_service").Logger(),
		now:       time.Now,
	}
}

func (s *rubricService) Create(ctx context.Context, caller Caller, eventID uint, phaseID *uint, req dto.RubricCreateRequest) (dto.RubricResponse, error) {
	if err := s.access.RequireManager(caller); err != nil {
		return dto.RubricResponse{}, err
	}
	if err := s.validator.Struct(req); err != nil {
		return dto.RubricResponse{}, err
	}

	event, err := s.loadEvent(ctx, caller, eventID)
	if err != nil {
		return dto.RubricResponse{}, err
	}

	scope := strings.TrimSpace(req.Scope)
	if scope == "" {
		scope = models.RubricScopeProject
		if phaseID != nil {
			scope = models.RubricScopePhase
		}
	}
	if err := checkRubricScope(scope, phaseID); err != nil {
		return dto.RubricResponse{}, err
	}
	if phaseID != nil {
		if err := s.ensurePhaseInEvent(ctx, *phaseID, eventID); err != nil {
			return dto.RubricResponse{}, err
		}
	}

	if len(req.Criteria) == 0 {
		return dto.RubricResponse{}, ErrRubricCriteriaRequired
	}

	scaleMin, scaleMax := float64(models.DefaultRubricScaleMin), float64(models.DefaultRubricScaleMax)
	if req.ScaleMin != nil {
		scaleMin = *req.ScaleMin
	}
	if req.ScaleMax != nil {
		scaleMax = *req.ScaleMax
	}
	if scaleMin >= scaleMax {
		return dto.RubricResponse{}, ErrRubricScaleInvalid
	}

	tenantID, err := resolveTenant(event.TenantID, caller)
	if err != nil {
		s.logger.Error().Uint("event_id", eventID).Msg("rubric create without tenant")
		return dto.RubricResponse{}, err
	}

	rubric := models.Rubric{
		TenantID:        tenantID,
		EventID:         eventID,
		PhaseID:         phaseID,
		Scope:           scope,
		Name:            strings.TrimSpace(req.Name),
		Description:     strings.TrimSpace(req.Description),
		ScaleMin:        scaleMin,
		ScaleMax:        scaleMax,
		ModelPreference: strings.TrimSpace(req.ModelPreference),
		CreatedBy:       caller.UserID,
		Criteria:        buildCriteria(tenantID, req.Criteria),
	}

	var created models.Rubric
	err = s.tx.Execute(ctx, func(repos repository.TransactionalRepositories) error {
		if err := repos.Rubrics().Create(ctx, &rubric); err != nil {
			return err
		}
		if err := recordActivity(ctx, repos.Activity(), tenantID, caller, ActionRubricCreated, "rubric", rubric.ID, map[string]interface{}{
			"event_id": eventID,
			"scope":    scope,
			"criteria": len(rubric.Criteria),
		}); err != nil {
			return err
		}
		created, err = repos.Rubrics().GetByID(ctx, rubric.ID)
		return err
	})
	if err != nil {
		s.logger.Error().Err(err).Uint("event_id", eventID).Uint("tenant_id", tenantID).Msg("failed to create rubric")
		return dto.RubricResponse{}, err
	}

	return dto.NewRubricResponse(created), nil
}

func (s *rubricService) Update(ctx context.Context, caller Caller, path RubricPath, rubricID uint, req dto.RubricUpdateRequest) (dto.RubricResponse, error) {
	if err := s.access.RequireManager(caller); err != nil {
		return dto.RubricResponse{}, err
	}
	if err := s.validator.Struct(req); err != nil {
		return dto.RubricResponse{}, err
	}

	rubric, err := s.loadRubric(ctx, caller, path, rubricID)
	if err != nil {
		return dto.RubricResponse{}, err
	}

	if req.Scope != nil {
		rubric.Scope = strings.TrimSpace(*req.Scope)
	}
	if req.PhaseID.Set {
		rubric.PhaseID = req.PhaseID.Value
	}
	if err := checkRubricScope(rubric.Scope, rubric.PhaseID); err != nil {
		return dto.RubricResponse{}, err
	}
	if req.PhaseID.Set && rubric.PhaseID != nil {
		if err := s.ensurePhaseInEvent(ctx, *rubric.PhaseID, path.EventID); err != nil {
			return dto.RubricResponse{}, err
		}
	}

	if req.Name != nil {
		rubric.Name = strings.TrimSpace(*req.Name)
	}
	if req.Description != nil {
		rubric.Description = strings.TrimSpace(*req.Description)
	}
	if req.ModelPreference != nil {
		rubric.ModelPreference = strings.TrimSpace(*req.ModelPreference)
	}
	if req.ScaleMin != nil {
		rubric.ScaleMin = *req.ScaleMin
	}
	if req.ScaleMax != nil {
		rubric.ScaleMax = *req.ScaleMax
	}
	if rubric.ScaleMin >= rubric.ScaleMax {
		return dto.RubricResponse{}, ErrRubricScaleInvalid
	}

	var replacement []models.RubricCriterion
	if req.Criteria != nil {
		if len(*req.Criteria) == 0 {
			return dto.RubricResponse{}, ErrRubricCriteriaRequired
		}
		replacement = buildCriteria(rubric.TenantID, *req.Criteria)
	}

	rubric.UpdatedAt = s.now()
	rubric.Criteria = nil

	var updated models.Rubric
	err = s.tx.Execute(ctx, func(repos repository.TransactionalRepositories) error {
		if err := repos.Rubrics().Update(ctx, &rubric); err != nil {
			return err
		}
		if replacement != nil {
			if err := repos.Rubrics().ReplaceCriteria(ctx, rubric.ID, replacement); err != nil {
				return err
			}
		}
		if err := recordActivity(ctx, repos.Activity(), rubric.TenantID, caller, ActionRubricUpdated, "rubric", rubric.ID, map[string]interface{}{
			"event_id":          path.EventID,
			"scope":             rubric.Scope,
			"criteria_replaced": replacement != nil,
		}); err != nil {
			return err
		}
		updated, err = repos.Rubrics().GetByID(ctx, rubric.ID)
		return err
	})
	if err != nil {
		s.logger.Error().Err(err).Uint("rubric_id", rubricID).Uint("tenant_id", rubric.TenantID).Msg("failed to update rubric")
		return dto.RubricResponse{}, err
	}

	return dto.NewRubricResponse(updated), nil
}

func (s *rubricService) Get(ctx context.Context, caller Caller, path RubricPath, rubricID uint) (dto.RubricResponse, error) {
	if err := s.access.RequireReviewer(caller); err != nil {
		return dto.RubricResponse{}, err
	}
	rubric, err := s.loadRubric(ctx, caller, path, rubricID)
	if err != nil {
		return dto.RubricResponse{}, err
	}
	return dto.NewRubricResponse(rubric), nil
}

func (s *rubricService) ListForPhase(ctx context.Context, caller Caller, eventID, phaseID uint) ([]dto.RubricResponse, error) {
	if err := s.access.RequireReviewer(caller); err != nil {
		return nil, err
	}
	if _, err := s.loadEvent(ctx, caller, eventID); err != nil {
		return nil, err
	}
	if err := s.ensurePhaseInEvent(ctx, phaseID, eventID); err != nil {
		return nil, err
	}

	rubrics, err := s.rubrics.ListByPhase(ctx, eventID, phaseID)
	if err != nil {
		return nil, err
	}
	return dto.NewRubricResponseSlice(rubrics), nil
}

func (s *rubricService) ListForProject(ctx context.Context, caller Caller, eventID uint) ([]dto.RubricResponse, error) {
	if err := s.access.RequireReviewer(caller); err != nil {
		return nil, err
	}
	if _, err := s.loadEvent(ctx, caller, eventID); err != nil {
		return nil, err
	}

	rubrics, err := s.rubrics.ListByScope(ctx, eventID, models.RubricScopeProject)
	if err != nil {
		return nil, err
	}
	return dto.NewRubricResponseSlice(rubrics), nil
}

func (s *rubricService) Delete(ctx context.Context, caller Caller, path RubricPath, rubricID uint) error {
	if err := s.access.RequireManager(caller); err != nil {
		return err
	}

	rubric, err := s.loadRubric(ctx, caller, path, rubricID)
	if err != nil {
		return err
	}

	err = s.tx.Execute(ctx, func(repos repository.TransactionalRepositories) error {
		if err := repos.Program().ClearTaskRubric(ctx, rubric.ID); err != nil {
			return err
		}
		if err := repos.Rubrics().Delete(ctx, rubric.ID); err != nil {
			return notFoundOr(err, ErrRubricNotFound)
		}
		return recordActivity(ctx, repos.Activity(), rubric.TenantID, caller, ActionRubricDeleted, "rubric", rubric.ID, map[string]interface{}{
			"event_id": path.EventID,
			"scope":    rubric.Scope,
		})
	})
	if err != nil && !errors.Is(err, ErrRubricNotFound) {
		s.logger.Error().Err(err).Uint("rubric_id", rubricID).Msg("failed to delete rubric")
	}
	return err
}

func (s *rubricService) ResolveForTask(ctx context.Context, task models.Task) (*models.Rubric, error) {
	if task.PhaseRubricID != nil {
		rubric, err := s.rubrics.GetByID(ctx, *task.PhaseRubricID)
		if err == nil {
			return &rubric, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
	}
	return s.rubrics.LatestForPhase(ctx, task.PhaseID)
}

func (s *rubricService) ResolveForPhase(ctx context.Context, phaseID uint) (*models.Rubric, error) {
	return s.rubrics.LatestForPhase(ctx, phaseID)
}

func (s *rubricService) ResolveForProject(ctx context.Context, eventID uint) (*models.Rubric, error) {
	return s.rubrics.LatestForProject(ctx, eventID)
}

func (s *rubricService) loadEvent(ctx context.Context, caller Caller, eventID uint) (models.Event, error) {
	event, err := s.program.GetEvent(ctx, eventID)
	if err != nil {
		return models.Event{}, notFoundOr(err, ErrEventNotFound)
	}
	if err := s.access.EnsureTenant(caller, event.TenantID, ErrEventNotFound); err != nil {
		return models.Event{}, err
	}
	return event, nil
}

func (s *rubricService) loadRubric(ctx context.Context, caller Caller, path RubricPath, rubricID uint) (models.Rubric, error) {
	rubric, err := s.rubrics.GetByID(ctx, rubricID)
	if err != nil {
		return models.Rubric{}, notFoundOr(err, ErrRubricNotFound)
	}
	if !path.matches(rubric) {
		return models.Rubric{}, ErrRubricNotFound
	}
	if err := s.access.EnsureTenant(caller, rubric.TenantID, ErrRubricNotFound); err != nil {
		return models.Rubric{}, err
	}
	return rubric, nil
}

func (s *rubricService) ensurePhaseInEvent(ctx context.Context, phaseID, eventID uint) error {
	phase, err := s.program.GetPhase(ctx, phaseID)
	if err != nil {
		return notFoundOr(err, ErrPhaseNotFound)
	}
	if phase.EventID != eventID {
		return ErrPhaseNotFound
	}
	return nil
}

func checkRubricScope(scope string, phaseID *uint) error {
	switch scope {
	case models.RubricScopePhase:
		if phaseID == nil {
			return ErrRubricScopePhaseMismatch
		}
	case models.RubricScopeProject:
		if phaseID != nil {
			return ErrRubricScopePhaseMismatch
		}
	default:
		return ErrRubricScopePhaseMismatch.Withf("unknown rubric scope %q", scope)
	}
	return nil
}

func buildCriteria(tenantID uint, inputs []dto.RubricCriterionInput) []models.RubricCriterion {
	criteria := make([]models.RubricCriterion, 0, len(inputs))
	for i, input := range inputs {
		weight := 1.0
		if input.Weight != nil {
			weight = *input.Weight
		}
		order := i
		if input.OrderIndex != nil {
			order = *input.OrderIndex
		}
		criteria = append(criteria, models.RubricCriterion{
			TenantID:    tenantID,
			Title:       strings.TrimSpace(input.Title),
			Description: strings.TrimSpace(input.Description),
			Weight:      weight,
			MaxScore:    input.MaxScore,
			OrderIndex:  order,
		})
	}
	return criteria
}
