package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/datatypes"

	"github.com/noah-isme/gema-program-api/internal/dto"
	"github.com/noah-isme/gema-program-api/internal/models"
	"github.com/noah-isme/gema-program-api/internal/observability"
	"github.com/noah-isme/gema-program-api/internal/repository"
	"github.com/noah-isme/gema-program-api/pkg/ai"
)

// Score ceilings per evaluation scope. Submission work is scored out of 10,
// team-level work (phase and project) out of 100.
const (
	SubmissionScoreMax = 10.0
	TeamScoreMax       = 100.0
)

// EvaluationService creates and reads scored feedback on submissions, phases and projects.
type EvaluationService interface {
	CreateForSubmission(ctx context.Context, caller Caller, submissionID uint, req dto.EvaluationInput) (dto.EvaluationResponse, error)
	CreateAIForSubmission(ctx context.Context, caller Caller, submissionID uint, req dto.AIEvaluationRequest) (dto.EvaluationResponse, error)
	CreateForPhase(ctx context.Context, caller Caller, eventID, phaseID, teamID uint, req dto.PhaseEvaluationRequest) (dto.EvaluationResponse, error)
	CreateAIForPhase(ctx context.Context, caller Caller, eventID, phaseID, teamID uint, req dto.AIEvaluationRequest) (dto.EvaluationResponse, error)
	CreateForProject(ctx context.Context, caller Caller, eventID, projectID uint, req dto.ProjectEvaluationRequest) (dto.EvaluationResponse, error)
	CreateAIForProject(ctx context.Context, caller Caller, eventID, projectID uint, req dto.AIEvaluationRequest) (dto.EvaluationResponse, error)
	Update(ctx context.Context, caller Caller, evaluationID uint, req dto.EvaluationUpdateRequest) (dto.EvaluationResponse, error)

	ListForSubmission(ctx context.Context, caller Caller, submissionID uint) ([]dto.EvaluationResponse, error)
	GetFinal(ctx context.Context, caller Caller, submissionID uint) (dto.EvaluationResponse, error)
	ListForPhase(ctx context.Context, caller Caller, eventID, phaseID, teamID uint) ([]dto.EvaluationResponse, error)
	ListForProject(ctx context.Context, caller Caller, eventID, projectID uint) ([]dto.EvaluationResponse, error)
}

// EvaluationDependencies groups the collaborators of the evaluation engine.
type EvaluationDependencies struct {
	Evaluations   repository.EvaluationRepository
	Submissions   repository.SubmissionRepository
	Program       repository.ProgramRepository
	Transactions  repository.TransactionScope
	Rubrics       RubricService
	Notifications NotificationService
	Tracking      TrackingInvalidator
	Access        *AccessPolicy
	Evaluator     ai.Evaluator
	Validator     *validator.Validate
	Logger        zerolog.Logger
}

type evaluationService struct {
	evaluations   repository.EvaluationRepository
	submissions   repository.SubmissionRepository
	program       repository.ProgramRepository
	tx            repository.TransactionScope
	rubrics       RubricService
	notifications NotificationService
	tracking      TrackingInvalidator
	access        *AccessPolicy
	evaluator     ai.Evaluator
	validator     *validator.Validate
	logger        zerolog.Logger
	tracer        trace.Tracer
	now           func() time.Time
}

// NewEvaluationService constructs the evaluation engine. A nil Evaluator disables AI scoring.
func NewEvaluationService(deps EvaluationDependencies) EvaluationService {
	return &evaluationService{
		evaluations:   deps.Evaluations,
		submissions:   deps.Submissions,
		program:       deps.Program,
		tx:            deps.Transactions,
		rubrics:       deps.Rubrics,
		notifications: deps.Notifications,
		tracking:      deps.Tracking,
		access:        deps.Access,
		evaluator:     deps.Evaluator,
		validator:     deps.Validator,
		logger:        deps.Logger.With().Str("component", "evaluation_service").Logger(),
		tracer:        otel.Tracer("github.com/noah-isme/gema-program-api/internal/service/evaluation"),
		now:           time.Now,
	}
}

// writeTarget carries what a write needs beyond the evaluation row itself.
type writeTarget struct {
	eventID uint
	teamID  uint
}

func (s *evaluationService) CreateForSubmission(ctx context.Context, caller Caller, submissionID uint, req dto.EvaluationInput) (dto.EvaluationResponse, error) {
	if err := s.access.RequireReviewer(caller); err != nil {
		return dto.EvaluationResponse{}, err
	}
	if err := s.validator.Struct(req); err != nil {
		return dto.EvaluationResponse{}, err
	}

	submission, err := s.loadSubmission(ctx, caller, submissionID)
	if err != nil {
		return dto.EvaluationResponse{}, err
	}

	tenantID, err := s.tenantFor(submission.TenantID, caller, "submission_id", submissionID)
	if err != nil {
		return dto.EvaluationResponse{}, err
	}

	evaluation, err := buildManualEvaluation(tenantID, caller, req, SubmissionScoreMax)
	if err != nil {
		return dto.EvaluationResponse{}, err
	}
	id := submission.ID
	evaluation.SubmissionID = &id

	return s.create(ctx, caller, evaluation, writeTarget{eventID: submission.EventID, teamID: submission.TeamID})
}

func (s *evaluationService) CreateAIForSubmission(ctx context.Context, caller Caller, submissionID uint, req dto.AIEvaluationRequest) (dto.EvaluationResponse, error) {
	if err := s.access.RequireReviewer(caller); err != nil {
		return dto.EvaluationResponse{}, err
	}
	if err := s.validator.Struct(req); err != nil {
		return dto.EvaluationResponse{}, err
	}

	submission, err := s.loadSubmission(ctx, caller, submissionID)
	if err != nil {
		return dto.EvaluationResponse{}, err
	}

	tenantID, err := s.tenantFor(submission.TenantID, caller, "submission_id", submissionID)
	if err != nil {
		return dto.EvaluationResponse{}, err
	}

	task, err := s.program.GetTask(ctx, submission.TaskID)
	if err != nil {
		return dto.EvaluationResponse{}, notFoundOr(err, ErrTaskNotFound)
	}

	rubric, err := s.rubrics.ResolveForTask(ctx, task)
	if err != nil {
		return dto.EvaluationResponse{}, err
	}
	if rubric == nil || !rubric.Usable() {
		return dto.EvaluationResponse{}, ErrRubricNotConfigured
	}
	if s.evaluator == nil {
		return dto.EvaluationResponse{}, ErrAIServiceNotConfigured
	}

	result, err := s.evaluator.GenerateEvaluation(ctx, ai.EvaluationRequest{
		Rubric:     toAIRubric(*rubric),
		Submission: toAISubmission(submission),
		Task:       toAITask(task),
		Locale:     req.Locale,
	})
	if err != nil {
		return dto.EvaluationResponse{}, s.mapAIError(err, "submission_id", submissionID)
	}

	evaluation, err := buildAIEvaluation(tenantID, caller, *rubric, result, req.Locale, SubmissionScoreMax)
	if err != nil {
		return dto.EvaluationResponse{}, err
	}
	id := submission.ID
	evaluation.SubmissionID = &id

	return s.create(ctx, caller, evaluation, writeTarget{eventID: submission.EventID, teamID: submission.TeamID})
}

func (s *evaluationService) CreateForPhase(ctx context.Context, caller Caller, eventID, phaseID, teamID uint, req dto.PhaseEvaluationRequest) (dto.EvaluationResponse, error) {
	if err := s.access.RequireReviewer(caller); err != nil {
		return dto.EvaluationResponse{}, err
	}
	if err := s.validator.Struct(req); err != nil {
		return dto.EvaluationResponse{}, err
	}

	event, phase, team, err := s.loadPhaseTeam(ctx, caller, eventID, phaseID, teamID)
	if err != nil {
		return dto.EvaluationResponse{}, err
	}

	evaluation, err := buildManualEvaluation(0, caller, req.EvaluationInput, TeamScoreMax)
	if err != nil {
		return dto.EvaluationResponse{}, err
	}

	ids, err := distinctIDs(req.SubmissionIDs)
	if err != nil {
		return dto.EvaluationResponse{}, err
	}
	if ids == nil {
		ids = []uint{}
	}
	if _, err := s.phaseSubmissions(ctx, phase.ID, team.ID, ids); err != nil {
		return dto.EvaluationResponse{}, err
	}

	tenantID, err := s.tenantFor(firstNonZero(phase.TenantID, event.TenantID), caller, "phase_id", phaseID)
	if err != nil {
		return dto.EvaluationResponse{}, err
	}

	evaluation.TenantID = tenantID
	pid, tid := phase.ID, team.ID
	evaluation.PhaseID = &pid
	evaluation.TeamID = &tid
	evaluation.SetEvaluatedSubmissionIDs(ids)

	return s.create(ctx, caller, evaluation, writeTarget{eventID: eventID, teamID: team.ID})
}

func (s *evaluationService) CreateAIForPhase(ctx context.Context, caller Caller, eventID, phaseID, teamID uint, req dto.AIEvaluationRequest) (dto.EvaluationResponse, error) {
	if err := s.access.RequireReviewer(caller); err != nil {
		return dto.EvaluationResponse{}, err
	}
	if err := s.validator.Struct(req); err != nil {
		return dto.EvaluationResponse{}, err
	}

	event, phase, team, err := s.loadPhaseTeam(ctx, caller, eventID, phaseID, teamID)
	if err != nil {
		return dto.EvaluationResponse{}, err
	}

	tenantID, err := s.tenantFor(firstNonZero(phase.TenantID, event.TenantID), caller, "phase_id", phaseID)
	if err != nil {
		return dto.EvaluationResponse{}, err
	}

	rubric, err := s.rubrics.ResolveForPhase(ctx, phase.ID)
	if err != nil {
		return dto.EvaluationResponse{}, err
	}
	if rubric == nil || !rubric.Usable() {
		return dto.EvaluationResponse{}, ErrRubricNotConfigured
	}

	tasks, err := s.program.ListTasksByPhase(ctx, phase.ID)
	if err != nil {
		return dto.EvaluationResponse{}, err
	}

	ids, err := distinctIDs(req.SubmissionIDs)
	if err != nil {
		return dto.EvaluationResponse{}, err
	}
	var submissions []models.Submission
	if len(ids) > 0 {
		submissions, err = s.phaseSubmissions(ctx, phase.ID, team.ID, ids)
	} else {
		submissions, err = s.currentFinals(ctx, team.ID, tasks)
	}
	if err != nil {
		return dto.EvaluationResponse{}, err
	}
	if len(submissions) == 0 {
		return dto.EvaluationResponse{}, ErrNoSubmissionsToEvaluate
	}
	if s.evaluator == nil {
		return dto.EvaluationResponse{}, ErrAIServiceNotConfigured
	}

	result, err := s.evaluator.GenerateMultiSubmissionEvaluation(ctx, ai.MultiSubmissionRequest{
		Rubric:      toAIRubric(*rubric),
		Submissions: toAISubmissions(submissions),
		Tasks:       toAITasks(tasks),
		Locale:      req.Locale,
	})
	if err != nil {
		return dto.EvaluationResponse{}, s.mapAIError(err, "phase_id", phaseID)
	}

	evaluation, err := buildAIEvaluation(tenantID, caller, *rubric, result, req.Locale, TeamScoreMax)
	if err != nil {
		return dto.EvaluationResponse{}, err
	}
	pid, tid := phase.ID, team.ID
	evaluation.PhaseID = &pid
	evaluation.TeamID = &tid
	evaluation.SetEvaluatedSubmissionIDs(submissionIDs(submissions))

	return s.create(ctx, caller, evaluation, writeTarget{eventID: eventID, teamID: team.ID})
}

func (s *evaluationService) CreateForProject(ctx context.Context, caller Caller, eventID, projectID uint, req dto.ProjectEvaluationRequest) (dto.EvaluationResponse, error) {
	if err := s.access.RequireReviewer(caller); err != nil {
		return dto.EvaluationResponse{}, err
	}
	if err := s.validator.Struct(req); err != nil {
		return dto.EvaluationResponse{}, err
	}

	event, project, err := s.loadProject(ctx, caller, eventID, projectID)
	if err != nil {
		return dto.EvaluationResponse{}, err
	}
	if req.TeamID != nil && *req.TeamID != project.TeamID {
		return dto.EvaluationResponse{}, ErrTeamMismatch
	}

	evaluation, err := buildManualEvaluation(0, caller, req.EvaluationInput, TeamScoreMax)
	if err != nil {
		return dto.EvaluationResponse{}, err
	}

	if err := s.checkPhaseGate(ctx, eventID, project.TeamID); err != nil {
		return dto.EvaluationResponse{}, err
	}

	var ids []uint
	if req.SubmissionIDs != nil {
		ids, err = distinctIDs(req.SubmissionIDs)
		if err != nil {
			return dto.EvaluationResponse{}, err
		}
		if _, err := s.eventSubmissions(ctx, eventID, project.TeamID, ids); err != nil {
			return dto.EvaluationResponse{}, err
		}
	}

	tenantID, err := s.tenantFor(firstNonZero(project.TenantID, event.TenantID), caller, "project_id", projectID)
	if err != nil {
		return dto.EvaluationResponse{}, err
	}

	evaluation.TenantID = tenantID
	pid, tid := project.ID, project.TeamID
	evaluation.ProjectID = &pid
	evaluation.TeamID = &tid
	evaluation.SetEvaluatedSubmissionIDs(ids)

	return s.create(ctx, caller, evaluation, writeTarget{eventID: eventID, teamID: project.TeamID})
}

func (s *evaluationService) CreateAIForProject(ctx context.Context, caller Caller, eventID, projectID uint, req dto.AIEvaluationRequest) (dto.EvaluationResponse, error) {
	if err := s.access.RequireReviewer(caller); err != nil {
		return dto.EvaluationResponse{}, err
	}
	if err := s.validator.Struct(req); err != nil {
		return dto.EvaluationResponse{}, err
	}

	event, project, err := s.loadProject(ctx, caller, eventID, projectID)
	if err != nil {
		return dto.EvaluationResponse{}, err
	}

	if err := s.checkPhaseGate(ctx, eventID, project.TeamID); err != nil {
		return dto.EvaluationResponse{}, err
	}

	tenantID, err := s.tenantFor(firstNonZero(project.TenantID, event.TenantID), caller, "project_id", projectID)
	if err != nil {
		return dto.EvaluationResponse{}, err
	}

	rubric, err := s.rubrics.ResolveForProject(ctx, eventID)
	if err != nil {
		return dto.EvaluationResponse{}, err
	}
	if rubric == nil || !rubric.Usable() {
		return dto.EvaluationResponse{}, ErrRubricNotConfigured
	}

	tasks, err := s.program.ListTasks(ctx, eventID)
	if err != nil {
		return dto.EvaluationResponse{}, err
	}

	ids, err := distinctIDs(req.SubmissionIDs)
	if err != nil {
		return dto.EvaluationResponse{}, err
	}
	var submissions []models.Submission
	if len(ids) > 0 {
		submissions, err = s.eventSubmissions(ctx, eventID, project.TeamID, ids)
	} else {
		submissions, err = s.currentFinals(ctx, project.TeamID, tasks)
	}
	if err != nil {
		return dto.EvaluationResponse{}, err
	}
	if len(submissions) == 0 {
		return dto.EvaluationResponse{}, ErrNoSubmissionsToEvaluate
	}
	if s.evaluator == nil {
		return dto.EvaluationResponse{}, ErrAIServiceNotConfigured
	}

	result, err := s.evaluator.GenerateMultiSubmissionEvaluation(ctx, ai.MultiSubmissionRequest{
		Rubric:      toAIRubric(*rubric),
		Submissions: toAISubmissions(submissions),
		Tasks:       toAITasks(tasks),
		Locale:      req.Locale,
	})
	if err != nil {
		return dto.EvaluationResponse{}, s.mapAIError(err, "project_id", projectID)
	}

	evaluation, err := buildAIEvaluation(tenantID, caller, *rubric, result, req.Locale, TeamScoreMax)
	if err != nil {
		return dto.EvaluationResponse{}, err
	}
	pid, tid := project.ID, project.TeamID
	evaluation.ProjectID = &pid
	evaluation.TeamID = &tid
	evaluation.SetEvaluatedSubmissionIDs(submissionIDs(submissions))

	return s.create(ctx, caller, evaluation, writeTarget{eventID: eventID, teamID: project.TeamID})
}

func (s *evaluationService) Update(ctx context.Context, caller Caller, evaluationID uint, req dto.EvaluationUpdateRequest) (dto.EvaluationResponse, error) {
	if err := s.access.RequireReviewer(caller); err != nil {
		return dto.EvaluationResponse{}, err
	}
	if err := s.validator.Struct(req); err != nil {
		return dto.EvaluationResponse{}, err
	}

	stored, err := s.evaluations.GetByID(ctx, evaluationID)
	if err != nil {
		return dto.EvaluationResponse{}, notFoundOr(err, ErrEvaluationNotFound)
	}
	if err := s.access.EnsureTenant(caller, stored.TenantID, ErrEvaluationNotFound); err != nil {
		return dto.EvaluationResponse{}, err
	}

	var score *float64
	if req.Score.Set {
		score, err = validateScore(req.Score, scoreCeiling(stored.Scope()))
		if err != nil {
			return dto.EvaluationResponse{}, err
		}
	}

	var comment string
	if req.Comment != nil {
		comment, err = validateComment(*req.Comment)
		if err != nil {
			return dto.EvaluationResponse{}, err
		}
	}

	var snapshot datatypes.JSON
	if req.RubricSnapshot != nil {
		snapshot, err = encodeSnapshot(req.RubricSnapshot)
		if err != nil {
			return dto.EvaluationResponse{}, err
		}
	}

	spanCtx, span := s.tracer.Start(ctx, "evaluations.update", trace.WithAttributes(
		attribute.Int64("evaluation.id", int64(evaluationID)),
		attribute.String("evaluation.scope", stored.Scope()),
	))
	defer span.End()

	var (
		updated       models.Evaluation
		target        writeTarget
		notifications []models.Notification
		finalized     bool
	)
	err = s.tx.Execute(spanCtx, func(repos repository.TransactionalRepositories) error {
		evaluation, err := repos.Evaluations().GetByID(spanCtx, evaluationID)
		if err != nil {
			return notFoundOr(err, ErrEvaluationNotFound)
		}
		if req.ExpectedStatus != nil && *req.ExpectedStatus != evaluation.Status {
			return ErrEvaluationStatusChanged.WithDetails(map[string]interface{}{"status": evaluation.Status})
		}

		previousStatus := evaluation.Status
		if req.Score.Set {
			evaluation.Score = score
		}
		if req.Comment != nil {
			evaluation.Comment = comment
		}
		if req.Status != nil {
			evaluation.Status = *req.Status
		}
		if req.RubricSnapshot != nil {
			evaluation.RubricSnapshot = snapshot
		}
		if req.Metadata != nil {
			evaluation.Metadata = datatypes.JSONMap(req.Metadata)
		}
		evaluation.UpdatedAt = s.now()

		applied, err := repos.Evaluations().UpdateIfStatus(spanCtx, &evaluation, previousStatus)
		if err != nil {
			return err
		}
		if !applied {
			return ErrEvaluationStatusChanged
		}

		target, err = resolveWriteTarget(spanCtx, repos, evaluation)
		if err != nil {
			return err
		}

		if err := recordActivity(spanCtx, repos.Activity(), evaluation.TenantID, caller, ActionEvaluationUpdated, "evaluation", evaluation.ID, map[string]interface{}{
			"scope":           evaluation.Scope(),
			"previous_status": previousStatus,
			"status":          evaluation.Status,
		}); err != nil {
			return err
		}

		finalized = previousStatus != models.EvaluationStatusFinal && evaluation.IsFinal()
		if finalized {
			notifications, err = s.finalize(spanCtx, repos, caller, evaluation, target.teamID)
			if err != nil {
				return err
			}
		}

		updated = evaluation
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.logWriteError(err, "update", stored, caller)
		return dto.EvaluationResponse{}, err
	}

	s.afterCommit(spanCtx, updated, target, notifications, finalized)
	return dto.NewEvaluationResponse(updated), nil
}

func (s *evaluationService) ListForSubmission(ctx context.Context, caller Caller, submissionID uint) ([]dto.EvaluationResponse, error) {
	submission, err := s.loadSubmission(ctx, caller, submissionID)
	if err != nil {
		return nil, err
	}
	if err := s.access.RequireTeamView(ctx, caller, submission.TeamID); err != nil {
		return nil, err
	}

	evaluations, err := s.evaluations.ListBySubmission(ctx, submission.ID)
	if err != nil {
		return nil, err
	}
	return dto.NewEvaluationResponseSlice(evaluations), nil
}

func (s *evaluationService) GetFinal(ctx context.Context, caller Caller, submissionID uint) (dto.EvaluationResponse, error) {
	submission, err := s.loadSubmission(ctx, caller, submissionID)
	if err != nil {
		return dto.EvaluationResponse{}, err
	}
	if err := s.access.RequireTeamView(ctx, caller, submission.TeamID); err != nil {
		return dto.EvaluationResponse{}, err
	}

	current, err := s.submissions.CurrentFinal(ctx, submission.TeamID, submission.TaskID)
	if err != nil {
		return dto.EvaluationResponse{}, err
	}
	if current == nil {
		return dto.EvaluationResponse{}, ErrFinalEvaluationNotFound
	}

	evaluation, err := s.evaluations.LatestFinalForSubmission(ctx, current.ID)
	if err != nil {
		return dto.EvaluationResponse{}, err
	}
	if evaluation == nil {
		return dto.EvaluationResponse{}, ErrFinalEvaluationNotFound
	}
	return dto.NewEvaluationResponse(*evaluation), nil
}

func (s *evaluationService) ListForPhase(ctx context.Context, caller Caller, eventID, phaseID, teamID uint) ([]dto.EvaluationResponse, error) {
	_, phase, team, err := s.loadPhaseTeam(ctx, caller, eventID, phaseID, teamID)
	if err != nil {
		return nil, err
	}
	if err := s.access.RequireTeamView(ctx, caller, team.ID); err != nil {
		return nil, err
	}

	evaluations, err := s.evaluations.ListByPhaseTeam(ctx, phase.ID, team.ID)
	if err != nil {
		return nil, err
	}
	return dto.NewEvaluationResponseSlice(evaluations), nil
}

func (s *evaluationService) ListForProject(ctx context.Context, caller Caller, eventID, projectID uint) ([]dto.EvaluationResponse, error) {
	_, project, err := s.loadProject(ctx, caller, eventID, projectID)
	if err != nil {
		return nil, err
	}
	if err := s.access.RequireTeamView(ctx, caller, project.TeamID); err != nil {
		return nil, err
	}

	evaluations, err := s.evaluations.ListByProject(ctx, project.ID)
	if err != nil {
		return nil, err
	}
	return dto.NewEvaluationResponseSlice(evaluations), nil
}

// create persists a new evaluation with its audit trail and, when final, its notifications.
func (s *evaluationService) create(ctx context.Context, caller Caller, evaluation models.Evaluation, target writeTarget) (dto.EvaluationResponse, error) {
	spanCtx, span := s.tracer.Start(ctx, "evaluations.create", trace.WithAttributes(
		attribute.String("evaluation.scope", evaluation.Scope()),
		attribute.String("evaluation.source", evaluation.Source),
		attribute.String("evaluation.status", evaluation.Status),
		attribute.Int64("tenant.id", int64(evaluation.TenantID)),
	))
	defer span.End()

	evaluation.EvaluatorID = caller.UserID

	var notifications []models.Notification
	err := s.tx.Execute(spanCtx, func(repos repository.TransactionalRepositories) error {
		if err := repos.Evaluations().Create(spanCtx, &evaluation); err != nil {
			return err
		}
		if err := recordActivity(spanCtx, repos.Activity(), evaluation.TenantID, caller, ActionEvaluationCreated, "evaluation", evaluation.ID, map[string]interface{}{
			"scope":   evaluation.Scope(),
			"source":  evaluation.Source,
			"status":  evaluation.Status,
			"team_id": target.teamID,
		}); err != nil {
			return err
		}
		if evaluation.IsFinal() {
			var err error
			notifications, err = s.finalize(spanCtx, repos, caller, evaluation, target.teamID)
			return err
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.logWriteError(err, "create", evaluation, caller)
		return dto.EvaluationResponse{}, err
	}

	observability.EvaluationsCreated().WithLabelValues(evaluation.Scope(), evaluation.Source, evaluation.Status).Inc()
	s.afterCommit(spanCtx, evaluation, target, notifications, evaluation.IsFinal())
	return dto.NewEvaluationResponse(evaluation), nil
}

// finalize writes one notification per team member and the finalisation audit entry.
func (s *evaluationService) finalize(ctx context.Context, repos repository.TransactionalRepositories, caller Caller, evaluation models.Evaluation, teamID uint) ([]models.Notification, error) {
	members, err := repos.Program().ListTeamMembers(ctx, teamID)
	if err != nil {
		return nil, err
	}

	userIDs := make([]uint, 0, len(members))
	for _, member := range members {
		userIDs = append(userIDs, member.UserID)
	}

	notifications := s.notifications.Prepare(
		evaluation.TenantID,
		userIDs,
		NotificationTypeEvaluationFinalized,
		finalizedMessage(evaluation),
		"evaluation",
		evaluation.ID,
	)
	if err := repos.Notifications().CreateBatch(ctx, notifications); err != nil {
		return nil, err
	}

	if err := recordActivity(ctx, repos.Activity(), evaluation.TenantID, caller, ActionEvaluationFinalized, "evaluation", evaluation.ID, map[string]interface{}{
		"scope":      evaluation.Scope(),
		"team_id":    teamID,
		"recipients": len(notifications),
	}); err != nil {
		return nil, err
	}

	return notifications, nil
}

func (s *evaluationService) afterCommit(ctx context.Context, evaluation models.Evaluation, target writeTarget, notifications []models.Notification, finalized bool) {
	if finalized {
		observability.EvaluationsFinalized().WithLabelValues(evaluation.Scope()).Inc()
	}
	s.notifications.Dispatch(ctx, notifications)
	if s.tracking != nil && target.eventID != 0 {
		s.tracking.Invalidate(ctx, target.eventID)
	}
}

func (s *evaluationService) logWriteError(err error, op string, evaluation models.Evaluation, caller Caller) {
	event := s.logger.Error().Err(err).
		Str("op", op).
		Str("scope", evaluation.Scope()).
		Uint("tenant_id", evaluation.TenantID).
		Uint("caller_id", caller.UserID)
	if evaluation.ID != 0 {
		event = event.Uint("evaluation_id", evaluation.ID)
	}
	if evaluation.SubmissionID != nil {
		event = event.Uint("submission_id", *evaluation.SubmissionID)
	}
	if evaluation.PhaseID != nil {
		event = event.Uint("phase_id", *evaluation.PhaseID)
	}
	if evaluation.ProjectID != nil {
		event = event.Uint("project_id", *evaluation.ProjectID)
	}
	event.Msg("evaluation write failed")
}

func (s *evaluationService) mapAIError(err error, key string, id uint) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if errors.Is(err, ai.ErrMissingCredential) {
		s.logger.Warn().Err(err).Uint(key, id).Msg("ai evaluator credential rejected")
		return ErrAIServiceNotConfigured.Wrap(err)
	}
	s.logger.Error().Err(err).Uint(key, id).Msg("ai evaluation failed")
	return ErrAIEvaluationFailed.Wrap(err)
}

func (s *evaluationService) tenantFor(resourceTenant uint, caller Caller, key string, id uint) (uint, error) {
	tenantID, err := resolveTenant(resourceTenant, caller)
	if err != nil {
		s.logger.Error().Uint(key, id).Uint("caller_id", caller.UserID).Msg("cannot determine tenant for evaluation")
		return 0, err
	}
	return tenantID, nil
}

func (s *evaluationService) loadSubmission(ctx context.Context, caller Caller, submissionID uint) (models.Submission, error) {
	submission, err := s.submissions.GetByID(ctx, submissionID)
	if err != nil {
		return models.Submission{}, notFoundOr(err, ErrSubmissionNotFound)
	}
	if err := s.access.EnsureTenant(caller, submission.TenantID, ErrSubmissionNotFound); err != nil {
		return models.Submission{}, err
	}
	return submission, nil
}

func (s *evaluationService) loadEvent(ctx context.Context, caller Caller, eventID uint) (models.Event, error) {
	event, err := s.program.GetEvent(ctx, eventID)
	if err != nil {
		return models.Event{}, notFoundOr(err, ErrEventNotFound)
	}
	if err := s.access.EnsureTenant(caller, event.TenantID, ErrEventNotFound); err != nil {
		return models.Event{}, err
	}
	return event, nil
}

func (s *evaluationService) loadPhaseTeam(ctx context.Context, caller Caller, eventID, phaseID, teamID uint) (models.Event, models.Phase, models.Team, error) {
	event, err := s.loadEvent(ctx, caller, eventID)
	if err != nil {
		return models.Event{}, models.Phase{}, models.Team{}, err
	}

	phase, err := s.program.GetPhase(ctx, phaseID)
	if err != nil {
		return models.Event{}, models.Phase{}, models.Team{}, notFoundOr(err, ErrPhaseNotFound)
	}
	if phase.EventID != event.ID {
		return models.Event{}, models.Phase{}, models.Team{}, ErrPhaseNotFound
	}

	team, err := s.program.GetTeam(ctx, teamID)
	if err != nil {
		return models.Event{}, models.Phase{}, models.Team{}, notFoundOr(err, ErrTeamNotFound)
	}
	if team.EventID != phase.EventID {
		return models.Event{}, models.Phase{}, models.Team{}, ErrTeamNotInEvent
	}

	return event, phase, team, nil
}

func (s *evaluationService) loadProject(ctx context.Context, caller Caller, eventID, projectID uint) (models.Event, models.Project, error) {
	event, err := s.loadEvent(ctx, caller, eventID)
	if err != nil {
		return models.Event{}, models.Project{}, err
	}

	project, err := s.program.GetProject(ctx, projectID)
	if err != nil {
		return models.Event{}, models.Project{}, notFoundOr(err, ErrProjectNotFound)
	}
	if project.EventID != event.ID {
		return models.Event{}, models.Project{}, ErrProjectNotFound
	}
	return event, project, nil
}

// phaseSubmissions loads ids and fails unless every one belongs to the team and to a task of the phase.
func (s *evaluationService) phaseSubmissions(ctx context.Context, phaseID, teamID uint, ids []uint) ([]models.Submission, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	tasks, err := s.program.ListTasksByPhase(ctx, phaseID)
	if err != nil {
		return nil, err
	}
	taskIDs := make([]uint, 0, len(tasks))
	for _, task := range tasks {
		taskIDs = append(taskIDs, task.ID)
	}

	submissions, err := s.submissions.List(ctx, repository.SubmissionFilter{TeamID: &teamID, TaskIDs: taskIDs, IDs: ids})
	if err != nil {
		return nil, err
	}
	if len(submissions) != len(ids) {
		return nil, ErrSubmissionsMismatch
	}
	return submissions, nil
}

// eventSubmissions loads ids and fails unless every one belongs to the team within the event.
func (s *evaluationService) eventSubmissions(ctx context.Context, eventID, teamID uint, ids []uint) ([]models.Submission, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	submissions, err := s.submissions.List(ctx, repository.SubmissionFilter{EventID: &eventID, TeamID: &teamID, IDs: ids})
	if err != nil {
		return nil, err
	}
	if len(submissions) != len(ids) {
		return nil, ErrSubmissionsMismatch.WithMessage("submissions do not belong to the team or event")
	}
	return submissions, nil
}

func (s *evaluationService) currentFinals(ctx context.Context, teamID uint, tasks []models.Task) ([]models.Submission, error) {
	submissions := make([]models.Submission, 0, len(tasks))
	for _, task := range tasks {
		current, err := s.submissions.CurrentFinal(ctx, teamID, task.ID)
		if err != nil {
			return nil, err
		}
		if current != nil {
			submissions = append(submissions, *current)
		}
	}
	return submissions, nil
}

// checkPhaseGate requires a final phase evaluation for every phase holding a required task.
func (s *evaluationService) checkPhaseGate(ctx context.Context, eventID, teamID uint) error {
	phases, err := s.program.ListPhases(ctx, eventID)
	if err != nil {
		return err
	}
	tasks, err := s.program.ListTasks(ctx, eventID)
	if err != nil {
		return err
	}

	required := make(map[uint]bool, len(phases))
	for _, task := range tasks {
		if task.IsRequired {
			required[task.PhaseID] = true
		}
	}

	for _, phase := range phases {
		if !required[phase.ID] {
			continue
		}
		ok, err := s.evaluations.HasFinalPhaseEvaluation(ctx, phase.ID, teamID)
		if err != nil {
			return err
		}
		if !ok {
			return ErrPhaseEvaluationMissing.
				Withf("phase %q has no final evaluation for this team", phase.Title).
				WithDetails(map[string]interface{}{"phase_id": phase.ID, "phase_title": phase.Title})
		}
	}
	return nil
}

func resolveWriteTarget(ctx context.Context, repos repository.TransactionalRepositories, evaluation models.Evaluation) (writeTarget, error) {
	switch evaluation.Scope() {
	case models.EvaluationScopeSubmission:
		submission, err := repos.Submissions().GetByID(ctx, *evaluation.SubmissionID)
		if err != nil {
			return writeTarget{}, notFoundOr(err, ErrSubmissionNotFound)
		}
		return writeTarget{eventID: submission.EventID, teamID: submission.TeamID}, nil
	case models.EvaluationScopePhase:
		phase, err := repos.Program().GetPhase(ctx, *evaluation.PhaseID)
		if err != nil {
			return writeTarget{}, notFoundOr(err, ErrPhaseNotFound)
		}
		return writeTarget{eventID: phase.EventID, teamID: derefUint(evaluation.TeamID)}, nil
	case models.EvaluationScopeProject:
		project, err := repos.Program().GetProject(ctx, *evaluation.ProjectID)
		if err != nil {
			return writeTarget{}, notFoundOr(err, ErrProjectNotFound)
		}
		return writeTarget{eventID: project.EventID, teamID: derefUint(evaluation.TeamID)}, nil
	}
	return writeTarget{}, fmt.Errorf("evaluation %d has no scope", evaluation.ID)
}

func buildManualEvaluation(tenantID uint, caller Caller, req dto.EvaluationInput, ceiling float64) (models.Evaluation, error) {
	comment, err := validateComment(req.Comment)
	if err != nil {
		return models.Evaluation{}, err
	}
	score, err := validateScore(req.Score, ceiling)
	if err != nil {
		return models.Evaluation{}, err
	}
	snapshot, err := encodeSnapshot(req.RubricSnapshot)
	if err != nil {
		return models.Evaluation{}, err
	}

	status := req.Status
	if status == "" {
		status = models.EvaluationStatusDraft
	}
	source := req.Source
	if source == "" {
		source = models.EvaluationSourceManual
	}

	metadata := datatypes.JSONMap{}
	for key, value := range req.Metadata {
		metadata[key] = value
	}

	return models.Evaluation{
		TenantID:       tenantID,
		Score:          score,
		Comment:        comment,
		Status:         status,
		Source:         source,
		RubricSnapshot: snapshot,
		Metadata:       metadata,
		EvaluatorID:    caller.UserID,
	}, nil
}

func buildAIEvaluation(tenantID uint, caller Caller, rubric models.Rubric, result ai.EvaluationResult, locale string, ceiling float64) (models.Evaluation, error) {
	comment := strings.TrimSpace(result.OverallFeedback)
	if comment == "" {
		return models.Evaluation{}, ErrAIEvaluationFailed.WithMessage("AI evaluation returned no feedback")
	}

	scaled := rescaleScore(result.OverallScore, rubric.ScaleMin, rubric.ScaleMax, ceiling)
	score, err := validateScore(dto.Score(scaled), ceiling)
	if err != nil {
		return models.Evaluation{}, err
	}

	snapshotSource := result.RubricSnapshot
	if snapshotSource == nil {
		snapshotSource = rubricSnapshot(rubric)
	}
	snapshot, err := encodeSnapshot(snapshotSource)
	if err != nil {
		return models.Evaluation{}, err
	}

	return models.Evaluation{
		TenantID:       tenantID,
		Score:          score,
		Comment:        comment,
		Status:         models.EvaluationStatusDraft,
		Source:         models.EvaluationSourceAIAssisted,
		RubricSnapshot: snapshot,
		Metadata: datatypes.JSONMap{
			"criteria":         result.Criteria,
			"usage":            result.Usage,
			"raw":              result.Raw,
			"locale":           locale,
			"model":            result.Model,
			"rubric_id":        rubric.ID,
			"rubric_score":     result.OverallScore,
			"rubric_scale_min": rubric.ScaleMin,
			"rubric_scale_max": rubric.ScaleMax,
		},
		EvaluatorID: caller.UserID,
	}, nil
}

func validateComment(comment string) (string, error) {
	trimmed := strings.TrimSpace(comment)
	if trimmed == "" {
		return "", ErrCommentRequired
	}
	return trimmed, nil
}

// validateScore accepts an absent or empty score as null and bounds numbers to [0, ceiling].
func validateScore(input dto.ScoreInput, ceiling float64) (*float64, error) {
	if input.Invalid {
		return nil, ErrInvalidScore
	}
	if input.Value == nil {
		return nil, nil
	}
	value := *input.Value
	if value < 0 || value > ceiling {
		return nil, ErrScoreOutOfRange.Withf("score must be between 0 and %g", ceiling)
	}
	return &value, nil
}

func scoreCeiling(scope string) float64 {
	if scope == models.EvaluationScopeSubmission {
		return SubmissionScoreMax
	}
	return TeamScoreMax
}

// rescaleScore maps a score on the rubric scale onto [0, ceiling], rounded to two decimals.
func rescaleScore(value, scaleMin, scaleMax, ceiling float64) float64 {
	if scaleMax <= scaleMin {
		return value
	}
	ratio := (value - scaleMin) / (scaleMax - scaleMin)
	ratio = math.Max(0, math.Min(1, ratio))
	return math.Round(ratio*ceiling*100) / 100
}

func encodeSnapshot(snapshot map[string]interface{}) (datatypes.JSON, error) {
	if snapshot == nil {
		return nil, nil
	}
	payload, err := json.Marshal(snapshot)
	if err != nil {
		return nil, ErrValidationFailed.WithMessage("rubric_snapshot must be a JSON object").Wrap(err)
	}
	return datatypes.JSON(payload), nil
}

func rubricSnapshot(rubric models.Rubric) map[string]interface{} {
	payload, err := json.Marshal(dto.NewRubricResponse(rubric))
	if err != nil {
		return nil
	}
	var snapshot map[string]interface{}
	if err := json.Unmarshal(payload, &snapshot); err != nil {
		return nil
	}
	return snapshot
}

func finalizedMessage(evaluation models.Evaluation) string {
	label := evaluation.Scope()
	if evaluation.Score != nil {
		return fmt.Sprintf("Your %s evaluation is final with a score of %g.", label, *evaluation.Score)
	}
	return fmt.Sprintf("Your %s evaluation is final.", label)
}

func toAIRubric(rubric models.Rubric) ai.Rubric {
	rubric.Criteria = append([]models.RubricCriterion(nil), rubric.Criteria...)
	rubric.SortCriteria()

	criteria := make([]ai.Criterion, 0, len(rubric.Criteria))
	for _, criterion := range rubric.Criteria {
		criteria = append(criteria, ai.Criterion{
			ID:          criterion.ID,
			Title:       criterion.Title,
			Description: criterion.Description,
			Weight:      criterion.Weight,
			MaxScore:    criterion.Ceiling(rubric.ScaleMax),
		})
	}
	return ai.Rubric{
		ID:          rubric.ID,
		Name:        rubric.Name,
		Description: rubric.Description,
		ScaleMin:    rubric.ScaleMin,
		ScaleMax:    rubric.ScaleMax,
		Model:       rubric.ModelPreference,
		Criteria:    criteria,
	}
}

func toAISubmission(submission models.Submission) ai.Submission {
	files := make([]ai.File, 0, len(submission.Files))
	for _, file := range submission.Files {
		files = append(files, ai.File{Name: file.FileName, URL: file.URL, MimeType: file.MimeType})
	}
	return ai.Submission{
		ID:      submission.ID,
		TaskID:  submission.TaskID,
		Type:    submission.Type,
		Content: submission.Content,
		Files:   files,
	}
}

func toAISubmissions(submissions []models.Submission) []ai.Submission {
	out := make([]ai.Submission, 0, len(submissions))
	for _, submission := range submissions {
		out = append(out, toAISubmission(submission))
	}
	return out
}

func toAITask(task models.Task) ai.Task {
	return ai.Task{ID: task.ID, Title: task.Title, Description: task.Description}
}

func toAITasks(tasks []models.Task) []ai.Task {
	out := make([]ai.Task, 0, len(tasks))
	for _, task := range tasks {
		out = append(out, toAITask(task))
	}
	return out
}

func submissionIDs(submissions []models.Submission) []uint {
	ids := make([]uint, 0, len(submissions))
	for _, submission := range submissions {
		ids = append(ids, submission.ID)
	}
	return ids
}

// distinctIDs rejects repeated submission ids so the loaded rows must match the request one to one.
func distinctIDs(ids []uint) ([]uint, error) {
	if ids == nil {
		return nil, nil
	}
	seen := make(map[uint]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			return nil, ErrSubmissionsMismatch.WithDetails(map[string]interface{}{"duplicate_submission_id": id})
		}
		seen[id] = struct{}{}
	}
	return ids, nil
}

func firstNonZero(values ...uint) uint {
	for _, value := range values {
		if value != 0 {
			return value
		}
	}
	return 0
}

func derefUint(value *uint) uint {
	if value == nil {
		return 0
	}
	return *value
}
