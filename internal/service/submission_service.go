package service

import (
	"context"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-program-api/internal/dto"
	"github.com/noah-isme/gema-program-api/internal/models"
	"github.com/noah-isme/gema-program-api/internal/repository"
)

// SubmissionService records team deliverables against tasks.
type SubmissionService interface {
	Create(ctx context.Context, caller Caller, eventID, taskID uint, req dto.SubmissionCreateRequest) (dto.SubmissionResponse, error)
	List(ctx context.Context, caller Caller, eventID, taskID uint) ([]dto.SubmissionResponse, error)
	Get(ctx context.Context, caller Caller, submissionID uint) (dto.SubmissionResponse, error)
	Update(ctx context.Context, caller Caller, submissionID uint, req dto.SubmissionUpdateRequest) (dto.SubmissionResponse, error)
}

type submissionService struct {
	submissions repository.SubmissionRepository
	program     repository.ProgramRepository
	tx          repository.TransactionScope
	access      *AccessPolicy
	tracking    TrackingInvalidator
	validator   *validator.Validate
	logger      zerolog.Logger
	now         func() time.Time
}

// NewSubmissionService creates a new submission service instance.
func NewSubmissionService(submissions repository.SubmissionRepository, program repository.ProgramRepository, tx repository.TransactionScope, access *AccessPolicy, tracking TrackingInvalidator, validate *validator.Validate, logger zerolog.Logger) SubmissionService {
	return &submissionService{
		submissions: submissions,
		program:     program,
		tx:          tx,
		access:      access,
		tracking:    tracking,
		validator:   validate,
		logger:      logger.With().Str("component", "submission_service").Logger(),
		now:         time.Now,
	}
}

func (s *submissionService) Create(ctx context.Context, caller Caller, eventID, taskID uint, req dto.SubmissionCreateRequest) (dto.SubmissionResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.SubmissionResponse{}, err
	}

	event, task, err := s.loadTask(ctx, caller, eventID, taskID)
	if err != nil {
		return dto.SubmissionResponse{}, err
	}

	team, err := s.resolveTeam(ctx, caller, eventID, req.TeamID)
	if err != nil {
		return dto.SubmissionResponse{}, err
	}

	owner := task.TenantID
	if owner == 0 {
		owner = event.TenantID
	}
	tenantID, err := resolveTenant(owner, caller)
	if err != nil {
		s.logger.Error().Uint("task_id", taskID).Uint("event_id", eventID).Msg("submission without tenant")
		return dto.SubmissionResponse{}, err
	}

	status := req.Status
	if status == "" {
		status = models.SubmissionStatusDraft
	}

	submission := models.Submission{
		TenantID:    tenantID,
		EventID:     eventID,
		TaskID:      task.ID,
		TeamID:      team.ID,
		SubmittedBy: caller.UserID,
		Type:        strings.TrimSpace(req.Type),
		Content:     req.Content,
		Status:      status,
		Files:       buildSubmissionFiles(req.Files),
	}
	if status == models.SubmissionStatusFinal {
		submittedAt := s.now().UTC()
		submission.SubmittedAt = &submittedAt
	}

	var created models.Submission
	err = s.tx.Execute(ctx, func(repos repository.TransactionalRepositories) error {
		if err := repos.Submissions().Create(ctx, &submission); err != nil {
			return err
		}
		if err := recordActivity(ctx, repos.Activity(), tenantID, caller, ActionSubmissionCreated, "submission", submission.ID, map[string]interface{}{
			"task_id": task.ID,
			"team_id": team.ID,
			"status":  status,
		}); err != nil {
			return err
		}
		created, err = repos.Submissions().GetByID(ctx, submission.ID)
		return err
	})
	if err != nil {
		s.logger.Error().Err(err).Uint("task_id", taskID).Uint("team_id", team.ID).Uint("tenant_id", tenantID).Msg("failed to create submission")
		return dto.SubmissionResponse{}, err
	}

	s.invalidate(ctx, eventID)
	return dto.NewSubmissionResponse(created), nil
}

func (s *submissionService) List(ctx context.Context, caller Caller, eventID, taskID uint) ([]dto.SubmissionResponse, error) {
	if _, _, err := s.loadTask(ctx, caller, eventID, taskID); err != nil {
		return nil, err
	}

	filter := repository.SubmissionFilter{EventID: &eventID, TaskID: &taskID}
	if !caller.IsReviewer() {
		membership, err := s.program.FindMembership(ctx, eventID, caller.UserID)
		if err != nil {
			return nil, err
		}
		if membership == nil {
			return nil, ErrNotTeamMember
		}
		teamID := membership.Team.ID
		filter.TeamID = &teamID
	}

	submissions, err := s.submissions.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	return dto.NewSubmissionResponseSlice(submissions), nil
}

func (s *submissionService) Get(ctx context.Context, caller Caller, submissionID uint) (dto.SubmissionResponse, error) {
	submission, err := s.loadSubmission(ctx, caller, submissionID)
	if err != nil {
		return dto.SubmissionResponse{}, err
	}
	if err := s.access.RequireTeamView(ctx, caller, submission.TeamID); err != nil {
		return dto.SubmissionResponse{}, err
	}
	return dto.NewSubmissionResponse(submission), nil
}

func (s *submissionService) Update(ctx context.Context, caller Caller, submissionID uint, req dto.SubmissionUpdateRequest) (dto.SubmissionResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.SubmissionResponse{}, err
	}

	submission, err := s.loadSubmission(ctx, caller, submissionID)
	if err != nil {
		return dto.SubmissionResponse{}, err
	}

	if !caller.IsManager() {
		membership, err := s.program.FindMembership(ctx, submission.EventID, caller.UserID)
		if err != nil {
			return dto.SubmissionResponse{}, err
		}
		if membership == nil || membership.Team.ID != submission.TeamID {
			return dto.SubmissionResponse{}, ErrForbidden
		}
		if !isCaptain(*membership, caller.UserID) {
			return dto.SubmissionResponse{}, ErrCaptainRequired
		}
	}

	if submission.IsFinal() {
		return dto.SubmissionResponse{}, ErrSubmissionFinalized
	}

	if req.Type != nil {
		submission.Type = strings.TrimSpace(*req.Type)
	}
	if req.Content != nil {
		submission.Content = *req.Content
	}
	if req.Status != nil && *req.Status == models.SubmissionStatusFinal {
		submittedAt := s.now().UTC()
		submission.Status = models.SubmissionStatusFinal
		submission.SubmittedAt = &submittedAt
	}

	var files []models.SubmissionFile
	if req.Files != nil {
		files = buildSubmissionFiles(*req.Files)
	}
	submission.Files = nil

	var updated models.Submission
	err = s.tx.Execute(ctx, func(repos repository.TransactionalRepositories) error {
		if err := repos.Submissions().Update(ctx, &submission); err != nil {
			return err
		}
		if req.Files != nil {
			if err := repos.Submissions().ReplaceFiles(ctx, submission.ID, files); err != nil {
				return err
			}
		}
		if err := recordActivity(ctx, repos.Activity(), submission.TenantID, caller, ActionSubmissionUpdated, "submission", submission.ID, map[string]interface{}{
			"status":         submission.Status,
			"files_replaced": req.Files != nil,
		}); err != nil {
			return err
		}
		updated, err = repos.Submissions().GetByID(ctx, submission.ID)
		return err
	})
	if err != nil {
		s.logger.Error().Err(err).Uint("submission_id", submissionID).Uint("tenant_id", submission.TenantID).Msg("failed to update submission")
		return dto.SubmissionResponse{}, err
	}

	s.invalidate(ctx, submission.EventID)
	return dto.NewSubmissionResponse(updated), nil
}

func (s *submissionService) loadTask(ctx context.Context, caller Caller, eventID, taskID uint) (models.Event, models.Task, error) {
	event, err := s.program.GetEvent(ctx, eventID)
	if err != nil {
		return models.Event{}, models.Task{}, notFoundOr(err, ErrEventNotFound)
	}
	if err := s.access.EnsureTenant(caller, event.TenantID, ErrEventNotFound); err != nil {
		return models.Event{}, models.Task{}, err
	}

	task, err := s.program.GetTask(ctx, taskID)
	if err != nil {
		return models.Event{}, models.Task{}, notFoundOr(err, ErrTaskNotFound)
	}
	if task.EventID != eventID {
		return models.Event{}, models.Task{}, ErrTaskNotFound
	}
	return event, task, nil
}

func (s *submissionService) loadSubmission(ctx context.Context, caller Caller, submissionID uint) (models.Submission, error) {
	submission, err := s.submissions.GetByID(ctx, submissionID)
	if err != nil {
		return models.Submission{}, notFoundOr(err, ErrSubmissionNotFound)
	}
	if err := s.access.EnsureTenant(caller, submission.TenantID, ErrSubmissionNotFound); err != nil {
		return models.Submission{}, err
	}
	return submission, nil
}

// resolveTeam applies the submitter rules: managers name the team, everyone else
// submits for the team they captain in the event.
func (s *submissionService) resolveTeam(ctx context.Context, caller Caller, eventID uint, requested *uint) (models.Team, error) {
	if caller.IsManager() {
		if requested == nil || *requested == 0 {
			return models.Team{}, ErrTeamIDRequired
		}
		team, err := s.program.GetTeam(ctx, *requested)
		if err != nil {
			return models.Team{}, notFoundOr(err, ErrTeamNotFound)
		}
		if team.EventID != eventID {
			return models.Team{}, ErrTeamNotInEvent
		}
		return team, nil
	}

	membership, err := s.program.FindMembership(ctx, eventID, caller.UserID)
	if err != nil {
		return models.Team{}, err
	}
	if membership == nil {
		return models.Team{}, ErrNotTeamMember
	}
	if requested != nil && *requested != 0 && *requested != membership.Team.ID {
		return models.Team{}, ErrForbidden
	}
	if !isCaptain(*membership, caller.UserID) {
		return models.Team{}, ErrCaptainRequired
	}
	return membership.Team, nil
}

func (s *submissionService) invalidate(ctx context.Context, eventID uint) {
	if s.tracking != nil {
		s.tracking.Invalidate(ctx, eventID)
	}
}

func isCaptain(membership repository.MemberWithTeam, userID uint) bool {
	return membership.Member.IsCaptain() || membership.Team.CaptainUserID == userID
}

func buildSubmissionFiles(inputs []dto.SubmissionFileInput) []models.SubmissionFile {
	files := make([]models.SubmissionFile, 0, len(inputs))
	for _, input := range inputs {
		files = append(files, models.SubmissionFile{
			FileName:  strings.TrimSpace(input.FileName),
			URL:       strings.TrimSpace(input.URL),
			MimeType:  strings.TrimSpace(input.MimeType),
			SizeBytes: input.SizeBytes,
		})
	}
	return files
}
