package service

import (
	"context"
	"crypto/subtle"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"gorm.io/datatypes"

	"github.com/noah-isme/gema-program-api/internal/dto"
	"github.com/noah-isme/gema-program-api/internal/models"
	"github.com/noah-isme/gema-program-api/internal/repository"
)

var slugSeparator = regexp.MustCompile(`[^a-z0-9]+`)

// SeedService loads program structures for demos and local environments.
type SeedService interface {
	SeedProgram(ctx context.Context, token string, req dto.SeedProgramRequest) (dto.SeedProgramResponse, error)
}

type seedService struct {
	tx        repository.TransactionScope
	validator *validator.Validate
	enabled   bool
	token     string
	logger    zerolog.Logger
}

// NewSeedService constructs a seeding service.
func NewSeedService(tx repository.TransactionScope, validate *validator.Validate, enabled bool, token string, logger zerolog.Logger) SeedService {
	return &seedService{
		tx:        tx,
		validator: validate,
		enabled:   enabled,
		token:     token,
		logger:    logger.With().Str("component", "seed_service").Logger(),
	}
}

// SeedProgram upserts a tenant, event, phases, tasks, teams, projects and
// registrations in one transaction. Running it twice yields the same rows.
func (s *seedService) SeedProgram(ctx context.Context, token string, req dto.SeedProgramRequest) (dto.SeedProgramResponse, error) {
	if !s.enabled {
		return dto.SeedProgramResponse{}, ErrSeedDisabled
	}
	if !s.validateToken(token) {
		return dto.SeedProgramResponse{}, ErrSeedUnauthorized
	}
	if err := s.validator.Struct(req); err != nil {
		return dto.SeedProgramResponse{}, err
	}

	var result dto.SeedProgramResponse
	err := s.tx.Execute(ctx, func(repos repository.TransactionalRepositories) error {
		program := repos.Program()

		tenant := models.Tenant{Name: strings.TrimSpace(req.Tenant.Name), Slug: slugify(req.Tenant.Slug)}
		if err := program.UpsertTenant(ctx, &tenant); err != nil {
			return err
		}
		result.TenantID = tenant.ID

		eventSlug := slugify(req.Event.Slug)
		if eventSlug == "" {
			eventSlug = slugify(req.Event.Name)
		}
		event := models.Event{
			TenantID: tenant.ID,
			Name:     strings.TrimSpace(req.Event.Name),
			Slug:     eventSlug,
			StartsAt: req.Event.StartsAt,
			EndsAt:   req.Event.EndsAt,
		}
		if err := program.UpsertEvent(ctx, &event); err != nil {
			return err
		}
		result.EventID = event.ID

		for i, input := range req.Phases {
			order := input.OrderIndex
			if order == 0 {
				order = i + 1
			}
			phase := models.Phase{TenantID: tenant.ID, EventID: event.ID, Title: strings.TrimSpace(input.Title), OrderIndex: order}
			if err := program.UpsertPhase(ctx, &phase); err != nil {
				return err
			}
			result.Phases++

			for j, taskInput := range input.Tasks {
				taskOrder := taskInput.OrderIndex
				if taskOrder == 0 {
					taskOrder = j + 1
				}
				task := models.Task{
					TenantID:    tenant.ID,
					EventID:     event.ID,
					PhaseID:     phase.ID,
					Title:       strings.TrimSpace(taskInput.Title),
					Description: taskInput.Description,
					IsRequired:  taskInput.IsRequired,
					OrderIndex:  taskOrder,
				}
				if err := program.UpsertTask(ctx, &task); err != nil {
					return err
				}
				result.Tasks++
			}
		}

		for _, input := range req.Teams {
			team := models.Team{
				TenantID:      tenant.ID,
				EventID:       event.ID,
				Name:          strings.TrimSpace(input.Name),
				CaptainUserID: input.CaptainUserID,
			}
			if err := program.UpsertTeam(ctx, &team); err != nil {
				return err
			}
			result.Teams++

			captain := models.TeamMember{TeamID: team.ID, UserID: input.CaptainUserID, Role: models.TeamRoleCaptain}
			if err := program.UpsertTeamMember(ctx, &captain); err != nil {
				return err
			}
			result.Members++

			for _, memberInput := range input.Members {
				if memberInput.UserID == input.CaptainUserID {
					continue
				}
				member := models.TeamMember{TeamID: team.ID, UserID: memberInput.UserID, Role: models.TeamRoleMember}
				if err := program.UpsertTeamMember(ctx, &member); err != nil {
					return err
				}
				result.Members++
			}

			if input.Project != nil {
				project := models.Project{TenantID: tenant.ID, EventID: event.ID, TeamID: team.ID, Name: strings.TrimSpace(input.Project.Name)}
				if err := program.UpsertProject(ctx, &project); err != nil {
					return err
				}
				result.Projects++
			}
		}

		for _, input := range req.Registrations {
			registration := models.EventRegistration{
				TenantID:     tenant.ID,
				EventID:      event.ID,
				UserID:       input.UserID,
				FullName:     strings.TrimSpace(input.FullName),
				Email:        strings.ToLower(strings.TrimSpace(input.Email)),
				Role:         input.Role,
				Grade:        input.Grade,
				CustomFields: datatypes.JSONMap(input.CustomFields),
			}
			if err := program.UpsertRegistration(ctx, &registration); err != nil {
				return err
			}
			result.Registrations++
		}

		return nil
	})
	if err != nil {
		s.logger.Error().Err(err).Str("tenant", req.Tenant.Slug).Msg("program seed failed")
		return dto.SeedProgramResponse{}, err
	}

	s.logger.Info().
		Uint("tenant_id", result.TenantID).
		Uint("event_id", result.EventID).
		Int("phases", result.Phases).
		Int("tasks", result.Tasks).
		Int("teams", result.Teams).
		Msg("program seeded")
	return result, nil
}

func (s *seedService) validateToken(token string) bool {
	expected := strings.TrimSpace(s.token)
	if expected == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(expected), []byte(strings.TrimSpace(token))) == 1
}

func slugify(value string) string {
	slug := slugSeparator.ReplaceAllString(strings.ToLower(strings.TrimSpace(value)), "-")
	return strings.Trim(slug, "-")
}
