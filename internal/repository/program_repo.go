package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/noah-isme/gema-program-api/internal/models"
)

// MemberWithTeam is a team membership joined with its team.
type MemberWithTeam struct {
	Member models.TeamMember
	Team   models.Team
}

// ProgramRepository reads and seeds the structural entities of an event.
type ProgramRepository interface {
	GetEvent(ctx context.Context, id uint) (models.Event, error)
	GetPhase(ctx context.Context, id uint) (models.Phase, error)
	ListPhases(ctx context.Context, eventID uint) ([]models.Phase, error)
	GetTask(ctx context.Context, id uint) (models.Task, error)
	ListTasks(ctx context.Context, eventID uint) ([]models.Task, error)
	ListTasksByPhase(ctx context.Context, phaseID uint) ([]models.Task, error)
	GetTeam(ctx context.Context, id uint) (models.Team, error)
	ListTeams(ctx context.Context, eventID uint) ([]models.Team, error)
	ListTeamMembers(ctx context.Context, teamID uint) ([]models.TeamMember, error)
	ListEventMembers(ctx context.Context, eventID uint) ([]MemberWithTeam, error)
	FindMembership(ctx context.Context, eventID, userID uint) (*MemberWithTeam, error)
	IsTeamMember(ctx context.Context, teamID, userID uint) (bool, error)
	GetProject(ctx context.Context, id uint) (models.Project, error)
	ListRegistrations(ctx context.Context, eventID uint) ([]models.EventRegistration, error)
	ClearTaskRubric(ctx context.Context, rubricID uint) error

	UpsertTenant(ctx context.Context, tenant *models.Tenant) error
	UpsertEvent(ctx context.Context, event *models.Event) error
	UpsertPhase(ctx context.Context, phase *models.Phase) error
	UpsertTask(ctx context.Context, task *models.Task) error
	UpsertTeam(ctx context.Context, team *models.Team) error
	UpsertTeamMember(ctx context.Context, member *models.TeamMember) error
	UpsertProject(ctx context.Context, project *models.Project) error
	UpsertRegistration(ctx context.Context, registration *models.EventRegistration) error
}

type programRepository struct {
	db *gorm.DB
}

// NewProgramRepository constructs a repository backed by GORM.
func NewProgramRepository(db *gorm.DB) ProgramRepository {
	return &programRepository{db: db}
}

func (r *programRepository) GetEvent(ctx context.Context, id uint) (models.Event, error) {
	var event models.Event
	err := r.db.WithContext(ctx).First(&event, id).Error
	return event, err
}

func (r *programRepository) GetPhase(ctx context.Context, id uint) (models.Phase, error) {
	var phase models.Phase
	err := r.db.WithContext(ctx).First(&phase, id).Error
	return phase, err
}

func (r *programRepository) ListPhases(ctx context.Context, eventID uint) ([]models.Phase, error) {
	var phases []models.Phase
	err := r.db.WithContext(ctx).
		Where("event_id = ?", eventID).
		Order("order_index ASC").
		Order("id ASC").
		Find(&phases).Error
	return phases, err
}

func (r *programRepository) GetTask(ctx context.Context, id uint) (models.Task, error) {
	var task models.Task
	err := r.db.WithContext(ctx).First(&task, id).Error
	return task, err
}

func (r *programRepository) ListTasks(ctx context.Context, eventID uint) ([]models.Task, error) {
	var tasks []models.Task
	err := r.db.WithContext(ctx).
		Where("event_id = ?", eventID).
		Order("phase_id ASC").
		Order("order_index ASC").
		Order("id ASC").
		Find(&tasks).Error
	return tasks, err
}

func (r *programRepository) ListTasksByPhase(ctx context.Context, phaseID uint) ([]models.Task, error) {
	var tasks []models.Task
	err := r.db.WithContext(ctx).
		Where("phase_id = ?", phaseID).
		Order("order_index ASC").
		Order("id ASC").
		Find(&tasks).Error
	return tasks, err
}

func (r *programRepository) GetTeam(ctx context.Context, id uint) (models.Team, error) {
	var team models.Team
	err := r.db.WithContext(ctx).First(&team, id).Error
	return team, err
}

func (r *programRepository) ListTeams(ctx context.Context, eventID uint) ([]models.Team, error) {
	var teams []models.Team
	err := r.db.WithContext(ctx).
		Where("event_id = ?", eventID).
		Order("name ASC").
		Order("id ASC").
		Find(&teams).Error
	return teams, err
}

func (r *programRepository) ListTeamMembers(ctx context.Context, teamID uint) ([]models.TeamMember, error) {
	var members []models.TeamMember
	err := r.db.WithContext(ctx).
		Where("team_id = ?", teamID).
		Order("id ASC").
		Find(&members).Error
	return members, err
}

func (r *programRepository) ListEventMembers(ctx context.Context, eventID uint) ([]MemberWithTeam, error) {
	teams, err := r.ListTeams(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if len(teams) == 0 {
		return []MemberWithTeam{}, nil
	}

	teamByID := make(map[uint]models.Team, len(teams))
	teamIDs := make([]uint, 0, len(teams))
	for _, team := range teams {
		teamByID[team.ID] = team
		teamIDs = append(teamIDs, team.ID)
	}

	var members []models.TeamMember
	if err := r.db.WithContext(ctx).
		Where("team_id IN ?", teamIDs).
		Order("id ASC").
		Find(&members).Error; err != nil {
		return nil, err
	}

	result := make([]MemberWithTeam, 0, len(members))
	for _, member := range members {
		result = append(result, MemberWithTeam{Member: member, Team: teamByID[member.TeamID]})
	}
	return result, nil
}

func (r *programRepository) FindMembership(ctx context.Context, eventID, userID uint) (*MemberWithTeam, error) {
	var member models.TeamMember
	err := r.db.WithContext(ctx).
		Joins("JOIN teams ON teams.id = team_members.team_id").
		Where("teams.event_id = ? AND team_members.user_id = ?", eventID, userID).
		Order("team_members.id ASC").
		First(&member).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	team, err := r.GetTeam(ctx, member.TeamID)
	if err != nil {
		return nil, err
	}

	return &MemberWithTeam{Member: member, Team: team}, nil
}

func (r *programRepository) IsTeamMember(ctx context.Context, teamID, userID uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.TeamMember{}).
		Where("team_id = ? AND user_id = ?", teamID, userID).
		Count(&count).Error
	return count > 0, err
}

func (r *programRepository) GetProject(ctx context.Context, id uint) (models.Project, error) {
	var project models.Project
	err := r.db.WithContext(ctx).First(&project, id).Error
	return project, err
}

func (r *programRepository) ListRegistrations(ctx context.Context, eventID uint) ([]models.EventRegistration, error) {
	var registrations []models.EventRegistration
	err := r.db.WithContext(ctx).
		Where("event_id = ?", eventID).
		Order("id ASC").
		Find(&registrations).Error
	return registrations, err
}

func (r *programRepository) ClearTaskRubric(ctx context.Context, rubricID uint) error {
	return r.db.WithContext(ctx).
		Model(&models.Task{}).
		Where("phase_rubric_id = ?", rubricID).
		Update("phase_rubric_id", nil).Error
}

func (r *programRepository) UpsertTenant(ctx context.Context, tenant *models.Tenant) error {
	return r.db.WithContext(ctx).
		Where(models.Tenant{Slug: tenant.Slug}).
		Assign(models.Tenant{Name: tenant.Name, Active: true}).
		FirstOrCreate(tenant).Error
}

func (r *programRepository) UpsertEvent(ctx context.Context, event *models.Event) error {
	return r.db.WithContext(ctx).
		Where(models.Event{TenantID: event.TenantID, Slug: event.Slug}).
		Assign(map[string]interface{}{"name": event.Name, "starts_at": event.StartsAt, "ends_at": event.EndsAt}).
		FirstOrCreate(event).Error
}

func (r *programRepository) UpsertPhase(ctx context.Context, phase *models.Phase) error {
	return r.db.WithContext(ctx).
		Where(models.Phase{EventID: phase.EventID, Title: phase.Title}).
		Assign(map[string]interface{}{"tenant_id": phase.TenantID, "order_index": phase.OrderIndex}).
		FirstOrCreate(phase).Error
}

func (r *programRepository) UpsertTask(ctx context.Context, task *models.Task) error {
	return r.db.WithContext(ctx).
		Where(models.Task{PhaseID: task.PhaseID, Title: task.Title}).
		Assign(map[string]interface{}{
			"tenant_id":   task.TenantID,
			"event_id":    task.EventID,
			"description": task.Description,
			"is_required": task.IsRequired,
			"order_index": task.OrderIndex,
		}).
		FirstOrCreate(task).Error
}

func (r *programRepository) UpsertTeam(ctx context.Context, team *models.Team) error {
	return r.db.WithContext(ctx).
		Where(models.Team{EventID: team.EventID, Name: team.Name}).
		Assign(map[string]interface{}{"tenant_id": team.TenantID, "captain_user_id": team.CaptainUserID}).
		FirstOrCreate(team).Error
}

func (r *programRepository) UpsertTeamMember(ctx context.Context, member *models.TeamMember) error {
	return r.db.WithContext(ctx).
		Where(models.TeamMember{TeamID: member.TeamID, UserID: member.UserID}).
		Assign(map[string]interface{}{"role": member.Role}).
		FirstOrCreate(member).Error
}

func (r *programRepository) UpsertProject(ctx context.Context, project *models.Project) error {
	return r.db.WithContext(ctx).
		Where(models.Project{EventID: project.EventID, TeamID: project.TeamID}).
		Assign(map[string]interface{}{"tenant_id": project.TenantID, "name": project.Name}).
		FirstOrCreate(project).Error
}

func (r *programRepository) UpsertRegistration(ctx context.Context, registration *models.EventRegistration) error {
	return r.db.WithContext(ctx).
		Where(models.EventRegistration{EventID: registration.EventID, UserID: registration.UserID}).
		Assign(map[string]interface{}{
			"tenant_id":     registration.TenantID,
			"full_name":     registration.FullName,
			"email":         registration.Email,
			"role":          registration.Role,
			"grade":         registration.Grade,
			"custom_fields": registration.CustomFields,
		}).
		FirstOrCreate(registration).Error
}
