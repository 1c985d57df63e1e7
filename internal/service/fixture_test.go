package service

import (
	"context"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-program-api/internal/models"
	"github.com/noah-isme/gema-program-api/internal/repository"
	"github.com/noah-isme/gema-program-api/pkg/ai"
)

const (
	adminUserID        uint = 1
	mentorUserID       uint = 900
	captainUserID      uint = 101
	memberUserID       uint = 102
	rivalCaptainUserID uint = 201
)

func testLogger() zerolog.Logger {
	return zerolog.New(io.Discard)
}

func testValidator() *validator.Validate {
	return validator.New(validator.WithRequiredStructEnabled())
}

func setupServiceDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(models.All()...))
	return db
}

// programFixture is one tenant running one event with two phases and two teams.
// The design phase holds one required task, the build phase one required and one optional task.
type programFixture struct {
	db        *gorm.DB
	tenant    models.Tenant
	event     models.Event
	design    models.Phase
	build     models.Phase
	brief     models.Task
	prototype models.Task
	demo      models.Task
	team      models.Team
	rival     models.Team
	project   models.Project
}

func newProgramFixture(t *testing.T) *programFixture {
	t.Helper()
	db := setupServiceDB(t)
	f := &programFixture{db: db}

	f.tenant = models.Tenant{Name: "Gema Academy", Slug: "gema", Active: true}
	require.NoError(t, db.Create(&f.tenant).Error)

	f.event = models.Event{TenantID: f.tenant.ID, Name: "Hack Week", Slug: "hack-week"}
	require.NoError(t, db.Create(&f.event).Error)

	f.design = models.Phase{TenantID: f.tenant.ID, EventID: f.event.ID, Title: "Design", OrderIndex: 1}
	require.NoError(t, db.Create(&f.design).Error)
	f.build = models.Phase{TenantID: f.tenant.ID, EventID: f.event.ID, Title: "Build", OrderIndex: 2}
	require.NoError(t, db.Create(&f.build).Error)

	f.brief = models.Task{TenantID: f.tenant.ID, EventID: f.event.ID, PhaseID: f.design.ID, Title: "Brief", IsRequired: true, OrderIndex: 1}
	require.NoError(t, db.Create(&f.brief).Error)
	f.prototype = models.Task{TenantID: f.tenant.ID, EventID: f.event.ID, PhaseID: f.build.ID, Title: "Prototype", IsRequired: true, OrderIndex: 1}
	require.NoError(t, db.Create(&f.prototype).Error)
	f.demo = models.Task{TenantID: f.tenant.ID, EventID: f.event.ID, PhaseID: f.build.ID, Title: "Demo video", OrderIndex: 2}
	require.NoError(t, db.Create(&f.demo).Error)

	f.team = models.Team{TenantID: f.tenant.ID, EventID: f.event.ID, Name: "Rockets", CaptainUserID: captainUserID}
	require.NoError(t, db.Create(&f.team).Error)
	f.rival = models.Team{TenantID: f.tenant.ID, EventID: f.event.ID, Name: "Comets", CaptainUserID: rivalCaptainUserID}
	require.NoError(t, db.Create(&f.rival).Error)

	require.NoError(t, db.Create(&[]models.TeamMember{
		{TeamID: f.team.ID, UserID: captainUserID, Role: models.TeamRoleCaptain},
		{TeamID: f.team.ID, UserID: memberUserID, Role: models.TeamRoleMember},
		{TeamID: f.rival.ID, UserID: rivalCaptainUserID, Role: models.TeamRoleCaptain},
	}).Error)

	f.project = models.Project{TenantID: f.tenant.ID, EventID: f.event.ID, TeamID: f.team.ID, Name: "Launchpad"}
	require.NoError(t, db.Create(&f.project).Error)

	return f
}

func (f *programFixture) admin() Caller {
	return Caller{UserID: adminUserID, Role: RoleTenantAdmin, TenantID: f.tenant.ID}
}

func (f *programFixture) mentor() Caller {
	return Caller{UserID: mentorUserID, Role: RoleMentor, TenantID: f.tenant.ID}
}

func (f *programFixture) captain() Caller {
	return Caller{UserID: captainUserID, Role: RoleParticipant, TenantID: f.tenant.ID}
}

func (f *programFixture) member() Caller {
	return Caller{UserID: memberUserID, Role: RoleParticipant, TenantID: f.tenant.ID}
}

func (f *programFixture) rivalCaptain() Caller {
	return Caller{UserID: rivalCaptainUserID, Role: RoleParticipant, TenantID: f.tenant.ID}
}

func (f *programFixture) foreignMentor() Caller {
	return Caller{UserID: 950, Role: RoleMentor, TenantID: f.tenant.ID + 100}
}

// submit inserts a submission directly, bypassing the submitter rules.
func (f *programFixture) submit(t *testing.T, task models.Task, team models.Team, status string, submittedAt *time.Time) models.Submission {
	t.Helper()
	submission := models.Submission{
		TenantID:    f.tenant.ID,
		EventID:     f.event.ID,
		TaskID:      task.ID,
		TeamID:      team.ID,
		SubmittedBy: team.CaptainUserID,
		Type:        "link",
		Content:     fmt.Sprintf("%s for %s", team.Name, task.Title),
		Status:      status,
		SubmittedAt: submittedAt,
		Files: []models.SubmissionFile{
			{FileName: "deck.pdf", URL: "https://files.example.com/deck.pdf", MimeType: "application/pdf", SizeBytes: 2048},
		},
	}
	require.NoError(t, f.db.Create(&submission).Error)
	return submission
}

func (f *programFixture) rubric(t *testing.T, scope string, phaseID *uint, scaleMax float64, criteria ...string) models.Rubric {
	t.Helper()
	rubric := models.Rubric{
		TenantID: f.tenant.ID,
		EventID:  f.event.ID,
		PhaseID:  phaseID,
		Scope:    scope,
		Name:     fmt.Sprintf("%s rubric", scope),
		ScaleMin: 0,
		ScaleMax: scaleMax,
	}
	for i, title := range criteria {
		rubric.Criteria = append(rubric.Criteria, models.RubricCriterion{TenantID: f.tenant.ID, Title: title, Weight: 1, OrderIndex: i})
	}
	require.NoError(t, f.db.Create(&rubric).Error)
	return rubric
}

func (f *programFixture) countEvaluations(t *testing.T) int64 {
	t.Helper()
	var count int64
	require.NoError(t, f.db.Model(&models.Evaluation{}).Count(&count).Error)
	return count
}

func (f *programFixture) countActivity(t *testing.T, action string) int64 {
	t.Helper()
	var count int64
	require.NoError(t, f.db.Model(&models.ActivityLog{}).Where("action = ?", action).Count(&count).Error)
	return count
}

func timePtr(v time.Time) *time.Time {
	return &v
}

func uintPtr(v uint) *uint {
	return &v
}

func floatPtr(v float64) *float64 {
	return &v
}

func stringPtr(v string) *string {
	return &v
}

type stubEvaluator struct {
	result     ai.EvaluationResult
	err        error
	calls      int
	lastSingle ai.EvaluationRequest
	lastMulti  ai.MultiSubmissionRequest
}

func (s *stubEvaluator) GenerateEvaluation(ctx context.Context, req ai.EvaluationRequest) (ai.EvaluationResult, error) {
	s.calls++
	s.lastSingle = req
	return s.result, s.err
}

func (s *stubEvaluator) GenerateMultiSubmissionEvaluation(ctx context.Context, req ai.MultiSubmissionRequest) (ai.EvaluationResult, error) {
	s.calls++
	s.lastMulti = req
	return s.result, s.err
}

type recordingInvalidator struct {
	events []uint
}

func (r *recordingInvalidator) Invalidate(ctx context.Context, eventID uint) {
	r.events = append(r.events, eventID)
}

// serviceStack wires every service against the fixture database.
type serviceStack struct {
	*programFixture
	program       repository.ProgramRepository
	access        *AccessPolicy
	rubrics       RubricService
	submissions   SubmissionService
	evaluations   EvaluationService
	notifications NotificationService
	invalidator   *recordingInvalidator
}

func newServiceStack(t *testing.T, evaluator ai.Evaluator) *serviceStack {
	t.Helper()
	f := newProgramFixture(t)
	logger := testLogger()
	validate := testValidator()

	program := repository.NewProgramRepository(f.db)
	submissionRepo := repository.NewSubmissionRepository(f.db)
	evaluationRepo := repository.NewEvaluationRepository(f.db)
	rubricRepo := repository.NewRubricRepository(f.db)
	notificationRepo := repository.NewNotificationRepository(f.db)
	tx := repository.NewGormTransactionScope(f.db)
	access := NewAccessPolicy(program)
	invalidator := &recordingInvalidator{}

	rubrics := NewRubricService(rubricRepo, program, tx, access, validate, logger)
	notifications := NewNotificationService(notificationRepo, nil, "", nil, logger)

	return &serviceStack{
		programFixture: f,
		program:        program,
		access:         access,
		rubrics:        rubrics,
		submissions:    NewSubmissionService(submissionRepo, program, tx, access, invalidator, validate, logger),
		evaluations: NewEvaluationService(EvaluationDependencies{
			Evaluations:   evaluationRepo,
			Submissions:   submissionRepo,
			Program:       program,
			Transactions:  tx,
			Rubrics:       rubrics,
			Notifications: notifications,
			Tracking:      invalidator,
			Access:        access,
			Evaluator:     evaluator,
			Validator:     validate,
			Logger:        logger,
		}),
		notifications: notifications,
		invalidator:   invalidator,
	}
}

func (s *serviceStack) notificationsFor(t *testing.T, evaluationID uint) int64 {
	t.Helper()
	count, err := repository.NewNotificationRepository(s.db).CountByEntity(context.Background(), "evaluation", evaluationID)
	require.NoError(t, err)
	return count
}
