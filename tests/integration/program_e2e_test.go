package integration_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-program-api/internal/config"
	"github.com/noah-isme/gema-program-api/internal/database"
	"github.com/noah-isme/gema-program-api/internal/dto"
	"github.com/noah-isme/gema-program-api/internal/handler"
	"github.com/noah-isme/gema-program-api/internal/middleware"
	"github.com/noah-isme/gema-program-api/internal/models"
	"github.com/noah-isme/gema-program-api/internal/repository"
	"github.com/noah-isme/gema-program-api/internal/router"
	"github.com/noah-isme/gema-program-api/internal/service"
)

const (
	integrationSecret = "integration-secret"
	integrationSeed   = "integration-seed"
)

type envelope struct {
	Success bool                   `json:"success"`
	Message string                 `json:"message"`
	Code    string                 `json:"code"`
	Data    json.RawMessage        `json:"data"`
	Details map[string]interface{} `json:"details"`
	Meta    map[string]interface{} `json:"meta"`
}

type programClient struct {
	t        *testing.T
	app      *fiber.App
	tenantID uint
}

func setupProgramApp(t *testing.T) (*programClient, *gorm.DB, *miniredis.Miniredis) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file:program_e2e?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	server, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(server.Close)

	redisClient := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { _ = redisClient.Close() })

	validate := validator.New(validator.WithRequiredStructEnabled())
	logger := zerolog.New(io.Discard)

	programRepo := repository.NewProgramRepository(db)
	submissionRepo := repository.NewSubmissionRepository(db)
	evaluationRepo := repository.NewEvaluationRepository(db)
	transactions := repository.NewGormTransactionScope(db)
	access := service.NewAccessPolicy(programRepo)

	tracking := service.NewTrackingService(programRepo, submissionRepo, evaluationRepo, access, redisClient, time.Minute, logger)
	notifications := service.NewNotificationService(repository.NewNotificationRepository(db), redisClient, "gema:integration", nil, logger)
	rubrics := service.NewRubricService(repository.NewRubricRepository(db), programRepo, transactions, access, validate, logger)
	submissions := service.NewSubmissionService(submissionRepo, programRepo, transactions, access, tracking, validate, logger)
	evaluations := service.NewEvaluationService(service.EvaluationDependencies{
		Evaluations:   evaluationRepo,
		Submissions:   submissionRepo,
		Program:       programRepo,
		Transactions:  transactions,
		Rubrics:       rubrics,
		Notifications: notifications,
		Tracking:      tracking,
		Access:        access,
		Validator:     validate,
		Logger:        logger,
	})

	cfg := config.Config{AppName: "Integration", AppEnv: "test", JWTSecret: integrationSecret}
	app := fiber.New()
	middleware.Register(app, middleware.Config{Logger: &logger})
	router.Register(app, cfg, router.Dependencies{
		SubmissionHandler:   handler.NewSubmissionHandler(submissions, logger),
		EvaluationHandler:   handler.NewEvaluationHandler(evaluations, middleware.RateLimit("ai-evaluation", 5, time.Minute), logger),
		RubricHandler:       handler.NewRubricHandler(rubrics, logger),
		TrackingHandler:     handler.NewTrackingHandler(tracking, logger),
		NotificationHandler: handler.NewNotificationHandler(notifications, logger, time.Second),
		ActivityHandler:     handler.NewActivityHandler(service.NewActivityService(repository.NewActivityLogRepository(db), logger), logger),
		SeedHandler:         handler.NewSeedHandler(service.NewSeedService(transactions, validate, true, integrationSeed, logger), logger),
	})

	return &programClient{t: t, app: app}, db, server
}

func (p *programClient) token(userID uint, role string) string {
	p.t.Helper()
	claims := jwt.MapClaims{
		"sub":       fmt.Sprint(userID),
		"role":      role,
		"tenant_id": p.tenantID,
		"exp":       time.Now().Add(time.Hour).Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(integrationSecret))
	require.NoError(p.t, err)
	return signed
}

func (p *programClient) call(method, path, token string, body interface{}, headers map[string]string) (int, envelope) {
	p.t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(p.t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := p.app.Test(req, -1)
	require.NoError(p.t, err)
	defer resp.Body.Close()

	var payload envelope
	require.NoError(p.t, json.NewDecoder(resp.Body).Decode(&payload))
	return resp.StatusCode, payload
}

func decode(t *testing.T, body envelope, target interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(body.Data, target))
}

func TestProgramEvaluationFlow(t *testing.T) {
	client, db, cache := setupProgramApp(t)

	const (
		admin   uint = 1
		mentor  uint = 900
		captain uint = 101
		member  uint = 102
	)

	status, body := client.call(http.MethodPost, "/api/v1/seed/programs", "", map[string]interface{}{
		"tenant": map[string]interface{}{"name": "Gema Academy", "slug": "gema-academy"},
		"event":  map[string]interface{}{"name": "Hack Week 2026"},
		"phases": []map[string]interface{}{
			{"title": "Design", "order_index": 1, "tasks": []map[string]interface{}{{"title": "Brief", "is_required": true}}},
			{"title": "Build", "order_index": 2, "tasks": []map[string]interface{}{{"title": "Prototype", "is_required": true}, {"title": "Retro"}}},
		},
		"teams": []map[string]interface{}{
			{"name": "Rockets", "captain_user_id": captain, "members": []map[string]interface{}{{"user_id": member}}, "project": map[string]interface{}{"name": "Launchpad"}},
		},
		"registrations": []map[string]interface{}{
			{"user_id": captain, "full_name": "Ayu", "grade": "11", "custom_fields": map[string]interface{}{"school": "North"}},
			{"user_id": member, "full_name": "Bima", "grade": "11", "custom_fields": map[string]interface{}{"school": "North"}},
		},
	}, map[string]string{handler.SeedTokenHeader: integrationSeed})
	require.Equal(t, fiber.StatusCreated, status, body.Message)

	var seeded dto.SeedProgramResponse
	decode(t, body, &seeded)
	require.Equal(t, 3, seeded.Tasks)
	client.tenantID = seeded.TenantID
	eventID := seeded.EventID

	var (
		design, build    models.Phase
		brief, prototype models.Task
		team             models.Team
		project          models.Project
	)
	require.NoError(t, db.Where("title = ?", "Design").First(&design).Error)
	require.NoError(t, db.Where("title = ?", "Build").First(&build).Error)
	require.NoError(t, db.Where("title = ?", "Brief").First(&brief).Error)
	require.NoError(t, db.Where("title = ?", "Prototype").First(&prototype).Error)
	require.NoError(t, db.Where("name = ?", "Rockets").First(&team).Error)
	require.NoError(t, db.Where("team_id = ?", team.ID).First(&project).Error)

	mentorToken := client.token(mentor, service.RoleMentor)
	captainToken := client.token(captain, service.RoleParticipant)
	memberToken := client.token(member, service.RoleParticipant)
	adminToken := client.token(admin, service.RoleTenantAdmin)

	deliverablesPath := fmt.Sprintf("/api/v1/events/%d/tracking/deliverables", eventID)
	status, body = client.call(http.MethodGet, deliverablesPath, mentorToken, nil, nil)
	require.Equal(t, fiber.StatusOK, status)
	var deliverables dto.DeliverablesResponse
	decode(t, body, &deliverables)
	require.Equal(t, dto.DeliverablesSummary{Pairs: 3}, deliverables.Summary)
	require.NotEmpty(t, cache.Keys())

	submitted := make(map[uint]dto.SubmissionResponse)
	for _, task := range []models.Task{brief, prototype} {
		status, body = client.call(http.MethodPost, fmt.Sprintf("/api/v1/events/%d/submissions/%d", eventID, task.ID), captainToken, map[string]interface{}{
			"content": task.Title + " final",
			"status":  "final",
			"files":   []map[string]interface{}{{"file_name": "work.zip", "url": "https://files.example.com/work.zip", "size_bytes": 2048}},
		}, nil)
		require.Equal(t, fiber.StatusCreated, status, body.Message)
		var submission dto.SubmissionResponse
		decode(t, body, &submission)
		submitted[task.ID] = submission
	}

	status, body = client.call(http.MethodGet, deliverablesPath, mentorToken, nil, nil)
	require.Equal(t, fiber.StatusOK, status)
	decode(t, body, &deliverables)
	require.Equal(t, 2, deliverables.Summary.Delivered)

	projectPath := fmt.Sprintf("/api/v1/events/%d/projects/%d/evaluations", eventID, project.ID)
	status, body = client.call(http.MethodPost, projectPath, mentorToken, map[string]interface{}{"score": 88, "comment": "Early", "status": "final"}, nil)
	require.Equal(t, fiber.StatusBadRequest, status)
	require.Equal(t, "phaseEvaluationMissing", body.Code)
	require.Equal(t, "Design", body.Details["phase_title"])

	status, body = client.call(http.MethodPost, fmt.Sprintf("/api/v1/submissions/%d/evaluations", submitted[brief.ID].ID), mentorToken, map[string]interface{}{"score": "9", "comment": "Clear brief", "status": "final"}, nil)
	require.Equal(t, fiber.StatusCreated, status, body.Message)

	for _, phase := range []struct {
		model      models.Phase
		submission uint
	}{{design, submitted[brief.ID].ID}, {build, submitted[prototype.ID].ID}} {
		status, body = client.call(http.MethodPost, fmt.Sprintf("/api/v1/events/%d/phases/%d/teams/%d/evaluations", eventID, phase.model.ID, team.ID), mentorToken, map[string]interface{}{
			"score":          85,
			"comment":        phase.model.Title + " phase reviewed",
			"status":         "draft",
			"submission_ids": []uint{phase.submission},
		}, nil)
		require.Equal(t, fiber.StatusCreated, status, body.Message)

		var draft dto.EvaluationResponse
		decode(t, body, &draft)
		require.Equal(t, []uint{phase.submission}, draft.EvaluatedSubmissionIDs)

		status, body = client.call(http.MethodPatch, fmt.Sprintf("/api/v1/evaluations/%d", draft.ID), mentorToken, map[string]interface{}{
			"status":          "final",
			"expected_status": "draft",
		}, nil)
		require.Equal(t, fiber.StatusOK, status, body.Message)
	}

	status, body = client.call(http.MethodPost, fmt.Sprintf("/api/v1/events/%d/phases/%d/teams/%d/evaluations", eventID, design.ID, team.ID), mentorToken, map[string]interface{}{
		"score":          70,
		"comment":        "wrong phase",
		"submission_ids": []uint{submitted[prototype.ID].ID},
	}, nil)
	require.Equal(t, fiber.StatusBadRequest, status)
	require.Equal(t, "submissionsNotBelongToTeamOrPhase", body.Code)

	status, body = client.call(http.MethodPost, projectPath, mentorToken, map[string]interface{}{"score": 91, "comment": "Great launch", "status": "final", "team_id": team.ID}, nil)
	require.Equal(t, fiber.StatusCreated, status, body.Message)
	var projectEvaluation dto.EvaluationResponse
	decode(t, body, &projectEvaluation)
	require.Equal(t, models.EvaluationScopeProject, projectEvaluation.Scope)
	require.Equal(t, 91.0, *projectEvaluation.Score)

	status, body = client.call(http.MethodGet, projectPath, memberToken, nil, nil)
	require.Equal(t, fiber.StatusOK, status)
	var projectEvaluations []dto.EvaluationResponse
	decode(t, body, &projectEvaluations)
	require.Len(t, projectEvaluations, 1)

	status, body = client.call(http.MethodGet, deliverablesPath, mentorToken, nil, nil)
	require.Equal(t, fiber.StatusOK, status)
	decode(t, body, &deliverables)
	require.Equal(t, dto.DeliverablesSummary{Pairs: 3, Delivered: 2, Evaluated: 1}, deliverables.Summary)

	status, body = client.call(http.MethodGet, "/api/v1/notifications?limit=10", memberToken, nil, nil)
	require.Equal(t, fiber.StatusOK, status)
	var notifications []dto.NotificationResponse
	decode(t, body, &notifications)
	require.Len(t, notifications, 4)

	status, body = client.call(http.MethodGet, "/api/v1/activity?action=evaluation.finalized&page_size=50", adminToken, nil, nil)
	require.Equal(t, fiber.StatusOK, status)
	var finalized []dto.ActivityResponse
	decode(t, body, &finalized)
	require.Len(t, finalized, 4)
	for _, entry := range finalized {
		require.Equal(t, mentor, entry.ActorID)
		require.Equal(t, "mentor", entry.ActorRole)
	}

	status, body = client.call(http.MethodGet, fmt.Sprintf("/api/v1/events/%d/tracking/statistics", eventID), mentorToken, nil, nil)
	require.Equal(t, fiber.StatusOK, status)
	var stats dto.TrackingStatisticsResponse
	decode(t, body, &stats)
	require.Equal(t, dto.TrackingTotals{Registered: 2, WithTeam: 2, Teams: 1}, stats.Totals)
	require.Equal(t, []dto.GroupCount{{Key: "North", Total: 2, WithTeam: 2}}, stats.ByCustomField["school"])
}
