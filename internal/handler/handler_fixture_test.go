package handler_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-program-api/internal/config"
	"github.com/noah-isme/gema-program-api/internal/handler"
	"github.com/noah-isme/gema-program-api/internal/models"
	"github.com/noah-isme/gema-program-api/internal/repository"
	"github.com/noah-isme/gema-program-api/internal/router"
	"github.com/noah-isme/gema-program-api/internal/service"
)

const (
	jwtSecret = "handler-secret"
	seedToken = "seed-secret"

	adminID   uint = 1
	mentorID  uint = 900
	captainID uint = 101
	memberID  uint = 102
	rivalID   uint = 201
)

type envelope struct {
	Success bool                   `json:"success"`
	Message string                 `json:"message"`
	Code    string                 `json:"code"`
	Data    json.RawMessage        `json:"data"`
	Details map[string]interface{} `json:"details"`
	Meta    map[string]interface{} `json:"meta"`
}

type programApp struct {
	app       *fiber.App
	db        *gorm.DB
	tenantID  uint
	eventID   uint
	design    models.Phase
	brief     models.Task
	prototype models.Task
	team      models.Team
	project   models.Project
	logs      *bytes.Buffer
}

func newProgramApp(t *testing.T) *programApp {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(models.All()...))

	logs := &bytes.Buffer{}
	logger := zerolog.New(logs)
	validate := validator.New(validator.WithRequiredStructEnabled())

	programRepo := repository.NewProgramRepository(db)
	submissionRepo := repository.NewSubmissionRepository(db)
	evaluationRepo := repository.NewEvaluationRepository(db)
	transactions := repository.NewGormTransactionScope(db)
	access := service.NewAccessPolicy(programRepo)

	tracking := service.NewTrackingService(programRepo, submissionRepo, evaluationRepo, access, nil, time.Minute, logger)
	notifications := service.NewNotificationService(repository.NewNotificationRepository(db), nil, "", nil, logger)
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

	cfg := config.Config{AppName: "Test", AppEnv: "test", JWTSecret: jwtSecret}
	app := fiber.New()
	router.Register(app, cfg, router.Dependencies{
		SubmissionHandler:   handler.NewSubmissionHandler(submissions, logger),
		EvaluationHandler:   handler.NewEvaluationHandler(evaluations, nil, logger),
		RubricHandler:       handler.NewRubricHandler(rubrics, logger),
		TrackingHandler:     handler.NewTrackingHandler(tracking, logger),
		NotificationHandler: handler.NewNotificationHandler(notifications, logger, time.Second),
		ActivityHandler:     handler.NewActivityHandler(service.NewActivityService(repository.NewActivityLogRepository(db), logger), logger),
		SeedHandler:         handler.NewSeedHandler(service.NewSeedService(transactions, validate, true, seedToken, logger), logger),
	})

	pa := &programApp{app: app, db: db, logs: logs}
	pa.seed(t)
	logs.Reset()
	return pa
}

func (p *programApp) seed(t *testing.T) {
	t.Helper()
	payload := map[string]interface{}{
		"tenant": map[string]interface{}{"name": "Gema Academy", "slug": "gema"},
		"event":  map[string]interface{}{"name": "Hack Week"},
		"phases": []map[string]interface{}{
			{"title": "Design", "tasks": []map[string]interface{}{{"title": "Brief", "is_required": true}}},
			{"title": "Build", "tasks": []map[string]interface{}{{"title": "Prototype", "is_required": true}}},
		},
		"teams": []map[string]interface{}{
			{"name": "Rockets", "captain_user_id": captainID, "members": []map[string]interface{}{{"user_id": memberID}}, "project": map[string]interface{}{"name": "Launchpad"}},
			{"name": "Comets", "captain_user_id": rivalID},
		},
		"registrations": []map[string]interface{}{
			{"user_id": captainID, "full_name": "Ayu", "grade": "10"},
			{"user_id": memberID, "full_name": "Bima"},
		},
	}
	status, body := p.do(t, http.MethodPost, "/api/v1/seed/programs", "", payload, map[string]string{handler.SeedTokenHeader: seedToken})
	require.Equal(t, fiber.StatusCreated, status, body.Message)

	var result struct {
		TenantID uint `json:"tenant_id"`
		EventID  uint `json:"event_id"`
	}
	require.NoError(t, json.Unmarshal(body.Data, &result))
	p.tenantID = result.TenantID
	p.eventID = result.EventID

	require.NoError(t, p.db.Where("title = ?", "Design").First(&p.design).Error)
	require.NoError(t, p.db.Where("title = ?", "Brief").First(&p.brief).Error)
	require.NoError(t, p.db.Where("title = ?", "Prototype").First(&p.prototype).Error)
	require.NoError(t, p.db.Where("name = ?", "Rockets").First(&p.team).Error)
	require.NoError(t, p.db.Where("team_id = ?", p.team.ID).First(&p.project).Error)
}

func (p *programApp) token(t *testing.T, userID uint, role string) string {
	t.Helper()
	return signedToken(t, jwt.MapClaims{"sub": fmt.Sprint(userID), "role": role, "tenant_id": p.tenantID})
}

func signedToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	claims["exp"] = time.Now().Add(time.Hour).Unix()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(jwtSecret))
	require.NoError(t, err)
	return signed
}

func (p *programApp) admin(t *testing.T) string   { return p.token(t, adminID, service.RoleTenantAdmin) }
func (p *programApp) mentor(t *testing.T) string  { return p.token(t, mentorID, service.RoleMentor) }
func (p *programApp) captain(t *testing.T) string { return p.token(t, captainID, service.RoleParticipant) }
func (p *programApp) member(t *testing.T) string  { return p.token(t, memberID, service.RoleParticipant) }
func (p *programApp) rival(t *testing.T) string   { return p.token(t, rivalID, service.RoleParticipant) }

func (p *programApp) do(t *testing.T, method, path, token string, body interface{}, headers map[string]string) (int, envelope) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
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
	require.NoError(t, err)
	defer resp.Body.Close()

	var payload envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	return resp.StatusCode, payload
}

func decodeData(t *testing.T, body envelope, target interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(body.Data, target))
}
