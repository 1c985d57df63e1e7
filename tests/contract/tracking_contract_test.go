package contract_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-program-api/internal/dto"
	"github.com/noah-isme/gema-program-api/internal/handler"
	"github.com/noah-isme/gema-program-api/internal/service"
)

type stubTrackingService struct {
	deliverables dto.DeliverablesResponse
}

func (s stubTrackingService) Invalidate(context.Context, uint) {}

func (s stubTrackingService) Deliverables(context.Context, service.Caller, uint) (dto.DeliverablesResponse, error) {
	return s.deliverables, nil
}

func (s stubTrackingService) Overview(context.Context, service.Caller, uint) (dto.TrackingOverviewResponse, error) {
	return dto.TrackingOverviewResponse{}, nil
}

func (s stubTrackingService) Statistics(context.Context, service.Caller, uint) (dto.TrackingStatisticsResponse, error) {
	return dto.TrackingStatisticsResponse{}, nil
}

func TestDeliverablesContract(t *testing.T) {
	schema := compileSchema(t, "deliverables.schema.json")

	now := time.Now().UTC()
	submissionID, evaluationID := uint(21), uint(31)
	score := 9.0
	svc := stubTrackingService{deliverables: dto.DeliverablesResponse{
		EventID: 1,
		Rows: []dto.DeliverableRow{
			{
				TeamID:           4,
				TeamName:         "Rockets",
				PhaseID:          3,
				TaskID:           5,
				TaskTitle:        "Brief",
				IsRequired:       true,
				Delivered:        true,
				SubmissionID:     &submissionID,
				SubmissionStatus: "final",
				SubmittedAt:      &now,
				EvaluationStatus: dto.DeliverableEvaluationFinal,
				EvaluationID:     &evaluationID,
				Score:            &score,
			},
			{
				TeamID:           4,
				TeamName:         "Rockets",
				PhaseID:          3,
				TaskID:           6,
				TaskTitle:        "Prototype",
				EvaluationStatus: dto.DeliverableEvaluationNone,
			},
		},
		Summary:     dto.DeliverablesSummary{Pairs: 2, Delivered: 1, Evaluated: 1},
		GeneratedAt: now,
	}}

	app := fiber.New()
	group := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Locals("user_id", uint(900))
		c.Locals("user_role", "mentor")
		c.Locals("tenant_id", uint(1))
		return c.Next()
	})
	handler.NewTrackingHandler(svc, zerolog.Nop()).Register(group)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/events/1/tracking/deliverables", nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, schema.Validate(decodeBody(t, resp)))
}
