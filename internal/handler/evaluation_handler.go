package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-program-api/internal/dto"
	"github.com/noah-isme/gema-program-api/internal/service"
	"github.com/noah-isme/gema-program-api/internal/utils"
)

// EvaluationHandler exposes manual and AI-assisted evaluation endpoints for
// submissions, team phases and projects.
type EvaluationHandler struct {
	service   service.EvaluationService
	logger    zerolog.Logger
	aiLimiter fiber.Handler
}

// NewEvaluationHandler constructs the handler. aiLimiter guards the AI routes and may be nil.
func NewEvaluationHandler(service service.EvaluationService, aiLimiter fiber.Handler, logger zerolog.Logger) *EvaluationHandler {
	if aiLimiter == nil {
		aiLimiter = func(c *fiber.Ctx) error { return c.Next() }
	}
	return &EvaluationHandler{
		service:   service,
		logger:    logger.With().Str("component", "evaluation_handler").Logger(),
		aiLimiter: aiLimiter,
	}
}

// Register binds evaluation routes.
func (h *EvaluationHandler) Register(router fiber.Router) {
	router.Post("/submissions/:submissionId/evaluations", h.createForSubmission)
	router.Get("/submissions/:submissionId/evaluations", h.listForSubmission)
	router.Post("/submissions/:submissionId/evaluations/ai", h.aiLimiter, h.createAIForSubmission)
	router.Get("/submissions/:submissionId/evaluations/final", h.getFinal)

	phase := "/events/:eventId/phases/:phaseId/teams/:teamId/evaluations"
	router.Post(phase, h.createForPhase)
	router.Get(phase, h.listForPhase)
	router.Post(phase+"/ai", h.aiLimiter, h.createAIForPhase)

	project := "/events/:eventId/projects/:projectId/evaluations"
	router.Post(project, h.createForProject)
	router.Get(project, h.listForProject)
	router.Post(project+"/ai", h.aiLimiter, h.createAIForProject)

	router.Patch("/evaluations/:evaluationId", h.update)
}

func (h *EvaluationHandler) created(c *fiber.Ctx, evaluation dto.EvaluationResponse, err error) error {
	if err != nil {
		return writeError(c, h.logger, err)
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "evaluation created", evaluation)
}

func (h *EvaluationHandler) listed(c *fiber.Ctx, evaluations []dto.EvaluationResponse, err error) error {
	if err != nil {
		return writeError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "evaluations retrieved", evaluations)
}

func (h *EvaluationHandler) createForSubmission(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "submissionId")
	if err != nil {
		return badRequest(c, h.logger, err.Error())
	}
	var payload dto.EvaluationInput
	if err := c.BodyParser(&payload); err != nil {
		return badRequest(c, h.logger, "invalid request body")
	}

	evaluation, err := h.service.CreateForSubmission(requestContext(c), callerFromContext(c), id, payload)
	return h.created(c, evaluation, err)
}

func (h *EvaluationHandler) createAIForSubmission(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "submissionId")
	if err != nil {
		return badRequest(c, h.logger, err.Error())
	}
	payload, err := parseAIRequest(c)
	if err != nil {
		return badRequest(c, h.logger, "invalid request body")
	}

	evaluation, err := h.service.CreateAIForSubmission(requestContext(c), callerFromContext(c), id, payload)
	return h.created(c, evaluation, err)
}

func (h *EvaluationHandler) listForSubmission(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "submissionId")
	if err != nil {
		return badRequest(c, h.logger, err.Error())
	}

	evaluations, err := h.service.ListForSubmission(requestContext(c), callerFromContext(c), id)
	return h.listed(c, evaluations, err)
}

func (h *EvaluationHandler) getFinal(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "submissionId")
	if err != nil {
		return badRequest(c, h.logger, err.Error())
	}

	evaluation, err := h.service.GetFinal(requestContext(c), callerFromContext(c), id)
	if err != nil {
		return writeError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "final evaluation retrieved", evaluation)
}

func (h *EvaluationHandler) createForPhase(c *fiber.Ctx) error {
	ids, err := parseUintParams(c, "eventId", "phaseId", "teamId")
	if err != nil {
		return badRequest(c, h.logger, err.Error())
	}
	var payload dto.PhaseEvaluationRequest
	if err := c.BodyParser(&payload); err != nil {
		return badRequest(c, h.logger, "invalid request body")
	}

	evaluation, err := h.service.CreateForPhase(requestContext(c), callerFromContext(c), ids[0], ids[1], ids[2], payload)
	return h.created(c, evaluation, err)
}

func (h *EvaluationHandler) createAIForPhase(c *fiber.Ctx) error {
	ids, err := parseUintParams(c, "eventId", "phaseId", "teamId")
	if err != nil {
		return badRequest(c, h.logger, err.Error())
	}
	payload, err := parseAIRequest(c)
	if err != nil {
		return badRequest(c, h.logger, "invalid request body")
	}

	evaluation, err := h.service.CreateAIForPhase(requestContext(c), callerFromContext(c), ids[0], ids[1], ids[2], payload)
	return h.created(c, evaluation, err)
}

func (h *EvaluationHandler) listForPhase(c *fiber.Ctx) error {
	ids, err := parseUintParams(c, "eventId", "phaseId", "teamId")
	if err != nil {
		return badRequest(c, h.logger, err.Error())
	}

	evaluations, err := h.service.ListForPhase(requestContext(c), callerFromContext(c), ids[0], ids[1], ids[2])
	return h.listed(c, evaluations, err)
}

func (h *EvaluationHandler) createForProject(c *fiber.Ctx) error {
	ids, err := parseUintParams(c, "eventId", "projectId")
	if err != nil {
		return badRequest(c, h.logger, err.Error())
	}
	var payload dto.ProjectEvaluationRequest
	if err := c.BodyParser(&payload); err != nil {
		return badRequest(c, h.logger, "invalid request body")
	}

	evaluation, err := h.service.CreateForProject(requestContext(c), callerFromContext(c), ids[0], ids[1], payload)
	return h.created(c, evaluation, err)
}

func (h *EvaluationHandler) createAIForProject(c *fiber.Ctx) error {
	ids, err := parseUintParams(c, "eventId", "projectId")
	if err != nil {
		return badRequest(c, h.logger, err.Error())
	}
	payload, err := parseAIRequest(c)
	if err != nil {
		return badRequest(c, h.logger, "invalid request body")
	}

	evaluation, err := h.service.CreateAIForProject(requestContext(c), callerFromContext(c), ids[0], ids[1], payload)
	return h.created(c, evaluation, err)
}

func (h *EvaluationHandler) listForProject(c *fiber.Ctx) error {
	ids, err := parseUintParams(c, "eventId", "projectId")
	if err != nil {
		return badRequest(c, h.logger, err.Error())
	}

	evaluations, err := h.service.ListForProject(requestContext(c), callerFromContext(c), ids[0], ids[1])
	return h.listed(c, evaluations, err)
}

func (h *EvaluationHandler) update(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "evaluationId")
	if err != nil {
		return badRequest(c, h.logger, err.Error())
	}
	var payload dto.EvaluationUpdateRequest
	if err := c.BodyParser(&payload); err != nil {
		return badRequest(c, h.logger, "invalid request body")
	}

	evaluation, err := h.service.Update(requestContext(c), callerFromContext(c), id, payload)
	if err != nil {
		return writeError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "evaluation updated", evaluation)
}

// parseAIRequest accepts an empty body as a request with defaults.
func parseAIRequest(c *fiber.Ctx) (dto.AIEvaluationRequest, error) {
	var payload dto.AIEvaluationRequest
	if len(c.Body()) == 0 {
		return payload, nil
	}
	err := c.BodyParser(&payload)
	return payload, err
}
