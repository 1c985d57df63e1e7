package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-program-api/internal/dto"
	"github.com/noah-isme/gema-program-api/internal/service"
	"github.com/noah-isme/gema-program-api/internal/utils"
)

// RubricHandler manages phase and project rubrics of an event.
type RubricHandler struct {
	service service.RubricService
	logger  zerolog.Logger
}

// NewRubricHandler constructs the handler.
func NewRubricHandler(service service.RubricService, logger zerolog.Logger) *RubricHandler {
	return &RubricHandler{
		service: service,
		logger:  logger.With().Str("component", "rubric_handler").Logger(),
	}
}

// Register binds rubric routes.
func (h *RubricHandler) Register(router fiber.Router) {
	phase := "/events/:eventId/phases/:phaseId/rubrics"
	router.Get(phase, h.listForPhase)
	router.Post(phase, h.createForPhase)
	router.Get(phase+"/:rubricId", h.get)
	router.Patch(phase+"/:rubricId", h.update)
	router.Delete(phase+"/:rubricId", h.delete)

	project := "/events/:eventId/project-rubrics"
	router.Get(project, h.listForProject)
	router.Post(project, h.createForProject)
	router.Get(project+"/:rubricId", h.get)
	router.Patch(project+"/:rubricId", h.update)
	router.Delete(project+"/:rubricId", h.delete)
}

func (h *RubricHandler) listForPhase(c *fiber.Ctx) error {
	ids, err := parseUintParams(c, "eventId", "phaseId")
	if err != nil {
		return badRequest(c, h.logger, err.Error())
	}

	rubrics, err := h.service.ListForPhase(requestContext(c), callerFromContext(c), ids[0], ids[1])
	if err != nil {
		return writeError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "rubrics retrieved", rubrics)
}

func (h *RubricHandler) listForProject(c *fiber.Ctx) error {
	eventID, err := parseUintParam(c, "eventId")
	if err != nil {
		return badRequest(c, h.logger, err.Error())
	}

	rubrics, err := h.service.ListForProject(requestContext(c), callerFromContext(c), eventID)
	if err != nil {
		return writeError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "rubrics retrieved", rubrics)
}

func (h *RubricHandler) createForPhase(c *fiber.Ctx) error {
	ids, err := parseUintParams(c, "eventId", "phaseId")
	if err != nil {
		return badRequest(c, h.logger, err.Error())
	}
	phaseID := ids[1]
	return h.create(c, ids[0], &phaseID)
}

func (h *RubricHandler) createForProject(c *fiber.Ctx) error {
	eventID, err := parseUintParam(c, "eventId")
	if err != nil {
		return badRequest(c, h.logger, err.Error())
	}
	return h.create(c, eventID, nil)
}

func (h *RubricHandler) create(c *fiber.Ctx, eventID uint, phaseID *uint) error {
	var payload dto.RubricCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return badRequest(c, h.logger, "invalid request body")
	}

	rubric, err := h.service.Create(requestContext(c), callerFromContext(c), eventID, phaseID, payload)
	if err != nil {
		return writeError(c, h.logger, err)
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "rubric created", rubric)
}

func (h *RubricHandler) get(c *fiber.Ctx) error {
	path, rubricID, err := rubricPath(c)
	if err != nil {
		return badRequest(c, h.logger, err.Error())
	}

	rubric, err := h.service.Get(requestContext(c), callerFromContext(c), path, rubricID)
	if err != nil {
		return writeError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "rubric retrieved", rubric)
}

func (h *RubricHandler) update(c *fiber.Ctx) error {
	path, rubricID, err := rubricPath(c)
	if err != nil {
		return badRequest(c, h.logger, err.Error())
	}
	var payload dto.RubricUpdateRequest
	if err := c.BodyParser(&payload); err != nil {
		return badRequest(c, h.logger, "invalid request body")
	}

	rubric, err := h.service.Update(requestContext(c), callerFromContext(c), path, rubricID, payload)
	if err != nil {
		return writeError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "rubric updated", rubric)
}

func (h *RubricHandler) delete(c *fiber.Ctx) error {
	path, rubricID, err := rubricPath(c)
	if err != nil {
		return badRequest(c, h.logger, err.Error())
	}

	if err := h.service.Delete(requestContext(c), callerFromContext(c), path, rubricID); err != nil {
		return writeError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "rubric deleted", nil)
}

// rubricPath reads the event, the optional phase and the rubric from the route.
func rubricPath(c *fiber.Ctx) (service.RubricPath, uint, error) {
	ids, err := parseUintParams(c, "eventId", "rubricId")
	if err != nil {
		return service.RubricPath{}, 0, err
	}
	if c.Params("phaseId") == "" {
		return service.ProjectRubricPath(ids[0]), ids[1], nil
	}
	phaseID, err := parseUintParam(c, "phaseId")
	if err != nil {
		return service.RubricPath{}, 0, err
	}
	return service.PhaseRubricPath(ids[0], phaseID), ids[1], nil
}
