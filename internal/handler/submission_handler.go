package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-program-api/internal/dto"
	"github.com/noah-isme/gema-program-api/internal/service"
	"github.com/noah-isme/gema-program-api/internal/utils"
)

// SubmissionHandler manages task submission endpoints.
type SubmissionHandler struct {
	service service.SubmissionService
	logger  zerolog.Logger
}

// NewSubmissionHandler builds a submission handler instance.
func NewSubmissionHandler(service service.SubmissionService, logger zerolog.Logger) *SubmissionHandler {
	return &SubmissionHandler{
		service: service,
		logger:  logger.With().Str("component", "submission_handler").Logger(),
	}
}

// Register attaches the routes to the provided router group.
func (h *SubmissionHandler) Register(router fiber.Router) {
	router.Post("/events/:eventId/submissions/:taskId", h.create)
	router.Get("/events/:eventId/submissions/:taskId", h.list)
	router.Get("/submissions/:submissionId", h.get)
	router.Patch("/submissions/:submissionId", h.update)
}

func (h *SubmissionHandler) create(c *fiber.Ctx) error {
	ids, err := parseUintParams(c, "eventId", "taskId")
	if err != nil {
		return badRequest(c, h.logger, err.Error())
	}

	var payload dto.SubmissionCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return badRequest(c, h.logger, "invalid request body")
	}

	submission, err := h.service.Create(requestContext(c), callerFromContext(c), ids[0], ids[1], payload)
	if err != nil {
		return writeError(c, h.logger, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "submission created", submission)
}

func (h *SubmissionHandler) list(c *fiber.Ctx) error {
	ids, err := parseUintParams(c, "eventId", "taskId")
	if err != nil {
		return badRequest(c, h.logger, err.Error())
	}

	submissions, err := h.service.List(requestContext(c), callerFromContext(c), ids[0], ids[1])
	if err != nil {
		return writeError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "submissions retrieved", submissions)
}

func (h *SubmissionHandler) get(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "submissionId")
	if err != nil {
		return badRequest(c, h.logger, err.Error())
	}

	submission, err := h.service.Get(requestContext(c), callerFromContext(c), id)
	if err != nil {
		return writeError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "submission retrieved", submission)
}

func (h *SubmissionHandler) update(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "submissionId")
	if err != nil {
		return badRequest(c, h.logger, err.Error())
	}

	var payload dto.SubmissionUpdateRequest
	if err := c.BodyParser(&payload); err != nil {
		return badRequest(c, h.logger, "invalid request body")
	}

	submission, err := h.service.Update(requestContext(c), callerFromContext(c), id, payload)
	if err != nil {
		return writeError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "submission updated", submission)
}
