package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-program-api/internal/service"
	"github.com/noah-isme/gema-program-api/internal/utils"
)

// TrackingHandler serves the event tracking views for reviewers.
type TrackingHandler struct {
	service service.TrackingService
	logger  zerolog.Logger
}

// NewTrackingHandler constructs the handler.
func NewTrackingHandler(service service.TrackingService, logger zerolog.Logger) *TrackingHandler {
	return &TrackingHandler{
		service: service,
		logger:  logger.With().Str("component", "tracking_handler").Logger(),
	}
}

// Register binds tracking routes.
func (h *TrackingHandler) Register(router fiber.Router) {
	router.Get("/events/:eventId/tracking/deliverables", h.deliverables)
	router.Get("/events/:eventId/tracking/overview", h.overview)
	router.Get("/events/:eventId/tracking/statistics", h.statistics)
}

func (h *TrackingHandler) deliverables(c *fiber.Ctx) error {
	eventID, err := parseUintParam(c, "eventId")
	if err != nil {
		return badRequest(c, h.logger, err.Error())
	}

	response, err := h.service.Deliverables(requestContext(c), callerFromContext(c), eventID)
	if err != nil {
		return writeError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "deliverables retrieved", response)
}

func (h *TrackingHandler) overview(c *fiber.Ctx) error {
	eventID, err := parseUintParam(c, "eventId")
	if err != nil {
		return badRequest(c, h.logger, err.Error())
	}

	response, err := h.service.Overview(requestContext(c), callerFromContext(c), eventID)
	if err != nil {
		return writeError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "tracking overview", response)
}

func (h *TrackingHandler) statistics(c *fiber.Ctx) error {
	eventID, err := parseUintParam(c, "eventId")
	if err != nil {
		return badRequest(c, h.logger, err.Error())
	}

	response, err := h.service.Statistics(requestContext(c), callerFromContext(c), eventID)
	if err != nil {
		return writeError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "tracking statistics", response)
}
