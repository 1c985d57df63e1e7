package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-program-api/internal/dto"
	"github.com/noah-isme/gema-program-api/internal/service"
	"github.com/noah-isme/gema-program-api/internal/utils"
)

// SeedTokenHeader carries the shared secret for seeding.
const SeedTokenHeader = "X-Seed-Token"

// SeedHandler exposes tooling endpoints for seeding program structures.
type SeedHandler struct {
	service service.SeedService
	logger  zerolog.Logger
}

// NewSeedHandler constructs a seed handler.
func NewSeedHandler(service service.SeedService, logger zerolog.Logger) *SeedHandler {
	return &SeedHandler{
		service: service,
		logger:  logger.With().Str("component", "seed_handler").Logger(),
	}
}

// Register wires seed routes.
func (h *SeedHandler) Register(router fiber.Router) {
	router.Post("/programs", h.programs)
}

func (h *SeedHandler) programs(c *fiber.Ctx) error {
	var payload dto.SeedProgramRequest
	if err := c.BodyParser(&payload); err != nil {
		return badRequest(c, h.logger, "invalid payload")
	}

	result, err := h.service.SeedProgram(requestContext(c), c.Get(SeedTokenHeader), payload)
	if err != nil {
		return writeError(c, h.logger, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "program seeded", result)
}
