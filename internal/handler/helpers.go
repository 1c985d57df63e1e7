package handler

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-program-api/internal/apperror"
	"github.com/noah-isme/gema-program-api/internal/middleware"
	"github.com/noah-isme/gema-program-api/internal/service"
	"github.com/noah-isme/gema-program-api/internal/utils"
)

func parseQueryInt(c *fiber.Ctx, key string) (int, error) {
	value := strings.TrimSpace(c.Query(key))
	if value == "" {
		return 0, nil
	}
	return strconv.Atoi(value)
}

func parseQueryUint(c *fiber.Ctx, key string) (uint, error) {
	value := strings.TrimSpace(c.Query(key))
	if value == "" {
		return 0, nil
	}
	parsed, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		return 0, err
	}
	return uint(parsed), nil
}

func parseUintParam(c *fiber.Ctx, name string) (uint, error) {
	value := strings.TrimSpace(c.Params(name))
	parsed, err := strconv.ParseUint(value, 10, 64)
	if err != nil || parsed == 0 {
		return 0, errors.New("invalid " + name)
	}
	return uint(parsed), nil
}

// parseUintParams reads several positive path identifiers in order.
func parseUintParams(c *fiber.Ctx, names ...string) ([]uint, error) {
	values := make([]uint, 0, len(names))
	for _, name := range names {
		value, err := parseUintParam(c, name)
		if err != nil {
			return nil, err
		}
		values = append(values, value)
	}
	return values, nil
}

func callerFromContext(c *fiber.Ctx) service.Caller {
	caller := service.Caller{}
	if id, ok := c.Locals("user_id").(uint); ok {
		caller.UserID = id
	}
	if role, ok := c.Locals("user_role").(string); ok {
		caller.Role = role
	}
	if tenantID, ok := c.Locals("tenant_id").(uint); ok {
		caller.TenantID = tenantID
	}
	if superAdmin, ok := c.Locals("super_admin").(bool); ok {
		caller.IsSuperAdmin = superAdmin
	}
	return caller
}

func userIDStringFromContext(c *fiber.Ctx) string {
	if id, ok := c.Locals("user_id").(uint); ok && id > 0 {
		return strconv.FormatUint(uint64(id), 10)
	}
	return ""
}

func requestContext(c *fiber.Ctx) context.Context {
	ctx := c.UserContext()
	if ctx == nil {
		ctx = context.Background()
	}
	return middleware.ContextWithCorrelation(ctx, middleware.GetCorrelationID(c))
}

func requestLogger(base zerolog.Logger, c *fiber.Ctx) *zerolog.Logger {
	logger := base
	if c != nil {
		ctx := base.With().Str("method", c.Method()).Str("path", c.Path())
		if correlation := middleware.GetCorrelationID(c); correlation != "" {
			ctx = ctx.Str("correlation_id", correlation)
		}
		if tenantID, ok := c.Locals("tenant_id").(uint); ok {
			ctx = ctx.Uint("tenant_id", tenantID)
		}
		for _, name := range routeIDParams {
			if value := c.Params(name); value != "" {
				ctx = ctx.Str(name, value)
			}
		}
		logger = ctx.Logger()
	}
	return &logger
}

// routeIDParams are the path identifiers that name the resource an operation targets.
var routeIDParams = []string{"eventId", "taskId", "submissionId", "phaseId", "teamId", "projectId", "evaluationId", "rubricId", "id"}

const maxLoggedBody = 2048

// clientErrorLog records a rejected request together with the body it carried.
func clientErrorLog(logger zerolog.Logger, c *fiber.Ctx, status int, code string) *zerolog.Event {
	event := requestLogger(logger, c).Warn().Int("status", status).Str("code", code)
	if body := c.Body(); len(body) > 0 {
		if len(body) > maxLoggedBody {
			body = body[:maxLoggedBody]
		}
		event = event.Bytes("body", body)
	}
	return event
}

var kindStatus = map[apperror.Kind]int{
	apperror.KindNotFound:    fiber.StatusNotFound,
	apperror.KindForbidden:   fiber.StatusForbidden,
	apperror.KindBadRequest:  fiber.StatusBadRequest,
	apperror.KindConflict:    fiber.StatusConflict,
	apperror.KindUnavailable: fiber.StatusServiceUnavailable,
	apperror.KindUpstream:    fiber.StatusBadGateway,
	apperror.KindInternal:    fiber.StatusInternalServerError,
}

// writeError converts a service error into the response envelope.
func writeError(c *fiber.Ctx, logger zerolog.Logger, err error) error {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		fields := make(map[string]string, len(validationErrors))
		for _, fieldErr := range validationErrors {
			fields[fieldErr.Field()] = fieldErr.Tag()
		}
		clientErrorLog(logger, c, fiber.StatusBadRequest, "validationFailed").Err(err).Msg("request rejected")
		return utils.FailWithCode(c, fiber.StatusBadRequest, "validationFailed", "validation failed", fiber.Map{"fields": fields})
	}

	if appErr, ok := apperror.As(err); ok {
		status, known := kindStatus[appErr.Kind]
		if !known {
			status = fiber.StatusInternalServerError
		}
		if status >= fiber.StatusInternalServerError {
			requestLogger(logger, c).Error().Err(err).Str("code", appErr.Code).Msg("request failed")
		} else {
			clientErrorLog(logger, c, status, appErr.Code).Err(err).Msg("request rejected")
		}
		if status == fiber.StatusInternalServerError {
			return utils.FailWithCode(c, status, appErr.Code, "internal server error", nil)
		}
		var details interface{}
		if len(appErr.Details) > 0 {
			details = appErr.Details
		}
		return utils.FailWithCode(c, status, appErr.Code, appErr.Message, details)
	}

	if errors.Is(err, context.DeadlineExceeded) {
		requestLogger(logger, c).Warn().Err(err).Msg("request timed out")
		return utils.FailWithCode(c, fiber.StatusGatewayTimeout, "timeout", "request timed out", nil)
	}

	requestLogger(logger, c).Error().Err(err).Msg("internal server error")
	return utils.Fail(c, fiber.StatusInternalServerError, "internal server error", nil)
}

func badRequest(c *fiber.Ctx, logger zerolog.Logger, message string) error {
	clientErrorLog(logger, c, fiber.StatusBadRequest, "badRequest").Msg(message)
	return utils.FailWithCode(c, fiber.StatusBadRequest, "badRequest", message, nil)
}
