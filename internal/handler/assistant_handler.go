package handler

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-proposal-api/internal/dto"
	"github.com/noah-isme/gema-proposal-api/internal/service"
	"github.com/noah-isme/gema-proposal-api/internal/utils"
)

// AssistantHandler exposes the project assistant tasks.
type AssistantHandler struct {
	service service.AssistantService
	logger  zerolog.Logger
}

// NewAssistantHandler constructs the handler.
func NewAssistantHandler(service service.AssistantService, logger zerolog.Logger) *AssistantHandler {
	return &AssistantHandler{
		service: service,
		logger:  logger.With().Str("component", "assistant_handler").Logger(),
	}
}

// Register wires assistant routes.
func (h *AssistantHandler) Register(router fiber.Router) {
	router.Post("/complete", h.complete)
	router.Post("/summary", assistantRoute(h, "summary", h.service.Summarize))
	router.Post("/resume-points", assistantRoute(h, "resume points", h.service.ResumePoints))
	router.Post("/tasks", assistantRoute(h, "tasks", h.service.ProjectTasks))
	router.Post("/viva/questions", assistantRoute(h, "viva questions", h.service.VivaQuestions))
	router.Post("/viva/evaluate", assistantRoute(h, "viva evaluation", h.service.EvaluateViva))
	router.Post("/progress", assistantRoute(h, "progress estimate", h.service.AnalyzeProgress))
	router.Post("/chat", assistantRoute(h, "chat reply", h.service.Chat))
}

func (h *AssistantHandler) complete(c *fiber.Ctx) error {
	var payload dto.CompletionRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	response, err := h.service.Complete(c.UserContext(), payload)
	if err != nil {
		switch {
		case isValidationError(err):
			return sendValidationError(c, err)
		case errors.Is(err, service.ErrAssistantUnavailable):
			requestLogger(h.logger, c).Warn().Err(err).Msg("completion failed on every provider")
			return utils.SendError(c, fiber.StatusServiceUnavailable, "ai providers unavailable")
		default:
			requestLogger(h.logger, c).Error().Err(err).Msg("completion failed")
			return utils.SendError(c, fiber.StatusInternalServerError, "completion failed")
		}
	}

	return utils.SendSuccess(c, "completion generated", response)
}

// assistantRoute binds a request body to one assistant task. Tasks degrade to
// fallback answers, so only malformed input produces an error response.
func assistantRoute[Req any, Resp any](h *AssistantHandler, label string, task func(context.Context, Req) (Resp, error)) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var payload Req
		if err := c.BodyParser(&payload); err != nil {
			return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
		}

		response, err := task(c.UserContext(), payload)
		if err != nil {
			if isValidationError(err) {
				return sendValidationError(c, err)
			}
			requestLogger(h.logger, c).Error().Err(err).Str("task", label).Msg("assistant task failed")
			return utils.SendError(c, fiber.StatusInternalServerError, "failed to generate "+label)
		}

		return utils.SendSuccess(c, label+" generated", response)
	}
}
