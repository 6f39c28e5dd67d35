package handler

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-proposal-api/internal/dto"
	"github.com/noah-isme/gema-proposal-api/internal/service"
	"github.com/noah-isme/gema-proposal-api/internal/utils"
)

// ProposalHandler exposes originality evaluation and the comparison corpus.
type ProposalHandler struct {
	service service.ProposalService
	logger  zerolog.Logger
}

// NewProposalHandler constructs the handler.
func NewProposalHandler(service service.ProposalService, logger zerolog.Logger) *ProposalHandler {
	return &ProposalHandler{
		service: service,
		logger:  logger.With().Str("component", "proposal_handler").Logger(),
	}
}

// Register wires proposal routes. writeGuards run before corpus writes only.
func (h *ProposalHandler) Register(router fiber.Router, writeGuards ...fiber.Handler) {
	router.Post("/evaluate", h.evaluate)
	router.Get("", h.list)
	router.Get("/:id", h.get)

	create := append(append([]fiber.Handler{}, writeGuards...), h.create)
	router.Post("", create...)
}

func (h *ProposalHandler) evaluate(c *fiber.Ctx) error {
	var payload dto.EvaluateProposalRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	decision, err := h.service.Evaluate(c.UserContext(), payload)
	if err != nil {
		if isValidationError(err) {
			return sendValidationError(c, err)
		}
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to evaluate proposal")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to evaluate proposal")
	}

	return utils.SendSuccess(c, "proposal evaluated", decision)
}

func (h *ProposalHandler) create(c *fiber.Ctx) error {
	var payload dto.RegisterProposalRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	created, err := h.service.Register(c.UserContext(), payload)
	if err != nil {
		if isValidationError(err) {
			return sendValidationError(c, err)
		}
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to register proposal")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to register proposal")
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "proposal registered", created)
}

func (h *ProposalHandler) get(c *fiber.Ctx) error {
	id, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil || id == 0 {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid proposal id")
	}

	proposal, err := h.service.Get(c.UserContext(), uint(id))
	if err != nil {
		if errors.Is(err, service.ErrProposalNotFound) {
			return utils.SendError(c, fiber.StatusNotFound, "proposal not found")
		}
		requestLogger(h.logger, c).Error().Err(err).Uint64("proposal_id", id).Msg("failed to load proposal")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to load proposal")
	}

	return utils.SendSuccess(c, "proposal retrieved", proposal)
}

func (h *ProposalHandler) list(c *fiber.Ctx) error {
	page, err := parseQueryInt(c, "page")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid page")
	}
	pageSize, err := parseQueryInt(c, "pageSize")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid page size")
	}

	result, err := h.service.List(c.UserContext(), page, pageSize, c.Query("search"))
	if err != nil {
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to list proposals")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to list proposals")
	}

	return utils.OK(c, result.Items, "proposals retrieved", result.Pagination)
}
