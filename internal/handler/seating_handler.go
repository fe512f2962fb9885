package handler

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/examguard-api/internal/dto"
	"github.com/noah-isme/examguard-api/internal/service"
	"github.com/noah-isme/examguard-api/internal/utils"
)

// SeatingHandler exposes seating plan and seat assignment administration.
type SeatingHandler struct {
	plans     service.SeatingPlanService
	seats     service.SeatAllocationService
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewSeatingHandler builds a seating handler instance.
func NewSeatingHandler(plans service.SeatingPlanService, seats service.SeatAllocationService, validator *validator.Validate, logger zerolog.Logger) *SeatingHandler {
	return &SeatingHandler{
		plans:     plans,
		seats:     seats,
		validator: validator,
		logger:    logger.With().Str("component", "seating_handler").Logger(),
	}
}

// Register attaches the routes to the admin router group.
func (h *SeatingHandler) Register(router fiber.Router) {
	router.Post("/exams/:id/seating-plan", h.createPlan)
	router.Get("/exams/:id/seating-plan", h.getPlan)
	router.Delete("/exams/:id/seating-plan", h.deletePlan)
	router.Post("/exams/:id/seat-assignments", h.assignSeats)
	router.Get("/exams/:id/seat-assignments", h.listAssignments)
}

func (h *SeatingHandler) createPlan(c *fiber.Ctx) error {
	examID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.SeatingPlanCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}
	if err := h.validator.Struct(payload); err != nil {
		return handleError(c, h.logger, err)
	}

	plan, err := h.plans.CreateSeatingPlan(requestContext(c), examID, payload)
	if err != nil {
		return handleError(c, h.logger, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "seating plan created", plan)
}

func (h *SeatingHandler) getPlan(c *fiber.Ctx) error {
	examID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	plan, err := h.plans.GetSeatingPlan(requestContext(c), examID)
	if err != nil {
		return handleError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "seating plan retrieved", plan)
}

func (h *SeatingHandler) deletePlan(c *fiber.Ctx) error {
	examID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	if err := h.plans.DeleteSeatingPlan(requestContext(c), examID); err != nil {
		return handleError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "seating plan deleted", nil)
}

func (h *SeatingHandler) assignSeats(c *fiber.Ctx) error {
	examID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.SeatAssignmentRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	assignments, err := h.seats.AssignSeats(requestContext(c), examID, payload.Assignments, userIDFromContext(c))
	if err != nil {
		return handleError(c, h.logger, err)
	}

	return utils.OK(c, assignments, "seats assigned", fiber.Map{"total": len(assignments)})
}

func (h *SeatingHandler) listAssignments(c *fiber.Ctx) error {
	examID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	assignments, err := h.seats.ListSeatAssignments(requestContext(c), examID)
	if err != nil {
		return handleError(c, h.logger, err)
	}

	return utils.OK(c, assignments, "seat assignments retrieved", fiber.Map{"total": len(assignments)})
}
