package handler

import (
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/examguard-api/internal/dto"
	"github.com/noah-isme/examguard-api/internal/service"
	"github.com/noah-isme/examguard-api/internal/utils"
)

// CheckinHandler accepts proctor check-in submissions.
type CheckinHandler struct {
	service   service.CheckinService
	validator *validator.Validate
	logger    zerolog.Logger
	limiter   fiber.Handler
}

// NewCheckinHandler builds a check-in handler. limiter may be nil.
func NewCheckinHandler(service service.CheckinService, validator *validator.Validate, limiter fiber.Handler, logger zerolog.Logger) *CheckinHandler {
	if limiter == nil {
		limiter = func(c *fiber.Ctx) error { return c.Next() }
	}
	return &CheckinHandler{
		service:   service,
		validator: validator,
		logger:    logger.With().Str("component", "checkin_handler").Logger(),
		limiter:   limiter,
	}
}

// Register attaches the routes to the proctor router group.
func (h *CheckinHandler) Register(router fiber.Router) {
	router.Post("/checkins", h.limiter, h.create)
	router.Get("/exams/:id/checkins", h.list)
}

func (h *CheckinHandler) create(c *fiber.Ctx) error {
	examID, err := parseFormUint(c, "exam_id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}
	studentID, err := parseFormUint(c, "student_id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	payload := dto.CheckinCreateRequest{
		ExamID:          examID,
		StudentID:       studentID,
		EnteredSeatCode: strings.TrimSpace(c.FormValue("entered_seat_code")),
	}
	if err := h.validator.Struct(payload); err != nil {
		return handleError(c, h.logger, err)
	}

	checkin, err := h.service.CheckIn(requestContext(c), payload, formFile(c, "photo"))
	if err != nil {
		return handleError(c, h.logger, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "check-in recorded", checkin)
}

func (h *CheckinHandler) list(c *fiber.Ctx) error {
	examID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	checkins, err := h.service.ListCheckins(requestContext(c), examID)
	if err != nil {
		return handleError(c, h.logger, err)
	}

	return utils.OK(c, checkins, "check-ins retrieved", fiber.Map{"total": len(checkins)})
}
