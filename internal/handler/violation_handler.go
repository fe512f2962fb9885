package handler

import (
	"errors"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/examguard-api/internal/dto"
	"github.com/noah-isme/examguard-api/internal/service"
	"github.com/noah-isme/examguard-api/internal/utils"
)

// ViolationHandler manages incident reports filed by proctors.
type ViolationHandler struct {
	service   service.ViolationService
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewViolationHandler builds a violation handler instance.
func NewViolationHandler(service service.ViolationService, validator *validator.Validate, logger zerolog.Logger) *ViolationHandler {
	return &ViolationHandler{
		service:   service,
		validator: validator,
		logger:    logger.With().Str("component", "violation_handler").Logger(),
	}
}

// RegisterProctor binds the proctor facing CRUD routes.
func (h *ViolationHandler) RegisterProctor(router fiber.Router) {
	router.Post("/violations", h.create)
	router.Get("/violations/:id", h.get)
	router.Patch("/violations/:id", h.update)
	router.Delete("/violations/:id", h.delete)
	router.Get("/exams/:id/violations", h.listByExam)
}

// RegisterAdmin binds the cross-exam listing route.
func (h *ViolationHandler) RegisterAdmin(router fiber.Router) {
	router.Get("/violations", h.list)
}

func (h *ViolationHandler) create(c *fiber.Ctx) error {
	examID, err := parseFormUint(c, "exam_id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}
	studentID, err := parseFormUint(c, "student_id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}
	checkinID, err := parseOptionalFormUint(c, "checkin_id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	payload := dto.ViolationCreateRequest{
		ExamID:    examID,
		StudentID: studentID,
		Reason:    strings.TrimSpace(c.FormValue("reason")),
		CheckinID: checkinID,
	}
	if notes, ok := formValue(c, "notes"); ok {
		payload.Notes = &notes
	}
	if err := h.validator.Struct(payload); err != nil {
		return handleError(c, h.logger, err)
	}

	violation, err := h.service.Create(requestContext(c), payload, formFile(c, "evidence"))
	if err != nil {
		return handleError(c, h.logger, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "violation recorded", violation)
}

func (h *ViolationHandler) get(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	violation, err := h.service.Get(requestContext(c), id)
	if err != nil {
		return handleError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "violation retrieved", violation)
}

func (h *ViolationHandler) update(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.ViolationUpdateRequest
	if strings.HasPrefix(strings.ToLower(c.Get(fiber.HeaderContentType)), fiber.MIMEApplicationJSON) {
		if err := c.BodyParser(&payload); err != nil {
			return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
		}
	} else {
		payload, err = updateFromForm(c)
		if err != nil {
			return utils.SendError(c, fiber.StatusBadRequest, err.Error())
		}
	}

	violation, err := h.service.Update(requestContext(c), id, payload, formFile(c, "evidence"))
	if err != nil {
		return handleError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "violation updated", violation)
}

func (h *ViolationHandler) delete(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	if err := h.service.Delete(requestContext(c), id); err != nil {
		return handleError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "violation deleted", nil)
}

func (h *ViolationHandler) listByExam(c *fiber.Ctx) error {
	examID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}
	return h.respondList(c, dto.ViolationFilter{ExamID: &examID})
}

func (h *ViolationHandler) list(c *fiber.Ctx) error {
	var filter dto.ViolationFilter
	if err := c.QueryParser(&filter); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid exam_id")
	}
	if err := h.validator.Struct(filter); err != nil {
		return handleError(c, h.logger, err)
	}
	return h.respondList(c, filter)
}

func (h *ViolationHandler) respondList(c *fiber.Ctx, filter dto.ViolationFilter) error {
	violations, err := h.service.List(requestContext(c), filter)
	if err != nil {
		return handleError(c, h.logger, err)
	}

	return utils.OK(c, violations, "violations retrieved", fiber.Map{"total": len(violations)})
}

// updateFromForm treats a present form key as provided and an empty value as null.
func updateFromForm(c *fiber.Ctx) (dto.ViolationUpdateRequest, error) {
	var payload dto.ViolationUpdateRequest

	if reason, ok := formValue(c, "reason"); ok {
		payload.Reason = optionalString(reason)
	}
	if notes, ok := formValue(c, "notes"); ok {
		payload.Notes = optionalString(notes)
	}
	if raw, ok := formValue(c, "checkin_id"); ok {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			payload.CheckinID = dto.Null[uint]()
		} else {
			parsed, err := strconv.ParseUint(raw, 10, 64)
			if err != nil || parsed == 0 {
				return dto.ViolationUpdateRequest{}, errors.New("invalid checkin_id")
			}
			payload.CheckinID = dto.Some(uint(parsed))
		}
	}

	return payload, nil
}

func optionalString(value string) dto.Optional[string] {
	if strings.TrimSpace(value) == "" {
		return dto.Null[string]()
	}
	return dto.Some(value)
}

// formValue reports whether key was sent at all, in multipart or urlencoded bodies.
func formValue(c *fiber.Ctx, key string) (string, bool) {
	if isMultipart(c) {
		form, err := c.MultipartForm()
		if err != nil || form == nil {
			return "", false
		}
		values, ok := form.Value[key]
		if !ok {
			return "", false
		}
		if len(values) == 0 {
			return "", true
		}
		return values[0], true
	}

	args := c.Request().PostArgs()
	if !args.Has(key) {
		return "", false
	}
	return string(args.Peek(key)), true
}
