package handler

import (
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/examguard-api/internal/middleware"
	"github.com/noah-isme/examguard-api/internal/service"
	"github.com/noah-isme/examguard-api/internal/utils"
)

var kindStatus = map[service.ErrorKind]int{
	service.KindNotFound:            fiber.StatusNotFound,
	service.KindAlreadyExists:       fiber.StatusConflict,
	service.KindAlreadyCheckedIn:    fiber.StatusConflict,
	service.KindSeatConflict:        fiber.StatusConflict,
	service.KindConstraintViolation: fiber.StatusConflict,
	service.KindVerifierUnavailable: fiber.StatusServiceUnavailable,
}

type validationDetail struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// handleError renders service and validation errors with the shared envelope.
func handleError(c *fiber.Ctx, logger zerolog.Logger, err error) error {
	var domainErr *service.Error
	if errors.As(err, &domainErr) {
		status, ok := kindStatus[domainErr.Kind]
		if !ok {
			status = fiber.StatusBadRequest
		}
		if status >= fiber.StatusInternalServerError {
			requestLogger(logger, c).Error().Err(err).Str("kind", string(domainErr.Kind)).Msg("dependency failure")
		}

		var details interface{}
		if len(domainErr.Fields) > 0 {
			details = domainErr.Fields
		}
		return utils.FailWithCode(c, status, string(domainErr.Kind), domainErr.Message, details)
	}

	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		details := make([]validationDetail, 0, len(validationErrors))
		for _, fieldErr := range validationErrors {
			details = append(details, validationDetail{
				Field:   toSnakeCase(fieldErr.Field()),
				Message: fmt.Sprintf("failed on '%s' validation", fieldErr.Tag()),
			})
		}
		return utils.FailWithCode(c, fiber.StatusBadRequest, string(service.KindInvalidRequest), "validation failed", details)
	}

	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return utils.SendError(c, fiberErr.Code, fiberErr.Message)
	}

	requestLogger(logger, c).Error().Err(err).Msg("internal server error")
	return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
}

func parseUintParam(c *fiber.Ctx, key string) (uint, error) {
	value := strings.TrimSpace(c.Params(key))
	if value == "" {
		return 0, fmt.Errorf("%s is required", key)
	}
	parsed, err := strconv.ParseUint(value, 10, 64)
	if err != nil || parsed == 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return uint(parsed), nil
}

// parseFormUint returns 0 for a missing field so the validator can report it.
func parseFormUint(c *fiber.Ctx, key string) (uint, error) {
	value := strings.TrimSpace(c.FormValue(key))
	if value == "" {
		return 0, nil
	}
	parsed, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return uint(parsed), nil
}

func parseOptionalFormUint(c *fiber.Ctx, key string) (*uint, error) {
	value := strings.TrimSpace(c.FormValue(key))
	if value == "" {
		return nil, nil
	}
	parsed, err := parseFormUint(c, key)
	if err != nil {
		return nil, err
	}
	return &parsed, nil
}

// formFile returns nil when the request has no file under key.
func formFile(c *fiber.Ctx, key string) *multipart.FileHeader {
	form, err := c.MultipartForm()
	if err != nil || form == nil {
		return nil
	}
	files := form.File[key]
	if len(files) == 0 {
		return nil
	}
	return files[0]
}

func isMultipart(c *fiber.Ctx) bool {
	return strings.HasPrefix(strings.ToLower(c.Get(fiber.HeaderContentType)), fiber.MIMEMultipartForm)
}

func userIDFromContext(c *fiber.Ctx) *uint {
	switch v := c.Locals("user_id").(type) {
	case uint:
		return &v
	case int:
		if v < 0 {
			return nil
		}
		id := uint(v)
		return &id
	}
	return nil
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
		if correlation := middleware.GetCorrelationID(c); correlation != "" {
			logger = base.With().Str("correlation_id", correlation).Logger()
		}
	}
	return &logger
}

func toSnakeCase(name string) string {
	var b strings.Builder
	for i, r := range name {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				prev := name[i-1]
				if prev < 'A' || prev > 'Z' {
					b.WriteByte('_')
				}
			}
			b.WriteRune(r + ('a' - 'A'))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
