package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/examguard-api/internal/dto"
	"github.com/noah-isme/examguard-api/internal/models"
	"github.com/noah-isme/examguard-api/internal/service"
)

type mockSeatingPlanService struct {
	lastExamID uint
	lastReq    dto.SeatingPlanCreateRequest
	response   dto.SeatingPlanResponse
	err        error
	deleted    bool
}

func (m *mockSeatingPlanService) CreateSeatingPlan(_ context.Context, examID uint, req dto.SeatingPlanCreateRequest) (dto.SeatingPlanResponse, error) {
	m.lastExamID = examID
	m.lastReq = req
	return m.response, m.err
}

func (m *mockSeatingPlanService) GetSeatingPlan(_ context.Context, examID uint) (dto.SeatingPlanResponse, error) {
	m.lastExamID = examID
	return m.response, m.err
}

func (m *mockSeatingPlanService) DeleteSeatingPlan(_ context.Context, examID uint) error {
	m.lastExamID = examID
	if m.err == nil {
		m.deleted = true
	}
	return m.err
}

type mockSeatAllocationService struct {
	lastItems []dto.SeatAssignmentItem
	lastActor *uint
	response  []dto.SeatAssignmentResponse
	err       error
}

func (m *mockSeatAllocationService) AssignSeats(_ context.Context, _ uint, items []dto.SeatAssignmentItem, actorID *uint) ([]dto.SeatAssignmentResponse, error) {
	m.lastItems = items
	m.lastActor = actorID
	return m.response, m.err
}

func (m *mockSeatAllocationService) ListSeatAssignments(_ context.Context, _ uint) ([]dto.SeatAssignmentResponse, error) {
	return m.response, m.err
}

type mockCheckinService struct {
	lastReq   dto.CheckinCreateRequest
	photoName string
	photoBody []byte
	response  dto.CheckinResponse
	list      []dto.CheckinResponse
	err       error
}

func (m *mockCheckinService) CheckIn(_ context.Context, req dto.CheckinCreateRequest, photo *multipart.FileHeader) (dto.CheckinResponse, error) {
	m.lastReq = req
	if photo != nil {
		m.photoName = photo.Filename
		file, err := photo.Open()
		if err != nil {
			return dto.CheckinResponse{}, err
		}
		defer file.Close()
		m.photoBody, _ = io.ReadAll(file)
	}
	return m.response, m.err
}

func (m *mockCheckinService) Process(context.Context, service.CheckinAttempt) (models.Checkin, error) {
	return models.Checkin{}, nil
}

func (m *mockCheckinService) ListCheckins(context.Context, uint) ([]dto.CheckinResponse, error) {
	return m.list, m.err
}

type mockViolationService struct {
	lastCreate   dto.ViolationCreateRequest
	lastUpdate   dto.ViolationUpdateRequest
	lastFilter   dto.ViolationFilter
	lastID       uint
	evidenceName string
	response     dto.ViolationResponse
	list         []dto.ViolationResponse
	err          error
}

func (m *mockViolationService) Create(_ context.Context, req dto.ViolationCreateRequest, evidence *multipart.FileHeader) (dto.ViolationResponse, error) {
	m.lastCreate = req
	if evidence != nil {
		m.evidenceName = evidence.Filename
	}
	return m.response, m.err
}

func (m *mockViolationService) Get(_ context.Context, id uint) (dto.ViolationResponse, error) {
	m.lastID = id
	return m.response, m.err
}

func (m *mockViolationService) List(_ context.Context, filter dto.ViolationFilter) ([]dto.ViolationResponse, error) {
	m.lastFilter = filter
	return m.list, m.err
}

func (m *mockViolationService) Update(_ context.Context, id uint, req dto.ViolationUpdateRequest, evidence *multipart.FileHeader) (dto.ViolationResponse, error) {
	m.lastID = id
	m.lastUpdate = req
	if evidence != nil {
		m.evidenceName = evidence.Filename
	}
	return m.response, m.err
}

func (m *mockViolationService) Delete(_ context.Context, id uint) error {
	m.lastID = id
	return m.err
}

type envelope struct {
	Success bool                   `json:"success"`
	Message string                 `json:"message"`
	Code    string                 `json:"code"`
	Data    json.RawMessage        `json:"data"`
	Meta    map[string]interface{} `json:"meta"`
	Details json.RawMessage        `json:"details"`
}

func newValidator() *validator.Validate {
	return validator.New(validator.WithRequiredStructEnabled())
}

func nopLogger() zerolog.Logger {
	return zerolog.New(io.Discard)
}

func newTestApp(register func(router fiber.Router)) *fiber.App {
	app := fiber.New()
	group := app.Group("/api", func(c *fiber.Ctx) error {
		c.Locals("user_id", uint(3))
		c.Locals("user_role", "admin")
		return c.Next()
	})
	register(group)
	return app
}

func doJSON(t *testing.T, app *fiber.App, method, path string, body interface{}) (*http.Response, envelope) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return do(t, app, req)
}

func do(t *testing.T, app *fiber.App, req *http.Request) (*http.Response, envelope) {
	t.Helper()
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	var env envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	return resp, env
}

type multipartField struct {
	name  string
	value string
}

func multipartRequest(t *testing.T, method, path string, fields []multipartField, fileField, fileName string, content []byte) *http.Request {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for _, field := range fields {
		require.NoError(t, writer.WriteField(field.name, field.value))
	}
	if fileField != "" {
		part, err := writer.CreateFormFile(fileField, fileName)
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func doRawJSON(t *testing.T, app *fiber.App, method, path, body string) (*http.Response, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return do(t, app, req)
}
