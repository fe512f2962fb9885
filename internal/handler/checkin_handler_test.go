package handler_test

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/examguard-api/internal/dto"
	"github.com/noah-isme/examguard-api/internal/handler"
	"github.com/noah-isme/examguard-api/internal/middleware"
	"github.com/noah-isme/examguard-api/internal/service"
)

func newCheckinApp(svc *mockCheckinService, limiter fiber.Handler) *fiber.App {
	return newTestApp(func(router fiber.Router) {
		handler.NewCheckinHandler(svc, newValidator(), limiter, nopLogger()).Register(router)
	})
}

func checkinFields(examID, studentID, seat string) []multipartField {
	return []multipartField{
		{name: "exam_id", value: examID},
		{name: "student_id", value: studentID},
		{name: "entered_seat_code", value: seat},
	}
}

func TestCheckinHandlerCreate(t *testing.T) {
	svc := &mockCheckinService{response: dto.CheckinResponse{ID: 11, DecisionStatus: "approved", IsFaceMatch: true, IsSeatOK: true}}
	app := newCheckinApp(svc, nil)

	req := multipartRequest(t, http.MethodPost, "/api/checkins", checkinFields("1", "2", " a1 "), "photo", "face.png", []byte("png"))
	resp, env := do(t, app, req)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	require.True(t, env.Success)

	require.Equal(t, dto.CheckinCreateRequest{ExamID: 1, StudentID: 2, EnteredSeatCode: "a1"}, svc.lastReq)
	require.Equal(t, "face.png", svc.photoName)
	require.Equal(t, []byte("png"), svc.photoBody)

	var checkin dto.CheckinResponse
	require.NoError(t, json.Unmarshal(env.Data, &checkin))
	require.Equal(t, "approved", checkin.DecisionStatus)
}

func TestCheckinHandlerValidation(t *testing.T) {
	svc := &mockCheckinService{}
	app := newCheckinApp(svc, nil)

	req := multipartRequest(t, http.MethodPost, "/api/checkins", checkinFields("", "2", ""), "photo", "face.png", []byte("png"))
	resp, env := do(t, app, req)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	require.Equal(t, "invalid_request", env.Code)
	require.Contains(t, string(env.Details), "exam_id")

	req = multipartRequest(t, http.MethodPost, "/api/checkins", checkinFields("x", "2", ""), "", "", nil)
	resp, _ = do(t, app, req)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestCheckinHandlerMapsEngineErrors(t *testing.T) {
	cases := []struct {
		kind   service.ErrorKind
		status int
	}{
		{service.KindAlreadyCheckedIn, fiber.StatusConflict},
		{service.KindVerifierUnavailable, fiber.StatusServiceUnavailable},
		{service.KindInvalidPhoto, fiber.StatusBadRequest},
		{service.KindNotFound, fiber.StatusNotFound},
	}

	for _, tc := range cases {
		t.Run(string(tc.kind), func(t *testing.T) {
			app := newCheckinApp(&mockCheckinService{err: &service.Error{Kind: tc.kind, Message: "failed"}}, nil)
			req := multipartRequest(t, http.MethodPost, "/api/checkins", checkinFields("1", "2", "A1"), "photo", "face.png", []byte("png"))
			resp, env := do(t, app, req)
			require.Equal(t, tc.status, resp.StatusCode)
			require.Equal(t, string(tc.kind), env.Code)
		})
	}
}

func TestCheckinHandlerRateLimit(t *testing.T) {
	svc := &mockCheckinService{}
	app := newCheckinApp(svc, middleware.RateLimit("checkins", 1, time.Minute))

	req := multipartRequest(t, http.MethodPost, "/api/checkins", checkinFields("1", "2", "A1"), "photo", "face.png", []byte("png"))
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	req = multipartRequest(t, http.MethodPost, "/api/checkins", checkinFields("1", "3", "A2"), "photo", "face.png", []byte("png"))
	resp, err = app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusTooManyRequests, resp.StatusCode)
}

func TestCheckinHandlerList(t *testing.T) {
	svc := &mockCheckinService{list: []dto.CheckinResponse{{ID: 1}, {ID: 2}, {ID: 3}}}
	app := newCheckinApp(svc, nil)

	resp, env := doJSON(t, app, http.MethodGet, "/api/exams/5/checkins", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Equal(t, float64(3), env.Meta["total"])
}
