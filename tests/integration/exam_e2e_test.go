package integration_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/noah-isme/examguard-api/internal/config"
	"github.com/noah-isme/examguard-api/internal/database"
	"github.com/noah-isme/examguard-api/internal/dto"
	"github.com/noah-isme/examguard-api/internal/handler"
	"github.com/noah-isme/examguard-api/internal/middleware"
	"github.com/noah-isme/examguard-api/internal/models"
	"github.com/noah-isme/examguard-api/internal/repository"
	"github.com/noah-isme/examguard-api/internal/router"
	"github.com/noah-isme/examguard-api/internal/service"
	"github.com/noah-isme/examguard-api/internal/storage"
	"github.com/noah-isme/examguard-api/pkg/faceverify"
)

const jwtSecret = "integration-secret"

var pngPayload = append([]byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"), bytes.Repeat([]byte{0x02}, 128)...)

type examApp struct {
	app    *fiber.App
	db     *gorm.DB
	fs     afero.Fs
	events service.ExamEventService
}

func setupExamApp(t *testing.T, faceMatch bool) examApp {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_foreign_keys=on", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := database.Open(config.DatabaseSQLite, dsn)
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	validate := validator.New(validator.WithRequiredStructEnabled())
	logger := zerolog.New(io.Discard)

	fs := afero.NewMemMapFs()
	files := storage.NewLocalFileStore(fs, "uploads", logger)
	verifier := service.NewFaceVerifier(faceverify.NewStaticVerifier(faceMatch))
	events := service.NewExamEventService(nil, "", nil, logger)
	cache := service.NewSeatingPlanCache(nil, 0, logger)
	store := repository.NewStore(db)

	plans := service.NewSeatingPlanService(store, cache, events, logger)
	seats := service.NewSeatAllocationService(store, cache, events, logger)
	checkins := service.NewCheckinService(store, files, verifier, events, 2, logger)
	violations := service.NewViolationService(store, files, events, 2, logger)

	app := fiber.New()
	middleware.Register(app, middleware.Config{Logger: &logger})
	router.Register(app, config.Config{AppName: "ExamGuard Test", JWTSecret: jwtSecret}, router.Dependencies{
		SeatingHandler:   handler.NewSeatingHandler(plans, seats, validate, logger),
		CheckinHandler:   handler.NewCheckinHandler(checkins, validate, middleware.RateLimit("checkins", 100, time.Minute), logger),
		ViolationHandler: handler.NewViolationHandler(violations, validate, logger),
		ExamEventHandler: handler.NewExamEventHandler(events, time.Second, logger),
		JWTMiddleware:    middleware.JWTProtected(jwtSecret),
	})

	return examApp{app: app, db: db, fs: fs, events: events}
}

func token(t *testing.T, userID uint, role string) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  userID,
		"role": role,
		"exp":  time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(jwtSecret))
	require.NoError(t, err)
	return "Bearer " + signed
}

type envelope[T any] struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Code    string          `json:"code"`
	Data    T               `json:"data"`
	Details json.RawMessage `json:"details"`
}

func decode[T any](t *testing.T, resp *http.Response, target *T) {
	t.Helper()
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, target), string(data))
}

func (e examApp) sendJSON(t *testing.T, method, path, auth string, payload interface{}) *http.Response {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", auth)
	resp, err := e.app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func (e examApp) send(t *testing.T, method, path, auth string) *http.Response {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	resp, err := e.app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func (e examApp) sendMultipart(t *testing.T, method, path, auth string, fields map[string]string, fileField, fileName string, content []byte) *http.Response {
	t.Helper()
	buf := &bytes.Buffer{}
	writer := multipart.NewWriter(buf)
	for key, value := range fields {
		require.NoError(t, writer.WriteField(key, value))
	}
	if fileField != "" {
		part, err := writer.CreateFormFile(fileField, fileName)
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(method, path, buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", auth)
	resp, err := e.app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func seedExam(t *testing.T, db *gorm.DB, capacity int, studentNumbers ...string) (models.Exam, []models.Student) {
	t.Helper()
	room := models.Room{Name: "Hall " + strconv.Itoa(capacity), Capacity: capacity}
	require.NoError(t, db.Create(&room).Error)

	start := time.Date(2026, 11, 2, 8, 0, 0, 0, time.UTC)
	exam := models.Exam{Code: "MATH-101", Title: "Calculus", StartAt: start, EndAt: start.Add(2 * time.Hour), RoomID: &room.ID}
	require.NoError(t, db.Create(&exam).Error)

	students := make([]models.Student, 0, len(studentNumbers))
	for _, number := range studentNumbers {
		student := models.Student{StudentNumber: number, FullName: "Student " + number}
		require.NoError(t, db.Create(&student).Error)
		require.NoError(t, db.Create(&models.ExamStudent{ExamID: exam.ID, StudentID: student.ID}).Error)
		students = append(students, student)
	}
	return exam, students
}

func TestExamDayEndToEndFlow(t *testing.T) {
	env := setupExamApp(t, true)
	exam, students := seedExam(t, env.db, 2, "S-001", "S-002")
	admin := token(t, 1, "admin")
	proctor := token(t, 7, "proctor")
	examPath := "/api/admin/exams/" + strconv.Itoa(int(exam.ID))

	events, cancel := env.events.Subscribe(exam.ID)
	defer cancel()

	// Step 1: admin builds a 1x2 grid
	resp := env.sendJSON(t, http.MethodPost, examPath+"/seating-plan", admin, map[string]interface{}{"rows": 1, "cols": 2})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	var plan envelope[dto.SeatingPlanResponse]
	decode(t, resp, &plan)
	require.True(t, plan.Success)
	require.Equal(t, 2, plan.Data.TotalSeats)
	require.Equal(t, "A1", plan.Data.Seats[0].SeatCode)
	require.Equal(t, "A2", plan.Data.Seats[1].SeatCode)

	// A second plan for the same exam is rejected
	resp = env.sendJSON(t, http.MethodPost, examPath+"/seating-plan", admin, map[string]interface{}{"rows": 1, "cols": 2})
	require.Equal(t, fiber.StatusConflict, resp.StatusCode)
	var conflict envelope[json.RawMessage]
	decode(t, resp, &conflict)
	require.Equal(t, "already_exists", conflict.Code)

	// Step 2: assign the first student to A1
	resp = env.sendJSON(t, http.MethodPost, examPath+"/seat-assignments", admin, map[string]interface{}{
		"assignments": []map[string]interface{}{{"student_id": students[0].ID, "seat_code": " a1 "}},
	})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var assigned envelope[[]dto.SeatAssignmentResponse]
	decode(t, resp, &assigned)
	require.Len(t, assigned.Data, 1)
	require.Equal(t, "A1", assigned.Data[0].SeatCode)
	require.NotNil(t, assigned.Data[0].AssignedBy)
	require.Equal(t, uint(1), *assigned.Data[0].AssignedBy)

	// Proctors cannot reach the admin surface
	resp = env.send(t, http.MethodGet, examPath+"/seating-plan", proctor)
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	// Step 3: proctor checks the student in at the assigned seat
	checkinFields := map[string]string{
		"exam_id":           strconv.Itoa(int(exam.ID)),
		"student_id":        strconv.Itoa(int(students[0].ID)),
		"entered_seat_code": "a1",
	}
	resp = env.sendMultipart(t, http.MethodPost, "/api/proctor/checkins", proctor, checkinFields, "photo", "face.png", pngPayload)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	var checkin envelope[dto.CheckinResponse]
	decode(t, resp, &checkin)
	require.Equal(t, models.CheckinStatusApproved, checkin.Data.DecisionStatus)
	require.True(t, checkin.Data.IsFaceMatch)
	require.True(t, checkin.Data.IsSeatOK)
	require.Equal(t, "A1", checkin.Data.AssignedSeatCode)

	stored, err := afero.Exists(env.fs, checkin.Data.PhotoPath)
	require.NoError(t, err)
	require.True(t, stored)

	// Step 4: a second check-in is refused before any photo is written
	resp = env.sendMultipart(t, http.MethodPost, "/api/proctor/checkins", proctor, checkinFields, "photo", "again.png", pngPayload)
	require.Equal(t, fiber.StatusConflict, resp.StatusCode)
	var duplicate envelope[json.RawMessage]
	decode(t, resp, &duplicate)
	require.Equal(t, "already_checked_in", duplicate.Code)

	// Unassigned student is recorded as pending
	resp = env.sendMultipart(t, http.MethodPost, "/api/proctor/checkins", proctor, map[string]string{
		"exam_id":    strconv.Itoa(int(exam.ID)),
		"student_id": strconv.Itoa(int(students[1].ID)),
	}, "photo", "face.png", pngPayload)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	var pending envelope[dto.CheckinResponse]
	decode(t, resp, &pending)
	require.Equal(t, models.CheckinStatusPending, pending.Data.DecisionStatus)
	require.False(t, pending.Data.IsSeatOK)

	resp = env.send(t, http.MethodGet, "/api/proctor/exams/"+strconv.Itoa(int(exam.ID))+"/checkins", proctor)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var listed envelope[[]dto.CheckinResponse]
	decode(t, resp, &listed)
	require.Len(t, listed.Data, 2)

	// Step 5: violation lifecycle
	resp = env.sendMultipart(t, http.MethodPost, "/api/proctor/violations", proctor, map[string]string{
		"exam_id":    strconv.Itoa(int(exam.ID)),
		"student_id": strconv.Itoa(int(students[0].ID)),
		"checkin_id": strconv.Itoa(int(checkin.Data.ID)),
		"reason":     "<b>Phone</b> on desk",
		"notes":      "seen at 08:40",
	}, "evidence", "desk.png", pngPayload)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	var violation envelope[dto.ViolationResponse]
	decode(t, resp, &violation)
	require.Equal(t, "Phone on desk", violation.Data.Reason)
	require.NotEmpty(t, violation.Data.EvidenceImagePath)
	violationPath := "/api/proctor/violations/" + strconv.Itoa(int(violation.Data.ID))

	resp = env.sendJSON(t, http.MethodPatch, violationPath, proctor, map[string]interface{}{"notes": nil, "checkin_id": nil})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var updated envelope[dto.ViolationResponse]
	decode(t, resp, &updated)
	require.Nil(t, updated.Data.Notes)
	require.Nil(t, updated.Data.CheckinID)
	require.Equal(t, "Phone on desk", updated.Data.Reason)

	resp = env.send(t, http.MethodGet, "/api/admin/violations?exam_id="+strconv.Itoa(int(exam.ID)), admin)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var adminList envelope[[]dto.ViolationResponse]
	decode(t, resp, &adminList)
	require.Len(t, adminList.Data, 1)

	resp = env.send(t, http.MethodDelete, violationPath, proctor)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	evidenceLeft, err := afero.Exists(env.fs, violation.Data.EvidenceImagePath)
	require.NoError(t, err)
	require.False(t, evidenceLeft)

	resp = env.send(t, http.MethodGet, violationPath, proctor)
	require.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	// Every committed change reached the exam stream in order
	want := []string{
		dto.ExamEventSeatingChanged,
		dto.ExamEventSeatingChanged,
		dto.ExamEventCheckinRecorded,
		dto.ExamEventCheckinRecorded,
		dto.ExamEventViolationRecorded,
		dto.ExamEventViolationUpdated,
		dto.ExamEventViolationDeleted,
	}
	got := make([]string, 0, len(want))
	timeout := time.After(2 * time.Second)
	for len(got) < len(want) {
		select {
		case event := <-events:
			require.Equal(t, exam.ID, event.ExamID)
			got = append(got, event.Type)
		case <-timeout:
			t.Fatalf("received %v, want %v", got, want)
		}
	}
	require.Equal(t, want, got)
}

func TestCheckinWithoutFaceMatchIsPending(t *testing.T) {
	env := setupExamApp(t, false)
	exam, students := seedExam(t, env.db, 4, "S-100")
	admin := token(t, 1, "admin")
	proctor := token(t, 8, "proctor")
	examPath := "/api/admin/exams/" + strconv.Itoa(int(exam.ID))

	resp := env.sendJSON(t, http.MethodPost, examPath+"/seating-plan", admin, map[string]interface{}{"seat_codes": []string{"front-1", "front-2"}})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	resp = env.sendJSON(t, http.MethodPost, examPath+"/seat-assignments", admin, map[string]interface{}{
		"assignments": []map[string]interface{}{{"student_id": students[0].ID, "seat_code": "FRONT-1"}},
	})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = env.sendMultipart(t, http.MethodPost, "/api/proctor/checkins", proctor, map[string]string{
		"exam_id":           strconv.Itoa(int(exam.ID)),
		"student_id":        strconv.Itoa(int(students[0].ID)),
		"entered_seat_code": "front-1",
	}, "photo", "face.png", pngPayload)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	var checkin envelope[dto.CheckinResponse]
	decode(t, resp, &checkin)
	require.True(t, checkin.Data.IsSeatOK)
	require.False(t, checkin.Data.IsFaceMatch)
	require.Equal(t, models.CheckinStatusPending, checkin.Data.DecisionStatus)
}

func TestSeatAssignmentRejectsUnknownSeatsAsAWhole(t *testing.T) {
	env := setupExamApp(t, true)
	exam, students := seedExam(t, env.db, 2, "S-200", "S-201")
	admin := token(t, 1, "admin")
	examPath := "/api/admin/exams/" + strconv.Itoa(int(exam.ID))

	resp := env.sendJSON(t, http.MethodPost, examPath+"/seating-plan", admin, map[string]interface{}{"rows": 1, "cols": 2})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	resp = env.sendJSON(t, http.MethodPost, examPath+"/seat-assignments", admin, map[string]interface{}{
		"assignments": []map[string]interface{}{
			{"student_id": students[0].ID, "seat_code": "A1"},
			{"student_id": students[1].ID, "seat_code": "Z9"},
		},
	})
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	var failed envelope[json.RawMessage]
	decode(t, resp, &failed)
	require.Equal(t, "unknown_seat", failed.Code)

	var count int64
	require.NoError(t, env.db.Model(&models.SeatAssignment{}).Count(&count).Error)
	require.Zero(t, count)
}

func TestProctorRoutesRequireToken(t *testing.T) {
	env := setupExamApp(t, true)

	resp := env.send(t, http.MethodGet, "/api/proctor/exams/1/checkins", "")
	require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()

	resp = env.send(t, http.MethodGet, "/api/v1/health", "")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	resp.Body.Close()
}
