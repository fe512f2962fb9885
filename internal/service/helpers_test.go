package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/examguard-api/internal/models"
	"github.com/noah-isme/examguard-api/internal/repository"
)

var pngPayload = append([]byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"), bytes.Repeat([]byte{0x01}, 64)...)

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

func setupStore(t *testing.T) (*gorm.DB, repository.Store) {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(models.All()...))
	return db, repository.NewStore(db)
}

func seedRoom(t *testing.T, db *gorm.DB, name string, capacity int) models.Room {
	t.Helper()
	room := models.Room{Name: name, Capacity: capacity}
	require.NoError(t, db.Create(&room).Error)
	return room
}

func seedExam(t *testing.T, db *gorm.DB, code string, room *models.Room) models.Exam {
	t.Helper()
	start := time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)
	exam := models.Exam{Code: code, Title: "Exam " + code, StartAt: start, EndAt: start.Add(2 * time.Hour)}
	if room != nil {
		exam.RoomID = &room.ID
	}
	require.NoError(t, db.Create(&exam).Error)
	return exam
}

func seedStudent(t *testing.T, db *gorm.DB, number string, rosterExams ...uint) models.Student {
	t.Helper()
	student := models.Student{StudentNumber: number, FullName: "Student " + number}
	require.NoError(t, db.Create(&student).Error)
	for _, examID := range rosterExams {
		require.NoError(t, db.Create(&models.ExamStudent{ExamID: examID, StudentID: student.ID}).Error)
	}
	return student
}

func newTestFileHeader(t *testing.T, name string, content []byte) *multipart.FileHeader {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", name)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest("POST", "/", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	require.NoError(t, req.ParseMultipartForm(int64(len(content))+1024))
	files := req.MultipartForm.File["file"]
	require.Len(t, files, 1)
	return files[0]
}

type memoryFileStore struct {
	mu        sync.Mutex
	files     map[string][]byte
	saves     []string
	deletes   []string
	saveErr   error
	deleteErr error
}

func newMemoryFileStore() *memoryFileStore {
	return &memoryFileStore{files: make(map[string][]byte)}
}

func (m *memoryFileStore) Save(_ context.Context, name string, reader io.Reader) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return "", m.saveErr
	}
	payload, err := io.ReadAll(reader)
	if err != nil {
		return "", err
	}
	location := "mem://" + name
	m.files[location] = payload
	m.saves = append(m.saves, location)
	return location, nil
}

func (m *memoryFileStore) Delete(_ context.Context, location string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deletes = append(m.deletes, location)
	if m.deleteErr != nil {
		return m.deleteErr
	}
	if _, ok := m.files[location]; !ok {
		return errors.New("file does not exist")
	}
	delete(m.files, location)
	return nil
}

func (m *memoryFileStore) has(location string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.files[location]
	return ok
}

type stubVerifier struct {
	mu     sync.Mutex
	result VerificationResult
	err    error
	calls  int
	paths  []string
}

func (s *stubVerifier) VerifyStudentFace(_ context.Context, _ uint, photoLocation string) (VerificationResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.paths = append(s.paths, photoLocation)
	if s.err != nil {
		return VerificationResult{}, s.err
	}
	return s.result, nil
}

type recordedEvent struct {
	examID    uint
	eventType string
	studentID *uint
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (r *recordingPublisher) PublishExamEvent(_ context.Context, examID uint, eventType string, studentID *uint, _ interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, recordedEvent{examID: examID, eventType: eventType, studentID: studentID})
}

func (r *recordingPublisher) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, event := range r.events {
		out = append(out, event.eventType)
	}
	return out
}

func intPtr(v int) *int {
	return &v
}

func uintPtr(v uint) *uint {
	return &v
}

func stringPtr(v string) *string {
	return &v
}
