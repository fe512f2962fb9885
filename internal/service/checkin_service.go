package service

import (
	"context"
	"fmt"
	"mime/multipart"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/datatypes"

	"github.com/noah-isme/examguard-api/internal/dto"
	"github.com/noah-isme/examguard-api/internal/models"
	"github.com/noah-isme/examguard-api/internal/observability"
	"github.com/noah-isme/examguard-api/internal/repository"
)

// CheckinAttempt carries everything needed to decide one check-in. Plan and
// Assignment are nil when the exam has no plan or the student has no seat.
type CheckinAttempt struct {
	Exam            models.Exam
	Student         models.Student
	Plan            *models.SeatingPlan
	Assignment      *models.SeatAssignment
	EnteredSeatCode string
	Photo           *multipart.FileHeader
}

// CheckinService verifies students arriving at an exam.
type CheckinService interface {
	CheckIn(ctx context.Context, req dto.CheckinCreateRequest, photo *multipart.FileHeader) (dto.CheckinResponse, error)
	Process(ctx context.Context, attempt CheckinAttempt) (models.Checkin, error)
	ListCheckins(ctx context.Context, examID uint) ([]dto.CheckinResponse, error)
}

type checkinService struct {
	store    repository.Store
	files    FileStore
	verifier FaceVerifier
	events   EventPublisher
	maxBytes int64
	logger   zerolog.Logger
	tracer   trace.Tracer
	now      func() time.Time
}

// NewCheckinService constructs the check-in decision engine. events may be nil.
func NewCheckinService(store repository.Store, files FileStore, verifier FaceVerifier, events EventPublisher, maxUploadMB int, logger zerolog.Logger) CheckinService {
	return &checkinService{
		store:    store,
		files:    files,
		verifier: verifier,
		events:   events,
		maxBytes: maxUploadBytes(maxUploadMB),
		logger:   logger.With().Str("component", "checkin_service").Logger(),
		tracer:   otel.Tracer("github.com/noah-isme/examguard-api/internal/service/checkin"),
		now:      time.Now,
	}
}

func (s *checkinService) CheckIn(ctx context.Context, req dto.CheckinCreateRequest, photo *multipart.FileHeader) (dto.CheckinResponse, error) {
	exam, err := s.store.Exams().GetByID(ctx, req.ExamID)
	if err != nil {
		if repository.IsNotFound(err) {
			return dto.CheckinResponse{}, notFound("exam", req.ExamID)
		}
		return dto.CheckinResponse{}, err
	}

	student, err := s.store.Students().GetByID(ctx, req.StudentID)
	if err != nil {
		if repository.IsNotFound(err) {
			return dto.CheckinResponse{}, notFound("student", req.StudentID)
		}
		return dto.CheckinResponse{}, err
	}

	attempt := CheckinAttempt{
		Exam:            exam,
		Student:         student,
		EnteredSeatCode: req.EnteredSeatCode,
		Photo:           photo,
	}

	plan, err := s.store.Seating().GetPlanByExam(ctx, exam.ID)
	switch {
	case err == nil:
		attempt.Plan = &plan
		assignment, err := s.store.Seating().FindAssignment(ctx, exam.ID, student.ID)
		if err == nil {
			attempt.Assignment = &assignment
		} else if !repository.IsNotFound(err) {
			return dto.CheckinResponse{}, err
		}
	case !repository.IsNotFound(err):
		return dto.CheckinResponse{}, err
	}

	checkin, err := s.Process(ctx, attempt)
	if err != nil {
		return dto.CheckinResponse{}, err
	}
	return dto.NewCheckinResponse(checkin), nil
}

// Process records a single check-in. The duplicate check runs before the
// photo is stored or the verifier is called, and the verifier runs outside
// any database transaction.
func (s *checkinService) Process(ctx context.Context, attempt CheckinAttempt) (models.Checkin, error) {
	ctx, span := s.tracer.Start(ctx, "checkin.process", trace.WithAttributes(
		attribute.Int64("exam.id", int64(attempt.Exam.ID)),
		attribute.Int64("student.id", int64(attempt.Student.ID)),
		attribute.Bool("checkin.has_assignment", attempt.Assignment != nil),
	))
	defer span.End()

	examID, studentID := attempt.Exam.ID, attempt.Student.ID

	exists, err := s.store.Checkins().Exists(ctx, examID, studentID)
	if err != nil {
		span.RecordError(err)
		return models.Checkin{}, err
	}
	if exists {
		span.SetStatus(codes.Error, "duplicate")
		return models.Checkin{}, newError(KindAlreadyCheckedIn, "student already checked in for this exam")
	}

	image, err := readImage(attempt.Photo, s.maxBytes, "photo")
	if err != nil {
		span.RecordError(err)
		return models.Checkin{}, err
	}

	location, err := s.files.Save(ctx, checkinPhotoName(examID, studentID, image.name), image.reader())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "storage failed")
		return models.Checkin{}, fmt.Errorf("store check-in photo: %w", err)
	}

	verdict, err := s.verify(ctx, studentID, location)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "verifier failed")
		s.logger.Warn().Err(err).Uint("exam_id", examID).Uint("student_id", studentID).Msg("face verification failed; photo left in storage")
		return models.Checkin{}, wrapError(KindVerifierUnavailable, "face verifier unavailable", err)
	}

	entered := NormalizeSeatCode(attempt.EnteredSeatCode)
	checkin := models.Checkin{
		ExamID:          examID,
		StudentID:       studentID,
		SeatCodeEntered: entered,
		IsFaceMatch:     verdict.Match,
		PhotoPath:       location,
		Verification: datatypes.JSONMap{
			"match":  verdict.Match,
			"score":  verdict.Score,
			"reason": verdict.Reason,
		},
		CheckedInAt: s.now().UTC(),
	}
	if attempt.Plan != nil {
		planID := attempt.Plan.ID
		checkin.SeatingPlanID = &planID
	}
	if attempt.Assignment != nil {
		assignmentID := attempt.Assignment.ID
		checkin.SeatAssignmentID = &assignmentID
		checkin.AssignedSeatCode = NormalizeSeatCode(attempt.Assignment.SeatCode)
	}
	checkin.IsSeatOK = attempt.Assignment != nil && SeatCodesMatch(checkin.AssignedSeatCode, entered)
	checkin.DecisionStatus = decide(checkin.IsFaceMatch, checkin.IsSeatOK)

	if err := s.store.Checkins().Create(ctx, &checkin); err != nil {
		span.RecordError(err)
		if repository.IsDuplicateKey(err) {
			return models.Checkin{}, wrapError(KindAlreadyCheckedIn, "student already checked in for this exam", err)
		}
		return models.Checkin{}, fmt.Errorf("save check-in: %w", err)
	}

	span.SetAttributes(attribute.String("checkin.status", checkin.DecisionStatus), attribute.Bool("checkin.approved", checkin.IsApproved()))
	span.SetStatus(codes.Ok, checkin.DecisionStatus)
	observability.CheckinDecisions().WithLabelValues(checkin.DecisionStatus).Inc()

	if s.events != nil {
		s.events.PublishExamEvent(ctx, examID, dto.ExamEventCheckinRecorded, &studentID, dto.NewCheckinResponse(checkin))
	}

	event := s.logger.Info()
	if !checkin.IsApproved() {
		event = s.logger.Warn()
	}
	event.
		Uint("exam_id", examID).
		Uint("student_id", studentID).
		Uint("checkin_id", checkin.ID).
		Str("decision", checkin.DecisionStatus).
		Bool("face_match", checkin.IsFaceMatch).
		Bool("seat_ok", checkin.IsSeatOK).
		Msg("check-in recorded")
	return checkin, nil
}

func (s *checkinService) ListCheckins(ctx context.Context, examID uint) ([]dto.CheckinResponse, error) {
	if _, err := s.store.Exams().GetByID(ctx, examID); err != nil {
		if repository.IsNotFound(err) {
			return nil, notFound("exam", examID)
		}
		return nil, err
	}

	checkins, err := s.store.Checkins().ListByExam(ctx, examID)
	if err != nil {
		return nil, err
	}
	return dto.NewCheckinResponseSlice(checkins), nil
}

func (s *checkinService) verify(ctx context.Context, studentID uint, location string) (VerificationResult, error) {
	ctx, span := s.tracer.Start(ctx, "checkin.verify_face")
	defer span.End()

	start := time.Now()
	result, err := s.verifier.VerifyStudentFace(ctx, studentID, location)
	observability.VerifierLatency().Observe(time.Since(start).Seconds())
	if err != nil {
		observability.VerifierFailures().Inc()
		span.RecordError(err)
		return VerificationResult{}, err
	}

	span.SetAttributes(attribute.Bool("verifier.match", result.Match), attribute.Float64("verifier.score", result.Score))
	return result, nil
}

func decide(faceMatch, seatOK bool) string {
	if faceMatch && seatOK {
		return models.CheckinStatusApproved
	}
	return models.CheckinStatusPending
}
