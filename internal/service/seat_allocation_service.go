package service

import (
	"context"
	"fmt"
	"strconv"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/examguard-api/internal/dto"
	"github.com/noah-isme/examguard-api/internal/models"
	"github.com/noah-isme/examguard-api/internal/observability"
	"github.com/noah-isme/examguard-api/internal/repository"
)

// SeatAllocationService assigns rostered students to seats of an exam plan.
type SeatAllocationService interface {
	AssignSeats(ctx context.Context, examID uint, items []dto.SeatAssignmentItem, actorID *uint) ([]dto.SeatAssignmentResponse, error)
	ListSeatAssignments(ctx context.Context, examID uint) ([]dto.SeatAssignmentResponse, error)
}

type seatAllocationService struct {
	store  repository.Store
	cache  SeatingPlanCache
	events EventPublisher
	logger zerolog.Logger
	tracer trace.Tracer
}

type seatRequest struct {
	index     int
	studentID uint
	seatCode  string
}

// NewSeatAllocationService constructs the seat allocator. cache and events may be nil.
func NewSeatAllocationService(store repository.Store, cache SeatingPlanCache, events EventPublisher, logger zerolog.Logger) SeatAllocationService {
	if cache == nil {
		cache = noopSeatingPlanCache{}
	}
	return &seatAllocationService{
		store:  store,
		cache:  cache,
		events: events,
		logger: logger.With().Str("component", "seat_allocation_service").Logger(),
		tracer: otel.Tracer("github.com/noah-isme/examguard-api/internal/service/seating"),
	}
}

// AssignSeats validates the whole batch before writing anything. Each stage
// reports every offending item, and the first failing stage aborts the call.
func (s *seatAllocationService) AssignSeats(ctx context.Context, examID uint, items []dto.SeatAssignmentItem, actorID *uint) ([]dto.SeatAssignmentResponse, error) {
	ctx, span := s.tracer.Start(ctx, "seating.assign_seats", trace.WithAttributes(
		attribute.Int64("exam.id", int64(examID)),
		attribute.Int("seating.items", len(items)),
	))
	defer span.End()

	saved, err := s.assign(ctx, examID, items, actorID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "assignment rejected")
		if kind := KindOf(err); kind != "" {
			observability.SeatAssignmentRejections().WithLabelValues(string(kind)).Inc()
		}
		return nil, err
	}

	span.SetStatus(codes.Ok, "assigned")
	return dto.NewSeatAssignmentResponseSlice(saved), nil
}

func (s *seatAllocationService) assign(ctx context.Context, examID uint, items []dto.SeatAssignmentItem, actorID *uint) ([]models.SeatAssignment, error) {
	if _, err := s.store.Exams().GetByID(ctx, examID); err != nil {
		if repository.IsNotFound(err) {
			return nil, notFound("exam", examID)
		}
		return nil, err
	}

	plan, err := s.store.Seating().GetPlanByExam(ctx, examID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, newError(KindNotFound, fmt.Sprintf("seating plan for exam %d not found", examID))
		}
		return nil, err
	}

	requests, err := validateSeatRequests(items)
	if err != nil {
		return nil, err
	}
	if err := s.checkSeatsExist(ctx, plan.ID, requests); err != nil {
		return nil, err
	}
	if err := s.checkStudents(ctx, examID, requests); err != nil {
		return nil, err
	}

	byStudent, err := s.checkConflicts(ctx, examID, requests)
	if err != nil {
		return nil, err
	}

	saved := make([]models.SeatAssignment, 0, len(requests))
	err = s.store.Transaction(ctx, func(tx repository.Store) error {
		saved = saved[:0]
		for _, req := range requests {
			assignment, exists := byStudent[req.studentID]
			if exists && assignment.SeatCode == req.seatCode && assignment.SeatingPlanID == plan.ID {
				saved = append(saved, assignment)
				continue
			}

			if !exists {
				assignment = models.SeatAssignment{
					ExamID:     examID,
					StudentID:  req.studentID,
					AssignedBy: actorID,
				}
			} else if actorID != nil {
				assignment.AssignedBy = actorID
			}
			assignment.SeatCode = req.seatCode
			assignment.SeatingPlanID = plan.ID

			if err := tx.Seating().SaveAssignment(ctx, &assignment); err != nil {
				return err
			}
			saved = append(saved, assignment)
		}
		return nil
	})
	if err != nil {
		if repository.IsDuplicateKey(err) {
			return nil, wrapError(KindConstraintViolation, "seat assignment conflicts with a concurrent change", err)
		}
		return nil, fmt.Errorf("save seat assignments: %w", err)
	}

	s.cache.Invalidate(ctx, examID)
	if s.events != nil {
		s.events.PublishExamEvent(ctx, examID, dto.ExamEventSeatingChanged, nil, map[string]interface{}{
			"action":          "seats_assigned",
			"seating_plan_id": plan.ID,
			"count":           len(saved),
		})
	}

	s.logger.Info().Uint("exam_id", examID).Int("assignments", len(saved)).Msg("seats assigned")
	return saved, nil
}

func (s *seatAllocationService) ListSeatAssignments(ctx context.Context, examID uint) ([]dto.SeatAssignmentResponse, error) {
	if _, err := s.store.Exams().GetByID(ctx, examID); err != nil {
		if repository.IsNotFound(err) {
			return nil, notFound("exam", examID)
		}
		return nil, err
	}

	assignments, err := s.store.Seating().ListAssignments(ctx, examID)
	if err != nil {
		return nil, err
	}
	return dto.NewSeatAssignmentResponseSlice(assignments), nil
}

func validateSeatRequests(items []dto.SeatAssignmentItem) ([]seatRequest, error) {
	if len(items) == 0 {
		return nil, newError(KindInvalidRequest, "assignments must be a non-empty list",
			FieldError{Index: -1, Field: "assignments", Message: "empty"})
	}

	var fields []FieldError
	seenStudents := make(map[uint]struct{}, len(items))
	seenSeats := make(map[string]struct{}, len(items))
	requests := make([]seatRequest, 0, len(items))

	for i, item := range items {
		if item.InvalidStudentID != "" {
			fields = append(fields, FieldError{Index: i, Field: "student_id", Value: item.InvalidStudentID, Message: "must be an integer"})
			continue
		}
		if item.StudentID <= 0 {
			fields = append(fields, FieldError{Index: i, Field: "student_id", Value: strconv.FormatInt(item.StudentID, 10), Message: "must be a positive integer"})
			continue
		}
		code := NormalizeSeatCode(item.SeatCode)
		if code == "" {
			fields = append(fields, FieldError{Index: i, Field: "seat_code", Message: "is required"})
			continue
		}

		studentID := uint(item.StudentID)
		if _, dup := seenStudents[studentID]; dup {
			fields = append(fields, FieldError{Index: i, Field: "student_id", Value: strconv.FormatUint(uint64(studentID), 10), Message: "duplicate student_id in request"})
			continue
		}
		if _, dup := seenSeats[code]; dup {
			fields = append(fields, FieldError{Index: i, Field: "seat_code", Value: code, Message: "duplicate seat_code in request"})
			continue
		}

		seenStudents[studentID] = struct{}{}
		seenSeats[code] = struct{}{}
		requests = append(requests, seatRequest{index: i, studentID: studentID, seatCode: code})
	}

	if len(fields) > 0 {
		return nil, newError(KindInvalidRequest, "invalid seat assignments", fields...)
	}
	return requests, nil
}

func (s *seatAllocationService) checkSeatsExist(ctx context.Context, planID uint, requests []seatRequest) error {
	seats, err := s.store.Seating().ListSeats(ctx, planID)
	if err != nil {
		return err
	}

	known := make(map[string]struct{}, len(seats))
	for _, seat := range seats {
		known[NormalizeSeatCode(seat.SeatCode)] = struct{}{}
	}

	var fields []FieldError
	for _, req := range requests {
		if _, ok := known[req.seatCode]; !ok {
			fields = append(fields, FieldError{Index: req.index, Field: "seat_code", Value: req.seatCode, Message: "seat does not exist in plan"})
		}
	}
	if len(fields) > 0 {
		return newError(KindUnknownSeat, "seats not found in seating plan", fields...)
	}
	return nil
}

func (s *seatAllocationService) checkStudents(ctx context.Context, examID uint, requests []seatRequest) error {
	ids := make([]uint, 0, len(requests))
	for _, req := range requests {
		ids = append(ids, req.studentID)
	}

	students, err := s.store.Students().FindByIDs(ctx, ids)
	if err != nil {
		return err
	}
	rostered, err := s.store.Students().RosteredIDs(ctx, examID, ids)
	if err != nil {
		return err
	}

	existing := make(map[uint]struct{}, len(students))
	for _, student := range students {
		existing[student.ID] = struct{}{}
	}
	onRoster := make(map[uint]struct{}, len(rostered))
	for _, id := range rostered {
		onRoster[id] = struct{}{}
	}

	var (
		fields []FieldError
		kind   ErrorKind
	)
	for _, req := range requests {
		value := strconv.FormatUint(uint64(req.studentID), 10)
		if _, ok := existing[req.studentID]; !ok {
			fields = append(fields, FieldError{Index: req.index, Field: "student_id", Value: value, Message: "student not found"})
			if kind == "" {
				kind = KindUnknownStudent
			}
			continue
		}
		if _, ok := onRoster[req.studentID]; !ok {
			fields = append(fields, FieldError{Index: req.index, Field: "student_id", Value: value, Message: "student not in exam roster"})
			if kind == "" {
				kind = KindStudentNotOnRoster
			}
		}
	}
	if len(fields) > 0 {
		return newError(kind, "invalid students for exam", fields...)
	}
	return nil
}

// checkConflicts rejects seats held by other students and returns the
// student's current assignments keyed by student id.
func (s *seatAllocationService) checkConflicts(ctx context.Context, examID uint, requests []seatRequest) (map[uint]models.SeatAssignment, error) {
	codes := make([]string, 0, len(requests))
	ids := make([]uint, 0, len(requests))
	for _, req := range requests {
		codes = append(codes, req.seatCode)
		ids = append(ids, req.studentID)
	}

	holders, err := s.store.Seating().AssignmentsBySeatCodes(ctx, examID, codes)
	if err != nil {
		return nil, err
	}
	owners := make(map[string]uint, len(holders))
	for _, holder := range holders {
		owners[NormalizeSeatCode(holder.SeatCode)] = holder.StudentID
	}

	var fields []FieldError
	for _, req := range requests {
		if owner, taken := owners[req.seatCode]; taken && owner != req.studentID {
			fields = append(fields, FieldError{Index: req.index, Field: "seat_code", Value: req.seatCode, Message: "seat already assigned to another student"})
		}
	}
	if len(fields) > 0 {
		return nil, newError(KindSeatConflict, "seats already assigned to other students", fields...)
	}

	current, err := s.store.Seating().AssignmentsByStudents(ctx, examID, ids)
	if err != nil {
		return nil, err
	}
	byStudent := make(map[uint]models.SeatAssignment, len(current))
	for _, assignment := range current {
		byStudent[assignment.StudentID] = assignment
	}
	return byStudent, nil
}
