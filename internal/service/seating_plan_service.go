package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/examguard-api/internal/dto"
	"github.com/noah-isme/examguard-api/internal/models"
	"github.com/noah-isme/examguard-api/internal/repository"
)

// SeatingPlanService builds, reads and removes exam seating plans.
type SeatingPlanService interface {
	CreateSeatingPlan(ctx context.Context, examID uint, req dto.SeatingPlanCreateRequest) (dto.SeatingPlanResponse, error)
	GetSeatingPlan(ctx context.Context, examID uint) (dto.SeatingPlanResponse, error)
	DeleteSeatingPlan(ctx context.Context, examID uint) error
}

type seatingPlanService struct {
	store  repository.Store
	cache  SeatingPlanCache
	events EventPublisher
	logger zerolog.Logger
	tracer trace.Tracer
}

// NewSeatingPlanService constructs the seating plan builder. cache and events may be nil.
func NewSeatingPlanService(store repository.Store, cache SeatingPlanCache, events EventPublisher, logger zerolog.Logger) SeatingPlanService {
	if cache == nil {
		cache = noopSeatingPlanCache{}
	}
	return &seatingPlanService{
		store:  store,
		cache:  cache,
		events: events,
		logger: logger.With().Str("component", "seating_plan_service").Logger(),
		tracer: otel.Tracer("github.com/noah-isme/examguard-api/internal/service/seating"),
	}
}

func (s *seatingPlanService) CreateSeatingPlan(ctx context.Context, examID uint, req dto.SeatingPlanCreateRequest) (dto.SeatingPlanResponse, error) {
	ctx, span := s.tracer.Start(ctx, "seating.create_plan", trace.WithAttributes(attribute.Int64("exam.id", int64(examID))))
	defer span.End()

	exam, err := s.store.Exams().GetByID(ctx, examID)
	if err != nil {
		if repository.IsNotFound(err) {
			return dto.SeatingPlanResponse{}, notFound("exam", examID)
		}
		return dto.SeatingPlanResponse{}, err
	}

	if _, err := s.store.Seating().GetPlanByExam(ctx, examID); err == nil {
		return dto.SeatingPlanResponse{}, newError(KindAlreadyExists, "seating plan already exists for this exam")
	} else if !repository.IsNotFound(err) {
		return dto.SeatingPlanResponse{}, err
	}

	if !exam.HasRoom() {
		return dto.SeatingPlanResponse{}, newError(KindMissingRoom, "exam must have a room assigned before creating a seating plan")
	}

	seats, err := BuildSeats(req)
	if err != nil {
		return dto.SeatingPlanResponse{}, err
	}
	span.SetAttributes(attribute.Int("seating.seats", len(seats)))

	plan := models.SeatingPlan{
		ExamID: exam.ID,
		RoomID: *exam.RoomID,
		Name:   planName(req.Name),
	}

	err = s.store.Transaction(ctx, func(tx repository.Store) error {
		return tx.Seating().CreatePlan(ctx, &plan, seats)
	})
	if err != nil {
		span.RecordError(err)
		if repository.IsDuplicateKey(err) {
			// the plan's exam index fires when a concurrent request won
			return dto.SeatingPlanResponse{}, wrapError(KindAlreadyExists, "seating plan already exists for this exam", err)
		}
		return dto.SeatingPlanResponse{}, fmt.Errorf("create seating plan: %w", err)
	}

	s.warnOnCapacity(ctx, plan, len(seats))
	s.cache.Invalidate(ctx, examID)
	s.publish(ctx, examID, "plan_created", plan.ID)

	s.logger.Info().Uint("exam_id", examID).Uint("plan_id", plan.ID).Int("seats", len(seats)).Msg("seating plan created")
	return dto.NewSeatingPlanResponse(plan, seats), nil
}

func (s *seatingPlanService) GetSeatingPlan(ctx context.Context, examID uint) (dto.SeatingPlanResponse, error) {
	if cached, ok := s.cache.Get(ctx, examID); ok {
		return cached, nil
	}

	plan, err := s.store.Seating().GetPlanByExam(ctx, examID)
	if err != nil {
		if repository.IsNotFound(err) {
			return dto.SeatingPlanResponse{}, newError(KindNotFound, fmt.Sprintf("seating plan for exam %d not found", examID))
		}
		return dto.SeatingPlanResponse{}, err
	}

	seats, err := s.store.Seating().ListSeats(ctx, plan.ID)
	if err != nil {
		return dto.SeatingPlanResponse{}, err
	}

	response := dto.NewSeatingPlanResponse(plan, seats)
	s.cache.Set(ctx, examID, response)
	return response, nil
}

func (s *seatingPlanService) DeleteSeatingPlan(ctx context.Context, examID uint) error {
	plan, err := s.store.Seating().GetPlanByExam(ctx, examID)
	if err != nil {
		if repository.IsNotFound(err) {
			return newError(KindNotFound, fmt.Sprintf("seating plan for exam %d not found", examID))
		}
		return err
	}

	err = s.store.Transaction(ctx, func(tx repository.Store) error {
		if err := tx.Checkins().DetachPlan(ctx, plan.ID); err != nil {
			return err
		}
		return tx.Seating().DeletePlan(ctx, plan.ID)
	})
	if err != nil {
		if repository.IsNotFound(err) {
			return newError(KindNotFound, fmt.Sprintf("seating plan for exam %d not found", examID))
		}
		return fmt.Errorf("delete seating plan: %w", err)
	}

	s.cache.Invalidate(ctx, examID)
	s.publish(ctx, examID, "plan_deleted", plan.ID)
	s.logger.Info().Uint("exam_id", examID).Uint("plan_id", plan.ID).Msg("seating plan deleted")
	return nil
}

func (s *seatingPlanService) warnOnCapacity(ctx context.Context, plan models.SeatingPlan, seatCount int) {
	room, err := s.store.Exams().GetRoom(ctx, plan.RoomID)
	if err != nil {
		return
	}
	if room.Capacity > 0 && seatCount > room.Capacity {
		s.logger.Warn().
			Uint("exam_id", plan.ExamID).
			Uint("room_id", room.ID).
			Int("capacity", room.Capacity).
			Int("seats", seatCount).
			Msg("seating plan exceeds room capacity")
	}
}

func (s *seatingPlanService) publish(ctx context.Context, examID uint, action string, planID uint) {
	if s.events == nil {
		return
	}
	s.events.PublishExamEvent(ctx, examID, dto.ExamEventSeatingChanged, nil, map[string]interface{}{
		"action":          action,
		"seating_plan_id": planID,
	})
}

func planName(name string) string {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return models.DefaultSeatingPlanName
	}
	return trimmed
}

// BuildSeats expands a plan request into seats. Grid requests produce
// row-major seats with 1-based positions; list requests keep caller order.
func BuildSeats(req dto.SeatingPlanCreateRequest) ([]models.Seat, error) {
	hasGrid := req.Rows != nil || req.Cols != nil
	hasList := req.SeatCodes != nil

	switch {
	case hasGrid && hasList:
		return nil, newError(KindInvalidSpec, "provide either rows/cols or seat_codes, not both",
			FieldError{Index: -1, Field: "seats", Message: "ambiguous layout"})
	case !hasGrid && !hasList:
		return nil, newError(KindInvalidSpec, "provide rows/cols or seat_codes",
			FieldError{Index: -1, Field: "seats", Message: "layout required"})
	case hasGrid:
		return buildGridSeats(req.Rows, req.Cols)
	default:
		return buildListSeats(req.SeatCodes)
	}
}

// MaxPlanSeats bounds the number of seats a single plan may hold.
const MaxPlanSeats = 10000

func buildGridSeats(rows, cols *int) ([]models.Seat, error) {
	var fields []FieldError
	if rows == nil || *rows <= 0 {
		fields = append(fields, FieldError{Index: -1, Field: "rows", Value: intValue(rows), Message: "must be a positive integer"})
	}
	if cols == nil || *cols <= 0 {
		fields = append(fields, FieldError{Index: -1, Field: "cols", Value: intValue(cols), Message: "must be a positive integer"})
	}
	if len(fields) > 0 {
		return nil, newError(KindInvalidSpec, "rows and cols must be positive integers", fields...)
	}
	if *rows > MaxPlanSeats/(*cols) {
		return nil, newError(KindInvalidSpec, fmt.Sprintf("grid exceeds %d seats", MaxPlanSeats),
			FieldError{Index: -1, Field: "rows", Value: intValue(rows), Message: "rows*cols too large"},
			FieldError{Index: -1, Field: "cols", Value: intValue(cols), Message: "rows*cols too large"})
	}

	seats := make([]models.Seat, 0, (*rows)*(*cols))
	for r := 0; r < *rows; r++ {
		for c := 0; c < *cols; c++ {
			row, col := r+1, c+1
			seats = append(seats, models.Seat{
				SeatCode:  GridSeatCode(r, c),
				RowNumber: &row,
				ColNumber: &col,
			})
		}
	}
	return seats, nil
}

func buildListSeats(codes []string) ([]models.Seat, error) {
	if len(codes) == 0 {
		return nil, newError(KindInvalidSpec, "seat_codes must be a non-empty list",
			FieldError{Index: -1, Field: "seat_codes", Message: "empty"})
	}
	if len(codes) > MaxPlanSeats {
		return nil, newError(KindInvalidSpec, fmt.Sprintf("seat_codes exceeds %d seats", MaxPlanSeats),
			FieldError{Index: -1, Field: "seat_codes", Value: strconv.Itoa(len(codes)), Message: "too many seats"})
	}

	seen := make(map[string]struct{}, len(codes))
	seats := make([]models.Seat, 0, len(codes))
	for i, raw := range codes {
		code := NormalizeSeatCode(raw)
		if code == "" {
			return nil, newError(KindInvalidSeat, "seat codes cannot be empty",
				FieldError{Index: i, Field: "seat_codes", Message: "empty seat code"})
		}
		if _, dup := seen[code]; dup {
			return nil, newError(KindDuplicateSeat, fmt.Sprintf("duplicate seat code: %s", code),
				FieldError{Index: i, Field: "seat_codes", Value: code, Message: "duplicate seat code"})
		}
		seen[code] = struct{}{}
		seats = append(seats, models.Seat{SeatCode: code})
	}
	return seats, nil
}

func intValue(v *int) string {
	if v == nil {
		return ""
	}
	return fmt.Sprintf("%d", *v)
}
