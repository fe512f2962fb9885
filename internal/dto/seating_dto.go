package dto

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/noah-isme/examguard-api/internal/models"
)

// SeatingPlanCreateRequest accepts either a rows/cols grid or an explicit
// list of seat codes.
type SeatingPlanCreateRequest struct {
	Name      string   `json:"name" validate:"omitempty,max=255"`
	Rows      *int     `json:"rows"`
	Cols      *int     `json:"cols"`
	SeatCodes []string `json:"seat_codes"`
}

// SeatAssignmentItem is one student-to-seat pair of a batch request.
type SeatAssignmentItem struct {
	StudentID int64  `json:"student_id"`
	SeatCode  string `json:"seat_code"`
	// InvalidStudentID keeps a student_id that did not decode to an integer.
	InvalidStudentID string `json:"-"`
}

// UnmarshalJSON accepts numeric and numeric-string ids so a malformed id is
// reported against its own item instead of failing the whole batch.
func (i *SeatAssignmentItem) UnmarshalJSON(data []byte) error {
	var raw struct {
		StudentID json.RawMessage `json:"student_id"`
		SeatCode  json.RawMessage `json:"seat_code"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*i = SeatAssignmentItem{}
	i.StudentID, i.InvalidStudentID = decodeItemID(raw.StudentID)
	i.SeatCode = decodeItemText(raw.SeatCode)
	return nil
}

func decodeItemID(data json.RawMessage) (int64, string) {
	text := decodeItemText(data)
	if text == "" {
		return 0, ""
	}
	if id, err := strconv.ParseInt(text, 10, 64); err == nil {
		return id, ""
	}
	if f, err := strconv.ParseFloat(text, 64); err == nil && f == math.Trunc(f) && math.Abs(f) < math.MaxInt64 {
		return int64(f), ""
	}
	return 0, text
}

// decodeItemText unquotes strings and returns numbers and other literals as written.
func decodeItemText(data json.RawMessage) string {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return ""
	}
	var text string
	if err := json.Unmarshal(trimmed, &text); err == nil {
		return strings.TrimSpace(text)
	}
	return string(trimmed)
}

// SeatAssignmentRequest wraps a batch of assignments.
type SeatAssignmentRequest struct {
	Assignments []SeatAssignmentItem `json:"assignments"`
}

// SeatResponse is the public representation of a seat.
type SeatResponse struct {
	ID        uint   `json:"id"`
	SeatCode  string `json:"seat_code"`
	RowNumber *int   `json:"row_number"`
	ColNumber *int   `json:"col_number"`
}

// SeatingPlanResponse is the public representation of a seating plan.
type SeatingPlanResponse struct {
	ID         uint           `json:"id"`
	ExamID     uint           `json:"exam_id"`
	RoomID     uint           `json:"room_id"`
	Name       string         `json:"name"`
	Seats      []SeatResponse `json:"seats"`
	TotalSeats int            `json:"total_seats"`
	CreatedAt  time.Time      `json:"created_at"`
}

// SeatAssignmentResponse is the public representation of an assignment.
type SeatAssignmentResponse struct {
	ID            uint      `json:"id"`
	ExamID        uint      `json:"exam_id"`
	SeatingPlanID uint      `json:"seating_plan_id"`
	StudentID     uint      `json:"student_id"`
	SeatCode      string    `json:"seat_code"`
	AssignedBy    *uint     `json:"assigned_by"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// NewSeatingPlanResponse converts a plan and its seats into a DTO.
func NewSeatingPlanResponse(plan models.SeatingPlan, seats []models.Seat) SeatingPlanResponse {
	items := make([]SeatResponse, 0, len(seats))
	for _, seat := range seats {
		items = append(items, SeatResponse{
			ID:        seat.ID,
			SeatCode:  seat.SeatCode,
			RowNumber: seat.RowNumber,
			ColNumber: seat.ColNumber,
		})
	}

	return SeatingPlanResponse{
		ID:         plan.ID,
		ExamID:     plan.ExamID,
		RoomID:     plan.RoomID,
		Name:       plan.Name,
		Seats:      items,
		TotalSeats: len(items),
		CreatedAt:  plan.CreatedAt,
	}
}

// NewSeatAssignmentResponse converts an assignment into a DTO.
func NewSeatAssignmentResponse(model models.SeatAssignment) SeatAssignmentResponse {
	return SeatAssignmentResponse{
		ID:            model.ID,
		ExamID:        model.ExamID,
		SeatingPlanID: model.SeatingPlanID,
		StudentID:     model.StudentID,
		SeatCode:      model.SeatCode,
		AssignedBy:    model.AssignedBy,
		UpdatedAt:     model.UpdatedAt,
	}
}

// NewSeatAssignmentResponseSlice converts assignments into DTOs.
func NewSeatAssignmentResponseSlice(assignments []models.SeatAssignment) []SeatAssignmentResponse {
	responses := make([]SeatAssignmentResponse, 0, len(assignments))
	for _, assignment := range assignments {
		responses = append(responses, NewSeatAssignmentResponse(assignment))
	}
	return responses
}
