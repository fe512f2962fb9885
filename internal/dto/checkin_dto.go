package dto

import (
	"time"

	"github.com/noah-isme/examguard-api/internal/models"
)

// CheckinCreateRequest describes the multipart check-in payload.
type CheckinCreateRequest struct {
	ExamID          uint   `form:"exam_id" validate:"required,gt=0"`
	StudentID       uint   `form:"student_id" validate:"required,gt=0"`
	EnteredSeatCode string `form:"entered_seat_code" validate:"omitempty,max=50"`
}

// CheckinResponse is returned to proctors after a check-in.
type CheckinResponse struct {
	ID               uint                   `json:"id"`
	ExamID           uint                   `json:"exam_id"`
	StudentID        uint                   `json:"student_id"`
	SeatingPlanID    *uint                  `json:"seating_plan_id"`
	SeatAssignmentID *uint                  `json:"seat_assignment_id"`
	SeatCodeEntered  string                 `json:"seat_code_entered"`
	AssignedSeatCode string                 `json:"assigned_seat_code"`
	IsFaceMatch      bool                   `json:"is_face_match"`
	IsSeatOK         bool                   `json:"is_seat_ok"`
	DecisionStatus   string                 `json:"decision_status"`
	PhotoPath        string                 `json:"photo_path"`
	Verification     map[string]interface{} `json:"verification"`
	Notes            string                 `json:"notes"`
	CheckedInAt      time.Time              `json:"checked_in_at"`
}

// NewCheckinResponse converts a check-in model into a DTO.
func NewCheckinResponse(model models.Checkin) CheckinResponse {
	verification := map[string]interface{}{}
	for key, value := range model.Verification {
		verification[key] = value
	}

	return CheckinResponse{
		ID:               model.ID,
		ExamID:           model.ExamID,
		StudentID:        model.StudentID,
		SeatingPlanID:    model.SeatingPlanID,
		SeatAssignmentID: model.SeatAssignmentID,
		SeatCodeEntered:  model.SeatCodeEntered,
		AssignedSeatCode: model.AssignedSeatCode,
		IsFaceMatch:      model.IsFaceMatch,
		IsSeatOK:         model.IsSeatOK,
		DecisionStatus:   model.DecisionStatus,
		PhotoPath:        model.PhotoPath,
		Verification:     verification,
		Notes:            model.Notes,
		CheckedInAt:      model.CheckedInAt,
	}
}

// NewCheckinResponseSlice converts check-ins into DTOs.
func NewCheckinResponseSlice(checkins []models.Checkin) []CheckinResponse {
	responses := make([]CheckinResponse, 0, len(checkins))
	for _, checkin := range checkins {
		responses = append(responses, NewCheckinResponse(checkin))
	}
	return responses
}
