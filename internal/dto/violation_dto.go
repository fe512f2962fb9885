package dto

import (
	"time"

	"github.com/noah-isme/examguard-api/internal/models"
)

// ViolationCreateRequest describes a new incident report.
type ViolationCreateRequest struct {
	ExamID    uint    `form:"exam_id" validate:"required,gt=0"`
	StudentID uint    `form:"student_id" validate:"required,gt=0"`
	Reason    string  `form:"reason" validate:"required,max=100"`
	Notes     *string `form:"notes"`
	CheckinID *uint   `form:"checkin_id" validate:"omitempty,gt=0"`
}

// ViolationUpdateRequest carries only the fields the caller supplied.
type ViolationUpdateRequest struct {
	Reason    Optional[string] `json:"reason"`
	Notes     Optional[string] `json:"notes"`
	CheckinID Optional[uint]   `json:"checkin_id"`
}

// ViolationFilter narrows violation listings.
type ViolationFilter struct {
	ExamID *uint `query:"exam_id" validate:"omitempty,gt=0"`
}

// ViolationResponse is the public representation of a violation.
type ViolationResponse struct {
	ID                uint      `json:"id"`
	ExamID            uint      `json:"exam_id"`
	StudentID         uint      `json:"student_id"`
	CheckinID         *uint     `json:"checkin_id"`
	Reason            string    `json:"reason"`
	Notes             *string   `json:"notes"`
	EvidenceImagePath string    `json:"evidence_image_path"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// NewViolationResponse converts a violation model into a DTO.
func NewViolationResponse(model models.Violation) ViolationResponse {
	return ViolationResponse{
		ID:                model.ID,
		ExamID:            model.ExamID,
		StudentID:         model.StudentID,
		CheckinID:         model.CheckinID,
		Reason:            model.Reason,
		Notes:             model.Notes,
		EvidenceImagePath: model.EvidenceImagePath,
		CreatedAt:         model.CreatedAt,
		UpdatedAt:         model.UpdatedAt,
	}
}

// NewViolationResponseSlice converts violations into DTOs.
func NewViolationResponseSlice(violations []models.Violation) []ViolationResponse {
	responses := make([]ViolationResponse, 0, len(violations))
	for _, violation := range violations {
		responses = append(responses, NewViolationResponse(violation))
	}
	return responses
}
