package models

import (
	"time"

	"gorm.io/datatypes"
)

const (
	// CheckinStatusPending marks a check-in that needs proctor attention.
	CheckinStatusPending = "pending"
	// CheckinStatusApproved marks a check-in where face and seat both matched.
	CheckinStatusApproved = "approved"
)

// Checkin records a student's arrival at an exam. There is at most one per
// exam and student.
type Checkin struct {
	ID               uint              `gorm:"primaryKey" json:"id"`
	ExamID           uint              `gorm:"not null;uniqueIndex:uq_checkins_exam_student" json:"exam_id"`
	StudentID        uint              `gorm:"not null;uniqueIndex:uq_checkins_exam_student;index" json:"student_id"`
	SeatingPlanID    *uint             `gorm:"index" json:"seating_plan_id"`
	SeatAssignmentID *uint             `gorm:"index" json:"seat_assignment_id"`
	SeatCodeEntered  string            `gorm:"size:50" json:"seat_code_entered"`
	AssignedSeatCode string            `gorm:"size:50" json:"assigned_seat_code"`
	IsFaceMatch      bool              `gorm:"not null" json:"is_face_match"`
	IsSeatOK         bool              `gorm:"column:is_seat_ok;not null" json:"is_seat_ok"`
	DecisionStatus   string            `gorm:"size:20;not null" json:"decision_status"`
	PhotoPath        string            `gorm:"size:512" json:"photo_path"`
	Verification     datatypes.JSONMap `gorm:"type:json" json:"verification"`
	Notes            string            `gorm:"type:text" json:"notes"`
	CheckedInAt      time.Time         `gorm:"not null;index" json:"checked_in_at"`
	CreatedAt        time.Time         `json:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at"`
}

// IsApproved reports whether the check-in passed both verifications.
func (c Checkin) IsApproved() bool {
	return c.DecisionStatus == CheckinStatusApproved
}
