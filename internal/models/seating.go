package models

import "time"

// DefaultSeatingPlanName is used when a plan is created without a name.
const DefaultSeatingPlanName = "Seating Plan"

// SeatingPlan is the seat layout of one exam. Seats and assignments are
// removed together with the plan.
type SeatingPlan struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	ExamID    uint      `gorm:"not null;uniqueIndex" json:"exam_id"`
	RoomID    uint      `gorm:"not null;index" json:"room_id"`
	Name      string    `gorm:"size:255;not null" json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Seat is a single seat inside a seating plan.
type Seat struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	SeatingPlanID uint      `gorm:"not null;uniqueIndex:uq_seat_code_per_plan;uniqueIndex:uq_seat_position_per_plan" json:"seating_plan_id"`
	SeatCode      string    `gorm:"size:50;not null;uniqueIndex:uq_seat_code_per_plan" json:"seat_code"`
	RowNumber     *int      `gorm:"uniqueIndex:uq_seat_position_per_plan" json:"row_number"`
	ColNumber     *int      `gorm:"uniqueIndex:uq_seat_position_per_plan" json:"col_number"`
	CreatedAt     time.Time `json:"created_at"`
}

// SeatAssignment binds a student to a seat code for an exam.
type SeatAssignment struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	ExamID        uint      `gorm:"not null;uniqueIndex:uq_assignment_exam_student;uniqueIndex:uq_assignment_exam_seat" json:"exam_id"`
	SeatingPlanID uint      `gorm:"not null;index" json:"seating_plan_id"`
	StudentID     uint      `gorm:"not null;uniqueIndex:uq_assignment_exam_student" json:"student_id"`
	SeatCode      string    `gorm:"size:50;not null;uniqueIndex:uq_assignment_exam_seat" json:"seat_code"`
	AssignedBy    *uint     `json:"assigned_by"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}
