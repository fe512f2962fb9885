package models

import (
	"time"

	"gorm.io/gorm"
)

// ExamStudentStatusEnrolled is the default roster status.
const ExamStudentStatusEnrolled = "enrolled"

// Student represents a candidate sitting exams.
type Student struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	StudentNumber string    `gorm:"size:50;uniqueIndex;not null" json:"student_number"`
	FullName      string    `gorm:"size:255;not null" json:"full_name"`
	Email         *string   `gorm:"size:255;uniqueIndex" json:"email"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// ExamStudent is a roster entry linking a student to an exam.
type ExamStudent struct {
	ExamID    uint      `gorm:"primaryKey;autoIncrement:false" json:"exam_id"`
	StudentID uint      `gorm:"primaryKey;autoIncrement:false" json:"student_id"`
	Status    string    `gorm:"size:20;not null" json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// BeforeCreate defaults the roster status.
func (es *ExamStudent) BeforeCreate(tx *gorm.DB) error {
	if es.Status == "" {
		es.Status = ExamStudentStatusEnrolled
	}
	return nil
}
