package models

import "time"

// Violation is a proctor-reported incident for a student during an exam.
type Violation struct {
	ID                uint      `gorm:"primaryKey" json:"id"`
	ExamID            uint      `gorm:"not null;index" json:"exam_id"`
	StudentID         uint      `gorm:"not null;index" json:"student_id"`
	CheckinID         *uint     `gorm:"index" json:"checkin_id"`
	Reason            string    `gorm:"size:100;not null" json:"reason"`
	Notes             *string   `gorm:"type:text" json:"notes"`
	EvidenceImagePath string    `gorm:"size:512" json:"evidence_image_path"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// HasEvidence reports whether an evidence image is attached.
func (v Violation) HasEvidence() bool {
	return v.EvidenceImagePath != ""
}
