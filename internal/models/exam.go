package models

import "time"

// Exam is a scheduled sitting that may be held in a room.
type Exam struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Code      string    `gorm:"size:50;uniqueIndex;not null" json:"code"`
	Title     string    `gorm:"size:255;not null" json:"title"`
	StartAt   time.Time `gorm:"not null" json:"start_at"`
	EndAt     time.Time `gorm:"not null" json:"end_at"`
	RoomID    *uint     `gorm:"index" json:"room_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HasRoom reports whether a room has been allocated to the exam.
func (e Exam) HasRoom() bool {
	return e.RoomID != nil && *e.RoomID != 0
}
