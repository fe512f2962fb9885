package dto

import (
	"encoding/json"
	"time"
)

// Exam event types streamed to proctor dashboards.
const (
	ExamEventCheckinRecorded   = "checkin.recorded"
	ExamEventViolationRecorded = "violation.recorded"
	ExamEventViolationUpdated  = "violation.updated"
	ExamEventViolationDeleted  = "violation.deleted"
	ExamEventSeatingChanged    = "seating.changed"

	// ExamEventStreamReady is sent once to a WebSocket client after its subscription is live.
	ExamEventStreamReady = "stream.ready"
)

// ExamEvent is a single change notification scoped to one exam.
type ExamEvent struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	ExamID     uint            `json:"exam_id"`
	StudentID  *uint           `json:"student_id,omitempty"`
	Data       json.RawMessage `json:"data,omitempty"`
	OccurredAt time.Time       `json:"occurred_at"`
}
