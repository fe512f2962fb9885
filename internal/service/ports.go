package service

import (
	"context"
	"io"
)

// FileStore persists uploaded photos and evidence. Locations returned by Save
// are opaque to services and are handed back to Delete unchanged.
type FileStore interface {
	Save(ctx context.Context, name string, reader io.Reader) (string, error)
	Delete(ctx context.Context, location string) error
}

// VerificationResult is the verdict returned by a face verifier.
type VerificationResult struct {
	Match  bool    `json:"match"`
	Score  float64 `json:"score"`
	Reason string  `json:"reason"`
}

// FaceVerifier compares a stored check-in photo against a student's reference.
type FaceVerifier interface {
	VerifyStudentFace(ctx context.Context, studentID uint, photoLocation string) (VerificationResult, error)
}

// EventPublisher receives exam change notifications after they are committed.
type EventPublisher interface {
	PublishExamEvent(ctx context.Context, examID uint, eventType string, studentID *uint, data interface{})
}
