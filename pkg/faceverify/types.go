package faceverify

import "context"

// Result is the verdict returned by a face verification backend.
type Result struct {
	Match  bool    `json:"match"`
	Score  float64 `json:"score"`
	Reason string  `json:"reason,omitempty"`
}

// Verifier compares a captured photo against the reference face of a student.
type Verifier interface {
	Verify(ctx context.Context, studentID uint, imagePath string) (Result, error)
}
