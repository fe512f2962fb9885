package service

import (
	"context"

	"github.com/noah-isme/examguard-api/pkg/faceverify"
)

type faceVerifierAdapter struct {
	verifier faceverify.Verifier
}

// NewFaceVerifier exposes a faceverify backend to the check-in engine.
func NewFaceVerifier(verifier faceverify.Verifier) FaceVerifier {
	return faceVerifierAdapter{verifier: verifier}
}

func (a faceVerifierAdapter) VerifyStudentFace(ctx context.Context, studentID uint, photoLocation string) (VerificationResult, error) {
	result, err := a.verifier.Verify(ctx, studentID, photoLocation)
	if err != nil {
		return VerificationResult{}, err
	}
	return VerificationResult{Match: result.Match, Score: result.Score, Reason: result.Reason}, nil
}
