package faceverify

import "context"

// StaticVerifier always returns the same verdict. Used for local development.
type StaticVerifier struct {
	match bool
}

func NewStaticVerifier(match bool) *StaticVerifier {
	return &StaticVerifier{match: match}
}

func (v *StaticVerifier) Verify(ctx context.Context, _ uint, _ string) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	if v.match {
		return Result{Match: true, Score: 1, Reason: "static verifier"}, nil
	}
	return Result{Match: false, Score: 0, Reason: "static verifier"}, nil
}
