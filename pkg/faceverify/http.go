package faceverify

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const defaultTimeout = 5 * time.Second

// HTTPConfig points the verifier at a remote face matching service.
type HTTPConfig struct {
	URL     string
	Timeout time.Duration
	// Retries is the number of extra attempts after a transport error or a 5xx.
	Retries int
}

// HTTPVerifier calls POST {url}/verify with the student id and image location.
type HTTPVerifier struct {
	client *resty.Client
	logger zerolog.Logger
}

type verifyRequest struct {
	StudentID uint   `json:"student_id"`
	ImagePath string `json:"image_path"`
}

// NewHTTPVerifier constructs a verifier backed by the configured service.
func NewHTTPVerifier(cfg HTTPConfig, logger zerolog.Logger) (*HTTPVerifier, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.URL), "/")
	if base == "" {
		return nil, fmt.Errorf("face verifier url is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	client := resty.New().
		SetBaseURL(base).
		SetTransport(otelhttp.NewTransport(http.DefaultTransport)).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")

	if cfg.Retries > 0 {
		client.SetRetryCount(cfg.Retries).
			SetRetryWaitTime(100 * time.Millisecond).
			AddRetryCondition(func(resp *resty.Response, err error) bool {
				return err != nil || resp.StatusCode() >= http.StatusInternalServerError
			})
	}

	return &HTTPVerifier{
		client: client,
		logger: logger.With().Str("component", "face_verifier").Logger(),
	}, nil
}

func (v *HTTPVerifier) Verify(ctx context.Context, studentID uint, imagePath string) (Result, error) {
	var result Result
	resp, err := v.client.R().
		SetContext(ctx).
		SetBody(verifyRequest{StudentID: studentID, ImagePath: imagePath}).
		SetResult(&result).
		ForceContentType("application/json").
		Post("/verify")
	if err != nil {
		if resp != nil && resp.StatusCode() > 0 && !resp.IsSuccess() {
			return Result{}, v.statusError(resp, studentID)
		}
		return Result{}, fmt.Errorf("call face verifier: %w", err)
	}

	if !resp.IsSuccess() {
		return Result{}, v.statusError(resp, studentID)
	}
	return result, nil
}

func (v *HTTPVerifier) statusError(resp *resty.Response, studentID uint) error {
	v.logger.Warn().Int("status", resp.StatusCode()).Uint("student_id", studentID).Msg("face verifier returned an error status")
	return fmt.Errorf("face verifier responded with status %d", resp.StatusCode())
}
