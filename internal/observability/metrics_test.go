package observability

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
)

func TestMetricsHandlerExposesDomainCollectors(t *testing.T) {
	CheckinDecisions().WithLabelValues("approved").Inc()
	SeatAssignmentRejections().WithLabelValues("seat_conflict").Inc()
	VerifierFailures().Inc()

	app := fiber.New()
	app.Get("/metrics", MetricsHandler())

	resp, err := app.Test(httptest.NewRequest("GET", "/metrics", nil), -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	text := string(body)
	require.True(t, strings.Contains(text, `examguard_checkin_decisions_total{status="approved"}`))
	require.True(t, strings.Contains(text, `examguard_seat_assignment_rejections_total{kind="seat_conflict"}`))
	require.True(t, strings.Contains(text, "examguard_face_verifier_failures_total"))
}
