package middleware

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/examguard-api/internal/observability"
)

var observedSurfaces = []struct {
	prefix string
	name   string
}{
	{prefix: "/api/admin", name: "admin"},
	{prefix: "/api/proctor", name: "proctor"},
}

// Observability attaches Prometheus metrics and structured latency/error logging
// for the admin and proctor surfaces.
func Observability(logger zerolog.Logger) fiber.Handler {
	observability.RegisterMetrics()

	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		duration := time.Since(start)

		if surface := surfaceOf(c.Path()); surface != "" {
			route := routeTemplate(c)
			method := c.Method()
			status := c.Response().StatusCode()
			if err != nil {
				var fiberErr *fiber.Error
				if errors.As(err, &fiberErr) {
					status = fiberErr.Code
				} else {
					status = fiber.StatusInternalServerError
				}
			}
			statusLabel := fmt.Sprintf("%d", status)

			observability.APIRequests().WithLabelValues(surface, method, route, statusLabel).Inc()
			observability.APILatency().WithLabelValues(surface, method, route).Observe(duration.Seconds())
			if status >= fiber.StatusBadRequest {
				observability.APIErrors().WithLabelValues(surface, method, route, statusLabel).Inc()
			}

			latencyMs := float64(duration) / float64(time.Millisecond)
			bucket := latencyBucket(duration)
			requestLogger := logger.With().
				Str("correlation_id", GetCorrelationID(c)).
				Str("surface", surface).
				Str("route", route).
				Str("method", method).
				Int("status", status).
				Float64("latency_ms", latencyMs).
				Str("latency_bucket", bucket).
				Logger()

			switch {
			case status >= fiber.StatusInternalServerError:
				requestLogger.Error().Msg("request failed")
			case status >= fiber.StatusBadRequest:
				requestLogger.Warn().Msg("request completed with client error")
			default:
				requestLogger.Info().Msg("request completed")
			}
		}

		return err
	}
}

func surfaceOf(path string) string {
	for _, surface := range observedSurfaces {
		if strings.HasPrefix(path, surface.prefix) {
			return surface.name
		}
	}
	return ""
}

func routeTemplate(c *fiber.Ctx) string {
	if c.Route() != nil && c.Route().Path != "" {
		return c.Route().Path
	}
	return c.Path()
}

func latencyBucket(duration time.Duration) string {
	switch {
	case duration <= 25*time.Millisecond:
		return "<=25ms"
	case duration <= 50*time.Millisecond:
		return "<=50ms"
	case duration <= 100*time.Millisecond:
		return "<=100ms"
	case duration <= 250*time.Millisecond:
		return "<=250ms"
	case duration <= 500*time.Millisecond:
		return "<=500ms"
	default:
		return ">500ms"
	}
}
