package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	apiRequestsTotal  *prometheus.CounterVec
	apiLatencySeconds *prometheus.HistogramVec
	apiErrorsTotal    *prometheus.CounterVec

	checkinDecisionsTotal  *prometheus.CounterVec
	verifierLatencySeconds prometheus.Histogram
	verifierFailuresTotal  prometheus.Counter
	seatRejectionsTotal    *prometheus.CounterVec
	eventStreamsActive     prometheus.Gauge
	eventsPublishedTotal   *prometheus.CounterVec
)

// RegisterMetrics initialises the Prometheus collectors exposed on /metrics.
func RegisterMetrics() {
	registerOnce.Do(func() {
		apiRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "examguard_requests_total",
			Help: "Total number of admin and proctor API requests served.",
		}, []string{"surface", "method", "route", "status"})

		apiLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "examguard_request_latency_seconds",
			Help:    "Latency distribution for admin and proctor API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"surface", "method", "route"})

		apiErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "examguard_request_errors_total",
			Help: "Total number of error responses returned by admin and proctor endpoints.",
		}, []string{"surface", "method", "route", "status"})

		checkinDecisionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "examguard_checkin_decisions_total",
			Help: "Check-ins recorded, by decision status.",
		}, []string{"status"})

		verifierLatencySeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "examguard_face_verifier_latency_seconds",
			Help:    "Latency of face verifier calls.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		})

		verifierFailuresTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "examguard_face_verifier_failures_total",
			Help: "Face verifier calls that returned an error.",
		})

		seatRejectionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "examguard_seat_assignment_rejections_total",
			Help: "Seat assignment batches rejected, by error kind.",
		}, []string{"kind"})

		eventStreamsActive = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "examguard_event_streams_active",
			Help: "Open SSE and WebSocket exam event streams.",
		})

		eventsPublishedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "examguard_exam_events_published_total",
			Help: "Exam events delivered to local subscribers, by type.",
		}, []string{"type"})

		prometheus.MustRegister(
			apiRequestsTotal,
			apiLatencySeconds,
			apiErrorsTotal,
			checkinDecisionsTotal,
			verifierLatencySeconds,
			verifierFailuresTotal,
			seatRejectionsTotal,
			eventStreamsActive,
			eventsPublishedTotal,
		)
	})
}

// APIRequests exposes the request counter.
func APIRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return apiRequestsTotal
}

// APILatency exposes the request latency histogram.
func APILatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return apiLatencySeconds
}

// APIErrors exposes the error response counter.
func APIErrors() *prometheus.CounterVec {
	RegisterMetrics()
	return apiErrorsTotal
}

// CheckinDecisions exposes the check-in decision counter.
func CheckinDecisions() *prometheus.CounterVec {
	RegisterMetrics()
	return checkinDecisionsTotal
}

// VerifierLatency exposes the face verifier latency histogram.
func VerifierLatency() prometheus.Histogram {
	RegisterMetrics()
	return verifierLatencySeconds
}

// VerifierFailures exposes the face verifier failure counter.
func VerifierFailures() prometheus.Counter {
	RegisterMetrics()
	return verifierFailuresTotal
}

// SeatAssignmentRejections exposes the seat assignment rejection counter.
func SeatAssignmentRejections() *prometheus.CounterVec {
	RegisterMetrics()
	return seatRejectionsTotal
}

// EventStreamsActive exposes the open event stream gauge.
func EventStreamsActive() prometheus.Gauge {
	RegisterMetrics()
	return eventStreamsActive
}

// EventsPublished exposes the exam event counter.
func EventsPublished() *prometheus.CounterVec {
	RegisterMetrics()
	return eventsPublishedTotal
}
