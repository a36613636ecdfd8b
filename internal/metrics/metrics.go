package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "salonbook",
			Name:      "http_requests_total",
			Help:      "HTTP requests by endpoint and status code.",
		},
		[]string{"endpoint", "status"},
	)

	bookingAdmissions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "salonbook",
			Name:      "booking_admissions_total",
			Help:      "Booking submissions by admission outcome.",
		},
		[]string{"outcome"},
	)

	availabilityRequests = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "salonbook",
			Name:      "availability_requests_total",
			Help:      "Per-date availability computations.",
		},
	)
)

// Admission outcomes.
const (
	OutcomeAccepted     = "accepted"
	OutcomeHoneypot     = "honeypot"
	OutcomeInvalid      = "invalid"
	OutcomeCaptcha      = "captcha"
	OutcomeRateLimited  = "rate_limited"
	OutcomePendingCap   = "pending_cap"
	OutcomeSlotFull     = "slot_full"
	OutcomeStorageError = "storage_error"
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(httpRequests, bookingAdmissions, availabilityRequests)
	})
}

// IncHTTP increments the request counter for an endpoint/status pair.
func IncHTTP(endpoint, status string) {
	httpRequests.WithLabelValues(endpoint, status).Inc()
}

// IncAdmission increments the admission counter for an outcome label.
func IncAdmission(outcome string) {
	bookingAdmissions.WithLabelValues(outcome).Inc()
}

// IncAvailability counts one availability computation.
func IncAvailability() {
	availabilityRequests.Inc()
}
