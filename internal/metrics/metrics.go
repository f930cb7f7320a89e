package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"droneDispatch/internal/apperr"
)

// Outcome label values.
const (
	OutcomeOK       = "ok"
	OutcomeRejected = "rejected"
	OutcomeError    = "error"
	OutcomeDropped  = "dropped"
)

// MetricsRegistry holds all Prometheus metrics for the dispatch service.
type MetricsRegistry struct {
	Registry *prometheus.Registry

	// Lifecycle
	TransitionsTotal *prometheus.CounterVec

	// Fleet
	LocationUpdatesTotal   *prometheus.CounterVec
	LocationUpdateDuration prometheus.Histogram
	StaleDronesReset       prometheus.Counter

	// Telemetry
	TelemetryFoldsTotal  *prometheus.CounterVec
	TelemetryFoldRetries prometheus.Counter

	// Delivery
	NotificationsTotal  *prometheus.CounterVec
	DroneLinkCallsTotal *prometheus.CounterVec

	// Transport
	RPCRequestsTotal *prometheus.CounterVec
}

// NewMetricsRegistry registers every metric on a fresh registry, so tests and
// multiple servers in one process never collide.
func NewMetricsRegistry() *MetricsRegistry {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &MetricsRegistry{
		Registry: reg,
		TransitionsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dispatch_transitions_total",
				Help: "State transitions attempted by entity, target state and outcome",
			},
			[]string{"entity", "to", "outcome"},
		),
		LocationUpdatesTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dispatch_location_updates_total",
				Help: "Drone position updates by outcome",
			},
			[]string{"outcome"},
		),
		LocationUpdateDuration: f.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "dispatch_location_update_duration_seconds",
				Help:    "Latency of the drone position update path in seconds",
				Buckets: []float64{0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
			},
		),
		StaleDronesReset: f.NewCounter(
			prometheus.CounterOpts{
				Name: "dispatch_stale_drones_reset_total",
				Help: "In-motion drones reset to idle after missing position reports",
			},
		),
		TelemetryFoldsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dispatch_telemetry_folds_total",
				Help: "Telemetry reports folded into mission results by outcome",
			},
			[]string{"outcome"},
		),
		TelemetryFoldRetries: f.NewCounter(
			prometheus.CounterOpts{
				Name: "dispatch_telemetry_fold_retries_total",
				Help: "Optimistic retries caused by concurrent telemetry on one mission",
			},
		),
		NotificationsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dispatch_notifications_total",
				Help: "Notification deliveries by sink and outcome",
			},
			[]string{"sink", "outcome"},
		),
		DroneLinkCallsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dispatch_dronelink_calls_total",
				Help: "Calls to onboard flight controllers by operation and outcome",
			},
			[]string{"op", "outcome"},
		),
		RPCRequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dispatch_rpc_requests_total",
				Help: "gRPC requests by method and status code",
			},
			[]string{"method", "code"},
		),
	}
}

// Transition records one state machine attempt.
func (m *MetricsRegistry) Transition(entity, to string, err error) {
	if m == nil {
		return
	}
	m.TransitionsTotal.WithLabelValues(entity, to, OutcomeOf(err)).Inc()
}

// OutcomeOf labels err: guard and input failures are rejections, everything else is
// an error.
func OutcomeOf(err error) string {
	switch {
	case err == nil:
		return OutcomeOK
	case apperr.KindOf(err) == apperr.KindInternal || apperr.Retryable(err):
		return OutcomeError
	default:
		return OutcomeRejected
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *MetricsRegistry) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}
