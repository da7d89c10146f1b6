package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Namespace for all attendance metrics
const namespace = "attendance"

// Registry is the global Prometheus registry for all metrics
var Registry = prometheus.NewRegistry()

// AppInfo is a gauge that exposes application version information as labels
var AppInfo = promauto.With(Registry).NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "app_info",
		Help:      "Application version information (always set to 1, version info in labels)",
	},
	[]string{"version", "commit", "build_date"},
)

// ParticipantsRegistered counts successful registrations
var ParticipantsRegistered = promauto.With(Registry).NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "participants_registered_total",
		Help:      "Total number of participant registrations",
	},
)

// EvaluationsRecorded counts evaluations by score
var EvaluationsRecorded = promauto.With(Registry).NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "evaluations_recorded_total",
		Help:      "Total number of evaluations recorded",
	},
	[]string{"score"},
)

// CertificatesIssued counts certificate requests by outcome
var CertificatesIssued = promauto.With(Registry).NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "certificates_total",
		Help:      "Total number of certificate requests",
	},
	[]string{"outcome"}, // outcome: issued|not_found|not_eligible|render_error|error
)

// CertificateRenderDuration tracks PDF rendering latency
var CertificateRenderDuration = promauto.With(Registry).NewHistogram(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "certificate_render_duration_seconds",
		Help:      "Certificate PDF rendering duration in seconds",
		Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
	},
)

// EmailsTotal counts outbound email attempts
var EmailsTotal = promauto.With(Registry).NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "emails_total",
		Help:      "Total number of outbound emails by provider and outcome",
	},
	[]string{"provider", "outcome"}, // outcome: sent|error|skipped
)

// DispatchesInFlight tracks certificate emails still being delivered
var DispatchesInFlight = promauto.With(Registry).NewGauge(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "certificate_dispatches_in_flight",
		Help:      "Certificate emails handed off but not yet finished",
	},
)

// Init registers runtime collectors and sets version information
func Init(version, commit, buildDate string) {
	// Register default Go metrics (memory, goroutines, GC, etc.)
	_ = Registry.Register(collectors.NewGoCollector())

	// Register process metrics (CPU, memory, file descriptors)
	_ = Registry.Register(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	AppInfo.WithLabelValues(version, commit, buildDate).Set(1)
}
