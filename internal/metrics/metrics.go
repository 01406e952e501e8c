package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "eventviewer"

// Registry is the Prometheus registry served on /metrics.
var Registry = prometheus.NewRegistry()

// AppInfo is always 1; the build information lives in the labels.
var AppInfo = promauto.With(Registry).NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "app_info",
		Help:      "Application version information (always set to 1, version info in labels)",
	},
	[]string{"version", "commit", "build_date"},
)

// AuthAttempts counts session operations by outcome.
var AuthAttempts = promauto.With(Registry).NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "auth_attempts_total",
		Help:      "Total number of authentication operations",
	},
	[]string{"operation", "outcome"}, // operation: login|logout|refresh|forgot_password|verify_otp|reset_password
)

// EventTransitions counts workflow transitions.
var EventTransitions = promauto.With(Registry).NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "event_transitions_total",
		Help:      "Total number of event workflow transitions",
	},
	[]string{"transition", "outcome"}, // outcome: success|error
)

// NotificationsPushed counts real-time deliveries attempted after commit.
var NotificationsPushed = promauto.With(Registry).NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "notifications_pushed_total",
		Help:      "Total number of real-time notification pushes",
	},
	[]string{"outcome"},
)

var RealtimeConnections = promauto.With(Registry).NewGauge(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "realtime_connections",
		Help:      "Current number of connected real-time clients",
	},
)

var AssetCompensations = promauto.With(Registry).NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "asset_compensations_total",
		Help:      "Uploaded poster assets deleted after a failed transaction",
	},
	[]string{"outcome"},
)

// CleanupDeleted counts rows removed by the expiry sweep.
var CleanupDeleted = promauto.With(Registry).NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "cleanup_deleted_total",
		Help:      "Total number of expired rows deleted by the cleanup sweep",
	},
	[]string{"table"},
)

var CleanupErrors = promauto.With(Registry).NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "cleanup_errors_total",
		Help:      "Total number of failed cleanup sweeps",
	},
)

// Outcome maps an error to the outcome label value.
func Outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// Init registers the runtime collectors and sets version information.
func Init(version, commit, buildDate string) {
	Registry.MustRegister(collectors.NewGoCollector())
	Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	AppInfo.WithLabelValues(version, commit, buildDate).Set(1)
}
