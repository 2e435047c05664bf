package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// FramesNormalizedTotal counts telemetry frames converted to canonical
	// payloads, by dataType.
	FramesNormalizedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tlink_frames_normalized_total",
			Help: "Total number of raw telemetry frames normalized, by data type.",
		},
		[]string{"data_type"},
	)

	// SyncAttemptsTotal counts delivery attempts per destination and outcome.
	SyncAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tlink_sync_attempts_total",
			Help: "Total number of sync delivery attempts, by destination and outcome.",
		},
		[]string{"destination", "outcome"}, // outcome: success/failed
	)

	// SyncBackoffSeconds observes how long the pipeline slept before retries.
	SyncBackoffSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tlink_sync_backoff_seconds",
			Help:    "Backoff sleep durations between sync retries.",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 8),
		},
		[]string{"destination"},
	)

	// ViolationAlertsTotal counts HOS threshold alerts raised, by kind and bucket.
	ViolationAlertsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tlink_hos_violation_alerts_total",
			Help: "Total number of HOS violation alerts raised, by kind and threshold bucket.",
		},
		[]string{"kind", "bucket"},
	)

	// InactivityAutoSwitchTotal counts regulatory auto-switches out of driving.
	InactivityAutoSwitchTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tlink_inactivity_auto_switch_total",
			Help: "Total number of automatic duty-status switches triggered by vehicle inactivity.",
		},
	)

	// DeviceConnectFailuresTotal counts failed gateway connection attempts.
	DeviceConnectFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tlink_device_connect_failures_total",
			Help: "Total number of reported device connect failures.",
		},
	)
)

// Registered on the default registry; the agent's ops server exposes them
// under /metrics via promhttp.
func init() {
	prometheus.MustRegister(
		FramesNormalizedTotal,
		SyncAttemptsTotal,
		SyncBackoffSeconds,
		ViolationAlertsTotal,
		InactivityAutoSwitchTotal,
		DeviceConnectFailuresTotal,
	)
}
