package businessflow

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Campaigns handled by the reconciler partitioned by result (stored, no_data, failed, cached)
	syncCampaignsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "adwatch_sync_campaigns_total",
			Help: "Campaigns handled by sync runs",
		},
		[]string{"result"},
	)

	// Wall time of whole sync runs
	syncDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "adwatch_sync_duration_seconds",
			Help:    "Duration of sync runs in seconds",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
		[]string{"status"},
	)

	// Alerts written by detection runs partitioned by type and severity
	alertsDetectedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "adwatch_alerts_detected_total",
			Help: "Alerts emitted by the detection engine",
		},
		[]string{"alert_type", "severity"},
	)

	// Narratives partitioned by the path that produced them
	narrativesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "adwatch_narratives_total",
			Help: "Narratives generated partitioned by source",
		},
		[]string{"source"},
	)

	// Dispatch attempts partitioned by terminal state and reason
	dispatchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "adwatch_dispatch_total",
			Help: "Notification dispatch attempts partitioned by outcome",
		},
		[]string{"status", "reason"},
	)
)
