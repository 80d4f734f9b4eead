// Package metrics exposes the Prometheus collectors the serve
// subcommand publishes on /metrics, grounded on
// AleutianLocal/services/code_buddy/eval/telemetry/prometheus.go's
// counter/histogram registration style (SPEC_FULL §11). These are the
// only metrics in this tree; there are no Redis-backed counters.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	OperationsEnqueued = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lightsoff_operations_enqueued_total",
			Help: "Operation requests the Finder enqueued, by service and resource type.",
		},
		[]string{"service", "rsrc_type", "op"},
	)

	OperationsProcessed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lightsoff_operations_processed_total",
			Help: "Operation requests the Doer finished, by outcome.",
		},
		[]string{"service", "rsrc_type", "op", "outcome"},
	)

	FinderScanDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "lightsoff_finder_scan_duration_seconds",
			Help:    "Wall-clock duration of one Finder pass.",
			Buckets: prometheus.DefBuckets,
		},
	)

	DoerMessageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "lightsoff_doer_message_duration_seconds",
			Help:    "Wall-clock duration of one Doer message handling, by outcome.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"outcome"},
	)

	ScanConflicts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "lightsoff_schedule_conflicts_total",
			Help: "Resources skipped because more than one operation matched in the same cycle.",
		},
	)

	ScheduleParseErrors = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "lightsoff_schedule_parse_errors_total",
			Help: "Schedule tag values that failed to parse.",
		},
	)

	QueueReclaimed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "lightsoff_queue_reclaimed_total",
			Help: "Messages swept from the processing list back to ready after their visibility timeout elapsed.",
		},
	)
)

// Register adds every collector in this package to reg. Called once by
// the serve subcommand before starting the HTTP listener.
func Register(reg prometheus.Registerer) {
	reg.MustRegister(
		OperationsEnqueued,
		OperationsProcessed,
		FinderScanDuration,
		DoerMessageDuration,
		ScanConflicts,
		ScheduleParseErrors,
		QueueReclaimed,
	)
}
