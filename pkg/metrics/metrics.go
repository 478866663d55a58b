package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// RunnersTotal is a gauge of live runners by network mode. It is
	// registered and exported, but no code path sets it, so it stays at
	// zero.
	RunnersTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "taylored_runners_total",
			Help: "Total number of active runners by network mode",
		},
		[]string{"network_mode"},
	)

	ProvisionRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taylored_provision_requests_total",
			Help: "Total number of provision requests by outcome",
		},
		[]string{"outcome"},
	)

	ProvisionDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "taylored_provision_duration_seconds",
			Help:    "Time to create, start, and (optionally) probe a runner",
			Buckets: prometheus.DefBuckets,
		},
	)

	DeprovisionRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taylored_deprovision_requests_total",
			Help: "Total number of deprovision requests by outcome",
		},
		[]string{"outcome"},
	)

	HeartbeatsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taylored_heartbeats_total",
			Help: "Total number of heartbeat requests by outcome",
		},
		[]string{"outcome"},
	)

	ReaperSweepsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "taylored_reaper_sweeps_total",
			Help: "Total number of inactivity reaper sweeps performed",
		},
	)

	ReaperReapedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "taylored_reaper_reaped_total",
			Help: "Total number of runners removed by the inactivity reaper",
		},
	)

	ReaperReconciledTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taylored_reaper_reconciled_total",
			Help: "Total number of records repaired at startup reconciliation, by kind",
		},
		[]string{"kind"}, // "orphan_container" | "dangling_record"
	)

	EventChannelConnectionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "taylored_event_channel_connections_total",
			Help: "Total number of event channel connections accepted",
		},
	)

	SnippetRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taylored_snippet_runs_total",
			Help: "Total number of tayloredRun executions by outcome",
		},
		[]string{"outcome"},
	)

	SnippetRunDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "taylored_snippet_run_duration_seconds",
			Help:    "Time spent executing a snippet end to end",
			Buckets: prometheus.DefBuckets,
		},
	)
)

func init() {
	prometheus.MustRegister(RunnersTotal)
	prometheus.MustRegister(ProvisionRequestsTotal)
	prometheus.MustRegister(ProvisionDuration)
	prometheus.MustRegister(DeprovisionRequestsTotal)
	prometheus.MustRegister(HeartbeatsTotal)
	prometheus.MustRegister(ReaperSweepsTotal)
	prometheus.MustRegister(ReaperReapedTotal)
	prometheus.MustRegister(ReaperReconciledTotal)
	prometheus.MustRegister(EventChannelConnectionsTotal)
	prometheus.MustRegister(SnippetRunsTotal)
	prometheus.MustRegister(SnippetRunDuration)
}

// Handler returns the HTTP handler to mount at /metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a small helper for timing operations against a histogram.
type Timer struct {
	start time.Time
}

// NewTimer starts a timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the elapsed time on histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	histogram.Observe(time.Since(t.start).Seconds())
}
