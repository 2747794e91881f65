// Package metrics exposes Prometheus collectors for the monitoring service.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	monitorCyclesTotal        *prometheus.CounterVec
	monitorChangesTotal       *prometheus.CounterVec
	monitorCycleSeconds       *prometheus.HistogramVec
	monitorFetchFailuresTotal *prometheus.CounterVec
	notifyDeliveriesTotal     *prometheus.CounterVec
	schedulerJobs             prometheus.Gauge
	schedulerInFlight         prometheus.Gauge
	schedulerSkippedTotal     prometheus.Counter

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		monitorCyclesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "formwatch_cycles_total",
				Help: "Total monitoring cycles executed, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		monitorChangesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "formwatch_changes_total",
				Help: "Total detected changes, labeled by severity.",
			},
			[]string{"severity"},
		)

		monitorCycleSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "formwatch_cycle_duration_seconds",
				Help:    "Histogram of per-resource cycle durations, labeled by fetch mode.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"mode"},
		)

		monitorFetchFailuresTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "formwatch_fetch_failures_total",
				Help: "Total fetch failures, labeled by kind.",
			},
			[]string{"kind"},
		)

		notifyDeliveriesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "formwatch_notify_deliveries_total",
				Help: "Notification attempts, labeled by channel and outcome.",
			},
			[]string{"channel", "outcome"},
		)

		schedulerJobs = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "formwatch_scheduler_jobs",
				Help: "Number of resources currently under scheduled monitoring.",
			},
		)

		schedulerInFlight = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "formwatch_scheduler_in_flight",
				Help: "Number of resource cycles currently executing.",
			},
		)

		schedulerSkippedTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "formwatch_scheduler_overlaps_skipped_total",
				Help: "Firings skipped because a prior cycle for the same resource was still running.",
			},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveCycle records one completed cycle.
func ObserveCycle(mode string, outcome string, duration time.Duration) {
	monitorCyclesTotal.WithLabelValues(outcome).Inc()
	monitorCycleSeconds.WithLabelValues(mode).Observe(duration.Seconds())
}

// ObserveChange counts a detected change by severity.
func ObserveChange(severity string) {
	monitorChangesTotal.WithLabelValues(severity).Inc()
}

// ObserveFetchFailure counts a fetch failure by kind.
func ObserveFetchFailure(kind string) {
	monitorFetchFailuresTotal.WithLabelValues(kind).Inc()
}

// ObserveDelivery counts a notification attempt by channel and outcome.
func ObserveDelivery(channel string, outcome string) {
	notifyDeliveriesTotal.WithLabelValues(channel, outcome).Inc()
}

// SetScheduledJobs records how many resources are under scheduled monitoring.
func SetScheduledJobs(n int) {
	schedulerJobs.Set(float64(n))
}

// IncInFlight increments the in-flight cycle gauge.
func IncInFlight() {
	schedulerInFlight.Inc()
}

// DecInFlight decrements the in-flight cycle gauge.
func DecInFlight() {
	schedulerInFlight.Dec()
}

// ObserveOverlapSkip counts a firing skipped due to per-resource exclusion.
func ObserveOverlapSkip() {
	schedulerSkippedTotal.Inc()
}
