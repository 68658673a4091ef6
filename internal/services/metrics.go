package services

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the reminder service's Prometheus collectors. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	runs          *prometheus.CounterVec
	runDuration   prometheus.Histogram
	reminders     *prometheus.CounterVec
	relayed       *prometheus.CounterVec
	recordsPurged prometheus.Counter
}

// NewMetrics creates the collectors and registers them with reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "class_reminder",
			Name:      "runs_total",
			Help:      "Reminder trigger invocations by outcome.",
		}, []string{"outcome"}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "class_reminder",
			Name:      "run_duration_seconds",
			Help:      "Duration of completed dispatcher runs.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
		}),
		reminders: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "class_reminder",
			Name:      "reminders_total",
			Help:      "Per-student reminder decisions by result.",
		}, []string{"result"}),
		relayed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "class_reminder",
			Name:      "mail_relayed_total",
			Help:      "Outbox messages handled by the relay by channel and status.",
		}, []string{"channel", "status"}),
		recordsPurged: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "class_reminder",
			Name:      "records_purged_total",
			Help:      "Reminder records garbage-collected after their window elapsed.",
		}),
	}
	reg.MustRegister(m.runs, m.runDuration, m.reminders, m.relayed, m.recordsPurged)
	return m
}

func (m *Metrics) observeRun(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(outcome).Inc()
	if d > 0 {
		m.runDuration.Observe(d.Seconds())
	}
}

func (m *Metrics) observeStats(s RunStats) {
	if m == nil {
		return
	}
	for result, n := range s.Counts() {
		if n > 0 && result != "occurrences" && result != "pairs" {
			m.reminders.WithLabelValues(result).Add(float64(n))
		}
	}
}

func (m *Metrics) observeRelay(channel, status string) {
	if m == nil {
		return
	}
	m.relayed.WithLabelValues(channel, status).Inc()
}

func (m *Metrics) observePurge(n int64) {
	if m == nil {
		return
	}
	m.recordsPurged.Add(float64(n))
}
