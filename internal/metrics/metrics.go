// Package metrics exposes prometheus collectors for the pipeline and the
// store. A nil *Metrics is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	registry       prometheus.Registerer
	factsTotal     *prometheus.CounterVec
	relayFailures  *prometheus.CounterVec
	extractions    *prometheus.CounterVec
	extracted      *prometheus.CounterVec
	alarmsFired    prometheus.Counter
	notifications  *prometheus.CounterVec
	activeJobs     prometheus.Gauge
	trackedItems   prometheus.Gauge
	hiscoreLatency *prometheus.HistogramVec
}

// New registers the collectors on reg (nil means the default registerer).
func New(namespace string, reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		registry: reg,
		factsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "relay_messages_total",
				Help:      "Messages handled by the store, by type and outcome",
			},
			[]string{"type", "status"},
		),
		relayFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "relay_post_failures_total",
				Help:      "Best-effort posts that could not be delivered",
			},
			[]string{"type"},
		),
		extractions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "extraction_runs_total",
				Help:      "Extraction passes, by category and whether they found anything",
			},
			[]string{"category", "result"},
		),
		extracted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "extracted_facts_total",
				Help:      "Facts produced by extraction passes",
			},
			[]string{"category"},
		),
		alarmsFired: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "alarms_fired_total",
				Help:      "Job completion alarms fired",
			},
		),
		notifications: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "notifications_total",
				Help:      "Notifications sent, by outcome",
			},
			[]string{"status"},
		),
		activeJobs: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "active_jobs",
				Help:      "Jobs currently running",
			},
		),
		trackedItems: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "tracked_items",
				Help:      "Items with a price history",
			},
		),
		hiscoreLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "hiscore_request_duration_seconds",
				Help:      "Duration of hiscore lookups",
				Buckets:   []float64{.1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"status"},
		),
	}

	reg.MustRegister(
		m.factsTotal,
		m.relayFailures,
		m.extractions,
		m.extracted,
		m.alarmsFired,
		m.notifications,
		m.activeJobs,
		m.trackedItems,
		m.hiscoreLatency,
	)

	return m
}

func (m *Metrics) RecordMessage(msgType string, ok bool) {
	if m == nil {
		return
	}
	m.factsTotal.WithLabelValues(msgType, status(ok)).Inc()
}

func (m *Metrics) RecordPostFailure(msgType string) {
	if m == nil {
		return
	}
	m.relayFailures.WithLabelValues(msgType).Inc()
}

func (m *Metrics) RecordExtraction(category string, found int) {
	if m == nil {
		return
	}
	result := "empty"
	if found > 0 {
		result = "found"
		m.extracted.WithLabelValues(category).Add(float64(found))
	}
	m.extractions.WithLabelValues(category, result).Inc()
}

func (m *Metrics) RecordAlarm() {
	if m == nil {
		return
	}
	m.alarmsFired.Inc()
}

func (m *Metrics) RecordNotification(ok bool) {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues(status(ok)).Inc()
}

func (m *Metrics) SetActiveJobs(n int) {
	if m == nil {
		return
	}
	m.activeJobs.Set(float64(n))
}

func (m *Metrics) SetTrackedItems(n int) {
	if m == nil {
		return
	}
	m.trackedItems.Set(float64(n))
}

func (m *Metrics) RecordHiscoreLookup(ok bool, d time.Duration) {
	if m == nil {
		return
	}
	m.hiscoreLatency.WithLabelValues(status(ok)).Observe(d.Seconds())
}

func status(ok bool) string {
	if ok {
		return "ok"
	}
	return "error"
}
