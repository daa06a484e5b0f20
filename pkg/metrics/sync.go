package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// SyncMetrics records sync pass, push, pull and queue depth telemetry.
type SyncMetrics struct {
	passes       *prometheus.CounterVec
	passDuration prometheus.Histogram
	pushed       *prometheus.CounterVec
	pulled       *prometheus.CounterVec
	outboxDepth  *prometheus.GaugeVec
	online       prometheus.Gauge
}

// NewSyncMetrics registers the sync metrics on the provided registerer.
func NewSyncMetrics(reg prometheus.Registerer) *SyncMetrics {
	if reg == nil {
		return &SyncMetrics{}
	}
	passes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pos_sync_passes_total",
		Help: "Sync passes by outcome.",
	}, []string{"outcome"})
	passDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "pos_sync_pass_duration_seconds",
		Help:    "Duration of executed sync passes in seconds.",
		Buckets: prometheus.DefBuckets,
	})
	pushed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pos_outbox_push_total",
		Help: "Outbox push attempts by result.",
	}, []string{"result"})
	pulled := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pos_catalog_pull_total",
		Help: "Catalog pulls by entity and result.",
	}, []string{"entity", "result"})
	outboxDepth := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "pos_outbox_entries",
		Help: "Queued outbox entries by status.",
	}, []string{"status"})
	online := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "pos_connectivity_online",
		Help: "1 when the terminal believes it is online.",
	})
	reg.MustRegister(passes, passDuration, pushed, pulled, outboxDepth, online)
	return &SyncMetrics{
		passes:       passes,
		passDuration: passDuration,
		pushed:       pushed,
		pulled:       pulled,
		outboxDepth:  outboxDepth,
		online:       online,
	}
}

// ObservePass records an executed (or skipped) pass.
func (m *SyncMetrics) ObservePass(outcome string, duration time.Duration) {
	if m == nil || m.passes == nil {
		return
	}
	m.passes.WithLabelValues(normalizeLabel(outcome)).Inc()
	if duration > 0 {
		m.passDuration.Observe(duration.Seconds())
	}
}

// AddPushed increments the push counter for result by n.
func (m *SyncMetrics) AddPushed(result string, n int) {
	if m == nil || m.pushed == nil || n <= 0 {
		return
	}
	m.pushed.WithLabelValues(normalizeLabel(result)).Add(float64(n))
}

// IncPulled increments the pull counter for entity/result.
func (m *SyncMetrics) IncPulled(entity, result string) {
	if m == nil || m.pulled == nil {
		return
	}
	m.pulled.WithLabelValues(normalizeLabel(entity), normalizeLabel(result)).Inc()
}

// SetOutboxDepth replaces the queue depth gauges.
func (m *SyncMetrics) SetOutboxDepth(counts map[string]int64) {
	if m == nil || m.outboxDepth == nil {
		return
	}
	m.outboxDepth.Reset()
	for status, count := range counts {
		m.outboxDepth.WithLabelValues(normalizeLabel(status)).Set(float64(count))
	}
}

// SetOnline records the current connectivity state.
func (m *SyncMetrics) SetOnline(online bool) {
	if m == nil || m.online == nil {
		return
	}
	if online {
		m.online.Set(1)
		return
	}
	m.online.Set(0)
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
