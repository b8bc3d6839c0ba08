package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "sileme"

// Metrics holds all Prometheus metrics for the will engine
type Metrics struct {
	Registry *prometheus.Registry

	Triggers        *prometheus.CounterVec
	Heartbeats      prometheus.Counter
	WillsSealed     prometheus.Counter
	Plans           *prometheus.CounterVec
	Executions      prometheus.Counter
	Transfers       *prometheus.CounterVec
	TransferLatency prometheus.Histogram
	SentinelScans   *prometheus.CounterVec
	DaysSilent      prometheus.Gauge
}

// New creates the engine metrics on a fresh registry, so several instances
// (one per test) never collide on registration.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,
		Triggers: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "triggers_total",
			Help:      "Number of times the switch tripped, by reason",
		}, []string{"reason"}),
		Heartbeats: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "heartbeats_total",
			Help:      "Accepted proof-of-life heartbeats",
		}),
		WillsSealed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "wills_sealed_total",
			Help:      "Wills sealed into a countdown",
		}),
		Plans: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "distribution_plans_total",
			Help:      "Distribution plans computed, by validity",
		}, []string{"valid"}),
		Executions: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "executions_total",
			Help:      "Execution pipeline runs",
		}),
		Transfers: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transfers_total",
			Help:      "Attempted transfers, by outcome",
		}, []string{"status"}),
		TransferLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "transfer_duration_seconds",
			Help:      "Ledger transfer call latency",
			Buckets:   prometheus.DefBuckets,
		}),
		SentinelScans: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sentinel_scans_total",
			Help:      "Sentinel scans, by reported status",
		}, []string{"status"}),
		DaysSilent: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "days_silent",
			Help:      "Days since the last proof-of-life",
		}),
	}
}

// IncTrigger records a trip of the switch
func (m *Metrics) IncTrigger(reason string) {
	if m == nil {
		return
	}
	m.Triggers.WithLabelValues(reason).Inc()
}

// IncHeartbeat records an accepted heartbeat
func (m *Metrics) IncHeartbeat() {
	if m == nil {
		return
	}
	m.Heartbeats.Inc()
}

// IncWillSealed records a sealed will
func (m *Metrics) IncWillSealed() {
	if m == nil {
		return
	}
	m.WillsSealed.Inc()
}

// ObservePlan records a computed plan
func (m *Metrics) ObservePlan(valid bool) {
	if m == nil {
		return
	}
	label := "false"
	if valid {
		label = "true"
	}
	m.Plans.WithLabelValues(label).Inc()
}

// IncExecution records a pipeline run
func (m *Metrics) IncExecution() {
	if m == nil {
		return
	}
	m.Executions.Inc()
}

// ObserveTransfer records one transfer outcome and its latency in seconds
func (m *Metrics) ObserveTransfer(status string, seconds float64) {
	if m == nil {
		return
	}
	m.Transfers.WithLabelValues(status).Inc()
	m.TransferLatency.Observe(seconds)
}

// IncSentinelScan records a sentinel result
func (m *Metrics) IncSentinelScan(status string) {
	if m == nil {
		return
	}
	m.SentinelScans.WithLabelValues(status).Inc()
}

// SetDaysSilent publishes the current silence metric
func (m *Metrics) SetDaysSilent(days float64) {
	if m == nil {
		return
	}
	m.DaysSilent.Set(days)
}
