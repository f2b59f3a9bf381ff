package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the counters the renamer updates directly.
type Metrics struct {
	ProposalsCreated  *prometheus.CounterVec
	Executions        *prometheus.CounterVec
	ExecutionDuration prometheus.Histogram
	ScanCycles        prometheus.Counter
	ScanDuration      prometheus.Histogram
	ScanFileErrors    prometheus.Counter
	StaleRemoved      prometheus.Counter
	ResolverMisses    prometheus.Counter
}

// New creates and registers renamer metrics with the given registry.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ProposalsCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mediarenamer",
			Subsystem: "proposals",
			Name:      "created_total",
			Help:      "Proposals created, by initial status.",
		}, []string{"status"}),
		Executions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mediarenamer",
			Subsystem: "executor",
			Name:      "executions_total",
			Help:      "Executed proposals, by final status.",
		}, []string{"status"}),
		ExecutionDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "mediarenamer",
			Subsystem: "executor",
			Name:      "execution_duration_seconds",
			Help:      "Duration of moving one approved file.",
			Buckets:   []float64{0.001, 0.01, 0.1, 0.5, 1, 5, 15, 60, 300},
		}),
		ScanCycles: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "mediarenamer",
			Subsystem: "watcher",
			Name:      "cycles_total",
			Help:      "Completed reconciliation cycles.",
		}),
		ScanDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "mediarenamer",
			Subsystem: "watcher",
			Name:      "cycle_duration_seconds",
			Help:      "Duration of a reconciliation cycle.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 120},
		}),
		ScanFileErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "mediarenamer",
			Subsystem: "watcher",
			Name:      "file_errors_total",
			Help:      "Files that failed during reconciliation.",
		}),
		StaleRemoved: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "mediarenamer",
			Subsystem: "watcher",
			Name:      "stale_removed_total",
			Help:      "Pending proposals removed because the source disappeared.",
		}),
		ResolverMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "mediarenamer",
			Subsystem: "resolver",
			Name:      "misses_total",
			Help:      "Files no metadata provider could resolve.",
		}),
	}

	reg.MustRegister(
		m.ProposalsCreated,
		m.Executions,
		m.ExecutionDuration,
		m.ScanCycles,
		m.ScanDuration,
		m.ScanFileErrors,
		m.StaleRemoved,
		m.ResolverMisses,
	)

	return m
}

// The helpers below are safe on a nil *Metrics so callers can run without
// a registry.

func (m *Metrics) ProposalCreated(status string) {
	if m == nil {
		return
	}
	m.ProposalsCreated.WithLabelValues(status).Inc()
}

func (m *Metrics) Executed(status string, took time.Duration) {
	if m == nil {
		return
	}
	m.Executions.WithLabelValues(status).Inc()
	m.ExecutionDuration.Observe(took.Seconds())
}

func (m *Metrics) CycleDone(took time.Duration, fileErrors, staleRemoved int) {
	if m == nil {
		return
	}
	m.ScanCycles.Inc()
	m.ScanDuration.Observe(took.Seconds())
	m.ScanFileErrors.Add(float64(fileErrors))
	m.StaleRemoved.Add(float64(staleRemoved))
}

func (m *Metrics) ResolverMiss() {
	if m == nil {
		return
	}
	m.ResolverMisses.Inc()
}
