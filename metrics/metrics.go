// Package metrics exposes Prometheus collectors for the workflow client.
// A nil *Metrics is valid and records nothing, so components can be built
// without a registry in tests.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "procurement"

// Metrics groups every collector the client records to.
type Metrics struct {
	queries      *prometheus.CounterVec
	queryLatency *prometheus.HistogramVec
	writes       *prometheus.CounterVec
	transactions *prometheus.CounterVec
	confirmTime  *prometheus.HistogramVec
	uploads      *prometheus.CounterVec
	uploadBytes  prometheus.Counter
	workflows    *prometheus.CounterVec
	staleResults prometheus.Counter
	roleChanges  *prometheus.CounterVec
}

// New registers the collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		queries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chain_queries_total",
			Help:      "Contract read calls by function and outcome.",
		}, []string{"function", "outcome"}),
		queryLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "chain_query_seconds",
			Help:      "Latency of contract read calls.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"function"}),
		writes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chain_writes_total",
			Help:      "Contract write submissions by function and outcome.",
		}, []string{"function", "outcome"}),
		transactions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transactions_finished_total",
			Help:      "Tracked transactions by terminal phase.",
		}, []string{"function", "phase"}),
		confirmTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "transaction_confirmation_seconds",
			Help:      "Time from submission to a terminal phase.",
			Buckets:   []float64{1, 2, 5, 10, 20, 30, 60, 120, 180, 300},
		}, []string{"function"}),
		uploads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "evidence_uploads_total",
			Help:      "Evidence uploads by provider and outcome.",
		}, []string{"provider", "outcome"}),
		uploadBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "evidence_upload_bytes_total",
			Help:      "Bytes sent to the file store.",
		}),
		workflows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "workflows_finished_total",
			Help:      "Workflow attempts by kind and final state.",
		}, []string{"kind", "state"}),
		staleResults: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stale_query_results_total",
			Help:      "Query results dropped because the account changed mid-flight.",
		}),
		roleChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "role_changes_total",
			Help:      "Persisted role changes by new role.",
		}, []string{"role"}),
	}
	reg.MustRegister(
		m.queries, m.queryLatency, m.writes, m.transactions, m.confirmTime,
		m.uploads, m.uploadBytes, m.workflows, m.staleResults, m.roleChanges,
	)
	return m
}

func (m *Metrics) ObserveQuery(function, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.queries.WithLabelValues(function, outcome).Inc()
	if d > 0 {
		m.queryLatency.WithLabelValues(function).Observe(d.Seconds())
	}
}

func (m *Metrics) ObserveWrite(function, outcome string) {
	if m == nil {
		return
	}
	m.writes.WithLabelValues(function, outcome).Inc()
}

func (m *Metrics) ObserveTransaction(function, phase string, d time.Duration) {
	if m == nil {
		return
	}
	m.transactions.WithLabelValues(function, phase).Inc()
	m.confirmTime.WithLabelValues(function).Observe(d.Seconds())
}

func (m *Metrics) ObserveUpload(provider, outcome string, size int) {
	if m == nil {
		return
	}
	m.uploads.WithLabelValues(provider, outcome).Inc()
	if outcome == "ok" {
		m.uploadBytes.Add(float64(size))
	}
}

func (m *Metrics) ObserveWorkflow(kind, state string) {
	if m == nil {
		return
	}
	m.workflows.WithLabelValues(kind, state).Inc()
}

func (m *Metrics) ObserveStaleResult() {
	if m == nil {
		return
	}
	m.staleResults.Inc()
}

func (m *Metrics) ObserveRoleChange(role string) {
	if m == nil {
		return
	}
	m.roleChanges.WithLabelValues(role).Inc()
}
