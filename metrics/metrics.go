// Package metrics counts the work of a preprocessing run and exports it in
// the Prometheus text format for node exporter textfile collection.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "meshtvprep"

// Metrics holds a private registry so concurrent runs in one process (tests)
// never collide on registration.
type Metrics struct {
	Registry        *prometheus.Registry
	DomainsVisited  *prometheus.CounterVec
	ObjectsWritten  *prometheus.CounterVec
	StatesCompleted prometheus.Counter
	StageSeconds    *prometheus.HistogramVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Metrics{
		Registry: reg,
		DomainsVisited: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "domains_visited_total",
			Help:      "Domains visited, by pipeline pass",
		}, []string{"pass"}),
		ObjectsWritten: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "objects_written_total",
			Help:      "Objects written to output containers, by object kind",
		}, []string{"kind"}),
		StatesCompleted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "states_completed_total",
			Help:      "Simulation states fully processed",
		}),
		StageSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_seconds",
			Help:      "Wall time of each pipeline stage",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
		}, []string{"stage"}),
	}
}

func (m *Metrics) Visited(pass string) {
	m.DomainsVisited.WithLabelValues(pass).Inc()
}

func (m *Metrics) Written(kind string, n int) {
	m.ObjectsWritten.WithLabelValues(kind).Add(float64(n))
}

func (m *Metrics) StateDone() {
	m.StatesCompleted.Inc()
}

// Stage starts timing a stage; call the returned func when it ends
func (m *Metrics) Stage(stage string) func() {
	timer := prometheus.NewTimer(m.StageSeconds.WithLabelValues(stage))
	return func() { timer.ObserveDuration() }
}

// WriteTextfile writes every metric to path, atomically replacing it
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.Registry)
}
