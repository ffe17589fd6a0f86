package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics engine-level prometheus collectors. A nil *Metrics is a valid
// no-op receiver so wiring stays optional in tests.
type Metrics struct {
	cycles       *prometheus.CounterVec
	pushed       prometheus.Counter
	pulled       prometheus.Counter
	conflicts    prometheus.Counter
	resolved     prometheus.Counter
	retried      prometheus.Counter
	exhausted    prometheus.Counter
	cycleSeconds prometheus.Histogram
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		cycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "syncpoint",
			Name:      "sync_cycles_total",
			Help:      "Synchronization cycles by outcome.",
		}, []string{"outcome"}),
		pushed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "syncpoint",
			Name:      "operations_pushed_total",
			Help:      "Client operations pushed to the remote server.",
		}),
		pulled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "syncpoint",
			Name:      "records_pulled_total",
			Help:      "Remote records applied to the local store.",
		}),
		conflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "syncpoint",
			Name:      "conflicts_detected_total",
			Help:      "Version conflicts detected.",
		}),
		resolved: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "syncpoint",
			Name:      "conflicts_resolved_total",
			Help:      "Conflicts resolved automatically.",
		}),
		retried: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "syncpoint",
			Name:      "retries_enqueued_total",
			Help:      "Operations placed on the retry queue.",
		}),
		exhausted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "syncpoint",
			Name:      "retries_exhausted_total",
			Help:      "Queue items that exceeded max attempts.",
		}),
		cycleSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "syncpoint",
			Name:      "cycle_duration_seconds",
			Help:      "Duration of one synchronization cycle.",
			Buckets:   prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(m.cycles, m.pushed, m.pulled, m.conflicts,
		m.resolved, m.retried, m.exhausted, m.cycleSeconds)
	return m
}

func (m *Metrics) ObserveCycle(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.cycles.WithLabelValues(outcome).Inc()
	m.cycleSeconds.Observe(d.Seconds())
}

func (m *Metrics) AddPushed(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.pushed.Add(float64(n))
}

func (m *Metrics) AddPulled(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.pulled.Add(float64(n))
}

func (m *Metrics) IncConflict() {
	if m == nil {
		return
	}
	m.conflicts.Inc()
}

func (m *Metrics) IncResolved() {
	if m == nil {
		return
	}
	m.resolved.Inc()
}

func (m *Metrics) IncRetried() {
	if m == nil {
		return
	}
	m.retried.Inc()
}

func (m *Metrics) AddExhausted(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.exhausted.Add(float64(n))
}
