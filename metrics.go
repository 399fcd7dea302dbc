package spinor

import "github.com/prometheus/client_golang/prometheus"

// Metrics counts driver activity. A nil *Metrics records nothing.
type Metrics struct {
	ops    *prometheus.CounterVec
	errors *prometheus.CounterVec
	bytes  *prometheus.CounterVec
	polls  prometheus.Counter
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "spinor",
			Name:      "operations_total",
			Help:      "Flash operations issued, by operation.",
		}, []string{"op"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "spinor",
			Name:      "operation_errors_total",
			Help:      "Flash operations that failed, by operation.",
		}, []string{"op"}),
		bytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "spinor",
			Name:      "bytes_total",
			Help:      "Bytes transferred, by direction.",
		}, []string{"dir"}),
		polls: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "spinor",
			Name:      "status_polls_total",
			Help:      "Status register reads made while waiting for idle.",
		}),
	}
	reg.MustRegister(m.ops, m.errors, m.bytes, m.polls)
	return m
}

func (m *Metrics) op(name string, err error) {
	if m == nil {
		return
	}
	m.ops.WithLabelValues(name).Inc()
	if err != nil {
		m.errors.WithLabelValues(name).Inc()
	}
}

func (m *Metrics) addBytes(dir string, n int) {
	if m == nil {
		return
	}
	m.bytes.WithLabelValues(dir).Add(float64(n))
}

func (m *Metrics) poll() {
	if m == nil {
		return
	}
	m.polls.Inc()
}
