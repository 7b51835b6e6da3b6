package transaction

import "github.com/prometheus/client_golang/prometheus"

// Metrics is an optional, nil-safe set of Prometheus instruments for the
// transaction engine, registered by the caller against its own registry
// rather than self-registering, matching transport.Metrics' pattern.
type Metrics struct {
	ClientTxInFlight prometheus.Gauge
	ServerTxInFlight prometheus.Gauge
	RetransmitsTotal *prometheus.CounterVec
}

// NewMetrics builds a Metrics set and registers it against reg (skipped
// when reg is nil). namespace lets multiple stacks in one process avoid
// collector name collisions.
func NewMetrics(reg prometheus.Registerer, namespace string) *Metrics {
	m := &Metrics{
		ClientTxInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "transaction",
			Name:      "client_tx_in_flight",
			Help:      "Client transactions currently active.",
		}),
		ServerTxInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "transaction",
			Name:      "server_tx_in_flight",
			Help:      "Server transactions currently active.",
		}),
		RetransmitsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "transaction",
			Name:      "retransmits_total",
			Help:      "Requests/responses retransmitted by a transaction timer, labeled by side.",
		}, []string{"side"}),
	}

	if reg != nil {
		reg.MustRegister(m.ClientTxInFlight, m.ServerTxInFlight, m.RetransmitsTotal)
	}
	return m
}

func (m *Metrics) clientTxStarted() {
	if m != nil {
		m.ClientTxInFlight.Inc()
	}
}

func (m *Metrics) clientTxEnded() {
	if m != nil {
		m.ClientTxInFlight.Dec()
	}
}

func (m *Metrics) serverTxStarted() {
	if m != nil {
		m.ServerTxInFlight.Inc()
	}
}

func (m *Metrics) serverTxEnded() {
	if m != nil {
		m.ServerTxInFlight.Dec()
	}
}

func (m *Metrics) retransmitted(side string) {
	if m != nil {
		m.RetransmitsTotal.WithLabelValues(side).Inc()
	}
}
