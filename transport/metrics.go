package transport

import "github.com/prometheus/client_golang/prometheus"

// Metrics is an optional, nil-safe set of Prometheus instruments for the
// transport layer. Callers register it against their own prometheus.Registry
// (matching cmd/proxysip's promhttp wiring pattern in the teacher) rather
// than it self-registering, so embedding applications keep control of the
// registry.
type Metrics struct {
	StunPacketsTotal      prometheus.Counter
	DroppedOversizeTotal  prometheus.Counter
	DroppedJunkTotal      prometheus.Counter
	BadMessagesTotal      *prometheus.CounterVec
	InboundQueueDropped   prometheus.Counter
	InboundQueueDepth     prometheus.Gauge
}

// NewMetrics builds a Metrics set and registers it against reg. namespace
// lets multiple stacks in one process avoid collector name collisions.
func NewMetrics(reg prometheus.Registerer, namespace string) *Metrics {
	m := &Metrics{
		StunPacketsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "transport",
			Name:      "stun_packets_total",
			Help:      "STUN-looking datagrams demultiplexed off the SIP socket.",
		}),
		DroppedOversizeTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "transport",
			Name:      "dropped_oversize_total",
			Help:      "Inbound messages rejected as larger than the configured maximum.",
		}),
		DroppedJunkTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "transport",
			Name:      "dropped_junk_total",
			Help:      "Inbound datagrams that were neither SIP, STUN, nor a keep-alive.",
		}),
		BadMessagesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "transport",
			Name:      "bad_messages_total",
			Help:      "Inbound messages rejected by the parser, labeled by offending field.",
		}, []string{"field"}),
		InboundQueueDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "transport",
			Name:      "inbound_queue_dropped_total",
			Help:      "Messages dropped because the bounded inbound queue was saturated.",
		}),
		InboundQueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "transport",
			Name:      "inbound_queue_depth",
			Help:      "Current depth of the bounded inbound message queue.",
		}),
	}

	if reg != nil {
		reg.MustRegister(
			m.StunPacketsTotal,
			m.DroppedOversizeTotal,
			m.DroppedJunkTotal,
			m.BadMessagesTotal,
			m.InboundQueueDropped,
			m.InboundQueueDepth,
		)
	}
	return m
}
