package broadcast

import "github.com/prometheus/client_golang/prometheus"

type Metrics struct {
	Sessions              prometheus.Gauge
	Published             prometheus.Counter
	Deliveries            prometheus.Counter
	Pruned                prometheus.Counter
	SerializationFailures prometheus.Counter
}

// NewMetrics builds the hub collectors and registers them with reg when it
// is not nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Sessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "hypolab",
			Subsystem: "broadcast",
			Name:      "sessions",
			Help:      "Open websocket sessions.",
		}),
		Published: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "hypolab",
			Subsystem: "broadcast",
			Name:      "envelopes_published_total",
			Help:      "Envelopes handed to the hub.",
		}),
		Deliveries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "hypolab",
			Subsystem: "broadcast",
			Name:      "deliveries_total",
			Help:      "Envelopes queued to individual sessions.",
		}),
		Pruned: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "hypolab",
			Subsystem: "broadcast",
			Name:      "sessions_pruned_total",
			Help:      "Sessions dropped after a failed or timed-out write.",
		}),
		SerializationFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "hypolab",
			Subsystem: "broadcast",
			Name:      "serialization_failures_total",
			Help:      "Publishes abandoned because the payload could not be encoded.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.Sessions, m.Published, m.Deliveries, m.Pruned, m.SerializationFailures)
	}
	return m
}
