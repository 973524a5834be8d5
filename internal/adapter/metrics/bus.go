package metrics

import "github.com/prometheus/client_golang/prometheus"

// BusMetrics tracks traffic through the broadcast bus.
type BusMetrics struct {
	Published           *prometheus.CounterVec
	Received            *prometheus.CounterVec
	Dropped             prometheus.Counter
	ActiveSubscriptions prometheus.Gauge
}

func NewBusMetrics(reg prometheus.Registerer) *BusMetrics {
	m := &BusMetrics{
		Published: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "bus",
			Name:      "published_total",
			Help:      "Events published by kind and status.",
		}, []string{"kind", "status"}),
		Received: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "bus",
			Name:      "received_total",
			Help:      "Events delivered to local subscriptions by kind.",
		}, []string{"kind"}),
		Dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "bus",
			Name:      "dropped_total",
			Help:      "Events dropped because a subscriber was too slow or the payload was unreadable.",
		}),
		ActiveSubscriptions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "bus",
			Name:      "active_subscriptions",
			Help:      "Open bus subscriptions in this process.",
		}),
	}

	reg.MustRegister(m.Published, m.Received, m.Dropped, m.ActiveSubscriptions)
	return m
}
