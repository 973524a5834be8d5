package metrics

import "github.com/prometheus/client_golang/prometheus"

// PresenceMetrics reports group registry and instance registry sizes.
type PresenceMetrics struct {
	LocalViewers    prometheus.Gauge
	ActiveStreams   prometheus.Gauge
	ActiveInstances prometheus.Gauge
	SyncErrors      prometheus.Counter
}

func NewPresenceMetrics(reg prometheus.Registerer) *PresenceMetrics {
	m := &PresenceMetrics{
		LocalViewers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "presence",
			Name:      "local_viewers",
			Help:      "Authenticated connections joined to a group on this instance.",
		}),
		ActiveStreams: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "presence",
			Name:      "active_streams",
			Help:      "Streams with at least one local viewer.",
		}),
		ActiveInstances: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "presence",
			Name:      "active_instances",
			Help:      "Instances with a fresh heartbeat.",
		}),
		SyncErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "presence",
			Name:      "sync_errors_total",
			Help:      "Failed writes of local viewer counts to the shared store.",
		}),
	}

	reg.MustRegister(m.LocalViewers, m.ActiveStreams, m.ActiveInstances, m.SyncErrors)
	return m
}
