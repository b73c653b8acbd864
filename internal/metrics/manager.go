package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "acm"

// Manager holds the alert manager collectors.
type Manager struct {
	registry *prometheus.Registry

	classified       *prometheus.CounterVec // by kind
	replies          *prometheus.CounterVec // by kind
	dropped          *prometheus.CounterVec // by reason
	dispatchDuration prometheus.Histogram
	lastHeartbeat    prometheus.Gauge
}

// NewManager creates and registers the manager collectors.
func NewManager() *Manager {
	m := &Manager{
		registry: prometheus.NewRegistry(),
		classified: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "manager",
			Name:      "messages_total",
			Help:      "Inbound messages by classification",
		}, []string{"kind"}),
		replies: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "manager",
			Name:      "replies_total",
			Help:      "Acknowledgments written by classification of the answered message",
		}, []string{"kind"}),
		dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "manager",
			Name:      "dropped_total",
			Help:      "Connections abandoned before a reply, by reason",
		}, []string{"reason"}),
		dispatchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "manager",
			Name:      "dispatch_duration_seconds",
			Help:      "Time spent parsing, classifying and answering one frame",
			Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
		}),
		lastHeartbeat: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "manager",
			Name:      "last_heartbeat_timestamp_seconds",
			Help:      "Unix time of the most recent heartbeat",
		}),
	}

	m.registry.MustRegister(m.classified, m.replies, m.dropped, m.dispatchDuration, m.lastHeartbeat)

	return m
}

// Registry returns the registry holding the collectors.
func (m *Manager) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}

	return m.registry
}

// ObserveClassified counts one inbound message of kind.
func (m *Manager) ObserveClassified(kind string, at time.Time) {
	if m == nil {
		return
	}

	m.classified.WithLabelValues(kind).Inc()

	if kind == "heartbeat" {
		m.lastHeartbeat.Set(float64(at.Unix()))
	}
}

// ObserveReply counts one written acknowledgment.
func (m *Manager) ObserveReply(kind string) {
	if m == nil {
		return
	}

	m.replies.WithLabelValues(kind).Inc()
}

// ObserveDrop counts one abandoned connection.
func (m *Manager) ObserveDrop(reason string) {
	if m == nil {
		return
	}

	m.dropped.WithLabelValues(reason).Inc()
}

// ObserveDispatch records the duration of one dispatch.
func (m *Manager) ObserveDispatch(d time.Duration) {
	if m == nil {
		return
	}

	m.dispatchDuration.Observe(d.Seconds())
}
