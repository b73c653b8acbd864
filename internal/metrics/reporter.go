package metrics

import "github.com/prometheus/client_golang/prometheus"

// Reporter holds the alert reporter collectors.
type Reporter struct {
	registry *prometheus.Registry

	sent             *prometheus.CounterVec // by message
	failures         *prometheus.CounterVec // by operation
	acks             prometheus.Counter
	dials            prometheus.Counter
	heartbeatEnabled prometheus.Gauge
}

// Reporter operations used as failure labels.
const (
	OpDial  = "dial"
	OpWrite = "write"
	OpRead  = "read"
	OpBuild = "build"
)

// NewReporter creates and registers the reporter collectors.
func NewReporter() *Reporter {
	r := &Reporter{
		registry: prometheus.NewRegistry(),
		sent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reporter",
			Name:      "sent_total",
			Help:      "Reports written to the manager",
		}, []string{"message"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reporter",
			Name:      "failures_total",
			Help:      "Failed operations by kind",
		}, []string{"op"}),
		acks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reporter",
			Name:      "acks_received_total",
			Help:      "Acknowledgments read from the manager",
		}),
		dials: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reporter",
			Name:      "dials_total",
			Help:      "Successful connections to the manager",
		}),
		heartbeatEnabled: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "reporter",
			Name:      "heartbeat_enabled",
			Help:      "1 while heartbeats are sent",
		}),
	}

	r.registry.MustRegister(r.sent, r.failures, r.acks, r.dials, r.heartbeatEnabled)
	r.heartbeatEnabled.Set(1)

	return r
}

// Registry returns the registry holding the collectors.
func (r *Reporter) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}

	return r.registry
}

// ObserveSent counts one written report; message is "heartbeat" or "alarm".
func (r *Reporter) ObserveSent(message string) {
	if r == nil {
		return
	}

	r.sent.WithLabelValues(message).Inc()
}

// ObserveFailure counts one failed operation.
func (r *Reporter) ObserveFailure(op string) {
	if r == nil {
		return
	}

	r.failures.WithLabelValues(op).Inc()
}

// ObserveAck counts one received acknowledgment.
func (r *Reporter) ObserveAck() {
	if r == nil {
		return
	}

	r.acks.Inc()
}

// ObserveDial counts one established connection.
func (r *Reporter) ObserveDial() {
	if r == nil {
		return
	}

	r.dials.Inc()
}

// SetHeartbeatEnabled mirrors the heartbeat toggle.
func (r *Reporter) SetHeartbeatEnabled(enabled bool) {
	if r == nil {
		return
	}

	if enabled {
		r.heartbeatEnabled.Set(1)
	} else {
		r.heartbeatEnabled.Set(0)
	}
}
