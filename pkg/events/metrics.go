// Copyright 2024-2026 Aiku AI

package events

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics are the connection manager's prometheus collectors. A nil *Metrics
// records nothing.
type Metrics struct {
	frames       *prometheus.CounterVec
	decodeErrors prometheus.Counter
	reconnects   prometheus.Counter
	state        prometheus.Gauge
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		frames: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "upryzing",
			Subsystem: "events",
			Name:      "frames_received_total",
			Help:      "Frames received from the event server, by type.",
		}, []string{"type"}),
		decodeErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "upryzing",
			Subsystem: "events",
			Name:      "decode_errors_total",
			Help:      "Frames dropped because they could not be decoded.",
		}),
		reconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "upryzing",
			Subsystem: "events",
			Name:      "reconnects_scheduled_total",
			Help:      "Reconnection attempts scheduled after a connection failure.",
		}),
		state: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "upryzing",
			Subsystem: "events",
			Name:      "connection_state",
			Help:      "Current connection state (0 disconnected, 1 connecting, 2 connected).",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.frames, m.decodeErrors, m.reconnects, m.state)
	}
	return m
}

func (m *Metrics) frame(eventType string) {
	if m != nil {
		m.frames.WithLabelValues(eventType).Inc()
	}
}

func (m *Metrics) decodeError() {
	if m != nil {
		m.decodeErrors.Inc()
	}
}

func (m *Metrics) reconnect() {
	if m != nil {
		m.reconnects.Inc()
	}
}

func (m *Metrics) setState(s State) {
	if m != nil {
		m.state.Set(float64(s))
	}
}
