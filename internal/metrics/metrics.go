// Package metrics provides Prometheus instrumentation for the poll loop.
//
// This package is internal to SensorBridge. All collectors live on a
// dedicated registry so that multiple bridges in one process (or in tests)
// never collide on registration; the status server exposes the registry at
// /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles the collectors the poll loop records into.
type Metrics struct {
	registry *prometheus.Registry

	polls         *prometheus.CounterVec
	transitions   *prometheus.CounterVec
	devicesOnline prometheus.Gauge
	pollDuration  prometheus.Histogram
}

// New creates the collector set on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		polls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sensorbridge_polls_total",
			Help: "Device poll attempts by result (success, read_failure, timeout).",
		}, []string{"result"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sensorbridge_availability_transitions_total",
			Help: "Emitted availability transitions by new status.",
		}, []string{"status"}),
		devicesOnline: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sensorbridge_devices_online",
			Help: "Number of devices currently known online.",
		}),
		pollDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "sensorbridge_poll_cycle_duration_seconds",
			Help:    "Wall-clock duration of one full poll cycle.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		}),
	}

	m.registry.MustRegister(m.polls, m.transitions, m.devicesOnline, m.pollDuration)

	return m
}

// Registry returns the registry backing the collectors, for exposure via
// an HTTP handler.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordPoll counts one completed poll attempt by result label.
func (m *Metrics) RecordPoll(result string) {
	m.polls.WithLabelValues(result).Inc()
}

// RecordTransition counts one emitted availability transition.
func (m *Metrics) RecordTransition(status string) {
	m.transitions.WithLabelValues(status).Inc()
}

// SetDevicesOnline sets the online-devices gauge.
func (m *Metrics) SetDevicesOnline(n int) {
	m.devicesOnline.Set(float64(n))
}

// ObserveCycleDuration records the duration of one poll cycle in seconds.
func (m *Metrics) ObserveCycleDuration(seconds float64) {
	m.pollDuration.Observe(seconds)
}
