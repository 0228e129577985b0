// Package diag exposes operational visibility: prometheus metrics and a
// redacted diagnostics dump, served from one HTTP endpoint.
package diag

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the bridge's instrumentation on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	pollTotal    *prometheus.CounterVec
	pollErrors   *prometheus.CounterVec
	pollDuration prometheus.Histogram
	commands     *prometheus.CounterVec
	available    *prometheus.GaugeVec
	wsConnected  prometheus.Gauge
}

// NewMetrics builds and registers the metric set.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewBuildInfoCollector())
	reg.MustRegister(collectors.NewGoCollector())

	m := &Metrics{
		registry: reg,
		pollTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dreoverse_poll_total",
			Help: "Status polls attempted, per device.",
		}, []string{"sn"}),
		pollErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dreoverse_poll_errors_total",
			Help: "Status polls that failed, per device.",
		}, []string{"sn"}),
		pollDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "dreoverse_poll_duration_seconds",
			Help:    "Duration of successful status polls.",
			Buckets: prometheus.DefBuckets,
		}),
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dreoverse_commands_total",
			Help: "Commands forwarded to the cloud, per device and result.",
		}, []string{"sn", "result"}),
		available: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "dreoverse_device_available",
			Help: "Whether a device is currently reachable (1/0).",
		}, []string{"sn"}),
		wsConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "dreoverse_websocket_connected",
			Help: "Whether the push channel is currently open (1/0).",
		}),
	}

	reg.MustRegister(m.pollTotal, m.pollErrors, m.pollDuration, m.commands, m.available, m.wsConnected)
	return m
}

// PollSucceeded implements coordinator.Observer.
func (m *Metrics) PollSucceeded(sn string, took time.Duration) {
	m.pollTotal.WithLabelValues(sn).Inc()
	m.pollDuration.Observe(took.Seconds())
}

// PollFailed implements coordinator.Observer.
func (m *Metrics) PollFailed(sn string) {
	m.pollTotal.WithLabelValues(sn).Inc()
	m.pollErrors.WithLabelValues(sn).Inc()
}

// AvailabilityChanged implements coordinator.Observer.
func (m *Metrics) AvailabilityChanged(sn string, online bool) {
	if online {
		m.available.WithLabelValues(sn).Set(1)
	} else {
		m.available.WithLabelValues(sn).Set(0)
	}
}

// CommandResult records one forwarded command.
func (m *Metrics) CommandResult(sn string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.commands.WithLabelValues(sn, result).Inc()
}

// SetWebsocketConnected records push channel state.
func (m *Metrics) SetWebsocketConnected(connected bool) {
	if connected {
		m.wsConnected.Set(1)
	} else {
		m.wsConnected.Set(0)
	}
}

// Handler serves the registry at /metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
