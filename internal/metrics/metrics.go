// Package metrics exposes the console's prometheus collectors.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Poll failure reasons.
const (
	ReasonTransport = "transport"
	ReasonMalformed = "malformed"
)

// Metrics groups every collector the console updates. A nil *Metrics is a
// valid no-op recorder.
type Metrics struct {
	gatherer prometheus.Gatherer

	statusPolls      prometheus.Counter
	pollFailures     *prometheus.CounterVec
	pollLatency      prometheus.Histogram
	bufferSamples    prometheus.Gauge
	debugPolls       *prometheus.CounterVec
	commandsSent     *prometheus.CounterVec
	validationErrors *prometheus.CounterVec
	emitFailures     *prometheus.CounterVec
	viewClients      prometheus.Gauge
	rigConnected     prometheus.Gauge
}

// New builds the collectors and registers them on reg.
func New(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		gatherer: reg,
		statusPolls: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "calib_status_polls_total",
			Help: "Status snapshots fetched and rendered.",
		}),
		pollFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "calib_poll_failures_total",
			Help: "Failed report fetches by poller and reason.",
		}, []string{"poller", "reason"}),
		pollLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "calib_status_fetch_seconds",
			Help:    "Round trip of the status report request.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		}),
		bufferSamples: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "calib_telemetry_buffer_samples",
			Help: "Samples currently held in the telemetry buffer.",
		}),
		debugPolls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "calib_debug_polls_total",
			Help: "Debug histograms fetched and rendered by process.",
		}, []string{"process"}),
		commandsSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "calib_commands_sent_total",
			Help: "Command envelopes emitted to the rig by action id.",
		}, []string{"action"}),
		validationErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "calib_validation_rejections_total",
			Help: "Actions rejected by form validation by action id.",
		}, []string{"action"}),
		emitFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "calib_emit_failures_total",
			Help: "Actions that validated but could not be sent.",
		}, []string{"action"}),
		viewClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "calib_view_clients",
			Help: "Browser view stream connections.",
		}),
		rigConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "calib_rig_socket_connected",
			Help: "1 while the rig session socket is connected.",
		}),
	}

	reg.MustRegister(
		m.statusPolls, m.pollFailures, m.pollLatency, m.bufferSamples, m.debugPolls,
		m.commandsSent, m.validationErrors, m.emitFailures, m.viewClients, m.rigConnected,
	)
	return m
}

// Handler serves the registry in the prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

func (m *Metrics) StatusPolled(seconds float64, samples int) {
	if m == nil {
		return
	}
	m.statusPolls.Inc()
	m.pollLatency.Observe(seconds)
	m.bufferSamples.Set(float64(samples))
}

func (m *Metrics) PollFailed(poller, reason string) {
	if m == nil {
		return
	}
	m.pollFailures.WithLabelValues(poller, reason).Inc()
}

func (m *Metrics) BufferReset() {
	if m == nil {
		return
	}
	m.bufferSamples.Set(0)
}

func (m *Metrics) DebugPolled(process string) {
	if m == nil {
		return
	}
	m.debugPolls.WithLabelValues(process).Inc()
}

func (m *Metrics) CommandSent(action string) {
	if m == nil {
		return
	}
	m.commandsSent.WithLabelValues(action).Inc()
}

func (m *Metrics) ValidationRejected(action string) {
	if m == nil {
		return
	}
	m.validationErrors.WithLabelValues(action).Inc()
}

func (m *Metrics) EmitFailed(action string) {
	if m == nil {
		return
	}
	m.emitFailures.WithLabelValues(action).Inc()
}

func (m *Metrics) ViewClientConnected() {
	if m == nil {
		return
	}
	m.viewClients.Inc()
}

func (m *Metrics) ViewClientDisconnected() {
	if m == nil {
		return
	}
	m.viewClients.Dec()
}

func (m *Metrics) RigConnected(up bool) {
	if m == nil {
		return
	}
	if up {
		m.rigConnected.Set(1)
		return
	}
	m.rigConnected.Set(0)
}
