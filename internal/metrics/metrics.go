// Package metrics provides Prometheus metrics for the myssh engine.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rileyhilliard/myssh/internal/session"
)

const namespace = "myssh"

// OutcomeOK labels a command that succeeded; failures are labeled with
// their error kind.
const OutcomeOK = "ok"

// Metrics owns a Prometheus registry and the engine's collectors.
type Metrics struct {
	reg *prometheus.Registry

	commandsTotal   *prometheus.CounterVec
	commandDuration *prometheus.HistogramVec

	transferBytes *prometheus.CounterVec

	transitionsTotal *prometheus.CounterVec
	eventsTotal      *prometheus.CounterVec

	sampleMissingTotal *prometheus.CounterVec

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

// New creates Metrics on a fresh registry, including Go runtime and process
// collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &Metrics{
		reg: reg,

		commandsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "commands_total",
				Help:      "Commands handled by the engine, by command and outcome",
			},
			[]string{"command", "outcome"},
		),

		commandDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "command_duration_seconds",
				Help:      "Engine command duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"command"},
		),

		transferBytes: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "transfer_bytes_total",
				Help:      "Bytes moved by completed uploads and downloads",
			},
			[]string{"direction"},
		),

		transitionsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "session_transitions_total",
				Help:      "Session state transitions",
			},
			[]string{"from", "to"},
		),

		eventsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "session_events_total",
				Help:      "Session lifecycle events",
			},
			[]string{"type"},
		),

		sampleMissingTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "monitor_missing_sources_total",
				Help:      "Monitor sources that produced no data",
			},
			[]string{"source"},
		),

		httpRequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),

		httpRequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
	}
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.reg
}

// Handler returns the Prometheus metrics HTTP handler.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}

// Watch subscribes to a session registry's transitions and events, and
// exports a live per-state session gauge.
func (m *Metrics) Watch(r *session.Registry) {
	r.OnStateChange(func(_ string, from, to session.State) {
		m.transitionsTotal.WithLabelValues(from.String(), to.String()).Inc()
	})
	r.OnEvent(func(ev session.Event) {
		m.eventsTotal.WithLabelValues(string(ev.Type)).Inc()
	})
	m.reg.MustRegister(&sessionCollector{reg: r})
}

// RecordCommand records one engine command. outcome is OutcomeOK or the
// error kind.
func (m *Metrics) RecordCommand(command, outcome string, duration time.Duration) {
	m.commandsTotal.WithLabelValues(command, outcome).Inc()
	m.commandDuration.WithLabelValues(command).Observe(duration.Seconds())
}

// RecordTransfer records bytes moved by a finished transfer. direction is
// "upload" or "download".
func (m *Metrics) RecordTransfer(direction string, bytes int64) {
	m.transferBytes.WithLabelValues(direction).Add(float64(bytes))
}

// RecordMissingSource records a monitor source that produced no data.
func (m *Metrics) RecordMissingSource(source string) {
	m.sampleMissingTotal.WithLabelValues(source).Inc()
}

// RecordHTTPRequest records an HTTP request metric.
func (m *Metrics) RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	m.httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// sessionCollector reports registered sessions per state at scrape time.
type sessionCollector struct {
	reg *session.Registry
}

var sessionsDesc = prometheus.NewDesc(
	prometheus.BuildFQName(namespace, "", "sessions"),
	"Registered sessions by state",
	[]string{"state"}, nil,
)

var allStates = []session.State{
	session.StateDisconnected,
	session.StateConnecting,
	session.StateConnected,
	session.StateReconnecting,
	session.StateFailed,
}

func (c *sessionCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- sessionsDesc
}

func (c *sessionCollector) Collect(ch chan<- prometheus.Metric) {
	counts := make(map[session.State]int, len(allStates))
	for _, info := range c.reg.List() {
		counts[info.State]++
	}
	for _, st := range allStates {
		ch <- prometheus.MustNewConstMetric(sessionsDesc, prometheus.GaugeValue, float64(counts[st]), st.String())
	}
}
