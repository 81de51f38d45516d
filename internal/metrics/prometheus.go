package metrics

import (
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusSink implements Sink using the Prometheus client library.
// Registration errors are logged but never propagated.
type PrometheusSink struct {
	reportsSubmittedTotal prometheus.Counter
	reportsFinishedTotal  *prometheus.CounterVec
	reportDuration        prometheus.Histogram
	reportsRecoveredTotal *prometheus.CounterVec

	eventsPublishedTotal *prometheus.CounterVec

	relayConnections       prometheus.Gauge
	relayAuthRejectedTotal prometheus.Counter
	relayForwardedTotal    prometheus.Counter

	gateRejectedTotal prometheus.Counter
}

// NewPrometheusSink creates a sink whose collectors are registered on reg.
func NewPrometheusSink(reg prometheus.Registerer) *PrometheusSink {
	s := &PrometheusSink{}
	s.initReportMetrics(reg)
	s.initEventMetrics(reg)
	s.initRelayMetrics(reg)
	return s
}

func (s *PrometheusSink) initReportMetrics(reg prometheus.Registerer) {
	s.reportsSubmittedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "webapp_reports_submitted_total",
		Help: "Total number of report tasks accepted.",
	})
	s.reportsFinishedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "webapp_reports_finished_total",
		Help: "Total number of report tasks that reached a terminal status.",
	}, []string{"status"})
	s.reportDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "webapp_report_duration_seconds",
		Help:    "Time from a report starting to run until it finished.",
		Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 300, 3600},
	})
	s.reportsRecoveredTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "webapp_reports_recovered_total",
		Help: "Reports found unfinished at startup, by action taken.",
	}, []string{"action"})

	s.register(reg, s.reportsSubmittedTotal, "webapp_reports_submitted_total")
	s.register(reg, s.reportsFinishedTotal, "webapp_reports_finished_total")
	s.register(reg, s.reportDuration, "webapp_report_duration_seconds")
	s.register(reg, s.reportsRecoveredTotal, "webapp_reports_recovered_total")
}

func (s *PrometheusSink) initEventMetrics(reg prometheus.Registerer) {
	s.eventsPublishedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "webapp_events_published_total",
		Help: "Total number of event publish attempts.",
	}, []string{"backend", "type", "outcome"})

	s.gateRejectedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "webapp_gate_rejected_total",
		Help: "Requests rejected outside the allowed time window.",
	})

	s.register(reg, s.eventsPublishedTotal, "webapp_events_published_total")
	s.register(reg, s.gateRejectedTotal, "webapp_gate_rejected_total")
}

func (s *PrometheusSink) initRelayMetrics(reg prometheus.Registerer) {
	s.relayConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "webapp_relay_connections",
		Help: "Websocket connections currently subscribed.",
	})
	s.relayAuthRejectedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "webapp_relay_auth_rejected_total",
		Help: "Websocket handshakes closed for a bad credential.",
	})
	s.relayForwardedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "webapp_relay_messages_forwarded_total",
		Help: "Events written to websocket clients.",
	})

	s.register(reg, s.relayConnections, "webapp_relay_connections")
	s.register(reg, s.relayAuthRejectedTotal, "webapp_relay_auth_rejected_total")
	s.register(reg, s.relayForwardedTotal, "webapp_relay_messages_forwarded_total")
}

// register attempts to register a collector, logging any errors without propagating them.
func (s *PrometheusSink) register(reg prometheus.Registerer, c prometheus.Collector, name string) {
	if err := reg.Register(c); err != nil {
		slog.Warn("failed to register metric", "metric", name, "error", err)
	}
}

func (s *PrometheusSink) ReportSubmitted() {
	s.reportsSubmittedTotal.Inc()
}

func (s *PrometheusSink) ReportFinished(status string, duration time.Duration) {
	s.reportsFinishedTotal.WithLabelValues(status).Inc()
	s.reportDuration.Observe(duration.Seconds())
}

func (s *PrometheusSink) ReportsRecovered(requeued, interrupted int) {
	s.reportsRecoveredTotal.WithLabelValues("requeued").Add(float64(requeued))
	s.reportsRecoveredTotal.WithLabelValues("interrupted").Add(float64(interrupted))
}

func (s *PrometheusSink) EventPublished(backend, eventType, outcome string) {
	s.eventsPublishedTotal.WithLabelValues(backend, eventType, outcome).Inc()
}

func (s *PrometheusSink) RelayConnectionOpened() {
	s.relayConnections.Inc()
}

func (s *PrometheusSink) RelayConnectionClosed() {
	s.relayConnections.Dec()
}

func (s *PrometheusSink) RelayAuthRejected() {
	s.relayAuthRejectedTotal.Inc()
}

func (s *PrometheusSink) RelayMessageForwarded() {
	s.relayForwardedTotal.Inc()
}

func (s *PrometheusSink) GateRejected() {
	s.gateRejectedTotal.Inc()
}
