package metrics

import "time"

// NoopSink is a no-op implementation of Sink.
// Used when metrics are disabled to avoid nil checks.
type NoopSink struct{}

// NewNoopSink returns a no-op metrics sink.
func NewNoopSink() *NoopSink {
	return &NoopSink{}
}

func (n *NoopSink) ReportSubmitted()                                  {}
func (n *NoopSink) ReportFinished(status string, d time.Duration)     {}
func (n *NoopSink) ReportsRecovered(requeued, interrupted int)        {}
func (n *NoopSink) EventPublished(backend, eventType, outcome string) {}
func (n *NoopSink) RelayConnectionOpened()                            {}
func (n *NoopSink) RelayConnectionClosed()                            {}
func (n *NoopSink) RelayAuthRejected()                                {}
func (n *NoopSink) RelayMessageForwarded()                            {}
func (n *NoopSink) GateRejected()                                     {}
