// Package metrics records operational metrics for report execution, event
// publishing, the websocket relay and the time gate.
package metrics

import "time"

// Sink defines the interface for recording metrics.
// All methods are fire-and-forget: implementations MUST NOT block or propagate errors.
type Sink interface {
	// Report executor metrics
	ReportSubmitted()
	ReportFinished(status string, duration time.Duration)
	ReportsRecovered(requeued, interrupted int)

	// Event publisher metrics
	EventPublished(backend, eventType, outcome string)

	// Relay metrics
	RelayConnectionOpened()
	RelayConnectionClosed()
	RelayAuthRejected()
	RelayMessageForwarded()

	// Gate metrics
	GateRejected()
}

// Outcome constants for EventPublished.
const (
	OutcomeSuccess = "success"
	OutcomeInvalid = "invalid"
	OutcomeFailed  = "failed"
)
