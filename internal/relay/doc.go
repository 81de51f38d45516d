// Package relay implements the websocket push channel. Each connection
// authenticates from a handshake cookie, subscribes to the broadcast events
// channel and forwards every well-formed event until the client goes away.
//
// A connection moves through Connecting, Authenticated, Subscribed, Draining
// and Closed. Two goroutines serve a subscribed connection: a forwarder that
// polls the subscription with a bounded wait so it notices cancellation, and
// the handler goroutine itself, which blocks reading the client and starts
// the teardown when the read fails.
package relay
