// Package rabbitmq implements the durable event backend: a topic exchange
// with one durable queue per event type, fed by persistent JSON messages
// published over pooled AMQP channels.
package rabbitmq
