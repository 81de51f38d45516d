// Package events defines the typed events users can publish and the
// Dispatcher that validates them and hands them to a delivery backend.
//
// Two backends exist: broadcast (Redis pub/sub, fire-and-forget) and durable
// (a RabbitMQ topic exchange with one persistent queue per event type). Both
// carry the same JSON body: {"timestamp", "type", "data"}. Events are never
// stored by this service.
package events
