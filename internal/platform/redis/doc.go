// Package redis implements the broadcast event backend on Redis pub/sub:
// a publisher for the API process and a subscriber for the websocket relay.
package redis
