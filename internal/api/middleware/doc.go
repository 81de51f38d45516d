// Package middleware provides the HTTP middleware composed by the api
// router: tracing, application headers, authentication and the time gate.
package middleware
