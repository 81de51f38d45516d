// Package api handles incoming HTTP requests, routing, request validation,
// and response formatting. It acts as an adapter between external clients
// and the internal application services, translating HTTP concerns to
// business operations.
//
// Every error response is a JSON object with a "msg" field and, when known,
// the request's "trace_id".
package api
