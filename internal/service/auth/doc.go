// Package auth issues and validates HS256 access tokens and verifies
// bcrypt password hashes. Tokens are accepted from the Authorization header
// by the HTTP API and from a cookie by the websocket relay.
package auth
