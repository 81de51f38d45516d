package middleware

import (
	"net/http"

	chimw "github.com/go-chi/chi/v5/middleware"
)

// Response headers identifying the request and the caller.
const (
	RequestIDHeader = "Application-Request-Id"
	UserIDHeader    = "Application-User-Id"

	// Unauthenticated is the UserIDHeader value before authentication.
	Unauthenticated = "unauthenticated"
)

// AppHeaders stamps every response with the request ID and a placeholder
// user ID. Authenticate overwrites the user ID once it knows the caller.
func AppHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := chimw.GetReqID(r.Context()); id != "" {
			w.Header().Set(RequestIDHeader, id)
		}
		w.Header().Set(UserIDHeader, Unauthenticated)
		next.ServeHTTP(w, r)
	})
}
