// Package service contains the application use cases that sit between the
// HTTP handlers and the stores: registering and authenticating users, and
// the owner-scoped status queries over report records.
//
// Services receive their stores through constructor injection and never
// depend on a concrete infrastructure implementation. They return sentinel
// errors from the store and auth packages, wrapped with context, so the API
// layer can map them with errors.Is.
package service
