// Package service contains the application-specific use cases. It
// orchestrates domain objects, the task queue, and the stores defined in
// internal/store to fulfill generation requests, and expands batch
// submissions into individual enqueues.
//
// Services consume narrow interfaces and return concrete structs.
// Constructors panic on nil core dependencies; the HTTP layer maps the
// sentinel errors defined here to status codes.
package service
