package service

import "errors"

// Sentinel errors returned by the services. Callers check them with
// errors.Is; the API layer maps them to HTTP status codes.
var (
	// ErrInvalidRequest indicates a submission that fails validation, such
	// as an empty prompt or a duration outside the configured bounds.
	ErrInvalidRequest = errors.New("invalid generation request")

	// ErrTaskNotReady indicates the task exists but has not produced its
	// audio file yet.
	ErrTaskNotReady = errors.New("task audio not ready")

	// ErrBaseModelImmutable indicates an attempt to delete the base model
	// checkpoint.
	ErrBaseModelImmutable = errors.New("base model cannot be deleted")
)
