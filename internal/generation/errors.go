package generation

import "errors"

// Common errors returned by generators.
var (
	// ErrGenerationFailed is returned when the model fails to produce audio
	// for any general reason. The wrapped detail carries diagnostics.
	ErrGenerationFailed = errors.New("failed to generate audio")

	// ErrModelUnavailable is returned when the model runtime cannot be
	// reached at all (missing binary, dead process).
	ErrModelUnavailable = errors.New("model runtime unavailable")

	// ErrInvalidOutput is returned when the model ran but its output could
	// not be decoded into a waveform.
	ErrInvalidOutput = errors.New("model produced unreadable output")

	// ErrNotImplemented is returned for requested capabilities no generator
	// provides: loading a fine-tuned checkpoint and audio conditioning.
	// Tasks requesting either fail explicitly instead of silently falling
	// back to the base model.
	ErrNotImplemented = errors.New("requested generation capability is not implemented")
)
