package gemini

import "errors"

var (
	// ErrInvalidConfig is returned when the captioner cannot be built from
	// the provided LLM configuration.
	ErrInvalidConfig = errors.New("invalid captioner configuration")

	// ErrCaptionBlocked is returned when the API refuses the request on
	// safety grounds. Not retried.
	ErrCaptionBlocked = errors.New("caption blocked by safety filters")

	// ErrInvalidCaption is returned when the API answers with no usable
	// text. Not retried.
	ErrInvalidCaption = errors.New("caption response unusable")

	// ErrTransientFailure is returned when retries are exhausted on
	// transient API errors.
	ErrTransientFailure = errors.New("caption service unavailable")
)
