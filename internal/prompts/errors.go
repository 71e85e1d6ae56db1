package prompts

import "errors"

var (
	// ErrTemplateNotFound is returned when a category or template name
	// does not exist.
	ErrTemplateNotFound = errors.New("template not found")

	// ErrTemplateExists is returned when adding a template that already
	// exists in its category.
	ErrTemplateExists = errors.New("template already exists")

	// ErrInvalidTemplate is returned for empty categories, names, text, or
	// themes.
	ErrInvalidTemplate = errors.New("invalid template")
)
