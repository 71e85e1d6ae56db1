package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Common validation errors for ModelCheckpoint.
var (
	ErrEmptyCheckpointID   = errors.New("checkpoint ID cannot be empty")
	ErrEmptyCheckpointName = errors.New("checkpoint name cannot be empty")
	ErrEmptyCheckpointPath = errors.New("checkpoint file path cannot be empty")
)

// ModelCheckpoint is a saved model artifact: either the base model the
// system ships with or the product of a completed training run. Checkpoints
// are immutable once created; they are only ever created or deleted.
type ModelCheckpoint struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	FilePath    string    `json:"file_path"`
	IsBase      bool      `json:"is_base"`
	CreatedAt   time.Time `json:"created_at"`
}

// NewModelCheckpoint creates a checkpoint record with a fresh UUID and the
// creation timestamp. Returns an error if validation fails.
func NewModelCheckpoint(name, description, filePath string, isBase bool) (*ModelCheckpoint, error) {
	checkpoint := &ModelCheckpoint{
		ID:          uuid.New(),
		Name:        name,
		Description: description,
		FilePath:    filePath,
		IsBase:      isBase,
		CreatedAt:   time.Now().UTC(),
	}

	if err := checkpoint.Validate(); err != nil {
		return nil, err
	}

	return checkpoint, nil
}

// Validate checks the checkpoint's fields against the entity rules.
func (c *ModelCheckpoint) Validate() error {
	if c.ID == uuid.Nil {
		return ErrEmptyCheckpointID
	}
	if c.Name == "" {
		return ErrEmptyCheckpointName
	}
	if c.FilePath == "" {
		return ErrEmptyCheckpointPath
	}
	return nil
}
