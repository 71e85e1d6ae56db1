package store

import (
	"context"
	"database/sql"

	"github.com/cadenza-audio/cadenza-api/internal/domain"
	"github.com/google/uuid"
)

// CheckpointStore defines persistence for model checkpoint records.
// Checkpoints are immutable: there is no update operation.
type CheckpointStore interface {
	// Create saves a new checkpoint record. Validation failures are wrapped
	// in ErrInvalidEntity.
	Create(ctx context.Context, checkpoint *domain.ModelCheckpoint) error

	// GetByID retrieves a checkpoint by id. Returns ErrCheckpointNotFound
	// if absent.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.ModelCheckpoint, error)

	// List returns all checkpoint records, base model first, then newest
	// first.
	List(ctx context.Context) ([]*domain.ModelCheckpoint, error)

	// Delete removes a checkpoint record. Returns ErrCheckpointNotFound if
	// absent.
	Delete(ctx context.Context, id uuid.UUID) error

	// WithTx returns a CheckpointStore bound to the given transaction.
	WithTx(tx *sql.Tx) CheckpointStore
}
