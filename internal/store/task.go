package store

import (
	"context"
	"database/sql"

	"github.com/cadenza-audio/cadenza-api/internal/domain"
	"github.com/google/uuid"
)

// TaskStore defines persistence for generation task records.
//
// The worker races with external deletion: a task can be deleted while its
// generation is in flight. Update therefore treats a missing row as a no-op,
// while Delete and GetByID report ErrTaskNotFound. Concurrent reads during a
// worker update must observe either the old or the new record, never a torn
// one.
type TaskStore interface {
	// Create saves a new task record. Domain validation runs first;
	// validation failures are wrapped in ErrInvalidEntity.
	Create(ctx context.Context, task *domain.GenerationTask) error

	// GetByID retrieves a task by id. Returns ErrTaskNotFound if absent.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.GenerationTask, error)

	// List returns all task records ordered by creation time, newest first.
	List(ctx context.Context) ([]*domain.GenerationTask, error)

	// Update persists the task's current mutable fields (status, progress,
	// file path, error message, completion time). A missing row is a no-op.
	Update(ctx context.Context, task *domain.GenerationTask) error

	// Delete removes a task record. Returns ErrTaskNotFound if absent.
	Delete(ctx context.Context, id uuid.UUID) error

	// CountByStatus reports how many task records hold the given status.
	CountByStatus(ctx context.Context, status domain.TaskStatus) (int, error)

	// WithTx returns a TaskStore bound to the given transaction.
	WithTx(tx *sql.Tx) TaskStore
}
