package service

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"

	"github.com/google/uuid"

	"github.com/cadenza-audio/cadenza-api/internal/domain"
	"github.com/cadenza-audio/cadenza-api/internal/platform/logger"
	"github.com/cadenza-audio/cadenza-api/internal/store"
)

// ModelService serves model checkpoint listings and deletion. The base
// model is never deletable; fine-tuned checkpoints lose their artifact file
// first, then their record.
type ModelService struct {
	checkpoints store.CheckpointStore
	db          *sql.DB
	logger      *slog.Logger
}

// NewModelService wires a ModelService. Panics when checkpoints is nil. A
// nil db disables transactional deletes.
func NewModelService(checkpoints store.CheckpointStore, db *sql.DB, log *slog.Logger) *ModelService {
	if checkpoints == nil {
		panic("checkpoint store cannot be nil")
	}
	if log == nil {
		log = slog.Default()
	}

	return &ModelService{
		checkpoints: checkpoints,
		db:          db,
		logger:      log.With(slog.String("component", "model_service")),
	}
}

// List returns all checkpoint records, base model first, then newest first.
func (s *ModelService) List(ctx context.Context) ([]*domain.ModelCheckpoint, error) {
	return s.checkpoints.List(ctx)
}

// Get returns the checkpoint record for id.
func (s *ModelService) Get(ctx context.Context, id uuid.UUID) (*domain.ModelCheckpoint, error) {
	return s.checkpoints.GetByID(ctx, id)
}

// Delete removes a fine-tuned checkpoint's artifact file, then its record.
// Deleting the base model reports ErrBaseModelImmutable; a missing artifact
// file is tolerated. With a database handle present the read and the record
// delete run in one transaction.
func (s *ModelService) Delete(ctx context.Context, id uuid.UUID) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	var err error
	if s.db == nil {
		err = s.deleteCheckpoint(ctx, s.checkpoints, id)
	} else {
		err = store.RunInTransaction(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
			return s.deleteCheckpoint(ctx, s.checkpoints.WithTx(tx), id)
		})
	}
	if err != nil {
		return err
	}

	log.Info("checkpoint deleted", slog.String("checkpoint_id", id.String()))
	return nil
}

// deleteCheckpoint runs the base-model check and the file-then-record
// removal over the given store.
func (s *ModelService) deleteCheckpoint(ctx context.Context, checkpoints store.CheckpointStore, id uuid.UUID) error {
	checkpoint, err := checkpoints.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if checkpoint.IsBase {
		return fmt.Errorf("%w: %s", ErrBaseModelImmutable, checkpoint.Name)
	}

	if err := os.Remove(checkpoint.FilePath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing checkpoint file %s: %w", checkpoint.FilePath, err)
	}

	return checkpoints.Delete(ctx, id)
}
