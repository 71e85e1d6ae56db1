package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/cadenza-audio/cadenza-api/internal/domain"
	"github.com/cadenza-audio/cadenza-api/internal/platform/logger"
	"github.com/cadenza-audio/cadenza-api/internal/store"
	"github.com/google/uuid"
)

// PostgresCheckpointStore implements store.CheckpointStore on PostgreSQL.
type PostgresCheckpointStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresCheckpointStore creates a checkpoint store over the given
// connection or transaction. If logger is nil the process default is used.
func NewPostgresCheckpointStore(db store.DBTX, log *slog.Logger) *PostgresCheckpointStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if log == nil {
		log = slog.Default()
	}
	return &PostgresCheckpointStore{
		db:     db,
		logger: log.With(slog.String("component", "checkpoint_store")),
	}
}

// Ensure PostgresCheckpointStore implements store.CheckpointStore.
var _ store.CheckpointStore = (*PostgresCheckpointStore)(nil)

// Create implements store.CheckpointStore.Create.
func (s *PostgresCheckpointStore) Create(ctx context.Context, checkpoint *domain.ModelCheckpoint) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := checkpoint.Validate(); err != nil {
		log.Warn("checkpoint validation failed during create",
			slog.String("error", err.Error()),
			slog.String("checkpoint_id", checkpoint.ID.String()))
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}

	query := `
		INSERT INTO model_checkpoints (id, name, description, file_path, is_base, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := s.db.ExecContext(ctx, query,
		checkpoint.ID,
		checkpoint.Name,
		checkpoint.Description,
		checkpoint.FilePath,
		checkpoint.IsBase,
		checkpoint.CreatedAt,
	)
	if err != nil {
		log.Error("failed to create checkpoint",
			slog.String("error", err.Error()),
			slog.String("checkpoint_id", checkpoint.ID.String()))
		return MapError(err)
	}

	log.Info("checkpoint created",
		slog.String("checkpoint_id", checkpoint.ID.String()),
		slog.String("name", checkpoint.Name))
	return nil
}

// GetByID implements store.CheckpointStore.GetByID.
func (s *PostgresCheckpointStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.ModelCheckpoint, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		SELECT id, name, description, file_path, is_base, created_at
		FROM model_checkpoints
		WHERE id = $1
	`
	var cp domain.ModelCheckpoint
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&cp.ID,
		&cp.Name,
		&cp.Description,
		&cp.FilePath,
		&cp.IsBase,
		&cp.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Debug("checkpoint not found", slog.String("checkpoint_id", id.String()))
			return nil, store.ErrCheckpointNotFound
		}
		log.Error("failed to get checkpoint",
			slog.String("error", err.Error()),
			slog.String("checkpoint_id", id.String()))
		return nil, MapError(err)
	}
	return &cp, nil
}

// List implements store.CheckpointStore.List. The base model sorts first so
// clients can render it at the top of model pickers.
func (s *PostgresCheckpointStore) List(ctx context.Context) ([]*domain.ModelCheckpoint, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		SELECT id, name, description, file_path, is_base, created_at
		FROM model_checkpoints
		ORDER BY is_base DESC, created_at DESC
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		log.Error("failed to list checkpoints", slog.String("error", err.Error()))
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	checkpoints := make([]*domain.ModelCheckpoint, 0)
	for rows.Next() {
		var cp domain.ModelCheckpoint
		err := rows.Scan(&cp.ID, &cp.Name, &cp.Description, &cp.FilePath, &cp.IsBase, &cp.CreatedAt)
		if err != nil {
			log.Error("failed to scan checkpoint row", slog.String("error", err.Error()))
			return nil, MapError(err)
		}
		checkpoints = append(checkpoints, &cp)
	}
	if err := rows.Err(); err != nil {
		return nil, MapError(err)
	}
	return checkpoints, nil
}

// Delete implements store.CheckpointStore.Delete.
func (s *PostgresCheckpointStore) Delete(ctx context.Context, id uuid.UUID) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	result, err := s.db.ExecContext(ctx, `DELETE FROM model_checkpoints WHERE id = $1`, id)
	if err != nil {
		log.Error("failed to delete checkpoint",
			slog.String("error", err.Error()),
			slog.String("checkpoint_id", id.String()))
		return MapError(err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return MapError(err)
	}
	if affected == 0 {
		return store.ErrCheckpointNotFound
	}

	log.Info("checkpoint deleted", slog.String("checkpoint_id", id.String()))
	return nil
}

// WithTx implements store.CheckpointStore.WithTx.
func (s *PostgresCheckpointStore) WithTx(tx *sql.Tx) store.CheckpointStore {
	return &PostgresCheckpointStore{
		db:     tx,
		logger: s.logger,
	}
}
