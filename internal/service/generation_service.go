package service

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/google/uuid"

	"github.com/cadenza-audio/cadenza-api/internal/config"
	"github.com/cadenza-audio/cadenza-api/internal/domain"
	"github.com/cadenza-audio/cadenza-api/internal/platform/logger"
	"github.com/cadenza-audio/cadenza-api/internal/settings"
	"github.com/cadenza-audio/cadenza-api/internal/store"
	"github.com/cadenza-audio/cadenza-api/internal/task"
)

// JobQueue accepts generation jobs for the background worker.
type JobQueue interface {
	Enqueue(job task.Job)
}

// SettingsSource provides the current generation defaults.
type SettingsSource interface {
	Get() settings.Settings
}

// GenerateRequest carries one generation submission. Zero Duration,
// GuidanceScale, or Temperature values are filled from the current settings
// before validation.
type GenerateRequest struct {
	Prompt           string
	Duration         float64
	GuidanceScale    float64
	Temperature      float64
	ModelID          *uuid.UUID
	ConditioningPath string
}

// GenerationService accepts generation submissions, persists the task
// record, and hands the job to the worker queue. It also serves task
// snapshots and deletion.
type GenerationService struct {
	tasks    store.TaskStore
	queue    JobQueue
	settings SettingsSource
	db       *sql.DB
	cfg      config.GenerationConfig
	logger   *slog.Logger
}

// NewGenerationService wires a GenerationService. Panics when tasks, queue,
// or settings is nil. A nil db disables transactional deletes; the sequence
// then runs directly on the store.
func NewGenerationService(
	tasks store.TaskStore,
	queue JobQueue,
	settings SettingsSource,
	db *sql.DB,
	cfg config.GenerationConfig,
	log *slog.Logger,
) *GenerationService {
	if tasks == nil {
		panic("task store cannot be nil")
	}
	if queue == nil {
		panic("job queue cannot be nil")
	}
	if settings == nil {
		panic("settings source cannot be nil")
	}
	if log == nil {
		log = slog.Default()
	}

	return &GenerationService{
		tasks:    tasks,
		queue:    queue,
		settings: settings,
		db:       db,
		cfg:      cfg,
		logger:   log.With(slog.String("component", "generation_service")),
	}
}

// Enqueue validates the request, persists a queued task record, and appends
// the job to the worker queue. The returned task snapshot carries the id the
// caller polls with; processing happens asynchronously.
func (s *GenerationService) Enqueue(ctx context.Context, req GenerateRequest) (*domain.GenerationTask, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	req = s.withDefaults(req)
	if err := s.check(req); err != nil {
		return nil, err
	}

	t, err := domain.NewGenerationTask(req.Prompt, req.Duration, req.GuidanceScale, req.Temperature)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidRequest, err)
	}
	t.ModelID = req.ModelID
	t.ConditioningPath = req.ConditioningPath

	if err := s.tasks.Create(ctx, t); err != nil {
		log.Error("failed to persist task",
			slog.String("task_id", t.ID.String()),
			slog.String("error", err.Error()))
		return nil, fmt.Errorf("persisting task: %w", err)
	}

	s.queue.Enqueue(task.NewJob(t))

	log.Info("task enqueued",
		slog.String("task_id", t.ID.String()),
		slog.Float64("duration", t.Duration))
	return t, nil
}

// Validate reports whether the request would be accepted by Enqueue,
// without persisting anything. Defaults are applied the same way.
func (s *GenerationService) Validate(req GenerateRequest) error {
	return s.check(s.withDefaults(req))
}

// Get returns the task snapshot for id. Store sentinels pass through.
func (s *GenerationService) Get(ctx context.Context, id uuid.UUID) (*domain.GenerationTask, error) {
	return s.tasks.GetByID(ctx, id)
}

// List returns all task snapshots, newest first.
func (s *GenerationService) List(ctx context.Context) ([]*domain.GenerationTask, error) {
	return s.tasks.List(ctx)
}

// Delete removes the task's audio file, then its record. A file already
// gone from disk is not an error; a record already gone surfaces
// store.ErrTaskNotFound. With a database handle present the read and the
// record delete run in one transaction, so the record either survives
// intact or is gone along with its file.
func (s *GenerationService) Delete(ctx context.Context, id uuid.UUID) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	var err error
	if s.db == nil {
		err = s.deleteTask(ctx, s.tasks, id)
	} else {
		err = store.RunInTransaction(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
			return s.deleteTask(ctx, s.tasks.WithTx(tx), id)
		})
	}
	if err != nil {
		return err
	}

	log.Info("task deleted", slog.String("task_id", id.String()))
	return nil
}

// deleteTask runs the file-then-record removal over the given store.
func (s *GenerationService) deleteTask(ctx context.Context, tasks store.TaskStore, id uuid.UUID) error {
	t, err := tasks.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if t.FilePath != "" {
		if err := os.Remove(t.FilePath); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("removing audio file %s: %w", t.FilePath, err)
		}
	}

	return tasks.Delete(ctx, id)
}

// AudioPath returns the on-disk audio file for a completed task. Tasks that
// have not completed, or whose file is missing, report ErrTaskNotReady.
func (s *GenerationService) AudioPath(ctx context.Context, id uuid.UUID) (string, error) {
	t, err := s.tasks.GetByID(ctx, id)
	if err != nil {
		return "", err
	}
	if t.Status != domain.TaskStatusCompleted || t.FilePath == "" {
		return "", fmt.Errorf("%w: task %s is %s", ErrTaskNotReady, id, t.Status)
	}
	if _, err := os.Stat(t.FilePath); err != nil {
		return "", fmt.Errorf("%w: audio file missing from disk", ErrTaskNotReady)
	}
	return t.FilePath, nil
}

// withDefaults fills unset numeric fields from the current settings.
func (s *GenerationService) withDefaults(req GenerateRequest) GenerateRequest {
	defaults := s.settings.Get()
	if req.Duration == 0 {
		req.Duration = defaults.Duration
	}
	if req.GuidanceScale == 0 {
		req.GuidanceScale = defaults.GuidanceScale
	}
	if req.Temperature == 0 {
		req.Temperature = defaults.Temperature
	}
	return req
}

func (s *GenerationService) check(req GenerateRequest) error {
	if strings.TrimSpace(req.Prompt) == "" {
		return fmt.Errorf("%w: prompt must not be empty", ErrInvalidRequest)
	}
	if req.Duration < s.cfg.MinDuration || req.Duration > s.cfg.MaxDuration {
		return fmt.Errorf("%w: duration %.1fs outside [%.1fs, %.1fs]",
			ErrInvalidRequest, req.Duration, s.cfg.MinDuration, s.cfg.MaxDuration)
	}
	if req.GuidanceScale <= 0 {
		return fmt.Errorf("%w: guidance scale must be positive", ErrInvalidRequest)
	}
	if req.Temperature <= 0 {
		return fmt.Errorf("%w: temperature must be positive", ErrInvalidRequest)
	}
	return nil
}
