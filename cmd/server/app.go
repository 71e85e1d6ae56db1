package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/cadenza-audio/cadenza-api/internal/audio"
	"github.com/cadenza-audio/cadenza-api/internal/config"
	"github.com/cadenza-audio/cadenza-api/internal/domain"
	"github.com/cadenza-audio/cadenza-api/internal/platform/gemini"
	"github.com/cadenza-audio/cadenza-api/internal/platform/musicgen"
	"github.com/cadenza-audio/cadenza-api/internal/platform/postgres"
	"github.com/cadenza-audio/cadenza-api/internal/prompts"
	"github.com/cadenza-audio/cadenza-api/internal/service"
	"github.com/cadenza-audio/cadenza-api/internal/settings"
	"github.com/cadenza-audio/cadenza-api/internal/store"
	"github.com/cadenza-audio/cadenza-api/internal/task"
	"github.com/cadenza-audio/cadenza-api/internal/training"
)

// application holds the wired dependencies for the server process.
type application struct {
	config *config.Config
	logger *slog.Logger
	db     *sql.DB

	worker *task.Worker

	generationService  *service.GenerationService
	batchService       *service.BatchService
	modelService       *service.ModelService
	trainingController *training.Controller
	templateLibrary    *prompts.Library
	settingsStore      *settings.Store
	exporter           *audio.Exporter
	separator          *audio.StemSeparator
}

// newApplication opens the database, runs migrations, and builds every
// service the router serves. The generation worker is constructed but not
// started; the caller owns its lifecycle.
func newApplication(ctx context.Context, cfg *config.Config, logg *slog.Logger) (*application, error) {
	db, err := openDatabase(ctx, cfg.Database.URL, logg)
	if err != nil {
		return nil, err
	}

	if err := runMigrations(db, logg); err != nil {
		closeDatabase(db, logg)
		return nil, err
	}

	taskStore := postgres.NewPostgresTaskStore(db, logg)
	checkpointStore := postgres.NewPostgresCheckpointStore(db, logg)

	warnStaleQueuedTasks(ctx, taskStore, logg)

	settingsStore, err := settings.NewStore(
		cfg.Settings.Path,
		settings.DefaultsFromConfig(cfg.Generation, cfg.Audio),
		cfg.Generation.MinDuration,
		cfg.Generation.MaxDuration,
		logg,
	)
	if err != nil {
		closeDatabase(db, logg)
		return nil, fmt.Errorf("opening settings store: %w", err)
	}

	templateLibrary, err := prompts.NewLibrary(cfg.Templates.Path, logg)
	if err != nil {
		closeDatabase(db, logg)
		return nil, fmt.Errorf("opening template library: %w", err)
	}

	runner := audio.NewExecRunner()
	generator := musicgen.NewCLIGenerator(cfg.Generation, runner, logg)

	queue := task.NewQueue(logg)
	worker := task.NewWorker(queue, taskStore, generator, cfg.Generation.OutputDir, logg)

	generationService := service.NewGenerationService(taskStore, queue, settingsStore, db, cfg.Generation, logg)
	batchService := service.NewBatchService(generationService, templateLibrary, logg)
	modelService := service.NewModelService(checkpointStore, db, logg)

	captioner, err := buildCaptioner(ctx, cfg, logg)
	if err != nil {
		closeDatabase(db, logg)
		return nil, err
	}

	slicer := audio.NewSlicer(cfg.Audio.FFmpegBinary, runner, logg)
	trainingController := training.NewController(cfg.Training, slicer, captioner, checkpointStore, logg)

	return &application{
		config:             cfg,
		logger:             logg,
		db:                 db,
		worker:             worker,
		generationService:  generationService,
		batchService:       batchService,
		modelService:       modelService,
		trainingController: trainingController,
		templateLibrary:    templateLibrary,
		settingsStore:      settingsStore,
		exporter:           audio.NewExporter(cfg.Audio.FFmpegBinary, cfg.Audio.FFprobeBinary, runner, logg),
		separator:          audio.NewStemSeparator(cfg.Audio.DemucsBinary, runner, logg),
	}, nil
}

// buildCaptioner selects the chunk captioner for dataset preprocessing: the
// Gemini client when an API key is configured, a static captioner otherwise.
func buildCaptioner(ctx context.Context, cfg *config.Config, logg *slog.Logger) (training.Captioner, error) {
	if cfg.LLM.GeminiAPIKey == "" {
		logg.Info("no LLM API key configured, using static chunk captions")
		return training.StaticCaptioner{}, nil
	}

	captioner, err := gemini.NewChunkCaptioner(ctx, cfg.LLM, logg)
	if err != nil {
		return nil, fmt.Errorf("creating gemini captioner: %w", err)
	}
	return captioner, nil
}

// warnStaleQueuedTasks reports records stuck in queued from a previous
// process. Pending queue entries live only in memory, so these records will
// never be picked up again; they stay visible until explicitly deleted.
func warnStaleQueuedTasks(ctx context.Context, tasks store.TaskStore, logg *slog.Logger) {
	count, err := tasks.CountByStatus(ctx, domain.TaskStatusQueued)
	if err != nil {
		logg.Warn("could not count stale queued tasks", slog.String("error", err.Error()))
		return
	}
	if count > 0 {
		logg.Warn("found queued tasks from a previous run that will not be processed",
			slog.Int("count", count))
	}
}

// cleanup releases resources after the server stops. The worker is stopped
// first so no generation is mid-flight when the database closes.
func (app *application) cleanup() {
	app.worker.Stop()
	closeDatabase(app.db, app.logger)
}
