package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/cadenza-audio/cadenza-api/internal/audio"
	"github.com/cadenza-audio/cadenza-api/internal/domain"
	"github.com/cadenza-audio/cadenza-api/internal/generation"
	"github.com/cadenza-audio/cadenza-api/internal/store"
)

// Progress checkpoints persisted while a task moves through the worker.
// Completion sets progress to 1.0 and failure resets it to 0.
const (
	progressStarted        = 0.1
	progressParamsApplied  = 0.3
	progressAudioGenerated = 0.8
)

// Worker drains the queue with a single goroutine, running one generation
// at a time. Start and Stop bound its lifecycle; Stop interrupts waiting on
// the queue but lets an in-flight job run to completion.
type Worker struct {
	queue     *Queue
	tasks     store.TaskStore
	generator generation.Generator
	outputDir string
	logger    *slog.Logger

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewWorker creates a Worker writing finished tracks into outputDir.
// Panics if queue, tasks, or generator is nil.
func NewWorker(queue *Queue, tasks store.TaskStore, generator generation.Generator, outputDir string, log *slog.Logger) *Worker {
	if queue == nil {
		panic("queue cannot be nil")
	}
	if tasks == nil {
		panic("task store cannot be nil")
	}
	if generator == nil {
		panic("generator cannot be nil")
	}
	if log == nil {
		log = slog.Default()
	}
	return &Worker{
		queue:     queue,
		tasks:     tasks,
		generator: generator,
		outputDir: outputDir,
		logger:    log.With(slog.String("component", "generation_worker")),
	}
}

// Start launches the worker goroutine. Returns an error if it is already
// running.
func (w *Worker) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return errors.New("worker already started")
	}

	ctx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel
	w.done = make(chan struct{})
	w.running = true

	go w.run(ctx, w.done)
	return nil
}

// Stop signals the worker to exit and waits for it. An in-flight job
// finishes first. Safe to call when not running.
func (w *Worker) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	cancel, done := w.cancel, w.done
	w.running = false
	w.mu.Unlock()

	cancel()
	<-done
}

// run is the worker loop. ctx only interrupts the dequeue wait; each
// claimed job processes under a fresh context so shutdown cannot corrupt
// an in-flight generation.
func (w *Worker) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	w.logger.Info("generation worker started")

	for {
		job, err := w.queue.Dequeue(ctx)
		if err != nil {
			w.logger.Info("generation worker stopped")
			return
		}
		w.process(context.Background(), job)
	}
}

// process runs one job to a terminal status. Failures mark the task failed
// and return; the loop survives every job error.
func (w *Worker) process(ctx context.Context, job Job) {
	log := w.logger.With(slog.String("task_id", job.TaskID.String()))

	rec, err := w.tasks.GetByID(ctx, job.TaskID)
	if err != nil {
		if errors.Is(err, store.ErrTaskNotFound) {
			log.Info("task deleted before processing, skipping")
		} else {
			log.Error("loading task record", slog.String("error", err.Error()))
		}
		return
	}

	start := time.Now()
	if err := w.advance(ctx, rec, progressStarted); err != nil {
		w.fail(ctx, log, rec, err)
		return
	}
	log.Info("processing task", slog.String("prompt", rec.Prompt), slog.Float64("duration", rec.Duration))

	if job.ModelID != nil {
		w.fail(ctx, log, rec, fmt.Errorf("%w: loading fine-tuned checkpoints", generation.ErrNotImplemented))
		return
	}
	if job.ConditioningPath != "" {
		w.fail(ctx, log, rec, fmt.Errorf("%w: audio conditioning", generation.ErrNotImplemented))
		return
	}

	req := generation.Request{
		Prompt:        job.Prompt,
		Duration:      job.Duration,
		GuidanceScale: job.GuidanceScale,
		Temperature:   job.Temperature,
	}
	if err := w.advance(ctx, rec, progressParamsApplied); err != nil {
		w.fail(ctx, log, rec, err)
		return
	}

	waveform, err := w.generator.Generate(ctx, req)
	if err != nil {
		w.fail(ctx, log, rec, err)
		return
	}
	if err := w.advance(ctx, rec, progressAudioGenerated); err != nil {
		w.fail(ctx, log, rec, err)
		return
	}

	outputPath := filepath.Join(w.outputDir, job.TaskID.String()+".wav")
	if err := audio.WriteWAV(outputPath, waveform); err != nil {
		w.fail(ctx, log, rec, fmt.Errorf("writing output: %w", err))
		return
	}

	if err := rec.MarkCompleted(outputPath); err != nil {
		w.fail(ctx, log, rec, err)
		return
	}
	if err := w.tasks.Update(ctx, rec); err != nil {
		log.Error("persisting completion", slog.String("error", err.Error()))
		return
	}

	log.Info("task completed",
		slog.String("file_path", outputPath),
		slog.Float64("audio_seconds", waveform.DurationSeconds()),
		slog.Duration("elapsed", time.Since(start)))
}

// advance moves the record to processing at the given checkpoint and
// persists it.
func (w *Worker) advance(ctx context.Context, rec *domain.GenerationTask, progress float64) error {
	if err := rec.MarkProcessing(progress); err != nil {
		return err
	}
	if err := w.tasks.Update(ctx, rec); err != nil {
		return fmt.Errorf("persisting progress: %w", err)
	}
	return nil
}

// fail finalizes the record as failed with the cause's message. Persistence
// is best effort; the worker keeps running either way.
func (w *Worker) fail(ctx context.Context, log *slog.Logger, rec *domain.GenerationTask, cause error) {
	log.Error("task failed", slog.String("error", cause.Error()))

	if err := rec.MarkFailed(cause.Error()); err != nil {
		log.Error("marking task failed", slog.String("error", err.Error()))
		return
	}
	if err := w.tasks.Update(ctx, rec); err != nil {
		log.Error("persisting failure", slog.String("error", err.Error()))
	}
}
