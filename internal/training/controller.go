package training

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/cadenza-audio/cadenza-api/internal/config"
	"github.com/cadenza-audio/cadenza-api/internal/domain"
	"github.com/cadenza-audio/cadenza-api/internal/store"
)

// audioExtensions are the source formats dataset preprocessing accepts.
var audioExtensions = map[string]bool{
	".wav":  true,
	".mp3":  true,
	".flac": true,
	".ogg":  true,
	".m4a":  true,
	".aif":  true,
	".aiff": true,
}

// ChunkSlicer cuts a source file into fixed-duration chunks and returns
// their paths in time order.
type ChunkSlicer interface {
	SliceFile(ctx context.Context, inputPath, outDir string, chunkSeconds float64) ([]string, error)
}

// Params are the knobs for one training run. Zero values fall back to the
// configured defaults.
type Params struct {
	Epochs       int     `json:"epochs"`
	LearningRate float64 `json:"learning_rate"`
	BatchSize    int     `json:"batch_size"`
}

// epochRunner executes one epoch and reports its loss. Swapped in tests.
type epochRunner func(ctx context.Context, epoch int, params Params) (float64, error)

// Controller owns the training pipeline. A single in-progress flag covers
// both dataset preprocessing and the epoch loop, so only one run of either
// kind is ever active; generation scheduling is unaffected and runs
// concurrently.
type Controller struct {
	cfg         config.TrainingConfig
	slicer      ChunkSlicer
	captioner   Captioner
	checkpoints store.CheckpointStore
	logger      *slog.Logger

	active atomic.Bool
	stop   atomic.Bool
	board  *statusBoard

	runEpoch epochRunner
}

// NewController creates a training Controller. Panics if slicer, captioner,
// or checkpoints is nil.
func NewController(cfg config.TrainingConfig, slicer ChunkSlicer, captioner Captioner, checkpoints store.CheckpointStore, log *slog.Logger) *Controller {
	if slicer == nil {
		panic("slicer cannot be nil")
	}
	if captioner == nil {
		panic("captioner cannot be nil")
	}
	if checkpoints == nil {
		panic("checkpoint store cannot be nil")
	}
	if log == nil {
		log = slog.Default()
	}
	c := &Controller{
		cfg:         cfg,
		slicer:      slicer,
		captioner:   captioner,
		checkpoints: checkpoints,
		logger:      log.With(slog.String("component", "training_controller")),
		board:       newStatusBoard(),
	}
	c.runEpoch = c.paceEpoch
	return c
}

// Status returns a snapshot of the pipeline state.
func (c *Controller) Status() Status {
	return c.board.snapshot()
}

// Stop requests cooperative cancellation of the active run. The loop
// observes it before its next file or epoch; Stop never blocks and is a
// no-op when nothing is running.
func (c *Controller) Stop() {
	if !c.active.Load() {
		return
	}
	c.stop.Store(true)
	c.board.update(func(s *Status) {
		s.Message = "Stop requested"
	})
	c.logger.Info("stop requested")
}

// ProcessDataset scans the dataset directory and starts preprocessing in
// the background. Fails immediately with ErrAlreadyInProgress if a run is
// active, or ErrNoInputFiles if the directory holds no audio, recording
// the latter in the status.
func (c *Controller) ProcessDataset(ctx context.Context) error {
	if !c.active.CompareAndSwap(false, true) {
		return ErrAlreadyInProgress
	}
	c.stop.Store(false)

	files, err := listAudioFiles(c.cfg.DatasetDir)
	if err != nil {
		c.active.Store(false)
		c.board.update(func(s *Status) {
			s.State = StateFailed
			s.Message = fmt.Sprintf("Dataset scan failed: %v", err)
		})
		return fmt.Errorf("scanning dataset directory: %w", err)
	}
	if len(files) == 0 {
		c.active.Store(false)
		c.board.update(func(s *Status) {
			s.State = StateFailed
			s.Message = fmt.Sprintf("No audio files found in %s", c.cfg.DatasetDir)
		})
		return ErrNoInputFiles
	}

	c.board.update(func(s *Status) {
		s.State = StateProcessingDataset
		s.Progress = 0
		s.Epoch = 0
		s.TotalEpochs = 0
		s.Loss = nil
		s.Message = fmt.Sprintf("Processing %d files", len(files))
	})
	c.logger.Info("dataset processing started", slog.Int("files", len(files)))

	go c.runDatasetProcessing(context.WithoutCancel(ctx), files)
	return nil
}

// runDatasetProcessing slices and captions every source file, then writes
// the manifest. Runs on its own goroutine; clears the in-progress flag on
// every exit path.
func (c *Controller) runDatasetProcessing(ctx context.Context, files []string) {
	defer c.active.Store(false)

	if err := os.MkdirAll(c.cfg.ChunksDir, 0o755); err != nil {
		c.failRun(fmt.Sprintf("Creating chunks directory: %v", err))
		return
	}

	var entries []ManifestEntry
	for i, file := range files {
		if c.stop.Load() {
			c.board.update(func(s *Status) {
				s.State = StateIdle
				s.Message = fmt.Sprintf("Dataset processing stopped after %d/%d files", i, len(files))
			})
			c.logger.Info("dataset processing stopped", slog.Int("files_done", i))
			return
		}

		chunks, err := c.slicer.SliceFile(ctx, file, c.cfg.ChunksDir, c.cfg.ChunkDuration)
		if err != nil {
			c.failRun(fmt.Sprintf("Slicing %s: %v", filepath.Base(file), err))
			return
		}
		for j, chunk := range chunks {
			caption, err := c.captioner.Caption(ctx, filepath.Base(file), j, len(chunks))
			if err != nil {
				c.logger.Warn("caption failed, using static fallback",
					slog.String("chunk", filepath.Base(chunk)),
					slog.String("error", err.Error()))
				caption, _ = StaticCaptioner{}.Caption(ctx, filepath.Base(file), j, len(chunks))
			}
			entries = append(entries, ManifestEntry{ChunkPath: chunk, Caption: caption})
		}

		done := i + 1
		c.board.update(func(s *Status) {
			s.Progress = float64(done) / float64(len(files)) * 0.5
			s.Message = fmt.Sprintf("Processed %d/%d files", done, len(files))
		})
	}

	manifest := &Manifest{Entries: entries, SourceFiles: len(files), CreatedAt: time.Now().UTC()}
	if err := WriteManifest(ManifestPath(c.cfg.ChunksDir), manifest); err != nil {
		c.failRun(fmt.Sprintf("Writing manifest: %v", err))
		return
	}

	c.board.update(func(s *Status) {
		s.State = StateIdle
		s.Progress = 1.0
		s.Message = fmt.Sprintf("Dataset processed: %d chunks", len(entries))
	})
	c.logger.Info("dataset processing finished",
		slog.Int("files", len(files)),
		slog.Int("chunks", len(entries)))
}

// StartTraining begins an epoch loop in the background. Fails immediately
// with ErrAlreadyInProgress if a run is active, or ErrDatasetNotReady if no
// manifest exists from a prior preprocessing run.
func (c *Controller) StartTraining(ctx context.Context, params Params) error {
	if !c.active.CompareAndSwap(false, true) {
		return ErrAlreadyInProgress
	}
	c.stop.Store(false)

	manifest, err := ReadManifest(ManifestPath(c.cfg.ChunksDir))
	if err != nil || len(manifest.Entries) == 0 {
		c.active.Store(false)
		c.board.update(func(s *Status) {
			s.State = StateFailed
			s.Message = "Dataset not ready, run dataset processing first"
		})
		return ErrDatasetNotReady
	}

	params = c.normalizeParams(params)
	c.board.update(func(s *Status) {
		s.State = StateTraining
		s.Progress = 0
		s.Epoch = 0
		s.TotalEpochs = params.Epochs
		s.Loss = nil
		s.Message = fmt.Sprintf("Training started on %d chunks", len(manifest.Entries))
	})
	c.logger.Info("training started",
		slog.Int("epochs", params.Epochs),
		slog.Float64("learning_rate", params.LearningRate),
		slog.Int("batch_size", params.BatchSize),
		slog.Int("chunks", len(manifest.Entries)))

	go c.runTraining(context.WithoutCancel(ctx), params)
	return nil
}

// runTraining drives the epoch loop to a terminal state. Early stop counts
// as success and still produces a checkpoint. Runs on its own goroutine;
// clears the in-progress flag on every exit path.
func (c *Controller) runTraining(ctx context.Context, params Params) {
	defer c.active.Store(false)

	completed := 0
	lastLoss := 0.0
	for epoch := 1; epoch <= params.Epochs; epoch++ {
		if c.stop.Load() {
			c.logger.Info("training stopped early", slog.Int("epochs_done", completed))
			break
		}

		loss, err := c.runEpoch(ctx, epoch, params)
		if err != nil {
			c.failRun(fmt.Sprintf("Training failed at epoch %d: %v", epoch, err))
			return
		}

		completed = epoch
		lastLoss = loss
		c.board.update(func(s *Status) {
			s.Epoch = epoch
			s.Progress = float64(epoch) / float64(params.Epochs)
			s.Loss = &loss
			s.Message = fmt.Sprintf("Training epoch %d/%d", epoch, params.Epochs)
		})
	}

	checkpoint, err := c.saveCheckpoint(ctx, params, completed, lastLoss)
	if err != nil {
		c.failRun(fmt.Sprintf("Saving checkpoint: %v", err))
		return
	}

	c.board.update(func(s *Status) {
		s.State = StateCompleted
		s.Progress = 1.0
		s.Message = fmt.Sprintf("Training complete: %s", checkpoint.Name)
	})
	c.logger.Info("training finished",
		slog.Int("epochs_done", completed),
		slog.String("checkpoint_id", checkpoint.ID.String()))
}

// saveCheckpoint writes the model artifact metadata and persists the
// checkpoint record.
func (c *Controller) saveCheckpoint(ctx context.Context, params Params, epochsDone int, finalLoss float64) (*domain.ModelCheckpoint, error) {
	if err := os.MkdirAll(c.cfg.ModelsDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating models directory: %w", err)
	}

	now := time.Now().UTC()
	artifactPath := filepath.Join(c.cfg.ModelsDir, fmt.Sprintf("checkpoint_%d.json", now.UnixNano()))
	artifact := map[string]interface{}{
		"epochs":        epochsDone,
		"learning_rate": params.LearningRate,
		"batch_size":    params.BatchSize,
		"final_loss":    finalLoss,
		"created_at":    now.Format(time.RFC3339),
	}
	data, err := json.MarshalIndent(artifact, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding checkpoint artifact: %w", err)
	}
	if err := os.WriteFile(artifactPath, data, 0o644); err != nil {
		return nil, fmt.Errorf("writing checkpoint artifact: %w", err)
	}

	name := fmt.Sprintf("Fine-tuned Model %s", now.Format("2006-01-02 15:04"))
	description := fmt.Sprintf("Trained for %d epochs", epochsDone)
	checkpoint, err := domain.NewModelCheckpoint(name, description, artifactPath, false)
	if err != nil {
		return nil, err
	}
	if err := c.checkpoints.Create(ctx, checkpoint); err != nil {
		return nil, err
	}
	return checkpoint, nil
}

// paceEpoch is the default epoch runner: it paces one simulated
// fine-tuning epoch for the configured duration and reports a decaying
// synthetic loss.
func (c *Controller) paceEpoch(_ context.Context, epoch int, _ Params) (float64, error) {
	time.Sleep(c.cfg.EpochDuration)
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	return 2.0/float64(epoch+1) + rng.Float64()*0.05, nil
}

// failRun records a terminal failure for the active run.
func (c *Controller) failRun(message string) {
	c.board.update(func(s *Status) {
		s.State = StateFailed
		s.Message = message
	})
	c.logger.Error("training run failed", slog.String("message", message))
}

// normalizeParams substitutes configured defaults for missing values and
// clamps epochs to the configured ceiling.
func (c *Controller) normalizeParams(p Params) Params {
	if p.Epochs <= 0 {
		p.Epochs = c.cfg.DefaultEpochs
	}
	if p.Epochs > c.cfg.MaxEpochs {
		c.logger.Warn("epoch count clamped",
			slog.Int("requested", p.Epochs),
			slog.Int("max", c.cfg.MaxEpochs))
		p.Epochs = c.cfg.MaxEpochs
	}
	if p.LearningRate <= 0 {
		p.LearningRate = c.cfg.DefaultLearningRate
	}
	if p.BatchSize <= 0 {
		p.BatchSize = c.cfg.DefaultBatchSize
	}
	return p
}

// listAudioFiles returns the audio files directly inside dir, sorted by
// name for a stable processing order.
func listAudioFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if audioExtensions[strings.ToLower(filepath.Ext(entry.Name()))] {
			files = append(files, filepath.Join(dir, entry.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}
