package training

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cadenza-audio/cadenza-api/internal/config"
	"github.com/cadenza-audio/cadenza-api/internal/domain"
	"github.com/cadenza-audio/cadenza-api/internal/store"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockSlicer implements ChunkSlicer, recording inputs and delegating to
// SliceFn when set. The default produces two chunk paths per file.
type mockSlicer struct {
	mu      sync.Mutex
	inputs  []string
	SliceFn func(ctx context.Context, inputPath, outDir string, chunkSeconds float64) ([]string, error)
}

func (m *mockSlicer) SliceFile(ctx context.Context, inputPath, outDir string, chunkSeconds float64) ([]string, error) {
	m.mu.Lock()
	m.inputs = append(m.inputs, inputPath)
	m.mu.Unlock()
	if m.SliceFn != nil {
		return m.SliceFn(ctx, inputPath, outDir, chunkSeconds)
	}
	base := strings.TrimSuffix(filepath.Base(inputPath), filepath.Ext(inputPath))
	return []string{
		filepath.Join(outDir, base+"_chunk_000.wav"),
		filepath.Join(outDir, base+"_chunk_001.wav"),
	}, nil
}

func (m *mockSlicer) calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.inputs))
	copy(out, m.inputs)
	return out
}

// mockCaptioner implements Captioner with an overridable CaptionFn.
type mockCaptioner struct {
	CaptionFn func(ctx context.Context, sourceName string, chunkIndex, chunkCount int) (string, error)
}

func (m *mockCaptioner) Caption(ctx context.Context, sourceName string, chunkIndex, chunkCount int) (string, error) {
	if m.CaptionFn != nil {
		return m.CaptionFn(ctx, sourceName, chunkIndex, chunkCount)
	}
	return fmt.Sprintf("test caption %d/%d for %s", chunkIndex+1, chunkCount, sourceName), nil
}

// mockCheckpointStore is an in-memory store.CheckpointStore.
type mockCheckpointStore struct {
	mu      sync.Mutex
	records []*domain.ModelCheckpoint

	CreateFn func(ctx context.Context, checkpoint *domain.ModelCheckpoint) error
}

func (m *mockCheckpointStore) Create(ctx context.Context, checkpoint *domain.ModelCheckpoint) error {
	if m.CreateFn != nil {
		return m.CreateFn(ctx, checkpoint)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := *checkpoint
	m.records = append(m.records, &clone)
	return nil
}

func (m *mockCheckpointStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.ModelCheckpoint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, rec := range m.records {
		if rec.ID == id {
			clone := *rec
			return &clone, nil
		}
	}
	return nil, store.ErrCheckpointNotFound
}

func (m *mockCheckpointStore) List(ctx context.Context) ([]*domain.ModelCheckpoint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*domain.ModelCheckpoint, 0, len(m.records))
	for _, rec := range m.records {
		clone := *rec
		out = append(out, &clone)
	}
	return out, nil
}

func (m *mockCheckpointStore) Delete(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, rec := range m.records {
		if rec.ID == id {
			m.records = append(m.records[:i], m.records[i+1:]...)
			return nil
		}
	}
	return store.ErrCheckpointNotFound
}

func (m *mockCheckpointStore) WithTx(tx *sql.Tx) store.CheckpointStore { return m }

func (m *mockCheckpointStore) all() []*domain.ModelCheckpoint {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*domain.ModelCheckpoint, len(m.records))
	copy(out, m.records)
	return out
}

// testEnv bundles a controller with its collaborators and directories.
type testEnv struct {
	controller  *Controller
	slicer      *mockSlicer
	captioner   *mockCaptioner
	checkpoints *mockCheckpointStore
	cfg         config.TrainingConfig
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	root := t.TempDir()
	cfg := config.TrainingConfig{
		DatasetDir:          filepath.Join(root, "dataset"),
		ChunksDir:           filepath.Join(root, "chunks"),
		ModelsDir:           filepath.Join(root, "models"),
		ChunkDuration:       30,
		DefaultEpochs:       2,
		MaxEpochs:           50,
		DefaultLearningRate: 1e-4,
		DefaultBatchSize:    4,
		EpochDuration:       time.Millisecond,
	}
	require.NoError(t, os.MkdirAll(cfg.DatasetDir, 0o755))

	slicer := &mockSlicer{}
	captioner := &mockCaptioner{}
	checkpoints := &mockCheckpointStore{}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	return &testEnv{
		controller:  NewController(cfg, slicer, captioner, checkpoints, log),
		slicer:      slicer,
		captioner:   captioner,
		checkpoints: checkpoints,
		cfg:         cfg,
	}
}

// seedDataset drops empty source files into the dataset directory.
func (e *testEnv) seedDataset(t *testing.T, names ...string) {
	t.Helper()
	for _, name := range names {
		require.NoError(t, os.WriteFile(filepath.Join(e.cfg.DatasetDir, name), []byte("RIFF"), 0o644))
	}
}

// seedManifest writes a manifest as if preprocessing had run.
func (e *testEnv) seedManifest(t *testing.T, chunkCount int) {
	t.Helper()
	m := &Manifest{SourceFiles: 1, CreatedAt: time.Now().UTC()}
	for i := 0; i < chunkCount; i++ {
		m.Entries = append(m.Entries, ManifestEntry{
			ChunkPath: filepath.Join(e.cfg.ChunksDir, fmt.Sprintf("chunk_%03d.wav", i)),
			Caption:   fmt.Sprintf("seed caption %d", i),
		})
	}
	require.NoError(t, WriteManifest(ManifestPath(e.cfg.ChunksDir), m))
}

// waitForRun blocks until the controller's background run finishes.
func (e *testEnv) waitForRun(t *testing.T) {
	t.Helper()
	require.Eventually(t, func() bool {
		return !e.controller.active.Load()
	}, 5*time.Second, 5*time.Millisecond, "background run did not finish")
}

func TestProcessDatasetProducesManifest(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.seedDataset(t, "b_take.wav", "a_take.wav")

	require.NoError(t, env.controller.ProcessDataset(context.Background()))
	env.waitForRun(t)

	status := env.controller.Status()
	assert.Equal(t, StateIdle, status.State)
	assert.InDelta(t, 1.0, status.Progress, 1e-9)
	assert.Equal(t, "Dataset processed: 4 chunks", status.Message)

	manifest, err := ReadManifest(ManifestPath(env.cfg.ChunksDir))
	require.NoError(t, err)
	require.Len(t, manifest.Entries, 4)
	assert.Equal(t, 2, manifest.SourceFiles)
	for _, entry := range manifest.Entries {
		assert.NotEmpty(t, entry.ChunkPath)
		assert.NotEmpty(t, entry.Caption)
	}

	// Files process in sorted name order.
	calls := env.slicer.calls()
	require.Len(t, calls, 2)
	assert.Equal(t, filepath.Join(env.cfg.DatasetDir, "a_take.wav"), calls[0])
	assert.Equal(t, filepath.Join(env.cfg.DatasetDir, "b_take.wav"), calls[1])
}

func TestProcessDatasetEmptyDirectory(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)

	err := env.controller.ProcessDataset(context.Background())
	assert.ErrorIs(t, err, ErrNoInputFiles)

	status := env.controller.Status()
	assert.Equal(t, StateFailed, status.State)
	assert.Contains(t, status.Message, "No audio files found")
	assert.Zero(t, status.Progress)
}

func TestProcessDatasetIgnoresNonAudioFiles(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.seedDataset(t, "notes.txt", "cover.png")

	err := env.controller.ProcessDataset(context.Background())
	assert.ErrorIs(t, err, ErrNoInputFiles)
}

func TestConcurrentRunsRejected(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.seedDataset(t, "one.wav")

	started := make(chan struct{}, 1)
	gate := make(chan struct{})
	env.slicer.SliceFn = func(ctx context.Context, inputPath, outDir string, chunkSeconds float64) ([]string, error) {
		started <- struct{}{}
		<-gate
		return []string{filepath.Join(outDir, "one_chunk_000.wav")}, nil
	}

	require.NoError(t, env.controller.ProcessDataset(context.Background()))
	<-started

	assert.ErrorIs(t, env.controller.ProcessDataset(context.Background()), ErrAlreadyInProgress)
	assert.ErrorIs(t, env.controller.StartTraining(context.Background(), Params{}), ErrAlreadyInProgress)

	// The rejected calls must not disturb the active run's status.
	assert.Equal(t, StateProcessingDataset, env.controller.Status().State)

	close(gate)
	env.waitForRun(t)
	assert.Equal(t, StateIdle, env.controller.Status().State)
}

func TestProcessDatasetStopsBetweenFiles(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.seedDataset(t, "a.wav", "b.wav", "c.wav")

	started := make(chan struct{}, 1)
	gate := make(chan struct{})
	env.slicer.SliceFn = func(ctx context.Context, inputPath, outDir string, chunkSeconds float64) ([]string, error) {
		started <- struct{}{}
		<-gate
		return []string{filepath.Join(outDir, "chunk_000.wav")}, nil
	}

	require.NoError(t, env.controller.ProcessDataset(context.Background()))
	<-started
	env.controller.Stop()
	close(gate)
	env.waitForRun(t)

	status := env.controller.Status()
	assert.Equal(t, StateIdle, status.State)
	assert.Contains(t, status.Message, "stopped")
	assert.Len(t, env.slicer.calls(), 1, "stop must take effect before the next file")

	_, err := ReadManifest(ManifestPath(env.cfg.ChunksDir))
	assert.Error(t, err, "an interrupted run must not write a manifest")
}

func TestProcessDatasetCaptionFallback(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.seedDataset(t, "lofi_jam.wav")
	env.captioner.CaptionFn = func(ctx context.Context, sourceName string, chunkIndex, chunkCount int) (string, error) {
		return "", errors.New("api unavailable")
	}

	require.NoError(t, env.controller.ProcessDataset(context.Background()))
	env.waitForRun(t)

	manifest, err := ReadManifest(ManifestPath(env.cfg.ChunksDir))
	require.NoError(t, err)
	require.NotEmpty(t, manifest.Entries)
	for _, entry := range manifest.Entries {
		assert.Contains(t, entry.Caption, "Instrumental music")
		assert.Contains(t, entry.Caption, "lofi jam")
	}
}

func TestProcessDatasetSliceFailure(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.seedDataset(t, "broken.wav")
	env.slicer.SliceFn = func(ctx context.Context, inputPath, outDir string, chunkSeconds float64) ([]string, error) {
		return nil, errors.New("segment muxer exploded")
	}

	require.NoError(t, env.controller.ProcessDataset(context.Background()))
	env.waitForRun(t)

	status := env.controller.Status()
	assert.Equal(t, StateFailed, status.State)
	assert.Contains(t, status.Message, "broken.wav")
}

func TestStartTrainingWithoutManifest(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)

	err := env.controller.StartTraining(context.Background(), Params{Epochs: 3})
	assert.ErrorIs(t, err, ErrDatasetNotReady)

	status := env.controller.Status()
	assert.Equal(t, StateFailed, status.State)
	assert.Contains(t, status.Message, "Dataset not ready")

	// The flag must be clear so a corrected request can start.
	env.seedManifest(t, 2)
	require.NoError(t, env.controller.StartTraining(context.Background(), Params{Epochs: 1}))
	env.waitForRun(t)
}

func TestStartTrainingRunsEpochLoop(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.seedManifest(t, 3)

	var mu sync.Mutex
	var epochs []int
	env.controller.runEpoch = func(ctx context.Context, epoch int, params Params) (float64, error) {
		mu.Lock()
		epochs = append(epochs, epoch)
		mu.Unlock()
		return 1.0 / float64(epoch), nil
	}

	require.NoError(t, env.controller.StartTraining(context.Background(), Params{
		Epochs:       3,
		LearningRate: 5e-5,
		BatchSize:    8,
	}))
	env.waitForRun(t)

	status := env.controller.Status()
	assert.Equal(t, StateCompleted, status.State)
	assert.InDelta(t, 1.0, status.Progress, 1e-9)
	assert.Equal(t, 3, status.Epoch)
	assert.Equal(t, 3, status.TotalEpochs)
	require.NotNil(t, status.Loss)
	assert.InDelta(t, 1.0/3.0, *status.Loss, 1e-9)
	assert.Contains(t, status.Message, "Training complete")

	mu.Lock()
	assert.Equal(t, []int{1, 2, 3}, epochs)
	mu.Unlock()

	created := env.checkpoints.all()
	require.Len(t, created, 1)
	checkpoint := created[0]
	assert.Contains(t, checkpoint.Name, "Fine-tuned Model")
	assert.Equal(t, "Trained for 3 epochs", checkpoint.Description)
	assert.False(t, checkpoint.IsBase)
	_, statErr := os.Stat(checkpoint.FilePath)
	assert.NoError(t, statErr, "checkpoint artifact must exist")
}

func TestStartTrainingAppliesDefaults(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.seedManifest(t, 1)

	var mu sync.Mutex
	var got Params
	env.controller.runEpoch = func(ctx context.Context, epoch int, params Params) (float64, error) {
		mu.Lock()
		got = params
		mu.Unlock()
		return 0.5, nil
	}

	require.NoError(t, env.controller.StartTraining(context.Background(), Params{}))
	env.waitForRun(t)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, env.cfg.DefaultEpochs, got.Epochs)
	assert.InDelta(t, env.cfg.DefaultLearningRate, got.LearningRate, 1e-12)
	assert.Equal(t, env.cfg.DefaultBatchSize, got.BatchSize)
	assert.Equal(t, env.cfg.DefaultEpochs, env.controller.Status().TotalEpochs)
}

func TestStartTrainingClampsEpochs(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.seedManifest(t, 1)
	env.controller.runEpoch = func(ctx context.Context, epoch int, params Params) (float64, error) {
		return 0.1, nil
	}

	require.NoError(t, env.controller.StartTraining(context.Background(), Params{Epochs: 10000}))
	env.waitForRun(t)

	status := env.controller.Status()
	assert.Equal(t, env.cfg.MaxEpochs, status.TotalEpochs)
	assert.Equal(t, env.cfg.MaxEpochs, status.Epoch)
}

func TestTrainingStopIsTerminalSuccess(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.seedManifest(t, 2)

	started := make(chan struct{}, 1)
	gate := make(chan struct{})
	env.controller.runEpoch = func(ctx context.Context, epoch int, params Params) (float64, error) {
		if epoch == 1 {
			started <- struct{}{}
			<-gate
		}
		return 0.9, nil
	}

	require.NoError(t, env.controller.StartTraining(context.Background(), Params{Epochs: 10}))
	<-started
	env.controller.Stop()
	close(gate)
	env.waitForRun(t)

	status := env.controller.Status()
	assert.Equal(t, StateCompleted, status.State, "early stop counts as success")
	assert.Equal(t, 1, status.Epoch, "the in-flight epoch finishes, later ones never start")

	created := env.checkpoints.all()
	require.Len(t, created, 1)
	assert.Equal(t, "Trained for 1 epochs", created[0].Description)
}

func TestTrainingEpochFailure(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.seedManifest(t, 2)
	env.controller.runEpoch = func(ctx context.Context, epoch int, params Params) (float64, error) {
		if epoch == 2 {
			return 0, errors.New("gradient blew up")
		}
		return 0.5, nil
	}

	require.NoError(t, env.controller.StartTraining(context.Background(), Params{Epochs: 3}))
	env.waitForRun(t)

	status := env.controller.Status()
	assert.Equal(t, StateFailed, status.State)
	assert.Contains(t, status.Message, "epoch 2")
	assert.Contains(t, status.Message, "gradient blew up")
	assert.Empty(t, env.checkpoints.all(), "a failed run must not produce a checkpoint")

	// The flag is clear, so a new run can begin.
	env.controller.runEpoch = func(ctx context.Context, epoch int, params Params) (float64, error) {
		return 0.2, nil
	}
	require.NoError(t, env.controller.StartTraining(context.Background(), Params{Epochs: 1}))
	env.waitForRun(t)
	assert.Equal(t, StateCompleted, env.controller.Status().State)
}

func TestCheckpointPersistFailure(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.seedManifest(t, 1)
	env.controller.runEpoch = func(ctx context.Context, epoch int, params Params) (float64, error) {
		return 0.5, nil
	}
	env.checkpoints.CreateFn = func(ctx context.Context, checkpoint *domain.ModelCheckpoint) error {
		return fmt.Errorf("%w: database gone", store.ErrPersistence)
	}

	require.NoError(t, env.controller.StartTraining(context.Background(), Params{Epochs: 1}))
	env.waitForRun(t)

	status := env.controller.Status()
	assert.Equal(t, StateFailed, status.State)
	assert.Contains(t, status.Message, "Saving checkpoint")
}

func TestStopWhenIdleIsNoop(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.controller.Stop()

	status := env.controller.Status()
	assert.Equal(t, StateIdle, status.State)
	assert.Equal(t, "Ready", status.Message)
}

func TestStatusSnapshotIsIsolated(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	loss := 0.42
	env.controller.board.update(func(s *Status) {
		s.State = StateTraining
		s.Loss = &loss
	})

	snap := env.controller.Status()
	require.NotNil(t, snap.Loss)
	*snap.Loss = 99

	again := env.controller.Status()
	require.NotNil(t, again.Loss)
	assert.InDelta(t, 0.42, *again.Loss, 1e-9)
}
