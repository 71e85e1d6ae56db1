package task

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/cadenza-audio/cadenza-api/internal/audio"
	"github.com/cadenza-audio/cadenza-api/internal/domain"
	"github.com/cadenza-audio/cadenza-api/internal/generation"
	"github.com/cadenza-audio/cadenza-api/internal/store"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockTaskStore is an in-memory store.TaskStore. Every Update appends a
// snapshot, and terminal snapshots are also sent on the terminal channel so
// tests can wait for a task to finish.
type mockTaskStore struct {
	mu       sync.Mutex
	records  map[uuid.UUID]*domain.GenerationTask
	updates  []domain.GenerationTask
	terminal chan domain.GenerationTask

	GetByIDFn func(ctx context.Context, id uuid.UUID) (*domain.GenerationTask, error)
	UpdateFn  func(ctx context.Context, task *domain.GenerationTask) error
}

func newMockTaskStore() *mockTaskStore {
	return &mockTaskStore{
		records:  make(map[uuid.UUID]*domain.GenerationTask),
		terminal: make(chan domain.GenerationTask, 16),
	}
}

func (m *mockTaskStore) put(task *domain.GenerationTask) {
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := *task
	m.records[task.ID] = &clone
}

func (m *mockTaskStore) Create(ctx context.Context, task *domain.GenerationTask) error {
	m.put(task)
	return nil
}

func (m *mockTaskStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.GenerationTask, error) {
	if m.GetByIDFn != nil {
		return m.GetByIDFn(ctx, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[id]
	if !ok {
		return nil, store.ErrTaskNotFound
	}
	clone := *rec
	return &clone, nil
}

func (m *mockTaskStore) List(ctx context.Context) ([]*domain.GenerationTask, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*domain.GenerationTask, 0, len(m.records))
	for _, rec := range m.records {
		clone := *rec
		out = append(out, &clone)
	}
	return out, nil
}

func (m *mockTaskStore) Update(ctx context.Context, task *domain.GenerationTask) error {
	if m.UpdateFn != nil {
		return m.UpdateFn(ctx, task)
	}
	m.mu.Lock()
	clone := *task
	m.updates = append(m.updates, clone)
	if _, ok := m.records[task.ID]; ok {
		m.records[task.ID] = &clone
	}
	m.mu.Unlock()

	if task.Status.IsTerminal() {
		m.terminal <- clone
	}
	return nil
}

func (m *mockTaskStore) Delete(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[id]; !ok {
		return store.ErrTaskNotFound
	}
	delete(m.records, id)
	return nil
}

func (m *mockTaskStore) CountByStatus(ctx context.Context, status domain.TaskStatus) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, rec := range m.records {
		if rec.Status == status {
			count++
		}
	}
	return count, nil
}

func (m *mockTaskStore) WithTx(tx *sql.Tx) store.TaskStore { return m }

func (m *mockTaskStore) snapshots() []domain.GenerationTask {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.GenerationTask, len(m.updates))
	copy(out, m.updates)
	return out
}

// mockGenerator is an in-memory generation.Generator recording requests.
type mockGenerator struct {
	mu       sync.Mutex
	requests []generation.Request

	GenerateFn func(ctx context.Context, req generation.Request) (*generation.Waveform, error)
}

func (m *mockGenerator) Generate(ctx context.Context, req generation.Request) (*generation.Waveform, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	m.mu.Unlock()
	if m.GenerateFn != nil {
		return m.GenerateFn(ctx, req)
	}
	return &generation.Waveform{SampleRate: 32000, Channels: 1, Samples: []int{100, -100, 200, -200}}, nil
}

func (m *mockGenerator) calls() []generation.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]generation.Request, len(m.requests))
	copy(out, m.requests)
	return out
}

func newTestTask(t *testing.T, prompt string) *domain.GenerationTask {
	t.Helper()
	task, err := domain.NewGenerationTask(prompt, 5, 3, 1)
	require.NoError(t, err)
	return task
}

func waitTerminal(t *testing.T, s *mockTaskStore) domain.GenerationTask {
	t.Helper()
	select {
	case rec := <-s.terminal:
		return rec
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for a terminal task status")
		return domain.GenerationTask{}
	}
}

func startWorker(t *testing.T, s *mockTaskStore, gen *mockGenerator, outputDir string) (*Worker, *Queue) {
	t.Helper()
	q := NewQueue(testLogger())
	w := NewWorker(q, s, gen, outputDir, testLogger())
	require.NoError(t, w.Start())
	t.Cleanup(w.Stop)
	return w, q
}

func TestWorkerRunsTaskThroughCheckpoints(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	taskStore := newMockTaskStore()
	gen := &mockGenerator{}

	rec := newTestTask(t, "warm analog pad")
	taskStore.put(rec)
	_, q := startWorker(t, taskStore, gen, dir)

	q.Enqueue(NewJob(rec))
	final := waitTerminal(t, taskStore)

	assert.Equal(t, domain.TaskStatusCompleted, final.Status)
	assert.InDelta(t, 1.0, final.Progress, 1e-9)
	assert.Equal(t, filepath.Join(dir, rec.ID.String()+".wav"), final.FilePath)
	assert.Empty(t, final.ErrorMessage)
	require.NotNil(t, final.CompletedAt)

	written, err := audio.ReadWAV(final.FilePath)
	require.NoError(t, err)
	assert.Equal(t, []int{100, -100, 200, -200}, written.Samples)

	var steps [][2]interface{}
	for _, snap := range taskStore.snapshots() {
		steps = append(steps, [2]interface{}{snap.Status, snap.Progress})
	}
	expected := [][2]interface{}{
		{domain.TaskStatusProcessing, 0.1},
		{domain.TaskStatusProcessing, 0.3},
		{domain.TaskStatusProcessing, 0.8},
		{domain.TaskStatusCompleted, 1.0},
	}
	assert.Equal(t, expected, steps)
}

func TestWorkerMarksFailedOnGeneratorError(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	taskStore := newMockTaskStore()
	gen := &mockGenerator{
		GenerateFn: func(ctx context.Context, req generation.Request) (*generation.Waveform, error) {
			if req.Prompt == "doomed" {
				return nil, fmt.Errorf("%w: model exploded", generation.ErrGenerationFailed)
			}
			return &generation.Waveform{SampleRate: 32000, Channels: 1, Samples: []int{1}}, nil
		},
	}

	bad := newTestTask(t, "doomed")
	good := newTestTask(t, "second chance")
	taskStore.put(bad)
	taskStore.put(good)
	_, q := startWorker(t, taskStore, gen, dir)

	q.Enqueue(NewJob(bad))
	q.Enqueue(NewJob(good))

	failed := waitTerminal(t, taskStore)
	assert.Equal(t, bad.ID, failed.ID)
	assert.Equal(t, domain.TaskStatusFailed, failed.Status)
	assert.Zero(t, failed.Progress)
	assert.Contains(t, failed.ErrorMessage, "model exploded")
	assert.Empty(t, failed.FilePath)
	require.NotNil(t, failed.CompletedAt)

	// The worker survives the failure and completes the next job.
	completed := waitTerminal(t, taskStore)
	assert.Equal(t, good.ID, completed.ID)
	assert.Equal(t, domain.TaskStatusCompleted, completed.Status)
}

func TestWorkerSkipsDeletedTask(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	taskStore := newMockTaskStore()
	gen := &mockGenerator{}

	deleted := newTestTask(t, "already gone")
	kept := newTestTask(t, "still here")
	taskStore.put(kept)
	_, q := startWorker(t, taskStore, gen, dir)

	q.Enqueue(NewJob(deleted))
	q.Enqueue(NewJob(kept))

	final := waitTerminal(t, taskStore)
	assert.Equal(t, kept.ID, final.ID)
	assert.Equal(t, domain.TaskStatusCompleted, final.Status)

	calls := gen.calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "still here", calls[0].Prompt)
}

func TestWorkerFailsCheckpointJobs(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	taskStore := newMockTaskStore()
	gen := &mockGenerator{}

	rec := newTestTask(t, "with custom model")
	modelID := uuid.New()
	rec.ModelID = &modelID
	taskStore.put(rec)
	_, q := startWorker(t, taskStore, gen, dir)

	q.Enqueue(NewJob(rec))
	final := waitTerminal(t, taskStore)

	assert.Equal(t, domain.TaskStatusFailed, final.Status)
	assert.Zero(t, final.Progress)
	assert.Contains(t, final.ErrorMessage, "not implemented")
	assert.Empty(t, gen.calls(), "generator must not run for checkpoint jobs")
}

func TestWorkerFailsConditioningJobs(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	taskStore := newMockTaskStore()
	gen := &mockGenerator{}

	rec := newTestTask(t, "with melody input")
	rec.ConditioningPath = "/uploads/melody.wav"
	taskStore.put(rec)
	_, q := startWorker(t, taskStore, gen, dir)

	q.Enqueue(NewJob(rec))
	final := waitTerminal(t, taskStore)

	assert.Equal(t, domain.TaskStatusFailed, final.Status)
	assert.Contains(t, final.ErrorMessage, "not implemented")
	assert.Empty(t, gen.calls(), "generator must not run for conditioning jobs")
}

func TestWorkerProcessesJobsInOrder(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	taskStore := newMockTaskStore()

	var mu sync.Mutex
	inFlight, maxInFlight := 0, 0
	gen := &mockGenerator{
		GenerateFn: func(ctx context.Context, req generation.Request) (*generation.Waveform, error) {
			mu.Lock()
			inFlight++
			if inFlight > maxInFlight {
				maxInFlight = inFlight
			}
			mu.Unlock()
			time.Sleep(10 * time.Millisecond)
			mu.Lock()
			inFlight--
			mu.Unlock()
			return &generation.Waveform{SampleRate: 32000, Channels: 1, Samples: []int{1}}, nil
		},
	}

	prompts := []string{"first", "second", "third"}
	_, q := startWorker(t, taskStore, gen, dir)
	for _, p := range prompts {
		rec := newTestTask(t, p)
		taskStore.put(rec)
		q.Enqueue(NewJob(rec))
	}

	for range prompts {
		waitTerminal(t, taskStore)
	}

	calls := gen.calls()
	require.Len(t, calls, 3)
	for i, p := range prompts {
		assert.Equal(t, p, calls[i].Prompt)
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, maxInFlight, "only one generation may run at a time")
}

func TestWorkerStopWaitsForInFlightJob(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	taskStore := newMockTaskStore()

	started := make(chan struct{}, 1)
	gate := make(chan struct{})
	gen := &mockGenerator{
		GenerateFn: func(ctx context.Context, req generation.Request) (*generation.Waveform, error) {
			started <- struct{}{}
			<-gate
			return &generation.Waveform{SampleRate: 32000, Channels: 1, Samples: []int{1}}, nil
		},
	}

	rec := newTestTask(t, "slow burn")
	taskStore.put(rec)

	q := NewQueue(testLogger())
	w := NewWorker(q, taskStore, gen, dir, testLogger())
	require.NoError(t, w.Start())

	q.Enqueue(NewJob(rec))
	<-started

	stopDone := make(chan struct{})
	go func() {
		w.Stop()
		close(stopDone)
	}()

	select {
	case <-stopDone:
		t.Fatal("Stop returned while a job was still in flight")
	case <-time.After(100 * time.Millisecond):
	}

	close(gate)
	select {
	case <-stopDone:
	case <-time.After(5 * time.Second):
		t.Fatal("Stop did not return after the job finished")
	}

	final := waitTerminal(t, taskStore)
	assert.Equal(t, domain.TaskStatusCompleted, final.Status)
}

func TestWorkerAbandonsTaskWhenProgressCannotPersist(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	taskStore := newMockTaskStore()
	var attempts int
	var mu sync.Mutex
	taskStore.UpdateFn = func(ctx context.Context, task *domain.GenerationTask) error {
		mu.Lock()
		attempts++
		mu.Unlock()
		return fmt.Errorf("%w: connection reset", store.ErrPersistence)
	}
	gen := &mockGenerator{}

	rec := newTestTask(t, "unlucky")
	taskStore.put(rec)
	_, q := startWorker(t, taskStore, gen, dir)

	q.Enqueue(NewJob(rec))

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return attempts >= 2
	}, 2*time.Second, 10*time.Millisecond, "expected a progress attempt and a failure attempt")
	assert.Empty(t, gen.calls(), "generation must not start when progress cannot persist")
}

func TestWorkerLifecycle(t *testing.T) {
	t.Parallel()

	q := NewQueue(testLogger())
	w := NewWorker(q, newMockTaskStore(), &mockGenerator{}, t.TempDir(), testLogger())

	require.NoError(t, w.Start())
	assert.Error(t, w.Start(), "second start must fail while running")

	w.Stop()
	w.Stop()

	require.NoError(t, w.Start(), "worker must be restartable after stop")
	w.Stop()
}

func TestNewWorkerValidation(t *testing.T) {
	t.Parallel()

	q := NewQueue(testLogger())
	s := newMockTaskStore()
	g := &mockGenerator{}

	assert.Panics(t, func() { NewWorker(nil, s, g, "", nil) })
	assert.Panics(t, func() { NewWorker(q, nil, g, "", nil) })
	assert.Panics(t, func() { NewWorker(q, s, nil, "", nil) })
}
