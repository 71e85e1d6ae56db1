package api

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/cadenza-audio/cadenza-api/internal/audio"
	"github.com/cadenza-audio/cadenza-api/internal/domain"
	"github.com/cadenza-audio/cadenza-api/internal/prompts"
	"github.com/cadenza-audio/cadenza-api/internal/service"
	"github.com/cadenza-audio/cadenza-api/internal/settings"
	"github.com/cadenza-audio/cadenza-api/internal/training"
)

// silentLogger discards all log output during tests.
func silentLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// execute runs req against a chi router with the given routes registered.
func execute(t *testing.T, register func(r chi.Router), req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	router := chi.NewRouter()
	register(router)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func jsonRequest(t *testing.T, method, target, body string) *http.Request {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

// mockGenerationAPI implements GenerationAPI with overridable functions.
type mockGenerationAPI struct {
	EnqueueFn   func(ctx context.Context, req service.GenerateRequest) (*domain.GenerationTask, error)
	GetFn       func(ctx context.Context, id uuid.UUID) (*domain.GenerationTask, error)
	ListFn      func(ctx context.Context) ([]*domain.GenerationTask, error)
	DeleteFn    func(ctx context.Context, id uuid.UUID) error
	AudioPathFn func(ctx context.Context, id uuid.UUID) (string, error)
}

func (m *mockGenerationAPI) Enqueue(ctx context.Context, req service.GenerateRequest) (*domain.GenerationTask, error) {
	return m.EnqueueFn(ctx, req)
}

func (m *mockGenerationAPI) Get(ctx context.Context, id uuid.UUID) (*domain.GenerationTask, error) {
	return m.GetFn(ctx, id)
}

func (m *mockGenerationAPI) List(ctx context.Context) ([]*domain.GenerationTask, error) {
	return m.ListFn(ctx)
}

func (m *mockGenerationAPI) Delete(ctx context.Context, id uuid.UUID) error {
	return m.DeleteFn(ctx, id)
}

func (m *mockGenerationAPI) AudioPath(ctx context.Context, id uuid.UUID) (string, error) {
	return m.AudioPathFn(ctx, id)
}

// mockBatchAPI implements BatchAPI with overridable functions.
type mockBatchAPI struct {
	GenerateBatchFn          func(ctx context.Context, promptList []string, opts service.BatchOptions) ([]uuid.UUID, error)
	GenerateVariationsFn     func(ctx context.Context, basePrompt string, opts service.VariationOptions) ([]uuid.UUID, error)
	GenerateFromFileFn       func(ctx context.Context, r io.Reader, opts service.BatchOptions) ([]uuid.UUID, error)
	GenerateThemedPlaylistFn func(ctx context.Context, theme string, count int, opts service.BatchOptions) ([]uuid.UUID, error)
}

func (m *mockBatchAPI) GenerateBatch(ctx context.Context, promptList []string, opts service.BatchOptions) ([]uuid.UUID, error) {
	return m.GenerateBatchFn(ctx, promptList, opts)
}

func (m *mockBatchAPI) GenerateVariations(ctx context.Context, basePrompt string, opts service.VariationOptions) ([]uuid.UUID, error) {
	return m.GenerateVariationsFn(ctx, basePrompt, opts)
}

func (m *mockBatchAPI) GenerateFromFile(ctx context.Context, r io.Reader, opts service.BatchOptions) ([]uuid.UUID, error) {
	if m.GenerateFromFileFn != nil {
		return m.GenerateFromFileFn(ctx, r, opts)
	}
	_, _ = io.ReadAll(r)
	return nil, nil
}

func (m *mockBatchAPI) GenerateThemedPlaylist(ctx context.Context, theme string, count int, opts service.BatchOptions) ([]uuid.UUID, error) {
	return m.GenerateThemedPlaylistFn(ctx, theme, count, opts)
}

// mockTrainingAPI implements TrainingAPI with overridable functions.
type mockTrainingAPI struct {
	ProcessDatasetFn func(ctx context.Context) error
	StartTrainingFn  func(ctx context.Context, params training.Params) error
	StopCalled       bool
	StatusFn         func() training.Status
}

func (m *mockTrainingAPI) ProcessDataset(ctx context.Context) error {
	return m.ProcessDatasetFn(ctx)
}

func (m *mockTrainingAPI) StartTraining(ctx context.Context, params training.Params) error {
	return m.StartTrainingFn(ctx, params)
}

func (m *mockTrainingAPI) Stop() { m.StopCalled = true }

func (m *mockTrainingAPI) Status() training.Status {
	if m.StatusFn != nil {
		return m.StatusFn()
	}
	return training.Status{State: training.StateIdle, Message: "Ready"}
}

// mockModelAPI implements ModelAPI with overridable functions.
type mockModelAPI struct {
	ListFn   func(ctx context.Context) ([]*domain.ModelCheckpoint, error)
	GetFn    func(ctx context.Context, id uuid.UUID) (*domain.ModelCheckpoint, error)
	DeleteFn func(ctx context.Context, id uuid.UUID) error
}

func (m *mockModelAPI) List(ctx context.Context) ([]*domain.ModelCheckpoint, error) {
	return m.ListFn(ctx)
}

func (m *mockModelAPI) Get(ctx context.Context, id uuid.UUID) (*domain.ModelCheckpoint, error) {
	return m.GetFn(ctx, id)
}

func (m *mockModelAPI) Delete(ctx context.Context, id uuid.UUID) error {
	return m.DeleteFn(ctx, id)
}

// mockTemplateAPI implements TemplateAPI with overridable functions.
type mockTemplateAPI struct {
	ListFn     func() map[string]map[string]string
	CategoryFn func(category string) (map[string]string, error)
	GetFn      func(category, name string) (string, error)
	AddFn      func(category, name, text string) error
	RemoveFn   func(category, name string) error
	SearchFn   func(query string) map[string]map[string]string
	CombineFn  func(refs ...prompts.TemplateRef) string
}

func (m *mockTemplateAPI) List() map[string]map[string]string { return m.ListFn() }

func (m *mockTemplateAPI) Category(category string) (map[string]string, error) {
	return m.CategoryFn(category)
}

func (m *mockTemplateAPI) Get(category, name string) (string, error) {
	return m.GetFn(category, name)
}

func (m *mockTemplateAPI) Add(category, name, text string) error {
	return m.AddFn(category, name, text)
}

func (m *mockTemplateAPI) Remove(category, name string) error {
	return m.RemoveFn(category, name)
}

func (m *mockTemplateAPI) Search(query string) map[string]map[string]string {
	return m.SearchFn(query)
}

func (m *mockTemplateAPI) Combine(refs ...prompts.TemplateRef) string {
	return m.CombineFn(refs...)
}

// mockSettingsAPI implements SettingsAPI with overridable functions.
type mockSettingsAPI struct {
	GetFn   func() settings.Settings
	ApplyFn func(u settings.Update) (settings.Settings, error)
}

func (m *mockSettingsAPI) Get() settings.Settings { return m.GetFn() }

func (m *mockSettingsAPI) Apply(u settings.Update) (settings.Settings, error) {
	return m.ApplyFn(u)
}

// mockExporter implements AudioExporter with overridable functions.
type mockExporter struct {
	ConvertFn func(ctx context.Context, inputPath, outputPath string, opts audio.ExportOptions) error
	ProbeFn   func(ctx context.Context, path string) (*audio.ProbeInfo, error)
}

func (m *mockExporter) Convert(ctx context.Context, inputPath, outputPath string, opts audio.ExportOptions) error {
	return m.ConvertFn(ctx, inputPath, outputPath, opts)
}

func (m *mockExporter) Probe(ctx context.Context, path string) (*audio.ProbeInfo, error) {
	return m.ProbeFn(ctx, path)
}

// mockSeparator implements AudioSeparator with overridable functions.
type mockSeparator struct {
	AvailableVal bool
	SeparateFn   func(ctx context.Context, inputPath, outDir string) (map[string]string, error)
}

func (m *mockSeparator) Available() bool { return m.AvailableVal }

func (m *mockSeparator) Separate(ctx context.Context, inputPath, outDir string) (map[string]string, error) {
	return m.SeparateFn(ctx, inputPath, outDir)
}
