package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cadenza-audio/cadenza-api/internal/audio"
	"github.com/cadenza-audio/cadenza-api/internal/service"
	"github.com/cadenza-audio/cadenza-api/internal/store"
)

func newTestAudioHandler(resolver AudioPathResolver, exporter AudioExporter, separator AudioSeparator) *AudioHandler {
	if resolver == nil {
		resolver = &mockGenerationAPI{
			AudioPathFn: func(ctx context.Context, id uuid.UUID) (string, error) {
				return "/data/outputs/" + id.String() + ".wav", nil
			},
		}
	}
	if exporter == nil {
		exporter = &mockExporter{}
	}
	if separator == nil {
		separator = &mockSeparator{AvailableVal: true}
	}
	return NewAudioHandler(resolver, exporter, separator, "/data/outputs", silentLogger())
}

func TestAudioHandlerAnalyze(t *testing.T) {
	t.Parallel()

	t.Run("returns the PCM summary", func(t *testing.T) {
		t.Parallel()

		id := uuid.New()
		handler := newTestAudioHandler(nil, nil, nil)
		handler.analyzeFn = func(path string) (*audio.Analysis, error) {
			assert.Contains(t, path, id.String())
			return &audio.Analysis{Duration: 30, SampleRate: 32000, Channels: 1, Peak: 0.8}, nil
		}

		rec := execute(t, func(r chi.Router) { r.Post("/api/audio/analyze", handler.Analyze) },
			jsonRequest(t, http.MethodPost, "/api/audio/analyze", `{"task_id":"`+id.String()+`"}`))

		require.Equal(t, http.StatusOK, rec.Code)
		var resp AnalyzeResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, id.String(), resp.TaskID)
		assert.Equal(t, 32000, resp.Analysis.SampleRate)
	})

	t.Run("incomplete task reports 409", func(t *testing.T) {
		t.Parallel()

		resolver := &mockGenerationAPI{
			AudioPathFn: func(ctx context.Context, id uuid.UUID) (string, error) {
				return "", service.ErrTaskNotReady
			},
		}
		handler := newTestAudioHandler(resolver, nil, nil)

		rec := execute(t, func(r chi.Router) { r.Post("/api/audio/analyze", handler.Analyze) },
			jsonRequest(t, http.MethodPost, "/api/audio/analyze", `{"task_id":"`+uuid.NewString()+`"}`))

		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("missing task_id reports 400", func(t *testing.T) {
		t.Parallel()

		handler := newTestAudioHandler(nil, nil, nil)
		rec := execute(t, func(r chi.Router) { r.Post("/api/audio/analyze", handler.Analyze) },
			jsonRequest(t, http.MethodPost, "/api/audio/analyze", `{}`))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestAudioHandlerWaveform(t *testing.T) {
	t.Parallel()

	t.Run("returns the envelope with default buckets", func(t *testing.T) {
		t.Parallel()

		id := uuid.New()
		handler := newTestAudioHandler(nil, nil, nil)
		handler.envelopeFn = func(path string, buckets int) ([]float64, error) {
			assert.Equal(t, defaultWaveformBuckets, buckets)
			return []float64{0.1, 0.9, 0.5}, nil
		}

		rec := execute(t, func(r chi.Router) { r.Get("/api/audio/waveform", handler.Waveform) },
			httptest.NewRequest(http.MethodGet, "/api/audio/waveform?task_id="+id.String(), nil))

		require.Equal(t, http.StatusOK, rec.Code)
		var resp WaveformResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, []float64{0.1, 0.9, 0.5}, resp.Points)
	})

	t.Run("bucket count out of range reports 400", func(t *testing.T) {
		t.Parallel()

		handler := newTestAudioHandler(nil, nil, nil)
		rec := execute(t, func(r chi.Router) { r.Get("/api/audio/waveform", handler.Waveform) },
			httptest.NewRequest(http.MethodGet,
				"/api/audio/waveform?task_id="+uuid.NewString()+"&buckets=5000", nil))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("unknown task reports 404", func(t *testing.T) {
		t.Parallel()

		resolver := &mockGenerationAPI{
			AudioPathFn: func(ctx context.Context, id uuid.UUID) (string, error) {
				return "", store.ErrTaskNotFound
			},
		}
		handler := newTestAudioHandler(resolver, nil, nil)

		rec := execute(t, func(r chi.Router) { r.Get("/api/audio/waveform", handler.Waveform) },
			httptest.NewRequest(http.MethodGet, "/api/audio/waveform?task_id="+uuid.NewString(), nil))

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestAudioHandlerExport(t *testing.T) {
	t.Parallel()

	t.Run("converts into the requested format", func(t *testing.T) {
		t.Parallel()

		id := uuid.New()
		exporter := &mockExporter{
			ConvertFn: func(ctx context.Context, inputPath, outputPath string, opts audio.ExportOptions) error {
				assert.Contains(t, inputPath, id.String())
				assert.Contains(t, outputPath, "exports")
				assert.Equal(t, "mp3", opts.Format)
				assert.True(t, opts.Normalize)
				return nil
			},
		}
		handler := newTestAudioHandler(nil, exporter, nil)

		body := `{"task_id":"` + id.String() + `","format":"mp3","bitrate":"320k","normalize":true}`
		rec := execute(t, func(r chi.Router) { r.Post("/api/audio/export", handler.Export) },
			jsonRequest(t, http.MethodPost, "/api/audio/export", body))

		require.Equal(t, http.StatusOK, rec.Code)
		var resp ExportResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "mp3", resp.Format)
		assert.Contains(t, resp.OutputPath, id.String()+".mp3")
	})

	t.Run("unsupported format reports 400", func(t *testing.T) {
		t.Parallel()

		handler := newTestAudioHandler(nil, nil, nil)
		body := `{"task_id":"` + uuid.NewString() + `","format":"midi"}`
		rec := execute(t, func(r chi.Router) { r.Post("/api/audio/export", handler.Export) },
			jsonRequest(t, http.MethodPost, "/api/audio/export", body))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestAudioHandlerSeparate(t *testing.T) {
	t.Parallel()

	t.Run("returns the stem map", func(t *testing.T) {
		t.Parallel()

		id := uuid.New()
		separator := &mockSeparator{
			AvailableVal: true,
			SeparateFn: func(ctx context.Context, inputPath, outDir string) (map[string]string, error) {
				assert.Contains(t, outDir, id.String())
				return map[string]string{"drums": outDir + "/drums.wav", "bass": outDir + "/bass.wav"}, nil
			},
		}
		handler := newTestAudioHandler(nil, nil, separator)

		rec := execute(t, func(r chi.Router) { r.Post("/api/audio/separate", handler.Separate) },
			jsonRequest(t, http.MethodPost, "/api/audio/separate", `{"task_id":"`+id.String()+`"}`))

		require.Equal(t, http.StatusOK, rec.Code)
		var resp SeparateResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Len(t, resp.Stems, 2)
	})

	t.Run("missing separator binary reports 503", func(t *testing.T) {
		t.Parallel()

		handler := newTestAudioHandler(nil, nil, &mockSeparator{AvailableVal: false})
		rec := execute(t, func(r chi.Router) { r.Post("/api/audio/separate", handler.Separate) },
			jsonRequest(t, http.MethodPost, "/api/audio/separate", `{"task_id":"`+uuid.NewString()+`"}`))

		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})
}
