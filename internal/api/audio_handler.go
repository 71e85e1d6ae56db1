package api

import (
	"context"
	"log/slog"
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/google/uuid"

	"github.com/cadenza-audio/cadenza-api/internal/api/shared"
	"github.com/cadenza-audio/cadenza-api/internal/audio"
)

// AudioPathResolver maps a task id to its completed audio file.
type AudioPathResolver interface {
	AudioPath(ctx context.Context, id uuid.UUID) (string, error)
}

// AudioExporter converts and inspects audio files.
type AudioExporter interface {
	Convert(ctx context.Context, inputPath, outputPath string, opts audio.ExportOptions) error
	Probe(ctx context.Context, path string) (*audio.ProbeInfo, error)
}

// AudioSeparator splits a track into stems.
type AudioSeparator interface {
	Available() bool
	Separate(ctx context.Context, inputPath, outDir string) (map[string]string, error)
}

// AnalyzeRequest is the body of POST /api/audio/analyze and
// POST /api/audio/separate.
type AnalyzeRequest struct {
	TaskID string `json:"task_id" validate:"required,uuid"`
}

// ExportRequest is the body of POST /api/audio/export.
type ExportRequest struct {
	TaskID    string `json:"task_id" validate:"required,uuid"`
	Format    string `json:"format" validate:"required,oneof=mp3 wav flac ogg aac"`
	Bitrate   string `json:"bitrate" validate:"omitempty,min=1"`
	Normalize bool   `json:"normalize"`
}

// AnalyzeResponse carries the PCM summary for a completed task.
type AnalyzeResponse struct {
	TaskID   string          `json:"task_id"`
	Analysis *audio.Analysis `json:"analysis"`
}

// WaveformResponse carries the normalized envelope for display.
type WaveformResponse struct {
	TaskID  string    `json:"task_id"`
	Buckets int       `json:"buckets"`
	Points  []float64 `json:"points"`
}

// ExportResponse carries the converted file's location.
type ExportResponse struct {
	TaskID     string `json:"task_id"`
	Format     string `json:"format"`
	OutputPath string `json:"output_path"`
}

// SeparateResponse maps stem names to output paths.
type SeparateResponse struct {
	TaskID string            `json:"task_id"`
	Stems  map[string]string `json:"stems"`
}

// Envelope bucket bounds for the waveform endpoint.
const (
	defaultWaveformBuckets = 200
	maxWaveformBuckets     = 2000
)

// AudioHandler serves the audio post-processing endpoints. Every endpoint
// operates on a completed task's output file, located through the resolver.
type AudioHandler struct {
	resolver  AudioPathResolver
	exporter  AudioExporter
	separator AudioSeparator
	outputDir string
	logger    *slog.Logger

	// analysis seams, swapped in tests
	analyzeFn  func(path string) (*audio.Analysis, error)
	envelopeFn func(path string, buckets int) ([]float64, error)
}

// NewAudioHandler creates an AudioHandler. Panics when resolver, exporter,
// or separator is nil.
func NewAudioHandler(resolver AudioPathResolver, exporter AudioExporter, separator AudioSeparator, outputDir string, log *slog.Logger) *AudioHandler {
	if resolver == nil {
		panic("audio path resolver cannot be nil")
	}
	if exporter == nil {
		panic("exporter cannot be nil")
	}
	if separator == nil {
		panic("separator cannot be nil")
	}
	if log == nil {
		log = slog.Default()
	}

	return &AudioHandler{
		resolver:   resolver,
		exporter:   exporter,
		separator:  separator,
		outputDir:  outputDir,
		logger:     log.With(slog.String("component", "audio_handler")),
		analyzeFn:  audio.Analyze,
		envelopeFn: audio.Envelope,
	}
}

// Analyze handles POST /api/audio/analyze.
func (h *AudioHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	id, path, ok := h.resolveBody(w, r)
	if !ok {
		return
	}

	analysis, err := h.analyzeFn(path)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to analyze audio")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, AnalyzeResponse{
		TaskID:   id.String(),
		Analysis: analysis,
	})
}

// Waveform handles GET /api/audio/waveform?task_id=&buckets=.
func (h *AudioHandler) Waveform(w http.ResponseWriter, r *http.Request) {
	rawID := r.URL.Query().Get("task_id")
	id, err := uuid.Parse(rawID)
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid task_id: must be a UUID")
		return
	}

	buckets := defaultWaveformBuckets
	if raw := r.URL.Query().Get("buckets"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxWaveformBuckets {
			shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid buckets: must be 1-2000")
			return
		}
		buckets = n
	}

	path, err := h.resolver.AudioPath(r.Context(), id)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	points, err := h.envelopeFn(path, buckets)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to compute waveform")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, WaveformResponse{
		TaskID:  id.String(),
		Buckets: buckets,
		Points:  points,
	})
}

// Export handles POST /api/audio/export, converting a completed task's WAV
// into the requested delivery format.
func (h *AudioHandler) Export(w http.ResponseWriter, r *http.Request) {
	var req ExportRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}
	if err := shared.ValidateRequest(req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}

	id := uuid.MustParse(req.TaskID)
	path, err := h.resolver.AudioPath(r.Context(), id)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	outputPath := filepath.Join(h.outputDir, "exports", id.String()+"."+req.Format)
	opts := audio.ExportOptions{
		Format:    req.Format,
		Bitrate:   req.Bitrate,
		Normalize: req.Normalize,
	}
	if err := h.exporter.Convert(r.Context(), path, outputPath, opts); err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, ExportResponse{
		TaskID:     id.String(),
		Format:     req.Format,
		OutputPath: outputPath,
	})
}

// Separate handles POST /api/audio/separate, splitting a completed track
// into stems with the configured separator.
func (h *AudioHandler) Separate(w http.ResponseWriter, r *http.Request) {
	if !h.separator.Available() {
		HandleAPIError(w, r, audio.ErrSeparatorUnavailable, "")
		return
	}

	id, path, ok := h.resolveBody(w, r)
	if !ok {
		return
	}

	outDir := filepath.Join(h.outputDir, "stems", id.String())
	stems, err := h.separator.Separate(r.Context(), path, outDir)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, SeparateResponse{
		TaskID: id.String(),
		Stems:  stems,
	})
}

// resolveBody decodes an AnalyzeRequest and resolves the task's audio path.
// On failure it writes the error response and reports false.
func (h *AudioHandler) resolveBody(w http.ResponseWriter, r *http.Request) (uuid.UUID, string, bool) {
	var req AnalyzeRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return uuid.Nil, "", false
	}
	if err := shared.ValidateRequest(req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Validation error: "+err.Error())
		return uuid.Nil, "", false
	}

	id := uuid.MustParse(req.TaskID)
	path, err := h.resolver.AudioPath(r.Context(), id)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return uuid.Nil, "", false
	}
	return id, path, true
}
