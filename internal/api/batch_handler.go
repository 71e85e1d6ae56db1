package api

import (
	"context"
	"io"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/cadenza-audio/cadenza-api/internal/api/shared"
	"github.com/cadenza-audio/cadenza-api/internal/service"
)

// BatchAPI is the surface of the batch service the handler consumes.
type BatchAPI interface {
	GenerateBatch(ctx context.Context, promptList []string, opts service.BatchOptions) ([]uuid.UUID, error)
	GenerateVariations(ctx context.Context, basePrompt string, opts service.VariationOptions) ([]uuid.UUID, error)
	GenerateFromFile(ctx context.Context, r io.Reader, opts service.BatchOptions) ([]uuid.UUID, error)
	GenerateThemedPlaylist(ctx context.Context, theme string, count int, opts service.BatchOptions) ([]uuid.UUID, error)
}

// BatchRequest is the body of POST /api/generate/batch.
type BatchRequest struct {
	Prompts       []string `json:"prompts" validate:"required,min=1,dive,min=1"`
	Duration      float64  `json:"duration" validate:"omitempty,gt=0"`
	GuidanceScale float64  `json:"guidance_scale" validate:"omitempty,gt=0"`
	Temperature   float64  `json:"temperature" validate:"omitempty,gt=0"`
	ModelID       *string  `json:"model_id,omitempty" validate:"omitempty,uuid"`
}

// VariationsRequest is the body of POST /api/generate/variations.
type VariationsRequest struct {
	Prompt        string  `json:"prompt" validate:"required,min=1"`
	Count         int     `json:"count" validate:"omitempty,gte=1,lte=50"`
	Duration      float64 `json:"duration" validate:"omitempty,gt=0"`
	GuidanceScale float64 `json:"guidance_scale" validate:"omitempty,gt=0"`
	TempMin       float64 `json:"temp_min" validate:"omitempty,gt=0"`
	TempMax       float64 `json:"temp_max" validate:"omitempty,gt=0"`
	ModelID       *string `json:"model_id,omitempty" validate:"omitempty,uuid"`
}

// PlaylistRequest is the body of POST /api/playlist/themed.
type PlaylistRequest struct {
	Theme    string  `json:"theme" validate:"required,min=1"`
	Count    int     `json:"count" validate:"omitempty,gte=1,lte=50"`
	Duration float64 `json:"duration" validate:"omitempty,gt=0"`
}

// BatchResponse acknowledges a batch submission with the queued ids in
// input order.
type BatchResponse struct {
	TaskIDs []string `json:"task_ids"`
	Count   int      `json:"count"`
	Status  string   `json:"status"`
}

// Fallbacks applied when a request omits count or temperature range.
const (
	defaultVariationCount = 5
	defaultPlaylistCount  = 10
	defaultTempMin        = 0.8
	defaultTempMax        = 1.2
)

// BatchHandler serves the batch submission endpoints.
type BatchHandler struct {
	batch  BatchAPI
	logger *slog.Logger
}

// NewBatchHandler creates a BatchHandler. Panics when batch is nil.
func NewBatchHandler(batch BatchAPI, log *slog.Logger) *BatchHandler {
	if batch == nil {
		panic("batch service cannot be nil")
	}
	if log == nil {
		log = slog.Default()
	}

	return &BatchHandler{
		batch:  batch,
		logger: log.With(slog.String("component", "batch_handler")),
	}
}

// GenerateBatch handles POST /api/generate/batch.
func (h *BatchHandler) GenerateBatch(w http.ResponseWriter, r *http.Request) {
	var req BatchRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}
	if err := shared.ValidateRequest(req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}

	opts, ok := h.batchOptions(w, r, req.Duration, req.GuidanceScale, req.Temperature, req.ModelID)
	if !ok {
		return
	}

	ids, err := h.batch.GenerateBatch(r.Context(), req.Prompts, opts)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	respondQueued(w, r, ids)
}

// GenerateVariations handles POST /api/generate/variations.
func (h *BatchHandler) GenerateVariations(w http.ResponseWriter, r *http.Request) {
	var req VariationsRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}
	if err := shared.ValidateRequest(req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}

	modelID, ok := h.parseModelID(w, r, req.ModelID)
	if !ok {
		return
	}

	opts := service.VariationOptions{
		Count:         req.Count,
		Duration:      req.Duration,
		GuidanceScale: req.GuidanceScale,
		ModelID:       modelID,
		TempMin:       req.TempMin,
		TempMax:       req.TempMax,
	}
	if opts.Count == 0 {
		opts.Count = defaultVariationCount
	}
	if opts.TempMin == 0 {
		opts.TempMin = defaultTempMin
	}
	if opts.TempMax == 0 {
		opts.TempMax = defaultTempMax
	}

	ids, err := h.batch.GenerateVariations(r.Context(), req.Prompt, opts)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	respondQueued(w, r, ids)
}

// GenerateFromFile handles POST /api/generate/from-file. The prompts file
// arrives as the multipart field "file", one prompt per line.
func (h *BatchHandler) GenerateFromFile(w http.ResponseWriter, r *http.Request) {
	file, _, err := r.FormFile("file")
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Missing prompts file upload")
		return
	}
	defer func() { _ = file.Close() }()

	opts, ok := h.batchOptions(w, r,
		formFloat(r, "duration"),
		formFloat(r, "guidance_scale"),
		formFloat(r, "temperature"),
		formString(r, "model_id"))
	if !ok {
		return
	}

	ids, err := h.batch.GenerateFromFile(r.Context(), file, opts)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	respondQueued(w, r, ids)
}

// GenerateThemedPlaylist handles POST /api/playlist/themed.
func (h *BatchHandler) GenerateThemedPlaylist(w http.ResponseWriter, r *http.Request) {
	var req PlaylistRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}
	if err := shared.ValidateRequest(req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}

	count := req.Count
	if count == 0 {
		count = defaultPlaylistCount
	}

	ids, err := h.batch.GenerateThemedPlaylist(r.Context(), req.Theme, count,
		service.BatchOptions{Duration: req.Duration})
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	respondQueued(w, r, ids)
}

func (h *BatchHandler) batchOptions(
	w http.ResponseWriter,
	r *http.Request,
	duration, guidanceScale, temperature float64,
	modelID *string,
) (service.BatchOptions, bool) {
	parsed, ok := h.parseModelID(w, r, modelID)
	if !ok {
		return service.BatchOptions{}, false
	}
	return service.BatchOptions{
		Duration:      duration,
		GuidanceScale: guidanceScale,
		Temperature:   temperature,
		ModelID:       parsed,
	}, true
}

func (h *BatchHandler) parseModelID(w http.ResponseWriter, r *http.Request, raw *string) (*uuid.UUID, bool) {
	if raw == nil || *raw == "" {
		return nil, true
	}
	id, err := uuid.Parse(*raw)
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid model_id: must be a UUID")
		return nil, false
	}
	return &id, true
}

func respondQueued(w http.ResponseWriter, r *http.Request, ids []uuid.UUID) {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	shared.RespondWithJSON(w, r, http.StatusAccepted, BatchResponse{
		TaskIDs: out,
		Count:   len(out),
		Status:  "queued",
	})
}
