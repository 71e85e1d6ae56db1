package api

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/cadenza-audio/cadenza-api/internal/api/shared"
	"github.com/cadenza-audio/cadenza-api/internal/domain"
	"github.com/cadenza-audio/cadenza-api/internal/service"
)

// GenerationAPI is the surface of the generation service the task handler
// consumes.
type GenerationAPI interface {
	Enqueue(ctx context.Context, req service.GenerateRequest) (*domain.GenerationTask, error)
	Get(ctx context.Context, id uuid.UUID) (*domain.GenerationTask, error)
	List(ctx context.Context) ([]*domain.GenerationTask, error)
	Delete(ctx context.Context, id uuid.UUID) error
	AudioPath(ctx context.Context, id uuid.UUID) (string, error)
}

// GenerationRequest is the body of POST /api/generate. Zero numeric fields
// fall back to the configured defaults.
type GenerationRequest struct {
	Prompt           string  `json:"prompt" validate:"required,min=1"`
	Duration         float64 `json:"duration" validate:"omitempty,gt=0"`
	GuidanceScale    float64 `json:"guidance_scale" validate:"omitempty,gt=0"`
	Temperature      float64 `json:"temperature" validate:"omitempty,gt=0"`
	ModelID          *string `json:"model_id,omitempty" validate:"omitempty,uuid"`
	ConditioningPath string  `json:"conditioning_path,omitempty"`
}

// EnqueueResponse acknowledges an accepted submission.
type EnqueueResponse struct {
	TaskID string `json:"task_id"`
	Status string `json:"status"`
}

// TaskResponse is the task snapshot returned by the task endpoints.
type TaskResponse struct {
	ID            string     `json:"id"`
	Prompt        string     `json:"prompt"`
	Status        string     `json:"status"`
	Progress      float64    `json:"progress"`
	Duration      float64    `json:"duration"`
	GuidanceScale float64    `json:"guidance_scale"`
	Temperature   float64    `json:"temperature"`
	ModelID       *string    `json:"model_id,omitempty"`
	FilePath      string     `json:"file_path,omitempty"`
	ErrorMessage  string     `json:"error_message,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
}

// TaskHandler serves the generation task endpoints. Conditioning clips
// uploaded with a submission are stored under uploadDir.
type TaskHandler struct {
	generation GenerationAPI
	uploadDir  string
	logger     *slog.Logger
}

// NewTaskHandler creates a TaskHandler. Panics when generation is nil.
func NewTaskHandler(generation GenerationAPI, uploadDir string, log *slog.Logger) *TaskHandler {
	if generation == nil {
		panic("generation service cannot be nil")
	}
	if log == nil {
		log = slog.Default()
	}

	return &TaskHandler{
		generation: generation,
		uploadDir:  uploadDir,
		logger:     log.With(slog.String("component", "task_handler")),
	}
}

// Generate handles POST /api/generate. The task is queued and processed
// asynchronously; the response carries the id to poll with.
func (h *TaskHandler) Generate(w http.ResponseWriter, r *http.Request) {
	var req GenerationRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}
	if err := shared.ValidateRequest(req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}

	submit, err := toServiceRequest(req)
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid model_id: must be a UUID")
		return
	}

	task, err := h.generation.Enqueue(r.Context(), submit)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusAccepted, EnqueueResponse{
		TaskID: task.ID.String(),
		Status: string(task.Status),
	})
}

// GenerateFromAudio handles POST /api/generate/audio. The conditioning clip
// arrives as the multipart field "audio_file" alongside form fields; it is
// stored under the upload directory and the task is enqueued with its path.
func (h *TaskHandler) GenerateFromAudio(w http.ResponseWriter, r *http.Request) {
	file, header, err := r.FormFile("audio_file")
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Missing audio file upload")
		return
	}
	defer func() { _ = file.Close() }()

	prompt := r.FormValue("prompt")
	if strings.TrimSpace(prompt) == "" {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Validation error: prompt is required")
		return
	}

	submit, err := toServiceRequest(GenerationRequest{
		Prompt:   prompt,
		Duration: formFloat(r, "duration"),
		ModelID:  formString(r, "model_id"),
	})
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid model_id: must be a UUID")
		return
	}

	path, err := h.saveConditioningClip(file, header.Filename)
	if err != nil {
		h.logger.Error("failed to store conditioning clip", slog.String("error", err.Error()))
		shared.RespondWithError(w, r, http.StatusInternalServerError, "Failed to store uploaded audio")
		return
	}
	submit.ConditioningPath = path

	task, err := h.generation.Enqueue(r.Context(), submit)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusAccepted, EnqueueResponse{
		TaskID: task.ID.String(),
		Status: string(task.Status),
	})
}

// saveConditioningClip copies the upload into the conditioning directory
// under a fresh name, keeping the original extension.
func (h *TaskHandler) saveConditioningClip(src io.Reader, original string) (string, error) {
	dir := filepath.Join(h.uploadDir, "conditioning")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}

	path := filepath.Join(dir, uuid.New().String()+filepath.Ext(original))
	dst, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer func() { _ = dst.Close() }()

	if _, err := io.Copy(dst, src); err != nil {
		return "", err
	}
	return path, nil
}

// ListTasks handles GET /api/tasks.
func (h *TaskHandler) ListTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := h.generation.List(r.Context())
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	out := make([]TaskResponse, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, taskToResponse(t))
	}
	shared.RespondWithJSON(w, r, http.StatusOK, out)
}

// GetTask handles GET /api/tasks/{id}.
func (h *TaskHandler) GetTask(w http.ResponseWriter, r *http.Request) {
	id, ok := getPathUUID(w, r, "id")
	if !ok {
		return
	}

	task, err := h.generation.Get(r.Context(), id)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, taskToResponse(task))
}

// DeleteTask handles DELETE /api/tasks/{id}.
func (h *TaskHandler) DeleteTask(w http.ResponseWriter, r *http.Request) {
	id, ok := getPathUUID(w, r, "id")
	if !ok {
		return
	}

	if err := h.generation.Delete(r.Context(), id); err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// StreamAudio handles GET /api/tasks/{id}/audio, serving the completed
// task's WAV file.
func (h *TaskHandler) StreamAudio(w http.ResponseWriter, r *http.Request) {
	id, ok := getPathUUID(w, r, "id")
	if !ok {
		return
	}

	path, err := h.generation.AudioPath(r.Context(), id)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", "generation_"+id.String()+".wav"))
	w.Header().Set("Content-Type", "audio/wav")
	http.ServeFile(w, r, path)
}

// toServiceRequest converts the DTO, parsing the optional model id.
func toServiceRequest(req GenerationRequest) (service.GenerateRequest, error) {
	out := service.GenerateRequest{
		Prompt:           req.Prompt,
		Duration:         req.Duration,
		GuidanceScale:    req.GuidanceScale,
		Temperature:      req.Temperature,
		ConditioningPath: req.ConditioningPath,
	}
	if req.ModelID != nil {
		id, err := uuid.Parse(*req.ModelID)
		if err != nil {
			return service.GenerateRequest{}, fmt.Errorf("parsing model_id: %w", err)
		}
		out.ModelID = &id
	}
	return out, nil
}

func taskToResponse(t *domain.GenerationTask) TaskResponse {
	resp := TaskResponse{
		ID:            t.ID.String(),
		Prompt:        t.Prompt,
		Status:        string(t.Status),
		Progress:      t.Progress,
		Duration:      t.Duration,
		GuidanceScale: t.GuidanceScale,
		Temperature:   t.Temperature,
		FilePath:      t.FilePath,
		ErrorMessage:  t.ErrorMessage,
		CreatedAt:     t.CreatedAt,
		CompletedAt:   t.CompletedAt,
	}
	if t.ModelID != nil {
		s := t.ModelID.String()
		resp.ModelID = &s
	}
	return resp
}
