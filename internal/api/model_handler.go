package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/cadenza-audio/cadenza-api/internal/api/shared"
	"github.com/cadenza-audio/cadenza-api/internal/domain"
)

// ModelAPI is the surface of the model service the handler consumes.
type ModelAPI interface {
	List(ctx context.Context) ([]*domain.ModelCheckpoint, error)
	Get(ctx context.Context, id uuid.UUID) (*domain.ModelCheckpoint, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// CheckpointResponse is the checkpoint snapshot returned by the model
// endpoints.
type CheckpointResponse struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	IsBase      bool      `json:"is_base"`
	CreatedAt   time.Time `json:"created_at"`
}

// ModelHandler serves the model checkpoint endpoints.
type ModelHandler struct {
	models ModelAPI
	logger *slog.Logger
}

// NewModelHandler creates a ModelHandler. Panics when models is nil.
func NewModelHandler(models ModelAPI, log *slog.Logger) *ModelHandler {
	if models == nil {
		panic("model service cannot be nil")
	}
	if log == nil {
		log = slog.Default()
	}

	return &ModelHandler{
		models: models,
		logger: log.With(slog.String("component", "model_handler")),
	}
}

// ListModels handles GET /api/models.
func (h *ModelHandler) ListModels(w http.ResponseWriter, r *http.Request) {
	checkpoints, err := h.models.List(r.Context())
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	out := make([]CheckpointResponse, 0, len(checkpoints))
	for _, c := range checkpoints {
		out = append(out, checkpointToResponse(c))
	}
	shared.RespondWithJSON(w, r, http.StatusOK, out)
}

// GetModel handles GET /api/models/{id}.
func (h *ModelHandler) GetModel(w http.ResponseWriter, r *http.Request) {
	id, ok := getPathUUID(w, r, "id")
	if !ok {
		return
	}

	checkpoint, err := h.models.Get(r.Context(), id)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, checkpointToResponse(checkpoint))
}

// DeleteModel handles DELETE /api/models/{id}. The base model is refused.
func (h *ModelHandler) DeleteModel(w http.ResponseWriter, r *http.Request) {
	id, ok := getPathUUID(w, r, "id")
	if !ok {
		return
	}

	if err := h.models.Delete(r.Context(), id); err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func checkpointToResponse(c *domain.ModelCheckpoint) CheckpointResponse {
	return CheckpointResponse{
		ID:          c.ID.String(),
		Name:        c.Name,
		Description: c.Description,
		IsBase:      c.IsBase,
		CreatedAt:   c.CreatedAt,
	}
}
