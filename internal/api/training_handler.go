package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/cadenza-audio/cadenza-api/internal/api/shared"
	"github.com/cadenza-audio/cadenza-api/internal/training"
)

// TrainingAPI is the surface of the training controller the handler
// consumes.
type TrainingAPI interface {
	ProcessDataset(ctx context.Context) error
	StartTraining(ctx context.Context, params training.Params) error
	Stop()
	Status() training.Status
}

// TrainingStartRequest is the body of POST /api/training/start. Zero fields
// fall back to the configured training defaults.
type TrainingStartRequest struct {
	Epochs       int     `json:"epochs" validate:"omitempty,gte=1"`
	LearningRate float64 `json:"learning_rate" validate:"omitempty,gt=0"`
	BatchSize    int     `json:"batch_size" validate:"omitempty,gte=1"`
}

// TrainingAckResponse acknowledges an accepted training request.
type TrainingAckResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// TrainingHandler serves the training pipeline endpoints.
type TrainingHandler struct {
	training TrainingAPI
	logger   *slog.Logger
}

// NewTrainingHandler creates a TrainingHandler. Panics when training is nil.
func NewTrainingHandler(training TrainingAPI, log *slog.Logger) *TrainingHandler {
	if training == nil {
		panic("training controller cannot be nil")
	}
	if log == nil {
		log = slog.Default()
	}

	return &TrainingHandler{
		training: training,
		logger:   log.With(slog.String("component", "training_handler")),
	}
}

// ProcessDataset handles POST /api/training/dataset/process. Preprocessing
// runs in the background; progress is observed through the status endpoint.
func (h *TrainingHandler) ProcessDataset(w http.ResponseWriter, r *http.Request) {
	if err := h.training.ProcessDataset(r.Context()); err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusAccepted, TrainingAckResponse{
		Status:  string(training.StateProcessingDataset),
		Message: "Dataset processing started",
	})
}

// StartTraining handles POST /api/training/start. An empty body uses the
// configured defaults for every parameter.
func (h *TrainingHandler) StartTraining(w http.ResponseWriter, r *http.Request) {
	var req TrainingStartRequest
	if r.ContentLength > 0 {
		if err := shared.DecodeJSON(r, &req); err != nil {
			shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
			return
		}
		if err := shared.ValidateRequest(req); err != nil {
			shared.RespondWithError(w, r, http.StatusBadRequest, "Validation error: "+err.Error())
			return
		}
	}

	params := training.Params{
		Epochs:       req.Epochs,
		LearningRate: req.LearningRate,
		BatchSize:    req.BatchSize,
	}
	if err := h.training.StartTraining(r.Context(), params); err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusAccepted, TrainingAckResponse{
		Status:  string(training.StateTraining),
		Message: "Training started",
	})
}

// StopTraining handles POST /api/training/stop. The stop is advisory: the
// active loop observes it at its next file or epoch boundary.
func (h *TrainingHandler) StopTraining(w http.ResponseWriter, r *http.Request) {
	h.training.Stop()

	shared.RespondWithJSON(w, r, http.StatusAccepted, TrainingAckResponse{
		Status:  string(h.training.Status().State),
		Message: "Stop requested",
	})
}

// GetStatus handles GET /api/training/status.
func (h *TrainingHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	shared.RespondWithJSON(w, r, http.StatusOK, h.training.Status())
}
