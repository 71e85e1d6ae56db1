package api

import (
	"errors"
	"net/http"

	"github.com/cadenza-audio/cadenza-api/internal/api/shared"
	"github.com/cadenza-audio/cadenza-api/internal/audio"
	"github.com/cadenza-audio/cadenza-api/internal/generation"
	"github.com/cadenza-audio/cadenza-api/internal/prompts"
	"github.com/cadenza-audio/cadenza-api/internal/service"
	"github.com/cadenza-audio/cadenza-api/internal/settings"
	"github.com/cadenza-audio/cadenza-api/internal/store"
	"github.com/cadenza-audio/cadenza-api/internal/training"
)

// MapErrorToStatusCode maps internal errors to HTTP status codes. Unknown
// errors report 500.
func MapErrorToStatusCode(err error) int {
	switch {
	case errors.Is(err, service.ErrInvalidRequest),
		errors.Is(err, settings.ErrInvalidSettings),
		errors.Is(err, prompts.ErrInvalidTemplate),
		errors.Is(err, audio.ErrUnsupportedFormat),
		errors.Is(err, store.ErrInvalidEntity):
		return http.StatusBadRequest

	case errors.Is(err, store.ErrTaskNotFound),
		errors.Is(err, store.ErrCheckpointNotFound),
		errors.Is(err, prompts.ErrTemplateNotFound):
		return http.StatusNotFound

	case errors.Is(err, training.ErrAlreadyInProgress),
		errors.Is(err, training.ErrDatasetNotReady),
		errors.Is(err, service.ErrTaskNotReady),
		errors.Is(err, service.ErrBaseModelImmutable),
		errors.Is(err, prompts.ErrTemplateExists):
		return http.StatusConflict

	case errors.Is(err, training.ErrNoInputFiles):
		return http.StatusUnprocessableEntity

	case errors.Is(err, generation.ErrNotImplemented):
		return http.StatusNotImplemented

	case errors.Is(err, generation.ErrModelUnavailable),
		errors.Is(err, audio.ErrSeparatorUnavailable):
		return http.StatusServiceUnavailable

	default:
		return http.StatusInternalServerError
	}
}

// GetSafeErrorMessage returns a client-safe message for the error. Messages
// this codebase constructs itself pass through; everything else maps to a
// canned phrase so internal detail never leaks.
func GetSafeErrorMessage(err error) string {
	if err == nil {
		return "An unexpected error occurred"
	}

	switch {
	// Validation detail is produced by this codebase and safe to return.
	case errors.Is(err, service.ErrInvalidRequest),
		errors.Is(err, prompts.ErrInvalidTemplate),
		errors.Is(err, audio.ErrUnsupportedFormat),
		errors.Is(err, generation.ErrNotImplemented):
		return err.Error()

	case errors.Is(err, settings.ErrInvalidSettings):
		return "Invalid settings update"

	case errors.Is(err, store.ErrTaskNotFound):
		return "Task not found"
	case errors.Is(err, store.ErrCheckpointNotFound):
		return "Model checkpoint not found"
	case errors.Is(err, prompts.ErrTemplateNotFound):
		return "Template not found"

	case errors.Is(err, training.ErrAlreadyInProgress):
		return "A training run is already in progress"
	case errors.Is(err, training.ErrDatasetNotReady):
		return "Dataset not ready: process the dataset first"
	case errors.Is(err, training.ErrNoInputFiles):
		return "No audio files found in the dataset directory"

	case errors.Is(err, service.ErrTaskNotReady):
		return "Task audio is not ready"
	case errors.Is(err, service.ErrBaseModelImmutable):
		return "The base model cannot be deleted"
	case errors.Is(err, prompts.ErrTemplateExists):
		return "Template already exists"

	case errors.Is(err, generation.ErrModelUnavailable):
		return "Generation model is unavailable"
	case errors.Is(err, audio.ErrSeparatorUnavailable):
		return "Stem separation is unavailable"

	case errors.Is(err, store.ErrInvalidEntity):
		return "Invalid entity data"

	default:
		return "An unexpected error occurred"
	}
}

// HandleAPIError maps err to a status code and writes the error response.
// An empty userMessage falls back to GetSafeErrorMessage.
func HandleAPIError(w http.ResponseWriter, r *http.Request, err error, userMessage string) {
	status := MapErrorToStatusCode(err)
	if userMessage == "" {
		userMessage = GetSafeErrorMessage(err)
	}
	shared.RespondWithErrorAndLog(w, r, status, userMessage, err)
}
