package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/cadenza-audio/cadenza-api/internal/api/shared"
)

// getPathUUID parses a UUID path parameter. On failure it writes a 400
// response and returns false; the handler should return immediately.
func getPathUUID(w http.ResponseWriter, r *http.Request, paramName string) (uuid.UUID, bool) {
	raw := chi.URLParam(r, paramName)
	if raw == "" {
		shared.RespondWithError(w, r, http.StatusBadRequest,
			fmt.Sprintf("Missing %s in path", paramName))
		return uuid.Nil, false
	}

	id, err := uuid.Parse(raw)
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest,
			fmt.Sprintf("Invalid %s: must be a UUID", paramName))
		return uuid.Nil, false
	}
	return id, true
}

// formFloat reads an optional numeric form field. Missing or malformed
// values read as zero, so the configured defaults apply downstream.
func formFloat(r *http.Request, field string) float64 {
	raw := r.FormValue(field)
	if raw == "" {
		return 0
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0
	}
	return v
}

// formString reads an optional form field, nil when absent.
func formString(r *http.Request, field string) *string {
	raw := r.FormValue(field)
	if raw == "" {
		return nil
	}
	return &raw
}
