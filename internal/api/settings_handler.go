package api

import (
	"log/slog"
	"net/http"

	"github.com/cadenza-audio/cadenza-api/internal/api/shared"
	"github.com/cadenza-audio/cadenza-api/internal/settings"
)

// SettingsAPI is the surface of the settings store the handler consumes.
type SettingsAPI interface {
	Get() settings.Settings
	Apply(u settings.Update) (settings.Settings, error)
}

// SettingsHandler serves the runtime configuration endpoints.
type SettingsHandler struct {
	settings SettingsAPI
	logger   *slog.Logger
}

// NewSettingsHandler creates a SettingsHandler. Panics when store is nil.
func NewSettingsHandler(store SettingsAPI, log *slog.Logger) *SettingsHandler {
	if store == nil {
		panic("settings store cannot be nil")
	}
	if log == nil {
		log = slog.Default()
	}

	return &SettingsHandler{
		settings: store,
		logger:   log.With(slog.String("component", "settings_handler")),
	}
}

// GetSettings handles GET /api/config.
func (h *SettingsHandler) GetSettings(w http.ResponseWriter, r *http.Request) {
	shared.RespondWithJSON(w, r, http.StatusOK, h.settings.Get())
}

// UpdateSettings handles PUT /api/config. The body is a partial update;
// omitted fields keep their current values.
func (h *SettingsHandler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var update settings.Update
	if err := shared.DecodeJSON(r, &update); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}

	applied, err := h.settings.Apply(update)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, applied)
}
