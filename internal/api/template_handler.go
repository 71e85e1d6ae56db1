package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/cadenza-audio/cadenza-api/internal/api/shared"
	"github.com/cadenza-audio/cadenza-api/internal/prompts"
)

// TemplateAPI is the surface of the prompt template library the handler
// consumes.
type TemplateAPI interface {
	List() map[string]map[string]string
	Category(category string) (map[string]string, error)
	Get(category, name string) (string, error)
	Add(category, name, text string) error
	Remove(category, name string) error
	Search(query string) map[string]map[string]string
	Combine(refs ...prompts.TemplateRef) string
}

// AddTemplateRequest is the body of POST /api/templates.
type AddTemplateRequest struct {
	Category string `json:"category" validate:"required,min=1"`
	Name     string `json:"name" validate:"required,min=1"`
	Text     string `json:"text" validate:"required,min=1"`
}

// CombineRequest is the body of POST /api/templates/combine.
type CombineRequest struct {
	Parts []prompts.TemplateRef `json:"parts" validate:"required,min=1,dive"`
}

// CombineResponse carries the assembled prompt.
type CombineResponse struct {
	Prompt string `json:"prompt"`
}

// TemplateResponse is one template's content.
type TemplateResponse struct {
	Category string `json:"category"`
	Name     string `json:"name"`
	Text     string `json:"text"`
}

// TemplateHandler serves the prompt template endpoints.
type TemplateHandler struct {
	templates TemplateAPI
	logger    *slog.Logger
}

// NewTemplateHandler creates a TemplateHandler. Panics when templates is
// nil.
func NewTemplateHandler(templates TemplateAPI, log *slog.Logger) *TemplateHandler {
	if templates == nil {
		panic("template library cannot be nil")
	}
	if log == nil {
		log = slog.Default()
	}

	return &TemplateHandler{
		templates: templates,
		logger:    log.With(slog.String("component", "template_handler")),
	}
}

// ListTemplates handles GET /api/templates.
func (h *TemplateHandler) ListTemplates(w http.ResponseWriter, r *http.Request) {
	shared.RespondWithJSON(w, r, http.StatusOK, h.templates.List())
}

// SearchTemplates handles GET /api/templates/search?q=.
func (h *TemplateHandler) SearchTemplates(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Missing query parameter q")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, h.templates.Search(query))
}

// CombineTemplates handles POST /api/templates/combine.
func (h *TemplateHandler) CombineTemplates(w http.ResponseWriter, r *http.Request) {
	var req CombineRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}
	if err := shared.ValidateRequest(req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, CombineResponse{
		Prompt: h.templates.Combine(req.Parts...),
	})
}

// GetCategory handles GET /api/templates/{category}.
func (h *TemplateHandler) GetCategory(w http.ResponseWriter, r *http.Request) {
	category := chi.URLParam(r, "category")

	templates, err := h.templates.Category(category)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, templates)
}

// GetTemplate handles GET /api/templates/{category}/{name}.
func (h *TemplateHandler) GetTemplate(w http.ResponseWriter, r *http.Request) {
	category := chi.URLParam(r, "category")
	name := chi.URLParam(r, "name")

	text, err := h.templates.Get(category, name)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, TemplateResponse{
		Category: category,
		Name:     name,
		Text:     text,
	})
}

// AddTemplate handles POST /api/templates.
func (h *TemplateHandler) AddTemplate(w http.ResponseWriter, r *http.Request) {
	var req AddTemplateRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}
	if err := shared.ValidateRequest(req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}

	if err := h.templates.Add(req.Category, req.Name, req.Text); err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusCreated, TemplateResponse{
		Category: req.Category,
		Name:     req.Name,
		Text:     req.Text,
	})
}

// RemoveTemplate handles DELETE /api/templates/{category}/{name}.
func (h *TemplateHandler) RemoveTemplate(w http.ResponseWriter, r *http.Request) {
	category := chi.URLParam(r, "category")
	name := chi.URLParam(r, "name")

	if err := h.templates.Remove(category, name); err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
