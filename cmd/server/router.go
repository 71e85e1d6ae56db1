package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/cadenza-audio/cadenza-api/internal/api"
	"github.com/cadenza-audio/cadenza-api/internal/api/middleware"
	"github.com/cadenza-audio/cadenza-api/internal/api/shared"
)

// setupRouter builds the HTTP router over the application's services.
func (app *application) setupRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.Trace)

	taskHandler := api.NewTaskHandler(app.generationService, app.config.Generation.OutputDir, app.logger)
	batchHandler := api.NewBatchHandler(app.batchService, app.logger)
	trainingHandler := api.NewTrainingHandler(app.trainingController, app.logger)
	modelHandler := api.NewModelHandler(app.modelService, app.logger)
	templateHandler := api.NewTemplateHandler(app.templateLibrary, app.logger)
	settingsHandler := api.NewSettingsHandler(app.settingsStore, app.logger)
	audioHandler := api.NewAudioHandler(
		app.generationService,
		app.exporter,
		app.separator,
		app.config.Generation.OutputDir,
		app.logger,
	)

	r.Route("/api", func(r chi.Router) {
		r.Post("/generate", taskHandler.Generate)
		r.Post("/generate/audio", taskHandler.GenerateFromAudio)
		r.Get("/tasks", taskHandler.ListTasks)
		r.Get("/tasks/{id}", taskHandler.GetTask)
		r.Delete("/tasks/{id}", taskHandler.DeleteTask)
		r.Get("/tasks/{id}/audio", taskHandler.StreamAudio)

		r.Post("/generate/batch", batchHandler.GenerateBatch)
		r.Post("/generate/variations", batchHandler.GenerateVariations)
		r.Post("/generate/from-file", batchHandler.GenerateFromFile)
		r.Post("/playlist/themed", batchHandler.GenerateThemedPlaylist)

		r.Post("/training/dataset/process", trainingHandler.ProcessDataset)
		r.Post("/training/start", trainingHandler.StartTraining)
		r.Post("/training/stop", trainingHandler.StopTraining)
		r.Get("/training/status", trainingHandler.GetStatus)

		r.Get("/models", modelHandler.ListModels)
		r.Get("/models/{id}", modelHandler.GetModel)
		r.Delete("/models/{id}", modelHandler.DeleteModel)

		r.Get("/templates", templateHandler.ListTemplates)
		r.Post("/templates", templateHandler.AddTemplate)
		r.Get("/templates/search", templateHandler.SearchTemplates)
		r.Post("/templates/combine", templateHandler.CombineTemplates)
		r.Get("/templates/{category}", templateHandler.GetCategory)
		r.Get("/templates/{category}/{name}", templateHandler.GetTemplate)
		r.Delete("/templates/{category}/{name}", templateHandler.RemoveTemplate)

		r.Get("/config", settingsHandler.GetSettings)
		r.Put("/config", settingsHandler.UpdateSettings)

		r.Post("/audio/analyze", audioHandler.Analyze)
		r.Get("/audio/waveform", audioHandler.Waveform)
		r.Post("/audio/export", audioHandler.Export)
		r.Post("/audio/separate", audioHandler.Separate)
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		shared.RespondWithJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
	})

	return r
}
