// Package main provides the API router setup.
package main

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/pdfdeck/pdfdeck/cmd/pdfdeck-api/handlers"
	"github.com/pdfdeck/pdfdeck/cmd/pdfdeck-api/middleware"
	"github.com/pdfdeck/pdfdeck/internal/batch"
	"github.com/pdfdeck/pdfdeck/internal/config"
	"github.com/pdfdeck/pdfdeck/internal/ingest"
	"github.com/pdfdeck/pdfdeck/internal/llm"
	"github.com/pdfdeck/pdfdeck/internal/observability"
	"github.com/pdfdeck/pdfdeck/internal/registry"
	"github.com/pdfdeck/pdfdeck/internal/render"
)

// NewRouter creates the main API router with all routes configured.
func NewRouter(logger *observability.Logger, cfg *config.Config) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	// Must stay above the AI gateway's per-call ceiling
	r.Use(chimiddleware.Timeout(3 * time.Minute))
	r.Use(middleware.CORS([]string{"*"}))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"running","service":"pdfdeck"}`))
	})

	// Service dependencies
	engine := render.NewEngine()
	reg := registry.New(logger, cfg.Storage.UploadDir, engine)
	pipeline := ingest.NewPipeline(logger, reg, ingest.EngineOpener(engine), cfg.Render.ThumbnailQuality)
	gateway := llm.NewGateway(logger,
		llm.WithTimeout(cfg.AI.RequestTimeout),
		llm.WithMaxTokens(cfg.AI.MaxTokens),
	)
	orchestrator := batch.NewOrchestrator(logger, reg, gateway, cfg.AI.BatchConcurrency)

	// Handlers
	pdfHandler := handlers.NewPDFHandler(logger, reg, engine, pipeline, cfg.Render)
	aiHandler := handlers.NewAIHandler(logger, gateway, orchestrator, reg)

	// PDF job routes
	r.Post("/upload_pdf", pdfHandler.Upload)
	r.Get("/check_pdf_job/{jobID}", pdfHandler.CheckJob)
	r.Post("/crop_batch_items", pdfHandler.CropBatch)
	r.Post("/get_page_image", pdfHandler.PageImage)
	r.Delete("/clear_temp_pdfs", pdfHandler.Clear)
	r.Get("/temp_pdf_count", pdfHandler.Count)

	// AI routes
	r.Post("/process_single", aiHandler.ProcessSingle)
	r.Post("/submit_batch", aiHandler.SubmitBatch)
	r.Get("/check_batch/{batchID}", aiHandler.CheckBatch)

	return r
}
