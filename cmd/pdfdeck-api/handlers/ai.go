package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/pdfdeck/pdfdeck/internal/batch"
	"github.com/pdfdeck/pdfdeck/internal/domain"
	"github.com/pdfdeck/pdfdeck/internal/llm"
	"github.com/pdfdeck/pdfdeck/internal/observability"
	"github.com/pdfdeck/pdfdeck/internal/registry"
)

// AIHandler handles single AI calls and batch submissions.
type AIHandler struct {
	logger       *observability.Logger
	gateway      *llm.Gateway
	orchestrator *batch.Orchestrator
	registry     *registry.Registry
}

// NewAIHandler creates a new AI handler.
func NewAIHandler(logger *observability.Logger, gateway *llm.Gateway, orchestrator *batch.Orchestrator, reg *registry.Registry) *AIHandler {
	return &AIHandler{
		logger:       logger,
		gateway:      gateway,
		orchestrator: orchestrator,
		registry:     reg,
	}
}

// SingleRequestDTO is the request body for POST /process_single.
type SingleRequestDTO struct {
	APIKey      string   `json:"api_key"`
	Model       string   `json:"model"`
	Prompt      string   `json:"prompt"`
	Images      []string `json:"images"`
	Provider    string   `json:"provider"`
	BaseURL     string   `json:"base_url"`
	Temperature float64  `json:"temperature"`
}

// ProcessSingle handles POST /process_single: one synchronous provider call
// whose output is run through the tolerant JSON extractor. Provider failures
// surface as a 500 carrying the underlying message; unparseable output is
// not an error and comes back as the parser's sentinel payload.
func (h *AIHandler) ProcessSingle(w http.ResponseWriter, r *http.Request) {
	var req SingleRequestDTO
	if !decodeBody(w, r, &req) {
		return
	}

	var fieldErrs []FieldError
	if req.APIKey == "" {
		fieldErrs = append(fieldErrs, FieldError{Field: "api_key", Message: "api_key is required"})
	}
	if req.Model == "" {
		fieldErrs = append(fieldErrs, FieldError{Field: "model", Message: "model is required"})
	}
	if req.Prompt == "" {
		fieldErrs = append(fieldErrs, FieldError{Field: "prompt", Message: "prompt is required"})
	}
	if req.Provider == "" {
		fieldErrs = append(fieldErrs, FieldError{Field: "provider", Message: "provider is required"})
	}
	if len(fieldErrs) > 0 {
		writeValidationError(w, fieldErrs)
		return
	}

	raw, err := h.gateway.Invoke(r.Context(), llm.Request{
		Provider:    req.Provider,
		APIKey:      req.APIKey,
		Model:       req.Model,
		Prompt:      req.Prompt,
		Images:      req.Images,
		BaseURL:     req.BaseURL,
		Temperature: req.Temperature,
	})
	if err != nil {
		h.logger.Error().Err(err).Str("provider", req.Provider).Msg("AI call failed")
		status := http.StatusInternalServerError
		if domain.TypeOf(err) == domain.ErrorTypeValidation {
			status = http.StatusBadRequest
		}
		writeError(w, status, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, llm.ExtractJSON(raw))
}

// BatchRequestDTO is the request body for POST /submit_batch.
type BatchRequestDTO struct {
	APIKey      string             `json:"api_key"`
	Model       string             `json:"model"`
	Items       []domain.BatchItem `json:"items"`
	Temperature float64            `json:"temperature"`
}

// SubmitBatch handles POST /submit_batch: registers the batch and returns
// its id immediately while the fan-out runs in the background.
func (h *AIHandler) SubmitBatch(w http.ResponseWriter, r *http.Request) {
	var req BatchRequestDTO
	if !decodeBody(w, r, &req) {
		return
	}

	var fieldErrs []FieldError
	if req.APIKey == "" {
		fieldErrs = append(fieldErrs, FieldError{Field: "api_key", Message: "api_key is required"})
	}
	if req.Model == "" {
		fieldErrs = append(fieldErrs, FieldError{Field: "model", Message: "model is required"})
	}
	if req.Items == nil {
		fieldErrs = append(fieldErrs, FieldError{Field: "items", Message: "items is required"})
	}
	if len(fieldErrs) > 0 {
		writeValidationError(w, fieldErrs)
		return
	}

	batchID := h.orchestrator.Submit(batch.Submission{
		APIKey:      req.APIKey,
		Model:       req.Model,
		Items:       req.Items,
		Temperature: req.Temperature,
	})

	h.logger.Info().Str("batch_id", batchID).Int("total", len(req.Items)).Msg("Batch submitted")

	writeJSON(w, http.StatusOK, map[string]string{"batch_id": batchID})
}

// BatchStatusDTO is the response body for GET /check_batch/{batchID}.
type BatchStatusDTO struct {
	State   domain.BatchState    `json:"state"`
	Results []domain.BatchResult `json:"results"`
	Total   int                  `json:"total"`
}

// CheckBatch handles GET /check_batch/{batchID}. Batches are memory-only;
// there is no disk recovery for unknown ids.
func (h *AIHandler) CheckBatch(w http.ResponseWriter, r *http.Request) {
	batchID := chi.URLParam(r, "batchID")

	job, ok := h.registry.GetBatchJob(batchID)
	if !ok {
		writeError(w, http.StatusNotFound, "Batch not found")
		return
	}

	writeJSON(w, http.StatusOK, BatchStatusDTO{
		State:   job.State,
		Results: job.Results,
		Total:   job.Total,
	})
}
