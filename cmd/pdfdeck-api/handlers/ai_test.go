package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdfdeck/pdfdeck/internal/batch"
	"github.com/pdfdeck/pdfdeck/internal/llm"
	"github.com/pdfdeck/pdfdeck/internal/observability"
	"github.com/pdfdeck/pdfdeck/internal/registry"
)

type okInvoker struct{}

func (okInvoker) Invoke(ctx context.Context, req llm.Request) (string, error) {
	return `{"cards":[]}`, nil
}

func newTestAIHandler(t *testing.T) (*AIHandler, *registry.Registry) {
	t.Helper()
	reg := registry.New(observability.Nop(), t.TempDir(), &stubCounter{err: errors.New("unused")})
	gateway := llm.NewGateway(observability.Nop())
	orchestrator := batch.NewOrchestrator(observability.Nop(), reg, okInvoker{}, 0)
	return NewAIHandler(observability.Nop(), gateway, orchestrator, reg), reg
}

func aiRouter(h *AIHandler) http.Handler {
	r := chi.NewRouter()
	r.Post("/process_single", h.ProcessSingle)
	r.Post("/submit_batch", h.SubmitBatch)
	r.Get("/check_batch/{batchID}", h.CheckBatch)
	return r
}

func TestProcessSingle_ValidationErrors(t *testing.T) {
	h, _ := newTestAIHandler(t)
	rr := doJSON(t, aiRouter(h), http.MethodPost, "/process_single", map[string]any{})

	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	detail := decodeResp(t, rr)["detail"].([]any)
	fields := []string{}
	for _, d := range detail {
		fields = append(fields, d.(map[string]any)["field"].(string))
	}
	assert.ElementsMatch(t, []string{"api_key", "model", "prompt", "provider"}, fields)
}

func TestProcessSingle_UnknownProvider(t *testing.T) {
	h, _ := newTestAIHandler(t)
	rr := doJSON(t, aiRouter(h), http.MethodPost, "/process_single", map[string]any{
		"api_key":  "k",
		"model":    "m",
		"prompt":   "extract",
		"provider": "mystery",
	})

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestProcessSingle_ExtractsFencedJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"candidates": []any{
				map[string]any{
					"content": map[string]any{
						"parts": []any{map[string]any{"text": "```json\n{\"front\":\"Q\",\"back\":\"A\"}\n```"}},
					},
				},
			},
		})
	}))
	defer srv.Close()

	h, _ := newTestAIHandler(t)
	rr := doJSON(t, aiRouter(h), http.MethodPost, "/process_single", map[string]any{
		"api_key":  "k",
		"model":    "m",
		"prompt":   "extract",
		"provider": "gemini",
		"base_url": srv.URL + "/",
	})

	require.Equal(t, http.StatusOK, rr.Code)
	body := decodeResp(t, rr)
	assert.Equal(t, "Q", body["front"])
	assert.Equal(t, "A", body["back"])
}

func TestProcessSingle_ProviderFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream down", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	h, _ := newTestAIHandler(t)
	rr := doJSON(t, aiRouter(h), http.MethodPost, "/process_single", map[string]any{
		"api_key":  "k",
		"model":    "m",
		"prompt":   "extract",
		"provider": "gemini",
		"base_url": srv.URL + "/",
	})

	require.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Contains(t, decodeResp(t, rr)["detail"], "503")
}

func TestSubmitBatch_ValidationErrors(t *testing.T) {
	h, _ := newTestAIHandler(t)
	rr := doJSON(t, aiRouter(h), http.MethodPost, "/submit_batch", map[string]any{})

	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	detail := decodeResp(t, rr)["detail"].([]any)
	fields := []string{}
	for _, d := range detail {
		fields = append(fields, d.(map[string]any)["field"].(string))
	}
	assert.ElementsMatch(t, []string{"api_key", "model", "items"}, fields)
}

func TestSubmitBatch_ThenCheckBatch(t *testing.T) {
	h, _ := newTestAIHandler(t)
	router := aiRouter(h)

	rr := doJSON(t, router, http.MethodPost, "/submit_batch", map[string]any{
		"api_key": "k",
		"model":   "m",
		"items": []map[string]any{
			{"custom_id": "card-1", "prompt": "extract", "image_base64": "aGVsbG8="},
		},
	})
	require.Equal(t, http.StatusOK, rr.Code)
	batchID, _ := decodeResp(t, rr)["batch_id"].(string)
	require.NotEmpty(t, batchID)

	require.Eventually(t, func() bool {
		rr := doJSON(t, router, http.MethodGet, "/check_batch/"+batchID, nil)
		if rr.Code != http.StatusOK {
			return false
		}
		return decodeResp(t, rr)["state"] == "COMPLETED"
	}, 5*time.Second, 10*time.Millisecond)

	rr = doJSON(t, router, http.MethodGet, "/check_batch/"+batchID, nil)
	body := decodeResp(t, rr)
	assert.Equal(t, float64(1), body["total"])
	results := body["results"].([]any)
	require.Len(t, results, 1)
	first := results[0].(map[string]any)
	assert.Equal(t, "card-1", first["custom_id"])
	assert.Contains(t, first, "response")
}

func TestCheckBatch_Unknown(t *testing.T) {
	h, _ := newTestAIHandler(t)
	rr := doJSON(t, aiRouter(h), http.MethodGet, "/check_batch/ghost", nil)

	require.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "Batch not found", decodeResp(t, rr)["detail"])
}
