// Package batch fans out independent AI vision calls under a bounded
// concurrency limit and publishes one aggregate result per submission.
package batch

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/pdfdeck/pdfdeck/internal/domain"
	"github.com/pdfdeck/pdfdeck/internal/llm"
	"github.com/pdfdeck/pdfdeck/internal/observability"
	"github.com/pdfdeck/pdfdeck/internal/registry"
)

// DefaultConcurrency caps in-flight provider calls per batch submission.
// The cap is per-batch, not global: two concurrent submissions may together
// exceed it.
const DefaultConcurrency = 5

// Invoker is the AI provider gateway contract the orchestrator depends on.
type Invoker interface {
	Invoke(ctx context.Context, req llm.Request) (string, error)
}

// Submission is one batch of (prompt, image) pairs for a single model.
type Submission struct {
	APIKey      string
	Model       string
	Items       []domain.BatchItem
	Temperature float64
}

// Orchestrator runs batch submissions in the background. Item failures are
// isolated: every submitted item produces exactly one result, and a failure
// never cancels or blocks siblings.
type Orchestrator struct {
	logger      *observability.Logger
	registry    *registry.Registry
	invoker     Invoker
	concurrency int
}

// NewOrchestrator creates a batch orchestrator. concurrency <= 0 falls back
// to DefaultConcurrency.
func NewOrchestrator(logger *observability.Logger, reg *registry.Registry, invoker Invoker, concurrency int) *Orchestrator {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	return &Orchestrator{
		logger:      logger.WithComponent("batch"),
		registry:    reg,
		invoker:     invoker,
		concurrency: concurrency,
	}
}

// Submit registers the batch job and starts the fan-out in the background,
// returning the batch id immediately.
func (o *Orchestrator) Submit(sub Submission) string {
	id := o.registry.CreateBatchJob(len(sub.Items))
	go o.run(id, sub)
	return id
}

func (o *Orchestrator) run(id string, sub Submission) {
	start := time.Now()
	results := make([]domain.BatchResult, len(sub.Items))

	var g errgroup.Group
	g.SetLimit(o.concurrency)

	for i, item := range sub.Items {
		g.Go(func() error {
			raw, err := o.invoker.Invoke(context.Background(), llm.Request{
				Provider:    "gemini",
				APIKey:      sub.APIKey,
				Model:       sub.Model,
				Prompt:      item.Prompt,
				Images:      []string{item.ImageBase64},
				Temperature: sub.Temperature,
			})
			if err != nil {
				results[i] = domain.BatchResult{CustomID: item.CustomID, Error: err.Error()}
				return nil
			}
			results[i] = domain.BatchResult{
				CustomID: item.CustomID,
				Response: llm.GeminiResponseEnvelope(raw),
			}
			return nil
		})
	}

	// Workers never return errors; Wait is purely the fan-in point.
	g.Wait()

	o.registry.CompleteBatch(id, results)

	failed := 0
	for _, res := range results {
		if res.Error != "" {
			failed++
		}
	}
	o.logger.Info().
		Str("batch_id", id).
		Int("total", len(results)).
		Int("failed", failed).
		Dur("elapsed", time.Since(start)).
		Msg("Batch completed")
}
