package batch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdfdeck/pdfdeck/internal/domain"
	"github.com/pdfdeck/pdfdeck/internal/llm"
	"github.com/pdfdeck/pdfdeck/internal/observability"
	"github.com/pdfdeck/pdfdeck/internal/registry"
)

type stubCounter struct{}

func (stubCounter) PageCount(path string) (int, error) { return 0, errors.New("unused") }

// scriptedInvoker fails for custom ids listed in failFor and tracks the
// maximum number of calls in flight at once.
type scriptedInvoker struct {
	failFor map[string]bool
	delay   time.Duration

	mu       sync.Mutex
	inflight int
	peak     int
	prompts  []string
}

func (s *scriptedInvoker) Invoke(ctx context.Context, req llm.Request) (string, error) {
	s.mu.Lock()
	s.inflight++
	if s.inflight > s.peak {
		s.peak = s.inflight
	}
	s.prompts = append(s.prompts, req.Prompt)
	s.mu.Unlock()

	if s.delay > 0 {
		time.Sleep(s.delay)
	}

	s.mu.Lock()
	s.inflight--
	s.mu.Unlock()

	if s.failFor[req.Prompt] {
		return "", errors.New("provider exploded")
	}
	return `{"cards":[]}`, nil
}

func newTestOrchestrator(t *testing.T, invoker Invoker, concurrency int) (*Orchestrator, *registry.Registry) {
	t.Helper()
	reg := registry.New(observability.Nop(), t.TempDir(), stubCounter{})
	return NewOrchestrator(observability.Nop(), reg, invoker, concurrency), reg
}

func items(n int) []domain.BatchItem {
	out := make([]domain.BatchItem, n)
	for i := range out {
		out[i] = domain.BatchItem{
			CustomID:    fmt.Sprintf("card-%d", i+1),
			Prompt:      fmt.Sprintf("card-%d", i+1),
			ImageBase64: "aGVsbG8=",
		}
	}
	return out
}

func waitCompleted(t *testing.T, reg *registry.Registry, id string) domain.BatchJob {
	t.Helper()
	var job domain.BatchJob
	require.Eventually(t, func() bool {
		var ok bool
		job, ok = reg.GetBatchJob(id)
		return ok && job.State == domain.BatchCompleted
	}, 5*time.Second, 10*time.Millisecond)
	return job
}

func TestSubmit_ReturnsImmediatelyInProcessingState(t *testing.T) {
	inv := &scriptedInvoker{delay: 100 * time.Millisecond}
	o, reg := newTestOrchestrator(t, inv, 0)

	id := o.Submit(Submission{APIKey: "k", Model: "m", Items: items(2)})

	job, ok := reg.GetBatchJob(id)
	require.True(t, ok)
	assert.Equal(t, domain.BatchProcessing, job.State)
	assert.Equal(t, 2, job.Total)

	waitCompleted(t, reg, id)
}

func TestRun_ItemFailureIsIsolated(t *testing.T) {
	inv := &scriptedInvoker{failFor: map[string]bool{"card-2": true}}
	o, reg := newTestOrchestrator(t, inv, 0)

	id := o.Submit(Submission{APIKey: "k", Model: "m", Items: items(3)})
	job := waitCompleted(t, reg, id)

	require.Len(t, job.Results, 3)

	byID := map[string]domain.BatchResult{}
	for _, res := range job.Results {
		byID[res.CustomID] = res
	}

	assert.NotNil(t, byID["card-1"].Response)
	assert.Empty(t, byID["card-1"].Error)

	assert.Nil(t, byID["card-2"].Response)
	assert.Contains(t, byID["card-2"].Error, "provider exploded")

	assert.NotNil(t, byID["card-3"].Response)
	assert.Empty(t, byID["card-3"].Error)
}

func TestRun_ConcurrencyBound(t *testing.T) {
	inv := &scriptedInvoker{delay: 30 * time.Millisecond}
	o, reg := newTestOrchestrator(t, inv, 5)

	id := o.Submit(Submission{APIKey: "k", Model: "m", Items: items(20)})
	job := waitCompleted(t, reg, id)

	assert.Len(t, job.Results, 20)

	inv.mu.Lock()
	peak := inv.peak
	inv.mu.Unlock()
	assert.LessOrEqual(t, peak, 5, "no more than 5 provider calls in flight")
	assert.Greater(t, peak, 1, "fan-out actually ran concurrently")
}

func TestRun_SuccessCarriesGeminiEnvelope(t *testing.T) {
	inv := &scriptedInvoker{}
	o, reg := newTestOrchestrator(t, inv, 0)

	id := o.Submit(Submission{APIKey: "k", Model: "m", Items: items(1)})
	job := waitCompleted(t, reg, id)

	require.Len(t, job.Results, 1)
	env, ok := job.Results[0].Response.(map[string]any)
	require.True(t, ok)
	body := env["body"].(map[string]any)
	assert.Contains(t, body, "candidates")
}

func TestRun_EmptySubmissionCompletes(t *testing.T) {
	inv := &scriptedInvoker{}
	o, reg := newTestOrchestrator(t, inv, 0)

	id := o.Submit(Submission{APIKey: "k", Model: "m"})
	job := waitCompleted(t, reg, id)
	assert.Empty(t, job.Results)
	assert.Equal(t, 0, job.Total)
}
