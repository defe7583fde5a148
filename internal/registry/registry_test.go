package registry

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdfdeck/pdfdeck/internal/domain"
	"github.com/pdfdeck/pdfdeck/internal/observability"
)

type stubCounter struct {
	pages int
	err   error
}

func (s *stubCounter) PageCount(path string) (int, error) {
	return s.pages, s.err
}

func newTestRegistry(t *testing.T, counter PageCounter) *Registry {
	t.Helper()
	if counter == nil {
		counter = &stubCounter{pages: 1}
	}
	return New(observability.Nop(), t.TempDir(), counter)
}

func page(num int) domain.RenderedPage {
	return domain.RenderedPage{PageNum: num}
}

func TestCreateAndGetPdfJob(t *testing.T) {
	r := newTestRegistry(t, nil)

	id := r.NewJobID()
	r.CreatePdfJob(id, "notes.pdf")

	job, ok := r.GetPdfJob(id)
	require.True(t, ok)
	assert.Equal(t, domain.PdfJobProcessing, job.Status)
	assert.Equal(t, "notes.pdf", job.Filename)
	assert.Empty(t, job.Pages)
	assert.Equal(t, r.PdfPath(id), job.FilePath)
}

func TestGetPdfJob_Unknown(t *testing.T) {
	r := newTestRegistry(t, nil)
	_, ok := r.GetPdfJob("nope")
	assert.False(t, ok)
}

func TestProgress_PrefixPolling(t *testing.T) {
	r := newTestRegistry(t, nil)
	id := r.NewJobID()
	r.CreatePdfJob(id, "doc.pdf")
	r.SetTotalPages(id, 3)

	r.AppendPage(id, page(1))
	r.AppendPage(id, page(2))

	prog, ok := r.Progress(id, 0)
	require.True(t, ok)
	assert.Equal(t, 2, prog.ProcessedCount)
	assert.Equal(t, 3, prog.TotalPages)
	assert.Len(t, prog.NewPages, 2)
	assert.Equal(t, 2, prog.NextIndex)

	// Pages grow monotonically; a later poll from the cursor sees only new pages
	r.AppendPage(id, page(3))
	prog, ok = r.Progress(id, prog.NextIndex)
	require.True(t, ok)
	assert.Len(t, prog.NewPages, 1)
	assert.Equal(t, 3, prog.NewPages[0].PageNum)
	assert.Equal(t, 3, prog.NextIndex)
}

func TestProgress_CursorPastEnd(t *testing.T) {
	r := newTestRegistry(t, nil)
	id := r.NewJobID()
	r.CreatePdfJob(id, "doc.pdf")
	r.AppendPage(id, page(1))

	prog, ok := r.Progress(id, 99)
	require.True(t, ok)
	assert.Empty(t, prog.NewPages)
	assert.Equal(t, 1, prog.NextIndex)
}

func TestProgress_NegativeCursor(t *testing.T) {
	r := newTestRegistry(t, nil)
	id := r.NewJobID()
	r.CreatePdfJob(id, "doc.pdf")
	r.AppendPage(id, page(1))

	prog, ok := r.Progress(id, -5)
	require.True(t, ok)
	assert.Len(t, prog.NewPages, 1)
}

func TestMutations_DefensiveOnMissingJob(t *testing.T) {
	r := newTestRegistry(t, nil)

	// None of these may panic or create a record
	r.AppendPage("ghost", page(1))
	r.SetTotalPages("ghost", 10)
	r.SetStatus("ghost", domain.PdfJobFailed, "boom")
	r.CompleteBatch("ghost", nil)

	_, ok := r.GetPdfJob("ghost")
	assert.False(t, ok)
}

func TestSetStatus_RecordsErrorOnlyWhenFailed(t *testing.T) {
	r := newTestRegistry(t, nil)
	id := r.NewJobID()
	r.CreatePdfJob(id, "doc.pdf")

	r.SetStatus(id, domain.PdfJobFailed, "open failed")
	job, _ := r.GetPdfJob(id)
	assert.Equal(t, domain.PdfJobFailed, job.Status)
	assert.Equal(t, "open failed", job.Error)
}

func TestReconcile_InMemoryIsNoop(t *testing.T) {
	r := newTestRegistry(t, nil)
	id := r.NewJobID()
	r.CreatePdfJob(id, "doc.pdf")

	assert.True(t, r.Reconcile(id))

	job, _ := r.GetPdfJob(id)
	assert.Equal(t, "doc.pdf", job.Filename)
}

func TestReconcile_FromDisk(t *testing.T) {
	counter := &stubCounter{pages: 7}
	r := newTestRegistry(t, counter)

	id := r.NewJobID()
	require.NoError(t, os.WriteFile(r.PdfPath(id), []byte("%PDF-1.4"), 0o644))

	assert.True(t, r.Reconcile(id))

	job, ok := r.GetPdfJob(id)
	require.True(t, ok)
	assert.Equal(t, domain.PdfJobDone, job.Status)
	assert.Equal(t, 7, job.TotalPages)
	assert.Empty(t, job.Pages, "thumbnails are not regenerated on reconcile")
}

func TestReconcile_MissingEverywhere(t *testing.T) {
	r := newTestRegistry(t, nil)
	assert.False(t, r.Reconcile("missing"))
}

func TestReconcile_UnreadableFile(t *testing.T) {
	counter := &stubCounter{err: errors.New("not a pdf")}
	r := newTestRegistry(t, counter)

	id := r.NewJobID()
	require.NoError(t, os.WriteFile(r.PdfPath(id), []byte("garbage"), 0o644))

	assert.False(t, r.Reconcile(id))
}

func TestBatchJob_AtomicPublish(t *testing.T) {
	r := newTestRegistry(t, nil)

	id := r.CreateBatchJob(2)
	job, ok := r.GetBatchJob(id)
	require.True(t, ok)
	assert.Equal(t, domain.BatchProcessing, job.State)
	assert.Equal(t, 2, job.Total)
	assert.Empty(t, job.Results)

	results := []domain.BatchResult{
		{CustomID: "a", Response: "ok"},
		{CustomID: "b", Error: "failed"},
	}
	r.CompleteBatch(id, results)

	job, _ = r.GetBatchJob(id)
	assert.Equal(t, domain.BatchCompleted, job.State)
	assert.Len(t, job.Results, 2)
}

func TestClearPdfJobs(t *testing.T) {
	r := newTestRegistry(t, nil)

	id := r.NewJobID()
	require.NoError(t, os.WriteFile(r.PdfPath(id), []byte("%PDF-1.4"), 0o644))
	r.CreatePdfJob(id, "doc.pdf")

	deleted, err := r.ClearPdfJobs()
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)

	_, ok := r.GetPdfJob(id)
	assert.False(t, ok)

	// The backing file is gone, so reconciliation cannot resurrect the job
	assert.False(t, r.Reconcile(id))
}

func TestClearPdfJobs_LeavesBatchJobs(t *testing.T) {
	r := newTestRegistry(t, nil)
	batchID := r.CreateBatchJob(1)

	_, err := r.ClearPdfJobs()
	require.NoError(t, err)

	_, ok := r.GetBatchJob(batchID)
	assert.True(t, ok)
}

func TestPdfFileCount(t *testing.T) {
	r := newTestRegistry(t, nil)

	count, err := r.PdfFileCount()
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	require.NoError(t, os.WriteFile(filepath.Join(filepath.Dir(r.PdfPath("x")), "x.pdf"), []byte("%PDF"), 0o644))

	count, err = r.PdfFileCount()
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestGetPdfJob_ReturnsCopy(t *testing.T) {
	r := newTestRegistry(t, nil)
	id := r.NewJobID()
	r.CreatePdfJob(id, "doc.pdf")
	r.AppendPage(id, page(1))

	job, _ := r.GetPdfJob(id)
	job.Pages[0].PageNum = 99

	fresh, _ := r.GetPdfJob(id)
	assert.Equal(t, 1, fresh.Pages[0].PageNum)
}
