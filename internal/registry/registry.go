// Package registry implements the in-memory store of PDF jobs and AI batch
// jobs. It is the single owner of all job state: background pipelines and
// request handlers mutate records only through registry operations, which
// are internally synchronized. PDF jobs can be reconciled from their backing
// file on disk; batch jobs are memory-only and lost on restart.
package registry

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"

	"github.com/pdfdeck/pdfdeck/internal/domain"
	"github.com/pdfdeck/pdfdeck/internal/observability"
)

// PageCounter reads the page count of a PDF on disk. Satisfied by
// render.Engine; injected so reconciliation is testable without MuPDF.
type PageCounter interface {
	PageCount(path string) (int, error)
}

// Registry tracks PDF jobs and batch jobs keyed by opaque identifiers.
type Registry struct {
	logger    *observability.Logger
	uploadDir string
	counter   PageCounter

	mu        sync.Mutex
	pdfJobs   map[string]*domain.PdfJob
	batchJobs map[string]*domain.BatchJob
}

// New creates a registry persisting uploads under uploadDir.
func New(logger *observability.Logger, uploadDir string, counter PageCounter) *Registry {
	return &Registry{
		logger:    logger.WithComponent("registry"),
		uploadDir: uploadDir,
		counter:   counter,
		pdfJobs:   make(map[string]*domain.PdfJob),
		batchJobs: make(map[string]*domain.BatchJob),
	}
}

// NewJobID allocates a fresh opaque job identifier.
func (r *Registry) NewJobID() string {
	return uuid.New().String()
}

// PdfPath returns the durable storage path for a job's backing file.
func (r *Registry) PdfPath(id string) string {
	return filepath.Join(r.uploadDir, id+".pdf")
}

// CreatePdfJob registers a new PDF job in the processing state. The backing
// file is expected to already exist at PdfPath(id).
func (r *Registry) CreatePdfJob(id, filename string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.pdfJobs[id] = &domain.PdfJob{
		ID:       id,
		Status:   domain.PdfJobProcessing,
		Filename: filename,
		FilePath: r.PdfPath(id),
		Pages:    []domain.RenderedPage{},
	}
}

// GetPdfJob returns a snapshot of the job. The returned Pages slice is a
// copy; callers never share the registry's backing array.
func (r *Registry) GetPdfJob(id string) (domain.PdfJob, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.pdfJobs[id]
	if !ok {
		return domain.PdfJob{}, false
	}
	return snapshotPdfJob(job), true
}

// Reconcile ensures the job is present in memory, rebuilding it from the
// backing {id}.pdf file when necessary. Thumbnails are not regenerated; a
// reconciled job reports done with an empty page list but a correct total.
// Returns false when neither memory nor disk knows the job.
func (r *Registry) Reconcile(id string) bool {
	r.mu.Lock()
	if _, ok := r.pdfJobs[id]; ok {
		r.mu.Unlock()
		return true
	}
	r.mu.Unlock()

	path := r.PdfPath(id)
	if _, err := os.Stat(path); err != nil {
		return false
	}

	// Page count is read outside the lock: opening the document can be slow.
	total, err := r.counter.PageCount(path)
	if err != nil {
		r.logger.Error().Err(err).Str("job_id", id).Msg("Job reconciliation failed")
		return false
	}

	r.logger.Info().Str("job_id", id).Int("total_pages", total).Msg("Reconciled job from disk")

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.pdfJobs[id]; !ok {
		r.pdfJobs[id] = &domain.PdfJob{
			ID:         id,
			Status:     domain.PdfJobDone,
			Filename:   "restored_session.pdf",
			FilePath:   path,
			Pages:      []domain.RenderedPage{},
			TotalPages: total,
		}
	}
	return true
}

// AppendPage appends a rendered page to the job. No-op when the job no
// longer exists: the ingestion pipeline may outlive a registry clear.
func (r *Registry) AppendPage(id string, page domain.RenderedPage) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if job, ok := r.pdfJobs[id]; ok {
		job.Pages = append(job.Pages, page)
	}
}

// SetTotalPages records the document's page count once known. Defensive
// no-op on missing ids.
func (r *Registry) SetTotalPages(id string, total int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if job, ok := r.pdfJobs[id]; ok {
		job.TotalPages = total
	}
}

// SetStatus transitions the job to a new status. errMsg is recorded only
// for failed jobs. Defensive no-op on missing ids.
func (r *Registry) SetStatus(id string, status domain.PdfJobStatus, errMsg string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.pdfJobs[id]
	if !ok {
		return
	}
	job.Status = status
	if status == domain.PdfJobFailed {
		job.Error = errMsg
	}
}

// Progress returns the incremental polling snapshot for a job: the pages
// appended after lastIndex plus the cursor for the next poll. A cursor past
// the end yields an empty page list, never an error.
func (r *Registry) Progress(id string, lastIndex int) (domain.PdfProgress, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.pdfJobs[id]
	if !ok {
		return domain.PdfProgress{}, false
	}

	if lastIndex < 0 {
		lastIndex = 0
	}
	if lastIndex > len(job.Pages) {
		lastIndex = len(job.Pages)
	}

	newPages := make([]domain.RenderedPage, len(job.Pages)-lastIndex)
	copy(newPages, job.Pages[lastIndex:])

	return domain.PdfProgress{
		Status:         job.Status,
		TotalPages:     job.TotalPages,
		ProcessedCount: len(job.Pages),
		NewPages:       newPages,
		NextIndex:      len(job.Pages),
	}, true
}

// CreateBatchJob registers a new batch job in the processing state and
// returns its identifier.
func (r *Registry) CreateBatchJob(total int) string {
	id := uuid.New().String()

	r.mu.Lock()
	defer r.mu.Unlock()
	r.batchJobs[id] = &domain.BatchJob{
		ID:      id,
		State:   domain.BatchProcessing,
		Total:   total,
		Results: []domain.BatchResult{},
	}
	return id
}

// CompleteBatch publishes the batch results and flips the state to
// completed in one step, so no reader ever observes a partial result list.
// Defensive no-op on missing ids.
func (r *Registry) CompleteBatch(id string, results []domain.BatchResult) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if job, ok := r.batchJobs[id]; ok {
		job.Results = results
		job.State = domain.BatchCompleted
	}
}

// GetBatchJob returns a snapshot of the batch job.
func (r *Registry) GetBatchJob(id string) (domain.BatchJob, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.batchJobs[id]
	if !ok {
		return domain.BatchJob{}, false
	}

	results := make([]domain.BatchResult, len(job.Results))
	copy(results, job.Results)
	out := *job
	out.Results = results
	return out, true
}

// ClearPdfJobs deletes every file in the upload directory and drops all PDF
// jobs from memory. Returns the number of files deleted. Batch jobs hold no
// disk state and are left untouched.
func (r *Registry) ClearPdfJobs() (int, error) {
	entries, err := os.ReadDir(r.uploadDir)
	if err != nil && !os.IsNotExist(err) {
		return 0, domain.IOError("failed to read upload directory", err)
	}

	deleted := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if err := os.Remove(filepath.Join(r.uploadDir, entry.Name())); err == nil {
			deleted++
		}
	}

	r.mu.Lock()
	r.pdfJobs = make(map[string]*domain.PdfJob)
	r.mu.Unlock()

	r.logger.Info().Int("deleted", deleted).Msg("Cleared upload storage")
	return deleted, nil
}

// PdfFileCount reports how many files currently sit in the upload directory.
func (r *Registry) PdfFileCount() (int, error) {
	entries, err := os.ReadDir(r.uploadDir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, domain.IOError("failed to read upload directory", err)
	}

	count := 0
	for _, entry := range entries {
		if !entry.IsDir() {
			count++
		}
	}
	return count, nil
}

func snapshotPdfJob(job *domain.PdfJob) domain.PdfJob {
	pages := make([]domain.RenderedPage, len(job.Pages))
	copy(pages, job.Pages)
	out := *job
	out.Pages = pages
	return out
}
