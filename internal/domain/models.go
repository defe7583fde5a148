// Package domain holds the core data model shared by the registry, the
// ingestion pipeline and the HTTP layer.
package domain

// PdfJobStatus tracks the lifecycle of an uploaded document.
type PdfJobStatus string

const (
	PdfJobProcessing PdfJobStatus = "processing"
	PdfJobDone       PdfJobStatus = "done"
	PdfJobFailed     PdfJobStatus = "failed"
)

// BatchState tracks the lifecycle of a submitted AI batch. Completed is
// terminal; a batch never re-enters processing.
type BatchState string

const (
	BatchProcessing BatchState = "PROCESSING"
	BatchCompleted  BatchState = "COMPLETED"
)

// RenderedPage is one rasterized page of a PDF job. Immutable once appended.
// JSON field names are part of the client wire contract.
type RenderedPage struct {
	ID              string `json:"id"`
	PageNum         int    `json:"pageNum"`
	Thumb           string `json:"thumb"`
	FileName        string `json:"fileName"`
	ServerProcessed bool   `json:"is_server_processed"`
}

// PdfJob is the registry record for one uploaded document. Pages grow
// monotonically in page order while the job is processing; FilePath is the
// only field recoverable from disk after a restart.
type PdfJob struct {
	ID         string
	Status     PdfJobStatus
	Filename   string
	FilePath   string
	Pages      []RenderedPage
	TotalPages int
	Error      string
}

// BatchItem is one (prompt, image) pair submitted for AI processing.
type BatchItem struct {
	CustomID    string `json:"custom_id"`
	Prompt      string `json:"prompt"`
	ImageBase64 string `json:"image_base64"`
}

// BatchResult is the outcome for a single batch item. Exactly one of
// Response or Error is set.
type BatchResult struct {
	CustomID string `json:"custom_id"`
	Response any    `json:"response,omitempty"`
	Error    string `json:"error,omitempty"`
}

// BatchJob is the registry record for one batch submission. Results are
// published atomically as a whole when every item has finished.
type BatchJob struct {
	ID      string
	State   BatchState
	Total   int
	Results []BatchResult
}

// PdfProgress is an incremental snapshot of a PDF job for the polling
// contract: NewPages holds only the pages appended after the caller's
// last_index cursor.
type PdfProgress struct {
	Status         PdfJobStatus   `json:"status"`
	TotalPages     int            `json:"total_pages"`
	ProcessedCount int            `json:"processed_count"`
	NewPages       []RenderedPage `json:"new_pages"`
	NextIndex      int            `json:"next_index"`
}
