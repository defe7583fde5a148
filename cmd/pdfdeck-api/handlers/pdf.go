package handlers

import (
	"image"
	"io"
	"math"
	"net/http"
	"os"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/pdfdeck/pdfdeck/internal/config"
	"github.com/pdfdeck/pdfdeck/internal/imaging"
	"github.com/pdfdeck/pdfdeck/internal/ingest"
	"github.com/pdfdeck/pdfdeck/internal/observability"
	"github.com/pdfdeck/pdfdeck/internal/registry"
	"github.com/pdfdeck/pdfdeck/internal/render"
)

// normalizedSpan is the side length of the resolution-independent bbox
// coordinate space used by crop requests.
const normalizedSpan = 1000.0

// PDFHandler handles PDF upload, polling, cropping and storage requests.
type PDFHandler struct {
	logger   *observability.Logger
	registry *registry.Registry
	engine   *render.Engine
	pipeline *ingest.Pipeline
	render   config.RenderConfig
}

// NewPDFHandler creates a new PDF handler.
func NewPDFHandler(logger *observability.Logger, reg *registry.Registry, engine *render.Engine, pipeline *ingest.Pipeline, renderCfg config.RenderConfig) *PDFHandler {
	return &PDFHandler{
		logger:   logger,
		registry: reg,
		engine:   engine,
		pipeline: pipeline,
		render:   renderCfg,
	}
}

// Upload handles POST /upload_pdf. The raw file is persisted under a fresh
// job id before any processing starts; rendering runs in the background.
func (h *PDFHandler) Upload(w http.ResponseWriter, r *http.Request) {
	file, header, err := r.FormFile("file")
	if err != nil {
		writeValidationError(w, []FieldError{{Field: "file", Message: "file field is required"}})
		return
	}
	defer file.Close()

	dpi := h.render.ThumbnailDPI
	if v := r.URL.Query().Get("dpi"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			dpi = n
		}
	}

	jobID := h.registry.NewJobID()
	path := h.registry.PdfPath(jobID)

	dst, err := os.Create(path)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to persist upload")
		return
	}
	if _, err := io.Copy(dst, file); err != nil {
		dst.Close()
		os.Remove(path)
		writeError(w, http.StatusInternalServerError, "failed to persist upload")
		return
	}
	dst.Close()

	h.registry.CreatePdfJob(jobID, header.Filename)

	h.logger.Info().
		Str("job_id", jobID).
		Str("filename", header.Filename).
		Int("dpi", dpi).
		Msg("PDF uploaded")

	go h.pipeline.Run(jobID, path, header.Filename, dpi)

	writeJSON(w, http.StatusOK, map[string]string{
		"job_id": jobID,
		"status": "started",
	})
}

// CheckJob handles GET /check_pdf_job/{jobID}. The last_index cursor lets
// clients drain newly rendered pages incrementally. Jobs absent from memory
// are reconciled from disk when the backing file still exists.
func (h *PDFHandler) CheckJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")

	lastIndex := 0
	if v := r.URL.Query().Get("last_index"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			lastIndex = n
		}
	}

	if !h.registry.Reconcile(jobID) {
		writeError(w, http.StatusNotFound, "Job not found")
		return
	}

	progress, ok := h.registry.Progress(jobID, lastIndex)
	if !ok {
		writeError(w, http.StatusNotFound, "Job not found")
		return
	}

	writeJSON(w, http.StatusOK, progress)
}

// CropItemDTO is one requested crop: a normalized [y1, x1, y2, x2] box.
type CropItemDTO struct {
	ID   string    `json:"id"`
	BBox []float64 `json:"bbox"`
}

// CropRequestDTO is the request body for POST /crop_batch_items.
type CropRequestDTO struct {
	JobID   string        `json:"job_id"`
	PageNum int           `json:"page_num"`
	Items   []CropItemDTO `json:"items"`
	DPI     int           `json:"dpi"`
}

// CropResultDTO is one crop outcome. Img is null when the item's box was
// degenerate or its extraction failed.
type CropResultDTO struct {
	ID  string  `json:"id"`
	Img *string `json:"img"`
}

// CropBatch handles POST /crop_batch_items. Boxes arrive in a normalized
// 0-1000 space with y-before-x coordinate order; that order is an external
// contract. Per-item failures degrade to a null image without aborting the
// remaining items.
func (h *PDFHandler) CropBatch(w http.ResponseWriter, r *http.Request) {
	var req CropRequestDTO
	if !decodeBody(w, r, &req) {
		return
	}

	var fieldErrs []FieldError
	if req.JobID == "" {
		fieldErrs = append(fieldErrs, FieldError{Field: "job_id", Message: "job_id is required"})
	}
	if req.PageNum == 0 {
		fieldErrs = append(fieldErrs, FieldError{Field: "page_num", Message: "page_num is required"})
	}
	if len(fieldErrs) > 0 {
		writeValidationError(w, fieldErrs)
		return
	}

	dpi := req.DPI
	if dpi <= 0 {
		dpi = h.render.CropDPI
	}

	if !h.registry.Reconcile(req.JobID) {
		writeError(w, http.StatusNotFound, "Job ID not found (Please Re-upload PDF)")
		return
	}

	job, _ := h.registry.GetPdfJob(req.JobID)
	if _, err := os.Stat(job.FilePath); err != nil {
		writeError(w, http.StatusNotFound, "PDF File missing on server")
		return
	}

	doc, err := h.engine.Open(job.FilePath)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	defer doc.Close()

	if req.PageNum < 1 || req.PageNum > doc.PageCount() {
		writeError(w, http.StatusBadRequest, "Page number out of range")
		return
	}

	pageImg, err := doc.RenderPage(req.PageNum, float64(dpi))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	results := make([]CropResultDTO, 0, len(req.Items))
	for _, item := range req.Items {
		img := h.cropItem(pageImg, item)
		results = append(results, CropResultDTO{ID: item.ID, Img: img})
	}

	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

// cropItem maps one normalized box onto the rendered page raster and
// re-encodes the region losslessly. Returns nil for degenerate boxes or
// extraction failures.
func (h *PDFHandler) cropItem(pageImg image.Image, item CropItemDTO) *string {
	if len(item.BBox) != 4 {
		return nil
	}

	bounds := pageImg.Bounds()
	width := float64(bounds.Dx())
	height := float64(bounds.Dy())

	// Coordinate order is y-before-x in the normalized space.
	y1, x1, y2, x2 := item.BBox[0], item.BBox[1], item.BBox[2], item.BBox[3]
	rx1 := x1 / normalizedSpan * width
	ry1 := y1 / normalizedSpan * height
	rx2 := x2 / normalizedSpan * width
	ry2 := y2 / normalizedSpan * height

	if rx2 <= rx1 || ry2 <= ry1 {
		return nil
	}

	rect := image.Rect(
		bounds.Min.X+int(math.Round(rx1)),
		bounds.Min.Y+int(math.Round(ry1)),
		bounds.Min.X+int(math.Round(rx2)),
		bounds.Min.Y+int(math.Round(ry2)),
	)

	crop, err := render.CropRegion(pageImg, rect)
	if err != nil {
		h.logger.Warn().Err(err).Str("item_id", item.ID).Msg("Crop item failed")
		return nil
	}

	dataURI, err := imaging.EncodePNGDataURI(crop)
	if err != nil {
		h.logger.Warn().Err(err).Str("item_id", item.ID).Msg("Crop encoding failed")
		return nil
	}
	return &dataURI
}

// PageImageRequestDTO is the request body for POST /get_page_image.
type PageImageRequestDTO struct {
	JobID   string `json:"job_id"`
	PageNum int    `json:"page_num"`
	DPI     int    `json:"dpi"`
}

// PageImage handles POST /get_page_image: one full page rendered at an
// editing-friendly DPI.
func (h *PDFHandler) PageImage(w http.ResponseWriter, r *http.Request) {
	var req PageImageRequestDTO
	if !decodeBody(w, r, &req) {
		return
	}

	if req.JobID == "" {
		writeValidationError(w, []FieldError{{Field: "job_id", Message: "job_id is required"}})
		return
	}

	dpi := req.DPI
	if dpi <= 0 {
		dpi = h.render.PageImageDPI
	}

	if !h.registry.Reconcile(req.JobID) {
		writeError(w, http.StatusNotFound, "Job missing")
		return
	}

	job, _ := h.registry.GetPdfJob(req.JobID)

	doc, err := h.engine.Open(job.FilePath)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	defer doc.Close()

	img, err := doc.RenderPage(req.PageNum, float64(dpi))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	dataURI, err := imaging.EncodeJPEGDataURI(img, h.render.PageImageQuality)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"img": dataURI})
}

// Clear handles DELETE /clear_temp_pdfs: global storage reclamation.
func (h *PDFHandler) Clear(w http.ResponseWriter, r *http.Request) {
	deleted, err := h.registry.ClearPdfJobs()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":       true,
		"deleted_count": deleted,
	})
}

// Count handles GET /temp_pdf_count.
func (h *PDFHandler) Count(w http.ResponseWriter, r *http.Request) {
	count, err := h.registry.PdfFileCount()
	if err != nil {
		writeJSON(w, http.StatusOK, map[string]any{"count": 0, "error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, map[string]int{"count": count})
}
