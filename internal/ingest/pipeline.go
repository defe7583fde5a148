// Package ingest renders every page of an uploaded PDF in the background,
// publishing pages to the registry as they complete so polling clients can
// observe partial progress.
package ingest

import (
	"fmt"
	"image"
	"time"

	"github.com/pdfdeck/pdfdeck/internal/domain"
	"github.com/pdfdeck/pdfdeck/internal/imaging"
	"github.com/pdfdeck/pdfdeck/internal/observability"
	"github.com/pdfdeck/pdfdeck/internal/registry"
	"github.com/pdfdeck/pdfdeck/internal/render"
)

// Document is the subset of an open PDF handle the pipeline needs.
type Document interface {
	PageCount() int
	RenderPage(pageNum int, dpi float64) (image.Image, error)
	Close() error
}

// OpenFunc opens a PDF for page-by-page rendering.
type OpenFunc func(path string) (Document, error)

// EngineOpener adapts a render.Engine to an OpenFunc.
func EngineOpener(engine *render.Engine) OpenFunc {
	return func(path string) (Document, error) {
		return engine.Open(path)
	}
}

// Pipeline renders PDF pages to thumbnails and appends them to the job
// record through the registry. One Run per job, started in the background
// at upload time.
type Pipeline struct {
	logger   *observability.Logger
	registry *registry.Registry
	open     OpenFunc
	quality  int
}

// NewPipeline creates an ingestion pipeline.
func NewPipeline(logger *observability.Logger, reg *registry.Registry, open OpenFunc, quality int) *Pipeline {
	return &Pipeline{
		logger:   logger.WithComponent("ingest"),
		registry: reg,
		open:     open,
		quality:  quality,
	}
}

// Run processes one job to completion. Pages publish strictly in increasing
// page order so pollers only ever see a gap-free prefix. Any open, render or
// encode error fails the whole job; terminal states are sticky and never
// retried.
func (p *Pipeline) Run(jobID, filePath, filename string, dpi int) {
	logger := p.logger.WithJob(jobID)
	start := time.Now()

	doc, err := p.open(filePath)
	if err != nil {
		logger.Error().Err(err).Str("filename", filename).Msg("PDF ingestion failed")
		p.registry.SetStatus(jobID, domain.PdfJobFailed, err.Error())
		return
	}
	defer doc.Close()

	total := doc.PageCount()
	p.registry.SetTotalPages(jobID, total)

	logger.Info().
		Str("filename", filename).
		Int("total_pages", total).
		Int("dpi", dpi).
		Msg("Starting PDF ingestion")

	for pageNum := 1; pageNum <= total; pageNum++ {
		img, err := doc.RenderPage(pageNum, float64(dpi))
		if err != nil {
			logger.Error().Err(err).Int("page", pageNum).Msg("Page render failed")
			p.registry.SetStatus(jobID, domain.PdfJobFailed, err.Error())
			return
		}

		thumb, err := imaging.EncodeJPEGDataURI(img, p.quality)
		if err != nil {
			logger.Error().Err(err).Int("page", pageNum).Msg("Thumbnail encoding failed")
			p.registry.SetStatus(jobID, domain.PdfJobFailed, err.Error())
			return
		}

		p.registry.AppendPage(jobID, domain.RenderedPage{
			ID:              fmt.Sprintf("p_%s_%d", jobID, pageNum),
			PageNum:         pageNum,
			Thumb:           thumb,
			FileName:        filename,
			ServerProcessed: true,
		})
	}

	p.registry.SetStatus(jobID, domain.PdfJobDone, "")
	logger.Info().
		Str("filename", filename).
		Int("total_pages", total).
		Dur("elapsed", time.Since(start)).
		Msg("PDF ingestion complete")
}
