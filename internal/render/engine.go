// Package render wraps the MuPDF rasterizer (go-fitz) behind a small
// adapter so the rest of the system never touches the engine directly.
package render

import (
	"fmt"
	"image"

	"github.com/gen2brain/go-fitz"

	"github.com/pdfdeck/pdfdeck/internal/domain"
)

// Engine opens PDF documents for rasterization. Stateless; each call opens
// its own document handle.
type Engine struct{}

// NewEngine creates a new render engine.
func NewEngine() *Engine {
	return &Engine{}
}

// Open opens the PDF at path for repeated page access. The caller must
// Close the returned document.
func (e *Engine) Open(path string) (*Document, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return nil, domain.RenderError("failed to open PDF", err)
	}
	return &Document{doc: doc}, nil
}

// PageCount opens the PDF at path just long enough to read its page count.
func (e *Engine) PageCount(path string) (int, error) {
	doc, err := e.Open(path)
	if err != nil {
		return 0, err
	}
	defer doc.Close()
	return doc.PageCount(), nil
}

// Document is an open PDF handle.
type Document struct {
	doc *fitz.Document
}

// PageCount returns the number of pages in the document.
func (d *Document) PageCount() int {
	return d.doc.NumPage()
}

// RenderPage rasterizes the 1-based pageNum at the given DPI.
func (d *Document) RenderPage(pageNum int, dpi float64) (image.Image, error) {
	if pageNum < 1 || pageNum > d.doc.NumPage() {
		return nil, domain.ValidationError(fmt.Sprintf("page %d out of range", pageNum), nil)
	}
	img, err := d.doc.ImageDPI(pageNum-1, dpi)
	if err != nil {
		return nil, domain.RenderError(fmt.Sprintf("failed to render page %d", pageNum), err)
	}
	return img, nil
}

// Close releases the document handle.
func (d *Document) Close() error {
	return d.doc.Close()
}

// CropRegion extracts the sub-rectangle rect from a rendered page image.
// Returns an error when rect does not intersect the page bounds or the
// underlying raster does not support sub-imaging.
func CropRegion(img image.Image, rect image.Rectangle) (image.Image, error) {
	rect = rect.Intersect(img.Bounds())
	if rect.Empty() {
		return nil, domain.ValidationError("crop rectangle outside page bounds", nil)
	}

	sub, ok := img.(interface {
		SubImage(image.Rectangle) image.Image
	})
	if !ok {
		return nil, domain.RenderError("page raster does not support cropping", nil)
	}
	return sub.SubImage(rect), nil
}
