package pdfrenderer

import (
	"fmt"

	"github.com/gen2brain/go-fitz"
)

// FitzRenderer implements PDF rendering using go-fitz (requires CGo and MuPDF)
type FitzRenderer struct {
}

// NewFitzRenderer creates a new Fitz-based PDF renderer
func NewFitzRenderer() (*FitzRenderer, error) {
	return &FitzRenderer{}, nil
}

// Name returns the backend name
func (r *FitzRenderer) Name() string {
	return "fitz"
}

// RenderPage renders one page of an in-memory PDF using MuPDF
func (r *FitzRenderer) RenderPage(data []byte, pageIndex int, dpi float64) (*Page, error) {
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOpenDocument, err)
	}
	defer doc.Close()

	numPages := doc.NumPage()
	if pageIndex < 0 || pageIndex >= numPages {
		return nil, fmt.Errorf("page %d out of range, document has %d pages", pageIndex+1, numPages)
	}

	img, err := doc.ImageDPI(pageIndex, dpi)
	if err != nil {
		return nil, fmt.Errorf("unable to render page %d: %w", pageIndex, err)
	}

	return &Page{Image: img, Index: pageIndex, PageCount: numPages}, nil
}

// Close cleans up resources (no-op for Fitz renderer as doc is closed per-render)
func (r *FitzRenderer) Close() error {
	return nil
}
