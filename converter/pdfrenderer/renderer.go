package pdfrenderer

import (
	"errors"
	"fmt"
	"image"
	"strings"
)

// ErrOpenDocument is returned when a backend cannot parse the PDF at all
var ErrOpenDocument = errors.New("unable to open PDF document")

// Page is a single rendered page
type Page struct {
	Image     image.Image
	Index     int // zero based
	PageCount int
}

// Renderer defines the interface for PDF page to image conversion
type Renderer interface {
	// Name identifies the backend in logs and errors
	Name() string

	// RenderPage rasterises one page of an in-memory PDF at the given DPI
	RenderPage(data []byte, pageIndex int, dpi float64) (*Page, error)

	// Close cleans up any resources used by the renderer
	Close() error
}

// Source is a named way of obtaining a Renderer
type Source struct {
	Name string
	Open func() (Renderer, error)
}

var openers = map[string]func() (Renderer, error){
	"pdfium": func() (Renderer, error) { return NewPDFiumRenderer() },
	"fitz":   func() (Renderer, error) { return NewFitzRenderer() },
}

// Sources maps configured backend names to openers, preserving order
func Sources(names []string) ([]Source, error) {
	sources := make([]Source, 0, len(names))
	for _, name := range names {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" {
			continue
		}
		open, ok := openers[name]
		if !ok {
			return nil, fmt.Errorf("unknown PDF renderer %q (supported: pdfium, fitz)", name)
		}
		sources = append(sources, Source{Name: name, Open: open})
	}
	if len(sources) == 0 {
		return nil, errors.New("no PDF renderers configured")
	}
	return sources, nil
}
