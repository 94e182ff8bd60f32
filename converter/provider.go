package converter

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/go-pdf/fpdf"

	"github.com/drummonds/goconvert/config"
	"github.com/drummonds/goconvert/converter/pdfrenderer"
)

// Provider hands out the external rendering and PDF-generation capabilities.
// The PDF renderer is loaded on first use from an ordered list of sources and
// then reused by every conversion sharing the provider.
type Provider struct {
	sources  []pdfrenderer.Source
	pageSize string
	creator  string

	mu       sync.Mutex
	renderer pdfrenderer.Renderer
}

// NewProvider creates a provider that tries the renderer sources in order
func NewProvider(sources []pdfrenderer.Source) *Provider {
	return &Provider{
		sources:  sources,
		pageSize: "A4",
		creator:  "goconvert",
	}
}

// NewProviderFromNames builds the sources from configured backend names such as "pdfium,fitz"
func NewProviderFromNames(names []string) (*Provider, error) {
	sources, err := pdfrenderer.Sources(names)
	if err != nil {
		return nil, err
	}
	return NewProvider(sources), nil
}

// NewFromConfig builds a provider and converter from the shared conversion settings
func NewFromConfig(cfg config.ConverterConfig) (*Converter, error) {
	provider, err := NewProviderFromNames(cfg.Renderers)
	if err != nil {
		return nil, err
	}
	provider.SetPageSize(cfg.PageSize)
	return New(provider, Options{
		Scale:            cfg.RenderScale,
		RenderTimeout:    cfg.RenderTimeout,
		JPEGQuality:      cfg.JPEGQuality,
		PageMargin:       cfg.PageMarginMM,
		AllowPlaceholder: cfg.AllowPlaceholder,
	}), nil
}

// Renderer returns the cached renderer, loading it if absent. A failed load is
// not cached so a later conversion tries the sources again.
func (p *Provider) Renderer(ctx context.Context) (pdfrenderer.Renderer, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.renderer != nil {
		return p.renderer, nil
	}
	if len(p.sources) == 0 {
		return nil, newError(ErrLibraryLoad, nil, "no PDF renderer sources configured")
	}

	var errs []error
	for _, source := range p.sources {
		if err := ctx.Err(); err != nil {
			return nil, newError(ErrLibraryLoad, err, "PDF renderer load interrupted")
		}
		Logger.Info("Loading PDF renderer", "source", source.Name)
		renderer, err := openSource(source)
		if err != nil {
			Logger.Warn("PDF renderer source failed, trying next", "source", source.Name, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", source.Name, err))
			continue
		}
		Logger.Info("PDF renderer loaded", "source", source.Name)
		p.renderer = renderer
		return renderer, nil
	}
	return nil, newError(ErrLibraryLoad, errors.Join(errs...), "could not load a PDF renderer from any source")
}

// openSource shields the provider from backends that panic during initialisation
func openSource(source pdfrenderer.Source) (renderer pdfrenderer.Renderer, err error) {
	defer func() {
		if r := recover(); r != nil {
			renderer = nil
			err = fmt.Errorf("panic while loading: %v", r)
		}
	}()
	return source.Open()
}

// NewDocument returns an empty PDF document in millimetres with no margins or page breaks
func (p *Provider) NewDocument(orientation string) *fpdf.Fpdf {
	doc := fpdf.New(orientation, "mm", p.pageSize, "")
	doc.SetMargins(0, 0, 0)
	doc.SetAutoPageBreak(false, 0)
	doc.SetCreator(p.creator, true)
	return doc
}

// SetPageSize changes the page size used by NewDocument, e.g. "A4" or "Letter"
func (p *Provider) SetPageSize(size string) {
	if size != "" {
		p.pageSize = size
	}
}

// Close releases the loaded renderer, if any
func (p *Provider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.renderer == nil {
		return nil
	}
	err := p.renderer.Close()
	p.renderer = nil
	return err
}
