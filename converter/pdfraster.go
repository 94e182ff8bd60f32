package converter

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"

	"github.com/drummonds/goconvert/converter/pdfrenderer"
)

// pdfHeaderWindow is how far into the file the %PDF- marker may appear
const pdfHeaderWindow = 1024

var pdfMagic = []byte("%PDF-")

// validatePDFHeader rejects data that does not carry the PDF signature near its start
func validatePDFHeader(data []byte) error {
	window := data
	if len(window) > pdfHeaderWindow {
		window = window[:pdfHeaderWindow]
	}
	if !bytes.Contains(window, pdfMagic) {
		return newError(ErrDecode, nil, "invalid PDF file: missing %%PDF- header")
	}
	return nil
}

// extractText is swapped in tests to simulate a parser that never returns
var extractText = pdfrenderer.ExtractText

type outcome[T any] struct {
	value T
	err   error
}

// bounded runs fn in its own goroutine and stops waiting when ctx ends. The
// call is not interruptible; an abandoned one finishes in the background.
func bounded[T any](ctx context.Context, fn func() (T, error)) (T, error) {
	done := make(chan outcome[T], 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome[T]{err: fmt.Errorf("panicked: %v", r)}
			}
		}()
		value, err := fn()
		done <- outcome[T]{value: value, err: err}
	}()

	select {
	case out := <-done:
		return out.value, out.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// renderPage runs the backend render under the page deadline in renderCtx
func (c *Converter) renderPage(ctx, renderCtx context.Context, renderer pdfrenderer.Renderer, data []byte, dpi float64) (*pdfrenderer.Page, error) {
	page, err := bounded(renderCtx, func() (*pdfrenderer.Page, error) {
		return renderer.RenderPage(data, 0, dpi)
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, newError(ErrRender, err, "rendering page 1 timed out after %s", c.opts.RenderTimeout)
		}
		if errors.Is(err, pdfrenderer.ErrOpenDocument) {
			return nil, newError(ErrDecode, err, "failed to parse PDF")
		}
		return nil, newError(ErrRender, err, "%s failed to render page 1", renderer.Name())
	}
	if page == nil || page.Image == nil || page.Image.Bounds().Empty() {
		return nil, newError(ErrRender, nil, "%s returned an empty page", renderer.Name())
	}
	return page, nil
}

// pageText extracts the text runs of page 1 within the page deadline. Text is
// only needed for the fallbacks, so failures are logged and yield nil.
func pageText(renderCtx context.Context, data []byte) *pdfrenderer.TextLayout {
	extract := extractText
	layout, err := bounded(renderCtx, func() (*pdfrenderer.TextLayout, error) {
		return extract(data, 0)
	})
	if err != nil {
		Logger.Warn("Could not extract text from PDF", "error", err)
		return nil
	}
	return layout
}

func (c *Converter) convertPDFToImage(ctx context.Context, data []byte, target Format, base string, p *progress) (*Result, error) {
	if err := validatePDFHeader(data); err != nil {
		return nil, err
	}

	renderer, err := c.provider.Renderer(ctx)
	if err != nil {
		return nil, err
	}
	p.report(10)

	// one deadline covers the render and the text extraction
	renderCtx, cancel := context.WithTimeout(ctx, c.opts.RenderTimeout)
	defer cancel()

	dpi := 72 * c.opts.Scale
	page, err := c.renderPage(ctx, renderCtx, renderer, data, dpi)
	if err != nil {
		return nil, err
	}
	p.report(50)

	surface := newSurface(page.Image)
	pageCount := page.PageCount

	fallback := FallbackNone
	blank := !SurfaceHasContent(surface)
	if blank || pageCount == 0 {
		layout := pageText(renderCtx, data)
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if pageCount == 0 && layout != nil {
			pageCount = layout.PageCount
		}
		p.report(60)

		if blank {
			surface, fallback, err = c.redraw(surface, layout, renderer.Name())
			if err != nil {
				return nil, err
			}
		}
	}
	p.report(75)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out, err := encodeRaster(surface, target, c.opts.JPEGQuality)
	if err != nil {
		return nil, err
	}
	p.report(90)

	suffix := "page1"
	if fallback != FallbackNone {
		suffix = "preview"
	}
	return &Result{
		Data:      out,
		Filename:  fmt.Sprintf("%s_%s.%s", base, suffix, target),
		MIMEType:  target.MIMEType(),
		Width:     surface.Bounds().Dx(),
		Height:    surface.Bounds().Dy(),
		PageCount: pageCount,
		Fallback:  fallback,
	}, nil
}

// redraw replaces a page the verifier judged blank. The text runs are drawn
// onto a clean page of the same size and used when that page passes the
// verifier. A native render that carries some ink is otherwise kept as it is;
// only an empty one falls through to the placeholder or the sparse redraw.
func (c *Converter) redraw(native *image.RGBA, layout *pdfrenderer.TextLayout, rendererName string) (*image.RGBA, Fallback, error) {
	Logger.Warn("Rendered page looks blank, redrawing from text runs", "renderer", rendererName)

	redrawn := blankSurface(native.Bounds())
	lines, err := drawTextLines(redrawn, layout)
	if err != nil {
		return nil, FallbackNone, newError(ErrRender, err, "failed to draw text fallback")
	}
	switch {
	case lines > 0 && SurfaceHasContent(redrawn):
		return redrawn, FallbackText, nil
	case inkRatio(native.Pix) > 0:
		Logger.Info("Keeping sparse native render", "renderer", rendererName)
		return native, FallbackNone, nil
	case c.opts.AllowPlaceholder:
		Logger.Warn("Page still blank, drawing degraded placeholder")
		if err := drawPlaceholder(native, layout, c.opts.Scale); err != nil {
			return nil, FallbackNone, newError(ErrRender, err, "failed to draw placeholder")
		}
		return native, FallbackPlaceholder, nil
	case lines > 0:
		return redrawn, FallbackText, nil
	default:
		return native, FallbackNone, nil
	}
}
