// Package converter converts between raster image formats and PDF documents.
//
// A Converter classifies each request into one of three categories
// (image to image, image to PDF, PDF to image) and delegates the heavy
// lifting to external libraries obtained through a Provider: a PDF renderer
// loaded lazily from an ordered list of backends, and a PDF-generation
// library. PDF pages that render blank are checked with a sampling Content
// Verifier and redrawn from their positioned text runs.
package converter

import (
	"context"
	"log/slog"
	"time"
)

// Logger is global since we will need it everywhere
var Logger = slog.Default()

// Options tunes the conversion pipelines
type Options struct {
	Scale            float64       // PDF to image magnification, 1.0 is 72 DPI
	RenderTimeout    time.Duration // upper bound on a single page render
	JPEGQuality      int           // 1-100
	PageMargin       float64       // image to PDF margin in millimetres
	AllowPlaceholder bool          // draw the labelled text representation when a page stays blank
}

// DefaultOptions returns the canonical pipeline settings
func DefaultOptions() Options {
	return Options{
		Scale:         2.0,
		RenderTimeout: 10 * time.Second,
		JPEGQuality:   90,
		PageMargin:    10,
	}
}

// SourceFile is the uploaded file to convert
type SourceFile struct {
	Name     string
	MIMEType string
	Data     []byte
}

// Request describes one conversion
type Request struct {
	File       SourceFile
	Target     Format
	OnProgress ProgressFunc
}

// Converter performs conversions using the capabilities of its Provider
type Converter struct {
	provider *Provider
	opts     Options
}

// New creates a converter. Zero option fields take their defaults.
func New(provider *Provider, opts Options) *Converter {
	defaults := DefaultOptions()
	if opts.Scale <= 0 {
		opts.Scale = defaults.Scale
	}
	if opts.RenderTimeout <= 0 {
		opts.RenderTimeout = defaults.RenderTimeout
	}
	if opts.JPEGQuality <= 0 || opts.JPEGQuality > 100 {
		opts.JPEGQuality = defaults.JPEGQuality
	}
	if opts.PageMargin < 0 {
		opts.PageMargin = defaults.PageMargin
	}
	return &Converter{provider: provider, opts: opts}
}

// Options returns the effective options
func (c *Converter) Options() Options {
	return c.opts
}

// Provider returns the library provider shared by this converter
func (c *Converter) Provider() *Provider {
	return c.provider
}

type category int

const (
	categoryNone category = iota
	categoryImageToImage
	categoryImageToPDF
	categoryPDFToImage
)

func categorize(source, target Format) category {
	switch {
	case source.IsRaster() && target.IsTarget() && target != FormatPDF:
		return categoryImageToImage
	case source.IsRaster() && target == FormatPDF:
		return categoryImageToPDF
	case source == FormatPDF && target.IsRaster() && target.IsTarget():
		return categoryPDFToImage
	}
	return categoryNone
}

// Check classifies file and reports whether Convert would accept it for
// target, without decoding anything. It returns the detected source format.
func Check(file SourceFile, target Format) (Format, error) {
	source := classifySource(file.Name, file.Data)
	target = ParseFormat(string(target))
	if categorize(source, target) == categoryNone {
		return source, newError(ErrUnsupportedConversion, nil, "conversion from %q to %q is not supported", source, target)
	}
	return source, nil
}

// Convert runs one conversion. It fails with ErrUnsupportedConversion when the
// source and target fall in none of the image to image, image to PDF and PDF
// to image categories.
func (c *Converter) Convert(ctx context.Context, req Request) (*Result, error) {
	source := classifySource(req.File.Name, req.File.Data)
	target := ParseFormat(string(req.Target))
	base := splitName(req.File.Name)
	p := newProgress(req.OnProgress)

	Logger.Debug("Dispatching conversion", "file", req.File.Name, "source", source, "target", target, "bytes", len(req.File.Data))

	var (
		result *Result
		err    error
	)
	switch categorize(source, target) {
	case categoryImageToImage:
		result, err = c.convertImageToImage(ctx, req.File.Data, target, base, p)
	case categoryImageToPDF:
		result, err = c.convertImageToPDF(ctx, req.File.Data, base, p)
	case categoryPDFToImage:
		result, err = c.convertPDFToImage(ctx, req.File.Data, target, base, p)
	default:
		return nil, newError(ErrUnsupportedConversion, nil, "conversion from %q to %q is not supported", source, target)
	}
	if err != nil {
		Logger.Error("Conversion failed", "file", req.File.Name, "source", source, "target", target, "error", err)
		return nil, err
	}

	p.done()
	Logger.Info("Conversion complete", "file", req.File.Name, "output", result.Filename, "bytes", len(result.Data), "fallback", result.Fallback)
	return result, nil
}
