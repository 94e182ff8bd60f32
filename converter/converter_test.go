package converter

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/disintegration/imaging"

	"github.com/drummonds/goconvert/converter/pdfrenderer"
)

// decodedFormat maps a target to the name image.DecodeConfig reports
func decodedFormat(f Format) string {
	switch f {
	case FormatJPG, FormatJPEG:
		return "jpeg"
	default:
		return string(f)
	}
}

func TestConvertSupportedPairs(t *testing.T) {
	c := newTestConverter(t, &fakeRenderer{}, DefaultOptions())
	ctx := context.Background()

	for _, source := range SourceFormats() {
		for _, target := range SupportedConversions[source] {
			t.Run(fmt.Sprintf("%s to %s", source, target), func(t *testing.T) {
				var data []byte
				if source == FormatPDF {
					data = helloWorldPDF(t)
				} else {
					data = sampleImage(t, source, 32, 24)
				}

				result, err := c.Convert(ctx, Request{
					File:   SourceFile{Name: "sample." + string(source), Data: data},
					Target: target,
				})
				if err != nil {
					t.Fatalf("Convert failed: %v", err)
				}
				if result.MIMEType != target.MIMEType() {
					t.Errorf("Expected MIME type %s, got %s", target.MIMEType(), result.MIMEType)
				}
				if !strings.HasSuffix(result.Filename, "."+string(target)) {
					t.Errorf("Expected filename with .%s extension, got %s", target, result.Filename)
				}

				if target == FormatPDF {
					if !bytes.HasPrefix(result.Data, []byte("%PDF-")) {
						t.Error("Expected output to start with %PDF-")
					}
					return
				}
				_, format, err := image.DecodeConfig(bytes.NewReader(result.Data))
				if err != nil {
					t.Fatalf("Output does not decode: %v", err)
				}
				if format != decodedFormat(target) {
					t.Errorf("Expected %s payload, got %s", decodedFormat(target), format)
				}
			})
		}
	}
}

func TestConvertRoundTripPreservesDimensions(t *testing.T) {
	c := newTestConverter(t, &fakeRenderer{}, DefaultOptions())
	ctx := context.Background()

	pairs := [][2]Format{
		{FormatPNG, FormatJPG},
		{FormatPNG, FormatWebP},
		{FormatJPG, FormatBMP},
		{FormatBMP, FormatGIF},
		{FormatGIF, FormatPNG},
	}
	for _, pair := range pairs {
		a, b := pair[0], pair[1]
		t.Run(fmt.Sprintf("%s to %s to %s", a, b, a), func(t *testing.T) {
			original := sampleImage(t, a, 37, 21)

			there, err := c.Convert(ctx, Request{File: SourceFile{Name: "img." + string(a), Data: original}, Target: b})
			if err != nil {
				t.Fatalf("First conversion failed: %v", err)
			}
			back, err := c.Convert(ctx, Request{File: SourceFile{Name: there.Filename, Data: there.Data}, Target: a})
			if err != nil {
				t.Fatalf("Second conversion failed: %v", err)
			}

			cfg, _, err := image.DecodeConfig(bytes.NewReader(back.Data))
			if err != nil {
				t.Fatalf("Round trip output does not decode: %v", err)
			}
			if cfg.Width != 37 || cfg.Height != 21 {
				t.Errorf("Expected 37x21, got %dx%d", cfg.Width, cfg.Height)
			}
			if back.Filename != "img."+string(a) {
				t.Errorf("Expected filename img.%s, got %s", a, back.Filename)
			}
		})
	}
}

func TestConvertJPEGFlattensTransparency(t *testing.T) {
	c := newTestConverter(t, &fakeRenderer{}, DefaultOptions())

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, imaging.New(16, 16, color.NRGBA{}), imaging.PNG); err != nil {
		t.Fatalf("Failed to encode sample: %v", err)
	}
	result, err := c.Convert(context.Background(), Request{File: SourceFile{Name: "clear.png", Data: buf.Bytes()}, Target: FormatJPG})
	if err != nil {
		t.Fatalf("Convert failed: %v", err)
	}
	img, err := imaging.Decode(bytes.NewReader(result.Data))
	if err != nil {
		t.Fatalf("Output does not decode: %v", err)
	}
	if SurfaceHasContent(img) {
		t.Error("Expected a transparent image to become white, not black")
	}
}

func TestConvertUnsupported(t *testing.T) {
	c := newTestConverter(t, &fakeRenderer{}, DefaultOptions())
	ctx := context.Background()

	tests := []struct {
		name   string
		file   string
		data   []byte
		target Format
	}{
		{"svg source", "drawing.svg", []byte("<svg xmlns=\"http://www.w3.org/2000/svg\"/>"), FormatPNG},
		{"tiff target", "photo.png", sampleImage(t, FormatPNG, 4, 4), FormatTIFF},
		{"pdf to pdf", "doc.pdf", helloWorldPDF(t), FormatPDF},
		{"unknown target", "photo.png", sampleImage(t, FormatPNG, 4, 4), Format("heic")},
		{"unknown content", "blob", []byte("just some text"), FormatPNG},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.Convert(ctx, Request{File: SourceFile{Name: tt.file, Data: tt.data}, Target: tt.target})
			if !errors.Is(err, ErrUnsupportedConversion) {
				t.Errorf("Expected ErrUnsupportedConversion, got %v", err)
			}
			if _, err := Check(SourceFile{Name: tt.file, Data: tt.data}, tt.target); !errors.Is(err, ErrUnsupportedConversion) {
				t.Errorf("Expected Check to reject, got %v", err)
			}
		})
	}
}

func TestCheck(t *testing.T) {
	tests := []struct {
		file   string
		data   []byte
		target Format
		want   Format
	}{
		{"photo.PNG", sampleImage(t, FormatPNG, 4, 4), FormatPDF, FormatPNG},
		{"scan.tif", sampleImage(t, FormatTIFF, 4, 4), FormatJPG, FormatTIFF},
		{"doc.pdf", helloWorldPDF(t), Format(".WEBP"), FormatPDF},
		{"upload", sampleImage(t, FormatGIF, 4, 4), FormatPNG, FormatGIF},
	}
	for _, tt := range tests {
		t.Run(tt.file, func(t *testing.T) {
			got, err := Check(SourceFile{Name: tt.file, Data: tt.data}, tt.target)
			if err != nil {
				t.Fatalf("Check failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("Expected source %s, got %s", tt.want, got)
			}
		})
	}
}

func TestConvertSniffsSourceWithoutExtension(t *testing.T) {
	c := newTestConverter(t, &fakeRenderer{}, DefaultOptions())
	result, err := c.Convert(context.Background(), Request{
		File:   SourceFile{Name: "upload", Data: sampleImage(t, FormatPNG, 8, 8)},
		Target: FormatJPG,
	})
	if err != nil {
		t.Fatalf("Convert failed: %v", err)
	}
	if result.Filename != "upload.jpg" {
		t.Errorf("Expected upload.jpg, got %s", result.Filename)
	}
}

func TestConvertDecodeErrors(t *testing.T) {
	c := newTestConverter(t, &fakeRenderer{}, DefaultOptions())
	ctx := context.Background()

	t.Run("Corrupt image", func(t *testing.T) {
		_, err := c.Convert(ctx, Request{File: SourceFile{Name: "broken.png", Data: []byte("not a png")}, Target: FormatJPG})
		if !errors.Is(err, ErrDecode) {
			t.Errorf("Expected ErrDecode, got %v", err)
		}
	})

	t.Run("Missing PDF header", func(t *testing.T) {
		_, err := c.Convert(ctx, Request{File: SourceFile{Name: "broken.pdf", Data: []byte("hello")}, Target: FormatPNG})
		if !errors.Is(err, ErrDecode) {
			t.Errorf("Expected ErrDecode, got %v", err)
		}
	})

	t.Run("Unparseable PDF", func(t *testing.T) {
		_, err := c.Convert(ctx, Request{File: SourceFile{Name: "broken.pdf", Data: []byte("%PDF-1.4\ngarbage")}, Target: FormatPNG})
		if !errors.Is(err, ErrDecode) {
			t.Errorf("Expected ErrDecode, got %v", err)
		}
	})
}

func TestConvertImageToPDFOrientation(t *testing.T) {
	c := newTestConverter(t, &fakeRenderer{}, DefaultOptions())

	tests := []struct {
		name      string
		w, h      int
		landscape bool
	}{
		{"Wide image", 60, 30, true},
		{"Tall image", 30, 60, false},
		{"Square image", 40, 40, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := c.Convert(context.Background(), Request{
				File:   SourceFile{Name: "photo.png", Data: sampleImage(t, FormatPNG, tt.w, tt.h)},
				Target: FormatPDF,
			})
			if err != nil {
				t.Fatalf("Convert failed: %v", err)
			}
			if result.Filename != "photo.pdf" {
				t.Errorf("Expected photo.pdf, got %s", result.Filename)
			}

			layout, err := pdfrenderer.ExtractText(result.Data, 0)
			if err != nil {
				t.Fatalf("Output PDF does not parse: %v", err)
			}
			if layout.PageCount != 1 {
				t.Errorf("Expected 1 page, got %d", layout.PageCount)
			}
			if got := layout.Width > layout.Height; got != tt.landscape {
				t.Errorf("Expected landscape=%v, page is %.0fx%.0f", tt.landscape, layout.Width, layout.Height)
			}
		})
	}
}

func TestFitImage(t *testing.T) {
	near := func(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

	// A4 portrait, 10mm margin
	layout := fitImage(100, 50, 210, 297, 10)
	if !near(layout.w, 190) || !near(layout.h, 95) {
		t.Errorf("Expected 190x95, got %.1fx%.1f", layout.w, layout.h)
	}
	if !near(layout.x, 10) || !near(layout.y, 101) {
		t.Errorf("Expected image centred at (10, 101), got (%.1f, %.1f)", layout.x, layout.y)
	}

	layout = fitImage(50, 500, 210, 297, 10)
	if !near(layout.h, 277) {
		t.Errorf("Expected height limited to 277, got %.1f", layout.h)
	}
}

func TestConvertPDFHelloWorldHasContent(t *testing.T) {
	// the renderer draws nothing, so visible output must come from the text fallback
	r := &fakeRenderer{}
	c := newTestConverter(t, r, DefaultOptions())

	rec := &recorder{}
	result, err := c.Convert(context.Background(), Request{
		File:       SourceFile{Name: "hello.pdf", Data: helloWorldPDF(t)},
		Target:     FormatPNG,
		OnProgress: rec.record,
	})
	if err != nil {
		t.Fatalf("Convert failed: %v", err)
	}
	rec.check(t)

	if result.Fallback != FallbackText {
		t.Errorf("Expected text fallback, got %q", result.Fallback)
	}
	if result.Filename != "hello_preview.png" {
		t.Errorf("Expected hello_preview.png, got %s", result.Filename)
	}
	if result.Width != 600 || result.Height != 200 {
		t.Errorf("Expected 600x200 at scale 2, got %dx%d", result.Width, result.Height)
	}
	if result.PageCount != 1 {
		t.Errorf("Expected page count 1, got %d", result.PageCount)
	}

	img, err := imaging.Decode(bytes.NewReader(result.Data))
	if err != nil {
		t.Fatalf("Output does not decode: %v", err)
	}
	if !SurfaceHasContent(img) {
		t.Error("Expected the Hello World page to be marked as having content")
	}
}

func TestConvertPDFNativeRender(t *testing.T) {
	r := &fakeRenderer{paint: func(img *image.NRGBA) {
		b := img.Bounds()
		for y := b.Min.Y; y < b.Max.Y/2; y++ {
			for x := b.Min.X; x < b.Max.X/2; x++ {
				img.Set(x, y, color.Black)
			}
		}
	}}
	c := newTestConverter(t, r, DefaultOptions())

	result, err := c.Convert(context.Background(), Request{
		File:   SourceFile{Name: "scan.pdf", Data: helloWorldPDF(t)},
		Target: FormatJPG,
	})
	if err != nil {
		t.Fatalf("Convert failed: %v", err)
	}
	if result.Fallback != FallbackNone {
		t.Errorf("Expected no fallback, got %q", result.Fallback)
	}
	if result.Filename != "scan_page1.jpg" {
		t.Errorf("Expected scan_page1.jpg, got %s", result.Filename)
	}
}

func TestConvertPDFPlaceholder(t *testing.T) {
	t.Run("Disabled by default", func(t *testing.T) {
		c := newTestConverter(t, &fakeRenderer{}, DefaultOptions())
		result, err := c.Convert(context.Background(), Request{File: SourceFile{Name: "empty.pdf", Data: emptyPDF(t)}, Target: FormatPNG})
		if err != nil {
			t.Fatalf("Convert failed: %v", err)
		}
		if result.Fallback != FallbackNone {
			t.Errorf("Expected no fallback, got %q", result.Fallback)
		}
	})

	t.Run("Enabled", func(t *testing.T) {
		opts := DefaultOptions()
		opts.AllowPlaceholder = true
		c := newTestConverter(t, &fakeRenderer{}, opts)
		result, err := c.Convert(context.Background(), Request{File: SourceFile{Name: "empty.pdf", Data: emptyPDF(t)}, Target: FormatPNG})
		if err != nil {
			t.Fatalf("Convert failed: %v", err)
		}
		if result.Fallback != FallbackPlaceholder {
			t.Errorf("Expected placeholder fallback, got %q", result.Fallback)
		}
		if result.Filename != "empty_preview.png" {
			t.Errorf("Expected empty_preview.png, got %s", result.Filename)
		}
		img, err := imaging.Decode(bytes.NewReader(result.Data))
		if err != nil {
			t.Fatalf("Output does not decode: %v", err)
		}
		if !SurfaceHasContent(img) {
			t.Error("Expected the placeholder to be visible")
		}
	})
}

func TestConvertPDFRenderErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("Renderer failure", func(t *testing.T) {
		c := newTestConverter(t, &fakeRenderer{err: errors.New("boom")}, DefaultOptions())
		_, err := c.Convert(ctx, Request{File: SourceFile{Name: "a.pdf", Data: helloWorldPDF(t)}, Target: FormatPNG})
		if !errors.Is(err, ErrRender) {
			t.Errorf("Expected ErrRender, got %v", err)
		}
	})

	t.Run("Renderer cannot open document", func(t *testing.T) {
		r := &fakeRenderer{err: fmt.Errorf("%w: bad xref", pdfrenderer.ErrOpenDocument)}
		c := newTestConverter(t, r, DefaultOptions())
		_, err := c.Convert(ctx, Request{File: SourceFile{Name: "a.pdf", Data: helloWorldPDF(t)}, Target: FormatPNG})
		if !errors.Is(err, ErrDecode) {
			t.Errorf("Expected ErrDecode, got %v", err)
		}
	})

	t.Run("Timeout", func(t *testing.T) {
		opts := DefaultOptions()
		opts.RenderTimeout = 20 * time.Millisecond
		c := newTestConverter(t, &fakeRenderer{delay: 300 * time.Millisecond}, opts)
		_, err := c.Convert(ctx, Request{File: SourceFile{Name: "a.pdf", Data: helloWorldPDF(t)}, Target: FormatPNG})
		if !errors.Is(err, ErrRender) {
			t.Errorf("Expected ErrRender, got %v", err)
		}
	})
}

func TestConvertLibraryLoadError(t *testing.T) {
	provider := NewProvider([]pdfrenderer.Source{
		{Name: "broken", Open: func() (pdfrenderer.Renderer, error) { return nil, errors.New("not installed") }},
	})
	c := New(provider, DefaultOptions())

	_, err := c.Convert(context.Background(), Request{File: SourceFile{Name: "a.pdf", Data: helloWorldPDF(t)}, Target: FormatPNG})
	if !errors.Is(err, ErrLibraryLoad) {
		t.Errorf("Expected ErrLibraryLoad, got %v", err)
	}

	// image conversions do not need the renderer
	if _, err := c.Convert(context.Background(), Request{File: SourceFile{Name: "a.png", Data: sampleImage(t, FormatPNG, 4, 4)}, Target: FormatPDF}); err != nil {
		t.Errorf("Expected image to PDF to succeed without a renderer, got %v", err)
	}
}

func TestConvertProgress(t *testing.T) {
	c := newTestConverter(t, &fakeRenderer{}, DefaultOptions())

	tests := []struct {
		name   string
		file   SourceFile
		target Format
	}{
		{"Image to image", SourceFile{Name: "a.png", Data: sampleImage(t, FormatPNG, 10, 10)}, FormatWebP},
		{"Image to PDF", SourceFile{Name: "a.png", Data: sampleImage(t, FormatPNG, 10, 10)}, FormatPDF},
		{"PDF to image", SourceFile{Name: "a.pdf", Data: helloWorldPDF(t)}, FormatJPG},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &recorder{}
			if _, err := c.Convert(context.Background(), Request{File: tt.file, Target: tt.target, OnProgress: rec.record}); err != nil {
				t.Fatalf("Convert failed: %v", err)
			}
			rec.check(t)
		})
	}
}

func TestConvertCancelled(t *testing.T) {
	c := newTestConverter(t, &fakeRenderer{}, DefaultOptions())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Convert(ctx, Request{File: SourceFile{Name: "a.png", Data: sampleImage(t, FormatPNG, 4, 4)}, Target: FormatJPG})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

func TestResultSave(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	result := &Result{Data: []byte("payload"), Filename: "x.png"}

	path, err := result.Save(dir)
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read saved file: %v", err)
	}
	if string(got) != "payload" {
		t.Errorf("Expected payload, got %q", got)
	}
}

func TestNewFillsDefaults(t *testing.T) {
	c := New(NewProvider(nil), Options{JPEGQuality: 500})
	opts := c.Options()
	if opts.Scale != 2.0 || opts.RenderTimeout != 10*time.Second || opts.JPEGQuality != 90 {
		t.Errorf("Unexpected defaults: %+v", opts)
	}
}
