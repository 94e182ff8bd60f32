package converter

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"sync"
	"testing"
	"time"

	"github.com/disintegration/imaging"
	"github.com/gen2brain/webp"
	"github.com/go-pdf/fpdf"

	"github.com/drummonds/goconvert/converter/pdfrenderer"
)

// fakeRenderer paints every page white, or runs paint over it when set
type fakeRenderer struct {
	mu    sync.Mutex
	calls int
	delay time.Duration
	err   error
	paint func(img *image.NRGBA)
}

func (r *fakeRenderer) Name() string { return "fake" }

func (r *fakeRenderer) RenderPage(data []byte, pageIndex int, dpi float64) (*pdfrenderer.Page, error) {
	r.mu.Lock()
	r.calls++
	r.mu.Unlock()

	if r.delay > 0 {
		time.Sleep(r.delay)
	}
	if r.err != nil {
		return nil, r.err
	}
	layout, err := pdfrenderer.ExtractText(data, pageIndex)
	if err != nil {
		return nil, errors.Join(pdfrenderer.ErrOpenDocument, err)
	}
	w := int(layout.Width*dpi/72 + 0.5)
	h := int(layout.Height*dpi/72 + 0.5)
	img := imaging.New(w, h, color.White)
	if r.paint != nil {
		r.paint(img)
	}
	return &pdfrenderer.Page{Image: img, Index: pageIndex, PageCount: layout.PageCount}, nil
}

func (r *fakeRenderer) Close() error { return nil }

func fakeSource(r pdfrenderer.Renderer) pdfrenderer.Source {
	return pdfrenderer.Source{Name: "fake", Open: func() (pdfrenderer.Renderer, error) { return r, nil }}
}

func newTestConverter(t *testing.T, r pdfrenderer.Renderer, opts Options) *Converter {
	t.Helper()
	provider := NewProvider([]pdfrenderer.Source{fakeSource(r)})
	t.Cleanup(func() { provider.Close() })
	return New(provider, opts)
}

// helloWorldPDF builds a single 300x100pt page holding "Hello World!" in 32pt Helvetica
func helloWorldPDF(t *testing.T) []byte {
	t.Helper()
	doc := fpdf.NewCustom(&fpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "pt",
		Size:           fpdf.SizeType{Wd: 300, Ht: 100},
	})
	doc.SetCompression(false)
	doc.AddPage()
	doc.SetFont("Helvetica", "", 32)
	doc.Text(10, 60, "Hello World!")
	return outputPDF(t, doc)
}

// emptyPDF builds a single Letter page with no content
func emptyPDF(t *testing.T) []byte {
	t.Helper()
	doc := fpdf.New("P", "pt", "Letter", "")
	doc.AddPage()
	return outputPDF(t, doc)
}

func outputPDF(t *testing.T, doc *fpdf.Fpdf) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := doc.Output(&buf); err != nil {
		t.Fatalf("Failed to generate test PDF: %v", err)
	}
	return buf.Bytes()
}

// sampleImage returns a w x h picture with a dark block in one corner, encoded as format
func sampleImage(t *testing.T, format Format, w, h int) []byte {
	t.Helper()
	img := imaging.New(w, h, color.NRGBA{R: 40, G: 120, B: 200, A: 255})
	img = imaging.Paste(img, imaging.New(w/2, h/2, color.Black), image.Pt(0, 0))

	var buf bytes.Buffer
	var err error
	switch format {
	case FormatJPG, FormatJPEG:
		err = imaging.Encode(&buf, img, imaging.JPEG)
	case FormatPNG:
		err = imaging.Encode(&buf, img, imaging.PNG)
	case FormatGIF:
		err = imaging.Encode(&buf, img, imaging.GIF)
	case FormatBMP:
		err = imaging.Encode(&buf, img, imaging.BMP)
	case FormatTIFF:
		err = imaging.Encode(&buf, img, imaging.TIFF)
	case FormatWebP:
		err = webp.Encode(&buf, img, webp.Options{Lossless: true})
	default:
		t.Fatalf("No sample encoder for %s", format)
	}
	if err != nil {
		t.Fatalf("Failed to encode %s sample: %v", format, err)
	}
	return buf.Bytes()
}

// recorder collects progress values
type recorder struct {
	values []int
}

func (r *recorder) record(percent int) {
	r.values = append(r.values, percent)
}

func (r *recorder) check(t *testing.T) {
	t.Helper()
	if len(r.values) == 0 {
		t.Fatal("Expected progress callbacks, got none")
	}
	for i := 1; i < len(r.values); i++ {
		if r.values[i] < r.values[i-1] {
			t.Errorf("Progress went backwards: %v", r.values)
			break
		}
	}
	if last := r.values[len(r.values)-1]; last != 100 {
		t.Errorf("Expected final progress 100, got %d (%v)", last, r.values)
	}
}
