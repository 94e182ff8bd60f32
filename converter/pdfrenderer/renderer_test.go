package pdfrenderer

import (
	"errors"
	"image/color"
	"testing"
)

func backends(t *testing.T) []Renderer {
	t.Helper()
	var renderers []Renderer
	if r, err := NewPDFiumRenderer(); err != nil {
		t.Logf("pdfium not available: %v", err)
	} else {
		renderers = append(renderers, r)
	}
	if r, err := NewFitzRenderer(); err != nil {
		t.Logf("fitz not available: %v", err)
	} else {
		renderers = append(renderers, r)
	}
	t.Cleanup(func() {
		for _, r := range renderers {
			r.Close()
		}
	})
	if len(renderers) == 0 {
		t.Skip("No PDF renderer available")
	}
	return renderers
}

func TestRenderPage(t *testing.T) {
	data := helloWorldPDF(t, "P")

	for _, r := range backends(t) {
		t.Run(r.Name(), func(t *testing.T) {
			page, err := r.RenderPage(data, 0, 144)
			if err != nil {
				t.Fatalf("RenderPage failed: %v", err)
			}
			if page.PageCount != 1 || page.Index != 0 {
				t.Errorf("Expected page 0 of 1, got %d of %d", page.Index, page.PageCount)
			}

			// Letter is 612x792pt, so 1224x1584 at 144 DPI
			b := page.Image.Bounds()
			if abs(b.Dx()-1224) > 1 || abs(b.Dy()-1584) > 1 {
				t.Errorf("Expected about 1224x1584, got %dx%d", b.Dx(), b.Dy())
			}

			dark := 0
			for y := b.Min.Y; y < b.Max.Y; y++ {
				for x := b.Min.X; x < b.Max.X; x++ {
					c := color.RGBAModel.Convert(page.Image.At(x, y)).(color.RGBA)
					if c.A > 0 && (c.R < 128 || c.G < 128 || c.B < 128) {
						dark++
					}
				}
			}
			if dark == 0 {
				t.Error("Expected the rendered text to leave dark pixels")
			}
		})
	}
}

func TestRenderPageErrors(t *testing.T) {
	data := helloWorldPDF(t, "P")

	for _, r := range backends(t) {
		t.Run(r.Name(), func(t *testing.T) {
			if _, err := r.RenderPage([]byte("not a pdf at all"), 0, 72); !errors.Is(err, ErrOpenDocument) {
				t.Errorf("Expected ErrOpenDocument for garbage, got %v", err)
			}

			_, err := r.RenderPage(data, 1, 72)
			if err == nil {
				t.Fatal("Expected error for a page past the end")
			}
			if errors.Is(err, ErrOpenDocument) {
				t.Errorf("Expected a range error, not ErrOpenDocument: %v", err)
			}
		})
	}
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
