package pdfrenderer

import (
	"bytes"
	"strings"
	"testing"

	"github.com/go-pdf/fpdf"
)

// helloWorldPDF builds a one page Letter PDF with "Hello World!" at 72pt from the left, 72pt from the top
func helloWorldPDF(t *testing.T, orientation string) []byte {
	t.Helper()
	doc := fpdf.New(orientation, "pt", "Letter", "")
	doc.SetCompression(false)
	doc.AddPage()
	doc.SetFont("Helvetica", "", 12)
	doc.Text(72, 72, "Hello World!")
	var buf bytes.Buffer
	if err := doc.Output(&buf); err != nil {
		t.Fatalf("Failed to build test PDF: %v", err)
	}
	return buf.Bytes()
}

func TestExtractText(t *testing.T) {
	data := helloWorldPDF(t, "P")

	layout, err := ExtractText(data, 0)
	if err != nil {
		t.Fatalf("ExtractText failed: %v", err)
	}

	if layout.PageCount != 1 {
		t.Errorf("Expected 1 page, got %d", layout.PageCount)
	}
	if layout.Width != 612 || layout.Height != 792 {
		t.Errorf("Expected 612x792 page, got %.0fx%.0f", layout.Width, layout.Height)
	}
	if len(layout.Runs) == 0 {
		t.Fatal("Expected text runs, got none")
	}

	text := strings.ReplaceAll(layout.Text(), " ", "")
	if !strings.Contains(text, "HelloWorld!") {
		t.Errorf("Expected extracted text to contain Hello World!, got %q", layout.Text())
	}

	// fpdf places the baseline 72pt below the top edge, so PDF space Y is 720
	first := layout.Runs[0]
	if first.Y < 715 || first.Y > 725 {
		t.Errorf("Expected first run near Y=720, got %.2f", first.Y)
	}
	if first.X < 70 || first.X > 74 {
		t.Errorf("Expected first run near X=72, got %.2f", first.X)
	}
}

func TestExtractTextLandscapePageSize(t *testing.T) {
	layout, err := ExtractText(helloWorldPDF(t, "L"), 0)
	if err != nil {
		t.Fatalf("ExtractText failed: %v", err)
	}
	if layout.Width <= layout.Height {
		t.Errorf("Expected landscape page, got %.0fx%.0f", layout.Width, layout.Height)
	}
}

func TestExtractTextErrors(t *testing.T) {
	t.Run("Not a PDF", func(t *testing.T) {
		if _, err := ExtractText([]byte("definitely not a pdf"), 0); err == nil {
			t.Error("Expected error for non-PDF input, got nil")
		}
	})

	t.Run("Page out of range", func(t *testing.T) {
		if _, err := ExtractText(helloWorldPDF(t, "P"), 3); err == nil {
			t.Error("Expected error for missing page, got nil")
		}
	})
}

func TestGroupLines(t *testing.T) {
	runs := []TextRun{
		{Text: "World", X: 130, Y: 700, Width: 30, FontSize: 12},
		{Text: "Second", X: 72, Y: 680, Width: 40, FontSize: 12},
		{Text: "Hello", X: 72, Y: 701, Width: 30, FontSize: 12},
		{Text: "line", X: 116, Y: 680.5, Width: 20, FontSize: 12},
	}

	lines := GroupLines(runs, 792*0.02)
	if len(lines) != 2 {
		t.Fatalf("Expected 2 lines, got %d: %+v", len(lines), lines)
	}
	if lines[0].Text != "Hello World" {
		t.Errorf("Expected first line %q, got %q", "Hello World", lines[0].Text)
	}
	if lines[1].Text != "Second line" {
		t.Errorf("Expected second line %q, got %q", "Second line", lines[1].Text)
	}
	if lines[0].X != 72 {
		t.Errorf("Expected first line to start at X=72, got %.0f", lines[0].X)
	}
}

func TestGroupLinesAdjacentGlyphs(t *testing.T) {
	// per glyph runs with no gap join without spaces
	runs := []TextRun{
		{Text: "H", X: 72, Y: 720, Width: 8, FontSize: 12},
		{Text: "i", X: 80, Y: 720, Width: 3, FontSize: 12},
	}
	lines := GroupLines(runs, 10)
	if len(lines) != 1 || lines[0].Text != "Hi" {
		t.Errorf("Expected single line %q, got %+v", "Hi", lines)
	}
}

func TestSources(t *testing.T) {
	t.Run("Keeps configured order", func(t *testing.T) {
		sources, err := Sources([]string{"fitz", " PDFium ", ""})
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		if len(sources) != 2 || sources[0].Name != "fitz" || sources[1].Name != "pdfium" {
			t.Errorf("Unexpected sources: %+v", sources)
		}
	})

	t.Run("Unknown backend", func(t *testing.T) {
		if _, err := Sources([]string{"ghostscript"}); err == nil {
			t.Error("Expected error for unknown backend, got nil")
		}
	})

	t.Run("Empty list", func(t *testing.T) {
		if _, err := Sources(nil); err == nil {
			t.Error("Expected error for empty list, got nil")
		}
	})
}

func TestGroupLinesWithoutWidths(t *testing.T) {
	// core fonts report zero widths, glyph spacing must not become word spacing
	runs := []TextRun{
		{Text: "O", X: 72, Y: 720, FontSize: 12},
		{Text: "K", X: 80.7, Y: 720, FontSize: 12},
		{Text: "g", X: 120, Y: 720, FontSize: 12},
		{Text: "o", X: 126.7, Y: 720, FontSize: 12},
	}
	lines := GroupLines(runs, 10)
	if len(lines) != 1 || lines[0].Text != "OK go" {
		t.Errorf("Expected single line %q, got %+v", "OK go", lines)
	}
}
