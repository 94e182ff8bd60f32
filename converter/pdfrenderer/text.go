package pdfrenderer

import (
	"bytes"
	"fmt"
	"math"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
)

// US Letter, used when a page carries no readable MediaBox
const (
	defaultPageWidth  = 612.0
	defaultPageHeight = 792.0
)

// TextRun is a piece of text positioned in PDF user space (origin bottom left)
type TextRun struct {
	Text     string
	X        float64
	Y        float64
	Width    float64
	FontSize float64
}

// TextLayout holds the text runs of one page
type TextLayout struct {
	Runs      []TextRun
	Width     float64 // page width in points
	Height    float64 // page height in points
	PageCount int
}

// Text joins every run, for logging and the degraded representation
func (l *TextLayout) Text() string {
	var sb strings.Builder
	for _, line := range GroupLines(l.Runs, l.Height*0.02) {
		if sb.Len() > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(line.Text)
	}
	return sb.String()
}

// ExtractText reads the positioned text runs of a page without rendering it
func ExtractText(data []byte, pageIndex int) (layout *TextLayout, err error) {
	// the parser panics on some malformed content streams
	defer func() {
		if r := recover(); r != nil {
			layout = nil
			err = fmt.Errorf("text extraction panicked: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("failed to create PDF reader: %w", err)
	}

	totalPages := reader.NumPage()
	if pageIndex < 0 || pageIndex >= totalPages {
		return nil, fmt.Errorf("page %d out of range, document has %d pages", pageIndex+1, totalPages)
	}

	page := reader.Page(pageIndex + 1)
	if page.V.IsNull() {
		return nil, fmt.Errorf("page %d is missing", pageIndex+1)
	}

	width, height := PageSize(page)
	layout = &TextLayout{Width: width, Height: height, PageCount: totalPages}
	for _, t := range page.Content().Text {
		if t.S == "" {
			continue
		}
		layout.Runs = append(layout.Runs, TextRun{
			Text:     t.S,
			X:        t.X,
			Y:        t.Y,
			Width:    t.W,
			FontSize: t.FontSize,
		})
	}
	return layout, nil
}

// PageSize returns the page MediaBox size in points, following inheritance from the page tree
func PageSize(page pdf.Page) (float64, float64) {
	for v := page.V; !v.IsNull(); v = v.Key("Parent") {
		box := v.Key("MediaBox")
		if box.Len() != 4 {
			continue
		}
		w := math.Abs(box.Index(2).Float64() - box.Index(0).Float64())
		h := math.Abs(box.Index(3).Float64() - box.Index(1).Float64())
		if w > 0 && h > 0 {
			return w, h
		}
	}
	return defaultPageWidth, defaultPageHeight
}

// TextLine is a group of runs sharing a baseline
type TextLine struct {
	Text     string
	X        float64
	Y        float64
	FontSize float64
}

// GroupLines merges runs whose baselines are within tolerance into lines,
// ordered top to bottom with runs left to right
func GroupLines(runs []TextRun, tolerance float64) []TextLine {
	var groups [][]TextRun
	for _, run := range runs {
		if run.Text == "" {
			continue
		}
		placed := false
		for i := range groups {
			if math.Abs(groups[i][0].Y-run.Y) < tolerance {
				groups[i] = append(groups[i], run)
				placed = true
				break
			}
		}
		if !placed {
			groups = append(groups, []TextRun{run})
		}
	}

	// higher Y is nearer the top of the page
	sort.SliceStable(groups, func(i, j int) bool {
		return groups[i][0].Y > groups[j][0].Y
	})

	lines := make([]TextLine, 0, len(groups))
	for _, group := range groups {
		sort.SliceStable(group, func(i, j int) bool { return group[i].X < group[j].X })

		var sb strings.Builder
		for i, run := range group {
			if i > 0 {
				prev := group[i-1]
				gap := run.X - (prev.X + runWidth(prev))
				if gap > prev.FontSize*0.25 && !strings.HasSuffix(prev.Text, " ") && !strings.HasPrefix(run.Text, " ") {
					sb.WriteByte(' ')
				}
			}
			sb.WriteString(run.Text)
		}
		text := strings.TrimSpace(sb.String())
		if text == "" {
			continue
		}
		lines = append(lines, TextLine{
			Text:     text,
			X:        group[0].X,
			Y:        group[0].Y,
			FontSize: group[0].FontSize,
		})
	}
	return lines
}

// runWidth falls back to an average glyph advance when the font carries no widths
func runWidth(run TextRun) float64 {
	if run.Width > 0 {
		return run.Width
	}
	return float64(utf8.RuneCountInString(run.Text)) * run.FontSize * 0.5
}
