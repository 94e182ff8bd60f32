package converter

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"strings"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"

	"github.com/drummonds/goconvert/converter/pdfrenderer"
)

const (
	defaultFontSize = 12.0 // points, when the PDF reports none
	lineTolerance   = 0.02 // of page height, for grouping runs into lines
)

var (
	fontOnce  sync.Once
	fontFace  *opentype.Font
	fontError error
)

func regularFont() (*opentype.Font, error) {
	fontOnce.Do(func() {
		fontFace, fontError = opentype.Parse(goregular.TTF)
	})
	return fontFace, fontError
}

// textPainter draws strings onto a surface, keeping one face per pixel size
type textPainter struct {
	dst   draw.Image
	font  *opentype.Font
	faces map[float64]font.Face
}

func newTextPainter(dst draw.Image) (*textPainter, error) {
	f, err := regularFont()
	if err != nil {
		return nil, err
	}
	return &textPainter{dst: dst, font: f, faces: make(map[float64]font.Face)}, nil
}

func (tp *textPainter) face(size float64) (font.Face, error) {
	if face, ok := tp.faces[size]; ok {
		return face, nil
	}
	face, err := opentype.NewFace(tp.font, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, err
	}
	tp.faces[size] = face
	return face, nil
}

// draw writes s with its baseline starting at (x, y) in pixels
func (tp *textPainter) draw(s string, x, y, size float64, c color.Color) error {
	face, err := tp.face(size)
	if err != nil {
		return err
	}
	d := &font.Drawer{
		Dst:  tp.dst,
		Src:  image.NewUniform(c),
		Face: face,
		Dot:  fixed.P(int(x), int(y)),
	}
	d.DrawString(s)
	return nil
}

func (tp *textPainter) measure(s string, size float64) (float64, error) {
	face, err := tp.face(size)
	if err != nil {
		return 0, err
	}
	return float64(font.MeasureString(face, s)) / 64, nil
}

func (tp *textPainter) close() {
	for _, face := range tp.faces {
		face.Close()
	}
}

// drawTextLines redraws the page's text runs onto surface, flipping PDF user
// space (origin bottom left) into surface space. It returns the number of lines drawn.
func drawTextLines(surface draw.Image, layout *pdfrenderer.TextLayout) (int, error) {
	if layout == nil || len(layout.Runs) == 0 {
		return 0, nil
	}
	b := surface.Bounds()
	sx := float64(b.Dx()) / layout.Width
	sy := float64(b.Dy()) / layout.Height

	tp, err := newTextPainter(surface)
	if err != nil {
		return 0, err
	}
	defer tp.close()

	lines := pdfrenderer.GroupLines(layout.Runs, layout.Height*lineTolerance)
	for _, line := range lines {
		size := line.FontSize
		if size <= 0 {
			size = defaultFontSize
		}
		x := float64(b.Min.X) + line.X*sx
		y := float64(b.Min.Y) + (layout.Height-line.Y)*sy
		if err := tp.draw(line.Text, x, y, size*sy, color.Black); err != nil {
			return 0, err
		}
	}

	return len(lines), nil
}

// drawPlaceholder clears surface and writes a labelled text representation of
// the page, the degraded output used when nothing else produced visible content
func drawPlaceholder(surface draw.Image, layout *pdfrenderer.TextLayout, scale float64) error {
	b := surface.Bounds()
	draw.Draw(surface, b, image.NewUniform(color.White), image.Point{}, draw.Src)

	tp, err := newTextPainter(surface)
	if err != nil {
		return err
	}
	defer tp.close()

	banner := image.Rect(b.Min.X, b.Min.Y, b.Max.X, b.Min.Y+int(70*scale))
	draw.Draw(surface, banner, image.NewUniform(color.RGBA{0xFF, 0xF3, 0xCD, 0xFF}), image.Point{}, draw.Src)

	left := float64(b.Min.X) + 20*scale
	if err := tp.draw("DEGRADED OUTPUT", left, float64(b.Min.Y)+36*scale, 18*scale, color.Black); err != nil {
		return err
	}
	if err := tp.draw("The page could not be rendered. Extracted text follows.", left, float64(b.Min.Y)+58*scale, 10*scale, color.Gray{0x66}); err != nil {
		return err
	}

	text, pages, runs := "", 0, 0
	if layout != nil {
		text, pages, runs = layout.Text(), layout.PageCount, len(layout.Runs)
	}

	y := float64(b.Min.Y) + 100*scale
	bodySize := 14 * scale
	if text == "" {
		if err := tp.draw("(No extractable text content found)", left, y, bodySize, color.Black); err != nil {
			return err
		}
	} else {
		maxWidth := float64(b.Dx()) - 40*scale
		wrapped, err := wrapText(tp, text, bodySize, maxWidth)
		if err != nil {
			return err
		}
		bottom := float64(b.Max.Y) - 80*scale
		for _, line := range wrapped {
			if y > bottom {
				break
			}
			if err := tp.draw(line, left, y, bodySize, color.Black); err != nil {
				return err
			}
			y += 20 * scale
		}
	}

	grey := color.Gray{0x66}
	if err := tp.draw(fmt.Sprintf("PDF Pages: %d", pages), left, float64(b.Max.Y)-60*scale, 12*scale, grey); err != nil {
		return err
	}
	return tp.draw(fmt.Sprintf("Text Items: %d", runs), left, float64(b.Max.Y)-40*scale, 12*scale, grey)
}

// wrapText splits text into lines no wider than maxWidth pixels
func wrapText(tp *textPainter, text string, size, maxWidth float64) ([]string, error) {
	var lines []string
	line := ""
	for _, word := range strings.Fields(text) {
		candidate := word
		if line != "" {
			candidate = line + " " + word
		}
		w, err := tp.measure(candidate, size)
		if err != nil {
			return nil, err
		}
		if w > maxWidth && line != "" {
			lines = append(lines, line)
			line = word
			continue
		}
		line = candidate
	}
	if line != "" {
		lines = append(lines, line)
	}
	return lines, nil
}
