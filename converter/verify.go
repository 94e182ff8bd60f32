package converter

import (
	"image"
	"image/color"
	"image/draw"
)

// Content Verifier tuning. Sampling every 16 bytes of an RGBA buffer looks at every 4th pixel.
const (
	sampleStride        = 16
	brightnessThreshold = 245
	contentRatio        = 0.01
)

// HasContent reports whether an RGBA pixel buffer looks visually non-blank.
// It is a heuristic: a sample counts as ink when any colour channel is darker
// than the threshold, and the page has content when more than 1% of samples do.
func HasContent(pix []uint8) bool {
	return inkRatio(pix) > contentRatio
}

// inkRatio is the share of sampled pixels darker than the brightness threshold
func inkRatio(pix []uint8) float64 {
	samples, ink := 0, 0
	for i := 0; i+3 < len(pix); i += sampleStride {
		samples++
		if pix[i] < brightnessThreshold || pix[i+1] < brightnessThreshold || pix[i+2] < brightnessThreshold {
			ink++
		}
	}
	if samples == 0 {
		return 0
	}
	return float64(ink) / float64(samples)
}

// SurfaceHasContent runs HasContent over an image, treating transparency as white paper
func SurfaceHasContent(img image.Image) bool {
	if s, ok := img.(*image.RGBA); ok && s.Stride == 4*s.Rect.Dx() && s.Opaque() {
		return HasContent(s.Pix)
	}
	return HasContent(newSurface(img).Pix)
}

// blankSurface is an opaque white RGBA page covering r, anchored at the origin
func blankSurface(r image.Rectangle) *image.RGBA {
	surface := image.NewRGBA(image.Rect(0, 0, r.Dx(), r.Dy()))
	draw.Draw(surface, surface.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	return surface
}

// newSurface composites img over an opaque white RGBA buffer of the same size
func newSurface(img image.Image) *image.RGBA {
	b := img.Bounds()
	surface := blankSurface(b)
	draw.Draw(surface, surface.Bounds(), img, b.Min, draw.Over)
	return surface
}
