package converter

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"

	"github.com/disintegration/imaging"
	"github.com/gen2brain/webp"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// WebP encoder defaults (lossy)
const (
	webpQuality = 75
	webpMethod  = 4
)

// decodeImage decodes any registered raster format, honouring EXIF orientation
func decodeImage(data []byte) (image.Image, error) {
	if len(data) == 0 {
		return nil, newError(ErrDecode, nil, "source image is empty")
	}
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, newError(ErrDecode, err, "failed to load image")
	}
	b := img.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		return nil, newError(ErrDecode, nil, "source image has no pixels")
	}
	return img, nil
}

// encodeRaster encodes img in the target format. JPEG has no alpha channel so
// transparent areas are flattened onto white first.
func encodeRaster(img image.Image, target Format, jpegQuality int) ([]byte, error) {
	var buf bytes.Buffer
	var err error

	switch target {
	case FormatJPG, FormatJPEG:
		flat := imaging.New(img.Bounds().Dx(), img.Bounds().Dy(), color.White)
		flat = imaging.Overlay(flat, img, image.Point{}, 1.0)
		err = imaging.Encode(&buf, flat, imaging.JPEG, imaging.JPEGQuality(jpegQuality))
	case FormatPNG:
		err = imaging.Encode(&buf, img, imaging.PNG)
	case FormatGIF:
		err = imaging.Encode(&buf, img, imaging.GIF)
	case FormatBMP:
		err = imaging.Encode(&buf, img, imaging.BMP)
	case FormatWebP:
		err = webp.Encode(&buf, img, webp.Options{Quality: webpQuality, Method: webpMethod})
	default:
		return nil, newError(ErrEncode, nil, "no encoder for %q", target)
	}
	if err != nil {
		return nil, newError(ErrEncode, err, "failed to encode %s", target)
	}
	if buf.Len() == 0 {
		return nil, newError(ErrEncode, nil, "encoding %s produced no data", target)
	}
	return buf.Bytes(), nil
}

func (c *Converter) convertImageToImage(ctx context.Context, data []byte, target Format, base string, p *progress) (*Result, error) {
	img, err := decodeImage(data)
	if err != nil {
		return nil, err
	}
	p.advance(30, 10)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// off-screen surface at the image's native size
	surface := imaging.Clone(img)
	p.advance(60, 10)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out, err := encodeRaster(surface, target, c.opts.JPEGQuality)
	if err != nil {
		return nil, err
	}
	p.advance(90, 10)

	return &Result{
		Data:     out,
		Filename: fmt.Sprintf("%s.%s", base, target),
		MIMEType: target.MIMEType(),
		Width:    surface.Bounds().Dx(),
		Height:   surface.Bounds().Dy(),
	}, nil
}
