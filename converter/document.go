package converter

import (
	"bytes"
	"context"
	"fmt"
	"math"

	"github.com/disintegration/imaging"
	"github.com/go-pdf/fpdf"
)

// embedScale is the resolution multiplier of the bitmap placed on a PDF page
const embedScale = 2

// pageLayout fits an image of w x h pixels inside a page, preserving aspect ratio and centring it
type pageLayout struct {
	orientation string
	x, y, w, h  float64 // placement in millimetres
}

func fitImage(imgW, imgH int, pageW, pageH, margin float64) pageLayout {
	availW := pageW - 2*margin
	availH := pageH - 2*margin
	scale := math.Min(availW/float64(imgW), availH/float64(imgH))
	w := float64(imgW) * scale
	h := float64(imgH) * scale
	return pageLayout{
		x: (pageW - w) / 2,
		y: (pageH - h) / 2,
		w: w,
		h: h,
	}
}

func orientationFor(imgW, imgH int) string {
	if imgW > imgH {
		return "L"
	}
	return "P"
}

func (c *Converter) convertImageToPDF(ctx context.Context, data []byte, base string, p *progress) (*Result, error) {
	img, err := decodeImage(data)
	if err != nil {
		return nil, err
	}
	p.advance(15, 15)

	imgW, imgH := img.Bounds().Dx(), img.Bounds().Dy()
	orientation := orientationFor(imgW, imgH)
	doc := c.provider.NewDocument(orientation)
	doc.AddPage()
	pageW, pageH := doc.GetPageSize()
	layout := fitImage(imgW, imgH, pageW, pageH, c.opts.PageMargin)
	layout.orientation = orientation
	p.advance(30, 15)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// the embedded bitmap is drawn at twice the source resolution
	hires := imaging.Resize(img, imgW*embedScale, imgH*embedScale, imaging.Lanczos)
	p.advance(45, 15)

	var encoded bytes.Buffer
	if err := imaging.Encode(&encoded, hires, imaging.PNG); err != nil {
		return nil, newError(ErrEncode, err, "failed to encode page image")
	}
	p.advance(60, 15)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	opts := fpdf.ImageOptions{ImageType: "PNG"}
	doc.RegisterImageOptionsReader("page1", opts, &encoded)
	doc.ImageOptions("page1", layout.x, layout.y, layout.w, layout.h, false, opts, 0, "")
	if err := doc.Error(); err != nil {
		return nil, newError(ErrEncode, err, "failed to place image on page")
	}
	p.advance(75, 15)

	var out bytes.Buffer
	if err := doc.Output(&out); err != nil {
		return nil, newError(ErrEncode, err, "failed to write PDF")
	}
	p.advance(90, 15)

	Logger.Debug("Image placed on PDF page", "orientation", layout.orientation, "x", layout.x, "y", layout.y, "w", layout.w, "h", layout.h)
	return &Result{
		Data:      out.Bytes(),
		Filename:  fmt.Sprintf("%s.%s", base, FormatPDF),
		MIMEType:  FormatPDF.MIMEType(),
		PageCount: 1,
	}, nil
}
