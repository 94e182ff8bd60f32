package converter

import (
	"path/filepath"
	"sort"
	"strings"

	"github.com/h2non/filetype"
)

// Format is a file format token, the lower case file extension without the dot
type Format string

const (
	FormatJPG  Format = "jpg"
	FormatJPEG Format = "jpeg"
	FormatPNG  Format = "png"
	FormatWebP Format = "webp"
	FormatBMP  Format = "bmp"
	FormatGIF  Format = "gif"
	FormatTIFF Format = "tiff" // accepted as a source only
	FormatPDF  Format = "pdf"
)

// rasterFormats are the formats a conversion can decode as an image
var rasterFormats = map[Format]bool{
	FormatJPG:  true,
	FormatJPEG: true,
	FormatPNG:  true,
	FormatWebP: true,
	FormatBMP:  true,
	FormatGIF:  true,
	FormatTIFF: true,
}

// targetFormats are the formats a conversion may be asked to produce
var targetFormats = map[Format]bool{
	FormatJPG:  true,
	FormatJPEG: true,
	FormatPNG:  true,
	FormatWebP: true,
	FormatBMP:  true,
	FormatGIF:  true,
	FormatPDF:  true,
}

// SupportedConversions lists, per source format, the targets advertised to users.
// Dispatch goes by category (see Convert), so a few unlisted pairs such as pdf to gif also work.
var SupportedConversions = map[Format][]Format{
	FormatJPG:  {FormatPDF, FormatPNG, FormatWebP, FormatBMP, FormatGIF},
	FormatJPEG: {FormatPDF, FormatPNG, FormatWebP, FormatBMP, FormatGIF},
	FormatPNG:  {FormatPDF, FormatJPG, FormatWebP, FormatBMP, FormatGIF},
	FormatWebP: {FormatPDF, FormatJPG, FormatPNG, FormatBMP, FormatGIF},
	FormatBMP:  {FormatPDF, FormatJPG, FormatPNG, FormatWebP, FormatGIF},
	FormatGIF:  {FormatPDF, FormatJPG, FormatPNG, FormatWebP, FormatBMP},
	FormatTIFF: {FormatPDF, FormatJPG, FormatPNG, FormatWebP, FormatBMP},
	FormatPDF:  {FormatJPG, FormatPNG, FormatWebP},
}

// ParseFormat normalises a user supplied token such as ".PNG" into a Format
func ParseFormat(token string) Format {
	return Format(strings.TrimPrefix(strings.ToLower(strings.TrimSpace(token)), "."))
}

// MIMEType returns the media type for the format, empty when unknown
func (f Format) MIMEType() string {
	switch f {
	case FormatJPG, FormatJPEG:
		return "image/jpeg"
	case FormatPNG:
		return "image/png"
	case FormatWebP:
		return "image/webp"
	case FormatBMP:
		return "image/bmp"
	case FormatGIF:
		return "image/gif"
	case FormatTIFF:
		return "image/tiff"
	case FormatPDF:
		return "application/pdf"
	}
	return ""
}

// IsRaster reports whether the format can be decoded as an image
func (f Format) IsRaster() bool {
	return rasterFormats[f]
}

// IsTarget reports whether the format can be produced
func (f Format) IsTarget() bool {
	return targetFormats[f]
}

// Supports reports whether the pair is listed in SupportedConversions
func Supports(source, target Format) bool {
	for _, t := range SupportedConversions[source] {
		if t == target {
			return true
		}
	}
	return false
}

// SourceFormats returns the listed source formats in a stable order
func SourceFormats() []Format {
	formats := make([]Format, 0, len(SupportedConversions))
	for f := range SupportedConversions {
		formats = append(formats, f)
	}
	sort.Slice(formats, func(i, j int) bool { return formats[i] < formats[j] })
	return formats
}

// classifySource picks the source format from the file name, falling back to the content
func classifySource(name string, data []byte) Format {
	if ext := ParseFormat(filepath.Ext(name)); ext != "" {
		return canonical(ext)
	}
	kind, err := filetype.Match(data)
	if err != nil || kind == filetype.Unknown {
		return ""
	}
	return canonical(ParseFormat(kind.Extension))
}

func canonical(f Format) Format {
	if f == "tif" {
		return FormatTIFF
	}
	return f
}

// splitName returns the file name without directory and extension
func splitName(name string) string {
	base := filepath.Base(name)
	if base == "." || base == string(filepath.Separator) {
		return "converted"
	}
	if ext := filepath.Ext(base); ext != "" && ext != base {
		base = strings.TrimSuffix(base, ext)
	}
	if base == "" {
		return "converted"
	}
	return base
}
