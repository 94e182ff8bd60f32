package converter

import (
	"fmt"
	"os"
	"path/filepath"
)

// Fallback records which path produced a PDF to image result
type Fallback string

const (
	FallbackNone        Fallback = ""            // the renderer's own output
	FallbackText        Fallback = "text"        // redrawn from extracted text runs
	FallbackPlaceholder Fallback = "placeholder" // labelled degraded representation
)

// Result is the encoded output of a conversion
type Result struct {
	Data      []byte
	Filename  string
	MIMEType  string
	Width     int // pixels for raster output, zero for PDF
	Height    int
	PageCount int // source page count for PDF input
	Fallback  Fallback
}

// Save writes the result into dir under its suggested file name and returns the full path
func (r *Result) Save(dir string) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}
	path := filepath.Join(dir, r.Filename)
	if err := os.WriteFile(path, r.Data, 0644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	return path, nil
}
