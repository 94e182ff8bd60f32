package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	flag "github.com/spf13/pflag"

	"github.com/drummonds/goconvert/config"
)

// convertFlags holds the command line options, defaulted from the environment
type convertFlags struct {
	to          string
	out         string
	scale       float64
	timeout     time.Duration
	renderers   string
	pageSize    string
	placeholder bool
	list        bool
	quiet       bool
}

// converterConfig applies the flags over the environment settings
func (f *convertFlags) converterConfig(base config.ConverterConfig) config.ConverterConfig {
	cfg := base
	cfg.RenderScale = f.scale
	cfg.RenderTimeout = f.timeout
	cfg.Renderers = config.SplitList(f.renderers)
	cfg.PageSize = f.pageSize
	cfg.AllowPlaceholder = f.placeholder
	return cfg
}

func parseConvertFlags(args []string, base config.ConverterConfig, stderr io.Writer) (*convertFlags, []string, error) {
	fs := flag.NewFlagSet("convert", flag.ContinueOnError)
	fs.SetOutput(stderr)
	f := &convertFlags{}

	fs.StringVarP(&f.to, "to", "t", "", "target format: jpg, png, webp, bmp, gif or pdf")
	fs.StringVarP(&f.out, "out", "o", ".", "output directory")
	fs.Float64Var(&f.scale, "scale", base.RenderScale, "PDF render scale, 1.0 is 72 DPI")
	fs.DurationVar(&f.timeout, "timeout", base.RenderTimeout, "page render timeout")
	fs.StringVar(&f.renderers, "renderers", strings.Join(base.Renderers, ","), "PDF renderers to try, in order")
	fs.StringVar(&f.pageSize, "page-size", base.PageSize, "page size for image to PDF")
	fs.BoolVar(&f.placeholder, "placeholder", base.AllowPlaceholder, "draw a labelled text page when a PDF page renders blank")
	fs.BoolVarP(&f.list, "list", "l", false, "list supported conversions and exit")
	fs.BoolVarP(&f.quiet, "quiet", "q", false, "only print the output path")

	fs.Usage = func() { printUsage(stderr, fs) }

	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}
	// same bounds ServerConfig.Validate puts on RENDER_SCALE
	if f.scale <= 0 || f.scale > 10 {
		return nil, nil, fmt.Errorf("--scale must be between 0 and 10, got %g", f.scale)
	}
	if f.timeout <= 0 {
		return nil, nil, fmt.Errorf("--timeout must be positive, got %s", f.timeout)
	}
	return f, fs.Args(), nil
}

func printUsage(w io.Writer, fs *flag.FlagSet) {
	fmt.Fprintln(w, "Usage: convert [flags] <file>")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Converts an image to another image format or to PDF, or the first page of a PDF to an image.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Flags:")
	fmt.Fprint(w, fs.FlagUsages())
}
