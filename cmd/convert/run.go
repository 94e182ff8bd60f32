package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	flag "github.com/spf13/pflag"

	"github.com/drummonds/goconvert/config"
	"github.com/drummonds/goconvert/converter"
)

// Exit codes follow Unix conventions: 0 success, 1 failure, 2 usage
const (
	ExitSuccess = 0
	ExitGeneral = 1
	ExitUsage   = 2
)

// ErrUsage marks command line mistakes
var ErrUsage = errors.New("usage error")

// Env carries the process environment so tests can substitute it
type Env struct {
	Stdout io.Writer
	Stderr io.Writer
	Config config.ConverterConfig
}

// DefaultEnv reads the converter settings from the environment and .env files
func DefaultEnv() Env {
	config.LoadEnvFiles()
	return Env{Stdout: os.Stdout, Stderr: os.Stderr, Config: config.LoadConverterConfig()}
}

func exitCodeFor(err error) int {
	switch {
	case err == nil, errors.Is(err, flag.ErrHelp):
		return ExitSuccess
	case errors.Is(err, ErrUsage):
		return ExitUsage
	default:
		return ExitGeneral
	}
}

// run executes one invocation and returns the exit code
func run(ctx context.Context, args []string, env Env) int {
	err := runConvert(ctx, args, env)
	if err != nil && !errors.Is(err, flag.ErrHelp) {
		fmt.Fprintln(env.Stderr, "convert:", err)
	}
	return exitCodeFor(err)
}

func runConvert(ctx context.Context, args []string, env Env) error {
	f, positional, err := parseConvertFlags(args, env.Config, env.Stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return err
		}
		return fmt.Errorf("%w: %v", ErrUsage, err)
	}

	if f.list {
		printConversions(env.Stdout)
		return nil
	}
	if len(positional) != 1 {
		return fmt.Errorf("%w: expected exactly one input file, got %d", ErrUsage, len(positional))
	}
	if f.to == "" {
		return fmt.Errorf("%w: --to is required", ErrUsage)
	}

	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" || f.quiet {
		logLevel = "error"
	}
	converter.Logger = config.NewLogger(env.Stderr, logLevel)

	input := positional[0]
	data, err := os.ReadFile(input)
	if err != nil {
		return fmt.Errorf("reading input: %w", err)
	}
	inputInfo, err := os.Stat(input)
	if err != nil {
		return fmt.Errorf("reading input: %w", err)
	}

	conv, err := converter.NewFromConfig(f.converterConfig(env.Config))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUsage, err)
	}
	defer conv.Provider().Close()

	req := converter.Request{
		File:   converter.SourceFile{Name: input, Data: data},
		Target: converter.ParseFormat(f.to),
	}
	if !f.quiet {
		req.OnProgress = func(percent int) {
			fmt.Fprintf(env.Stderr, "\rConverting %s: %3d%%", input, percent)
			if percent == 100 {
				fmt.Fprintln(env.Stderr)
			}
		}
	}

	result, err := conv.Convert(ctx, req)
	if err != nil {
		if !f.quiet {
			fmt.Fprintln(env.Stderr)
		}
		return err
	}

	if sameFile(inputInfo, filepath.Join(f.out, result.Filename)) {
		ext := filepath.Ext(result.Filename)
		result.Filename = strings.TrimSuffix(result.Filename, ext) + "_converted" + ext
	}
	path, err := result.Save(f.out)
	if err != nil {
		return fmt.Errorf("writing output: %w", err)
	}

	if !f.quiet {
		switch result.Fallback {
		case converter.FallbackText:
			fmt.Fprintln(env.Stderr, "Note: the page rendered blank and was redrawn from its text, layout may differ")
		case converter.FallbackPlaceholder:
			fmt.Fprintln(env.Stderr, "Warning: degraded output, the page could not be rendered and only its text is shown")
		}
		if result.PageCount > 1 {
			fmt.Fprintf(env.Stderr, "Only page 1 of %d was converted\n", result.PageCount)
		}
	}
	fmt.Fprintln(env.Stdout, path)
	return nil
}

// sameFile reports whether path already names the input file
func sameFile(input os.FileInfo, path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return os.SameFile(input, info)
}

// printConversions writes the advertised source to target table
func printConversions(w io.Writer) {
	for _, source := range converter.SourceFormats() {
		targets := make([]string, 0, len(converter.SupportedConversions[source]))
		for _, target := range converter.SupportedConversions[source] {
			targets = append(targets, string(target))
		}
		sort.Strings(targets)
		fmt.Fprintf(w, "%-5s -> %s\n", source, strings.Join(targets, ", "))
	}
}
