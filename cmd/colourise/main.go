// Command colourise colourises a single image file.
//
//	colourise [flags] <input> <output.jpg>
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/Brownie44l1/colourise-api/internal/app"
	"github.com/Brownie44l1/colourise-api/internal/config"
)

var errUsage = errors.New("usage")

func main() {
	os.Exit(run(os.Args[1:], os.Stderr))
}

type cliFlags struct {
	config   string
	model    string
	metadata string
	ortlib   string
	quality  int
	debug    bool
	input    string
	output   string
}

func parseFlags(args []string, stderr io.Writer) (cliFlags, error) {
	var f cliFlags
	fs := flag.NewFlagSet("colourise", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&f.config, "config", "", "path to YAML config file")
	fs.StringVar(&f.model, "model", "", "path to the ONNX colourisation model")
	fs.StringVar(&f.metadata, "metadata", "", "path to the model metadata JSON")
	fs.StringVar(&f.ortlib, "ortlib", "", "path to the onnxruntime shared library")
	fs.IntVar(&f.quality, "quality", 0, "JPEG quality (1-100)")
	fs.BoolVar(&f.debug, "debug", false, "enable debug logging")
	fs.Usage = func() {
		fmt.Fprintln(stderr, "usage: colourise [flags] <input> <output.jpg>")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return f, errUsage
	}
	if fs.NArg() != 2 {
		fs.Usage()
		return f, errUsage
	}
	if f.quality < 0 || f.quality > 100 {
		fmt.Fprintln(stderr, "colourise: -quality must be between 1 and 100")
		return f, errUsage
	}
	f.input, f.output = fs.Arg(0), fs.Arg(1)
	return f, nil
}

// run returns the process exit code: 0 on success, 1 on failure and 2 on
// a usage error.
func run(args []string, stderr io.Writer) int {
	f, err := parseFlags(args, stderr)
	if err != nil {
		return 2
	}

	level := slog.LevelWarn
	if f.debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	if err := colourise(context.Background(), f, logger); err != nil {
		fmt.Fprintf(stderr, "colourise: %v\n", err)
		return 1
	}
	return 0
}

func colourise(ctx context.Context, f cliFlags, logger *slog.Logger) error {
	cfg, err := config.Load(f.config)
	if err != nil {
		return err
	}
	if f.model != "" {
		cfg.Model.Path = f.model
	}
	if f.metadata != "" {
		cfg.Model.MetadataPath = f.metadata
	}
	if f.ortlib != "" {
		cfg.Model.SharedLibraryPath = f.ortlib
	}
	if f.quality > 0 {
		cfg.Pipeline.JPEGQuality = f.quality
	}

	engine, err := app.Open(cfg, logger)
	if err != nil {
		return err
	}
	defer engine.Close()
	return engine.Pipeline.ColouriseFile(ctx, f.input, f.output)
}
