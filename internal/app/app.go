// Package app assembles the colourisation engine shared by the server and
// the CLI: model session, inference adapter and pipeline.
package app

import (
	"log/slog"

	"github.com/Brownie44l1/colourise-api/internal/config"
	"github.com/Brownie44l1/colourise-api/internal/inference"
	"github.com/Brownie44l1/colourise-api/internal/model"
	"github.com/Brownie44l1/colourise-api/internal/pipeline"
)

// Engine is a loaded model behind a ready pipeline.
type Engine struct {
	Pipeline *pipeline.Colouriser
	Adapter  *inference.Adapter
	release  func()
}

// Open loads the model named by cfg and builds the pipeline around it.
func Open(cfg *config.Config, logger *slog.Logger) (*Engine, error) {
	logger.Info("loading model", "path", cfg.Model.Path, "metadata", cfg.Model.MetadataPath)
	session, err := model.NewSession(cfg.Model.Path, cfg.Model.MetadataPath,
		model.WithSharedLibrary(cfg.Model.SharedLibraryPath))
	if err != nil {
		return nil, err
	}

	e, err := build(session, session.Metadata, cfg, logger)
	if err != nil {
		session.Close()
		return nil, err
	}
	e.release = session.Close
	return e, nil
}

func build(m inference.Model, meta model.Metadata, cfg *config.Config, logger *slog.Logger) (*Engine, error) {
	adapter, err := inference.New(m,
		inference.WithTemperature(Temperature(cfg.Model, meta)),
		inference.WithBins(meta.ABBins),
		inference.WithLogger(logger))
	if err != nil {
		return nil, err
	}

	p := pipeline.New(adapter,
		pipeline.WithJPEGQuality(cfg.Pipeline.JPEGQuality),
		pipeline.WithMaxPixels(cfg.Pipeline.MaxPixels),
		pipeline.WithLogger(logger))
	return &Engine{Pipeline: p, Adapter: adapter, release: func() {}}, nil
}

// Temperature picks the annealing temperature: the configured value when
// positive, else the metadata value. Zero leaves the adapter default.
func Temperature(mc config.ModelConfig, meta model.Metadata) float64 {
	if mc.Temperature > 0 {
		return mc.Temperature
	}
	return meta.Temperature
}

// Close releases the model.
func (e *Engine) Close() { e.release() }
