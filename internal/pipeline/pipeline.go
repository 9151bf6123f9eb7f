// Package pipeline colourises images: it borrows a*b* from the network's
// low-resolution prediction and keeps the source's full-resolution L*.
package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/Brownie44l1/colourise-api/internal/failure"
	"github.com/Brownie44l1/colourise-api/internal/imaging"
)

// Stage names reported in *failure.PipelineError.
const (
	StageDecode    = "decode"
	StageDecompose = "decompose"
	StageResize    = "resize"
	StageInfer     = "infer"
	StageUpsample  = "upsample"
	StageRecombine = "recombine"
	StageCompose   = "compose"
	StageEncode    = "encode"
)

// Inferer predicts a*b* at OutputShape from L* at InputShape.
type Inferer interface {
	InputShape() (h, w int)
	Infer(l imaging.Plane) (imaging.Chroma, error)
}

type options struct {
	quality   int
	maxPixels int
	logger    *slog.Logger
}

// Option configures a Colouriser.
type Option func(*options)

// WithJPEGQuality sets the quality Render encodes with.
func WithJPEGQuality(q int) Option {
	return func(o *options) { o.quality = q }
}

// WithMaxPixels bounds the canvas Render decodes. Zero or less keeps
// imaging.DefaultMaxPixels.
func WithMaxPixels(n int) Option {
	return func(o *options) { o.maxPixels = n }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// Colouriser runs the colourisation stages around an Inferer. It keeps no
// per-request state and is safe for concurrent use.
type Colouriser struct {
	inferer   Inferer
	quality   int
	maxPixels int
	logger    *slog.Logger
}

// New returns a Colouriser using inferer for the prediction stage.
func New(inferer Inferer, opts ...Option) *Colouriser {
	o := options{quality: imaging.DefaultJPEGQuality, maxPixels: imaging.DefaultMaxPixels, logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	return &Colouriser{inferer: inferer, quality: o.quality, maxPixels: o.maxPixels, logger: o.logger}
}

func stageErr(stage string, err error) error {
	return &failure.PipelineError{Stage: stage, Err: err}
}

// Colourise returns an RGB image of the same size as in. Any failure aborts
// the whole call with a *failure.PipelineError naming the stage.
func (c *Colouriser) Colourise(in *imaging.Image) (*imaging.Image, error) {
	rgb, err := in.ToRGB()
	if err != nil {
		return nil, stageErr(StageDecompose, err)
	}

	full, err := imaging.ToLab(rgb)
	if err != nil {
		return nil, stageErr(StageDecompose, err)
	}

	inH, inW := c.inferer.InputShape()
	small, err := imaging.ResizeTo(rgb, inH, inW)
	if err != nil {
		return nil, stageErr(StageResize, err)
	}
	smallL, err := imaging.Lightness(small)
	if err != nil {
		return nil, stageErr(StageResize, err)
	}

	predicted, err := c.inferer.Infer(smallL)
	if err != nil {
		return nil, stageErr(StageInfer, err)
	}

	chroma, err := imaging.UpsampleTo(predicted, rgb.Height, rgb.Width)
	if err != nil {
		return nil, stageErr(StageUpsample, err)
	}

	lab, err := imaging.Combine(full.L, chroma)
	if err != nil {
		return nil, stageErr(StageRecombine, err)
	}

	out, err := imaging.ToRGB(lab)
	if err != nil {
		return nil, stageErr(StageCompose, err)
	}
	return out, nil
}

// Render decodes data, colourises it and returns the result as a JPEG.
func (c *Colouriser) Render(ctx context.Context, data []byte) ([]byte, error) {
	start := time.Now()

	img, format, err := imaging.DecodeBytesLimit(data, c.maxPixels)
	if err != nil {
		return nil, stageErr(StageDecode, err)
	}

	out, err := c.Colourise(img)
	if err != nil {
		return nil, err
	}

	jpg, err := imaging.JPEGBytes(out, c.quality)
	if err != nil {
		return nil, stageErr(StageEncode, err)
	}

	c.logger.DebugContext(ctx, "colourised image",
		"format", format,
		"width", img.Width,
		"height", img.Height,
		"bytes", len(jpg),
		"duration", time.Since(start))
	return jpg, nil
}

// ColouriseFile reads inPath and writes the colourised JPEG to outPath.
func (c *Colouriser) ColouriseFile(ctx context.Context, inPath, outPath string) error {
	data, err := readFile(inPath)
	if err != nil {
		return stageErr(StageDecode, err)
	}
	jpg, err := c.Render(ctx, data)
	if err != nil {
		return err
	}
	if err := writeFile(outPath, jpg); err != nil {
		return stageErr(StageEncode, err)
	}
	return nil
}
