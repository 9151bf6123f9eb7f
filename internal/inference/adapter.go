// Package inference adapts the colourisation network to the pipeline: it
// normalises the lightness plane, serialises forward passes and turns the
// network output into a*b* planes.
package inference

import (
	"fmt"
	"log/slog"
	"math"
	"sync"

	"github.com/Brownie44l1/colourise-api/internal/failure"
	"github.com/Brownie44l1/colourise-api/internal/imaging"
	"github.com/Brownie44l1/colourise-api/internal/model"
)

// LightnessMean is subtracted from L* before the forward pass. It is the
// normalisation the network was trained with.
const LightnessMean = 50

// DefaultTemperature anneals the bin distribution towards its mode; the
// network's 1/T is 6/ln(10).
var DefaultTemperature = math.Ln10 / 6

// Model is the network collaborator. Shapes are fixed for its lifetime.
type Model interface {
	InputShape() (h, w int)
	OutputShape() (h, w int)
	Forward(lightness []float32) (model.Tensor, error)
}

type options struct {
	temperature float64
	bins        [][2]float32
	logger      *slog.Logger
}

// Option configures an Adapter.
type Option func(*options)

// WithTemperature sets the annealing temperature. Values <= 0 keep the default.
func WithTemperature(t float64) Option {
	return func(o *options) {
		if t > 0 {
			o.temperature = t
		}
	}
}

// WithBins sets the a*b* bin centres for networks that emit per-bin logits.
func WithBins(bins [][2]float32) Option {
	return func(o *options) { o.bins = bins }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// Adapter owns the model for the process lifetime. Infer is safe for
// concurrent use; forward passes run one at a time.
type Adapter struct {
	mu          sync.Mutex
	model       Model
	temperature float64
	bins        [][2]float32
	inH, inW    int
	outH, outW  int
	logger      *slog.Logger
}

// New wraps m. It fails if the network emits bins but none were configured.
func New(m Model, opts ...Option) (*Adapter, error) {
	o := options{temperature: DefaultTemperature, logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}

	a := &Adapter{
		model:       m,
		temperature: o.temperature,
		bins:        o.bins,
		logger:      o.logger,
	}
	a.inH, a.inW = m.InputShape()
	a.outH, a.outW = m.OutputShape()
	if a.inH <= 0 || a.inW <= 0 || a.outH <= 0 || a.outW <= 0 {
		return nil, fmt.Errorf("model shapes must be positive: in %dx%d, out %dx%d", a.inW, a.inH, a.outW, a.outH)
	}

	a.logger.Info("inference adapter ready",
		"input", fmt.Sprintf("%dx%d", a.inW, a.inH),
		"output", fmt.Sprintf("%dx%d", a.outW, a.outH),
		"bins", len(a.bins),
		"temperature", a.temperature)
	return a, nil
}

// InputShape is the model's lightness resolution.
func (a *Adapter) InputShape() (h, w int) { return a.inH, a.inW }

// OutputShape is the model's chroma resolution.
func (a *Adapter) OutputShape() (h, w int) { return a.outH, a.outW }

// Temperature is the annealing temperature fixed at construction.
func (a *Adapter) Temperature() float64 { return a.temperature }

// Infer predicts a*b* planes at OutputShape for an L* plane at InputShape.
// All failures are *failure.InferenceError and are not retried.
func (a *Adapter) Infer(l imaging.Plane) (imaging.Chroma, error) {
	if l.Width != a.inW || l.Height != a.inH || len(l.Pix) != a.inW*a.inH {
		return imaging.Chroma{}, &failure.InferenceError{
			Err: fmt.Errorf("lightness is %dx%d, model expects %dx%d", l.Width, l.Height, a.inW, a.inH),
		}
	}

	input := make([]float32, len(l.Pix))
	for i, v := range l.Pix {
		input[i] = float32(v - LightnessMean)
	}

	out, err := a.forward(input)
	if err != nil {
		return imaging.Chroma{}, &failure.InferenceError{Err: err}
	}
	chroma, err := a.decode(out)
	if err != nil {
		return imaging.Chroma{}, &failure.InferenceError{Err: err}
	}
	return chroma, nil
}

func (a *Adapter) forward(input []float32) (out model.Tensor, err error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("forward pass panicked: %v", r)
		}
	}()
	return a.model.Forward(input)
}

// decode converts NCHW output into chroma planes.
func (a *Adapter) decode(t model.Tensor) (imaging.Chroma, error) {
	if t.Height != a.outH || t.Width != a.outW {
		return imaging.Chroma{}, fmt.Errorf("output is %dx%d, model declares %dx%d", t.Width, t.Height, a.outW, a.outH)
	}
	n := a.outH * a.outW
	if len(t.Data) != t.Channels*n {
		return imaging.Chroma{}, fmt.Errorf("output has %d values for %d channels of %dx%d", len(t.Data), t.Channels, t.Width, t.Height)
	}

	c := imaging.Chroma{A: imaging.NewPlane(a.outW, a.outH), B: imaging.NewPlane(a.outW, a.outH)}
	switch {
	case t.Channels == 2:
		for i := 0; i < n; i++ {
			c.A.Pix[i] = float64(t.Data[i])
			c.B.Pix[i] = float64(t.Data[n+i])
		}
	case t.Channels > 2 && t.Channels == len(a.bins):
		a.annealedMean(t.Data, n, c)
	default:
		return imaging.Chroma{}, fmt.Errorf("output has %d channels, want 2 or %d bins", t.Channels, len(a.bins))
	}
	return c, nil
}

// annealedMean computes softmax(logit/T) weighted bin centres per pixel.
func (a *Adapter) annealedMean(logits []float32, n int, c imaging.Chroma) {
	q := len(a.bins)
	inv := 1 / a.temperature
	weights := make([]float64, q)
	for i := 0; i < n; i++ {
		maxLogit := math.Inf(-1)
		for k := 0; k < q; k++ {
			weights[k] = float64(logits[k*n+i]) * inv
			maxLogit = math.Max(maxLogit, weights[k])
		}
		var sum, av, bv float64
		for k := 0; k < q; k++ {
			w := math.Exp(weights[k] - maxLogit)
			sum += w
			av += w * float64(a.bins[k][0])
			bv += w * float64(a.bins[k][1])
		}
		c.A.Pix[i] = av / sum
		c.B.Pix[i] = bv / sum
	}
}
