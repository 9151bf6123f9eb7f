package pipeline

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/Brownie44l1/colourise-api/internal/failure"
	"github.com/Brownie44l1/colourise-api/internal/imaging"
	"github.com/Brownie44l1/colourise-api/internal/inference"
	"github.com/Brownie44l1/colourise-api/internal/inference/inferencetest"
	"github.com/Brownie44l1/colourise-api/internal/model"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func newColouriser(t *testing.T, m *inferencetest.Model) *Colouriser {
	t.Helper()
	a, err := inference.New(m, inference.WithLogger(discard))
	if err != nil {
		t.Fatalf("inference.New: %v", err)
	}
	return New(a, WithLogger(discard))
}

func grayImage(t *testing.T, w, h int, v float64) *imaging.Image {
	t.Helper()
	img, err := imaging.NewImage(w, h, 3)
	if err != nil {
		t.Fatalf("NewImage: %v", err)
	}
	for i := range img.Pix {
		img.Pix[i] = v
	}
	return img
}

func TestColouriseSolidGray(t *testing.T) {
	m := inferencetest.New(32, 32, 8, 8)
	c := newColouriser(t, m)

	in := grayImage(t, 64, 64, 0.5)
	out, err := c.Colourise(in)
	if err != nil {
		t.Fatalf("Colourise: %v", err)
	}
	if out.Width != 64 || out.Height != 64 || out.Channels != 3 {
		t.Fatalf("output %dx%dx%d, want 64x64x3", out.Width, out.Height, out.Channels)
	}
	for i, v := range out.Pix {
		if v < 0 || v > 1 {
			t.Fatalf("value %d = %g outside [0,1]", i, v)
		}
	}
	if got := len(m.LastInput()); got != 32*32 {
		t.Errorf("model saw %d values, want %d", got, 32*32)
	}
}

func TestColouriseKeepsSourceSize(t *testing.T) {
	sizes := [][2]int{{483, 321}, {1, 1}, {57, 300}, {8, 8}}
	for _, s := range sizes {
		m := inferencetest.New(16, 16, 7, 5)
		c := newColouriser(t, m)
		out, err := c.Colourise(grayImage(t, s[0], s[1], 0.3))
		if err != nil {
			t.Fatalf("Colourise %dx%d: %v", s[0], s[1], err)
		}
		if out.Width != s[0] || out.Height != s[1] {
			t.Errorf("output %dx%d, want %dx%d", out.Width, out.Height, s[0], s[1])
		}
	}
}

func TestColourisePreservesLightness(t *testing.T) {
	m := inferencetest.New(16, 16, 4, 4)
	m.Predict = func([]float32) (model.Tensor, error) {
		return inferencetest.Constant(4, 4, 10, 12), nil
	}
	c := newColouriser(t, m)

	in := grayImage(t, 40, 30, 0.5)
	for x := 0; x < 40; x++ {
		for y := 0; y < 30; y++ {
			v := 0.3 + 0.4*float64(x)/39
			for ch := 0; ch < 3; ch++ {
				in.Set(x, y, ch, v)
			}
		}
	}

	out, err := c.Colourise(in)
	if err != nil {
		t.Fatalf("Colourise: %v", err)
	}

	inLab, err := imaging.ToLab(in)
	if err != nil {
		t.Fatalf("ToLab(in): %v", err)
	}
	outLab, err := imaging.ToLab(out)
	if err != nil {
		t.Fatalf("ToLab(out): %v", err)
	}
	for i := range inLab.L.Pix {
		if d := math.Abs(inLab.L.Pix[i] - outLab.L.Pix[i]); d > 1e-3 {
			t.Fatalf("lightness %d drifted by %g", i, d)
		}
		if math.Abs(outLab.A.Pix[i]-10) > 1e-3 || math.Abs(outLab.B.Pix[i]-12) > 1e-3 {
			t.Fatalf("chroma %d = (%g, %g), want (10, 12)", i, outLab.A.Pix[i], outLab.B.Pix[i])
		}
	}
}

func TestColouriseGrayscaleInput(t *testing.T) {
	c := newColouriser(t, inferencetest.New(8, 8, 2, 2))
	gray, err := imaging.NewImage(10, 6, 1)
	if err != nil {
		t.Fatalf("NewImage: %v", err)
	}
	out, err := c.Colourise(gray)
	if err != nil {
		t.Fatalf("Colourise: %v", err)
	}
	if out.Channels != 3 || out.Width != 10 || out.Height != 6 {
		t.Errorf("output %dx%dx%d", out.Width, out.Height, out.Channels)
	}
}

func TestColouriseModelFailure(t *testing.T) {
	c := newColouriser(t, inferencetest.Failing(8, 8, 2, 2))

	out, err := c.Colourise(grayImage(t, 20, 20, 0.5))
	if out != nil {
		t.Error("expected no output on failure")
	}
	var pe *failure.PipelineError
	if !errors.As(err, &pe) || pe.Stage != StageInfer {
		t.Fatalf("error = %v, want PipelineError at %q", err, StageInfer)
	}
	var ie *failure.InferenceError
	if !errors.As(err, &ie) {
		t.Errorf("error = %v, want it to wrap InferenceError", err)
	}
	if !errors.Is(err, inferencetest.ErrForward) {
		t.Errorf("error = %v, want it to wrap the model error", err)
	}
	if failure.Classify(err) != failure.KindInference {
		t.Errorf("Classify = %v, want inference", failure.Classify(err))
	}
}

func TestColouriseRejectsMalformedImage(t *testing.T) {
	c := newColouriser(t, inferencetest.New(8, 8, 2, 2))
	bad := &imaging.Image{Width: 4, Height: 4, Channels: 3, Pix: make([]float64, 5)}

	_, err := c.Colourise(bad)
	if failure.Stage(err) != StageDecompose {
		t.Errorf("stage = %q, want %q (err %v)", failure.Stage(err), StageDecompose, err)
	}
	if failure.Classify(err) != failure.KindInvalidInput {
		t.Errorf("Classify = %v, want invalid_input", failure.Classify(err))
	}
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetGray(x, y, color.Gray{Y: uint8((x * 255) / w)})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png.Encode: %v", err)
	}
	return buf.Bytes()
}

func TestRender(t *testing.T) {
	c := newColouriser(t, inferencetest.New(16, 16, 4, 4))

	jpg, err := c.Render(context.Background(), pngBytes(t, 45, 30))
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(jpg))
	if err != nil {
		t.Fatalf("DecodeConfig: %v", err)
	}
	if format != "jpeg" || cfg.Width != 45 || cfg.Height != 30 {
		t.Errorf("got %s %dx%d, want jpeg 45x30", format, cfg.Width, cfg.Height)
	}
}

func TestRenderUndecodable(t *testing.T) {
	c := newColouriser(t, inferencetest.New(16, 16, 4, 4))
	_, err := c.Render(context.Background(), []byte("GIF89a but not really"))
	if failure.Stage(err) != StageDecode || failure.Classify(err) != failure.KindInvalidInput {
		t.Errorf("error = %v, want invalid input at decode", err)
	}
}

func TestRenderRejectsOversizedCanvas(t *testing.T) {
	m := inferencetest.New(16, 16, 4, 4)
	adapter, err := inference.New(m, inference.WithLogger(discard))
	if err != nil {
		t.Fatalf("inference.New: %v", err)
	}
	c := New(adapter, WithLogger(discard), WithMaxPixels(45*30-1))

	_, err = c.Render(context.Background(), pngBytes(t, 45, 30))
	if !errors.Is(err, imaging.ErrTooManyPixels) || failure.Stage(err) != StageDecode {
		t.Fatalf("error = %v, want ErrTooManyPixels at decode", err)
	}
	if failure.Classify(err) != failure.KindInvalidInput {
		t.Errorf("Classify = %v", failure.Classify(err))
	}
	if m.Calls() != 0 {
		t.Errorf("model ran %d times for a refused image", m.Calls())
	}
}

func TestColouriseFile(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in.png")
	out := filepath.Join(dir, "out.jpg")
	if err := os.WriteFile(in, pngBytes(t, 20, 10), 0o644); err != nil {
		t.Fatalf("write input: %v", err)
	}

	c := newColouriser(t, inferencetest.New(8, 8, 2, 2))
	if err := c.ColouriseFile(context.Background(), in, out); err != nil {
		t.Fatalf("ColouriseFile: %v", err)
	}

	f, err := os.Open(out)
	if err != nil {
		t.Fatalf("open output: %v", err)
	}
	defer f.Close()
	cfg, format, err := image.DecodeConfig(f)
	if err != nil {
		t.Fatalf("DecodeConfig: %v", err)
	}
	if format != "jpeg" || cfg.Width != 20 || cfg.Height != 10 {
		t.Errorf("got %s %dx%d", format, cfg.Width, cfg.Height)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 2 {
		t.Errorf("expected only input and output in %s, found %d entries", dir, len(entries))
	}
}

func TestColouriseFileFailureWritesNothing(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in.png")
	out := filepath.Join(dir, "out.jpg")
	if err := os.WriteFile(in, pngBytes(t, 20, 10), 0o644); err != nil {
		t.Fatalf("write input: %v", err)
	}

	c := newColouriser(t, inferencetest.Failing(8, 8, 2, 2))
	if err := c.ColouriseFile(context.Background(), in, out); err == nil {
		t.Fatal("expected an error")
	}
	if _, err := os.Stat(out); !os.IsNotExist(err) {
		t.Errorf("output exists after failure: %v", err)
	}
}

func TestColouriseFileMissingInput(t *testing.T) {
	c := newColouriser(t, inferencetest.New(8, 8, 2, 2))
	err := c.ColouriseFile(context.Background(), filepath.Join(t.TempDir(), "nope.png"), filepath.Join(t.TempDir(), "out.jpg"))
	if failure.Classify(err) != failure.KindInvalidInput {
		t.Errorf("Classify = %v, want invalid_input (err %v)", failure.Classify(err), err)
	}
}
