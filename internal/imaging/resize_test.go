package imaging

import (
	"bytes"
	"errors"
	"image"
	"math"
	"testing"

	"github.com/Brownie44l1/colourise-api/internal/failure"
)

func TestResizeToDimensions(t *testing.T) {
	tests := []struct {
		name       string
		srcW, srcH int
		dstW, dstH int
	}{
		{"downscale", 483, 321, 224, 224},
		{"upscale", 31, 17, 64, 40},
		{"identity", 64, 64, 64, 64},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img := randomImage(t, tt.srcW, tt.srcH, 7)
			out, err := ResizeTo(img, tt.dstH, tt.dstW)
			if err != nil {
				t.Fatalf("ResizeTo: %v", err)
			}
			if out.Width != tt.dstW || out.Height != tt.dstH || out.Channels != 3 {
				t.Errorf("got %dx%dx%d, want %dx%dx3", out.Width, out.Height, out.Channels, tt.dstW, tt.dstH)
			}
		})
	}
}

func TestResizeToIdentityIsExactCopy(t *testing.T) {
	img := randomImage(t, 9, 5, 3)
	out, err := ResizeTo(img, 5, 9)
	if err != nil {
		t.Fatalf("ResizeTo: %v", err)
	}
	for i := range img.Pix {
		if out.Pix[i] != img.Pix[i] {
			t.Fatalf("pixel %d changed: %g -> %g", i, img.Pix[i], out.Pix[i])
		}
	}
	out.Pix[0] = -1
	if img.Pix[0] == -1 {
		t.Error("identity resize shares the source buffer")
	}
}

func TestResizeToKeepsSolidColour(t *testing.T) {
	img := solidImage(t, 100, 60, 0.2, 0.5, 0.8)
	out, err := ResizeTo(img, 224, 224)
	if err != nil {
		t.Fatalf("ResizeTo: %v", err)
	}
	want := []float64{0.2, 0.5, 0.8}
	for i, v := range out.Pix {
		if math.Abs(v-want[i%3]) > 1e-3 {
			t.Fatalf("value %d = %g, want %g", i, v, want[i%3])
		}
	}
}

func TestResizeToRejectsBadTarget(t *testing.T) {
	img := randomImage(t, 4, 4, 1)
	if _, err := ResizeTo(img, 0, 10); !errors.Is(err, failure.ErrInvalidShape) {
		t.Errorf("error = %v, want ErrInvalidShape", err)
	}
}

func rampChroma(w, h int) Chroma {
	c := Chroma{A: NewPlane(w, h), B: NewPlane(w, h)}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c.A.Pix[y*w+x] = float64(x)
			c.B.Pix[y*w+x] = -float64(y)
		}
	}
	return c
}

func TestUpsampleToNonIntegerRatio(t *testing.T) {
	src := rampChroma(56, 56)
	out, err := UpsampleTo(src, 321, 483)
	if err != nil {
		t.Fatalf("UpsampleTo: %v", err)
	}
	w, h, err := out.Size()
	if err != nil {
		t.Fatalf("Size: %v", err)
	}
	if w != 483 || h != 321 {
		t.Fatalf("got %dx%d, want 483x321", w, h)
	}

	// Bilinear resampling reproduces a linear ramp, so each plane at a
	// destination pixel is known exactly. Misaligned planes would disagree.
	sx := 55.0 / 482.0
	sy := 55.0 / 320.0
	for _, p := range [][2]int{{0, 0}, {482, 320}, {241, 17}, {100, 300}} {
		x, y := p[0], p[1]
		a := out.A.At(x, y)
		b := out.B.At(x, y)
		if math.Abs(a-float64(x)*sx) > 1e-9 {
			t.Errorf("a(%d,%d) = %g, want %g", x, y, a, float64(x)*sx)
		}
		if math.Abs(b+float64(y)*sy) > 1e-9 {
			t.Errorf("b(%d,%d) = %g, want %g", x, y, b, -float64(y)*sy)
		}
	}
}

func TestUpsampleToIdentity(t *testing.T) {
	src := rampChroma(8, 6)
	out, err := UpsampleTo(src, 6, 8)
	if err != nil {
		t.Fatalf("UpsampleTo: %v", err)
	}
	for i := range src.A.Pix {
		if out.A.Pix[i] != src.A.Pix[i] || out.B.Pix[i] != src.B.Pix[i] {
			t.Fatalf("pixel %d changed", i)
		}
	}
}

func TestUpsampleToSinglePixelSource(t *testing.T) {
	src := Chroma{A: Plane{Width: 1, Height: 1, Pix: []float64{12}}, B: Plane{Width: 1, Height: 1, Pix: []float64{-7}}}
	out, err := UpsampleTo(src, 3, 5)
	if err != nil {
		t.Fatalf("UpsampleTo: %v", err)
	}
	for i := range out.A.Pix {
		if out.A.Pix[i] != 12 || out.B.Pix[i] != -7 {
			t.Fatalf("pixel %d = (%g, %g), want (12, -7)", i, out.A.Pix[i], out.B.Pix[i])
		}
	}
}

func TestUpsampleToRejectsMismatchedPlanes(t *testing.T) {
	c := Chroma{A: NewPlane(4, 4), B: NewPlane(4, 3)}
	if _, err := UpsampleTo(c, 8, 8); !errors.Is(err, failure.ErrInvalidShape) {
		t.Errorf("error = %v, want ErrInvalidShape", err)
	}
}

func TestJPEGRoundTripDimensions(t *testing.T) {
	img := solidImage(t, 16, 8, 0.25, 0.5, 0.75)
	data, err := JPEGBytes(img, 85)
	if err != nil {
		t.Fatalf("JPEGBytes: %v", err)
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("DecodeConfig: %v", err)
	}
	if format != "jpeg" || cfg.Width != 16 || cfg.Height != 8 {
		t.Errorf("got %s %dx%d, want jpeg 16x8", format, cfg.Width, cfg.Height)
	}

	back, _, err := DecodeBytes(data)
	if err != nil {
		t.Fatalf("DecodeBytes: %v", err)
	}
	if back.Channels != 3 || back.Width != 16 || back.Height != 8 {
		t.Errorf("decoded %dx%dx%d", back.Width, back.Height, back.Channels)
	}
}

func TestDecodeGarbage(t *testing.T) {
	_, _, err := DecodeBytes([]byte("not an image"))
	var invalid *failure.InvalidInputError
	if !errors.As(err, &invalid) {
		t.Errorf("error = %v, want InvalidInputError", err)
	}
}

func TestGrayImageExpandsToRGB(t *testing.T) {
	gray, err := NewImage(2, 2, 1)
	if err != nil {
		t.Fatalf("NewImage: %v", err)
	}
	gray.Pix = []float64{0, 0.25, 0.5, 1}
	rgb, err := gray.ToRGB()
	if err != nil {
		t.Fatalf("ToRGB: %v", err)
	}
	for i, v := range gray.Pix {
		for c := 0; c < 3; c++ {
			if rgb.Pix[3*i+c] != v {
				t.Fatalf("pixel %d channel %d = %g, want %g", i, c, rgb.Pix[3*i+c], v)
			}
		}
	}
}
